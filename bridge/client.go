package bridge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/calvinmclean/babyapi"

	"github.com/calvinmclean/indexfeeder"
)

// Client talks to a bridge over HTTP
type Client struct {
	client *babyapi.Client[*Feeder]
}

func NewClient(addr string) *Client {
	return &Client{client: babyapi.NewClient[*Feeder](addr, "/feeders")}
}

// Register adds a feeder and returns it with its ID
func (c *Client) Register(ctx context.Context, name string, addr feeder.Address) (*Feeder, error) {
	resp, err := c.client.Post(ctx, &Feeder{Name: name, Address: uint8(addr)})
	if err != nil {
		return nil, fmt.Errorf("error registering feeder: %w", err)
	}
	return resp.Data, nil
}

// Get fetches a feeder by ID
func (c *Client) Get(ctx context.Context, id string) (*Feeder, error) {
	resp, err := c.client.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting feeder: %w", err)
	}
	return resp.Data, nil
}

// Index moves the feeder with this ID one tick
func (c *Client) Index(ctx context.Context, id string, dir feeder.Direction) (*IndexResult, error) {
	u, err := c.client.URL(id)
	if err != nil {
		return nil, fmt.Errorf("error building URL: %w", err)
	}
	u += "/index?direction=" + url.QueryEscape(dir.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	var result IndexResult
	resp, err := c.client.MakeGenericRequest(req, &result)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	if resp.Response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, response: %v", resp.Response.StatusCode, resp.Body)
	}

	return &result, nil
}
