// Package bridge exposes feeders over HTTP. Feeders are registered as REST resources and indexed with
// POST /feeders/{id}/index
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/calvinmclean/babyapi"
	"github.com/go-chi/render"

	"github.com/calvinmclean/indexfeeder"
	"github.com/calvinmclean/indexfeeder/controller"
)

// Indexer sends index commands to a feeder. controller.Controller implements it
type Indexer interface {
	Index(ctx context.Context, addr feeder.Address, dir feeder.Direction) error
}

// Feeder is a registered feeder slot
type Feeder struct {
	babyapi.DefaultResource

	Name    string `json:"name"`
	Address uint8  `json:"address"`

	// Position counts ticks moved through the bridge, forward minus backward
	Position    int        `json:"position"`
	LastIndexed *time.Time `json:"last_indexed,omitempty"`
}

func (f *Feeder) Bind(r *http.Request) error {
	err := f.DefaultResource.Bind(r)
	if err != nil {
		return err
	}

	if f.Name == "" {
		return errors.New("missing name")
	}
	if !feeder.Address(f.Address).Assigned() {
		return fmt.Errorf("address %d out of range 1-%d", f.Address, feeder.AddressMax)
	}
	return nil
}

// IndexResult is the response to an index request
type IndexResult struct {
	Feeder    *Feeder `json:"feeder"`
	Direction string  `json:"direction"`
}

func (*IndexResult) Render(_ http.ResponseWriter, r *http.Request) error {
	render.Status(r, http.StatusOK)
	return nil
}

// API is the feeder REST API
type API struct {
	*babyapi.API[*Feeder]

	indexer Indexer
	logger  *slog.Logger
}

func NewAPI(ix Indexer, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	api := &API{
		API:     babyapi.NewAPI("Feeders", "/feeders", func() *Feeder { return &Feeder{} }),
		indexer: ix,
		logger:  logger,
	}

	api.AddCustomIDRoute(http.MethodPost, "/index", api.GetRequestedResourceAndDo(api.index))

	return api
}

// Seed registers the feeders from a controller config
func (api *API) Seed(ctx context.Context, feeders []controller.FeederConfig) error {
	for _, f := range feeders {
		err := api.Storage.Set(ctx, &Feeder{
			DefaultResource: babyapi.DefaultResource{ID: babyapi.NewID()},
			Name:            f.Name,
			Address:         f.Address,
		})
		if err != nil {
			return fmt.Errorf("error storing feeder %q: %w", f.Name, err)
		}
	}
	return nil
}

func (api *API) index(_ http.ResponseWriter, r *http.Request, f *Feeder) (render.Renderer, *babyapi.ErrResponse) {
	dir := feeder.Forward
	if q := r.URL.Query().Get("direction"); q != "" {
		var err error
		dir, err = feeder.ParseDirection(q)
		if err != nil {
			return nil, babyapi.ErrInvalidRequest(fmt.Errorf("%w: %q", err, q))
		}
	}

	logger := api.logger.With("feeder", f.Name, "address", f.Address, "direction", dir.String())

	err := api.indexer.Index(r.Context(), feeder.Address(f.Address), dir)
	switch {
	case errors.Is(err, controller.ErrNoEcho):
		logger.Warn("feeder did not answer", "error", err)
		return nil, &babyapi.ErrResponse{
			Err:            err,
			HTTPStatusCode: http.StatusGatewayTimeout,
			StatusText:     "Feeder did not answer.",
			ErrorText:      err.Error(),
		}
	case err != nil:
		logger.Error("error indexing", "error", err)
		return nil, babyapi.InternalServerError(err)
	}

	now := time.Now()
	f.Position += int(dir.Sign())
	f.LastIndexed = &now

	err = api.Storage.Set(r.Context(), f)
	if err != nil {
		return nil, babyapi.InternalServerError(err)
	}

	logger.Info("indexed")
	return &IndexResult{Feeder: f, Direction: dir.String()}, nil
}
