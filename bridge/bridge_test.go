package bridge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/calvinmclean/indexfeeder"
	"github.com/calvinmclean/indexfeeder/controller"
)

type indexCall struct {
	addr feeder.Address
	dir  feeder.Direction
}

type fakeIndexer struct {
	mtx   sync.Mutex
	calls []indexCall
	err   error
}

func (f *fakeIndexer) Index(_ context.Context, addr feeder.Address, dir feeder.Direction) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.calls = append(f.calls, indexCall{addr, dir})
	return f.err
}

func newTestServer(t *testing.T, ix Indexer) (*API, *httptest.Server) {
	t.Helper()
	api := NewAPI(ix, nil)
	r, err := api.Router()
	if err != nil {
		t.Fatalf("error creating router: %v", err)
	}
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return api, server
}

func TestIndex(t *testing.T) {
	ix := &fakeIndexer{}
	_, server := newTestServer(t, ix)
	client := NewClient(server.URL)
	ctx := context.Background()

	f, err := client.Register(ctx, "resistors", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id := f.GetID()

	result, err := client.Index(ctx, id, feeder.Forward)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Direction != "Forward" || result.Feeder.Position != 1 {
		t.Errorf("unexpected result %+v", result)
	}

	_, err = client.Index(ctx, id, feeder.Backward)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []indexCall{{5, feeder.Forward}, {5, feeder.Backward}}
	if fmt.Sprint(ix.calls) != fmt.Sprint(expected) {
		t.Errorf("expected %v, got %v", expected, ix.calls)
	}

	got, err := client.Get(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Position != 0 {
		t.Errorf("expected position 0, got %d", got.Position)
	}
	if got.LastIndexed == nil {
		t.Error("expected last indexed time")
	}
}

func TestIndexNoEcho(t *testing.T) {
	ix := &fakeIndexer{err: fmt.Errorf("error indexing feeder 5: %w", controller.ErrNoEcho)}
	_, server := newTestServer(t, ix)
	client := NewClient(server.URL)

	f, err := client.Register(context.Background(), "resistors", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := http.Post(server.URL+"/feeders/"+f.GetID()+"/index", "application/json", http.NoBody)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %d", resp.StatusCode)
	}

	got, err := client.Get(context.Background(), f.GetID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Position != 0 || got.LastIndexed != nil {
		t.Errorf("expected feeder unchanged, got %+v", got)
	}
}

func TestIndexInvalidDirection(t *testing.T) {
	ix := &fakeIndexer{}
	_, server := newTestServer(t, ix)

	f, err := NewClient(server.URL).Register(context.Background(), "resistors", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := http.Post(server.URL+"/feeders/"+f.GetID()+"/index?direction=sideways", "application/json", http.NoBody)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	if len(ix.calls) != 0 {
		t.Errorf("expected no index, got %v", ix.calls)
	}
}

func TestRegisterValidation(t *testing.T) {
	_, server := newTestServer(t, &fakeIndexer{})
	client := NewClient(server.URL)

	tests := []struct {
		name    string
		feeder  string
		address feeder.Address
	}{
		{"Unassigned", "a", 0},
		{"Reserved", "a", 0xFF},
		{"MissingName", "", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Register(context.Background(), tt.feeder, tt.address)
			if err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSeed(t *testing.T) {
	api, server := newTestServer(t, &fakeIndexer{})

	err := api.Seed(context.Background(), []controller.FeederConfig{
		{Name: "resistors", Address: 1},
		{Name: "capacitors", Address: 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := http.Get(server.URL + "/feeders")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range []string{"resistors", "capacitors"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("expected %q in %s", name, body)
		}
	}
}
