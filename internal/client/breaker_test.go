package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/alfredjeanlab/kgview/internal/model"
)

func TestBreakerClient_TripsOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	cfg := DefaultBreakerConfig("test")
	cfg.MinRequests = 2
	cfg.Timeout = time.Hour
	b := NewBreakerClient(NewHTTPClient(srv.URL, ""), cfg, nil)

	for range 2 {
		if _, err := b.Search(context.Background(), "x"); !model.IsNetworkError(err) {
			t.Fatalf("error = %v, want network error", err)
		}
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	_, err := b.FetchGraph(context.Background(), "g1")
	var ne *model.NetworkError
	if !errors.As(err, &ne) || !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("error = %v, want open-state network error", err)
	}
	if hits.Load() != 2 {
		t.Errorf("backend hits = %d, want 2", hits.Load())
	}
}

func TestBreakerClient_ClientErrorsDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"message":"node not found"}`))
	}))
	defer srv.Close()

	cfg := DefaultBreakerConfig("test")
	cfg.MinRequests = 1
	b := NewBreakerClient(NewHTTPClient(srv.URL, ""), cfg, nil)

	for range 5 {
		if _, err := b.DeleteNode(context.Background(), "g1", "zz"); !model.IsNetworkError(err) {
			t.Fatalf("error = %v", err)
		}
	}
	if b.State() != gobreaker.StateClosed {
		t.Errorf("state = %v, want closed", b.State())
	}
}

func TestBreakerClient_PassesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"graph_ids":["g1"]}`))
	}))
	defer srv.Close()

	b := NewBreakerClient(NewHTTPClient(srv.URL, ""), DefaultBreakerConfig("test"), nil)
	ids, err := b.ListUserGraphIDs(context.Background(), "u1")
	if err != nil || len(ids) != 1 || ids[0] != "g1" {
		t.Fatalf("ListUserGraphIDs() = %v, %v", ids, err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
