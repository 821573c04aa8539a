package server

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"testing"

	"github.com/alfredjeanlab/kgview/internal/client"
	"github.com/alfredjeanlab/kgview/internal/metrics"
	"github.com/alfredjeanlab/kgview/internal/model"
	"github.com/alfredjeanlab/kgview/internal/presence"
	"github.com/alfredjeanlab/kgview/internal/render"
	"github.com/alfredjeanlab/kgview/internal/session"
)

// stubAPI is an in-memory backend with one user owning graph g1.
type stubAPI struct {
	mu    sync.Mutex
	calls []string
}

func graphG1() *model.Graph {
	return &model.Graph{
		GraphID: "g1",
		Nodes: []*model.Node{
			model.NewNode("n1", "Alice", model.TypePerson),
			model.NewNode("n2", "Bob", model.TypePerson),
		},
		Links: []*model.Link{{Source: "n1", Target: "n2", Label: "knows"}},
	}
}

func (a *stubAPI) record(call string) {
	a.mu.Lock()
	a.calls = append(a.calls, call)
	a.mu.Unlock()
}

func (a *stubAPI) Search(_ context.Context, keyword string) ([]client.SearchResult, error) {
	a.record("search " + keyword)
	if keyword == "Alice" {
		return []client.SearchResult{{ID: "n1", Name: "Alice", Type: "Person"}}, nil
	}
	return nil, nil
}

func (a *stubAPI) Upload(_ context.Context, filename string, _ io.Reader, _ string) (*client.UploadResult, error) {
	a.record("upload " + filename)
	return &client.UploadResult{Status: "success", GraphID: "g1"}, nil
}

func (a *stubAPI) FetchGraph(_ context.Context, graphID string) (*model.Graph, error) {
	a.record("fetch " + graphID)
	if graphID != "g1" {
		return nil, &model.NetworkError{Op: "fetch graph", StatusCode: http.StatusNotFound, Message: "no such graph"}
	}
	return graphG1(), nil
}

func (a *stubAPI) ListUserGraphIDs(_ context.Context, userID string) ([]string, error) {
	a.record("list " + userID)
	return []string{"g1"}, nil
}

func (a *stubAPI) ListUserGraphs(_ context.Context, _ string) ([]*model.Graph, error) {
	return []*model.Graph{graphG1()}, nil
}

func (a *stubAPI) DeleteGraph(_ context.Context, graphID string) (string, error) {
	a.record("delete-graph " + graphID)
	return "deleted", nil
}

func (a *stubAPI) DeleteUserGraphs(_ context.Context, userID string) (string, error) {
	return "deleted", nil
}

func (a *stubAPI) ExportGraph(_ context.Context, graphID string) ([]byte, error) {
	return []byte(`{"graph_id":"` + graphID + `"}`), nil
}

func (a *stubAPI) DeleteNode(_ context.Context, _, nodeID string) (string, error) {
	a.record("delete-node " + nodeID)
	return "deleted", nil
}

func (a *stubAPI) AddNode(_ context.Context, req *client.AddNodeRequest) (*client.AddNodeResult, error) {
	return &client.AddNodeResult{Success: true, NodeID: req.NewNode.ID, NodeName: req.NewNode.Name}, nil
}

func (a *stubAPI) DeleteUser(_ context.Context, _, _ string) (string, error) {
	return session.UserDeletedMessage, nil
}

func (a *stubAPI) Close() error { return nil }

// newTestServer returns a server over a fresh session for user u1, its
// hub, and the full handler chain.
func newTestServer(t *testing.T, token string) (*Server, *Hub, http.Handler) {
	t.Helper()
	hub := NewHub(nil)
	sess, err := session.New(session.Options{
		API:       &stubAPI{},
		Render:    render.Options{Width: 800, Height: 600, Surface: hub.Surface()},
		Publisher: hub,
		Rand:      rand.New(rand.NewSource(1)),
	})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	sess.SetUser(context.Background(), "u1")
	t.Cleanup(func() { _ = sess.Close() })

	srv := New(Config{
		Session:   sess,
		Hub:       hub,
		Presence:  presence.New(nil),
		Metrics:   metrics.New(),
		AuthToken: token,
	})
	return srv, hub, srv.Handler()
}
