// Package client provides a transport-agnostic interface for the knowledge
// graph backend and an HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"
	"io"

	"github.com/alfredjeanlab/kgview/internal/model"
)

// API is the backend contract every session operation goes through. It is
// implemented by HTTPClient and wrapped by BreakerClient.
type API interface {
	// Search
	Search(ctx context.Context, keyword string) ([]SearchResult, error)

	// Graphs
	Upload(ctx context.Context, filename string, content io.Reader, userID string) (*UploadResult, error)
	FetchGraph(ctx context.Context, graphID string) (*model.Graph, error)
	ListUserGraphIDs(ctx context.Context, userID string) ([]string, error)
	ListUserGraphs(ctx context.Context, userID string) ([]*model.Graph, error)
	DeleteGraph(ctx context.Context, graphID string) (string, error)
	DeleteUserGraphs(ctx context.Context, userID string) (string, error)
	ExportGraph(ctx context.Context, graphID string) ([]byte, error)

	// Nodes
	DeleteNode(ctx context.Context, graphID, nodeID string) (string, error)
	AddNode(ctx context.Context, req *AddNodeRequest) (*AddNodeResult, error)

	// Users
	DeleteUser(ctx context.Context, userID, password string) (string, error)

	// Lifecycle
	Close() error
}

// SearchResult is one node matching a remote search.
type SearchResult struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	GraphID string `json:"graph_id,omitempty"`
}

// UploadResult is the outcome of a document upload.
type UploadResult struct {
	Status  string `json:"status"`
	GraphID string `json:"graph_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewNode is the node part of an add-node request.
type NewNode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// AddNodeRequest holds parameters for appending a node linked to an
// existing one.
type AddNodeRequest struct {
	GraphID      string  `json:"graph_id"`
	SourceNodeID string  `json:"source_node_id"`
	NewNode      NewNode `json:"new_node"`
	Link         string  `json:"link"`
}

// AddNodeResult is the backend's confirmation of an added node.
type AddNodeResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	NodeID   string `json:"node_id"`
	NodeName string `json:"node_name"`
}
