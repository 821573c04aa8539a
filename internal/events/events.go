// Package events defines the session events the explorer emits and the
// publishers that carry them (NATS, the SSE hub, or nowhere).
package events

import (
	"context"
)

// Event topic constants
const (
	TopicGraphsListed  = "kgv.graphs.listed"
	TopicGraphLoaded   = "kgv.graph.loaded"
	TopicGraphUploaded = "kgv.graph.uploaded"
	TopicGraphDeleted  = "kgv.graph.deleted"
	TopicGraphsDeleted = "kgv.graphs.deleted"

	TopicNodeAdded   = "kgv.node.added"
	TopicNodeDeleted = "kgv.node.deleted"

	TopicSearchCompleted = "kgv.search.completed"
	TopicThemeChanged    = "kgv.theme.changed"
	TopicUserDeleted     = "kgv.user.deleted"

	// TopicSceneFrame carries rendered scenes to live viewers. Frames are
	// not kept for replay.
	TopicSceneFrame = "kgv.scene.frame"

	TopicSnapshotExported = "kgv.snapshot.exported"
)

// Event types

type GraphsListed struct {
	UserID   string   `json:"user_id"`
	GraphIDs []string `json:"graph_ids"`
}

type GraphLoaded struct {
	GraphID string `json:"graph_id"`
	Nodes   int    `json:"nodes"`
	Links   int    `json:"links"`
}

type GraphUploaded struct {
	GraphID  string `json:"graph_id"`
	UserID   string `json:"user_id"`
	Filename string `json:"filename"`
}

type GraphDeleted struct {
	GraphID string `json:"graph_id"`
}

type GraphsDeleted struct {
	UserID string `json:"user_id"`
}

type NodeAdded struct {
	GraphID      string `json:"graph_id"`
	NodeID       string `json:"node_id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	SourceNodeID string `json:"source_node_id"`
	Label        string `json:"label"`
}

type NodeDeleted struct {
	GraphID      string `json:"graph_id"`
	NodeID       string `json:"node_id"`
	LinksRemoved int    `json:"links_removed"`
}

type SearchCompleted struct {
	Keyword     string `json:"keyword"`
	Results     int    `json:"results"`
	Highlighted int    `json:"highlighted"`
	FocusedID   string `json:"focused_id,omitempty"`
}

type ThemeChanged struct {
	Mode  string `json:"mode"`
	Apply string `json:"apply"`
}

type UserDeleted struct {
	UserID string `json:"user_id"`
}

type SnapshotExported struct {
	GraphID string   `json:"graph_id"`
	Keys    []string `json:"keys"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
