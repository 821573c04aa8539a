// Package export writes snapshots of the explorer's graph and scene to
// external destinations: a directory, an S3 bucket or a git repository.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/alfredjeanlab/kgview/internal/model"
	"github.com/alfredjeanlab/kgview/internal/render"
)

// Snapshot formats.
const (
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatJSON = "json"
)

// DefaultFormats are exported when none are configured.
var DefaultFormats = []string{FormatSVG, FormatJSON}

// Source is what a snapshot is taken of. *session.Session satisfies it.
type Source interface {
	GraphID() string
	Graph() *model.Graph
	SerializeScene(f render.Format) ([]byte, error)
}

// Artifact is one exported file.
type Artifact struct {
	Name        string // relative path, e.g. "g1/scene.svg"
	ContentType string
	Data        []byte
}

// Destination receives artifacts.
type Destination interface {
	// Name labels the destination in logs and metrics.
	Name() string
	Write(ctx context.Context, artifacts []Artifact) error
}

// Snapshot renders the graph on screen in each format. It returns no
// artifacts when no graph is loaded.
func Snapshot(src Source, formats []string) ([]Artifact, error) {
	graphID := src.GraphID()
	if graphID == "" {
		return nil, nil
	}
	if len(formats) == 0 {
		formats = DefaultFormats
	}

	artifacts := make([]Artifact, 0, len(formats))
	for _, f := range formats {
		var a Artifact
		switch f {
		case FormatSVG, FormatPNG:
			rf := render.Format(f)
			data, err := src.SerializeScene(rf)
			if err != nil {
				return nil, fmt.Errorf("encoding scene as %s: %w", f, err)
			}
			a = Artifact{Name: path.Join(graphID, "scene."+f), ContentType: rf.ContentType(), Data: data}
		case FormatJSON:
			g := src.Graph()
			if g == nil {
				return nil, nil
			}
			data, err := json.MarshalIndent(g, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("encoding graph: %w", err)
			}
			a = Artifact{Name: path.Join(graphID, "graph.json"), ContentType: "application/json", Data: append(data, '\n')}
		default:
			return nil, fmt.Errorf("unknown snapshot format %q", f)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}
