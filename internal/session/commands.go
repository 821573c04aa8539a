package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/alfredjeanlab/kgview/internal/model"
	"github.com/alfredjeanlab/kgview/internal/render"
	"github.com/alfredjeanlab/kgview/internal/theme"
)

// Args carries the parameters of a command. Each command reads the fields
// it needs.
type Args struct {
	UserID       string `json:"user_id,omitempty"`
	GraphID      string `json:"graph_id,omitempty"`
	NodeID       string `json:"node_id,omitempty"`
	SourceNodeID string `json:"source_node_id,omitempty"`
	Name         string `json:"name,omitempty"`
	Type         string `json:"type,omitempty"`
	Label        string `json:"label,omitempty"`
	Keyword      string `json:"keyword,omitempty"`
	Password     string `json:"password,omitempty"`
	Mode         string `json:"mode,omitempty"`
	Filename     string `json:"filename,omitempty"`
	Content      []byte `json:"content,omitempty"`
}

// Handler runs one command against a session.
type Handler func(ctx context.Context, s *Session, args Args) (any, error)

// Commands maps command names to handlers.
type Commands map[string]Handler

// Names returns the command names in order.
func (c Commands) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Command names.
const (
	CmdLoadGraphList = "load-graph-list"
	CmdLoadGraph     = "load-graph"
	CmdUpload        = "upload"
	CmdDeleteGraph   = "delete-graph"
	CmdDeleteGraphs  = "delete-graphs"
	CmdDeleteNode    = render.ActionDeleteNode
	CmdAddNode       = render.ActionAddNode
	CmdNodeDetails   = render.ActionNodeDetails
	CmdSearch        = "search"
	CmdDeleteUser    = "delete-user"
	CmdToggleTheme   = "toggle-theme"
	CmdSetTheme      = "set-theme"
	CmdShare         = "share"
	CmdExportGraph   = "export-graph"
)

// DefaultCommands returns the command table of the explorer.
func DefaultCommands() Commands {
	return Commands{
		CmdLoadGraphList: func(ctx context.Context, s *Session, a Args) (any, error) {
			opts, err := s.LoadGraphList(ctx, a.UserID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"graph_options": opts}, nil
		},
		CmdLoadGraph: func(ctx context.Context, s *Session, a Args) (any, error) {
			if err := s.LoadGraph(ctx, a.GraphID); err != nil {
				return nil, err
			}
			return s.Status(), nil
		},
		CmdUpload: func(ctx context.Context, s *Session, a Args) (any, error) {
			var content io.Reader
			if len(a.Content) > 0 {
				content = bytes.NewReader(a.Content)
			}
			graphID, err := s.Upload(ctx, a.Filename, content)
			if err != nil {
				return nil, err
			}
			return map[string]string{"graph_id": graphID}, nil
		},
		CmdDeleteGraph: func(ctx context.Context, s *Session, a Args) (any, error) {
			return nil, s.DeleteGraph(ctx, a.GraphID)
		},
		CmdDeleteGraphs: func(ctx context.Context, s *Session, a Args) (any, error) {
			return nil, s.DeleteUserGraphs(ctx, a.UserID)
		},
		CmdDeleteNode: func(ctx context.Context, s *Session, a Args) (any, error) {
			return nil, s.DeleteNode(ctx, a.GraphID, a.NodeID)
		},
		CmdAddNode: func(ctx context.Context, s *Session, a Args) (any, error) {
			form := AddNodeForm{
				GraphID:      a.GraphID,
				SourceNodeID: a.SourceNodeID,
				Name:         a.Name,
				Type:         a.Type,
				Label:        a.Label,
			}
			if form.SourceNodeID == "" {
				form.SourceNodeID = a.NodeID
			}
			if form.Name == "" && form.Type == "" && form.Label == "" && s.prompter != nil {
				values, ok := s.prompter.Prompt("Add linked node", addNodeFields)
				if !ok {
					return nil, model.ErrUserCancelled
				}
				form.Name, form.Type, form.Label = values["name"], values["type"], values["label"]
			}
			return s.AddNode(ctx, form)
		},
		CmdNodeDetails: func(_ context.Context, s *Session, a Args) (any, error) {
			return s.NodeDetails(a.NodeID)
		},
		CmdSearch: func(ctx context.Context, s *Session, a Args) (any, error) {
			return s.Search(ctx, a.Keyword)
		},
		CmdDeleteUser: func(ctx context.Context, s *Session, a Args) (any, error) {
			return nil, s.DeleteUser(ctx, a.UserID, a.Password)
		},
		CmdToggleTheme: func(ctx context.Context, s *Session, _ Args) (any, error) {
			return map[string]string{"mode": string(s.ToggleTheme(ctx))}, nil
		},
		CmdSetTheme: func(ctx context.Context, s *Session, a Args) (any, error) {
			m, ok := theme.ParseMode(a.Mode)
			if !ok {
				return nil, invalid("mode", "must be light or dark")
			}
			s.SetTheme(ctx, m)
			return map[string]string{"mode": string(m)}, nil
		},
		CmdShare: func(_ context.Context, s *Session, _ Args) (any, error) {
			link, err := s.ShareLink()
			if err != nil {
				return nil, err
			}
			return map[string]string{"url": link}, nil
		},
		CmdExportGraph: func(ctx context.Context, s *Session, _ Args) (any, error) {
			return s.ExportGraph(ctx)
		},
	}
}

// Exec runs the named command.
func (s *Session) Exec(ctx context.Context, name string, args Args) (any, error) {
	h, ok := s.commands[name]
	if !ok {
		err := invalid("command", fmt.Sprintf("unknown command %q", name))
		s.report(name, err)
		return nil, err
	}
	return h(ctx, s, args)
}

// Commands returns the command table.
func (s *Session) Commands() Commands { return s.commands }

// HandleInput applies a pointer or view gesture. A node click runs the
// command it raises and returns that command's result.
func (s *Session) HandleInput(ctx context.Context, ev render.InputEvent) (any, error) {
	s.mu.Lock()
	cmd, err := s.renderer.Dispatch(ev)
	s.mu.Unlock()
	if err != nil || cmd == nil {
		return nil, err
	}
	return s.Exec(ctx, cmd.Name, Args{NodeID: cmd.NodeID})
}

// NodeDetails describes one node of the graph on screen.
type NodeDetails struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// NodeDetails shows and returns the name, type and id of a node.
func (s *Session) NodeDetails(nodeID string) (*NodeDetails, error) {
	s.mu.Lock()
	n := s.renderer.State().Node(nodeID)
	s.mu.Unlock()
	if n == nil {
		err := fmt.Errorf("node %s: %w", nodeID, model.ErrNotFound)
		s.report(CmdNodeDetails, err)
		return nil, err
	}
	d := &NodeDetails{ID: n.ID, Name: n.Name, Type: n.Type.String()}
	s.notifier.Notify(Info, "Node details", fmt.Sprintf("Name: %s\nType: %s\nID: %s", d.Name, d.Type, d.ID))
	return d, nil
}
