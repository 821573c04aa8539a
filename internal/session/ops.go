package session

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/alfredjeanlab/kgview/internal/client"
	"github.com/alfredjeanlab/kgview/internal/events"
	"github.com/alfredjeanlab/kgview/internal/focus"
	"github.com/alfredjeanlab/kgview/internal/idgen"
	"github.com/alfredjeanlab/kgview/internal/model"
)

// UserDeletedMessage is the backend's confirmation of a deleted account.
const UserDeletedMessage = "user deleted"

func (s *Session) resolveUser(userID string) (string, error) {
	if userID == "" {
		userID = s.UserID()
	}
	if userID == "" {
		return "", invalid("user_id", "enter a user id first")
	}
	return userID, nil
}

// LoadGraphList fetches the user's graph ids and fills the graph selector.
// An empty userID means the active user. It returns the selector entries.
// On failure the selector is emptied.
func (s *Session) LoadGraphList(ctx context.Context, userID string) ([]string, error) {
	var opts []string
	err := s.run(ctx, "load-graph-list", func(ctx context.Context) error {
		var err error
		opts, err = s.loadGraphList(ctx, userID)
		return err
	})
	return opts, err
}

func (s *Session) loadGraphList(ctx context.Context, userID string) ([]string, error) {
	userID, err := s.resolveUser(userID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	changed := s.userID != userID
	s.userID = userID
	s.mu.Unlock()
	if changed {
		s.rememberUser(ctx, userID)
	}

	ids, err := s.api.ListUserGraphIDs(ctx, userID)
	if err != nil {
		s.locked(func() { s.graphIDs = nil })
		return nil, fmt.Errorf("listing graphs of %s: %w", userID, err)
	}

	s.mu.Lock()
	s.graphIDs = append([]string(nil), ids...)
	opts := s.graphOptionsLocked()
	s.mu.Unlock()

	s.publish(ctx, events.TopicGraphsListed, events.GraphsListed{UserID: userID, GraphIDs: ids})
	return opts, nil
}

// LoadGraph fetches a graph and puts it on screen, replacing the current
// one. model.AllGraphs loads the merged view of every graph of the active
// user. On failure the current graph stays.
func (s *Session) LoadGraph(ctx context.Context, graphID string) error {
	return s.run(ctx, "load-graph", func(ctx context.Context) error {
		return s.loadGraph(ctx, graphID)
	})
}

func (s *Session) loadGraph(ctx context.Context, graphID string) error {
	if graphID == "" {
		return invalid("graph_id", "select a graph")
	}

	s.mu.Lock()
	gen := s.issue()
	userID := s.userID
	s.mu.Unlock()

	var g *model.Graph
	if graphID == model.AllGraphs {
		if userID == "" {
			return invalid("user_id", "enter a user id first")
		}
		graphs, err := s.api.ListUserGraphs(ctx, userID)
		if err != nil {
			return fmt.Errorf("fetching graphs of %s: %w", userID, err)
		}
		g = model.Merge(graphs)
	} else {
		var err error
		g, err = s.api.FetchGraph(ctx, graphID)
		if err != nil {
			return fmt.Errorf("fetching graph %s: %w", graphID, err)
		}
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return errStale
	}
	st, err := model.NewGraphState(graphID, g)
	if err == nil {
		s.nav.Cancel()
		err = s.renderer.Render(st)
	}
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("drawing graph %s: %w", graphID, err)
	}
	s.graphID = graphID
	if len(st.Nodes) == 0 {
		s.renderer.ShowMessage(EmptyMessage)
	}
	s.sceneSize()
	s.mu.Unlock()

	s.logger.Info("graph loaded",
		zap.String("graph_id", graphID),
		zap.Int("nodes", len(st.Nodes)),
		zap.Int("links", len(st.Links)))
	s.publish(ctx, events.TopicGraphLoaded, events.GraphLoaded{GraphID: graphID, Nodes: len(st.Nodes), Links: len(st.Links)})
	return nil
}

// Upload sends a document to the backend for extraction, then shows the
// graph it produced.
func (s *Session) Upload(ctx context.Context, filename string, content io.Reader) (string, error) {
	var graphID string
	err := s.run(ctx, "upload", func(ctx context.Context) error {
		if filename == "" || content == nil {
			return invalid("file", "select a file to upload")
		}
		userID, err := s.resolveUser("")
		if err != nil {
			return err
		}

		res, err := s.api.Upload(ctx, filename, content, userID)
		if err != nil {
			return fmt.Errorf("uploading %s: %w", filename, err)
		}
		graphID = res.GraphID
		s.publish(ctx, events.TopicGraphUploaded, events.GraphUploaded{GraphID: graphID, UserID: userID, Filename: filename})

		if _, err := s.loadGraphList(ctx, userID); err != nil {
			return err
		}
		if err := s.loadGraph(ctx, graphID); err != nil {
			return err
		}
		s.notifier.Notify(Success, "Upload complete", "Extraction finished.")
		return nil
	})
	return graphID, err
}

// discard cancels any focus animation and empties the scene. The caller
// holds the lock.
func (s *Session) discard() {
	s.nav.Cancel()
	s.issue()
	s.renderer.Clear()
	s.graphID = ""
	s.sceneSize()
}

// DeleteGraph deletes a graph after confirmation. An empty graphID means
// the graph on screen. Afterwards the last remaining graph is shown, or the
// empty state.
func (s *Session) DeleteGraph(ctx context.Context, graphID string) error {
	return s.run(ctx, "delete-graph", func(ctx context.Context) error {
		if graphID == "" {
			graphID = s.GraphID()
		}
		switch graphID {
		case "":
			return invalid("graph_id", "select a graph first")
		case model.AllGraphs:
			return invalid("graph_id", "select a single graph to delete")
		}
		if !s.asker.Ask("Delete graph", fmt.Sprintf("Delete graph %s? This cannot be undone.", graphID)) {
			return model.ErrUserCancelled
		}

		msg, err := s.api.DeleteGraph(ctx, graphID)
		if err != nil {
			return fmt.Errorf("deleting graph %s: %w", graphID, err)
		}
		s.locked(s.discard)
		s.publish(ctx, events.TopicGraphDeleted, events.GraphDeleted{GraphID: graphID})

		if err := s.showRemaining(ctx); err != nil {
			return err
		}
		s.notifier.Notify(Success, "Graph deleted", msg)
		return nil
	})
}

// showRemaining reloads the graph list and shows its last graph, or the
// empty state when none is left.
func (s *Session) showRemaining(ctx context.Context) error {
	if _, err := s.loadGraphList(ctx, ""); err != nil {
		return err
	}
	if next := s.lastGraphID(); next != "" {
		return s.loadGraph(ctx, next)
	}
	s.locked(func() { s.renderer.ShowMessage(EmptyMessage) })
	return nil
}

// DeleteUserGraphs deletes every graph of a user after confirmation. An
// empty userID means the active user.
func (s *Session) DeleteUserGraphs(ctx context.Context, userID string) error {
	return s.run(ctx, "delete-graphs", func(ctx context.Context) error {
		userID, err := s.resolveUser(userID)
		if err != nil {
			return err
		}
		if s.UserID() == userID && len(s.GraphOptions()) == 0 {
			s.notifier.Notify(Info, "Nothing to delete", fmt.Sprintf("User %s has no graphs.", userID))
			return nil
		}
		if !s.asker.Ask("Delete all graphs", fmt.Sprintf("Delete every graph of %s? This cannot be undone.", userID)) {
			return model.ErrUserCancelled
		}

		msg, err := s.api.DeleteUserGraphs(ctx, userID)
		if err != nil {
			return fmt.Errorf("deleting graphs of %s: %w", userID, err)
		}
		s.locked(s.discard)
		s.publish(ctx, events.TopicGraphsDeleted, events.GraphsDeleted{UserID: userID})

		if err := s.showRemaining(ctx); err != nil {
			return err
		}
		s.notifier.Notify(Success, "Graphs deleted", msg)
		return nil
	})
}

// concreteGraph returns graphID, or the graph on screen when empty. The
// merged view has no backend counterpart and is rejected.
func (s *Session) concreteGraph(graphID string) (string, error) {
	if graphID == "" {
		graphID = s.graphID
	}
	switch graphID {
	case "":
		return "", invalid("graph_id", "select a graph first")
	case model.AllGraphs:
		return "", invalid("graph_id", "select a single graph, not the merged view")
	}
	if graphID != s.graphID {
		return "", fmt.Errorf("graph %s is not on screen: %w", graphID, model.ErrNotFound)
	}
	return graphID, nil
}

// DeleteNode deletes a node of the graph on screen after confirmation.
// The node and every link touching it are removed locally only once the
// backend confirms.
func (s *Session) DeleteNode(ctx context.Context, graphID, nodeID string) error {
	return s.run(ctx, "delete-node", func(ctx context.Context) error {
		if nodeID == "" {
			return invalid("node_id", "select a node")
		}
		s.mu.Lock()
		graphID, err := s.concreteGraph(graphID)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		node := s.renderer.State().Node(nodeID)
		if node == nil {
			s.mu.Unlock()
			return fmt.Errorf("node %s: %w", nodeID, model.ErrNotFound)
		}
		name := node.Name
		gen := s.gen
		s.mu.Unlock()

		if !s.asker.Ask("Delete node", fmt.Sprintf("Delete %q and all of its links?", name)) {
			return model.ErrUserCancelled
		}
		msg, err := s.api.DeleteNode(ctx, graphID, nodeID)
		if err != nil {
			return fmt.Errorf("deleting node %s: %w", nodeID, err)
		}

		s.mu.Lock()
		if gen != s.gen {
			s.mu.Unlock()
			return errStale
		}
		st := s.renderer.State()
		removed, err := st.RemoveNode(nodeID)
		if err == nil {
			err = s.renderer.Render(st)
		}
		s.sceneSize()
		s.mu.Unlock()
		if err != nil {
			return err
		}

		s.publish(ctx, events.TopicNodeDeleted, events.NodeDeleted{GraphID: graphID, NodeID: nodeID, LinksRemoved: removed})
		if msg == "" {
			msg = fmt.Sprintf("%q deleted.", name)
		}
		s.notifier.Notify(Success, "Node deleted", msg)
		return nil
	})
}

// AddNode creates a node linked from an existing node of the graph on
// screen. The node and its link are appended locally only once the backend
// confirms.
func (s *Session) AddNode(ctx context.Context, form AddNodeForm) (*model.Node, error) {
	var added *model.Node
	err := s.run(ctx, "add-node", func(ctx context.Context) error {
		form = form.normalized()
		if err := s.validateForm(&form); err != nil {
			return err
		}

		s.mu.Lock()
		graphID, err := s.concreteGraph(form.GraphID)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		st := s.renderer.State()
		if !st.Has(form.SourceNodeID) {
			s.mu.Unlock()
			return fmt.Errorf("source node %s: %w", form.SourceNodeID, model.ErrNotFound)
		}
		id, err := idgen.Unique(s.newID, st.Has)
		gen := s.gen
		s.mu.Unlock()
		if err != nil {
			return err
		}

		res, err := s.api.AddNode(ctx, &client.AddNodeRequest{
			GraphID:      graphID,
			SourceNodeID: form.SourceNodeID,
			NewNode:      client.NewNode{ID: id, Name: form.Name, Type: form.Type},
			Link:         form.Label,
		})
		if err != nil {
			return fmt.Errorf("adding node %s: %w", form.Name, err)
		}
		if res.NodeID != "" {
			id = res.NodeID
		}
		name := form.Name
		if res.NodeName != "" {
			name = res.NodeName
		}

		s.mu.Lock()
		if gen != s.gen {
			s.mu.Unlock()
			return errStale
		}
		st = s.renderer.State()
		node := model.NewNode(id, name, model.NodeType(form.Type))
		if src := st.Node(form.SourceNodeID); src != nil && src.HasPosition() {
			node.X, node.Y = src.X+NewNodeOffset, src.Y+NewNodeOffset
		}
		link := &model.Link{Source: form.SourceNodeID, Target: id, Label: form.Label}
		err = st.AddNode(node, link)
		if err == nil {
			err = s.renderer.Render(st)
		}
		s.sceneSize()
		s.mu.Unlock()
		if err != nil {
			return err
		}

		added = node
		s.publish(ctx, events.TopicNodeAdded, events.NodeAdded{
			GraphID:      graphID,
			NodeID:       id,
			Name:         name,
			Type:         form.Type,
			SourceNodeID: form.SourceNodeID,
			Label:        form.Label,
		})
		s.notifier.Notify(Success, "Node added", fmt.Sprintf("%q linked to %s.", name, form.SourceNodeID))
		return nil
	})
	return added, err
}

// NewNodeOffset places a freshly added node next to its source.
const NewNodeOffset = 30

// SearchOutcome describes a completed search.
type SearchOutcome struct {
	Results     []client.SearchResult `json:"results"`
	Highlighted int                   `json:"highlighted"`
	Focus       *focus.Result         `json:"-"`
	FocusedID   string                `json:"focused_id,omitempty"`
}

// Search runs a backend search, highlights every result present in the
// graph on screen and focuses the first of them.
func (s *Session) Search(ctx context.Context, keyword string) (*SearchOutcome, error) {
	var out *SearchOutcome
	err := s.run(ctx, "search", func(ctx context.Context) error {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			return invalid("keyword", "enter a search keyword")
		}
		s.mu.Lock()
		gen := s.gen
		s.mu.Unlock()

		results, err := s.api.Search(ctx, keyword)
		if err != nil {
			return fmt.Errorf("searching %q: %w", keyword, err)
		}
		if len(results) == 0 {
			return fmt.Errorf("no results for %q: %w", keyword, model.ErrNotFound)
		}

		s.mu.Lock()
		if gen != s.gen {
			s.mu.Unlock()
			return errStale
		}
		st := s.renderer.State()
		if st == nil {
			s.mu.Unlock()
			return fmt.Errorf("no graph on screen to search in: %w", model.ErrNotFound)
		}
		ids := make([]string, len(results))
		name := keyword
		picked := false
		for i, r := range results {
			ids[i] = r.ID
			if !picked && st.Has(r.ID) {
				name, picked = st.Node(r.ID).Name, true
			}
		}
		highlighted := st.SetHighlighted(ids)
		s.renderer.Restyle()
		res, err := s.nav.Focus(name)
		s.mu.Unlock()
		if err != nil {
			return err
		}

		out = &SearchOutcome{Results: results, Highlighted: highlighted, Focus: res, FocusedID: res.Match.ID}
		s.publish(ctx, events.TopicSearchCompleted, events.SearchCompleted{
			Keyword:     keyword,
			Results:     len(results),
			Highlighted: highlighted,
			FocusedID:   res.Match.ID,
		})
		s.notifier.Notify(Success, "Search", fmt.Sprintf("Found %d matching nodes.", len(results)))
		return nil
	})
	return out, err
}

// DeleteUser deletes the user account after confirmation and clears the
// session: graph, user and stored preferences.
func (s *Session) DeleteUser(ctx context.Context, userID, password string) error {
	return s.run(ctx, "delete-user", func(ctx context.Context) error {
		userID, err := s.resolveUser(userID)
		if err != nil {
			return err
		}
		if password == "" {
			return invalid("password", "enter the account password")
		}
		if !s.asker.Ask("Delete account", fmt.Sprintf("Delete user %s and all of their graphs?", userID)) {
			return model.ErrUserCancelled
		}

		msg, err := s.api.DeleteUser(ctx, userID, password)
		if err != nil {
			return fmt.Errorf("deleting user %s: %w", userID, err)
		}
		if msg != UserDeletedMessage {
			return &model.NetworkError{Op: "delete user", Message: msg}
		}

		s.mu.Lock()
		s.discard()
		s.graphIDs = nil
		s.userID = ""
		s.renderer.ShowMessage(EmptyMessage)
		s.mu.Unlock()

		if s.prefs != nil {
			for _, key := range []string{model.PrefLastUser, model.PrefTheme} {
				if err := s.prefs.DeletePreference(ctx, key); err != nil {
					s.logger.Warn("failed to clear preference", zap.String("key", key), zap.Error(err))
				}
			}
		}
		s.publish(ctx, events.TopicUserDeleted, events.UserDeleted{UserID: userID})
		s.notifier.Notify(Info, "Account deleted", "Returning to the start page.")
		return nil
	})
}

// ExportGraph downloads the document of the graph on screen.
func (s *Session) ExportGraph(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.run(ctx, "export-graph", func(ctx context.Context) error {
		s.mu.Lock()
		graphID, err := s.concreteGraph("")
		s.mu.Unlock()
		if err != nil {
			return err
		}
		data, err = s.api.ExportGraph(ctx, graphID)
		if err != nil {
			return fmt.Errorf("exporting graph %s: %w", graphID, err)
		}
		return nil
	})
	return data, err
}

// ShareLink returns the public link to the graph on screen.
func (s *Session) ShareLink() (string, error) {
	s.mu.Lock()
	graphID, err := s.concreteGraph("")
	s.mu.Unlock()
	if err != nil {
		s.report("share", err)
		return "", err
	}
	base := strings.TrimRight(s.shareBase, "/")
	return base + "/public_graph.html?graph_id=" + url.QueryEscape(graphID), nil
}
