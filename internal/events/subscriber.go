package events

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message is one event received from the bus.
type Message struct {
	Topic string
	Data  []byte // JSON-encoded payload
}

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers events on the returned channel.
	// Call the returned cancel function to unsubscribe and close the channel.
	Subscribe(topic string) (<-chan Message, func(), error)
	Close() error
}

var payloads = map[string]func() any{
	TopicGraphsListed:     func() any { return &GraphsListed{} },
	TopicGraphLoaded:      func() any { return &GraphLoaded{} },
	TopicGraphUploaded:    func() any { return &GraphUploaded{} },
	TopicGraphDeleted:     func() any { return &GraphDeleted{} },
	TopicGraphsDeleted:    func() any { return &GraphsDeleted{} },
	TopicNodeAdded:        func() any { return &NodeAdded{} },
	TopicNodeDeleted:      func() any { return &NodeDeleted{} },
	TopicSearchCompleted:  func() any { return &SearchCompleted{} },
	TopicThemeChanged:     func() any { return &ThemeChanged{} },
	TopicUserDeleted:      func() any { return &UserDeleted{} },
	TopicSnapshotExported: func() any { return &SnapshotExported{} },
}

// Decode returns the typed payload of msg, a pointer to one of the event
// structs of this package.
func (m Message) Decode() (any, error) {
	newPayload, ok := payloads[m.Topic]
	if !ok {
		return nil, fmt.Errorf("unknown event topic %q", m.Topic)
	}
	v := newPayload()
	if err := json.Unmarshal(m.Data, v); err != nil {
		return nil, fmt.Errorf("decoding %s event: %w", m.Topic, err)
	}
	return v, nil
}

// Summary is a one-line description of a decoded event.
func Summary(event any) string {
	switch e := event.(type) {
	case *GraphsListed:
		return fmt.Sprintf("user %s has %d graphs", e.UserID, len(e.GraphIDs))
	case *GraphLoaded:
		return fmt.Sprintf("graph %s loaded (%d nodes, %d links)", e.GraphID, e.Nodes, e.Links)
	case *GraphUploaded:
		return fmt.Sprintf("%s uploaded as graph %s", e.Filename, e.GraphID)
	case *GraphDeleted:
		return fmt.Sprintf("graph %s deleted", e.GraphID)
	case *GraphsDeleted:
		return fmt.Sprintf("all graphs of user %s deleted", e.UserID)
	case *NodeAdded:
		return fmt.Sprintf("%s %q added to %s from %s (%s)", e.Type, e.Name, e.GraphID, e.SourceNodeID, e.Label)
	case *NodeDeleted:
		return fmt.Sprintf("node %s deleted from %s with %d links", e.NodeID, e.GraphID, e.LinksRemoved)
	case *SearchCompleted:
		s := fmt.Sprintf("search %q: %d results, %d highlighted", e.Keyword, e.Results, e.Highlighted)
		if e.FocusedID != "" {
			s += ", focused " + e.FocusedID
		}
		return s
	case *ThemeChanged:
		return fmt.Sprintf("theme %s (%s)", e.Mode, e.Apply)
	case *UserDeleted:
		return fmt.Sprintf("user %s deleted", e.UserID)
	case *SnapshotExported:
		return fmt.Sprintf("snapshot of %s exported: %s", e.GraphID, strings.Join(e.Keys, ", "))
	default:
		return fmt.Sprintf("%v", event)
	}
}
