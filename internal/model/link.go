package model

import "encoding/json"

// Link is a directed, labelled edge between two nodes of the same graph.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

// Key identifies a link by its endpoints, ignoring the label.
func (l *Link) Key() string {
	return l.Source + "->" + l.Target
}

// Touches reports whether either endpoint is id.
func (l *Link) Touches(id string) bool {
	return l.Source == id || l.Target == id
}

// Other returns the endpoint opposite to id.
func (l *Link) Other(id string) string {
	if l.Source == id {
		return l.Target
	}
	return l.Source
}

// UnmarshalJSON accepts the relation name under "label" or, from older
// exports, under "type".
func (l *Link) UnmarshalJSON(data []byte) error {
	var in struct {
		Source string `json:"source"`
		Target string `json:"target"`
		Label  string `json:"label"`
		Type   string `json:"type"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	l.Source, l.Target, l.Label = in.Source, in.Target, in.Label
	if l.Label == "" {
		l.Label = in.Type
	}
	return nil
}
