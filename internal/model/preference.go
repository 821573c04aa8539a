package model

import (
	"encoding/json"
	"time"
)

// Preference keys persisted on the client side.
const (
	PrefTheme    = "ui:theme"
	PrefLastUser = "session:last_user"
)

// Preference is a key-value record of client-side state stored as JSON.
// Keys use the format "{namespace}:{name}" (e.g. "ui:theme", "session:last_user").
type Preference struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// StringPreference builds a preference whose value is a JSON string.
func StringPreference(key, value string) *Preference {
	raw, _ := json.Marshal(value)
	return &Preference{Key: key, Value: raw}
}

// String decodes a JSON string value. Non-string values yield "".
func (p *Preference) String() string {
	var s string
	if p == nil || json.Unmarshal(p.Value, &s) != nil {
		return ""
	}
	return s
}
