// Package store persists client-side preferences: the chosen theme and the
// last active user.
package store

import (
	"context"

	"github.com/alfredjeanlab/kgview/internal/model"
)

// Store defines the persistence interface for preferences. Keys use the
// "{namespace}:{name}" format.
type Store interface {
	// GetPreference returns model.ErrNotFound (wrapped) for an unknown key.
	GetPreference(ctx context.Context, key string) (*model.Preference, error)
	SetPreference(ctx context.Context, pref *model.Preference) error
	// DeletePreference removes key. Deleting an unknown key is not an error.
	DeletePreference(ctx context.Context, key string) error
	ListPreferences(ctx context.Context, namespace string) ([]*model.Preference, error)

	Close() error
}
