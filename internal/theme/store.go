// Package theme holds the light/dark color-scheme state machine and its
// fixed color tables.
package theme

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/alfredjeanlab/kgview/internal/model"
)

// Mode is one of the two color schemes.
type Mode string

const (
	Light Mode = "light"
	Dark  Mode = "dark"
)

// ParseMode accepts "light" or "dark".
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case Light, Dark:
		return Mode(s), true
	}
	return "", false
}

// Opposite returns the other mode.
func (m Mode) Opposite() Mode {
	if m == Dark {
		return Light
	}
	return Dark
}

// Apply tells the change callback how much of the scene to refresh.
type Apply string

const (
	// ApplyRestyle recolors existing visuals only.
	ApplyRestyle Apply = "restyle"
	// ApplyRebuild tears the scene down and renders it again.
	ApplyRebuild Apply = "rebuild"
)

// ChangeFunc is called after every mode change.
type ChangeFunc func(mode Mode, apply Apply)

// PreferenceStore persists the chosen mode.
type PreferenceStore interface {
	GetPreference(ctx context.Context, key string) (*model.Preference, error)
	SetPreference(ctx context.Context, pref *model.Preference) error
}

// Store is the process-wide theme state.
type Store struct {
	mu       sync.Mutex
	mode     Mode
	prefs    PreferenceStore
	env      Source
	onChange ChangeFunc
	logger   *zap.Logger
}

// NewStore returns a store in light mode. Call Resolve to load the initial
// mode. prefs and env may be nil.
func NewStore(prefs PreferenceStore, env Source, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{mode: Light, prefs: prefs, env: env, logger: logger}
}

// Resolve picks the initial mode: the persisted preference, then the
// environment preference, then light.
func (s *Store) Resolve(ctx context.Context) Mode {
	mode := Light
	if m, ok := s.persisted(ctx); ok {
		mode = m
	} else if s.env != nil {
		if m, ok := s.env.Preferred(); ok {
			mode = m
		}
	}
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
	return mode
}

func (s *Store) persisted(ctx context.Context) (Mode, bool) {
	if s.prefs == nil {
		return "", false
	}
	pref, err := s.prefs.GetPreference(ctx, model.PrefTheme)
	if err != nil {
		return "", false
	}
	return ParseMode(pref.String())
}

// Mode returns the active mode.
func (s *Store) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Palette returns the color table of the active mode.
func (s *Store) Palette() *Palette {
	return PaletteFor(s.Mode())
}

// OnChange registers the callback run after each change. It replaces any
// previous callback.
func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Toggle flips the mode, persists it and asks for a restyle.
func (s *Store) Toggle(ctx context.Context) Mode {
	s.mu.Lock()
	next := s.mode.Opposite()
	s.mu.Unlock()
	s.change(ctx, next, ApplyRestyle)
	return next
}

// Set switches to m, persists it and asks for a restyle. Setting the
// active mode is a no-op.
func (s *Store) Set(ctx context.Context, m Mode) {
	if s.Mode() == m {
		return
	}
	s.change(ctx, m, ApplyRestyle)
}

// EnvironmentChanged handles a change of the operating-environment
// preference: it switches to m, persists it and asks for a full rebuild.
func (s *Store) EnvironmentChanged(ctx context.Context, m Mode) {
	if s.Mode() == m {
		return
	}
	s.change(ctx, m, ApplyRebuild)
}

func (s *Store) change(ctx context.Context, m Mode, apply Apply) {
	s.mu.Lock()
	s.mode = m
	fn := s.onChange
	s.mu.Unlock()

	if s.prefs != nil {
		if err := s.prefs.SetPreference(ctx, model.StringPreference(model.PrefTheme, string(m))); err != nil {
			s.logger.Warn("failed to persist theme", zap.String("mode", string(m)), zap.Error(err))
		}
	}
	s.logger.Debug("theme changed", zap.String("mode", string(m)), zap.String("apply", string(apply)))
	if fn != nil {
		fn(m, apply)
	}
}

// Watch forwards environment preference changes to EnvironmentChanged
// until ctx is done. It returns nil immediately when the environment
// source cannot be watched.
func (s *Store) Watch(ctx context.Context) error {
	w, ok := s.env.(Watcher)
	if !ok {
		return nil
	}
	return w.Watch(ctx, func(m Mode) {
		s.EnvironmentChanged(ctx, m)
	})
}
