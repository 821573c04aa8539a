package theme

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/kgview/internal/model"
)

type memPrefs struct {
	values map[string]*model.Preference
	setErr error
}

func newMemPrefs() *memPrefs { return &memPrefs{values: map[string]*model.Preference{}} }

func (m *memPrefs) GetPreference(_ context.Context, key string) (*model.Preference, error) {
	p, ok := m.values[key]
	if !ok {
		return nil, model.ErrNotFound
	}
	return p, nil
}

func (m *memPrefs) SetPreference(_ context.Context, p *model.Preference) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[p.Key] = p
	return nil
}

type fixedSource struct {
	mode Mode
	ok   bool
}

func (f fixedSource) Preferred() (Mode, bool) { return f.mode, f.ok }

func TestResolve_Priority(t *testing.T) {
	ctx := context.Background()

	t.Run("persisted wins", func(t *testing.T) {
		prefs := newMemPrefs()
		prefs.values[model.PrefTheme] = model.StringPreference(model.PrefTheme, "dark")
		s := NewStore(prefs, fixedSource{Light, true}, nil)
		assert.Equal(t, Dark, s.Resolve(ctx))
	})

	t.Run("environment next", func(t *testing.T) {
		s := NewStore(newMemPrefs(), fixedSource{Dark, true}, nil)
		assert.Equal(t, Dark, s.Resolve(ctx))
	})

	t.Run("garbage preference ignored", func(t *testing.T) {
		prefs := newMemPrefs()
		prefs.values[model.PrefTheme] = model.StringPreference(model.PrefTheme, "sepia")
		s := NewStore(prefs, fixedSource{Dark, true}, nil)
		assert.Equal(t, Dark, s.Resolve(ctx))
	})

	t.Run("light default", func(t *testing.T) {
		s := NewStore(nil, fixedSource{}, nil)
		assert.Equal(t, Light, s.Resolve(ctx))
	})
}

func TestToggle_PersistsAndRestyles(t *testing.T) {
	ctx := context.Background()
	prefs := newMemPrefs()
	s := NewStore(prefs, nil, nil)
	s.Resolve(ctx)

	var calls []Apply
	s.OnChange(func(m Mode, apply Apply) {
		assert.Equal(t, s.Mode(), m)
		calls = append(calls, apply)
	})

	assert.Equal(t, Dark, s.Toggle(ctx))
	assert.Equal(t, "dark", prefs.values[model.PrefTheme].String())
	assert.Equal(t, Light, s.Toggle(ctx))
	assert.Equal(t, "light", prefs.values[model.PrefTheme].String())
	assert.Equal(t, []Apply{ApplyRestyle, ApplyRestyle}, calls)
}

func TestToggle_RoundTripRestoresPalette(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil, nil)
	before := *s.Palette()
	s.Toggle(ctx)
	assert.NotEqual(t, before.NodeDefault, s.Palette().NodeDefault)
	s.Toggle(ctx)
	assert.Equal(t, before, *s.Palette())
}

func TestToggle_PersistFailureStillSwitches(t *testing.T) {
	prefs := newMemPrefs()
	prefs.setErr = errors.New("disk full")
	s := NewStore(prefs, nil, nil)
	called := false
	s.OnChange(func(Mode, Apply) { called = true })

	assert.Equal(t, Dark, s.Toggle(context.Background()))
	assert.True(t, called)
}

func TestEnvironmentChanged_Rebuilds(t *testing.T) {
	ctx := context.Background()
	prefs := newMemPrefs()
	s := NewStore(prefs, nil, nil)
	var got []Apply
	s.OnChange(func(_ Mode, apply Apply) { got = append(got, apply) })

	s.EnvironmentChanged(ctx, Light)
	assert.Empty(t, got, "no-op when the mode is unchanged")

	s.EnvironmentChanged(ctx, Dark)
	assert.Equal(t, []Apply{ApplyRebuild}, got)
	assert.Equal(t, "dark", prefs.values[model.PrefTheme].String())
}

func TestPalette_Lookups(t *testing.T) {
	light, dark := PaletteFor(Light), PaletteFor(Dark)

	assert.Equal(t, "#A8C5EB", light.NodeColor(model.TypePerson))
	assert.Equal(t, "#D8B977", dark.NodeColor(model.TypeDate))
	assert.Equal(t, "#64748b", light.NodeColor("Gadget"))
	assert.Equal(t, "#4a6572", light.LinkColor(LinkHighlight))
	assert.Equal(t, "rgba(100, 100, 100, 0.3)", dark.LinkColor(LinkMuted))
	assert.Equal(t, "#FFFFFF", dark.ArrowColor(LinkHighlight))
	assert.Equal(t, "#000000", dark.LabelColor(LabelStroke))
	assert.Equal(t, light.Links[LinkNormal], light.LinkColor("bogus"))
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode("dark")
	assert.True(t, ok)
	assert.Equal(t, Dark, m)
	_, ok = ParseMode("Dark")
	assert.False(t, ok)
	assert.Equal(t, Light, Dark.Opposite())
}

func TestEnvSource(t *testing.T) {
	for _, tc := range []struct {
		name string
		env  map[string]string
		want Mode
		ok   bool
	}{
		{"explicit", map[string]string{"KGV_COLOR_SCHEME": "Dark"}, Dark, true},
		{"colorfgbg dark", map[string]string{"COLORFGBG": "15;0"}, Dark, true},
		{"colorfgbg light", map[string]string{"COLORFGBG": "0;default;15"}, Light, true},
		{"colorfgbg junk", map[string]string{"COLORFGBG": "x"}, "", false},
		{"nothing", map[string]string{}, "", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			src := EnvSource{Getenv: func(k string) string { return tc.env[k] }}
			m, ok := src.Preferred()
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, m)
		})
	}
}

func TestChain_FirstAnswerWins(t *testing.T) {
	c := Chain{nil, fixedSource{}, fixedSource{Dark, true}, fixedSource{Light, true}}
	m, ok := c.Preferred()
	assert.True(t, ok)
	assert.Equal(t, Dark, m)
}

func TestFileSource_WatchReportsChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "color-scheme")
	require.NoError(t, os.WriteFile(path, []byte("light\n"), 0o644))

	src := &FileSource{Path: path, Debounce: 20 * time.Millisecond}
	m, ok := src.Preferred()
	require.True(t, ok)
	require.Equal(t, Light, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan Mode, 4)
	require.NoError(t, src.Watch(ctx, func(m Mode) { got <- m }))

	require.NoError(t, os.WriteFile(path, []byte("dark\n"), 0o644))
	select {
	case m := <-got:
		assert.Equal(t, Dark, m)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for color scheme change")
	}
}

func TestStore_WatchDrivesEnvironmentChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "color-scheme")
	require.NoError(t, os.WriteFile(path, []byte("light"), 0o644))

	s := NewStore(nil, &FileSource{Path: path, Debounce: 20 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Resolve(ctx)

	applied := make(chan Apply, 4)
	s.OnChange(func(_ Mode, a Apply) { applied <- a })
	require.NoError(t, s.Watch(ctx))

	require.NoError(t, os.WriteFile(path, []byte("dark"), 0o644))
	select {
	case a := <-applied:
		assert.Equal(t, ApplyRebuild, a)
		assert.Equal(t, Dark, s.Mode())
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for rebuild")
	}
}

func TestDarker(t *testing.T) {
	// 0.7^0.5 = 0.83666
	assert.Equal(t, "#8da5c5", Darker("#A8C5EB", 0.5))
	assert.Equal(t, "#000000", Darker("#000", 0.5))
	assert.Equal(t, "not-a-color", Darker("not-a-color", 0.5))
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("rgba(120, 120, 120, 0.6)")
	require.NoError(t, err)
	assert.Equal(t, uint8(120), c.R)
	assert.Equal(t, uint8(153), c.A)

	c, err = ParseColor("#fe865c")
	require.NoError(t, err)
	assert.Equal(t, uint8(0xfe), c.R)
	assert.Equal(t, uint8(0x5c), c.B)
	assert.Equal(t, uint8(255), c.A)

	_, err = ParseColor("hsl(0, 0%, 0%)")
	assert.Error(t, err)
}
