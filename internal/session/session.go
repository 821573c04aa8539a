// Package session owns the graph on screen and keeps it in step with the
// backend. Every network call of the explorer goes through a Session; the
// local graph is changed only after the backend confirms.
//
// A Session serializes input events, frame ticks, focus timers and network
// completions behind one mutex. Network calls run without the lock held.
// Operations that replace the graph take a generation number before their
// request and drop their completion when another replacement was issued in
// the meantime, so the last issued replacement wins.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/alfredjeanlab/kgview/internal/client"
	"github.com/alfredjeanlab/kgview/internal/clock"
	"github.com/alfredjeanlab/kgview/internal/events"
	"github.com/alfredjeanlab/kgview/internal/focus"
	"github.com/alfredjeanlab/kgview/internal/idgen"
	"github.com/alfredjeanlab/kgview/internal/metrics"
	"github.com/alfredjeanlab/kgview/internal/model"
	"github.com/alfredjeanlab/kgview/internal/render"
	"github.com/alfredjeanlab/kgview/internal/theme"
)

// EmptyMessage is shown in place of the scene when there is nothing to draw.
const EmptyMessage = "No graph data. Upload a document first."

// Kind classifies a notification.
type Kind string

const (
	Info    Kind = "info"
	Success Kind = "success"
	Warning Kind = "warning"
	Error   Kind = "error"
)

// Notifier shows a message to the user.
type Notifier interface {
	Notify(kind Kind, title, body string)
}

// Asker asks the user to confirm an action.
type Asker interface {
	Ask(title, body string) bool
}

// Prompter collects form input. ok is false when the user dismisses the
// form.
type Prompter interface {
	Prompt(title string, fields []string) (values map[string]string, ok bool)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(kind Kind, title, body string)

func (f NotifierFunc) Notify(kind Kind, title, body string) { f(kind, title, body) }

// AskerFunc adapts a function to Asker.
type AskerFunc func(title, body string) bool

func (f AskerFunc) Ask(title, body string) bool { return f(title, body) }

// AlwaysConfirm accepts every confirmation.
var AlwaysConfirm Asker = AskerFunc(func(string, string) bool { return true })

// Preferences persists client-side state.
type Preferences interface {
	theme.PreferenceStore
	DeletePreference(ctx context.Context, key string) error
}

// Options configures a Session.
type Options struct {
	API   client.API
	Theme *theme.Store

	// Render configures the renderer the session owns. Its Clock and
	// Logger default to the session's.
	Render render.Options

	Prefs     Preferences
	Asker     Asker
	Notifier  Notifier
	Prompter  Prompter
	Publisher events.Publisher
	Metrics   *metrics.Collector

	Clock clock.Clock
	Rand  *rand.Rand
	NewID idgen.Func

	// ShareBaseURL is the origin public share links point to.
	ShareBaseURL string

	// OnBusy is called when the loading indicator turns on or off.
	OnBusy func(busy bool)

	Logger *zap.Logger
}

// Session is the explorer state of one user.
type Session struct {
	mu sync.Mutex

	api       client.API
	theme     *theme.Store
	renderer  *render.Renderer
	nav       *focus.Navigator
	prefs     Preferences
	asker     Asker
	notifier  Notifier
	prompter  Prompter
	publisher events.Publisher
	metrics   *metrics.Collector
	newID     idgen.Func
	shareBase string
	onBusy    func(bool)
	logger    *zap.Logger
	validate  *validator.Validate
	commands  Commands

	userID   string
	graphIDs []string
	graphID  string
	gen      uint64

	busy atomic.Int32
}

// errStale marks a completion overtaken by a later graph replacement.
var errStale = errors.New("superseded by a later request")

// New returns a session with an empty scene.
func New(opts Options) (*Session, error) {
	if opts.API == nil {
		return nil, errors.New("session: API is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Theme == nil {
		opts.Theme = theme.NewStore(opts.Prefs, nil, opts.Logger)
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Asker == nil {
		opts.Asker = AlwaysConfirm
	}
	if opts.Notifier == nil {
		opts.Notifier = NotifierFunc(func(Kind, string, string) {})
	}
	if opts.Publisher == nil {
		opts.Publisher = &events.NoopPublisher{}
	}
	if opts.NewID == nil {
		opts.NewID = idgen.NodeID
	}
	if opts.Render.Clock == nil {
		opts.Render.Clock = opts.Clock
	}
	if opts.Render.Logger == nil {
		opts.Render.Logger = opts.Logger.Named("render")
	}

	s := &Session{
		api:       opts.API,
		theme:     opts.Theme,
		prefs:     opts.Prefs,
		asker:     opts.Asker,
		notifier:  opts.Notifier,
		prompter:  opts.Prompter,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		newID:     opts.NewID,
		shareBase: opts.ShareBaseURL,
		onBusy:    opts.OnBusy,
		logger:    opts.Logger,
		validate:  newValidator(),
		commands:  DefaultCommands(),
	}
	s.renderer = render.New(opts.Theme, opts.Render)
	s.nav = focus.New(s.renderer, focus.Options{
		Clock:  opts.Clock,
		Sync:   s.locked,
		Rand:   opts.Rand,
		Logger: opts.Logger.Named("focus"),
	})
	opts.Theme.OnChange(func(m theme.Mode, apply theme.Apply) {
		s.ApplyTheme(context.Background(), m, apply)
	})
	return s, nil
}

// Start resolves the theme and restores the last user. When a user is
// known, their graph list is loaded and the newest graph shown.
func (s *Session) Start(ctx context.Context) error {
	s.theme.Resolve(ctx)

	s.mu.Lock()
	s.renderer.Restyle()
	s.mu.Unlock()

	if s.UserID() == "" && s.prefs != nil {
		pref, err := s.prefs.GetPreference(ctx, model.PrefLastUser)
		switch {
		case errors.Is(err, model.ErrNotFound):
		case err != nil:
			s.logger.Warn("failed to read last user", zap.Error(err))
		default:
			if u := pref.String(); u != "" {
				s.mu.Lock()
				s.userID = u
				s.mu.Unlock()
			}
		}
	}
	if s.UserID() == "" {
		s.locked(func() { s.renderer.ShowMessage(EmptyMessage) })
		return nil
	}

	ids, err := s.LoadGraphList(ctx, "")
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		s.locked(func() { s.renderer.ShowMessage(EmptyMessage) })
		return nil
	}
	return s.LoadGraph(ctx, s.lastGraphID())
}

// SetUser switches the active user without loading anything.
func (s *Session) SetUser(ctx context.Context, userID string) {
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()
	s.rememberUser(ctx, userID)
}

func (s *Session) rememberUser(ctx context.Context, userID string) {
	if s.prefs == nil || userID == "" {
		return
	}
	if err := s.prefs.SetPreference(ctx, model.StringPreference(model.PrefLastUser, userID)); err != nil {
		s.logger.Warn("failed to persist last user", zap.String("user_id", userID), zap.Error(err))
	}
}

// locked runs f with the session lock held.
func (s *Session) locked(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f()
}

// issue starts a graph replacement and returns its generation.
func (s *Session) issue() uint64 {
	s.gen++
	return s.gen
}

// run brackets one user-visible operation: it holds the loading indicator
// for the whole call, records metrics and turns the outcome into a
// notification.
func (s *Session) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	s.setBusy(1)
	defer s.setBusy(-1)
	record := s.metrics.Begin(op)
	err := fn(ctx)

	switch {
	case err == nil:
		record(metrics.ResultOK)
	case errors.Is(err, errStale):
		record(metrics.ResultStale)
		s.logger.Info("dropped stale completion", zap.String("op", op))
		return nil
	case errors.Is(err, model.ErrUserCancelled):
		record(metrics.ResultCancelled)
	case isValidation(err):
		record(metrics.ResultInvalid)
	default:
		record(metrics.ResultError)
	}
	s.report(op, err)
	return err
}

func (s *Session) setBusy(delta int32) {
	n := s.busy.Add(delta)
	if s.onBusy == nil {
		return
	}
	if delta > 0 && n == 1 {
		s.onBusy(true)
	} else if delta < 0 && n == 0 {
		s.onBusy(false)
	}
}

// Busy reports whether an operation holds the loading indicator.
func (s *Session) Busy() bool { return s.busy.Load() > 0 }

func (s *Session) report(op string, err error) {
	if err == nil || errors.Is(err, model.ErrUserCancelled) {
		return
	}
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		s.notifier.Notify(Warning, "Missing input", ve.Error())
	case errors.Is(err, model.ErrNotFound):
		s.notifier.Notify(Warning, "Not found", err.Error())
	case model.IsDataIntegrity(err):
		s.notifier.Notify(Error, "Graph cannot be drawn", err.Error())
	default:
		s.notifier.Notify(Error, "Request failed", err.Error())
	}
	s.logger.Warn("operation failed", zap.String("op", op), zap.Error(err))
}

func isValidation(err error) bool {
	var ve *model.ValidationError
	return errors.As(err, &ve)
}

func invalid(field, message string) error {
	ve := &model.ValidationError{}
	ve.Add(field, message)
	return ve
}

// publish emits an event. Failures are logged and otherwise ignored.
func (s *Session) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", zap.String("topic", topic), zap.Error(err))
	}
}

// ApplyTheme refreshes the scene after a mode change. ApplyRestyle recolors
// the visuals in place; ApplyRebuild renders the graph again from scratch.
func (s *Session) ApplyTheme(ctx context.Context, mode theme.Mode, apply theme.Apply) {
	s.mu.Lock()
	switch apply {
	case theme.ApplyRebuild:
		if st := s.renderer.State(); st != nil {
			if err := s.renderer.Render(st); err != nil {
				s.logger.Warn("rebuild after theme change failed", zap.Error(err))
			}
		} else {
			msg := s.renderer.Scene().Message
			s.renderer.Clear()
			if msg != "" {
				s.renderer.ShowMessage(msg)
			}
		}
	default:
		s.renderer.Restyle()
	}
	s.mu.Unlock()

	s.metrics.Theme(string(mode), string(apply))
	s.publish(ctx, events.TopicThemeChanged, events.ThemeChanged{Mode: string(mode), Apply: string(apply)})
}

// ToggleTheme flips between light and dark.
func (s *Session) ToggleTheme(ctx context.Context) theme.Mode {
	return s.theme.Toggle(ctx)
}

// SetTheme switches to m.
func (s *Session) SetTheme(ctx context.Context, m theme.Mode) {
	s.theme.Set(ctx, m)
}

// Theme returns the active mode.
func (s *Session) Theme() theme.Mode { return s.theme.Mode() }

// WatchTheme follows the environment color-scheme preference until ctx is
// done.
func (s *Session) WatchTheme(ctx context.Context) error {
	return s.theme.Watch(ctx)
}

// Status is a summary of the session for display.
type Status struct {
	UserID       string   `json:"user_id"`
	GraphID      string   `json:"graph_id"`
	GraphOptions []string `json:"graph_options"`
	Theme        string   `json:"theme"`
	Nodes        int      `json:"nodes"`
	Links        int      `json:"links"`
	Busy         bool     `json:"busy"`
	Animating    bool     `json:"animating"`
	Message      string   `json:"message,omitempty"`
}

// Status returns the current session summary.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		UserID:       s.userID,
		GraphID:      s.graphID,
		GraphOptions: s.graphOptionsLocked(),
		Theme:        string(s.theme.Mode()),
		Busy:         s.Busy(),
		Animating:    s.renderer.Animating(),
		Message:      s.renderer.Scene().Message,
	}
	if gs := s.renderer.State(); gs != nil {
		st.Nodes, st.Links = len(gs.Nodes), len(gs.Links)
	}
	return st
}

// UserID returns the active user.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// GraphID returns the id of the graph on screen, or "".
func (s *Session) GraphID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graphID
}

// GraphOptions returns the graph selector entries: the user's graph ids,
// preceded by the merged view when there are two or more.
func (s *Session) GraphOptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graphOptionsLocked()
}

func (s *Session) graphOptionsLocked() []string {
	out := make([]string, 0, len(s.graphIDs)+1)
	if len(s.graphIDs) >= 2 {
		out = append(out, model.AllGraphs)
	}
	return append(out, s.graphIDs...)
}

func (s *Session) lastGraphID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.graphIDs) == 0 {
		return ""
	}
	return s.graphIDs[len(s.graphIDs)-1]
}

// Graph returns a copy of the graph on screen, or nil.
func (s *Session) Graph() *model.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	gs := s.renderer.State()
	if gs == nil {
		return nil
	}
	g := &model.Graph{
		GraphID: gs.GraphID,
		Nodes:   make([]*model.Node, len(gs.Nodes)),
		Links:   make([]*model.Link, len(gs.Links)),
	}
	for i, n := range gs.Nodes {
		c := *n
		g.Nodes[i] = &c
	}
	for i, l := range gs.Links {
		c := *l
		g.Links[i] = &c
	}
	return g
}

// Scene returns a copy of the current scene.
func (s *Session) Scene() *render.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderer.Snapshot()
}

// SerializeScene encodes the current scene as f.
func (s *Session) SerializeScene(f render.Format) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderer.SerializeScene(f)
}

// Frame advances the layout and any view animation by one step. It reports
// whether anything is still moving.
func (s *Session) Frame() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	animating := s.renderer.Frame()
	s.metrics.Frame()
	return animating
}

// SettleFocus jumps a running focus animation to its end.
func (s *Session) SettleFocus() {
	s.locked(s.renderer.FinishTransition)
}

// Transform returns the current view transform.
func (s *Session) Transform() render.ViewTransform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderer.Transform()
}

// Viewport returns the viewport size.
func (s *Session) Viewport() (float64, float64) {
	return s.renderer.Viewport()
}

func (s *Session) sceneSize() {
	if gs := s.renderer.State(); gs != nil {
		s.metrics.SceneSize(len(gs.Nodes), len(gs.Links))
	} else {
		s.metrics.SceneSize(0, 0)
	}
}

// Close releases the backend client and the publisher.
func (s *Session) Close() error {
	s.mu.Lock()
	s.nav.Cancel()
	s.mu.Unlock()
	var errs []error
	if err := s.api.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing client: %w", err))
	}
	if err := s.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing publisher: %w", err))
	}
	return errors.Join(errs...)
}
