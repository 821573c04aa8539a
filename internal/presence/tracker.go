// Package presence tracks the viewers connected to the explorer server.
//
// The server records a viewer when its event stream opens and on every
// input it posts. A background reaper marks viewers idle past a threshold
// as gone and later evicts them.
package presence

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Entry represents a single viewer's live presence state.
type Entry struct {
	ViewerID     string    `json:"viewer_id"`
	RemoteAddr   string    `json:"remote_addr,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
	LastActivity string    `json:"last_activity"` // "connect", "disconnect", an input kind or a command
	Streaming    bool      `json:"streaming"`     // an event stream is open
	IdleSecs     float64   `json:"idle_secs"`
	EventCount   int64     `json:"event_count"`
	Reaped       bool      `json:"reaped,omitempty"`
	ReapedAt     time.Time `json:"reaped_at,omitempty"`
}

// Activity is one thing a viewer did.
type Activity struct {
	ViewerID   string
	Kind       string
	RemoteAddr string
	UserAgent  string
}

// Activity kinds recorded by the server itself.
const (
	ActivityConnect    = "connect"
	ActivityDisconnect = "disconnect"
)

// ReaperConfig configures the background idle-viewer reaper.
type ReaperConfig struct {
	// IdleThreshold is how long a viewer without an open stream may stay
	// silent before being marked gone. Default: 5 minutes.
	IdleThreshold time.Duration

	// EvictAfter is how long after being reaped a viewer is removed.
	// Default: 15 minutes.
	EvictAfter time.Duration

	// SweepInterval is how often the reaper scans. Default: 30 seconds.
	SweepInterval time.Duration

	// OnGone is called for each viewer newly marked gone, outside the lock.
	OnGone func(viewerID string)
}

func (c *ReaperConfig) withDefaults() *ReaperConfig {
	out := ReaperConfig{}
	if c != nil {
		out = *c
	}
	if out.IdleThreshold == 0 {
		out.IdleThreshold = 5 * time.Minute
	}
	if out.EvictAfter == 0 {
		out.EvictAfter = 15 * time.Minute
	}
	if out.SweepInterval == 0 {
		out.SweepInterval = 30 * time.Second
	}
	return &out
}

// Tracker maintains an in-memory roster of viewers.
type Tracker struct {
	mu      sync.RWMutex
	viewers map[string]*viewerState
	now     func() time.Time
	logger  *zap.Logger

	reaperStop chan struct{}
	reaperDone chan struct{}
}

type viewerState struct {
	firstSeen    time.Time
	lastSeen     time.Time
	lastActivity string
	remoteAddr   string
	userAgent    string
	streams      int
	eventCount   int64
	reaped       bool
	reapedAt     time.Time
}

// New creates a new presence tracker.
func New(logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		viewers: make(map[string]*viewerState),
		now:     time.Now,
		logger:  logger,
	}
}

// Record updates the presence state of a viewer.
func (t *Tracker) Record(a Activity) {
	if a.ViewerID == "" {
		return
	}

	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.viewers[a.ViewerID]
	if !ok {
		state = &viewerState{firstSeen: now}
		t.viewers[a.ViewerID] = state
	}
	if state.reaped {
		t.logger.Info("viewer returned", zap.String("viewer_id", a.ViewerID))
		state.reaped = false
		state.reapedAt = time.Time{}
	}

	state.lastSeen = now
	state.lastActivity = a.Kind
	state.eventCount++
	switch a.Kind {
	case ActivityConnect:
		state.streams++
	case ActivityDisconnect:
		if state.streams > 0 {
			state.streams--
		}
	}
	if a.RemoteAddr != "" {
		state.remoteAddr = a.RemoteAddr
	}
	if a.UserAgent != "" {
		state.userAgent = a.UserAgent
	}
}

// Roster returns a snapshot of all tracked viewers, most recently active
// first. Viewers silent for longer than staleThreshold are left out; pass
// 0 to include every viewer.
func (t *Tracker) Roster(staleThreshold time.Duration) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	entries := make([]Entry, 0, len(t.viewers))
	for id, state := range t.viewers {
		idle := now.Sub(state.lastSeen)
		if staleThreshold > 0 && idle > staleThreshold && state.streams == 0 {
			continue
		}
		entries = append(entries, Entry{
			ViewerID:     id,
			RemoteAddr:   state.remoteAddr,
			UserAgent:    state.userAgent,
			FirstSeen:    state.firstSeen,
			LastSeen:     state.lastSeen,
			LastActivity: state.lastActivity,
			Streaming:    state.streams > 0,
			IdleSecs:     idle.Seconds(),
			EventCount:   state.eventCount,
			Reaped:       state.reaped,
			ReapedAt:     state.reapedAt,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].LastSeen.Equal(entries[j].LastSeen) {
			return entries[i].ViewerID < entries[j].ViewerID
		}
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})
	return entries
}

// Active returns the number of viewers with an open event stream.
func (t *Tracker) Active() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, s := range t.viewers {
		if s.streams > 0 {
			n++
		}
	}
	return n
}

// StartReaper launches a background goroutine that periodically marks
// idle viewers as gone. Call Stop to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	cfg = cfg.withDefaults()
	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})

	go t.reapLoop(cfg)
	t.logger.Info("viewer reaper started",
		zap.Duration("idle_threshold", cfg.IdleThreshold),
		zap.Duration("sweep_interval", cfg.SweepInterval))
}

// Stop shuts down the reaper goroutine.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg *ReaperConfig) {
	defer close(t.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(cfg)
		}
	}
}

func (t *Tracker) sweep(cfg *ReaperConfig) {
	now := t.now()
	var gone []string

	t.mu.Lock()
	for id, state := range t.viewers {
		if state.reaped {
			if now.Sub(state.reapedAt) > cfg.EvictAfter {
				delete(t.viewers, id)
			}
			continue
		}
		if state.streams == 0 && now.Sub(state.lastSeen) > cfg.IdleThreshold {
			state.reaped = true
			state.reapedAt = now
			gone = append(gone, id)
		}
	}
	t.mu.Unlock()

	for _, id := range gone {
		t.logger.Info("viewer marked gone", zap.String("viewer_id", id))
		if cfg.OnGone != nil {
			cfg.OnGone(id)
		}
	}
}
