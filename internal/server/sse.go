package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alfredjeanlab/kgview/internal/events"
	"github.com/alfredjeanlab/kgview/internal/presence"
	"github.com/alfredjeanlab/kgview/internal/render"
)

const (
	// replaySize is the number of recent events kept for Last-Event-ID
	// reconnection. Scene frames are never kept.
	replaySize = 1000

	// keepaliveInterval is how often a comment line is sent to idle streams.
	keepaliveInterval = 15 * time.Second

	// clientBuffer is the per-stream delivery queue. Slow streams drop.
	clientBuffer = 64
)

// ViewerHeader names the request header (or query parameter "viewer")
// identifying a viewer across requests.
const ViewerHeader = "X-Viewer-ID"

// sseEvent is one event sent to streams.
type sseEvent struct {
	ID    uint64 // 0 for events outside the replay sequence
	Topic string
	Data  []byte // JSON-encoded payload
}

// replayRing keeps the last replaySize sequenced events. IDs are assigned
// under the ring's lock so the ring is always in ID order.
type replayRing struct {
	mu     sync.RWMutex
	seq    uint64
	events []sseEvent
	next   int
	full   bool
}

// push assigns evt the next ID, keeps it and returns the ID.
func (r *replayRing) push(evt sseEvent) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = make([]sseEvent, replaySize)
	}
	r.seq++
	evt.ID = r.seq
	r.events[r.next] = evt
	r.next = (r.next + 1) % replaySize
	if r.next == 0 {
		r.full = true
	}
	return evt.ID
}

// since returns the kept events with ID > lastID, oldest first.
func (r *replayRing) since(lastID uint64) []sseEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ordered []sseEvent
	if r.full {
		ordered = append(ordered, r.events[r.next:]...)
	}
	ordered = append(ordered, r.events[:r.next]...)

	var out []sseEvent
	for _, evt := range ordered {
		if evt.ID > lastID {
			out = append(out, evt)
		}
	}
	return out
}

// Hub fans session events and scene frames out to connected event
// streams. It implements events.Publisher.
type Hub struct {
	mu      sync.RWMutex
	streams map[*stream]struct{}
	ring    replayRing
	logger  *zap.Logger
}

// stream is one connected SSE consumer.
type stream struct {
	viewerID string
	topics   []string
	ch       chan *sseEvent
}

// NewHub returns an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{streams: make(map[*stream]struct{}), logger: logger}
}

var _ events.Publisher = (*Hub)(nil)

// Publish sends event to every matching stream. Everything but scene
// frames is also kept for replay.
func (h *Hub) Publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", topic, err)
	}
	h.broadcast(topic, payload, topic != events.TopicSceneFrame)
	return nil
}

// Close disconnects nothing; streams end with their requests.
func (h *Hub) Close() error { return nil }

func (h *Hub) broadcast(topic string, payload []byte, replay bool) {
	evt := &sseEvent{Topic: topic, Data: payload}
	if replay {
		evt.ID = h.ring.push(*evt)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.streams {
		if !c.matches(topic) {
			continue
		}
		select {
		case c.ch <- evt:
		default:
			h.logger.Debug("dropped event for slow stream", zap.String("viewer_id", c.viewerID), zap.String("topic", topic))
		}
	}
}

func (h *Hub) subscribe(viewerID string, topics []string) *stream {
	c := &stream{viewerID: viewerID, topics: topics, ch: make(chan *sseEvent, clientBuffer)}
	h.mu.Lock()
	h.streams[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) unsubscribe(c *stream) {
	h.mu.Lock()
	delete(h.streams, c)
	h.mu.Unlock()
}

// Streams returns the number of connected streams.
func (h *Hub) Streams() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams)
}

// wantsFrames reports whether any stream subscribed to scene frames.
func (h *Hub) wantsFrames() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.streams {
		if c.matches(events.TopicSceneFrame) {
			return true
		}
	}
	return false
}

// Surface returns a render.Surface that streams every presented scene as a
// frame event. Scenes are only encoded while someone listens.
func (h *Hub) Surface() render.Surface {
	return render.SurfaceFunc(func(scene *render.Scene) {
		if !h.wantsFrames() {
			return
		}
		payload, err := json.Marshal(scene)
		if err != nil {
			h.logger.Warn("failed to encode scene frame", zap.Error(err))
			return
		}
		h.broadcast(events.TopicSceneFrame, payload, false)
	})
}

// matches reports whether the stream's topic filters match topic. No
// filters match everything.
func (c *stream) matches(topic string) bool {
	if len(c.topics) == 0 {
		return true
	}
	for _, pattern := range c.topics {
		if matchTopicPattern(pattern, topic) {
			return true
		}
	}
	return false
}

// matchTopicPattern matches a dot-separated topic against a pattern with
// NATS wildcards: "*" matches one segment and a trailing ">" one or more.
func matchTopicPattern(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	pat := strings.Split(pattern, ".")
	top := strings.Split(topic, ".")
	for i, p := range pat {
		if p == ">" {
			return i < len(top)
		}
		if i >= len(top) || (p != "*" && p != top[i]) {
			return false
		}
	}
	return len(pat) == len(top)
}

// viewerID returns the viewer named by the request, or a new id.
func viewerID(r *http.Request) string {
	if id := r.Header.Get(ViewerHeader); id != "" {
		return id
	}
	if id := r.URL.Query().Get("viewer"); id != "" {
		return id
	}
	return uuid.NewString()
}

// handleEventStream handles GET /v1/events/stream.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var topics []string
	if q := r.URL.Query().Get("topics"); q != "" {
		for _, t := range strings.Split(q, ",") {
			if t = strings.TrimSpace(t); t != "" {
				topics = append(topics, t)
			}
		}
	}

	viewer := viewerID(r)
	c := s.hub.subscribe(viewer, topics)
	s.presence.Record(presence.Activity{
		ViewerID:   viewer,
		Kind:       presence.ActivityConnect,
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	})
	s.streamsChanged()
	defer func() {
		s.hub.unsubscribe(c)
		s.presence.Record(presence.Activity{ViewerID: viewer, Kind: presence.ActivityDisconnect})
		s.streamsChanged()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set(ViewerHeader, viewer)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if last := r.Header.Get("Last-Event-ID"); last != "" {
		if lastID, err := strconv.ParseUint(last, 10, 64); err == nil {
			for _, evt := range s.hub.ring.since(lastID) {
				if c.matches(evt.Topic) {
					writeSSEEvent(w, &evt)
				}
			}
			flusher.Flush()
		}
	}

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-c.ch:
			writeSSEEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func (s *Server) streamsChanged() {
	if s.metrics == nil {
		return
	}
	s.metrics.Streams.Set(float64(s.hub.Streams()))
	s.metrics.Viewers.Set(float64(s.presence.Active()))
}

// writeSSEEvent writes one event. Frames carry no id so they do not move
// the client's Last-Event-ID.
func writeSSEEvent(w http.ResponseWriter, evt *sseEvent) {
	if evt.ID != 0 {
		fmt.Fprintf(w, "id:%d\n", evt.ID)
	}
	fmt.Fprintf(w, "event:%s\n", evt.Topic)
	fmt.Fprintf(w, "data:%s\n\n", evt.Data)
}
