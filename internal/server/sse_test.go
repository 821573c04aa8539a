package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/kgview/internal/events"
)

func TestHub_PublishAndReceive(t *testing.T) {
	hub := NewHub(nil)

	c := hub.subscribe("v1", nil) // all topics
	defer hub.unsubscribe(c)

	if err := hub.Publish(context.Background(), events.TopicGraphLoaded, events.GraphLoaded{GraphID: "g1", Nodes: 2}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case evt := <-c.ch:
		if evt.Topic != events.TopicGraphLoaded {
			t.Fatalf("expected topic=%q, got %q", events.TopicGraphLoaded, evt.Topic)
		}
		if string(evt.Data) != `{"graph_id":"g1","nodes":2,"links":0}` {
			t.Fatalf("unexpected data %q", string(evt.Data))
		}
		if evt.ID != 1 {
			t.Fatalf("expected id=1, got %d", evt.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestHub_TopicFiltering(t *testing.T) {
	hub := NewHub(nil)

	c := hub.subscribe("v1", []string{"kgv.node.*"})
	defer hub.unsubscribe(c)

	hub.broadcast(events.TopicGraphLoaded, []byte(`{}`), true)
	hub.broadcast(events.TopicNodeAdded, []byte(`{"node_id":"n9"}`), true)

	select {
	case evt := <-c.ch:
		if evt.Topic != events.TopicNodeAdded {
			t.Fatalf("expected topic=%q, got %q", events.TopicNodeAdded, evt.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case evt := <-c.ch:
		t.Fatalf("unexpected event: topic=%q", evt.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub(nil)

	c := hub.subscribe("v1", nil)
	hub.unsubscribe(c)
	hub.broadcast(events.TopicGraphLoaded, []byte(`{}`), true)

	select {
	case <-c.ch:
		t.Fatal("should not receive events after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
	if n := hub.Streams(); n != 0 {
		t.Fatalf("expected 0 streams, got %d", n)
	}
}

func TestHub_FramesAreNotReplayed(t *testing.T) {
	hub := NewHub(nil)

	hub.broadcast(events.TopicGraphLoaded, []byte(`{}`), true)
	if err := hub.Publish(context.Background(), events.TopicSceneFrame, map[string]int{"nodes": 2}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	hub.broadcast(events.TopicNodeAdded, []byte(`{}`), true)

	evts := hub.ring.since(0)
	if len(evts) != 2 {
		t.Fatalf("expected 2 replayable events, got %d", len(evts))
	}
	if evts[0].ID != 1 || evts[1].ID != 2 {
		t.Fatalf("expected IDs [1,2], got [%d,%d]", evts[0].ID, evts[1].ID)
	}
}

func TestReplayRing_Since(t *testing.T) {
	hub := NewHub(nil)
	if evts := hub.ring.since(0); len(evts) != 0 {
		t.Fatalf("expected 0 events, got %d", len(evts))
	}

	for range 5 {
		hub.broadcast(events.TopicNodeDeleted, []byte(`{}`), true)
	}
	evts := hub.ring.since(2)
	if len(evts) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evts))
	}
	if evts[0].ID != 3 || evts[2].ID != 5 {
		t.Fatalf("expected IDs 3..5, got %d..%d", evts[0].ID, evts[2].ID)
	}
}

func TestReplayRing_ConcurrentPublishKeepsIDOrder(t *testing.T) {
	hub := NewHub(nil)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				_ = hub.Publish(context.Background(), events.TopicNodeAdded, events.NodeAdded{GraphID: "g1", NodeID: "n9"})
			}
		}()
	}
	wg.Wait()

	evts := hub.ring.since(0)
	if len(evts) != 400 {
		t.Fatalf("expected 400 events, got %d", len(evts))
	}
	for i, evt := range evts {
		if evt.ID != uint64(i+1) {
			t.Fatalf("event %d: expected ID=%d, got %d", i, i+1, evt.ID)
		}
	}
	if tail := hub.ring.since(395); len(tail) != 5 || tail[0].ID != 396 {
		t.Fatalf("expected replay of IDs 396..400, got %d events", len(tail))
	}
}

func TestReplayRing_Wrap(t *testing.T) {
	hub := NewHub(nil)
	for range replaySize + 100 {
		hub.broadcast(events.TopicNodeDeleted, []byte(`{}`), true)
	}

	evts := hub.ring.since(0)
	if len(evts) != replaySize {
		t.Fatalf("expected %d events, got %d", replaySize, len(evts))
	}
	if evts[0].ID != 101 {
		t.Fatalf("expected oldest event ID=101, got %d", evts[0].ID)
	}
}

func TestHub_SurfaceOnlyEncodesForListeners(t *testing.T) {
	hub := NewHub(nil)
	surface := hub.Surface()

	// No listeners: nothing is sent or kept.
	surface.Present(nil)

	c := hub.subscribe("v1", []string{events.TopicGraphLoaded})
	defer hub.unsubscribe(c)
	if hub.wantsFrames() {
		t.Fatal("a graph-loaded subscriber should not want frames")
	}

	f := hub.subscribe("v2", []string{"kgv.scene.*"})
	defer hub.unsubscribe(f)
	if !hub.wantsFrames() {
		t.Fatal("expected frames to be wanted")
	}
	surface.Present(nil)

	select {
	case evt := <-f.ch:
		if evt.Topic != events.TopicSceneFrame || evt.ID != 0 {
			t.Fatalf("unexpected frame event %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestMatchTopicPattern(t *testing.T) {
	for _, tc := range []struct {
		pattern string
		topic   string
		want    bool
	}{
		{"kgv.graph.loaded", "kgv.graph.loaded", true},
		{"kgv.graph.loaded", "kgv.graph.deleted", false},
		{"kgv.graph.*", "kgv.graph.loaded", true},
		{"kgv.graph.*", "kgv.graphs.listed", false},
		{"kgv.>", "kgv.node.added", true},
		{"kgv.>", "kgv", false},
		{"kgv.>", "other.topic", false},
		{"*.*.*", "kgv.scene.frame", true},
		{"*.*.*", "kgv.scene", false},
	} {
		t.Run(tc.pattern+"_"+tc.topic, func(t *testing.T) {
			if got := matchTopicPattern(tc.pattern, tc.topic); got != tc.want {
				t.Fatalf("matchTopicPattern(%q, %q) = %v, want %v", tc.pattern, tc.topic, got, tc.want)
			}
		})
	}
}

// streamFor runs a stream request until stop is called and returns the
// recorder.
func streamFor(t *testing.T, h http.Handler, path string, headers map[string]string) (*httptest.ResponseRecorder, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, path, nil).WithContext(ctx)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(rec, req)
	}()
	time.Sleep(50 * time.Millisecond)

	return rec, func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
		<-done
	}
}

func TestHandleEventStream_SSE(t *testing.T) {
	srv, hub, h := newTestServer(t, "")

	rec, stop := streamFor(t, h, "/v1/events/stream?topics=kgv.graph.*", map[string]string{ViewerHeader: "viewer-7"})
	if roster := srv.presence.Roster(0); len(roster) != 1 || !roster[0].Streaming {
		t.Fatalf("expected one streaming viewer, got %+v", roster)
	}

	hub.broadcast(events.TopicNodeAdded, []byte(`{"node_id":"n9"}`), true)
	hub.broadcast(events.TopicGraphDeleted, []byte(`{"graph_id":"g1"}`), true)
	stop()

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected Content-Type=text/event-stream, got %q", ct)
	}
	if got := rec.Header().Get(ViewerHeader); got != "viewer-7" {
		t.Fatalf("expected viewer header echoed, got %q", got)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event:kgv.graph.deleted") || !strings.Contains(body, `data:{"graph_id":"g1"}`) {
		t.Fatalf("expected the graph event in body, got:\n%s", body)
	}
	if strings.Contains(body, "kgv.node.added") {
		t.Fatalf("node event should have been filtered, got:\n%s", body)
	}

	if roster := srv.presence.Roster(0); len(roster) != 1 || roster[0].Streaming {
		t.Fatalf("expected the viewer to stop streaming, got %+v", roster)
	}
}

func TestHandleEventStream_Replay(t *testing.T) {
	_, hub, h := newTestServer(t, "")
	hub.broadcast(events.TopicGraphLoaded, []byte(`{"n":1}`), true)
	hub.broadcast(events.TopicGraphLoaded, []byte(`{"n":2}`), true)

	rec, stop := streamFor(t, h, "/v1/events/stream", map[string]string{"Last-Event-ID": "1"})
	stop()

	body := rec.Body.String()
	if strings.Contains(body, `data:{"n":1}`) {
		t.Fatalf("event 1 should not be replayed, got:\n%s", body)
	}
	if !strings.Contains(body, "id:2\n") || !strings.Contains(body, `data:{"n":2}`) {
		t.Fatalf("expected event 2 replayed, got:\n%s", body)
	}
}

func TestHandleEventStream_SessionFrames(t *testing.T) {
	_, _, h := newTestServer(t, "")

	rec, stop := streamFor(t, h, "/v1/events/stream?topics=kgv.scene.frame", nil)
	do(t, h, http.MethodPost, "/v1/commands/load-graph", `{"graph_id":"g1"}`)
	stop()

	body := rec.Body.String()
	if !strings.Contains(body, "event:kgv.scene.frame") {
		t.Fatalf("expected a scene frame, got:\n%s", body)
	}
	if strings.Contains(body, "id:") {
		t.Fatalf("frames must not carry ids, got:\n%s", body)
	}
}
