package export

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/kgview/internal/events"
	"github.com/alfredjeanlab/kgview/internal/metrics"
	"github.com/alfredjeanlab/kgview/internal/model"
	"github.com/alfredjeanlab/kgview/internal/render"
)

type fakeSource struct {
	mu    sync.Mutex
	id    string
	graph *model.Graph
	svg   string
}

func (f *fakeSource) GraphID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.id
}

func (f *fakeSource) Graph() *model.Graph {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.graph
}

func (f *fakeSource) SerializeScene(format render.Format) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if format == render.FormatPNG {
		return []byte("\x89PNG"), nil
	}
	return []byte(f.svg), nil
}

func loadedSource() *fakeSource {
	return &fakeSource{
		id: "g1",
		graph: &model.Graph{
			GraphID: "g1",
			Nodes:   []*model.Node{model.NewNode("n1", "Alice", model.TypePerson)},
			Links:   []*model.Link{},
		},
		svg: "<svg/>",
	}
}

type recordingDest struct {
	name   string
	err    error
	writes [][]Artifact
}

func (d *recordingDest) Name() string { return d.name }

func (d *recordingDest) Write(_ context.Context, artifacts []Artifact) error {
	if d.err != nil {
		return d.err
	}
	d.writes = append(d.writes, artifacts)
	return nil
}

func TestSnapshot(t *testing.T) {
	artifacts, err := Snapshot(loadedSource(), []string{FormatSVG, FormatPNG, FormatJSON})
	require.NoError(t, err)
	require.Len(t, artifacts, 3)

	assert.Equal(t, "g1/scene.svg", artifacts[0].Name)
	assert.Equal(t, render.FormatSVG.ContentType(), artifacts[0].ContentType)
	assert.Equal(t, "<svg/>", string(artifacts[0].Data))
	assert.Equal(t, "g1/scene.png", artifacts[1].Name)
	assert.Equal(t, "g1/graph.json", artifacts[2].Name)
	assert.Equal(t, "application/json", artifacts[2].ContentType)
	assert.Contains(t, string(artifacts[2].Data), `"Alice"`)
}

func TestSnapshot_DefaultFormats(t *testing.T) {
	artifacts, err := Snapshot(loadedSource(), nil)
	require.NoError(t, err)
	require.Len(t, artifacts, len(DefaultFormats))
	assert.Equal(t, "g1/scene.svg", artifacts[0].Name)
	assert.Equal(t, "g1/graph.json", artifacts[1].Name)
}

func TestSnapshot_NoGraph(t *testing.T) {
	artifacts, err := Snapshot(&fakeSource{}, nil)
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestSnapshot_UnknownFormat(t *testing.T) {
	_, err := Snapshot(loadedSource(), []string{"gif"})
	assert.ErrorContains(t, err, `"gif"`)
}

func TestDirDestination(t *testing.T) {
	root := t.TempDir()
	dest := NewDirDestination(root)

	require.NoError(t, dest.Write(context.Background(), []Artifact{{Name: "g1/scene.svg", Data: []byte("<svg/>")}}))
	require.NoError(t, dest.Write(context.Background(), []Artifact{{Name: "g1/scene.svg", Data: []byte("<svg></svg>")}}))

	got, err := os.ReadFile(filepath.Join(root, "g1", "scene.svg"))
	require.NoError(t, err)
	assert.Equal(t, "<svg></svg>", string(got))

	entries, err := os.ReadDir(filepath.Join(root, "g1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files left behind")
}

func TestDirDestination_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewDirDestination(t.TempDir()).Write(ctx, []Artifact{{Name: "a"}})
	assert.ErrorIs(t, err, context.Canceled)
}

type fakePutter struct {
	inputs []*s3.PutObjectInput
	bodies []string
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func TestS3Destination(t *testing.T) {
	putter := &fakePutter{}
	dest := &S3Destination{client: putter, bucket: "snaps", prefix: "kgv/"}

	err := dest.Write(context.Background(), []Artifact{
		{Name: "g1/scene.svg", ContentType: "image/svg+xml", Data: []byte("<svg/>")},
	})
	require.NoError(t, err)
	require.Len(t, putter.inputs, 1)
	assert.Equal(t, "snaps", *putter.inputs[0].Bucket)
	assert.Equal(t, "kgv/g1/scene.svg", *putter.inputs[0].Key)
	assert.Equal(t, "image/svg+xml", *putter.inputs[0].ContentType)
	assert.Equal(t, "<svg/>", putter.bodies[0])
	assert.Equal(t, "s3", dest.Name())
}

func TestScheduler_RunOnce(t *testing.T) {
	src := loadedSource()
	dest := &recordingDest{name: "mem"}
	m := metrics.New()

	var published []events.SnapshotExported
	pub := events.PublisherFunc(func(_ context.Context, topic string, ev any) error {
		assert.Equal(t, events.TopicSnapshotExported, topic)
		published = append(published, ev.(events.SnapshotExported))
		return nil
	})

	s := NewScheduler(src, []Destination{dest}, SchedulerOptions{Publisher: pub, Metrics: m})
	ctx := context.Background()

	require.NoError(t, s.RunOnce(ctx))
	require.Len(t, dest.writes, 1)
	require.Len(t, published, 1)
	assert.Equal(t, "g1", published[0].GraphID)
	assert.Equal(t, []string{"g1/scene.svg", "g1/graph.json"}, published[0].Keys)

	// Unchanged snapshot is skipped.
	require.NoError(t, s.RunOnce(ctx))
	assert.Len(t, dest.writes, 1)

	src.mu.Lock()
	src.svg = "<svg><g/></svg>"
	src.mu.Unlock()
	require.NoError(t, s.RunOnce(ctx))
	assert.Len(t, dest.writes, 2)
	assert.Len(t, published, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Exports.WithLabelValues("mem", metrics.ResultOK)))
}

func TestScheduler_NoGraph(t *testing.T) {
	dest := &recordingDest{name: "mem"}
	s := NewScheduler(&fakeSource{}, []Destination{dest}, SchedulerOptions{})
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Empty(t, dest.writes)
}

func TestScheduler_DestinationError(t *testing.T) {
	boom := errors.New("bucket gone")
	bad := &recordingDest{name: "bad", err: boom}
	good := &recordingDest{name: "good"}
	m := metrics.New()

	s := NewScheduler(loadedSource(), []Destination{bad, good}, SchedulerOptions{Metrics: m})
	err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Len(t, good.writes, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Exports.WithLabelValues("bad", metrics.ResultError)))

	// The failed destination is retried next run; the good one is not.
	bad.err = nil
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Len(t, bad.writes, 1)
	assert.Len(t, good.writes, 1)
}

func TestScheduler_StartStop(t *testing.T) {
	dest := &lockedDest{}
	s := NewScheduler(loadedSource(), []Destination{dest}, SchedulerOptions{Interval: time.Hour})
	s.Start(context.Background())

	require.Eventually(t, func() bool { return dest.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()
	assert.Equal(t, 1, dest.count())
}

type lockedDest struct {
	mu sync.Mutex
	n  int
}

func (d *lockedDest) Name() string { return "locked" }

func (d *lockedDest) Write(context.Context, []Artifact) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.n++
	return nil
}

func (d *lockedDest) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.n
}
