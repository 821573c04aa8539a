package export

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alfredjeanlab/kgview/internal/events"
	"github.com/alfredjeanlab/kgview/internal/metrics"
)

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	Interval  time.Duration
	Formats   []string
	Publisher events.Publisher
	Metrics   *metrics.Collector
	Logger    *zap.Logger
}

// Scheduler periodically snapshots a Source into every destination.
// Snapshots identical to the last successful one are skipped.
type Scheduler struct {
	src   Source
	dests []Destination
	opts  SchedulerOptions

	mu   sync.Mutex
	last map[string][sha256.Size]byte // destination name -> last written digest

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler returns a scheduler. Call Start to begin exporting.
func NewScheduler(src Source, dests []Destination, opts SchedulerOptions) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Publisher == nil {
		opts.Publisher = &events.NoopPublisher{}
	}
	return &Scheduler{
		src:   src,
		dests: dests,
		opts:  opts,
		last:  make(map[string][sha256.Size]byte),
	}
}

// Start exports once immediately, then on every interval until ctx is
// cancelled or Stop is called. A zero interval exports only once.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.runLogged(ctx)
		if s.opts.Interval <= 0 {
			return
		}
		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runLogged(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight export to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Scheduler) runLogged(ctx context.Context) {
	if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.opts.Logger.Warn("snapshot export failed", zap.Error(err))
	}
}

// RunOnce takes one snapshot and writes it to every destination whose
// last write differs. It does nothing when no graph is loaded.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	artifacts, err := Snapshot(s.src, s.opts.Formats)
	if err != nil {
		return err
	}
	if len(artifacts) == 0 {
		s.opts.Logger.Debug("no graph loaded, skipping export")
		return nil
	}
	digest := digestOf(artifacts)
	graphID := s.src.GraphID()

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, d := range s.dests {
		if prev, ok := s.last[d.Name()]; ok && prev == digest {
			continue
		}
		err := d.Write(ctx, artifacts)
		s.opts.Metrics.Export(d.Name(), err)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.last[d.Name()] = digest

		keys := make([]string, len(artifacts))
		for i, a := range artifacts {
			keys[i] = a.Name
		}
		s.opts.Logger.Info("snapshot exported",
			zap.String("destination", d.Name()),
			zap.String("graph", graphID),
			zap.Int("artifacts", len(artifacts)))
		if err := s.opts.Publisher.Publish(ctx, events.TopicSnapshotExported, events.SnapshotExported{
			GraphID: graphID,
			Keys:    keys,
		}); err != nil {
			s.opts.Logger.Warn("publish snapshot event failed", zap.Error(err))
		}
	}
	return errors.Join(errs...)
}

func digestOf(artifacts []Artifact) [sha256.Size]byte {
	h := sha256.New()
	for _, a := range artifacts {
		h.Write([]byte(a.Name))
		h.Write([]byte{0})
		h.Write(a.Data)
		h.Write([]byte{0})
	}
	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))
	return sum
}
