package session

import (
	"context"
	"time"
)

// DefaultFrameInterval paces the frame loop at about 60 frames a second.
const DefaultFrameInterval = 16 * time.Millisecond

// Run drives frames until ctx is done. Frames are skipped while nothing is
// animating, so an idle session costs one lock per tick.
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.mu.Lock()
			animating := s.renderer.Animating()
			s.mu.Unlock()
			if animating {
				s.Frame()
			}
		}
	}
}

// Settle runs frames until nothing animates or max frames have run. It
// returns the number of frames run. Headless callers use it in place of
// Run.
func (s *Session) Settle(max int) int {
	n := 0
	for n < max {
		n++
		if !s.Frame() {
			break
		}
	}
	return n
}
