package theme

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Source reports the operating-environment color-scheme preference.
type Source interface {
	Preferred() (Mode, bool)
}

// Watcher is a Source that can report changes as they happen.
type Watcher interface {
	Source
	Watch(ctx context.Context, fn func(Mode)) error
}

// EnvSource reads KGV_COLOR_SCHEME, then the terminal hint COLORFGBG.
type EnvSource struct {
	Getenv func(string) string
}

// Preferred implements Source.
func (e EnvSource) Preferred() (Mode, bool) {
	getenv := e.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if m, ok := ParseMode(strings.ToLower(strings.TrimSpace(getenv("KGV_COLOR_SCHEME")))); ok {
		return m, true
	}
	// COLORFGBG is "fg;bg" (sometimes "fg;default;bg"); ANSI backgrounds
	// 0-6 and 8 are dark.
	if v := getenv("COLORFGBG"); v != "" {
		parts := strings.Split(v, ";")
		bg, err := strconv.Atoi(parts[len(parts)-1])
		if err == nil {
			if bg <= 6 || bg == 8 {
				return Dark, true
			}
			return Light, true
		}
	}
	return "", false
}

// FileSource reads the preference from a file containing "light" or
// "dark", and watches it for changes.
type FileSource struct {
	Path   string
	Logger *zap.Logger

	// Debounce coalesces bursts of file events. Default 250ms.
	Debounce time.Duration
}

// Preferred implements Source.
func (f *FileSource) Preferred() (Mode, bool) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", false
	}
	return ParseMode(strings.ToLower(strings.TrimSpace(string(data))))
}

// Watch calls fn whenever the file's mode changes, until ctx is done.
// The parent directory is watched so editors that replace the file are
// handled.
func (f *FileSource) Watch(ctx context.Context, fn func(Mode)) error {
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	debounce := f.Debounce
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(f.Path)); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch %s: %w", f.Path, err)
	}

	go func() {
		defer w.Close()
		last, _ := f.Preferred()
		var timer *time.Timer
		fire := make(chan struct{}, 1)
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(f.Path) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			case <-fire:
				m, ok := f.Preferred()
				if !ok || m == last {
					continue
				}
				last = m
				logger.Info("color scheme preference changed", zap.String("mode", string(m)))
				fn(m)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("color scheme watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

// Chain returns the first preference any source reports. It watches every
// source that implements Watcher.
type Chain []Source

// Preferred implements Source.
func (c Chain) Preferred() (Mode, bool) {
	for _, s := range c {
		if s == nil {
			continue
		}
		if m, ok := s.Preferred(); ok {
			return m, true
		}
	}
	return "", false
}

// Watch implements Watcher.
func (c Chain) Watch(ctx context.Context, fn func(Mode)) error {
	for _, s := range c {
		if w, ok := s.(Watcher); ok {
			if err := w.Watch(ctx, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
