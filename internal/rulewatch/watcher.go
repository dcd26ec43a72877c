// Package rulewatch keeps the routing table in sync with a YAML rules file.
//
// The parent directory is watched rather than the file itself so that
// editors which save by rename are still seen.
package rulewatch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/roach88/mnemo/internal/model"
	"github.com/roach88/mnemo/internal/router"
)

// DefaultDebounce absorbs bursts of events from a single save.
const DefaultDebounce = 200 * time.Millisecond

// ReloadFunc installs a freshly parsed rule set.
type ReloadFunc func(ctx context.Context, rules []model.Rule) error

// Watcher reloads rules whenever the file changes.
type Watcher struct {
	path     string
	reload   ReloadFunc
	log      *zap.Logger
	debounce time.Duration
	fs       *fsnotify.Watcher
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period after the last event before reloading.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.log = l }
}

// New watches path. Call Run to start and Close when done.
func New(path string, reload ReloadFunc, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fs.Add(filepath.Dir(abs)); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:     abs,
		reload:   reload,
		log:      zap.NewNop(),
		debounce: DefaultDebounce,
		fs:       fs,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Run applies the file once, then again after every change, until ctx is
// done. A file that fails to parse or validate is logged and skipped; the
// previous table stays in place.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.apply(ctx); err != nil {
		return err
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != filepath.Base(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.log.Debug("rules file changed", zap.String("path", w.path), zap.String("op", ev.Op.String()))
			timer.Reset(w.debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("rules watcher error", zap.Error(err))

		case <-timer.C:
			if err := w.apply(ctx); err != nil {
				w.log.Warn("rules reload rejected", zap.String("path", w.path), zap.Error(err))
			}
		}
	}
}

func (w *Watcher) apply(ctx context.Context) error {
	rules, err := router.LoadRulesFile(w.path)
	if err != nil {
		return err
	}
	if err := w.reload(ctx, rules); err != nil {
		return err
	}
	w.log.Info("rules reloaded", zap.String("path", w.path), zap.Int("count", len(rules)))
	return nil
}
