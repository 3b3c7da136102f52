package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/CrazyDubya/Loop/pkg/engine"
	"github.com/CrazyDubya/Loop/pkg/telemetry"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultReloadDelay debounces bursts of file events into one reload.
const DefaultReloadDelay = 500 * time.Millisecond

// ReloadFunc receives every reload result. Exactly one of g and err is nil.
type ReloadFunc func(g *engine.DayGraph, err error)

// GraphWatcher reloads a graph file whenever it changes on disk.
type GraphWatcher struct {
	loader *GraphLoader
	path   string
	delay  time.Duration
	logger zerolog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewGraphWatcher creates a watcher for the graph at path.
func NewGraphWatcher(loader *GraphLoader, path string, logger zerolog.Logger) *GraphWatcher {
	return &GraphWatcher{
		loader: loader,
		path:   filepath.Clean(path),
		delay:  DefaultReloadDelay,
		logger: logger.With().Str("component", "graph-watcher").Str("graph", path).Logger(),
	}
}

// SetDelay overrides the debounce delay.
func (gw *GraphWatcher) SetDelay(d time.Duration) {
	gw.delay = d
}

// Watch starts watching in the background and returns immediately. The
// parent directory is watched so that editors replacing the file are seen.
// Watching stops when ctx ends or Stop is called.
func (gw *GraphWatcher) Watch(ctx context.Context, onReload ReloadFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	dir := filepath.Dir(gw.path)
	if info, err := os.Stat(gw.path); err == nil && info.IsDir() {
		dir = gw.path
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	gw.mu.Lock()
	gw.watcher = watcher
	gw.mu.Unlock()

	go gw.processEvents(ctx, watcher, onReload)

	gw.logger.Info().Str("dir", dir).Msg("Started watching graph")
	return nil
}

// relevant reports whether an event path affects the watched graph.
func (gw *GraphWatcher) relevant(name string) bool {
	name = filepath.Clean(name)
	if name == gw.path {
		return true
	}
	return filepath.Dir(name) == gw.path && strings.HasSuffix(name, ".cue")
}

func (gw *GraphWatcher) processEvents(ctx context.Context, watcher *fsnotify.Watcher, onReload ReloadFunc) {
	var reloadTimer *time.Timer
	defer func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || !gw.relevant(event.Name) {
				continue
			}

			gw.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Graph file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(gw.delay, func() {
				gw.reload(ctx, onReload)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			gw.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (gw *GraphWatcher) reload(ctx context.Context, onReload ReloadFunc) {
	if ctx.Err() != nil {
		return
	}

	g, err := gw.loader.Load(ctx, gw.path)
	if err != nil {
		gw.logger.Warn().Err(err).Msg("Graph reload failed")
		onReload(nil, err)
		return
	}

	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		tel.Metrics.SetGraphNodes(len(g.Nodes()))
		_ = tel.Events.PublishGraphReloaded(gw.path, len(g.Nodes()))
	}
	gw.logger.Info().Int("nodes", len(g.Nodes())).Msg("Graph reloaded")
	onReload(g, nil)
}

// Stop stops watching for file changes.
func (gw *GraphWatcher) Stop() error {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	if gw.watcher != nil {
		err := gw.watcher.Close()
		gw.watcher = nil
		return err
	}
	return nil
}
