// Package fswatch implements the watch action: filesystem notifications
// delivered to File Handler feature sets as file: events.
package fswatch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/bus"
	"github.com/vk/fablego/internal/ctxlog"
)

// ServiceName is the key the watcher registers under in the App's service
// table.
const ServiceName = "file-watcher"

// Watcher multiplexes one fsnotify watcher across every watched key. The
// underlying OS watcher starts lazily on the first Watch call.
type Watcher struct {
	b *bus.Bus

	mu      sync.Mutex
	fs      *fsnotify.Watcher
	keys    map[string]string // watched path → registration key
	started bool
	closed  bool
}

// NewWatcher creates an idle watcher emitting on b.
func NewWatcher(b *bus.Bus) *Watcher {
	return &Watcher{b: b, keys: map[string]string{}}
}

// Watch registers a path under a key. Changes to the path emit file:<key>
// events carrying the key, the path and the operation.
func (w *Watcher) Watch(ctx context.Context, key, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("watcher is closed")
	}
	if !w.started {
		fs, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("starting the filesystem watcher: %w", err)
		}
		w.fs = fs
		w.started = true
		go w.loop(ctx)
	}
	if err := w.fs.Add(abs); err != nil {
		return fmt.Errorf("watching %q: %w", abs, err)
	}
	w.keys[abs] = key
	ctxlog.FromContext(ctx).Debug("Watching path.", "key", key, "path", abs)
	return nil
}

// loop pumps fsnotify events onto the bus until the watcher closes.
func (w *Watcher) loop(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	for {
		select {
		case evt, ok := <-w.fs.Events:
			if !ok {
				return
			}
			key := w.keyFor(evt.Name)
			if key == "" {
				continue
			}
			err := w.b.Emit(ctx, bus.Event{
				Type: bus.FileEvent(key),
				Data: cty.ObjectVal(map[string]cty.Value{
					"key":       cty.StringVal(key),
					"path":      cty.StringVal(evt.Name),
					"operation": cty.StringVal(evt.Op.String()),
				}),
			})
			if err != nil {
				logger.Error("Could not emit a file event.", "key", key, "error", err)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logger.Warn("Filesystem watcher reported an error.", "error", err)
		}
	}
}

// keyFor resolves the registration key a changed path belongs to: the path
// itself, or the nearest watched parent directory.
func (w *Watcher) keyFor(path string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if key, ok := w.keys[path]; ok {
		return key
	}
	if key, ok := w.keys[filepath.Dir(path)]; ok {
		return key
	}
	return ""
}

// Close stops the watcher. Closing an idle or already-closed watcher is a
// no-op.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if !w.started {
		return nil
	}
	return w.fs.Close()
}
