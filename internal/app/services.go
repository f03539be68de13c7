package app

import (
	"context"

	"resty.dev/v3"

	"github.com/vk/fablego/internal/bus"
	"github.com/vk/fablego/internal/ctxlog"
	"github.com/vk/fablego/modules/fswatch"
	"github.com/vk/fablego/modules/httpcall"
	"github.com/vk/fablego/modules/httpserver"
	"github.com/vk/fablego/modules/socketio"
	"github.com/vk/fablego/modules/storage"
)

// services is the set of named collaborators offered to action
// implementations through the runtime, plus the teardown hooks that stop
// them once the exit handler has run.
type services struct {
	byName  map[string]any
	closers []func(context.Context) error
}

// newServices wires every collaborator the built-in modules can ask for.
// The HTTP listener is only offered when a bind address is configured; a
// listen action without one fails with a missing-service error.
func newServices(cfg *Config, b *bus.Bus) *services {
	svcs := &services{byName: map[string]any{}}

	repo := storage.NewRepository(b)
	svcs.byName[storage.ServiceName] = repo

	httpClient := resty.New()
	svcs.byName[httpcall.ServiceName] = httpClient
	svcs.closers = append(svcs.closers, func(context.Context) error {
		return httpClient.Close()
	})

	if cfg.ListenAddr != "" {
		server := httpserver.NewServer(cfg.ListenAddr, b)
		svcs.byName[httpserver.ServiceName] = server
		svcs.closers = append(svcs.closers, server.Close)
	}

	sockets := socketio.NewManager(b)
	svcs.byName[socketio.ServiceName] = sockets
	svcs.closers = append(svcs.closers, func(context.Context) error {
		sockets.Close()
		return nil
	})

	watcher := fswatch.NewWatcher(b)
	svcs.byName[fswatch.ServiceName] = watcher
	svcs.closers = append(svcs.closers, func(context.Context) error {
		return watcher.Close()
	})

	return svcs
}

// stopAll runs every teardown hook. Failures are logged, not propagated;
// teardown keeps going regardless.
func (s *services) stopAll(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	for _, close := range s.closers {
		if err := close(ctx); err != nil {
			logger.Warn("A service did not stop cleanly.", "error", err)
		}
	}
	logger.Debug("All services stopped.", "count", len(s.closers))
}
