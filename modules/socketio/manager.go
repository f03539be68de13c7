// Package socketio implements the socket action family: a Socket.IO
// client connection whose incoming events fire Socket Handler feature
// sets, plus outbound event emission on the live connection.
package socketio

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/fablego/internal/bus"
	"github.com/vk/fablego/internal/ctxlog"
	"github.com/vk/fablego/internal/runtime"
)

// ServiceName is the key the socket manager registers under in the App's
// service table.
const ServiceName = "socket-manager"

// Manager owns the App's Socket.IO client connections. Incoming events the
// program subscribed to (through Socket Handler feature sets) are relayed
// onto the bus under the socket: namespace.
type Manager struct {
	b *bus.Bus

	mu      sync.Mutex
	io      *socket.Socket
	manager *socket.Manager
}

// NewManager creates a disconnected manager relaying on b.
func NewManager(b *bus.Bus) *Manager {
	return &Manager{b: b}
}

// Connect dials the Socket.IO endpoint and binds every socket-namespace
// topic the program's handlers subscribed. A second Connect replaces the
// previous connection.
func (m *Manager) Connect(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parsing the socket URL: %w", err)
	}
	logger := ctxlog.FromContext(ctx).With("url", rawURL)

	baseURL := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	opts := socket.DefaultOptions()
	if parsed.Path != "" {
		opts.SetPath(parsed.Path)
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket("/", opts)

	io.On(types.EventName("connect"), func(...any) {
		logger.Info("Socket connected.", "sid", io.Id())
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		logger.Error("Socket connection failed.", "error", fmt.Sprint(errs...))
	})

	for _, name := range m.b.TopicsWithPrefix("socket:") {
		name := name
		io.On(types.EventName(name), func(data ...any) {
			var payload any
			if len(data) > 0 {
				payload = data[0]
			}
			v, convErr := runtime.FromGo(payload)
			if convErr != nil {
				logger.Warn("Dropping an unconvertible socket payload.", "event", name, "error", convErr)
				return
			}
			if emitErr := m.b.Emit(ctx, bus.Event{Type: bus.SocketEvent(name), Data: v}); emitErr != nil {
				logger.Error("Could not relay a socket event.", "event", name, "error", emitErr)
			}
		})
		logger.Debug("Bound socket event.", "event", name)
	}

	m.mu.Lock()
	if m.io != nil {
		m.io.Disconnect()
	}
	m.io = io
	m.manager = manager
	m.mu.Unlock()

	io.Connect()
	return nil
}

// Emit sends one event on the live connection.
func (m *Manager) Emit(event string, data any) error {
	m.mu.Lock()
	io := m.io
	m.mu.Unlock()
	if io == nil {
		return fmt.Errorf("no socket connection; connect before emitting %q", event)
	}
	return io.Emit(event, data)
}

// Close disconnects the client. Closing a never-connected manager is a
// no-op.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.io != nil {
		m.io.Disconnect()
		m.io = nil
		m.manager = nil
	}
}
