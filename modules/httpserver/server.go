// Package httpserver implements the listen action: an HTTP listener that
// turns incoming requests into bus events for Handler feature sets
// subscribed under the http: namespace.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/bus"
	"github.com/vk/fablego/internal/ctxlog"
)

// ServiceName is the key the listener registers under in the App's service
// table. It is only present when a bind address was configured.
const ServiceName = "http-server"

// readHeaderTimeout bounds slow-header clients on the listener.
const readHeaderTimeout = 10 * time.Second

// Server owns one net/http listener. Routes come from the program: every
// Handler feature set subscribed under the http: namespace becomes a
// served path. Requests are acknowledged with 202 once the event is on the
// bus; delivery to handlers is asynchronous.
type Server struct {
	addr string
	b    *bus.Bus

	mu      sync.Mutex
	srv     *http.Server
	started bool
}

// NewServer creates a stopped server bound to addr.
func NewServer(addr string, b *bus.Bus) *Server {
	return &Server{addr: addr, b: b}
}

// Listen starts the listener. Starting twice is a no-op; the first call
// wins. The listener keeps serving until Close.
func (s *Server) Listen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	logger := ctxlog.FromContext(ctx)
	routes := s.b.TopicsWithPrefix("http:")

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})
	for _, route := range routes {
		mux.HandleFunc("/"+route, s.routeHandler(logger, route))
	}

	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		logger.Info("🌐 HTTP listener starting.", "address", s.addr, "routes", len(routes))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP listener failed.", "address", s.addr, "error", err)
		}
	}()
	s.started = true
	return nil
}

// routeHandler turns one request into a bus event and acknowledges it.
func (s *Server) routeHandler(logger *slog.Logger, route string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}

		evt := bus.Event{
			ID:   uuid.New(),
			Type: bus.HTTPEvent(route),
			Data: requestValue(r, route, body),
		}
		logger.Debug("Serving request as event.", "route", route, "method", r.Method, "event_id", evt.ID)
		if err := s.b.Emit(r.Context(), evt); err != nil {
			http.Error(w, "event bus refused the request", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprintf(w, "{\"event_id\":%q,\"route\":%q}\n", evt.ID.String(), route)
	}
}

// Close shuts the listener down gracefully. Closing a never-started server
// is a no-op.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.srv == nil {
		return nil
	}
	s.started = false
	return s.srv.Shutdown(ctx)
}

// requestValue renders an incoming request as an event payload.
func requestValue(r *http.Request, route string, body []byte) cty.Value {
	query := map[string]cty.Value{}
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			query[k] = cty.StringVal(vs[0])
		}
	}
	queryVal := cty.MapValEmpty(cty.String)
	if len(query) > 0 {
		queryVal = cty.MapVal(query)
	}

	return cty.ObjectVal(map[string]cty.Value{
		"route":  cty.StringVal(route),
		"method": cty.StringVal(r.Method),
		"path":   cty.StringVal(r.URL.Path),
		"query":  queryVal,
		"body":   cty.StringVal(strings.TrimSpace(string(body))),
	})
}
