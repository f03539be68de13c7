// Package bus provides the in-process event bus and the shutdown
// coordinator. One Bus exists per App; generated entry-point choreography
// registers handlers on it, emits application events through it, and drives
// the drain/exit sequence at the end of a run.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/ctxlog"
)

// State represents the lifecycle state of the bus.
type State int32

const (
	// StateStarting is the registration phase; events are not delivered yet.
	StateStarting State = iota
	// StateRunning delivers events to subscribed handlers.
	StateRunning
	// StateDraining stops accepting events while in-flight handlers finish.
	StateDraining
	// StateExiting is the exit-handler phase; nothing is delivered.
	StateExiting
)

var stateNames = map[State]string{
	StateStarting: "STARTING",
	StateRunning:  "RUNNING",
	StateDraining: "DRAINING",
	StateExiting:  "EXITING",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATE(%d)", int32(s))
}

// ErrDrainTimeout reports that handlers were still running when the drain
// bound elapsed. Callers treat it as a warning, not a failure.
var ErrDrainTimeout = errors.New("drain timed out with handlers still running")

// Shutdown reasons bound into the exit handler's context.
const (
	ReasonSuccess = "success"
	ReasonError   = "error"
	ReasonSignal  = "signal"
)

// Event is one application event. The ID is assigned on emit when the
// producer leaves it zero.
type Event struct {
	ID   uuid.UUID
	Type string
	Data cty.Value
}

// HandlerFunc consumes one event. Returned errors are logged; they never
// stop delivery to other handlers.
type HandlerFunc func(ctx context.Context, evt Event) error

// ShutdownState describes why the application is exiting. It is handed to
// the exit feature set as its reason/code/signal/error bindings.
type ShutdownState struct {
	Reason string
	Code   int
	Signal string
	Error  error
}

// Bus is the per-App event bus. The state machine moves strictly
// Starting → Running → Draining → Exiting; events only flow in Running.
type Bus struct {
	state    atomic.Int32
	mu       sync.RWMutex
	handlers map[string][]HandlerFunc
	inflight sync.WaitGroup
}

// New creates a bus in the Starting state.
func New() *Bus {
	b := &Bus{handlers: map[string][]HandlerFunc{}}
	b.setState(StateStarting)
	return b
}

// State returns the current lifecycle state.
func (b *Bus) State() State {
	return State(b.state.Load())
}

func (b *Bus) setState(s State) {
	b.state.Store(int32(s))
}

func (b *Bus) transitionState(from, to State) bool {
	return b.state.CompareAndSwap(int32(from), int32(to))
}

// Start moves the bus from Starting to Running. Registration stays open;
// modules may subscribe dynamically while the bus runs.
func (b *Bus) Start(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	if !b.transitionState(StateStarting, StateRunning) {
		logger.Error("Invalid bus transition to RUNNING.", "current", b.State().String())
		return
	}
	logger.Debug("Event bus running.")
}

// Subscribe registers a handler for an event type. Subscribing is allowed
// while Starting or Running and refused once draining has begun.
func (b *Bus) Subscribe(eventType string, h HandlerFunc) error {
	if s := b.State(); s == StateDraining || s == StateExiting {
		return fmt.Errorf("cannot subscribe to %q while the bus is %s", eventType, s)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
	return nil
}

// TopicsWithPrefix lists the subscribed event types under a namespace
// prefix, with the prefix stripped. Transports use it to learn which
// external event names the program's handlers bind.
func (b *Bus) TopicsWithPrefix(prefix string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []string
	for topic, hs := range b.handlers {
		if len(hs) > 0 && strings.HasPrefix(topic, prefix) {
			out = append(out, strings.TrimPrefix(topic, prefix))
		}
	}
	sort.Strings(out)
	return out
}

// HandlerCount returns how many handlers are registered for an event type.
func (b *Bus) HandlerCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

// Emit delivers an event to every handler registered for its type, each on
// its own goroutine. Delivery order across handlers is unspecified. Outside
// the Running state the event is dropped with a debug log and nil is
// returned; dropped events never fire handlers.
func (b *Bus) Emit(ctx context.Context, evt Event) error {
	logger := ctxlog.FromContext(ctx)
	if evt.ID == uuid.Nil {
		evt.ID = uuid.New()
	}

	// The state check and the in-flight registration happen under the same
	// lock Drain uses to flip the state, so a handler can never start after
	// Drain has begun waiting.
	b.mu.RLock()
	if s := b.State(); s != StateRunning {
		b.mu.RUnlock()
		logger.Debug("Dropping event, bus is not running.",
			"type", evt.Type, "state", s.String(), "event_id", evt.ID)
		return nil
	}
	hs := append([]HandlerFunc(nil), b.handlers[evt.Type]...)
	b.inflight.Add(len(hs))
	b.mu.RUnlock()

	if len(hs) == 0 {
		logger.Debug("No handlers registered for event.", "type", evt.Type, "event_id", evt.ID)
		return nil
	}

	logger.Debug("Emitting event.", "type", evt.Type, "event_id", evt.ID, "handlers", len(hs))
	for i, h := range hs {
		go func(h HandlerFunc, handlerIdx int) {
			defer b.inflight.Done()
			if err := h(ctx, evt); err != nil {
				logger.Error("Event handler failed.",
					"type", evt.Type, "event_id", evt.ID, "handler", handlerIdx, "error", err)
			}
		}(h, i)
	}
	return nil
}

// AwaitEvent blocks until one event of the given type arrives or ctx ends.
// The wait action uses it for its named-event form. The subscription is a
// one-shot: later events of the type are ignored by it.
func (b *Bus) AwaitEvent(ctx context.Context, eventType string) (Event, error) {
	ch := make(chan Event, 1)
	var once sync.Once
	err := b.Subscribe(eventType, func(_ context.Context, evt Event) error {
		once.Do(func() { ch <- evt })
		return nil
	})
	if err != nil {
		return Event{}, err
	}

	select {
	case evt := <-ch:
		return evt, nil
	case <-ctx.Done():
		return Event{}, fmt.Errorf("waiting for event %q: %w", eventType, ctx.Err())
	}
}

// Drain stops event acceptance and waits for in-flight handlers, bounded by
// timeout. In-flight work is never cancelled; a timeout leaves it running,
// logs a warning and returns ErrDrainTimeout.
func (b *Bus) Drain(ctx context.Context, timeout time.Duration) error {
	logger := ctxlog.FromContext(ctx)

	b.mu.Lock()
	moved := b.transitionState(StateRunning, StateDraining) ||
		b.transitionState(StateStarting, StateDraining)
	b.mu.Unlock()
	if !moved {
		logger.Debug("Bus drain requested in a terminal state.", "state", b.State().String())
	}

	logger.Debug("Draining event bus.", "timeout", timeout)
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Debug("Event bus drained.")
		return nil
	case <-time.After(timeout):
		logger.Warn("Event bus drain timed out; handlers are still running.", "timeout", timeout)
		return ErrDrainTimeout
	case <-ctx.Done():
		return fmt.Errorf("event bus drain interrupted: %w", ctx.Err())
	}
}

// RunExitHandler moves the bus to Exiting and invokes the exit callback with
// the shutdown state. A nil callback performs the transition only.
func (b *Bus) RunExitHandler(ctx context.Context, st ShutdownState, handler func(context.Context, ShutdownState) error) error {
	logger := ctxlog.FromContext(ctx)

	b.mu.Lock()
	b.setState(StateExiting)
	b.mu.Unlock()
	logger.Debug("Bus exiting.", "reason", st.Reason, "code", st.Code, "signal", st.Signal)

	if handler == nil {
		return nil
	}
	if err := handler(ctx, st); err != nil {
		return fmt.Errorf("exit handler failed: %w", err)
	}
	return nil
}
