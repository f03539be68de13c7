package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/ctxlog"
)

func testCtx() context.Context {
	return ctxlog.WithLogger(context.Background(), ctxlog.Discard())
}

func TestNew_StartsInStarting(t *testing.T) {
	b := New()
	assert.Equal(t, StateStarting, b.State())
}

func TestStart_Transition(t *testing.T) {
	b := New()
	b.Start(testCtx())
	assert.Equal(t, StateRunning, b.State())

	// A second Start is an invalid transition and must not change state.
	b.Start(testCtx())
	assert.Equal(t, StateRunning, b.State())
}

func TestEmit_DeliversToHandler(t *testing.T) {
	b := New()
	ctx := testCtx()

	received := make(chan Event, 1)
	require.NoError(t, b.Subscribe("user-created", func(_ context.Context, evt Event) error {
		received <- evt
		return nil
	}))

	b.Start(ctx)
	require.NoError(t, b.Emit(ctx, Event{Type: "user-created", Data: cty.StringVal("alice")}))

	select {
	case evt := <-received:
		assert.Equal(t, "user-created", evt.Type)
		assert.True(t, evt.Data.RawEquals(cty.StringVal("alice")))
		assert.NotEqual(t, uuid.Nil, evt.ID, "emit must assign an event ID")
	case <-time.After(time.Second):
		t.Fatal("handler did not run")
	}
}

func TestEmit_MultipleHandlersAllFire(t *testing.T) {
	b := New()
	ctx := testCtx()

	var fired atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)
	for range 3 {
		require.NoError(t, b.Subscribe("ping", func(context.Context, Event) error {
			fired.Add(1)
			wg.Done()
			return nil
		}))
	}

	b.Start(ctx)
	require.NoError(t, b.Emit(ctx, Event{Type: "ping"}))

	waitDone(t, &wg)
	assert.Equal(t, int32(3), fired.Load())
}

func TestEmit_KeepsProducerID(t *testing.T) {
	b := New()
	ctx := testCtx()

	id := uuid.New()
	received := make(chan Event, 1)
	require.NoError(t, b.Subscribe("keyed", func(_ context.Context, evt Event) error {
		received <- evt
		return nil
	}))

	b.Start(ctx)
	require.NoError(t, b.Emit(ctx, Event{ID: id, Type: "keyed"}))

	select {
	case evt := <-received:
		assert.Equal(t, id, evt.ID)
	case <-time.After(time.Second):
		t.Fatal("handler did not run")
	}
}

func TestEmit_DroppedOutsideRunning(t *testing.T) {
	t.Run("starting drops", func(t *testing.T) {
		b := New()
		var fired atomic.Int32
		require.NoError(t, b.Subscribe("early", func(context.Context, Event) error {
			fired.Add(1)
			return nil
		}))

		require.NoError(t, b.Emit(testCtx(), Event{Type: "early"}))
		time.Sleep(20 * time.Millisecond)
		assert.Zero(t, fired.Load(), "events before Running must not fire handlers")
	})

	t.Run("draining drops", func(t *testing.T) {
		b := New()
		ctx := testCtx()
		var fired atomic.Int32
		require.NoError(t, b.Subscribe("late", func(context.Context, Event) error {
			fired.Add(1)
			return nil
		}))

		b.Start(ctx)
		require.NoError(t, b.Drain(ctx, time.Second))
		require.NoError(t, b.Emit(ctx, Event{Type: "late"}))
		time.Sleep(20 * time.Millisecond)
		assert.Zero(t, fired.Load(), "events after Drain must not fire handlers")
	})
}

func TestEmit_HandlerErrorDoesNotStopOthers(t *testing.T) {
	b := New()
	ctx := testCtx()

	var wg sync.WaitGroup
	wg.Add(2)
	require.NoError(t, b.Subscribe("mixed", func(context.Context, Event) error {
		wg.Done()
		return errors.New("boom")
	}))
	var okRan atomic.Bool
	require.NoError(t, b.Subscribe("mixed", func(context.Context, Event) error {
		okRan.Store(true)
		wg.Done()
		return nil
	}))

	b.Start(ctx)
	require.NoError(t, b.Emit(ctx, Event{Type: "mixed"}))

	waitDone(t, &wg)
	assert.True(t, okRan.Load())
}

func TestDrain_WaitsForInflightHandlers(t *testing.T) {
	b := New()
	ctx := testCtx()

	var completed atomic.Bool
	require.NoError(t, b.Subscribe("slow", func(context.Context, Event) error {
		time.Sleep(50 * time.Millisecond)
		completed.Store(true)
		return nil
	}))

	b.Start(ctx)
	require.NoError(t, b.Emit(ctx, Event{Type: "slow"}))

	err := b.Drain(ctx, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, completed.Load(), "drain returned before the handler finished")
	assert.Equal(t, StateDraining, b.State())
}

func TestDrain_TimeoutIsNonFatal(t *testing.T) {
	b := New()
	ctx := testCtx()

	release := make(chan struct{})
	require.NoError(t, b.Subscribe("stuck", func(context.Context, Event) error {
		<-release
		return nil
	}))

	b.Start(ctx)
	require.NoError(t, b.Emit(ctx, Event{Type: "stuck"}))

	err := b.Drain(ctx, 30*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDrainTimeout)

	close(release)
}

func TestSubscribe_RefusedWhileDraining(t *testing.T) {
	b := New()
	ctx := testCtx()
	b.Start(ctx)
	require.NoError(t, b.Drain(ctx, time.Second))

	err := b.Subscribe("late", func(context.Context, Event) error { return nil })
	require.Error(t, err)
	assert.ErrorContains(t, err, "DRAINING")
}

func TestHandlerCount(t *testing.T) {
	b := New()
	assert.Zero(t, b.HandlerCount("evt"))

	require.NoError(t, b.Subscribe("evt", func(context.Context, Event) error { return nil }))
	require.NoError(t, b.Subscribe("evt", func(context.Context, Event) error { return nil }))
	assert.Equal(t, 2, b.HandlerCount("evt"))
	assert.Zero(t, b.HandlerCount("other"))
}

func TestRunExitHandler(t *testing.T) {
	b := New()
	ctx := testCtx()
	b.Start(ctx)

	var got ShutdownState
	err := b.RunExitHandler(ctx, ShutdownState{Reason: ReasonError, Code: 1, Error: errors.New("bad")}, func(_ context.Context, st ShutdownState) error {
		got = st
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateExiting, b.State())
	assert.Equal(t, ReasonError, got.Reason)
	assert.Equal(t, 1, got.Code)
	assert.EqualError(t, got.Error, "bad")
}

func TestRunExitHandler_NilCallback(t *testing.T) {
	b := New()
	err := b.RunExitHandler(testCtx(), ShutdownState{Reason: ReasonSuccess}, nil)
	require.NoError(t, err)
	assert.Equal(t, StateExiting, b.State())
}

func TestRunExitHandler_CallbackError(t *testing.T) {
	b := New()
	err := b.RunExitHandler(testCtx(), ShutdownState{Reason: ReasonSuccess}, func(context.Context, ShutdownState) error {
		return errors.New("cleanup failed")
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "exit handler failed")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "STARTING", StateStarting.String())
	assert.Equal(t, "RUNNING", StateRunning.String())
	assert.Equal(t, "DRAINING", StateDraining.String())
	assert.Equal(t, "EXITING", StateExiting.String())
}

// waitDone waits for a WaitGroup with a test-failure timeout.
func waitDone(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handlers did not finish in time")
	}
}
