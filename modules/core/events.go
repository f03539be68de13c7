package core

import (
	"context"
	"fmt"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/action"
	"github.com/vk/fablego/internal/bus"
	"github.com/vk/fablego/internal/ctxlog"
	"github.com/vk/fablego/internal/runtime"
)

// runEmit publishes an application event. The object descriptor's base is
// the event type; the payload is the statement's expression or literal, when
// one is present.
func runEmit(ctx context.Context, inv *action.Invocation) (cty.Value, error) {
	if inv.Object.Base == "" {
		return cty.NilVal, fmt.Errorf("emit: statement names no event type")
	}

	data := cty.NilVal
	if v, ok := inv.Slot(runtime.SlotExpression); ok {
		data = v
	} else if v, ok := inv.Slot(runtime.SlotLiteral); ok {
		data = v
	}

	evt := bus.Event{Type: inv.Object.Base, Data: data}
	if err := inv.Runtime.Bus().Emit(ctx, evt); err != nil {
		return cty.NilVal, fmt.Errorf("emit %q: %w", inv.Object.Base, err)
	}
	return cty.NilVal, nil
}

// runWait blocks the calling feature set. A literal that parses as a
// duration sleeps for that long; an object descriptor waits for one event of
// that type and returns its payload; with neither, the wait lasts until the
// termination signal cancels the run context.
func runWait(ctx context.Context, inv *action.Invocation) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx)

	if v, ok := inv.Slot(runtime.SlotLiteral); ok {
		text, err := runtime.CoerceString(v)
		if err == nil {
			if d, err := time.ParseDuration(text); err == nil {
				logger.Debug("Waiting for a fixed duration.", "duration", d)
				select {
				case <-time.After(d):
					return cty.NilVal, nil
				case <-ctx.Done():
					return cty.NilVal, ctx.Err()
				}
			}
		}
		return cty.NilVal, fmt.Errorf("wait: literal %q is not a duration", text)
	}

	if inv.Object.Base != "" {
		logger.Debug("Waiting for an event.", "type", inv.Object.Base)
		evt, err := inv.Runtime.Bus().AwaitEvent(ctx, inv.Object.Base)
		if err != nil {
			return cty.NilVal, fmt.Errorf("wait: %w", err)
		}
		if evt.Data == cty.NilVal {
			return cty.NullVal(cty.DynamicPseudoType), nil
		}
		return evt.Data, nil
	}

	logger.Debug("Waiting for the termination signal.")
	<-ctx.Done()
	return cty.NilVal, nil
}
