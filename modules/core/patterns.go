package core

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/action"
	"github.com/vk/fablego/internal/ctxlog"
	"github.com/vk/fablego/internal/runtime"
)

// patternFrom compiles the statement's "by" clause. Flags map onto regexp
// inline flags; only i, m and s are meaningful here.
func patternFrom(inv *action.Invocation) (*regexp.Regexp, error) {
	v, ok := inv.Slot(runtime.SlotByPattern)
	if !ok {
		return nil, fmt.Errorf("statement carries no pattern clause")
	}
	text, err := runtime.CoerceString(v)
	if err != nil {
		return nil, err
	}

	if v, ok := inv.Slot(runtime.SlotByFlags); ok {
		flags, err := runtime.CoerceString(v)
		if err != nil {
			return nil, err
		}
		var inline strings.Builder
		for _, f := range flags {
			switch f {
			case 'i', 'm', 's':
				inline.WriteRune(f)
			default:
				return nil, fmt.Errorf("unknown pattern flag %q", string(f))
			}
		}
		if inline.Len() > 0 {
			text = "(?" + inline.String() + ")" + text
		}
	}

	re, err := regexp.Compile(text)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", text, err)
	}
	return re, nil
}

// runAccept reports whether the object's value matches the statement's
// pattern clause.
func runAccept(_ context.Context, inv *action.Invocation) (cty.Value, error) {
	re, err := patternFrom(inv)
	if err != nil {
		return cty.NilVal, fmt.Errorf("accept: %w", err)
	}
	v, err := inv.ObjectValue()
	if err != nil {
		return cty.NilVal, fmt.Errorf("accept: %w", err)
	}
	s, err := runtime.CoerceString(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("accept %q: %w", inv.Object.Base, err)
	}
	return cty.BoolVal(re.MatchString(s)), nil
}

// runTransition moves a state value when the pattern accepts the current
// one: on a match the statement's expression or literal becomes the new
// state, otherwise the state stays as it is.
func runTransition(ctx context.Context, inv *action.Invocation) (cty.Value, error) {
	re, err := patternFrom(inv)
	if err != nil {
		return cty.NilVal, fmt.Errorf("transition: %w", err)
	}
	current, err := inv.ObjectValue()
	if err != nil {
		return cty.NilVal, fmt.Errorf("transition: %w", err)
	}
	s, err := runtime.CoerceString(current)
	if err != nil {
		return cty.NilVal, fmt.Errorf("transition %q: %w", inv.Object.Base, err)
	}

	if !re.MatchString(s) {
		ctxlog.FromContext(ctx).Debug("Transition rejected; state unchanged.", "state", s)
		return current, nil
	}

	next := cty.NilVal
	if v, ok := inv.Slot(runtime.SlotExpression); ok {
		next = v
	} else if v, ok := inv.Slot(runtime.SlotLiteral); ok {
		next = v
	} else {
		return cty.NilVal, fmt.Errorf("transition %q: statement names no target state", inv.Object.Base)
	}
	ctxlog.FromContext(ctx).Debug("Transition accepted.", "from", s)
	return next, nil
}
