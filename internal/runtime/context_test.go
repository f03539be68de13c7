package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestContextID_ZeroValue(t *testing.T) {
	var id ContextID
	assert.True(t, id.IsZero())

	rt := newTestRuntime(t)
	root := rt.NewRootContext("App: Start")
	assert.False(t, root.IsZero())
	assert.Contains(t, root.String(), "ctx#")
}

func TestContextLifecycle_RootAndChildren(t *testing.T) {
	rt := newTestRuntime(t)

	root := rt.NewRootContext("App: Start")
	name, err := rt.ContextName(root)
	require.NoError(t, err)
	assert.Equal(t, "App: Start", name)
	assert.Equal(t, 1, rt.LiveContexts())

	named, err := rt.NewNamedContext(root, "match arm")
	require.NoError(t, err)
	name, err = rt.ContextName(named)
	require.NoError(t, err)
	assert.Equal(t, "match arm", name)

	anon, err := rt.NewChildContext(root)
	require.NoError(t, err)
	assert.Equal(t, 3, rt.LiveContexts())

	require.NoError(t, rt.DestroyContext(anon))
	require.NoError(t, rt.DestroyContext(named))
	require.NoError(t, rt.DestroyContext(root))
	assert.Equal(t, 0, rt.LiveContexts())
}

func TestDestroyContext_HandleIsDeadAfterwards(t *testing.T) {
	rt := newTestRuntime(t)
	root := rt.NewRootContext("App: Start")
	require.NoError(t, rt.DestroyContext(root))

	assert.ErrorIs(t, rt.BindString(root, "x", "v"), ErrDeadContext)
	_, err := rt.Resolve(root, "x")
	assert.ErrorIs(t, err, ErrDeadContext)
	_, err = rt.ContextName(root)
	assert.ErrorIs(t, err, ErrDeadContext)
	assert.ErrorIs(t, rt.DestroyContext(root), ErrDeadContext, "double destroy must fail")
}

func TestContextArena_StaleHandleAfterSlotReuse(t *testing.T) {
	rt := newTestRuntime(t)

	first := rt.NewRootContext("first")
	require.NoError(t, rt.BindString(first, "owner", "first"))
	require.NoError(t, rt.DestroyContext(first))

	// The freed slot is reused, so only the generation distinguishes the
	// old handle from the new tenant.
	second := rt.NewRootContext("second")
	require.Equal(t, 1, rt.LiveContexts())

	_, err := rt.Resolve(first, "owner")
	assert.ErrorIs(t, err, ErrDeadContext, "stale handle must not see the new tenant")

	require.NoError(t, rt.BindString(second, "owner", "second"))
	got, err := rt.Resolve(second, "owner")
	require.NoError(t, err)
	assert.Equal(t, cty.StringVal("second"), got)
}

func TestNewChildContext_DeadParent(t *testing.T) {
	rt := newTestRuntime(t)
	root := rt.NewRootContext("App: Start")
	require.NoError(t, rt.DestroyContext(root))

	_, err := rt.NewChildContext(root)
	require.ErrorIs(t, err, ErrDeadContext)
	assert.Contains(t, err.Error(), "cannot create child context")
}

func TestDestroyContext_ParentSurvivesChildDestroy(t *testing.T) {
	rt := newTestRuntime(t)
	root := rt.NewRootContext("App: Start")
	require.NoError(t, rt.BindString(root, "kept", "yes"))

	child, err := rt.NewChildContext(root)
	require.NoError(t, err)
	require.NoError(t, rt.DestroyContext(child))

	got, err := rt.Resolve(root, "kept")
	require.NoError(t, err)
	assert.Equal(t, cty.StringVal("yes"), got)
}
