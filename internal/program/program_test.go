package program

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryPoint_Unique(t *testing.T) {
	p := NewProgram()
	p.FeatureSets = append(p.FeatureSets,
		NewFeatureSet("helper", "Compute totals", nil, nil),
		NewFeatureSet("main", ActivityEntry, nil, NewSourceInfo("app.fable.hcl", 10)),
	)

	entry, err := p.EntryPoint()
	require.NoError(t, err)
	assert.Equal(t, "main", entry.Name)
}

func TestEntryPoint_Missing(t *testing.T) {
	p := NewProgram()
	p.FeatureSets = append(p.FeatureSets,
		NewFeatureSet("helper", "Compute totals", nil, nil),
	)

	_, err := p.EntryPoint()
	require.Error(t, err)
	assert.ErrorContains(t, err, "no entry point")
}

func TestEntryPoint_Duplicate(t *testing.T) {
	p := NewProgram()
	p.FeatureSets = append(p.FeatureSets,
		NewFeatureSet("first", ActivityEntry, nil, NewSourceInfo("a.fable.hcl", 1)),
		NewFeatureSet("second", ActivityEntry, nil, NewSourceInfo("b.fable.hcl", 7)),
	)

	_, err := p.EntryPoint()
	require.Error(t, err)
	// Both offenders must be named with their source locations so the author
	// can find them without grepping.
	assert.ErrorContains(t, err, "a.fable.hcl:1")
	assert.ErrorContains(t, err, "b.fable.hcl:7")
}

func TestByRole(t *testing.T) {
	p := NewProgram()
	p.FeatureSets = append(p.FeatureSets,
		NewFeatureSet("main", ActivityEntry, nil, nil),
		NewFeatureSet("on_created", "user-created Handler", nil, nil),
		NewFeatureSet("on_deleted", "user-deleted Handler", nil, nil),
		NewFeatureSet("plain", "Do the thing", nil, nil),
	)

	handlers := p.ByRole(RoleHandler)
	require.Len(t, handlers, 2)
	assert.Equal(t, "on_created", handlers[0].Name)
	assert.Equal(t, "on_deleted", handlers[1].Name)
	assert.Equal(t, "user-created", handlers[0].Role.Key)

	assert.Empty(t, p.ByRole(RoleObserver))
}

func TestFind(t *testing.T) {
	p := NewProgram()
	p.FeatureSets = append(p.FeatureSets,
		NewFeatureSet("alpha", "First", nil, nil),
		NewFeatureSet("beta", "Second", nil, nil),
	)

	fs := p.Find("beta")
	require.NotNil(t, fs)
	assert.Equal(t, "Second", fs.Activity)

	assert.Nil(t, p.Find("gamma"))
}

func TestSourceInfo_String(t *testing.T) {
	src := NewSourceInfo("dir/app.fable.hcl", 42)
	assert.Equal(t, "dir/app.fable.hcl:42", src.String())
}
