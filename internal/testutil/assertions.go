package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertLogContains checks the captured output for a substring. The harness
// routes program responses and logs through one writer, so response lines
// are assertable the same way.
func AssertLogContains(t *testing.T, result *HarnessResult, substr string) {
	t.Helper()
	require.True(t,
		strings.Contains(result.LogOutput, substr),
		"expected output to contain %q, full output:\n%s", substr, result.LogOutput,
	)
}

// AssertLogNotContains is the negative form of AssertLogContains.
func AssertLogNotContains(t *testing.T, result *HarnessResult, substr string) {
	t.Helper()
	require.False(t,
		strings.Contains(result.LogOutput, substr),
		"expected output NOT to contain %q, full output:\n%s", substr, result.LogOutput,
	)
}

// AssertHandlerRegistered checks that a feature set was subscribed on the
// bus under the given event type. It asserts on the registration log line,
// abstracting the bus internals.
func AssertHandlerRegistered(t *testing.T, result *HarnessResult, featureSet, eventType string) {
	t.Helper()
	AssertLogContains(t, result, `featureSet=`+featureSet)
	AssertLogContains(t, result, `eventType=`+eventType)
}
