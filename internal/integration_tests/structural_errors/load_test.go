package integration_tests

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/fablego/internal/app"
	"github.com/vk/fablego/internal/testutil"
)

// Test for: unparseable program source is a startup failure.
func TestRun_SyntaxErrorFailsStartup(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"main.fable.hcl": `
feature "broken" {
  activity = "App: Start"
  action "log" {
`,
	}

	result := testutil.RunProgramTest(t, files, testutil.Options{})

	require.Error(t, result.Err)
	require.ErrorContains(t, result.Err, "application startup panicked")
	require.ErrorContains(t, result.Err, "failed to load program")
}

// Test for: a malformed case block is a startup failure.
func TestRun_CaseWithTwoPatternsFailsStartup(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"main.fable.hcl": `
feature "main" {
  activity = "App: Start"

  match {
    subject "status" {}

    case {
      equals = "a"
      bind   = "b"
    }
  }
}
`,
	}

	result := testutil.RunProgramTest(t, files, testutil.Options{})

	require.Error(t, result.Err)
	require.ErrorContains(t, result.Err, "application startup panicked")
	require.ErrorContains(t, result.Err, "exactly one of")
}

// Test for: a contract that is not valid JSON is a startup failure.
func TestRun_InvalidContractFailsStartup(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"contract.json": `{"unterminated": `,
		"main.fable.hcl": `
feature "main" {
  activity = "App: Start"
}
`,
	}

	result := testutil.RunProgramTest(t, files, testutil.Options{
		Config: app.Config{ContractPath: "contract.json"},
	})

	require.Error(t, result.Err)
	require.ErrorContains(t, result.Err, "application startup panicked")
	require.ErrorContains(t, result.Err, "failed to load contract")
}

// Test for: an unknown preposition in an object block is a startup failure.
func TestRun_UnknownPrepositionFailsStartup(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"main.fable.hcl": `
feature "main" {
  activity = "App: Start"

  action "retrieve" {
    object "orders" {
      preposition = "underneath"
    }
  }
}
`,
	}

	result := testutil.RunProgramTest(t, files, testutil.Options{})

	require.Error(t, result.Err)
	require.ErrorContains(t, result.Err, "application startup panicked")
	require.ErrorContains(t, result.Err, "unknown preposition")
}
