package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/fablego/internal/action"
	"github.com/vk/fablego/internal/app"
)

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
}

// Options tweaks a harness run. The zero value runs the program with the
// built-in modules and debug logging.
type Options struct {
	// Config overrides individual app configuration fields. ProgramPath is
	// always the harness's temporary directory.
	Config app.Config

	// Modules, when set, replaces the built-in action modules.
	Modules []action.Module
}

// RunProgramTest provides a standardized harness for running integration
// tests using a default background context.
func RunProgramTest(t *testing.T, files map[string]string, opts Options) *HarnessResult {
	t.Helper()
	return RunProgramTestWithContext(context.Background(), t, files, opts)
}

// RunProgramTestWithContext writes the given program files into a temporary
// directory, builds an App over them and runs it to completion. Startup
// panics are recovered into the result's Err so structural-error tests can
// assert on them.
func RunProgramTestWithContext(ctx context.Context, t *testing.T, files map[string]string, opts Options) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
	}

	cfg := opts.Config
	cfg.ProgramPath = tmpDir
	if cfg.LogLevel == "" {
		cfg.LogLevel = "debug"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.ContractPath != "" {
		cfg.ContractPath = filepath.Join(tmpDir, cfg.ContractPath)
	}
	appConfig, err := app.NewConfig(cfg)
	require.NoError(t, err)

	logBuffer := &SafeBuffer{}

	var testApp *app.App
	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				if os.Getenv("FABLE_TEST_LOGS") == "true" {
					t.Logf("--- HARNESS RECOVERED PANIC ---\n%q", fmt.Sprintf("%v", r))
				}
				panicErr = r
			}
		}()
		testApp = app.NewApp(logBuffer, appConfig, opts.Modules...)
	}()

	if panicErr != nil {
		return &HarnessResult{
			LogOutput: logBuffer.String(),
			Err:       fmt.Errorf("application startup panicked | %v", panicErr),
			App:       nil,
		}
	}

	runErr := testApp.Run(ctx)

	if os.Getenv("FABLE_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}

	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Err:       runErr,
		App:       testApp,
	}
}
