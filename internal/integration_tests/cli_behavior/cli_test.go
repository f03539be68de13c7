package integration_tests

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/vk/fablego/internal/app"
	"github.com/vk/fablego/internal/cli"
)

func TestParse(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name           string
		args           []string
		expectExit     bool
		expectErr      bool
		expectedConfig *app.Config
		checkOutput    func(t *testing.T, output string)
	}{
		{
			name: "Happy Path with all flags",
			args: []string{
				"-program", "/test/program",
				"--contract=/test/contract.json",
				"--log-level=debug",
				"--log-format=text",
				"--workers=8",
				"--drain-timeout=2s",
				"--listen-addr=:8080",
			},
			expectedConfig: &app.Config{
				ProgramPath:  "/test/program",
				ContractPath: "/test/contract.json",
				LogLevel:     "debug",
				LogFormat:    "text",
				Workers:      8,
				DrainTimeout: 2 * time.Second,
				ListenAddr:   ":8080",
			},
		},
		{
			name:       "Shorthand flag and defaults",
			args:       []string{"-p", "/short/path"},
			expectExit: false,
			expectErr:  false,
			expectedConfig: &app.Config{
				ProgramPath:  "/short/path",
				LogLevel:     "info",
				LogFormat:    "text",
				Workers:      0,
				DrainTimeout: app.DefaultDrainTimeout,
			},
		},
		{
			name:       "Positional argument for path",
			args:       []string{"/positional/path"},
			expectExit: false,
			expectErr:  false,
			expectedConfig: &app.Config{
				ProgramPath:  "/positional/path",
				LogLevel:     "info",
				LogFormat:    "text",
				Workers:      0,
				DrainTimeout: app.DefaultDrainTimeout,
			},
		},
		{
			name:       "Help flag triggers clean exit",
			args:       []string{"-h"},
			expectExit: true,
			expectErr:  false,
			checkOutput: func(t *testing.T, output string) {
				require.True(t, strings.Contains(output, "Usage:"), "Expected help text to be printed")
			},
		},
		{
			name:       "No path triggers clean exit with usage",
			args:       []string{},
			expectExit: true,
			expectErr:  false,
			checkOutput: func(t *testing.T, output string) {
				require.True(t, strings.Contains(output, "Usage:"), "Expected help text to be printed")
			},
		},
		{
			name:      "Invalid log level returns an error",
			args:      []string{"--log-level=foo", "/path"},
			expectErr: true,
		},
		{
			name:      "Invalid log format returns an error",
			args:      []string{"--log-format=yaml", "/path"},
			expectErr: true,
		},
		{
			name:      "Negative drain timeout returns an error",
			args:      []string{"--drain-timeout=-1s", "/path"},
			expectErr: true,
		},
		{
			name:      "Negative workers returns an error",
			args:      []string{"--workers=-3", "/path"},
			expectErr: true,
		},
		{
			name:      "Unknown flag returns an error",
			args:      []string{"--nonsense", "/path"},
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// --- Arrange ---
			out := &bytes.Buffer{}

			// --- Act ---
			appConfig, shouldExit, err := cli.Parse(tc.args, out)

			// --- Assert ---
			if tc.expectErr {
				require.Error(t, err)
				var exitErr *cli.ExitError
				require.ErrorAs(t, err, &exitErr, "Expected error to be of type ExitError")
				require.Equal(t, 2, exitErr.Code)
				return // End test here if an error is expected
			}
			require.NoError(t, err)

			require.Equal(t, tc.expectExit, shouldExit)

			if tc.expectedConfig != nil {
				if diff := cmp.Diff(tc.expectedConfig, appConfig); diff != "" {
					t.Errorf("Config mismatch (-want +got):\n%s", diff)
				}
			}

			if tc.checkOutput != nil {
				tc.checkOutput(t, out.String())
			}
		})
	}
}
