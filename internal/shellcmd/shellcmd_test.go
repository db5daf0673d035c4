package shellcmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sol-strategies/dotbot-if/internal/constants"
)

func TestRun_ExitCodes(t *testing.T) {
	for _, shell := range []string{"sh", constants.ShellBuiltin} {
		t.Run(shell, func(t *testing.T) {
			tests := []struct {
				script string
				want   int
			}{
				{"true", 0},
				{"false", 1},
				{"exit 0", 0},
				{"exit 3", 3},
				{"test 1 -eq 1", 0},
			}
			for _, tt := range tests {
				code, err := Run(context.Background(), Command{Script: tt.script, Shell: shell})
				require.NoError(t, err, tt.script)
				assert.Equal(t, tt.want, code, tt.script)
			}
		})
	}
}

func TestRun_RoutesOutput(t *testing.T) {
	for _, shell := range []string{"sh", constants.ShellBuiltin} {
		t.Run(shell, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code, err := Run(context.Background(), Command{
				Script: "echo out; echo err >&2",
				Shell:  shell,
				Stdout: &stdout,
				Stderr: &stderr,
			})
			require.NoError(t, err)
			assert.Equal(t, 0, code)
			assert.Equal(t, "out\n", stdout.String())
			assert.Equal(t, "err\n", stderr.String())
		})
	}
}

func TestRun_NilStreamsDiscard(t *testing.T) {
	code, err := Run(context.Background(), Command{Script: "echo hidden", Shell: constants.ShellBuiltin})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestRun_EnvDirAndStdin(t *testing.T) {
	dir := t.TempDir()
	for _, shell := range []string{"sh", constants.ShellBuiltin} {
		t.Run(shell, func(t *testing.T) {
			var stdout bytes.Buffer
			code, err := Run(context.Background(), Command{
				Script: `printf '%s|' "$GREETING"; pwd; cat`,
				Shell:  shell,
				Dir:    dir,
				Env:    []string{"GREETING=hello"},
				Stdin:  strings.NewReader("piped"),
				Stdout: &stdout,
			})
			require.NoError(t, err)
			assert.Equal(t, 0, code)
			assert.Equal(t, "hello|"+dir+"\npiped", stdout.String())
		})
	}
}

func TestRun_MissingShellIsError(t *testing.T) {
	_, err := Run(context.Background(), Command{Script: "true", Shell: "/nonexistent/shell"})
	assert.Error(t, err)
}

func TestRun_BuiltinParseError(t *testing.T) {
	_, err := Run(context.Background(), Command{Script: "if then fi (", Shell: constants.ShellBuiltin})
	assert.Error(t, err)
}

func TestRun_CancelledContextIsError(t *testing.T) {
	for _, shell := range []string{"sh", constants.ShellBuiltin} {
		t.Run(shell, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()

			start := time.Now()
			code, err := Run(ctx, Command{Script: "sleep 5", Shell: shell})
			assert.ErrorIs(t, err, context.DeadlineExceeded)
			assert.Equal(t, -1, code)
			assert.Less(t, time.Since(start), 4*time.Second)
		})
	}
}
