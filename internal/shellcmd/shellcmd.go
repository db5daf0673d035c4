// Package shellcmd runs a command string through a shell and reports its
// exit code. Output is routed to the given writers and never inspected.
package shellcmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/sol-strategies/dotbot-if/internal/constants"
)

func logger() *log.Logger { return log.Default().WithPrefix("shellcmd") }

// Command describes one shell invocation.
type Command struct {
	Script string
	// Shell is an executable invoked as `<Shell> -c <Script>`, or
	// constants.ShellBuiltin for the in-process interpreter. Empty means
	// constants.DefaultShell.
	Shell string
	Dir   string
	// Env is appended to the current process environment.
	Env []string
	// Nil streams are discarded (stdin reads as empty).
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes c and returns the exit code. A non-zero exit is not an
// error; the error is only set when the shell could not be started, the
// script could not be parsed by the builtin interpreter, or ctx ended
// before the command finished.
func Run(ctx context.Context, c Command) (int, error) {
	shell := c.Shell
	if shell == "" {
		shell = constants.DefaultShell
	}

	logger().Debug("running command", "shell", shell, "dir", c.Dir, "script", c.Script)

	if shell == constants.ShellBuiltin {
		return runBuiltin(ctx, c)
	}
	return runExec(ctx, shell, c)
}

func runExec(ctx context.Context, shell string, c Command) (int, error) {
	cmd := exec.CommandContext(ctx, shell, "-c", c.Script) // nolint:gosec
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		// A killed child has no meaningful exit status.
		return -1, fmt.Errorf("%s interrupted: %w", shell, ctxErr)
	}
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("starting %s: %w", shell, err)
}

func runBuiltin(ctx context.Context, c Command) (int, error) {
	file, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(c.Script), "")
	if err != nil {
		return -1, fmt.Errorf("parsing script: %w", err)
	}

	stdin := c.Stdin
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	stdout, stderr := c.Stdout, c.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	opts := []interp.RunnerOption{
		interp.StdIO(stdin, stdout, stderr),
		interp.Env(expand.ListEnviron(append(os.Environ(), c.Env...)...)),
	}
	if c.Dir != "" {
		opts = append(opts, interp.Dir(c.Dir))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return -1, fmt.Errorf("creating interpreter: %w", err)
	}

	err = runner.Run(ctx, file)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, fmt.Errorf("interpreter interrupted: %w", ctxErr)
	}
	if err == nil {
		return 0, nil
	}

	if status, ok := interp.IsExitStatus(err); ok {
		return int(status), nil
	}
	return -1, err
}
