package builtin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sol-strategies/dotbot-if/internal/constants"
	"github.com/sol-strategies/dotbot-if/internal/directive"
	"github.com/sol-strategies/dotbot-if/internal/shellcmd"
)

type shellOptions struct {
	Command     string `mapstructure:"command"`
	Description string `mapstructure:"description"`
	Shell       string `mapstructure:"shell"`
	Stdout      bool   `mapstructure:"stdout"`
	Stderr      bool   `mapstructure:"stderr"`
	Quiet       bool   `mapstructure:"quiet"`
}

// Shell runs shell commands. Each item is a command string, a
// [command, description] pair or an options mapping. Output that is not
// echoed is collected and logged.
//
//	- shell:
//	    - git submodule update --init
//	    - [vim +PlugInstall +qall, Installing vim plugins]
//	    - command: ./setup.sh
//	      stdout: true
type Shell struct {
	ctx *directive.Context
	// Stdout and Stderr default to the process streams.
	Stdout io.Writer
	Stderr io.Writer
}

func (s *Shell) CanHandle(name string) bool { return name == constants.DirectiveShell }

func (s *Shell) Handle(ctx context.Context, name string, data any) (bool, error) {
	if err := checkName(constants.DirectiveShell, name); err != nil {
		return false, err
	}
	items, ok := data.([]any)
	if !ok {
		return false, fmt.Errorf("shell: expected a list of commands, got %T", data)
	}

	defaults := shellOptions{Shell: os.Getenv("SHELL")}
	if defaults.Shell == "" {
		defaults.Shell = constants.DefaultPluginShell
	}
	if _, err := directive.Decode(s.ctx.DefaultsFor(constants.DirectiveShell), &defaults); err != nil {
		return false, fmt.Errorf("shell defaults: %w", err)
	}

	var cmds []shellOptions
	for i, item := range items {
		opts, err := parseShellItem(item, defaults)
		if err != nil {
			return false, fmt.Errorf("shell command %d: %w", i, err)
		}
		cmds = append(cmds, opts)
	}

	success := true
	for _, opts := range cmds {
		ok, err := s.run(ctx, opts)
		if err != nil {
			return false, err
		}
		success = success && ok
	}
	return success, nil
}

func parseShellItem(item any, defaults shellOptions) (shellOptions, error) {
	opts := defaults
	opts.Command, opts.Description = "", ""

	switch v := item.(type) {
	case string:
		opts.Command = v
	case []any:
		if len(v) == 0 || len(v) > 2 {
			return opts, fmt.Errorf("expected [command, description], got %d elements", len(v))
		}
		opts.Command, _ = v[0].(string)
		if len(v) == 2 {
			opts.Description, _ = v[1].(string)
		}
	default:
		if _, err := directive.Decode(v, &opts); err != nil {
			return opts, err
		}
	}
	if opts.Command == "" {
		return opts, fmt.Errorf("command is required")
	}
	return opts, nil
}

func (s *Shell) run(ctx context.Context, opts shellOptions) (bool, error) {
	label := opts.Description
	if label == "" {
		label = opts.Command
	}
	if !opts.Quiet {
		logger().Info(label)
	}

	var collected bytes.Buffer
	cmd := shellcmd.Command{
		Script: opts.Command,
		Shell:  opts.Shell,
		Dir:    s.ctx.BaseDirectory(),
		Env:    s.ctx.Options().Env,
		Stdout: &collected,
		Stderr: &collected,
	}
	if opts.Stdout {
		cmd.Stdout = s.stdout()
	}
	if opts.Stderr {
		cmd.Stderr = s.stderr()
	}

	exitCode, err := shellcmd.Run(ctx, cmd)
	if err != nil {
		return false, fmt.Errorf("shell command %q: %w", opts.Command, err)
	}

	output := string(bytes.TrimSpace(collected.Bytes()))
	if exitCode != 0 {
		if output != "" {
			logger().Error("command output", "command", label, "output", output)
		}
		logger().Warn("command failed", "command", label, "exit_code", exitCode)
		return false, nil
	}
	if output != "" {
		logger().Debug("command output", "command", label, "output", output)
	}
	return true, nil
}

func (s *Shell) stdout() io.Writer {
	if s.Stdout != nil {
		return s.Stdout
	}
	return os.Stdout
}

func (s *Shell) stderr() io.Writer {
	if s.Stderr != nil {
		return s.Stderr
	}
	return os.Stderr
}
