// Package conditional implements the `if` directive: it runs a shell
// condition and dispatches a nested directive list depending on whether
// the condition was met.
//
//	- if:
//	    cond: command -v brew
//	    met:
//	      - shell: [brew bundle]
//	    else:
//	      - link:
//	          ~/.profile: profile.linux
//
// `not` flips the polarity: the condition is met when the command exits
// non-zero. Either value may be a `[description, command]` pair.
package conditional

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/sol-strategies/dotbot-if/internal/constants"
	"github.com/sol-strategies/dotbot-if/internal/directive"
	"github.com/sol-strategies/dotbot-if/internal/shellcmd"
)

func logger() *log.Logger { return log.Default().WithPrefix(constants.DirectiveIf) }

// Deps are the host collaborators the handler needs for nested dispatch.
type Deps struct {
	// Resolve returns the plugins available to a nested dispatch, not
	// counting the `if` plugin itself.
	Resolve       func(opts directive.Options) ([]directive.Plugin, error)
	NewDispatcher directive.DispatcherFactory
	// Stdout and Stderr receive condition output when echo is enabled.
	// Nil means the process streams.
	Stdout io.Writer
	Stderr io.Writer
}

// settings are read from the `if` entry of the current defaults.
type settings struct {
	Stdout bool   `mapstructure:"stdout"`
	Stderr bool   `mapstructure:"stderr"`
	Shell  string `mapstructure:"shell"`
}

// Handler handles the `if` directive.
type Handler struct {
	ctx  *directive.Context
	deps Deps
}

var _ directive.Handler = (*Handler)(nil)

// New creates a Handler bound to the dispatcher context c.
func New(c *directive.Context, deps Deps) *Handler {
	return &Handler{ctx: c, deps: deps}
}

// Plugin returns the `if` plugin.
func Plugin(deps Deps) directive.Plugin {
	return directive.Plugin{
		Name:   constants.DirectiveIf,
		Source: constants.SourceCompiled,
		New: func(c *directive.Context) directive.Handler {
			return New(c, deps)
		},
	}
}

func (h *Handler) CanHandle(name string) bool {
	return name == constants.DirectiveIf
}

// Handle evaluates a single record or a sequence of records. The result is
// true only if every selected branch succeeded. All records of a sequence
// are evaluated, but a configuration error stops processing at once.
func (h *Handler) Handle(ctx context.Context, name string, data any) (bool, error) {
	if name != constants.DirectiveIf {
		return false, fmt.Errorf("%w %q", ErrInvalidDirective, name)
	}

	records, ok := data.([]any)
	if !ok {
		return h.handleRecord(ctx, data)
	}

	success := true
	for i, r := range records {
		ok, err := h.handleRecord(ctx, r)
		if err != nil {
			return false, fmt.Errorf("record %d: %w", i, err)
		}
		success = success && ok
	}
	return success, nil
}

func (h *Handler) handleRecord(ctx context.Context, data any) (bool, error) {
	rec, err := parseRecord(data)
	if err != nil {
		return false, err
	}

	s, err := h.settings()
	if err != nil {
		return false, err
	}

	if rec.Description != "" {
		logger().Info(rec.Description)
	}

	cmd := shellcmd.Command{
		Script: rec.Command,
		Shell:  s.Shell,
		Dir:    h.ctx.BaseDirectory(),
		Env:    h.ctx.Options().Env,
	}
	if s.Stdout {
		cmd.Stdout = h.stdout()
	}
	if s.Stderr {
		cmd.Stderr = h.stderr()
	}

	exitCode, err := shellcmd.Run(ctx, cmd)
	if err != nil {
		return false, fmt.Errorf("running condition %q: %w", rec.Command, err)
	}

	met := rec.isMet(exitCode)
	logger().Debug("condition evaluated", "command", rec.Command, "negate", rec.Negate, "exit_code", exitCode, "met", met)

	branch := rec.branch(met)
	if len(branch) == 0 {
		return true, nil
	}
	return h.dispatch(ctx, branch)
}

// dispatch runs branch through a fresh dispatcher that starts from the
// current defaults.
func (h *Handler) dispatch(ctx context.Context, branch directive.List) (bool, error) {
	opts := h.ctx.Options()

	resolved, err := h.deps.Resolve(opts)
	if err != nil {
		return false, fmt.Errorf("resolving plugins: %w", err)
	}
	plugins := append([]directive.Plugin{Plugin(h.deps)}, resolved...)

	tasks := make(directive.List, 0, len(branch)+1)
	tasks = append(tasks, directive.NewTask(constants.DirectiveDefaults, h.ctx.Defaults()))
	tasks = append(tasks, branch...)

	nested := directive.NewContext(h.ctx.BaseDirectory(), opts)
	return h.deps.NewDispatcher(nested, plugins).Dispatch(ctx, tasks), nil
}

func (h *Handler) settings() (settings, error) {
	s := settings{
		Stdout: true,
		Stderr: true,
		Shell:  constants.DefaultShell,
	}
	raw, present := h.ctx.Defaults()[constants.DirectiveIf]
	if !present || raw == nil {
		return s, nil
	}
	defaults, ok := directive.AsMap(raw)
	if !ok {
		return s, fmt.Errorf("%w: must be a mapping, got %T", ErrInvalidSettings, raw)
	}
	if _, err := directive.Decode(defaults, &s); err != nil {
		return s, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return s, nil
}

func (h *Handler) stdout() io.Writer {
	if h.deps.Stdout != nil {
		return h.deps.Stdout
	}
	return os.Stdout
}

func (h *Handler) stderr() io.Writer {
	if h.deps.Stderr != nil {
		return h.deps.Stderr
	}
	return os.Stderr
}
