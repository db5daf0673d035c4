package dispatcher

import (
	"context"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/sol-strategies/dotbot-if/internal/constants"
	"github.com/sol-strategies/dotbot-if/internal/directive"
)

func logger() *log.Logger { return log.Default().WithPrefix("dispatcher") }

// Dispatcher routes directive entries to the first plugin handler that
// accepts them.
type Dispatcher struct {
	ctx      *directive.Context
	plugins  []directive.Plugin
	handlers []directive.Handler
}

// New creates a Dispatcher whose handlers share c.
func New(c *directive.Context, plugins []directive.Plugin) *Dispatcher {
	handlers := make([]directive.Handler, 0, len(plugins))
	for _, p := range plugins {
		handlers = append(handlers, p.New(c))
	}
	return &Dispatcher{
		ctx:      c,
		plugins:  plugins,
		handlers: handlers,
	}
}

// Factory adapts New to directive.DispatcherFactory.
func Factory(c *directive.Context, plugins []directive.Plugin) directive.Dispatcher {
	return New(c, plugins)
}

// Dispatch runs every entry of tasks in order and returns true only if all
// of them succeeded. It stops before the next entry once ctx is done.
func (d *Dispatcher) Dispatch(ctx context.Context, tasks directive.List) bool {
	opts := d.ctx.Options()
	success := true

	for _, task := range tasks {
		for _, entry := range task {
			if err := ctx.Err(); err != nil {
				logger().Error("dispatch interrupted", "next_directive", entry.Name, "error", err)
				return false
			}
			if entry.Name != constants.DirectiveDefaults && d.filtered(entry.Name) {
				logger().Info("skipping directive", "directive", entry.Name)
				continue
			}

			ok := d.dispatchEntry(ctx, entry)
			if !ok {
				success = false
				if opts.ExitOnFailure {
					logger().Error("stopping after failed directive", "directive", entry.Name)
					return false
				}
			}
		}
	}

	if success {
		logger().Info("all directives executed successfully")
	} else {
		logger().Error("some directives were not executed successfully")
	}
	return success
}

func (d *Dispatcher) dispatchEntry(ctx context.Context, entry directive.Entry) bool {
	if entry.Name == constants.DirectiveDefaults {
		defaults, ok := directive.AsMap(entry.Data)
		if !ok && entry.Data != nil {
			logger().Error("defaults must be a mapping", "got", entry.Data)
			return false
		}
		d.ctx.SetDefaults(defaults)
		return true
	}

	for i, h := range d.handlers {
		if !h.CanHandle(entry.Name) {
			continue
		}
		ok, err := h.Handle(ctx, entry.Name, entry.Data)
		if err != nil {
			logger().Error("error while executing directive", "directive", entry.Name, "plugin", d.plugins[i].Source, "error", err)
			return false
		}
		return ok
	}

	logger().Error("directive not handled", "directive", entry.Name)
	return false
}

func (d *Dispatcher) filtered(name string) bool {
	opts := d.ctx.Options()
	if len(opts.Only) > 0 && !slices.Contains(opts.Only, name) {
		return true
	}
	return slices.Contains(opts.Skip, name)
}
