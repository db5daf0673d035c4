// Package directive holds the types shared between the host dispatcher and
// the directive handlers it routes to.
package directive

import (
	"context"
	"maps"
)

// Handler handles one or more named directives.
type Handler interface {
	CanHandle(name string) bool
	// Handle returns false for an execution failure and an error for a
	// configuration problem with the directive data.
	Handle(ctx context.Context, name string, data any) (bool, error)
}

// Plugin is a named handler factory. Handlers are created per dispatcher so
// they see that dispatcher's Context.
type Plugin struct {
	Name   string
	Source string
	New    func(c *Context) Handler
}

// Dispatcher routes a directive list to handlers and reports whether every
// directive succeeded.
type Dispatcher interface {
	Dispatch(ctx context.Context, tasks List) bool
}

// DispatcherFactory builds a dispatcher for a context and plugin set.
type DispatcherFactory func(c *Context, plugins []Plugin) Dispatcher

// Loader turns a plugin file into the plugins it defines.
type Loader interface {
	Load(path string) ([]Plugin, error)
}

// Options are the host run options handlers may consult.
type Options struct {
	Plugins               []string
	PluginDirs            []string
	DisableBuiltInPlugins bool
	Only                  []string
	Skip                  []string
	ExitOnFailure         bool
	// Env is appended to the process environment of every child command.
	Env []string
}

// Context is the per-dispatcher state: where relative paths resolve, the run
// options, and the defaults set by the last `defaults` directive.
type Context struct {
	baseDirectory string
	options       Options
	defaults      map[string]any
}

func NewContext(baseDirectory string, options Options) *Context {
	return &Context{
		baseDirectory: baseDirectory,
		options:       options,
		defaults:      map[string]any{},
	}
}

func (c *Context) BaseDirectory() string { return c.baseDirectory }

func (c *Context) Options() Options { return c.options }

// Defaults returns a shallow copy of the current defaults.
func (c *Context) Defaults() map[string]any {
	return maps.Clone(c.defaults)
}

// DefaultsFor returns the defaults entry for one directive, or nil.
func (c *Context) DefaultsFor(name string) map[string]any {
	m, _ := AsMap(c.defaults[name])
	return m
}

// SetDefaults replaces the defaults wholesale.
func (c *Context) SetDefaults(defaults map[string]any) {
	if defaults == nil {
		defaults = map[string]any{}
	}
	c.defaults = maps.Clone(defaults)
}
