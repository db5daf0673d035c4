// Package builtin provides the directives every dispatch gets unless
// built-in plugins are disabled: clean, create, link and shell.
package builtin

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/sol-strategies/dotbot-if/internal/constants"
	"github.com/sol-strategies/dotbot-if/internal/directive"
)

func logger() *log.Logger { return log.Default().WithPrefix("builtin") }

// Plugins returns the built-in plugins in constants.BuiltInDirectives order.
func Plugins() []directive.Plugin {
	return []directive.Plugin{
		newPlugin(constants.DirectiveClean, func(c *directive.Context) directive.Handler { return &Clean{ctx: c} }),
		newPlugin(constants.DirectiveCreate, func(c *directive.Context) directive.Handler { return &Create{ctx: c} }),
		newPlugin(constants.DirectiveLink, func(c *directive.Context) directive.Handler { return &Link{ctx: c} }),
		newPlugin(constants.DirectiveShell, func(c *directive.Context) directive.Handler { return &Shell{ctx: c} }),
	}
}

func newPlugin(name string, fn func(c *directive.Context) directive.Handler) directive.Plugin {
	return directive.Plugin{Name: name, Source: constants.SourceBuiltIn, New: fn}
}

func checkName(want, got string) error {
	if want != got {
		return fmt.Errorf("%s cannot handle directive %q", want, got)
	}
	return nil
}

// expandPath expands a leading ~ and makes relative paths relative to base.
func expandPath(base, path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding %s: %w", path, err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	path = os.ExpandEnv(path)
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	return filepath.Clean(path), nil
}

// entries normalises a list of names or a name → options mapping into
// ordered (name, options) pairs.
func entries(data any) ([]directive.Entry, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]directive.Entry, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected a string, got %T", item)
			}
			out = append(out, directive.Entry{Name: s})
		}
		return out, nil
	default:
		task, err := directive.ParseList([]any{data})
		if err != nil {
			return nil, fmt.Errorf("expected a list or a mapping, got %T", data)
		}
		return task[0], nil
	}
}
