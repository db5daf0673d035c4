// Package plugins resolves the plugin set for a dispatch: explicit plugin
// manifests, manifests discovered in plugin directories, then the built-in
// directives.
package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/sol-strategies/dotbot-if/internal/builtin"
	"github.com/sol-strategies/dotbot-if/internal/constants"
	"github.com/sol-strategies/dotbot-if/internal/directive"
)

func logger() *log.Logger { return log.Default().WithPrefix("plugins") }

// Resolver resolves plugin paths from run options and loads them.
type Resolver struct {
	Loader directive.Loader
}

// NewResolver returns a Resolver using the manifest loader.
func NewResolver() *Resolver {
	return &Resolver{Loader: ManifestLoader{}}
}

// Paths returns the plugin files named by opts: explicit paths in the given
// order, then each plugin directory's manifests in lexical order.
func Paths(opts directive.Options) ([]string, error) {
	paths := append([]string{}, opts.Plugins...)
	for _, dir := range opts.PluginDirs {
		matches, err := doublestar.Glob(os.DirFS(dir), constants.PluginManifestPattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("listing plugin directory %s: %w", dir, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			paths = append(paths, filepath.Join(dir, m))
		}
	}
	return paths, nil
}

// Resolve loads every plugin named by opts and appends the built-ins unless
// they are disabled.
func (r *Resolver) Resolve(opts directive.Options) ([]directive.Plugin, error) {
	paths, err := Paths(opts)
	if err != nil {
		return nil, err
	}

	var plugins []directive.Plugin
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolving plugin path %s: %w", path, err)
		}
		loaded, err := r.Loader.Load(abs)
		if err != nil {
			return nil, fmt.Errorf("loading plugin %s: %w", abs, err)
		}
		logger().Debug("loaded plugin", "path", abs, "handlers", len(loaded))
		plugins = append(plugins, loaded...)
	}

	if !opts.DisableBuiltInPlugins {
		plugins = append(plugins, builtin.Plugins()...)
	}
	return plugins, nil
}
