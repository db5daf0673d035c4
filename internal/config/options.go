package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"dario.cat/mergo"
	"github.com/adrg/xdg"
	"github.com/joho/godotenv"

	"github.com/sol-strategies/dotbot-if/internal/constants"
	"github.com/sol-strategies/dotbot-if/internal/directive"
)

// Options are the run options. Command line flags are merged over the
// values from the config file.
type Options struct {
	// BaseDirectory is where relative paths resolve and commands run.
	// Defaults to the directory of the first directive file.
	BaseDirectory         string   `koanf:"base_directory"`
	Plugins               []string `koanf:"plugins"`
	PluginDirs            []string `koanf:"plugin_dirs"`
	DisableBuiltInPlugins bool     `koanf:"disable_built_in_plugins"`
	Only                  []string `koanf:"only"`
	Skip                  []string `koanf:"skip"`
	ExitOnFailure         bool     `koanf:"exit_on_failure"`
	// EnvFiles are dotenv files whose variables are passed to every child command.
	EnvFiles []string `koanf:"env_files"`
	// LockFile guards against concurrent runs; defaults to a file in the XDG state directory.
	LockFile string `koanf:"lock_file"`
}

// Merge applies overrides: non-empty scalars replace, lists are appended.
func (o *Options) Merge(overrides Options) error {
	if err := mergo.Merge(o, overrides, mergo.WithOverride, mergo.WithAppendSlice); err != nil {
		return fmt.Errorf("merging options: %w", err)
	}
	return nil
}

func (o *Options) Validate() error {
	for _, p := range o.Plugins {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("plugins: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("plugins: %s is a directory, use plugin_dirs", p)
		}
	}
	for _, d := range o.PluginDirs {
		info, err := os.Stat(d)
		if err != nil {
			return fmt.Errorf("plugin_dirs: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("plugin_dirs: %s is not a directory", d)
		}
	}
	for _, f := range o.EnvFiles {
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("env_files: %w", err)
		}
	}
	if o.BaseDirectory != "" {
		info, err := os.Stat(o.BaseDirectory)
		if err != nil {
			return fmt.Errorf("base_directory: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("base_directory: %s is not a directory", o.BaseDirectory)
		}
	}
	return nil
}

// LockPath returns the lock file path, creating its parent directory.
func (o *Options) LockPath() (string, error) {
	if o.LockFile != "" {
		return o.LockFile, nil
	}
	return xdg.StateFile(filepath.Join(constants.AppSlug, "run.lock"))
}

// Env reads the env files in order; later files win.
func (o *Options) Env() ([]string, error) {
	vars := map[string]string{}
	for _, f := range o.EnvFiles {
		m, err := godotenv.Read(f)
		if err != nil {
			return nil, fmt.Errorf("reading env file %s: %w", f, err)
		}
		for k, v := range m {
			vars[k] = v
		}
	}

	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env, nil
}

// Directive converts the options into the form handlers see.
func (o *Options) Directive(env []string) directive.Options {
	return directive.Options{
		Plugins:               append([]string{}, o.Plugins...),
		PluginDirs:            append([]string{}, o.PluginDirs...),
		DisableBuiltInPlugins: o.DisableBuiltInPlugins,
		Only:                  append([]string{}, o.Only...),
		Skip:                  append([]string{}, o.Skip...),
		ExitOnFailure:         o.ExitOnFailure,
		Env:                   env,
	}
}
