package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/sol-strategies/dotbot-if/internal/constants"
	"github.com/sol-strategies/dotbot-if/internal/directive"
	"github.com/sol-strategies/dotbot-if/internal/shellcmd"
)

var ErrEmptyManifest = errors.New("plugin manifest defines no handlers")

// Manifest describes external directive handlers.
//
//	handlers:
//	  - directive: brew
//	    command: "$DOTBOT_PLUGIN_DIR/brew.sh"
//	    description: Install Homebrew packages
//
// Each command receives the directive data as JSON on stdin and succeeds
// when it exits 0.
type Manifest struct {
	Handlers []ManifestHandler `yaml:"handlers"`
}

type ManifestHandler struct {
	Directive   string `yaml:"directive"`
	Command     string `yaml:"command"`
	Shell       string `yaml:"shell"`
	Description string `yaml:"description"`
}

func (h ManifestHandler) validate() error {
	if h.Directive == "" {
		return fmt.Errorf("handler directive is required")
	}
	if h.Directive == constants.DirectiveDefaults {
		return fmt.Errorf("directive %q is reserved", h.Directive)
	}
	if h.Command == "" {
		return fmt.Errorf("handler %q: command is required", h.Directive)
	}
	return nil
}

// ManifestLoader loads YAML plugin manifests.
type ManifestLoader struct{}

func (ManifestLoader) Load(path string) ([]directive.Plugin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.UnmarshalWithOptions(data, &m, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if len(m.Handlers) == 0 {
		return nil, ErrEmptyManifest
	}

	dir := filepath.Dir(path)
	plugins := make([]directive.Plugin, 0, len(m.Handlers))
	for _, h := range m.Handlers {
		if err := h.validate(); err != nil {
			return nil, err
		}
		spec := h
		plugins = append(plugins, directive.Plugin{
			Name:   spec.Directive,
			Source: path,
			New: func(c *directive.Context) directive.Handler {
				return &execHandler{ctx: c, spec: spec, pluginDir: dir}
			},
		})
	}
	return plugins, nil
}

// execHandler runs a manifest command for its directive.
type execHandler struct {
	ctx       *directive.Context
	spec      ManifestHandler
	pluginDir string
}

func (h *execHandler) CanHandle(name string) bool {
	return name == h.spec.Directive
}

func (h *execHandler) Handle(ctx context.Context, name string, data any) (bool, error) {
	if name != h.spec.Directive {
		return false, fmt.Errorf("cannot handle directive %q", name)
	}

	payload, err := json.Marshal(directive.Plain(data))
	if err != nil {
		return false, fmt.Errorf("encoding %s data: %w", name, err)
	}

	shell := h.spec.Shell
	if shell == "" {
		shell = constants.DefaultPluginShell
	}

	if h.spec.Description != "" {
		logger().Info(h.spec.Description, "directive", name)
	}

	env := append([]string{}, h.ctx.Options().Env...)
	env = append(env,
		constants.EnvDirective+"="+name,
		constants.EnvBaseDirectory+"="+h.ctx.BaseDirectory(),
		constants.EnvPluginDir+"="+h.pluginDir,
	)

	exitCode, err := shellcmd.Run(ctx, shellcmd.Command{
		Script: h.spec.Command,
		Shell:  shell,
		Dir:    h.ctx.BaseDirectory(),
		Env:    env,
		Stdin:  bytes.NewReader(payload),
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	if err != nil {
		return false, err
	}
	if exitCode != 0 {
		logger().Error("plugin command failed", "directive", name, "exit_code", exitCode)
		return false, nil
	}
	return true, nil
}
