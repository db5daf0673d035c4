package plugins

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sol-strategies/dotbot-if/internal/constants"
	"github.com/sol-strategies/dotbot-if/internal/directive"
)

// stubLoader returns one plugin per path, named after the file.
type stubLoader struct {
	loaded []string
	err    error
}

func (l *stubLoader) Load(path string) ([]directive.Plugin, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.loaded = append(l.loaded, path)
	return []directive.Plugin{{Name: filepath.Base(path), Source: path}}, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestPaths_Order(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	writeFile(t, filepath.Join(dirA, "b.yaml"), "")
	writeFile(t, filepath.Join(dirA, "a.yml"), "")
	writeFile(t, filepath.Join(dirA, "notes.txt"), "")
	writeFile(t, filepath.Join(dirA, "nested", "c.yaml"), "")
	writeFile(t, filepath.Join(dirB, "z.yaml"), "")

	paths, err := Paths(directive.Options{
		Plugins:    []string{"explicit2.yaml", "explicit1.yaml"},
		PluginDirs: []string{dirB, dirA},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"explicit2.yaml",
		"explicit1.yaml",
		filepath.Join(dirB, "z.yaml"),
		filepath.Join(dirA, "a.yml"),
		filepath.Join(dirA, "b.yaml"),
	}, paths)
}

func TestResolve_AbsolutePathsAndBuiltIns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "p.yaml"), "")

	loader := &stubLoader{}
	r := &Resolver{Loader: loader}

	plugins, err := r.Resolve(directive.Options{
		Plugins:    []string{"relative.yaml"},
		PluginDirs: []string{dir},
	})
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(wd, "relative.yaml"), filepath.Join(dir, "p.yaml")}, loader.loaded)

	var names []string
	for _, p := range plugins {
		names = append(names, p.Name)
	}
	want := append([]string{"relative.yaml", "p.yaml"}, constants.BuiltInDirectives...)
	assert.Equal(t, want, names, "built-ins come last")
}

func TestResolve_DisableBuiltIns(t *testing.T) {
	r := &Resolver{Loader: &stubLoader{}}
	plugins, err := r.Resolve(directive.Options{DisableBuiltInPlugins: true})
	require.NoError(t, err)
	assert.Empty(t, plugins)
}

func TestResolve_LoadError(t *testing.T) {
	r := &Resolver{Loader: &stubLoader{err: errors.New("boom")}}
	_, err := r.Resolve(directive.Options{Plugins: []string{"x.yaml"}})
	assert.Error(t, err)
}

func TestManifestLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brew.yaml")
	writeFile(t, path, `
handlers:
  - directive: brew
    command: cat > "$DOTBOT_BASE_DIRECTORY/payload.json"
    description: Install packages
  - directive: apt
    command: exit 1
    shell: builtin
`)

	plugins, err := ManifestLoader{}.Load(path)
	require.NoError(t, err)
	require.Len(t, plugins, 2)
	assert.Equal(t, "brew", plugins[0].Name)
	assert.Equal(t, path, plugins[0].Source)
	assert.Equal(t, "apt", plugins[1].Name)
}

func TestManifestLoader_Errors(t *testing.T) {
	tests := map[string]string{
		"empty":           "handlers: []\n",
		"missing command": "handlers:\n  - directive: brew\n",
		"missing name":    "handlers:\n  - command: true\n",
		"reserved name":   "handlers:\n  - directive: defaults\n    command: true\n",
		"unknown field":   "handlers:\n  - directive: brew\n    command: true\n    args: [x]\n",
		"not a manifest":  "- link: {}\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			writeFile(t, path, content)
			_, err := ManifestLoader{}.Load(path)
			assert.Error(t, err)
		})
	}

	_, err := ManifestLoader{}.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestExecHandler(t *testing.T) {
	pluginDir := t.TempDir()
	path := filepath.Join(pluginDir, "brew.yaml")
	writeFile(t, path, `
handlers:
  - directive: brew
    command: 'cat > payload.json; printf "%s|%s" "$DOTBOT_DIRECTIVE" "$DOTBOT_PLUGIN_DIR" > env.txt'
    shell: builtin
  - directive: failing
    command: exit 3
    shell: builtin
`)
	plugins, err := ManifestLoader{}.Load(path)
	require.NoError(t, err)

	base := t.TempDir()
	c := directive.NewContext(base, directive.Options{})
	brew := plugins[0].New(c)
	failing := plugins[1].New(c)

	assert.True(t, brew.CanHandle("brew"))
	assert.False(t, brew.CanHandle("failing"))

	ok, err := brew.Handle(context.Background(), "brew", []any{"git", map[string]any{"cask": "firefox"}})
	require.NoError(t, err)
	assert.True(t, ok)

	payload, err := os.ReadFile(filepath.Join(base, "payload.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `["git", {"cask": "firefox"}]`, string(payload))

	env, err := os.ReadFile(filepath.Join(base, "env.txt"))
	require.NoError(t, err)
	assert.Equal(t, "brew|"+pluginDir, string(env))

	ok, err = failing.Handle(context.Background(), "failing", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = brew.Handle(context.Background(), "failing", nil)
	assert.Error(t, err)
}

func TestNewResolver(t *testing.T) {
	r := NewResolver()
	assert.IsType(t, ManifestLoader{}, r.Loader)
}
