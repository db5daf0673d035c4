package runner

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sol-strategies/dotbot-if/internal/config"
	"github.com/sol-strategies/dotbot-if/internal/constants"
	"github.com/sol-strategies/dotbot-if/internal/directive"
)

func testRunner(t *testing.T) *Runner {
	t.Helper()
	cfg := &config.Config{
		Options: config.Options{LockFile: filepath.Join(t.TempDir(), "run.lock")},
	}
	r := New(cfg)
	r.Stdout = io.Discard
	r.Stderr = io.Discard
	return r
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readLock(t *testing.T, path string) lockInfo {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var info lockInfo
	require.NoError(t, json.Unmarshal(data, &info))
	return info
}

func TestAcquireLock_NewLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "run.lock")

	require.NoError(t, acquireLock(lockPath, "/dotfiles"))
	defer releaseLock(lockPath)

	info := readLock(t, lockPath)
	assert.Equal(t, os.Getpid(), info.PID)
	assert.Equal(t, "/dotfiles", info.BaseDir)
}

func TestAcquireLock_AlreadyLocked(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "run.lock")

	require.NoError(t, acquireLock(lockPath, "/dotfiles"))
	defer releaseLock(lockPath)

	// Same PID, so the holder is alive
	assert.Error(t, acquireLock(lockPath, "/dotfiles"))
}

func TestAcquireLock_StaleLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "run.lock")

	data, err := json.Marshal(lockInfo{PID: 999999999, StartedAt: "2020-01-01T00:00:00Z"})
	require.NoError(t, err)
	writeFile(t, lockPath, string(data))

	require.NoError(t, acquireLock(lockPath, "/dotfiles"), "stale lock should be replaced")
	defer releaseLock(lockPath)

	assert.Equal(t, os.Getpid(), readLock(t, lockPath).PID)
}

func TestAcquireLock_GarbageLockReplaced(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "run.lock")
	writeFile(t, lockPath, "not json")

	require.NoError(t, acquireLock(lockPath, "/dotfiles"))
	defer releaseLock(lockPath)

	assert.Equal(t, os.Getpid(), readLock(t, lockPath).PID)
}

func TestAcquireLock_EmptyLockIsHeld(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "run.lock")
	writeFile(t, lockPath, "")

	assert.Error(t, acquireLock(lockPath, "/dotfiles"))
}

func TestAcquireLock_ConcurrentRunsGetOneLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "run.lock")
	defer releaseLock(lockPath)

	const runs = 16
	var wg sync.WaitGroup
	errs := make([]error, runs)
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = acquireLock(lockPath, "/dotfiles")
		}(i)
	}
	wg.Wait()

	acquired := 0
	for _, err := range errs {
		if err == nil {
			acquired++
		}
	}
	assert.Equal(t, 1, acquired)
}

func TestReleaseLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "run.lock")
	require.NoError(t, acquireLock(lockPath, "/dotfiles"))
	releaseLock(lockPath)

	_, err := os.Stat(lockPath)
	assert.True(t, os.IsNotExist(err), "lock file should be removed")
}

func TestRunOnce_NoFiles(t *testing.T) {
	r := testRunner(t)
	assert.ErrorIs(t, r.RunOnce(context.Background(), nil), ErrNoDirectiveFiles)
}

func TestRunOnce_ConditionalCreate(t *testing.T) {
	r := testRunner(t)
	dotfiles := t.TempDir()
	file := filepath.Join(dotfiles, "install.conf.yaml")
	writeFile(t, file, `
- defaults:
    if:
      shell: builtin
- if:
    - cond: "true"
      met:
        - create:
            - made
    - not: "true"
      met:
        - create:
            - skipped
      unmet:
        - create:
            - fallback
`)

	require.NoError(t, r.RunOnce(context.Background(), []string{file}))

	for name, want := range map[string]bool{"made": true, "skipped": false, "fallback": true} {
		_, err := os.Stat(filepath.Join(dotfiles, name))
		assert.Equal(t, want, err == nil, name)
	}

	_, err := os.Stat(r.config.Options.LockFile)
	assert.True(t, os.IsNotExist(err), "lock should be released after the run")
}

func TestRunOnce_FilesConcatenated(t *testing.T) {
	r := testRunner(t)
	dotfiles := t.TempDir()
	first := filepath.Join(dotfiles, "first.yaml")
	second := filepath.Join(t.TempDir(), "second.json")
	writeFile(t, first, "- create: [one]\n")
	writeFile(t, second, `[{"create": ["two"]}]`)

	require.NoError(t, r.RunOnce(context.Background(), []string{first, second}))

	// Both resolve against the directory of the first file
	assert.DirExists(t, filepath.Join(dotfiles, "one"))
	assert.DirExists(t, filepath.Join(dotfiles, "two"))
}

func TestRunOnce_BaseDirectoryOption(t *testing.T) {
	r := testRunner(t)
	base := t.TempDir()
	r.config.Options.BaseDirectory = base

	file := filepath.Join(t.TempDir(), "install.yaml")
	writeFile(t, file, "- create: [here]\n")

	require.NoError(t, r.RunOnce(context.Background(), []string{file}))
	assert.DirExists(t, filepath.Join(base, "here"))
}

func TestRunOnce_Failure(t *testing.T) {
	r := testRunner(t)
	file := filepath.Join(t.TempDir(), "install.yaml")
	writeFile(t, file, `
- if:
    cond: "false"
    unmet:
      - nonexistent: whatever
`)
	assert.ErrorIs(t, r.RunOnce(context.Background(), []string{file}), ErrDispatchFailed)
}

func TestRunOnce_Interrupted(t *testing.T) {
	r := testRunner(t)
	dotfiles := t.TempDir()
	file := filepath.Join(dotfiles, "install.yaml")
	writeFile(t, file, "- create: [never]\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.RunOnce(ctx, []string{file})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, filepath.Join(dotfiles, "never"))
}

func TestRunOnce_InvalidFile(t *testing.T) {
	r := testRunner(t)
	file := filepath.Join(t.TempDir(), "install.yaml")
	writeFile(t, file, "link: not-a-list\n")

	assert.ErrorIs(t, r.RunOnce(context.Background(), []string{file}), directive.ErrListMustBeSequence)
}

func TestRunOnce_LockHeld(t *testing.T) {
	r := testRunner(t)
	require.NoError(t, acquireLock(r.config.Options.LockFile, "/elsewhere"))
	defer releaseLock(r.config.Options.LockFile)

	file := filepath.Join(t.TempDir(), "install.yaml")
	writeFile(t, file, "- create: [x]\n")
	assert.Error(t, r.RunOnce(context.Background(), []string{file}))
}

func TestPlugins_IfFirst(t *testing.T) {
	r := testRunner(t)
	plugins, err := r.Plugins(directive.Options{})
	require.NoError(t, err)

	var names []string
	for _, p := range plugins {
		names = append(names, p.Name)
	}
	want := append([]string{constants.DirectiveIf}, constants.BuiltInDirectives...)
	assert.Equal(t, want, names)
}
