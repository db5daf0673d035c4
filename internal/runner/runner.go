package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sol-strategies/dotbot-if/internal/conditional"
	"github.com/sol-strategies/dotbot-if/internal/config"
	"github.com/sol-strategies/dotbot-if/internal/directive"
	"github.com/sol-strategies/dotbot-if/internal/dispatcher"
	"github.com/sol-strategies/dotbot-if/internal/plugins"
)

func logger() *log.Logger { return log.Default().WithPrefix("runner") }

var (
	ErrNoDirectiveFiles = errors.New("no directive files given")
	ErrDispatchFailed   = errors.New("some directives were not executed successfully")
)

type lockInfo struct {
	PID       int    `json:"pid"`
	StartedAt string `json:"started_at"`
	BaseDir   string `json:"base_directory"`
}

// Runner processes directive files with the configured options.
type Runner struct {
	config   *config.Config
	resolver *plugins.Resolver
	// Stdout and Stderr receive echoed condition output; nil means the
	// process streams.
	Stdout io.Writer
	Stderr io.Writer
}

func New(cfg *config.Config) *Runner {
	return &Runner{
		config:   cfg,
		resolver: plugins.NewResolver(),
	}
}

// Plugins returns the top-level plugin set: the `if` plugin followed by the
// resolved plugins.
func (r *Runner) Plugins(opts directive.Options) ([]directive.Plugin, error) {
	resolved, err := r.resolver.Resolve(opts)
	if err != nil {
		return nil, err
	}
	return append([]directive.Plugin{conditional.Plugin(r.deps())}, resolved...), nil
}

func (r *Runner) deps() conditional.Deps {
	return conditional.Deps{
		Resolve:       r.resolver.Resolve,
		NewDispatcher: dispatcher.Factory,
		Stdout:        r.Stdout,
		Stderr:        r.Stderr,
	}
}

// RunOnce dispatches the directives of files, in order, under the run lock.
func (r *Runner) RunOnce(ctx context.Context, files []string) error {
	if len(files) == 0 {
		return ErrNoDirectiveFiles
	}

	opts := r.config.Options
	baseDir, err := r.baseDirectory(files[0])
	if err != nil {
		return err
	}

	var tasks directive.List
	for _, f := range files {
		list, err := directive.LoadFile(f)
		if err != nil {
			return err
		}
		tasks = append(tasks, list...)
	}

	env, err := opts.Env()
	if err != nil {
		return err
	}
	dopts := opts.Directive(env)

	plugins, err := r.Plugins(dopts)
	if err != nil {
		return fmt.Errorf("resolving plugins: %w", err)
	}

	lockPath, err := opts.LockPath()
	if err != nil {
		return fmt.Errorf("resolving lock path: %w", err)
	}
	if err := acquireLock(lockPath, baseDir); err != nil {
		return err
	}
	defer releaseLock(lockPath)

	logger().Info("running directives", "base_directory", baseDir, "files", len(files), "tasks", len(tasks))

	d := dispatcher.New(directive.NewContext(baseDir, dopts), plugins)
	if !d.Dispatch(ctx, tasks) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run interrupted: %w", err)
		}
		return ErrDispatchFailed
	}
	return nil
}

func (r *Runner) baseDirectory(firstFile string) (string, error) {
	dir := r.config.Options.BaseDirectory
	if dir == "" {
		dir = filepath.Dir(firstFile)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving base directory %s: %w", dir, err)
	}
	return abs, nil
}

// acquireLock creates the lock file exclusively. An existing lock is only
// replaced when its holder is gone.
func acquireLock(lockPath, baseDir string) error {
	info := lockInfo{
		PID:       os.Getpid(),
		StartedAt: time.Now().UTC().Format(time.RFC3339),
		BaseDir:   baseDir,
	}
	lockData, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling lock info: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			_, werr := f.Write(lockData)
			if cerr := f.Close(); werr == nil {
				werr = cerr
			}
			if werr != nil {
				os.Remove(lockPath)
				return fmt.Errorf("writing lock file: %w", werr)
			}
			logger().Debug("lock acquired", "path", lockPath, "pid", info.PID)
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("creating lock file: %w", err)
		}
		if err := removeStaleLock(lockPath); err != nil {
			return err
		}
	}
	return fmt.Errorf("lock file %s was recreated by another run", lockPath)
}

// removeStaleLock removes lockPath unless a live process holds it.
func removeStaleLock(lockPath string) error {
	data, err := os.ReadFile(lockPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading lock file: %w", err)
	}

	if len(data) == 0 {
		// Created but not yet written by a run that is acquiring it.
		return fmt.Errorf("another run is acquiring the lock %s", lockPath)
	}

	var info lockInfo
	if err := json.Unmarshal(data, &info); err == nil {
		if isProcessAlive(info.PID) {
			return fmt.Errorf("another run is in progress (PID: %d, started: %s, base directory: %s)", info.PID, info.StartedAt, info.BaseDir)
		}
		logger().Warn("stale lock file found, replacing", "stale_pid", info.PID)
	} else {
		logger().Warn("unreadable lock file found, replacing", "path", lockPath)
	}

	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale lock file: %w", err)
	}
	return nil
}

func releaseLock(lockPath string) {
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		logger().Error("failed to remove lock file", "path", lockPath, "error", err)
	} else {
		logger().Debug("lock released", "path", lockPath)
	}
}

func isProcessAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 checks if the process exists without actually sending a signal
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
