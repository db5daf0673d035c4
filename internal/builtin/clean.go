package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sol-strategies/dotbot-if/internal/constants"
	"github.com/sol-strategies/dotbot-if/internal/directive"
)

type cleanOptions struct {
	Force bool `mapstructure:"force"`
}

// Clean removes dangling symlinks from directories. Only links pointing into
// the base directory are removed unless force is set.
//
//	- clean: ['~', ~/.config]
type Clean struct {
	ctx *directive.Context
}

func (c *Clean) CanHandle(name string) bool { return name == constants.DirectiveClean }

func (c *Clean) Handle(ctx context.Context, name string, data any) (bool, error) {
	if err := checkName(constants.DirectiveClean, name); err != nil {
		return false, err
	}
	items, err := entries(data)
	if err != nil {
		return false, fmt.Errorf("clean: %w", err)
	}

	defaults := cleanOptions{}
	if _, err := directive.Decode(c.ctx.DefaultsFor(constants.DirectiveClean), &defaults); err != nil {
		return false, fmt.Errorf("clean defaults: %w", err)
	}

	success := true
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		opts := defaults
		if item.Data != nil {
			if _, err := directive.Decode(item.Data, &opts); err != nil {
				return false, fmt.Errorf("clean %s: %w", item.Name, err)
			}
		}
		dir, err := expandPath(c.ctx.BaseDirectory(), item.Name)
		if err != nil {
			return false, err
		}
		if err := c.clean(dir, opts.Force); err != nil {
			logger().Warn("failed to clean directory", "dir", dir, "error", err)
			success = false
		}
	}
	return success, nil
}

// DanglingLinks returns the symlinks directly inside dir whose target does
// not exist, paired with their targets.
func DanglingLinks(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	dangling := map[string]string{}
	for _, e := range entries {
		if e.Type()&os.ModeSymlink == 0 {
			continue
		}
		path := filepath.Join(dir, e.Name())
		target, err := os.Readlink(path)
		if err != nil {
			continue
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(dir, target)
		}
		if _, err := os.Stat(target); os.IsNotExist(err) {
			dangling[path] = target
		}
	}
	return dangling, nil
}

func (c *Clean) clean(dir string, force bool) error {
	dangling, err := DanglingLinks(dir)
	if err != nil {
		return err
	}

	base := filepath.Clean(c.ctx.BaseDirectory()) + string(os.PathSeparator)
	for path, target := range dangling {
		if !force && !strings.HasPrefix(target, base) {
			logger().Debug("ignoring dangling link outside base directory", "link", path, "target", target)
			continue
		}
		logger().Warn("removing dangling link", "link", path, "target", target)
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	return nil
}
