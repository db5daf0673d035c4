package builtin

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/sol-strategies/dotbot-if/internal/constants"
	"github.com/sol-strategies/dotbot-if/internal/directive"
)

type createOptions struct {
	Mode *int `mapstructure:"mode"`
}

// Create creates directories.
//
//	- create:
//	    - ~/.cache
//	    ~/.ssh:
//	      mode: 0700
type Create struct {
	ctx *directive.Context
}

func (c *Create) CanHandle(name string) bool { return name == constants.DirectiveCreate }

func (c *Create) Handle(ctx context.Context, name string, data any) (bool, error) {
	if err := checkName(constants.DirectiveCreate, name); err != nil {
		return false, err
	}
	items, err := entries(data)
	if err != nil {
		return false, fmt.Errorf("create: %w", err)
	}

	defaults := createOptions{}
	if _, err := directive.Decode(c.ctx.DefaultsFor(constants.DirectiveCreate), &defaults); err != nil {
		return false, fmt.Errorf("create defaults: %w", err)
	}

	success := true
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		opts := defaults
		if item.Data != nil {
			if _, err := directive.Decode(item.Data, &opts); err != nil {
				return false, fmt.Errorf("create %s: %w", item.Name, err)
			}
		}
		mode := fs.FileMode(0o777)
		if opts.Mode != nil {
			mode = fs.FileMode(*opts.Mode)
		}

		path, err := expandPath(c.ctx.BaseDirectory(), item.Name)
		if err != nil {
			return false, err
		}
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			logger().Debug("path exists", "path", path)
			continue
		}
		if err := os.MkdirAll(path, mode); err != nil {
			logger().Warn("failed to create directory", "path", path, "error", err)
			success = false
			continue
		}
		// MkdirAll is subject to the umask.
		if opts.Mode != nil {
			if err := os.Chmod(path, mode); err != nil {
				logger().Warn("failed to set mode", "path", path, "error", err)
				success = false
				continue
			}
		}
		logger().Info("created directory", "path", path)
	}
	return success, nil
}
