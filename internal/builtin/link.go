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

type linkOptions struct {
	Path   string `mapstructure:"path"`
	Create bool   `mapstructure:"create"`
	Force  bool   `mapstructure:"force"`
	Relink bool   `mapstructure:"relink"`
}

// Link creates symbolic links. Keys are link paths, values are the source
// relative to the base directory or an options mapping. An empty source
// is the link's base name without a leading dot.
//
//	- link:
//	    ~/.vimrc:
//	    ~/.config/nvim:
//	      path: nvim
//	      create: true
type Link struct {
	ctx *directive.Context
}

func (l *Link) CanHandle(name string) bool { return name == constants.DirectiveLink }

func (l *Link) Handle(ctx context.Context, name string, data any) (bool, error) {
	if err := checkName(constants.DirectiveLink, name); err != nil {
		return false, err
	}
	items, err := entries(data)
	if err != nil {
		return false, fmt.Errorf("link: %w", err)
	}

	defaults := linkOptions{}
	if _, err := directive.Decode(l.ctx.DefaultsFor(constants.DirectiveLink), &defaults); err != nil {
		return false, fmt.Errorf("link defaults: %w", err)
	}

	success := true
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		opts := defaults
		opts.Path = ""
		switch v := item.Data.(type) {
		case nil:
		case string:
			opts.Path = v
		default:
			if _, err := directive.Decode(v, &opts); err != nil {
				return false, fmt.Errorf("link %s: %w", item.Name, err)
			}
		}

		if !l.link(item.Name, opts) {
			success = false
		}
	}
	return success, nil
}

func (l *Link) link(name string, opts linkOptions) bool {
	base := l.ctx.BaseDirectory()
	dest, err := expandPath(base, name)
	if err != nil {
		logger().Warn("invalid link path", "link", name, "error", err)
		return false
	}

	source := opts.Path
	if source == "" {
		source = strings.TrimPrefix(filepath.Base(dest), ".")
	}
	source, err = expandPath(base, source)
	if err != nil {
		logger().Warn("invalid link source", "link", name, "error", err)
		return false
	}

	if _, err := os.Stat(source); err != nil {
		logger().Warn("nonexistent source", "link", dest, "source", source)
		return false
	}

	if current, err := os.Readlink(dest); err == nil && current == source {
		logger().Debug("link exists", "link", dest, "source", source)
		return true
	}

	if info, err := os.Lstat(dest); err == nil {
		isLink := info.Mode()&os.ModeSymlink != 0
		switch {
		case opts.Force || (opts.Relink && isLink):
			if err := os.RemoveAll(dest); err != nil {
				logger().Warn("failed to remove existing path", "path", dest, "error", err)
				return false
			}
		default:
			logger().Warn("path exists, not linking", "link", dest, "source", source)
			return false
		}
	}

	if opts.Create {
		if err := os.MkdirAll(filepath.Dir(dest), 0o777); err != nil {
			logger().Warn("failed to create parent directory", "path", filepath.Dir(dest), "error", err)
			return false
		}
	}

	if err := os.Symlink(source, dest); err != nil {
		logger().Warn("failed to create link", "link", dest, "source", source, "error", err)
		return false
	}
	logger().Info("created link", "link", dest, "source", source)
	return true
}
