package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/sol-strategies/dotbot-if/internal/constants"
)

type Config struct {
	Log     Log     `koanf:"log"`
	Options Options `koanf:"options"`
	File    string  `koanf:"-"`
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, constants.AppSlug, "config.yml")
}

func New() *Config {
	return &Config{}
}

func NewFromConfigFile(path string) (*Config, error) {
	c := New()
	if err := c.LoadFromFile(path); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.Log.ConfigureWithLevelString("", false)
	return c, nil
}

func (c *Config) LoadFromFile(path string) error {
	c.File = path

	k := koanf.New(".")

	defaults := map[string]any{
		"log.level":                        "info",
		"log.format":                       "text",
		"log.disable_timestamps":           false,
		"options.base_directory":           "",
		"options.plugins":                  []string{},
		"options.plugin_dirs":              []string{},
		"options.disable_built_in_plugins": false,
		"options.only":                     []string{},
		"options.skip":                     []string{},
		"options.exit_on_failure":          false,
		"options.env_files":                []string{},
		"options.lock_file":                "",
	}

	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("setting default %s: %w", key, err)
		}
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Debug("config file not found, using defaults", "path", path)
		} else {
			return fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Unmarshal("", c); err != nil {
		return fmt.Errorf("unmarshalling config: %w", err)
	}

	return nil
}

func (c *Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	if err := c.Options.Validate(); err != nil {
		return fmt.Errorf("options config: %w", err)
	}
	return nil
}
