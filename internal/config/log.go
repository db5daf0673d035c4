package config

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

var logFormatters = map[string]log.Formatter{
	"text":   log.TextFormatter,
	"json":   log.JSONFormatter,
	"logfmt": log.LogfmtFormatter,
}

// Log is the logging section of the config file.
type Log struct {
	// Level is one of debug, info, warn, error, fatal; --log-level overrides it.
	Level string `koanf:"level"`
	// Format is one of text, json, logfmt.
	Format string `koanf:"format"`
	// DisableTimestamps drops timestamps; --log-disable-timestamps overrides it.
	DisableTimestamps bool `koanf:"disable_timestamps"`

	ParsedLevel     log.Level     `koanf:"-"`
	ParsedFormatter log.Formatter `koanf:"-"`
}

func (l *Log) Validate() (err error) {
	l.ParsedLevel, err = log.ParseLevel(l.Level)
	if err != nil {
		return fmt.Errorf("log.level must be one of debug, info, warn, error, fatal - got: %s", l.Level)
	}

	var ok bool
	l.ParsedFormatter, ok = logFormatters[l.Format]
	if !ok {
		return fmt.Errorf("log.format must be one of text, json, logfmt - got: %s", l.Format)
	}

	return nil
}

// SetLoggerDefaults styles the global logger. Called from cmd init so errors
// raised before the config is loaded look the same as the rest.
func SetLoggerDefaults() {
	log.SetTimeFunction(log.NowUTC)
	log.SetTimeFormat("15:04:05.000")

	styles := log.DefaultStyles()
	styles.Timestamp = lipgloss.NewStyle().Faint(true)
	styles.Prefix = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	styles.Key = lipgloss.NewStyle().Faint(true)

	styles.Levels[log.DebugLevel] = styles.Levels[log.DebugLevel].Foreground(lipgloss.Color("244"))
	styles.Levels[log.InfoLevel] = styles.Levels[log.InfoLevel].Foreground(lipgloss.Color("42"))
	styles.Levels[log.WarnLevel] = styles.Levels[log.WarnLevel].Foreground(lipgloss.Color("214"))
	styles.Levels[log.ErrorLevel] = styles.Levels[log.ErrorLevel].Foreground(lipgloss.Color("196"))
	styles.Levels[log.FatalLevel] = styles.Levels[log.FatalLevel].Foreground(lipgloss.Color("199"))

	log.SetStyles(styles)
}

// SetOutput sends log output to w, keeping it apart from the output of
// commands that echo to stdout.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// ConfigureWithLevelString applies the config to the global logger. A
// non-empty logLevel overrides the configured level.
func (l *Log) ConfigureWithLevelString(logLevel string, disableTimestampsOverride bool) {
	if logLevel != "" && logLevel != l.Level {
		parsedLevel, err := log.ParseLevel(logLevel)
		if err != nil {
			log.Error("invalid level, using "+l.Level, "invalid_level", logLevel, "error", err)
		} else {
			l.Level = logLevel
			l.ParsedLevel = parsedLevel
		}
	}

	log.SetLevel(l.ParsedLevel)
	log.SetFormatter(l.ParsedFormatter)
	log.SetReportTimestamp(!(l.DisableTimestamps || disableTimestampsOverride))

	SetLoggerDefaults()
}
