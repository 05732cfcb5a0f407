// Package logger wraps zerolog behind a small interface so that packages do not
// depend on a concrete logging backend.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type (
	Logger interface {
		Debug(format string, args ...interface{})
		Info(format string, args ...interface{})
		Warning(format string, args ...interface{})
		Error(format string, args ...interface{})
		// ChangeLevel changes logger level to the newLevel
		ChangeLevel(newLevel LogLevel)
	}

	LogLevel uint

	// LogConfiguration is the on-disk logger configuration, loadable from YAML.
	LogConfiguration struct {
		DefaultLevel  string `yaml:"defaultLevel"`
		OutputPath    string `yaml:"outputPath"`
		ConsoleFormat bool   `yaml:"consoleFormat"`
		ShowCaller    bool   `yaml:"showCaller"`
	}

	zeroLogger struct {
		log   zerolog.Logger
		level LogLevel
	}
)

const (
	NONE LogLevel = iota
	ERROR
	WARNING
	INFO
	DEBUG
)

const consoleTimeFormat = "15:04:05.000000"

func LevelFromString(s string) LogLevel {
	switch s {
	case "NONE":
		return NONE
	case "ERROR":
		return ERROR
	case "WARNING":
		return WARNING
	case "INFO":
		return INFO
	case "DEBUG":
		return DEBUG
	default:
		return INFO
	}
}

// New creates a logger based on the given configuration. Output goes to stderr
// unless cfg.OutputPath names a file or one of the special values "stdout",
// "stderr", "discard".
func New(cfg *LogConfiguration) (Logger, error) {
	if cfg == nil {
		cfg = &LogConfiguration{}
	}
	out, err := output(cfg.OutputPath)
	if err != nil {
		return nil, err
	}
	if cfg.ConsoleFormat {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: consoleTimeFormat}
	}
	ctx := zerolog.New(out).With().Timestamp()
	if cfg.ShowCaller {
		ctx = ctx.Caller()
	}
	level := LevelFromString(cfg.DefaultLevel)
	return &zeroLogger{
		log:   ctx.Logger().Level(toZeroLevel(level)),
		level: level,
	}, nil
}

// LoadConfiguration reads logger configuration from a YAML file.
func LoadConfiguration(fileName string) (*LogConfiguration, error) {
	data, err := os.ReadFile(filepath.Clean(fileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read logger config file: %w", err)
	}
	cfg := &LogConfiguration{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal logger config: %w", err)
	}
	return cfg, nil
}

func output(path string) (io.Writer, error) {
	switch path {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	case "discard":
		return io.Discard, nil
	default:
		f, err := os.OpenFile(filepath.Clean(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // -rw-------
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return f, nil
	}
}

func (l *zeroLogger) Debug(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}

func (l *zeroLogger) Info(format string, args ...interface{}) {
	l.log.Info().Msgf(format, args...)
}

func (l *zeroLogger) Warning(format string, args ...interface{}) {
	l.log.Warn().Msgf(format, args...)
}

func (l *zeroLogger) Error(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}

func (l *zeroLogger) ChangeLevel(newLevel LogLevel) {
	l.level = newLevel
	l.log = l.log.Level(toZeroLevel(newLevel))
}

func toZeroLevel(level LogLevel) zerolog.Level {
	switch level {
	case NONE:
		return zerolog.Disabled
	case ERROR:
		return zerolog.ErrorLevel
	case WARNING:
		return zerolog.WarnLevel
	case INFO:
		return zerolog.InfoLevel
	case DEBUG:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
