package logger

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kateleext/hunknav/internal/config"
)

// LogFormat represents available log formats
type LogFormat int

const (
	FormatJSON LogFormat = iota
	FormatConsole
)

// ParseFormat maps a config string to a LogFormat, defaulting to JSON
func ParseFormat(s string) LogFormat {
	if strings.EqualFold(s, "console") {
		return FormatConsole
	}
	return FormatJSON
}

// LoggerBuilder builds a zerolog.Logger from config.LogConfig
type LoggerBuilder struct {
	cfg    config.LogConfig
	writer io.Writer
}

// NewLoggerBuilder creates a builder with default log configuration
func NewLoggerBuilder() *LoggerBuilder {
	return &LoggerBuilder{cfg: config.NewDefaultLogConfig()}
}

// WithConfig sets the logger configuration
func (lb *LoggerBuilder) WithConfig(cfg config.LogConfig) *LoggerBuilder {
	lb.cfg = cfg
	return lb
}

// WithWriter sends output to w instead of the configured file
func (lb *LoggerBuilder) WithWriter(w io.Writer) *LoggerBuilder {
	lb.writer = w
	return lb
}

// Build creates the logger.
// Without a log file or writer the logger is disabled; the terminal belongs to the UI.
func (lb *LoggerBuilder) Build() (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(lb.cfg.LogLevel))
	if err != nil || lb.cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	out := lb.writer
	if out == nil {
		if lb.cfg.LogFile == "" {
			return zerolog.Nop(), nil
		}
		out, err = lb.fileWriter()
		if err != nil {
			return zerolog.Nop(), err
		}
	}

	if ParseFormat(lb.cfg.LogFormat) == FormatConsole {
		out = zerolog.ConsoleWriter{Out: out, NoColor: true}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// fileWriter opens a rotating log file
func (lb *LoggerBuilder) fileWriter() (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(lb.cfg.LogFile), 0o755); err != nil {
		return nil, errors.Join(errors.New("cannot create log directory"), err)
	}

	maxSize := lb.cfg.MaxLogSizeMB
	if maxSize <= 0 {
		maxSize = config.DefaultMaxLogSizeMB
	}

	return &lumberjack.Logger{
		Filename:   lb.cfg.LogFile,
		MaxSize:    maxSize,
		MaxBackups: lb.cfg.MaxLogBackups,
		LocalTime:  true,
	}, nil
}

// New builds a logger from cfg
func New(cfg config.LogConfig) (zerolog.Logger, error) {
	return NewLoggerBuilder().WithConfig(cfg).Build()
}
