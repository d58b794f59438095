// Package logging builds the service logger on zerolog and exposes it through
// the mono framework's types.Logger interface.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/example/realtime-chat/config"
)

const timeFormat = "2006-01-02 15:04:05.000"

// Logger adapts a zerolog.Logger to types.Logger.
type Logger struct {
	zl zerolog.Logger
}

var _ types.Logger = (*Logger)(nil)

// New builds a logger from cfg. Console output goes to stdout; when cfg.File
// is set the same events are also written to a rotating file.
func New(cfg config.LogConfig) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = timeFormat

	var out io.Writer = os.Stdout
	if cfg.Format != "json" {
		out = consoleWriter(os.Stdout, false)
	}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    5,
			MaxAge:     20,
			MaxBackups: 5,
			Compress:   true,
		}
		out = io.MultiWriter(out, file)
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl}, nil
}

// NewWithWriter builds a JSON logger writing to w. Used by tests.
func NewWithWriter(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{zl: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func consoleWriter(out io.Writer, noColor bool) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    noColor,
		TimeFormat: timeFormat,
		FormatTimestamp: func(i interface{}) string {
			return fmt.Sprintf("[%s]", i)
		},
		FormatLevel: func(i interface{}) string {
			s, _ := i.(string)
			return fmt.Sprintf("[%s]", strings.ToUpper(s))
		},
	}
}

// Zerolog returns the underlying zerolog logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

// Debug logs at debug level with key/value pairs.
func (l *Logger) Debug(msg string, args ...any) {
	l.zl.Debug().Fields(args).Msg(msg)
}

// Info logs at info level with key/value pairs.
func (l *Logger) Info(msg string, args ...any) {
	l.zl.Info().Fields(args).Msg(msg)
}

// Warn logs at warn level with key/value pairs.
func (l *Logger) Warn(msg string, args ...any) {
	l.zl.Warn().Fields(args).Msg(msg)
}

// Error logs at error level with key/value pairs.
func (l *Logger) Error(msg string, args ...any) {
	l.zl.Error().Fields(args).Msg(msg)
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(args ...any) types.Logger {
	return &Logger{zl: l.zl.With().Fields(args).Logger()}
}

// WithModule returns a child logger tagged with the module name.
func (l *Logger) WithModule(module string) types.Logger {
	return &Logger{zl: l.zl.With().Str("module", module).Logger()}
}

// WithError returns a child logger carrying err.
func (l *Logger) WithError(err error) types.Logger {
	return &Logger{zl: l.zl.With().Err(err).Logger()}
}
