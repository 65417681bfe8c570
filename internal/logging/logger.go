package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Level       string // DEBUG, INFO, WARN, ERROR
	Output      string // "stdout", "stderr", or a file path
	Component   string
	IncludeFile bool // include caller file:line
	JSONFormat  bool // JSON output instead of console-pretty
}

// Logger wraps a zerolog.Logger, carrying a component name and trace ID in
// the same shape the hand-rolled logger it replaces used to expose.
type Logger struct {
	zl        zerolog.Logger
	component string
	traceID   string
}

var (
	defaultLogger *Logger
	once          sync.Once
	defaultMu     sync.RWMutex
)

func parseLevel(s string) zerolog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "FATAL":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

func openOutput(dest string) io.Writer {
	switch dest {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	default:
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return os.Stdout
		}
		return f
	}
}

// New creates a new logger from the given configuration.
func New(cfg *Config) *Logger {
	var w io.Writer = openOutput(cfg.Output)
	if !cfg.JSONFormat {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(w).With().Timestamp()
	if cfg.Component != "" {
		ctx = ctx.Str("component", cfg.Component)
	}
	if cfg.IncludeFile {
		ctx = ctx.Caller()
	}

	zl := ctx.Logger().Level(parseLevel(cfg.Level))
	return &Logger{zl: zl, component: cfg.Component}
}

// Default returns the process-wide default logger, created lazily on first
// use if SetDefault was never called.
func Default() *Logger {
	once.Do(func() {
		defaultMu.Lock()
		defaultLogger = New(&Config{Level: "INFO", Output: "stdout", Component: "app", JSONFormat: true})
		defaultMu.Unlock()
	})
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the process-wide default logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

func (l *Logger) clone(zl zerolog.Logger) *Logger {
	return &Logger{zl: zl, component: l.component, traceID: l.traceID}
}

// WithComponent returns a derived logger tagged with the given component.
func (l *Logger) WithComponent(component string) *Logger {
	nl := l.clone(l.zl.With().Str("component", component).Logger())
	nl.component = component
	return nl
}

// WithTraceID returns a derived logger tagged with the given trace ID.
func (l *Logger) WithTraceID(traceID string) *Logger {
	nl := l.clone(l.zl.With().Str("trace_id", traceID).Logger())
	nl.traceID = traceID
	return nl
}

// WithField returns a derived logger carrying one extra structured field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.clone(l.zl.With().Interface(key, value).Logger())
}

// WithFields returns a derived logger carrying several extra fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zl.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return l.clone(ctx.Logger())
}

// WithError returns a derived logger carrying an error field.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.clone(l.zl.With().Err(err).Logger())
}

// WithDuration returns a derived logger carrying a duration field.
func (l *Logger) WithDuration(d time.Duration) *Logger {
	return l.clone(l.zl.With().Dur("duration", d).Logger())
}

func (l *Logger) Debug(msg string, args ...interface{}) { logKV(l.zl.Debug(), msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { logKV(l.zl.Info(), msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { logKV(l.zl.Warn(), msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { logKV(l.zl.Error(), msg, args...) }

// Fatal logs at fatal level and terminates the process.
func (l *Logger) Fatal(msg string, args ...interface{}) {
	logKV(l.zl.Fatal(), msg, args...)
}

// logKV accepts either trailing printf-style args or an even-length run of
// key/value pairs, matching the dual calling convention call sites already
// use throughout the codebase.
func logKV(ev *zerolog.Event, msg string, args ...interface{}) {
	if len(args) == 0 {
		ev.Msg(msg)
		return
	}
	if len(args)%2 == 0 {
		if _, ok := args[0].(string); ok {
			for i := 0; i < len(args); i += 2 {
				key, ok := args[i].(string)
				if !ok {
					continue
				}
				if err, isErr := args[i+1].(error); isErr {
					ev = ev.AnErr(key, err)
				} else {
					ev = ev.Interface(key, args[i+1])
				}
			}
			ev.Msg(msg)
			return
		}
	}
	ev.Msgf(msg, args...)
}

// Package-level convenience functions against the default logger.

func Debug(msg string, args ...interface{}) { Default().Debug(msg, args...) }
func Info(msg string, args ...interface{})  { Default().Info(msg, args...) }
func Warn(msg string, args ...interface{})  { Default().Warn(msg, args...) }
func Error(msg string, args ...interface{}) { Default().Error(msg, args...) }
func Fatal(msg string, args ...interface{}) { Default().Fatal(msg, args...) }

func WithComponent(component string) *Logger          { return Default().WithComponent(component) }
func WithTraceID(traceID string) *Logger               { return Default().WithTraceID(traceID) }
func WithField(key string, value interface{}) *Logger  { return Default().WithField(key, value) }
func WithFields(fields map[string]interface{}) *Logger { return Default().WithFields(fields) }
func WithError(err error) *Logger                      { return Default().WithError(err) }
