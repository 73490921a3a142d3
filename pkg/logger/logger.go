package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog behind a small structured-field API.
type Logger struct {
	zl        zerolog.Logger
	collector *Collector
}

// Config controls level, format and destination.
type Config struct {
	Level      string // debug, info, warn, error, fatal, panic
	Format     string // json or console
	Output     string // stdout, stderr, or file path
	TimeFormat string
}

// New builds a logger from config.
func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer
	switch cfg.Output {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file: %w", err)
		}
		output = file
	}

	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: cfg.TimeFormat,
		}
	}

	zl := zerolog.New(output).
		With().
		Timestamp().
		CallerWithSkipFrameCount(3).
		Logger()

	return &Logger{zl: zl}, nil
}

// Nop returns a logger that discards everything; handy in tests.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// WithCollector attaches an in-process ring collector so recent warnings and
// errors can be served from the diagnostics endpoint.
func (l *Logger) WithCollector(c *Collector) *Logger {
	l.collector = c
	return l
}

func (l *Logger) emit(event *zerolog.Event, level, msg string, fields []Field) {
	for _, f := range fields {
		f.AddTo(event)
	}
	event.Msg(msg)

	if l.collector != nil && (level == "warn" || level == "error") {
		fm := make(map[string]interface{}, len(fields))
		for _, f := range fields {
			k, v := f.KeyValue()
			fm[k] = v
		}
		l.collector.Add(level, msg, fm)
	}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.emit(l.zl.Debug(), "debug", msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.emit(l.zl.Info(), "info", msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.emit(l.zl.Warn(), "warn", msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.emit(l.zl.Error(), "error", msg, fields) }

// Fatal logs and exits. Reserved for unrecoverable startup failures such as
// an unreadable dedup store.
func (l *Logger) Fatal(msg string, fields ...Field) { l.emit(l.zl.Fatal(), "fatal", msg, fields) }

// Field is one structured key/value attachment.
type Field interface {
	AddTo(event *zerolog.Event)
	KeyValue() (string, interface{})
}

type stringField struct {
	key   string
	value string
}

func (f stringField) AddTo(e *zerolog.Event)          { e.Str(f.key, f.value) }
func (f stringField) KeyValue() (string, interface{}) { return f.key, f.value }

type intField struct {
	key   string
	value int
}

func (f intField) AddTo(e *zerolog.Event)          { e.Int(f.key, f.value) }
func (f intField) KeyValue() (string, interface{}) { return f.key, f.value }

type float64Field struct {
	key   string
	value float64
}

func (f float64Field) AddTo(e *zerolog.Event)          { e.Float64(f.key, f.value) }
func (f float64Field) KeyValue() (string, interface{}) { return f.key, f.value }

type errorField struct {
	value error
}

func (f errorField) AddTo(e *zerolog.Event) { e.Err(f.value) }
func (f errorField) KeyValue() (string, interface{}) {
	if f.value == nil {
		return "error", nil
	}
	return "error", f.value.Error()
}

type anyField struct {
	key   string
	value interface{}
}

func (f anyField) AddTo(e *zerolog.Event)          { e.Interface(f.key, f.value) }
func (f anyField) KeyValue() (string, interface{}) { return f.key, f.value }

type durationField struct {
	key   string
	value time.Duration
}

func (f durationField) AddTo(e *zerolog.Event)          { e.Dur(f.key, f.value) }
func (f durationField) KeyValue() (string, interface{}) { return f.key, f.value.String() }

// Field constructors.

func String(key, value string) Field                { return stringField{key: key, value: value} }
func Int(key string, value int) Field               { return intField{key: key, value: value} }
func Int64(key string, value int64) Field           { return anyField{key: key, value: value} }
func Float64(key string, value float64) Field       { return float64Field{key: key, value: value} }
func Error(err error) Field                         { return errorField{value: err} }
func Any(key string, value interface{}) Field       { return anyField{key: key, value: value} }
func Duration(key string, d time.Duration) Field    { return durationField{key: key, value: d} }
func Strings(key string, values []string) Field     { return String(key, strings.Join(values, ", ")) }
func Bool(key string, value bool) Field             { return anyField{key: key, value: value} }
func Uint64(key string, value uint64) Field         { return anyField{key: key, value: value} }
func Time(key string, t time.Time) Field            { return anyField{key: key, value: t} }
