// Package logger is a small structured JSON logger. Log lines carry a
// level, a message, an optional caller reference, and typed fields; child
// loggers created with With share the output and prepend their fields to
// every line.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEVELS
// ══════════════════════════════════════════════════════════════════════════════

// Level is the severity of a log line.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps a level name to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// FIELDS
// ══════════════════════════════════════════════════════════════════════════════

// Field is one key-value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field          { return Field{Key: key, Value: value} }
func Int(key string, value int) Field         { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field     { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field       { return Field{Key: key, Value: value} }
func Any(key string, value any) Field         { return Field{Key: key, Value: value} }

// Duration renders the duration in its human form ("1.5s"), not nanoseconds.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Err attaches an error under the "error" key.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Field helpers for the vocabulary of this service.
func LearnerID(id string) Field     { return String("learner_id", id) }
func ContentID(id string) Field     { return String("content_id", id) }
func Email(email string) Field      { return String("email", email) }
func EventKind(kind string) Field   { return String("event_kind", kind) }
func BadgeID(id string) Field       { return String("badge_id", id) }
func XPAmount(xp int) Field         { return Int("xp_amount", xp) }
func Component(name string) Field   { return String("component", name) }
func Operation(name string) Field   { return String("operation", name) }
func Latency(d time.Duration) Field { return Duration("latency", d) }

// ══════════════════════════════════════════════════════════════════════════════
// LOGGER
// ══════════════════════════════════════════════════════════════════════════════

// Options configures a Logger.
type Options struct {
	Output io.Writer
	Level  Level

	// AddCaller appends the file:line of the log call site.
	AddCaller bool
}

// DefaultOptions logs info and above to stdout with caller references.
func DefaultOptions() Options {
	return Options{
		Output:    os.Stdout,
		Level:     LevelInfo,
		AddCaller: true,
	}
}

// Logger writes JSON log lines. Safe for concurrent use; the mutex is
// shared between a logger and its With children so lines never interleave.
type Logger struct {
	mu        *sync.Mutex
	out       io.Writer
	level     Level
	base      []Field
	addCaller bool
}

// New creates a Logger from opts. A nil Output falls back to stdout.
func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	return &Logger{
		mu:        &sync.Mutex{},
		out:       out,
		level:     opts.Level,
		addCaller: opts.AddCaller,
	}
}

// Default returns a logger with default options.
func Default() *Logger {
	return New(DefaultOptions())
}

// With returns a child logger whose lines always carry the given fields.
func (l *Logger) With(fields ...Field) *Logger {
	child := *l
	child.base = make([]Field, 0, len(l.base)+len(fields))
	child.base = append(child.base, l.base...)
	child.base = append(child.base, fields...)
	return &child
}

func (l *Logger) Debug(msg string, fields ...Field) { l.emit(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.emit(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.emit(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.emit(LevelError, msg, fields) }

type line struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Caller    string         `json:"caller,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

func (l *Logger) emit(level Level, msg string, fields []Field) {
	if level < l.level {
		return
	}

	entry := line{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
	}

	if l.addCaller {
		// Skip emit and the Debug/Info/Warn/Error wrapper.
		if _, file, lineNo, ok := runtime.Caller(2); ok {
			if idx := strings.LastIndex(file, "/"); idx >= 0 {
				file = file[idx+1:]
			}
			entry.Caller = fmt.Sprintf("%s:%d", file, lineNo)
		}
	}

	if n := len(l.base) + len(fields); n > 0 {
		entry.Fields = make(map[string]any, n)
		for _, f := range l.base {
			entry.Fields[f.Key] = f.Value
		}
		for _, f := range fields {
			entry.Fields[f.Key] = f.Value
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"timestamp":%q,"level":%q,"message":%q}`,
			entry.Timestamp, entry.Level, msg))
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Write(data)
}
