package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level represents log level
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	default:
		return "ERROR"
	}
}

// Config holds logger configuration
type Config struct {
	Level  string
	Format string // "text" (default) or "json"
	Output io.Writer
}

// Logger is a leveled logger with a component name and sticky fields.
type Logger struct {
	level     Level
	json      bool
	component string
	fields    []Field
	logger    *log.Logger
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value interface{}
}

// New creates a new logger
func New(cfg Config) *Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	return &Logger{
		level:  parseLevel(cfg.Level),
		json:   strings.EqualFold(cfg.Format, "json"),
		logger: log.New(output, "", log.LstdFlags),
	}
}

// WithComponent returns a child logger. Nested components are joined with a
// dot, so modem.WithComponent("3") logs as [modem.3].
func (l *Logger) WithComponent(component string) *Logger {
	child := l.clone()
	if l.component != "" {
		component = l.component + "." + component
	}
	child.component = component
	prefix := ""
	if !l.json {
		prefix = fmt.Sprintf("[%s] ", component)
	}
	child.logger = log.New(l.logger.Writer(), prefix, log.LstdFlags)
	return child
}

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields ...Field) *Logger {
	child := l.clone()
	child.fields = append(child.fields, fields...)
	return child
}

// Enabled reports whether entries at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return l.level <= level
}

func (l *Logger) clone() *Logger {
	c := *l
	c.fields = append([]Field(nil), l.fields...)
	return &c
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...Field) {
	l.log(DebugLevel, msg, fields...)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...Field) {
	l.log(InfoLevel, msg, fields...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...Field) {
	l.log(WarnLevel, msg, fields...)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...Field) {
	l.log(ErrorLevel, msg, fields...)
}

func (l *Logger) log(level Level, msg string, fields ...Field) {
	if !l.Enabled(level) {
		return
	}
	all := fields
	if len(l.fields) > 0 {
		all = append(append([]Field(nil), l.fields...), fields...)
	}

	if l.json {
		entry := map[string]interface{}{"level": level.String(), "msg": msg}
		if l.component != "" {
			entry["component"] = l.component
		}
		for _, f := range all {
			entry[f.Key] = f.Value
		}
		data, err := json.Marshal(entry)
		if err != nil {
			l.logger.Printf(`{"level":"ERROR","msg":"log marshal failed","error":%q}`, err.Error())
			return
		}
		l.logger.Print(string(data))
		return
	}

	if len(all) == 0 {
		l.logger.Printf("[%s] %s", level, msg)
		return
	}

	parts := make([]string, 0, len(all))
	for _, f := range all {
		parts = append(parts, fmt.Sprintf("%s=%v", f.Key, f.Value))
	}
	l.logger.Printf("[%s] %s %s", level, msg, strings.Join(parts, " "))
}

func parseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// String creates a string field
func String(key, val string) Field {
	return Field{Key: key, Value: val}
}

// Int creates an int field
func Int(key string, val int) Field {
	return Field{Key: key, Value: val}
}

// Bool creates a bool field
func Bool(key string, val bool) Field {
	return Field{Key: key, Value: val}
}

// Error creates an error field
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "nil"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Line creates a field holding an AT protocol line with its control
// characters spelled out, e.g. "+CREG: 1<CR>OK<CR>".
func Line(key, line string) Field {
	return Field{Key: key, Value: QuoteLine(line)}
}

// QuoteLine makes CR, LF and other control bytes visible.
func QuoteLine(line string) string {
	var b strings.Builder
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\r':
			b.WriteString("<CR>")
		case c == '\n':
			b.WriteString("<LF>")
		case c == 0x1a:
			b.WriteString("<CTRL-Z>")
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&b, "\\x%02x", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
