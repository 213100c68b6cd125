// Package logger provides structured logging for the signer.
//
// Log lines carry identifiers only (record id, user id, pubkey, auth method,
// derivation index). Credentials, derived keys, shares and seeds have no
// field helper here and must never be passed to Str.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Field names shared by every component
const (
	FieldOp         = "op"
	FieldRecordID   = "record_id"
	FieldUserID     = "user_id"
	FieldAPIKeyID   = "api_key_id"
	FieldPubkey     = "pubkey"
	FieldAuthMethod = "auth_method"
	FieldIndex      = "index"
	FieldDuration   = "duration"
)

// Logger wraps zerolog.Logger
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string

	// Output is where logs are written (default: os.Stderr)
	Output io.Writer

	// Pretty enables human-readable console output
	Pretty bool

	// TimeFormat for timestamps (default: RFC3339)
	TimeFormat string

	// CallerEnabled adds file and line number to logs
	CallerEnabled bool
}

// DefaultConfig returns default logger configuration
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Output:     os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

// New creates a logger. An unknown level is an error rather than a silent
// fallback so a typo in configuration does not turn debug logging off.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if cfg.Pretty {
		tf := cfg.TimeFormat
		if tf == "" {
			tf = time.RFC3339
		}
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: tf,
		}
	}

	zlog := zerolog.New(output).Level(level).With().Timestamp().Logger()

	if cfg.CallerEnabled {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}, nil
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// ParseLevel converts a level name to zerolog.Level. Empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	level = strings.TrimSpace(strings.ToLower(level))
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

// With creates a child logger with additional context
func (l *Logger) With() *Context {
	return &Context{zctx: l.zlog.With()}
}

// Op returns a child logger tagged with an operation name
func (l *Logger) Op(name string) *Logger {
	return l.With().Str(FieldOp, name).Logger()
}

// Context provides fluent API for adding fields to logs
type Context struct {
	zctx zerolog.Context
}

// Str adds a string field
func (c *Context) Str(key, val string) *Context {
	c.zctx = c.zctx.Str(key, val)
	return c
}

// Stringer adds a field from a fmt.Stringer, such as a uuid or public key
func (c *Context) Stringer(key string, val fmt.Stringer) *Context {
	c.zctx = c.zctx.Stringer(key, val)
	return c
}

// Uint32 adds a uint32 field
func (c *Context) Uint32(key string, val uint32) *Context {
	c.zctx = c.zctx.Uint32(key, val)
	return c
}

// Logger returns the configured logger
func (c *Context) Logger() *Logger {
	return &Logger{zlog: c.zctx.Logger()}
}

// Event represents a log event
type Event struct {
	zevent *zerolog.Event
}

// Err adds an error field to the event
func (e *Event) Err(err error) *Event {
	e.zevent.AnErr("error", err)
	return e
}

// Dur adds a duration field to the event
func (e *Event) Dur(key string, val time.Duration) *Event {
	e.zevent.Dur(key, val)
	return e
}

// Msg completes the event with a message
func (e *Event) Msg(msg string) {
	e.zevent.Msg(msg)
}

// DebugEvent returns a debug event
func (l *Logger) DebugEvent() *Event {
	return &Event{zevent: l.zlog.Debug()}
}

// WarnEvent returns a warn event
func (l *Logger) WarnEvent() *Event {
	return &Event{zevent: l.zlog.Warn()}
}

// Redact keeps the first four characters of an identifier that should not
// appear in full, such as an API key id.
func Redact(id string) string {
	if len(id) == 0 {
		return "<empty>"
	}
	if len(id) <= 8 {
		return "<redacted>"
	}
	return id[:4] + "...<redacted>"
}
