// Package logging defines the structured logging sink every component
// depends on via the Logger interface, and a zerolog-backed
// implementation. Components take a Logger through their constructor;
// there is no package-level global, so tests can inject a no-op or
// recording sink.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Level mirrors the original engine's four-level taxonomy.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARNING
	EXCEPTION
)

func (l Level) zerolog() zerolog.Level {
	switch l {
	case DEBUG:
		return zerolog.DebugLevel
	case INFO:
		return zerolog.InfoLevel
	case WARNING:
		return zerolog.WarnLevel
	case EXCEPTION:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// KV is one key/value pair attached to a log line. Values are logged with
// their natural zerolog type where one exists (int, string, error, etc.)
// and fall back to zerolog's Interface encoding (JSON marshaling) otherwise.
type KV struct {
	Key   string
	Value interface{}
}

// Logger is the capability every package logs through. Passing one in via
// a constructor (rather than reaching for a global) keeps the handshake/
// reliability/server/client packages free of import-time side effects and
// lets tests substitute a recording or discarding sink.
type Logger interface {
	Log(level Level, message string, kv ...KV)
}

// ZerologLogger backs Logger with zerolog, matching the console-in-dev,
// JSON-in-prod split common across the example corpus's services.
type ZerologLogger struct {
	z zerolog.Logger
}

// Option configures a ZerologLogger.
type Option func(*zerolog.Logger)

// New builds a ZerologLogger writing to w (defaults to stderr). Pass
// WithConsole for human-readable dev output; omit it for raw JSON lines
// suited to log aggregation.
func New(w io.Writer, minLevel Level, opts ...Option) *ZerologLogger {
	if w == nil {
		w = os.Stderr
	}
	z := zerolog.New(w).With().Timestamp().Logger().Level(minLevel.zerolog())
	for _, opt := range opts {
		opt(&z)
	}
	return &ZerologLogger{z: z}
}

// WithConsole switches the output to zerolog's human-friendly console
// formatter writing to os.Stderr (in place of the w given to New),
// matching local `go run` output rather than aggregated JSON.
func WithConsole() Option {
	return func(z *zerolog.Logger) {
		*z = z.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// With returns a logger that always attaches the given fields, matching
// the per-connection context (player_id, address) the server/client
// dispatchers carry through their whole lifetime.
func (l *ZerologLogger) With(kv ...KV) *ZerologLogger {
	ctx := l.z.With()
	for _, p := range kv {
		ctx = attach(ctx, p)
	}
	return &ZerologLogger{z: ctx.Logger()}
}

func (l *ZerologLogger) Log(level Level, message string, kv ...KV) {
	ev := l.z.WithLevel(level.zerolog())
	for _, p := range kv {
		ev = attachEvent(ev, p)
	}
	ev.Msg(message)
}

func attach(ctx zerolog.Context, p KV) zerolog.Context {
	switch v := p.Value.(type) {
	case string:
		return ctx.Str(p.Key, v)
	case error:
		return ctx.AnErr(p.Key, v)
	case int:
		return ctx.Int(p.Key, v)
	case int64:
		return ctx.Int64(p.Key, v)
	case uint64:
		return ctx.Uint64(p.Key, v)
	case uint32:
		return ctx.Uint32(p.Key, v)
	case uint16:
		return ctx.Uint16(p.Key, v)
	case float32:
		return ctx.Float32(p.Key, v)
	case bool:
		return ctx.Bool(p.Key, v)
	default:
		return ctx.Interface(p.Key, v)
	}
}

func attachEvent(ev *zerolog.Event, p KV) *zerolog.Event {
	switch v := p.Value.(type) {
	case string:
		return ev.Str(p.Key, v)
	case error:
		return ev.AnErr(p.Key, v)
	case int:
		return ev.Int(p.Key, v)
	case int64:
		return ev.Int64(p.Key, v)
	case uint64:
		return ev.Uint64(p.Key, v)
	case uint32:
		return ev.Uint32(p.Key, v)
	case uint16:
		return ev.Uint16(p.Key, v)
	case float32:
		return ev.Float32(p.Key, v)
	case bool:
		return ev.Bool(p.Key, v)
	default:
		return ev.Interface(p.Key, v)
	}
}

// Nop discards every log line; used in tests that assert on behavior, not
// log output.
type Nop struct{}

func (Nop) Log(Level, string, ...KV) {}
