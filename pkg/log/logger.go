package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	abesserrors "github.com/adaizjx/abess/pkg/errors"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

// SetupLogger installs a JSON slog default logger using Cloud Logging field names.
func SetupLogger(loglevel string) error {
	level, err := ToLogLevel(loglevel)
	if err != nil {
		return err
	}
	ops := slog.HandlerOptions{
		AddSource: true,
		Level:     level,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr = slog.Attr{Key: "severity", Value: attr.Value}
			case slog.MessageKey:
				attr = slog.Attr{Key: "message", Value: attr.Value}
			case slog.SourceKey:
				attr = slog.Attr{Key: "logging.googleapis.com/sourceLocation", Value: attr.Value}
			}
			return attr
		},
	}
	handler := slog.NewJSONHandler(os.Stdout, &ops)
	slog.SetDefault(slog.New(WrapByErrFmtHandler(handler)))
	return nil
}

// ToLogLevel parses "debug", "info", "warn" or "error".
func ToLogLevel(level string) (slog.Level, error) {
	switch level {
	case "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, abesserrors.NewValidationError("log_level", "must be one of debug, info, warn, error", level)
	}
}

// ===========================================================================
//
//	zerolog provider
//
// ===========================================================================

// ZerologProvider is the default LoggerProvider. It writes one JSON object per record.
type ZerologProvider struct {
	base  zerolog.Logger
	level *atomic.Int32
}

// NewZerologProvider writes to w at the given minimum level.
func NewZerologProvider(w io.Writer, level Level) *ZerologProvider {
	lv := &atomic.Int32{}
	lv.Store(int32(level))
	return &ZerologProvider{
		base:  zerolog.New(w).With().Timestamp().Logger(),
		level: lv,
	}
}

// GetLogger implements LoggerProvider.
func (p *ZerologProvider) GetLogger() Logger {
	return &zerologLogger{zl: p.base, level: p.level}
}

// GetLoggerWithName implements LoggerProvider.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	return &zerologLogger{zl: p.base.With().Str(ComponentKey, name).Logger(), level: p.level}
}

// SetLevel implements LoggerProvider. It applies to loggers already handed out.
func (p *ZerologProvider) SetLevel(level Level) {
	p.level.Store(int32(level))
}

type zerologLogger struct {
	zl    zerolog.Logger
	level *atomic.Int32
}

func (z *zerologLogger) Debug(msg string, fields ...any) { z.write(LevelDebug, msg, fields) }
func (z *zerologLogger) Info(msg string, fields ...any)  { z.write(LevelInfo, msg, fields) }
func (z *zerologLogger) Warn(msg string, fields ...any)  { z.write(LevelWarn, msg, fields) }
func (z *zerologLogger) Error(msg string, fields ...any) { z.write(LevelError, msg, fields) }

func (z *zerologLogger) With(fields ...any) Logger {
	return &zerologLogger{zl: z.zl.With().Fields(pairs(fields)).Logger(), level: z.level}
}

func (z *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return level >= Level(z.level.Load())
}

func (z *zerologLogger) write(level Level, msg string, fields []any) {
	if !z.Enabled(context.Background(), level) {
		return
	}
	var e *zerolog.Event
	switch level {
	case LevelDebug:
		e = z.zl.Debug()
	case LevelInfo:
		e = z.zl.Info()
	case LevelWarn:
		e = z.zl.Warn()
	default:
		e = z.zl.Error()
	}
	if len(fields)%2 == 1 {
		if err, ok := fields[0].(error); ok {
			e = withError(e, err)
			fields = fields[1:]
		}
	}
	e.Fields(pairs(fields)).Msg(msg)
}

// withError attaches err, its structured detail and its stack trace.
func withError(e *zerolog.Event, err error) *zerolog.Event {
	e = e.Str(ErrAttrKey, err.Error())
	var m zerolog.LogObjectMarshaler
	if errors.As(err, &m) {
		e = e.Object("detail", m)
	}
	if kind := abesserrors.KindOf(err); kind != abesserrors.KindUnknown {
		e = e.Str(ErrorKindKey, string(kind))
	}
	if st := extractStacktrace(err); st != "" {
		e = e.Str(StacktraceAttrKey, st)
	}
	return e
}

// pairs drops a dangling key and stringifies non-string keys.
func pairs(fields []any) []any {
	out := make([]any, 0, len(fields)&^1)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprint(fields[i])
		}
		out = append(out, key, fields[i+1])
	}
	return out
}

// ===========================================================================
//
//	Global provider
//
// ===========================================================================

var (
	providerMu sync.RWMutex
	provider   LoggerProvider = NewZerologProvider(os.Stderr, LevelWarn)
)

func init() {
	abesserrors.SetZerologWarnFunc(func(w error) {
		GetLogger().Warn("warning", w, ErrorTypeKey, fmt.Sprintf("%T", w))
	})
}

// SetProvider replaces the global provider. Loggers already obtained keep the old one.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	provider = p
}

// GetLogger returns the default logger of the global provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a component logger of the global provider.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLoggerWithName(name)
}

// SetLevel sets the level of the global provider.
func SetLevel(level Level) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	provider.SetLevel(level)
}
