package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	amlerrors "github.com/YuminosukeSato/automltrain/pkg/errors"
)

// ZerologLogger implements Logger on top of zerolog.
type ZerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger creates a logger writing JSON lines to w.
func NewZerologLogger(w io.Writer, level Level) *ZerologLogger {
	zl := zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &ZerologLogger{zl: zl}
}

// NewNopLogger returns a logger that discards every entry.
func NewNopLogger() *ZerologLogger {
	return &ZerologLogger{zl: zerolog.Nop()}
}

// Debug implements Logger.Debug.
func (l *ZerologLogger) Debug(msg string, fields ...any) {
	l.emit(l.zl.Debug(), msg, fields)
}

// Info implements Logger.Info.
func (l *ZerologLogger) Info(msg string, fields ...any) {
	l.emit(l.zl.Info(), msg, fields)
}

// Warn implements Logger.Warn.
func (l *ZerologLogger) Warn(msg string, fields ...any) {
	l.emit(l.zl.Warn(), msg, fields)
}

// Error implements Logger.Error. A leading error value is logged under
// "error" together with its stack trace.
func (l *ZerologLogger) Error(msg string, fields ...any) {
	l.emit(l.zl.Error(), msg, fields)
}

// With implements Logger.With.
func (l *ZerologLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	err, rest := splitLeadingError(fields)
	if err != nil {
		ctx = ctx.AnErr("error", err)
	}
	for i := 0; i+1 < len(rest); i += 2 {
		ctx = ctx.Interface(fmt.Sprint(rest[i]), rest[i+1])
	}
	return &ZerologLogger{zl: ctx.Logger()}
}

// Enabled implements Logger.Enabled.
func (l *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	return l.zl.GetLevel() <= toZerologLevel(level)
}

func (l *ZerologLogger) emit(e *zerolog.Event, msg string, fields []any) {
	if e == nil {
		return
	}
	err, rest := splitLeadingError(fields)
	if err != nil {
		e = e.Err(err)
		if trace := extractStacktrace(err); trace != "" {
			e = e.Str(StacktraceKey, trace)
		}
		if kind := amlerrors.Kind(err); kind != amlerrors.KindUnknown {
			e = e.Str(ErrorKindKey, kind)
		}
	}
	for i := 0; i+1 < len(rest); i += 2 {
		key := fmt.Sprint(rest[i])
		switch v := rest[i+1].(type) {
		case zerolog.LogObjectMarshaler:
			e = e.Object(key, v)
		case error:
			e = e.AnErr(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	e.Msg(msg)
}

func splitLeadingError(fields []any) (error, []any) {
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			return err, fields[1:]
		}
	}
	return nil, fields
}

// extractStacktrace returns the first safe detail recorded by
// cockroachdb/errors, which holds the stack captured at WithStack time.
func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// ParseLevel converts "debug", "info", "warn" or "error" to a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, amlerrors.NewValidationError("log-level", "must be one of debug, info, warn, error", level)
	}
}

// ===========================================================================
//
//	Default provider
//
// ===========================================================================

type zerologProvider struct {
	mu     sync.RWMutex
	out    io.Writer
	level  Level
	logger *ZerologLogger
}

var defaultProvider = newZerologProvider(os.Stderr, LevelInfo)

func newZerologProvider(w io.Writer, level Level) *zerologProvider {
	return &zerologProvider{out: w, level: level, logger: NewZerologLogger(w, level)}
}

func (p *zerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.logger
}

func (p *zerologProvider) GetLoggerWithName(name string) Logger {
	return p.GetLogger().With(ComponentKey, name)
}

func (p *zerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = level
	p.logger = NewZerologLogger(p.out, level)
}

func (p *zerologProvider) setOutput(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out = w
	p.logger = NewZerologLogger(w, p.level)
}

// GetLogger returns the process-wide logger.
func GetLogger() Logger {
	return defaultProvider.GetLogger()
}

// GetLoggerWithName returns the process-wide logger tagged with a component name.
func GetLoggerWithName(name string) Logger {
	return defaultProvider.GetLoggerWithName(name)
}

// SetLevel changes the minimum level of the process-wide logger.
func SetLevel(level Level) {
	defaultProvider.SetLevel(level)
}

// Setup points the process-wide logger at w with the given level and routes
// library warnings (pkg/errors.Warn) through it.
func Setup(w io.Writer, level Level) {
	defaultProvider.setOutput(w)
	defaultProvider.SetLevel(level)

	amlerrors.SetZerologWarnFunc(func(warning error) {
		GetLoggerWithName("warnings").Warn(warning.Error(), "warning", warning)
	})
}
