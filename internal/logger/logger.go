package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.SugaredLogger
type Logger struct {
	*zap.SugaredLogger
}

// L is the process-wide logger for mains and scripts. Library code takes a
// *Logger through its constructor instead.
var L = Nop()

// New builds a JSON production logger, or a console development logger when debug is set.
func New(debug bool) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}

	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true

	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return &Logger{SugaredLogger: zapLogger.Sugar()}, nil
}

// Init replaces L. Falls back to a no-op logger if zap cannot be built.
func Init(debug bool) *Logger {
	l, err := New(debug)
	if err != nil {
		l = Nop()
	}
	L = l
	return l
}

func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// FromZap is used by tests with an observer core.
func FromZap(z *zap.Logger) *Logger {
	return &Logger{SugaredLogger: z.Sugar()}
}

func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With("component", component)}
}

// WithUser tags entries with a masked user id.
func (l *Logger) WithUser(userID string) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With("user", MaskID(userID))}
}

// MaskID keeps the first four characters of an id.
func MaskID(id string) string {
	if len(id) <= 4 {
		return "****"
	}
	return id[:4] + "****"
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}
