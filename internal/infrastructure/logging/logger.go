package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger and owns the sinks it writes to.
type Logger struct {
	*zap.Logger
	close func()
}

// Config defines logger configuration.
type Config struct {
	Level       string // "debug", "info", "warn", "error"; empty means info
	Development bool
	OutputPaths []string // zap sink URLs or file paths; empty means stderr
}

// New opens the configured sinks and builds a logger on them.
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}
	sink, closeSink, err := zap.Open(outputs...)
	if err != nil {
		return nil, fmt.Errorf("failed to open log output: %w", err)
	}
	errSink, closeErrSink, err := zap.Open("stderr")
	if err != nil {
		closeSink()
		return nil, fmt.Errorf("failed to open log error output: %w", err)
	}

	core := zapcore.NewCore(newEncoder(cfg.Development), sink, zap.NewAtomicLevelAt(level))
	opts := []zap.Option{zap.ErrorOutput(errSink), zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	}

	return &Logger{
		Logger: zap.New(core, opts...),
		close: func() {
			closeSink()
			closeErrSink()
		},
	}, nil
}

// newEncoder returns colored console output for development and JSON
// otherwise.
func newEncoder(development bool) zapcore.Encoder {
	if development {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(cfg)
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.MessageKey = "message"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(cfg)
}

// WithSession returns a child logger tagged with a session ID. The child
// shares the parent's sinks.
func (l *Logger) WithSession(sessionID string) *Logger {
	return &Logger{
		Logger: l.With(zap.String("session", sessionID)),
		close:  func() {},
	}
}

// Close flushes buffered entries and releases the sinks.
func (l *Logger) Close() error {
	err := l.Sync()
	if l.close != nil {
		l.close()
	}
	return err
}
