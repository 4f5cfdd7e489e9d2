package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"api-path-tester/internal/types"
)

// Logger provides logging functionality
type Logger struct {
	*zap.Logger
	file *os.File
}

// Config holds logger configuration
type Config struct {
	Dir     string
	Level   string
	Verbose bool
}

// NewLogger creates a logger writing JSON lines to a timestamped file in cfg.Dir
// and human readable lines to stdout
func NewLogger(cfg Config) (*Logger, error) {
	level := parseLevel(cfg.Level)
	if cfg.Verbose {
		level = zapcore.DebugLevel
	}

	console := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig(zapcore.CapitalLevelEncoder)),
		zapcore.AddSync(os.Stdout),
		level,
	)

	if cfg.Dir == "" {
		return &Logger{Logger: zap.New(console)}, nil
	}

	// Create log directory if it doesn't exist
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(cfg.Dir, fmt.Sprintf("run_%s.log", timestamp))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig(zapcore.LowercaseLevelEncoder)),
		zapcore.AddSync(file),
		zapcore.DebugLevel,
	)

	return &Logger{
		Logger: zap.New(zapcore.NewTee(console, fileCore)),
		file:   file,
	}, nil
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Close flushes buffered entries and closes the log file
func (l *Logger) Close() error {
	_ = l.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// LogStep logs the outcome of a single HTTP step
func (l *Logger) LogStep(step types.StepResult) {
	fields := []zap.Field{
		zap.String("step", step.Step),
		zap.Int("status_code", step.StatusCode),
		zap.Duration("duration", step.Duration),
	}
	if step.StatusCode >= 400 {
		l.Warn("step failed", append(fields, zap.Any("response", step.Response))...)
		return
	}
	l.Info("step succeeded", fields...)
	l.Debug("step exchange", zap.String("step", step.Step), zap.Any("payload", step.Payload), zap.Any("response", step.Response))
}

// LogVerdict logs the final verdict of an executed path
func (l *Logger) LogVerdict(path types.Path, useInvalidData bool, verdict types.Verdict) {
	fields := []zap.Field{
		zap.String("path", path.String()),
		zap.Bool("invalid_data", useInvalidData),
		zap.String("status", string(verdict.Status)),
		zap.Int("steps", len(verdict.Details)),
	}
	if verdict.Reason != "" {
		fields = append(fields, zap.String("reason", verdict.Reason))
	}
	l.Info("path finished", fields...)
}

func encoderConfig(levelEncoder zapcore.LevelEncoder) zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    levelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
