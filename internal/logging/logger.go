package logging

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger   *zap.Logger
	loggerMu sync.RWMutex
)

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "VOXSYNC_LOG_LEVEL"

// Options controls where log output goes
type Options struct {
	// Level is one of debug, info, warn, error. Empty falls back to VOXSYNC_LOG_LEVEL.
	Level string

	// File, when set, sends output to a size-rotated file instead of stdout.
	// The dashboard always uses a file because stdout belongs to the screen.
	File string

	// MaxSizeMB is the rotation threshold for File (default 10)
	MaxSizeMB int

	// MaxBackups is the number of rotated files to keep (default 3)
	MaxBackups int
}

// Initialize creates a new logger with the specified level.
// If level is empty, it checks VOXSYNC_LOG_LEVEL environment variable.
// If neither is set, logging is disabled (silent mode).
func Initialize(level string) error {
	return InitializeWithOptions(Options{Level: level})
}

// InitializeWithOptions creates a new logger writing to stdout or a rotating file
func InitializeWithOptions(opts Options) error {
	level := opts.Level
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	// If still no level, use silent mode (nop logger)
	if level == "" {
		setLogger(zap.NewNop())
		return nil
	}

	zapLevel, err := ParseLevel(level)
	if err != nil {
		// Unknown level - use info as default when explicitly set to something
		zapLevel = zapcore.InfoLevel
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	if opts.File == "" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

		config := zap.Config{
			Level:            zap.NewAtomicLevelAt(zapLevel),
			Development:      false,
			Encoding:         "console",
			EncoderConfig:    encoderConfig,
			OutputPaths:      []string{"stdout"},
			ErrorOutputPaths: []string{"stderr"},
		}

		l, err := config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		setLogger(l)
		return nil
	}

	// Colors make no sense in a file
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	maxBackups := opts.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 3
	}

	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     28,
	})

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), sink, zap.NewAtomicLevelAt(zapLevel))
	setLogger(zap.New(core, zap.AddCaller()))
	return nil
}

// ParseLevel converts a level name to a zap level
func ParseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// InitializeFromEnv initializes the logger from the VOXSYNC_LOG_LEVEL
// environment variable. This is the recommended way to initialize logging
// for CLI commands that want silent mode by default.
func InitializeFromEnv() error {
	return Initialize("")
}

// SetLogger replaces the global logger. Tests use it with zaptest/observer cores.
func SetLogger(l *zap.Logger) {
	setLogger(l)
}

func setLogger(l *zap.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l == nil {
		// Fallback to silent logger if not initialized
		// This ensures no unexpected log output in CLI commands
		return zap.NewNop()
	}
	return l
}

// Named returns a child logger tagged with a component name
func Named(component string) *zap.Logger {
	return GetLogger().Named(component)
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// LogConnection logs an event channel lifecycle event
func LogConnection(url string, event string, fields ...zap.Field) {
	Info("Channel event", append([]zap.Field{
		zap.String("url", url),
		zap.String("event", event),
	}, fields...)...)
}

// LogFrame logs an inbound event channel frame
func LogFrame(url string, messageType string, data []byte) {
	fields := []zap.Field{
		zap.String("url", url),
		zap.String("type", messageType),
		zap.Int("length", len(data)),
	}

	// Frame bodies arrive every second, only dump them at debug level
	if GetLogger().Core().Enabled(zapcore.DebugLevel) {
		fields = append(fields, zap.String("content", truncate(data, 512)))
	}

	Debug("Channel frame", fields...)
}

// LogRequest logs a completed REST round trip
func LogRequest(requestID, method, path string, status int, elapsed time.Duration, err error) {
	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		Warn("API request failed", append(fields, zap.Error(err))...)
		return
	}
	Debug("API request", fields...)
}

// LogPush logs a state push decided by the synchronizer
func LogPush(entity string, reason string, fields ...zap.Field) {
	Debug("State push", append([]zap.Field{
		zap.String("entity", entity),
		zap.String("reason", reason),
	}, fields...)...)
}

func truncate(data []byte, limit int) string {
	if len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}

// Sync flushes any buffered log entries
func Sync() {
	_ = GetLogger().Sync()
}
