package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the global structured logger. Packages log through the helper
// functions below so call sites stay uniform (snake_case event name plus
// key/value pairs).
var Log *zap.SugaredLogger

// Init initializes the global logger at Info level, honoring env overrides.
func Init() {
	InitWithLevel("")
}

// InitWithLevel initializes the global logger with the provided level
// ("debug", "info", "warn", "error"). An empty level falls back to the
// INTROCHAT_LOG_LEVEL environment variable, then Info.
func InitWithLevel(level string) {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		lvl = strings.ToLower(strings.TrimSpace(os.Getenv("INTROCHAT_LOG_LEVEL")))
	}
	var zl zapcore.Level
	switch lvl {
	case "debug":
		zl = zapcore.DebugLevel
	case "warn", "warning":
		zl = zapcore.WarnLevel
	case "error":
		zl = zapcore.ErrorLevel
	default:
		zl = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	sink := zapcore.Lock(os.Stdout)
	// Allow redirecting logs to a file via env for tests and production,
	// e.g. INTROCHAT_LOG_SINK=file:/var/log/introchat.log
	if s := os.Getenv("INTROCHAT_LOG_SINK"); strings.HasPrefix(s, "file:") {
		path := strings.TrimPrefix(s, "file:")
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640); err == nil {
			sink = zapcore.Lock(f)
		}
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, zl)
	Log = zap.New(core).Sugar()
}

// Sync flushes any buffered log entries.
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}

// Debug logs with key/value pairs.
func Debug(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Debugw(msg, args...)
}

// Info logs with key/value pairs.
func Info(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Infow(msg, args...)
}

// Warn logs with key/value pairs.
func Warn(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Warnw(msg, args...)
}

// Error logs with key/value pairs.
func Error(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Errorw(msg, args...)
}
