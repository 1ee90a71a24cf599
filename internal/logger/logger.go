package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the level, the encoder ("json" or "console") and the sink.
// A TUI owns the terminal, so a non-empty Path sends logs to that file
// (created with its directory, appended to) instead of stderr.
type Config struct {
	Level    string
	Encoding string
	Path     string
}

// New builds a zap.Logger using the provided configuration. The returned
// cleanup flushes the logger and closes the log file.
func New(cfg Config) (*zap.Logger, func(), error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var level zapcore.Level
	if level.Set(cfg.Level) != nil {
		level = zapcore.InfoLevel // empty or unknown
	}

	var encoder zapcore.Encoder
	switch cfg.Encoding {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	default:
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	var sink zapcore.WriteSyncer
	closeSink := func() {}
	if cfg.Path == "" {
		sink = zapcore.Lock(os.Stderr)
	} else {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		sink = zapcore.Lock(f)
		closeSink = func() { f.Close() }
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(sink), level)
	log := zap.New(core, zap.AddCaller())

	cleanup := func() {
		_ = log.Sync()
		closeSink()
	}
	return log, cleanup, nil
}
