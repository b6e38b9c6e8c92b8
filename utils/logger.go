package utils

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/cppla/myblog/config"
)

var (
	// Logger is a no-op until InitLogger runs, so packages may log from tests.
	Logger = zap.NewNop()
	Sugar  = Logger.Sugar()
)

// InitLogger writes JSON lines to stdout and, when LogPath is set, to a
// lumberjack rolling file. Unknown levels fall back to info.
func InitLogger(cfg config.AppConfig) error {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	enabled := zap.NewAtomicLevelAt(level)
	enc := zapcore.NewJSONEncoder(encoderConfig())

	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.Lock(os.Stdout), enabled)}
	if cfg.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
			return err
		}
		cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.AddSync(rollingFile(cfg)), enabled))
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if level == zapcore.DebugLevel {
		opts = append(opts, zap.Development())
	}
	Logger = zap.New(zapcore.NewTee(cores...), opts...)
	Sugar = Logger.Sugar()
	return nil
}

func encoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	ec.EncodeDuration = zapcore.MillisDurationEncoder
	return ec
}

func rollingFile(cfg config.AppConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.LogPath,
		MaxSize:    cfg.LogMaxSizeMB, // megabytes
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays, // days
		Compress:   cfg.LogCompress,
		LocalTime:  true,
	}
}

// durationField is shorthand for request and job timings.
func durationField(d time.Duration) zap.Field { return zap.Duration("elapsed", d) }
