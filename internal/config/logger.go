package config

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// InitLogger initializes the global zap logger. With a log dir it tees the
// console output into combined.log and error.log, both size-rotated.
func InitLogger(cfg LogConfig) error {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}

	var consoleEnc zapcore.Encoder
	if cfg.Format == "console" {
		consoleEnc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		consoleEnc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stdout), level),
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return eris.Wrapf(err, "config: create log dir %s", cfg.Dir)
		}
		fileEnc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores,
			zapcore.NewCore(fileEnc, rotatingFile(cfg, "combined.log", cfg.MaxAgeDays), level),
			zapcore.NewCore(fileEnc, rotatingFile(cfg, "error.log", cfg.MaxAgeDays), zapcore.ErrorLevel),
		)
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).
		With(zap.String("service", "kviz-leads"))
	zap.ReplaceGlobals(logger)

	return nil
}

// NewAnalyticsLogger returns the logger analytics events are written to:
// analytics.log with its own retention, or the global logger when no log
// dir is configured.
func NewAnalyticsLogger(cfg LogConfig) (*zap.Logger, error) {
	if cfg.Dir == "" {
		return zap.L().Named("analytics"), nil
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "config: create log dir %s", cfg.Dir)
	}

	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewCore(enc, rotatingFile(cfg, "analytics.log", cfg.AnalyticsMaxAgeDays), zapcore.InfoLevel)
	return zap.New(core).With(zap.String("service", "kviz-leads"), zap.String("type", "analytics")), nil
}

func rotatingFile(cfg LogConfig, name string, maxAge int) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename: filepath.Join(cfg.Dir, name),
		MaxSize:  cfg.MaxSizeMB,
		MaxAge:   maxAge,
	})
}
