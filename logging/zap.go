package logging

import (
	"maps"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger is the default Logger implementation backed by zap.
// Debug/Info go to stdout, Warn/Error to stderr, console encoding.
type ZapLogger struct {
	logger *zap.Logger
	level  zap.AtomicLevel
	fields Fields
}

// NewZapLogger creates a console logger at info level
func NewZapLogger() *ZapLogger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encoderCfg)

	stdout := zapcore.Lock(os.Stdout)
	stderr := zapcore.Lock(os.Stderr)

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, stdout, zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l < zapcore.WarnLevel && level.Enabled(l)
		})),
		zapcore.NewCore(encoder, stderr, zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= zapcore.WarnLevel && level.Enabled(l)
		})),
	)

	return &ZapLogger{
		logger: zap.New(core),
		level:  level,
		fields: make(Fields),
	}
}

func (z *ZapLogger) zapFields(extra []Fields) []zap.Field {
	merged := make(Fields, len(z.fields))
	maps.Copy(merged, z.fields)
	for _, f := range extra {
		maps.Copy(merged, f)
	}

	out := make([]zap.Field, 0, len(merged))
	for k, v := range merged {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func (z *ZapLogger) Debug(msg string, fields ...Fields) {
	z.logger.Debug(msg, z.zapFields(fields)...)
}

func (z *ZapLogger) Info(msg string, fields ...Fields) {
	z.logger.Info(msg, z.zapFields(fields)...)
}

func (z *ZapLogger) Warn(msg string, fields ...Fields) {
	z.logger.Warn(msg, z.zapFields(fields)...)
}

func (z *ZapLogger) Error(err error, msg string, fields ...Fields) {
	zf := z.zapFields(fields)
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	z.logger.Error(msg, zf...)
}

func (z *ZapLogger) WithFields(fields Fields) Logger {
	merged := make(Fields, len(z.fields)+len(fields))
	maps.Copy(merged, z.fields)
	maps.Copy(merged, fields)

	return &ZapLogger{
		logger: z.logger,
		level:  z.level,
		fields: merged,
	}
}

func (z *ZapLogger) SetLevel(level Level) {
	switch level {
	case DebugLevel:
		z.level.SetLevel(zapcore.DebugLevel)
	case InfoLevel:
		z.level.SetLevel(zapcore.InfoLevel)
	case WarnLevel:
		z.level.SetLevel(zapcore.WarnLevel)
	case ErrorLevel:
		z.level.SetLevel(zapcore.ErrorLevel)
	}
}
