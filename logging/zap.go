package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLoggerProvider 把日志转发给 zap。
type ZapLoggerProvider struct {
	base  *zap.Logger
	level zap.AtomicLevel
}

// NewZapLoggerProvider 用现有的 zap.Logger 创建提供者；base 为 nil 时使用生产配置。
func NewZapLoggerProvider(base *zap.Logger) (*ZapLoggerProvider, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if base == nil {
		cfg := zap.NewProductionConfig()
		cfg.Level = level
		l, err := cfg.Build(zap.AddCallerSkip(2))
		if err != nil {
			return nil, err
		}
		base = l
	}
	return &ZapLoggerProvider{base: base, level: level}, nil
}

func (p *ZapLoggerProvider) CreateLogger(category string) Logger {
	l := p.base
	if category != "" {
		l = l.Named(category)
	}
	return &zapLogger{l: l}
}

func (p *ZapLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.level.SetLevel(zapLevel(level))
}

// Close 刷新 zap 缓冲。
func (p *ZapLoggerProvider) Close() error {
	_ = p.base.Sync()
	return nil
}

func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogLevelTrace, LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	case LogLevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InvalidLevel
	}
}

type zapLogger struct {
	l *zap.Logger
}

func zapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = zap.Any(f.Key, f.Value)
	}
	return out
}

func (z *zapLogger) Trace(msg string, fields ...Field) { z.l.Debug(msg, zapFields(fields)...) }
func (z *zapLogger) Debug(msg string, fields ...Field) { z.l.Debug(msg, zapFields(fields)...) }
func (z *zapLogger) Info(msg string, fields ...Field)  { z.l.Info(msg, zapFields(fields)...) }
func (z *zapLogger) Warn(msg string, fields ...Field)  { z.l.Warn(msg, zapFields(fields)...) }
func (z *zapLogger) Error(msg string, fields ...Field) { z.l.Error(msg, zapFields(fields)...) }
func (z *zapLogger) Fatal(msg string, fields ...Field) { z.l.Fatal(msg, zapFields(fields)...) }

func (z *zapLogger) Log(level LogLevel, msg string, fields ...Field) {
	if level >= LogLevelNone {
		return
	}
	if ce := z.l.Check(zapLevel(level), msg); ce != nil {
		ce.Write(zapFields(fields)...)
	}
}

func (z *zapLogger) WithFields(fields ...Field) Logger {
	return &zapLogger{l: z.l.With(zapFields(fields)...)}
}

func (z *zapLogger) WithCategory(category string) Logger {
	return &zapLogger{l: z.l.Named(category)}
}
