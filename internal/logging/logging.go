// Package logging 构建各命令共用的 zap 日志记录器。
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New 创建 JSON 格式的生产日志记录器
// 参数 level: 日志级别，无法识别时使用 info
// 返回: 日志记录器；构建失败时返回 Nop 记录器
func New(level string) *zap.Logger {
	cfg := Config(level)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// Config 返回 New 使用的 zap 配置
// 时间字段为 ts，ISO8601 格式
func Config(level string) zap.Config {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}
