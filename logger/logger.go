package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config 日志输出配置
type Config struct {
	File       string `yaml:"file" json:"file"`             // 为空则只输出到控制台
	Level      string `yaml:"level" json:"level"`           // debug/info/warn/error
	MaxSizeMB  int    `yaml:"maxSizeMB" json:"maxSizeMB"`   // 单文件上限
	MaxBackups int    `yaml:"maxBackups" json:"maxBackups"` // 保留的旧文件数
	MaxAgeDays int    `yaml:"maxAgeDays" json:"maxAgeDays"`
	Console    bool   `yaml:"console" json:"console"` // 同时输出到 stdout
}

// DefaultConfig 10MB 每文件，保留 3 个备份，7 天
func DefaultConfig() Config {
	return Config{
		File:       "mazerush.log",
		Level:      "info",
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 7,
		Console:    true,
	}
}

// ParseLevel 解析日志级别，空串视为 info
func ParseLevel(s string) (zapcore.Level, error) {
	if strings.TrimSpace(s) == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return lvl, fmt.Errorf("logger: unknown level %q", s)
	}
	return lvl, nil
}

// New 构建 zap 日志：文件按大小滚动（lumberjack），可选同时打到控制台
func New(cfg Config) (*zap.SugaredLogger, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}
	// 控制台风格更易读
	encoder := zapcore.NewConsoleEncoder(encCfg)

	var cores []zapcore.Core
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(lj), lvl))
	}
	if cfg.Console || cfg.File == "" {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), lvl))
	}

	// 添加调用者信息（文件:行号）
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Sugar(), nil
}

// Sync 刷新缓冲；stdout 上的 Sync 错误忽略
func Sync(log *zap.SugaredLogger) {
	if log != nil {
		_ = log.Sync()
	}
}
