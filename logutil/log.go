package logutil

import (
	"strings"

	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap/zapcore"
)

// ErrInvalidLogLevel 日志级别无法识别。
var ErrInvalidLogLevel = errors.Normalize(
	"invalid log level %s",
	errors.RFCCodeText("UNIACTOR:ErrInvalidLogLevel"),
)

// Config 是日志配置。
type Config struct {
	// Level 日志级别：debug、info、warn、error
	Level string `toml:"level" json:"level"`
	// File 日志文件路径，为空时输出到标准输出
	File string `toml:"file" json:"file"`
	// Format 输出格式：text 或 json
	Format string `toml:"format" json:"format"`
}

// DefaultConfig 返回 info 级别、输出到标准输出的配置。
func DefaultConfig() *Config {
	return &Config{Level: "info", Format: "text"}
}

// Adjust 规范化并校验配置。
func (c *Config) Adjust() error {
	if c.Level == "" {
		c.Level = "info"
	}
	c.Level = strings.ToLower(c.Level)
	if _, err := parseLevel(c.Level); err != nil {
		return err
	}
	if c.Format == "" {
		c.Format = "text"
	}
	return nil
}

// InitLogger 按配置初始化全局日志。
func InitLogger(cfg *Config) error {
	lg, props, err := log.InitLogger(&log.Config{
		Level:  cfg.Level,
		Format: cfg.Format,
		File:   log.FileLogConfig{Filename: cfg.File},
	})
	if err != nil {
		return errors.Trace(err)
	}
	log.ReplaceGlobals(lg, props)
	return nil
}

// SetLogLevel 动态调整全局日志级别。
func SetLogLevel(level string) error {
	lv, err := parseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}
	if lv != log.GetLevel() {
		log.SetLevel(lv)
	}
	return nil
}

func parseLevel(level string) (zapcore.Level, error) {
	var lv zapcore.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		return lv, ErrInvalidLogLevel.GenWithStackByArgs(level)
	}
	return lv, nil
}
