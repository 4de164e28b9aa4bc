package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// LogConfig 日志输出配置
type LogConfig struct {
	File    string `mapstructure:"file" json:"file"`
	Level   string `mapstructure:"level" json:"level"`
	Console bool   `mapstructure:"console" json:"console"`
}

// Config 中继服务配置
type Config struct {
	Addr         string        `mapstructure:"addr" json:"addr"`                   // TCP 监听地址
	WSAddr       string        `mapstructure:"ws_addr" json:"ws_addr"`             // WebSocket 监听地址，空表示不启用
	AdminAddr    string        `mapstructure:"admin_addr" json:"admin_addr"`       // 管理与监控 HTTP，空表示不启用
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout"` // 单次写超时，0 表示不设置
	Notices      bool          `mapstructure:"notices" json:"notices"`             // 控制台生命周期提示
	Log          LogConfig     `mapstructure:"log" json:"log"`
}

// DefaultConfig 返回内置默认值
func DefaultConfig() *Config {
	return &Config{
		Addr:    ":7777",
		Notices: true,
		Log: LogConfig{
			File:    "relay.log",
			Level:   "info",
			Console: true,
		},
	}
}

// LoadConfig 依次合并默认值、配置文件 relay.yaml（可选）与 RELAY_ 前缀的环境变量。
// configPath 为空时在当前目录与 config/ 下查找。
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	def := DefaultConfig()
	v.SetDefault("addr", def.Addr)
	v.SetDefault("ws_addr", def.WSAddr)
	v.SetDefault("admin_addr", def.AdminAddr)
	v.SetDefault("write_timeout", def.WriteTimeout)
	v.SetDefault("notices", def.Notices)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.console", def.Log.Console)

	v.SetConfigName("relay")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("config")

	v.SetEnvPrefix("relay")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查配置是否可用
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("write_timeout must not be negative, got %s", c.WriteTimeout)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	return nil
}
