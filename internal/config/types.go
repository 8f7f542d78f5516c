package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 解析 Go Duration 字符串（"30s"、"5m"）或纯数字秒值（"45"、"1.5"）。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(seconds * float64(time.Second)))
		return nil
	}

	return fmt.Errorf("无法解析 Duration 字段: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// 日志输出格式。
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// GlobalConfig 描述一次运行的全局参数，所有通道共享同一份设置。
type GlobalConfig struct {
	LogLevel      string   `mapstructure:"LogLevel"`
	LogFormat     string   `mapstructure:"LogFormat"`
	LogFilePath   string   `mapstructure:"LogFilePath"`
	LogMaxSize    int      `mapstructure:"LogMaxSize"`
	LogMaxBackups int      `mapstructure:"LogMaxBackups"`
	LogCompress   bool     `mapstructure:"LogCompress"`
	CachePath     string   `mapstructure:"CachePath"`
	Jobs          int      `mapstructure:"Jobs"`
	Host          string   `mapstructure:"Host"`
	FetchTimeout  Duration `mapstructure:"FetchTimeout"`
	UserAgent     string   `mapstructure:"UserAgent"`
}

// ChannelConfig 将通道标识与本地清单文件绑定，例如 nightly:2024-01-02 → ./nightly.toml。
type ChannelConfig struct {
	Name     string `mapstructure:"Name"`
	Manifest string `mapstructure:"Manifest"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global   GlobalConfig    `mapstructure:",squash"`
	Channels []ChannelConfig `mapstructure:"Channel"`
}

// ChannelNames 返回配置中的通道字符串，供日志字段使用。
func ChannelNames(channels []ChannelConfig) []string {
	if len(channels) == 0 {
		return nil
	}
	result := make([]string, len(channels))
	for i, ch := range channels {
		result[i] = ch.Name
	}
	return result
}
