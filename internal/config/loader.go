package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys 将 CLI 标志名映射到配置键，标志显式设置时覆盖文件中的值。
var flagKeys = map[string]string{
	"log-level":     "LogLevel",
	"log-format":    "LogFormat",
	"log-file":      "LogFilePath",
	"path":          "CachePath",
	"jobs":          "Jobs",
	"host":          "Host",
	"fetch-timeout": "FetchTimeout",
	"user-agent":    "UserAgent",
}

// Load 读取可选的 TOML 配置文件并合并 CLI 标志，同时注入默认值与校验逻辑。
// path 为空时只使用默认值与标志。
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	if err := bindFlags(v, flags); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	for i := range cfg.Channels {
		applyChannelDefaults(&cfg.Channels[i], path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absCache, err := filepath.Abs(cfg.Global.CachePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.Global.CachePath = absCache

	return &cfg, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("绑定参数 --%s 失败: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", LogFormatJSON)
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("CachePath", "./mirror")
	v.SetDefault("Jobs", 1)
	v.SetDefault("Host", "")
	v.SetDefault("FetchTimeout", "5m")
	v.SetDefault("UserAgent", "")
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.FetchTimeout.DurationValue() == 0 {
		g.FetchTimeout = Duration(5 * time.Minute)
	}
	g.Host = strings.TrimSpace(g.Host)
	g.LogLevel = strings.ToLower(strings.TrimSpace(g.LogLevel))
	g.LogFormat = strings.ToLower(strings.TrimSpace(g.LogFormat))
}

// applyChannelDefaults 将相对清单路径解析为相对配置文件所在目录。
func applyChannelDefaults(c *ChannelConfig, configPath string) {
	c.Name = strings.TrimSpace(c.Name)
	c.Manifest = strings.TrimSpace(c.Manifest)
	if c.Manifest == "" || filepath.IsAbs(c.Manifest) || configPath == "" {
		return
	}
	c.Manifest = filepath.Join(filepath.Dir(configPath), c.Manifest)
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			var d Duration
			if err := d.UnmarshalText([]byte(v)); err != nil {
				return nil, err
			}
			return d, nil
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
