package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/channel-mirror/internal/channel"
)

// Validate 针对语义级别做进一步校验，防止非法配置进入同步流程。
// 通道列表允许为空：sync/verify/build 各自要求的数量由调用方检查。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", "无法识别的日志级别 "+g.LogLevel)
	}
	switch g.LogFormat {
	case "", LogFormatJSON, LogFormatText:
	default:
		return newFieldError("Global.LogFormat", "仅支持 json/text")
	}
	if g.CachePath == "" {
		return newFieldError("Global.CachePath", "不能为空")
	}
	if isFilesystemRoot(g.CachePath) {
		return newFieldError("Global.CachePath", "不能是文件系统根目录")
	}
	if g.Jobs < 1 {
		return newFieldError("Global.Jobs", "必须大于 0")
	}
	if g.FetchTimeout.DurationValue() <= 0 {
		return newFieldError("Global.FetchTimeout", "必须大于 0")
	}
	if g.Host != "" {
		if err := validateHost(g.Host); err != nil {
			return fmt.Errorf("Global.Host: %w", err)
		}
	}

	seen := map[channel.Channel]struct{}{}
	for i := range c.Channels {
		ch := &c.Channels[i]
		if ch.Name == "" {
			return newFieldError("Channel[].Name", "不能为空")
		}
		parsed, err := channel.Parse(ch.Name)
		if err != nil {
			return fmt.Errorf("%s: %w", channelField(ch.Name, "Name"), err)
		}
		if _, exists := seen[parsed]; exists {
			return newFieldError(channelField(ch.Name, "Name"), "重复")
		}
		seen[parsed] = struct{}{}

		if ch.Manifest == "" {
			return newFieldError(channelField(ch.Name, "Manifest"), "不能为空")
		}
	}

	return nil
}

// isFilesystemRoot 报告路径是否指向文件系统根目录；sync 会清理根目录下所有未列出的文件。
func isFilesystemRoot(p string) bool {
	clean := filepath.Clean(p)
	return clean == filepath.VolumeName(clean)+string(filepath.Separator)
}

func validateHost(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，Host: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("Host 缺少主机名: %s", raw)
	}
	return nil
}

// ParsedChannels 返回按配置顺序解析好的通道，假定 Validate 已经通过。
func (c *Config) ParsedChannels() ([]channel.Channel, error) {
	result := make([]channel.Channel, 0, len(c.Channels))
	for _, ch := range c.Channels {
		parsed, err := channel.Parse(ch.Name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", channelField(ch.Name, "Name"), err)
		}
		result = append(result, parsed)
	}
	return result, nil
}
