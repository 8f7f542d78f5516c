package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/channel-mirror/internal/config"
)

func TestConfigureDefaultsToStdout(t *testing.T) {
	logger, err := InitLogger(config.GlobalConfig{LogLevel: "info"})
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	if logger.Out != os.Stdout {
		t.Fatalf("未指定文件时应输出到 stdout")
	}
}

func TestInitLoggerFallbackOnPermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root 用户不受目录权限限制，无法触发日志 fallback")
	}
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	if err := os.Mkdir(blocked, 0o755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	if err := os.Chmod(blocked, 0o000); err != nil {
		t.Fatalf("设置目录权限失败: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(blocked, 0o755) })

	cfg := config.GlobalConfig{
		LogLevel:    "info",
		LogFilePath: filepath.Join(blocked, "sub", "channel-mirror.log"),
	}
	logger, err := InitLogger(cfg)
	if err != nil {
		t.Fatalf("初始化不应失败: %v", err)
	}
	if logger.Out != os.Stdout {
		t.Fatalf("fallback 时应退回 stdout")
	}
}

func TestConfigureCreatesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "channel-mirror.log")
	cfg := config.GlobalConfig{LogLevel: "debug", LogFilePath: path}
	logger, err := InitLogger(cfg)
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	logger.Info("test")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("预期创建日志文件: %v", err)
	}
}

func TestRunFieldsCarryRunID(t *testing.T) {
	id := NewRunID()
	fields := RunFields(id, "build", "/srv/mirror")
	if fields["run_id"] != id || fields["mode"] != "build" {
		t.Fatalf("字段缺失: %v", fields)
	}
	if NewRunID() == id {
		t.Fatalf("每次运行应生成不同的 run_id")
	}
}

func TestInitLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := InitLogger(config.GlobalConfig{LogLevel: "loud"}); err == nil {
		t.Fatalf("未知日志级别应返回错误")
	}
}

func TestInitLoggerTextFormat(t *testing.T) {
	logger, err := InitLogger(config.GlobalConfig{LogLevel: "info", LogFormat: config.LogFormatText})
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	if _, ok := logger.Formatter.(*logrus.TextFormatter); !ok {
		t.Fatalf("text 格式应使用 TextFormatter，得到 %T", logger.Formatter)
	}
	if _, err := InitLogger(config.GlobalConfig{LogLevel: "info", LogFormat: "xml"}); err == nil {
		t.Fatalf("未知日志格式应返回错误")
	}
}
