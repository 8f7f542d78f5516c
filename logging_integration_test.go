package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggingFallbackToStdout(t *testing.T) {
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

	logPath := filepath.Join(blocked, "sub", "channel-mirror.log")
	configPath := writeConfigFile(t, fmt.Sprintf(`
LogLevel = "info"
LogFilePath = "%s"
CachePath = "%s"
`, logPath, filepath.Join(dir, "mirror")))

	useBufferWriters(t)
	code := run(context.Background(), []string{"check-config", "--config", configPath})
	if code != 0 {
		t.Fatalf("日志 fallback 不应导致失败，得到 %d: %s", code, stdErrBuffer().String())
	}
}

func TestFlagsOverrideLogLevel(t *testing.T) {
	configPath := writeConfigFile(t, `LogLevel = "info"`)

	useBufferWriters(t)
	code := run(context.Background(), []string{"check-config", "--config", configPath, "--log-level", "verbose"})
	if code != 1 {
		t.Fatalf("非法日志级别应返回退出码 1，得到 %d", code)
	}
	if !strings.Contains(stdErrBuffer().String(), "LogLevel") {
		t.Fatalf("错误应指出 LogLevel 字段: %s", stdErrBuffer().String())
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(file, []byte(strings.TrimSpace(content)), 0o600); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	return file
}
