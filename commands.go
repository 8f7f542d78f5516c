package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/any-hub/channel-mirror/internal/cache"
	"github.com/any-hub/channel-mirror/internal/channel"
	"github.com/any-hub/channel-mirror/internal/config"
	"github.com/any-hub/channel-mirror/internal/fetch"
	"github.com/any-hub/channel-mirror/internal/logging"
	"github.com/any-hub/channel-mirror/internal/manifest"
	"github.com/any-hub/channel-mirror/internal/version"
)

const configEnv = "CHANNEL_MIRROR_CONFIG"

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath string
	manifests  []string
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "channel-mirror",
		Short:         "维护 Rust 发布通道的本地镜像",
		Version:       version.Full(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return newUsageError("未知命令 %q", args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return newUsageError("需要指定子命令，参见 %s --help", cmd.CommandPath())
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "配置文件路径（可被 "+configEnv+" 覆盖）")
	flags.StringP("path", "p", "", "镜像根目录")
	flags.IntP("jobs", "j", 1, "并发下载数")
	flags.StringP("log-level", "l", "", "日志级别")
	flags.String("log-format", "", "日志格式 json/text")
	flags.String("log-file", "", "日志文件路径，留空输出到 stdout")
	flags.String("fetch-timeout", "", "单次下载超时，例如 90s")
	flags.String("user-agent", "", "上游请求使用的 User-Agent")

	root.AddCommand(
		newSyncCommand(opts, cache.ModeSync),
		newSyncCommand(opts, cache.ModeVerify),
		newBuildCommand(opts),
		newCheckConfigCommand(opts),
		newVersionCommand(),
	)
	return root
}

func newSyncCommand(opts *cliOptions, mode cache.Mode) *cobra.Command {
	short := "同步镜像：删除多余文件并补齐缺失或损坏的制品"
	if mode == cache.ModeVerify {
		short = "校验镜像：只补齐缺失或损坏的制品，不删除文件"
	}

	cmd := &cobra.Command{
		Use:   string(mode),
		Short: short,
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := openSession(cmd, opts, string(mode))
			if err != nil {
				return err
			}
			snapshots, err := sess.snapshots(opts.manifests)
			if err != nil {
				return err
			}
			if len(snapshots) != 1 {
				return newUsageError("%s 需要恰好一个通道清单，得到 %d 个", mode, len(snapshots))
			}
			engine, err := sess.engine()
			if err != nil {
				return err
			}
			if mode == cache.ModeVerify {
				return engine.Verify(cmd.Context(), snapshots[0])
			}
			return engine.Sync(cmd.Context(), snapshots[0])
		},
	}
	cmd.Flags().StringArrayVarP(&opts.manifests, "manifest", "m", nil, "通道清单，格式 CHANNEL=PATH")
	return cmd
}

func newBuildCommand(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(cache.ModeBuild),
		Short: "构建完整镜像，并发布改写后的清单与通道别名",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := openSession(cmd, opts, string(cache.ModeBuild))
			if err != nil {
				return err
			}
			snapshots, err := sess.snapshots(opts.manifests)
			if err != nil {
				return err
			}
			if len(snapshots) == 0 {
				return newUsageError("build 至少需要一个通道清单")
			}

			var host *url.URL
			if sess.cfg.Global.Host != "" {
				host, err = url.Parse(sess.cfg.Global.Host)
				if err != nil {
					return usageError{err: fmt.Errorf("无法解析 Host: %w", err)}
				}
			}

			engine, err := sess.engine()
			if err != nil {
				return err
			}
			return engine.Build(cmd.Context(), snapshots, host)
		},
	}
	cmd.Flags().StringArrayVarP(&opts.manifests, "manifest", "m", nil, "通道清单，格式 CHANNEL=PATH，可重复")
	cmd.Flags().String("host", "", "改写清单 URL 使用的镜像地址")
	return cmd
}

func newCheckConfigCommand(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "校验配置与清单（包括通道重叠检测）后退出，不修改镜像目录",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := openSession(cmd, opts, "check_config")
			if err != nil {
				return err
			}
			snapshots, err := sess.snapshots(opts.manifests)
			if err != nil {
				return err
			}
			plan, err := cache.BuildPlan(snapshots)
			if err != nil {
				return err
			}
			aliases, err := cache.SelectAliases(snapshots)
			if err != nil {
				return err
			}

			fields := logging.BaseFields("check_config", sess.configPath)
			fields["channels"] = config.ChannelNames(sess.channels)
			fields["artefacts"] = len(plan.Checksums)
			fields["aliases"] = len(aliases)
			fields["result"] = "ok"
			sess.logger.WithFields(fields).Info("配置校验通过")
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&opts.manifests, "manifest", "m", nil, "通道清单，格式 CHANNEL=PATH，可重复")
	return cmd
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return newUsageError("%s 不接受位置参数: %v", cmd.CommandPath(), args)
	}
	return nil
}

// resolveConfigPath 计算最终的配置路径：--config 优先于环境变量，两者都为空时不读取文件。
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(configEnv)
}

// session 是一次命令执行共享的配置与日志。
type session struct {
	cfg        *config.Config
	logger     *logrus.Logger
	configPath string
	// channels 是合并 --manifest 之后实际使用的通道列表。
	channels []config.ChannelConfig
}

func openSession(cmd *cobra.Command, opts *cliOptions, action string) (*session, error) {
	path := resolveConfigPath(opts.configPath)
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	fields := logging.BaseFields(action, path)
	fields["cache_path"] = cfg.Global.CachePath
	fields["jobs"] = cfg.Global.Jobs
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	return &session{cfg: cfg, logger: logger, configPath: path}, nil
}

// snapshots 合并配置文件中的 [[Channel]] 与 --manifest 参数并加载清单。
// 同一通道同时出现时以参数为准；合并结果按配置文件的规则重新校验。
func (s *session) snapshots(manifests []string) ([]cache.Snapshot, error) {
	entries, err := mergeChannels(s.cfg.Channels, manifests)
	if err != nil {
		return nil, err
	}

	merged := &config.Config{Global: s.cfg.Global, Channels: entries}
	if err := merged.Validate(); err != nil {
		return nil, usageError{err: err}
	}
	channels, err := merged.ParsedChannels()
	if err != nil {
		return nil, usageError{err: err}
	}
	s.channels = entries

	fsys := afero.NewOsFs()
	snapshots := make([]cache.Snapshot, 0, len(entries))
	for i, entry := range entries {
		m, err := manifest.Load(fsys, entry.Manifest)
		if err != nil {
			return nil, fmt.Errorf("加载通道 %s 的清单失败: %w", channels[i], err)
		}
		snapshots = append(snapshots, cache.Snapshot{Channel: channels[i], Manifest: m})
	}
	return snapshots, nil
}

func (s *session) engine() (*cache.Engine, error) {
	tree, err := cache.NewTree(afero.NewOsFs(), s.cfg.Global.CachePath)
	if err != nil {
		return nil, fmt.Errorf("初始化镜像目录失败: %w", err)
	}
	downloader := fetch.NewHTTPDownloader(fetch.NewUpstreamClient(s.cfg), s.cfg.Global.UserAgent)
	return cache.NewEngine(tree, downloader, s.logger, s.cfg.Global.Jobs)
}

func mergeChannels(configured []config.ChannelConfig, manifests []string) ([]config.ChannelConfig, error) {
	entries := append([]config.ChannelConfig(nil), configured...)
	for _, raw := range manifests {
		name, file, ok := strings.Cut(raw, "=")
		name, file = strings.TrimSpace(name), strings.TrimSpace(file)
		if !ok || name == "" || file == "" {
			return nil, newUsageError("--manifest 需要 CHANNEL=PATH 格式，得到 %q", raw)
		}
		ch, err := channel.Parse(name)
		if err != nil {
			return nil, usageError{err: err}
		}

		replaced := false
		for i := range entries {
			existing, err := channel.Parse(entries[i].Name)
			if err == nil && existing == ch {
				entries[i].Manifest = file
				replaced = true
				break
			}
		}
		if !replaced {
			entries = append(entries, config.ChannelConfig{Name: ch.String(), Manifest: file})
		}
	}
	return entries, nil
}
