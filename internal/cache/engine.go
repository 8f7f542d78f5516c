package cache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/channel-mirror/internal/fetch"
	"github.com/any-hub/channel-mirror/internal/logging"
	"github.com/any-hub/channel-mirror/internal/manifest"
)

// Stage 是一次运行的状态机节点：
// Init → BuildDesiredSet → Prune → Download → Normalize → WriteManifests → Done，
// 任一阶段失败直接进入 Failed，已写入的文件不会回滚。
type Stage string

const (
	StageInit            Stage = "init"
	StageBuildDesiredSet Stage = "build_desired_set"
	StagePrune           Stage = "prune"
	StageDownload        Stage = "download"
	StageNormalize       Stage = "normalize"
	StageWriteManifests  Stage = "write_manifests"
	StageDone            Stage = "done"
	StageFailed          Stage = "failed"
)

// Mode 区分三种运行方式。
type Mode string

const (
	// ModeSync 清理多余文件并补齐缺失/损坏的制品。
	ModeSync Mode = "sync"
	// ModeVerify 只补齐缺失/损坏的制品，不删除任何文件。
	ModeVerify Mode = "verify"
	// ModeBuild 在 sync 的基础上发布改写后的清单与别名。
	ModeBuild Mode = "build"
)

// checksumSuffix 是清单摘要旁路文件的后缀。
const checksumSuffix = ".sha256"

var errNoSnapshots = errors.New("no channel manifests given")

// Engine 串联期望集合、清理、下载、改写与别名发布。
type Engine struct {
	tree       *Tree
	downloader fetch.Downloader
	logger     *logrus.Logger
	jobs       int
}

// NewEngine 构造引擎。downloader 由调用方显式注入，便于测试替换传输层。
func NewEngine(tree *Tree, downloader fetch.Downloader, logger *logrus.Logger, jobs int) (*Engine, error) {
	if tree == nil {
		return nil, errors.New("cache tree required")
	}
	if downloader == nil {
		return nil, errors.New("downloader required")
	}
	if jobs < 1 {
		return nil, fmt.Errorf("jobs must be positive, got %d", jobs)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{tree: tree, downloader: downloader, logger: logger, jobs: jobs}, nil
}

// Sync 将镜像同步为单个清单描述的内容。
func (e *Engine) Sync(ctx context.Context, snap Snapshot) error {
	return e.newRun(ModeSync).sync(ctx, []Snapshot{snap}, true)
}

// Verify 重新下载缺失或损坏的制品，不在清单中的文件保持不变。
func (e *Engine) Verify(ctx context.Context, snap Snapshot) error {
	return e.newRun(ModeVerify).sync(ctx, []Snapshot{snap}, false)
}

// Build 基于多个通道构建完整镜像；host 非空时清单 URL 改写到该主机。
func (e *Engine) Build(ctx context.Context, snapshots []Snapshot, host *url.URL) error {
	return e.newRun(ModeBuild).build(ctx, snapshots, host)
}

type run struct {
	engine *Engine
	log    *logrus.Entry
	stage  Stage
}

func (e *Engine) newRun(mode Mode) *run {
	fields := logging.RunFields(logging.NewRunID(), string(mode), e.tree.Root())
	return &run{engine: e, log: e.logger.WithFields(fields), stage: StageInit}
}

func (r *run) enter(stage Stage) {
	r.stage = stage
	r.log.WithField("stage", stage).Info("stage")
}

// fail 记录失败阶段，并把阶段名附加到错误上，错误类别保持可判定。
func (r *run) fail(err error) error {
	failed := r.stage
	r.stage = StageFailed
	r.log.WithError(err).WithFields(logrus.Fields{
		"stage":       StageFailed,
		"failed_from": failed,
		"kind":        KindOf(err),
	}).Error("stage")
	return fmt.Errorf("%s: %w", failed, err)
}

func (r *run) sync(ctx context.Context, snapshots []Snapshot, prune bool) error {
	r.enter(StageBuildDesiredSet)
	plan, err := BuildPlan(snapshots)
	if err != nil {
		return r.fail(err)
	}

	if prune {
		if err := r.prune(ctx, plan.Preserve()); err != nil {
			return r.fail(err)
		}
	}

	if err := r.download(ctx, plan); err != nil {
		return r.fail(err)
	}

	r.enter(StageDone)
	return nil
}

func (r *run) build(ctx context.Context, snapshots []Snapshot, host *url.URL) error {
	r.enter(StageBuildDesiredSet)
	if len(snapshots) == 0 {
		return r.fail(errNoSnapshots)
	}
	plan, err := BuildPlan(snapshots)
	if err != nil {
		return r.fail(err)
	}
	aliases, err := SelectAliases(snapshots)
	if err != nil {
		return r.fail(err)
	}

	keep := plan.Preserve()
	for _, snap := range snapshots {
		if err := reservePublished(plan, keep, snap.Channel.ManifestPath()); err != nil {
			return r.fail(err)
		}
	}
	for _, name := range aliasNames(aliases) {
		if err := reservePublished(plan, keep, aliases[name].Channel.AliasPath()); err != nil {
			return r.fail(err)
		}
	}

	if err := r.prune(ctx, keep); err != nil {
		return r.fail(err)
	}
	if err := r.download(ctx, plan); err != nil {
		return r.fail(err)
	}

	r.enter(StageNormalize)
	normalized := make(map[string]*manifest.Manifest, len(snapshots))
	for _, snap := range snapshots {
		m, err := Normalize(snap, host)
		if err != nil {
			return r.fail(err)
		}
		normalized[snap.Channel.String()] = m
	}

	r.enter(StageWriteManifests)
	for _, snap := range snapshots {
		rel := snap.Channel.ManifestPath()
		if err := r.publish(ctx, rel, normalized[snap.Channel.String()]); err != nil {
			return r.fail(err)
		}
		r.log.WithFields(logrus.Fields{"channel": snap.Channel.String(), "path": rel}).Info("manifest_written")
	}
	for _, name := range aliasNames(aliases) {
		snap := aliases[name]
		rel := snap.Channel.AliasPath()
		if err := r.publish(ctx, rel, normalized[snap.Channel.String()]); err != nil {
			return r.fail(err)
		}
		r.log.WithFields(logrus.Fields{"alias": name, "channel": snap.Channel.String(), "path": rel}).Info("alias_written")
	}

	r.enter(StageDone)
	return nil
}

func (r *run) prune(ctx context.Context, keep map[string]struct{}) error {
	r.enter(StagePrune)
	stats, err := Prune(ctx, r.engine.tree, keep, r.engine.logger)
	if err != nil {
		return err
	}
	r.log.WithFields(logrus.Fields{
		"files":       stats.Files,
		"symlinks":    stats.Symlinks,
		"directories": stats.Directories,
	}).Info("pruned cache")
	return nil
}

func (r *run) download(ctx context.Context, plan *Plan) error {
	r.enter(StageDownload)
	descriptors := plan.Descriptors()
	r.log.WithFields(logrus.Fields{
		"channels":  len(plan.Channels()),
		"artefacts": len(descriptors),
	}).Info("found artefacts")

	orchestrator := NewOrchestrator(r.engine.tree, r.engine.downloader, r.engine.logger, r.engine.jobs)
	stats, err := orchestrator.Run(ctx, descriptors)
	if err != nil {
		return err
	}
	r.log.WithFields(logrus.Fields{
		"downloaded": stats.Downloaded,
		"skipped":    stats.Skipped,
	}).Info("synchronised cache")
	return nil
}

// publish 写入清单及其 .sha256 旁路文件（"<hex>  <file>\n"）。
func (r *run) publish(ctx context.Context, rel string, m *manifest.Manifest) error {
	data, err := manifest.Encode(m)
	if err != nil {
		return err
	}
	if err := r.engine.tree.Put(ctx, rel, data); err != nil {
		return newError(KindFileSystem, rel, err)
	}
	sidecar := fmt.Sprintf("%s  %s\n", manifest.Sum(data), path.Base(rel))
	if err := r.engine.tree.Put(ctx, rel+checksumSuffix, []byte(sidecar)); err != nil {
		return newError(KindFileSystem, rel+checksumSuffix, err)
	}
	return nil
}

func reservePublished(plan *Plan, keep map[string]struct{}, rel string) error {
	for _, p := range []string{rel, rel + checksumSuffix} {
		if err := plan.Reserve(p); err != nil {
			return err
		}
		keep[p] = struct{}{}
	}
	return nil
}
