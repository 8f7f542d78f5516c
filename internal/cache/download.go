package cache

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/any-hub/channel-mirror/internal/fetch"
	"github.com/any-hub/channel-mirror/internal/logging"
	"github.com/any-hub/channel-mirror/internal/manifest"
)

// DownloadStats 汇总一批下载中实际拉取与跳过的数量。
type DownloadStats struct {
	Downloaded int64
	Skipped    int64
}

// Orchestrator 以至多 jobs 个并发执行"校验 → 拉取 → 校验 → 写入"。
type Orchestrator struct {
	tree       *Tree
	downloader fetch.Downloader
	logger     *logrus.Logger
	jobs       int
}

// NewOrchestrator 构造下载调度器；jobs 小于 1 时按 1 处理。
func NewOrchestrator(tree *Tree, downloader fetch.Downloader, logger *logrus.Logger, jobs int) *Orchestrator {
	if jobs < 1 {
		jobs = 1
	}
	return &Orchestrator{tree: tree, downloader: downloader, logger: logger, jobs: jobs}
}

// Run 处理全部描述，完成顺序不确定。第一个错误取消尚未开始的任务并返回给调用方，
// 已在进行中的任务可以结束但结果被丢弃；不存在部分成功的返回值。
func (o *Orchestrator) Run(ctx context.Context, descriptors []Descriptor) (DownloadStats, error) {
	var (
		downloaded atomic.Int64
		skipped    atomic.Int64
		aborted    atomic.Bool
	)

	p := pool.New().
		WithMaxGoroutines(o.jobs).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	for _, d := range descriptors {
		if aborted.Load() {
			break
		}
		d := d
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fetched, err := o.syncOne(ctx, d)
			if err != nil {
				aborted.Store(true)
				return err
			}
			if fetched {
				downloaded.Add(1)
			} else {
				skipped.Add(1)
			}
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return DownloadStats{}, err
	}
	return DownloadStats{Downloaded: downloaded.Load(), Skipped: skipped.Load()}, nil
}

// syncOne 返回是否真正发起了下载。
func (o *Orchestrator) syncOne(ctx context.Context, d Descriptor) (bool, error) {
	source := d.URL.String()

	exists, err := o.tree.Exists(d.Path)
	if err != nil {
		return false, newError(KindFileSystem, d.Path, err)
	}
	if exists {
		if d.Checksum == nil {
			o.log(source, d.Path, false).Debug("artefact_skipped")
			return false, nil
		}
		actual, err := o.tree.Checksum(d.Path)
		if err != nil {
			return false, newError(KindFileSystem, d.Path, err)
		}
		if actual == *d.Checksum {
			o.log(source, d.Path, true).Info("artefact_skipped")
			return false, nil
		}
		o.log(source, d.Path, true).
			WithField("actual", actual.String()).
			Warn("artefact_corrupt")
	}

	body, err := o.downloader.Fetch(ctx, &d.URL.URL)
	if err != nil {
		return false, classifyFetchError(ctx, source, err)
	}

	if d.Checksum != nil && manifest.Sum(body) != *d.Checksum {
		return false, newError(KindBadChecksum, source, nil)
	}

	if err := o.tree.Put(ctx, d.Path, body); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, newError(KindFileSystem, d.Path, err)
	}

	o.log(source, d.Path, d.Checksum != nil).WithField("bytes", len(body)).Info("artefact_downloaded")
	return true, nil
}

func (o *Orchestrator) log(source, rel string, verified bool) *logrus.Entry {
	logger := o.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return logger.WithFields(logging.ArtefactFields(source, rel, verified))
}

func classifyFetchError(ctx context.Context, source string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, fetch.ErrUnsupportedScheme) {
		return newError(KindUnsupportedScheme, source, err)
	}
	return newError(KindHTTP, source, err)
}
