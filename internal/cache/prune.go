package cache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// PruneStats 汇总一次 Prune 删除的条目数量。
type PruneStats struct {
	Files       int
	Symlinks    int
	Directories int
}

// Prune 删除根目录下不在 keep 中的普通文件、所有符号链接，以及处理完子项后为空的目录。
// 根目录本身始终保留；根目录不存在视为无需清理。遍历是同步的，放在独立 goroutine
// 中执行，调用方等待其完成后才开始下载，保证删除不会与新写入竞争同一路径。
func Prune(ctx context.Context, tree *Tree, keep map[string]struct{}, logger *logrus.Logger) (PruneStats, error) {
	type result struct {
		stats PruneStats
		err   error
	}

	done := make(chan result, 1)
	go func() {
		p := &pruner{ctx: ctx, tree: tree, keep: keep, logger: logger}
		err := p.run()
		done <- result{stats: p.stats, err: err}
	}()

	r := <-done
	return r.stats, r.err
}

type pruner struct {
	ctx    context.Context
	tree   *Tree
	keep   map[string]struct{}
	logger *logrus.Logger
	stats  PruneStats
}

func (p *pruner) run() error {
	root := p.tree.Root()
	info, err := p.tree.Fs().Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return newError(KindFileSystem, root, err)
	}
	if !info.IsDir() {
		return newError(KindFileSystem, root, errors.New("cache path is not a directory"))
	}
	_, err = p.walk(root)
	return err
}

// walk 以后序遍历处理 dir，返回处理后 dir 中剩余的条目数。
func (p *pruner) walk(dir string) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}

	fsys := p.tree.Fs()
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return 0, newError(KindFileSystem, dir, err)
	}

	remaining := len(entries)
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		mode := entry.Mode()

		switch {
		case mode&os.ModeSymlink != 0:
			if err := p.remove(full, "symlink"); err != nil {
				return 0, err
			}
			p.stats.Symlinks++
			remaining--

		case entry.IsDir():
			left, err := p.walk(full)
			if err != nil {
				return 0, err
			}
			if left > 0 {
				continue
			}
			if err := p.remove(full, "directory"); err != nil {
				return 0, err
			}
			p.stats.Directories++
			remaining--

		default:
			rel, err := p.tree.Rel(full)
			if err != nil {
				return 0, newError(KindFileSystem, full, err)
			}
			if _, ok := p.keep[rel]; ok {
				continue
			}
			if err := p.remove(full, "file"); err != nil {
				return 0, err
			}
			p.stats.Files++
			remaining--
		}
	}
	return remaining, nil
}

func (p *pruner) remove(full, kind string) error {
	if err := p.tree.Fs().Remove(full); err != nil {
		return newError(KindFileSystem, full, err)
	}
	if p.logger != nil {
		p.logger.WithFields(logrus.Fields{
			"action": "pruned_entry",
			"path":   full,
			"kind":   kind,
		}).Debug("pruned")
	}
	return nil
}
