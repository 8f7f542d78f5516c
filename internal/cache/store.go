package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/any-hub/channel-mirror/internal/manifest"
)

// Tree 是镜像根目录的文件系统视图。磁盘布局遵循：
//
//	<CachePath>/dist/<date>/<file>                 # 制品
//	<CachePath>/dist/channel-rust-<version>.toml   # 稳定版清单
//	<CachePath>/dist/<date>/channel-rust-<name>.toml
//	<CachePath>/dist/channel-rust-<name>.toml      # 别名
//
// 对外的所有路径都是相对根目录的 slash 风格路径。
type Tree struct {
	fs   afero.Fs
	root string
}

// NewTree 以 root 为根目录构建视图。根目录不存在不是错误，写入时按需创建。
func NewTree(fsys afero.Fs, root string) (*Tree, error) {
	if fsys == nil {
		return nil, errors.New("filesystem required")
	}
	if root == "" {
		return nil, errors.New("cache path required")
	}
	return &Tree{fs: fsys, root: filepath.Clean(root)}, nil
}

// Root 返回根目录的本地路径。
func (t *Tree) Root() string {
	return t.root
}

// Fs 返回底层文件系统。
func (t *Tree) Fs() afero.Fs {
	return t.fs
}

// Path 将相对路径解析为根目录下的本地路径，拒绝任何逃逸出根目录的路径。
func (t *Tree) Path(rel string) (string, error) {
	clean := strings.TrimPrefix(path.Clean("/"+rel), "/")
	if clean == "" {
		return "", fmt.Errorf("invalid cache path %q", rel)
	}
	prefix := t.root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	full := filepath.Join(t.root, filepath.FromSlash(clean))
	if !strings.HasPrefix(full, prefix) {
		return "", fmt.Errorf("invalid cache path %q", rel)
	}
	return full, nil
}

// Rel 是 Path 的逆操作，返回 slash 风格的相对路径。
func (t *Tree) Rel(full string) (string, error) {
	rel, err := filepath.Rel(t.root, full)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// Exists 报告相对路径是否存在（目录同样视为存在）。
func (t *Tree) Exists(rel string) (bool, error) {
	full, err := t.Path(rel)
	if err != nil {
		return false, err
	}
	if _, err := t.fs.Stat(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Checksum 计算已存在文件的摘要。
func (t *Tree) Checksum(rel string) (manifest.Checksum, error) {
	full, err := t.Path(rel)
	if err != nil {
		return manifest.Checksum{}, err
	}
	return manifest.SumFile(t.fs, full)
}

// ReadFile 读取相对路径的完整内容。
func (t *Tree) ReadFile(rel string) ([]byte, error) {
	full, err := t.Path(rel)
	if err != nil {
		return nil, err
	}
	return afero.ReadFile(t.fs, full)
}

// Put 创建缺失的父目录后写入完整内容。写入先落到同目录的临时文件再 rename，
// 失败时清理临时文件；崩溃残留的临时文件不在期望集合内，会被下一次 Prune 清除。
func (t *Tree) Put(ctx context.Context, rel string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	full, err := t.Path(rel)
	if err != nil {
		return err
	}

	dir := filepath.Dir(full)
	if err := t.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tempFile, err := afero.TempFile(t.fs, dir, ".partial-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(data)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = t.fs.Remove(tempName)
		return err
	}

	if err := t.fs.Chmod(tempName, 0o644); err != nil {
		_ = t.fs.Remove(tempName)
		return err
	}
	if err := t.fs.Rename(tempName, full); err != nil {
		_ = t.fs.Remove(tempName)
		return err
	}
	return nil
}
