package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// Checksum 是制品完整内容的 SHA-256 摘要，清单中以 64 位小写十六进制表示。
type Checksum [sha256.Size]byte

// Sum 计算内存中字节的摘要。
func Sum(data []byte) Checksum {
	return Checksum(sha256.Sum256(data))
}

// SumFile 以流式方式计算文件摘要，避免把大体积制品整体读入内存。
func SumFile(fsys afero.Fs, name string) (Checksum, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return Checksum{}, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Checksum{}, err
	}

	var sum Checksum
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// ParseChecksum 解析 64 位十六进制摘要。
func ParseChecksum(s string) (Checksum, error) {
	var sum Checksum
	if len(s) != hex.EncodedLen(len(sum)) {
		return Checksum{}, fmt.Errorf("invalid checksum length %d", len(s))
	}
	if _, err := hex.Decode(sum[:], []byte(s)); err != nil {
		return Checksum{}, fmt.Errorf("invalid checksum: %w", err)
	}
	return sum, nil
}

func (c Checksum) String() string {
	return hex.EncodeToString(c[:])
}

// MarshalText 输出小写十六进制。
func (c Checksum) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText 对应 MarshalText。
func (c *Checksum) UnmarshalText(text []byte) error {
	parsed, err := ParseChecksum(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// SameChecksum 比较两个可选摘要；"有 vs 无" 也视为不同。
func SameChecksum(a, b *Checksum) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
