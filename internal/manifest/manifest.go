package manifest

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/any-hub/channel-mirror/internal/channel"
)

// Artefact 描述某个 package 在某个 target 上的可下载文件及其压缩变体。
// Available=false 的条目永远不会进入期望集合，无论是否带有 URL。
type Artefact struct {
	Available          bool      `toml:"available"`
	URL                *URL      `toml:"url,omitempty"`
	Checksum           *Checksum `toml:"hash,omitempty"`
	CompressedURL      *URL      `toml:"xz_url,omitempty"`
	CompressedChecksum *Checksum `toml:"xz_hash,omitempty"`
}

// Variant 是制品的一个具体文件（原始或压缩），URL 必定存在，摘要可选。
type Variant struct {
	URL      *URL
	Checksum *Checksum
}

// Variants 返回 URL 存在的变体，原始文件在前。
func (a Artefact) Variants() []Variant {
	variants := make([]Variant, 0, 2)
	if a.URL != nil {
		variants = append(variants, Variant{URL: a.URL, Checksum: a.Checksum})
	}
	if a.CompressedURL != nil {
		variants = append(variants, Variant{URL: a.CompressedURL, Checksum: a.CompressedChecksum})
	}
	return variants
}

// PackageData 按 target triple 索引制品。
type PackageData struct {
	Artefacts map[string]Artefact `toml:"target"`
}

// Targets 返回排序后的 target 列表，保证遍历顺序稳定。
func (p PackageData) Targets() []string {
	return sortedKeys(p.Artefacts)
}

// Manifest 是单个通道的清单。加载后只读；改写总是产生新值。
type Manifest struct {
	ManifestVersion string                 `toml:"manifest-version,omitempty"`
	Date            channel.Date           `toml:"date"`
	Packages        map[string]PackageData `toml:"pkg"`
}

// PackageNames 返回排序后的 package 名称。
func (m *Manifest) PackageNames() []string {
	return sortedKeys(m.Packages)
}

// Clone 深拷贝清单，URL 与摘要都不与原值共享。
func (m *Manifest) Clone() *Manifest {
	out := &Manifest{
		ManifestVersion: m.ManifestVersion,
		Date:            m.Date,
		Packages:        make(map[string]PackageData, len(m.Packages)),
	}
	for name, data := range m.Packages {
		artefacts := make(map[string]Artefact, len(data.Artefacts))
		for target, a := range data.Artefacts {
			artefacts[target] = Artefact{
				Available:          a.Available,
				URL:                a.URL.Clone(),
				Checksum:           cloneChecksum(a.Checksum),
				CompressedURL:      a.CompressedURL.Clone(),
				CompressedChecksum: cloneChecksum(a.CompressedChecksum),
			}
		}
		out.Packages[name] = PackageData{Artefacts: artefacts}
	}
	return out
}

// Decode 从 TOML 文本解析清单。未知字段被忽略，缺失 date 视为错误。
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Date.IsZero() {
		return nil, fmt.Errorf("decode manifest: missing date")
	}
	return &m, nil
}

// Encode 将清单序列化为 TOML；map 键按字典序输出，相同输入得到相同字节。
func Encode(m *Manifest) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// Load 读取并解析清单文件。
func Load(fsys afero.Fs, path string) (*Manifest, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	m, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func cloneChecksum(c *Checksum) *Checksum {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
