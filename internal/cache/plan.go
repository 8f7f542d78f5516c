package cache

import (
	"errors"
	"fmt"
	"path"

	"github.com/any-hub/channel-mirror/internal/channel"
	"github.com/any-hub/channel-mirror/internal/manifest"
)

// Snapshot 绑定一个通道与其已解析的清单。
type Snapshot struct {
	Channel  channel.Channel
	Manifest *manifest.Manifest
}

// Descriptor 描述一个需要在磁盘上就位的文件：来源 URL、相对路径与可选摘要。
type Descriptor struct {
	URL      *manifest.URL
	Path     string
	Checksum *manifest.Checksum
}

// Plan 是期望集合：相对路径 → 摘要，以及按通道分组的下载描述。
// 构建完成后只读，可以在所有下载任务之间共享。
type Plan struct {
	Checksums map[string]*manifest.Checksum
	Downloads map[channel.Channel][]Descriptor

	order []channel.Channel
	owner map[string]channel.Channel
}

// ArchivePath 计算制品在镜像中的规范相对路径 dist/<date>/<file>。
func ArchivePath(date channel.Date, u *manifest.URL) (string, error) {
	name, ok := u.FileName()
	if !ok {
		return "", newError(KindInvalidArtefact, u.String(), errors.New("url has no file name"))
	}
	return path.Join("dist", date.String(), name), nil
}

// BuildPlan 合并一个或多个快照的期望集合。同一路径被声明为不同摘要
// （包括"有摘要 vs 无摘要"）时整体失败；摘要相同的重复路径只下载一次。
func BuildPlan(snapshots []Snapshot) (*Plan, error) {
	plan := &Plan{
		Checksums: make(map[string]*manifest.Checksum),
		Downloads: make(map[channel.Channel][]Descriptor, len(snapshots)),
		owner:     make(map[string]channel.Channel),
	}

	for _, snap := range snapshots {
		if snap.Manifest == nil {
			return nil, newError(KindInvalidArtefact, snap.Channel.String(), errors.New("manifest missing"))
		}
		if _, dup := plan.Downloads[snap.Channel]; dup {
			return nil, newError(KindChannelOverlap, snap.Channel.String(), errors.New("channel listed twice"))
		}
		plan.order = append(plan.order, snap.Channel)
		plan.Downloads[snap.Channel] = nil

		if err := plan.add(snap); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

func (p *Plan) add(snap Snapshot) error {
	m := snap.Manifest
	for _, pkg := range m.PackageNames() {
		data := m.Packages[pkg]
		for _, target := range data.Targets() {
			artefact := data.Artefacts[target]
			if !artefact.Available {
				continue
			}
			for _, variant := range artefact.Variants() {
				rel, err := ArchivePath(m.Date, variant.URL)
				if err != nil {
					return fmt.Errorf("%s %s/%s: %w", snap.Channel, pkg, target, err)
				}
				if err := p.insert(snap.Channel, Descriptor{URL: variant.URL, Path: rel, Checksum: variant.Checksum}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (p *Plan) insert(ch channel.Channel, d Descriptor) error {
	existing, seen := p.Checksums[d.Path]
	if seen {
		if !manifest.SameChecksum(existing, d.Checksum) {
			return newError(KindChannelOverlap, d.Path,
				fmt.Errorf("%s and %s declare different checksums (%s vs %s)",
					p.owner[d.Path], ch, describeChecksum(existing), describeChecksum(d.Checksum)))
		}
		return nil
	}

	p.Checksums[d.Path] = d.Checksum
	p.owner[d.Path] = ch
	p.Downloads[ch] = append(p.Downloads[ch], d)
	return nil
}

// Reserve 为引擎自身发布的文件（清单、别名及其 .sha256）占位。
// 路径已被某个制品占用时报告通道重叠，否则发布会覆盖该制品。
func (p *Plan) Reserve(rel string) error {
	if _, taken := p.Checksums[rel]; taken {
		return newError(KindChannelOverlap, rel,
			fmt.Errorf("published manifest collides with an artefact of %s", p.owner[rel]))
	}
	return nil
}

// Channels 返回按输入顺序排列的通道。
func (p *Plan) Channels() []channel.Channel {
	return append([]channel.Channel(nil), p.order...)
}

// Preserve 返回 Prune 需要保留的相对路径集合。
func (p *Plan) Preserve() map[string]struct{} {
	keep := make(map[string]struct{}, len(p.Checksums))
	for rel := range p.Checksums {
		keep[rel] = struct{}{}
	}
	return keep
}

// Descriptors 将各通道的下载描述按通道顺序展平。
func (p *Plan) Descriptors() []Descriptor {
	var out []Descriptor
	for _, ch := range p.order {
		out = append(out, p.Downloads[ch]...)
	}
	return out
}

func describeChecksum(c *manifest.Checksum) string {
	if c == nil {
		return "none"
	}
	return c.String()
}
