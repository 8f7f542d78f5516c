package cache

import (
	"fmt"
	"net/url"

	"github.com/any-hub/channel-mirror/internal/manifest"
)

// Normalize 返回新的清单：每个制品 URL 改写为 host + dist/<date>/<file>，
// 摘要原样复制。输入清单不会被修改。
func Normalize(snap Snapshot, host *url.URL) (*manifest.Manifest, error) {
	out := snap.Manifest.Clone()
	if host == nil {
		return out, nil
	}

	for _, pkg := range out.PackageNames() {
		data := out.Packages[pkg]
		for _, target := range data.Targets() {
			artefact := data.Artefacts[target]

			rewritten, err := relocate(out, host, artefact.URL)
			if err != nil {
				return nil, fmt.Errorf("%s %s/%s: %w", snap.Channel, pkg, target, err)
			}
			artefact.URL = rewritten

			rewritten, err = relocate(out, host, artefact.CompressedURL)
			if err != nil {
				return nil, fmt.Errorf("%s %s/%s: %w", snap.Channel, pkg, target, err)
			}
			artefact.CompressedURL = rewritten

			data.Artefacts[target] = artefact
		}
	}
	return out, nil
}

func relocate(m *manifest.Manifest, host *url.URL, u *manifest.URL) (*manifest.URL, error) {
	if u == nil {
		return nil, nil
	}
	rel, err := ArchivePath(m.Date, u)
	if err != nil {
		return nil, err
	}
	return &manifest.URL{URL: *host.JoinPath(rel)}, nil
}
