package cache

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/any-hub/channel-mirror/internal/channel"
	"github.com/any-hub/channel-mirror/internal/fetch"
	"github.com/any-hub/channel-mirror/internal/manifest"
)

// fakeDownloader 以内存 map 模拟上游，并记录每个 URL 的请求次数。
type fakeDownloader struct {
	mu      sync.Mutex
	bodies  map[string][]byte
	status  map[string]int
	calls   map[string]int
	onFetch func(string)
}

func newFakeDownloader() *fakeDownloader {
	return &fakeDownloader{
		bodies: make(map[string][]byte),
		status: make(map[string]int),
		calls:  make(map[string]int),
	}
}

func (f *fakeDownloader) serve(raw string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[raw] = body
}

func (f *fakeDownloader) fail(raw string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[raw] = status
}

func (f *fakeDownloader) Fetch(ctx context.Context, source *url.URL) ([]byte, error) {
	if source.Scheme != "http" && source.Scheme != "https" {
		return nil, fmt.Errorf("%w '%s'", fetch.ErrUnsupportedScheme, source.Scheme)
	}
	raw := source.String()

	f.mu.Lock()
	f.calls[raw]++
	body, ok := f.bodies[raw]
	status := f.status[raw]
	hook := f.onFetch
	f.mu.Unlock()

	if hook != nil {
		hook(raw)
	}
	if status != 0 {
		return nil, &fetch.StatusError{URL: raw, StatusCode: status}
	}
	if !ok {
		return nil, &fetch.StatusError{URL: raw, StatusCode: 404}
	}
	return append([]byte(nil), body...), nil
}

func (f *fakeDownloader) callCount(raw string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[raw]
}

func (f *fakeDownloader) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func newMemTree(t *testing.T) *Tree {
	t.Helper()
	tree, err := NewTree(afero.NewMemMapFs(), "/mirror")
	if err != nil {
		t.Fatalf("tree error: %v", err)
	}
	return tree
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func mustChannel(t *testing.T, raw string) channel.Channel {
	t.Helper()
	ch, err := channel.Parse(raw)
	if err != nil {
		t.Fatalf("parse channel: %v", err)
	}
	return ch
}

func mustDate(t *testing.T, raw string) channel.Date {
	t.Helper()
	d, err := channel.ParseDate(raw)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return d
}

func checksumOf(body []byte) *manifest.Checksum {
	sum := manifest.Sum(body)
	return &sum
}

// artefact 构造一个可用制品；checksum 为 nil 表示清单未声明摘要。
func artefact(raw string, checksum *manifest.Checksum) manifest.Artefact {
	return manifest.Artefact{
		Available: true,
		URL:       manifest.MustParseURL(raw),
		Checksum:  checksum,
	}
}

// newManifest 构造只有一个 package 的清单，targets 为 target → 制品。
func newManifest(t *testing.T, date string, pkg string, targets map[string]manifest.Artefact) *manifest.Manifest {
	t.Helper()
	return &manifest.Manifest{
		ManifestVersion: "2",
		Date:            mustDate(t, date),
		Packages: map[string]manifest.PackageData{
			pkg: {Artefacts: targets},
		},
	}
}

func writeFile(t *testing.T, tree *Tree, rel string, body []byte) {
	t.Helper()
	if err := tree.Put(context.Background(), rel, body); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func readFile(t *testing.T, tree *Tree, rel string) []byte {
	t.Helper()
	data, err := tree.ReadFile(rel)
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return data
}

func exists(t *testing.T, tree *Tree, rel string) bool {
	t.Helper()
	ok, err := tree.Exists(rel)
	if err != nil {
		t.Fatalf("stat %s: %v", rel, err)
	}
	return ok
}
