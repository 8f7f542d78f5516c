package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/any-hub/channel-mirror/internal/version"
)

// ErrUnsupportedScheme 表示 URL 协议不在传输层支持范围内，不会发起任何网络请求。
var ErrUnsupportedScheme = errors.New("unsupported url scheme")

// StatusError 表示上游返回了非 2xx 状态码。
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Downloader 获取 URL 指向的完整字节内容。实现必须是并发安全的。
type Downloader interface {
	Fetch(ctx context.Context, source *url.URL) ([]byte, error)
}

// HTTPDownloader 按协议分发：http/https 走共享 http.Client，其余协议直接拒绝。
type HTTPDownloader struct {
	client    *http.Client
	userAgent string
}

// NewHTTPDownloader 使用给定 client 构造下载器；userAgent 为空时使用版本号。
func NewHTTPDownloader(client *http.Client, userAgent string) *HTTPDownloader {
	if client == nil {
		client = NewUpstreamClient(nil)
	}
	if userAgent == "" {
		userAgent = version.UserAgent()
	}
	return &HTTPDownloader{client: client, userAgent: userAgent}
}

// Fetch 实现 Downloader。
func (d *HTTPDownloader) Fetch(ctx context.Context, source *url.URL) ([]byte, error) {
	switch source.Scheme {
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w '%s'", ErrUnsupportedScheme, source.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, &StatusError{URL: source.String(), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", source, err)
	}
	return body, nil
}
