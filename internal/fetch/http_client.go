package fetch

import (
	"net"
	"net/http"
	"time"

	"github.com/any-hub/channel-mirror/internal/config"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// defaultFetchTimeout 覆盖单个制品的完整下载时间，而非仅连接阶段。
const defaultFetchTimeout = 5 * time.Minute

// NewUpstreamClient 返回共享 http.Client，超时取自 FetchTimeout。
func NewUpstreamClient(cfg *config.Config) *http.Client {
	timeout := defaultFetchTimeout
	if cfg != nil && cfg.Global.FetchTimeout.DurationValue() > 0 {
		timeout = cfg.Global.FetchTimeout.DurationValue()
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: defaultTransport.Clone(),
	}
}
