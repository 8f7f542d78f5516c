package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/any-hub/channel-mirror/internal/config"
)

func TestNewUpstreamClientUsesConfigTimeout(t *testing.T) {
	cfg := &config.Config{
		Global: config.GlobalConfig{
			FetchTimeout: config.Duration(45 * time.Second),
		},
	}

	client := NewUpstreamClient(cfg)
	if client.Timeout != 45*time.Second {
		t.Fatalf("expected timeout 45s, got %s", client.Timeout)
	}
	if NewUpstreamClient(nil).Timeout != defaultFetchTimeout {
		t.Fatalf("nil config should fall back to the default timeout")
	}
}

func TestFetchReturnsBody(t *testing.T) {
	var agent atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	d := NewHTTPDownloader(server.Client(), "")
	body, err := d.Fetch(context.Background(), mustURL(t, server.URL+"/dist/a.tar.gz"))
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if string(body) != "payload" {
		t.Fatalf("body mismatch: %s", body)
	}
	if ua, _ := agent.Load().(string); !strings.HasPrefix(ua, "channel-mirror/") {
		t.Fatalf("unexpected user agent %q", ua)
	}
}

func TestFetchClassifiesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	d := NewHTTPDownloader(server.Client(), "test")
	_, err := d.Fetch(context.Background(), mustURL(t, server.URL+"/missing"))

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("status mismatch: %d", statusErr.StatusCode)
	}
}

func TestFetchRejectsUnsupportedScheme(t *testing.T) {
	var hits atomic.Int32
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		hits.Add(1)
		return nil, errors.New("should not be called")
	})}

	d := NewHTTPDownloader(client, "test")
	_, err := d.Fetch(context.Background(), mustURL(t, "ftp://example.com/a.tar.gz"))
	if !errors.Is(err, ErrUnsupportedScheme) {
		t.Fatalf("expected ErrUnsupportedScheme, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("unsupported scheme must not reach the network")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	return u
}
