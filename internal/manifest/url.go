package manifest

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// URL 包装 net/url.URL，使其可以作为清单中的字符串字段编解码。
type URL struct {
	url.URL
}

// ParseURL 解析绝对 URL。
func ParseURL(raw string) (*URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("url %q is not absolute", raw)
	}
	return &URL{URL: *parsed}, nil
}

// MustParseURL 在解析失败时 panic，仅供测试与常量使用。
func MustParseURL(raw string) *URL {
	u, err := ParseURL(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// FileName 返回 URL 路径的最后一段；不透明 URL 或以 / 结尾的路径没有文件名。
func (u *URL) FileName() (string, bool) {
	if u == nil || u.Opaque != "" {
		return "", false
	}
	p := u.Path
	if p == "" || strings.HasSuffix(p, "/") {
		return "", false
	}
	name := path.Base(p)
	if name == "." || name == "/" || name == ".." {
		return "", false
	}
	return name, true
}

// Clone 返回独立副本。
func (u *URL) Clone() *URL {
	if u == nil {
		return nil
	}
	c := *u
	if u.User != nil {
		user := *u.User
		c.User = &user
	}
	return &c
}

func (u URL) MarshalText() ([]byte, error) {
	return []byte(u.URL.String()), nil
}

func (u *URL) UnmarshalText(text []byte) error {
	parsed, err := ParseURL(string(text))
	if err != nil {
		return err
	}
	*u = *parsed
	return nil
}
