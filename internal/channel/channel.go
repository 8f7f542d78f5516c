package channel

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// stableName 是稳定版通道对外展示的名称，也是别名文件的后缀。
const stableName = "stable"

var (
	ErrMissingName    = errors.New("missing name")
	ErrInvalidName    = errors.New("invalid name")
	ErrMissingVersion = errors.New("missing version")
	ErrMissingDate    = errors.New("missing date")
	ErrInvalidVersion = errors.New("invalid version")
	ErrInvalidDate    = errors.New("invalid date")

	// ErrMixedKinds 表示同名通道同时出现稳定版与日期快照，二者之间不存在排序。
	ErrMixedKinds = errors.New("stable and date-based channels are not comparable")
)

// Kind 区分稳定版与按日期命名的快照通道。
type Kind int

const (
	KindStable Kind = iota + 1
	KindDateBased
)

func (k Kind) String() string {
	switch k {
	case KindStable:
		return "stable"
	case KindDateBased:
		return "date-based"
	default:
		return "unknown"
	}
}

// Channel 是 Stable{version} 与 DateBased{name, date} 的带标签联合体。
// 零值无效；字段全部可比较，因此可直接作为 map 键。
type Channel struct {
	kind    Kind
	version Version
	name    string
	date    Date
}

// Stable 构造固定版本的稳定版通道。
func Stable(v Version) Channel {
	return Channel{kind: KindStable, version: v}
}

// DateBased 构造以名称 + 日期标识的快照通道，例如 nightly:2024-01-02。
func DateBased(name string, date Date) Channel {
	return Channel{kind: KindDateBased, name: name, date: date}
}

// Parse 解析 "stable:MAJOR.MINOR.PATCH" 或 "<NAME>:YYYY-MM-DD"。
func Parse(s string) (Channel, error) {
	name, rest, found := strings.Cut(s, ":")
	if name == "" {
		return Channel{}, fmt.Errorf("parse channel %q: %w", s, ErrMissingName)
	}

	if name == stableName {
		if !found || rest == "" {
			return Channel{}, fmt.Errorf("parse channel %q: %w", s, ErrMissingVersion)
		}
		v, err := ParseVersion(rest)
		if err != nil {
			return Channel{}, fmt.Errorf("parse channel %q: %w: %w", s, ErrInvalidVersion, err)
		}
		return Stable(v), nil
	}

	if !validName(name) {
		return Channel{}, fmt.Errorf("parse channel %q: %w", s, ErrInvalidName)
	}
	if !found || rest == "" {
		return Channel{}, fmt.Errorf("parse channel %q: %w", s, ErrMissingDate)
	}
	d, err := ParseDate(rest)
	if err != nil {
		return Channel{}, fmt.Errorf("parse channel %q: %w: %w", s, ErrInvalidDate, err)
	}
	return DateBased(name, d), nil
}

// validName 限制快照名称为 [A-Za-z0-9._-]，且不能是 "." 或 ".."；名称会成为清单路径的一段。
func validName(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}

// Kind 返回通道类型。
func (c Channel) Kind() Kind { return c.kind }

// Version 仅对稳定版通道有意义。
func (c Channel) Version() Version { return c.version }

// Date 仅对日期快照通道有意义。
func (c Channel) Date() Date { return c.date }

// Name 返回通道的展示名称：稳定版固定为 "stable"，快照通道为其自身名称。
func (c Channel) Name() string {
	if c.kind == KindStable {
		return stableName
	}
	return c.name
}

// String 输出与 Parse 对称的通道字符串。
func (c Channel) String() string {
	switch c.kind {
	case KindStable:
		return stableName + ":" + c.version.String()
	case KindDateBased:
		return c.name + ":" + c.date.String()
	default:
		return ""
	}
}

// ManifestPath 返回带版本/日期的清单相对路径。
func (c Channel) ManifestPath() string {
	switch c.kind {
	case KindStable:
		return path.Join("dist", "channel-rust-"+c.version.String()+".toml")
	default:
		return path.Join("dist", c.date.String(), "channel-rust-"+c.name+".toml")
	}
}

// AliasPath 返回总是指向该名称最新快照的固定清单路径。
func (c Channel) AliasPath() string {
	return path.Join("dist", "channel-rust-"+c.Name()+".toml")
}

// Compare 比较两个同类通道：稳定版按语义化版本，快照按日期（同日再按名称）。
// 类型不同的通道之间没有定义顺序，返回 ErrMixedKinds。
func (c Channel) Compare(other Channel) (int, error) {
	if c.kind != other.kind {
		return 0, fmt.Errorf("%w: %s vs %s", ErrMixedKinds, c, other)
	}
	switch c.kind {
	case KindStable:
		return c.version.Compare(other.version), nil
	case KindDateBased:
		if cmp := c.date.Compare(other.date); cmp != 0 {
			return cmp, nil
		}
		return strings.Compare(c.name, other.name), nil
	default:
		return 0, fmt.Errorf("compare channels: unknown kind %d", c.kind)
	}
}
