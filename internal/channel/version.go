package channel

import (
	"cmp"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidComponent   = errors.New("invalid component")
	ErrMissingMajor       = errors.New("missing major")
	ErrMissingMinor       = errors.New("missing minor")
	ErrMissingPatch       = errors.New("missing patch")
	ErrTrailingCharacters = errors.New("trailing characters")
)

// dateLayout 是清单与目录命名统一使用的日期格式。
const dateLayout = "2006-01-02"

// Version 表示稳定版的 MAJOR.MINOR.PATCH。
type Version struct {
	Major uint64
	Minor uint64
	Patch uint64
}

// ParseVersion 严格解析三段数字版本号，多余的段落视为错误。
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	missing := [3]error{ErrMissingMajor, ErrMissingMinor, ErrMissingPatch}

	var components [3]uint64
	for i := range components {
		if i >= len(parts) {
			return Version{}, missing[i]
		}
		n, err := strconv.ParseUint(parts[i], 10, 64)
		if err != nil {
			return Version{}, fmt.Errorf("%w '%s'", ErrInvalidComponent, parts[i])
		}
		components[i] = n
	}
	if len(parts) > len(components) {
		return Version{}, ErrTrailingCharacters
	}

	return Version{Major: components[0], Minor: components[1], Patch: components[2]}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare 按 major → minor → patch 的顺序比较。
func (v Version) Compare(other Version) int {
	if c := cmp.Compare(v.Major, other.Major); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Minor, other.Minor); c != 0 {
		return c
	}
	return cmp.Compare(v.Patch, other.Patch)
}

// Date 是不带时区的日历日期，可比较、可作为 map 键。
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate 解析 YYYY-MM-DD。
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// IsZero 报告日期是否未设置。
func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Compare 按年 → 月 → 日比较。
func (d Date) Compare(other Date) int {
	if c := cmp.Compare(d.Year, other.Year); c != 0 {
		return c
	}
	if c := cmp.Compare(d.Month, other.Month); c != 0 {
		return c
	}
	return cmp.Compare(d.Day, other.Day)
}

// MarshalText 让清单编解码器以带引号的字符串写出日期。
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText 对应 MarshalText。
func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := ParseDate(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDate, err)
	}
	*d = parsed
	return nil
}
