package cache

import (
	"errors"
	"strings"
)

// Kind 标识引擎错误的类别，所有类别对本次运行都是终止性的。
type Kind string

const (
	KindBadChecksum       Kind = "bad_checksum"
	KindChannelOverlap    Kind = "channel_overlap"
	KindUnsupportedScheme Kind = "unsupported_scheme"
	KindHTTP              Kind = "http"
	KindFileSystem        Kind = "file_system"
	KindInvalidArtefact   Kind = "invalid_artefact"
	KindMixedChannel      Kind = "mixed_channel"
)

var kindMessages = map[Kind]string{
	KindBadChecksum:       "bad checksum for",
	KindChannelOverlap:    "channel overlap at",
	KindUnsupportedScheme: "unsupported url scheme for",
	KindHTTP:              "download failed for",
	KindFileSystem:        "file system error at",
	KindInvalidArtefact:   "invalid artefact",
	KindMixedChannel:      "mixed channel kinds for",
}

// 仅携带 Kind 的哨兵值，配合 errors.Is 判断类别。
var (
	ErrBadChecksum       = &Error{Kind: KindBadChecksum}
	ErrChannelOverlap    = &Error{Kind: KindChannelOverlap}
	ErrUnsupportedScheme = &Error{Kind: KindUnsupportedScheme}
	ErrHTTP              = &Error{Kind: KindHTTP}
	ErrFileSystem        = &Error{Kind: KindFileSystem}
	ErrInvalidArtefact   = &Error{Kind: KindInvalidArtefact}
	ErrMixedChannel      = &Error{Kind: KindMixedChannel}
)

// Error 是引擎对外暴露的唯一错误类型。Subject 通常是 URL、相对路径或通道名。
type Error struct {
	Kind    Kind
	Subject string
	Err     error
}

func newError(kind Kind, subject string, err error) *Error {
	return &Error{Kind: kind, Subject: subject, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	msg, ok := kindMessages[e.Kind]
	if !ok {
		msg = string(e.Kind)
	}
	b.WriteString(msg)
	if e.Subject != "" {
		b.WriteString(" '")
		b.WriteString(e.Subject)
		b.WriteString("'")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 让 errors.Is(err, ErrBadChecksum) 这类按类别的判断成立。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Subject == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf 返回错误链中第一个引擎错误的类别；非引擎错误返回空串。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
