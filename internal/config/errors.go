package config

import "fmt"

// FieldError 提供字段路径与错误原因，便于 CLI 向用户反馈。
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// newFieldError 创建包含字段路径与原因的 error，便于 CLI 定位。
func newFieldError(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}

// channelField 用于拼接通道级字段路径，方便输出 Channel[xxx].Field 形式。
func channelField(name, field string) string {
	if name == "" {
		return fmt.Sprintf("Channel[].%s", field)
	}
	return fmt.Sprintf("Channel[%s].%s", name, field)
}
