package steering

import "fmt"

// FormatError 录入数据格式错误（日期、收益代码、JSON 结构等）
type FormatError struct {
	Message string
	Value   string // 出错的原始值，可为空
	Err     error
}

func (e *FormatError) Error() string {
	msg := e.Message
	if e.Value != "" {
		msg = fmt.Sprintf("%s: %q", msg, e.Value)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func formatErrorf(value, format string, args ...any) *FormatError {
	return &FormatError{Message: fmt.Sprintf(format, args...), Value: value}
}
