package pricing

import (
	"fmt"
	"net/http"
)

// AuthenticationError 无法取得令牌，或令牌被拒绝
type AuthenticationError struct {
	Message string
	Status  int            // token 接口返回的 HTTP 状态码，未知为 0
	Context map[string]any // 诊断信息（status, response 等）
	Err     error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: status=%d", e.Message, e.Status)
	}
	return e.Message
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// APIRequestError 认证成功后外部 API 拒绝或处理失败
type APIRequestError struct {
	Message    string
	HTTPStatus int // 无 HTTP 响应时为 0
	Context    map[string]any
	Err        error
}

func (e *APIRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("%s: status=%d", e.Message, e.HTTPStatus)
}

func (e *APIRequestError) Unwrap() error {
	return e.Err
}

// ResponseStatus 返回给调用方的状态码：有效的 4xx/5xx 原样透传，否则为 500
func (e *APIRequestError) ResponseStatus() int {
	if e.HTTPStatus >= 400 && e.HTTPStatus < 600 {
		return e.HTTPStatus
	}
	return http.StatusInternalServerError
}
