package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError 带错误码的业务错误
// Code 决定对外的类别与 HTTP 状态，Message 返回给调用方，Err 只进日志
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%d] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError 定义一个错误码
func NewError(code int, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap 附带底层原因，返回副本，包级预定义错误保持不变
func (e *AppError) Wrap(err error) *AppError {
	out := *e
	out.Err = err
	return &out
}

// asAppError 沿错误链查找 AppError
func asAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is 错误链中存在与 target 同码的 AppError
func Is(err error, target *AppError) bool {
	appErr, ok := asAppError(err)
	return ok && appErr.Code == target.Code
}

// GetCode 错误码，非 AppError 一律视为服务器错误
func GetCode(err error) int {
	if appErr, ok := asAppError(err); ok {
		return appErr.Code
	}
	return CodeServerError
}

// GetMessage 对外消息，非 AppError 不暴露原始内容
func GetMessage(err error) string {
	if appErr, ok := asAppError(err); ok {
		return appErr.Message
	}
	return ErrServerError.Message
}

// ============== 错误码定义 ==============

const (
	CodeSuccess = 0

	// 认证相关 10000-10999
	CodeUnauthorized = 10001
	CodeTokenInvalid = 10002
	CodeTokenExpired = 10003

	// 参数相关 11000-11999
	CodeInvalidParams = 11001

	// 会话相关 20000-20999
	CodeConversationNotFound = 20001
	CodeMessageNotFound      = 20002

	// 系统错误 50000-50999
	CodeServerError = 50001
	CodeDBError     = 50002
)

// ============== 预定义错误 ==============

var (
	ErrUnauthorized = NewError(CodeUnauthorized, "unauthorized")
	ErrTokenInvalid = NewError(CodeTokenInvalid, "token is invalid")
	ErrTokenExpired = NewError(CodeTokenExpired, "token has expired")
)

var (
	ErrInvalidParams = NewError(CodeInvalidParams, "invalid params")
)

var (
	ErrConversationNotFound = NewError(CodeConversationNotFound, "conversation not found")
	ErrMessageNotFound      = NewError(CodeMessageNotFound, "message not found")
)

var (
	ErrServerError = NewError(CodeServerError, "internal error")
	ErrDBError     = NewError(CodeDBError, "database error")
)

// ============== 错误类别 ==============

// Kind 错误类别，对外只暴露三类
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindNotFound
	KindInvalid
)

// String 返回类别名称
func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "Unauthorized"
	case KindNotFound:
		return "NotFound"
	case KindInvalid:
		return "Invalid"
	default:
		return "Internal"
	}
}

// KindOf 根据错误码归类
func KindOf(err error) Kind {
	switch GetCode(err) {
	case CodeUnauthorized, CodeTokenInvalid, CodeTokenExpired:
		return KindUnauthorized
	case CodeConversationNotFound, CodeMessageNotFound:
		return KindNotFound
	case CodeInvalidParams:
		return KindInvalid
	default:
		return KindInternal
	}
}

// HTTPStatus 错误对应的 HTTP 状态码
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
