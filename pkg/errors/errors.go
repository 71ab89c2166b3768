// Package errors 提供统一的错误定义
//
// ErrorCode 即错误种类标签，各后端的错误形态在边界处统一映射到这里，
// 上层只按 Code 判断，不做字符串匹配。
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误 (1xxx)
	CodeSuccess            ErrorCode = "0"
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeNotFound           ErrorCode = "1004"
	CodeTooManyRequests    ErrorCode = "1006"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"

	// 检索编排错误 (4xxx)
	CodeTotalFailure ErrorCode = "4001"

	// 外部存储错误 (5xxx)
	CodeBackendUnavailable ErrorCode = "5001"
	CodeGraphQueryError    ErrorCode = "5002"
	CodeCacheError         ErrorCode = "5003"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	Backend    string    `json:"backend,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	prefix := string(e.Code)
	if e.Backend != "" {
		prefix += "/" + e.Backend
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", prefix, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail 返回附带详细信息的副本
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithError 返回附带底层错误的副本
func (e *AppError) WithError(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeServiceUnavailable, CodeTotalFailure, CodeBackendUnavailable:
		return http.StatusServiceUnavailable
	case CodeGraphQueryError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Validation 请求校验失败
func Validation(format string, args ...any) *AppError {
	return New(CodeInvalidParam, fmt.Sprintf(format, args...))
}

// NotFound 直接查找的资源不存在
func NotFound(format string, args ...any) *AppError {
	return New(CodeNotFound, fmt.Sprintf(format, args...))
}

// BackendUnavailable 单个后端不可达或返回非 2xx
func BackendUnavailable(backend string, err error) *AppError {
	e := Wrap(err, CodeBackendUnavailable, "backend unavailable")
	e.Backend = backend
	return e
}

// TotalFailure 所有后端均失败
func TotalFailure(err error) *AppError {
	return Wrap(err, CodeTotalFailure, "all backends failed")
}

// GraphQuery 图数据库返回的查询错误，只保留第一条消息
func GraphQuery(code, message string) *AppError {
	e := New(CodeGraphQueryError, message)
	e.Detail = code
	e.Backend = "graph"
	return e
}

// 预定义错误
var (
	ErrInvalidParam       = New(CodeInvalidParam, "invalid parameter")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrTooManyRequests    = New(CodeTooManyRequests, "too many requests")
	ErrInternalError      = New(CodeInternalError, "internal server error")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")
)

// IsAppError 检查错误链中是否包含 AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

// CodeOf 返回错误链上第一个 AppError 的错误码
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	if err == nil {
		return CodeSuccess
	}
	return CodeUnknown
}

// IsCode 判断错误是否属于指定错误码
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
