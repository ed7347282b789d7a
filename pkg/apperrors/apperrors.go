// Package apperrors 提供带错误码的业务错误
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error 业务错误
type Error struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	HTTPStatus int               `json:"-"`
	Retryable  bool              `json:"-"`
	Cause      error             `json:"-"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 按错误码比较
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Copy 复制错误
func (e *Error) Copy() *Error {
	newErr := &Error{
		Code:       e.Code,
		Message:    e.Message,
		HTTPStatus: e.HTTPStatus,
		Retryable:  e.Retryable,
		Cause:      e.Cause,
	}
	if e.Details != nil {
		newErr.Details = make(map[string]string, len(e.Details))
		for k, v := range e.Details {
			newErr.Details[k] = v
		}
	}
	return newErr
}

// WithDetail 添加单个详情
func (e *Error) WithDetail(key, value string) *Error {
	newErr := e.Copy()
	if newErr.Details == nil {
		newErr.Details = make(map[string]string)
	}
	newErr.Details[key] = value
	return newErr
}

// WithMessagef 格式化替换错误消息
func (e *Error) WithMessagef(format string, args ...interface{}) *Error {
	newErr := e.Copy()
	newErr.Message = fmt.Sprintf(format, args...)
	return newErr
}

// New 创建新错误
func New(code, message string, httpStatus int) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap 包装底层错误
func Wrap(err *Error, cause error) *Error {
	newErr := err.Copy()
	newErr.Cause = cause
	return newErr
}

// 错误码定义
var (
	ErrInternal = New("INTERNAL_ERROR", "内部错误", http.StatusInternalServerError)

	// 凭证相关
	ErrUnauthorized        = New("UNAUTHORIZED", "凭证与目标网络不匹配或缺失", http.StatusUnauthorized)
	ErrInvalidSignature    = New("INVALID_SIGNATURE", "凭证签名无效", http.StatusUnauthorized)
	ErrCredentialExpired   = New("CREDENTIAL_EXPIRED", "凭证已过期", http.StatusUnauthorized)
	ErrMalformedCredential = New("MALFORMED_CREDENTIAL", "凭证格式错误", http.StatusUnauthorized)

	// 网络注册相关
	ErrUnknownNetwork     = New("UNKNOWN_NETWORK", "网络未注册", http.StatusNotFound)
	ErrDuplicateNetworkID = New("DUPLICATE_NETWORK_ID", "网络 ID 已存在", http.StatusConflict)
	ErrImmutableField     = New("IMMUTABLE_FIELD", "字段创建后不可修改", http.StatusBadRequest)

	// 批次内容相关
	ErrMalformedEvent    = New("MALFORMED_EVENT", "事件内容无效", http.StatusBadRequest)
	ErrDanglingReference = New("DANGLING_REFERENCE", "事件引用了不存在的案件", http.StatusBadRequest)

	// 对账相关
	ErrIrreconcilableFork = New("IRRECONCILABLE_FORK", "无法找到有效的共同祖先", http.StatusConflict)

	// 基础设施相关
	ErrStoreUnavailable = func() *Error {
		e := New("STORE_UNAVAILABLE", "存储暂不可用", http.StatusServiceUnavailable)
		e.Retryable = true
		return e
	}()
)

// FromError 从标准错误转换
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(ErrInternal, err)
}

// Is 判断错误类型
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	return errors.Is(err, target)
}

// GetCode 获取错误码
func GetCode(err error) string {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// ToHTTPStatus 获取 HTTP 状态码
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		if appErr.HTTPStatus != 0 {
			return appErr.HTTPStatus
		}
	}
	return http.StatusInternalServerError
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}
