// Package errs 提供业务错误类型和错误码
package errs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// Error 业务错误
type Error struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	HTTPStatus int               `json:"-"`
	GRPCCode   codes.Code        `json:"-"`
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

// Is 实现 errors.Is 接口，按错误码比较
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
		GRPCCode:   e.GRPCCode,
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

// WithMessage 替换错误消息
func (e *Error) WithMessage(message string) *Error {
	newErr := e.Copy()
	newErr.Message = message
	return newErr
}

// WithMessagef 格式化替换错误消息
func (e *Error) WithMessagef(format string, args ...interface{}) *Error {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// JSON 返回 JSON 格式
func (e *Error) JSON() string {
	data, _ := json.Marshal(e)
	return string(data)
}

// NewWithStatus 创建带状态码的错误
func NewWithStatus(code, message string, httpStatus int, grpcCode codes.Code) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		GRPCCode:   grpcCode,
	}
}

// Wrap 包装错误
func Wrap(err *Error, cause error) *Error {
	newErr := err.Copy()
	newErr.Cause = cause
	return newErr
}

// Wrapf 包装错误并添加信息
func Wrapf(err *Error, cause error, format string, args ...interface{}) *Error {
	newErr := err.Copy()
	newErr.Message = fmt.Sprintf("%s: %s", err.Message, fmt.Sprintf(format, args...))
	newErr.Cause = cause
	return newErr
}

// 错误码
// 每个拒绝都携带机器可读的 code，调用方据此区分可重试/不可重试
var (
	ErrValidation           = NewWithStatus("validation_error", "参数无效", http.StatusBadRequest, codes.InvalidArgument)
	ErrDuplicateEvent       = NewWithStatus("duplicate_event", "事件已记账", http.StatusConflict, codes.AlreadyExists)
	ErrRateLimited          = NewWithStatus("rate_limited", "请求过于频繁", http.StatusTooManyRequests, codes.ResourceExhausted)
	ErrNotEligible          = NewWithStatus("not_eligible", "不满足条件", http.StatusForbidden, codes.FailedPrecondition)
	ErrInsufficientBalance  = NewWithStatus("insufficient_balance", "余额不足", http.StatusPaymentRequired, codes.FailedPrecondition)
	ErrStalePrice           = NewWithStatus("stale_price", "价格已过期", http.StatusServiceUnavailable, codes.Unavailable)
	ErrPriceFeedUnavailable = NewWithStatus("price_feed_unavailable", "价格源不可用", http.StatusServiceUnavailable, codes.Unavailable)
	ErrTransientStore       = NewWithStatus("transient_store_error", "存储暂时不可用", http.StatusServiceUnavailable, codes.Unavailable)
	ErrNotFound             = NewWithStatus("not_found", "资源不存在", http.StatusNotFound, codes.NotFound)
	ErrForbidden            = NewWithStatus("forbidden", "禁止访问", http.StatusForbidden, codes.PermissionDenied)
	ErrInvoiceExpired       = NewWithStatus("invoice_expired", "账单已过期", http.StatusBadRequest, codes.FailedPrecondition)
	ErrOrderNotOpen         = NewWithStatus("order_not_open", "订单已终结", http.StatusBadRequest, codes.FailedPrecondition)
	ErrInternal             = NewWithStatus("internal_error", "内部错误", http.StatusInternalServerError, codes.Internal)
)

// FromError 从标准错误转换
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var bizErr *Error
	if errors.As(err, &bizErr) {
		return bizErr
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
	var bizErr *Error
	if errors.As(err, &bizErr) {
		return bizErr.Code
	}
	return "unknown"
}

// ToHTTPStatus 获取 HTTP 状态码
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var bizErr *Error
	if errors.As(err, &bizErr) && bizErr.HTTPStatus != 0 {
		return bizErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsRetryable 判断错误是否可重试
// 幂等键保证重试不会重复记账
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var bizErr *Error
	if errors.As(err, &bizErr) {
		switch bizErr.GRPCCode {
		case codes.Unavailable, codes.ResourceExhausted, codes.Aborted, codes.DeadlineExceeded:
			return true
		}
	}
	return false
}
