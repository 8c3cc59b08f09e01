// Package handler 提供 HTTP 请求处理
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/manh-exchange/manh-core/pkg/errs"
)

// Response 统一响应包装
type Response struct {
	Code    string            `json:"code"`
	Message string            `json:"message,omitempty"`
	Data    interface{}       `json:"data,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// Success 返回成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, &Response{Code: "ok", Data: data})
}

// Error 返回业务错误响应
// 状态码与错误码来自 pkg/errs，未知错误折叠为 internal_error
func Error(c *gin.Context, err error) {
	bizErr := errs.FromError(err)
	c.JSON(bizErr.HTTPStatus, &Response{
		Code:    bizErr.Code,
		Message: bizErr.Message,
		Details: bizErr.Details,
	})
}

// BadRequest 返回参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, errs.ErrValidation.WithMessage(message))
}
