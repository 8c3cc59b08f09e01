package handler

import (
	"crypto/subtle"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/manh-exchange/manh-core/pkg/errs"
	"github.com/manh-exchange/manh-core/pkg/logger"
)

const internalSecretHeader = "X-Internal-Secret"

// Recovery panic 恢复中间件
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", "path", c.Request.URL.Path, "panic", r)
				Error(c, errs.ErrInternal)
				c.Abort()
			}
		}()
		c.Next()
	}
}

// AccessLog 访问日志中间件
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}

// InternalAuth 特权端点认证
// 共享密钥经 X-Internal-Secret 传递，常数时间比较
func InternalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader(internalSecretHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			Error(c, errs.ErrForbidden.WithMessage("invalid internal secret"))
			c.Abort()
			return
		}
		c.Next()
	}
}
