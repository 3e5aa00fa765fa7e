// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"code-playground-go/pkg/log"
	"time"

	"github.com/gin-gonic/gin"
)

// sizeLogWriter 统计写出的响应字节数
type sizeLogWriter struct {
	gin.ResponseWriter
	written int
}

// Write 实现了 io.Writer 接口，写入 gin.ResponseWriter 并累计字节数
func (w *sizeLogWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

// RequestLogger 是一个 Gin 中间件，用于记录请求日志。
// 请求体里是用户代码，响应里是模型输出，这里只记录大小；请求头不记录，避免带出任何凭证。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 记录请求开始时间
		startTime := time.Now()

		// 使用自定义的 ResponseWriter 统计响应大小
		slw := &sizeLogWriter{ResponseWriter: c.Writer}
		c.Writer = slw

		// 处理请求
		c.Next()

		log.Infow("HTTP Request Log",
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"requestBytes", c.Request.ContentLength,
			"responseBytes", slw.written,
		)
	}
}
