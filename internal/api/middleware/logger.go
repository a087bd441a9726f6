package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// quietPaths 探活与指标抓取只在 debug 级别记录
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// Logger 访问日志；认证后的请求附带公司与操作人
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("route", c.FullPath()),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(requestIDKey)),
		}
		if companyID := c.GetString("company_id"); companyID != "" {
			fields = append(fields,
				zap.String("company_id", companyID),
				zap.String("user_id", c.GetString("user_id")),
			)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.ByType(gin.ErrorTypePrivate).String()))
		}

		level := zapcore.InfoLevel
		switch {
		case status >= 500:
			level = zapcore.ErrorLevel
		case status >= 400:
			level = zapcore.WarnLevel
		case quietPaths[path]:
			level = zapcore.DebugLevel
		}
		if ce := logger.Check(level, "请求完成"); ce != nil {
			ce.Write(fields...)
		}
	}
}
