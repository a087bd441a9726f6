package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"payguard/backend/pkg/response"
)

// BodyLimit 请求体大小限制（ICS 上传、信誉分快照导入）
// 超限时读取方拿到 *http.MaxBytesError，绑定失败后由此统一返回 413
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()

		if c.Writer.Written() {
			return
		}
		for _, e := range c.Errors {
			var tooLarge *http.MaxBytesError
			if errors.As(e.Err, &tooLarge) {
				response.PayloadTooLarge(c, 10005, "请求体过大")
				return
			}
		}
	}
}
