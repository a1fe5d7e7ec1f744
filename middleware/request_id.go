package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader 请求标识响应头
const RequestIDHeader = "X-Request-ID"

// RequestID 请求标识中间件
// 客户端未携带时生成 uuid，供审计日志串联一次请求内的全部变更
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set("requestID", rid)
		c.Header(RequestIDHeader, rid)
		c.Next()
	}
}

// GetRequestID 从上下文获取请求标识
func GetRequestID(c *gin.Context) string {
	if v, exists := c.Get("requestID"); exists {
		if rid, ok := v.(string); ok {
			return rid
		}
	}
	return ""
}
