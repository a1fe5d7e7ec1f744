package api

import (
	"careledger/audit"
	"careledger/ledger"
	"careledger/middleware"
	"careledger/models"

	"github.com/gin-gonic/gin"
)

// CurrentActor 从请求上下文组装账本操作人：
// 身份来自 JWT，IP/会话/请求标识供审计日志记录
func CurrentActor(c *gin.Context) ledger.Actor {
	userID := middleware.GetCurrentUserID(c)
	role := middleware.GetCurrentRole(c)

	var uid *uint
	if userID != 0 {
		uid = &userID
	}
	return ledger.Actor{
		Actor: audit.Actor{
			UserID:    uid,
			Username:  middleware.GetCurrentUsername(c),
			IPAddress: c.ClientIP(),
			SessionID: middleware.GetSessionID(c),
			RequestID: middleware.GetRequestID(c),
		},
		CanApprove: role == models.RoleSupervisor || role == models.RoleAdmin,
	}
}
