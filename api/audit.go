package api

import (
	"time"

	"careledger/repository"

	"github.com/gin-gonic/gin"
)

// AuditHandler 审计日志处理器（只读，不存在任何变更路由）
type AuditHandler struct {
	store repository.Store
}

// NewAuditHandler 创建审计日志处理器
func NewAuditHandler(store repository.Store) *AuditHandler {
	return &AuditHandler{store: store}
}

// AuditListRequest 审计日志查询请求
type AuditListRequest struct {
	EntityType string `form:"entity_type" example:"budgets"`
	EntityID   uint   `form:"entity_id" example:"1"`
	UserID     uint   `form:"user_id" example:"1"`
	Action     string `form:"action" example:"EXPENSE_APPLY"`
	StartTime  string `form:"start_time" example:"2026-01-01"`
	EndTime    string `form:"end_time" example:"2026-12-31"`
	Page       int    `form:"page" example:"1"`
	PageSize   int    `form:"page_size" example:"20"`
}

// List 查询审计日志
// @Summary 审计日志列表
// @Description 合规审查用，支持按实体/操作人/动作/时间范围筛选，需要主管权限
// @Tags 审计
// @Produce json
// @Security BearerAuth
// @Param entity_type query string false "实体类型"
// @Param entity_id query int false "实体ID"
// @Param user_id query int false "操作人ID"
// @Param action query string false "动作"
// @Param start_time query string false "开始时间 (2026-01-01)"
// @Param end_time query string false "结束时间 (2026-12-31)"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} Response{data=PageResponse{list=[]models.AuditLog}} "获取成功"
// @Router /api/v1/audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	var req AuditListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	filter := repository.AuditFilter{
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Action:     req.Action,
		Page:       req.Page,
		PageSize:   req.PageSize,
	}
	if req.UserID != 0 {
		uid := req.UserID
		filter.UserID = &uid
	}
	if req.StartTime != "" {
		if t, err := time.ParseInLocation("2006-01-02", req.StartTime, time.Local); err == nil {
			filter.StartTime = &t
		}
	}
	if req.EndTime != "" {
		if t, err := time.ParseInLocation("2006-01-02", req.EndTime, time.Local); err == nil {
			// 包含结束日期当天
			end := t.Add(24*time.Hour - time.Second)
			filter.EndTime = &end
		}
	}

	logs, total, err := h.store.AuditLogs().List(filter)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询审计日志失败"))
		return
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	Success(c, PageResponse{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		List:     logs,
	})
}
