package api

import (
	"strconv"
	"time"

	"careledger/audit"
	"careledger/database"
	"careledger/ledger"
	"careledger/models"
	"careledger/repository"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// VisitHandler 探访处理器
// 探访记录含健康观察内容（PHI），变更一律审计
type VisitHandler struct {
	ledger   *ledger.Ledger
	recorder *audit.Recorder
}

// NewVisitHandler 创建探访处理器
func NewVisitHandler(l *ledger.Ledger, recorder *audit.Recorder) *VisitHandler {
	return &VisitHandler{ledger: l, recorder: recorder}
}

// ScheduleVisitRequest 排班请求
type ScheduleVisitRequest struct {
	ProfileID   uint   `json:"profile_id" binding:"required"`
	CaregiverID uint   `json:"caregiver_id" binding:"required"`
	ScheduledAt string `json:"scheduled_at" binding:"required" example:"2026-03-15 09:00:00"`
	Notes       string `json:"notes"`
}

// Schedule 安排探访
// @Summary 安排探访
// @Tags 探访
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ScheduleVisitRequest true "排班信息"
// @Success 200 {object} Response{data=models.Visit} "创建成功"
// @Router /api/v1/visits [post]
func (h *VisitHandler) Schedule(c *gin.Context) {
	var req ScheduleVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	scheduledAt, err := time.ParseInLocation("2006-01-02 15:04:05", req.ScheduledAt, time.Local)
	if err != nil {
		BadRequest(c, "时间格式错误，应为: 2006-01-02 15:04:05")
		return
	}

	visit := models.Visit{
		ProfileID:   req.ProfileID,
		CaregiverID: req.CaregiverID,
		ScheduledAt: scheduledAt,
		Status:      models.VisitStatusScheduled,
		Notes:       req.Notes,
	}

	actor := CurrentActor(c)
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&visit).Error; err != nil {
			return err
		}
		_, err := h.recorder.RecordMutation(repository.NewAuditLogs(tx), audit.Entry{
			Actor:          actor.Actor,
			EntityType:     visit.TableName(),
			EntityID:       visit.ID,
			Action:         models.AuditActionCreate,
			NewValues:      visit,
			Classification: visit.Classification(),
			ApprovedBy:     actor.Username,
		})
		return err
	})
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "安排探访失败"))
		return
	}

	SuccessWithMessage(c, "创建成功", visit)
}

// CompleteVisitRequest 完成探访请求
// 可附带计费信息：对指定预算生成一笔关联本次探访的支出
type CompleteVisitRequest struct {
	Notes    string           `json:"notes"`
	BudgetID uint             `json:"budget_id"`
	Category string           `json:"category" example:"personalCare"`
	Amount   *decimal.Decimal `json:"amount"`
}

// Complete 完成探访
// @Summary 完成探访
// @Description 标记探访完成；携带计费信息时在同一请求内对预算记支出（visit_id 关联本次探访）
// @Tags 探访
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "探访ID"
// @Param request body CompleteVisitRequest true "完成信息"
// @Success 200 {object} Response "完成成功"
// @Router /api/v1/visits/{id}/complete [post]
func (h *VisitHandler) Complete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的探访ID")
		return
	}

	var req CompleteVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	var visit models.Visit
	if err := database.DB.First(&visit, uint(id)).Error; err != nil {
		NotFound(c, "探访不存在")
		return
	}
	if visit.Status != models.VisitStatusScheduled {
		UnprocessableEntity(c, "探访不在已排班状态")
		return
	}

	before := visit
	now := time.Now()
	visit.Status = models.VisitStatusCompleted
	visit.CompletedAt = &now
	if req.Notes != "" {
		visit.Notes = req.Notes
	}

	actor := CurrentActor(c)
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&visit).Error; err != nil {
			return err
		}
		_, err := h.recorder.RecordMutation(repository.NewAuditLogs(tx), audit.Entry{
			Actor:          actor.Actor,
			EntityType:     visit.TableName(),
			EntityID:       visit.ID,
			Action:         models.AuditActionUpdate,
			OldValues:      before,
			NewValues:      visit,
			Reason:         "探访完成",
			Classification: visit.Classification(),
			ApprovedBy:     actor.Username,
		})
		return err
	})
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "完成探访失败"))
		return
	}

	// 计费走账本：规则校验与审计由账本负责
	if req.BudgetID != 0 && req.Amount != nil {
		visitID := visit.ID
		result, lerr := h.ledger.ApplyExpense(c.Request.Context(), req.BudgetID, ledger.ExpenseInput{
			Category:    req.Category,
			Amount:      *req.Amount,
			Description: "探访计费",
			ExpenseDate: now,
			VisitID:     &visitID,
		}, actor)
		if lerr != nil {
			// 探访完成已落库，记账失败要让调用方知道两边状态不一致
			status, msg := ledgerStatusMessage(lerr)
			c.JSON(status, Response{
				Code:    status,
				Message: "探访已完成，但计费记账失败: " + msg,
				Data:    gin.H{"visit": visit},
			})
			return
		}
		SuccessWithMessage(c, "探访完成，已记账", gin.H{"visit": visit, "billing": result})
		return
	}

	SuccessWithMessage(c, "探访完成", visit)
}

// List 按客户列出探访
// @Summary 探访列表
// @Tags 探访
// @Produce json
// @Security BearerAuth
// @Param profile_id query int true "客户档案ID"
// @Success 200 {object} Response{data=[]models.Visit} "获取成功"
// @Router /api/v1/visits [get]
func (h *VisitHandler) List(c *gin.Context) {
	profileID, err := strconv.ParseUint(c.Query("profile_id"), 10, 32)
	if err != nil {
		BadRequest(c, "请提供有效的 profile_id")
		return
	}

	var visits []models.Visit
	if err := database.DB.Where("profile_id = ?", uint(profileID)).
		Order("scheduled_at DESC").
		Find(&visits).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询探访失败"))
		return
	}
	Success(c, visits)
}
