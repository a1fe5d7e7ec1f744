package api

import (
	"context"
	"log"
	"strconv"
	"time"

	"careledger/audit"
	"careledger/database"
	"careledger/ledger"
	"careledger/models"
	"careledger/repository"
	"careledger/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// BudgetHandler 预算处理器
type BudgetHandler struct {
	ledger   *ledger.Ledger
	store    repository.Store
	recorder *audit.Recorder
	alerts   *service.AlertService
}

// NewBudgetHandler 创建预算处理器
func NewBudgetHandler(l *ledger.Ledger, store repository.Store, recorder *audit.Recorder, alerts *service.AlertService) *BudgetHandler {
	return &BudgetHandler{ledger: l, store: store, recorder: recorder, alerts: alerts}
}

// CreateBudgetRequest 创建预算请求
// 金额字段接受数字或字符串，按定点小数解析
type CreateBudgetRequest struct {
	ClientID       uint            `json:"client_id" binding:"required" example:"1"`
	PeriodStart    string          `json:"period_start" binding:"required" example:"2026-01-01"`
	PeriodEnd      string          `json:"period_end" binding:"required" example:"2026-12-31"`
	TotalAllocated decimal.Decimal `json:"total_allocated" binding:"required"`

	// 六个类别的可选子额度
	PersonalCareAllocated      decimal.Decimal `json:"personal_care_allocated"`
	MedicalServicesAllocated   decimal.Decimal `json:"medical_services_allocated"`
	TransportationAllocated    decimal.Decimal `json:"transportation_allocated"`
	HomeModificationsAllocated decimal.Decimal `json:"home_modifications_allocated"`
	EmergencyFundAllocated     decimal.Decimal `json:"emergency_fund_allocated"`
	OtherAllocated             decimal.Decimal `json:"other_allocated"`

	WarningThreshold  decimal.Decimal `json:"warning_threshold"`
	CriticalThreshold decimal.Decimal `json:"critical_threshold"`

	AlertsEnabled       *bool `json:"alerts_enabled"`
	ApprovalRequired    bool  `json:"approval_required"`
	AllowOverdraft      bool  `json:"allow_overdraft"`
	EnforceCategoryCaps *bool `json:"enforce_category_caps"`
}

// Create 创建预算
// @Summary 创建预算
// @Description 为客户的一个资助周期创建预算信封，同客户同周期唯一
// @Tags 预算
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateBudgetRequest true "预算信息"
// @Success 200 {object} Response{data=models.Budget} "创建成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 409 {object} Response "该客户该周期已存在预算"
// @Router /api/v1/budgets [post]
func (h *BudgetHandler) Create(c *gin.Context) {
	var req CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	periodStart, err := time.ParseInLocation("2006-01-02", req.PeriodStart, time.Local)
	if err != nil {
		BadRequest(c, "周期开始日期格式错误，应为: 2006-01-02")
		return
	}
	periodEnd, err := time.ParseInLocation("2006-01-02", req.PeriodEnd, time.Local)
	if err != nil {
		BadRequest(c, "周期结束日期格式错误，应为: 2006-01-02")
		return
	}
	// 结束日当天有效
	periodEnd = periodEnd.Add(24*time.Hour - time.Second)
	if !periodEnd.After(periodStart) {
		BadRequest(c, "周期结束必须晚于周期开始")
		return
	}
	if req.TotalAllocated.LessThanOrEqual(decimal.Zero) {
		BadRequest(c, "预算总额必须为正数")
		return
	}

	var client models.Profile
	if err := h.findClient(req.ClientID, &client); err != nil {
		BadRequest(c, "客户不存在")
		return
	}

	budget := models.Budget{
		ClientID:                   req.ClientID,
		PeriodStart:                periodStart,
		PeriodEnd:                  periodEnd,
		Status:                     models.BudgetStatusActive,
		TotalAllocated:             req.TotalAllocated,
		PersonalCareAllocated:      req.PersonalCareAllocated,
		MedicalServicesAllocated:   req.MedicalServicesAllocated,
		TransportationAllocated:    req.TransportationAllocated,
		HomeModificationsAllocated: req.HomeModificationsAllocated,
		EmergencyFundAllocated:     req.EmergencyFundAllocated,
		OtherAllocated:             req.OtherAllocated,
		WarningThreshold:           req.WarningThreshold,
		CriticalThreshold:          req.CriticalThreshold,
		AlertsEnabled:              true,
		ApprovalRequired:           req.ApprovalRequired,
		AllowOverdraft:             req.AllowOverdraft,
		EnforceCategoryCaps:        true,
	}
	if req.AlertsEnabled != nil {
		budget.AlertsEnabled = *req.AlertsEnabled
	}
	if req.EnforceCategoryCaps != nil {
		budget.EnforceCategoryCaps = *req.EnforceCategoryCaps
	}
	// 阈值缺省：八成预警、九五成告急
	if budget.WarningThreshold.LessThanOrEqual(decimal.Zero) {
		budget.WarningThreshold = decimal.NewFromFloat(0.8)
	}
	if budget.CriticalThreshold.LessThanOrEqual(decimal.Zero) {
		budget.CriticalThreshold = decimal.NewFromFloat(0.95)
	}
	budget.Recalculate()

	actor := CurrentActor(c)
	err = h.store.WithTransaction(c.Request.Context(), func(tx repository.Tx) error {
		if err := tx.Budgets().Create(&budget); err != nil {
			return err
		}
		// 创建与审计同事务：审计失败则预算回滚
		_, err := h.recorder.RecordMutation(tx.AuditLogs(), audit.Entry{
			Actor:          actor.Actor,
			EntityType:     budget.TableName(),
			EntityID:       budget.ID,
			Action:         models.AuditActionCreate,
			NewValues:      budget,
			Classification: budget.Classification(),
			ApprovedBy:     actor.Username,
		})
		return err
	})
	if err != nil {
		Conflict(c, SafeErrorMessage(err, "创建预算失败，该客户该周期可能已存在预算"))
		return
	}

	SuccessWithMessage(c, "创建成功", budget)
}

// Get 获取预算详情
// @Summary 获取预算详情
// @Description 读取预算并返回当前水位分级；周期已结束的预算在此惰性转为 EXPIRED
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Success 200 {object} Response "获取成功"
// @Failure 404 {object} Response "预算不存在"
// @Router /api/v1/budgets/{id} [get]
func (h *BudgetHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的预算ID")
		return
	}

	budget, lerr := h.ledger.RefreshBudget(c.Request.Context(), uint(id))
	if lerr != nil {
		LedgerError(c, lerr)
		return
	}

	Success(c, gin.H{
		"budget":    budget,
		"threshold": ledger.EvaluateThresholds(budget),
	})
}

// List 按客户列出预算
// @Summary 按客户列出预算
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Param client_id query int true "客户ID"
// @Success 200 {object} Response{data=[]models.Budget} "获取成功"
// @Router /api/v1/budgets [get]
func (h *BudgetHandler) List(c *gin.Context) {
	clientID, err := strconv.ParseUint(c.Query("client_id"), 10, 32)
	if err != nil {
		BadRequest(c, "请提供有效的 client_id")
		return
	}

	budgets, err := h.store.Budgets().FindByClient(uint(clientID))
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询预算失败"))
		return
	}
	Success(c, budgets)
}

// Threshold 评估预算水位并按需发送告警
// @Summary 评估预算水位
// @Description 返回 ok/warning/critical/exhausted 分级；越线且预算开启告警时发送通知邮件
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Success 200 {object} Response "评估结果"
// @Router /api/v1/budgets/{id}/threshold [get]
func (h *BudgetHandler) Threshold(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的预算ID")
		return
	}

	budget, lerr := h.ledger.RefreshBudget(c.Request.Context(), uint(id))
	if lerr != nil {
		LedgerError(c, lerr)
		return
	}

	level := ledger.EvaluateThresholds(budget)
	if err := h.alerts.NotifyThreshold(budget, level); err != nil {
		// 告警失败不影响评估结果
		log.Printf("发送预算 %d 阈值告警失败: %v", budget.ID, err)
	}

	Success(c, gin.H{
		"budget_id": budget.ID,
		"threshold": level,
		"remaining": budget.Remaining,
	})
}

// StatusRequest 预算冻结/恢复请求
type StatusRequest struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

// Suspend 冻结预算
// @Summary 冻结预算
// @Description 管理操作：ACTIVE → SUSPENDED，需要主管权限
// @Tags 预算
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Param request body StatusRequest true "冻结原因"
// @Success 200 {object} Response{data=models.Budget} "冻结成功"
// @Router /api/v1/budgets/{id}/suspend [post]
func (h *BudgetHandler) Suspend(c *gin.Context) {
	h.setStatus(c, h.ledger.SuspendBudget, "冻结成功")
}

// Resume 恢复预算
// @Summary 恢复预算
// @Description 管理操作：SUSPENDED → ACTIVE，需要主管权限
// @Tags 预算
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Param request body StatusRequest true "恢复原因"
// @Success 200 {object} Response{data=models.Budget} "恢复成功"
// @Router /api/v1/budgets/{id}/resume [post]
func (h *BudgetHandler) Resume(c *gin.Context) {
	h.setStatus(c, h.ledger.ResumeBudget, "恢复成功")
}

// setStatus 冻结/恢复的公共流程
func (h *BudgetHandler) setStatus(c *gin.Context,
	op func(ctx context.Context, budgetID uint, actor ledger.Actor, reason string) (*models.Budget, error),
	message string) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的预算ID")
		return
	}

	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	budget, lerr := op(c.Request.Context(), uint(id), CurrentActor(c), req.Reason)
	if lerr != nil {
		LedgerError(c, lerr)
		return
	}
	SuccessWithMessage(c, message, budget)
}

// findClient 校验客户存在（未软删除）
func (h *BudgetHandler) findClient(clientID uint, client *models.Profile) error {
	return database.DB.First(client, clientID).Error
}
