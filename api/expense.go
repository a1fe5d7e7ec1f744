package api

import (
	"strconv"
	"time"

	"careledger/ledger"
	"careledger/models"
	"careledger/repository"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ExpenseHandler 预算支出处理器
type ExpenseHandler struct {
	ledger *ledger.Ledger
	store  repository.Store
}

// NewExpenseHandler 创建预算支出处理器
func NewExpenseHandler(l *ledger.Ledger, store repository.Store) *ExpenseHandler {
	return &ExpenseHandler{ledger: l, store: store}
}

// SubmitExpenseRequest 记支出请求
type SubmitExpenseRequest struct {
	BudgetID    uint            `json:"budget_id" binding:"required" example:"1"`
	VisitID     *uint           `json:"visit_id"` // 可选来源探访
	Category    string          `json:"category" binding:"required" example:"personalCare"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Description string          `json:"description" binding:"max=255" example:"上门助浴服务"`
	ExpenseDate string          `json:"expense_date" binding:"required" example:"2026-03-15"`
}

// Submit 对预算记一笔支出
// @Summary 记一笔支出
// @Description 校验预算状态/余额/类别额度后记账；预算要求审批且操作人非主管时流水进入待审批
// @Tags 支出
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SubmitExpenseRequest true "支出信息"
// @Success 200 {object} Response{data=ledger.ApplyResult} "记账成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 422 {object} Response "业务规则拒绝（余额不足/额度超限/状态不允许）"
// @Failure 409 {object} Response "并发冲突"
// @Router /api/v1/expenses [post]
func (h *ExpenseHandler) Submit(c *gin.Context) {
	var req SubmitExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	expenseDate, err := time.ParseInLocation("2006-01-02", req.ExpenseDate, time.Local)
	if err != nil {
		BadRequest(c, "支出日期格式错误，应为: 2006-01-02")
		return
	}

	result, lerr := h.ledger.ApplyExpense(c.Request.Context(), req.BudgetID, ledger.ExpenseInput{
		Category:    req.Category,
		Amount:      req.Amount,
		Description: req.Description,
		ExpenseDate: expenseDate,
		VisitID:     req.VisitID,
	}, CurrentActor(c))
	if lerr != nil {
		LedgerError(c, lerr)
		return
	}

	message := "记账成功"
	if result.Expense.Status == models.ExpenseStatusPending {
		message = "已提交，等待主管审批"
	}
	SuccessWithMessage(c, message, result)
}

// Approve 核准待审批支出
// @Summary 核准支出
// @Description 主管核准待审批支出，占用金额转为已用
// @Tags 支出
// @Produce json
// @Security BearerAuth
// @Param id path int true "支出流水ID"
// @Success 200 {object} Response{data=ledger.ApplyResult} "核准成功"
// @Failure 403 {object} Response "需要主管权限"
// @Failure 422 {object} Response "流水不在待审批状态"
// @Router /api/v1/expenses/{id}/approve [post]
func (h *ExpenseHandler) Approve(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的支出流水ID")
		return
	}

	result, lerr := h.ledger.ApproveExpense(c.Request.Context(), uint(id), CurrentActor(c))
	if lerr != nil {
		LedgerError(c, lerr)
		return
	}
	SuccessWithMessage(c, "核准成功", result)
}

// RejectExpenseRequest 驳回支出请求
type RejectExpenseRequest struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

// Reject 驳回待审批支出
// @Summary 驳回支出
// @Description 主管驳回待审批支出，释放占用金额
// @Tags 支出
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "支出流水ID"
// @Param request body RejectExpenseRequest true "驳回原因"
// @Success 200 {object} Response{data=ledger.ApplyResult} "驳回成功"
// @Router /api/v1/expenses/{id}/reject [post]
func (h *ExpenseHandler) Reject(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的支出流水ID")
		return
	}

	var req RejectExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	result, lerr := h.ledger.RejectExpense(c.Request.Context(), uint(id), CurrentActor(c), req.Reason)
	if lerr != nil {
		LedgerError(c, lerr)
		return
	}
	SuccessWithMessage(c, "已驳回", result)
}

// ReverseExpenseRequest 冲正请求
type ReverseExpenseRequest struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

// Reverse 冲正已核准支出
// @Summary 冲正支出
// @Description 生成等额负数补偿流水，原始流水保持不变；已耗尽/已过期的预算也允许冲正
// @Tags 支出
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "支出流水ID"
// @Param request body ReverseExpenseRequest true "冲正原因"
// @Success 200 {object} Response{data=ledger.ApplyResult} "冲正成功"
// @Failure 422 {object} Response "流水不可冲正或已被冲正"
// @Router /api/v1/expenses/{id}/reverse [post]
func (h *ExpenseHandler) Reverse(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的支出流水ID")
		return
	}

	var req ReverseExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	result, lerr := h.ledger.ReverseExpense(c.Request.Context(), uint(id), CurrentActor(c), req.Reason)
	if lerr != nil {
		LedgerError(c, lerr)
		return
	}
	SuccessWithMessage(c, "冲正成功", result)
}

// List 按预算分页列出支出流水
// @Summary 支出流水列表
// @Tags 支出
// @Produce json
// @Security BearerAuth
// @Param budget_id query int true "预算ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} Response{data=PageResponse{list=[]models.BudgetExpense}} "获取成功"
// @Router /api/v1/expenses [get]
func (h *ExpenseHandler) List(c *gin.Context) {
	budgetID, err := strconv.ParseUint(c.Query("budget_id"), 10, 32)
	if err != nil {
		BadRequest(c, "请提供有效的 budget_id")
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	expenses, total, err := h.store.Expenses().ListByBudget(uint(budgetID), page, pageSize)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询支出流水失败"))
		return
	}

	Success(c, PageResponse{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		List:     expenses,
	})
}

// Get 获取单笔支出流水
// @Summary 支出流水详情
// @Tags 支出
// @Produce json
// @Security BearerAuth
// @Param id path int true "支出流水ID"
// @Success 200 {object} Response{data=models.BudgetExpense} "获取成功"
// @Failure 404 {object} Response "流水不存在"
// @Router /api/v1/expenses/{id} [get]
func (h *ExpenseHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的支出流水ID")
		return
	}

	expense, err := h.store.Expenses().FindByID(uint(id))
	if err != nil {
		LedgerError(c, err)
		return
	}
	Success(c, expense)
}

// GetCategories 获取支出类别
// @Summary 支出类别列表
// @Tags 支出
// @Produce json
// @Success 200 {object} Response{data=[]string} "获取成功"
// @Router /api/v1/categories [get]
func (h *ExpenseHandler) GetCategories(c *gin.Context) {
	Success(c, models.BudgetCategories())
}
