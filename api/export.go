package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"careledger/database"
	"careledger/models"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// ExportHandler 导出处理器
type ExportHandler struct{}

// NewExportHandler 创建导出处理器
func NewExportHandler() *ExportHandler {
	return &ExportHandler{}
}

// ExportBudgetExcel 导出预算对账 Excel
// @Summary 导出预算对账表
// @Description 导出某预算的支出流水与审计轨迹两个工作表，供合规复核
// @Tags 导出
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param budget_id query int true "预算ID"
// @Success 200 {file} file "Excel 文件"
// @Failure 400 {object} Response "请求参数错误"
// @Router /api/v1/export/excel [get]
func (h *ExportHandler) ExportBudgetExcel(c *gin.Context) {
	budgetID, err := strconv.ParseUint(c.Query("budget_id"), 10, 32)
	if err != nil {
		BadRequest(c, "请提供有效的 budget_id")
		return
	}

	var budget models.Budget
	if err := database.DB.First(&budget, uint(budgetID)).Error; err != nil {
		NotFound(c, "预算不存在")
		return
	}

	var expenses []models.BudgetExpense
	if err := database.DB.Where("budget_id = ?", budget.ID).
		Order("expense_date ASC, id ASC").
		Find(&expenses).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询支出流水失败"))
		return
	}

	var logs []models.AuditLog
	if err := database.DB.Where("entity_type = ? AND entity_id = ?", budget.TableName(), budget.ID).
		Order("created_at ASC, id ASC").
		Find(&logs).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询审计日志失败"))
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	// 工作表一：支出流水
	expenseSheet := "支出流水"
	f.SetSheetName("Sheet1", expenseSheet)
	expenseHeaders := []string{"ID", "类别", "金额", "状态", "支出日期", "说明", "冲正自", "创建时间"}
	for i, header := range expenseHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(expenseSheet, cell, header)
	}
	for row, e := range expenses {
		reverses := ""
		if e.ReversesExpenseID != nil {
			reverses = fmt.Sprintf("#%d", *e.ReversesExpenseID)
		}
		values := []interface{}{
			e.ID, e.Category, e.Amount.StringFixed(2), e.Status,
			e.ExpenseDate.Format("2006-01-02"), e.Description, reverses,
			e.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(expenseSheet, cell, v)
		}
	}

	// 工作表二：审计轨迹
	auditSheet := "审计轨迹"
	f.NewSheet(auditSheet)
	auditHeaders := []string{"ID", "动作", "操作人ID", "敏感级别", "需审批", "审批人", "请求ID", "原因", "时间"}
	for i, header := range auditHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(auditSheet, cell, header)
	}
	for row, l := range logs {
		userID := ""
		if l.UserID != nil {
			userID = strconv.FormatUint(uint64(*l.UserID), 10)
		}
		values := []interface{}{
			l.ID, l.Action, userID, string(l.DataAccessed), l.ApprovalRequired,
			l.ApprovedBy, l.RequestID, l.Reason,
			l.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(auditSheet, cell, v)
		}
	}

	filename := fmt.Sprintf("budget_%d_%s.xlsx", budget.ID, time.Now().Format("20060102"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, SafeErrorMessage(err, "生成 Excel 失败"))
		return
	}
	c.Status(http.StatusOK)
}
