package api

import (
	"errors"
	"net/http"

	"careledger/audit"
	"careledger/ledger"
	"careledger/repository"

	"github.com/gin-gonic/gin"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	List     interface{} `json:"list"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 带消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Message: message,
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 400 错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// Unauthorized 401 错误响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

// Forbidden 403 错误响应
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message)
}

// NotFound 404 错误响应
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// Conflict 409 错误响应
func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, message)
}

// UnprocessableEntity 422 错误响应（业务规则拒绝）
func UnprocessableEntity(c *gin.Context, message string) {
	Error(c, http.StatusUnprocessableEntity, message)
}

// InternalError 500 错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}

// LedgerError 将账本/审计的类型化错误映射为 HTTP 响应
// 调用方负责把类型化失败翻译成可操作的提示文案
func LedgerError(c *gin.Context, err error) {
	status, message := ledgerStatusMessage(err)
	Error(c, status, message)
}

// ledgerStatusMessage 类型化错误 → 状态码与提示文案
func ledgerStatusMessage(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrBudgetNotFound),
		errors.Is(err, ledger.ErrExpenseNotFound),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrUnknownCategory),
		errors.Is(err, ledger.ErrExpenseDateOutsidePeriod):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ledger.ErrInsufficientRemainingFunds):
		return http.StatusUnprocessableEntity, "预算余额不足，可请主管审批透支"
	case errors.Is(err, ledger.ErrCategoryCapExceeded):
		return http.StatusUnprocessableEntity, "类别子额度超限，请调整类别或申请调增额度"
	case errors.Is(err, ledger.ErrBudgetNotActive),
		errors.Is(err, ledger.ErrBudgetNotSuspended),
		errors.Is(err, ledger.ErrBudgetExpired),
		errors.Is(err, ledger.ErrExpenseNotPending),
		errors.Is(err, ledger.ErrExpenseNotReversible),
		errors.Is(err, ledger.ErrExpenseAlreadyReversed):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, audit.ErrApprovalRequiredButMissing):
		return http.StatusForbidden, "该操作需要主管审批"
	case errors.Is(err, ledger.ErrConcurrentUpdateConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, ledger.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "存储服务不可用，请稍后重试"
	default:
		return http.StatusInternalServerError, SafeErrorMessage(err, "操作失败")
	}
}
