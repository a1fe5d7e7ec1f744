package ledger

import (
	"context"
	"errors"

	"careledger/audit"
	"careledger/repository"
)

// 业务规则错误：同步返回给调用方，不自动重试，
// 是否人工覆核由上层工作流决定
var (
	// ErrBudgetNotFound 预算不存在
	ErrBudgetNotFound = errors.New("预算不存在")
	// ErrBudgetNotActive 预算不在生效状态，不接受新支出
	ErrBudgetNotActive = errors.New("预算不在生效状态")
	// ErrBudgetNotSuspended 只有冻结中的预算可以恢复
	ErrBudgetNotSuspended = errors.New("预算不在冻结状态")
	// ErrBudgetExpired 预算周期已结束
	ErrBudgetExpired = errors.New("预算周期已结束")
	// ErrInsufficientRemainingFunds 余额不足且该预算不允许透支
	ErrInsufficientRemainingFunds = errors.New("预算余额不足")
	// ErrCategoryCapExceeded 类别子额度超限
	ErrCategoryCapExceeded = errors.New("类别子额度超限")
)

// 输入校验错误：在任何持久化操作之前拒绝
var (
	// ErrInvalidAmount 金额必须为正数
	ErrInvalidAmount = errors.New("支出金额必须为正数")
	// ErrUnknownCategory 未知的支出类别
	ErrUnknownCategory = errors.New("未知的支出类别")
	// ErrExpenseDateOutsidePeriod 支出日期不在预算周期内
	ErrExpenseDateOutsidePeriod = errors.New("支出日期不在预算周期内")
)

// 流水状态错误
var (
	// ErrExpenseNotFound 支出流水不存在
	ErrExpenseNotFound = errors.New("支出流水不存在")
	// ErrExpenseNotPending 流水不在待审批状态
	ErrExpenseNotPending = errors.New("支出流水不在待审批状态")
	// ErrExpenseNotReversible 只有已核准的原始流水可以冲正
	ErrExpenseNotReversible = errors.New("该支出流水不可冲正")
	// ErrExpenseAlreadyReversed 该流水已存在冲正记录
	ErrExpenseAlreadyReversed = errors.New("该支出流水已被冲正")
)

var (
	// ErrConcurrentUpdateConflict 乐观锁冲突重试耗尽
	ErrConcurrentUpdateConflict = errors.New("并发更新冲突，请重试")
	// ErrStorageUnavailable 持久化层不可用
	ErrStorageUnavailable = errors.New("存储服务不可用")
)

// typedErrors 账本对外暴露的全部类型化错误
var typedErrors = []error{
	ErrBudgetNotFound,
	ErrBudgetNotActive,
	ErrBudgetNotSuspended,
	ErrBudgetExpired,
	ErrInsufficientRemainingFunds,
	ErrCategoryCapExceeded,
	ErrInvalidAmount,
	ErrUnknownCategory,
	ErrExpenseDateOutsidePeriod,
	ErrExpenseNotFound,
	ErrExpenseNotPending,
	ErrExpenseNotReversible,
	ErrExpenseAlreadyReversed,
	ErrConcurrentUpdateConflict,
	audit.ErrApprovalRequiredButMissing,
	audit.ErrInvalidClassification,
	repository.ErrStaleVersion,
}

// IsBusinessRuleError 判断是否为余额/额度/状态类业务规则错误
// （供调用方与审计的拒绝记录策略使用）
func IsBusinessRuleError(err error) bool {
	return errors.Is(err, ErrInsufficientRemainingFunds) ||
		errors.Is(err, ErrCategoryCapExceeded) ||
		errors.Is(err, ErrBudgetNotActive) ||
		errors.Is(err, ErrBudgetNotSuspended) ||
		errors.Is(err, ErrBudgetExpired) ||
		errors.Is(err, ErrExpenseDateOutsidePeriod)
}

// wrapStorage 将未归类的持久化错误统一包装为 ErrStorageUnavailable，
// 已类型化的错误与上下文取消原样透传
func wrapStorage(err error) error {
	if err == nil {
		return nil
	}
	for _, typed := range typedErrors {
		if errors.Is(err, typed) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Join(ErrStorageUnavailable, err)
}
