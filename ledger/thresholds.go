package ledger

import (
	"careledger/models"

	"github.com/shopspring/decimal"
)

// ThresholdLevel 预算水位分级
type ThresholdLevel string

const (
	// ThresholdOK 正常
	ThresholdOK ThresholdLevel = "ok"
	// ThresholdWarning 已越过预警阈值
	ThresholdWarning ThresholdLevel = "warning"
	// ThresholdCritical 已越过告急阈值
	ThresholdCritical ThresholdLevel = "critical"
	// ThresholdExhausted 余额已耗尽
	ThresholdExhausted ThresholdLevel = "exhausted"
)

// EvaluateThresholds 纯函数：按 已用/总额 比例评估预算水位，不产生任何副作用
// 越过哪一档由调用方（告警通知等外部协作方）决定如何处理
// 比较用乘法避免除法取整：spent >= allocated * threshold
func EvaluateThresholds(b *models.Budget) ThresholdLevel {
	if b.Remaining.LessThanOrEqual(decimal.Zero) {
		return ThresholdExhausted
	}
	if b.TotalAllocated.LessThanOrEqual(decimal.Zero) {
		return ThresholdExhausted
	}

	consumed := b.TotalSpent.Add(b.TotalCommitted)
	if consumed.GreaterThanOrEqual(b.TotalAllocated.Mul(b.CriticalThreshold)) {
		return ThresholdCritical
	}
	if consumed.GreaterThanOrEqual(b.TotalAllocated.Mul(b.WarningThreshold)) {
		return ThresholdWarning
	}
	return ThresholdOK
}
