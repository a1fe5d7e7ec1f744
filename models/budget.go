package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	// BudgetStatusActive 生效中：可记支出
	BudgetStatusActive = "ACTIVE"
	// BudgetStatusExhausted 已耗尽：余额为零，不再接受新支出
	BudgetStatusExhausted = "EXHAUSTED"
	// BudgetStatusExpired 已过期：超出预算周期
	BudgetStatusExpired = "EXPIRED"
	// BudgetStatusSuspended 已暂停：管理操作冻结
	BudgetStatusSuspended = "SUSPENDED"
)

// 预算支出类别常量
const (
	CategoryPersonalCare      = "personalCare"      // 生活照护
	CategoryMedicalServices   = "medicalServices"   // 医疗服务
	CategoryTransportation    = "transportation"    // 交通出行
	CategoryHomeModifications = "homeModifications" // 居家改造
	CategoryEmergencyFund     = "emergencyFund"     // 应急备用
	CategoryOther             = "other"             // 其他
)

// BudgetCategories 返回所有预算支出类别
func BudgetCategories() []string {
	return []string{
		CategoryPersonalCare,
		CategoryMedicalServices,
		CategoryTransportation,
		CategoryHomeModifications,
		CategoryEmergencyFund,
		CategoryOther,
	}
}

// ValidBudgetCategory 判断类别是否合法
func ValidBudgetCategory(category string) bool {
	for _, c := range BudgetCategories() {
		if c == category {
			return true
		}
	}
	return false
}

// Budget 客户某个资助周期的预算信封
// 不变量：Remaining = TotalAllocated - TotalSpent - TotalCommitted（任何变更后必须成立）
// 金额一律使用定点小数，禁止二进制浮点
type Budget struct {
	ID       uint `json:"id" gorm:"primaryKey"`
	ClientID uint `json:"client_id" gorm:"not null;uniqueIndex:uniq_client_period"` // 所属客户（Profile）

	PeriodStart time.Time `json:"period_start" gorm:"not null;uniqueIndex:uniq_client_period"`
	PeriodEnd   time.Time `json:"period_end" gorm:"not null;uniqueIndex:uniq_client_period"`

	Status string `json:"status" gorm:"size:20;default:ACTIVE;index"` // ACTIVE/EXHAUSTED/EXPIRED/SUSPENDED

	TotalAllocated decimal.Decimal `json:"total_allocated" gorm:"type:decimal(12,2);not null"`
	TotalSpent     decimal.Decimal `json:"total_spent" gorm:"type:decimal(12,2);not null;default:0"`
	TotalCommitted decimal.Decimal `json:"total_committed" gorm:"type:decimal(12,2);not null;default:0"`
	Remaining      decimal.Decimal `json:"remaining" gorm:"type:decimal(12,2);not null;default:0"`

	// 六个命名类别的子额度与已用额
	PersonalCareAllocated      decimal.Decimal `json:"personal_care_allocated" gorm:"type:decimal(12,2);not null;default:0"`
	PersonalCareSpent          decimal.Decimal `json:"personal_care_spent" gorm:"type:decimal(12,2);not null;default:0"`
	MedicalServicesAllocated   decimal.Decimal `json:"medical_services_allocated" gorm:"type:decimal(12,2);not null;default:0"`
	MedicalServicesSpent       decimal.Decimal `json:"medical_services_spent" gorm:"type:decimal(12,2);not null;default:0"`
	TransportationAllocated    decimal.Decimal `json:"transportation_allocated" gorm:"type:decimal(12,2);not null;default:0"`
	TransportationSpent        decimal.Decimal `json:"transportation_spent" gorm:"type:decimal(12,2);not null;default:0"`
	HomeModificationsAllocated decimal.Decimal `json:"home_modifications_allocated" gorm:"type:decimal(12,2);not null;default:0"`
	HomeModificationsSpent     decimal.Decimal `json:"home_modifications_spent" gorm:"type:decimal(12,2);not null;default:0"`
	EmergencyFundAllocated     decimal.Decimal `json:"emergency_fund_allocated" gorm:"type:decimal(12,2);not null;default:0"`
	EmergencyFundSpent         decimal.Decimal `json:"emergency_fund_spent" gorm:"type:decimal(12,2);not null;default:0"`
	OtherAllocated             decimal.Decimal `json:"other_allocated" gorm:"type:decimal(12,2);not null;default:0"`
	OtherSpent                 decimal.Decimal `json:"other_spent" gorm:"type:decimal(12,2);not null;default:0"`

	// 阈值按 已用/总额 比例解释，如 0.80 表示用到八成触发预警
	WarningThreshold  decimal.Decimal `json:"warning_threshold" gorm:"type:decimal(5,4);not null;default:0.8"`
	CriticalThreshold decimal.Decimal `json:"critical_threshold" gorm:"type:decimal(5,4);not null;default:0.95"`

	AlertsEnabled       bool `json:"alerts_enabled" gorm:"default:true"`
	ApprovalRequired    bool `json:"approval_required" gorm:"default:false"`  // 支出是否一律先进入待审批
	AllowOverdraft      bool `json:"allow_overdraft" gorm:"default:false"`    // 是否允许透支（需审批门槛配合）
	EnforceCategoryCaps bool `json:"enforce_category_caps" gorm:"default:true"` // 类别子额度是否硬性限制

	Version   uint           `json:"version" gorm:"default:1;not null"` // 乐观锁版本号
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"` // 软删除，审计连续性要求不做物理删除
}

// TableName 设置表名
func (Budget) TableName() string {
	return "budgets"
}

// Classification 预算与客户资助信息相关
func (Budget) Classification() DataClassification {
	return ClassificationPII
}

// CategoryAllocated 返回指定类别的子额度
func (b *Budget) CategoryAllocated(category string) decimal.Decimal {
	switch category {
	case CategoryPersonalCare:
		return b.PersonalCareAllocated
	case CategoryMedicalServices:
		return b.MedicalServicesAllocated
	case CategoryTransportation:
		return b.TransportationAllocated
	case CategoryHomeModifications:
		return b.HomeModificationsAllocated
	case CategoryEmergencyFund:
		return b.EmergencyFundAllocated
	case CategoryOther:
		return b.OtherAllocated
	}
	return decimal.Zero
}

// CategorySpent 返回指定类别的已用额
func (b *Budget) CategorySpent(category string) decimal.Decimal {
	switch category {
	case CategoryPersonalCare:
		return b.PersonalCareSpent
	case CategoryMedicalServices:
		return b.MedicalServicesSpent
	case CategoryTransportation:
		return b.TransportationSpent
	case CategoryHomeModifications:
		return b.HomeModificationsSpent
	case CategoryEmergencyFund:
		return b.EmergencyFundSpent
	case CategoryOther:
		return b.OtherSpent
	}
	return decimal.Zero
}

// AddCategorySpent 调整指定类别的已用额（delta 可为负，用于冲正）
func (b *Budget) AddCategorySpent(category string, delta decimal.Decimal) {
	switch category {
	case CategoryPersonalCare:
		b.PersonalCareSpent = b.PersonalCareSpent.Add(delta)
	case CategoryMedicalServices:
		b.MedicalServicesSpent = b.MedicalServicesSpent.Add(delta)
	case CategoryTransportation:
		b.TransportationSpent = b.TransportationSpent.Add(delta)
	case CategoryHomeModifications:
		b.HomeModificationsSpent = b.HomeModificationsSpent.Add(delta)
	case CategoryEmergencyFund:
		b.EmergencyFundSpent = b.EmergencyFundSpent.Add(delta)
	case CategoryOther:
		b.OtherSpent = b.OtherSpent.Add(delta)
	}
}

// Recalculate 重算余额并维护 EXHAUSTED 状态
// ACTIVE 且余额归零 → EXHAUSTED；EXHAUSTED 因冲正回到正余额 → ACTIVE
func (b *Budget) Recalculate() {
	b.Remaining = b.TotalAllocated.Sub(b.TotalSpent).Sub(b.TotalCommitted)
	if b.Status == BudgetStatusActive && b.Remaining.LessThanOrEqual(decimal.Zero) {
		b.Status = BudgetStatusExhausted
	} else if b.Status == BudgetStatusExhausted && b.Remaining.GreaterThan(decimal.Zero) {
		b.Status = BudgetStatusActive
	}
}

// InPeriod 判断日期是否落在预算周期内（闭区间）
func (b *Budget) InPeriod(t time.Time) bool {
	return !t.Before(b.PeriodStart) && !t.After(b.PeriodEnd)
}

// Expired 判断预算周期是否已结束
func (b *Budget) Expired(now time.Time) bool {
	return now.After(b.PeriodEnd)
}
