package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	// ExpenseStatusPending 待审批：金额计入预算占用（committed）
	ExpenseStatusPending = "pending"
	// ExpenseStatusApproved 已核准：金额计入已用（spent），记录不可再修改
	ExpenseStatusApproved = "approved"
	// ExpenseStatusRejected 已驳回：释放占用金额
	ExpenseStatusRejected = "rejected"
)

// BudgetExpense 预算支出流水
// 核准后不可原地修改，更正一律通过负数冲正流水完成
type BudgetExpense struct {
	ID       uint  `json:"id" gorm:"primaryKey"`
	BudgetID uint  `json:"budget_id" gorm:"index;not null"`
	VisitID  *uint `json:"visit_id" gorm:"index"` // 可选来源探访，弱引用，探访删除时置空

	Category    string          `json:"category" gorm:"size:50;not null;index"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"` // 冲正流水为负数
	Description string          `json:"description" gorm:"size:255"`
	ExpenseDate time.Time       `json:"expense_date" gorm:"not null;index"`

	Status     string     `json:"status" gorm:"size:20;default:pending;index"` // pending/approved/rejected
	ApprovedBy *uint      `json:"approved_by"`
	ApprovedAt *time.Time `json:"approved_at"`

	// 冲正流水指向被冲正的原始支出
	ReversesExpenseID *uint `json:"reverses_expense_id" gorm:"index"`

	SubmittedBy uint           `json:"submitted_by" gorm:"index;not null"`
	Version     uint           `json:"version" gorm:"default:1;not null"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
	Budget      Budget         `json:"-" gorm:"foreignKey:BudgetID"`
	Visit       *Visit         `json:"-" gorm:"foreignKey:VisitID;constraint:OnDelete:SET NULL"`
}

// TableName 设置表名
func (BudgetExpense) TableName() string {
	return "budget_expenses"
}

// Classification 支出流水关联客户资助信息
func (BudgetExpense) Classification() DataClassification {
	return ClassificationPII
}

// IsReversal 是否为冲正流水
func (e *BudgetExpense) IsReversal() bool {
	return e.ReversesExpenseID != nil
}
