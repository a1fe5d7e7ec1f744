package models

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// 审计动作常量
const (
	AuditActionCreate            = "CREATE"
	AuditActionUpdate            = "UPDATE"
	AuditActionDelete            = "DELETE"
	AuditActionExpenseApply      = "EXPENSE_APPLY"
	AuditActionExpenseApprove    = "EXPENSE_APPROVE"
	AuditActionExpenseReject     = "EXPENSE_REJECT"
	AuditActionExpenseReverse    = "EXPENSE_REVERSE"
	AuditActionBudgetSuspend     = "BUDGET_SUSPEND"
	AuditActionBudgetResume      = "BUDGET_RESUME"
	AuditActionBudgetExpire      = "BUDGET_EXPIRE"
	AuditActionOverdraftOverride = "OVERDRAFT_OVERRIDE"
)

// AuditRejectedSuffix 被拒绝尝试的审计动作后缀（是否记录由部署配置决定）
const AuditRejectedSuffix = ".rejected"

// ErrAuditLogImmutable 审计日志只允许追加
var ErrAuditLogImmutable = errors.New("审计日志不可修改或删除")

// AuditLog 合规审计日志，只追加，永不更新或删除
// 与其描述的业务变更处于同一事务：审计写入失败则业务变更必须回滚
type AuditLog struct {
	ID     uint  `json:"id" gorm:"primaryKey"`
	UserID *uint `json:"user_id" gorm:"index"` // 操作人，系统动作为空；对 User 为弱引用，用户删除不级联

	EntityType string `json:"entity_type" gorm:"size:50;not null;index"`
	EntityID   uint   `json:"entity_id" gorm:"not null;index"`
	Action     string `json:"action" gorm:"size:50;not null;index"`

	OldValues json.RawMessage `json:"old_values" gorm:"type:json"` // 变更前快照，创建时为空
	NewValues json.RawMessage `json:"new_values" gorm:"type:json"` // 变更后快照，删除时为空

	IPAddress string `json:"ip_address" gorm:"size:45"`
	SessionID string `json:"session_id" gorm:"size:64"`
	RequestID string `json:"request_id" gorm:"size:64;index"`
	Reason    string `json:"reason" gorm:"size:255"`

	ApprovalRequired bool   `json:"approval_required" gorm:"default:false"`
	ApprovedBy       string `json:"approved_by" gorm:"size:50"`

	DataAccessed DataClassification `json:"data_accessed" gorm:"size:10;not null;index"` // PUBLIC/INTERNAL/PII/PHI

	CreatedAt time.Time `json:"created_at"`
}

// TableName 设置表名
func (AuditLog) TableName() string {
	return "audit_logs"
}

// Classification 审计日志本身属内部数据
func (AuditLog) Classification() DataClassification {
	return ClassificationInternal
}

// BeforeUpdate 模型层兜底：拒绝任何更新
func (AuditLog) BeforeUpdate(*gorm.DB) error {
	return ErrAuditLogImmutable
}

// BeforeDelete 模型层兜底：拒绝任何删除
func (AuditLog) BeforeDelete(*gorm.DB) error {
	return ErrAuditLogImmutable
}
