// Package audit 实现合规审计链路：
// 对 PII/PHI 实体的每一次变更追加一条不可变审计日志，
// 并按外部配置的策略表决定哪些动作必须带审批人
package audit

import (
	"encoding/json"
	"errors"
	"fmt"

	"careledger/config"
	"careledger/models"
	"careledger/repository"
)

// ErrApprovalRequiredButMissing 操作需要审批人但未提供，本次尝试直接失败
var ErrApprovalRequiredButMissing = errors.New("该操作需要审批人，但未提供审批人")

// ErrInvalidClassification 未知的数据敏感级别
var ErrInvalidClassification = errors.New("未知的数据敏感级别")

// Actor 操作人上下文，由应用层（HTTP 中间件）填充
// UserID 为空表示系统动作
type Actor struct {
	UserID    *uint
	Username  string
	IPAddress string
	SessionID string
	RequestID string
}

// Entry 描述一次待审计的敏感变更
// OldValues/NewValues 为变更前后的实体快照：创建时 Old 为 nil，删除时 New 为 nil
type Entry struct {
	Actor          Actor
	EntityType     string
	EntityID       uint
	Action         string
	OldValues      interface{}
	NewValues      interface{}
	Reason         string
	Classification models.DataClassification
	ApprovedBy     string // 审批人用户名，未经审批为空
}

// Recorder 审计记录器
// 无重试逻辑：重试策略属于包裹业务写与审计写的事务边界
type Recorder struct {
	policies []config.ApprovalPolicy
}

// NewRecorder 从审计配置创建记录器
func NewRecorder(cfg *config.AuditConfig) *Recorder {
	if cfg == nil {
		return &Recorder{}
	}
	return &Recorder{policies: cfg.ApprovalPolicies}
}

// RequireApproval 纯判定函数：给定动作与敏感级别，是否必须有审批人才能落库
// 策略表来自外部配置；action 支持 "*" 通配，级别按"达到即触发"比较
func (r *Recorder) RequireApproval(action string, classification models.DataClassification) bool {
	for _, p := range r.policies {
		if p.Action != "*" && p.Action != action {
			continue
		}
		threshold := models.DataClassification(p.Classification)
		if !threshold.Valid() {
			continue
		}
		if classification.AtLeast(threshold) {
			return true
		}
	}
	return false
}

// AssertApproved 提交前校验：需要审批却没有审批人则失败
func AssertApproved(entry *models.AuditLog) error {
	if entry.ApprovalRequired && entry.ApprovedBy == "" {
		return ErrApprovalRequiredButMissing
	}
	return nil
}

// RecordMutation 在调用方提供的（事务内）审计仓库上追加一条审计日志
// 必须与其描述的业务变更共用同一事务：审计写入失败时整体回滚
func (r *Recorder) RecordMutation(logs repository.AuditLogStore, e Entry) (*models.AuditLog, error) {
	if !e.Classification.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidClassification, e.Classification)
	}

	oldJSON, err := marshalSnapshot(e.OldValues)
	if err != nil {
		return nil, fmt.Errorf("序列化变更前快照失败: %w", err)
	}
	newJSON, err := marshalSnapshot(e.NewValues)
	if err != nil {
		return nil, fmt.Errorf("序列化变更后快照失败: %w", err)
	}

	entry := &models.AuditLog{
		UserID:           e.Actor.UserID,
		EntityType:       e.EntityType,
		EntityID:         e.EntityID,
		Action:           e.Action,
		OldValues:        oldJSON,
		NewValues:        newJSON,
		IPAddress:        e.Actor.IPAddress,
		SessionID:        e.Actor.SessionID,
		RequestID:        e.Actor.RequestID,
		Reason:           e.Reason,
		ApprovalRequired: r.RequireApproval(e.Action, e.Classification),
		ApprovedBy:       e.ApprovedBy,
		DataAccessed:     e.Classification,
	}

	if err := AssertApproved(entry); err != nil {
		return nil, err
	}

	if err := logs.Append(entry); err != nil {
		return nil, fmt.Errorf("追加审计日志失败: %w", err)
	}
	return entry, nil
}

// marshalSnapshot 序列化实体快照，nil 保持为空（SQL NULL）
func marshalSnapshot(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}
