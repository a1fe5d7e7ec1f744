package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	// VisitStatusScheduled 已排班
	VisitStatusScheduled = "scheduled"
	// VisitStatusCompleted 已完成
	VisitStatusCompleted = "completed"
	// VisitStatusCancelled 已取消
	VisitStatusCancelled = "cancelled"
)

// Visit 上门探访记录
type Visit struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	ProfileID   uint           `json:"profile_id" gorm:"index;not null"`
	CaregiverID uint           `json:"caregiver_id" gorm:"index;not null"`
	ScheduledAt time.Time      `json:"scheduled_at" gorm:"not null"`
	CompletedAt *time.Time     `json:"completed_at"`
	Status      string         `json:"status" gorm:"size:20;default:scheduled;index"` // scheduled/completed/cancelled
	Notes       string         `json:"notes" gorm:"type:text"`                        // 探访记录，含健康观察，PHI
	Version     uint           `json:"version" gorm:"default:1;not null"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
	Profile     Profile        `json:"-" gorm:"foreignKey:ProfileID"`
}

// TableName 设置表名
func (Visit) TableName() string {
	return "visits"
}

// Classification 探访记录含健康观察内容
func (Visit) Classification() DataClassification {
	return ClassificationPHI
}
