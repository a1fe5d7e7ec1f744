package models

import (
	"time"

	"gorm.io/gorm"
)

// Profile 客户（受照护人）档案，包含 PHI 信息
// 所有变更必须通过审计日志记录
type Profile struct {
	ID               uint           `json:"id" gorm:"primaryKey"`
	FirstName        string         `json:"first_name" gorm:"size:100;not null"`
	LastName         string         `json:"last_name" gorm:"size:100;not null"`
	DateOfBirth      *time.Time     `json:"date_of_birth"`
	Phone            string         `json:"phone" gorm:"size:25"`
	Address          string         `json:"address" gorm:"size:255"`
	EmergencyContact string         `json:"emergency_contact" gorm:"size:100"`
	EmergencyPhone   string         `json:"emergency_phone" gorm:"size:25"`
	MedicalNotes     string         `json:"medical_notes" gorm:"type:text"` // 病史摘要，PHI
	Version          uint           `json:"version" gorm:"default:1;not null"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName 设置表名
func (Profile) TableName() string {
	return "profiles"
}

// Classification 客户档案含健康信息，按最高级别处理
func (Profile) Classification() DataClassification {
	return ClassificationPHI
}
