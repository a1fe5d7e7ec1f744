package models

import (
	"time"

	"gorm.io/gorm"
)

// CarePlan 护理计划
type CarePlan struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	ProfileID uint           `json:"profile_id" gorm:"index;not null"`
	Title     string         `json:"title" gorm:"size:200;not null"`
	Goals     string         `json:"goals" gorm:"type:text"`         // 护理目标
	CareNotes string         `json:"care_notes" gorm:"type:text"`    // 护理要点，含诊断信息，PHI
	StartDate time.Time      `json:"start_date" gorm:"not null"`
	EndDate   *time.Time     `json:"end_date"`
	Active    bool           `json:"active" gorm:"default:true;index"`
	Version   uint           `json:"version" gorm:"default:1;not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
	Profile   Profile        `json:"-" gorm:"foreignKey:ProfileID"`
}

// TableName 设置表名
func (CarePlan) TableName() string {
	return "care_plans"
}

// Classification 护理计划含诊断与护理信息
func (CarePlan) Classification() DataClassification {
	return ClassificationPHI
}
