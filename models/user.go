package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	// UserStatusLocked 锁定：不可登录
	UserStatusLocked = "locked"
	// UserStatusActive 正常：可登录
	UserStatusActive = "active"
)

const (
	// RoleCaregiver 护理员：提交支出，需审批
	RoleCaregiver = "caregiver"
	// RoleSupervisor 主管：可审批支出、暂停/恢复预算
	RoleSupervisor = "supervisor"
	// RoleAdmin 管理员：主管权限 + 用户管理
	RoleAdmin = "admin"
)

// User 用户模型（护理员/主管/管理员）
type User struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Username  string         `json:"username" gorm:"uniqueIndex;size:50;not null"`
	Password  string         `json:"-" gorm:"size:255;not null"`
	Email     string         `json:"email" gorm:"size:100"`
	Role      string         `json:"role" gorm:"size:20;default:caregiver;index"` // 角色：caregiver/supervisor/admin
	Status    string         `json:"status" gorm:"size:20;default:active;index"`  // 用户状态：locked/active
	Version   uint           `json:"version" gorm:"default:1;not null"`           // 乐观锁版本号
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName 设置表名
func (User) TableName() string {
	return "users"
}

// CanApprove 是否具备审批权限（主管及以上）
func (u *User) CanApprove() bool {
	return u.Role == RoleSupervisor || u.Role == RoleAdmin
}

// Classification 用户记录的敏感级别
func (User) Classification() DataClassification {
	return ClassificationPII
}
