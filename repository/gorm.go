package repository

import (
	"context"
	"errors"

	"careledger/models"

	"gorm.io/gorm"
)

// gormStore 基于 gorm 的 Store 实现
type gormStore struct {
	db *gorm.DB
}

// NewStore 创建基于 gorm 的持久化入口
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// WithTransaction 在单个数据库事务中执行 fn
func (s *gormStore) WithTransaction(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func (s *gormStore) Budgets() BudgetStore {
	return &budgetStore{db: s.db}
}

func (s *gormStore) Expenses() ExpenseStore {
	return &expenseStore{db: s.db}
}

func (s *gormStore) AuditLogs() AuditLogStore {
	return &auditLogStore{db: s.db}
}

// NewAuditLogs 在指定连接（或事务）上创建审计日志仓库，
// 供账本之外的 PII/PHI 实体变更在自身事务内追加审计
func NewAuditLogs(db *gorm.DB) AuditLogStore {
	return &auditLogStore{db: db}
}

// budgetStore 预算仓库 gorm 实现
type budgetStore struct {
	db *gorm.DB
}

func (s *budgetStore) FindByID(id uint) (*models.Budget, error) {
	var b models.Budget
	if err := s.db.First(&b, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *budgetStore) FindByClient(clientID uint) ([]models.Budget, error) {
	var budgets []models.Budget
	if err := s.db.Where("client_id = ?", clientID).
		Order("period_start DESC").
		Find(&budgets).Error; err != nil {
		return nil, err
	}
	return budgets, nil
}

func (s *budgetStore) Create(b *models.Budget) error {
	return s.db.Create(b).Error
}

// Update 乐观锁写入：WHERE id AND version 比较并自增版本号
// 影响行数为 0 说明版本已过期（或记录不存在），返回 ErrStaleVersion
func (s *budgetStore) Update(b *models.Budget) error {
	readVersion := b.Version
	b.Version = readVersion + 1
	res := s.db.Model(&models.Budget{}).
		Where("id = ? AND version = ?", b.ID, readVersion).
		Select("*").
		Omit("id", "created_at", "deleted_at").
		Updates(b)
	if res.Error != nil {
		b.Version = readVersion
		return res.Error
	}
	if res.RowsAffected == 0 {
		b.Version = readVersion
		return ErrStaleVersion
	}
	return nil
}

// expenseStore 支出流水仓库 gorm 实现
type expenseStore struct {
	db *gorm.DB
}

func (s *expenseStore) FindByID(id uint) (*models.BudgetExpense, error) {
	var e models.BudgetExpense
	if err := s.db.First(&e, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (s *expenseStore) ListByBudget(budgetID uint, page, pageSize int) ([]models.BudgetExpense, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}

	query := s.db.Model(&models.BudgetExpense{}).Where("budget_id = ?", budgetID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var expenses []models.BudgetExpense
	if err := query.Order("expense_date DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&expenses).Error; err != nil {
		return nil, 0, err
	}
	return expenses, total, nil
}

func (s *expenseStore) Create(e *models.BudgetExpense) error {
	return s.db.Create(e).Error
}

// Update 仅限待审批流水的状态流转，乐观锁与预算一致
func (s *expenseStore) Update(e *models.BudgetExpense) error {
	readVersion := e.Version
	e.Version = readVersion + 1
	res := s.db.Model(&models.BudgetExpense{}).
		Where("id = ? AND version = ?", e.ID, readVersion).
		Select("*").
		Omit("id", "created_at", "deleted_at").
		Updates(e)
	if res.Error != nil {
		e.Version = readVersion
		return res.Error
	}
	if res.RowsAffected == 0 {
		e.Version = readVersion
		return ErrStaleVersion
	}
	return nil
}

func (s *expenseStore) HasReversal(expenseID uint) (bool, error) {
	var count int64
	if err := s.db.Model(&models.BudgetExpense{}).
		Where("reverses_expense_id = ?", expenseID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// auditLogStore 审计日志仓库 gorm 实现，只有追加与查询
type auditLogStore struct {
	db *gorm.DB
}

func (s *auditLogStore) Append(entry *models.AuditLog) error {
	return s.db.Create(entry).Error
}

func (s *auditLogStore) List(filter AuditFilter) ([]models.AuditLog, int64, error) {
	page := filter.Page
	pageSize := filter.PageSize
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	query := s.db.Model(&models.AuditLog{})
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != 0 {
		query = query.Where("entity_id = ?", filter.EntityID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.StartTime != nil {
		query = query.Where("created_at >= ?", *filter.StartTime)
	}
	if filter.EndTime != nil {
		query = query.Where("created_at <= ?", *filter.EndTime)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.AuditLog
	if err := query.Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
