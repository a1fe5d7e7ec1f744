package repository

import (
	"context"
	"errors"
	"time"

	"careledger/models"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("记录不存在")
	// ErrStaleVersion 乐观锁版本冲突：记录已被并发修改，需重读后重试
	ErrStaleVersion = errors.New("版本冲突，记录已被并发修改")
)

// Store 持久化入口：提供事务作用域与各实体仓库
// 账本与审计的成对写入必须通过 WithTransaction 在同一事务内完成
type Store interface {
	// WithTransaction 在单个数据库事务中执行 fn，fn 返回错误则整体回滚
	WithTransaction(ctx context.Context, fn func(tx Tx) error) error
	Tx
}

// Tx 事务内可用的实体仓库集合
type Tx interface {
	Budgets() BudgetStore
	Expenses() ExpenseStore
	AuditLogs() AuditLogStore
}

// BudgetStore 预算仓库，只暴露核心需要的操作
type BudgetStore interface {
	FindByID(id uint) (*models.Budget, error)
	FindByClient(clientID uint) ([]models.Budget, error)
	Create(b *models.Budget) error
	// Update 乐观锁写入：按读取时的版本号比较并自增，
	// 版本不匹配返回 ErrStaleVersion
	Update(b *models.Budget) error
}

// ExpenseStore 支出流水仓库
type ExpenseStore interface {
	FindByID(id uint) (*models.BudgetExpense, error)
	ListByBudget(budgetID uint, page, pageSize int) ([]models.BudgetExpense, int64, error)
	Create(e *models.BudgetExpense) error
	// Update 仅限待审批流水的状态流转，同样走乐观锁
	Update(e *models.BudgetExpense) error
	// HasReversal 判断某笔支出是否已存在冲正流水
	HasReversal(expenseID uint) (bool, error)
}

// AuditFilter 审计日志查询条件
type AuditFilter struct {
	EntityType string
	EntityID   uint
	UserID     *uint
	Action     string
	StartTime  *time.Time
	EndTime    *time.Time
	Page       int
	PageSize   int
}

// AuditLogStore 审计日志仓库：只追加，不存在更新或删除路径
type AuditLogStore interface {
	Append(entry *models.AuditLog) error
	List(filter AuditFilter) ([]models.AuditLog, int64, error)
}
