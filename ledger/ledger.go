// Package ledger 实现预算账本核心：
// 维护客户资助周期的预算信封（总额/已用/占用/余额/类别子额度），
// 对每笔支出做规则校验，与审计日志在同一事务内原子落库
package ledger

import (
	"context"
	"errors"
	"log"
	"time"

	"careledger/audit"
	"careledger/config"
	"careledger/models"
	"careledger/repository"

	"github.com/shopspring/decimal"
)

// Actor 账本操作人：审计上下文 + 审批权限
type Actor struct {
	audit.Actor
	CanApprove bool
}

// ExpenseInput 一笔待记支出
type ExpenseInput struct {
	Category    string
	Amount      decimal.Decimal
	Description string
	ExpenseDate time.Time
	VisitID     *uint // 可选来源探访
}

// ApplyResult 记账结果：更新后的预算快照、落库的流水与审计日志
type ApplyResult struct {
	Budget  *models.Budget        `json:"budget"`
	Expense *models.BudgetExpense `json:"expense"`
	Audit   *models.AuditLog      `json:"-"`
}

// Ledger 预算账本
// 无内部状态，可被多个请求并发调用；
// 单个预算的写入序列化由乐观锁版本号保证
type Ledger struct {
	store    repository.Store
	recorder *audit.Recorder
	cfg      config.LedgerConfig
	auditCfg config.AuditConfig
	now      func() time.Time
}

// New 创建预算账本
func New(store repository.Store, recorder *audit.Recorder, cfg *config.Config) *Ledger {
	l := &Ledger{
		store:    store,
		recorder: recorder,
		now:      time.Now,
	}
	if cfg != nil {
		l.cfg = cfg.Ledger
		l.auditCfg = cfg.Audit
	}
	if l.cfg.MaxRetries <= 0 {
		l.cfg.MaxRetries = 3
	}
	return l
}

// ApplyExpense 对指定预算记一笔支出
// 校验 → 扣减 → 流水与审计同事务落库；乐观锁冲突自动重读重试，
// 重试耗尽返回 ErrConcurrentUpdateConflict
func (l *Ledger) ApplyExpense(ctx context.Context, budgetID uint, in ExpenseInput, actor Actor) (*ApplyResult, error) {
	// 输入校验在任何持久化之前完成
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if !models.ValidBudgetCategory(in.Category) {
		return nil, ErrUnknownCategory
	}

	// 过期流转先在独立事务中落库，再拒绝本次记账；
	// 落在业务事务内的话，拒绝回滚会把过期状态和系统审计一并冲掉
	expired, err := l.expireIfDue(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	if expired {
		l.logRejectedAttempt(ctx, budgetID, in, actor, ErrBudgetExpired)
		return nil, ErrBudgetExpired
	}

	var result *ApplyResult
	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		err := l.store.WithTransaction(ctx, func(tx repository.Tx) error {
			r, err := l.applyExpenseTx(tx, budgetID, in, actor)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
		if err == nil {
			return result, nil
		}
		if errors.Is(err, repository.ErrStaleVersion) {
			// 重读后整笔重算：支出本身的有效性不依赖上一次读取
			continue
		}
		err = wrapStorage(err)
		if IsBusinessRuleError(err) {
			l.logRejectedAttempt(ctx, budgetID, in, actor, err)
		}
		return nil, err
	}
	return nil, ErrConcurrentUpdateConflict
}

// applyExpenseTx 单次事务内的记账流程
func (l *Ledger) applyExpenseTx(tx repository.Tx, budgetID uint, in ExpenseInput, actor Actor) (*ApplyResult, error) {
	b, err := tx.Budgets().FindByID(budgetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBudgetNotFound
		}
		return nil, err
	}

	if b.Status != models.BudgetStatusActive {
		if b.Status == models.BudgetStatusExpired {
			return nil, ErrBudgetExpired
		}
		return nil, ErrBudgetNotActive
	}
	// 过期落库由 expireIfDue 负责，这里只拦截两次事务之间刚跨过周期终点的预算
	if b.Expired(l.now()) {
		return nil, ErrBudgetExpired
	}
	if !b.InPeriod(in.ExpenseDate) {
		return nil, ErrExpenseDateOutsidePeriod
	}

	before := *b
	action := models.AuditActionExpenseApply

	// 余额检查：透支需要预算显式允许，且按策略表要求审批人
	if in.Amount.GreaterThan(b.Remaining) {
		if !b.AllowOverdraft {
			return nil, ErrInsufficientRemainingFunds
		}
		action = models.AuditActionOverdraftOverride
	}

	// 类别子额度：配置了额度且开启硬性限制时不可突破
	if b.EnforceCategoryCaps {
		catCap := b.CategoryAllocated(in.Category)
		if catCap.GreaterThan(decimal.Zero) &&
			b.CategorySpent(in.Category).Add(in.Amount).GreaterThan(catCap) {
			return nil, ErrCategoryCapExceeded
		}
	}

	now := l.now()
	expense := &models.BudgetExpense{
		BudgetID:    b.ID,
		VisitID:     in.VisitID,
		Category:    in.Category,
		Amount:      in.Amount,
		Description: in.Description,
		ExpenseDate: in.ExpenseDate,
		SubmittedBy: derefUserID(actor.UserID),
	}

	// 预算要求审批且操作人无权限时流水先挂起，金额进入占用
	pending := b.ApprovalRequired && !actor.CanApprove
	if pending {
		expense.Status = models.ExpenseStatusPending
		b.TotalCommitted = b.TotalCommitted.Add(in.Amount)
	} else {
		expense.Status = models.ExpenseStatusApproved
		expense.ApprovedBy = actor.UserID
		expense.ApprovedAt = &now
		b.TotalSpent = b.TotalSpent.Add(in.Amount)
		b.AddCategorySpent(in.Category, in.Amount)
	}
	b.Recalculate()

	if err := tx.Expenses().Create(expense); err != nil {
		return nil, err
	}
	if err := tx.Budgets().Update(b); err != nil {
		return nil, err
	}

	entry, err := l.recorder.RecordMutation(tx.AuditLogs(), audit.Entry{
		Actor:          actor.Actor,
		EntityType:     models.Budget{}.TableName(),
		EntityID:       b.ID,
		Action:         action,
		OldValues:      before,
		NewValues:      *b,
		Reason:         in.Description,
		Classification: b.Classification(),
		ApprovedBy:     approverName(actor, pending),
	})
	if err != nil {
		return nil, err
	}

	return &ApplyResult{Budget: b, Expense: expense, Audit: entry}, nil
}

// ApproveExpense 核准一笔待审批支出：占用转已用
func (l *Ledger) ApproveExpense(ctx context.Context, expenseID uint, approver Actor) (*ApplyResult, error) {
	if !approver.CanApprove {
		return nil, audit.ErrApprovalRequiredButMissing
	}

	var result *ApplyResult
	var budgetID uint
	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		err := l.store.WithTransaction(ctx, func(tx repository.Tx) error {
			expense, b, err := l.loadPending(tx, expenseID)
			if err != nil {
				return err
			}
			budgetID = b.ID

			// 挂起期间预算可能已被冻结或跨过周期终点，核准前复查
			if b.Status == models.BudgetStatusSuspended {
				return ErrBudgetNotActive
			}
			if b.Status == models.BudgetStatusExpired || b.Expired(l.now()) {
				return ErrBudgetExpired
			}

			before := *b
			b.TotalCommitted = b.TotalCommitted.Sub(expense.Amount)
			b.TotalSpent = b.TotalSpent.Add(expense.Amount)
			b.AddCategorySpent(expense.Category, expense.Amount)
			b.Recalculate()

			// 挂起期间其他支出可能已占满类别额度，核准时复查
			if b.EnforceCategoryCaps {
				catCap := b.CategoryAllocated(expense.Category)
				if catCap.GreaterThan(decimal.Zero) && b.CategorySpent(expense.Category).GreaterThan(catCap) {
					return ErrCategoryCapExceeded
				}
			}

			now := l.now()
			expense.Status = models.ExpenseStatusApproved
			expense.ApprovedBy = approver.UserID
			expense.ApprovedAt = &now

			if err := tx.Expenses().Update(expense); err != nil {
				return err
			}
			if err := tx.Budgets().Update(b); err != nil {
				return err
			}

			entry, err := l.recorder.RecordMutation(tx.AuditLogs(), audit.Entry{
				Actor:          approver.Actor,
				EntityType:     models.Budget{}.TableName(),
				EntityID:       b.ID,
				Action:         models.AuditActionExpenseApprove,
				OldValues:      before,
				NewValues:      *b,
				Classification: b.Classification(),
				ApprovedBy:     approver.Username,
			})
			if err != nil {
				return err
			}
			result = &ApplyResult{Budget: b, Expense: expense, Audit: entry}
			return nil
		})
		if err == nil {
			return result, nil
		}
		if errors.Is(err, repository.ErrStaleVersion) {
			continue
		}
		if errors.Is(err, ErrBudgetExpired) && budgetID != 0 {
			// 核准事务已回滚，过期流转补记在独立事务中
			if _, eerr := l.expireIfDue(ctx, budgetID); eerr != nil {
				log.Printf("核准支出时预算过期流转落库失败: %v", eerr)
			}
		}
		return nil, wrapStorage(err)
	}
	return nil, ErrConcurrentUpdateConflict
}

// RejectExpense 驳回一笔待审批支出：释放占用金额
func (l *Ledger) RejectExpense(ctx context.Context, expenseID uint, approver Actor, reason string) (*ApplyResult, error) {
	if !approver.CanApprove {
		return nil, audit.ErrApprovalRequiredButMissing
	}

	var result *ApplyResult
	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		err := l.store.WithTransaction(ctx, func(tx repository.Tx) error {
			expense, b, err := l.loadPending(tx, expenseID)
			if err != nil {
				return err
			}

			before := *b
			b.TotalCommitted = b.TotalCommitted.Sub(expense.Amount)
			b.Recalculate()

			expense.Status = models.ExpenseStatusRejected

			if err := tx.Expenses().Update(expense); err != nil {
				return err
			}
			if err := tx.Budgets().Update(b); err != nil {
				return err
			}

			entry, err := l.recorder.RecordMutation(tx.AuditLogs(), audit.Entry{
				Actor:          approver.Actor,
				EntityType:     models.Budget{}.TableName(),
				EntityID:       b.ID,
				Action:         models.AuditActionExpenseReject,
				OldValues:      before,
				NewValues:      *b,
				Reason:         reason,
				Classification: b.Classification(),
				ApprovedBy:     approver.Username,
			})
			if err != nil {
				return err
			}
			result = &ApplyResult{Budget: b, Expense: expense, Audit: entry}
			return nil
		})
		if err == nil {
			return result, nil
		}
		if errors.Is(err, repository.ErrStaleVersion) {
			continue
		}
		return nil, wrapStorage(err)
	}
	return nil, ErrConcurrentUpdateConflict
}

// ReverseExpense 冲正一笔已核准支出
// 不修改也不删除原始流水，而是生成等额负数的补偿流水，
// 预算总额按记账时的逻辑对称回退；已耗尽/已过期的预算也允许冲正
func (l *Ledger) ReverseExpense(ctx context.Context, expenseID uint, actor Actor, reason string) (*ApplyResult, error) {
	var result *ApplyResult
	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		err := l.store.WithTransaction(ctx, func(tx repository.Tx) error {
			orig, err := tx.Expenses().FindByID(expenseID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return ErrExpenseNotFound
				}
				return err
			}
			// 只有已核准的原始流水可冲正；冲正流水本身不可再冲正
			if orig.Status != models.ExpenseStatusApproved || orig.IsReversal() {
				return ErrExpenseNotReversible
			}
			reversed, err := tx.Expenses().HasReversal(orig.ID)
			if err != nil {
				return err
			}
			if reversed {
				return ErrExpenseAlreadyReversed
			}

			b, err := tx.Budgets().FindByID(orig.BudgetID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return ErrBudgetNotFound
				}
				return err
			}

			before := *b
			now := l.now()
			reversal := &models.BudgetExpense{
				BudgetID:          b.ID,
				VisitID:           orig.VisitID,
				Category:          orig.Category,
				Amount:            orig.Amount.Neg(),
				Description:       reason,
				ExpenseDate:       now,
				Status:            models.ExpenseStatusApproved,
				ApprovedBy:        actor.UserID,
				ApprovedAt:        &now,
				ReversesExpenseID: &orig.ID,
				SubmittedBy:       derefUserID(actor.UserID),
			}

			b.TotalSpent = b.TotalSpent.Sub(orig.Amount)
			b.AddCategorySpent(orig.Category, orig.Amount.Neg())
			b.Recalculate()

			if err := tx.Expenses().Create(reversal); err != nil {
				return err
			}
			if err := tx.Budgets().Update(b); err != nil {
				return err
			}

			entry, err := l.recorder.RecordMutation(tx.AuditLogs(), audit.Entry{
				Actor:          actor.Actor,
				EntityType:     models.Budget{}.TableName(),
				EntityID:       b.ID,
				Action:         models.AuditActionExpenseReverse,
				OldValues:      before,
				NewValues:      *b,
				Reason:         reason,
				Classification: b.Classification(),
				ApprovedBy:     approverName(actor, false),
			})
			if err != nil {
				return err
			}
			result = &ApplyResult{Budget: b, Expense: reversal, Audit: entry}
			return nil
		})
		if err == nil {
			return result, nil
		}
		if errors.Is(err, repository.ErrStaleVersion) {
			continue
		}
		return nil, wrapStorage(err)
	}
	return nil, ErrConcurrentUpdateConflict
}

// SuspendBudget 管理操作：冻结预算（ACTIVE → SUSPENDED）
func (l *Ledger) SuspendBudget(ctx context.Context, budgetID uint, actor Actor, reason string) (*models.Budget, error) {
	return l.setStatus(ctx, budgetID, actor, reason,
		models.BudgetStatusActive, models.BudgetStatusSuspended, models.AuditActionBudgetSuspend,
		ErrBudgetNotActive)
}

// ResumeBudget 管理操作：恢复预算（SUSPENDED → ACTIVE）
func (l *Ledger) ResumeBudget(ctx context.Context, budgetID uint, actor Actor, reason string) (*models.Budget, error) {
	return l.setStatus(ctx, budgetID, actor, reason,
		models.BudgetStatusSuspended, models.BudgetStatusActive, models.AuditActionBudgetResume,
		ErrBudgetNotSuspended)
}

// setStatus 管理性状态流转，要求操作人具备审批权限；
// 预算不在 from 状态时返回 wrongState
func (l *Ledger) setStatus(ctx context.Context, budgetID uint, actor Actor, reason, from, to, action string, wrongState error) (*models.Budget, error) {
	if !actor.CanApprove {
		return nil, audit.ErrApprovalRequiredButMissing
	}

	var result *models.Budget
	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		err := l.store.WithTransaction(ctx, func(tx repository.Tx) error {
			b, err := tx.Budgets().FindByID(budgetID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return ErrBudgetNotFound
				}
				return err
			}
			if b.Status != from {
				return wrongState
			}

			before := *b
			b.Status = to
			if to == models.BudgetStatusActive {
				// 恢复时重算，余额为零则直接进入已耗尽
				b.Recalculate()
			}
			if err := tx.Budgets().Update(b); err != nil {
				return err
			}

			if _, err := l.recorder.RecordMutation(tx.AuditLogs(), audit.Entry{
				Actor:          actor.Actor,
				EntityType:     models.Budget{}.TableName(),
				EntityID:       b.ID,
				Action:         action,
				OldValues:      before,
				NewValues:      *b,
				Reason:         reason,
				Classification: b.Classification(),
				ApprovedBy:     actor.Username,
			}); err != nil {
				return err
			}
			result = b
			return nil
		})
		if err == nil {
			return result, nil
		}
		if errors.Is(err, repository.ErrStaleVersion) {
			continue
		}
		return nil, wrapStorage(err)
	}
	return nil, ErrConcurrentUpdateConflict
}

// RefreshBudget 读取预算并惰性过期，供查询路径使用
func (l *Ledger) RefreshBudget(ctx context.Context, budgetID uint) (*models.Budget, error) {
	var result *models.Budget
	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		err := l.store.WithTransaction(ctx, func(tx repository.Tx) error {
			b, err := tx.Budgets().FindByID(budgetID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return ErrBudgetNotFound
				}
				return err
			}
			if _, err := l.lazyExpire(tx, b); err != nil {
				return err
			}
			result = b
			return nil
		})
		if err == nil {
			return result, nil
		}
		if errors.Is(err, repository.ErrStaleVersion) {
			continue
		}
		return nil, wrapStorage(err)
	}
	return nil, ErrConcurrentUpdateConflict
}

// expireIfDue 在独立事务中惰性过期指定预算，返回其是否已处于过期周期。
// 独立成一笔事务提交，调用方随后的业务回滚不会丢掉过期流转
func (l *Ledger) expireIfDue(ctx context.Context, budgetID uint) (bool, error) {
	var expired bool
	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		err := l.store.WithTransaction(ctx, func(tx repository.Tx) error {
			b, err := tx.Budgets().FindByID(budgetID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return ErrBudgetNotFound
				}
				return err
			}
			expired, err = l.lazyExpire(tx, b)
			return err
		})
		if err == nil {
			return expired, nil
		}
		if errors.Is(err, repository.ErrStaleVersion) {
			continue
		}
		return false, wrapStorage(err)
	}
	return false, ErrConcurrentUpdateConflict
}

// lazyExpire 周期已结束的生效预算转为 EXPIRED 并落库
func (l *Ledger) lazyExpire(tx repository.Tx, b *models.Budget) (bool, error) {
	if b.Status != models.BudgetStatusActive && b.Status != models.BudgetStatusExhausted {
		return b.Status == models.BudgetStatusExpired, nil
	}
	if !b.Expired(l.now()) {
		return false, nil
	}

	before := *b
	b.Status = models.BudgetStatusExpired
	if err := tx.Budgets().Update(b); err != nil {
		return false, err
	}
	if _, err := l.recorder.RecordMutation(tx.AuditLogs(), audit.Entry{
		// 惰性过期是系统动作，无操作人
		EntityType:     models.Budget{}.TableName(),
		EntityID:       b.ID,
		Action:         models.AuditActionBudgetExpire,
		OldValues:      before,
		NewValues:      *b,
		Reason:         "预算周期结束，系统自动过期",
		Classification: b.Classification(),
	}); err != nil {
		return false, err
	}
	return true, nil
}

// loadPending 读取待审批流水及其所属预算
func (l *Ledger) loadPending(tx repository.Tx, expenseID uint) (*models.BudgetExpense, *models.Budget, error) {
	expense, err := tx.Expenses().FindByID(expenseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrExpenseNotFound
		}
		return nil, nil, err
	}
	if expense.Status != models.ExpenseStatusPending {
		return nil, nil, ErrExpenseNotPending
	}
	b, err := tx.Budgets().FindByID(expense.BudgetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrBudgetNotFound
		}
		return nil, nil, err
	}
	return expense, b, nil
}

// logRejectedAttempt 按部署策略记录被拒绝的支出尝试
// 业务事务已回滚，拒绝记录单独成一笔事务；记录失败仅打日志，不影响已返回的拒绝结果
func (l *Ledger) logRejectedAttempt(ctx context.Context, budgetID uint, in ExpenseInput, actor Actor, cause error) {
	if !l.auditCfg.LogRejected {
		return
	}
	err := l.store.WithTransaction(ctx, func(tx repository.Tx) error {
		_, err := l.recorder.RecordMutation(tx.AuditLogs(), audit.Entry{
			Actor:          actor.Actor,
			EntityType:     models.Budget{}.TableName(),
			EntityID:       budgetID,
			Action:         models.AuditActionExpenseApply + models.AuditRejectedSuffix,
			Reason:         cause.Error(),
			Classification: models.Budget{}.Classification(),
		})
		return err
	})
	if err != nil {
		log.Printf("记录被拒绝支出尝试的审计日志失败: %v", err)
	}
}

// derefUserID 系统动作（无操作人）时提交人记为 0
func derefUserID(id *uint) uint {
	if id == nil {
		return 0
	}
	return *id
}

// approverName 流水未挂起且操作人具备审批权限时，其本人即审批人
func approverName(actor Actor, pending bool) string {
	if pending || !actor.CanApprove {
		return ""
	}
	return actor.Username
}
