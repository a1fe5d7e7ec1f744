package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"careledger/audit"
	"careledger/config"
	"careledger/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

var (
	caregiverID  = uint(1)
	supervisorID = uint(2)

	caregiver = Actor{
		Actor: audit.Actor{
			UserID:    &caregiverID,
			Username:  "caregiver01",
			IPAddress: "10.0.0.8",
			SessionID: "sess-caregiver",
			RequestID: "req-1",
		},
	}
	supervisor = Actor{
		Actor: audit.Actor{
			UserID:    &supervisorID,
			Username:  "supervisor01",
			IPAddress: "10.0.0.9",
			SessionID: "sess-supervisor",
			RequestID: "req-2",
		},
		CanApprove: true,
	}
)

func testLedger(s *memStore, policies ...config.ApprovalPolicy) *Ledger {
	cfg := &config.Config{
		Ledger: config.LedgerConfig{MaxRetries: 3},
		Audit:  config.AuditConfig{ApprovalPolicies: policies},
	}
	return New(s, audit.NewRecorder(&cfg.Audit), cfg)
}

func activeBudget(allocated int64) models.Budget {
	b := models.Budget{
		ClientID:          7,
		PeriodStart:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:         time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC),
		Status:            models.BudgetStatusActive,
		TotalAllocated:    d(allocated),
		WarningThreshold:  decimal.RequireFromString("0.8"),
		CriticalThreshold: decimal.RequireFromString("0.95"),
		EnforceCategoryCaps: true,
	}
	b.Remaining = b.TotalAllocated
	return b
}

func input(amount int64) ExpenseInput {
	return ExpenseInput{
		Category:    models.CategoryPersonalCare,
		Amount:      d(amount),
		Description: "上门助浴服务",
		ExpenseDate: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestApplyExpenseDirectApproval(t *testing.T) {
	s := newMemStore()
	id := s.seedBudget(activeBudget(1000))
	l := testLedger(s)

	res, err := l.ApplyExpense(context.Background(), id, input(200), caregiver)
	require.NoError(t, err)

	assert.Equal(t, models.ExpenseStatusApproved, res.Expense.Status)
	assert.True(t, res.Budget.TotalSpent.Equal(d(200)))
	assert.True(t, res.Budget.TotalCommitted.Equal(d(0)))
	assert.True(t, res.Budget.Remaining.Equal(d(800)))
	assert.True(t, res.Budget.PersonalCareSpent.Equal(d(200)))
	assert.Equal(t, models.BudgetStatusActive, res.Budget.Status)

	// 落库后的版本号自增
	stored := s.budget(id)
	assert.Equal(t, uint(2), stored.Version)
	assert.True(t, stored.Remaining.Equal(d(800)))

	// 审计日志与业务写入同事务落库，快照完整
	logs := s.auditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionExpenseApply, logs[0].Action)
	assert.Equal(t, caregiverID, *logs[0].UserID)
	assert.Equal(t, "10.0.0.8", logs[0].IPAddress)
	assert.Equal(t, models.ClassificationPII, logs[0].DataAccessed)

	var before, after models.Budget
	require.NoError(t, json.Unmarshal(logs[0].OldValues, &before))
	require.NoError(t, json.Unmarshal(logs[0].NewValues, &after))
	assert.True(t, before.Remaining.Equal(d(1000)))
	assert.True(t, after.Remaining.Equal(d(800)))
}

func TestApplyExpensePendingApproval(t *testing.T) {
	s := newMemStore()
	b := activeBudget(1000)
	b.ApprovalRequired = true
	id := s.seedBudget(b)
	l := testLedger(s)

	res, err := l.ApplyExpense(context.Background(), id, input(200), caregiver)
	require.NoError(t, err)

	// 护理员无审批权限，流水挂起，金额进入占用
	assert.Equal(t, models.ExpenseStatusPending, res.Expense.Status)
	assert.Nil(t, res.Expense.ApprovedBy)
	assert.True(t, res.Budget.TotalCommitted.Equal(d(200)))
	assert.True(t, res.Budget.TotalSpent.Equal(d(0)))
	assert.True(t, res.Budget.Remaining.Equal(d(800)))
	assert.True(t, res.Budget.PersonalCareSpent.Equal(d(0)))
}

func TestApplyExpenseSupervisorBypassesPending(t *testing.T) {
	s := newMemStore()
	b := activeBudget(1000)
	b.ApprovalRequired = true
	id := s.seedBudget(b)
	l := testLedger(s)

	res, err := l.ApplyExpense(context.Background(), id, input(200), supervisor)
	require.NoError(t, err)

	assert.Equal(t, models.ExpenseStatusApproved, res.Expense.Status)
	assert.Equal(t, supervisorID, *res.Expense.ApprovedBy)
	assert.True(t, res.Budget.TotalSpent.Equal(d(200)))
	assert.True(t, res.Budget.TotalCommitted.Equal(d(0)))
}

func TestApplyExpenseRejectsOverBudget(t *testing.T) {
	s := newMemStore()
	id := s.seedBudget(activeBudget(1000))
	l := testLedger(s)
	ctx := context.Background()

	_, err := l.ApplyExpense(ctx, id, input(200), caregiver)
	require.NoError(t, err)

	// 余额 800，900 超支且不允许透支，整笔拒绝
	_, err = l.ApplyExpense(ctx, id, input(900), caregiver)
	require.ErrorIs(t, err, ErrInsufficientRemainingFunds)

	// 拒绝不留任何状态痕迹
	stored := s.budget(id)
	assert.True(t, stored.Remaining.Equal(d(800)))
	assert.True(t, stored.TotalSpent.Equal(d(200)))
	assert.Equal(t, uint(2), stored.Version)

	// 恰好用尽余额可以成功，预算进入已耗尽
	res, err := l.ApplyExpense(ctx, id, input(800), caregiver)
	require.NoError(t, err)
	assert.True(t, res.Budget.Remaining.Equal(d(0)))
	assert.Equal(t, models.BudgetStatusExhausted, res.Budget.Status)

	// 已耗尽后任何支出都被拒绝
	_, err = l.ApplyExpense(ctx, id, input(1), caregiver)
	require.ErrorIs(t, err, ErrBudgetNotActive)
}

func TestApplyExpenseSequenceExhausts(t *testing.T) {
	s := newMemStore()
	id := s.seedBudget(activeBudget(1000))
	l := testLedger(s)
	ctx := context.Background()

	_, err := l.ApplyExpense(ctx, id, input(500), caregiver)
	require.NoError(t, err)
	res, err := l.ApplyExpense(ctx, id, input(300), caregiver)
	require.NoError(t, err)
	assert.True(t, res.Budget.Remaining.Equal(d(200)))

	_, err = l.ApplyExpense(ctx, id, input(250), caregiver)
	require.ErrorIs(t, err, ErrInsufficientRemainingFunds)
	assert.True(t, s.budget(id).Remaining.Equal(d(200)))
}

func TestApplyExpenseInputValidation(t *testing.T) {
	s := newMemStore()
	id := s.seedBudget(activeBudget(1000))
	l := testLedger(s)
	ctx := context.Background()

	in := input(0)
	_, err := l.ApplyExpense(ctx, id, in, caregiver)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	in = input(100)
	in.Amount = d(-50)
	_, err = l.ApplyExpense(ctx, id, in, caregiver)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	in = input(100)
	in.Category = "groceries"
	_, err = l.ApplyExpense(ctx, id, in, caregiver)
	assert.ErrorIs(t, err, ErrUnknownCategory)

	in = input(100)
	in.ExpenseDate = time.Date(2027, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err = l.ApplyExpense(ctx, id, in, caregiver)
	assert.ErrorIs(t, err, ErrExpenseDateOutsidePeriod)

	_, err = l.ApplyExpense(ctx, 999, input(100), caregiver)
	assert.ErrorIs(t, err, ErrBudgetNotFound)

	// 校验失败不产生任何写入
	assert.True(t, s.budget(id).Remaining.Equal(d(1000)))
	assert.Empty(t, s.auditLogs())
}

func TestApplyExpenseSuspendedBudget(t *testing.T) {
	s := newMemStore()
	b := activeBudget(1000)
	b.Status = models.BudgetStatusSuspended
	id := s.seedBudget(b)
	l := testLedger(s)

	_, err := l.ApplyExpense(context.Background(), id, input(100), caregiver)
	assert.ErrorIs(t, err, ErrBudgetNotActive)
}

func TestApplyExpenseCategoryCap(t *testing.T) {
	s := newMemStore()
	b := activeBudget(1000)
	b.MedicalServicesAllocated = d(300)
	id := s.seedBudget(b)
	l := testLedger(s)
	ctx := context.Background()

	in := input(250)
	in.Category = models.CategoryMedicalServices
	_, err := l.ApplyExpense(ctx, id, in, caregiver)
	require.NoError(t, err)

	// 类别已用 250，再记 100 突破 300 的子额度
	in = input(100)
	in.Category = models.CategoryMedicalServices
	_, err = l.ApplyExpense(ctx, id, in, caregiver)
	require.ErrorIs(t, err, ErrCategoryCapExceeded)

	// 子额度只限到该类别，其他类别不受影响
	_, err = l.ApplyExpense(ctx, id, input(100), caregiver)
	assert.NoError(t, err)

	// 未配置子额度的类别不设限
	in = input(500)
	in.Category = models.CategoryOther
	_, err = l.ApplyExpense(ctx, id, in, caregiver)
	assert.NoError(t, err)
}

func TestApplyExpenseCategoryCapDisabled(t *testing.T) {
	s := newMemStore()
	b := activeBudget(1000)
	b.MedicalServicesAllocated = d(300)
	b.EnforceCategoryCaps = false
	id := s.seedBudget(b)
	l := testLedger(s)

	in := input(500)
	in.Category = models.CategoryMedicalServices
	_, err := l.ApplyExpense(context.Background(), id, in, caregiver)
	assert.NoError(t, err)
}

func TestApplyExpenseOverdraft(t *testing.T) {
	policy := config.ApprovalPolicy{
		Action:         models.AuditActionOverdraftOverride,
		Classification: string(models.ClassificationPII),
	}

	t.Run("不允许透支时直接拒绝", func(t *testing.T) {
		s := newMemStore()
		id := s.seedBudget(activeBudget(100))
		l := testLedger(s, policy)

		_, err := l.ApplyExpense(context.Background(), id, input(150), supervisor)
		assert.ErrorIs(t, err, ErrInsufficientRemainingFunds)
	})

	t.Run("允许透支但操作人无审批权限时整体回滚", func(t *testing.T) {
		s := newMemStore()
		b := activeBudget(100)
		b.AllowOverdraft = true
		id := s.seedBudget(b)
		l := testLedger(s, policy)

		_, err := l.ApplyExpense(context.Background(), id, input(150), caregiver)
		require.ErrorIs(t, err, audit.ErrApprovalRequiredButMissing)

		stored := s.budget(id)
		assert.True(t, stored.Remaining.Equal(d(100)))
		assert.Equal(t, uint(1), stored.Version)
		assert.Empty(t, s.auditLogs())
	})

	t.Run("主管透支成功并留 OVERDRAFT_OVERRIDE 审计", func(t *testing.T) {
		s := newMemStore()
		b := activeBudget(100)
		b.AllowOverdraft = true
		id := s.seedBudget(b)
		l := testLedger(s, policy)

		res, err := l.ApplyExpense(context.Background(), id, input(150), supervisor)
		require.NoError(t, err)
		assert.True(t, res.Budget.Remaining.Equal(d(-50)))
		assert.Equal(t, models.BudgetStatusExhausted, res.Budget.Status)

		logs := s.auditLogs()
		require.Len(t, logs, 1)
		assert.Equal(t, models.AuditActionOverdraftOverride, logs[0].Action)
		assert.True(t, logs[0].ApprovalRequired)
		assert.Equal(t, supervisor.Username, logs[0].ApprovedBy)
	})
}

func TestApplyExpenseRetriesStaleVersion(t *testing.T) {
	s := newMemStore()
	id := s.seedBudget(activeBudget(1000))
	l := testLedger(s)

	s.staleUpdates = 2
	res, err := l.ApplyExpense(context.Background(), id, input(100), caregiver)
	require.NoError(t, err)
	assert.True(t, res.Budget.Remaining.Equal(d(900)))

	// 回滚的尝试不留流水与审计
	logs := s.auditLogs()
	assert.Len(t, logs, 1)
}

func TestApplyExpenseRetryExhaustion(t *testing.T) {
	s := newMemStore()
	id := s.seedBudget(activeBudget(1000))
	l := testLedger(s)

	s.staleUpdates = 10
	_, err := l.ApplyExpense(context.Background(), id, input(100), caregiver)
	require.ErrorIs(t, err, ErrConcurrentUpdateConflict)
	assert.True(t, s.budget(id).Remaining.Equal(d(1000)))
}

func TestApplyExpenseAuditFailureRollsBack(t *testing.T) {
	s := newMemStore()
	id := s.seedBudget(activeBudget(1000))
	l := testLedger(s)

	s.appendErr = assert.AnError
	_, err := l.ApplyExpense(context.Background(), id, input(100), caregiver)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	// 审计写不进去，业务变更一并回滚
	stored := s.budget(id)
	assert.True(t, stored.Remaining.Equal(d(1000)))
	assert.Equal(t, uint(1), stored.Version)
	assert.Empty(t, s.auditLogs())
}

func TestApplyExpenseLogsRejectedAttempt(t *testing.T) {
	s := newMemStore()
	id := s.seedBudget(activeBudget(100))
	cfg := &config.Config{
		Ledger: config.LedgerConfig{MaxRetries: 3},
		Audit:  config.AuditConfig{LogRejected: true},
	}
	l := New(s, audit.NewRecorder(&cfg.Audit), cfg)

	_, err := l.ApplyExpense(context.Background(), id, input(500), caregiver)
	require.ErrorIs(t, err, ErrInsufficientRemainingFunds)

	logs := s.auditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionExpenseApply+models.AuditRejectedSuffix, logs[0].Action)
	assert.Equal(t, caregiverID, *logs[0].UserID)
	// 拒绝记录只记原因，不带实体快照
	assert.Nil(t, logs[0].OldValues)
	assert.Nil(t, logs[0].NewValues)
}

func TestApproveExpense(t *testing.T) {
	s := newMemStore()
	b := activeBudget(1000)
	b.ApprovalRequired = true
	id := s.seedBudget(b)
	l := testLedger(s)
	ctx := context.Background()

	submitted, err := l.ApplyExpense(ctx, id, input(200), caregiver)
	require.NoError(t, err)
	require.Equal(t, models.ExpenseStatusPending, submitted.Expense.Status)

	// 护理员不能核准
	_, err = l.ApproveExpense(ctx, submitted.Expense.ID, caregiver)
	require.ErrorIs(t, err, audit.ErrApprovalRequiredButMissing)

	res, err := l.ApproveExpense(ctx, submitted.Expense.ID, supervisor)
	require.NoError(t, err)

	// 占用转已用，余额不变
	assert.Equal(t, models.ExpenseStatusApproved, res.Expense.Status)
	assert.Equal(t, supervisorID, *res.Expense.ApprovedBy)
	assert.True(t, res.Budget.TotalCommitted.Equal(d(0)))
	assert.True(t, res.Budget.TotalSpent.Equal(d(200)))
	assert.True(t, res.Budget.Remaining.Equal(d(800)))
	assert.True(t, res.Budget.PersonalCareSpent.Equal(d(200)))

	// 已核准的流水不能重复核准
	_, err = l.ApproveExpense(ctx, submitted.Expense.ID, supervisor)
	assert.ErrorIs(t, err, ErrExpenseNotPending)

	logs := s.auditLogs()
	require.Len(t, logs, 2)
	assert.Equal(t, models.AuditActionExpenseApprove, logs[1].Action)
}

func TestApproveExpenseRechecksCategoryCap(t *testing.T) {
	s := newMemStore()
	b := activeBudget(1000)
	b.ApprovalRequired = true
	b.MedicalServicesAllocated = d(300)
	id := s.seedBudget(b)
	l := testLedger(s)
	ctx := context.Background()

	in := input(250)
	in.Category = models.CategoryMedicalServices
	pending, err := l.ApplyExpense(ctx, id, in, caregiver)
	require.NoError(t, err)

	// 挂起期间主管直接记账占满了类别额度
	in2 := input(200)
	in2.Category = models.CategoryMedicalServices
	_, err = l.ApplyExpense(ctx, id, in2, supervisor)
	require.NoError(t, err)

	_, err = l.ApproveExpense(ctx, pending.Expense.ID, supervisor)
	require.ErrorIs(t, err, ErrCategoryCapExceeded)

	// 核准失败回滚，流水仍挂起
	assert.Equal(t, models.ExpenseStatusPending, s.expense(pending.Expense.ID).Status)
	assert.True(t, s.budget(id).TotalCommitted.Equal(d(250)))
}

func TestApproveExpenseRejectsSuspendedBudget(t *testing.T) {
	s := newMemStore()
	b := activeBudget(1000)
	b.ApprovalRequired = true
	id := s.seedBudget(b)
	l := testLedger(s)
	ctx := context.Background()

	pending, err := l.ApplyExpense(ctx, id, input(200), caregiver)
	require.NoError(t, err)

	// 挂起期间预算被冻结
	_, err = l.SuspendBudget(ctx, id, supervisor, "疑似欺诈")
	require.NoError(t, err)

	_, err = l.ApproveExpense(ctx, pending.Expense.ID, supervisor)
	require.ErrorIs(t, err, ErrBudgetNotActive)

	// 核准被拒，流水仍挂起、占用金额不动
	assert.Equal(t, models.ExpenseStatusPending, s.expense(pending.Expense.ID).Status)
	stored := s.budget(id)
	assert.True(t, stored.TotalCommitted.Equal(d(200)))
	assert.True(t, stored.TotalSpent.Equal(d(0)))
}

func TestApproveExpenseRejectsExpiredBudget(t *testing.T) {
	s := newMemStore()
	b := activeBudget(1000)
	b.ApprovalRequired = true
	id := s.seedBudget(b)
	l := testLedger(s)
	ctx := context.Background()

	pending, err := l.ApplyExpense(ctx, id, input(200), caregiver)
	require.NoError(t, err)

	// 挂起期间预算跨过周期终点
	l.now = func() time.Time {
		return time.Date(2027, 1, 2, 0, 0, 0, 0, time.UTC)
	}

	_, err = l.ApproveExpense(ctx, pending.Expense.ID, supervisor)
	require.ErrorIs(t, err, ErrBudgetExpired)

	// 核准本身回滚，过期流转仍单独落库并带系统审计
	assert.Equal(t, models.ExpenseStatusPending, s.expense(pending.Expense.ID).Status)
	stored := s.budget(id)
	assert.Equal(t, models.BudgetStatusExpired, stored.Status)
	assert.True(t, stored.TotalSpent.Equal(d(0)))
	assert.True(t, stored.TotalCommitted.Equal(d(200)))

	logs := s.auditLogs()
	require.Len(t, logs, 2)
	assert.Equal(t, models.AuditActionBudgetExpire, logs[1].Action)
	assert.Nil(t, logs[1].UserID)
}

func TestRejectExpense(t *testing.T) {
	s := newMemStore()
	b := activeBudget(1000)
	b.ApprovalRequired = true
	id := s.seedBudget(b)
	l := testLedger(s)
	ctx := context.Background()

	submitted, err := l.ApplyExpense(ctx, id, input(200), caregiver)
	require.NoError(t, err)

	res, err := l.RejectExpense(ctx, submitted.Expense.ID, supervisor, "费用凭证不完整")
	require.NoError(t, err)

	// 驳回释放占用金额，类别已用不受影响
	assert.Equal(t, models.ExpenseStatusRejected, res.Expense.Status)
	assert.True(t, res.Budget.TotalCommitted.Equal(d(0)))
	assert.True(t, res.Budget.TotalSpent.Equal(d(0)))
	assert.True(t, res.Budget.Remaining.Equal(d(1000)))

	logs := s.auditLogs()
	require.Len(t, logs, 2)
	assert.Equal(t, models.AuditActionExpenseReject, logs[1].Action)
	assert.Equal(t, "费用凭证不完整", logs[1].Reason)
}

func TestReverseExpense(t *testing.T) {
	s := newMemStore()
	id := s.seedBudget(activeBudget(1000))
	l := testLedger(s)
	ctx := context.Background()

	applied, err := l.ApplyExpense(ctx, id, input(200), caregiver)
	require.NoError(t, err)
	snapshotBefore := *applied.Budget

	res, err := l.ReverseExpense(ctx, applied.Expense.ID, supervisor, "重复录入")
	require.NoError(t, err)

	// 冲正流水为等额负数并指向原流水
	assert.True(t, res.Expense.Amount.Equal(d(-200)))
	require.NotNil(t, res.Expense.ReversesExpenseID)
	assert.Equal(t, applied.Expense.ID, *res.Expense.ReversesExpenseID)

	// 预算金额精确回到记账前
	assert.True(t, res.Budget.TotalSpent.Equal(snapshotBefore.TotalSpent.Sub(d(200))))
	assert.True(t, res.Budget.Remaining.Equal(d(1000)))
	assert.True(t, res.Budget.PersonalCareSpent.Equal(d(0)))

	// 原始流水保持不变
	orig := s.expense(applied.Expense.ID)
	assert.Equal(t, models.ExpenseStatusApproved, orig.Status)
	assert.True(t, orig.Amount.Equal(d(200)))

	// 同一笔支出不能二次冲正
	_, err = l.ReverseExpense(ctx, applied.Expense.ID, supervisor, "再冲一次")
	assert.ErrorIs(t, err, ErrExpenseAlreadyReversed)

	// 冲正流水本身不可再冲正
	_, err = l.ReverseExpense(ctx, res.Expense.ID, supervisor, "冲正的冲正")
	assert.ErrorIs(t, err, ErrExpenseNotReversible)

	logs := s.auditLogs()
	require.Len(t, logs, 2)
	assert.Equal(t, models.AuditActionExpenseReverse, logs[1].Action)
	assert.Equal(t, "重复录入", logs[1].Reason)
}

func TestReverseExpenseRevivesExhaustedBudget(t *testing.T) {
	s := newMemStore()
	id := s.seedBudget(activeBudget(1000))
	l := testLedger(s)
	ctx := context.Background()

	applied, err := l.ApplyExpense(ctx, id, input(1000), caregiver)
	require.NoError(t, err)
	require.Equal(t, models.BudgetStatusExhausted, applied.Budget.Status)

	// 已耗尽的预算仍允许冲正，余额回正后恢复生效
	res, err := l.ReverseExpense(ctx, applied.Expense.ID, supervisor, "记错预算")
	require.NoError(t, err)
	assert.Equal(t, models.BudgetStatusActive, res.Budget.Status)
	assert.True(t, res.Budget.Remaining.Equal(d(1000)))
}

func TestReverseExpenseRejectsPending(t *testing.T) {
	s := newMemStore()
	b := activeBudget(1000)
	b.ApprovalRequired = true
	id := s.seedBudget(b)
	l := testLedger(s)
	ctx := context.Background()

	submitted, err := l.ApplyExpense(ctx, id, input(200), caregiver)
	require.NoError(t, err)

	// 挂起流水走驳回，不走冲正
	_, err = l.ReverseExpense(ctx, submitted.Expense.ID, supervisor, "想撤回")
	assert.ErrorIs(t, err, ErrExpenseNotReversible)
}

func TestSuspendAndResumeBudget(t *testing.T) {
	s := newMemStore()
	id := s.seedBudget(activeBudget(1000))
	l := testLedger(s)
	ctx := context.Background()

	// 冻结须有审批权限
	_, err := l.SuspendBudget(ctx, id, caregiver, "疑似欺诈")
	require.ErrorIs(t, err, audit.ErrApprovalRequiredButMissing)

	b, err := l.SuspendBudget(ctx, id, supervisor, "疑似欺诈")
	require.NoError(t, err)
	assert.Equal(t, models.BudgetStatusSuspended, b.Status)

	// 冻结中不可记账、不可重复冻结
	_, err = l.ApplyExpense(ctx, id, input(100), caregiver)
	assert.ErrorIs(t, err, ErrBudgetNotActive)
	_, err = l.SuspendBudget(ctx, id, supervisor, "再冻一次")
	assert.ErrorIs(t, err, ErrBudgetNotActive)

	b, err = l.ResumeBudget(ctx, id, supervisor, "调查结束")
	require.NoError(t, err)
	assert.Equal(t, models.BudgetStatusActive, b.Status)

	// 未冻结的预算不可恢复
	_, err = l.ResumeBudget(ctx, id, supervisor, "再恢复一次")
	assert.ErrorIs(t, err, ErrBudgetNotSuspended)

	logs := s.auditLogs()
	require.Len(t, logs, 2)
	assert.Equal(t, models.AuditActionBudgetSuspend, logs[0].Action)
	assert.Equal(t, models.AuditActionBudgetResume, logs[1].Action)
}

func TestLazyExpiry(t *testing.T) {
	s := newMemStore()
	id := s.seedBudget(activeBudget(1000))
	l := testLedger(s)
	l.now = func() time.Time {
		return time.Date(2027, 1, 2, 0, 0, 0, 0, time.UTC)
	}
	ctx := context.Background()

	in := input(100)
	in.ExpenseDate = time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	_, err := l.ApplyExpense(ctx, id, in, caregiver)
	require.ErrorIs(t, err, ErrBudgetExpired)

	// 过期转换已落库并带系统审计记录
	stored := s.budget(id)
	assert.Equal(t, models.BudgetStatusExpired, stored.Status)

	logs := s.auditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionBudgetExpire, logs[0].Action)
	assert.Nil(t, logs[0].UserID)

	// 再次访问不重复记过期审计
	_, err = l.RefreshBudget(ctx, id)
	require.NoError(t, err)
	assert.Len(t, s.auditLogs(), 1)

	// 对已过期预算再记账同样被拒，且不再补记过期审计
	_, err = l.ApplyExpense(ctx, id, in, caregiver)
	require.ErrorIs(t, err, ErrBudgetExpired)
	assert.Len(t, s.auditLogs(), 1)
}

func TestRefreshBudgetExpires(t *testing.T) {
	s := newMemStore()
	id := s.seedBudget(activeBudget(1000))
	l := testLedger(s)
	l.now = func() time.Time {
		return time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC)
	}

	b, err := l.RefreshBudget(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.BudgetStatusExpired, b.Status)
	assert.Equal(t, models.BudgetStatusExpired, s.budget(id).Status)
}

func TestConcurrentAppliersNeverOverCommit(t *testing.T) {
	s := newMemStore()
	id := s.seedBudget(activeBudget(1000))
	l := testLedger(s)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.ApplyExpense(ctx, id, input(100), caregiver)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientRemainingFunds) || errors.Is(err, ErrBudgetNotActive):
			rejected++
		default:
			t.Fatalf("意外错误: %v", err)
		}
	}

	// 总额 1000 最多容纳 10 笔 100，其余必须被拒绝
	assert.Equal(t, 10, succeeded)
	assert.Equal(t, workers-10, rejected)

	stored := s.budget(id)
	assert.True(t, stored.TotalSpent.Equal(d(1000)))
	assert.True(t, stored.Remaining.Equal(d(0)))
	assert.Equal(t, models.BudgetStatusExhausted, stored.Status)

	// 每笔成功记账都有且只有一条审计
	assert.Len(t, s.auditLogs(), 10)
}

func TestAuditTrailCoversEveryMutation(t *testing.T) {
	s := newMemStore()
	b := activeBudget(1000)
	b.ApprovalRequired = true
	id := s.seedBudget(b)
	l := testLedger(s)
	ctx := context.Background()

	submitted, err := l.ApplyExpense(ctx, id, input(200), caregiver)
	require.NoError(t, err)
	_, err = l.ApproveExpense(ctx, submitted.Expense.ID, supervisor)
	require.NoError(t, err)
	_, err = l.ReverseExpense(ctx, submitted.Expense.ID, supervisor, "更正")
	require.NoError(t, err)
	_, err = l.SuspendBudget(ctx, id, supervisor, "审查")
	require.NoError(t, err)
	_, err = l.ResumeBudget(ctx, id, supervisor, "审查通过")
	require.NoError(t, err)

	wantActions := []string{
		models.AuditActionExpenseApply,
		models.AuditActionExpenseApprove,
		models.AuditActionExpenseReverse,
		models.AuditActionBudgetSuspend,
		models.AuditActionBudgetResume,
	}
	logs := s.auditLogs()
	require.Len(t, logs, len(wantActions))
	for i, action := range wantActions {
		assert.Equal(t, action, logs[i].Action)
	}
}
