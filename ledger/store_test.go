package ledger

import (
	"context"
	"sync"

	"careledger/models"
	"careledger/repository"
)

// memStore 内存仓库，实现 repository.Store
// 事务语义：fn 在状态副本上执行，出错时丢弃副本整体回滚；
// 可注入乐观锁冲突与审计写入失败，用于验证重试与回滚路径
type memStore struct {
	mu       sync.Mutex
	budgets  map[uint]models.Budget
	expenses map[uint]models.BudgetExpense
	logs     []models.AuditLog

	nextBudgetID  uint
	nextExpenseID uint
	nextLogID     uint

	// staleUpdates > 0 时，接下来 N 次预算写入返回 ErrStaleVersion
	staleUpdates int
	// appendErr 非空时审计追加失败
	appendErr error
}

func newMemStore() *memStore {
	return &memStore{
		budgets:  make(map[uint]models.Budget),
		expenses: make(map[uint]models.BudgetExpense),
	}
}

func (s *memStore) seedBudget(b models.Budget) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextBudgetID++
	b.ID = s.nextBudgetID
	if b.Version == 0 {
		b.Version = 1
	}
	s.budgets[b.ID] = b
	return b.ID
}

func (s *memStore) budget(id uint) models.Budget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budgets[id]
}

func (s *memStore) expense(id uint) models.BudgetExpense {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expenses[id]
}

func (s *memStore) auditLogs() []models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AuditLog, len(s.logs))
	copy(out, s.logs)
	return out
}

// WithTransaction 整个事务持锁执行，副本提交即原子可见
func (s *memStore) WithTransaction(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.begin()
	if err := fn(tx); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *memStore) begin() *memTx {
	tx := &memTx{
		store:    s,
		budgets:  make(map[uint]models.Budget, len(s.budgets)),
		expenses: make(map[uint]models.BudgetExpense, len(s.expenses)),
	}
	for id, b := range s.budgets {
		tx.budgets[id] = b
	}
	for id, e := range s.expenses {
		tx.expenses[id] = e
	}
	tx.nextBudgetID = s.nextBudgetID
	tx.nextExpenseID = s.nextExpenseID
	tx.nextLogID = s.nextLogID
	return tx
}

func (s *memStore) commit(tx *memTx) {
	s.budgets = tx.budgets
	s.expenses = tx.expenses
	s.logs = append(s.logs, tx.newLogs...)
	s.nextBudgetID = tx.nextBudgetID
	s.nextExpenseID = tx.nextExpenseID
	s.nextLogID = tx.nextLogID
}

// 非事务入口仅为满足接口，测试中核心只经由 WithTransaction 写入
func (s *memStore) Budgets() repository.BudgetStore    { return s.begin().Budgets() }
func (s *memStore) Expenses() repository.ExpenseStore  { return s.begin().Expenses() }
func (s *memStore) AuditLogs() repository.AuditLogStore { return s.begin().AuditLogs() }

type memTx struct {
	store    *memStore
	budgets  map[uint]models.Budget
	expenses map[uint]models.BudgetExpense
	newLogs  []models.AuditLog

	nextBudgetID  uint
	nextExpenseID uint
	nextLogID     uint
}

func (t *memTx) Budgets() repository.BudgetStore     { return (*memBudgets)(t) }
func (t *memTx) Expenses() repository.ExpenseStore   { return (*memExpenses)(t) }
func (t *memTx) AuditLogs() repository.AuditLogStore { return (*memLogs)(t) }

type memBudgets memTx

func (m *memBudgets) FindByID(id uint) (*models.Budget, error) {
	b, ok := m.budgets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (m *memBudgets) FindByClient(clientID uint) ([]models.Budget, error) {
	var out []models.Budget
	for _, b := range m.budgets {
		if b.ClientID == clientID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBudgets) Create(b *models.Budget) error {
	m.nextBudgetID++
	b.ID = m.nextBudgetID
	if b.Version == 0 {
		b.Version = 1
	}
	m.budgets[b.ID] = *b
	return nil
}

func (m *memBudgets) Update(b *models.Budget) error {
	if m.store.staleUpdates > 0 {
		m.store.staleUpdates--
		return repository.ErrStaleVersion
	}
	cur, ok := m.budgets[b.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Version != b.Version {
		return repository.ErrStaleVersion
	}
	b.Version++
	m.budgets[b.ID] = *b
	return nil
}

type memExpenses memTx

func (m *memExpenses) FindByID(id uint) (*models.BudgetExpense, error) {
	e, ok := m.expenses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (m *memExpenses) ListByBudget(budgetID uint, page, pageSize int) ([]models.BudgetExpense, int64, error) {
	var out []models.BudgetExpense
	for _, e := range m.expenses {
		if e.BudgetID == budgetID {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memExpenses) Create(e *models.BudgetExpense) error {
	m.nextExpenseID++
	e.ID = m.nextExpenseID
	if e.Version == 0 {
		e.Version = 1
	}
	m.expenses[e.ID] = *e
	return nil
}

func (m *memExpenses) Update(e *models.BudgetExpense) error {
	cur, ok := m.expenses[e.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Version != e.Version {
		return repository.ErrStaleVersion
	}
	e.Version++
	m.expenses[e.ID] = *e
	return nil
}

func (m *memExpenses) HasReversal(expenseID uint) (bool, error) {
	for _, e := range m.expenses {
		if e.ReversesExpenseID != nil && *e.ReversesExpenseID == expenseID {
			return true, nil
		}
	}
	return false, nil
}

type memLogs memTx

func (m *memLogs) Append(entry *models.AuditLog) error {
	if m.store.appendErr != nil {
		return m.store.appendErr
	}
	m.nextLogID++
	entry.ID = m.nextLogID
	m.newLogs = append(m.newLogs, *entry)
	return nil
}

func (m *memLogs) List(filter repository.AuditFilter) ([]models.AuditLog, int64, error) {
	out := make([]models.AuditLog, len(m.newLogs))
	copy(out, m.newLogs)
	return out, int64(len(out)), nil
}
