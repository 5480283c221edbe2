// Package memory implements storage.Store without a database: balances
// are guarded by per-account mutexes acquired in ascending id order, and
// every unit of work stages its mutations and applies them only on commit.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"coinwallet/internal/model"
	"coinwallet/internal/storage"

	"github.com/shopspring/decimal"
)

type Store struct {
	mu       sync.RWMutex
	accounts map[int64]*model.Account
	byCPF    map[string]int64
	byEmail  map[string]int64
	entries  []*model.LedgerEntry
	outbox   []*model.OutboxMessage

	nextAccountID int64
	nextEntryID   int64
	nextOutboxID  int64

	lockMu       sync.Mutex
	accountLocks map[int64]*sync.Mutex
}

func New() *Store {
	return &Store{
		accounts:     make(map[int64]*model.Account),
		byCPF:        make(map[string]int64),
		byEmail:      make(map[string]int64),
		accountLocks: make(map[int64]*sync.Mutex),
	}
}

var _ storage.Store = (*Store)(nil)

func (s *Store) accountLock(id int64) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	if _, ok := s.accountLocks[id]; !ok {
		s.accountLocks[id] = &sync.Mutex{}
	}
	return s.accountLocks[id]
}

func (s *Store) CreateAccount(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byCPF[account.CPF]; ok {
		return storage.ErrDuplicateAccount
	}
	if _, ok := s.byEmail[strings.ToLower(account.Email)]; ok {
		return storage.ErrDuplicateAccount
	}

	s.nextAccountID++
	now := time.Now()
	account.ID = s.nextAccountID
	account.CreatedAt = now
	account.UpdatedAt = now

	stored := *account
	s.accounts[account.ID] = &stored
	s.byCPF[account.CPF] = account.ID
	s.byEmail[strings.ToLower(account.Email)] = account.ID
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(id)
}

func (s *Store) GetAccountByCPF(ctx context.Context, cpf string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCPF[cpf]
	if !ok {
		return nil, storage.ErrAccountNotFound
	}
	return s.snapshotLocked(id)
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, storage.ErrAccountNotFound
	}
	return s.snapshotLocked(id)
}

// snapshotLocked returns a copy; callers never see the authoritative record.
func (s *Store) snapshotLocked(id int64) (*model.Account, error) {
	account, ok := s.accounts[id]
	if !ok {
		return nil, storage.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (s *Store) SetPixKey(ctx context.Context, id int64, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return storage.ErrAccountNotFound
	}
	account.PixKey = key
	account.UpdatedAt = time.Now()
	return nil
}

func (s *Store) ListEntries(ctx context.Context, accountID int64, kinds []string, page, pageSize int) ([]*model.LedgerEntry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kindSet := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		kindSet[k] = struct{}{}
	}

	// Entries are appended in id order; walk backwards for newest first.
	var matched []*model.LedgerEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		entry := s.entries[i]
		if entry.AccountID != accountID {
			continue
		}
		if len(kindSet) > 0 {
			if _, ok := kindSet[entry.Kind]; !ok {
				continue
			}
		}
		copied := *entry
		matched = append(matched, &copied)
	}

	total := int64(len(matched))
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// InTx acquires the mutex of every declared account in ascending id order,
// stages all mutations, and applies them only when fn returns nil.
func (s *Store) InTx(ctx context.Context, accountIDs []int64, fn func(uow storage.UnitOfWork) error) error {
	ids := sortedUnique(accountIDs)

	for _, id := range ids {
		s.accountLock(id).Lock()
	}
	defer func() {
		for i := len(ids) - 1; i >= 0; i-- {
			s.accountLock(ids[i]).Unlock()
		}
	}()

	uow := &unitOfWork{balances: make(map[int64]decimal.Decimal, len(ids))}
	s.mu.RLock()
	for _, id := range ids {
		account, ok := s.accounts[id]
		if !ok {
			s.mu.RUnlock()
			return storage.ErrAccountNotFound
		}
		uow.balances[id] = account.Balance
	}
	s.mu.RUnlock()

	if err := fn(uow); err != nil {
		// Abort: staged mutations are simply discarded.
		return err
	}

	s.commit(uow)
	return nil
}

func (s *Store) commit(uow *unitOfWork) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, balance := range uow.balances {
		account := s.accounts[id]
		account.Balance = balance
		account.Version++
		account.UpdatedAt = now
	}
	for _, entry := range uow.entries {
		s.nextEntryID++
		entry.ID = s.nextEntryID
		entry.CreatedAt = now
		s.entries = append(s.entries, entry)
	}
	for _, msg := range uow.outbox {
		s.nextOutboxID++
		msg.ID = s.nextOutboxID
		msg.CreatedAt = now
		msg.UpdatedAt = now
		s.outbox = append(s.outbox, msg)
	}
}

type unitOfWork struct {
	balances map[int64]decimal.Decimal
	entries  []*model.LedgerEntry
	outbox   []*model.OutboxMessage
}

func (u *unitOfWork) ApplyDelta(ctx context.Context, accountID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	balance, ok := u.balances[accountID]
	if !ok {
		return decimal.Zero, storage.ErrAccountNotFound
	}
	newBalance := balance.Add(delta)
	if newBalance.IsNegative() {
		return decimal.Zero, storage.ErrInsufficientFunds
	}
	u.balances[accountID] = newBalance
	return newBalance, nil
}

func (u *unitOfWork) AppendEntry(ctx context.Context, entry *model.LedgerEntry) error {
	copied := *entry
	u.entries = append(u.entries, &copied)
	return nil
}

func (u *unitOfWork) EnqueueOutbox(ctx context.Context, msg *model.OutboxMessage) error {
	copied := *msg
	if copied.Status == "" {
		copied.Status = model.OutboxStatusPending
	}
	u.outbox = append(u.outbox, &copied)
	return nil
}

func sortedUnique(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
