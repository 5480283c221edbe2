package mysql

import (
	"context"
	"errors"
	"sort"

	"coinwallet/internal/model"
	"coinwallet/internal/storage"

	gosqlmysql "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MySQL error numbers worth special handling.
const (
	errDuplicateKey    = 1062
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// Store is the gorm-backed implementation of storage.Store.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ storage.Store = (*Store)(nil)

// InTx opens a database transaction, locks every account the unit may
// mutate with SELECT ... FOR UPDATE in ascending id order, then runs fn.
// Deadlock and lock-wait-timeout errors are translated to
// storage.ErrTxConflict so the caller can retry the whole unit.
func (s *Store) InTx(ctx context.Context, accountIDs []int64, fn func(uow storage.UnitOfWork) error) error {
	ids := sortedUnique(accountIDs)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		uow := &unitOfWork{tx: tx, locked: make(map[int64]*model.Account, len(ids))}
		for _, id := range ids {
			var account model.Account
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", id).
				First(&account).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return storage.ErrAccountNotFound
				}
				return err
			}
			uow.locked[id] = &account
		}
		return fn(uow)
	})

	return translateConflict(err)
}

// unitOfWork carries the transaction handle plus the row-locked accounts
// the unit declared up front.
type unitOfWork struct {
	tx     *gorm.DB
	locked map[int64]*model.Account
}

func (u *unitOfWork) ApplyDelta(ctx context.Context, accountID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	account, ok := u.locked[accountID]
	if !ok {
		// The account was not declared to InTx, so its row is not locked.
		return decimal.Zero, storage.ErrAccountNotFound
	}

	newBalance := account.Balance.Add(delta)
	if newBalance.IsNegative() {
		return decimal.Zero, storage.ErrInsufficientFunds
	}

	result := u.tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"balance": newBalance,
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return decimal.Zero, result.Error
	}
	if result.RowsAffected == 0 {
		return decimal.Zero, storage.ErrAccountNotFound
	}

	account.Balance = newBalance
	return newBalance, nil
}

func (u *unitOfWork) AppendEntry(ctx context.Context, entry *model.LedgerEntry) error {
	return u.tx.WithContext(ctx).Create(entry).Error
}

func (u *unitOfWork) EnqueueOutbox(ctx context.Context, msg *model.OutboxMessage) error {
	return u.tx.WithContext(ctx).Create(msg).Error
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

func translateConflict(err error) error {
	if err == nil {
		return nil
	}
	var mysqlErr *gosqlmysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case errDeadlock, errLockWaitTimeout:
			return storage.ErrTxConflict
		}
	}
	return err
}

func isDuplicateKey(err error) bool {
	var mysqlErr *gosqlmysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateKey
}
