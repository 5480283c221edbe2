// Package storage defines the persistence contract of the balance-and-ledger
// engine. Two implementations exist: mysql (gorm, the production store) and
// memory (per-account mutexes, used by tests and single-binary deployments).
package storage

import (
	"context"
	"errors"

	"coinwallet/internal/model"

	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrDuplicateAccount  = errors.New("account already registered for this CPF or email")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrTxConflict marks transient contention (deadlock, lock wait
	// timeout). The unit of work had no observable effect and may be
	// retried from scratch.
	ErrTxConflict = errors.New("storage conflict")
)

// UnitOfWork is the write surface available inside one atomic unit.
// Every mutation staged through it commits together or not at all.
type UnitOfWork interface {
	// ApplyDelta adds a signed delta to one account's balance and returns
	// the post-mutation balance. Fails with ErrInsufficientFunds when the
	// result would be negative, leaving the balance unchanged. Deltas to
	// the same account are serialized by the store.
	ApplyDelta(ctx context.Context, accountID int64, delta decimal.Decimal) (decimal.Decimal, error)

	// AppendEntry stages an immutable ledger entry. The store assigns the
	// id and creation timestamp at commit.
	AppendEntry(ctx context.Context, entry *model.LedgerEntry) error

	// EnqueueOutbox stages an outbox message in the same unit of work.
	EnqueueOutbox(ctx context.Context, msg *model.OutboxMessage) error
}

// Store is the durable home of accounts, ledger entries, and outbox
// messages. Reads return committed state only; callers receive copies,
// never authoritative records.
type Store interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id int64) (*model.Account, error)
	GetAccountByCPF(ctx context.Context, cpf string) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	SetPixKey(ctx context.Context, id int64, key string) error

	// ListEntries returns one page of an account's ledger, newest first,
	// optionally restricted to the given kinds, plus the total count.
	ListEntries(ctx context.Context, accountID int64, kinds []string, page, pageSize int) ([]*model.LedgerEntry, int64, error)

	// InTx runs fn inside one atomic unit of work. accountIDs lists every
	// account the unit may mutate; the store locks them in ascending id
	// order regardless of caller role, so opposite-direction transfers
	// cannot deadlock. Any error from fn aborts the whole unit.
	InTx(ctx context.Context, accountIDs []int64, fn func(uow UnitOfWork) error) error

	PendingOutbox(ctx context.Context, limit int) ([]*model.OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, id int64) error
	MarkOutboxFailed(ctx context.Context, id int64) error
	IncrementOutboxRetry(ctx context.Context, id int64) error
}
