package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"coinwallet/internal/config"
	"coinwallet/internal/infrastructure/lock"
	"coinwallet/internal/model"
	"coinwallet/internal/storage"
	"coinwallet/pkg/idgen"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultTxRetries = 3

// TransactionService is the transaction engine: it orchestrates deposit,
// withdrawal, and transfer as atomic units of one or two balance deltas
// plus the matching ledger entries and an outbox event.
//
// Each operation either commits in full or leaves no trace. Transient
// storage conflicts retry the whole unit from scratch; the unit has no
// side effects until commit, so a retry is safe.
type TransactionService struct {
	store      storage.Store
	locker     lock.Locker
	cfg        *config.Config
	maxRetries int
}

func NewTransactionService(store storage.Store, locker lock.Locker, cfg *config.Config) *TransactionService {
	maxRetries := cfg.Business.MaxRetryCount
	if maxRetries <= 0 {
		maxRetries = defaultTxRetries
	}
	return &TransactionService{
		store:      store,
		locker:     locker,
		cfg:        cfg,
		maxRetries: maxRetries,
	}
}

// Deposit credits amount to the account and appends one DEPOSIT entry.
func (s *TransactionService) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	release, err := s.locker.Acquire(ctx, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("acquire account lock: %w", err)
	}
	defer release()

	var newBalance decimal.Decimal
	err = s.runUnit(ctx, []int64{accountID}, func(uow storage.UnitOfWork) error {
		balance, err := uow.ApplyDelta(ctx, accountID, amount)
		if err != nil {
			return err
		}
		newBalance = balance

		entry := &model.LedgerEntry{
			TransactionNo: idgen.GenerateTransactionNo(),
			AccountID:     accountID,
			Kind:          model.EntryKindDeposit,
			Amount:        amount,
			Description:   "PIX deposit",
			BalanceAfter:  balance,
		}
		if err := uow.AppendEntry(ctx, entry); err != nil {
			return err
		}
		return s.enqueueEvent(ctx, uow, entry)
	})
	if err != nil {
		return decimal.Zero, err
	}

	log.Printf("deposit committed: accountID=%d amount=%s balance=%s", accountID, amount, newBalance)
	return newBalance, nil
}

// Withdraw debits amount from the account and appends one WITHDRAWAL
// entry. It fails with storage.ErrInsufficientFunds when the balance
// cannot cover the amount; payout-key presence is the HTTP collaborator's
// concern.
func (s *TransactionService) Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	release, err := s.locker.Acquire(ctx, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("acquire account lock: %w", err)
	}
	defer release()

	var newBalance decimal.Decimal
	err = s.runUnit(ctx, []int64{accountID}, func(uow storage.UnitOfWork) error {
		balance, err := uow.ApplyDelta(ctx, accountID, amount.Neg())
		if err != nil {
			return err
		}
		newBalance = balance

		entry := &model.LedgerEntry{
			TransactionNo: idgen.GenerateTransactionNo(),
			AccountID:     accountID,
			Kind:          model.EntryKindWithdrawal,
			Amount:        amount,
			Description:   "PIX withdrawal",
			BalanceAfter:  balance,
		}
		if err := uow.AppendEntry(ctx, entry); err != nil {
			return err
		}
		return s.enqueueEvent(ctx, uow, entry)
	})
	if err != nil {
		return decimal.Zero, err
	}

	log.Printf("withdrawal committed: accountID=%d amount=%s balance=%s", accountID, amount, newBalance)
	return newBalance, nil
}

type TransferResult struct {
	NewBalance    decimal.Decimal
	RecipientName string
	TransferGroup string
}

// Transfer moves amount from the sender to the account addressed by the
// recipient's CPF. The debit is validated and applied before the credit;
// if it fails, the credit never runs and nothing is written. Both ledger
// entries share one transfer group id assigned at append time.
func (s *TransactionService) Transfer(ctx context.Context, senderID int64, recipientCPF string, amount decimal.Decimal) (*TransferResult, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	recipient, err := s.store.GetAccountByCPF(ctx, model.NormalizeCPF(recipientCPF))
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}
	if recipient.ID == senderID {
		return nil, ErrSelfTransfer
	}

	sender, err := s.store.GetAccount(ctx, senderID)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, senderID, recipient.ID)
	if err != nil {
		return nil, fmt.Errorf("acquire account locks: %w", err)
	}
	defer release()

	var result TransferResult
	err = s.runUnit(ctx, []int64{senderID, recipient.ID}, func(uow storage.UnitOfWork) error {
		// Debit first: a failed debit must abort before the recipient is
		// ever credited.
		senderBalance, err := uow.ApplyDelta(ctx, senderID, amount.Neg())
		if err != nil {
			return err
		}
		recipientBalance, err := uow.ApplyDelta(ctx, recipient.ID, amount)
		if err != nil {
			return err
		}

		group := uuid.NewString()
		out := &model.LedgerEntry{
			TransactionNo: idgen.GenerateTransactionNo(),
			AccountID:     senderID,
			Kind:          model.EntryKindTransferOut,
			Amount:        amount,
			Counterparty:  recipient.CPF,
			Description:   fmt.Sprintf("Transfer sent to %s", recipient.Name),
			TransferGroup: group,
			BalanceAfter:  senderBalance,
		}
		in := &model.LedgerEntry{
			TransactionNo: idgen.GenerateTransactionNo(),
			AccountID:     recipient.ID,
			Kind:          model.EntryKindTransferIn,
			Amount:        amount,
			Counterparty:  sender.Name,
			Description:   fmt.Sprintf("Transfer received from %s", sender.Name),
			TransferGroup: group,
			BalanceAfter:  recipientBalance,
		}
		if err := uow.AppendEntry(ctx, out); err != nil {
			return err
		}
		if err := uow.AppendEntry(ctx, in); err != nil {
			return err
		}

		result = TransferResult{
			NewBalance:    senderBalance,
			RecipientName: recipient.Name,
			TransferGroup: group,
		}
		return s.enqueueEvent(ctx, uow, out, in)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("transfer committed: senderID=%d recipientID=%d amount=%s group=%s",
		senderID, recipient.ID, amount, result.TransferGroup)
	return &result, nil
}

// runUnit executes one unit of work, retrying from scratch on transient
// storage conflicts. After the retry budget it surfaces ErrStorageFault.
func (s *TransactionService) runUnit(ctx context.Context, accountIDs []int64, fn func(uow storage.UnitOfWork) error) error {
	var err error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err = s.store.InTx(ctx, accountIDs, fn)
		if !errors.Is(err, storage.ErrTxConflict) {
			return err
		}
		log.Printf("unit of work conflict, retrying: attempt=%d accounts=%v", attempt+1, accountIDs)
	}
	return fmt.Errorf("%w: %v", ErrStorageFault, err)
}

// ledgerEvent is the payload published for every committed operation.
type ledgerEvent struct {
	Event      string             `json:"event"`
	Entries    []ledgerEventEntry `json:"entries"`
	OccurredAt string             `json:"occurred_at"`
}

type ledgerEventEntry struct {
	TransactionNo string          `json:"transaction_no"`
	AccountID     int64           `json:"account_id"`
	Kind          string          `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	TransferGroup string          `json:"transfer_group,omitempty"`
}

func (s *TransactionService) enqueueEvent(ctx context.Context, uow storage.UnitOfWork, entries ...*model.LedgerEntry) error {
	event := ledgerEvent{
		Event:      "ledger.committed",
		OccurredAt: time.Now().Format(time.RFC3339),
	}
	for _, e := range entries {
		event.Entries = append(event.Entries, ledgerEventEntry{
			TransactionNo: e.TransactionNo,
			AccountID:     e.AccountID,
			Kind:          e.Kind,
			Amount:        e.Amount,
			TransferGroup: e.TransferGroup,
		})
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &model.OutboxMessage{
		MessageKey: entries[0].TransactionNo,
		Topic:      s.cfg.Kafka.Topic.LedgerEvents,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	return uow.EnqueueOutbox(ctx, msg)
}
