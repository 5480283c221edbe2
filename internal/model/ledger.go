package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger entry kinds. The amount column is always positive; the kind
// decides whether it credited or debited the owning account.
const (
	EntryKindDeposit     = "DEPOSIT"
	EntryKindWithdrawal  = "WITHDRAWAL"
	EntryKindTransferOut = "TRANSFER_OUT"
	EntryKindTransferIn  = "TRANSFER_IN"
)

// LedgerEntry is one immutable record of a balance-affecting event.
//
// Ledger rules:
//  1. Append only: entries are never updated or deleted, so the audit
//     trail stays trustworthy.
//  2. Every balance change commits together with exactly one entry (or a
//     matched out/in pair for transfers) in the same unit of work.
//  3. BalanceAfter records the post-mutation balance, so the books can be
//     replayed and reconciled entry by entry.
//
// Both legs of a transfer share a TransferGroup id assigned at append
// time; for every other kind it is empty.
type LedgerEntry struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	AccountID     int64           `gorm:"index:idx_entry_account_created,priority:1;not null" json:"account_id"`
	Kind          string          `gorm:"type:varchar(20);not null" json:"kind"`
	Amount        decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Counterparty  string          `gorm:"type:varchar(128)" json:"counterparty,omitempty"` // other party's CPF or display name, transfers only
	Description   string          `gorm:"type:varchar(256)" json:"description"`
	TransferGroup string          `gorm:"type:varchar(36);index" json:"transfer_group,omitempty"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"balance_after"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index:idx_entry_account_created,priority:2,sort:desc" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entry"
}

// IsCredit reports whether the entry increased the owning account's balance.
func (e *LedgerEntry) IsCredit() bool {
	return e.Kind == EntryKindDeposit || e.Kind == EntryKindTransferIn
}

// SignedAmount returns the amount with the sign implied by the kind.
func (e *LedgerEntry) SignedAmount() decimal.Decimal {
	if e.IsCredit() {
		return e.Amount
	}
	return e.Amount.Neg()
}
