package service

import (
	"context"
	"errors"

	"coinwallet/internal/model"
	"coinwallet/internal/storage"

	"github.com/shopspring/decimal"
)

// History filters accepted by GetHistory. "transfer" matches both legs.
const (
	FilterAll        = "all"
	FilterDeposit    = "deposit"
	FilterWithdrawal = "withdrawal"
	FilterTransfer   = "transfer"
)

const (
	defaultHistoryPageSize = 50
	maxHistoryPageSize     = 100
)

// QueryService serves read-only projections of committed state.
type QueryService struct {
	store           storage.Store
	historyPageSize int
}

func NewQueryService(store storage.Store, historyPageSize int) *QueryService {
	if historyPageSize <= 0 {
		historyPageSize = defaultHistoryPageSize
	}
	return &QueryService{store: store, historyPageSize: historyPageSize}
}

type Snapshot struct {
	AccountID int64           `json:"account_id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	CPF       string          `json:"cpf"`
	PixKey    string          `json:"pix_key"`
	Balance   decimal.Decimal `json:"balance"`
}

func (s *QueryService) GetSnapshot(ctx context.Context, accountID int64) (*Snapshot, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		AccountID: account.ID,
		Name:      account.Name,
		Email:     account.Email,
		CPF:       account.CPF,
		PixKey:    account.PixKey,
		Balance:   account.Balance,
	}, nil
}

// GetHistory returns one page of the account's ledger, newest first.
func (s *QueryService) GetHistory(ctx context.Context, accountID int64, filter string, page, pageSize int) ([]*model.LedgerEntry, int64, error) {
	kinds, err := filterKinds(filter)
	if err != nil {
		return nil, 0, err
	}

	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.historyPageSize
	}
	if pageSize > maxHistoryPageSize {
		pageSize = maxHistoryPageSize
	}

	return s.store.ListEntries(ctx, accountID, kinds, page, pageSize)
}

type LookupResult struct {
	Exists    bool   `json:"exists"`
	Name      string `json:"name,omitempty"`
	AccountID int64  `json:"account_id,omitempty"`
}

// LookupByCPF tells the transfer flow whether a CPF belongs to a member.
// A missing account is a valid answer, not an error: the caller uses it
// to offer an invite instead of a transfer.
func (s *QueryService) LookupByCPF(ctx context.Context, cpf string) (*LookupResult, error) {
	account, err := s.store.GetAccountByCPF(ctx, model.NormalizeCPF(cpf))
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return &LookupResult{Exists: false}, nil
		}
		return nil, err
	}
	return &LookupResult{
		Exists:    true,
		Name:      account.Name,
		AccountID: account.ID,
	}, nil
}

func filterKinds(filter string) ([]string, error) {
	switch filter {
	case "", FilterAll:
		return nil, nil
	case FilterDeposit:
		return []string{model.EntryKindDeposit}, nil
	case FilterWithdrawal:
		return []string{model.EntryKindWithdrawal}, nil
	case FilterTransfer:
		return []string{model.EntryKindTransferOut, model.EntryKindTransferIn}, nil
	default:
		return nil, ErrInvalidFilter
	}
}
