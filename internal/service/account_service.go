package service

import (
	"context"
	"errors"
	"strings"

	"coinwallet/internal/model"
	"coinwallet/internal/storage"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// AccountService handles registration, authentication, and payout-key
// management. It never touches balances.
type AccountService struct {
	store storage.Store
}

func NewAccountService(store storage.Store) *AccountService {
	return &AccountService{store: store}
}

type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	CPF      string
}

// Register creates a new account with balance zero. The CPF is
// normalized before the uniqueness check, so differently formatted
// registrations of the same document collide.
func (s *AccountService) Register(ctx context.Context, req *RegisterRequest) (*model.Account, error) {
	cpf := model.NormalizeCPF(req.CPF)
	if len(cpf) != 11 {
		return nil, ErrInvalidCPF
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	account := &model.Account{
		CPF:          cpf,
		Name:         strings.TrimSpace(req.Name),
		Email:        normalizeEmail(req.Email),
		PasswordHash: string(hash),
		Balance:      decimal.Zero,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Authenticate verifies the credential with a constant-time bcrypt
// comparison. Unknown email and wrong password produce the same error.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*model.Account, error) {
	account, err := s.store.GetAccountByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredential
	}
	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	return s.store.GetAccount(ctx, id)
}

func (s *AccountService) SetPixKey(ctx context.Context, id int64, key string) error {
	return s.store.SetPixKey(ctx, id, strings.TrimSpace(key))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
