package service_test

import (
	"context"
	"testing"

	"coinwallet/internal/service"
	"coinwallet/internal/storage"
	"coinwallet/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAccountService() (*service.AccountService, *memory.Store) {
	store := memory.New()
	return service.NewAccountService(store), store
}

func TestRegisterNormalizesCPF(t *testing.T) {
	svc, _ := newAccountService()

	account, err := svc.Register(context.Background(), &service.RegisterRequest{
		Name:     "  Ana Souza  ",
		Email:    "Ana@Example.COM",
		Password: "s3cret-pw",
		CPF:      "123.456.789-09",
	})
	require.NoError(t, err)

	assert.Equal(t, "12345678909", account.CPF, "punctuation stripped")
	assert.Equal(t, "Ana Souza", account.Name)
	assert.Equal(t, "ana@example.com", account.Email)
	assert.True(t, account.Balance.IsZero())
}

func TestRegisterRejectsMalformedCPF(t *testing.T) {
	svc, _ := newAccountService()

	for _, cpf := range []string{"", "123", "123.456.789", "123456789090000"} {
		_, err := svc.Register(context.Background(), &service.RegisterRequest{
			Name:     "Ana",
			Email:    "ana@example.com",
			Password: "s3cret-pw",
			CPF:      cpf,
		})
		assert.ErrorIs(t, err, service.ErrInvalidCPF, "cpf %q", cpf)
	}
}

func TestRegisterDuplicateCPFAcrossFormats(t *testing.T) {
	svc, _ := newAccountService()

	_, err := svc.Register(context.Background(), &service.RegisterRequest{
		Name: "Ana", Email: "ana@example.com", Password: "s3cret-pw",
		CPF: "123.456.789-09",
	})
	require.NoError(t, err)

	// Same document, bare digits, different email.
	_, err = svc.Register(context.Background(), &service.RegisterRequest{
		Name: "Ana Clone", Email: "other@example.com", Password: "s3cret-pw",
		CPF: "12345678909",
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateAccount)
}

func TestRegisterStoresHashNotPlaintext(t *testing.T) {
	svc, store := newAccountService()

	account, err := svc.Register(context.Background(), &service.RegisterRequest{
		Name: "Ana", Email: "ana@example.com", Password: "s3cret-pw",
		CPF: "123.456.789-09",
	})
	require.NoError(t, err)

	stored, err := store.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pw", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("s3cret-pw")))
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newAccountService()

	registered, err := svc.Register(context.Background(), &service.RegisterRequest{
		Name: "Ana", Email: "ana@example.com", Password: "s3cret-pw",
		CPF: "123.456.789-09",
	})
	require.NoError(t, err)

	account, err := svc.Authenticate(context.Background(), "ana@example.com", "s3cret-pw")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, account.ID)

	// Email lookup is case insensitive.
	_, err = svc.Authenticate(context.Background(), "ANA@example.com", "s3cret-pw")
	assert.NoError(t, err)

	// Wrong password and unknown email are indistinguishable.
	_, err = svc.Authenticate(context.Background(), "ana@example.com", "wrong")
	assert.ErrorIs(t, err, service.ErrInvalidCredential)
	_, err = svc.Authenticate(context.Background(), "nobody@example.com", "s3cret-pw")
	assert.ErrorIs(t, err, service.ErrInvalidCredential)
}

func TestSetPixKey(t *testing.T) {
	svc, store := newAccountService()

	account, err := svc.Register(context.Background(), &service.RegisterRequest{
		Name: "Ana", Email: "ana@example.com", Password: "s3cret-pw",
		CPF: "123.456.789-09",
	})
	require.NoError(t, err)
	assert.Empty(t, account.PixKey)

	require.NoError(t, svc.SetPixKey(context.Background(), account.ID, "  ana@bank.example  "))

	stored, err := store.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana@bank.example", stored.PixKey)

	assert.ErrorIs(t, svc.SetPixKey(context.Background(), 999, "key"), storage.ErrAccountNotFound)
}
