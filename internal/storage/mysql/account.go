package mysql

import (
	"context"
	"errors"

	"coinwallet/internal/model"
	"coinwallet/internal/storage"

	"gorm.io/gorm"
)

func (s *Store) CreateAccount(ctx context.Context, account *model.Account) error {
	err := s.db.WithContext(ctx).Create(account).Error
	if isDuplicateKey(err) {
		return storage.ErrDuplicateAccount
	}
	return err
}

func (s *Store) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	return s.getAccount(ctx, "id = ?", id)
}

func (s *Store) GetAccountByCPF(ctx context.Context, cpf string) (*model.Account, error) {
	return s.getAccount(ctx, "cpf = ?", cpf)
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return s.getAccount(ctx, "email = ?", email)
}

func (s *Store) getAccount(ctx context.Context, query string, arg interface{}) (*model.Account, error) {
	var account model.Account
	err := s.db.WithContext(ctx).Where(query, arg).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (s *Store) SetPixKey(ctx context.Context, id int64, key string) error {
	result := s.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		Update("pix_key", key)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// MySQL reports zero affected rows when the value is unchanged,
		// so distinguish that from a missing account.
		if _, err := s.GetAccount(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
