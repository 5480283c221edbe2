package mysql

import (
	"context"

	"coinwallet/internal/model"
)

func (s *Store) ListEntries(ctx context.Context, accountID int64, kinds []string, page, pageSize int) ([]*model.LedgerEntry, int64, error) {
	var entries []*model.LedgerEntry
	var total int64

	query := s.db.WithContext(ctx).
		Model(&model.LedgerEntry{}).
		Where("account_id = ?", accountID)
	if len(kinds) > 0 {
		query = query.Where("kind IN ?", kinds)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error

	return entries, total, err
}
