package mysql

import (
	"context"

	"coinwallet/internal/model"

	"gorm.io/gorm"
)

func (s *Store) PendingOutbox(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := s.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (s *Store) MarkOutboxSent(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Update("status", model.OutboxStatusSent).Error
}

func (s *Store) MarkOutboxFailed(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      model.OutboxStatusFailed,
			"retry_count": gorm.Expr("retry_count + 1"),
		}).Error
}

func (s *Store) IncrementOutboxRetry(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		UpdateColumn("retry_count", gorm.Expr("retry_count + 1")).Error
}
