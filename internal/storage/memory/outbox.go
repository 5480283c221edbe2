package memory

import (
	"context"
	"errors"
	"time"

	"coinwallet/internal/model"
)

var errOutboxNotFound = errors.New("outbox message not found")

func (s *Store) PendingOutbox(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []*model.OutboxMessage
	for _, msg := range s.outbox {
		if msg.Status != model.OutboxStatusPending {
			continue
		}
		copied := *msg
		pending = append(pending, &copied)
		if len(pending) >= limit {
			break
		}
	}
	return pending, nil
}

func (s *Store) MarkOutboxSent(ctx context.Context, id int64) error {
	return s.updateOutbox(id, func(msg *model.OutboxMessage) {
		msg.Status = model.OutboxStatusSent
	})
}

func (s *Store) MarkOutboxFailed(ctx context.Context, id int64) error {
	return s.updateOutbox(id, func(msg *model.OutboxMessage) {
		msg.Status = model.OutboxStatusFailed
		msg.RetryCount++
	})
}

func (s *Store) IncrementOutboxRetry(ctx context.Context, id int64) error {
	return s.updateOutbox(id, func(msg *model.OutboxMessage) {
		msg.RetryCount++
	})
}

func (s *Store) updateOutbox(id int64, apply func(msg *model.OutboxMessage)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.outbox {
		if msg.ID == id {
			apply(msg)
			msg.UpdatedAt = time.Now()
			return nil
		}
	}
	return errOutboxNotFound
}
