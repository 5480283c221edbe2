package job

import (
	"context"
	"log"
	"time"

	"coinwallet/internal/config"
	"coinwallet/internal/infrastructure/mq"
	"coinwallet/internal/model"
	"coinwallet/internal/storage"
)

// OutboxSender drains PENDING outbox messages into Kafka. Messages are
// staged in the same unit of work as the ledger entries they describe,
// so consumers only ever see committed activity; delivery itself is
// at-least-once.
const defaultSendRetries = 3

type OutboxSender struct {
	store      storage.Store
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
	maxRetries int
}

func NewOutboxSender(store storage.Store, cfg *config.Config) *OutboxSender {
	maxRetries := cfg.Business.MaxRetryCount
	if maxRetries <= 0 {
		maxRetries = defaultSendRetries
	}
	return &OutboxSender{
		store:      store,
		stopCh:     make(chan struct{}),
		interval:   100 * time.Millisecond,
		batchSize:  100,
		maxRetries: maxRetries,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	log.Println("[OutboxSender] started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OutboxSender] context cancelled, exiting")
			return
		case <-s.stopCh:
			log.Println("[OutboxSender] stopped")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

func (s *OutboxSender) processPendingMessages(ctx context.Context) {
	messages, err := s.store.PendingOutbox(ctx, s.batchSize)
	if err != nil {
		log.Printf("[OutboxSender] failed to load pending messages: %v", err)
		return
	}

	for _, msg := range messages {
		s.sendMessage(ctx, msg)
	}
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) {
	err := mq.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)

	if err == nil {
		if updateErr := s.store.MarkOutboxSent(ctx, msg.ID); updateErr != nil {
			log.Printf("[OutboxSender] failed to mark message sent: id=%d err=%v", msg.ID, updateErr)
		}
		return
	}

	log.Printf("[OutboxSender] delivery failed: id=%d err=%v", msg.ID, err)

	if msg.RetryCount+1 >= s.maxRetries {
		if err := s.store.MarkOutboxFailed(ctx, msg.ID); err != nil {
			log.Printf("[OutboxSender] failed to mark message failed: id=%d err=%v", msg.ID, err)
		} else {
			log.Printf("[OutboxSender] retry budget exhausted, message parked: id=%d", msg.ID)
		}
		return
	}

	if err := s.store.IncrementOutboxRetry(ctx, msg.ID); err != nil {
		log.Printf("[OutboxSender] failed to bump retry count: id=%d err=%v", msg.ID, err)
	}
}
