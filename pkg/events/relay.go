// Package events publishes pid lifecycle events through a transactional
// outbox. Stores write OutboxEntry rows alongside the pid rows; the Relay
// polls them and produces Kafka/Redpanda records.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/twmb/franz-go/pkg/kgo"
	"gorm.io/gorm"
)

// Producer is the subset of *kgo.Client the relay uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Relay polls the pid_outbox table and publishes events.
type Relay struct {
	db           *gorm.DB
	producer     Producer
	topic        string
	logger       hclog.Logger
	pollInterval time.Duration
	batchSize    int

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Config holds configuration for the relay.
type Config struct {
	DB *gorm.DB

	Brokers []string
	Topic   string

	// Producer replaces the Kafka client built from Brokers.
	Producer Producer

	PollInterval time.Duration // default: 1s
	BatchSize    int           // default: 100

	Logger hclog.Logger
}

// New creates a new outbox relay.
func New(cfg Config) (*Relay, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("database is required")
	}
	if cfg.Producer == nil && len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	if cfg.PollInterval == 0 {
		cfg.PollInterval = 1 * time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	producer := cfg.Producer
	if producer == nil {
		client, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.Brokers...),
			kgo.DefaultProduceTopic(cfg.Topic),

			// Producer durability settings
			kgo.RequiredAcks(kgo.AllISRAcks()),
			kgo.ProducerBatchCompression(kgo.GzipCompression()),

			kgo.RetryBackoffFn(func(tries int) time.Duration {
				backoff := time.Duration(tries) * 100 * time.Millisecond
				if backoff > 60*time.Second {
					backoff = 60 * time.Second
				}
				return backoff
			}),
			kgo.RequestRetries(10),
			kgo.ProducerLinger(10*time.Millisecond),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka client: %w", err)
		}
		producer = client
	}

	return &Relay{
		db:           cfg.DB,
		producer:     producer,
		topic:        cfg.Topic,
		logger:       cfg.Logger.Named("outbox-relay"),
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}, nil
}

// Start runs the polling loop until Stop is called or ctx is cancelled. A
// relay can only be started once.
func (r *Relay) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return fmt.Errorf("outbox relay already started")
	}
	defer close(r.doneCh)

	select {
	case <-r.stopCh:
		return nil
	default:
	}

	r.logger.Info("starting outbox relay",
		"poll_interval", r.pollInterval,
		"batch_size", r.batchSize,
		"topic", r.topic,
	)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped by context")
			return ctx.Err()

		case <-r.stopCh:
			r.logger.Info("outbox relay stopped")
			return nil

		case <-ticker.C:
			if _, err := r.ProcessBatch(ctx); err != nil {
				// Keep polling; the next tick retries.
				r.logger.Error("failed to process outbox batch", "error", err)
			}
		}
	}
}

// Stop stops the polling loop, waits for a running Start to return and
// closes the producer. It is safe to call more than once.
func (r *Relay) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		if r.started.Load() {
			<-r.doneCh
		}
		r.producer.Close()
	})
}

// ProcessBatch publishes up to one batch of pending entries and returns how
// many were published.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	entries, err := FindPendingEntries(r.db.WithContext(ctx), r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to find pending outbox entries: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	r.logger.Debug("processing outbox batch", "count", len(entries))

	successCount, failCount := 0, 0
	for i := range entries {
		if r.publishAndMark(ctx, &entries[i]) {
			successCount++
		} else {
			failCount++
		}
	}

	r.logger.Info("processed outbox batch",
		"total", len(entries),
		"success", successCount,
		"failed", failCount,
	)

	return successCount, nil
}

func (r *Relay) publishAndMark(ctx context.Context, entry *OutboxEntry) bool {
	if err := r.publishEntry(ctx, entry); err != nil {
		r.logger.Error("failed to publish outbox entry",
			"outbox_id", entry.ID,
			"pid_id", entry.PidID,
			"error", err,
		)
		if markErr := entry.MarkAsFailed(r.db, err); markErr != nil {
			r.logger.Error("failed to mark outbox entry as failed",
				"outbox_id", entry.ID,
				"error", markErr,
			)
		}
		return false
	}

	if err := entry.MarkAsPublished(r.db); err != nil {
		r.logger.Error("failed to mark outbox entry as published",
			"outbox_id", entry.ID,
			"error", err,
		)
		return false
	}
	return true
}

// publishEntry produces one entry and waits for the ack.
func (r *Relay) publishEntry(ctx context.Context, entry *OutboxEntry) error {
	event := PidEvent{
		ID:        entry.ID,
		PidID:     entry.PidID.String(),
		URI:       entry.URI,
		EventType: entry.EventType,
		Timestamp: entry.OccurredAt,
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Keyed by pid id so events for one identifier land on one partition.
	record := &kgo.Record{
		Topic: r.topic,
		Key:   []byte(entry.PidID.String()),
		Value: eventJSON,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(entry.EventType)},
			{Key: "idempotent_key", Value: []byte(entry.IdempotentKey)},
		},
	}

	if err := r.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to publish to kafka: %w", err)
	}

	r.logger.Debug("published event",
		"outbox_id", entry.ID,
		"pid_id", entry.PidID,
		"event_type", entry.EventType,
	)
	return nil
}

// CleanupOldEntries removes published entries older than olderThan.
func (r *Relay) CleanupOldEntries(olderThan time.Duration) (int64, error) {
	deleted, err := DeleteOldPublishedEntries(r.db, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old outbox entries: %w", err)
	}

	r.logger.Info("cleaned up old outbox entries",
		"deleted", deleted,
		"older_than", olderThan,
	)
	return deleted, nil
}

// RetryFailed republishes up to limit failed entries and returns how many
// succeeded.
func (r *Relay) RetryFailed(ctx context.Context, limit int) (int, error) {
	failed, err := GetFailedEntries(r.db.WithContext(ctx), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to get failed outbox entries: %w", err)
	}
	if len(failed) == 0 {
		r.logger.Info("no failed outbox entries to retry")
		return 0, nil
	}

	r.logger.Info("retrying failed outbox entries", "count", len(failed))

	successCount := 0
	for i := range failed {
		entry := &failed[i]
		if err := entry.Retry(r.db); err != nil {
			r.logger.Error("failed to reset outbox entry to pending",
				"outbox_id", entry.ID,
				"error", err,
			)
			continue
		}
		if r.publishAndMark(ctx, entry) {
			successCount++
		}
	}

	r.logger.Info("retry completed",
		"attempted", len(failed),
		"success", successCount,
		"failed", len(failed)-successCount,
	)
	return successCount, nil
}

// GetStats returns the outbox counts per status.
func GetStats(db *gorm.DB) (OutboxStats, error) {
	var stats OutboxStats
	var err error

	if stats.Pending, err = CountByStatus(db, StatusPending); err != nil {
		return stats, err
	}
	if stats.Published, err = CountByStatus(db, StatusPublished); err != nil {
		return stats, err
	}
	if stats.Failed, err = CountByStatus(db, StatusFailed); err != nil {
		return stats, err
	}
	return stats, nil
}

// PidEvent is the record value published for each outbox entry.
type PidEvent struct {
	ID        uint      `json:"id"`
	PidID     string    `json:"pidId"`
	URI       string    `json:"uri"`
	EventType string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
}

// OutboxStats contains statistics about the outbox state.
type OutboxStats struct {
	Pending   int64 `json:"pending"`
	Published int64 `json:"published"`
	Failed    int64 `json:"failed"`
}
