package events

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fairspace/ceres/pkg/pid"
)

// OutboxEntry stores a pid lifecycle event until the relay has published it.
// Entries are written in the same transaction as the pid row they describe.
type OutboxEntry struct {
	ID uint `gorm:"primaryKey" json:"id"`

	PidID pid.UUID `gorm:"type:uuid;not null;index:idx_pid_outbox_pid_id" json:"pidId"`
	URI   string   `gorm:"type:text;not null" json:"uri"`

	// Idempotency key: {pid_id}:{event_type}:{occurred_at_unix_nano}
	IdempotentKey string    `gorm:"type:varchar(128);not null;uniqueIndex" json:"idempotentKey"`
	EventType     string    `gorm:"type:varchar(50);not null" json:"eventType"`
	OccurredAt    time.Time `gorm:"not null" json:"occurredAt"`

	Status          string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_pid_outbox_status" json:"status"`
	PublishedAt     *time.Time `json:"publishedAt,omitempty"`
	PublishAttempts int        `gorm:"default:0" json:"publishAttempts"`
	LastError       string     `gorm:"type:text" json:"lastError,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name.
func (OutboxEntry) TableName() string {
	return "pid_outbox"
}

// Event types.
const (
	PidCreated = "pid.created"
	PidDeleted = "pid.deleted"
)

// Outbox statuses.
const (
	StatusPending   = "pending"
	StatusPublished = "published"
	StatusFailed    = "failed"
)

// GenerateIdempotentKey creates the unique key for one event.
func GenerateIdempotentKey(id pid.UUID, eventType string, occurredAt time.Time) string {
	return fmt.Sprintf("%s:%s:%d", id.String(), eventType, occurredAt.UnixNano())
}

// NewOutboxEntry creates a pending outbox entry for p.
func NewOutboxEntry(p pid.Pid, eventType string, occurredAt time.Time) *OutboxEntry {
	return &OutboxEntry{
		PidID:         p.ID,
		URI:           p.URI,
		EventType:     eventType,
		OccurredAt:    occurredAt,
		IdempotentKey: GenerateIdempotentKey(p.ID, eventType, occurredAt),
		Status:        StatusPending,
	}
}

// BeforeCreate hook to ensure required fields.
func (o *OutboxEntry) BeforeCreate(tx *gorm.DB) error {
	if o.PidID.IsZero() {
		return fmt.Errorf("pid_id is required")
	}
	if o.URI == "" {
		return fmt.Errorf("uri is required")
	}
	if o.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if o.OccurredAt.IsZero() {
		o.OccurredAt = time.Now().UTC()
	}
	if o.IdempotentKey == "" {
		o.IdempotentKey = GenerateIdempotentKey(o.PidID, o.EventType, o.OccurredAt)
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	return nil
}

// FindPendingEntries retrieves pending entries, oldest first.
func FindPendingEntries(db *gorm.DB, limit int) ([]OutboxEntry, error) {
	var entries []OutboxEntry
	err := db.
		Where("status = ?", StatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// MarkAsPublished marks the entry as successfully published.
func (o *OutboxEntry) MarkAsPublished(db *gorm.DB) error {
	now := time.Now()
	o.Status = StatusPublished
	o.PublishedAt = &now
	return db.Model(o).Updates(map[string]interface{}{
		"status":       StatusPublished,
		"published_at": now,
		"updated_at":   now,
	}).Error
}

// MarkAsFailed marks the entry as failed with error details.
func (o *OutboxEntry) MarkAsFailed(db *gorm.DB, err error) error {
	o.PublishAttempts++
	o.Status = StatusFailed
	o.LastError = err.Error()

	return db.Model(o).Updates(map[string]interface{}{
		"status":           StatusFailed,
		"publish_attempts": o.PublishAttempts,
		"last_error":       err.Error(),
		"updated_at":       time.Now(),
	}).Error
}

// Retry resets the entry to pending.
func (o *OutboxEntry) Retry(db *gorm.DB) error {
	o.Status = StatusPending
	o.LastError = ""
	return db.Model(o).Updates(map[string]interface{}{
		"status":     StatusPending,
		"last_error": "",
		"updated_at": time.Now(),
	}).Error
}

// DeleteOldPublishedEntries removes published entries older than olderThan.
func DeleteOldPublishedEntries(db *gorm.DB, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result := db.
		Where("status = ? AND published_at < ?", StatusPublished, cutoff).
		Delete(&OutboxEntry{})

	return result.RowsAffected, result.Error
}

// GetFailedEntries retrieves failed entries, most recently updated first.
func GetFailedEntries(db *gorm.DB, limit int) ([]OutboxEntry, error) {
	var entries []OutboxEntry
	err := db.
		Where("status = ?", StatusFailed).
		Order("updated_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// CountByStatus returns the number of entries with the given status.
func CountByStatus(db *gorm.DB, status string) (int64, error) {
	var count int64
	err := db.Model(&OutboxEntry{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}
