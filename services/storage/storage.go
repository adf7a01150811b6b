// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateItem is returned by InsertItem when the item URL is already
// persisted. The unique constraint on item_url is the last line of defense
// against two tasks discovering the same URL within one cycle, so callers
// treat this as a skip, not a failure.
var ErrDuplicateItem = errors.New("item url already persisted")

// MonitoringTask is a standing subscription pairing a chat with a listing
// search URL. Tasks are created by the external registration flow; the
// monitor only reads them.
type MonitoringTask struct {
	ID          int64
	ChatID      string
	URL         string
	LastUpdated time.Time
	LastGotItem *time.Time
}

// ItemRecord is a persisted marketplace item. item_url is globally unique and
// is the sole deduplication key; records are inserted once and never updated.
type ItemRecord struct {
	ID              int64
	ItemURL         string
	Title           string
	Price           string
	Location        string
	CreatedAt       time.Time
	CreatedAtPretty string
	ImageURL        string
	Description     string
	SourceURL       string
	FirstSeen       time.Time
}

// Storage is the interface for all persistence operations.
type Storage interface {
	// Monitor side
	DistinctTaskURLs(ctx context.Context) ([]string, error)
	ExistingItemURLs(ctx context.Context) (map[string]struct{}, error)
	InsertItem(ctx context.Context, item *ItemRecord) error

	// Registration / notifier side
	CreateTask(ctx context.Context, task *MonitoringTask) error
	GetTaskByChatID(ctx context.Context, chatID string) (*MonitoringTask, error)
	DeleteTaskByChatID(ctx context.Context, chatID string) error
	PendingTasks(ctx context.Context, window time.Duration) ([]MonitoringTask, error)
	UpdateLastGotItem(ctx context.Context, chatID string) error
	ItemsToSendForTask(ctx context.Context, task *MonitoringTask, window time.Duration) ([]ItemRecord, error)

	Close() error
}
