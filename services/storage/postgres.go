package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"topn/olxmonitor/internal/timeutil"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS monitoring_tasks (
    id BIGSERIAL PRIMARY KEY,
    chat_id TEXT NOT NULL UNIQUE,
    url TEXT NOT NULL,
    last_updated TIMESTAMP NOT NULL,
    last_got_item TIMESTAMP
);

CREATE TABLE IF NOT EXISTS item_records (
    id BIGSERIAL PRIMARY KEY,
    item_url TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    price TEXT NOT NULL,
    location TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    created_at_pretty TEXT NOT NULL,
    image_url TEXT,
    description TEXT NOT NULL,
    source_url TEXT NOT NULL,
    first_seen TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_item_records_first_seen ON item_records (first_seen);
`

// Postgres implements Storage backed by a Postgres database.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to Postgres at dsn and bootstraps the schema.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// DistinctTaskURLs returns the distinct set of configured task URLs.
func (p *Postgres) DistinctTaskURLs(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT DISTINCT url FROM monitoring_tasks ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("query task urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan task url: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// ExistingItemURLs returns all persisted item URLs as a set.
func (p *Postgres) ExistingItemURLs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := p.pool.Query(ctx, `SELECT item_url FROM item_records`)
	if err != nil {
		return nil, fmt.Errorf("query item urls: %w", err)
	}
	defer rows.Close()

	urls := make(map[string]struct{})
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan item url: %w", err)
		}
		urls[u] = struct{}{}
	}
	return urls, rows.Err()
}

// InsertItem inserts a new item record and populates its ID.
// Returns ErrDuplicateItem when the item URL is already persisted.
func (p *Postgres) InsertItem(ctx context.Context, item *ItemRecord) error {
	var imageURL *string
	if item.ImageURL != "" {
		imageURL = &item.ImageURL
	}

	err := p.pool.QueryRow(ctx,
		`INSERT INTO item_records
		   (item_url, title, price, location, created_at, created_at_pretty,
		    image_url, description, source_url, first_seen)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		item.ItemURL, item.Title, item.Price, item.Location,
		item.CreatedAt, item.CreatedAtPretty, imageURL,
		item.Description, item.SourceURL, item.FirstSeen,
	).Scan(&item.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateItem
		}
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// CreateTask inserts a new monitoring task and populates its ID.
func (p *Postgres) CreateTask(ctx context.Context, task *MonitoringTask) error {
	now := timeutil.NowLocal()
	err := p.pool.QueryRow(ctx,
		`INSERT INTO monitoring_tasks (chat_id, url, last_updated)
		 VALUES ($1, $2, $3) RETURNING id`,
		task.ChatID, task.URL, now,
	).Scan(&task.ID)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	task.LastUpdated = now
	return nil
}

// GetTaskByChatID returns the monitoring task for the given chat.
func (p *Postgres) GetTaskByChatID(ctx context.Context, chatID string) (*MonitoringTask, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, chat_id, url, last_updated, last_got_item
		 FROM monitoring_tasks WHERE chat_id = $1`, chatID,
	)
	var t MonitoringTask
	if err := row.Scan(&t.ID, &t.ChatID, &t.URL, &t.LastUpdated, &t.LastGotItem); err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return &t, nil
}

// DeleteTaskByChatID removes the monitoring task for the given chat.
func (p *Postgres) DeleteTaskByChatID(ctx context.Context, chatID string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM monitoring_tasks WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// PendingTasks returns tasks whose last_got_item is unset or older than the window.
func (p *Postgres) PendingTasks(ctx context.Context, window time.Duration) ([]MonitoringTask, error) {
	threshold := timeutil.NowLocal().Add(-window)
	rows, err := p.pool.Query(ctx,
		`SELECT id, chat_id, url, last_updated, last_got_item
		 FROM monitoring_tasks
		 WHERE last_got_item IS NULL OR last_got_item < $1
		 ORDER BY id`, threshold,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending tasks: %w", err)
	}
	defer rows.Close()

	var tasks []MonitoringTask
	for rows.Next() {
		var t MonitoringTask
		if err := rows.Scan(&t.ID, &t.ChatID, &t.URL, &t.LastUpdated, &t.LastGotItem); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateLastGotItem stamps the task's last_got_item with the current time.
func (p *Postgres) UpdateLastGotItem(ctx context.Context, chatID string) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE monitoring_tasks SET last_got_item = $1 WHERE chat_id = $2`,
		timeutil.NowLocal(), chatID,
	)
	if err != nil {
		return fmt.Errorf("update last_got_item: %w", err)
	}
	return nil
}

// ItemsToSendForTask returns records first seen after the task's last_got_item,
// or within the window when the task has never been served.
func (p *Postgres) ItemsToSendForTask(ctx context.Context, task *MonitoringTask, window time.Duration) ([]ItemRecord, error) {
	since := timeutil.NowLocal().Add(-window)
	if task.LastGotItem != nil {
		since = *task.LastGotItem
	}

	rows, err := p.pool.Query(ctx,
		`SELECT id, item_url, title, price, location, created_at, created_at_pretty,
		        image_url, description, source_url, first_seen
		 FROM item_records WHERE first_seen > $1 ORDER BY first_seen`, since,
	)
	if err != nil {
		return nil, fmt.Errorf("query items to send: %w", err)
	}
	defer rows.Close()

	var items []ItemRecord
	for rows.Next() {
		var it ItemRecord
		var imageURL *string
		err := rows.Scan(
			&it.ID, &it.ItemURL, &it.Title, &it.Price, &it.Location,
			&it.CreatedAt, &it.CreatedAtPretty, &imageURL, &it.Description,
			&it.SourceURL, &it.FirstSeen,
		)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if imageURL != nil {
			it.ImageURL = *imageURL
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
