package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"topn/olxmonitor/internal/timeutil"
	"topn/olxmonitor/migrations"
)

// Stored timestamps are naive local time, no zone suffix.
const timeLayout = "2006-01-02 15:04:05"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// DistinctTaskURLs returns the distinct set of configured task URLs.
func (s *SQLite) DistinctTaskURLs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT url FROM monitoring_tasks ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("query task urls: %w", err)
	}
	defer func() { _ = rows.Close() }()

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
func (s *SQLite) ExistingItemURLs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT item_url FROM item_records`)
	if err != nil {
		return nil, fmt.Errorf("query item urls: %w", err)
	}
	defer func() { _ = rows.Close() }()

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
func (s *SQLite) InsertItem(ctx context.Context, item *ItemRecord) error {
	var imageURL sql.NullString
	if item.ImageURL != "" {
		imageURL = sql.NullString{String: item.ImageURL, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO item_records
		   (item_url, title, price, location, created_at, created_at_pretty,
		    image_url, description, source_url, first_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ItemURL, item.Title, item.Price, item.Location,
		item.CreatedAt.Format(timeLayout), item.CreatedAtPretty,
		imageURL, item.Description, item.SourceURL,
		item.FirstSeen.Format(timeLayout),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateItem
		}
		return fmt.Errorf("insert item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	item.ID = id
	return nil
}

// CreateTask inserts a new monitoring task and populates its ID.
func (s *SQLite) CreateTask(ctx context.Context, task *MonitoringTask) error {
	now := timeutil.NowLocal()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO monitoring_tasks (chat_id, url, last_updated) VALUES (?, ?, ?)`,
		task.ChatID, task.URL, now.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	task.ID = id
	task.LastUpdated = now
	return nil
}

// GetTaskByChatID returns the monitoring task for the given chat.
func (s *SQLite) GetTaskByChatID(ctx context.Context, chatID string) (*MonitoringTask, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, chat_id, url, last_updated, last_got_item
		 FROM monitoring_tasks WHERE chat_id = ?`, chatID,
	)
	return scanTask(row)
}

// DeleteTaskByChatID removes the monitoring task for the given chat.
func (s *SQLite) DeleteTaskByChatID(ctx context.Context, chatID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM monitoring_tasks WHERE chat_id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// PendingTasks returns tasks whose last_got_item is unset or older than the window.
func (s *SQLite) PendingTasks(ctx context.Context, window time.Duration) ([]MonitoringTask, error) {
	threshold := timeutil.NowLocal().Add(-window)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, url, last_updated, last_got_item
		 FROM monitoring_tasks
		 WHERE last_got_item IS NULL OR last_got_item < ?
		 ORDER BY id`,
		threshold.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query pending tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []MonitoringTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// UpdateLastGotItem stamps the task's last_got_item with the current time.
func (s *SQLite) UpdateLastGotItem(ctx context.Context, chatID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE monitoring_tasks SET last_got_item = ? WHERE chat_id = ?`,
		timeutil.NowLocal().Format(timeLayout), chatID,
	)
	if err != nil {
		return fmt.Errorf("update last_got_item: %w", err)
	}
	return nil
}

// ItemsToSendForTask returns records first seen after the task's last_got_item,
// or within the window when the task has never been served.
func (s *SQLite) ItemsToSendForTask(ctx context.Context, task *MonitoringTask, window time.Duration) ([]ItemRecord, error) {
	since := timeutil.NowLocal().Add(-window)
	if task.LastGotItem != nil {
		since = *task.LastGotItem
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_url, title, price, location, created_at, created_at_pretty,
		        image_url, description, source_url, first_seen
		 FROM item_records WHERE first_seen > ? ORDER BY first_seen`,
		since.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query items to send: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []ItemRecord
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTask(row scannable) (*MonitoringTask, error) {
	var t MonitoringTask
	var lastUpdated string
	var lastGot sql.NullString
	if err := row.Scan(&t.ID, &t.ChatID, &t.URL, &lastUpdated, &lastGot); err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	t.LastUpdated, _ = time.Parse(timeLayout, lastUpdated)
	if lastGot.Valid {
		v, _ := time.Parse(timeLayout, lastGot.String)
		t.LastGotItem = &v
	}
	return &t, nil
}

func scanItem(row scannable) (ItemRecord, error) {
	var it ItemRecord
	var createdAt, firstSeen string
	var imageURL sql.NullString
	err := row.Scan(
		&it.ID, &it.ItemURL, &it.Title, &it.Price, &it.Location,
		&createdAt, &it.CreatedAtPretty, &imageURL, &it.Description,
		&it.SourceURL, &firstSeen,
	)
	if err != nil {
		return it, fmt.Errorf("scan item: %w", err)
	}
	it.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	it.FirstSeen, _ = time.Parse(timeLayout, firstSeen)
	if imageURL.Valid {
		it.ImageURL = imageURL.String
	}
	return it, nil
}
