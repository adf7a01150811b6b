// Package monitor orchestrates one scraping pass over all configured task
// URLs and persists what it finds.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"topn/olxmonitor/internal/scraper"
	"topn/olxmonitor/internal/timeutil"
	"topn/olxmonitor/logger"
	errs "topn/olxmonitor/pkg/errors"
	"topn/olxmonitor/services/publisher"
	"topn/olxmonitor/services/storage"
)

// Monitor checks all configured task URLs using the provided scraper and
// persists new items. Task URLs are processed strictly sequentially to bound
// the outbound request rate.
type Monitor struct {
	store      storage.Storage
	scraper    scraper.Scraper
	summarizer scraper.Summarizer
	publisher  publisher.Publisher
	taskDelay  time.Duration
	log        *logger.Logger
}

// New creates a new monitor
func New(
	store storage.Storage,
	scr scraper.Scraper,
	summarizer scraper.Summarizer,
	pub publisher.Publisher,
	taskDelay time.Duration,
) *Monitor {
	return &Monitor{
		store:      store,
		scraper:    scr,
		summarizer: summarizer,
		publisher:  pub,
		taskDelay:  taskDelay,
		log:        logger.ForMonitor(),
	}
}

// RunOnce scrapes each distinct task URL once and persists new items.
//
// The existing-URL snapshot is loaded once per cycle, not per task; two tasks
// surfacing the same URL within one cycle are caught by the unique constraint
// on item_url instead. A failure on one URL is logged and the cycle moves on.
func (m *Monitor) RunOnce(ctx context.Context) error {
	urls, err := m.store.DistinctTaskURLs(ctx)
	if err != nil {
		return errs.NewStorage("load_tasks", "failed to load task URLs", err)
	}

	existingURLs, err := m.store.ExistingItemURLs(ctx)
	if err != nil {
		return errs.NewStorage("load_items", "failed to load existing item URLs", err)
	}

	m.log.Info().
		Int("task_urls", len(urls)).
		Int("known_items", len(existingURLs)).
		Msg("Starting monitoring cycle")

	for _, url := range urls {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		newItems, err := m.scraper.FetchNewItems(ctx, url, existingURLs, m.summarizer)
		if err != nil {
			m.log.Error().Err(err).Str("url", url).Msg("Failed fetching items")
			continue
		}

		persisted := m.persistItems(ctx, newItems, url)
		m.log.Info().
			Str("url", url).
			Int("new_items", persisted).
			Msg("URL processed")

		m.pace(ctx)
	}

	if m.publisher != nil {
		if err := m.publisher.TrimStreams(); err != nil {
			m.log.Error().Err(err).Msg("Failed trimming notification streams")
		}
	}

	m.log.Info().Msg("Monitoring cycle finished")
	return nil
}

// persistItems inserts each item and publishes the persisted records. One
// failing insert never aborts its siblings.
func (m *Monitor) persistItems(ctx context.Context, items []scraper.Item, sourceURL string) int {
	persisted := 0
	for _, item := range items {
		record := storage.ItemRecord{
			ItemURL:         item.ItemURL,
			Title:           item.Title,
			Price:           item.Price,
			Location:        item.Location,
			CreatedAt:       item.CreatedAt,
			CreatedAtPretty: item.CreatedAtPretty,
			ImageURL:        item.ImageURL,
			Description:     item.Description,
			SourceURL:       sourceURL,
			FirstSeen:       timeutil.NowLocal(),
		}

		if err := m.store.InsertItem(ctx, &record); err != nil {
			if errors.Is(err, storage.ErrDuplicateItem) {
				// Lost the race against another task in this cycle.
				m.log.Warn().Str("item_url", item.ItemURL).Msg("Item already persisted, skipping")
			} else {
				m.log.Error().Err(err).Str("item_url", item.ItemURL).Msg("Failed persisting item")
			}
			continue
		}

		persisted++
		m.log.Info().
			Str("title", item.Title).
			Str("item_url", item.ItemURL).
			Msg("New item persisted")

		m.publish(record)
	}
	return persisted
}

// publish hands a persisted record to the notification stream. Publish
// failures are non-fatal: the record is durable and the notifier can catch
// up from storage.
func (m *Monitor) publish(record storage.ItemRecord) {
	if m.publisher == nil {
		return
	}

	data, err := json.Marshal(record)
	if err != nil {
		m.log.Error().Err(err).Str("item_url", record.ItemURL).Msg("Failed encoding item for publish")
		return
	}
	if err := m.publisher.Publish(m.scraper.GetName(), data); err != nil {
		m.log.Error().Err(err).Str("item_url", record.ItemURL).Msg("Failed publishing item")
	}
}

// pace waits the fixed inter-task delay, or less if the context ends first.
func (m *Monitor) pace(ctx context.Context) {
	if m.taskDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(m.taskDelay):
	}
}
