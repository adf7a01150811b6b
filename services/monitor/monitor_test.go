package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"topn/olxmonitor/internal/scraper"
	"topn/olxmonitor/services/publisher"
	"topn/olxmonitor/services/storage"
)

// MockScraper implements the scraper.Scraper interface for testing. It
// respects the existing-URL set the way a real scraper does.
type MockScraper struct {
	itemsByURL map[string][]scraper.Item
	errByURL   map[string]error
	calls      []string
}

var _ scraper.Scraper = (*MockScraper)(nil)

func (m *MockScraper) FetchNewItems(_ context.Context, url string, existingURLs map[string]struct{}, _ scraper.Summarizer) ([]scraper.Item, error) {
	m.calls = append(m.calls, url)
	if err := m.errByURL[url]; err != nil {
		return nil, err
	}
	var items []scraper.Item
	for _, it := range m.itemsByURL[url] {
		if _, seen := existingURLs[it.ItemURL]; seen {
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

func (m *MockScraper) GetName() string { return "olx" }

// MockPublisher implements the publisher.Publisher interface for testing
type MockPublisher struct {
	mu       sync.Mutex
	messages [][]byte
	trimmed  int
	err      error
}

var _ publisher.Publisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(_ string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	cp := make([]byte, len(message))
	copy(cp, message)
	m.messages = append(m.messages, cp)
	return nil
}

func (m *MockPublisher) TrimStreams() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trimmed++
	return nil
}

func (m *MockPublisher) Close() error { return nil }

// stubSummarizer satisfies scraper.Summarizer
type stubSummarizer struct{}

func (stubSummarizer) Summarize(context.Context, string) string { return "sum" }

func newTestStore(t *testing.T, urls ...string) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	for i, u := range urls {
		task := &storage.MonitoringTask{ChatID: string(rune('a' + i)), URL: u}
		if err := s.CreateTask(context.Background(), task); err != nil {
			t.Fatalf("create task: %v", err)
		}
	}
	return s
}

func testItems(urls ...string) []scraper.Item {
	var items []scraper.Item
	for _, u := range urls {
		items = append(items, scraper.Item{
			Title:           "Kawalerka",
			Price:           "2 500 zł",
			Location:        "Warszawa",
			CreatedAt:       time.Date(2025, 7, 10, 14, 0, 0, 0, time.UTC),
			CreatedAtPretty: "10.07.2025 - *14:00*",
			ItemURL:         u,
			Description:     "sum",
		})
	}
	return items
}

func TestRunOncePersistsAndPublishes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "https://www.olx.pl/q1")
	scr := &MockScraper{itemsByURL: map[string][]scraper.Item{
		"https://www.olx.pl/q1": testItems("https://www.olx.pl/oferta/1", "https://www.olx.pl/oferta/2"),
	}}
	pub := &MockPublisher{}

	m := New(store, scr, stubSummarizer{}, pub, 0)
	assert.NoError(t, m.RunOnce(ctx))

	urls, err := store.ExistingItemURLs(ctx)
	assert.NoError(t, err)
	assert.Len(t, urls, 2)
	assert.Len(t, pub.messages, 2)
	assert.Equal(t, 1, pub.trimmed)
	assert.Contains(t, string(pub.messages[0]), "https://www.olx.pl/oferta/1")
}

func TestRunOnceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "https://www.olx.pl/q1")
	scr := &MockScraper{itemsByURL: map[string][]scraper.Item{
		"https://www.olx.pl/q1": testItems("https://www.olx.pl/oferta/1"),
	}}
	pub := &MockPublisher{}

	m := New(store, scr, stubSummarizer{}, pub, 0)
	assert.NoError(t, m.RunOnce(ctx))
	assert.NoError(t, m.RunOnce(ctx))

	// Second run refreshed the snapshot and found nothing new
	urls, err := store.ExistingItemURLs(ctx)
	assert.NoError(t, err)
	assert.Len(t, urls, 1)
	assert.Len(t, pub.messages, 1)
}

func TestRunOnceOneURLFailureDoesNotAbortOthers(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "https://www.olx.pl/bad", "https://www.olx.pl/good")
	scr := &MockScraper{
		itemsByURL: map[string][]scraper.Item{
			"https://www.olx.pl/good": testItems("https://www.olx.pl/oferta/3"),
		},
		errByURL: map[string]error{
			"https://www.olx.pl/bad": errors.New("fetch failed"),
		},
	}

	m := New(store, scr, stubSummarizer{}, &MockPublisher{}, 0)
	assert.NoError(t, m.RunOnce(ctx))

	assert.Equal(t, []string{"https://www.olx.pl/bad", "https://www.olx.pl/good"}, scr.calls)
	urls, err := store.ExistingItemURLs(ctx)
	assert.NoError(t, err)
	assert.Len(t, urls, 1)
}

func TestRunOnceDuplicateRaceDoesNotAbortBatch(t *testing.T) {
	// Two tasks watching different queries surface the same item in one
	// cycle. The snapshot is stale for the second task; the unique
	// constraint catches it and the rest of the batch still lands.
	ctx := context.Background()
	store := newTestStore(t, "https://www.olx.pl/q1", "https://www.olx.pl/q2")
	scr := &MockScraper{itemsByURL: map[string][]scraper.Item{
		"https://www.olx.pl/q1": testItems("https://www.olx.pl/oferta/shared"),
		"https://www.olx.pl/q2": testItems("https://www.olx.pl/oferta/shared", "https://www.olx.pl/oferta/extra"),
	}}
	pub := &MockPublisher{}

	m := New(store, scr, stubSummarizer{}, pub, 0)
	assert.NoError(t, m.RunOnce(ctx))

	urls, err := store.ExistingItemURLs(ctx)
	assert.NoError(t, err)
	assert.Len(t, urls, 2)
	// Only actually-persisted records were published
	assert.Len(t, pub.messages, 2)
}

func TestRunOnceHonorsContextCancellation(t *testing.T) {
	store := newTestStore(t, "https://www.olx.pl/q1")
	scr := &MockScraper{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := New(store, scr, stubSummarizer{}, &MockPublisher{}, 0)
	err := m.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, scr.calls)
}
