package scraper

import (
	"context"
	"time"
)

// Item is the transient, pre-persistence shape of a scraped listing. It is
// owned by the scraper until handed to the monitor for persistence.
type Item struct {
	Title           string `json:"title"`
	Price           string `json:"price"`
	Location        string `json:"location"`
	CreatedAt       time.Time `json:"created_at"`
	CreatedAtPretty string `json:"created_at_pretty"`
	ImageURL        string `json:"image_url,omitempty"`
	ItemURL         string `json:"item_url"`
	Description     string `json:"description"`
}

// ListingSummary is the lightweight extraction of one listing card, before
// any detail fetching.
type ListingSummary struct {
	Title    string
	ItemURL  string
	Price    string
	ImageURL string
	Location string
	PostedAt string // bare HH:MM from the "posted today" marker
}

// Summarizer condenses raw description text. An empty result is a valid
// signal meaning "fall back to the raw text".
type Summarizer interface {
	Summarize(ctx context.Context, description string) string
}

// Scraper is the contract every marketplace implementation satisfies.
// Additional marketplaces are added as new implementations of this interface.
type Scraper interface {
	// FetchNewItems returns the items at url that are inside the recency
	// window and not present in existingURLs, in page order.
	FetchNewItems(ctx context.Context, url string, existingURLs map[string]struct{}, summarizer Summarizer) ([]Item, error)

	// GetName returns the scraper's name for logging and identification
	GetName() string
}
