package scraper

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"topn/olxmonitor/helpers"
	"topn/olxmonitor/services/cache"
)

// BaseScraper provides common functionality for all scrapers
type BaseScraper struct {
	CacheKey  string
	CacheSvc  cache.CacheService
	BlockTime time.Duration

	// fetchFunc is replaced in tests to serve canned pages
	fetchFunc func(url string) (io.Reader, error)
}

// fetchWithCache fetches a URL, honoring a rate-limit backoff window stored
// in the cache between cycles.
func (c *BaseScraper) fetchWithCache(url string) (io.Reader, error) {
	if c.CacheSvc != nil && c.CacheKey != "" {
		if _, err := c.CacheSvc.Get(c.CacheKey); err == nil {
			return nil, fmt.Errorf("%s: backing off for %d more seconds at most", c.CacheKey, int(c.BlockTime/time.Second))
		}
	}

	body, err := c.fetch(url)
	if err != nil {
		if c.CacheSvc != nil && c.CacheKey != "" && strings.HasPrefix(err.Error(), "rate limited") {
			c.CacheSvc.Set(c.CacheKey, []byte(fmt.Sprintf("%d", int(c.BlockTime/time.Second))), c.BlockTime)
		}
		return nil, err
	}

	return body, nil
}

func (c *BaseScraper) fetch(url string) (io.Reader, error) {
	if c.fetchFunc != nil {
		return c.fetchFunc(url)
	}
	return helpers.FetchWithBrowserHeaders(url)
}

// createDocument creates a goquery document from a reader
func (c *BaseScraper) createDocument(reader io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	return doc, nil
}
