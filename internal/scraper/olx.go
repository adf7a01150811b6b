package scraper

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"topn/olxmonitor/internal/timeutil"
	"topn/olxmonitor/logger"
	errs "topn/olxmonitor/pkg/errors"
	"topn/olxmonitor/services/cache"
)

const (
	// todayMarker appears in the location-date line of listings posted today.
	// Listings without it carry a date instead of a time and are never
	// candidates, regardless of window size.
	todayMarker    = "Dzisiaj"
	todayDelimiter = "Dzisiaj o "

	noPriceSentinel = "Brak ceny"

	// Listings that link out to the partner portal are not deep-scraped.
	otodomPlaceholder = "Otodom link will be implemented soon"

	// Fallback length when the summarizer comes back empty.
	descriptionFallbackRunes = 500
)

// OLXConfig contains configuration for the OLX scraper
type OLXConfig struct {
	// Origin is the canonical marketplace origin used to absolutize
	// relative listing URLs.
	Origin string

	// WindowMinutes is the trailing recency window.
	WindowMinutes int

	CacheKey  string
	BlockTime int
}

// OLXScraper scrapes OLX listing search pages.
type OLXScraper struct {
	BaseScraper
	origin string
	window int
	now    func() time.Time
	log    *logger.Logger
}

var _ Scraper = (*OLXScraper)(nil)

// NewOLXScraper creates a new OLX scraper
func NewOLXScraper(config OLXConfig, cacheSvc cache.CacheService) *OLXScraper {
	return &OLXScraper{
		BaseScraper: BaseScraper{
			CacheKey:  config.CacheKey,
			CacheSvc:  cacheSvc,
			BlockTime: time.Duration(config.BlockTime) * time.Second,
		},
		origin: strings.TrimSuffix(config.Origin, "/"),
		window: config.WindowMinutes,
		now:    time.Now,
		log:    logger.ForScraper("olx"),
	}
}

// GetName returns the scraper's name
func (c *OLXScraper) GetName() string {
	return "olx"
}

// FetchNewItems fetches the listing page at url and returns the items that
// are inside the recency window and not yet in existingURLs, in page order
// (the marketplace lists newest first).
//
// A listing-page fetch or parse failure aborts this URL's pass. A failure on
// one item's details only degrades that item's description.
func (c *OLXScraper) FetchNewItems(ctx context.Context, url string, existingURLs map[string]struct{}, summarizer Summarizer) ([]Item, error) {
	c.log.Info().Str("url", url).Msg("Fetching OLX items")

	body, err := c.fetchWithCache(url)
	if err != nil {
		return nil, errs.NewNetwork("listing", url, "failed to fetch listing page", err)
	}

	doc, err := c.createDocument(body)
	if err != nil {
		return nil, errs.NewParsing("listing", url, "failed to parse listing page", err)
	}

	listings := c.extractListings(doc)

	var newItems []Item
	skipped := 0
	for _, listing := range listings {
		if !timeutil.WithinLastMinutes(listing.PostedAt, c.window, c.now()) {
			c.log.Debug().Str("posted_at", listing.PostedAt).Msg("Skipping old item")
			continue
		}

		if _, seen := existingURLs[listing.ItemURL]; seen {
			skipped++
			continue
		}

		description, highresImage := c.processDescription(ctx, listing.ItemURL, summarizer)

		createdAt, createdAtPretty, err := timeutil.PostedTimes(listing.PostedAt, c.now())
		if err != nil {
			// Unreachable after the window check, but a malformed time
			// must not abort the batch.
			c.log.Error().Err(err).Str("url", listing.ItemURL).Msg("Unparseable posted time")
			continue
		}

		imageURL := listing.ImageURL
		if highresImage != "" {
			imageURL = highresImage
		}

		newItems = append(newItems, Item{
			Title:           listing.Title,
			Price:           listing.Price,
			Location:        listing.Location,
			CreatedAt:       createdAt,
			CreatedAtPretty: createdAtPretty,
			ImageURL:        imageURL,
			ItemURL:         listing.ItemURL,
			Description:     description,
		})
	}

	c.log.Info().
		Int("new_items", len(newItems)).
		Int("skipped_existing", skipped).
		Str("url", url).
		Msg("OLX scraper finished")
	return newItems, nil
}

// extractListings extracts today's listing cards from a parsed page, in page
// order. It performs no network I/O.
func (c *OLXScraper) extractListings(doc *goquery.Document) []ListingSummary {
	var listings []ListingSummary

	doc.Find(`div[data-testid="l-card"]`).Each(func(_ int, s *goquery.Selection) {
		locationDate := strings.TrimSpace(s.Find(`p[data-testid="location-date"]`).Text())
		if !strings.Contains(locationDate, todayMarker) {
			c.log.Debug().Str("location_date", locationDate).Msg("Skipping non-today item")
			return
		}

		parts := strings.SplitN(locationDate, todayDelimiter, 2)
		if len(parts) != 2 {
			return
		}
		location := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(parts[0]), "-"))
		timeStr := strings.TrimSpace(parts[1])

		anchor := s.Find(`div[data-cy="ad-card-title"]`).Find("a").First()
		href, exists := anchor.Attr("href")
		if !exists || href == "" {
			return
		}
		itemURL := strings.TrimSpace(href)
		if !strings.HasPrefix(itemURL, "http") {
			itemURL = c.origin + itemURL
		}

		price := noPriceSentinel
		if priceSel := s.Find(`p[data-testid="ad-price"]`); priceSel.Length() > 0 {
			price = strings.TrimSpace(priceSel.Text())
		}

		imageURL := ""
		if container := s.Find(`div[data-testid="image-container"]`); container.Length() > 0 {
			if src, ok := container.Find("img").First().Attr("src"); ok {
				imageURL = src
			}
		}

		listings = append(listings, ListingSummary{
			Title:    strings.TrimSpace(anchor.Text()),
			ItemURL:  itemURL,
			Price:    price,
			ImageURL: imageURL,
			Location: location,
			PostedAt: timeStr,
		})
	})

	return listings
}

// processDescription produces the item's description and, when the detail
// page was fetched, its high-resolution image URL. Failures degrade the
// description; they never drop the item.
func (c *OLXScraper) processDescription(ctx context.Context, itemURL string, summarizer Summarizer) (string, string) {
	if strings.Contains(itemURL, "otodom") {
		return otodomPlaceholder, ""
	}

	rawDesc, highresImage, err := c.fetchItemDetails(itemURL)
	if err != nil {
		c.log.Error().Err(err).Str("url", itemURL).Msg("Failed to load description")
		return fmt.Sprintf("Failed to load description: %v", err), ""
	}

	if summary := summarizer.Summarize(ctx, rawDesc); summary != "" {
		return summary, highresImage
	}

	// Summarizer came back empty; fall back to truncated raw text.
	runes := []rune(rawDesc)
	if len(runes) > descriptionFallbackRunes {
		return string(runes[:descriptionFallbackRunes]), highresImage
	}
	return rawDesc, highresImage
}

// fetchItemDetails fetches an item's detail page and extracts the raw
// description text and the highest-resolution image URL.
func (c *OLXScraper) fetchItemDetails(itemURL string) (string, string, error) {
	body, err := c.fetch(itemURL)
	if err != nil {
		return "", "", err
	}

	doc, err := c.createDocument(body)
	if err != nil {
		return "", "", err
	}

	description := strings.TrimSpace(doc.Find(`div[data-cy="ad_description"]`).Text())
	return description, extractHighresImage(doc), nil
}

// extractHighresImage picks the srcset candidate with the largest declared
// width from the first image that carries one.
func extractHighresImage(doc *goquery.Document) string {
	srcset, exists := doc.Find("img[srcset]").First().Attr("srcset")
	if !exists {
		return ""
	}

	bestURL := ""
	bestWidth := -1
	for _, candidate := range strings.Split(srcset, ",") {
		fields := strings.Fields(strings.TrimSpace(candidate))
		if len(fields) == 0 {
			continue
		}
		width := 0
		if len(fields) > 1 {
			w, err := strconv.Atoi(strings.TrimSuffix(fields[1], "w"))
			if err != nil {
				continue
			}
			width = w
		}
		if width > bestWidth {
			bestWidth = width
			bestURL = fields[0]
		}
	}
	return bestURL
}
