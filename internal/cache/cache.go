// Package cache is the scraping cache: a tiered data layer
// serving shelter/transport/benefits/resource listings from the store,
// detecting staleness, and re-scraping via a headless browser through an
// authenticated proxy when stale.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/carebridge/dccp/internal/errs"
	"github.com/carebridge/dccp/internal/store"
)

// Category names the four cached listing types.
type Category string

const (
	CategoryShelters  Category = "shelters"
	CategoryTransport Category = "transport"
	CategoryBenefits  Category = "benefits"
	CategoryResources Category = "resources"
)

// Scraper drives one category's re-scrape. Implemented by *BrowserScraper
// (internal/cache/scraper.go); kept as an interface here so Cache's tests
// can substitute a fake without a real browser.
type Scraper interface {
	Scrape(ctx context.Context, category Category) (ScrapeResult, error)
}

// ScrapeResult carries a category's freshly scraped rows, typed per
// category since each has a distinct row shape and unique key.
type ScrapeResult struct {
	Shelters  []store.ShelterListing
	Transport []store.TransportListing
	Benefits  []store.BenefitProgram
	Resources []store.CommunityResource
	Logs      []store.ScrapeLog
}

// Cache is the scraping cache. It owns listing-table writes; agents only
// read through it.
type Cache struct {
	store   *store.Store
	scraper Scraper
	ttl     time.Duration

	// perCategory serializes writes for one category at a time; reads
	// never block on it because reads always see the committed store
	// state (replace-then-upsert is transactional — see
	// internal/store.Replace*).
	perCategory map[Category]*categoryLock
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithTTL overrides the default 24h per-category freshness window.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

type categoryLock struct {
	mu chan struct{} // 1-buffered channel used as a non-reentrant mutex
}

func newCategoryLock() *categoryLock {
	l := &categoryLock{mu: make(chan struct{}, 1)}
	l.mu <- struct{}{}
	return l
}

func (l *categoryLock) Lock()   { <-l.mu }
func (l *categoryLock) Unlock() { l.mu <- struct{}{} }

// New constructs a Cache backed by st for persistence and scraper for
// refreshes.
func New(st *store.Store, scraper Scraper, opts ...Option) *Cache {
	c := &Cache{
		store:   st,
		scraper: scraper,
		ttl:     24 * time.Hour,
		perCategory: map[Category]*categoryLock{
			CategoryShelters:  newCategoryLock(),
			CategoryTransport: newCategoryLock(),
			CategoryBenefits:  newCategoryLock(),
			CategoryResources: newCategoryLock(),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsStale reports whether category needs a refresh. Staleness is a
// pure function of (last_scraped_at, now, ttl); there is no background
// refresh worker, reader misses trigger the rescrape.
func (c *Cache) IsStale(ctx context.Context, category Category, now time.Time) bool {
	meta, err := c.store.GetCacheMetadata(ctx, string(category))
	if err != nil {
		return true
	}
	return meta.IsStale(now)
}

// EnsureFresh refreshes category if it is stale and returns the refresh
// error, if any; it returns no rows.
func (c *Cache) EnsureFresh(ctx context.Context, category Category) error {
	if !c.IsStale(ctx, category, time.Now()) {
		return nil
	}
	return c.Refresh(ctx, category)
}

// Refresh forces a rescrape of category regardless of freshness, replaces
// the category's rows transactionally, and logs the attempt.
func (c *Cache) Refresh(ctx context.Context, category Category) error {
	lock, ok := c.perCategory[category]
	if !ok {
		return &errs.ValidationError{Field: "category", Reason: "unknown"}
	}
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	result, err := c.scraper.Scrape(ctx, category)
	duration := time.Since(start).Seconds()

	if err != nil {
		logErr := c.store.AppendScrapeLog(ctx, store.ScrapeLog{
			Category: string(category), Status: "failed", ErrorMessage: err.Error(),
			DurationSeconds: duration, ScrapedAt: time.Now(),
		})
		if logErr != nil {
			return &errs.Internal{Detail: "append failed scrape log", Err: logErr}
		}
		return &errs.UpstreamError{Upstream: "scrape_proxy", Detail: string(category), Err: err}
	}

	itemsCount, err := c.persist(ctx, category, result)
	if err != nil {
		return err
	}

	for _, l := range result.Logs {
		l.ScrapedAt = time.Now()
		if l.DurationSeconds == 0 {
			l.DurationSeconds = duration
		}
		_ = c.store.AppendScrapeLog(ctx, l)
	}

	return c.store.UpsertCacheMetadata(ctx, store.CacheMetadata{
		Category:      string(category),
		LastScrapedAt: time.Now(),
		ItemsCount:    itemsCount,
		TTLSeconds:    int(c.ttl.Seconds()),
	})
}

func (c *Cache) persist(ctx context.Context, category Category, result ScrapeResult) (int, error) {
	switch category {
	case CategoryShelters:
		if err := c.store.ReplaceShelters(ctx, result.Shelters); err != nil {
			return 0, err
		}
		return len(result.Shelters), nil
	case CategoryTransport:
		if err := c.store.ReplaceTransport(ctx, result.Transport); err != nil {
			return 0, err
		}
		return len(result.Transport), nil
	case CategoryBenefits:
		if err := c.store.ReplaceBenefits(ctx, result.Benefits); err != nil {
			return 0, err
		}
		return len(result.Benefits), nil
	case CategoryResources:
		if err := c.store.ReplaceResources(ctx, result.Resources); err != nil {
			return 0, err
		}
		return len(result.Resources), nil
	default:
		return 0, fmt.Errorf("cache: unknown category %q", category)
	}
}

// Shelters returns shelters with available_beds >= minBeds, refreshing
// first if stale.
func (c *Cache) Shelters(ctx context.Context, minBeds int, accessibleOnly bool) ([]store.ShelterListing, error) {
	// A failed refresh still falls through to whatever is cached; the
	// coordinator treats an empty result as a cache miss.
	_ = c.EnsureFresh(ctx, CategoryShelters)
	return c.store.ListShelters(ctx, minBeds, accessibleOnly)
}

// Transport returns cached transport providers, refreshing first if stale.
func (c *Cache) Transport(ctx context.Context, accessibleOnly bool) ([]store.TransportListing, error) {
	_ = c.EnsureFresh(ctx, CategoryTransport)
	return c.store.ListTransport(ctx, accessibleOnly)
}

// Benefits returns cached benefit programs, refreshing first if stale.
func (c *Cache) Benefits(ctx context.Context) ([]store.BenefitProgram, error) {
	_ = c.EnsureFresh(ctx, CategoryBenefits)
	return c.store.ListBenefits(ctx)
}

// Resources returns cached community resources, refreshing first if
// stale.
func (c *Cache) Resources(ctx context.Context, category string, requireDietary bool) ([]store.CommunityResource, error) {
	_ = c.EnsureFresh(ctx, CategoryResources)
	return c.store.ListResources(ctx, category, requireDietary)
}

// UpdateShelterAvailability is the write path for POST
// /shelters/{name}/availability.
func (c *Cache) UpdateShelterAvailability(ctx context.Context, name string, availableBeds int) error {
	lock := c.perCategory[CategoryShelters]
	lock.Lock()
	defer lock.Unlock()
	return c.store.UpdateShelterAvailability(ctx, name, availableBeds)
}
