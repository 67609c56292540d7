package extract

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/resilience"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/pkg/firecrawl"
)

// FirecrawlFetcher renders pages through the Firecrawl scrape API.
type FirecrawlFetcher struct {
	client firecrawl.Client
}

// NewFirecrawlFetcher wraps a Firecrawl client as a ContentFetcher.
func NewFirecrawlFetcher(client firecrawl.Client) *FirecrawlFetcher {
	return &FirecrawlFetcher{client: client}
}

// Fetch renders url to markdown. Rate limits and 5xx responses surface as
// transient errors so the job state machine reschedules instead of failing.
func (f *FirecrawlFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	resp, err := f.client.Scrape(ctx, firecrawl.ScrapeRequest{URL: url})
	if err != nil {
		var apiErr *firecrawl.APIError
		if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
			return nil, resilience.NewTransientError(apiErr, apiErr.StatusCode)
		}
		if resilience.IsTransient(err) {
			return nil, resilience.NewTransientError(err, 0)
		}
		return nil, eris.Wrap(err, "extract: fetch page")
	}

	if !resp.Success {
		return nil, resilience.NewTransientError(eris.Errorf("extract: scrape of %s unsuccessful", url), 0)
	}
	if resp.Data.Markdown == "" {
		return nil, resilience.NewValidationError("page content", "scrape produced no markdown")
	}

	pageURL := resp.Data.URL
	if pageURL == "" {
		pageURL = url
	}
	return &Page{URL: pageURL, Title: resp.Data.Title, Markdown: resp.Data.Markdown}, nil
}
