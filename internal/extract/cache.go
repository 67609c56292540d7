package extract

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// PageCache is the slice of the store the cached fetcher needs.
type PageCache interface {
	GetCachedPage(ctx context.Context, url string) ([]byte, error)
	SetCachedPage(ctx context.Context, url string, content []byte, ttl time.Duration) error
}

// CachedFetcher serves pages from the store's TTL cache before hitting the
// rendering provider. Cache read and write failures degrade to a live fetch;
// they never fail the job.
type CachedFetcher struct {
	next  ContentFetcher
	cache PageCache
	ttl   time.Duration
}

// NewCachedFetcher wraps next with the page cache. A non-positive ttl
// disables caching entirely.
func NewCachedFetcher(next ContentFetcher, cache PageCache, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{next: next, cache: cache, ttl: ttl}
}

func (c *CachedFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if c.ttl <= 0 {
		return c.next.Fetch(ctx, url)
	}

	if data, err := c.cache.GetCachedPage(ctx, url); err != nil {
		zap.L().Warn("page cache read failed", zap.String("url", url), zap.Error(err))
	} else if data != nil {
		var page Page
		if err := json.Unmarshal(data, &page); err != nil {
			zap.L().Warn("discarding undecodable cached page", zap.String("url", url), zap.Error(err))
		} else {
			return &page, nil
		}
	}

	page, err := c.next.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(page)
	if err != nil {
		return nil, eris.Wrap(err, "extract: encode page for cache")
	}
	if err := c.cache.SetCachedPage(ctx, url, data, c.ttl); err != nil {
		zap.L().Warn("page cache write failed", zap.String("url", url), zap.Error(err))
	}
	return page, nil
}
