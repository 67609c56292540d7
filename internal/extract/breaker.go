package extract

import (
	"context"

	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/model"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/resilience"
)

// Breaker service names, used as keys in a resilience.BreakerSet.
const (
	ServiceFetcher   = "fetcher"
	ServiceExtractor = "extractor"
)

// ProviderBreakerConfig returns the breaker settings used for both external
// providers: only transient failures trip the circuit, so a run of
// bad-content validation errors never blocks healthy providers.
func ProviderBreakerConfig() resilience.BreakerConfig {
	cfg := resilience.DefaultBreakerConfig()
	cfg.ShouldTrip = resilience.IsTransient
	return cfg
}

// GuardedFetcher runs fetches through a circuit breaker so a provider outage
// fails fast instead of burning the retry budget of every queued job.
type GuardedFetcher struct {
	next    ContentFetcher
	breaker *resilience.Breaker
}

// NewGuardedFetcher wraps next with breaker.
func NewGuardedFetcher(next ContentFetcher, breaker *resilience.Breaker) *GuardedFetcher {
	return &GuardedFetcher{next: next, breaker: breaker}
}

func (g *GuardedFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	return resilience.Guard(ctx, g.breaker, func(ctx context.Context) (*Page, error) {
		return g.next.Fetch(ctx, url)
	})
}

// GuardedExtractor is the extractor counterpart of GuardedFetcher.
type GuardedExtractor struct {
	next    EntityExtractor
	breaker *resilience.Breaker
}

// NewGuardedExtractor wraps next with breaker.
func NewGuardedExtractor(next EntityExtractor, breaker *resilience.Breaker) *GuardedExtractor {
	return &GuardedExtractor{next: next, breaker: breaker}
}

func (g *GuardedExtractor) Extract(ctx context.Context, page *Page) (*model.ExtractedTruck, error) {
	return resilience.Guard(ctx, g.breaker, func(ctx context.Context) (*model.ExtractedTruck, error) {
		return g.next.Extract(ctx, page)
	})
}
