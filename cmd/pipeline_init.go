package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/dedupe"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/extract"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/jobs"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/pipeline"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/resilience"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/similarity"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/store"
	anthropicpkg "github.com/CodeDeficient/food-truck-finder-poc-sub001/pkg/anthropic"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/pkg/firecrawl"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/pkg/gemini"
)

// pipelineEnv holds the initialized store, state machine, and orchestrator
// shared by the run/pipeline/serve commands.
type pipelineEnv struct {
	Store        store.Store
	Machine      *jobs.Machine
	Scheduler    *jobs.Scheduler
	Orchestrator *pipeline.Orchestrator
	Scorer       *similarity.Scorer
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Scheduler != nil {
		pe.Scheduler.CancelAll()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "foodtruck.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// similarityConfig maps the loaded configuration onto the scorer's knobs,
// keeping DefaultConfig values for anything the file doesn't set.
func similarityConfig() similarity.Config {
	sc := similarity.DefaultConfig()
	sim := cfg.Similarity
	sc.Weights.Name = sim.Weights.Name
	sc.Weights.Location = sim.Weights.Location
	sc.Weights.Contact = sim.Weights.Contact
	sc.Weights.Menu = sim.Weights.Menu
	sc.Thresholds.Name = sim.Thresholds.Name
	sc.Thresholds.Location = sim.Thresholds.Location
	sc.Thresholds.Contact = sim.Thresholds.Contact
	sc.Thresholds.Menu = sim.Thresholds.Menu
	sc.Thresholds.Overall = sim.Thresholds.Overall
	sc.Confidence.High = sim.Confidence.High
	sc.Confidence.Medium = sim.Confidence.Medium
	sc.MaxDistanceKm = sim.MaxDistanceKm
	return sc
}

// initFetcher builds the content fetch chain: Firecrawl, wrapped with the
// page cache, wrapped with a circuit breaker.
func initFetcher(st store.Store, breakers *resilience.BreakerSet) extract.ContentFetcher {
	fcClient := firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))

	var fetcher extract.ContentFetcher = extract.NewFirecrawlFetcher(fcClient)
	ttl := time.Duration(cfg.Extractor.CacheTTLHours) * time.Hour
	fetcher = extract.NewCachedFetcher(fetcher, st, ttl)
	return extract.NewGuardedFetcher(fetcher, breakers.Get(extract.ServiceFetcher))
}

// initExtractor builds the structured extraction chain for the configured
// provider, wrapped with a circuit breaker.
func initExtractor(breakers *resilience.BreakerSet) (extract.EntityExtractor, error) {
	var extractor extract.EntityExtractor
	switch cfg.Extractor.Provider {
	case "gemini":
		client := gemini.NewClient(cfg.Gemini.Key,
			gemini.WithBaseURL(cfg.Gemini.BaseURL),
			gemini.WithModel(cfg.Gemini.Model),
			gemini.WithRequestsPerMinute(cfg.Gemini.RequestsPerMinute),
		)
		extractor = extract.NewGeminiExtractor(client)
	case "anthropic":
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		extractor = extract.NewAnthropicExtractor(client, cfg.Anthropic.Model)
	default:
		return nil, eris.Errorf("unsupported extractor provider: %s", cfg.Extractor.Provider)
	}
	return extract.NewGuardedExtractor(extractor, breakers.Get(extract.ServiceExtractor)), nil
}

// initPipeline sets up the store, provider clients, dedupe chain, state
// machine, and orchestrator. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	breakers := resilience.NewBreakerSet(extract.ProviderBreakerConfig())
	fetcher := initFetcher(st, breakers)
	extractor, err := initExtractor(breakers)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	scorer := similarity.NewScorer(similarityConfig())
	deduper := dedupe.NewDeduper(
		dedupe.NewDetector(st, scorer),
		dedupe.NewResolver(st),
	)

	backoff := resilience.DefaultRetryConfig()
	backoff.BaseDelay = time.Duration(cfg.Pipeline.BackoffBaseMs) * time.Millisecond
	backoff.MaxDelay = time.Duration(cfg.Pipeline.BackoffCapMs) * time.Millisecond

	machine := jobs.NewMachine(st, fetcher, extractor, deduper, jobs.Config{
		Backoff:          backoff,
		QualityThreshold: cfg.Pipeline.QualityScoreThreshold,
	})

	scheduler := jobs.NewScheduler()
	orchestrator := pipeline.New(st, machine, scheduler, pipeline.Config{
		BatchSize:          cfg.Pipeline.BatchSize,
		MaxConcurrent:      cfg.Pipeline.MaxConcurrent,
		MaxRetries:         cfg.Pipeline.MaxRetries,
		StalenessThreshold: time.Duration(cfg.Pipeline.StalenessThresholdDays) * 24 * time.Hour,
		SkipMaintenance:    cfg.Pipeline.SkipMaintenance,
		SkipProcessing:     cfg.Pipeline.SkipProcessing,
	})

	zap.L().Info("pipeline initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("extractor", cfg.Extractor.Provider),
	)

	return &pipelineEnv{
		Store:        st,
		Machine:      machine,
		Scheduler:    scheduler,
		Orchestrator: orchestrator,
		Scorer:       scorer,
	}, nil
}
