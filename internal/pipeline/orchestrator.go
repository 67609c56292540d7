// Package pipeline drives batch job processing and the staleness maintenance
// sweep. One job's failure never aborts a sweep; everything is aggregated
// into a batch result.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/dedupe"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/jobs"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/model"
)

// ErrJobExists is returned by EnqueueURL when the URL already has a pending
// or running job.
var ErrJobExists = eris.New("active job already exists for url")

// Store is the slice of the store the orchestrator needs.
type Store interface {
	CreateJob(ctx context.Context, job *model.ScrapingJob) error
	NextPendingJobs(ctx context.Context, now time.Time, limit int) ([]model.ScrapingJob, error)
	CountActiveJobsForURL(ctx context.Context, url string) (int, error)
	TrucksLastScrapedBefore(ctx context.Context, cutoff time.Time) ([]model.FoodTruck, error)
}

// Runner executes one attempt of a job; satisfied by *jobs.Machine.
type Runner interface {
	Run(ctx context.Context, job *model.ScrapingJob) (*jobs.Outcome, error)
}

// Config tunes the orchestrator.
type Config struct {
	// BatchSize is the maximum number of jobs pulled per sweep. Default: 20.
	BatchSize int

	// MaxConcurrent bounds in-flight jobs per sweep. Default: 3.
	MaxConcurrent int

	// MaxRetries is stamped onto jobs the orchestrator creates. Default: 3.
	MaxRetries int

	// StalenessThreshold ages out truck data; trucks scraped longer ago get a
	// refresh job. Default: 7 days.
	StalenessThreshold time.Duration

	// SkipMaintenance and SkipProcessing drop the corresponding phase from
	// RunFull.
	SkipMaintenance bool
	SkipProcessing  bool
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 3
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.StalenessThreshold <= 0 {
		c.StalenessThreshold = 7 * 24 * time.Hour
	}
	return c
}

// BatchResult aggregates one sweep.
type BatchResult struct {
	Processed     int      `json:"processed"`
	Succeeded     int      `json:"succeeded"`
	Failed        int      `json:"failed"`
	Retried       int      `json:"retried"`
	Discarded     int      `json:"discarded"`
	TrucksCreated int      `json:"trucks_created"`
	JobsCreated   int      `json:"jobs_created"`
	Errors        []string `json:"errors,omitempty"`
}

func (r *BatchResult) merge(other *BatchResult) {
	r.Processed += other.Processed
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
	r.Retried += other.Retried
	r.Discarded += other.Discarded
	r.TrucksCreated += other.TrucksCreated
	r.JobsCreated += other.JobsCreated
	r.Errors = append(r.Errors, other.Errors...)
}

// Orchestrator pulls pending jobs and drives them through the state machine.
type Orchestrator struct {
	store     Store
	machine   Runner
	scheduler *jobs.Scheduler
	cfg       Config

	now func() time.Time
}

// New creates an Orchestrator.
func New(store Store, machine Runner, scheduler *jobs.Scheduler, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:     store,
		machine:   machine,
		scheduler: scheduler,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
}

// EnqueueURL creates a pending job for url unless one is already pending or
// running, in which case ErrJobExists is returned.
func (o *Orchestrator) EnqueueURL(ctx context.Context, url string, jobType model.JobType, priority int) (*model.ScrapingJob, error) {
	active, err := o.store.CountActiveJobsForURL(ctx, url)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: count active jobs")
	}
	if active > 0 {
		return nil, eris.Wrapf(ErrJobExists, "%s", url)
	}

	job := &model.ScrapingJob{
		JobType:     jobType,
		TargetURL:   url,
		Status:      model.JobStatusPending,
		Priority:    priority,
		MaxRetries:  o.cfg.MaxRetries,
		ScheduledAt: o.now().UTC(),
	}
	if err := o.store.CreateJob(ctx, job); err != nil {
		return nil, eris.Wrap(err, "pipeline: create job")
	}
	return job, nil
}

// ProcessJobs runs one sweep: pull up to BatchSize due jobs and run them with
// bounded concurrency. Per-job failures land in the result, never in the
// returned error.
func (o *Orchestrator) ProcessJobs(ctx context.Context) (*BatchResult, error) {
	due, err := o.store.NextPendingJobs(ctx, o.now().UTC(), o.cfg.BatchSize)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: pull pending jobs")
	}

	result := &BatchResult{}
	if len(due) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxConcurrent)

	for i := range due {
		job := &due[i]
		g.Go(func() error {
			outcome, runErr := o.machine.Run(gctx, job)

			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			o.tally(result, job, outcome, runErr)
			return nil // one job's failure never aborts the sweep
		})
	}
	_ = g.Wait()

	zap.L().Info("processing sweep finished",
		zap.Int("processed", result.Processed),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("retried", result.Retried),
		zap.Int("trucks_created", result.TrucksCreated))
	return result, nil
}

func (o *Orchestrator) tally(result *BatchResult, job *model.ScrapingJob, outcome *jobs.Outcome, runErr error) {
	if runErr != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("job %s: %v", job.ID, runErr))
		return
	}

	switch job.Status {
	case model.JobStatusCompleted:
		result.Succeeded++
		if outcome.Discarded {
			result.Discarded++
		}
		if outcome.Action == dedupe.ActionCreate && outcome.Truck != nil {
			result.TrucksCreated++
		}
	case model.JobStatusPending:
		result.Retried++
	case model.JobStatusFailed:
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("job %s: %s", job.ID, lastError(job)))
	}
}

// RunJob drives a single job to a terminal state, waiting out retry backoffs
// through the scheduler. The wait is cancellable: a cancelled context settles
// the in-flight attempt and stops before the next one.
func (o *Orchestrator) RunJob(ctx context.Context, job *model.ScrapingJob) (*jobs.Outcome, error) {
	for {
		outcome, err := o.machine.Run(ctx, job)
		if err != nil {
			return outcome, err
		}
		if outcome.RetryIn <= 0 {
			return outcome, nil
		}

		wake := make(chan struct{})
		o.scheduler.Schedule(job.ID, outcome.RetryIn, func() { close(wake) })
		select {
		case <-ctx.Done():
			o.scheduler.Cancel(job.ID)
			return outcome, eris.Wrap(ctx.Err(), "pipeline: job cancelled during backoff")
		case <-wake:
		}
	}
}

// RunMaintenance sweeps for stale trucks and enqueues refresh jobs for their
// primary source URLs, skipping URLs that already have an active job.
func (o *Orchestrator) RunMaintenance(ctx context.Context) (*BatchResult, error) {
	cutoff := o.now().UTC().Add(-o.cfg.StalenessThreshold)
	stale, err := o.store.TrucksLastScrapedBefore(ctx, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: query stale trucks")
	}

	result := &BatchResult{}
	for i := range stale {
		truck := &stale[i]
		url := truck.PrimarySourceURL()
		if url == "" {
			continue
		}

		_, err := o.EnqueueURL(ctx, url, model.JobTypeStaleCheck, 0)
		if eris.Is(err, ErrJobExists) {
			continue
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("truck %s: %v", truck.ID, err))
			continue
		}
		result.JobsCreated++
	}

	zap.L().Info("maintenance sweep finished",
		zap.Int("stale_trucks", len(stale)),
		zap.Int("jobs_created", result.JobsCreated))
	return result, nil
}

// RunFull runs maintenance then processing; either phase can be skipped via
// config.
func (o *Orchestrator) RunFull(ctx context.Context) (*BatchResult, error) {
	result := &BatchResult{}

	if !o.cfg.SkipMaintenance {
		maint, err := o.RunMaintenance(ctx)
		if err != nil {
			return nil, err
		}
		result.merge(maint)
	}

	if !o.cfg.SkipProcessing {
		proc, err := o.ProcessJobs(ctx)
		if err != nil {
			return nil, err
		}
		result.merge(proc)
	}
	return result, nil
}

func lastError(job *model.ScrapingJob) string {
	if len(job.Errors) == 0 {
		return "unknown failure"
	}
	return job.Errors[len(job.Errors)-1]
}
