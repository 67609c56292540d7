// Package jobs owns the scraping job lifecycle: status transitions, retry
// bookkeeping with exponential backoff, and the scheduler that re-runs
// retried jobs without wall-clock recursion.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/dedupe"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/extract"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/model"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/resilience"
)

// JobStore is the slice of the store the state machine needs.
type JobStore interface {
	UpdateJob(ctx context.Context, job *model.ScrapingJob) error
}

// Config tunes the state machine.
type Config struct {
	// Backoff drives the retry delay curve: BaseDelay * Multiplier^retryCount
	// capped at MaxDelay.
	Backoff resilience.RetryConfig

	// QualityThreshold discards candidates whose completeness score falls
	// below it. Zero disables the gate.
	QualityThreshold float64
}

// Outcome reports what one attempt did with a job.
type Outcome struct {
	Job   *model.ScrapingJob
	Truck *model.FoodTruck

	// Action is the dedupe decision, empty when resolution never ran.
	Action dedupe.Action

	// Discarded is set when the candidate was judged not to be a real food
	// truck (or too sparse) and the job completed with a note.
	Discarded bool

	// RetryIn is the backoff delay when the job went back to pending.
	RetryIn time.Duration
}

// Machine executes one attempt of a job through its phases: fetch, extract,
// gates, duplicate resolution. It owns every status transition.
type Machine struct {
	store     JobStore
	fetcher   extract.ContentFetcher
	extractor extract.EntityExtractor
	deduper   *dedupe.Deduper
	cfg       Config

	now func() time.Time // injectable for tests
}

// NewMachine wires the state machine.
func NewMachine(store JobStore, fetcher extract.ContentFetcher, extractor extract.EntityExtractor, deduper *dedupe.Deduper, cfg Config) *Machine {
	return &Machine{
		store:     store,
		fetcher:   fetcher,
		extractor: extractor,
		deduper:   deduper,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run executes one attempt. The job must be pending; Run moves it to running,
// does the work, and lands it in completed, pending (retry scheduled after
// backoff), or failed. Failures are recorded on the job's error list; Run
// itself errors only when the job row cannot be persisted at all.
func (m *Machine) Run(ctx context.Context, job *model.ScrapingJob) (*Outcome, error) {
	if job.Status != model.JobStatusPending {
		return nil, resilience.NewValidationError("job status",
			fmt.Sprintf("cannot run job %s in status %s", job.ID, job.Status))
	}

	started := m.now().UTC()
	job.Status = model.JobStatusRunning
	job.StartedAt = &started
	if err := m.persist(ctx, job); err != nil {
		job.Status = model.JobStatusPending
		job.StartedAt = nil
		return nil, err
	}

	log := zap.L().With(zap.String("job_id", job.ID), zap.String("url", job.TargetURL))
	outcome := &Outcome{Job: job}

	page, err := m.fetcher.Fetch(ctx, job.TargetURL)
	if err != nil {
		return outcome, m.settleFailure(ctx, job, outcome, err, "fetch")
	}

	candidate, err := m.extractor.Extract(ctx, page)
	if err != nil {
		return outcome, m.settleFailure(ctx, job, outcome, err, "extract")
	}
	job.DataCollected = candidate

	if !candidate.HasName() {
		log.Info("candidate has no usable name, discarding")
		return outcome, m.discard(ctx, job, outcome, "no food truck identified on page")
	}

	truck := candidate.Normalize(job.TargetURL, m.now().UTC())
	if m.cfg.QualityThreshold > 0 && truck.DataQualityScore < m.cfg.QualityThreshold {
		log.Info("candidate below quality threshold, discarding",
			zap.Float64("score", truck.DataQualityScore),
			zap.Float64("threshold", m.cfg.QualityThreshold))
		return outcome, m.discard(ctx, job, outcome,
			fmt.Sprintf("quality score %.2f below threshold %.2f", truck.DataQualityScore, m.cfg.QualityThreshold))
	}

	persisted, result, err := m.deduper.Process(ctx, &truck)
	if err != nil {
		return outcome, m.settleFailure(ctx, job, outcome, err, "resolve")
	}

	completed := m.now().UTC()
	job.Status = model.JobStatusCompleted
	job.CompletedAt = &completed
	if persisted != nil {
		job.TruckID = persisted.ID
	} else {
		job.Notes = result.Reason
	}

	outcome.Truck = persisted
	outcome.Action = result.Action
	if err := m.persist(ctx, job); err != nil {
		return outcome, err
	}

	log.Info("job completed",
		zap.String("action", string(result.Action)),
		zap.String("truck_id", job.TruckID))
	return outcome, nil
}

// discard marks the job completed with an explanatory note. "Not a food
// truck" is a correct pipeline outcome, never a failure.
func (m *Machine) discard(ctx context.Context, job *model.ScrapingJob, outcome *Outcome, note string) error {
	completed := m.now().UTC()
	job.Status = model.JobStatusCompleted
	job.CompletedAt = &completed
	job.Notes = "discarded: " + note
	outcome.Discarded = true
	return m.persist(ctx, job)
}

// settleFailure routes a phase failure: validation errors discard, transient
// errors reschedule with backoff while retries remain, everything else (and
// exhausted retries) fails the job permanently. The error is appended to the
// job's audit list in every case.
func (m *Machine) settleFailure(ctx context.Context, job *model.ScrapingJob, outcome *Outcome, cause error, phase string) error {
	job.Errors = append(job.Errors, fmt.Sprintf("%s: %v", phase, cause))

	var ve *resilience.ValidationError
	if errors.As(cause, &ve) {
		return m.discard(ctx, job, outcome, ve.Error())
	}

	now := m.now().UTC()
	if resilience.IsTransient(cause) {
		job.RetryCount++
		if job.CanRetry() {
			delay := m.cfg.Backoff.Backoff(job.RetryCount - 1)
			job.Status = model.JobStatusPending
			job.ScheduledAt = now.Add(delay)
			job.StartedAt = nil
			outcome.RetryIn = delay

			zap.L().Warn("job attempt failed, retrying",
				zap.String("job_id", job.ID),
				zap.String("phase", phase),
				zap.Int("retry_count", job.RetryCount),
				zap.Duration("backoff", delay),
				zap.Error(cause))
			return m.persist(ctx, job)
		}
	}

	job.Status = model.JobStatusFailed
	job.CompletedAt = &now
	zap.L().Error("job failed permanently",
		zap.String("job_id", job.ID),
		zap.String("phase", phase),
		zap.Int("retry_count", job.RetryCount),
		zap.Error(cause))
	return m.persist(ctx, job)
}

// persist writes the job row, retrying a transient store failure once.
func (m *Machine) persist(ctx context.Context, job *model.ScrapingJob) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if lastErr = m.store.UpdateJob(ctx, job); lastErr == nil {
			return nil
		}
	}
	return resilience.NewPersistenceError("update job "+job.ID, lastErr)
}
