package model

import "time"

// JobStatus represents the lifecycle state of a scraping job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobType differentiates how a job was created.
type JobType string

const (
	// JobTypeWebsite is a manually requested scrape of a single URL.
	JobTypeWebsite JobType = "website"
	// JobTypeWebsiteAuto is created by the maintenance sweep for a URL with
	// no known truck.
	JobTypeWebsiteAuto JobType = "website_auto"
	// JobTypeStaleCheck is created by the maintenance sweep to refresh a
	// truck whose data has gone stale.
	JobTypeStaleCheck JobType = "stale_check"
)

// ScrapingJob is a unit of work representing "process this URL". The job owns
// its retry bookkeeping and error history; failed is terminal only once
// RetryCount has reached MaxRetries.
type ScrapingJob struct {
	ID            string          `json:"id"`
	JobType       JobType         `json:"job_type"`
	TargetURL     string          `json:"target_url"`
	Status        JobStatus       `json:"status"`
	Priority      int             `json:"priority"`
	RetryCount    int             `json:"retry_count"`
	MaxRetries    int             `json:"max_retries"`
	ScheduledAt   time.Time       `json:"scheduled_at"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	Errors        []string        `json:"errors,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	DataCollected *ExtractedTruck `json:"data_collected,omitempty"`
	TruckID       string          `json:"truck_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// CanRetry reports whether another attempt may be scheduled.
func (j *ScrapingJob) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// Terminal reports whether the job has reached a state the orchestrator will
// never pick up again. A failed job that can still retry is not terminal —
// the state machine moves it back to pending.
func (j *ScrapingJob) Terminal() bool {
	switch j.Status {
	case JobStatusCompleted:
		return true
	case JobStatusFailed:
		return !j.CanRetry()
	default:
		return false
	}
}
