// Package store persists trucks, scraping jobs, and the scraped-page cache.
// Two backends implement the same interface: SQLite for single-node use and
// Postgres for shared deployments.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/model"
)

// ErrNotFound is wrapped by both backends when an id does not resolve.
// Callers check it with errors.Is to distinguish a stale reference from a
// store failure.
var ErrNotFound = eris.New("not found")

// TruckFilter specifies criteria for listing trucks.
type TruckFilter struct {
	Name   string `json:"name,omitempty"`
	Region string `json:"region,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status    model.JobStatus `json:"status,omitempty"`
	TargetURL string          `json:"target_url,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
}

// Store defines persistence for the scraping pipeline.
type Store interface {
	// Trucks
	CreateTruck(ctx context.Context, truck *model.FoodTruck) error
	GetTruck(ctx context.Context, id string) (*model.FoodTruck, error)
	UpdateTruck(ctx context.Context, truck *model.FoodTruck) error
	DeleteTruck(ctx context.Context, id string) error
	ListTrucks(ctx context.Context, filter TruckFilter) ([]model.FoodTruck, error)
	// QueryTrucksByNameOrRegion returns the candidate pool for duplicate
	// detection: trucks whose name or address loosely matches either term.
	// Empty terms return every truck.
	QueryTrucksByNameOrRegion(ctx context.Context, name, region string) ([]model.FoodTruck, error)
	// TrucksLastScrapedBefore returns trucks whose data has gone stale.
	TrucksLastScrapedBefore(ctx context.Context, cutoff time.Time) ([]model.FoodTruck, error)

	// Jobs
	CreateJob(ctx context.Context, job *model.ScrapingJob) error
	GetJob(ctx context.Context, id string) (*model.ScrapingJob, error)
	UpdateJob(ctx context.Context, job *model.ScrapingJob) error
	ListJobs(ctx context.Context, filter JobFilter) ([]model.ScrapingJob, error)
	// NextPendingJobs returns up to limit due pending jobs ordered by
	// priority descending, then scheduled time ascending.
	NextPendingJobs(ctx context.Context, now time.Time, limit int) ([]model.ScrapingJob, error)
	// CountActiveJobsForURL counts pending and running jobs targeting the
	// URL. The maintenance sweep uses it to avoid double-scheduling.
	CountActiveJobsForURL(ctx context.Context, url string) (int, error)

	// Scraped-page cache
	GetCachedPage(ctx context.Context, url string) ([]byte, error)
	SetCachedPage(ctx context.Context, url string, content []byte, ttl time.Duration) error
	DeleteExpiredPages(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
