package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS trucks (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	data            TEXT NOT NULL,
	last_scraped_at DATETIME,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS jobs (
	id             TEXT PRIMARY KEY,
	job_type       TEXT NOT NULL,
	target_url     TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'pending',
	priority       INTEGER NOT NULL DEFAULT 0,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	scheduled_at   DATETIME NOT NULL,
	started_at     DATETIME,
	completed_at   DATETIME,
	errors         TEXT,
	notes          TEXT NOT NULL DEFAULT '',
	data_collected TEXT,
	truck_id       TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS page_cache (
	id         TEXT PRIMARY KEY,
	url        TEXT NOT NULL UNIQUE,
	content    BLOB NOT NULL,
	cached_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trucks_name ON trucks(name);
CREATE INDEX IF NOT EXISTS idx_trucks_last_scraped ON trucks(last_scraped_at);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_target_url ON jobs(target_url);
CREATE INDEX IF NOT EXISTS idx_jobs_queue ON jobs(status, priority DESC, scheduled_at ASC);
CREATE INDEX IF NOT EXISTS idx_page_cache_url ON page_cache(url);
CREATE INDEX IF NOT EXISTS idx_page_cache_expires ON page_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Trucks

func (s *SQLiteStore) CreateTruck(ctx context.Context, truck *model.FoodTruck) error {
	if truck.ID == "" {
		truck.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	truck.CreatedAt = now
	truck.UpdatedAt = now

	data, err := json.Marshal(truck)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal truck")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO trucks (id, name, data, last_scraped_at, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		truck.ID, truck.Name, string(data), truck.LastScrapedAt, now, now,
	)
	return eris.Wrap(err, "sqlite: insert truck")
}

func (s *SQLiteStore) GetTruck(ctx context.Context, id string) (*model.FoodTruck, error) {
	row := s.db.QueryRowContext(ctx, `SELECT data FROM trucks WHERE id = ?`, id)
	return scanTruck(row)
}

func (s *SQLiteStore) UpdateTruck(ctx context.Context, truck *model.FoodTruck) error {
	truck.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(truck)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal truck")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE trucks SET name = ?, data = ?, last_scraped_at = ?, updated_at = ? WHERE id = ?`,
		truck.Name, string(data), truck.LastScrapedAt, truck.UpdatedAt, truck.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update truck %s", truck.ID)
	}
	return checkRowsAffected(res, "truck", truck.ID)
}

func (s *SQLiteStore) DeleteTruck(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM trucks WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete truck %s", id)
	}
	return checkRowsAffected(res, "truck", id)
}

func (s *SQLiteStore) ListTrucks(ctx context.Context, filter TruckFilter) ([]model.FoodTruck, error) {
	query := `SELECT data FROM trucks WHERE 1=1`
	var args []any

	if filter.Name != "" {
		query += ` AND instr(lower(name), lower(?)) > 0`
		args = append(args, filter.Name)
	}
	if filter.Region != "" {
		query += ` AND instr(lower(data), lower(?)) > 0`
		args = append(args, filter.Region)
	}
	query += ` ORDER BY name ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	return s.queryTrucks(ctx, query, args...)
}

func (s *SQLiteStore) QueryTrucksByNameOrRegion(ctx context.Context, name, region string) ([]model.FoodTruck, error) {
	if name == "" && region == "" {
		return s.queryTrucks(ctx, `SELECT data FROM trucks ORDER BY name ASC`)
	}
	query := `SELECT data FROM trucks WHERE 0=1`
	var args []any
	if name != "" {
		// Either direction: a stored "Tasty Tacos LLC" must match the term
		// "tasty tacos" and a stored "Tasty Tacos" must match the longer
		// term "tasty tacos llc".
		query += ` OR instr(lower(name), lower(?)) > 0 OR instr(lower(?), lower(name)) > 0`
		args = append(args, name, name)
	}
	if region != "" {
		query += ` OR instr(lower(data), lower(?)) > 0`
		args = append(args, region)
	}
	query += ` ORDER BY name ASC`
	return s.queryTrucks(ctx, query, args...)
}

func (s *SQLiteStore) TrucksLastScrapedBefore(ctx context.Context, cutoff time.Time) ([]model.FoodTruck, error) {
	return s.queryTrucks(ctx,
		`SELECT data FROM trucks WHERE last_scraped_at IS NOT NULL AND last_scraped_at < ? ORDER BY last_scraped_at ASC`,
		cutoff.UTC(),
	)
}

func (s *SQLiteStore) queryTrucks(ctx context.Context, query string, args ...any) ([]model.FoodTruck, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query trucks")
	}
	defer rows.Close()

	var trucks []model.FoodTruck
	for rows.Next() {
		t, err := scanTruck(rows)
		if err != nil {
			return nil, err
		}
		trucks = append(trucks, *t)
	}
	return trucks, eris.Wrap(rows.Err(), "sqlite: query trucks iterate")
}

// Jobs

func (s *SQLiteStore) CreateJob(ctx context.Context, job *model.ScrapingJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}

	errorsJSON, dataJSON, err := marshalJobBlobs(job)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, job_type, target_url, status, priority, retry_count, max_retries,
		 scheduled_at, started_at, completed_at, errors, notes, data_collected, truck_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.JobType), job.TargetURL, string(job.Status), job.Priority,
		job.RetryCount, job.MaxRetries, job.ScheduledAt.UTC(), job.StartedAt, job.CompletedAt,
		errorsJSON, job.Notes, dataJSON, job.TruckID, job.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert job")
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.ScrapingJob, error) {
	row := s.db.QueryRowContext(ctx, selectJobColumns+` FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, job *model.ScrapingJob) error {
	errorsJSON, dataJSON, err := marshalJobBlobs(job)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, priority = ?, retry_count = ?, scheduled_at = ?,
		 started_at = ?, completed_at = ?, errors = ?, notes = ?, data_collected = ?, truck_id = ?
		 WHERE id = ?`,
		string(job.Status), job.Priority, job.RetryCount, job.ScheduledAt.UTC(),
		job.StartedAt, job.CompletedAt, errorsJSON, job.Notes, dataJSON, job.TruckID,
		job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %s", job.ID)
	}
	return checkRowsAffected(res, "job", job.ID)
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.ScrapingJob, error) {
	query := selectJobColumns + ` FROM jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.TargetURL != "" {
		query += ` AND target_url = ?`
		args = append(args, filter.TargetURL)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	return s.queryJobs(ctx, query, args...)
}

func (s *SQLiteStore) NextPendingJobs(ctx context.Context, now time.Time, limit int) ([]model.ScrapingJob, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryJobs(ctx,
		selectJobColumns+` FROM jobs
		 WHERE status = ? AND scheduled_at <= ?
		 ORDER BY priority DESC, scheduled_at ASC
		 LIMIT ?`,
		string(model.JobStatusPending), now.UTC(), limit,
	)
}

func (s *SQLiteStore) CountActiveJobsForURL(ctx context.Context, url string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jobs WHERE target_url = ? AND status IN (?, ?)`,
		url, string(model.JobStatusPending), string(model.JobStatusRunning),
	).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count active jobs")
}

func (s *SQLiteStore) queryJobs(ctx context.Context, query string, args ...any) ([]model.ScrapingJob, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query jobs")
	}
	defer rows.Close()

	var jobs []model.ScrapingJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: query jobs iterate")
}

// Page cache

func (s *SQLiteStore) GetCachedPage(ctx context.Context, url string) ([]byte, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM page_cache WHERE url = ? AND expires_at > datetime('now')`,
		url,
	).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached page")
	}
	return content, nil
}

func (s *SQLiteStore) SetCachedPage(ctx context.Context, url string, content []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO page_cache (id, url, content, cached_at, expires_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (url) DO UPDATE SET content = excluded.content, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		uuid.New().String(), url, content, now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached page")
}

func (s *SQLiteStore) DeleteExpiredPages(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM page_cache WHERE expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired pages")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

const selectJobColumns = `SELECT id, job_type, target_url, status, priority, retry_count, max_retries,
	scheduled_at, started_at, completed_at, errors, notes, data_collected, truck_id, created_at`

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTruck(row scannable) (*model.FoodTruck, error) {
	var data string
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "truck")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan truck")
	}

	var t model.FoodTruck
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal truck")
	}
	return &t, nil
}

func marshalJobBlobs(job *model.ScrapingJob) (errorsJSON string, dataJSON sql.NullString, err error) {
	b, err := json.Marshal(job.Errors)
	if err != nil {
		return "", sql.NullString{}, eris.Wrap(err, "marshal job errors")
	}
	errorsJSON = string(b)

	if job.DataCollected != nil {
		d, err := json.Marshal(job.DataCollected)
		if err != nil {
			return "", sql.NullString{}, eris.Wrap(err, "marshal job data")
		}
		dataJSON = sql.NullString{String: string(d), Valid: true}
	}
	return errorsJSON, dataJSON, nil
}

func scanJob(row scannable) (*model.ScrapingJob, error) {
	var j model.ScrapingJob
	var jobType, status string
	var startedAt, completedAt sql.NullTime
	var errorsJSON, dataJSON sql.NullString

	err := row.Scan(&j.ID, &jobType, &j.TargetURL, &status, &j.Priority,
		&j.RetryCount, &j.MaxRetries, &j.ScheduledAt, &startedAt, &completedAt,
		&errorsJSON, &j.Notes, &dataJSON, &j.TruckID, &j.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "job")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan job")
	}

	j.JobType = model.JobType(jobType)
	j.Status = model.JobStatus(status)
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	if errorsJSON.Valid && errorsJSON.String != "" {
		if err := json.Unmarshal([]byte(errorsJSON.String), &j.Errors); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal job errors")
		}
	}
	if dataJSON.Valid {
		j.DataCollected = &model.ExtractedTruck{}
		if err := json.Unmarshal([]byte(dataJSON.String), j.DataCollected); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal job data")
		}
	}
	return &j, nil
}
