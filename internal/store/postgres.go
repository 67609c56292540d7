package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/db"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for the
// hottest store operations.
var preparedStatements = map[string]string{
	"get_truck":       `SELECT data FROM trucks WHERE id = $1`,
	"update_truck":    `UPDATE trucks SET name = $1, data = $2, last_scraped_at = $3, updated_at = $4 WHERE id = $5`,
	"get_job":         selectJobColumns + ` FROM jobs WHERE id = $1`,
	"update_job":      updateJobSQL,
	"count_active":    `SELECT COUNT(*) FROM jobs WHERE target_url = $1 AND status IN ($2, $3)`,
	"get_cached_page": `SELECT content FROM page_cache WHERE url = $1 AND expires_at > now()`,
	"set_cached_page": setCachedPageSQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Tests use it with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., bulk truck imports via COPY).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS trucks (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name            TEXT NOT NULL,
	data            JSONB NOT NULL,
	last_scraped_at TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS jobs (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	job_type       TEXT NOT NULL,
	target_url     TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'pending',
	priority       INTEGER NOT NULL DEFAULT 0,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	scheduled_at   TIMESTAMPTZ NOT NULL,
	started_at     TIMESTAMPTZ,
	completed_at   TIMESTAMPTZ,
	errors         JSONB,
	notes          TEXT NOT NULL DEFAULT '',
	data_collected JSONB,
	truck_id       TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS page_cache (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	url        TEXT NOT NULL UNIQUE,
	content    BYTEA NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trucks_name ON trucks(name);
CREATE INDEX IF NOT EXISTS idx_trucks_last_scraped ON trucks(last_scraped_at);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_target_url ON jobs(target_url);
CREATE INDEX IF NOT EXISTS idx_jobs_queue ON jobs(status, priority DESC, scheduled_at ASC);
CREATE INDEX IF NOT EXISTS idx_page_cache_expires ON page_cache(expires_at);
`

const updateJobSQL = `UPDATE jobs SET status = $1, priority = $2, retry_count = $3, scheduled_at = $4,
	started_at = $5, completed_at = $6, errors = $7, notes = $8, data_collected = $9, truck_id = $10
	WHERE id = $11`

const setCachedPageSQL = `INSERT INTO page_cache (id, url, content, cached_at, expires_at) VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (url) DO UPDATE SET content = $3, cached_at = $4, expires_at = $5`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Trucks

func (s *PostgresStore) CreateTruck(ctx context.Context, truck *model.FoodTruck) error {
	if truck.ID == "" {
		truck.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	truck.CreatedAt = now
	truck.UpdatedAt = now

	data, err := json.Marshal(truck)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal truck")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO trucks (id, name, data, last_scraped_at, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		truck.ID, truck.Name, data, nullableTime(truck.LastScrapedAt), now, now,
	)
	return eris.Wrap(err, "postgres: insert truck")
}

// BulkCreateTrucks inserts trucks in one COPY round trip. Used by the import
// command for seed data; the scraping pipeline itself always creates trucks
// one at a time through CreateTruck.
func (s *PostgresStore) BulkCreateTrucks(ctx context.Context, trucks []model.FoodTruck) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(trucks))
	for i := range trucks {
		truck := &trucks[i]
		if truck.ID == "" {
			truck.ID = uuid.New().String()
		}
		truck.CreatedAt = now
		truck.UpdatedAt = now

		data, err := json.Marshal(truck)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal truck %s", truck.Name)
		}
		rows = append(rows, []any{truck.ID, truck.Name, data, nullableTime(truck.LastScrapedAt), now, now})
	}

	n, err := db.CopyFrom(ctx, s.pool, "trucks",
		[]string{"id", "name", "data", "last_scraped_at", "created_at", "updated_at"}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: bulk insert trucks")
	}
	return n, nil
}

func (s *PostgresStore) GetTruck(ctx context.Context, id string) (*model.FoodTruck, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM trucks WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "truck %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get truck %s", id)
	}
	return unmarshalTruck(data)
}

func (s *PostgresStore) UpdateTruck(ctx context.Context, truck *model.FoodTruck) error {
	truck.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(truck)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal truck")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE trucks SET name = $1, data = $2, last_scraped_at = $3, updated_at = $4 WHERE id = $5`,
		truck.Name, data, nullableTime(truck.LastScrapedAt), truck.UpdatedAt, truck.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update truck %s", truck.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "truck %s", truck.ID)
	}
	return nil
}

func (s *PostgresStore) DeleteTruck(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trucks WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete truck %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "truck %s", id)
	}
	return nil
}

func (s *PostgresStore) ListTrucks(ctx context.Context, filter TruckFilter) ([]model.FoodTruck, error) {
	query := `SELECT data FROM trucks WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Name != "" {
		query += fmt.Sprintf(` AND name ILIKE '%%' || $%d || '%%'`, argIdx)
		args = append(args, filter.Name)
		argIdx++
	}
	if filter.Region != "" {
		query += fmt.Sprintf(` AND data::text ILIKE '%%' || $%d || '%%'`, argIdx)
		args = append(args, filter.Region)
		argIdx++
	}
	query += ` ORDER BY name ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	return s.queryTrucks(ctx, query, args...)
}

func (s *PostgresStore) QueryTrucksByNameOrRegion(ctx context.Context, name, region string) ([]model.FoodTruck, error) {
	if name == "" && region == "" {
		return s.queryTrucks(ctx, `SELECT data FROM trucks ORDER BY name ASC`)
	}
	query := `SELECT data FROM trucks WHERE false`
	args := []any{}
	argIdx := 1
	if name != "" {
		// Either direction: a stored "Tasty Tacos LLC" must match the term
		// "tasty tacos" and a stored "Tasty Tacos" must match the longer
		// term "tasty tacos llc".
		query += fmt.Sprintf(` OR name ILIKE '%%' || $%d || '%%' OR $%d ILIKE '%%' || name || '%%'`, argIdx, argIdx)
		args = append(args, name)
		argIdx++
	}
	if region != "" {
		query += fmt.Sprintf(` OR data::text ILIKE '%%' || $%d || '%%'`, argIdx)
		args = append(args, region)
	}
	query += ` ORDER BY name ASC`
	return s.queryTrucks(ctx, query, args...)
}

func (s *PostgresStore) TrucksLastScrapedBefore(ctx context.Context, cutoff time.Time) ([]model.FoodTruck, error) {
	return s.queryTrucks(ctx,
		`SELECT data FROM trucks WHERE last_scraped_at IS NOT NULL AND last_scraped_at < $1 ORDER BY last_scraped_at ASC`,
		cutoff.UTC(),
	)
}

func (s *PostgresStore) queryTrucks(ctx context.Context, query string, args ...any) ([]model.FoodTruck, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query trucks")
	}
	defer rows.Close()

	var trucks []model.FoodTruck
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan truck")
		}
		t, err := unmarshalTruck(data)
		if err != nil {
			return nil, err
		}
		trucks = append(trucks, *t)
	}
	return trucks, eris.Wrap(rows.Err(), "postgres: query trucks iterate")
}

// Jobs

func (s *PostgresStore) CreateJob(ctx context.Context, job *model.ScrapingJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}

	errorsJSON, dataJSON, err := marshalJobBlobsPG(job)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO jobs (id, job_type, target_url, status, priority, retry_count, max_retries,
		 scheduled_at, started_at, completed_at, errors, notes, data_collected, truck_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		job.ID, string(job.JobType), job.TargetURL, string(job.Status), job.Priority,
		job.RetryCount, job.MaxRetries, job.ScheduledAt.UTC(), job.StartedAt, job.CompletedAt,
		errorsJSON, job.Notes, dataJSON, job.TruckID, job.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert job")
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.ScrapingJob, error) {
	row := s.pool.QueryRow(ctx, selectJobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJobPG(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "job %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get job %s", id)
	}
	return j, nil
}

func (s *PostgresStore) UpdateJob(ctx context.Context, job *model.ScrapingJob) error {
	errorsJSON, dataJSON, err := marshalJobBlobsPG(job)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, updateJobSQL,
		string(job.Status), job.Priority, job.RetryCount, job.ScheduledAt.UTC(),
		job.StartedAt, job.CompletedAt, errorsJSON, job.Notes, dataJSON, job.TruckID,
		job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job %s", job.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "job %s", job.ID)
	}
	return nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.ScrapingJob, error) {
	query := selectJobColumns + ` FROM jobs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.TargetURL != "" {
		query += fmt.Sprintf(` AND target_url = $%d`, argIdx)
		args = append(args, filter.TargetURL)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	return s.queryJobs(ctx, query, args...)
}

func (s *PostgresStore) NextPendingJobs(ctx context.Context, now time.Time, limit int) ([]model.ScrapingJob, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryJobs(ctx,
		selectJobColumns+` FROM jobs
		 WHERE status = $1 AND scheduled_at <= $2
		 ORDER BY priority DESC, scheduled_at ASC
		 LIMIT $3`,
		string(model.JobStatusPending), now.UTC(), limit,
	)
}

func (s *PostgresStore) CountActiveJobsForURL(ctx context.Context, url string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM jobs WHERE target_url = $1 AND status IN ($2, $3)`,
		url, string(model.JobStatusPending), string(model.JobStatusRunning),
	).Scan(&count)
	return count, eris.Wrap(err, "postgres: count active jobs")
}

func (s *PostgresStore) queryJobs(ctx context.Context, query string, args ...any) ([]model.ScrapingJob, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query jobs")
	}
	defer rows.Close()

	var jobs []model.ScrapingJob
	for rows.Next() {
		j, err := scanJobPG(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: query jobs iterate")
}

// Page cache

func (s *PostgresStore) GetCachedPage(ctx context.Context, url string) ([]byte, error) {
	var content []byte
	err := s.pool.QueryRow(ctx,
		`SELECT content FROM page_cache WHERE url = $1 AND expires_at > now()`,
		url,
	).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get cached page")
	}
	return content, nil
}

func (s *PostgresStore) SetCachedPage(ctx context.Context, url string, content []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, setCachedPageSQL,
		uuid.New().String(), url, content, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached page")
}

func (s *PostgresStore) DeleteExpiredPages(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM page_cache WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired pages")
	}
	return int(tag.RowsAffected()), nil
}

// helpers

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func unmarshalTruck(data []byte) (*model.FoodTruck, error) {
	var t model.FoodTruck
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal truck")
	}
	return &t, nil
}

func marshalJobBlobsPG(job *model.ScrapingJob) (errorsJSON []byte, dataJSON []byte, err error) {
	errorsJSON, err = json.Marshal(job.Errors)
	if err != nil {
		return nil, nil, eris.Wrap(err, "marshal job errors")
	}
	if job.DataCollected != nil {
		dataJSON, err = json.Marshal(job.DataCollected)
		if err != nil {
			return nil, nil, eris.Wrap(err, "marshal job data")
		}
	}
	return errorsJSON, dataJSON, nil
}

func scanJobPG(row pgx.Row) (*model.ScrapingJob, error) {
	var j model.ScrapingJob
	var jobType, status string
	var startedAt, completedAt *time.Time
	var errorsJSON, dataJSON []byte

	err := row.Scan(&j.ID, &jobType, &j.TargetURL, &status, &j.Priority,
		&j.RetryCount, &j.MaxRetries, &j.ScheduledAt, &startedAt, &completedAt,
		&errorsJSON, &j.Notes, &dataJSON, &j.TruckID, &j.CreatedAt)
	if err != nil {
		return nil, err
	}

	j.JobType = model.JobType(jobType)
	j.Status = model.JobStatus(status)
	j.StartedAt = startedAt
	j.CompletedAt = completedAt
	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &j.Errors); err != nil {
			return nil, eris.Wrap(err, "unmarshal job errors")
		}
	}
	if len(dataJSON) > 0 {
		j.DataCollected = &model.ExtractedTruck{}
		if err := json.Unmarshal(dataJSON, j.DataCollected); err != nil {
			return nil, eris.Wrap(err, "unmarshal job data")
		}
	}
	return &j, nil
}
