package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_GetTruck_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM trucks WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetTruck(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetTruck_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	data := []byte(`{"id":"truck-1","name":"Tasty Tacos","contact_info":{"phone":"8435550199"}}`)
	mock.ExpectQuery(`SELECT data FROM trucks WHERE id = \$1`).
		WithArgs("truck-1").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(data))

	truck, err := s.GetTruck(context.Background(), "truck-1")
	require.NoError(t, err)
	assert.Equal(t, "Tasty Tacos", truck.Name)
	assert.Equal(t, "8435550199", truck.ContactInfo.Phone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateTruck(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO trucks`).
		WithArgs(pgxmock.AnyArg(), "Tasty Tacos", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	truck := &model.FoodTruck{Name: "Tasty Tacos", LastScrapedAt: time.Now()}
	err := s.CreateTruck(context.Background(), truck)
	require.NoError(t, err)
	assert.NotEmpty(t, truck.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_BulkCreateTrucks(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"trucks"},
		[]string{"id", "name", "data", "last_scraped_at", "created_at", "updated_at"}).
		WillReturnResult(2)

	trucks := []model.FoodTruck{
		{Name: "Tasty Tacos"},
		{Name: "Rolling Smoke", LastScrapedAt: time.Now()},
	}
	n, err := s.BulkCreateTrucks(context.Background(), trucks)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NotEmpty(t, trucks[0].ID)
	assert.NotEmpty(t, trucks[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateTruck_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE trucks SET`).
		WithArgs("Ghost", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "no-such-id").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateTruck(context.Background(), &model.FoodTruck{ID: "no-such-id", Name: "Ghost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteTruck(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM trucks WHERE id = \$1`).
		WithArgs("truck-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.DeleteTruck(context.Background(), "truck-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO jobs`).
		WithArgs(pgxmock.AnyArg(), "website", "https://tastytacos.example.com", "pending",
			0, 0, 3, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), "", pgxmock.AnyArg(), "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	job := &model.ScrapingJob{
		JobType:     model.JobTypeWebsite,
		TargetURL:   "https://tastytacos.example.com",
		MaxRetries:  3,
		ScheduledAt: time.Now(),
	}
	err := s.CreateJob(context.Background(), job)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, model.JobStatusPending, job.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountActiveJobsForURL(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM jobs`).
		WithArgs("https://busy.example.com", "pending", "running").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	count, err := s.CountActiveJobsForURL(context.Background(), "https://busy.example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCachedPage_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT content FROM page_cache`).
		WithArgs("https://unknown.example.com").
		WillReturnError(pgx.ErrNoRows)

	data, err := s.GetCachedPage(context.Background(), "https://unknown.example.com")
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetCachedPage_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT`).
		WithArgs(pgxmock.AnyArg(), "https://tastytacos.example.com", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SetCachedPage(context.Background(), "https://tastytacos.example.com", []byte("# menu"), 24*time.Hour)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteExpiredPages(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM page_cache`).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := s.DeleteExpiredPages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
