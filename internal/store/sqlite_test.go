package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testTruck(name string) *model.FoodTruck {
	return &model.FoodTruck{
		Name:            name,
		CurrentLocation: model.Location{Lat: 32.7765, Lng: -79.9311, Address: "Charleston, SC"},
		ContactInfo:     model.ContactInfo{Phone: "8435550199"},
		SourceURLs:      []string{"https://" + name + ".example.com"},
		LastScrapedAt:   time.Now().UTC(),
	}
}

// --- Trucks ---

func TestSQLite_Truck_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	truck := testTruck("tasty-tacos")
	require.NoError(t, st.CreateTruck(ctx, truck))
	require.NotEmpty(t, truck.ID)

	got, err := st.GetTruck(ctx, truck.ID)
	require.NoError(t, err)
	assert.Equal(t, truck.Name, got.Name)
	assert.Equal(t, truck.ContactInfo.Phone, got.ContactInfo.Phone)
	assert.Equal(t, truck.SourceURLs, got.SourceURLs)
}

func TestSQLite_Truck_GetMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetTruck(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_Truck_Update(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	truck := testTruck("roti-rolls")
	require.NoError(t, st.CreateTruck(ctx, truck))

	truck.Description = "Fusion wraps"
	truck.SourceURLs = append(truck.SourceURLs, "https://extra.example.com")
	require.NoError(t, st.UpdateTruck(ctx, truck))

	got, err := st.GetTruck(ctx, truck.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fusion wraps", got.Description)
	assert.Len(t, got.SourceURLs, 2)
}

func TestSQLite_Truck_UpdateMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	truck := testTruck("ghost")
	truck.ID = "no-such-id"
	err := st.UpdateTruck(context.Background(), truck)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_Truck_Delete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	truck := testTruck("gone-soon")
	require.NoError(t, st.CreateTruck(ctx, truck))
	require.NoError(t, st.DeleteTruck(ctx, truck.ID))

	_, err := st.GetTruck(ctx, truck.ID)
	require.Error(t, err)
}

func TestSQLite_Truck_QueryByNameOrRegion(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateTruck(ctx, testTruck("Tasty Tacos")))
	require.NoError(t, st.CreateTruck(ctx, testTruck("Smoky Joe's BBQ")))

	byName, err := st.QueryTrucksByNameOrRegion(ctx, "tasty", "")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "Tasty Tacos", byName[0].Name)

	// A term longer than the stored name still matches: the stored name is
	// contained in the term.
	byLongerTerm, err := st.QueryTrucksByNameOrRegion(ctx, "tasty tacos llc", "")
	require.NoError(t, err)
	require.Len(t, byLongerTerm, 1)
	assert.Equal(t, "Tasty Tacos", byLongerTerm[0].Name)

	byRegion, err := st.QueryTrucksByNameOrRegion(ctx, "", "charleston")
	require.NoError(t, err)
	assert.Len(t, byRegion, 2)

	all, err := st.QueryTrucksByNameOrRegion(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLite_Truck_LastScrapedBefore(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	stale := testTruck("stale-truck")
	stale.LastScrapedAt = time.Now().UTC().Add(-30 * 24 * time.Hour)
	require.NoError(t, st.CreateTruck(ctx, stale))

	fresh := testTruck("fresh-truck")
	require.NoError(t, st.CreateTruck(ctx, fresh))

	got, err := st.TrucksLastScrapedBefore(ctx, time.Now().UTC().Add(-7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "stale-truck", got[0].Name)
}

// --- Jobs ---

func testJob(url string) *model.ScrapingJob {
	return &model.ScrapingJob{
		JobType:     model.JobTypeWebsite,
		TargetURL:   url,
		Status:      model.JobStatusPending,
		MaxRetries:  3,
		ScheduledAt: time.Now().UTC(),
	}
}

func TestSQLite_Job_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	job := testJob("https://tastytacos.example.com")
	require.NoError(t, st.CreateJob(ctx, job))
	require.NotEmpty(t, job.ID)

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.TargetURL, got.TargetURL)
	assert.Equal(t, model.JobStatusPending, got.Status)
	assert.Equal(t, 3, got.MaxRetries)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.DataCollected)
}

func TestSQLite_Job_UpdateLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	job := testJob("https://rotirolls.example.com")
	require.NoError(t, st.CreateJob(ctx, job))

	started := time.Now().UTC()
	job.Status = model.JobStatusRunning
	job.StartedAt = &started
	require.NoError(t, st.UpdateJob(ctx, job))

	name := "Roti Rolls"
	completed := started.Add(time.Minute)
	job.Status = model.JobStatusCompleted
	job.CompletedAt = &completed
	job.DataCollected = &model.ExtractedTruck{Name: &name}
	job.TruckID = "truck-1"
	require.NoError(t, st.UpdateJob(ctx, job))

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.DataCollected)
	assert.Equal(t, "Roti Rolls", *got.DataCollected.Name)
	assert.Equal(t, "truck-1", got.TruckID)
}

func TestSQLite_Job_ErrorHistorySurvivesRetries(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	job := testJob("https://flaky.example.com")
	require.NoError(t, st.CreateJob(ctx, job))

	job.Status = model.JobStatusFailed
	job.RetryCount = 3
	job.Errors = []string{"timeout", "timeout", "503 from upstream"}
	require.NoError(t, st.UpdateJob(ctx, job))

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Equal(t, []string{"timeout", "timeout", "503 from upstream"}, got.Errors)
}

func TestSQLite_Job_NextPendingOrdering(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	low := testJob("https://low.example.com")
	low.Priority = 1
	low.ScheduledAt = now.Add(-2 * time.Hour)
	require.NoError(t, st.CreateJob(ctx, low))

	high := testJob("https://high.example.com")
	high.Priority = 5
	high.ScheduledAt = now.Add(-1 * time.Hour)
	require.NoError(t, st.CreateJob(ctx, high))

	future := testJob("https://future.example.com")
	future.ScheduledAt = now.Add(1 * time.Hour)
	require.NoError(t, st.CreateJob(ctx, future))

	running := testJob("https://running.example.com")
	require.NoError(t, st.CreateJob(ctx, running))
	running.Status = model.JobStatusRunning
	require.NoError(t, st.UpdateJob(ctx, running))

	jobs, err := st.NextPendingJobs(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "https://high.example.com", jobs[0].TargetURL)
	assert.Equal(t, "https://low.example.com", jobs[1].TargetURL)
}

func TestSQLite_Job_CountActiveForURL(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	url := "https://busy.example.com"
	pending := testJob(url)
	require.NoError(t, st.CreateJob(ctx, pending))

	done := testJob(url)
	require.NoError(t, st.CreateJob(ctx, done))
	done.Status = model.JobStatusCompleted
	require.NoError(t, st.UpdateJob(ctx, done))

	count, err := st.CountActiveJobsForURL(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = st.CountActiveJobsForURL(ctx, "https://quiet.example.com")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSQLite_Job_ListByStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := testJob("https://a.example.com")
	require.NoError(t, st.CreateJob(ctx, a))

	b := testJob("https://b.example.com")
	require.NoError(t, st.CreateJob(ctx, b))
	b.Status = model.JobStatusFailed
	require.NoError(t, st.UpdateJob(ctx, b))

	failed, err := st.ListJobs(ctx, JobFilter{Status: model.JobStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "https://b.example.com", failed[0].TargetURL)
}

// --- Page cache ---

func TestSQLite_PageCache_SetAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.SetCachedPage(ctx, "https://tastytacos.example.com", []byte("# menu"), time.Hour)
	require.NoError(t, err)

	data, err := st.GetCachedPage(ctx, "https://tastytacos.example.com")
	require.NoError(t, err)
	assert.Equal(t, "# menu", string(data))
}

func TestSQLite_PageCache_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	data, err := st.GetCachedPage(context.Background(), "https://nope.example.com")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSQLite_PageCache_Expired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.SetCachedPage(ctx, "https://old.example.com", []byte("stale"), -time.Hour)
	require.NoError(t, err)

	data, err := st.GetCachedPage(ctx, "https://old.example.com")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSQLite_PageCache_Overwrite(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCachedPage(ctx, "https://u.example.com", []byte("v1"), time.Hour))
	require.NoError(t, st.SetCachedPage(ctx, "https://u.example.com", []byte("v2"), time.Hour))

	data, err := st.GetCachedPage(ctx, "https://u.example.com")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestSQLite_PageCache_DeleteExpired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCachedPage(ctx, "https://expired.example.com", []byte("old"), -time.Hour))
	require.NoError(t, st.SetCachedPage(ctx, "https://live.example.com", []byte("new"), time.Hour))

	n, err := st.DeleteExpiredPages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := st.GetCachedPage(ctx, "https://live.example.com")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}
