package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/graphcap/batchqueue/internal/store"
	"github.com/graphcap/batchqueue/pkg/models"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("batchqueue_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

// newJob builds a job plus its cross-product items, mirroring what the
// service layer hands the store.
func newJob(jobType string, images, perspectives []string, priority int) (*models.Job, []*models.JobItem) {
	job := &models.Job{
		JobID:    uuid.New(),
		Type:     jobType,
		Status:   models.JobStatusPending,
		Priority: priority,
		Config: models.JobConfig{
			Images:       images,
			Perspectives: perspectives,
		},
		TotalImages: len(images) * len(perspectives),
		CreatedAt:   time.Now().UTC(),
	}
	var items []*models.JobItem
	for _, img := range images {
		for _, p := range perspectives {
			items = append(items, &models.JobItem{
				JobID:       job.JobID,
				ImagePath:   img,
				Perspective: p,
				Status:      models.ItemStatusPending,
			})
		}
	}
	return job, items
}

func createJob(t *testing.T, s store.Store, images, perspectives []string, priority int, dependsOn ...uuid.UUID) *models.Job {
	t.Helper()
	job, items := newJob(models.JobTypeMultiPerspective, images, perspectives, priority)
	require.NoError(t, s.CreateJob(context.Background(), job, items, dependsOn))
	return job
}

// claimN claims exactly n items and fails the test if fewer are available.
func claimN(t *testing.T, s store.Store, n int) []*models.JobItem {
	t.Helper()
	items := make([]*models.JobItem, 0, n)
	for i := 0; i < n; i++ {
		item, err := s.ClaimNextItem(context.Background())
		require.NoError(t, err)
		items = append(items, item)
	}
	return items
}

// --- Submission ---

func TestCreateJob_ExpandsCrossProduct(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := createJob(t, s, []string{"a.jpg", "b.jpg"}, []string{"art", "graph"}, 100)

	got, err := s.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, 4, got.TotalImages)
	assert.Equal(t, 0, got.ProcessedImages)
	assert.Equal(t, 0, got.FailedImages)
	assert.Equal(t, 0, got.Progress)
	assert.Nil(t, got.StartedAt)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, got.Config.Images)

	items, err := s.GetJobItems(ctx, job.JobID)
	require.NoError(t, err)
	require.Len(t, items, 4)
	for _, it := range items {
		assert.Equal(t, models.ItemStatusPending, it.Status)
		assert.Equal(t, job.JobID, it.JobID)
	}
}

func TestCreateJob_DependencyEdges(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	prereq := createJob(t, s, []string{"a.jpg"}, []string{"art"}, 100)
	dependent := createJob(t, s, []string{"b.jpg"}, []string{"art"}, 100, prereq.JobID)

	deps, err := s.GetJobDependencies(ctx, dependent.JobID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, prereq.JobID, deps[0].DependsOnJobID)
}

func TestCreateJob_DanglingDependencyRollsBack(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job, items := newJob(models.JobTypeMultiPerspective, []string{"a.jpg"}, []string{"art"}, 100)
	err := s.CreateJob(ctx, job, items, []uuid.UUID{uuid.New()})
	require.Error(t, err)

	// The FK violation must abort the whole transaction: no partial job.
	_, err = s.GetJob(ctx, job.JobID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJobsExist(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := createJob(t, s, []string{"a.jpg"}, []string{"art"}, 100)
	missing := uuid.New()

	exists, err := s.JobsExist(ctx, []uuid.UUID{job.JobID, missing})
	require.NoError(t, err)
	assert.True(t, exists[job.JobID])
	assert.False(t, exists[missing])
}

// --- Listing ---

func TestListJobs_DispatchOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	low := createJob(t, s, []string{"a.jpg"}, []string{"art"}, 50)
	first := createJob(t, s, []string{"b.jpg"}, []string{"art"}, 100)
	second := createJob(t, s, []string{"c.jpg"}, []string{"art"}, 100)

	jobs, total, err := s.ListJobs(ctx, store.JobFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, jobs, 3)
	// priority ASC, then created_at ASC breaks the 100/100 tie.
	assert.Equal(t, low.JobID, jobs[0].JobID)
	assert.Equal(t, first.JobID, jobs[1].JobID)
	assert.Equal(t, second.JobID, jobs[2].JobID)
}

func TestListJobs_StatusAndArchivedFilter(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	active := createJob(t, s, []string{"a.jpg"}, []string{"art"}, 100)
	archived := createJob(t, s, []string{"b.jpg"}, []string{"art"}, 100)
	require.NoError(t, s.SetJobArchived(ctx, archived.JobID, true))

	jobs, total, err := s.ListJobs(ctx, store.JobFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, jobs, 1)
	assert.Equal(t, active.JobID, jobs[0].JobID)

	_, total, err = s.ListJobs(ctx, store.JobFilter{Limit: 10, IncludeArchived: true})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	_, total, err = s.ListJobs(ctx, store.JobFilter{Status: models.JobStatusRunning, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestListJobs_Pagination(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		createJob(t, s, []string{"a.jpg"}, []string{"art"}, 100)
	}

	jobs, total, err := s.ListJobs(ctx, store.JobFilter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, jobs, 1)
}

func TestGetJob_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestQueuePosition(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	ahead := createJob(t, s, []string{"a.jpg"}, []string{"art"}, 10)
	behind := createJob(t, s, []string{"b.jpg"}, []string{"art"}, 20)

	pos, err := s.QueuePosition(ctx, ahead.JobID)
	require.NoError(t, err)
	assert.Equal(t, 0, pos)

	pos, err = s.QueuePosition(ctx, behind.JobID)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
}

// --- Claiming ---

func TestClaimNextItem_MarksItemAndJobRunning(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := createJob(t, s, []string{"a.jpg"}, []string{"art", "graph"}, 100)

	item, err := s.ClaimNextItem(ctx)
	require.NoError(t, err)
	assert.Equal(t, job.JobID, item.JobID)
	assert.Equal(t, models.ItemStatusRunning, item.Status)
	assert.NotNil(t, item.StartedAt)

	got, err := s.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, got.Status)
	assert.NotNil(t, got.StartedAt)
}

func TestClaimNextItem_NoneAvailable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.ClaimNextItem(context.Background())
	assert.ErrorIs(t, err, store.ErrNoItemAvailable)
}

func TestClaimNextItem_PriorityOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	createJob(t, s, []string{"late.jpg"}, []string{"art"}, 200)
	urgent := createJob(t, s, []string{"urgent.jpg"}, []string{"art"}, 10)

	item, err := s.ClaimNextItem(ctx)
	require.NoError(t, err)
	assert.Equal(t, urgent.JobID, item.JobID)
}

func TestClaimNextItem_DependencyGate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	prereq := createJob(t, s, []string{"a.jpg"}, []string{"art"}, 100)
	// Lower priority value, but blocked until prereq finishes successfully.
	dependent := createJob(t, s, []string{"b.jpg"}, []string{"art"}, 1, prereq.JobID)

	item, err := s.ClaimNextItem(ctx)
	require.NoError(t, err)
	assert.Equal(t, prereq.JobID, item.JobID)

	// The dependent job has the only remaining pending item, but the gate
	// holds while the prerequisite is still running.
	_, err = s.ClaimNextItem(ctx)
	assert.ErrorIs(t, err, store.ErrNoItemAvailable)

	_, err = s.CompleteItem(ctx, item.ID, true, nil)
	require.NoError(t, err)

	item, err = s.ClaimNextItem(ctx)
	require.NoError(t, err)
	assert.Equal(t, dependent.JobID, item.JobID)
}

func TestClaimNextItem_AtMostOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	createJob(t, s, []string{"a.jpg"}, []string{"art"}, 100)

	const claimers = 8
	var wg sync.WaitGroup
	results := make(chan error, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ClaimNextItem(ctx)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	claimed := 0
	for err := range results {
		if err == nil {
			claimed++
		} else {
			assert.ErrorIs(t, err, store.ErrNoItemAvailable)
		}
	}
	assert.Equal(t, 1, claimed, "exactly one claim may succeed for a single pending item")
}

// --- Completion ---

func TestCompleteItem_CountersAndProgress(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	createJob(t, s, []string{"a.jpg", "b.jpg"}, []string{"art", "graph"}, 100)
	items := claimN(t, s, 2)

	job, err := s.CompleteItem(ctx, items[0].ID, true, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, job.ProcessedImages)
	assert.Equal(t, 0, job.FailedImages)
	assert.Equal(t, 25, job.Progress)
	assert.Equal(t, models.JobStatusRunning, job.Status)

	msg := "model timeout"
	job, err = s.CompleteItem(ctx, items[1].ID, false, &msg)
	require.NoError(t, err)
	assert.Equal(t, 1, job.ProcessedImages)
	assert.Equal(t, 1, job.FailedImages)
	assert.Equal(t, 50, job.Progress)

	stored, err := s.GetJobItems(ctx, job.JobID)
	require.NoError(t, err)
	for _, it := range stored {
		if it.ID == items[1].ID {
			assert.Equal(t, models.ItemStatusFailed, it.Status)
			require.NotNil(t, it.Error)
			assert.Equal(t, "model timeout", *it.Error)
			assert.NotNil(t, it.CompletedAt)
			assert.NotNil(t, it.ProcessingTime)
		}
	}
}

func TestCompleteItem_NotRunning(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	createJob(t, s, []string{"a.jpg"}, []string{"art"}, 100)
	item := claimN(t, s, 1)[0]

	_, err := s.CompleteItem(ctx, item.ID, true, nil)
	require.NoError(t, err)

	// Completing the same item twice fails the CAS.
	_, err = s.CompleteItem(ctx, item.ID, true, nil)
	assert.ErrorIs(t, err, store.ErrItemNotRunning)

	// As does a completely unknown item.
	_, err = s.CompleteItem(ctx, 999999, true, nil)
	assert.ErrorIs(t, err, store.ErrItemNotRunning)
}

func TestCompleteItem_ConcurrentNoLostUpdates(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := createJob(t, s,
		[]string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"},
		[]string{"art", "graph", "custom", "alt", "extra"}, 100)
	items := claimN(t, s, 20)

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(id int64, fail bool) {
			defer wg.Done()
			var msg *string
			if fail {
				m := "boom"
				msg = &m
			}
			_, err := s.CompleteItem(ctx, id, !fail, msg)
			assert.NoError(t, err)
		}(item.ID, i%4 == 0)
	}
	wg.Wait()

	got, err := s.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, 15, got.ProcessedImages)
	assert.Equal(t, 5, got.FailedImages)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, models.JobStatusPartial, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

// --- Finalization ---

func TestFinalization_AllOutcomes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	cases := []struct {
		name       string
		failures   int
		wantStatus string
	}{
		{"all succeed", 0, models.JobStatusCompleted},
		{"some fail", 1, models.JobStatusPartial},
		{"all fail", 2, models.JobStatusFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			job := createJob(t, s, []string{"a.jpg", "b.jpg"}, []string{"art"}, 100)
			items := claimN(t, s, 2)

			for i, item := range items {
				var msg *string
				ok := i >= tc.failures
				if !ok {
					m := "boom"
					msg = &m
				}
				_, err := s.CompleteItem(ctx, item.ID, ok, msg)
				require.NoError(t, err)
			}

			got, err := s.GetJob(ctx, job.JobID)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, got.Status)
			assert.Equal(t, 100, got.Progress)
			assert.NotNil(t, got.CompletedAt)
		})
	}
}

// --- Cancellation ---

func TestCancelJob_Scoping(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	// 6 items: 3 left pending, 2 running, 1 completed.
	job := createJob(t, s, []string{"a.jpg", "b.jpg", "c.jpg"}, []string{"art", "graph"}, 100)
	claimed := claimN(t, s, 3)
	_, err := s.CompleteItem(ctx, claimed[0].ID, true, nil)
	require.NoError(t, err)

	cancelled, err := s.CancelJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, cancelled.Status)
	// Counters are untouched by cancellation.
	assert.Equal(t, 1, cancelled.ProcessedImages)
	assert.Equal(t, 0, cancelled.FailedImages)

	items, err := s.GetJobItems(ctx, job.JobID)
	require.NoError(t, err)
	counts := map[string]int{}
	for _, it := range items {
		counts[it.Status]++
	}
	assert.Equal(t, 3, counts[models.ItemStatusCancelled])
	assert.Equal(t, 2, counts[models.ItemStatusRunning])
	assert.Equal(t, 1, counts[models.ItemStatusCompleted])
}

func TestCancelJob_TerminalIsError(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := createJob(t, s, []string{"a.jpg"}, []string{"art"}, 100)
	item := claimN(t, s, 1)[0]
	_, err := s.CompleteItem(ctx, item.ID, true, nil)
	require.NoError(t, err)

	_, err = s.CancelJob(ctx, job.JobID)
	assert.ErrorIs(t, err, store.ErrJobTerminal)

	_, err = s.CancelJob(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCancelJob_NoResurrection(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := createJob(t, s, []string{"a.jpg"}, []string{"art"}, 100)
	item := claimN(t, s, 1)[0]

	_, err := s.CancelJob(ctx, job.JobID)
	require.NoError(t, err)

	// The in-flight item still lands and counts, but finalization must not
	// overwrite the cancelled status.
	got, err := s.CompleteItem(ctx, item.ID, true, nil)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, got.Status)
	assert.Equal(t, 1, got.ProcessedImages)
	assert.Equal(t, 100, got.Progress)
}

// --- Reordering ---

func TestReorderJobs(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	a := createJob(t, s, []string{"a.jpg"}, []string{"art"}, 100)
	b := createJob(t, s, []string{"b.jpg"}, []string{"art"}, 100)
	c := createJob(t, s, []string{"c.jpg"}, []string{"art"}, 50)

	updated, err := s.ReorderJobs(ctx, []uuid.UUID{b.JobID, a.JobID, c.JobID})
	require.NoError(t, err)
	assert.Equal(t, 3, updated)

	jobs, _, err := s.ListJobs(ctx, store.JobFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, b.JobID, jobs[0].JobID)
	assert.Equal(t, 0, jobs[0].Priority)
	assert.Equal(t, a.JobID, jobs[1].JobID)
	assert.Equal(t, 10, jobs[1].Priority)
	assert.Equal(t, c.JobID, jobs[2].JobID)
	assert.Equal(t, 20, jobs[2].Priority)
}

func TestReorderJobs_UnknownIDsSkipped(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	a := createJob(t, s, []string{"a.jpg"}, []string{"art"}, 100)

	updated, err := s.ReorderJobs(ctx, []uuid.UUID{uuid.New(), a.JobID})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	got, err := s.GetJob(ctx, a.JobID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Priority)
}

// --- End to end ---

func TestEndToEnd_PartialJob(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := createJob(t, s, []string{"a.jpg", "b.jpg"}, []string{"art", "graph"}, 100)
	items := claimN(t, s, 4)

	for i, item := range items {
		if i < 3 {
			_, err := s.CompleteItem(ctx, item.ID, true, nil)
			require.NoError(t, err)
		} else {
			msg := "inference error"
			_, err := s.CompleteItem(ctx, item.ID, false, &msg)
			require.NoError(t, err)
		}
	}

	got, err := s.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPartial, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, 3, got.ProcessedImages)
	assert.Equal(t, 1, got.FailedImages)
}

// --- API keys ---

func TestAPIKey_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	key := &models.APIKey{
		ID:        uuid.New(),
		Name:      "worker-key",
		KeyHash:   "bcrypt-hash-here",
		KeyPrefix: "bq_abcd1",
		Scopes:    []string{models.ScopeWorker},
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	keys, err := s.GetAPIKeyByPrefix(ctx, "bq_abcd1")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.ID, keys[0].ID)
	assert.Equal(t, []string{models.ScopeWorker}, keys[0].Scopes)

	require.NoError(t, s.UpdateAPIKeyLastUsed(ctx, key.ID))
}
