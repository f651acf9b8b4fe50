package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/graphcap/batchqueue/pkg/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const jobFields = `job_id, type, status, priority, config, total_images, processed_images,
	failed_images, progress, created_at, started_at, completed_at, archived`

const itemFields = `id, job_id, image_path, perspective, status, error, started_at,
	completed_at, processing_time`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.JobID, &j.Type, &j.Status, &j.Priority, &j.Config,
		&j.TotalImages, &j.ProcessedImages, &j.FailedImages, &j.Progress,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt, &j.Archived)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func scanItem(row pgx.Row) (*models.JobItem, error) {
	var it models.JobItem
	err := row.Scan(&it.ID, &it.JobID, &it.ImagePath, &it.Perspective, &it.Status,
		&it.Error, &it.StartedAt, &it.CompletedAt, &it.ProcessingTime)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// --- Jobs ---

// CreateJob inserts the job row, every item, and the dependency edges in one
// transaction; either all rows exist afterwards or none do.
func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job, items []*models.JobItem, dependsOn []uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create job: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO batch_jobs (job_id, type, status, priority, config, total_images,
		   processed_images, failed_images, progress, created_at, archived)
		 VALUES ($1, $2, $3, $4, $5, $6, 0, 0, 0, $7, FALSE)`,
		job.JobID, job.Type, job.Status, job.Priority, job.Config, job.TotalImages, job.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert job: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"batch_job_items"},
		[]string{"job_id", "image_path", "perspective", "status"},
		pgx.CopyFromSlice(len(items), func(i int) ([]any, error) {
			return []any{items[i].JobID, items[i].ImagePath, items[i].Perspective, items[i].Status}, nil
		}))
	if err != nil {
		return fmt.Errorf("insert job items: %w", err)
	}

	for _, dep := range dependsOn {
		_, err = tx.Exec(ctx,
			`INSERT INTO batch_job_dependencies (job_id, depends_on_job_id) VALUES ($1, $2)`,
			job.JobID, dep)
		if err != nil {
			return fmt.Errorf("insert job dependency: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error) {
	conditions := []string{}
	args := []any{}
	argIdx := 1

	if filter.Status != "" && filter.Status != "all" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}
	if !filter.IncludeArchived {
		conditions = append(conditions, "archived = FALSE")
	}

	where := "TRUE"
	if len(conditions) > 0 {
		where = strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM batch_jobs WHERE " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	// job_id is a final tiebreak so repeated listings agree even for equal
	// (priority, created_at) pairs.
	dataQuery := fmt.Sprintf(
		`SELECT %s FROM batch_jobs WHERE %s
		 ORDER BY priority ASC, created_at ASC, job_id ASC LIMIT $%d OFFSET $%d`,
		jobFields, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, total, rows.Err()
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM batch_jobs WHERE job_id = $1`, jobFields), jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) GetJobItems(ctx context.Context, jobID uuid.UUID) ([]*models.JobItem, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM batch_job_items WHERE job_id = $1 ORDER BY id ASC`, itemFields),
		jobID)
	if err != nil {
		return nil, fmt.Errorf("get job items: %w", err)
	}
	defer rows.Close()

	var items []*models.JobItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *PostgresStore) GetJobDependencies(ctx context.Context, jobID uuid.UUID) ([]*models.JobDependency, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, job_id, depends_on_job_id FROM batch_job_dependencies WHERE job_id = $1`, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job dependencies: %w", err)
	}
	defer rows.Close()

	var deps []*models.JobDependency
	for rows.Next() {
		var d models.JobDependency
		if err := rows.Scan(&d.ID, &d.JobID, &d.DependsOnJobID); err != nil {
			return nil, fmt.Errorf("scan job dependency: %w", err)
		}
		deps = append(deps, &d)
	}
	return deps, rows.Err()
}

func (s *PostgresStore) JobsExist(ctx context.Context, jobIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	exists := make(map[uuid.UUID]bool, len(jobIDs))
	if len(jobIDs) == 0 {
		return exists, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT job_id FROM batch_jobs WHERE job_id = ANY($1)`, jobIDs)
	if err != nil {
		return nil, fmt.Errorf("check jobs exist: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan job id: %w", err)
		}
		exists[id] = true
	}
	return exists, rows.Err()
}

func (s *PostgresStore) QueuePosition(ctx context.Context, jobID uuid.UUID) (int, error) {
	var position int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM batch_jobs
		 WHERE status IN ('pending', 'running') AND archived = FALSE
		   AND (priority, created_at, job_id) <
		       (SELECT priority, created_at, job_id FROM batch_jobs WHERE job_id = $1)`,
		jobID).Scan(&position)
	if err != nil {
		return 0, fmt.Errorf("queue position: %w", err)
	}
	return position, nil
}

// --- Item lifecycle ---

// claimQuery picks the next pending item in dispatch order from a job whose
// dependency edges all point at successfully finished jobs, and flips it to
// running in the same statement. SKIP LOCKED keeps concurrent claimers from
// serializing on the same row; the status recheck in the UPDATE makes the
// claim at-most-once.
const claimQuery = `
WITH next_item AS (
	SELECT i.id
	FROM batch_job_items i
	JOIN batch_jobs j ON j.job_id = i.job_id
	WHERE i.status = 'pending'
		AND j.status IN ('pending', 'running')
		AND j.archived = FALSE
		AND NOT EXISTS (
			SELECT 1
			FROM batch_job_dependencies d
			JOIN batch_jobs p ON p.job_id = d.depends_on_job_id
			WHERE d.job_id = j.job_id
				AND p.status NOT IN ('completed', 'partial')
		)
	ORDER BY j.priority ASC, j.created_at ASC, i.id ASC
	LIMIT 1
	FOR UPDATE OF i SKIP LOCKED
)
UPDATE batch_job_items AS bi
SET status = 'running', started_at = now()
FROM next_item
WHERE bi.id = next_item.id AND bi.status = 'pending'
RETURNING bi.id, bi.job_id, bi.image_path, bi.perspective, bi.status, bi.error,
	bi.started_at, bi.completed_at, bi.processing_time`

func (s *PostgresStore) ClaimNextItem(ctx context.Context) (*models.JobItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback(ctx)

	item, err := scanItem(tx.QueryRow(ctx, claimQuery))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoItemAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("claim item: %w", err)
	}

	// First claim of any item moves the job pending -> running. The status
	// guard makes this a no-op on every later claim.
	_, err = tx.Exec(ctx,
		`UPDATE batch_jobs SET status = 'running', started_at = now()
		 WHERE job_id = $1 AND status = 'pending'`, item.JobID)
	if err != nil {
		return nil, fmt.Errorf("mark job running: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return item, nil
}

// CompleteItem records the item outcome and feeds it into the owning job's
// aggregate counters. All updates run in one transaction: the item CAS, the
// SQL-side counter increment, and the guarded finalization when the last item
// lands. The increment never goes through application memory, so concurrent
// completions cannot lose updates.
func (s *PostgresStore) CompleteItem(ctx context.Context, itemID int64, succeeded bool, itemErr *string) (*models.Job, error) {
	itemStatus := models.ItemStatusCompleted
	if !succeeded {
		itemStatus = models.ItemStatusFailed
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin complete: %w", err)
	}
	defer tx.Rollback(ctx)

	var jobID uuid.UUID
	err = tx.QueryRow(ctx,
		`UPDATE batch_job_items
		 SET status = $2, error = $3, completed_at = now(),
		     processing_time = (EXTRACT(EPOCH FROM (now() - started_at)) * 1000)::bigint
		 WHERE id = $1 AND status = 'running'
		 RETURNING job_id`,
		itemID, itemStatus, itemErr).Scan(&jobID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotRunning
	}
	if err != nil {
		return nil, fmt.Errorf("complete item: %w", err)
	}

	processedDelta, failedDelta := 1, 0
	if !succeeded {
		processedDelta, failedDelta = 0, 1
	}

	// Column references on the right-hand side are pre-update values, hence
	// the explicit +1 in the progress numerator.
	_, err = tx.Exec(ctx,
		`UPDATE batch_jobs
		 SET processed_images = processed_images + $2,
		     failed_images = failed_images + $3,
		     progress = ((processed_images + failed_images + 1) * 100) / total_images
		 WHERE job_id = $1`,
		jobID, processedDelta, failedDelta)
	if err != nil {
		return nil, fmt.Errorf("increment job counters: %w", err)
	}

	// Finalization only applies while the job is still running; a cancelled
	// job keeps its status even when a late in-flight item lands.
	_, err = tx.Exec(ctx,
		`UPDATE batch_jobs
		 SET status = CASE
		       WHEN failed_images = 0 THEN 'completed'
		       WHEN processed_images > 0 THEN 'partial'
		       ELSE 'failed'
		     END,
		     completed_at = now()
		 WHERE job_id = $1 AND status = 'running'
		   AND processed_images + failed_images = total_images`,
		jobID)
	if err != nil {
		return nil, fmt.Errorf("finalize job: %w", err)
	}

	job, err := scanJob(tx.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM batch_jobs WHERE job_id = $1`, jobFields), jobID))
	if err != nil {
		return nil, fmt.Errorf("reload job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit complete: %w", err)
	}
	return job, nil
}

// --- Cancellation ---

func (s *PostgresStore) CancelJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin cancel: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx,
		`SELECT status FROM batch_jobs WHERE job_id = $1 FOR UPDATE`, jobID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job status: %w", err)
	}
	if status != models.JobStatusPending && status != models.JobStatusRunning {
		return nil, ErrJobTerminal
	}

	_, err = tx.Exec(ctx,
		`UPDATE batch_jobs SET status = 'cancelled', completed_at = now() WHERE job_id = $1`, jobID)
	if err != nil {
		return nil, fmt.Errorf("cancel job: %w", err)
	}

	// Only pending items are cancelled; running items are allowed to finish.
	_, err = tx.Exec(ctx,
		`UPDATE batch_job_items SET status = 'cancelled'
		 WHERE job_id = $1 AND status = 'pending'`, jobID)
	if err != nil {
		return nil, fmt.Errorf("cancel job items: %w", err)
	}

	job, err := scanJob(tx.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM batch_jobs WHERE job_id = $1`, jobFields), jobID))
	if err != nil {
		return nil, fmt.Errorf("reload job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cancel: %w", err)
	}
	return job, nil
}

// --- Reordering ---

func (s *PostgresStore) ReorderJobs(ctx context.Context, jobIDs []uuid.UUID) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin reorder: %w", err)
	}
	defer tx.Rollback(ctx)

	// index*10 leaves gaps for fine-grained insertion without a full
	// re-sequence. Jobs not listed keep their existing priorities.
	updated := 0
	for i, id := range jobIDs {
		tag, err := tx.Exec(ctx,
			`UPDATE batch_jobs SET priority = $2 WHERE job_id = $1`, id, i*10)
		if err != nil {
			return 0, fmt.Errorf("reorder job %s: %w", id, err)
		}
		updated += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit reorder: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) SetJobArchived(ctx context.Context, jobID uuid.UUID, archived bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE batch_jobs SET archived = $2 WHERE job_id = $1`, jobID, archived)
	if err != nil {
		return fmt.Errorf("set job archived: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, scopes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
