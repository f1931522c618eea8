package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/treeglot/treeglot/internal/models"
	"github.com/treeglot/treeglot/internal/shared"
)

// JobRepository implements models.Repository[*models.Job] for translation jobs.
//
// Besides CRUD it owns the two coordination primitives the job lifecycle
// depends on: guarded status transitions and atomic counter increments with a
// same-transaction snapshot read.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new JobRepository with the given database connection
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new [models.Job] into the database with generated ID and sequence
func (r *JobRepository) Create(job *models.Job) error {
	sequence, err := NextSequence(r.db, "jobs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if job.ID == "" {
		job.ID = shared.GenerateID()
	}
	job.Sequence = sequence
	if job.Status == "" {
		job.Status = models.JobPending
	}

	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now

	query := `
		INSERT INTO jobs (
			id, sequence, source_lang, target_lang, status,
			total_keys, translated_keys, total_chunks, completed_chunks, failed_chunks,
			context, error, source_document, result_document,
			started_at, completed_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		job.ID,
		job.Sequence,
		job.SourceLang,
		job.TargetLang,
		job.Status,
		job.TotalKeys,
		job.TranslatedKeys,
		job.TotalChunks,
		job.CompletedChunks,
		job.FailedChunks,
		job.Context,
		job.Error,
		job.SourceDocument,
		job.ResultDocument,
		job.StartedAt,
		job.CompletedAt,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	return nil
}

const jobColumns = `
	id, sequence, source_lang, target_lang, status,
	total_keys, translated_keys, total_chunks, completed_chunks, failed_chunks,
	context, error, source_document, result_document,
	started_at, completed_at, created_at, updated_at
`

// Get retrieves a job by ID
func (r *JobRepository) Get(id string) (*models.Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs WHERE id = ?"
	return r.scanOne(r.db.QueryRow(query, id))
}

// Update modifies an existing job's mutable fields.
//
// Progress counters are intentionally excluded; they only change through
// [JobRepository.IncrementCounters].
func (r *JobRepository) Update(job *models.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	job.UpdatedAt = now

	query := `
		UPDATE jobs
		SET status = ?, total_keys = ?, total_chunks = ?, context = ?, error = ?,
		    source_document = ?, result_document = ?, started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		job.Status,
		job.TotalKeys,
		job.TotalChunks,
		job.Context,
		job.Error,
		job.SourceDocument,
		job.ResultDocument,
		job.StartedAt,
		job.CompletedAt,
		now,
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, job.ID)
	}

	return nil
}

// Transition moves a job from one status to another, enforcing the lifecycle
// state machine in the same statement so a concurrent transition cannot race
// past the guard.
func (r *JobRepository) Transition(id string, from, to models.JobStatus) error {
	if !models.ValidJobTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", shared.ErrInvalidTransition, from, to)
	}

	now := time.Now()
	query := "UPDATE jobs SET status = ?, updated_at = ?"
	args := []any{to, now}

	if to == models.JobProcessing {
		query += ", started_at = ?"
		args = append(args, now)
	}
	if to.Terminal() {
		query += ", completed_at = ?"
		args = append(args, now)
	}

	query += " WHERE id = ? AND status = ?"
	args = append(args, id, from)

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to transition job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		current, err := r.Get(id)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: job %s is %s, not %s", shared.ErrInvalidTransition, id, current.Status, from)
	}

	return nil
}

// IncrementCounters applies a counter delta as an atomic storage-level
// increment and returns a snapshot of all counters read in the same
// transaction.
//
// Workers racing to finish a job each see a snapshot that includes their own
// update, so exactly one of them observes the final chunk settling.
func (r *JobRepository) IncrementCounters(id string, delta models.CounterDelta) (models.CounterSnapshot, error) {
	var snapshot models.CounterSnapshot

	tx, err := r.db.Begin()
	if err != nil {
		return snapshot, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		UPDATE jobs
		SET translated_keys = translated_keys + ?,
		    completed_chunks = completed_chunks + ?,
		    failed_chunks = failed_chunks + ?,
		    updated_at = ?
		WHERE id = ?
	`, delta.TranslatedKeys, delta.CompletedChunks, delta.FailedChunks, time.Now(), id)
	if err != nil {
		return snapshot, fmt.Errorf("failed to increment counters: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return snapshot, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return snapshot, fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}

	err = tx.QueryRow(`
		SELECT total_keys, translated_keys, total_chunks, completed_chunks, failed_chunks
		FROM jobs WHERE id = ?
	`, id).Scan(
		&snapshot.TotalKeys,
		&snapshot.TranslatedKeys,
		&snapshot.TotalChunks,
		&snapshot.CompletedChunks,
		&snapshot.FailedChunks,
	)
	if err != nil {
		return snapshot, fmt.Errorf("failed to read counter snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return snapshot, fmt.Errorf("failed to commit counter transaction: %w", err)
	}

	return snapshot, nil
}

// Counters reads the current counter values without modifying them.
// The finalizer uses this to re-check totals instead of trusting a stale
// in-memory job.
func (r *JobRepository) Counters(id string) (models.CounterSnapshot, error) {
	var snapshot models.CounterSnapshot

	err := r.db.QueryRow(`
		SELECT total_keys, translated_keys, total_chunks, completed_chunks, failed_chunks
		FROM jobs WHERE id = ?
	`, id).Scan(
		&snapshot.TotalKeys,
		&snapshot.TranslatedKeys,
		&snapshot.TotalChunks,
		&snapshot.CompletedChunks,
		&snapshot.FailedChunks,
	)
	if err == sql.ErrNoRows {
		return snapshot, fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	if err != nil {
		return snapshot, fmt.Errorf("failed to read counters: %w", err)
	}

	return snapshot, nil
}

// Delete removes a job from the database by its ID
func (r *JobRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM jobs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}

	return nil
}

// List retrieves all jobs matching the given criteria, newest first.
func (r *JobRepository) List(criteria map[string]any) ([]*models.Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs WHERE 1 = 1"

	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	if target, ok := criteria["target_lang"].(string); ok && target != "" {
		query += " AND target_lang = ?"
		args = append(args, target)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, nil
}

// scanOne scans a single [sql.Row] into a [models.Job]
func (r *JobRepository) scanOne(row *sql.Row) (*models.Job, error) {
	var (
		job         models.Job
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)

	err := row.Scan(
		&job.ID, &job.Sequence, &job.SourceLang, &job.TargetLang, &job.Status,
		&job.TotalKeys, &job.TranslatedKeys, &job.TotalChunks, &job.CompletedChunks, &job.FailedChunks,
		&job.Context, &job.Error, &job.SourceDocument, &job.ResultDocument,
		&startedAt, &completedAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, shared.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}

	return &job, nil
}

// scanRow scans a row from [sql.Rows] into a [models.Job]
func (r *JobRepository) scanRow(rows *sql.Rows) (*models.Job, error) {
	var (
		job         models.Job
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)

	err := rows.Scan(
		&job.ID, &job.Sequence, &job.SourceLang, &job.TargetLang, &job.Status,
		&job.TotalKeys, &job.TranslatedKeys, &job.TotalChunks, &job.CompletedChunks, &job.FailedChunks,
		&job.Context, &job.Error, &job.SourceDocument, &job.ResultDocument,
		&startedAt, &completedAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}

	return &job, nil
}
