package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/treeglot/treeglot/internal/models"
	"github.com/treeglot/treeglot/internal/shared"
)

// ChunkRepository implements models.Repository[*models.Chunk] for chunk bookkeeping.
//
// Chunks are created in bulk during planning. The (job_id, chunk_index) unique
// constraint makes replanning after a coordinator retry idempotent: existing
// rows are kept, so a chunk that already settled is not dispatched twice.
type ChunkRepository struct {
	db *sql.DB
}

// NewChunkRepository creates a new ChunkRepository with the given database connection
func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// Create inserts a new [models.Chunk] into the database with generated ID and sequence
func (r *ChunkRepository) Create(chunk *models.Chunk) error {
	sequence, err := NextSequence(r.db, "chunks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if chunk.ID == "" {
		chunk.ID = shared.GenerateID()
	}
	chunk.Sequence = sequence
	if chunk.Status == "" {
		chunk.Status = models.ChunkPending
	}

	if err := chunk.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	chunk.CreatedAt = now
	chunk.UpdatedAt = now

	query := `
		INSERT INTO chunks (id, sequence, job_id, chunk_index, status, item_count, translated_count, error, started_at, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id, chunk_index) DO NOTHING
	`

	_, err = r.db.Exec(query,
		chunk.ID,
		chunk.Sequence,
		chunk.JobID,
		chunk.Index,
		chunk.Status,
		chunk.ItemCount,
		chunk.TranslatedCount,
		chunk.Error,
		chunk.StartedAt,
		chunk.CompletedAt,
		chunk.CreatedAt,
		chunk.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}

	return nil
}

const chunkColumns = `
	id, sequence, job_id, chunk_index, status, item_count, translated_count, error,
	started_at, completed_at, created_at, updated_at
`

// Get retrieves a chunk by ID
func (r *ChunkRepository) Get(id string) (*models.Chunk, error) {
	query := "SELECT " + chunkColumns + " FROM chunks WHERE id = ?"
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByIndex retrieves a chunk by its position within a job.
func (r *ChunkRepository) GetByIndex(jobID string, index int) (*models.Chunk, error) {
	query := "SELECT " + chunkColumns + " FROM chunks WHERE job_id = ? AND chunk_index = ?"
	return r.scanOne(r.db.QueryRow(query, jobID, index))
}

// Update modifies an existing chunk in the database
func (r *ChunkRepository) Update(chunk *models.Chunk) error {
	if err := chunk.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	chunk.UpdatedAt = now

	query := `
		UPDATE chunks
		SET status = ?, translated_count = ?, error = ?, started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		chunk.Status,
		chunk.TranslatedCount,
		chunk.Error,
		chunk.StartedAt,
		chunk.CompletedAt,
		now,
		chunk.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update chunk: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrChunkNotFound, chunk.ID)
	}

	return nil
}

// MarkProcessing moves a pending chunk to processing and stamps its start
// time. Only pending chunks qualify, so a settled chunk is never reclaimed.
func (r *ChunkRepository) MarkProcessing(id string) error {
	now := time.Now()

	result, err := r.db.Exec(`
		UPDATE chunks
		SET status = ?, started_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, models.ChunkProcessing, now, now, id, models.ChunkPending)
	if err != nil {
		return fmt.Errorf("failed to mark chunk processing: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: chunk %s is not pending", shared.ErrInvalidTransition, id)
	}

	return nil
}

// MarkCompleted settles a chunk as completed with its final translated count.
func (r *ChunkRepository) MarkCompleted(id string, translatedCount int) error {
	return r.settle(id, models.ChunkCompleted, translatedCount, "")
}

// MarkFailed settles a chunk as failed, recording the error message.
func (r *ChunkRepository) MarkFailed(id string, translatedCount int, errMsg string) error {
	return r.settle(id, models.ChunkFailed, translatedCount, errMsg)
}

func (r *ChunkRepository) settle(id string, status models.ChunkStatus, translatedCount int, errMsg string) error {
	now := time.Now()

	result, err := r.db.Exec(`
		UPDATE chunks
		SET status = ?, translated_count = ?, error = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, status, translatedCount, errMsg, now, now, id, models.ChunkProcessing)
	if err != nil {
		return fmt.Errorf("failed to settle chunk: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: chunk %s is not processing", shared.ErrInvalidTransition, id)
	}

	return nil
}

// Delete removes a chunk from the database by its ID
func (r *ChunkRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM chunks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete chunk: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrChunkNotFound, id)
	}

	return nil
}

// List retrieves all chunks matching the given criteria, ordered by chunk index.
func (r *ChunkRepository) List(criteria map[string]any) ([]*models.Chunk, error) {
	query := "SELECT " + chunkColumns + " FROM chunks WHERE 1 = 1"

	args := []any{}

	if jobID, ok := criteria["job_id"].(string); ok && jobID != "" {
		query += " AND job_id = ?"
		args = append(args, jobID)
	}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY chunk_index ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		chunk, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return chunks, nil
}

// scanOne scans a single [sql.Row] into a [models.Chunk]
func (r *ChunkRepository) scanOne(row *sql.Row) (*models.Chunk, error) {
	var (
		chunk       models.Chunk
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)

	err := row.Scan(
		&chunk.ID, &chunk.Sequence, &chunk.JobID, &chunk.Index, &chunk.Status,
		&chunk.ItemCount, &chunk.TranslatedCount, &chunk.Error,
		&startedAt, &completedAt, &chunk.CreatedAt, &chunk.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, shared.ErrChunkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan chunk: %w", err)
	}

	if startedAt.Valid {
		chunk.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		chunk.CompletedAt = &completedAt.Time
	}

	return &chunk, nil
}

// scanRow scans a row from [sql.Rows] into a [models.Chunk]
func (r *ChunkRepository) scanRow(rows *sql.Rows) (*models.Chunk, error) {
	var (
		chunk       models.Chunk
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)

	err := rows.Scan(
		&chunk.ID, &chunk.Sequence, &chunk.JobID, &chunk.Index, &chunk.Status,
		&chunk.ItemCount, &chunk.TranslatedCount, &chunk.Error,
		&startedAt, &completedAt, &chunk.CreatedAt, &chunk.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan chunk: %w", err)
	}

	if startedAt.Valid {
		chunk.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		chunk.CompletedAt = &completedAt.Time
	}

	return &chunk, nil
}
