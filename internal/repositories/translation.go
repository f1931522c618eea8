package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/treeglot/treeglot/internal/models"
	"github.com/treeglot/treeglot/internal/shared"
)

// TranslationRepository implements models.Repository[*models.TranslationRecord].
//
// Records are written with last-write-wins upserts keyed on
// (job_id, path, source_lang, target_lang), so a worker retry never produces
// duplicate rows. The same table doubles as the cross-job translation cache.
type TranslationRepository struct {
	db *sql.DB
}

// NewTranslationRepository creates a new TranslationRepository with the given database connection
func NewTranslationRepository(db *sql.DB) *TranslationRepository {
	return &TranslationRepository{db: db}
}

// Create inserts a new [models.TranslationRecord], replacing any existing
// record with the same (job_id, path, source_lang, target_lang) scope.
func (r *TranslationRepository) Create(record *models.TranslationRecord) error {
	if record.ID == "" {
		record.ID = shared.GenerateID()
	}

	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now

	query := `
		INSERT INTO translations (id, job_id, path, source_lang, target_lang, source_text, translated_text, failed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id, path, source_lang, target_lang) DO UPDATE SET
			source_text = excluded.source_text,
			translated_text = excluded.translated_text,
			failed = excluded.failed,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query,
		record.ID,
		record.JobID,
		record.Path,
		record.SourceLang,
		record.TargetLang,
		record.SourceText,
		record.TranslatedText,
		record.Failed,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert translation: %w", err)
	}

	return nil
}

// CreateBatch upserts a set of records in one transaction.
func (r *TranslationRepository) CreateBatch(records []*models.TranslationRecord) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO translations (id, job_id, path, source_lang, target_lang, source_text, translated_text, failed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id, path, source_lang, target_lang) DO UPDATE SET
			source_text = excluded.source_text,
			translated_text = excluded.translated_text,
			failed = excluded.failed,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, record := range records {
		if record.ID == "" {
			record.ID = shared.GenerateID()
		}
		if err := record.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		record.CreatedAt = now
		record.UpdatedAt = now

		if _, err := stmt.Exec(
			record.ID,
			record.JobID,
			record.Path,
			record.SourceLang,
			record.TargetLang,
			record.SourceText,
			record.TranslatedText,
			record.Failed,
			record.CreatedAt,
			record.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to upsert translation for %s: %w", record.Path, err)
		}
	}

	return tx.Commit()
}

const translationColumns = `
	id, job_id, path, source_lang, target_lang, source_text, translated_text, failed, created_at, updated_at
`

// Get retrieves a translation record by ID
func (r *TranslationRepository) Get(id string) (*models.TranslationRecord, error) {
	query := "SELECT " + translationColumns + " FROM translations WHERE id = ?"
	return r.scanOne(r.db.QueryRow(query, id))
}

// Lookup finds a cached translation for the given source text and language
// pair. A non-empty scopeJobID restricts the search to that job's records;
// empty searches across all previous jobs. Failed records never satisfy a
// lookup. Returns (nil, nil) on a cache miss.
func (r *TranslationRepository) Lookup(sourceText, sourceLang, targetLang, scopeJobID string) (*models.TranslationRecord, error) {
	query := "SELECT " + translationColumns + `
		FROM translations
		WHERE source_text = ? AND source_lang = ? AND target_lang = ? AND failed = 0
	`
	args := []any{sourceText, sourceLang, targetLang}

	if scopeJobID != "" {
		query += " AND job_id = ?"
		args = append(args, scopeJobID)
	}

	query += " ORDER BY updated_at DESC LIMIT 1"

	record, err := r.scanOne(r.db.QueryRow(query, args...))
	if err == errTranslationNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Update modifies an existing translation record in the database
func (r *TranslationRepository) Update(record *models.TranslationRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	record.UpdatedAt = now

	query := `
		UPDATE translations
		SET source_text = ?, translated_text = ?, failed = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		record.SourceText,
		record.TranslatedText,
		record.Failed,
		now,
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update translation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("translation not found: %s", record.ID)
	}

	return nil
}

// Delete removes a translation record from the database by its ID
func (r *TranslationRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM translations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete translation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("translation not found: %s", id)
	}

	return nil
}

// List retrieves all translation records matching the given criteria,
// ordered by path for deterministic output.
func (r *TranslationRepository) List(criteria map[string]any) ([]*models.TranslationRecord, error) {
	query := "SELECT " + translationColumns + " FROM translations WHERE 1 = 1"

	args := []any{}

	if jobID, ok := criteria["job_id"].(string); ok && jobID != "" {
		query += " AND job_id = ?"
		args = append(args, jobID)
	}

	if failed, ok := criteria["failed"].(bool); ok {
		query += " AND failed = ?"
		args = append(args, failed)
	}

	query += " ORDER BY path ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query translations: %w", err)
	}
	defer rows.Close()

	var records []*models.TranslationRecord
	for rows.Next() {
		record, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

var errTranslationNotFound = fmt.Errorf("translation not found")

// scanOne scans a single [sql.Row] into a [models.TranslationRecord]
func (r *TranslationRepository) scanOne(row *sql.Row) (*models.TranslationRecord, error) {
	var record models.TranslationRecord

	err := row.Scan(
		&record.ID, &record.JobID, &record.Path, &record.SourceLang, &record.TargetLang,
		&record.SourceText, &record.TranslatedText, &record.Failed,
		&record.CreatedAt, &record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errTranslationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan translation: %w", err)
	}

	return &record, nil
}

// scanRow scans a row from [sql.Rows] into a [models.TranslationRecord]
func (r *TranslationRepository) scanRow(rows *sql.Rows) (*models.TranslationRecord, error) {
	var record models.TranslationRecord

	err := rows.Scan(
		&record.ID, &record.JobID, &record.Path, &record.SourceLang, &record.TargetLang,
		&record.SourceText, &record.TranslatedText, &record.Failed,
		&record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan translation: %w", err)
	}

	return &record, nil
}
