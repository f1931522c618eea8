package models

import (
	"fmt"
	"time"
)

// Model defines the base interface for all persistent models in the translation service.
// Implementations include Job, Chunk, and TranslationRecord.
type Model interface {
	Validate() error // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// JobStatus enumerates the lifecycle states of a translation job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status is final. Terminal jobs are immutable.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ValidJobTransition enforces the allowed job state machine edges.
// Transitions never reverse: pending → processing → {completed, failed}.
// Pending → completed covers the zero-chunk short circuit on a full cache hit.
func ValidJobTransition(from, to JobStatus) bool {
	switch from {
	case JobPending:
		return to == JobProcessing || to == JobCompleted || to == JobFailed
	case JobProcessing:
		return to == JobCompleted || to == JobFailed
	default:
		return false
	}
}

// ChunkStatus enumerates the lifecycle states of a single chunk.
type ChunkStatus string

const (
	ChunkPending    ChunkStatus = "pending"
	ChunkProcessing ChunkStatus = "processing"
	ChunkCompleted  ChunkStatus = "completed"
	ChunkFailed     ChunkStatus = "failed"
)

// Job represents one end-to-end translation request.
//
// The coordinator owns status and document fields during planning and
// finalization; chunk workers mutate only the progress counters, and only
// through atomic storage-level increments.
type Job struct {
	ID              string
	Sequence        int
	SourceLang      string
	TargetLang      string
	Status          JobStatus
	TotalKeys       int
	TranslatedKeys  int
	TotalChunks     int
	CompletedChunks int
	FailedChunks    int
	Context         string // optional free-text translation context passed to the provider
	Error           string
	SourceDocument  string // original JSON document, retained for the finalize merge
	ResultDocument  string // rebuilt JSON document, set on completion
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate checks the job's invariants.
func (j *Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if j.SourceLang == "" || j.TargetLang == "" {
		return fmt.Errorf("source and target languages are required")
	}
	if j.TranslatedKeys > j.TotalKeys {
		return fmt.Errorf("translated keys (%d) exceed total keys (%d)", j.TranslatedKeys, j.TotalKeys)
	}
	if j.CompletedChunks+j.FailedChunks > j.TotalChunks {
		return fmt.Errorf("settled chunks (%d) exceed total chunks (%d)", j.CompletedChunks+j.FailedChunks, j.TotalChunks)
	}
	switch j.Status {
	case JobPending, JobProcessing, JobCompleted, JobFailed:
	default:
		return fmt.Errorf("invalid job status: %q", j.Status)
	}
	return nil
}

// Percent returns the translated-leaf percentage in [0, 100].
// A job with no leaves reports 0.
func (j *Job) Percent() float64 {
	if j.TotalKeys == 0 {
		return 0
	}
	return float64(j.TranslatedKeys) / float64(j.TotalKeys) * 100
}

// ETA estimates the remaining duration from the observed per-leaf rate.
// The estimate is only available once at least one leaf has been translated
// and the job has a start time; ok is false otherwise.
func (j *Job) ETA(now time.Time) (eta time.Duration, ok bool) {
	if j.TranslatedKeys == 0 || j.StartedAt == nil {
		return 0, false
	}
	elapsed := now.Sub(*j.StartedAt)
	remaining := j.TotalKeys - j.TranslatedKeys
	return elapsed / time.Duration(j.TranslatedKeys) * time.Duration(remaining), true
}

// Chunk represents a contiguous slice of leaves dispatched as one unit of work.
//
// Chunk indices are contiguous 0..TotalChunks-1 within a job, and each chunk's
// status is mutated by exactly one worker.
type Chunk struct {
	ID              string
	Sequence        int
	JobID           string
	Index           int
	Status          ChunkStatus
	ItemCount       int
	TranslatedCount int
	Error           string
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate checks the chunk's invariants.
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}
	if c.JobID == "" {
		return fmt.Errorf("chunk job ID is required")
	}
	if c.Index < 0 {
		return fmt.Errorf("chunk index must be non-negative, got %d", c.Index)
	}
	if c.ItemCount < 0 || c.TranslatedCount > c.ItemCount {
		return fmt.Errorf("translated count (%d) exceeds item count (%d)", c.TranslatedCount, c.ItemCount)
	}
	switch c.Status {
	case ChunkPending, ChunkProcessing, ChunkCompleted, ChunkFailed:
	default:
		return fmt.Errorf("invalid chunk status: %q", c.Status)
	}
	return nil
}

// TranslationRecord is a translated leaf keyed by (job, path, language pair).
//
// Records are upsert-only (last write wins) and double as a translation cache:
// a record from any prior job satisfies a new job's leaf when source text and
// language pair match exactly and the record is not marked failed.
type TranslationRecord struct {
	ID             string
	JobID          string
	Path           string
	SourceLang     string
	TargetLang     string
	SourceText     string
	TranslatedText string
	Failed         bool // true when the chunk failed and TranslatedText falls back to SourceText
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks the record's invariants.
func (r *TranslationRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("translation record ID is required")
	}
	if r.JobID == "" {
		return fmt.Errorf("translation record job ID is required")
	}
	if r.Path == "" {
		return fmt.Errorf("translation record path is required")
	}
	if r.SourceLang == "" || r.TargetLang == "" {
		return fmt.Errorf("source and target languages are required")
	}
	return nil
}

// CounterDelta is an additive update to a job's shared progress counters.
// Deltas are applied as atomic increments at the storage layer, never as
// application-level read-modify-write.
type CounterDelta struct {
	TranslatedKeys  int
	CompletedChunks int
	FailedChunks    int
}

// CounterSnapshot is the post-increment view of a job's counters, read in the
// same transaction as the increment so a worker can run the completion check
// against values that include its own update.
type CounterSnapshot struct {
	TotalKeys       int
	TranslatedKeys  int
	TotalChunks     int
	CompletedChunks int
	FailedChunks    int
}

// Settled reports whether every chunk has reached a terminal status.
func (s CounterSnapshot) Settled() bool {
	return s.TotalChunks > 0 && s.CompletedChunks+s.FailedChunks == s.TotalChunks
}
