package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/treeglot/treeglot/internal/models"
	"github.com/treeglot/treeglot/internal/repositories"
	"github.com/treeglot/treeglot/internal/shared"
	"github.com/treeglot/treeglot/internal/treecodec"
)

// RunOptions tune a single coordinator run.
type RunOptions struct {
	// Paths restricts translation to the named leaves or subtrees.
	// Empty means the whole document.
	Paths []string
	// SkipCache bypasses the translation cache for this run.
	SkipCache bool
	// CacheJobID restricts cache lookups to the named earlier job's
	// records. Empty means the whole cache.
	CacheJobID string
	// Timeout overrides the configured await-completion deadline when
	// positive.
	Timeout time.Duration
}

// Coordinator drives one job from pending to a terminal status.
//
// It plans the document into cache hits and chunks, fans the chunks out to
// workers under a concurrency cap, waits for the completion signal, and
// finalizes the job against the authoritative stored counters.
type Coordinator struct {
	jobs         *repositories.JobRepository
	chunks       *repositories.ChunkRepository
	translations *repositories.TranslationRepository
	worker       *ChunkWorker
	hub          *SignalHub
	config       shared.JobsConfig
	progress     chan<- ProgressUpdate
	logger       *log.Logger
}

// NewCoordinator wires a coordinator. progress may be nil.
func NewCoordinator(
	jobRepo *repositories.JobRepository,
	chunkRepo *repositories.ChunkRepository,
	translationRepo *repositories.TranslationRepository,
	worker *ChunkWorker,
	hub *SignalHub,
	config shared.JobsConfig,
	progress chan<- ProgressUpdate,
	logger *log.Logger,
) *Coordinator {
	return &Coordinator{
		jobs:         jobRepo,
		chunks:       chunkRepo,
		translations: translationRepo,
		worker:       worker,
		hub:          hub,
		config:       config,
		progress:     progress,
		logger:       logger,
	}
}

// Run executes the job to a terminal status and returns the final job.
//
// Terminal jobs are immutable; running one returns ErrJobTerminal. Planning
// and dispatch failures fail the job immediately; the retry budget is spent
// only on the await timeout, where each retry re-dispatches the chunks that
// are still pending (claims are guarded, settled work is never redone)
// before the job is declared failed.
func (c *Coordinator) Run(ctx context.Context, jobID string, opts RunOptions) (*models.Job, error) {
	job, err := c.jobs.Get(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, fmt.Errorf("%w: %s is %s", shared.ErrJobTerminal, job.ID, job.Status)
	}

	// Subscribe before any chunk can settle so the signal is never lost.
	signal := c.hub.Subscribe(job.ID)
	defer c.hub.Unsubscribe(job.ID)

	plan, chunkSets, err := c.plan(job, opts)
	if err != nil {
		return c.fail(job, err)
	}

	if len(chunkSets) == 0 {
		// Every leaf was a cache hit or placeholder; no workers needed.
		c.logger.Info("job satisfied without provider calls", "job_id", job.ID, "cache_hits", len(plan.Hits))
		return c.finalize(job)
	}

	if err := c.jobs.Transition(job.ID, job.Status, models.JobProcessing); err != nil {
		return nil, err
	}

	c.sendProgress(ProgressUpdate{
		JobID:       job.ID,
		Phase:       PhaseDispatching,
		TotalKeys:   job.TotalKeys,
		TotalChunks: job.TotalChunks,
		CacheHits:   len(plan.Hits),
		Timestamp:   time.Now(),
	})

	retries := c.config.CoordinatorRetries
	if retries < 0 {
		retries = 0
	}
	timeout := c.config.Timeout()
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	for attempt := 0; attempt <= retries; attempt++ {
		if err := c.dispatch(ctx, job, chunkSets); err != nil {
			return c.fail(job, err)
		}

		select {
		case <-signal:
			return c.finalize(job)
		case <-time.After(timeout):
			c.logger.Warn("timed out awaiting completion", "job_id", job.ID, "attempt", attempt+1)
		case <-ctx.Done():
			return c.fail(job, ctx.Err())
		}
	}

	return c.fail(job, fmt.Errorf("%w after %s", shared.ErrJobTimeout, shared.FormatDuration(timeout)))
}

// plan flattens the document, resolves the cache, persists cache hits, splits
// the remainder into chunks, and stores the job's totals.
func (c *Coordinator) plan(job *models.Job, opts RunOptions) (CachePlan, [][]treecodec.Leaf, error) {
	c.sendProgress(ProgressUpdate{JobID: job.ID, Phase: PhasePlanning, Timestamp: time.Now()})

	var leaves []treecodec.Leaf
	var err error
	if len(opts.Paths) > 0 {
		leaves, err = treecodec.FlattenPaths([]byte(job.SourceDocument), opts.Paths)
	} else {
		leaves, err = treecodec.Flatten([]byte(job.SourceDocument))
	}
	if err != nil {
		return CachePlan{}, nil, fmt.Errorf("%w: %v", shared.ErrInvalidDocument, err)
	}

	plan, err := PlanCache(c.translations, job, leaves, opts)
	if err != nil {
		return CachePlan{}, nil, err
	}

	chunkSets := SplitLeaves(plan.Remaining, c.config.ChunkSize)

	job.TotalKeys = len(leaves)
	job.TotalChunks = len(chunkSets)
	if err := c.jobs.Update(job); err != nil {
		return CachePlan{}, nil, err
	}

	if len(plan.Hits) > 0 {
		if err := c.translations.CreateBatch(plan.Hits); err != nil {
			return CachePlan{}, nil, err
		}
		if _, err := c.jobs.IncrementCounters(job.ID, models.CounterDelta{TranslatedKeys: len(plan.Hits)}); err != nil {
			return CachePlan{}, nil, err
		}
	}

	c.logger.Info("planned job",
		"job_id", job.ID,
		"total_keys", len(leaves),
		"cache_hits", len(plan.Hits),
		"chunks", len(chunkSets),
	)

	return plan, chunkSets, nil
}

// dispatch launches a worker for each chunk that is still pending, bounded by
// the concurrency cap. Chunk rows are created idempotently, so a retry pass
// reuses the originals and skips settled work.
func (c *Coordinator) dispatch(ctx context.Context, job *models.Job, chunkSets [][]treecodec.Leaf) error {
	semaphore := make(chan struct{}, max(c.config.MaxConcurrent, 1))

	for index, leaves := range chunkSets {
		if err := c.chunks.Create(&models.Chunk{
			JobID:     job.ID,
			Index:     index,
			ItemCount: len(leaves),
		}); err != nil {
			return err
		}

		chunk, err := c.chunks.GetByIndex(job.ID, index)
		if err != nil {
			return err
		}
		if chunk.Status != models.ChunkPending {
			continue
		}

		go func(chunk *models.Chunk, leaves []treecodec.Leaf) {
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if err := c.worker.Process(ctx, job, chunk, leaves); err != nil {
				c.logger.Error("worker failed", "job_id", job.ID, "chunk", chunk.Index, "err", err)
			}
		}(chunk, leaves)
	}

	return nil
}

// finalize re-reads the authoritative counters, rebuilds the result document
// from the job's records, and moves the job to its terminal status.
func (c *Coordinator) finalize(job *models.Job) (*models.Job, error) {
	c.sendProgress(ProgressUpdate{JobID: job.ID, Phase: PhaseFinalizing, Timestamp: time.Now()})

	snapshot, err := c.jobs.Counters(job.ID)
	if err != nil {
		return nil, err
	}

	records, err := c.translations.List(map[string]any{"job_id": job.ID})
	if err != nil {
		return nil, err
	}

	leaves := make([]treecodec.Leaf, len(records))
	for i, record := range records {
		leaves[i] = treecodec.Leaf{Path: record.Path, Value: record.TranslatedText}
	}

	merged, err := treecodec.Merge([]byte(job.SourceDocument), leaves)
	if err != nil {
		return c.fail(job, fmt.Errorf("failed to rebuild document: %w", err))
	}

	current, err := c.jobs.Get(job.ID)
	if err != nil {
		return nil, err
	}

	target := models.JobCompleted
	if snapshot.FailedChunks > 0 {
		target = models.JobFailed
		current.Error = fmt.Sprintf("%d of %d chunks failed", snapshot.FailedChunks, snapshot.TotalChunks)
	}

	current.ResultDocument = string(merged)
	if err := c.jobs.Update(current); err != nil {
		return nil, err
	}
	if err := c.jobs.Transition(current.ID, current.Status, target); err != nil {
		return nil, err
	}

	final, err := c.jobs.Get(job.ID)
	if err != nil {
		return nil, err
	}

	phase := PhaseCompleted
	if target == models.JobFailed {
		phase = PhaseFailed
	}
	c.sendProgress(ProgressUpdate{
		JobID:           final.ID,
		Phase:           phase,
		TotalKeys:       snapshot.TotalKeys,
		TranslatedKeys:  snapshot.TranslatedKeys,
		TotalChunks:     snapshot.TotalChunks,
		CompletedChunks: snapshot.CompletedChunks,
		FailedChunks:    snapshot.FailedChunks,
		Message:         final.Error,
		Timestamp:       time.Now(),
	})

	c.logger.Info("job finalized", "job_id", final.ID, "status", final.Status)
	return final, nil
}

// fail moves the job to failed with the given cause and returns both the job
// and the cause.
func (c *Coordinator) fail(job *models.Job, cause error) (*models.Job, error) {
	current, err := c.jobs.Get(job.ID)
	if err != nil {
		return nil, cause
	}

	if !current.Status.Terminal() {
		current.Error = cause.Error()
		if err := c.jobs.Update(current); err != nil {
			c.logger.Error("failed to record job error", "job_id", job.ID, "err", err)
		}
		if err := c.jobs.Transition(current.ID, current.Status, models.JobFailed); err != nil {
			c.logger.Error("failed to fail job", "job_id", job.ID, "err", err)
		}
	}

	final, err := c.jobs.Get(job.ID)
	if err != nil {
		final = current
	}

	c.sendProgress(ProgressUpdate{
		JobID:     final.ID,
		Phase:     PhaseFailed,
		Message:   cause.Error(),
		Timestamp: time.Now(),
	})

	return final, cause
}

// sendProgress publishes an update without blocking the coordinator.
func (c *Coordinator) sendProgress(update ProgressUpdate) {
	if c.progress == nil {
		return
	}
	select {
	case c.progress <- update:
	default:
	}
}
