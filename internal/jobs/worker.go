package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/treeglot/treeglot/internal/models"
	"github.com/treeglot/treeglot/internal/repositories"
	"github.com/treeglot/treeglot/internal/shared"
	"github.com/treeglot/treeglot/internal/translator"
	"github.com/treeglot/treeglot/internal/treecodec"
)

// ChunkWorker translates one chunk of leaves and settles its bookkeeping.
//
// A worker never fails the job on its own: a chunk that exhausts its retries
// is recorded as failed with source-text fallback records, the failed counter
// is incremented, and the coordinator decides the job's fate at finalize.
type ChunkWorker struct {
	jobs         *repositories.JobRepository
	chunks       *repositories.ChunkRepository
	translations *repositories.TranslationRepository
	provider     translator.Translator
	hub          *SignalHub
	retries      int
	progress     chan<- ProgressUpdate
	logger       *log.Logger
}

// NewChunkWorker creates a worker. retries is the number of provider attempts
// per chunk; values below 1 mean a single attempt. progress may be nil.
func NewChunkWorker(
	jobs *repositories.JobRepository,
	chunks *repositories.ChunkRepository,
	translations *repositories.TranslationRepository,
	provider translator.Translator,
	hub *SignalHub,
	retries int,
	progress chan<- ProgressUpdate,
	logger *log.Logger,
) *ChunkWorker {
	if retries < 1 {
		retries = 1
	}
	return &ChunkWorker{
		jobs:         jobs,
		chunks:       chunks,
		translations: translations,
		provider:     provider,
		hub:          hub,
		retries:      retries,
		progress:     progress,
		logger:       logger,
	}
}

// Process translates the chunk's leaves and settles the chunk.
//
// The returned error reports infrastructure failures (storage); translation
// failures are absorbed into the chunk's failed status.
func (w *ChunkWorker) Process(ctx context.Context, job *models.Job, chunk *models.Chunk, leaves []treecodec.Leaf) error {
	if err := w.chunks.MarkProcessing(chunk.ID); err != nil {
		if errors.Is(err, shared.ErrInvalidTransition) {
			// Another attempt already claimed or settled this chunk.
			w.logger.Debug("skipping chunk", "job_id", job.ID, "chunk", chunk.Index, "err", err)
			return nil
		}
		return err
	}

	translations, translateErr := w.translate(ctx, job, leaves)

	records := make([]*models.TranslationRecord, len(leaves))
	for i, leaf := range leaves {
		record := &models.TranslationRecord{
			JobID:      job.ID,
			Path:       leaf.Path,
			SourceLang: job.SourceLang,
			TargetLang: job.TargetLang,
			SourceText: leaf.Value,
		}
		if translateErr == nil {
			record.TranslatedText = translations[i]
		} else {
			// Fallback keeps the document whole: untranslated leaves
			// carry their source text, marked failed so the cache
			// never serves them.
			record.TranslatedText = leaf.Value
			record.Failed = true
		}
		records[i] = record
	}

	if err := w.translations.CreateBatch(records); err != nil {
		return err
	}

	var delta models.CounterDelta
	if translateErr == nil {
		if err := w.chunks.MarkCompleted(chunk.ID, len(leaves)); err != nil {
			return err
		}
		delta = models.CounterDelta{TranslatedKeys: len(leaves), CompletedChunks: 1}
	} else {
		w.logger.Error("chunk failed", "job_id", job.ID, "chunk", chunk.Index, "err", translateErr)
		if err := w.chunks.MarkFailed(chunk.ID, 0, translateErr.Error()); err != nil {
			return err
		}
		delta = models.CounterDelta{FailedChunks: 1}
	}

	snapshot, err := w.jobs.IncrementCounters(job.ID, delta)
	if err != nil {
		return err
	}

	w.sendProgress(ProgressUpdate{
		JobID:           job.ID,
		Phase:           PhaseTranslating,
		TotalKeys:       snapshot.TotalKeys,
		TranslatedKeys:  snapshot.TranslatedKeys,
		TotalChunks:     snapshot.TotalChunks,
		CompletedChunks: snapshot.CompletedChunks,
		FailedChunks:    snapshot.FailedChunks,
		Timestamp:       time.Now(),
	})

	// Last chunk in settles the job: exactly one worker sees its own
	// increment complete the set.
	if snapshot.Settled() {
		w.hub.Publish(job.ID)
	}

	return nil
}

// translate calls the provider with bounded retries. The provider client
// already retries transport-level failures; these retries cover malformed
// responses.
func (w *ChunkWorker) translate(ctx context.Context, job *models.Job, leaves []treecodec.Leaf) ([]string, error) {
	items := make([]translator.Item, len(leaves))
	for i, leaf := range leaves {
		items[i] = translator.Item{Path: leaf.Path, Text: leaf.Value}
	}

	req := translator.Request{
		SourceLang: job.SourceLang,
		TargetLang: job.TargetLang,
		Context:    job.Context,
		Items:      items,
	}

	var lastErr error
	for attempt := 0; attempt < w.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		translations, err := w.provider.Translate(ctx, req)
		if err == nil {
			return translations, nil
		}
		lastErr = err
		w.logger.Warn("translation attempt failed", "job_id", job.ID, "attempt", attempt+1, "err", err)
	}
	return nil, lastErr
}

// sendProgress publishes an update without ever blocking the worker.
func (w *ChunkWorker) sendProgress(update ProgressUpdate) {
	if w.progress == nil {
		return
	}
	select {
	case w.progress <- update:
	default:
	}
}
