package jobs

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/treeglot/treeglot/internal/models"
	"github.com/treeglot/treeglot/internal/shared"
	"github.com/treeglot/treeglot/internal/treecodec"
)

func TestChunkWorkerProcess(t *testing.T) {
	setup := func(t *testing.T, provider *fakeTranslator) (*testHarness, *ChunkWorker, *models.Job, *models.Chunk, []treecodec.Leaf) {
		t.Helper()

		h := newHarness(t, provider)
		job := h.createJob(t, buildDocument(2))
		job.TotalKeys = 2
		job.TotalChunks = 1
		if err := h.jobs.Update(job); err != nil {
			t.Fatalf("failed to update job: %v", err)
		}

		chunk := &models.Chunk{JobID: job.ID, Index: 0, ItemCount: 2}
		if err := h.chunks.Create(chunk); err != nil {
			t.Fatalf("failed to create chunk: %v", err)
		}

		leaves := []treecodec.Leaf{
			{Path: "k000", Value: "text 0"},
			{Path: "k001", Value: "text 1"},
		}

		worker := NewChunkWorker(h.jobs, h.chunks, h.translations, provider, h.hub, 1, nil, shared.NewLogger(io.Discard))
		return h, worker, job, chunk, leaves
	}

	t.Run("settling the last chunk publishes the signal", func(t *testing.T) {
		h, worker, job, chunk, leaves := setup(t, &fakeTranslator{})
		signal := h.hub.Subscribe(job.ID)

		if err := worker.Process(context.Background(), job, chunk, leaves); err != nil {
			t.Fatalf("Process() error = %v", err)
		}

		select {
		case <-signal:
		default:
			t.Fatal("expected completion signal after final chunk settled")
		}

		snapshot, err := h.jobs.Counters(job.ID)
		if err != nil {
			t.Fatalf("failed to read counters: %v", err)
		}
		if snapshot.TranslatedKeys != 2 || snapshot.CompletedChunks != 1 {
			t.Errorf("unexpected counters: %+v", snapshot)
		}
	})

	t.Run("reprocessing a settled chunk is a no-op", func(t *testing.T) {
		h, worker, job, chunk, leaves := setup(t, &fakeTranslator{})

		if err := worker.Process(context.Background(), job, chunk, leaves); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if err := worker.Process(context.Background(), job, chunk, leaves); err != nil {
			t.Fatalf("second Process() error = %v", err)
		}

		snapshot, err := h.jobs.Counters(job.ID)
		if err != nil {
			t.Fatalf("failed to read counters: %v", err)
		}
		if snapshot.CompletedChunks != 1 || snapshot.TranslatedKeys != 2 {
			t.Errorf("expected counters to increment once, got %+v", snapshot)
		}
	})

	t.Run("claim storage failure propagates", func(t *testing.T) {
		h, worker, job, chunk, leaves := setup(t, &fakeTranslator{})
		h.db.Close()

		err := worker.Process(context.Background(), job, chunk, leaves)
		if err == nil {
			t.Fatal("expected storage error from claiming on a closed database")
		}
		if errors.Is(err, shared.ErrInvalidTransition) {
			t.Errorf("storage failure misreported as a claim conflict: %v", err)
		}
	})

	t.Run("retries before settling as failed", func(t *testing.T) {
		provider := &fakeTranslator{failPaths: map[string]bool{"k000": true}}
		h, _, job, chunk, leaves := setup(t, provider)

		worker := NewChunkWorker(h.jobs, h.chunks, h.translations, provider, h.hub, 3, nil, shared.NewLogger(io.Discard))
		if err := worker.Process(context.Background(), job, chunk, leaves); err != nil {
			t.Fatalf("Process() error = %v", err)
		}

		if provider.callCount() != 3 {
			t.Errorf("expected 3 attempts, got %d", provider.callCount())
		}

		settled, err := h.chunks.Get(chunk.ID)
		if err != nil {
			t.Fatalf("failed to get chunk: %v", err)
		}
		if settled.Status != models.ChunkFailed {
			t.Errorf("expected failed, got %s", settled.Status)
		}

		snapshot, err := h.jobs.Counters(job.ID)
		if err != nil {
			t.Fatalf("failed to read counters: %v", err)
		}
		if snapshot.FailedChunks != 1 || snapshot.TranslatedKeys != 0 {
			t.Errorf("unexpected counters after failure: %+v", snapshot)
		}
	})
}
