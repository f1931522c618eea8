package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/treeglot/treeglot/internal/jobs"
	"github.com/treeglot/treeglot/internal/models"
	"github.com/treeglot/treeglot/internal/shared"
	"github.com/treeglot/treeglot/internal/ui"
)

// RunJob submits a document as a new job and drives it to a terminal status.
func (r *Runner) RunJob(ctx context.Context, cmd *cli.Command) error {
	documentPath := cmd.StringArg("document")
	if documentPath == "" {
		return fmt.Errorf("%w: document path", shared.ErrMissingArgument)
	}

	document, err := os.ReadFile(documentPath)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	s, err := r.openStack()
	if err != nil {
		return err
	}
	defer s.Close()

	job := &models.Job{
		SourceLang:     cmd.String("source"),
		TargetLang:     cmd.String("target"),
		Context:        cmd.String("context"),
		SourceDocument: string(document),
	}
	if err := s.jobs.Create(job); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	opts := jobs.RunOptions{
		Paths:      cmd.StringSlice("paths"),
		SkipCache:  cmd.Bool("skip-cache"),
		CacheJobID: cmd.String("cache-job"),
	}

	if size := cmd.Int("chunk-size"); size > 0 {
		r.config.Jobs.ChunkSize = size
	}

	progressCh := make(chan jobs.ProgressUpdate, 64)
	coordinator, err := r.buildCoordinator(s, progressCh)
	if err != nil {
		return err
	}

	if cmd.Bool("watch") {
		return r.runWatch(ctx, coordinator, job, opts, progressCh, cmd.String("output"))
	}

	r.logger.Info("starting translation", "job_id", job.ID, "source", job.SourceLang, "target", job.TargetLang)
	r.writePlain("Translating %s (%s → %s)\n\n", documentPath, job.SourceLang, job.TargetLang)

	stop := r.watchProgress(progressCh)
	final, runErr := coordinator.Run(ctx, job.ID, opts)
	stop()

	if runErr != nil {
		return runErr
	}

	r.writePlain("\n")
	r.writePlainHeader("Translation Complete!")
	r.writePlain("Job: %s\n", final.ID)
	r.writePlain("Keys: %d/%d (%.1f%%)\n", final.TranslatedKeys, final.TotalKeys, final.Percent())
	r.writePlain("Chunks: %d completed, %d failed\n", final.CompletedChunks, final.FailedChunks)

	return r.writeResult(final, cmd.String("output"))
}

// runWatch drives the job under the interactive TUI.
func (r *Runner) runWatch(ctx context.Context, coordinator *jobs.Coordinator, job *models.Job, opts jobs.RunOptions, progressCh chan jobs.ProgressUpdate, outputPath string) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/treeglot-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	// progressCh stays open: workers abandoned by a timeout may still send
	// on it when they settle. The outcome channel ends the watch instead.
	done := make(chan ui.Outcome, 1)
	go func() {
		final, runErr := coordinator.Run(ctx, job.ID, opts)
		done <- ui.Outcome{Job: final, Err: runErr}
	}()

	model := ui.NewModel(job.ID, progressCh, done)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	final, err := r.reloadJob(job.ID)
	if err != nil {
		return err
	}
	if final.Status == models.JobCompleted {
		return r.writeResult(final, outputPath)
	}
	return nil
}

// watchProgress prints coordinator updates until the returned stop function
// is called, then drains whatever is still buffered. The channel itself is
// left open: workers abandoned by a timeout may still send when they settle.
func (r *Runner) watchProgress(updates <-chan jobs.ProgressUpdate) (stop func()) {
	quit := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case update := <-updates:
				r.printProgress(update)
			case <-quit:
				for {
					select {
					case update := <-updates:
						r.printProgress(update)
					default:
						return
					}
				}
			}
		}
	}()

	return func() {
		close(quit)
		<-done
	}
}

func (r *Runner) printProgress(update jobs.ProgressUpdate) {
	switch update.Phase {
	case jobs.PhasePlanning:
		r.writePlain("• Planning chunks...\n")
	case jobs.PhaseDispatching:
		r.writePlain("• Dispatching %d chunks (%d cache hits)\n", update.TotalChunks, update.CacheHits)
	case jobs.PhaseTranslating:
		r.writePlain("  %d/%d keys (%.1f%%)\n", update.TranslatedKeys, update.TotalKeys, update.Percent())
	case jobs.PhaseFinalizing:
		r.writePlain("• Rebuilding document...\n")
	}
}

// writeResult saves the translated document when an output path was given.
func (r *Runner) writeResult(job *models.Job, outputPath string) error {
	if outputPath == "" || job.ResultDocument == "" {
		return nil
	}
	if err := os.WriteFile(outputPath, []byte(job.ResultDocument), 0644); err != nil {
		return fmt.Errorf("failed to write result document: %w", err)
	}
	r.writePlain("Result saved to: %s\n", outputPath)
	return nil
}

// reloadJob re-reads a job on a fresh stack.
func (r *Runner) reloadJob(id string) (*models.Job, error) {
	s, err := r.openStack()
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.jobs.Get(id)
}
