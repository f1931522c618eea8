package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/treeglot/treeglot/internal/formatter"
	"github.com/treeglot/treeglot/internal/shared"
)

// JobsList lists stored jobs, newest first.
func (r *Runner) JobsList(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openStack()
	if err != nil {
		return err
	}
	defer s.Close()

	criteria := map[string]any{"limit": cmd.Int("limit")}
	if status := cmd.String("status"); status != "" {
		criteria["status"] = status
	}

	listed, err := s.jobs.List(criteria)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(listed, cmd.Bool("pretty"))
	}

	if len(listed) == 0 {
		return r.writePlain("No jobs found.\n")
	}

	r.writePlainHeader(fmt.Sprintf("Jobs (%d)", len(listed)))
	for _, job := range listed {
		r.writePlain("%s  %s → %s  %-10s  %d/%d keys", job.ID, job.SourceLang, job.TargetLang, job.Status, job.TranslatedKeys, job.TotalKeys)
		if job.Error != "" {
			r.writePlain("  (%s)", job.Error)
		}
		r.writePlain("\n")
	}

	return nil
}

// JobStatus shows one job's status and progress.
func (r *Runner) JobStatus(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: job id", shared.ErrMissingArgument)
	}

	s, err := r.openStack()
	if err != nil {
		return err
	}
	defer s.Close()

	job, err := s.jobs.Get(id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		summary, err := formatter.ToSummaryJSON(job)
		if err != nil {
			return err
		}
		r.writePlain("%s\n", summary)
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("Job %s", job.ID))
	r.writePlain("Languages: %s → %s\n", job.SourceLang, job.TargetLang)
	r.writePlain("Status: %s\n", job.Status)
	r.writePlain("Keys: %d/%d (%.1f%%)\n", job.TranslatedKeys, job.TotalKeys, job.Percent())
	r.writePlain("Chunks: %d completed, %d failed of %d\n", job.CompletedChunks, job.FailedChunks, job.TotalChunks)
	if job.Error != "" {
		r.writePlain("Error: %s\n", job.Error)
	}

	return nil
}

// JobResult prints or saves a job's translated document.
func (r *Runner) JobResult(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: job id", shared.ErrMissingArgument)
	}

	s, err := r.openStack()
	if err != nil {
		return err
	}
	defer s.Close()

	job, err := s.jobs.Get(id)
	if err != nil {
		return err
	}

	if outputPath := cmd.String("output"); outputPath != "" {
		saved, err := formatter.WriteResultDocument(job, outputPath)
		if err != nil {
			return err
		}
		r.writePlain("Result saved to: %s\n", saved)
		return nil
	}

	if job.ResultDocument == "" {
		return fmt.Errorf("job %s has no result document (status: %s)", job.ID, job.Status)
	}

	r.writePlain("%s\n", job.ResultDocument)
	return nil
}

// JobExport writes a job report in the requested format.
func (r *Runner) JobExport(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: job id", shared.ErrMissingArgument)
	}

	s, err := r.openStack()
	if err != nil {
		return err
	}
	defer s.Close()

	job, err := s.jobs.Get(id)
	if err != nil {
		return err
	}

	records, err := s.translations.List(map[string]any{"job_id": job.ID})
	if err != nil {
		return fmt.Errorf("failed to load translation records: %w", err)
	}

	export := &formatter.JobExport{Job: job, Records: records}
	outputPath := cmd.String("output")

	switch format := cmd.String("format"); format {
	case "csv":
		result, err := formatter.WriteCSVExport(export, outputPath)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported report\n")
		r.writePlain("  Translations: %s\n", result.TranslationsFile)
		r.writePlain("  Summary: %s\n", result.SummaryFile)
	case "markdown", "md":
		result, err := formatter.WriteMarkdownExport(export, outputPath)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported report to %s\n", result.Directory)
		for _, file := range result.Files {
			r.writePlain("  %s\n", file)
		}
	case "text", "txt":
		saved, err := formatter.WriteTextExport(export, outputPath)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported report to %s\n", saved)
	default:
		return fmt.Errorf("%w: unknown format '%s' (must be csv, markdown, or text)", shared.ErrInvalidFlag, format)
	}

	return nil
}
