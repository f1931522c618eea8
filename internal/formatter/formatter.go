// package formatter provides functions to export job reports to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/treeglot/treeglot/internal/models"
	"github.com/treeglot/treeglot/internal/shared"
)

// JobExport bundles a job with its translation records for report generation.
type JobExport struct {
	Job     *models.Job
	Records []*models.TranslationRecord
}

// ExportToCSV converts a JobExport to CSV format with columns: Path, SourceLang, TargetLang, SourceText, TranslatedText, Status
func ExportToCSV(export *JobExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Path", "SourceLang", "TargetLang", "SourceText", "TranslatedText", "Status"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, record := range export.Records {
		row := []string{
			record.Path,
			record.SourceLang,
			record.TargetLang,
			record.SourceText,
			record.TranslatedText,
			recordStatus(record),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a JobExport to a Markdown report
func ExportToMarkdown(export *JobExport) ([]byte, error) {
	var buf bytes.Buffer
	job := export.Job

	buf.WriteString(fmt.Sprintf("# Translation Job %s\n\n", job.ID))

	if job.Context != "" {
		buf.WriteString(fmt.Sprintf("**Context**: %s\n\n", job.Context))
	}

	buf.WriteString(fmt.Sprintf("**Languages**: %s → %s\n", job.SourceLang, job.TargetLang))
	buf.WriteString(fmt.Sprintf("**Status**: %s\n", job.Status))
	buf.WriteString(fmt.Sprintf("**Keys**: %d of %d translated (%.1f%%)\n", job.TranslatedKeys, job.TotalKeys, job.Percent()))
	buf.WriteString(fmt.Sprintf("**Chunks**: %d completed, %d failed of %d\n", job.CompletedChunks, job.FailedChunks, job.TotalChunks))

	if job.StartedAt != nil && job.CompletedAt != nil {
		buf.WriteString(fmt.Sprintf("**Duration**: %s\n", shared.FormatDuration(job.CompletedAt.Sub(*job.StartedAt))))
	}
	if job.Error != "" {
		buf.WriteString(fmt.Sprintf("**Error**: %s\n", job.Error))
	}
	buf.WriteString("\n")

	buf.WriteString("## Translations\n\n")
	for i, record := range export.Records {
		failedPart := ""
		if record.Failed {
			failedPart = " (failed, source kept)"
		}
		buf.WriteString(fmt.Sprintf("%d. `%s`: %s%s\n", i+1, record.Path, record.TranslatedText, failedPart))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a JobExport to plain text format
func ExportToText(export *JobExport) ([]byte, error) {
	var buf bytes.Buffer
	job := export.Job

	buf.WriteString(fmt.Sprintf("Job: %s\n", job.ID))
	buf.WriteString(fmt.Sprintf("Languages: %s -> %s\n", job.SourceLang, job.TargetLang))
	buf.WriteString(fmt.Sprintf("Status: %s\n", job.Status))
	if job.Error != "" {
		buf.WriteString(fmt.Sprintf("Error: %s\n", job.Error))
	}
	buf.WriteString(fmt.Sprintf("Translations: %d\n\n", len(export.Records)))

	for i, record := range export.Records {
		buf.WriteString(fmt.Sprintf("%d. %s = %s\n", i+1, record.Path, record.TranslatedText))
	}

	return buf.Bytes(), nil
}

// jobSummary is the exported job metadata, without the embedded documents.
type jobSummary struct {
	ID              string     `json:"id"`
	SourceLang      string     `json:"source_lang"`
	TargetLang      string     `json:"target_lang"`
	Status          string     `json:"status"`
	TotalKeys       int        `json:"total_keys"`
	TranslatedKeys  int        `json:"translated_keys"`
	TotalChunks     int        `json:"total_chunks"`
	CompletedChunks int        `json:"completed_chunks"`
	FailedChunks    int        `json:"failed_chunks"`
	Context         string     `json:"context,omitempty"`
	Error           string     `json:"error,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ToSummaryJSON generates a JSON representation of job metadata (without documents)
func ToSummaryJSON(job *models.Job) ([]byte, error) {
	summary := jobSummary{
		ID:              job.ID,
		SourceLang:      job.SourceLang,
		TargetLang:      job.TargetLang,
		Status:          string(job.Status),
		TotalKeys:       job.TotalKeys,
		TranslatedKeys:  job.TranslatedKeys,
		TotalChunks:     job.TotalChunks,
		CompletedChunks: job.CompletedChunks,
		FailedChunks:    job.FailedChunks,
		Context:         job.Context,
		Error:           job.Error,
		StartedAt:       job.StartedAt,
		CompletedAt:     job.CompletedAt,
		CreatedAt:       job.CreatedAt,
	}
	return shared.MarshalJSON(summary, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TranslationsFile string
	SummaryFile      string
}

// WriteCSVExport exports a job report to CSV format with accompanying summary JSON file.
//
// Defaults to the job ID as the base filename & creates {base}_translations.csv and {base}_summary.json
func WriteCSVExport(export *JobExport, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = export.Job.ID
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	translationsFile := baseFilepath + "_translations.csv"
	if err := os.WriteFile(translationsFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	summaryJSON, err := ToSummaryJSON(export.Job)
	if err != nil {
		return nil, fmt.Errorf("failed to generate summary JSON: %w", err)
	}

	summaryFile := baseFilepath + "_summary.json"
	if err := os.WriteFile(summaryFile, summaryJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write summary file: %w", err)
	}

	return &CSVExportResult{
		TranslationsFile: translationsFile,
		SummaryFile:      summaryFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory string
	Files     []string
}

// WriteMarkdownExport exports a job report to Markdown format in a dedicated directory.
//
// Directory name defaults to the job ID.
// Creates {dir}/README.md, plus {dir}/result.json when the job has a result document.
func WriteMarkdownExport(export *JobExport, outputDir string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = export.Job.ID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	mdData, err := ExportToMarkdown(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := fmt.Sprintf("%s/README.md", outputDir)
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	result.Files = append(result.Files, mdFile)

	if export.Job.ResultDocument != "" {
		resultFile := fmt.Sprintf("%s/result.json", outputDir)
		if err := os.WriteFile(resultFile, []byte(export.Job.ResultDocument), 0644); err != nil {
			return nil, fmt.Errorf("failed to write result document: %w", err)
		}
		result.Files = append(result.Files, resultFile)
	}

	return result, nil
}

// WriteTextExport exports a job report to plain text format.
//
// Defaults to {job.ID}_translations.txt as the filename.
func WriteTextExport(export *JobExport, filepath string) (string, error) {
	if filepath == "" {
		filepath = fmt.Sprintf("%s_translations.txt", export.Job.ID)
	}

	textData, err := ExportToText(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(filepath, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return filepath, nil
}

// WriteResultDocument writes the job's translated document to a file.
//
// Defaults to {job.ID}.json as the filename. Fails if the job has no result yet.
func WriteResultDocument(job *models.Job, filepath string) (string, error) {
	if job.ResultDocument == "" {
		return "", fmt.Errorf("job %s has no result document", job.ID)
	}

	if filepath == "" {
		filepath = fmt.Sprintf("%s.json", job.ID)
	}

	if err := os.WriteFile(filepath, []byte(job.ResultDocument), 0644); err != nil {
		return "", fmt.Errorf("failed to write result document: %w", err)
	}

	return filepath, nil
}

func recordStatus(record *models.TranslationRecord) string {
	if record.Failed {
		return "failed"
	}
	return "ok"
}
