package formatter

import (
	"strings"
	"testing"
	"time"

	"github.com/treeglot/treeglot/internal/models"
	th "github.com/treeglot/treeglot/internal/testing"
)

func sampleExport() *JobExport {
	started := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	completed := started.Add(90 * time.Second)

	return &JobExport{
		Job: &models.Job{
			ID:              "job123",
			SourceLang:      "en",
			TargetLang:      "fr",
			Status:          models.JobCompleted,
			TotalKeys:       2,
			TranslatedKeys:  2,
			TotalChunks:     1,
			CompletedChunks: 1,
			Context:         "UI strings",
			ResultDocument:  `{"greeting": "bonjour", "farewell": "au revoir"}`,
			StartedAt:       &started,
			CompletedAt:     &completed,
			CreatedAt:       started,
		},
		Records: []*models.TranslationRecord{
			{
				ID:             "rec1",
				JobID:          "job123",
				Path:           "farewell",
				SourceLang:     "en",
				TargetLang:     "fr",
				SourceText:     "goodbye",
				TranslatedText: "au revoir",
			},
			{
				ID:             "rec2",
				JobID:          "job123",
				Path:           "greeting",
				SourceLang:     "en",
				TargetLang:     "fr",
				SourceText:     "hello",
				TranslatedText: "bonjour",
			},
		},
	}
}

func failedExport() *JobExport {
	export := sampleExport()
	export.Job.Status = models.JobFailed
	export.Job.FailedChunks = 1
	export.Job.CompletedChunks = 0
	export.Job.Error = "1 of 1 chunks failed"
	export.Records[0].Failed = true
	export.Records[0].TranslatedText = export.Records[0].SourceText
	return export
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleExport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)

		if !strings.Contains(output, "Path,SourceLang,TargetLang,SourceText,TranslatedText,Status") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "greeting,en,fr,hello,bonjour,ok") {
			t.Errorf("CSV missing greeting row, got: %s", output)
		}
		if !strings.Contains(output, "farewell") {
			t.Errorf("CSV missing farewell row")
		}
	})

	t.Run("ExportToCSV marks failed records", func(t *testing.T) {
		data, err := ExportToCSV(failedExport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		if !strings.Contains(string(data), "farewell,en,fr,goodbye,goodbye,failed") {
			t.Errorf("CSV missing failed row, got: %s", data)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(sampleExport())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)

		if !strings.Contains(output, "# Translation Job job123") {
			t.Errorf("Markdown missing title")
		}
		if !strings.Contains(output, "**Context**: UI strings") {
			t.Errorf("Markdown missing context")
		}
		if !strings.Contains(output, "**Languages**: en → fr") {
			t.Errorf("Markdown missing languages")
		}
		if !strings.Contains(output, "**Keys**: 2 of 2 translated (100.0%)") {
			t.Errorf("Markdown missing key progress, got: %s", output)
		}
		if !strings.Contains(output, "**Duration**: 1m30s") {
			t.Errorf("Markdown missing duration, got: %s", output)
		}
		if !strings.Contains(output, "## Translations") {
			t.Errorf("Markdown missing translations section")
		}
		if !strings.Contains(output, "1. `farewell`: au revoir") {
			t.Errorf("Markdown missing first translation, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown flags failures", func(t *testing.T) {
		data, err := ExportToMarkdown(failedExport())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "**Error**: 1 of 1 chunks failed") {
			t.Errorf("Markdown missing error")
		}
		if !strings.Contains(output, "(failed, source kept)") {
			t.Errorf("Markdown missing failed marker, got: %s", output)
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(sampleExport())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)

		if !strings.Contains(output, "Job: job123") {
			t.Errorf("Text missing job ID")
		}
		if !strings.Contains(output, "Languages: en -> fr") {
			t.Errorf("Text missing languages")
		}
		if !strings.Contains(output, "Translations: 2") {
			t.Errorf("Text missing translation count")
		}
		if !strings.Contains(output, "2. greeting = bonjour") {
			t.Errorf("Text missing translation line, got: %s", output)
		}
	})

	t.Run("ToSummaryJSON", func(t *testing.T) {
		data, err := ToSummaryJSON(sampleExport().Job)
		if err != nil {
			t.Fatalf("ToSummaryJSON failed: %v", err)
		}

		output := string(data)

		if !strings.Contains(output, `"id": "job123"`) {
			t.Errorf("JSON missing id field, got: %s", output)
		}
		if !strings.Contains(output, `"status": "completed"`) {
			t.Errorf("JSON missing status field")
		}
		if strings.Contains(output, "bonjour") {
			t.Errorf("Summary should not embed the documents")
		}
	})
}

func TestWriters(t *testing.T) {
	t.Run("WriteCSVExport", func(t *testing.T) {
		t.Run("WithDefaultPath", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := th.MustGetwd(t)
			th.MustChdir(t, tempDir)
			defer th.MustChdir(t, originalDir)

			result, err := WriteCSVExport(sampleExport(), "")
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}

			if result.TranslationsFile != "job123_translations.csv" {
				t.Errorf("Expected 'job123_translations.csv', got '%s'", result.TranslationsFile)
			}
			if result.SummaryFile != "job123_summary.json" {
				t.Errorf("Expected 'job123_summary.json', got '%s'", result.SummaryFile)
			}

			th.AssertFileExists(t, result.TranslationsFile)
			th.AssertFileExists(t, result.SummaryFile)

			csvContent := th.MustReadFile(t, result.TranslationsFile)
			if !strings.Contains(csvContent, "Path,SourceLang,TargetLang") {
				t.Errorf("CSV missing headers")
			}

			summaryContent := th.MustReadFile(t, result.SummaryFile)
			if !strings.Contains(summaryContent, "job123") {
				t.Errorf("Summary JSON missing job ID")
			}
		})

		t.Run("WithCustomPath", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := th.MustGetwd(t)
			th.MustChdir(t, tempDir)
			defer th.MustChdir(t, originalDir)

			result, err := WriteCSVExport(sampleExport(), "custom_report")
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}

			if result.TranslationsFile != "custom_report_translations.csv" {
				t.Errorf("Expected 'custom_report_translations.csv', got '%s'", result.TranslationsFile)
			}
			th.AssertFileExists(t, result.TranslationsFile)
			th.AssertFileExists(t, result.SummaryFile)
		})
	})

	t.Run("WriteMarkdownExport", func(t *testing.T) {
		t.Run("WithDefaultDirectory", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := th.MustGetwd(t)
			th.MustChdir(t, tempDir)
			defer th.MustChdir(t, originalDir)

			result, err := WriteMarkdownExport(sampleExport(), "")
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}

			if result.Directory != "job123" {
				t.Errorf("Expected directory 'job123', got '%s'", result.Directory)
			}
			th.AssertDirExists(t, result.Directory)
			th.AssertFileExists(t, result.Directory+"/README.md")
			th.AssertFileExists(t, result.Directory+"/result.json")

			content := th.MustReadFile(t, result.Directory+"/result.json")
			if !strings.Contains(content, "bonjour") {
				t.Errorf("result.json missing translated document")
			}
		})

		t.Run("WithoutResultDocument", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := th.MustGetwd(t)
			th.MustChdir(t, tempDir)
			defer th.MustChdir(t, originalDir)

			export := sampleExport()
			export.Job.ResultDocument = ""

			result, err := WriteMarkdownExport(export, "report_dir")
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}

			if len(result.Files) != 1 {
				t.Errorf("Expected only README.md, got %v", result.Files)
			}
		})
	})

	t.Run("WriteTextExport", func(t *testing.T) {
		tempDir := t.TempDir()
		originalDir := th.MustGetwd(t)
		th.MustChdir(t, tempDir)
		defer th.MustChdir(t, originalDir)

		filepath, err := WriteTextExport(sampleExport(), "")
		if err != nil {
			t.Fatalf("WriteTextExport failed: %v", err)
		}

		if filepath != "job123_translations.txt" {
			t.Errorf("Expected 'job123_translations.txt', got '%s'", filepath)
		}
		th.AssertFileExists(t, filepath)

		content := th.MustReadFile(t, filepath)
		if !strings.Contains(content, "Job: job123") {
			t.Errorf("Text missing job header")
		}
	})

	t.Run("WriteResultDocument", func(t *testing.T) {
		t.Run("WithDefaultPath", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := th.MustGetwd(t)
			th.MustChdir(t, tempDir)
			defer th.MustChdir(t, originalDir)

			filepath, err := WriteResultDocument(sampleExport().Job, "")
			if err != nil {
				t.Fatalf("WriteResultDocument failed: %v", err)
			}

			if filepath != "job123.json" {
				t.Errorf("Expected 'job123.json', got '%s'", filepath)
			}
			th.AssertFileExists(t, filepath)

			content := th.MustReadFile(t, filepath)
			if !strings.Contains(content, "au revoir") {
				t.Errorf("Result document missing translations")
			}
		})

		t.Run("NoResultYet", func(t *testing.T) {
			job := sampleExport().Job
			job.ResultDocument = ""

			if _, err := WriteResultDocument(job, ""); err == nil {
				t.Error("WriteResultDocument should fail when no result exists")
			}
		})
	})
}
