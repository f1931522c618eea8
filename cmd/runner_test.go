package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/treeglot/treeglot/internal/jobs"
	"github.com/treeglot/treeglot/internal/shared"
	tu "github.com/treeglot/treeglot/internal/testing"
)

// newTestRunner builds a runner against a throwaway database with the mock
// provider wired in.
func newTestRunner(t *testing.T) (*Runner, *bytes.Buffer, string) {
	t.Helper()

	tmpDir := t.TempDir()
	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(tmpDir, "treeglot.db")
	config.Jobs.ChunkSize = 2
	config.Jobs.MaxConcurrent = 2
	config.Jobs.WorkerRetries = 1
	config.Jobs.CoordinatorRetries = 0
	config.Jobs.TimeoutMinutes = 1

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:   config,
		Provider: &tu.MockTranslator{},
		Logger:   shared.NewLogger(io.Discard),
		Output:   output,
	})

	return runner, output, tmpDir
}

func runApp(t *testing.T, runner *Runner, args ...string) error {
	t.Helper()

	app := &cli.Command{
		Name:     "treeglot",
		Commands: runner.register(),
	}
	return app.Run(context.Background(), append([]string{"treeglot"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			provider := &tu.MockTranslator{}

			runner := NewRunner(RunnerOpts{
				Config:   config,
				Logger:   logger,
				Output:   output,
				Provider: provider,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.provider != provider {
				t.Error("expected provider to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			// channels cannot be marshaled to JSON
			err := runner.writeJSON(make(chan int), false)

			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)

			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writePlain("hello %s", "world")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) == 0 {
			t.Error("expected at least one command to be registered")
		}

		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
			}
		}
	})
}

func TestWatchProgress(t *testing.T) {
	t.Run("prints updates and leaves the channel open", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{
			Logger: shared.NewLogger(io.Discard),
			Output: output,
		})

		updates := make(chan jobs.ProgressUpdate, 8)
		stop := runner.watchProgress(updates)

		updates <- jobs.ProgressUpdate{Phase: jobs.PhaseDispatching, TotalChunks: 3, CacheHits: 1}
		updates <- jobs.ProgressUpdate{Phase: jobs.PhaseTranslating, TranslatedKeys: 2, TotalKeys: 4}
		stop()

		if !strings.Contains(output.String(), "Dispatching 3 chunks (1 cache hits)") {
			t.Errorf("missing dispatch line, got: %s", output.String())
		}
		if !strings.Contains(output.String(), "2/4 keys") {
			t.Errorf("missing progress line, got: %s", output.String())
		}

		// A worker that settles after the run returned still sends here;
		// the channel must accept it.
		updates <- jobs.ProgressUpdate{Phase: jobs.PhaseTranslating, TranslatedKeys: 4, TotalKeys: 4}
	})
}

func TestRunJob(t *testing.T) {
	t.Run("translates a document end to end", func(t *testing.T) {
		runner, output, tmpDir := newTestRunner(t)

		docPath := filepath.Join(tmpDir, "strings.json")
		if err := os.WriteFile(docPath, []byte(`{"farewell": "goodbye", "greeting": "hello"}`), 0644); err != nil {
			t.Fatalf("failed to write document: %v", err)
		}
		outPath := filepath.Join(tmpDir, "out.json")

		err := runApp(t, runner, "run", "--source", "en", "--target", "fr", "--output", outPath, docPath)
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}

		if !strings.Contains(output.String(), "Translation Complete!") {
			t.Errorf("missing completion banner, got: %s", output.String())
		}

		result, err := os.ReadFile(outPath)
		if err != nil {
			t.Fatalf("failed to read result: %v", err)
		}
		if !strings.Contains(string(result), "fr:hello") || !strings.Contains(string(result), "fr:goodbye") {
			t.Errorf("unexpected result document: %s", result)
		}
	})

	t.Run("missing document argument", func(t *testing.T) {
		runner, _, _ := newTestRunner(t)

		err := runApp(t, runner, "run", "--source", "en", "--target", "fr")
		if err == nil {
			t.Fatal("expected error for missing document")
		}
	})
}

func TestJobInspection(t *testing.T) {
	runner, output, tmpDir := newTestRunner(t)

	docPath := filepath.Join(tmpDir, "strings.json")
	if err := os.WriteFile(docPath, []byte(`{"greeting": "hello"}`), 0644); err != nil {
		t.Fatalf("failed to write document: %v", err)
	}
	if err := runApp(t, runner, "run", "--source", "en", "--target", "de", docPath); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	s, err := runner.openStack()
	if err != nil {
		t.Fatalf("failed to open stack: %v", err)
	}
	listed, err := s.jobs.List(map[string]any{})
	s.Close()
	if err != nil || len(listed) != 1 {
		t.Fatalf("expected 1 stored job, got %d (err %v)", len(listed), err)
	}
	jobID := listed[0].ID

	t.Run("list", func(t *testing.T) {
		output.Reset()

		if err := runApp(t, runner, "jobs", "list"); err != nil {
			t.Fatalf("jobs list failed: %v", err)
		}
		if !strings.Contains(output.String(), jobID) || !strings.Contains(output.String(), "en → de") {
			t.Errorf("unexpected list output: %s", output.String())
		}
	})

	t.Run("list with status filter", func(t *testing.T) {
		output.Reset()

		if err := runApp(t, runner, "jobs", "list", "--status", "failed"); err != nil {
			t.Fatalf("jobs list failed: %v", err)
		}
		if !strings.Contains(output.String(), "No jobs found.") {
			t.Errorf("expected empty list, got: %s", output.String())
		}
	})

	t.Run("status", func(t *testing.T) {
		output.Reset()

		if err := runApp(t, runner, "jobs", "status", jobID); err != nil {
			t.Fatalf("jobs status failed: %v", err)
		}
		if !strings.Contains(output.String(), "Status: completed") {
			t.Errorf("unexpected status output: %s", output.String())
		}
	})

	t.Run("status as JSON", func(t *testing.T) {
		output.Reset()

		if err := runApp(t, runner, "jobs", "status", "--json", jobID); err != nil {
			t.Fatalf("jobs status failed: %v", err)
		}
		if !strings.Contains(output.String(), `"status": "completed"`) {
			t.Errorf("unexpected JSON output: %s", output.String())
		}
	})

	t.Run("result", func(t *testing.T) {
		output.Reset()

		if err := runApp(t, runner, "jobs", "result", jobID); err != nil {
			t.Fatalf("jobs result failed: %v", err)
		}
		if !strings.Contains(output.String(), "de:hello") {
			t.Errorf("unexpected result output: %s", output.String())
		}
	})

	t.Run("export CSV report", func(t *testing.T) {
		output.Reset()
		base := filepath.Join(tmpDir, "report")

		if err := runApp(t, runner, "jobs", "export", "--format", "csv", "--output", base, jobID); err != nil {
			t.Fatalf("jobs export failed: %v", err)
		}

		tu.AssertFileExists(t, base+"_translations.csv")
		tu.AssertFileExists(t, base+"_summary.json")

		content := tu.MustReadFile(t, base+"_translations.csv")
		if !strings.Contains(content, "greeting,en,de,hello,de:hello,ok") {
			t.Errorf("unexpected CSV content: %s", content)
		}
	})

	t.Run("export rejects unknown format", func(t *testing.T) {
		if err := runApp(t, runner, "jobs", "export", "--format", "xml", jobID); err == nil {
			t.Fatal("expected error for unknown format")
		}
	})

	t.Run("status for unknown job", func(t *testing.T) {
		if err := runApp(t, runner, "jobs", "status", "missing"); err == nil {
			t.Fatal("expected error for unknown job")
		}
	})
}

func TestSetupDatabase(t *testing.T) {
	t.Run("creates config and database", func(t *testing.T) {
		tmpDir := t.TempDir()
		originalDir := tu.MustGetwd(t)
		tu.MustChdir(t, tmpDir)
		defer tu.MustChdir(t, originalDir)

		runner := NewRunner(RunnerOpts{
			Logger: shared.NewLogger(io.Discard),
			Output: &bytes.Buffer{},
		})

		if err := runApp(t, runner, "setup", "database", "--config", "config.toml"); err != nil {
			t.Fatalf("setup database failed: %v", err)
		}

		tu.AssertFileExists(t, "config.toml")
		tu.AssertFileExists(t, "treeglot.db")
	})
}

func TestSetupTranslator(t *testing.T) {
	t.Run("writes headers file from cURL command", func(t *testing.T) {
		tmpDir := t.TempDir()
		outputPath := filepath.Join(tmpDir, "headers.txt")

		runner := NewRunner(RunnerOpts{
			Logger: shared.NewLogger(io.Discard),
			Output: &bytes.Buffer{},
		})

		curl := `curl 'https://api.example.com/v1/chat/completions' -H 'Cookie: session=abc123' -H 'X-Org: acme'`
		if err := runApp(t, runner, "setup", "translator", "--curl", curl, "--output", outputPath); err != nil {
			t.Fatalf("setup translator failed: %v", err)
		}

		content := tu.MustReadFile(t, outputPath)
		if !strings.Contains(content, "Cookie: session=abc123") {
			t.Errorf("headers file missing cookie, got: %s", content)
		}
		if !strings.Contains(content, "X-Org: acme") {
			t.Errorf("headers file missing custom header, got: %s", content)
		}
	})

	t.Run("requires a cURL source", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{
			Logger: shared.NewLogger(io.Discard),
			Output: &bytes.Buffer{},
		})

		if err := runApp(t, runner, "setup", "translator"); err == nil {
			t.Fatal("expected error without --curl or --curl-file")
		}
	})
}
