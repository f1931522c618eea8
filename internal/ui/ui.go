package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/treeglot/treeglot/internal/jobs"
	"github.com/treeglot/treeglot/internal/models"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	WatchView ViewState = iota
	ResultView
)

// Outcome is the final state of a watched job run.
type Outcome struct {
	Job *models.Job
	Err error
}

// Model represents the TUI application state.
type Model struct {
	view     ViewState
	jobID    string
	updates  <-chan jobs.ProgressUpdate
	done     <-chan Outcome
	progress jobs.ProgressUpdate
	outcome  *Outcome
	spin     spinner.Model
	bar      progress.Model
	help     help.Model
	keys     keyMap
	width    int
}

type progressUpdateMsg jobs.ProgressUpdate

type jobFinishedMsg Outcome

// NewModel creates a TUI model watching the given job.
//
// The runner feeds updates on the progress channel and sends exactly one
// [Outcome] on done when the run finishes.
func NewModel(jobID string, updates <-chan jobs.ProgressUpdate, done <-chan Outcome) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = NewStyle("#7D56F4")

	return &Model{
		view:    WatchView,
		jobID:   jobID,
		updates: updates,
		done:    done,
		spin:    sp,
		bar:     progress.New(progress.WithDefaultGradient()),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts the spinner and begins consuming progress updates.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.waitForProgress())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(msg.Width-8, 60)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case progressUpdateMsg:
		m.progress = jobs.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case jobFinishedMsg:
		outcome := Outcome(msg)
		m.outcome = &outcome
		m.view = ResultView
		return m, nil
	}

	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case WatchView:
		return m.renderWatch()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		select {
		case update, ok := <-m.updates:
			if !ok {
				return jobFinishedMsg(<-m.done)
			}
			return progressUpdateMsg(update)
		case outcome := <-m.done:
			return jobFinishedMsg(outcome)
		}
	}
}

func (m *Model) renderWatch() string {
	title := styles.title.Render(fmt.Sprintf("Translating job %s", m.jobID))

	phase := phaseLabel(m.progress)
	bar := m.bar.ViewAs(m.progress.Percent() / 100)

	counts := fmt.Sprintf(
		"Keys: %d/%d  Chunks: %d+%d/%d  Cache hits: %d",
		m.progress.TranslatedKeys, m.progress.TotalKeys,
		m.progress.CompletedChunks, m.progress.FailedChunks, m.progress.TotalChunks,
		m.progress.CacheHits,
	)

	helpView := m.help.ShortHelpView(m.keys.ShortHelp())

	return fmt.Sprintf("%s\n%s %s\n\n%s\n%s\n\n%s", title, m.spin.View(), phase, bar, counts, helpView)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView(m.keys.ShortHelp())

	if m.outcome.Err != nil {
		header := styles.err.Render("✗ Translation failed")
		return fmt.Sprintf("%s\n\n%v\n\n%s", header, m.outcome.Err, helpView)
	}

	job := m.outcome.Job
	header := styles.ok.Render("✓ Translation complete")
	info := fmt.Sprintf(
		"\nJob: %s\nLanguages: %s → %s\nKeys: %d/%d (%.1f%%)",
		job.ID, job.SourceLang, job.TargetLang,
		job.TranslatedKeys, job.TotalKeys, job.Percent(),
	)

	var failed string
	if job.FailedChunks > 0 {
		failed = "\n" + styles.warn.Render(fmt.Sprintf("%d of %d chunks failed; source text kept for their keys", job.FailedChunks, job.TotalChunks))
	}

	return fmt.Sprintf("%s%s%s\n\n%s", header, info, failed, helpView)
}

func phaseLabel(u jobs.ProgressUpdate) string {
	switch u.Phase {
	case jobs.PhasePlanning:
		return "Planning chunks..."
	case jobs.PhaseDispatching:
		return "Dispatching chunks..."
	case jobs.PhaseTranslating:
		return fmt.Sprintf("Translating (%d/%d chunks)", u.CompletedChunks+u.FailedChunks, u.TotalChunks)
	case jobs.PhaseFinalizing:
		return "Rebuilding document..."
	case jobs.PhaseCompleted:
		return "Done"
	case jobs.PhaseFailed:
		return "Failed"
	default:
		return "Starting..."
	}
}
