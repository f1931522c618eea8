package jobs

import "time"

// Phase identifies where in its lifecycle a progress update was emitted.
type Phase string

const (
	PhasePlanning    Phase = "planning"
	PhaseDispatching Phase = "dispatching"
	PhaseTranslating Phase = "translating"
	PhaseFinalizing  Phase = "finalizing"
	PhaseCompleted   Phase = "completed"
	PhaseFailed      Phase = "failed"
)

// ProgressUpdate is a point-in-time view of a running job, published on the
// coordinator's progress channel for CLI and TUI consumers.
type ProgressUpdate struct {
	JobID           string
	Phase           Phase
	TotalKeys       int
	TranslatedKeys  int
	TotalChunks     int
	CompletedChunks int
	FailedChunks    int
	CacheHits       int
	Message         string
	Timestamp       time.Time
}

// Percent returns the translated-leaf percentage for display.
func (u ProgressUpdate) Percent() float64 {
	if u.TotalKeys == 0 {
		return 0
	}
	return float64(u.TranslatedKeys) / float64(u.TotalKeys) * 100
}
