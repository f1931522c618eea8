// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI watches a running translation job:
//  1. [WatchView] : Live phase, chunk, and key progress while the job runs
//  2. [ResultView] : Final status, counters, and error summary
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress updates flow through a channel from the job coordinator, providing
// non-blocking status reporting while chunks translate.
package ui
