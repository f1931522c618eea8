// Package models defines domain entities and persistence interfaces for the treeglot translation service.
//
// The package contains three persistent entities:
//   - [Job] : One end-to-end translation request, from planning through finalization
//   - [Chunk] : A bounded batch of document leaves dispatched as one unit of translation work
//   - [TranslationRecord] : A translated leaf keyed by (job, path, language pair), reusable as a cache entry
//
// All persistent entities implement the [Model] interface providing validation,
// and the [Repository] interface defines standard CRUD operations for database access.
//
// Progress math lives on [Job]: [Job.Percent] computes the translated-leaf
// percentage and [Job.ETA] a point estimate of the remaining time, recomputed
// on every read rather than smoothed.
package models
