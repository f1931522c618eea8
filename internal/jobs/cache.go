package jobs

import (
	"fmt"

	"github.com/treeglot/treeglot/internal/models"
	"github.com/treeglot/treeglot/internal/translator"
	"github.com/treeglot/treeglot/internal/treecodec"
)

// CacheLookup finds a prior translation for the exact source text and
// language pair, optionally scoped to one job's records. Implemented by
// repositories.TranslationRepository.
type CacheLookup interface {
	Lookup(sourceText, sourceLang, targetLang, scopeJobID string) (*models.TranslationRecord, error)
}

// CachePlan separates a job's leaves into those satisfied without a provider
// call and those that still need translation.
type CachePlan struct {
	// Hits are records for this job resolved from the cache or the
	// placeholder bypass, ready to persist.
	Hits []*models.TranslationRecord
	// Remaining are the leaves that must be sent to the provider.
	Remaining []treecodec.Leaf
}

// PlanCache resolves each leaf against the translation cache.
//
// A leaf is satisfied when a prior non-failed record matches its source text
// and language pair exactly, or when the leaf is placeholder-only and can be
// copied verbatim. opts.SkipCache limits planning to the placeholder bypass;
// opts.CacheJobID restricts lookups to a single earlier job's records.
func PlanCache(cache CacheLookup, job *models.Job, leaves []treecodec.Leaf, opts RunOptions) (CachePlan, error) {
	var plan CachePlan

	for _, leaf := range leaves {
		if translator.PlaceholderOnly(leaf.Value) {
			plan.Hits = append(plan.Hits, &models.TranslationRecord{
				JobID:          job.ID,
				Path:           leaf.Path,
				SourceLang:     job.SourceLang,
				TargetLang:     job.TargetLang,
				SourceText:     leaf.Value,
				TranslatedText: leaf.Value,
			})
			continue
		}

		if !opts.SkipCache {
			hit, err := cache.Lookup(leaf.Value, job.SourceLang, job.TargetLang, opts.CacheJobID)
			if err != nil {
				return CachePlan{}, fmt.Errorf("cache lookup for %s: %w", leaf.Path, err)
			}
			if hit != nil {
				plan.Hits = append(plan.Hits, &models.TranslationRecord{
					JobID:          job.ID,
					Path:           leaf.Path,
					SourceLang:     job.SourceLang,
					TargetLang:     job.TargetLang,
					SourceText:     leaf.Value,
					TranslatedText: hit.TranslatedText,
				})
				continue
			}
		}

		plan.Remaining = append(plan.Remaining, leaf)
	}

	return plan, nil
}
