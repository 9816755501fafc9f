package relink

import (
	"context"
	"fmt"
	"path/filepath"

	"blendlink/internal/engine"
	"blendlink/internal/index"
	"blendlink/internal/logging"
	"blendlink/internal/paths"
)

// Mismatch is one linked entity name a holder expects but its library no
// longer provides, usually because the entity was renamed inside the
// library.
type Mismatch struct {
	Holder      string      `json:"holder"`
	Library     string      `json:"library"`
	Name        string      `json:"name"`
	Suggestions []NameMatch `json:"suggestions,omitempty"`
}

// NameReport is the outcome of one check-names pass.
type NameReport struct {
	Mismatches  []Mismatch `json:"mismatches"`
	CheckedRefs int        `json:"checkedRefs"`
	Warnings    []string   `json:"warnings,omitempty"`
}

// Clean reports whether every linked name resolved.
func (r *NameReport) Clean() bool {
	return len(r.Mismatches) == 0
}

// NameChecker verifies that the entity names holders link from their
// libraries still exist in those libraries, suggesting close matches for
// the ones that do not.
type NameChecker struct {
	eng       engine.Engine
	threshold float64
	limit     int
	logger    *logging.Logger
}

// NewNameChecker creates a checker using the relink similarity settings
// for its suggestions.
func NewNameChecker(eng engine.Engine, threshold float64, limit int, logger *logging.Logger) *NameChecker {
	return &NameChecker{eng: eng, threshold: threshold, limit: limit, logger: logger}
}

// Check walks every named library reference in the index and compares it
// against the collections the library actually exposes. Libraries that
// cannot be listed degrade to warnings; a missing library file is the
// broken-link detector's finding, not this checker's.
func (c *NameChecker) Check(ctx context.Context, ix *index.Index) *NameReport {
	report := &NameReport{}

	// One listing per library file, shared across holders. A library that
	// failed to list is warned about once and its references skipped, not
	// compared against an empty name list.
	listed := map[string][]engine.Entity{}
	failed := map[string]bool{}

	for _, holder := range ix.Holders() {
		holderDir := filepath.Dir(holder)

		for _, ref := range ix.References(holder) {
			if ref.Kind != engine.KindLibrary || ref.Name == "" || ref.Packed {
				continue
			}
			if ctx.Err() != nil {
				report.Warnings = append(report.Warnings, "name check cancelled")
				return report
			}

			library := paths.Resolve(ref.RawPath, holderDir)
			if _, ok := ix.Lookup(library); !ok {
				continue
			}
			if failed[library] {
				continue
			}
			report.CheckedRefs++

			entities, ok := listed[library]
			if !ok {
				var err error
				entities, err = c.eng.ListNamedEntities(ctx, library)
				if err != nil {
					report.Warnings = append(report.Warnings,
						fmt.Sprintf("cannot list entities in %s: %v", library, err))
					failed[library] = true
					continue
				}
				listed[library] = entities
			}

			names := collectionNames(entities)
			if containsName(names, ref.Name) {
				continue
			}

			report.Mismatches = append(report.Mismatches, Mismatch{
				Holder:      holder,
				Library:     library,
				Name:        ref.Name,
				Suggestions: SimilarNames(ref.Name, names, c.threshold, c.limit),
			})
		}
	}

	c.logger.Debug("name check complete", map[string]interface{}{
		"checked":    report.CheckedRefs,
		"mismatches": len(report.Mismatches),
	})

	return report
}

func collectionNames(entities []engine.Entity) []string {
	var names []string
	for _, e := range entities {
		if e.Type == engine.EntityCollection {
			names = append(names, e.Name)
		}
	}
	return names
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
