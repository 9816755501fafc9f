// Package relink proposes replacements for broken references by fuzzy
// filename matching, and applies the chosen replacement as a path change
// expressed relative to the holder.
package relink

import (
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Similarity computes a case-insensitive sequence-similarity ratio between
// two filenames, in [0,1]. The score is twice the total length of matching
// runs divided by the combined length, so identical strings score 1.0 and
// disjoint strings score 0. Symmetric in its arguments.
func Similarity(a, b string) float64 {
	la := strings.ToLower(a)
	lb := strings.ToLower(b)

	if la == lb {
		return 1.0
	}
	if len(la) == 0 || len(lb) == 0 {
		return 0
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(la, lb, false)

	matched := 0
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			matched += len(d.Text)
		}
	}

	return float64(2*matched) / float64(len(la)+len(lb))
}

// NameMatch is one fuzzy suggestion for a missing entity name.
type NameMatch struct {
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

// SimilarNames ranks available names by similarity to a missing one.
// Names under threshold are dropped; the rest come back descending by
// score, ties broken alphabetically, capped to limit. Scores are rounded
// to three decimals for stable display.
func SimilarNames(missing string, available []string, threshold float64, limit int) []NameMatch {
	var matches []NameMatch
	for _, name := range available {
		score := Similarity(missing, name)
		if score < threshold {
			continue
		}
		matches = append(matches, NameMatch{Name: name, Similarity: round3(score)})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Name < matches[j].Name
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func round3(f float64) float64 {
	return float64(int(f*1000+0.5)) / 1000
}
