// Package links checks every indexed reference against the filesystem and
// reports the ones whose target is gone.
package links

import (
	"os"
	"path/filepath"

	"blendlink/internal/engine"
	"blendlink/internal/index"
	"blendlink/internal/logging"
	"blendlink/internal/paths"
)

// Reasons a reference can be broken.
const (
	// ReasonMissingFile means the resolved target itself does not exist.
	ReasonMissingFile = "missing_file"
	// ReasonMissingLibrary means the reference arrived through a linked
	// library that is itself gone, so the target cannot even be resolved.
	ReasonMissingLibrary = "missing_library"
)

// BrokenEntry describes one reference whose target does not exist.
type BrokenEntry struct {
	Holder    string           `json:"holder"`
	Reference engine.Reference `json:"reference"`
	Resolved  string           `json:"resolved"`
	Reason    string           `json:"reason"`
	Library   string           `json:"library,omitempty"`
}

// Report is the outcome of one broken-link pass. Entries appear grouped by
// holder in index order, and within a holder in extraction order.
type Report struct {
	Broken        []BrokenEntry `json:"broken"`
	CheckedRefs   int           `json:"checkedRefs"`
	PackedSkipped int           `json:"packedSkipped"`
}

// Clean reports whether no broken references were found.
func (r *Report) Clean() bool {
	return len(r.Broken) == 0
}

// HolderGroup lists one holder's broken references together for display.
type HolderGroup struct {
	Holder  string        `json:"holder"`
	Entries []BrokenEntry `json:"entries"`
}

// GroupByHolder folds the flat list into per-holder groups, preserving
// order.
func (r *Report) GroupByHolder() []HolderGroup {
	var groups []HolderGroup
	at := map[string]int{}
	for _, b := range r.Broken {
		i, ok := at[b.Holder]
		if !ok {
			i = len(groups)
			at[b.Holder] = i
			groups = append(groups, HolderGroup{Holder: b.Holder})
		}
		groups[i].Entries = append(groups[i].Entries, b)
	}
	return groups
}

// Detector walks the index checking reference targets. It never talks to
// the engine; everything it needs is already indexed.
type Detector struct {
	ix     *index.Index
	logger *logging.Logger
}

// NewDetector creates a detector over a built index.
func NewDetector(ix *index.Index, logger *logging.Logger) *Detector {
	return &Detector{ix: ix, logger: logger}
}

// FindBroken checks every indexed reference. kinds narrows the check to
// the given reference kinds; empty means all.
//
// Packed references are never broken regardless of their stored path; the
// payload travels inside the holder. References reaching us through a
// linked library resolve against the library's directory, not the
// holder's.
func (d *Detector) FindBroken(kinds []string) *Report {
	want := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}

	report := &Report{}

	for _, holder := range d.ix.Holders() {
		holderDir := filepath.Dir(holder)

		for _, ref := range d.ix.References(holder) {
			if len(want) > 0 && !want[ref.Kind] {
				continue
			}
			if ref.Packed {
				report.PackedSkipped++
				continue
			}
			report.CheckedRefs++

			baseDir := holderDir
			libraryAbs := ""
			if ref.LibraryPath != "" {
				libraryAbs = paths.Resolve(ref.LibraryPath, holderDir)
				if !exists(libraryAbs) {
					report.Broken = append(report.Broken, BrokenEntry{
						Holder:    holder,
						Reference: ref,
						Resolved:  libraryAbs,
						Reason:    ReasonMissingLibrary,
						Library:   libraryAbs,
					})
					continue
				}
				baseDir = filepath.Dir(libraryAbs)
			}

			resolved := paths.Resolve(ref.RawPath, baseDir)
			if exists(resolved) {
				continue
			}

			// A library reference whose target is gone is a missing
			// library, whether it broke directly or one hop in.
			reason := ReasonMissingFile
			if ref.Kind == engine.KindLibrary {
				reason = ReasonMissingLibrary
			}
			report.Broken = append(report.Broken, BrokenEntry{
				Holder:    holder,
				Reference: ref,
				Resolved:  resolved,
				Reason:    reason,
				Library:   libraryAbs,
			})
		}
	}

	d.logger.Debug("link check complete", map[string]interface{}{
		"checked": report.CheckedRefs,
		"broken":  len(report.Broken),
		"packed":  report.PackedSkipped,
	})

	return report
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Referrer is one stored reference that points at a queried target file.
type Referrer struct {
	Holder    string           `json:"holder"`
	Reference engine.Reference `json:"reference"`
	// Library is set when the reference reaches the target through a
	// linked library rather than directly.
	Library string `json:"library,omitempty"`
}

// Referrers answers the reverse lookup: which holders reference targetAbs,
// directly or via a linked library. Packed references never point at an
// external file and are excluded. Resolution is pure, so the target need
// not exist; a reverse lookup on a deleted file still finds its referrers.
func Referrers(ix *index.Index, targetAbs string) []Referrer {
	target := filepath.Clean(targetAbs)

	var referrers []Referrer
	for _, holder := range ix.Holders() {
		holderDir := filepath.Dir(holder)

		for _, ref := range ix.References(holder) {
			if ref.Packed {
				continue
			}

			baseDir := holderDir
			libraryAbs := ""
			if ref.LibraryPath != "" {
				libraryAbs = paths.Resolve(ref.LibraryPath, holderDir)
				baseDir = filepath.Dir(libraryAbs)
			}

			if paths.Resolve(ref.RawPath, baseDir) != target {
				continue
			}
			referrers = append(referrers, Referrer{
				Holder:    holder,
				Reference: ref,
				Library:   libraryAbs,
			})
		}
	}
	return referrers
}
