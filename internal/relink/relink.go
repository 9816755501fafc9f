package relink

import (
	"path/filepath"
	"sort"

	"blendlink/internal/config"
	"blendlink/internal/engine"
	"blendlink/internal/index"
	"blendlink/internal/links"
	"blendlink/internal/logging"
	"blendlink/internal/paths"
)

// Candidate is one proposed replacement file for a broken reference.
type Candidate struct {
	Path       string  `json:"path"`
	RelPath    string  `json:"relPath"`
	Similarity float64 `json:"similarity"`
}

// Proposal pairs a broken entry with its ranked candidates. Entries with no
// candidate above the threshold still appear, with an empty list, so the
// caller can report them as unfixable.
type Proposal struct {
	Entry      links.BrokenEntry `json:"entry"`
	Candidates []Candidate       `json:"candidates"`
}

// Resolver ranks relink candidates for broken references.
type Resolver struct {
	cfg    config.RelinkConfig
	logger *logging.Logger
}

// NewResolver creates a resolver with the configured threshold and cap.
func NewResolver(cfg config.RelinkConfig, logger *logging.Logger) *Resolver {
	return &Resolver{cfg: cfg, logger: logger}
}

// FindCandidates ranks the index's files of the matching kind family against
// the broken reference's filename. Files scoring under the configured
// threshold are dropped even when the cap is not reached; the result is
// descending by score, ties broken by relative path, at most MaxCandidates
// long.
//
// A missing-library entry is a repair of the library file itself, so its
// candidates come from the library pool regardless of what kind of asset
// the lost reference carried.
func (r *Resolver) FindCandidates(entry links.BrokenEntry, ix *index.Index) []Candidate {
	missing := filepath.Base(entry.Resolved)

	poolKind := entry.Reference.Kind
	if entry.Reason == links.ReasonMissingLibrary {
		poolKind = engine.KindLibrary
	}

	var candidates []Candidate
	for _, f := range ix.PoolForRefKind(poolKind) {
		score := Similarity(missing, filepath.Base(f.Path))
		if score < r.cfg.MinSimilarity {
			continue
		}
		candidates = append(candidates, Candidate{
			Path:       f.Path,
			RelPath:    f.RelPath,
			Similarity: round3(score),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].RelPath < candidates[j].RelPath
	})

	if r.cfg.MaxCandidates > 0 && len(candidates) > r.cfg.MaxCandidates {
		candidates = candidates[:r.cfg.MaxCandidates]
	}
	return candidates
}

// Propose ranks candidates for every broken entry in a report.
func (r *Resolver) Propose(report *links.Report, ix *index.Index) []Proposal {
	proposals := make([]Proposal, 0, len(report.Broken))
	for _, entry := range report.Broken {
		proposals = append(proposals, Proposal{
			Entry:      entry,
			Candidates: r.FindCandidates(entry, ix),
		})
	}
	return proposals
}

// ApplyRelink turns a chosen candidate into the path change that repairs
// the broken entry. The new raw path is expressed relative to the holder's
// directory, or to the library's directory when the reference arrived
// through a linked library, and always carries the // marker so the repair
// stays portable. A candidate on a different filesystem root cannot be
// expressed relatively and is rejected with a RESOLUTION_ERROR.
//
// A reference lost behind a missing library is repaired by retargeting the
// holder's library pointer: the old path is the holder's stored library
// path, not the raw path recorded inside the vanished library.
func ApplyRelink(entry links.BrokenEntry, candidate Candidate) (engine.PathChange, error) {
	baseDir := filepath.Dir(entry.Holder)

	if entry.Reason == links.ReasonMissingLibrary && entry.Reference.LibraryPath != "" {
		rel, err := paths.MakeRelative(candidate.Path, baseDir)
		if err != nil {
			return engine.PathChange{}, err
		}
		return engine.PathChange{
			ItemType: engine.KindLibrary,
			OldPath:  entry.Reference.LibraryPath,
			NewPath:  paths.ApplyMarker(rel),
		}, nil
	}

	if entry.Library != "" {
		baseDir = filepath.Dir(entry.Library)
	}

	rel, err := paths.MakeRelative(candidate.Path, baseDir)
	if err != nil {
		return engine.PathChange{}, err
	}

	return engine.PathChange{
		ItemType: entry.Reference.Kind,
		ItemName: entry.Reference.Name,
		OldPath:  entry.Reference.RawPath,
		NewPath:  paths.ApplyMarker(rel),
	}, nil
}
