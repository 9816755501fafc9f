package index

import (
	"sort"
	"strings"

	"blendlink/internal/engine"
)

// Edge is one reference edge from a holder file to whatever its stored
// path points at.
type Edge struct {
	Holder    string           `json:"holder"`
	Reference engine.Reference `json:"reference"`
}

// Index is the assembled reference graph for one scan of the project.
type Index struct {
	Root     string
	Files    []File
	StateID  string
	Warnings []string

	byPath     map[string]File
	byHolder   map[string][]engine.Reference
	byBasename map[string][]File
	holders    []string
}

// Build assembles an index from the scan inventory and the extraction
// results. Holder order follows the sorted inventory so edge listings are
// deterministic.
func Build(root string, files []File, refs map[string]*engine.FileReferences, warnings []string) *Index {
	ix := &Index{
		Root:       root,
		Files:      files,
		StateID:    StateID(files),
		Warnings:   warnings,
		byPath:     make(map[string]File, len(files)),
		byHolder:   make(map[string][]engine.Reference, len(refs)),
		byBasename: make(map[string][]File),
	}

	for _, f := range files {
		ix.byPath[f.Path] = f
		name := strings.ToLower(baseName(f.RelPath))
		ix.byBasename[name] = append(ix.byBasename[name], f)
	}

	for _, f := range files {
		fr, ok := refs[f.Path]
		if !ok {
			continue
		}
		ix.byHolder[f.Path] = fr.References
		ix.holders = append(ix.holders, f.Path)
	}

	return ix
}

func baseName(relPath string) string {
	if i := strings.LastIndex(relPath, "/"); i >= 0 {
		return relPath[i+1:]
	}
	return relPath
}

// Holders returns the holder paths that have extraction results, in
// inventory order.
func (ix *Index) Holders() []string {
	return ix.holders
}

// References returns the stored references of one holder.
func (ix *Index) References(holder string) []engine.Reference {
	return ix.byHolder[holder]
}

// Edges flattens the index into holder/reference pairs, holders in
// inventory order, references in engine order.
func (ix *Index) Edges() []Edge {
	var edges []Edge
	for _, holder := range ix.holders {
		for _, ref := range ix.byHolder[holder] {
			edges = append(edges, Edge{Holder: holder, Reference: ref})
		}
	}
	return edges
}

// Lookup returns the inventory entry for an absolute path.
func (ix *Index) Lookup(path string) (File, bool) {
	f, ok := ix.byPath[path]
	return f, ok
}

// FilesByBasename returns inventory entries whose base name matches,
// case-insensitively.
func (ix *Index) FilesByBasename(name string) []File {
	return ix.byBasename[strings.ToLower(name)]
}

// PoolForRefKind returns the candidate files a reference of the given kind
// could plausibly point at. Image references draw from textures, library
// references from holders, everything else from any non-backup file.
// Backups are never candidates.
func (ix *Index) PoolForRefKind(kind string) []File {
	var pool []File
	for _, f := range ix.Files {
		switch kind {
		case engine.KindImage:
			if f.Kind == KindTexture {
				pool = append(pool, f)
			}
		case engine.KindLibrary:
			if f.Kind == KindPrimary {
				pool = append(pool, f)
			}
		default:
			if f.Kind != KindBackup {
				pool = append(pool, f)
			}
		}
	}
	return pool
}

// Counts tallies the inventory by kind for scan summaries.
func (ix *Index) Counts() map[Kind]int {
	counts := make(map[Kind]int)
	for _, f := range ix.Files {
		counts[f.Kind]++
	}
	return counts
}

// SortedKinds returns the kinds present in the inventory in stable order.
func SortedKinds(counts map[Kind]int) []Kind {
	kinds := make([]Kind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
