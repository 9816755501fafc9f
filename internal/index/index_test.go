package index

import (
	"testing"

	"blendlink/internal/engine"
)

func buildTestIndex() *Index {
	files := []File{
		{Path: "/p/scenes/a.blend", RelPath: "scenes/a.blend", Kind: KindPrimary, Size: 10, MtimeNs: 1},
		{Path: "/p/scenes/b.blend", RelPath: "scenes/b.blend", Kind: KindPrimary, Size: 10, MtimeNs: 1},
		{Path: "/p/tex/wood.jpg", RelPath: "tex/wood.jpg", Kind: KindTexture, Size: 5, MtimeNs: 1},
		{Path: "/p/tex/Wood_v2.JPG", RelPath: "tex/Wood_v2.JPG", Kind: KindTexture, Size: 5, MtimeNs: 1},
		{Path: "/p/scenes/a.blend1", RelPath: "scenes/a.blend1", Kind: KindBackup, Size: 10, MtimeNs: 1},
		{Path: "/p/notes.txt", RelPath: "notes.txt", Kind: KindOther, Size: 1, MtimeNs: 1},
	}
	refs := map[string]*engine.FileReferences{
		"/p/scenes/a.blend": {
			File: "/p/scenes/a.blend",
			References: []engine.Reference{
				{Kind: engine.KindImage, RawPath: "//../tex/wood.jpg"},
				{Kind: engine.KindLibrary, RawPath: "//b.blend"},
			},
		},
		"/p/scenes/b.blend": {
			File:       "/p/scenes/b.blend",
			References: []engine.Reference{},
		},
	}
	return Build("/p", files, refs, []string{"one warning"})
}

func TestIndexHoldersAndReferences(t *testing.T) {
	ix := buildTestIndex()

	holders := ix.Holders()
	if len(holders) != 2 {
		t.Fatalf("Holders() = %v, want 2 entries", holders)
	}
	if holders[0] != "/p/scenes/a.blend" || holders[1] != "/p/scenes/b.blend" {
		t.Errorf("Holders() = %v, want inventory order", holders)
	}

	refs := ix.References("/p/scenes/a.blend")
	if len(refs) != 2 {
		t.Fatalf("References() = %d entries, want 2", len(refs))
	}
	if refs[0].RawPath != "//../tex/wood.jpg" {
		t.Errorf("References()[0].RawPath = %q, want extraction order preserved", refs[0].RawPath)
	}

	if got := ix.References("/p/tex/wood.jpg"); len(got) != 0 {
		t.Errorf("References() for a non-holder = %v, want empty", got)
	}
}

func TestIndexEdges(t *testing.T) {
	ix := buildTestIndex()

	edges := ix.Edges()
	if len(edges) != 2 {
		t.Fatalf("Edges() = %d, want 2", len(edges))
	}
	for _, e := range edges {
		if e.Holder != "/p/scenes/a.blend" {
			t.Errorf("Edge.Holder = %q, want /p/scenes/a.blend", e.Holder)
		}
	}
}

func TestIndexLookup(t *testing.T) {
	ix := buildTestIndex()

	f, ok := ix.Lookup("/p/tex/wood.jpg")
	if !ok || f.Kind != KindTexture {
		t.Errorf("Lookup() = %+v, %v, want texture entry", f, ok)
	}
	if _, ok := ix.Lookup("/p/ghost.png"); ok {
		t.Error("Lookup() should miss for unknown paths")
	}
}

func TestIndexFilesByBasename(t *testing.T) {
	ix := buildTestIndex()

	if got := ix.FilesByBasename("wood.jpg"); len(got) != 1 {
		t.Errorf("FilesByBasename(wood.jpg) = %d entries, want 1", len(got))
	}
	// Case-insensitive both in the index and in the query.
	if got := ix.FilesByBasename("WOOD_V2.jpg"); len(got) != 1 {
		t.Errorf("FilesByBasename(WOOD_V2.jpg) = %d entries, want 1", len(got))
	}
	if got := ix.FilesByBasename("ghost.png"); len(got) != 0 {
		t.Errorf("FilesByBasename(ghost.png) = %d entries, want 0", len(got))
	}
}

func TestIndexPoolForRefKind(t *testing.T) {
	ix := buildTestIndex()

	images := ix.PoolForRefKind(engine.KindImage)
	if len(images) != 2 {
		t.Fatalf("image pool = %v, want the two textures", relPaths(images))
	}
	for _, f := range images {
		if f.Kind != KindTexture {
			t.Errorf("image pool contains %q of kind %q", f.RelPath, f.Kind)
		}
	}

	libs := ix.PoolForRefKind(engine.KindLibrary)
	if len(libs) != 2 {
		t.Fatalf("library pool = %v, want the two holders", relPaths(libs))
	}
	for _, f := range libs {
		if f.Kind != KindPrimary {
			t.Errorf("library pool contains %q of kind %q", f.RelPath, f.Kind)
		}
	}

	other := ix.PoolForRefKind(engine.KindSound)
	for _, f := range other {
		if f.Kind == KindBackup {
			t.Errorf("pool should never contain backups, got %q", f.RelPath)
		}
	}
	if len(other) != 5 {
		t.Errorf("sound pool = %d entries, want 5 (everything but the backup)", len(other))
	}
}

func TestIndexCounts(t *testing.T) {
	ix := buildTestIndex()

	counts := ix.Counts()
	if counts[KindPrimary] != 2 || counts[KindTexture] != 2 || counts[KindBackup] != 1 || counts[KindOther] != 1 {
		t.Errorf("Counts() = %v", counts)
	}

	kinds := SortedKinds(counts)
	if len(kinds) != 4 {
		t.Fatalf("SortedKinds() = %v, want 4 kinds", kinds)
	}
	for i := 1; i < len(kinds); i++ {
		if kinds[i-1] >= kinds[i] {
			t.Errorf("SortedKinds() not sorted: %v", kinds)
		}
	}
}

func TestStateID(t *testing.T) {
	files := []File{
		{RelPath: "a.blend", Size: 10, MtimeNs: 1},
		{RelPath: "tex/wood.jpg", Size: 5, MtimeNs: 2},
	}
	reversed := []File{files[1], files[0]}

	if StateID(files) != StateID(reversed) {
		t.Error("StateID should not depend on input order")
	}

	touched := []File{
		{RelPath: "a.blend", Size: 10, MtimeNs: 99},
		{RelPath: "tex/wood.jpg", Size: 5, MtimeNs: 2},
	}
	if StateID(files) == StateID(touched) {
		t.Error("StateID should change when a file's mtime changes")
	}

	if len(StateID(files)) != 64 {
		t.Errorf("StateID length = %d, want 64 hex chars", len(StateID(files)))
	}

	if StateID(nil) == StateID(files) {
		t.Error("empty tree should not share an ID with a populated one")
	}
}
