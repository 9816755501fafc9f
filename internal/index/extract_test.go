package index

import (
	"context"
	"strings"
	"testing"

	"blendlink/internal/engine"
	"blendlink/internal/logging"
	"blendlink/internal/storage"
)

func holderFile(path string, mtime int64) File {
	rel := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		rel = path[i+1:]
	}
	return File{Path: path, RelPath: rel, Kind: KindPrimary, Size: 10, MtimeNs: mtime}
}

func countCalls(calls []string, op string) int {
	n := 0
	for _, c := range calls {
		if c == op {
			n++
		}
	}
	return n
}

func TestExtractAllUsesBatch(t *testing.T) {
	fake := engine.NewFake()
	fake.Refs["/p/a.blend"] = []engine.Reference{{Kind: engine.KindImage, RawPath: "//tex/wood.jpg"}}
	fake.Refs["/p/b.blend"] = []engine.Reference{}
	fake.Refs["/p/c.blend"] = []engine.Reference{}

	files := []File{
		holderFile("/p/a.blend", 1),
		holderFile("/p/b.blend", 1),
		holderFile("/p/c.blend", 1),
		{Path: "/p/wood.jpg", RelPath: "wood.jpg", Kind: KindTexture, Size: 5, MtimeNs: 1},
	}

	e := NewExtractor(fake, nil, logging.Nop())
	results, warnings := e.ExtractAll(context.Background(), files)

	if len(results) != 3 {
		t.Errorf("len(results) = %d, want 3", len(results))
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
	if countCalls(fake.Calls, engine.OpBatchExtract) != 1 {
		t.Errorf("batch calls = %d, want 1", countCalls(fake.Calls, engine.OpBatchExtract))
	}
	if countCalls(fake.Calls, engine.OpExtract) != 0 {
		t.Errorf("per-file calls = %d, want 0 when batch covers everything", countCalls(fake.Calls, engine.OpExtract))
	}

	refs := results["/p/a.blend"]
	if refs == nil || len(refs.References) != 1 || refs.References[0].RawPath != "//tex/wood.jpg" {
		t.Errorf("results[/p/a.blend] = %+v, want the extracted reference", refs)
	}
}

func TestExtractAllSingleHolderSkipsBatch(t *testing.T) {
	fake := engine.NewFake()
	fake.Refs["/p/a.blend"] = []engine.Reference{}

	e := NewExtractor(fake, nil, logging.Nop())
	results, _ := e.ExtractAll(context.Background(), []File{holderFile("/p/a.blend", 1)})

	if len(results) != 1 {
		t.Errorf("len(results) = %d, want 1", len(results))
	}
	if countCalls(fake.Calls, engine.OpBatchExtract) != 0 {
		t.Error("a single holder should not start a batch session")
	}
	if countCalls(fake.Calls, engine.OpExtract) != 1 {
		t.Errorf("per-file calls = %d, want 1", countCalls(fake.Calls, engine.OpExtract))
	}
}

func TestExtractAllBatchFailureFallsBack(t *testing.T) {
	fake := engine.NewFake()
	fake.FailBatch = true
	fake.Refs["/p/a.blend"] = []engine.Reference{}
	fake.Refs["/p/b.blend"] = []engine.Reference{}

	e := NewExtractor(fake, nil, logging.Nop())
	results, warnings := e.ExtractAll(context.Background(), []File{
		holderFile("/p/a.blend", 1),
		holderFile("/p/b.blend", 1),
	})

	if len(results) != 2 {
		t.Errorf("len(results) = %d, want 2 via per-file fallback", len(results))
	}
	if countCalls(fake.Calls, engine.OpExtract) != 2 {
		t.Errorf("per-file calls = %d, want 2", countCalls(fake.Calls, engine.OpExtract))
	}

	found := false
	for _, w := range warnings {
		if strings.Contains(w, "batch extraction failed") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want one about the failed batch", warnings)
	}
}

func TestExtractAllUnreadableHolderBecomesWarning(t *testing.T) {
	fake := engine.NewFake()
	fake.Refs["/p/a.blend"] = []engine.Reference{}
	fake.FailFiles["/p/bad.blend"] = "corrupt header"

	e := NewExtractor(fake, nil, logging.Nop())
	results, warnings := e.ExtractAll(context.Background(), []File{
		holderFile("/p/a.blend", 1),
		holderFile("/p/bad.blend", 1),
	})

	if len(results) != 1 {
		t.Errorf("len(results) = %d, want 1 (bad holder skipped)", len(results))
	}
	if _, ok := results["/p/bad.blend"]; ok {
		t.Error("unreadable holder should not appear in results")
	}

	found := false
	for _, w := range warnings {
		if strings.Contains(w, "bad.blend") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want one naming bad.blend", warnings)
	}
}

func TestExtractAllServesFromCache(t *testing.T) {
	db, err := storage.Open(t.TempDir(), logging.Nop())
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	defer db.Close()
	cache := storage.NewCache(db, true, logging.Nop())

	fake := engine.NewFake()
	fake.Refs["/p/a.blend"] = []engine.Reference{{Kind: engine.KindImage, RawPath: "//tex/wood.jpg"}}
	fake.Refs["/p/b.blend"] = []engine.Reference{}

	files := []File{holderFile("/p/a.blend", 1), holderFile("/p/b.blend", 1)}

	e := NewExtractor(fake, cache, logging.Nop())
	if results, _ := e.ExtractAll(context.Background(), files); len(results) != 2 {
		t.Fatalf("first run results = %d, want 2", len(results))
	}

	fake.Calls = nil
	results, _ := e.ExtractAll(context.Background(), files)
	if len(results) != 2 {
		t.Fatalf("second run results = %d, want 2", len(results))
	}
	if len(fake.Calls) != 0 {
		t.Errorf("second run engine calls = %v, want none (cache hits)", fake.Calls)
	}

	if len(results["/p/a.blend"].References) != 1 {
		t.Error("cached references should round-trip")
	}

	// A touched file misses the cache and goes back to the engine.
	fake.Calls = nil
	touched := []File{holderFile("/p/a.blend", 2), holderFile("/p/b.blend", 1)}
	if results, _ := e.ExtractAll(context.Background(), touched); len(results) != 2 {
		t.Fatalf("third run results = %d, want 2", len(results))
	}
	if countCalls(fake.Calls, engine.OpExtract) != 1 {
		t.Errorf("touched file should be re-extracted, calls = %v", fake.Calls)
	}
}

func TestPruneCache(t *testing.T) {
	db, err := storage.Open(t.TempDir(), logging.Nop())
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	defer db.Close()
	cache := storage.NewCache(db, true, logging.Nop())

	fake := engine.NewFake()
	fake.Refs["/p/a.blend"] = []engine.Reference{}
	fake.Refs["/p/b.blend"] = []engine.Reference{}

	files := []File{holderFile("/p/a.blend", 1), holderFile("/p/b.blend", 1)}
	e := NewExtractor(fake, cache, logging.Nop())
	e.ExtractAll(context.Background(), files)

	e.PruneCache(files[:1])

	stats, err := cache.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Entries != 1 {
		t.Errorf("cache entries after prune = %d, want 1", stats.Entries)
	}
}
