package index

import (
	"context"
	"encoding/json"
	"fmt"

	"blendlink/internal/engine"
	"blendlink/internal/logging"
	"blendlink/internal/storage"
)

// Extractor pulls stored references out of holder files. Results are
// served from the scan cache when the file state still matches; the rest
// go through one batch engine session, with a per-file fallback for
// anything the batch could not deliver.
type Extractor struct {
	eng    engine.Engine
	cache  *storage.Cache
	logger *logging.Logger
}

// NewExtractor creates an extractor. cache may be nil to disable caching.
func NewExtractor(eng engine.Engine, cache *storage.Cache, logger *logging.Logger) *Extractor {
	return &Extractor{eng: eng, cache: cache, logger: logger}
}

// ExtractAll returns references for every holder in files, keyed by
// absolute path. Files that could not be read become warnings, never
// errors; one unreadable holder must not sink a whole scan.
func (e *Extractor) ExtractAll(ctx context.Context, files []File) (map[string]*engine.FileReferences, []string) {
	results := make(map[string]*engine.FileReferences)
	var warnings []string

	var misses []File
	for _, f := range Holders(files) {
		if refs, ok := e.fromCache(f); ok {
			results[f.Path] = refs
			continue
		}
		misses = append(misses, f)
	}

	if len(misses) == 0 {
		return results, warnings
	}

	batched := e.runBatch(ctx, misses, &warnings)

	for _, f := range misses {
		if ctx.Err() != nil {
			warnings = append(warnings, "extraction cancelled")
			break
		}

		refs, ok := batched[f.Path]
		if !ok {
			var err error
			refs, err = e.eng.ExtractReferences(ctx, f.Path)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("cannot extract references from %s: %v", f.RelPath, err))
				continue
			}
		}

		results[f.Path] = refs
		e.toCache(f, refs)
	}

	return results, warnings
}

// runBatch asks the engine for all misses in one session. A failed batch
// is only a warning; every file then takes the per-file path.
func (e *Extractor) runBatch(ctx context.Context, misses []File, warnings *[]string) map[string]*engine.FileReferences {
	batched := make(map[string]*engine.FileReferences)
	if len(misses) < 2 {
		return batched
	}

	paths := make([]string, len(misses))
	for i, f := range misses {
		paths[i] = f.Path
	}

	results, err := e.eng.BatchExtract(ctx, paths)
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("batch extraction failed, retrying per file: %v", err))
		return batched
	}

	for i := range results {
		batched[results[i].File] = &results[i]
	}
	return batched
}

func (e *Extractor) fromCache(f File) (*engine.FileReferences, bool) {
	if e.cache == nil {
		return nil, false
	}

	payload, ok := e.cache.Get(storage.Key{Path: f.Path, Size: f.Size, MtimeNs: f.MtimeNs})
	if !ok {
		return nil, false
	}

	var refs engine.FileReferences
	if err := json.Unmarshal(payload, &refs); err != nil {
		e.logger.Warn("discarding unreadable cache entry", map[string]interface{}{
			"path":  f.RelPath,
			"error": err.Error(),
		})
		return nil, false
	}
	return &refs, true
}

func (e *Extractor) toCache(f File, refs *engine.FileReferences) {
	if e.cache == nil {
		return
	}

	payload, err := json.Marshal(refs)
	if err != nil {
		return
	}
	if err := e.cache.Put(storage.Key{Path: f.Path, Size: f.Size, MtimeNs: f.MtimeNs}, payload); err != nil {
		e.logger.Warn("cache write failed", map[string]interface{}{
			"path":  f.RelPath,
			"error": err.Error(),
		})
	}
}

// PruneCache drops cache entries for files no longer in the inventory.
func (e *Extractor) PruneCache(files []File) {
	if e.cache == nil {
		return
	}

	live := make(map[string]bool, len(files))
	for _, f := range files {
		live[f.Path] = true
	}

	removed, err := e.cache.Prune(live)
	if err != nil {
		e.logger.Warn("cache prune failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if removed > 0 {
		e.logger.Debug("pruned stale cache entries", map[string]interface{}{"removed": removed})
	}
}
