// Package rename plans and validates entity renames across holder files.
// Planning asks the engine what each file currently contains and flags
// collisions before anything is touched; execution is strictly per file so
// one failure never blocks the rest of the batch.
package rename

import (
	"context"

	"blendlink/internal/engine"
	"blendlink/internal/logging"
	"blendlink/internal/ops"
)

// Request describes one batch rename: the entity type, the name pair, and
// the holder files in scope.
type Request struct {
	IDType  string
	OldName string
	NewName string
	Files   []string
}

// Planner builds rename previews.
type Planner struct {
	eng    engine.Engine
	logger *logging.Logger
}

// NewPlanner creates a rename planner over an engine binding.
func NewPlanner(eng engine.Engine, logger *logging.Logger) *Planner {
	return &Planner{eng: eng, logger: logger}
}

// Plan validates the request against each file's current entities and
// assembles the per-file rename instructions.
//
// Empty names and name collisions invalidate the whole preview; a file
// that simply does not contain the old name gets a no-op warning, since a
// batch routinely spans files where only some hold the entity. A file
// whose entities cannot be listed degrades to a warning and is dropped
// from the plan.
func (pl *Planner) Plan(ctx context.Context, req Request) *ops.Preview {
	p := ops.NewPreview(ops.OpRename)

	if req.IDType != engine.EntityObject && req.IDType != engine.EntityCollection {
		p.Errorf("unknown id type %q (expected %s or %s)", req.IDType,
			engine.EntityObject, engine.EntityCollection)
	}
	if req.OldName == "" {
		p.Errorf("old name must not be empty")
	}
	if req.NewName == "" {
		p.Errorf("new name must not be empty")
	}
	if req.OldName != "" && req.OldName == req.NewName {
		p.Errorf("old and new names are identical: %q", req.OldName)
	}
	if len(req.Files) == 0 {
		p.Errorf("no files in scope")
	}
	if !p.Valid() {
		return p
	}

	for _, file := range req.Files {
		if ctx.Err() != nil {
			p.Warnf("planning cancelled before %s", file)
			break
		}

		entities, err := pl.eng.ListNamedEntities(ctx, file)
		if err != nil {
			p.Warnf("cannot list entities in %s, file dropped from plan: %v", file, err)
			continue
		}

		hasOld := false
		hasNew := false
		for _, e := range entities {
			if e.Type != req.IDType {
				continue
			}
			if e.Name == req.OldName {
				hasOld = true
			}
			if e.Name == req.NewName {
				hasNew = true
			}
		}

		if hasNew {
			// A distinct entity already owns the new name in this file's
			// namespace. Renaming would silently merge or clobber.
			p.Errorf("%s: %s %q already exists, renaming %q would collide",
				file, req.IDType, req.NewName, req.OldName)
			continue
		}
		if !hasOld {
			p.Warnf("%s: no %s named %q, nothing to rename", file, req.IDType, req.OldName)
			continue
		}

		p.AddRenames(file, []engine.Rename{{
			ItemType: req.IDType,
			OldName:  req.OldName,
			NewName:  req.NewName,
		}})
	}

	pl.logger.Debug("rename planned", map[string]interface{}{
		"idType":   req.IDType,
		"files":    len(req.Files),
		"planned":  len(p.Renames),
		"warnings": len(p.Warnings),
		"errors":   len(p.Errors),
	})

	return p
}
