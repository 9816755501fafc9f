package engine

import (
	"context"
	"fmt"
	"sync"

	"blendlink/internal/errors"
)

// Fake is an in-memory Engine for tests. Populate Refs and Entities with
// the state a holder file should report, then inspect Applied and Renamed
// to assert what the tool asked the engine to do.
type Fake struct {
	mu sync.Mutex

	// Refs maps holder path to the references extraction reports.
	Refs map[string][]Reference

	// Entities maps holder path to its named datablocks.
	Entities map[string][]Entity

	// FailFiles maps holder path to an error message; any operation on
	// such a file fails with ENGINE_FAILURE.
	FailFiles map[string]string

	// FailBatch forces BatchExtract to fail as a whole, exercising the
	// per-file fallback in callers.
	FailBatch bool

	// Version is what Ping reports.
	Version string

	// ApplyHook, when set, runs at the start of every ApplyPathChanges
	// call. Tests use it to inject failures or cancel contexts while a
	// multi-file operation is underway.
	ApplyHook func(file string) error

	// Applied records ApplyPathChanges calls per holder path.
	Applied map[string][]PathChange

	// Renamed records RenameEntities calls per holder path.
	Renamed map[string][]Rename

	// Calls records operation names in invocation order.
	Calls []string
}

// NewFake returns an empty Fake reporting version "fake-1.0".
func NewFake() *Fake {
	return &Fake{
		Refs:      map[string][]Reference{},
		Entities:  map[string][]Entity{},
		FailFiles: map[string]string{},
		Version:   "fake-1.0",
		Applied:   map[string][]PathChange{},
		Renamed:   map[string][]Rename{},
	}
}

func (f *Fake) record(op string) {
	f.Calls = append(f.Calls, op)
}

func (f *Fake) failure(file string) error {
	if msg, ok := f.FailFiles[file]; ok {
		return errors.New(errors.EngineFailure, msg).WithPath(file)
	}
	return nil
}

func (f *Fake) Ping(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(OpPing)
	return f.Version, nil
}

func (f *Fake) ExtractReferences(ctx context.Context, file string) (*FileReferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(OpExtract)

	if err := f.failure(file); err != nil {
		return nil, err
	}
	refs, ok := f.Refs[file]
	if !ok {
		return nil, errors.New(errors.EngineFailure, "unknown holder file").WithPath(file)
	}
	return &FileReferences{File: file, References: refs}, nil
}

func (f *Fake) BatchExtract(ctx context.Context, files []string) ([]FileReferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(OpBatchExtract)

	if f.FailBatch {
		return nil, errors.New(errors.EngineFailure, "batch session crashed")
	}

	var results []FileReferences
	for _, file := range files {
		if _, bad := f.FailFiles[file]; bad {
			continue
		}
		refs, ok := f.Refs[file]
		if !ok {
			continue
		}
		results = append(results, FileReferences{File: file, References: refs})
	}
	return results, nil
}

func (f *Fake) ApplyPathChanges(ctx context.Context, file string, changes []PathChange) (*Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(OpApplyChanges)

	if f.ApplyHook != nil {
		if err := f.ApplyHook(file); err != nil {
			return nil, err
		}
	}
	if err := f.failure(file); err != nil {
		return nil, err
	}

	f.Applied[file] = append(f.Applied[file], changes...)

	outcome := &Outcome{Success: true, Message: fmt.Sprintf("applied %d changes", len(changes))}
	for _, ch := range changes {
		outcome.Changes = append(outcome.Changes, ChangeResult{
			ItemType: ch.ItemType,
			ItemName: ch.ItemName,
			Old:      ch.OldPath,
			New:      ch.NewPath,
			Status:   StatusUpdated,
		})
	}
	return outcome, nil
}

func (f *Fake) RenameEntities(ctx context.Context, file string, renames []Rename) (*Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(OpRename)

	if err := f.failure(file); err != nil {
		return nil, err
	}

	f.Renamed[file] = append(f.Renamed[file], renames...)

	outcome := &Outcome{Success: true, Message: fmt.Sprintf("renamed %d entities", len(renames))}
	for _, r := range renames {
		status := StatusUpdated
		found := false
		for _, e := range f.Entities[file] {
			if e.Type == r.ItemType && e.Name == r.OldName {
				found = true
				break
			}
		}
		if !found {
			status = StatusSkipped
		}
		outcome.Changes = append(outcome.Changes, ChangeResult{
			ItemType: r.ItemType,
			ItemName: r.OldName,
			Old:      r.OldName,
			New:      r.NewName,
			Status:   status,
		})
	}
	return outcome, nil
}

func (f *Fake) ListNamedEntities(ctx context.Context, file string) ([]Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(OpListEntities)

	if err := f.failure(file); err != nil {
		return nil, err
	}
	return f.Entities[file], nil
}
