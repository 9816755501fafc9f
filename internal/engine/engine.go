// Package engine defines the contract with the file engine, the external
// tool that can open holder files to read and rewrite the references stored
// inside them. The CLI never parses holder files itself; everything flows
// through this package.
package engine

import "context"

// Operation names understood by the engine bridge.
const (
	OpPing         = "ping"
	OpExtract      = "extract-references"
	OpBatchExtract = "batch-extract"
	OpApplyChanges = "apply-path-changes"
	OpRename       = "rename-entities"
	OpListEntities = "list-named-entities"
)

// Reference kinds reported by the engine.
const (
	KindImage   = "image"
	KindLibrary = "library"
	KindSound   = "sound"
	KindCache   = "cache"
	KindVideo   = "video"
	KindFont    = "font"
)

// Entity types addressable by rename and list operations.
const (
	EntityObject     = "object"
	EntityCollection = "collection"
)

// Change statuses reported in an Outcome.
const (
	StatusUpdated = "updated"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Reference is one outgoing file reference found in a holder file. RawPath
// is byte-for-byte what the holder stores, including the // marker when
// present.
type Reference struct {
	Kind        string `json:"kind"`
	Name        string `json:"name,omitempty"`
	RawPath     string `json:"rawPath"`
	Packed      bool   `json:"packed,omitempty"`
	LibraryPath string `json:"libraryPath,omitempty"`
}

// FileReferences is the extraction result for one holder file.
type FileReferences struct {
	File       string      `json:"file"`
	References []Reference `json:"references"`
	Warnings   []string    `json:"warnings,omitempty"`
}

// PathChange is a single reference rewrite to apply inside a holder file.
type PathChange struct {
	ItemType string `json:"itemType"`
	ItemName string `json:"itemName,omitempty"`
	OldPath  string `json:"oldPath"`
	NewPath  string `json:"newPath"`
}

// Rename is a single entity rename inside a holder file.
type Rename struct {
	ItemType string `json:"itemType"`
	OldName  string `json:"oldName"`
	NewName  string `json:"newName"`
}

// Entity is a named datablock inside a holder file.
type Entity struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// ChangeResult reports one attempted change. Old and New hold paths for
// path changes and names for renames.
type ChangeResult struct {
	ItemType string `json:"itemType"`
	ItemName string `json:"itemName,omitempty"`
	Old      string `json:"old"`
	New      string `json:"new"`
	Status   string `json:"status"`
	Detail   string `json:"detail,omitempty"`
}

// Outcome is the engine's report for a mutating operation. Success false
// with a populated Errors list means the file was opened but some changes
// could not be applied.
type Outcome struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message,omitempty"`
	Changes  []ChangeResult `json:"changes,omitempty"`
	Errors   []string       `json:"errors,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
}

// Engine is the interface the rest of the tool programs against. The
// subprocess Client is the production implementation; Fake backs tests.
type Engine interface {
	// Ping checks that the engine binary is runnable and returns its
	// reported version.
	Ping(ctx context.Context) (string, error)

	// ExtractReferences opens one holder file and lists every outgoing
	// reference it stores.
	ExtractReferences(ctx context.Context, file string) (*FileReferences, error)

	// BatchExtract extracts references from many holder files in a single
	// engine session. Files the engine could not open are absent from the
	// result; callers fall back to per-file extraction for those.
	BatchExtract(ctx context.Context, files []string) ([]FileReferences, error)

	// ApplyPathChanges rewrites stored reference paths inside one holder
	// file.
	ApplyPathChanges(ctx context.Context, file string, changes []PathChange) (*Outcome, error)

	// RenameEntities renames datablocks inside one holder file.
	RenameEntities(ctx context.Context, file string, renames []Rename) (*Outcome, error)

	// ListNamedEntities lists the named datablocks in one holder file.
	ListNamedEntities(ctx context.Context, file string) ([]Entity, error)
}
