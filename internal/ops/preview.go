// Package ops assembles operation previews and executes them through the
// file engine. Previews are pure: planning never touches the engine or the
// disk, so dry-run and execute share one computation path up to the moment
// changes are committed.
package ops

import (
	"fmt"

	"blendlink/internal/engine"
)

// Operation names carried in previews and results.
const (
	OpMove   = "move"
	OpRelink = "relink"
	OpRename = "rename"
)

// Skip reasons recorded during planning.
const (
	// SkipAlsoMoved marks a reference whose target moved by the same offset
	// as its holder. Rebasing it would double-correct a still-consistent
	// reference.
	SkipAlsoMoved = "also moved"
)

// DiskMove is one filesystem rename the operation performs before any
// engine invocation. A single entry may move a whole directory.
type DiskMove struct {
	OldPath string `json:"oldPath"`
	NewPath string `json:"newPath"`
	IsDir   bool   `json:"isDir,omitempty"`
}

// FileChanges groups the path rewrites destined for one holder file. The
// engine is invoked once per entry.
type FileChanges struct {
	File    string              `json:"file"`
	Changes []engine.PathChange `json:"changes"`
}

// FileRenames groups the entity renames destined for one holder file.
type FileRenames struct {
	File    string          `json:"file"`
	Renames []engine.Rename `json:"renames"`
}

// SkippedRef records a reference the planner deliberately left alone.
type SkippedRef struct {
	Holder  string `json:"holder"`
	RawPath string `json:"rawPath"`
	Reason  string `json:"reason"`
}

// Preview is the computed, side-effect-free description of everything an
// operation would do. An invalid preview (any error recorded) must never
// reach the executor.
type Preview struct {
	Operation    string        `json:"operation"`
	AllOrNothing bool          `json:"allOrNothing,omitempty"`
	Moves        []DiskMove    `json:"moves,omitempty"`
	Changes      []FileChanges `json:"changes,omitempty"`
	Renames      []FileRenames `json:"renames,omitempty"`
	Skipped      []SkippedRef  `json:"skipped,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
	Errors       []string      `json:"errors,omitempty"`
}

// NewPreview creates an empty preview for the named operation.
func NewPreview(operation string) *Preview {
	return &Preview{Operation: operation}
}

// Valid reports whether the preview may be executed. Warnings do not block
// execution; errors do.
func (p *Preview) Valid() bool {
	return len(p.Errors) == 0
}

// Empty reports whether the preview contains no work at all.
func (p *Preview) Empty() bool {
	return len(p.Moves) == 0 && len(p.Changes) == 0 && len(p.Renames) == 0
}

// TotalChanges counts the individual path rewrites and renames planned.
func (p *Preview) TotalChanges() int {
	n := 0
	for _, fc := range p.Changes {
		n += len(fc.Changes)
	}
	for _, fr := range p.Renames {
		n += len(fr.Renames)
	}
	return n
}

// Warnf records a non-blocking planning finding.
func (p *Preview) Warnf(format string, args ...interface{}) {
	p.Warnings = append(p.Warnings, fmt.Sprintf(format, args...))
}

// Errorf records a blocking validation failure, invalidating the preview.
func (p *Preview) Errorf(format string, args ...interface{}) {
	p.Errors = append(p.Errors, fmt.Sprintf(format, args...))
}

// Skip records a reference left untouched on purpose.
func (p *Preview) Skip(holder, rawPath, reason string) {
	p.Skipped = append(p.Skipped, SkippedRef{Holder: holder, RawPath: rawPath, Reason: reason})
}

// AddChanges appends one holder's path rewrites. Empty sets are dropped so
// the executor never invokes the engine for nothing.
func (p *Preview) AddChanges(file string, changes []engine.PathChange) {
	if len(changes) == 0 {
		return
	}
	p.Changes = append(p.Changes, FileChanges{File: file, Changes: changes})
}

// AddRenames appends one holder's entity renames.
func (p *Preview) AddRenames(file string, renames []engine.Rename) {
	if len(renames) == 0 {
		return
	}
	p.Renames = append(p.Renames, FileRenames{File: file, Renames: renames})
}
