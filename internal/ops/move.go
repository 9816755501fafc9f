package ops

import (
	"os"
	"path/filepath"
	"strings"

	"blendlink/internal/engine"
	"blendlink/internal/index"
	"blendlink/internal/logging"
	"blendlink/internal/paths"
)

// Move modes.
const (
	// ModeDiskAndRefs moves the files on disk and rewrites every affected
	// reference.
	ModeDiskAndRefs = "disk-and-refs"
	// ModeRefsOnly rewrites references as if the move had happened, without
	// touching the disk. Used when files were already moved by other means.
	ModeRefsOnly = "refs-only"
	// ModeMoveBlend is an accepted alias for ModeDiskAndRefs.
	ModeMoveBlend = "move-blend"
)

// MoveRequest describes a proposed file or directory move.
type MoveRequest struct {
	OldPath string
	NewPath string
	Mode    string
}

// movedPair tracks one file covered by the move. indexPath is where the
// index holds the file: the source for a pending disk move, either side
// for a refs-only move (the file may already sit at the destination).
// enginePath is where the engine must open the holder, which is the
// destination for a disk move and the indexed location otherwise.
type movedPair struct {
	oldPath    string
	newPath    string
	indexPath  string
	enginePath string
}

// MovePlanner computes move previews against a built index. Planning is
// pure: it stats the endpoints but changes nothing.
type MovePlanner struct {
	ix     *index.Index
	logger *logging.Logger
}

// NewMovePlanner creates a planner over an index snapshot.
func NewMovePlanner(ix *index.Index, logger *logging.Logger) *MovePlanner {
	return &MovePlanner{ix: ix, logger: logger}
}

// PlanMove builds the full preview for a move: the disk renames, the
// outgoing rebases for every moved holder, and the incoming retargets for
// every holder left behind that points into the moved set. Validation
// failures invalidate the preview; resolution degradations become
// warnings.
func (pl *MovePlanner) PlanMove(req MoveRequest) *Preview {
	p := NewPreview(OpMove)

	oldAbs, err := paths.Canonical(req.OldPath)
	if err != nil {
		p.Errorf("invalid source path %q: %v", req.OldPath, err)
		return p
	}
	newAbs, err := paths.Canonical(req.NewPath)
	if err != nil {
		p.Errorf("invalid destination path %q: %v", req.NewPath, err)
		return p
	}

	switch req.Mode {
	case "", ModeDiskAndRefs, ModeRefsOnly, ModeMoveBlend:
	default:
		p.Errorf("unknown move mode %q", req.Mode)
	}
	if oldAbs == newAbs {
		p.Errorf("source and destination are the same: %s", oldAbs)
	}
	if !paths.IsWithinRoot(newAbs, pl.ix.Root) {
		p.Errorf("destination is outside the project root: %s", newAbs)
	}

	refsOnly := req.Mode == ModeRefsOnly

	info, statErr := os.Stat(oldAbs)
	if statErr != nil && !refsOnly {
		p.Errorf("source does not exist: %s", oldAbs)
	}
	if _, err := os.Stat(newAbs); err == nil && !refsOnly {
		p.Errorf("destination already exists: %s", newAbs)
	}

	if !p.Valid() {
		return p
	}

	isDir := pl.moveIsDir(oldAbs, newAbs, info, refsOnly)

	var pairs []movedPair
	if refsOnly {
		pairs = pl.refsOnlyPairs(oldAbs, newAbs, isDir)
	} else {
		pairs = pl.diskPairs(oldAbs, newAbs, isDir)
	}
	if len(pairs) == 0 {
		p.Warnf("no indexed files under %s", oldAbs)
	}

	byIndex := make(map[string]movedPair, len(pairs))
	moved := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		byIndex[pair.indexPath] = pair
		moved[pair.oldPath] = pair.newPath
	}

	if !refsOnly {
		p.Moves = []DiskMove{{OldPath: oldAbs, NewPath: newAbs, IsDir: isDir}}
	}

	pl.planOutgoing(p, byIndex, moved)
	pl.planIncoming(p, byIndex, moved)

	pl.logger.Debug("move planned", map[string]interface{}{
		"from":    oldAbs,
		"to":      newAbs,
		"moved":   len(pairs),
		"changes": p.TotalChanges(),
		"skipped": len(p.Skipped),
	})

	return p
}

// moveIsDir decides whether the move covers a directory. In refs-only mode
// the source may already be gone, so the destination and finally the index
// answer instead.
func (pl *MovePlanner) moveIsDir(oldAbs, newAbs string, info os.FileInfo, refsOnly bool) bool {
	if info != nil {
		return info.IsDir()
	}
	if !refsOnly {
		return false
	}
	if destInfo, err := os.Stat(newAbs); err == nil {
		return destInfo.IsDir()
	}
	return pl.indexedUnder(oldAbs) || pl.indexedUnder(newAbs)
}

func (pl *MovePlanner) indexedUnder(dir string) bool {
	prefix := dir + string(filepath.Separator)
	for _, f := range pl.ix.Files {
		if strings.HasPrefix(f.Path, prefix) {
			return true
		}
	}
	return false
}

// diskPairs lists the files a disk move carries, indexed at their source.
// A directory move covers every indexed file under it.
func (pl *MovePlanner) diskPairs(oldAbs, newAbs string, isDir bool) []movedPair {
	if !isDir {
		return []movedPair{{oldPath: oldAbs, newPath: newAbs, indexPath: oldAbs, enginePath: newAbs}}
	}

	var pairs []movedPair
	prefix := oldAbs + string(filepath.Separator)
	for _, f := range pl.ix.Files {
		if strings.HasPrefix(f.Path, prefix) {
			dest := filepath.Join(newAbs, f.Path[len(prefix):])
			pairs = append(pairs, movedPair{oldPath: f.Path, newPath: dest, indexPath: f.Path, enginePath: dest})
		}
	}
	return pairs
}

// refsOnlyPairs lists the files a refs-only move covers. The index may hold
// them at the source (move not yet performed) or already at the destination
// (moved by other means, then rescanned); both sides count, and the engine
// path is wherever the index found the file.
func (pl *MovePlanner) refsOnlyPairs(oldAbs, newAbs string, isDir bool) []movedPair {
	if !isDir {
		at := newAbs
		if _, ok := pl.ix.Lookup(oldAbs); ok {
			at = oldAbs
		}
		return []movedPair{{oldPath: oldAbs, newPath: newAbs, indexPath: at, enginePath: at}}
	}

	var pairs []movedPair
	covered := map[string]bool{}
	oldPrefix := oldAbs + string(filepath.Separator)
	newPrefix := newAbs + string(filepath.Separator)

	for _, f := range pl.ix.Files {
		if strings.HasPrefix(f.Path, oldPrefix) {
			dest := filepath.Join(newAbs, f.Path[len(oldPrefix):])
			pairs = append(pairs, movedPair{oldPath: f.Path, newPath: dest, indexPath: f.Path, enginePath: f.Path})
			covered[f.Path] = true
		}
	}
	for _, f := range pl.ix.Files {
		if !strings.HasPrefix(f.Path, newPrefix) {
			continue
		}
		src := filepath.Join(oldAbs, f.Path[len(newPrefix):])
		if covered[src] {
			continue
		}
		pairs = append(pairs, movedPair{oldPath: src, newPath: f.Path, indexPath: f.Path, enginePath: f.Path})
	}
	return pairs
}

// planOutgoing rebases the references held by moved holders so they keep
// pointing at their unmoved targets. Raw paths were stored while the holder
// sat at its source, so resolution and the co-move check run against the
// source directory even when the index already sees the holder at its
// destination. Co-moved targets are skipped: their relative relationship to
// the holder is preserved by the move itself. References that arrived
// through a linked library are stored in the library, not the holder, so
// holder movement does not affect them.
func (pl *MovePlanner) planOutgoing(p *Preview, byIndex map[string]movedPair, moved map[string]string) {
	for _, holder := range pl.ix.Holders() {
		pair, isMoved := byIndex[holder]
		if !isMoved {
			continue
		}

		oldDir := filepath.Dir(pair.oldPath)
		newDir := filepath.Dir(pair.newPath)

		var changes []engine.PathChange
		for _, ref := range pl.ix.References(holder) {
			if ref.Packed || ref.LibraryPath != "" {
				continue
			}
			if ref.RawPath == "" || paths.IsAbsRaw(ref.RawPath) {
				continue
			}

			if _, targetMoved := moved[paths.Resolve(ref.RawPath, oldDir)]; targetMoved {
				p.Skip(holder, ref.RawPath, SkipAlsoMoved)
				continue
			}

			newRaw, err := paths.Rebase(ref.RawPath, oldDir, newDir)
			if err != nil {
				p.Warnf("%s: %s degraded to absolute: %v", holder, ref.RawPath, err)
			}
			if newRaw == ref.RawPath {
				continue
			}

			changes = append(changes, engine.PathChange{
				ItemType: ref.Kind,
				ItemName: ref.Name,
				OldPath:  ref.RawPath,
				NewPath:  newRaw,
			})
		}

		p.AddChanges(pair.enginePath, changes)
	}
}

// planIncoming retargets references held by unmoved holders that resolve
// into the moved set.
func (pl *MovePlanner) planIncoming(p *Preview, byIndex map[string]movedPair, moved map[string]string) {
	for _, holder := range pl.ix.Holders() {
		if _, isMoved := byIndex[holder]; isMoved {
			continue
		}

		holderDir := filepath.Dir(holder)

		var changes []engine.PathChange
		for _, ref := range pl.ix.References(holder) {
			if ref.Packed || ref.LibraryPath != "" || ref.RawPath == "" {
				continue
			}

			targetOld := paths.Resolve(ref.RawPath, holderDir)
			targetNew, targetMoved := moved[targetOld]
			if !targetMoved {
				continue
			}

			newRaw, changed, err := paths.RebaseOnTargetMove(ref.RawPath, holderDir, targetOld, targetNew)
			if err != nil {
				p.Warnf("%s: %s degraded to absolute: %v", holder, ref.RawPath, err)
			}
			if !changed || newRaw == ref.RawPath {
				continue
			}

			changes = append(changes, engine.PathChange{
				ItemType: ref.Kind,
				ItemName: ref.Name,
				OldPath:  ref.RawPath,
				NewPath:  newRaw,
			})
		}

		p.AddChanges(holder, changes)
	}
}
