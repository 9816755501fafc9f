// Package paths implements holder-relative path resolution and rebasing.
//
// Raw reference strings come in three forms: absolute, relative to the
// holder's directory, or prefixed with the "//" marker meaning "relative to
// the directory of the file that stores the reference". Everything here is
// pure string computation so previews and tests never touch the filesystem.
package paths

import (
	"path/filepath"
	"strings"

	"blendlink/internal/errors"
)

// Marker is the holder-relative prefix used in stored reference paths.
const Marker = "//"

// HasMarker reports whether a raw path carries the holder-relative marker.
func HasMarker(raw string) bool {
	return strings.HasPrefix(raw, Marker)
}

// StripMarker removes the holder-relative marker if present.
func StripMarker(raw string) string {
	return strings.TrimPrefix(raw, Marker)
}

// ApplyMarker prefixes a relative path with the marker. Stored marker paths
// always use forward slashes.
func ApplyMarker(rel string) string {
	return Marker + filepath.ToSlash(rel)
}

// NormalizeSlashes converts backslashes to forward slashes. Reference strings
// written on Windows keep their backslashes inside the holder file.
func NormalizeSlashes(raw string) string {
	return strings.ReplaceAll(raw, "\\", "/")
}

// IsAbsRaw reports whether a raw path (marker stripped or not) is absolute.
// Windows drive paths count as absolute even on non-Windows hosts, because
// holder files travel between platforms.
func IsAbsRaw(raw string) bool {
	if HasMarker(raw) {
		return false
	}
	p := NormalizeSlashes(raw)
	if filepath.IsAbs(p) {
		return true
	}
	// Drive-letter form, e.g. C:/textures/wood.png
	return len(p) >= 2 && p[1] == ':' &&
		(('a' <= p[0] && p[0] <= 'z') || ('A' <= p[0] && p[0] <= 'Z'))
}

// Resolve computes the absolute path a raw reference points to, given the
// directory of its holder (or of the library it arrived through). Pure; the
// result may or may not exist on disk.
func Resolve(raw, holderDir string) string {
	p := NormalizeSlashes(StripMarker(raw))
	if IsAbsRaw(raw) {
		return filepath.Clean(filepath.FromSlash(p))
	}
	return filepath.Clean(filepath.Join(holderDir, filepath.FromSlash(p)))
}

// Rebase recomputes a raw reference path after its holder moves from oldDir
// to newDir so that it keeps pointing at the same target.
//
// Absolute and empty inputs are holder-independent and returned unchanged.
// The marker is re-applied iff the input carried it. When the target cannot
// be expressed relative to newDir (no common root), Rebase returns the
// absolute target path together with a RESOLUTION_ERROR; the returned path is
// still usable and the error is advisory.
func Rebase(raw, oldDir, newDir string) (string, error) {
	if raw == "" || IsAbsRaw(raw) {
		return raw, nil
	}

	marked := HasMarker(raw)
	target := Resolve(raw, oldDir)

	rel, err := filepath.Rel(newDir, target)
	if err != nil {
		return filepath.ToSlash(target), errors.Wrap(errors.ResolutionError,
			"cannot express path relative to new directory", err).WithPath(raw)
	}

	if marked {
		return ApplyMarker(rel), nil
	}
	return filepath.ToSlash(rel), nil
}

// RebaseOnTargetMove rewrites a raw reference when the referenced file (not
// the holder) moves. The reference is rewritten only if it currently resolves
// to targetOldAbs; the comparison is by resolved path, not by string, since
// two different raw strings can point at the same file. The second return
// reports whether a rewrite happened.
//
// The rewritten path keeps the shape of the input: marker paths stay marker
// paths, absolute paths stay absolute, bare relative paths stay bare. A
// cross-root rewrite degrades to the absolute target plus a RESOLUTION_ERROR.
func RebaseOnTargetMove(raw, holderDir, targetOldAbs, targetNewAbs string) (string, bool, error) {
	if raw == "" {
		return raw, false, nil
	}
	if Resolve(raw, holderDir) != filepath.Clean(targetOldAbs) {
		return raw, false, nil
	}

	newAbs := filepath.Clean(targetNewAbs)
	if IsAbsRaw(raw) {
		return filepath.ToSlash(newAbs), true, nil
	}

	rel, err := filepath.Rel(holderDir, newAbs)
	if err != nil {
		return filepath.ToSlash(newAbs), true, errors.Wrap(errors.ResolutionError,
			"cannot express moved target relative to holder", err).WithPath(raw)
	}

	if HasMarker(raw) {
		return ApplyMarker(rel), true, nil
	}
	return filepath.ToSlash(rel), true, nil
}

// MakeRelative expresses an absolute target relative to baseDir, with forward
// slashes. Fails when the two share no common root.
func MakeRelative(abs, baseDir string) (string, error) {
	rel, err := filepath.Rel(baseDir, filepath.Clean(abs))
	if err != nil {
		return "", errors.Wrap(errors.ResolutionError,
			"no common root between path and base directory", err).WithPath(abs)
	}
	return filepath.ToSlash(rel), nil
}

// Canonical returns the cleaned absolute form of a path. File identity across
// the index is canonical-path equality.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// IsWithinRoot reports whether path sits inside root after cleaning. Moves
// that would escape the project root are rejected during validation.
func IsWithinRoot(path, root string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
