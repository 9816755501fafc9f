package index

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"blendlink/internal/config"
	"blendlink/internal/errors"
	"blendlink/internal/ignore"
	"blendlink/internal/logging"
)

// File is one entry in the project inventory.
type File struct {
	// Path is the absolute path; every in-memory structure keys on it.
	Path string `json:"path"`
	// RelPath is slash-separated and relative to the project root, used
	// for display and for the state fingerprint.
	RelPath string `json:"relPath"`
	Kind    Kind   `json:"kind"`
	Size    int64  `json:"size"`
	MtimeNs int64  `json:"-"`
}

// Scanner walks a project tree and inventories its files.
type Scanner struct {
	root       string
	classifier *Classifier
	matcher    *ignore.Matcher
	logger     *logging.Logger
}

// NewScanner creates a scanner rooted at root. The matcher decides which
// entries are skipped.
func NewScanner(root string, cfg config.ScanConfig, matcher *ignore.Matcher, logger *logging.Logger) *Scanner {
	return &Scanner{
		root:       root,
		classifier: NewClassifier(cfg),
		matcher:    matcher,
		logger:     logger,
	}
}

// Scan walks the tree and returns the inventory sorted by relative path.
// Unreadable entries become warnings; only an unreadable root is fatal.
func (s *Scanner) Scan() ([]File, []string, error) {
	var files []File
	var warnings []string

	root, err := filepath.Abs(s.root)
	if err != nil {
		return nil, nil, errors.Wrap(errors.IOError, "cannot resolve project root", err).WithPath(s.root)
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return errors.Wrap(errors.IOError, "cannot read project root", err).WithPath(root)
			}
			rel := relOrSelf(root, path)
			warnings = append(warnings, fmt.Sprintf("skipping %s: %v", rel, err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path == root {
			return nil
		}

		rel := relOrSelf(root, path)

		if d.IsDir() {
			if s.matcher.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if s.matcher.Match(rel, false) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("cannot stat %s: %v", rel, err))
			return nil
		}

		files = append(files, File{
			Path:    path,
			RelPath: rel,
			Kind:    s.classifier.Classify(path),
			Size:    info.Size(),
			MtimeNs: info.ModTime().UnixNano(),
		})
		return nil
	})
	if walkErr != nil {
		return nil, nil, walkErr
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })

	s.logger.Debug("scan complete", map[string]interface{}{
		"root":     root,
		"files":    len(files),
		"warnings": len(warnings),
	})

	return files, warnings, nil
}

func relOrSelf(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// Holders filters the inventory down to files the engine can open.
func Holders(files []File) []File {
	var holders []File
	for _, f := range files {
		if f.Kind == KindPrimary {
			holders = append(holders, f)
		}
	}
	return holders
}
