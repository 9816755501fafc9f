// Package index discovers project files, pulls their stored references out
// of the engine and assembles the in-memory reference index the other
// operations query.
package index

import (
	"path/filepath"
	"strings"

	"blendlink/internal/config"
)

// Kind classifies a project file by its role.
type Kind string

const (
	// KindPrimary is a holder file the engine can open (.blend).
	KindPrimary Kind = "primary"
	// KindTexture is an image asset referenced by holders.
	KindTexture Kind = "texture"
	// KindBackup is an engine-written backup (.blend1, .blend2). Backups
	// are inventoried but never scanned or offered as relink candidates.
	KindBackup Kind = "backup"
	// KindOther is anything else living in the project tree.
	KindOther Kind = "other"
)

// Classifier maps file extensions to kinds using the configured lists.
type Classifier struct {
	primary map[string]bool
	texture map[string]bool
	backup  map[string]bool
}

// NewClassifier builds a classifier from the scan configuration.
func NewClassifier(cfg config.ScanConfig) *Classifier {
	return &Classifier{
		primary: extSet(cfg.PrimaryExtensions),
		texture: extSet(cfg.TextureExtensions),
		backup:  extSet(cfg.BackupExtensions),
	}
}

func extSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		set[strings.ToLower(ext)] = true
	}
	return set
}

// Classify returns the kind for a file path. Extension matching is
// case-insensitive. Backup extensions win over primary ones so that
// ".blend1" never classifies as a holder.
func (c *Classifier) Classify(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case c.backup[ext]:
		return KindBackup
	case c.primary[ext]:
		return KindPrimary
	case c.texture[ext]:
		return KindTexture
	default:
		return KindOther
	}
}
