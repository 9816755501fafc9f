// Package project manages the manifest stored in .blendlink/project.toml and
// locates the project root from any working directory.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"blendlink/internal/config"
)

// ManifestName is the manifest file name inside the .blendlink directory.
const ManifestName = "project.toml"

// Manifest represents a project manifest stored in project.toml
type Manifest struct {
	// ProjectID is the immutable UUID for this project (never changes)
	ProjectID string `toml:"project_id"`

	// Name is the human-friendly project name
	Name string `toml:"name"`

	// CreatedAt is when the project was initialized
	CreatedAt time.Time `toml:"created_at"`

	// UpdatedAt is when the manifest was last written
	UpdatedAt time.Time `toml:"updated_at"`
}

// NewManifest creates a manifest for a freshly initialized project
func NewManifest(name string) *Manifest {
	now := time.Now().UTC()
	return &Manifest{
		ProjectID: uuid.New().String(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func manifestPath(rootDir string) string {
	return filepath.Join(rootDir, config.DirName, ManifestName)
}

// Load reads the manifest from rootDir/.blendlink/project.toml
func Load(rootDir string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(manifestPath(rootDir), &m); err != nil {
		return nil, fmt.Errorf("failed to parse project manifest: %w", err)
	}
	return &m, nil
}

// Save writes the manifest to rootDir/.blendlink/project.toml, bumping
// UpdatedAt. The .blendlink directory must already exist.
func (m *Manifest) Save(rootDir string) error {
	m.UpdatedAt = time.Now().UTC()

	f, err := os.Create(manifestPath(rootDir))
	if err != nil {
		return fmt.Errorf("failed to create manifest file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(m); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	return nil
}

// Exists reports whether rootDir holds an initialized project manifest.
func Exists(rootDir string) bool {
	_, err := os.Stat(manifestPath(rootDir))
	return err == nil
}

// FindRoot walks up from startDir to the nearest directory containing a
// .blendlink metadata directory.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		info, err := os.Stat(filepath.Join(dir, config.DirName))
		if err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("no %s directory found in %s or any parent (run 'blendlink init' first)", config.DirName, startDir)
}
