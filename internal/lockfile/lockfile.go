// Package lockfile guards mutating operations with an exclusive file lock
// under the project's .blendlink directory, so two blendlink processes
// cannot interleave writes on one project. Read-only operations never take
// the lock.
package lockfile

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"blendlink/internal/config"
)

// Name is the lock file inside the .blendlink directory.
const Name = "blendlink.lock"

// Acquire takes the project's exclusive lock without blocking. Failing to
// acquire means another blendlink process is mutating this project right
// now; the caller reports that and exits rather than waiting.
func Acquire(rootDir string) (*flock.Flock, error) {
	fl := flock.New(filepath.Join(rootDir, config.DirName, Name))

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire project lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another blendlink process is already modifying this project")
	}
	return fl, nil
}

// Release drops the lock. Safe on nil.
func Release(fl *flock.Flock) {
	if fl != nil {
		_ = fl.Unlock()
	}
}
