// Package ignore provides gitignore-style pattern matching for the project
// scan. Patterns come from the built-in defaults, the project rules file, and
// an optional .blendlinkignore at the project root.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Pattern represents a single ignore pattern with its properties.
type Pattern struct {
	pattern  string
	negated  bool
	dirOnly  bool
	anchored bool // Pattern starts with / (matches from root only)
}

// Matcher holds compiled ignore patterns and provides matching functionality.
type Matcher struct {
	patterns []Pattern
}

// NewMatcher creates a new empty Matcher.
func NewMatcher() *Matcher {
	return &Matcher{patterns: []Pattern{}}
}

// AddPattern adds a single pattern string to the matcher.
func (m *Matcher) AddPattern(line string) {
	line = strings.TrimSpace(line)

	// Skip empty lines and comments
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}

	p := Pattern{}

	if strings.HasPrefix(line, "!") {
		p.negated = true
		line = line[1:]
	}

	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}

	if strings.HasPrefix(line, "/") {
		p.anchored = true
		line = line[1:]
	}

	// Patterns without a slash match their basename at any depth
	if !p.anchored && !strings.Contains(line, "/") {
		line = "**/" + line
	}

	p.pattern = line
	m.patterns = append(m.patterns, p)
}

// AddPatterns adds multiple pattern strings to the matcher.
func (m *Matcher) AddPatterns(lines []string) {
	for _, line := range lines {
		m.AddPattern(line)
	}
}

// LoadFile loads patterns from a gitignore-style file. A missing file is not
// an error.
func (m *Matcher) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		m.AddPattern(scanner.Text())
	}

	return scanner.Err()
}

// Match checks if a path should be ignored. The path must be relative to the
// project root; isDir indicates whether it names a directory. Later patterns
// override earlier ones, so negations can re-include files.
func (m *Matcher) Match(path string, isDir bool) bool {
	path = filepath.ToSlash(path)
	path = strings.TrimPrefix(path, "./")

	ignored := false

	for _, p := range m.patterns {
		// A dirOnly pattern never matches a file directly, but does match
		// files living inside a matching directory
		if p.dirOnly && !isDir {
			if m.matchDirPattern(p.pattern, path) {
				ignored = !p.negated
			}
			continue
		}

		if m.matchPattern(p.pattern, path) {
			ignored = !p.negated
		}
	}

	return ignored
}

// matchDirPattern checks if a path is inside a directory matching the pattern.
func (m *Matcher) matchDirPattern(pattern, path string) bool {
	// Check every proper prefix; the full path itself names a file
	parts := strings.Split(path, "/")
	for i := 1; i < len(parts); i++ {
		prefix := strings.Join(parts[:i], "/")
		if m.matchPattern(pattern, prefix) {
			return true
		}
	}
	return false
}

// matchPattern checks if a path matches a single pattern.
func (m *Matcher) matchPattern(pattern, path string) bool {
	matched, _ := doublestar.Match(pattern, path)
	if matched {
		return true
	}

	// "build" should also match "build/foo/bar.png"
	if !strings.HasSuffix(pattern, "/**") {
		matched, _ = doublestar.Match(pattern+"/**", path)
		if matched {
			return true
		}
	}

	return false
}

// LoadDefaults loads the default ignore patterns for project scans.
func (m *Matcher) LoadDefaults() {
	defaults := []string{
		// Version control and workspace
		".git/",
		".blendlink/",
		".svn/",
		".hg/",

		// OS junk
		".DS_Store",
		"Thumbs.db",

		// Python tooling commonly found next to Blender pipelines
		"__pycache__/",
		".pytest_cache/",
		".venv/",
		"venv/",
		"*.egg-info/",

		// Generic build output
		"node_modules/",
		"build/",
		"dist/",

		// Editor and Blender temp files
		"*.tmp",
		"*.swp",
		"*.blend@",
	}
	m.AddPatterns(defaults)
}

// LoadFromDir builds a matcher for a project root: defaults first, then the
// root's .blendlinkignore, then any extra patterns. Later patterns win.
func LoadFromDir(dir string, extra []string) (*Matcher, error) {
	m := NewMatcher()
	m.LoadDefaults()

	if err := m.LoadFile(filepath.Join(dir, ".blendlinkignore")); err != nil {
		return nil, err
	}

	m.AddPatterns(extra)
	return m, nil
}

// Compile creates a matcher from a list of pattern strings only.
func Compile(patterns []string) *Matcher {
	m := NewMatcher()
	m.AddPatterns(patterns)
	return m
}
