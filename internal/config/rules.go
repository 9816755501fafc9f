package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// RulesFileName is the optional per-project rules file at the project root.
// Unlike .blendlink/config.json it is meant to be committed alongside the
// assets it describes.
const RulesFileName = "blendlink.yaml"

// Rules holds per-project overrides loaded from blendlink.yaml
type Rules struct {
	Ignore     []string       `yaml:"ignore"`
	Extensions ExtensionRules `yaml:"extensions"`
}

// ExtensionRules overrides the file classification lists. Empty lists keep
// the configured defaults.
type ExtensionRules struct {
	Primary []string `yaml:"primary"`
	Texture []string `yaml:"texture"`
	Backup  []string `yaml:"backup"`
}

// LoadRules reads blendlink.yaml from rootDir. A missing file is not an
// error and yields empty rules.
func LoadRules(rootDir string) (*Rules, error) {
	path := filepath.Join(rootDir, RulesFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Rules{}, nil
		}
		return nil, err
	}

	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, err
	}
	return &rules, nil
}

// ApplyRules merges project rules into the config. Ignore patterns are
// appended; extension lists replace the configured ones when non-empty.
func (c *Config) ApplyRules(r *Rules) {
	if r == nil {
		return
	}

	c.Scan.IgnorePatterns = append(c.Scan.IgnorePatterns, r.Ignore...)

	if len(r.Extensions.Primary) > 0 {
		c.Scan.PrimaryExtensions = r.Extensions.Primary
	}
	if len(r.Extensions.Texture) > 0 {
		c.Scan.TextureExtensions = r.Extensions.Texture
	}
	if len(r.Extensions.Backup) > 0 {
		c.Scan.BackupExtensions = r.Extensions.Backup
	}
}
