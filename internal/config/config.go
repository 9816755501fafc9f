package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// DirName is the project metadata directory created by `blendlink init`.
const DirName = ".blendlink"

// FileName is the config file name inside DirName.
const FileName = "config.json"

// SupportedConfigVersions lists config schema versions this build can read.
var SupportedConfigVersions = []int{1}

// Timeout classes for engine operations. Each engine call is assigned a
// class; the config maps classes to milliseconds.
const (
	TimeoutShort    = "short"
	TimeoutMedium   = "medium"
	TimeoutLong     = "long"
	TimeoutVeryLong = "very_long"
)

// defaultTimeoutMs is the fallback when a class is missing from the config.
var defaultTimeoutMs = map[string]int{
	TimeoutShort:    60000,
	TimeoutMedium:   120000,
	TimeoutLong:     180000,
	TimeoutVeryLong: 300000,
}

// Config represents the complete blendlink configuration (v1 schema)
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Engine  EngineConfig  `json:"engine" mapstructure:"engine"`
	Scan    ScanConfig    `json:"scan" mapstructure:"scan"`
	Relink  RelinkConfig  `json:"relink" mapstructure:"relink"`
	Cache   CacheConfig   `json:"cache" mapstructure:"cache"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// EngineConfig describes how to invoke the file engine subprocess
type EngineConfig struct {
	Command   string         `json:"command" mapstructure:"command"`
	Args      []string       `json:"args" mapstructure:"args"`
	TimeoutMs map[string]int `json:"timeoutMs" mapstructure:"timeoutMs"`
}

// Timeout returns the duration for a timeout class, falling back to the
// built-in default when the class is not configured.
func (e EngineConfig) Timeout(class string) time.Duration {
	if ms, ok := e.TimeoutMs[class]; ok && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	if ms, ok := defaultTimeoutMs[class]; ok {
		return time.Duration(ms) * time.Millisecond
	}
	return time.Duration(defaultTimeoutMs[TimeoutMedium]) * time.Millisecond
}

// ScanConfig controls project scanning and file classification
type ScanConfig struct {
	PrimaryExtensions []string `json:"primaryExtensions" mapstructure:"primaryExtensions"`
	TextureExtensions []string `json:"textureExtensions" mapstructure:"textureExtensions"`
	BackupExtensions  []string `json:"backupExtensions" mapstructure:"backupExtensions"`
	IgnorePatterns    []string `json:"ignorePatterns" mapstructure:"ignorePatterns"`
}

// RelinkConfig controls fuzzy relink candidate search
type RelinkConfig struct {
	MinSimilarity float64 `json:"minSimilarity" mapstructure:"minSimilarity"`
	MaxCandidates int     `json:"maxCandidates" mapstructure:"maxCandidates"`
}

// CacheConfig controls the scan result cache
type CacheConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Engine: EngineConfig{
			Command: "blender",
			Args:    []string{"--background"},
			TimeoutMs: map[string]int{
				TimeoutShort:    60000,
				TimeoutMedium:   120000,
				TimeoutLong:     180000,
				TimeoutVeryLong: 300000,
			},
		},
		Scan: ScanConfig{
			PrimaryExtensions: []string{".blend"},
			TextureExtensions: []string{".png", ".jpg", ".jpeg", ".exr", ".hdr", ".tif", ".tiff"},
			BackupExtensions:  []string{".blend1", ".blend2"},
			IgnorePatterns:    []string{},
		},
		Relink: RelinkConfig{
			MinSimilarity: 0.6,
			MaxCandidates: 5,
		},
		Cache: CacheConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// EnvOverride records a config value that was overridden via environment
type EnvOverride struct {
	EnvVar string
	Path   string
	Value  string
}

// LoadResult carries the loaded config plus details about where it came from
type LoadResult struct {
	Config       *Config
	ConfigPath   string
	UsedDefaults bool
	EnvOverrides []EnvOverride
}

// envVarMappings maps environment variables to config paths.
// BLENDLINK_CONFIG_PATH is handled separately in LoadConfigWithDetails.
var envVarMappings = map[string]string{
	"BLENDLINK_LOG_LEVEL":             "logging.level",
	"BLENDLINK_LOG_FORMAT":            "logging.format",
	"BLENDLINK_ENGINE_COMMAND":        "engine.command",
	"BLENDLINK_CACHE_ENABLED":         "cache.enabled",
	"BLENDLINK_RELINK_MIN_SIMILARITY": "relink.minSimilarity",
	"BLENDLINK_RELINK_MAX_CANDIDATES": "relink.maxCandidates",
}

// GetSupportedEnvVars returns the environment variables that can override
// config values, for display in doctor output.
func GetSupportedEnvVars() []string {
	vars := []string{"BLENDLINK_CONFIG_PATH"}
	for envVar := range envVarMappings {
		vars = append(vars, envVar)
	}
	return vars
}

// LoadConfig loads configuration from .blendlink/config.json under rootDir,
// applying any environment overrides. Missing config yields defaults.
func LoadConfig(rootDir string) (*Config, error) {
	result, err := LoadConfigWithDetails(rootDir)
	if err != nil {
		return nil, err
	}
	return result.Config, nil
}

// LoadConfigWithDetails loads configuration and reports its provenance.
// Resolution order: BLENDLINK_CONFIG_PATH, then rootDir/.blendlink/config.json,
// then built-in defaults.
func LoadConfigWithDetails(rootDir string) (*LoadResult, error) {
	result := &LoadResult{}

	if envPath := os.Getenv("BLENDLINK_CONFIG_PATH"); envPath != "" {
		cfg, err := loadConfigFromPath(envPath)
		if err != nil {
			return nil, err
		}
		result.Config = cfg
		result.ConfigPath = envPath
	} else {
		standardPath := filepath.Join(rootDir, DirName, FileName)
		if _, err := os.Stat(standardPath); err == nil {
			cfg, err := loadConfigFromPath(standardPath)
			if err != nil {
				return nil, err
			}
			result.Config = cfg
			result.ConfigPath = standardPath
		} else {
			result.Config = DefaultConfig()
			result.UsedDefaults = true
		}
	}

	result.EnvOverrides = applyEnvOverrides(result.Config)
	return result, nil
}

// loadConfigFromPath reads a config file and merges it over the defaults,
// so fields absent from the file keep their default values.
func loadConfigFromPath(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config
// and returns the overrides that took effect. Values that fail to parse
// are skipped.
func applyEnvOverrides(cfg *Config) []EnvOverride {
	var overrides []EnvOverride

	for envVar, path := range envVarMappings {
		raw := os.Getenv(envVar)
		if raw == "" {
			continue
		}

		var value interface{}
		switch path {
		case "cache.enabled":
			b, err := strconv.ParseBool(raw)
			if err != nil {
				continue
			}
			value = b
		case "relink.minSimilarity":
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				continue
			}
			value = f
		case "relink.maxCandidates":
			n, err := strconv.Atoi(raw)
			if err != nil {
				continue
			}
			value = n
		default:
			value = raw
		}

		if applyOverride(cfg, path, value) {
			overrides = append(overrides, EnvOverride{EnvVar: envVar, Path: path, Value: raw})
		}
	}

	return overrides
}

// applyOverride sets a single config value by dotted path. Returns false for
// unknown paths or mismatched value types.
func applyOverride(cfg *Config, path string, value interface{}) bool {
	switch path {
	case "logging.level":
		s, ok := value.(string)
		if !ok {
			return false
		}
		cfg.Logging.Level = s
	case "logging.format":
		s, ok := value.(string)
		if !ok {
			return false
		}
		cfg.Logging.Format = s
	case "engine.command":
		s, ok := value.(string)
		if !ok {
			return false
		}
		cfg.Engine.Command = s
	case "cache.enabled":
		b, ok := value.(bool)
		if !ok {
			return false
		}
		cfg.Cache.Enabled = b
	case "relink.minSimilarity":
		f, ok := value.(float64)
		if !ok {
			return false
		}
		cfg.Relink.MinSimilarity = f
	case "relink.maxCandidates":
		n, ok := value.(int)
		if !ok {
			return false
		}
		cfg.Relink.MaxCandidates = n
	default:
		return false
	}
	return true
}

// Save writes the configuration to .blendlink/config.json under rootDir.
// The .blendlink directory must already exist.
func (c *Config) Save(rootDir string) error {
	configPath := filepath.Join(rootDir, DirName, FileName)

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	supported := false
	for _, v := range SupportedConfigVersions {
		if c.Version == v {
			supported = true
			break
		}
	}
	if !supported {
		return &ConfigError{Field: "version", Message: "unsupported config version " + strconv.Itoa(c.Version)}
	}

	if c.Engine.Command == "" {
		return &ConfigError{Field: "engine.command", Message: "engine command must not be empty"}
	}
	if c.Relink.MinSimilarity < 0 || c.Relink.MinSimilarity > 1 {
		return &ConfigError{Field: "relink.minSimilarity", Message: "similarity threshold must be between 0 and 1"}
	}
	if c.Relink.MaxCandidates <= 0 {
		return &ConfigError{Field: "relink.maxCandidates", Message: "candidate limit must be positive"}
	}
	if len(c.Scan.PrimaryExtensions) == 0 {
		return &ConfigError{Field: "scan.primaryExtensions", Message: "at least one primary extension is required"}
	}

	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
