package main

import (
	"github.com/spf13/cobra"

	"blendlink/internal/version"
)

// Persistent flag values shared by every subcommand.
var (
	rootDirFlag   string
	logFormatFlag string
	logLevelFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "blendlink",
	Short: "blendlink - reference integrity for Blender project trees",
	Long: `blendlink keeps the relative references inside a Blender project consistent.
It scans the project tree, detects broken links, proposes fuzzy relinks,
moves files while rebasing every affected reference, and propagates entity
renames across many .blend files.

Every command prints a machine-readable result envelope to stdout behind the
JSON_OUTPUT: marker; human-readable logs go to stderr.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("blendlink version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&rootDirFlag, "root-dir", "",
		"Project root (default: nearest parent with a .blendlink directory, else the working directory)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "",
		"Log format: human or json (default from config)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"Log level: debug, info, warn or error (default from config)")
}
