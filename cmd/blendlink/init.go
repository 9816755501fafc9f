package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"blendlink/internal/config"
	"blendlink/internal/project"
)

var (
	initForce bool
	initName  string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a blendlink project in the current directory",
	Long: `Create the .blendlink metadata directory with a default config.json and a
project.toml manifest carrying a fresh project id.

Examples:
  blendlink init
  blendlink init --name "Island Film"
  blendlink init --force`,
	Args: cobra.NoArgs,
	Run:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if the project already exists")
	initCmd.Flags().StringVar(&initName, "name", "", "Project name (default: directory name)")
	rootCmd.AddCommand(initCmd)
}

// initData is the envelope payload for init.
type initData struct {
	Root      string `json:"root"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
}

func runInit(cmd *cobra.Command, args []string) {
	start := time.Now()
	resp := newResponse()

	// init deliberately does not walk up to a parent project; it initializes
	// exactly where it was pointed.
	root := rootDirFlag
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		root = cwd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if project.Exists(root) && !initForce {
		failResponse(resp, fmt.Errorf("project already initialized at %s (use --force to reinitialize)", root))
		emitResponse(resp, nil, nil, start)
		return
	}

	if err := os.MkdirAll(filepath.Join(root, config.DirName), 0755); err != nil {
		failResponse(resp, fmt.Errorf("cannot create %s directory: %w", config.DirName, err))
		emitResponse(resp, nil, nil, start)
		return
	}

	if err := config.DefaultConfig().Save(root); err != nil {
		failResponse(resp, fmt.Errorf("cannot write default config: %w", err))
		emitResponse(resp, nil, nil, start)
		return
	}

	name := initName
	if name == "" {
		name = filepath.Base(root)
	}
	manifest := project.NewManifest(name)
	if err := manifest.Save(root); err != nil {
		failResponse(resp, fmt.Errorf("cannot write project manifest: %w", err))
		emitResponse(resp, nil, nil, start)
		return
	}

	resp.Success = true
	resp.Message = fmt.Sprintf("initialized project %q at %s", name, root)
	resp.Data = initData{Root: root, ProjectID: manifest.ProjectID, Name: name}
	emitResponse(resp, nil, nil, start)
}
