package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"blendlink/internal/config"
	"blendlink/internal/project"
	"blendlink/internal/storage"
)

var doctorFormat string

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the engine, workspace and configuration",
	Long: `Run environment checks: ping the file engine for its version banner,
verify the workspace and manifest, validate the configuration and probe
the scan cache.

Examples:
  blendlink doctor
  blendlink doctor --format json`,
	Args: cobra.NoArgs,
	Run:  runDoctor,
}

func init() {
	doctorCmd.Flags().StringVar(&doctorFormat, "format", "human", "Output format (human, json)")
	rootCmd.AddCommand(doctorCmd)
}

// doctorCheck is one named probe result.
type doctorCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// doctorData is the envelope payload for doctor.
type doctorData struct {
	Checks  []doctorCheck `json:"checks"`
	EnvVars []string      `json:"envVars"`
}

func runDoctor(cmd *cobra.Command, args []string) {
	start := time.Now()
	resp := newResponse()

	ws := mustOpenWorkspace()
	defer ws.Close()

	ctx, cancel := newContext()
	defer cancel()

	var checks []doctorCheck

	// Engine reachability and version banner.
	if version, err := ws.Engine.Ping(ctx); err != nil {
		checks = append(checks, doctorCheck{Name: "engine", Detail: err.Error()})
	} else {
		checks = append(checks, doctorCheck{Name: "engine", OK: true,
			Detail: fmt.Sprintf("%s (%s)", ws.Config.Engine.Command, version)})
	}

	// Workspace and manifest.
	if !project.Exists(ws.Root) {
		checks = append(checks, doctorCheck{Name: "workspace",
			Detail: fmt.Sprintf("no project manifest at %s (run 'blendlink init')", ws.Root)})
	} else if m, err := project.Load(ws.Root); err != nil {
		checks = append(checks, doctorCheck{Name: "workspace", Detail: err.Error()})
	} else {
		checks = append(checks, doctorCheck{Name: "workspace", OK: true,
			Detail: fmt.Sprintf("%s (project %s)", m.Name, m.ProjectID)})
	}

	// Config provenance and validity.
	if load, err := config.LoadConfigWithDetails(ws.Root); err != nil {
		checks = append(checks, doctorCheck{Name: "config", Detail: err.Error()})
	} else {
		detail := load.ConfigPath
		if load.UsedDefaults {
			detail = "built-in defaults"
		}
		if n := len(load.EnvOverrides); n > 0 {
			detail = fmt.Sprintf("%s, %d env overrides", detail, n)
		}
		checks = append(checks, doctorCheck{Name: "config", OK: true, Detail: detail})
	}

	// Rules file, if present.
	if _, err := os.Stat(filepath.Join(ws.Root, config.RulesFileName)); err == nil {
		if _, err := config.LoadRules(ws.Root); err != nil {
			checks = append(checks, doctorCheck{Name: "rules", Detail: err.Error()})
		} else {
			checks = append(checks, doctorCheck{Name: "rules", OK: true, Detail: config.RulesFileName})
		}
	}

	// Scan cache.
	checks = append(checks, cacheCheck(ws))

	data := doctorData{Checks: checks, EnvVars: config.GetSupportedEnvVars()}

	healthy := true
	for _, c := range checks {
		if !c.OK {
			healthy = false
		}
	}

	if doctorFormat != "json" {
		printChecks(checks)
	}

	resp.Success = healthy
	if healthy {
		resp.Message = fmt.Sprintf("all %d checks passed", len(checks))
	} else {
		resp.Message = "some checks failed"
	}
	resp.Data = data
	emitResponse(resp, ws, nil, start)
}

func cacheCheck(ws *workspace) doctorCheck {
	if !ws.Config.Cache.Enabled {
		return doctorCheck{Name: "cache", OK: true, Detail: "disabled"}
	}

	db, err := storage.Open(ws.Root, ws.Logger)
	if err != nil {
		return doctorCheck{Name: "cache", Detail: err.Error()}
	}
	defer db.Close()

	stats, err := storage.NewCache(db, true, ws.Logger).Stats()
	if err != nil {
		return doctorCheck{Name: "cache", Detail: err.Error()}
	}
	return doctorCheck{Name: "cache", OK: true,
		Detail: fmt.Sprintf("%d entries, %d bytes", stats.Entries, stats.TotalBytes)}
}

// printChecks writes the human summary to stderr; stdout stays reserved
// for the envelope.
func printChecks(checks []doctorCheck) {
	for _, c := range checks {
		mark := "ok"
		if !c.OK {
			mark = "FAIL"
		}
		fmt.Fprintf(os.Stderr, "%-10s %-4s %s\n", c.Name, mark, c.Detail)
	}
}
