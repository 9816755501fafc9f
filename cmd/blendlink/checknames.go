package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"blendlink/internal/engine"
	"blendlink/internal/lockfile"
	"blendlink/internal/ops"
	"blendlink/internal/relink"
)

var (
	checkNamesFix    bool
	checkNamesDryRun bool
)

var checkNamesCmd = &cobra.Command{
	Use:   "check-names",
	Short: "Verify linked entity names still exist in their libraries",
	Long: `Compare the collection names each primary asset links from its libraries
against the names those libraries actually expose, suggesting close
matches for any name that vanished (usually because it was renamed inside
the library).

With --fix the top suggestion of each mismatch is renamed back to the
expected name inside the library, restoring the link.

Examples:
  blendlink check-names
  blendlink check-names --fix
  blendlink check-names --fix --dry-run`,
	Args: cobra.NoArgs,
	Run:  runCheckNames,
}

func init() {
	checkNamesCmd.Flags().BoolVar(&checkNamesFix, "fix", false, "Rename each top suggestion back to the expected name")
	checkNamesCmd.Flags().BoolVar(&checkNamesDryRun, "dry-run", false, "With --fix, show the rename plan without committing it")
	rootCmd.AddCommand(checkNamesCmd)
}

// checkNamesData is the envelope payload for check-names.
type checkNamesData struct {
	Report  *relink.NameReport `json:"report"`
	Preview *ops.Preview       `json:"preview,omitempty"`
	Result  *ops.Result        `json:"result,omitempty"`
}

func runCheckNames(cmd *cobra.Command, args []string) {
	start := time.Now()
	resp := newResponse()

	ws := mustOpenWorkspace()
	defer ws.Close()

	ctx, cancel := newContext()
	defer cancel()

	ix, err := ws.buildIndex(ctx, true)
	if err != nil {
		failResponse(resp, err)
		emitResponse(resp, ws, nil, start)
		return
	}
	for _, w := range ix.Warnings {
		resp.AddWarning("", w)
	}

	checker := relink.NewNameChecker(ws.Engine,
		ws.Config.Relink.MinSimilarity, ws.Config.Relink.MaxCandidates, ws.Logger)
	report := checker.Check(ctx, ix)
	for _, w := range report.Warnings {
		resp.AddWarning("", w)
	}

	data := checkNamesData{Report: report}

	if !checkNamesFix || report.Clean() {
		resp.Success = true
		if report.Clean() {
			resp.Message = fmt.Sprintf("all %d linked names resolve", report.CheckedRefs)
		} else {
			resp.Message = fmt.Sprintf("%d linked names missing from their libraries", len(report.Mismatches))
		}
		resp.Data = data
		emitResponse(resp, ws, ix, start)
		return
	}

	preview := planNameFixes(report)
	data.Preview = preview

	if checkNamesDryRun || preview.Empty() {
		resp.Success = true
		if preview.Empty() {
			resp.Message = "no mismatch has a suggestion to apply"
		} else {
			resp.Message = fmt.Sprintf("dry run: %d renames would restore the expected names",
				preview.TotalChanges())
		}
		resp.Data = data
		emitResponse(resp, ws, ix, start)
		return
	}

	fl, err := lockfile.Acquire(ws.Root)
	if err != nil {
		failResponse(resp, err)
		resp.Data = data
		emitResponse(resp, ws, ix, start)
		return
	}
	defer lockfile.Release(fl)

	result := newExecutor(ws).Execute(ctx, preview)
	data.Result = result

	resp.Success = result.Success
	resp.Message = result.Message
	if !result.Success && len(result.Errors) > 0 {
		errMsg := result.Errors[0]
		resp.Error = &errMsg
	}
	resp.Data = data
	emitResponse(resp, ws, ix, start)
}

// planNameFixes builds the rename plan that gives each mismatched entity
// its expected name back: in the library, the top suggestion becomes the
// name the holder links. Mismatches without suggestions are skipped with a
// warning, and a suggestion already claimed by another mismatch in the same
// library is not renamed twice.
func planNameFixes(report *relink.NameReport) *ops.Preview {
	p := ops.NewPreview(ops.OpRename)

	planned := map[string]bool{}
	for _, m := range report.Mismatches {
		if len(m.Suggestions) == 0 {
			p.Warnf("%s: no suggestion for %q in %s", m.Holder, m.Name, m.Library)
			continue
		}

		top := m.Suggestions[0].Name
		key := m.Library + "\x00" + top
		if planned[key] {
			continue
		}
		planned[key] = true

		p.AddRenames(m.Library, []engine.Rename{{
			ItemType: engine.EntityCollection,
			OldName:  top,
			NewName:  m.Name,
		}})
	}

	return p
}
