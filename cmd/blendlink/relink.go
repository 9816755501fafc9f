package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"blendlink/internal/engine"
	"blendlink/internal/links"
	"blendlink/internal/lockfile"
	"blendlink/internal/ops"
	"blendlink/internal/relink"
)

var (
	relinkSearchDir     string
	relinkMinSimilarity float64
	relinkApply         bool
	relinkDryRun        bool
)

var relinkCmd = &cobra.Command{
	Use:   "relink",
	Short: "Propose and apply replacements for broken references",
	Long: `Find broken references, rank replacement candidates by filename
similarity, and optionally rewrite each broken reference to its best
candidate.

Without --apply only the ranked proposals are reported. With --apply the
top candidate of every broken reference is committed through the file
engine; --dry-run shows the resulting change plan without committing.

Examples:
  blendlink relink
  blendlink relink --search-dir assets/textures
  blendlink relink --min-similarity 0.8 --apply
  blendlink relink --apply --dry-run`,
	Args: cobra.NoArgs,
	Run:  runRelink,
}

func init() {
	relinkCmd.Flags().StringVar(&relinkSearchDir, "search-dir", "", "Limit candidates to files under this directory")
	relinkCmd.Flags().Float64Var(&relinkMinSimilarity, "min-similarity", 0, "Minimum similarity score (default from config)")
	relinkCmd.Flags().BoolVar(&relinkApply, "apply", false, "Rewrite each broken reference to its top candidate")
	relinkCmd.Flags().BoolVar(&relinkDryRun, "dry-run", false, "With --apply, plan the rewrites without committing them")
	rootCmd.AddCommand(relinkCmd)
}

// relinkData is the envelope payload for relink.
type relinkData struct {
	Proposals []relink.Proposal `json:"proposals"`
	Unfixable int               `json:"unfixable"`
	Preview   *ops.Preview      `json:"preview,omitempty"`
	Result    *ops.Result       `json:"result,omitempty"`
}

func runRelink(cmd *cobra.Command, args []string) {
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

	cfg := ws.Config.Relink
	if relinkMinSimilarity > 0 {
		cfg.MinSimilarity = relinkMinSimilarity
	}

	report := links.NewDetector(ix, ws.Logger).FindBroken(nil)
	proposals := relink.NewResolver(cfg, ws.Logger).Propose(report, ix)

	if relinkSearchDir != "" {
		dir, err := filepath.Abs(relinkSearchDir)
		if err != nil {
			failResponse(resp, fmt.Errorf("invalid search dir %q: %w", relinkSearchDir, err))
			emitResponse(resp, ws, ix, start)
			return
		}
		restrictProposals(proposals, dir)
	}

	data := relinkData{Proposals: proposals}
	for _, prop := range proposals {
		if len(prop.Candidates) == 0 {
			data.Unfixable++
		}
	}

	if !relinkApply {
		resp.Success = true
		resp.Message = fmt.Sprintf("%d broken references, %d with candidates",
			len(proposals), len(proposals)-data.Unfixable)
		resp.Data = data
		emitResponse(resp, ws, ix, start)
		return
	}

	preview := planRelink(proposals)
	data.Preview = preview

	if relinkDryRun || !preview.Valid() || preview.Empty() {
		resp.Success = preview.Valid()
		switch {
		case !preview.Valid():
			failResponse(resp, fmt.Errorf("relink plan invalid: %s", strings.Join(preview.Errors, "; ")))
		case preview.Empty():
			resp.Message = "nothing to relink"
		default:
			resp.Message = fmt.Sprintf("dry run: %d rewrites across %d files would be applied",
				preview.TotalChanges(), len(preview.Changes))
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

// restrictProposals drops candidates living outside dir, keeping the
// proposals themselves so unfixable entries still get reported.
func restrictProposals(proposals []relink.Proposal, dir string) {
	prefix := dir + string(filepath.Separator)
	for i := range proposals {
		kept := proposals[i].Candidates[:0]
		for _, c := range proposals[i].Candidates {
			if c.Path == dir || strings.HasPrefix(c.Path, prefix) {
				kept = append(kept, c)
			}
		}
		proposals[i].Candidates = kept
	}
}

// planRelink turns each proposal's top candidate into a path change,
// grouped per holder so the engine opens each file once. Entries without
// candidates are skipped with a warning; a repair that cannot be expressed
// relatively invalidates the plan.
func planRelink(proposals []relink.Proposal) *ops.Preview {
	p := ops.NewPreview(ops.OpRelink)

	byFile := map[string]int{}
	for _, prop := range proposals {
		if len(prop.Candidates) == 0 {
			p.Warnf("%s: no candidate for %s", prop.Entry.Holder, prop.Entry.Reference.RawPath)
			continue
		}

		change, err := relink.ApplyRelink(prop.Entry, prop.Candidates[0])
		if err != nil {
			p.Errorf("%s: %v", prop.Entry.Holder, err)
			continue
		}

		// Two-hop repairs rewrite the library file, not the holder.
		file := prop.Entry.Holder
		if prop.Entry.Library != "" && prop.Entry.Reason != links.ReasonMissingLibrary {
			file = prop.Entry.Library
		}

		if i, ok := byFile[file]; ok {
			p.Changes[i].Changes = append(p.Changes[i].Changes, change)
			continue
		}
		p.AddChanges(file, []engine.PathChange{change})
		byFile[file] = len(p.Changes) - 1
	}

	return p
}
