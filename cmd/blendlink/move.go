package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"blendlink/internal/errors"
	"blendlink/internal/lockfile"
	"blendlink/internal/ops"
)

var (
	moveOldPath string
	moveNewPath string
	moveMode    string
	moveDryRun  bool
)

var moveCmd = &cobra.Command{
	Use:   "move",
	Short: "Move a file or directory and rebase every affected reference",
	Long: `Move a file or whole directory inside the project, rewriting the outgoing
references of every moved holder and retargeting the references of every
holder left behind that points into the moved set.

The disk move happens first and rolls back completely if it fails; the
reference rewrites are then committed per file through the engine. With
--mode refs-only the disk is untouched and only references are rewritten,
for files already moved by other means.

Examples:
  blendlink move --old-path scenes/a.blend --new-path scenes/sub/a.blend
  blendlink move --old-path assets/tex --new-path assets/textures
  blendlink move --old-path old.blend --new-path new.blend --mode refs-only
  blendlink move --old-path a.blend --new-path b.blend --dry-run`,
	Args: cobra.NoArgs,
	Run:  runMove,
}

func init() {
	moveCmd.Flags().StringVar(&moveOldPath, "old-path", "", "Current path of the file or directory")
	moveCmd.Flags().StringVar(&moveNewPath, "new-path", "", "Destination path")
	moveCmd.Flags().StringVar(&moveMode, "mode", ops.ModeDiskAndRefs, "Move mode (disk-and-refs, refs-only; move-blend is an alias for disk-and-refs)")
	moveCmd.Flags().BoolVar(&moveDryRun, "dry-run", false, "Show the full change plan without touching anything")
	_ = moveCmd.MarkFlagRequired("old-path")
	_ = moveCmd.MarkFlagRequired("new-path")
	rootCmd.AddCommand(moveCmd)
}

// moveData is the envelope payload for move.
type moveData struct {
	Preview *ops.Preview `json:"preview"`
	Result  *ops.Result  `json:"result,omitempty"`
}

func runMove(cmd *cobra.Command, args []string) {
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

	preview := ops.NewMovePlanner(ix, ws.Logger).PlanMove(ops.MoveRequest{
		OldPath: moveOldPath,
		NewPath: moveNewPath,
		Mode:    moveMode,
	})
	data := moveData{Preview: preview}

	if !preview.Valid() {
		failResponse(resp, errors.New(errors.ValidationError, strings.Join(preview.Errors, "; ")))
		resp.Data = data
		emitResponse(resp, ws, ix, start)
		return
	}

	if moveDryRun {
		resp.Success = true
		resp.Message = fmtDryRunMove(preview)
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

func fmtDryRunMove(p *ops.Preview) string {
	if len(p.Moves) == 0 {
		return fmt.Sprintf("dry run: %d reference rewrites, no disk changes", p.TotalChanges())
	}
	return fmt.Sprintf("dry run: 1 disk move and %d reference rewrites", p.TotalChanges())
}
