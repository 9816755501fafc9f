package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"blendlink/internal/links"
)

var refsTarget string

var refsCmd = &cobra.Command{
	Use:   "refs",
	Short: "List the primary assets referencing a target file",
	Long: `Reverse lookup: report every stored reference that resolves to the given
target, directly or through a linked library. Resolution is pure, so the
target itself may already be deleted.

Examples:
  blendlink refs --target assets/tex/wood.jpg
  blendlink refs --target lib/env.blend`,
	Args: cobra.NoArgs,
	Run:  runRefs,
}

func init() {
	refsCmd.Flags().StringVar(&refsTarget, "target", "", "Target file to look up")
	_ = refsCmd.MarkFlagRequired("target")
	rootCmd.AddCommand(refsCmd)
}

// refsData is the envelope payload for refs.
type refsData struct {
	Target    string           `json:"target"`
	Referrers []links.Referrer `json:"referrers"`
}

func runRefs(cmd *cobra.Command, args []string) {
	start := time.Now()
	resp := newResponse()

	ws := mustOpenWorkspace()
	defer ws.Close()

	ctx, cancel := newContext()
	defer cancel()

	target, err := filepath.Abs(refsTarget)
	if err != nil {
		failResponse(resp, fmt.Errorf("invalid target %q: %w", refsTarget, err))
		emitResponse(resp, ws, nil, start)
		return
	}

	ix, err := ws.buildIndex(ctx, true)
	if err != nil {
		failResponse(resp, err)
		emitResponse(resp, ws, nil, start)
		return
	}
	for _, w := range ix.Warnings {
		resp.AddWarning("", w)
	}

	referrers := links.Referrers(ix, target)

	resp.Success = true
	if len(referrers) == 0 {
		resp.Message = fmt.Sprintf("nothing references %s", target)
	} else {
		resp.Message = fmt.Sprintf("%d references point at %s", len(referrers), target)
	}
	resp.Data = refsData{Target: target, Referrers: referrers}
	emitResponse(resp, ws, ix, start)
}
