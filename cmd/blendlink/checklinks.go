package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"blendlink/internal/index"
	"blendlink/internal/links"
	"blendlink/internal/watcher"
)

var (
	checkLinksKinds    []string
	checkLinksWatch    bool
	checkLinksInterval int
)

var checkLinksCmd = &cobra.Command{
	Use:   "check-links",
	Short: "Detect references whose targets no longer exist",
	Long: `Scan the project and report every stored reference that resolves to a
missing file. Packed resources are never reported; references arriving
through a linked library resolve against the library's directory.

With --watch the check re-runs whenever the tree changes, emitting a fresh
envelope line each time, until interrupted.

Examples:
  blendlink check-links
  blendlink check-links --kind image
  blendlink check-links --watch --interval 5`,
	Args: cobra.NoArgs,
	Run:  runCheckLinks,
}

func init() {
	checkLinksCmd.Flags().StringSliceVar(&checkLinksKinds, "kind", nil, "Limit the check to reference kinds (image, library, ...)")
	checkLinksCmd.Flags().BoolVar(&checkLinksWatch, "watch", false, "Keep watching the tree and re-check on change")
	checkLinksCmd.Flags().IntVar(&checkLinksInterval, "interval", 2, "Polling interval in seconds for --watch")
	rootCmd.AddCommand(checkLinksCmd)
}

// checkLinksData is the envelope payload for check-links.
type checkLinksData struct {
	Broken        []links.HolderGroup `json:"broken"`
	BrokenCount   int                 `json:"brokenCount"`
	CheckedRefs   int                 `json:"checkedRefs"`
	PackedSkipped int                 `json:"packedSkipped"`
}

func runCheckLinks(cmd *cobra.Command, args []string) {
	ws := mustOpenWorkspace()
	defer ws.Close()

	ctx, cancel := newContext()
	defer cancel()

	checkLinksOnce(ctx, ws)

	if !checkLinksWatch {
		return
	}

	interval := time.Duration(checkLinksInterval) * time.Second
	if interval <= 0 {
		interval = 2 * time.Second
	}

	w := watcher.New(interval, interval/2,
		func() (string, error) { return treeFingerprint(ws) },
		func() { checkLinksOnce(ctx, ws) },
		ws.Logger)

	ws.Logger.Info("watching for changes", map[string]interface{}{
		"root":     ws.Root,
		"interval": interval.String(),
	})
	_ = w.Run(ctx)
}

// checkLinksOnce runs one full detection pass and emits its envelope.
func checkLinksOnce(ctx context.Context, ws *workspace) {
	start := time.Now()
	resp := newResponse()

	ix, err := ws.buildIndex(ctx, true)
	if err != nil {
		failResponse(resp, err)
		emitResponse(resp, ws, nil, start)
		return
	}
	for _, w := range ix.Warnings {
		resp.AddWarning("", w)
	}

	report := links.NewDetector(ix, ws.Logger).FindBroken(checkLinksKinds)

	resp.Success = true
	if report.Clean() {
		resp.Message = fmt.Sprintf("all %d references resolve", report.CheckedRefs)
	} else {
		resp.Message = fmt.Sprintf("%d broken references across %d checked",
			len(report.Broken), report.CheckedRefs)
	}
	resp.Data = checkLinksData{
		Broken:        report.GroupByHolder(),
		BrokenCount:   len(report.Broken),
		CheckedRefs:   report.CheckedRefs,
		PackedSkipped: report.PackedSkipped,
	}
	emitResponse(resp, ws, ix, start)
}

// treeFingerprint scans files only (no extraction) and fingerprints the
// result, so the watcher wakes the checker exactly when the tree changed.
func treeFingerprint(ws *workspace) (string, error) {
	matcher, err := loadMatcher(ws)
	if err != nil {
		return "", err
	}
	files, _, err := index.NewScanner(ws.Root, ws.Config.Scan, matcher, ws.Logger).Scan()
	if err != nil {
		return "", err
	}
	return index.StateID(files), nil
}
