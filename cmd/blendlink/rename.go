package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"blendlink/internal/errors"
	"blendlink/internal/index"
	"blendlink/internal/lockfile"
	"blendlink/internal/ops"
	"blendlink/internal/rename"
)

var (
	renameIDType  string
	renameOldName string
	renameNewName string
	renameFiles   []string
	renameDryRun  bool
)

var renameCmd = &cobra.Command{
	Use:   "rename",
	Short: "Rename an entity across the project's primary assets",
	Long: `Rename a named entity (object or collection) in every file that holds it.
Planning lists each file's current entities first: a file where the new
name already exists blocks the whole batch, a file without the old name is
a harmless no-op.

By default the rename runs over every primary asset in the project; --files
narrows the batch.

Examples:
  blendlink rename --id-type object --old-name Cube --new-name Crate
  blendlink rename --id-type collection --old-name Trees --new-name Forest
  blendlink rename --id-type object --old-name A --new-name B --files scenes/a.blend
  blendlink rename --id-type object --old-name A --new-name B --dry-run`,
	Args: cobra.NoArgs,
	Run:  runRename,
}

func init() {
	renameCmd.Flags().StringVar(&renameIDType, "id-type", "", "Entity type (object, collection)")
	renameCmd.Flags().StringVar(&renameOldName, "old-name", "", "Current entity name")
	renameCmd.Flags().StringVar(&renameNewName, "new-name", "", "New entity name")
	renameCmd.Flags().StringSliceVar(&renameFiles, "files", nil, "Limit the rename to these files (default: all primary assets)")
	renameCmd.Flags().BoolVar(&renameDryRun, "dry-run", false, "Show the rename plan without committing it")
	_ = renameCmd.MarkFlagRequired("id-type")
	_ = renameCmd.MarkFlagRequired("old-name")
	_ = renameCmd.MarkFlagRequired("new-name")
	rootCmd.AddCommand(renameCmd)
}

// renameData is the envelope payload for rename.
type renameData struct {
	Preview *ops.Preview `json:"preview"`
	Result  *ops.Result  `json:"result,omitempty"`
}

func runRename(cmd *cobra.Command, args []string) {
	start := time.Now()
	resp := newResponse()

	ws := mustOpenWorkspace()
	defer ws.Close()

	ctx, cancel := newContext()
	defer cancel()

	files, err := renameScope(ctx, ws)
	if err != nil {
		failResponse(resp, err)
		emitResponse(resp, ws, nil, start)
		return
	}

	preview := rename.NewPlanner(ws.Engine, ws.Logger).Plan(ctx, rename.Request{
		IDType:  renameIDType,
		OldName: renameOldName,
		NewName: renameNewName,
		Files:   files,
	})
	data := renameData{Preview: preview}

	if !preview.Valid() {
		failResponse(resp, errors.New(errors.ValidationError, strings.Join(preview.Errors, "; ")))
		resp.Data = data
		emitResponse(resp, ws, nil, start)
		return
	}

	if renameDryRun || preview.Empty() {
		resp.Success = true
		if preview.Empty() {
			resp.Message = fmt.Sprintf("no %s named %q found, nothing to rename", renameIDType, renameOldName)
		} else {
			resp.Message = fmt.Sprintf("dry run: %q would become %q in %d files",
				renameOldName, renameNewName, len(preview.Renames))
		}
		resp.Data = data
		emitResponse(resp, ws, nil, start)
		return
	}

	fl, err := lockfile.Acquire(ws.Root)
	if err != nil {
		failResponse(resp, err)
		resp.Data = data
		emitResponse(resp, ws, nil, start)
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
	emitResponse(resp, ws, nil, start)
}

// renameScope resolves the batch: the --files list made absolute, or every
// primary asset found by a scan when no list was given.
func renameScope(ctx context.Context, ws *workspace) ([]string, error) {
	if len(renameFiles) > 0 {
		files := make([]string, 0, len(renameFiles))
		for _, f := range renameFiles {
			abs, err := filepath.Abs(f)
			if err != nil {
				return nil, fmt.Errorf("invalid file %q: %w", f, err)
			}
			files = append(files, abs)
		}
		return files, nil
	}

	ix, err := ws.buildIndex(ctx, true)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, f := range index.Holders(ix.Files) {
		files = append(files, f.Path)
	}
	return files, nil
}
