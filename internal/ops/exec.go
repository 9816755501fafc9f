package ops

import (
	"context"
	"os"
	"path/filepath"

	"blendlink/internal/engine"
	"blendlink/internal/errors"
	"blendlink/internal/logging"
)

// Progress receives one update per committed file: fraction is the share
// of the batch already done, message names the file just committed.
type Progress func(fraction float64, message string)

// Executor commits previews through the file engine, one file at a time.
type Executor struct {
	eng      engine.Engine
	logger   *logging.Logger
	progress Progress
}

// NewExecutor creates an executor over an engine binding.
func NewExecutor(eng engine.Engine, logger *logging.Logger) *Executor {
	return &Executor{eng: eng, logger: logger}
}

// OnProgress registers the per-file progress callback and returns the
// executor for chaining.
func (e *Executor) OnProgress(fn Progress) *Executor {
	e.progress = fn
	return e
}

func (e *Executor) reportProgress(done, total int, file string) {
	if e.progress == nil || total == 0 {
		return
	}
	e.progress(float64(done)/float64(total), file)
}

// Execute commits a preview. Invalid previews are refused outright: no disk
// move and no engine invocation is attempted. The disk phase runs first and
// rolls itself back completely on failure; once the first engine commit has
// happened there is no multi-file rollback, each file's commit is its own
// unit. Cancellation stops before the next file, never mid-file.
func (e *Executor) Execute(ctx context.Context, p *Preview) *Result {
	result := NewResult(p.Operation)

	if !p.Valid() {
		result.AppendError("preview is invalid, execution refused")
		for _, msg := range p.Errors {
			result.AppendError(msg)
		}
		return result.Finalize()
	}

	if len(p.Moves) > 0 {
		if err := e.moveOnDisk(p.Moves); err != nil {
			result.AppendError(err.Error())
			return result.Finalize()
		}
	}

	total := len(p.Changes) + len(p.Renames)
	done := 0

	stopped := false
	for _, fc := range p.Changes {
		if ctx.Err() != nil {
			result.AppendError("cancelled before " + fc.File)
			stopped = true
			break
		}

		outcome := e.applyChanges(ctx, fc)
		result.Append(outcome)
		done++
		e.reportProgress(done, total, fc.File)

		if !outcome.Success && p.AllOrNothing {
			result.AppendError("stopping batch: operation is all-or-nothing")
			stopped = true
			break
		}
	}

	if !stopped {
		for _, fr := range p.Renames {
			if ctx.Err() != nil {
				result.AppendError("cancelled before " + fr.File)
				break
			}

			outcome := e.applyRenames(ctx, fr)
			result.Append(outcome)
			done++
			e.reportProgress(done, total, fr.File)

			if !outcome.Success && p.AllOrNothing {
				result.AppendError("stopping batch: operation is all-or-nothing")
				break
			}
		}
	}

	return result.Finalize()
}

// applyChanges invokes the engine for one holder's path rewrites. Failures
// become failed outcomes, never errors; the batch decides what to do.
func (e *Executor) applyChanges(ctx context.Context, fc FileChanges) FileOutcome {
	outcome, err := e.eng.ApplyPathChanges(ctx, fc.File, fc.Changes)
	if err != nil {
		return failedOutcome(fc.File, err)
	}
	return engineOutcome(fc.File, outcome)
}

func (e *Executor) applyRenames(ctx context.Context, fr FileRenames) FileOutcome {
	outcome, err := e.eng.RenameEntities(ctx, fr.File, fr.Renames)
	if err != nil {
		return failedOutcome(fr.File, err)
	}
	return engineOutcome(fr.File, outcome)
}

func failedOutcome(file string, err error) FileOutcome {
	return FileOutcome{
		File:    file,
		Success: false,
		Code:    errors.CodeOf(err),
		Message: err.Error(),
	}
}

func engineOutcome(file string, outcome *engine.Outcome) FileOutcome {
	fo := FileOutcome{
		File:    file,
		Success: outcome.Success,
		Message: outcome.Message,
		Changes: outcome.Changes,
	}
	if !outcome.Success {
		fo.Code = errors.EngineFailure
		if fo.Message == "" && len(outcome.Errors) > 0 {
			fo.Message = outcome.Errors[0]
		}
	}
	return fo
}

// moveOnDisk performs the filesystem renames. On any failure every move
// already made is undone, so a failed disk phase leaves the tree as it was
// before the operation started.
func (e *Executor) moveOnDisk(moves []DiskMove) error {
	var done []DiskMove

	for _, mv := range moves {
		if err := os.MkdirAll(filepath.Dir(mv.NewPath), 0755); err != nil {
			e.rollback(done)
			return errors.Wrap(errors.IOError, "cannot create destination directory", err).WithPath(mv.NewPath)
		}
		if err := os.Rename(mv.OldPath, mv.NewPath); err != nil {
			e.rollback(done)
			return errors.Wrap(errors.IOError, "cannot move", err).WithPath(mv.OldPath)
		}

		e.logger.Debug("moved", map[string]interface{}{
			"from": mv.OldPath,
			"to":   mv.NewPath,
		})
		done = append(done, mv)
	}

	return nil
}

func (e *Executor) rollback(done []DiskMove) {
	for i := len(done) - 1; i >= 0; i-- {
		mv := done[i]
		if err := os.Rename(mv.NewPath, mv.OldPath); err != nil {
			e.logger.Error("rollback failed", map[string]interface{}{
				"from":  mv.NewPath,
				"to":    mv.OldPath,
				"error": err.Error(),
			})
		}
	}
}
