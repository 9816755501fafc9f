package ops

import (
	"fmt"

	"github.com/google/uuid"

	"blendlink/internal/engine"
	"blendlink/internal/errors"
)

// FileOutcome is the recorded result of one engine invocation (or one disk
// phase step) during a batch.
type FileOutcome struct {
	File    string                `json:"file"`
	Success bool                  `json:"success"`
	Code    errors.ErrorCode      `json:"code,omitempty"`
	Message string                `json:"message,omitempty"`
	Changes []engine.ChangeResult `json:"changes,omitempty"`
}

// Result is the aggregate outcome of one operation invocation. It is built
// by appending per-file outcomes during execution and finalized exactly
// once; afterwards it is read-only.
type Result struct {
	OperationID string        `json:"operationId"`
	Operation   string        `json:"operation"`
	Success     bool          `json:"success"`
	Message     string        `json:"message,omitempty"`
	Outcomes    []FileOutcome `json:"outcomes,omitempty"`
	Errors      []string      `json:"errors,omitempty"`
	ChangesMade int           `json:"changesMade"`

	finalized bool
}

// NewResult creates an open result for one operation invocation.
func NewResult(operation string) *Result {
	return &Result{
		OperationID: uuid.New().String(),
		Operation:   operation,
	}
}

// Append records one per-file outcome. Panics if the result was already
// finalized; appending after finalization is a programming error.
func (r *Result) Append(o FileOutcome) {
	if r.finalized {
		panic("ops: append to finalized result")
	}
	r.Outcomes = append(r.Outcomes, o)
	if o.Success {
		for _, ch := range o.Changes {
			if ch.Status == engine.StatusUpdated {
				r.ChangesMade++
			}
		}
	} else {
		if o.Message != "" {
			r.Errors = append(r.Errors, fmt.Sprintf("%s: %s", o.File, o.Message))
		} else {
			r.Errors = append(r.Errors, fmt.Sprintf("%s: failed", o.File))
		}
	}
}

// AppendError records a failure not tied to any single file.
func (r *Result) AppendError(msg string) {
	if r.finalized {
		panic("ops: append to finalized result")
	}
	r.Errors = append(r.Errors, msg)
}

// Finalize seals the result. Success means every outcome succeeded and no
// batch-level error was recorded; the message summarizes either way. A
// second call is a no-op.
func (r *Result) Finalize() *Result {
	if r.finalized {
		return r
	}
	r.finalized = true

	failed := 0
	for _, o := range r.Outcomes {
		if !o.Success {
			failed++
		}
	}

	r.Success = failed == 0 && len(r.Errors) == 0
	switch {
	case r.Success:
		r.Message = fmt.Sprintf("%s completed: %d changes across %d files",
			r.Operation, r.ChangesMade, len(r.Outcomes))
	case failed > 0:
		r.Message = fmt.Sprintf("%s finished with failures: %d of %d files failed",
			r.Operation, failed, len(r.Outcomes))
	default:
		r.Message = fmt.Sprintf("%s failed: %s", r.Operation, r.Errors[0])
	}

	return r
}

// SucceededFiles lists the files whose outcomes succeeded, supporting
// partial-success reporting after a failed batch.
func (r *Result) SucceededFiles() []string {
	var files []string
	for _, o := range r.Outcomes {
		if o.Success {
			files = append(files, o.File)
		}
	}
	return files
}
