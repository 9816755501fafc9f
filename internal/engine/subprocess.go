package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"blendlink/internal/config"
	"blendlink/internal/envelope"
	"blendlink/internal/errors"
	"blendlink/internal/logging"
)

// timeoutClass assigns each operation to a timeout class. Mutating and
// batch operations get the longer budgets.
func timeoutClass(op string) string {
	switch op {
	case OpPing, OpListEntities:
		return config.TimeoutShort
	case OpExtract, OpRename:
		return config.TimeoutMedium
	case OpApplyChanges:
		return config.TimeoutLong
	case OpBatchExtract:
		return config.TimeoutVeryLong
	default:
		return config.TimeoutMedium
	}
}

// Client runs the engine binary as a subprocess, one invocation per
// operation. The engine writes LOG: progress lines to stdout and a final
// JSON_OUTPUT: marker line carrying the result. LOG: lines are relayed
// while the process runs, not after it exits.
type Client struct {
	cfg    config.EngineConfig
	logger *logging.Logger

	// OnLog, when set, receives each LOG: line as the engine emits it.
	OnLog func(op, message string)
}

// NewClient creates a subprocess-backed engine client.
func NewClient(cfg config.EngineConfig, logger *logging.Logger) *Client {
	return &Client{cfg: cfg, logger: logger}
}

// wireResponse is the engine-side result behind the JSON_OUTPUT: marker.
type wireResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   *string         `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// buildArgs assembles the engine argv: configured args first, then the
// operation flags.
func (c *Client) buildArgs(op, file string, params []byte) []string {
	args := append([]string{}, c.cfg.Args...)
	args = append(args, "--op", op)
	if file != "" {
		args = append(args, "--file", file)
	}
	if params != nil {
		args = append(args, "--params", string(params))
	}
	return args
}

// run invokes the engine once and returns the decoded data payload.
func (c *Client) run(ctx context.Context, op, file string, params interface{}) (json.RawMessage, error) {
	var paramsJSON []byte
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, errors.Wrap(errors.InternalError, "failed to encode engine params", err)
		}
		paramsJSON = data
	}

	timeout := c.cfg.Timeout(timeoutClass(op))
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.cfg.Command, c.buildArgs(op, file, paramsJSON)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(errors.InternalError, "cannot open engine stdout", err)
	}

	c.logger.Debug("engine: invoking", map[string]interface{}{
		"op":      op,
		"file":    file,
		"timeout": timeout.String(),
	})

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(errors.EngineFailure,
			fmt.Sprintf("engine %s failed to start", op), err).WithPath(file)
	}

	// Scan stdout as the engine produces it, relaying every LOG: line
	// immediately and buffering the rest for the output marker.
	var stdout bytes.Buffer
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		stdout.WriteString(line)
		stdout.WriteByte('\n')
		if strings.HasPrefix(line, "LOG:") {
			c.relayLog(op, strings.TrimSpace(strings.TrimPrefix(line, "LOG:")))
		}
	}
	scanErr := scanner.Err()

	runErr := cmd.Wait()
	elapsed := time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		return nil, errors.New(errors.Timeout,
			fmt.Sprintf("engine %s timed out after %s", op, timeout)).WithPath(file)
	}
	if runErr != nil {
		return nil, errors.Wrap(errors.EngineFailure,
			fmt.Sprintf("engine %s failed: %s", op, stderrTail(&stderr)), runErr).WithPath(file)
	}
	if scanErr != nil {
		return nil, errors.Wrap(errors.EngineFailure,
			fmt.Sprintf("engine %s output could not be read", op), scanErr).WithPath(file)
	}

	c.logger.Debug("engine: completed", map[string]interface{}{
		"op":         op,
		"durationMs": elapsed.Milliseconds(),
	})

	payload, ok := envelope.ExtractPayload(stdout.String())
	if !ok {
		return nil, errors.New(errors.EngineFailure,
			fmt.Sprintf("engine %s produced no output marker", op)).WithPath(file)
	}

	var wire wireResponse
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, errors.Wrap(errors.EngineFailure,
			fmt.Sprintf("engine %s emitted malformed JSON", op), err).WithPath(file)
	}

	if !wire.Success {
		msg := wire.Message
		if wire.Error != nil && *wire.Error != "" {
			msg = *wire.Error
		}
		if msg == "" {
			msg = "engine reported failure"
		}
		return nil, errors.New(errors.EngineFailure, msg).WithPath(file)
	}

	return wire.Data, nil
}

// relayLog surfaces one LOG: line the moment the engine emits it.
func (c *Client) relayLog(op, message string) {
	if c.OnLog != nil {
		c.OnLog(op, message)
	}
	c.logger.Debug("engine: "+message, map[string]interface{}{"op": op})
}

// stderrTail returns the last chunk of stderr for error messages.
func stderrTail(stderr *bytes.Buffer) string {
	s := strings.TrimSpace(stderr.String())
	if s == "" {
		return "no stderr output"
	}
	const max = 500
	if len(s) > max {
		s = "..." + s[len(s)-max:]
	}
	return s
}

// Ping checks that the engine binary is runnable and returns its version.
func (c *Client) Ping(ctx context.Context) (string, error) {
	data, err := c.run(ctx, OpPing, "", nil)
	if err != nil {
		return "", err
	}

	var out struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", errors.Wrap(errors.EngineFailure, "engine ping returned malformed data", err)
	}
	return out.Version, nil
}

// ExtractReferences opens one holder file and lists its stored references.
func (c *Client) ExtractReferences(ctx context.Context, file string) (*FileReferences, error) {
	data, err := c.run(ctx, OpExtract, file, nil)
	if err != nil {
		return nil, err
	}

	var refs FileReferences
	if err := json.Unmarshal(data, &refs); err != nil {
		return nil, errors.Wrap(errors.EngineFailure, "engine returned malformed references", err).WithPath(file)
	}
	if refs.File == "" {
		refs.File = file
	}
	return &refs, nil
}

// BatchExtract extracts references from many files in one engine session.
func (c *Client) BatchExtract(ctx context.Context, files []string) ([]FileReferences, error) {
	data, err := c.run(ctx, OpBatchExtract, "", map[string]interface{}{"files": files})
	if err != nil {
		return nil, err
	}

	var out struct {
		Results []FileReferences `json:"results"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(errors.EngineFailure, "engine returned malformed batch results", err)
	}
	return out.Results, nil
}

// ApplyPathChanges rewrites stored reference paths inside one holder file.
func (c *Client) ApplyPathChanges(ctx context.Context, file string, changes []PathChange) (*Outcome, error) {
	data, err := c.run(ctx, OpApplyChanges, file, map[string]interface{}{"changes": changes})
	if err != nil {
		return nil, err
	}
	return decodeOutcome(data, file)
}

// RenameEntities renames datablocks inside one holder file.
func (c *Client) RenameEntities(ctx context.Context, file string, renames []Rename) (*Outcome, error) {
	data, err := c.run(ctx, OpRename, file, map[string]interface{}{"renames": renames})
	if err != nil {
		return nil, err
	}
	return decodeOutcome(data, file)
}

// ListNamedEntities lists the named datablocks in one holder file.
func (c *Client) ListNamedEntities(ctx context.Context, file string) ([]Entity, error) {
	data, err := c.run(ctx, OpListEntities, file, nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Entities []Entity `json:"entities"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(errors.EngineFailure, "engine returned malformed entity list", err).WithPath(file)
	}
	return out.Entities, nil
}

func decodeOutcome(data json.RawMessage, file string) (*Outcome, error) {
	var outcome Outcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return nil, errors.Wrap(errors.EngineFailure, "engine returned malformed outcome", err).WithPath(file)
	}
	return &outcome, nil
}
