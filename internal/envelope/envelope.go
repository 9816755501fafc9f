// Package envelope provides the standardized result wrapper for all blendlink
// operations. Every operation returns this structure to its caller; the core
// never raises to the boundary. The CLI prints the envelope to stdout behind a
// fixed marker token so wrapping shells can locate it in mixed output.
package envelope

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// CurrentSchemaVersion is the current envelope schema version.
const CurrentSchemaVersion = "1.0"

// OutputMarker prefixes the single machine-readable result line on stdout.
// The file engine uses the same token when replying to blendlink.
const OutputMarker = "JSON_OUTPUT:"

// Warning represents a non-fatal issue.
type Warning struct {
	Code    string `json:"code,omitempty"` // machine-readable code
	Message string `json:"message"`        // human-readable message
}

// Meta holds response metadata.
type Meta struct {
	ProjectID  string `json:"projectId,omitempty"` // uuid from project.toml
	StateID    string `json:"stateId,omitempty"`   // fingerprint of the scanned tree
	Engine     string `json:"engine,omitempty"`    // engine binary that served the operation
	DurationMs int64  `json:"durationMs"`
}

// Response is the standard envelope for all blendlink operation results.
type Response struct {
	SchemaVersion string      `json:"schemaVersion"`
	Success       bool        `json:"success"`
	Message       string      `json:"message,omitempty"`
	Data          interface{} `json:"data,omitempty"`
	Warnings      []Warning   `json:"warnings,omitempty"`
	Error         *string     `json:"error,omitempty"`
	Meta          *Meta       `json:"meta,omitempty"`
}

// AddWarning appends a non-fatal issue to the response.
func (r *Response) AddWarning(code, message string) {
	r.Warnings = append(r.Warnings, Warning{Code: code, Message: message})
}

// Emit writes the marker line followed by the compact JSON envelope.
func (r *Response) Emit(w io.Writer) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s%s\n", OutputMarker, data)
	return err
}

// ExtractPayload scans mixed process output for the last marker line and
// returns the raw JSON that follows it. Engine subprocesses log freely to
// stdout; only the marker line is the structured outcome.
func ExtractPayload(output string) ([]byte, bool) {
	idx := strings.LastIndex(output, OutputMarker)
	if idx < 0 {
		return nil, false
	}
	payload := output[idx+len(OutputMarker):]
	if nl := strings.IndexByte(payload, '\n'); nl >= 0 {
		payload = payload[:nl]
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, false
	}
	return []byte(payload), true
}

// Parse decodes an envelope previously written by Emit.
func Parse(output string) (*Response, error) {
	payload, ok := ExtractPayload(output)
	if !ok {
		return nil, fmt.Errorf("no %s marker found in output", strings.TrimSuffix(OutputMarker, ":"))
	}
	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return &resp, nil
}
