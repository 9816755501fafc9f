package engine

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"blendlink/internal/config"
	"blendlink/internal/errors"
	"blendlink/internal/logging"
)

// writeEngineScript writes an executable shell script that stands in for
// the engine binary.
func writeEngineScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("engine script tests require a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "fake-engine.sh")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("Failed to write engine script: %v", err)
	}
	return path
}

func newTestClient(command string) *Client {
	cfg := config.EngineConfig{
		Command: command,
		TimeoutMs: map[string]int{
			config.TimeoutShort:    5000,
			config.TimeoutMedium:   5000,
			config.TimeoutLong:     5000,
			config.TimeoutVeryLong: 5000,
		},
	}
	return NewClient(cfg, logging.Nop())
}

func TestTimeoutClass(t *testing.T) {
	tests := []struct {
		op   string
		want string
	}{
		{OpPing, config.TimeoutShort},
		{OpListEntities, config.TimeoutShort},
		{OpExtract, config.TimeoutMedium},
		{OpRename, config.TimeoutMedium},
		{OpApplyChanges, config.TimeoutLong},
		{OpBatchExtract, config.TimeoutVeryLong},
		{"unknown-op", config.TimeoutMedium},
	}

	for _, tt := range tests {
		if got := timeoutClass(tt.op); got != tt.want {
			t.Errorf("timeoutClass(%q) = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestBuildArgs(t *testing.T) {
	c := NewClient(config.EngineConfig{
		Command: "blender",
		Args:    []string{"--background"},
	}, logging.Nop())

	args := c.buildArgs(OpExtract, "/p/a.blend", []byte(`{"x":1}`))
	want := []string{"--background", "--op", "extract-references", "--file", "/p/a.blend", "--params", `{"x":1}`}
	if len(args) != len(want) {
		t.Fatalf("buildArgs() = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("buildArgs()[%d] = %q, want %q", i, args[i], want[i])
		}
	}

	args = c.buildArgs(OpPing, "", nil)
	if len(args) != 3 || args[1] != "--op" || args[2] != "ping" {
		t.Errorf("buildArgs(ping) = %v, want [--background --op ping]", args)
	}
}

func TestClientPing(t *testing.T) {
	script := writeEngineScript(t, `echo 'JSON_OUTPUT: {"success":true,"data":{"version":"4.2.0"}}'`)
	c := newTestClient(script)

	version, err := c.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if version != "4.2.0" {
		t.Errorf("Ping() = %q, want %q", version, "4.2.0")
	}
}

func TestClientExtractReferences(t *testing.T) {
	script := writeEngineScript(t, `echo 'LOG: opening file'
echo 'JSON_OUTPUT: {"success":true,"data":{"file":"/p/a.blend","references":[{"kind":"image","rawPath":"//tex/wood.jpg"}]}}'`)
	c := newTestClient(script)

	refs, err := c.ExtractReferences(context.Background(), "/p/a.blend")
	if err != nil {
		t.Fatalf("ExtractReferences() error = %v", err)
	}

	if refs.File != "/p/a.blend" {
		t.Errorf("File = %q, want %q", refs.File, "/p/a.blend")
	}
	if len(refs.References) != 1 {
		t.Fatalf("len(References) = %d, want 1", len(refs.References))
	}
	if refs.References[0].RawPath != "//tex/wood.jpg" {
		t.Errorf("RawPath = %q, want %q", refs.References[0].RawPath, "//tex/wood.jpg")
	}
}

func TestClientBatchExtract(t *testing.T) {
	script := writeEngineScript(t, `echo 'JSON_OUTPUT: {"success":true,"data":{"results":[{"file":"/p/a.blend","references":[]},{"file":"/p/b.blend","references":[]}]}}'`)
	c := newTestClient(script)

	results, err := c.BatchExtract(context.Background(), []string{"/p/a.blend", "/p/b.blend"})
	if err != nil {
		t.Fatalf("BatchExtract() error = %v", err)
	}
	if len(results) != 2 {
		t.Errorf("len(results) = %d, want 2", len(results))
	}
}

func TestClientApplyPathChanges(t *testing.T) {
	script := writeEngineScript(t, `echo 'JSON_OUTPUT: {"success":true,"data":{"success":true,"changes":[{"itemType":"image","old":"//a.png","new":"//b.png","status":"updated"}]}}'`)
	c := newTestClient(script)

	outcome, err := c.ApplyPathChanges(context.Background(), "/p/a.blend", []PathChange{
		{ItemType: "image", OldPath: "//a.png", NewPath: "//b.png"},
	})
	if err != nil {
		t.Fatalf("ApplyPathChanges() error = %v", err)
	}

	if !outcome.Success {
		t.Error("Outcome.Success should be true")
	}
	if len(outcome.Changes) != 1 || outcome.Changes[0].Status != StatusUpdated {
		t.Errorf("Changes = %+v, want one updated change", outcome.Changes)
	}
}

func TestClientListNamedEntities(t *testing.T) {
	script := writeEngineScript(t, `echo 'JSON_OUTPUT: {"success":true,"data":{"entities":[{"type":"object","name":"Cube"}]}}'`)
	c := newTestClient(script)

	entities, err := c.ListNamedEntities(context.Background(), "/p/a.blend")
	if err != nil {
		t.Fatalf("ListNamedEntities() error = %v", err)
	}
	if len(entities) != 1 || entities[0].Name != "Cube" {
		t.Errorf("entities = %+v, want [{object Cube}]", entities)
	}
}

func TestClientRelaysLogLinesWhileRunning(t *testing.T) {
	// The script blocks on a sentinel file after its first LOG: line; the
	// callback creates it, proving the line arrived before the process
	// exited.
	dir := t.TempDir()
	sentinel := filepath.Join(dir, "seen")
	script := writeEngineScript(t, `echo 'LOG: opening file'
while [ ! -e `+sentinel+` ]; do sleep 0.05; done
echo 'LOG: done'
echo 'JSON_OUTPUT: {"success":true,"data":{"version":"4.2.0"}}'`)

	c := newTestClient(script)
	var messages []string
	c.OnLog = func(op, message string) {
		messages = append(messages, message)
		if err := os.WriteFile(sentinel, nil, 0644); err != nil {
			t.Errorf("Failed to write sentinel: %v", err)
		}
	}

	if _, err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	if len(messages) != 2 {
		t.Fatalf("messages = %v, want both LOG lines relayed", messages)
	}
	if messages[0] != "opening file" || messages[1] != "done" {
		t.Errorf("messages = %v, want trimmed LOG payloads in order", messages)
	}
}

func TestClientEngineReportedFailure(t *testing.T) {
	script := writeEngineScript(t, `echo 'JSON_OUTPUT: {"success":false,"error":"cannot open file: corrupt header"}'`)
	c := newTestClient(script)

	_, err := c.ExtractReferences(context.Background(), "/p/a.blend")
	if err == nil {
		t.Fatal("ExtractReferences() should fail when the engine reports failure")
	}
	if !errors.IsCode(err, errors.EngineFailure) {
		t.Errorf("error code = %v, want ENGINE_FAILURE", errors.CodeOf(err))
	}
	if !strings.Contains(err.Error(), "cannot open file") {
		t.Errorf("error %q should carry the engine's message", err.Error())
	}
}

func TestClientExitError(t *testing.T) {
	script := writeEngineScript(t, `echo 'boom' >&2
exit 3`)
	c := newTestClient(script)

	_, err := c.Ping(context.Background())
	if err == nil {
		t.Fatal("Ping() should fail on non-zero exit")
	}
	if !errors.IsCode(err, errors.EngineFailure) {
		t.Errorf("error code = %v, want ENGINE_FAILURE", errors.CodeOf(err))
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error %q should include stderr", err.Error())
	}
}

func TestClientNoMarker(t *testing.T) {
	script := writeEngineScript(t, `echo 'hello from the engine'`)
	c := newTestClient(script)

	_, err := c.Ping(context.Background())
	if err == nil {
		t.Fatal("Ping() should fail when no output marker is emitted")
	}
	if !strings.Contains(err.Error(), "no output marker") {
		t.Errorf("error = %q, want mention of missing marker", err.Error())
	}
}

func TestClientTimeout(t *testing.T) {
	script := writeEngineScript(t, `sleep 5`)
	cfg := config.EngineConfig{
		Command: script,
		TimeoutMs: map[string]int{
			config.TimeoutShort: 100,
		},
	}
	c := NewClient(cfg, logging.Nop())

	_, err := c.Ping(context.Background())
	if err == nil {
		t.Fatal("Ping() should time out")
	}
	if !errors.IsCode(err, errors.Timeout) {
		t.Errorf("error code = %v, want TIMEOUT", errors.CodeOf(err))
	}
}
