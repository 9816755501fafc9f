package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"blendlink/internal/config"
	"blendlink/internal/engine"
	"blendlink/internal/envelope"
	"blendlink/internal/ignore"
	"blendlink/internal/index"
	"blendlink/internal/logging"
	"blendlink/internal/ops"
	"blendlink/internal/project"
	"blendlink/internal/storage"
)

// workspace bundles everything a command needs once the project root is
// known: the merged configuration, the logger, the engine binding and the
// optional scan cache.
type workspace struct {
	Root   string
	Config *config.Config
	Logger *logging.Logger
	Engine *engine.Client

	db        *storage.DB
	extractor *index.Extractor
}

// resolveRoot returns the project root: the --root-dir flag when given,
// otherwise the nearest parent holding a .blendlink directory, otherwise
// the working directory.
func resolveRoot() (string, error) {
	if rootDirFlag != "" {
		return filepath.Abs(rootDirFlag)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if root, err := project.FindRoot(cwd); err == nil {
		return root, nil
	}
	return cwd, nil
}

// openWorkspace loads and merges configuration for the resolved root and
// wires up the engine client. Commands that never scan still get a working
// logger and engine out of it.
func openWorkspace() (*workspace, error) {
	root, err := resolveRoot()
	if err != nil {
		return nil, fmt.Errorf("cannot resolve project root: %w", err)
	}

	cfg, err := config.LoadConfig(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	rules, err := config.LoadRules(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", config.RulesFileName, err)
	}
	cfg.ApplyRules(rules)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := newLogger(cfg)

	eng := engine.NewClient(cfg.Engine, logger)
	eng.OnLog = func(op, message string) {
		logger.Info("engine: "+message, map[string]interface{}{"op": op})
	}

	return &workspace{
		Root:   root,
		Config: cfg,
		Logger: logger,
		Engine: eng,
	}, nil
}

// newExecutor builds the committing executor, reporting per-file progress
// through the workspace logger as the batch advances.
func newExecutor(ws *workspace) *ops.Executor {
	return ops.NewExecutor(ws.Engine, ws.Logger).OnProgress(func(fraction float64, file string) {
		ws.Logger.Info("progress", map[string]interface{}{
			"fraction": fraction,
			"file":     file,
		})
	})
}

// mustOpenWorkspace opens the workspace or exits. Failing to assemble a
// workspace is an environment fault, not an operation outcome, so there is
// no envelope to emit yet.
func mustOpenWorkspace() *workspace {
	ws, err := openWorkspace()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return ws
}

// newLogger builds the command logger from config, with the persistent
// flags taking precedence.
func newLogger(cfg *config.Config) *logging.Logger {
	format := cfg.Logging.Format
	if logFormatFlag != "" {
		format = logFormatFlag
	}
	level := cfg.Logging.Level
	if logLevelFlag != "" {
		level = logLevelFlag
	}

	logFormat := logging.HumanFormat
	if format == string(logging.JSONFormat) {
		logFormat = logging.JSONFormat
	}
	return logging.NewLogger(logging.Config{
		Format: logFormat,
		Level:  logging.ParseLevel(level),
	})
}

// newContext creates a command context cancelled by SIGINT/SIGTERM, so a
// running batch stops before its next file.
func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openCache opens the scan cache when enabled. Cache trouble is never
// fatal; scans just run uncached.
func (ws *workspace) openCache() *storage.Cache {
	if !ws.Config.Cache.Enabled {
		return nil
	}
	if ws.db == nil {
		db, err := storage.Open(ws.Root, ws.Logger)
		if err != nil {
			ws.Logger.Warn("scan cache unavailable", map[string]interface{}{
				"error": err.Error(),
			})
			return nil
		}
		ws.db = db
	}
	return storage.NewCache(ws.db, true, ws.Logger)
}

// Close releases the cache database if one was opened.
func (ws *workspace) Close() {
	if ws.db != nil {
		_ = ws.db.Close()
		ws.db = nil
	}
}

// loadMatcher assembles the ignore matcher for the project root: defaults,
// then .blendlinkignore, then configured patterns.
func loadMatcher(ws *workspace) (*ignore.Matcher, error) {
	matcher, err := ignore.LoadFromDir(ws.Root, ws.Config.Scan.IgnorePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to load ignore patterns: %w", err)
	}
	return matcher, nil
}

// buildIndex scans the tree, extracts references and assembles the index.
// useCache false bypasses the scan cache for this run only.
func (ws *workspace) buildIndex(ctx context.Context, useCache bool) (*index.Index, error) {
	matcher, err := loadMatcher(ws)
	if err != nil {
		return nil, err
	}

	scanner := index.NewScanner(ws.Root, ws.Config.Scan, matcher, ws.Logger)
	files, warnings, err := scanner.Scan()
	if err != nil {
		return nil, err
	}

	var cache *storage.Cache
	if useCache {
		cache = ws.openCache()
	}

	ws.extractor = index.NewExtractor(ws.Engine, cache, ws.Logger)
	refs, extractWarnings := ws.extractor.ExtractAll(ctx, files)
	warnings = append(warnings, extractWarnings...)

	return index.Build(ws.Root, files, refs, warnings), nil
}

// newResponse starts an envelope for the current schema version.
func newResponse() *envelope.Response {
	return &envelope.Response{SchemaVersion: envelope.CurrentSchemaVersion}
}

// failResponse marks the envelope as a reported failure carrying the
// error's message. The envelope still emits and the process still exits 0;
// the failure was handled, not uncaught.
func failResponse(resp *envelope.Response, err error) {
	msg := err.Error()
	resp.Success = false
	resp.Message = msg
	resp.Error = &msg
}

// emitResponse stamps metadata and writes the marker line to stdout. Only
// a failure to emit at all exits non-zero.
func emitResponse(resp *envelope.Response, ws *workspace, ix *index.Index, start time.Time) {
	meta := &envelope.Meta{DurationMs: time.Since(start).Milliseconds()}
	if ws != nil {
		meta.Engine = ws.Config.Engine.Command
		if project.Exists(ws.Root) {
			if m, err := project.Load(ws.Root); err == nil {
				meta.ProjectID = m.ProjectID
			}
		}
	}
	if ix != nil {
		meta.StateID = ix.StateID
	}
	resp.Meta = meta

	if err := resp.Emit(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
