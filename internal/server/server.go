// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools, prompts and resources. No business logic
// lives here, only wiring.
package server

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/vecnet/vecnet.openmalaria/internal/config"
	"github.com/vecnet/vecnet.openmalaria/internal/expand"
	"github.com/vecnet/vecnet.openmalaria/internal/manifest"
	"github.com/vecnet/vecnet.openmalaria/internal/prompts"
	"github.com/vecnet/vecnet.openmalaria/internal/resources"
	"github.com/vecnet/vecnet.openmalaria/internal/tools"
	"go.uber.org/zap"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools, prompts,
// and resources registered.
//
// The returned cleanup function closes the manifest store and must be
// called on shutdown. It is always non-nil and safe to call even if the
// store failed to open.
func New(cfg *config.Config, logger *zap.Logger) (*server.MCPServer, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, noop, fmt.Errorf("invalid configuration: %w", err)
	}

	// The manifest is an independent subsystem: if it cannot be opened the
	// expansion tools keep working and the run tools are not registered.
	cleanup := noop
	var store *manifest.Store
	if cfg.RecordRuns {
		st, err := manifest.New(manifest.Config{DataDir: cfg.DataDir})
		if err != nil {
			logger.Warn("run manifest disabled", zap.Error(err))
		} else {
			store = st
			cleanup = func() {
				if err := st.Close(); err != nil {
					logger.Warn("run manifest close", zap.Error(err))
				}
			}
		}
	}

	return build(cfg, store, logger), cleanup, nil
}

// build registers every component. store may be nil.
func build(cfg *config.Config, store *manifest.Store, logger *zap.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"omsweep",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// A nil *manifest.Store must not become a non-nil interface.
	var runs expand.RunStore
	if store != nil {
		runs = store
	}
	expander := expand.New(runs, logger)

	// --- Experiment tools ---

	inspectTool := tools.NewInspectTool(logger)
	s.AddTool(inspectTool.Definition(), inspectTool.Handle)

	previewTool := tools.NewPreviewTool(expander, logger)
	s.AddTool(previewTool.Definition(), previewTool.Handle)

	expandTool := tools.NewExpandTool(expander, tools.ExpandDefaults{
		OutputDir:    cfg.OutputDir,
		FilePattern:  cfg.FilePattern,
		ManifestFile: cfg.ManifestFile,
		SeedFloor:    int(cfg.SeedFloor),
	}, logger)
	s.AddTool(expandTool.Definition(), expandTool.Handle)

	// --- Run manifest tools and resources ---

	if store != nil {
		runList := tools.NewRunListTool(store)
		s.AddTool(runList.Definition(), runList.Handle)

		runGet := tools.NewRunGetTool(store)
		s.AddTool(runGet.Definition(), runGet.Handle)

		runStats := tools.NewRunStatsTool(store)
		s.AddTool(runStats.Definition(), runStats.Handle)

		resourceHandler := resources.NewHandler(store, 0)
		s.AddResource(resourceHandler.RecentRunsResource(), resourceHandler.HandleRecentRuns)
	}

	// --- Prompts ---

	designPrompt := prompts.NewDesignPrompt()
	s.AddPrompt(designPrompt.Definition(), designPrompt.Handle)

	return s
}

// noop is the default cleanup when the manifest is disabled.
func noop() {}

// serverInstructions tells the AI how to use the server.
func serverInstructions() string {
	return `You have access to omsweep, an experiment expander for simulation scenarios.

An experiment description names a base scenario template containing @token@
placeholders, a set of sweeps (each a set of named arms assigning values to
tokens) and optional combination groups restricting which arms go together.
Sweeps not covered by any group are crossed fully factorially.

## Workflow

1. experiment_inspect: check sweeps, groups and the scenario count.
2. experiment_preview: look at the first few generated documents.
3. experiment_expand: write all scenarios to a directory, one file each.
   Set seed=true to replace @seed@ with a distinct prime per scenario.

When the run manifest is enabled, run_list, run_get and run_stats report past
expansions and the omsweep://runs/recent resource lists the latest runs.

Never expand before the user has confirmed the scenario count.`
}
