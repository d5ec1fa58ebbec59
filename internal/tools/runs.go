package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/vecnet/vecnet.openmalaria/internal/manifest"
)

const (
	defaultRunListLimit = 10
	maxRunListLimit     = 100
)

// RunListTool handles the run_list MCP tool.
type RunListTool struct {
	store *manifest.Store
}

// NewRunListTool creates a RunListTool with the given manifest store.
func NewRunListTool(store *manifest.Store) *RunListTool {
	return &RunListTool{store: store}
}

// Definition returns the MCP tool definition for run_list.
func (t *RunListTool) Definition() mcp.Tool {
	return mcp.NewTool("run_list",
		mcp.WithDescription("List recent expansion runs, newest first."),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Max runs (default: %d, max: %d)", defaultRunListLimit, maxRunListLimit)),
		),
	)
}

// Handle processes the run_list tool call.
func (t *RunListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := clamp(intArg(req, "limit", defaultRunListLimit), defaultRunListLimit, maxRunListLimit)

	runs, err := t.store.RecentRuns(limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("No runs recorded yet."), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Recent runs (%d)\n\n", len(runs)))
	for _, r := range runs {
		sb.WriteString(fmt.Sprintf("- `%s` **%s** %s, %d scenarios, %s → %s\n",
			r.ID, r.Experiment, r.Status, r.ScenarioCount, r.StartedAt, r.OutputDir))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// ─── RunGetTool ─────────────────────────────────────────────────────────────

// RunGetTool handles the run_get MCP tool.
type RunGetTool struct {
	store *manifest.Store
}

// NewRunGetTool creates a RunGetTool with the given manifest store.
func NewRunGetTool(store *manifest.Store) *RunGetTool {
	return &RunGetTool{store: store}
}

// Definition returns the MCP tool definition for run_get.
func (t *RunGetTool) Definition() mcp.Tool {
	return mcp.NewTool("run_get",
		mcp.WithDescription(
			"Show one expansion run with every scenario it wrote: file, seed, arm per sweep and document digest. "+
				"Set format to json for a machine-readable export.",
		),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("Run identifier returned by experiment_expand or run_list"),
		),
		mcp.WithString("format",
			mcp.Description("Output format"),
			mcp.Enum("markdown", "json"),
			mcp.DefaultString("markdown"),
		),
	)
}

// Handle processes the run_get tool call.
func (t *RunGetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("run_id", ""))
	if id == "" {
		return mcp.NewToolResultError("'run_id' is required"), nil
	}

	data, err := t.store.Export(id)
	if err != nil {
		if errors.Is(err, manifest.ErrRunNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("run %q not found", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to load run: %v", err)), nil
	}

	if req.GetString("format", "markdown") == "json" {
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding run %s: %w", id, err)
		}
		return mcp.NewToolResultText(string(out)), nil
	}

	r := data.Run
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Run %s\n\n", r.ID))
	sb.WriteString(fmt.Sprintf("- **Experiment**: %s\n", r.Experiment))
	if r.Source != "" {
		sb.WriteString(fmt.Sprintf("- **Source**: %s\n", r.Source))
	}
	sb.WriteString(fmt.Sprintf("- **Status**: %s\n", r.Status))
	sb.WriteString(fmt.Sprintf("- **Output**: %s\n", r.OutputDir))
	sb.WriteString(fmt.Sprintf("- **Seeded**: %t\n", r.Seeded))
	sb.WriteString(fmt.Sprintf("- **Scenarios**: %d\n", r.ScenarioCount))
	sb.WriteString(fmt.Sprintf("- **Started**: %s\n", r.StartedAt))
	if r.FinishedAt != nil {
		sb.WriteString(fmt.Sprintf("- **Finished**: %s\n", *r.FinishedAt))
	}
	if r.Error != nil {
		sb.WriteString(fmt.Sprintf("- **Error**: %s\n", *r.Error))
	}

	if len(data.Scenarios) > 0 {
		sb.WriteString("\n### Scenarios\n\n")
		for _, sc := range data.Scenarios {
			sb.WriteString(fmt.Sprintf("%d. %s", sc.Index, sc.File))
			if sc.Seed != nil {
				sb.WriteString(fmt.Sprintf(" seed=%d", *sc.Seed))
			}
			sb.WriteString(" " + formatParameters(sc.Parameters))
			sb.WriteString(fmt.Sprintf(" sha256=%s\n", shortDigest(sc.Digest)))
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// ─── RunStatsTool ───────────────────────────────────────────────────────────

// RunStatsTool handles the run_stats MCP tool.
type RunStatsTool struct {
	store *manifest.Store
}

// NewRunStatsTool creates a RunStatsTool with the given manifest store.
func NewRunStatsTool(store *manifest.Store) *RunStatsTool {
	return &RunStatsTool{store: store}
}

// Definition returns the MCP tool definition for run_stats.
func (t *RunStatsTool) Definition() mcp.Tool {
	return mcp.NewTool("run_stats",
		mcp.WithDescription("Show run manifest statistics: runs by status and total scenarios recorded."),
	)
}

// Handle processes the run_stats tool call.
func (t *RunStatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := t.store.Stats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("## Run Statistics\n\n")
	sb.WriteString(fmt.Sprintf("- **Runs**: %d\n", stats.TotalRuns))
	sb.WriteString(fmt.Sprintf("- **Completed**: %d\n", stats.CompletedRuns))
	sb.WriteString(fmt.Sprintf("- **Failed**: %d\n", stats.FailedRuns))
	sb.WriteString(fmt.Sprintf("- **Scenarios**: %d\n", stats.TotalScenarios))
	return mcp.NewToolResultText(sb.String()), nil
}

func formatParameters(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + params[k]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
