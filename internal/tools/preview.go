package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/vecnet/vecnet.openmalaria/internal/expand"
	"go.uber.org/zap"
)

const (
	defaultPreviewLimit = 3
	maxPreviewLimit     = 50
)

// PreviewTool handles the experiment_preview MCP tool.
type PreviewTool struct {
	expander *expand.Expander
	logger   *zap.Logger
}

// NewPreviewTool creates a PreviewTool.
func NewPreviewTool(expander *expand.Expander, logger *zap.Logger) *PreviewTool {
	return &PreviewTool{expander: expander, logger: logger}
}

// Definition returns the MCP tool definition for experiment_preview.
func (t *PreviewTool) Definition() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(
			"Generate the first scenarios of an experiment and return them inline. Nothing is written to disk. " +
				"Use this to check substitutions before running experiment_expand.",
		),
	}, descriptionArgs()...)
	opts = append(opts,
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Number of scenarios to show (default: %d, max: %d)", defaultPreviewLimit, maxPreviewLimit)),
		),
		mcp.WithBoolean("seed",
			mcp.Description("Replace @seed@ with a distinct prime per scenario (default: false)"),
		),
	)
	return mcp.NewTool("experiment_preview", opts...)
}

// Handle processes the experiment_preview tool call.
func (t *PreviewTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exp, _, errResult := loadExperiment(req, t.logger)
	if errResult != nil {
		return errResult, nil
	}
	limit := clamp(intArg(req, "limit", defaultPreviewLimit), defaultPreviewLimit, maxPreviewLimit)

	scenarios, err := t.expander.Preview(ctx, exp, limit, boolArg(req, "seed", false))
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return nil, fmt.Errorf("previewing %s: %w", exp, err)
	case expand.IsUserError(err):
		return mcp.NewToolResultError(fmt.Sprintf("invalid experiment: %v", err)), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("failed to generate scenarios: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Preview: %s\n\n", exp))
	sb.WriteString(fmt.Sprintf("Showing %d of %d scenarios.\n", len(scenarios), exp.Count()))

	for _, sc := range scenarios {
		sb.WriteString(fmt.Sprintf("\n### Scenario %d", sc.Index))
		if sc.Seed != 0 {
			sb.WriteString(fmt.Sprintf(" (seed %d)", sc.Seed))
		}
		sb.WriteString("\n\n")

		sweeps := make([]string, 0, len(sc.Parameters))
		for s := range sc.Parameters {
			sweeps = append(sweeps, s)
		}
		sort.Strings(sweeps)
		for _, s := range sweeps {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", s, sc.Parameters[s]))
		}
		sb.WriteString("\n```xml\n")
		sb.WriteString(sc.Document)
		if !strings.HasSuffix(sc.Document, "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString("```\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}
