package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

// InspectTool handles the experiment_inspect MCP tool.
type InspectTool struct {
	logger *zap.Logger
}

// NewInspectTool creates an InspectTool.
func NewInspectTool(logger *zap.Logger) *InspectTool {
	return &InspectTool{logger: logger}
}

// Definition returns the MCP tool definition for experiment_inspect.
func (t *InspectTool) Definition() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(
			"Summarize an experiment description without generating anything: sweeps and their arms, " +
				"combination groups, the sweeps crossed fully factorially and the resulting scenario count.",
		),
	}, descriptionArgs()...)
	return mcp.NewTool("experiment_inspect", opts...)
}

// Handle processes the experiment_inspect tool call.
func (t *InspectTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exp, _, errResult := loadExperiment(req, t.logger)
	if errResult != nil {
		return errResult, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Experiment: %s\n\n", exp))
	sb.WriteString(fmt.Sprintf("- **Scenarios**: %d\n", exp.Count()))

	names := exp.SweepNames()
	if len(names) == 0 {
		sb.WriteString("- **Sweeps**: none\n")
	} else {
		sb.WriteString(fmt.Sprintf("- **Sweeps** (%d):\n", len(names)))
		for _, name := range names {
			sweep, _ := exp.Sweep(name)
			arms := sweep.ArmNames()
			sb.WriteString(fmt.Sprintf("  - %s: %d arms (%s)\n", name, len(arms), strings.Join(arms, ", ")))
		}
	}

	groups := exp.Groups()
	if len(groups) == 0 {
		sb.WriteString("- **Combination groups**: none\n")
	} else {
		sb.WriteString(fmt.Sprintf("- **Combination groups** (%d):\n", len(groups)))
		for _, g := range groups {
			sb.WriteString(fmt.Sprintf("  - %s: [%s], %d assignments\n",
				g.Name, strings.Join(g.Sweeps, ", "), len(g.Assignments)))
		}
	}

	if ff := exp.FullyFactorial(); len(ff) > 0 {
		sb.WriteString(fmt.Sprintf("- **Fully factorial**: %s\n", strings.Join(ff, ", ")))
	} else {
		sb.WriteString("- **Fully factorial**: none\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}
