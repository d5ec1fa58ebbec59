package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/vecnet/vecnet.openmalaria/internal/emit"
	"github.com/vecnet/vecnet.openmalaria/internal/expand"
	"go.uber.org/zap"
)

// ExpandDefaults are the settings used when a call leaves them out. An
// empty ManifestFile means no manifest is written.
type ExpandDefaults struct {
	OutputDir    string
	FilePattern  string
	ManifestFile string
	SeedFloor    int
}

// ExpandTool handles the experiment_expand MCP tool.
type ExpandTool struct {
	expander *expand.Expander
	defaults ExpandDefaults
	logger   *zap.Logger
}

// NewExpandTool creates an ExpandTool.
func NewExpandTool(expander *expand.Expander, defaults ExpandDefaults, logger *zap.Logger) *ExpandTool {
	return &ExpandTool{expander: expander, defaults: defaults, logger: logger}
}

// Definition returns the MCP tool definition for experiment_expand.
func (t *ExpandTool) Definition() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(
			"Expand an experiment into one scenario file per final assignment and write them to a directory. " +
				"Optionally writes a CSV manifest naming the arm chosen per sweep.",
		),
	}, descriptionArgs()...)
	opts = append(opts,
		mcp.WithString("output_dir",
			mcp.Description("Directory to write scenarios into (created if missing)"),
			mcp.DefaultString(t.defaults.OutputDir),
		),
		mcp.WithString("file_pattern",
			mcp.Description("File name pattern with exactly one %d for the 1-based index"),
			mcp.DefaultString(t.defaults.FilePattern),
		),
		mcp.WithBoolean("seed",
			mcp.Description("Replace @seed@ with a distinct prime per scenario (default: false)"),
		),
		mcp.WithBoolean("manifest",
			mcp.Description("Write the CSV manifest next to the scenarios (default: true)"),
		),
	)
	return mcp.NewTool("experiment_expand", opts...)
}

// Handle processes the experiment_expand tool call.
func (t *ExpandTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exp, source, errResult := loadExperiment(req, t.logger)
	if errResult != nil {
		return errResult, nil
	}

	outDir := strings.TrimSpace(req.GetString("output_dir", t.defaults.OutputDir))
	if outDir == "" {
		return mcp.NewToolResultError("'output_dir' is required"), nil
	}
	pattern := req.GetString("file_pattern", t.defaults.FilePattern)
	if pattern == "" {
		pattern = emit.DefaultFilePattern
	}
	if err := emit.ValidatePattern(pattern); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// An empty default manifest name disables the manifest.
	manifestFile := ""
	if boolArg(req, "manifest", true) {
		manifestFile = t.defaults.ManifestFile
	}

	res, err := t.expander.Run(ctx, exp, expand.Options{
		OutputDir:    outDir,
		FilePattern:  pattern,
		ManifestFile: manifestFile,
		Seed:         boolArg(req, "seed", false),
		SeedFloor:    t.defaults.SeedFloor,
		Source:       source,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("expansion failed: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d scenarios generated\n\n", res.Count))
	sb.WriteString(fmt.Sprintf("- **Experiment**: %s\n", exp))
	sb.WriteString(fmt.Sprintf("- **Output**: %s\n", outDir))
	if res.ManifestPath != "" {
		sb.WriteString(fmt.Sprintf("- **Manifest**: %s\n", res.ManifestPath))
	}
	if res.RunID != "" {
		sb.WriteString(fmt.Sprintf("- **Run ID**: %s\n", res.RunID))
	}
	return mcp.NewToolResultText(sb.String()), nil
}
