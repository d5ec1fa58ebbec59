// Package tools implements the MCP tool handlers for experiment expansion.
//
// Each tool is a struct holding its dependencies, with Definition()
// returning the mcp.Tool schema and Handle() processing a call. Problems
// with the caller's input come back as tool errors; the Go error return
// is reserved for failures the caller cannot fix.
package tools

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/vecnet/vecnet.openmalaria/internal/experiment"
	"go.uber.org/zap"
)

// descriptionArgs are the shared schema options for tools that take an
// experiment either inline or from disk.
func descriptionArgs() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("description",
			mcp.Description("Experiment description as JSON or YAML text "+
				"(keys: name, base|basefile, sweeps, combinations). Use this or 'path'."),
		),
		mcp.WithString("path",
			mcp.Description("Path to an experiment description file. Relative basefile and "+
				"file:// references resolve against its directory."),
		),
	}
}

// loadExperiment builds an experiment from the 'description' or 'path'
// argument. It returns the experiment, a label naming its source, and a
// tool error result when the input is unusable.
func loadExperiment(req mcp.CallToolRequest, logger *zap.Logger) (*experiment.Experiment, string, *mcp.CallToolResult) {
	desc := strings.TrimSpace(req.GetString("description", ""))
	path := strings.TrimSpace(req.GetString("path", ""))

	switch {
	case desc == "" && path == "":
		return nil, "", mcp.NewToolResultError("one of 'description' or 'path' is required")
	case desc != "" && path != "":
		return nil, "", mcp.NewToolResultError("'description' and 'path' are mutually exclusive")
	}

	opts := []experiment.Option{experiment.WithLogger(logger)}
	if path != "" {
		opts = append(opts, experiment.WithBaseDir(filepath.Dir(path)))
		exp, err := experiment.LoadFile(path, opts...)
		if err != nil {
			return nil, "", mcp.NewToolResultError(fmt.Sprintf("failed to load experiment: %v", err))
		}
		return exp, path, nil
	}

	exp, err := experiment.New(desc, opts...)
	if err != nil {
		return nil, "", mcp.NewToolResultError(fmt.Sprintf("failed to parse experiment: %v", err))
	}
	return exp, "inline", nil
}

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// clamp bounds n to [1, hi], using def when n is not positive.
func clamp(n, def, hi int) int {
	if n <= 0 {
		n = def
	}
	return min(n, hi)
}
