// Package resources implements MCP resource handlers for the run manifest.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (omsweep://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/vecnet/vecnet.openmalaria/internal/manifest"
)

// RecentRunsURI addresses the recent runs listing.
const RecentRunsURI = "omsweep://runs/recent"

// RunLister is the subset of the manifest store the handler reads.
type RunLister interface {
	RecentRuns(limit int) ([]manifest.Run, error)
}

// Handler manages run manifest resource endpoints.
type Handler struct {
	store RunLister
	limit int
}

// NewHandler creates a resource Handler. limit <= 0 uses the store default.
func NewHandler(store RunLister, limit int) *Handler {
	return &Handler{store: store, limit: limit}
}

// RecentRunsResource returns the MCP resource definition for recent runs.
func (h *Handler) RecentRunsResource() mcp.Resource {
	return mcp.NewResource(
		RecentRunsURI,
		"Recent expansion runs",
		mcp.WithResourceDescription("Most recent expansion runs with status, scenario count and output directory"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleRecentRuns returns the recent runs as JSON.
func (h *Handler) HandleRecentRuns(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	runs, err := h.store.RecentRuns(h.limit)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	if runs == nil {
		runs = []manifest.Run{}
	}

	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling runs: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
