// Package prompts implements MCP prompt handlers for experiment authoring.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// DesignPrompt handles the experiment-design MCP prompt.
// It walks the AI through writing an experiment description and checking
// it with the inspect and preview tools before expanding.
type DesignPrompt struct{}

// NewDesignPrompt creates a DesignPrompt.
func NewDesignPrompt() *DesignPrompt {
	return &DesignPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *DesignPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("experiment-design",
		mcp.WithPromptDescription(
			"Design a parameter-sweep experiment over a scenario template. "+
				"Guides you from the study question to a description that expands into scenario files.",
		),
		mcp.WithArgument("goal",
			mcp.ArgumentDescription("What the experiment should compare, e.g. 'ITN coverage against IRS coverage'"),
		),
		mcp.WithArgument("format",
			mcp.ArgumentDescription("Description format: 'yaml' or 'json'. Default: yaml"),
		),
	)
}

// Handle processes the experiment-design prompt request.
func (p *DesignPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	goal := "a parameter sweep"
	format := "yaml"
	if args := req.Params.Arguments; args != nil {
		if g, ok := args["goal"]; ok && strings.TrimSpace(g) != "" {
			goal = strings.TrimSpace(g)
		}
		if f, ok := args["format"]; ok && strings.EqualFold(f, "json") {
			format = "json"
		}
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Design experiment: %s", goal),
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(designInstructions(goal, format)),
			},
		},
	}, nil
}

func designInstructions(goal, format string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("I want to design an experiment for %s.\n\n", goal))
	sb.WriteString("Help me write an experiment description")
	sb.WriteString(fmt.Sprintf(" in %s with these keys:\n\n", strings.ToUpper(format)))
	sb.WriteString("1. **name**: display name (optional).\n")
	sb.WriteString("2. **base** or **basefile**: the scenario template. Every parameter is a token of the form `@name@`.\n")
	sb.WriteString("3. **sweeps**: sweep name → arm name → {token: value}. Values are text or numbers; ")
	sb.WriteString("a text value starting with `file://` is replaced by that file's contents.\n")
	sb.WriteString("4. **combinations** (optional): either one list whose first row names sweeps and whose ")
	sb.WriteString("remaining rows name one arm per sweep, or a mapping of group name → such a list. ")
	sb.WriteString("Sweeps no group mentions are crossed with everything else (fully factorial).\n\n")
	sb.WriteString("Rules to respect:\n")
	sb.WriteString("- Every token must start and end with `@`.\n")
	sb.WriteString("- Each combination row must name exactly one arm per listed sweep.\n")
	sb.WriteString("- If scenarios need distinct random seeds, put `@seed@` in the template and expand with seeding on.\n\n")
	sb.WriteString("Then:\n")
	sb.WriteString("1. Call `experiment_inspect` and confirm the sweeps, groups and scenario count with me.\n")
	sb.WriteString("2. Call `experiment_preview` with a small limit and check that no `@token@` is left unreplaced.\n")
	sb.WriteString("3. Only after I agree, call `experiment_expand` with an output directory.\n")
	return sb.String()
}
