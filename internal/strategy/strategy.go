// Package strategy implements ToolSelectionStrategy (C7): passthrough and
// smart/indirect presentation strategies, selected by a closed-set mode
// registry that falls back to passthrough on an unknown mode (spec §9:
// "Mode-string → strategy lookup... unknown modes fall back to passthrough
// rather than erroring").
//
// Grounded on giantswarm-muster's forwardToServerMetaTool pattern
// (internal/agent/server_mcp.go) for the meta-tool call-forwarding shape:
// extract args, look the real tool up, forward, wrap result/error.
package strategy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meshgate/mcp-gateway/internal/aggregator"
)

// ModePassthrough and ModeSmart are the two named strategies spec §4.7
// requires.
const (
	ModePassthrough = "passthrough"
	ModeSmart       = "smart"
)

// Passthrough is the identity strategy: the tool list and call function pass
// through unchanged.
type Passthrough struct{}

func (Passthrough) Apply(ctx aggregator.StrategyContext) ([]mcp.Tool, aggregator.CallToolFunc) {
	tools := make([]mcp.Tool, len(ctx.Tools))
	for i, t := range ctx.Tools {
		tools[i] = t.Tool
	}
	return tools, ctx.Call
}

// metaCallToolName is the single indirect-call meta-tool name exposed by the
// smart strategy.
const metaCallToolName = "CALL_TOOL"

// metaListCategoriesToolName lets the caller discover available categories
// (connection titles) before picking a tool to call indirectly.
const metaListCategoriesToolName = "LIST_CATEGORIES"

// Smart exposes a small set of meta-tools instead of the raw aggregated list:
// a single CALL_TOOL tool plus a discovery tool keyed by connection title
// (spec §4.7 "smart / indirect").
type Smart struct{}

func (Smart) Apply(ctx aggregator.StrategyContext) ([]mcp.Tool, aggregator.CallToolFunc) {
	byName := make(map[string]aggregator.ToolWithConnection, len(ctx.Tools))
	for _, t := range ctx.Tools {
		byName[t.Tool.Name] = t
	}

	tools := []mcp.Tool{
		mcp.NewTool(metaCallToolName,
			mcp.WithDescription("Call an underlying tool by name with JSON-encoded arguments."),
			mcp.WithString("name", mcp.Required(), mcp.Description("The underlying tool name.")),
			mcp.WithObject("arguments", mcp.Description("Arguments for the underlying tool.")),
		),
		mcp.NewTool(metaListCategoriesToolName,
			mcp.WithDescription("List the connection categories available for indirect tool calls."),
		),
	}

	call := func(c context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
		switch name {
		case metaCallToolName:
			target, _ := args["name"].(string)
			if target == "" {
				return mcp.NewToolResultError("missing required argument: name"), nil
			}
			targetArgs, _ := args["arguments"].(map[string]interface{})
			twc, ok := byName[target]
			if !ok {
				return mcp.NewToolResultError(fmt.Sprintf("Tool not found: %s", target)), nil
			}
			return ctx.Call(c, twc.Tool.Name, targetArgs)
		case metaListCategoriesToolName:
			payload, err := json.Marshal(ctx.Categories)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(string(payload)), nil
		default:
			return mcp.NewToolResultError(fmt.Sprintf("Tool not found: %s", name)), nil
		}
	}

	return tools, call
}

// Registry resolves a mode string to a Strategy, falling back to Passthrough
// for anything unrecognised.
func Registry(mode string) aggregator.Strategy {
	switch mode {
	case ModeSmart:
		return Smart{}
	case ModePassthrough, "":
		return Passthrough{}
	default:
		return Passthrough{}
	}
}
