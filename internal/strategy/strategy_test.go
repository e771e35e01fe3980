package strategy_test

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/meshgate/mcp-gateway/internal/aggregator"
	"github.com/meshgate/mcp-gateway/internal/strategy"
)

func TestPassthrough_Apply_IsIdentity(t *testing.T) {
	called := false
	baseCall := func(context.Context, string, map[string]interface{}) (*mcp.CallToolResult, error) {
		called = true
		return mcp.NewToolResultText("ok"), nil
	}
	ctx := aggregator.StrategyContext{
		Tools: []aggregator.ToolWithConnection{{Tool: mcp.Tool{Name: "a"}}, {Tool: mcp.Tool{Name: "b"}}},
		Call:  baseCall,
	}

	tools, call := strategy.Passthrough{}.Apply(ctx)
	require.Len(t, tools, 2)
	require.Equal(t, "a", tools[0].Name)

	_, err := call(context.Background(), "a", nil)
	require.NoError(t, err)
	require.True(t, called)
}

func TestSmart_Apply_ExposesOnlyMetaTools(t *testing.T) {
	ctx := aggregator.StrategyContext{
		Tools:      []aggregator.ToolWithConnection{{Tool: mcp.Tool{Name: "real"}}},
		Call:       func(context.Context, string, map[string]interface{}) (*mcp.CallToolResult, error) { return nil, nil },
		Categories: []string{"cat-a"},
	}

	tools, _ := strategy.Smart{}.Apply(ctx)
	names := []string{tools[0].Name, tools[1].Name}
	require.ElementsMatch(t, []string{"CALL_TOOL", "LIST_CATEGORIES"}, names)
}

func TestSmart_CallTool_ForwardsToRealTool(t *testing.T) {
	forwarded := ""
	ctx := aggregator.StrategyContext{
		Tools: []aggregator.ToolWithConnection{{Tool: mcp.Tool{Name: "real"}}},
		Call: func(_ context.Context, name string, _ map[string]interface{}) (*mcp.CallToolResult, error) {
			forwarded = name
			return mcp.NewToolResultText("ok"), nil
		},
	}
	_, call := strategy.Smart{}.Apply(ctx)

	result, err := call(context.Background(), "CALL_TOOL", map[string]interface{}{"name": "real"})
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Equal(t, "real", forwarded)
}

func TestSmart_CallTool_MissingName(t *testing.T) {
	ctx := aggregator.StrategyContext{}
	_, call := strategy.Smart{}.Apply(ctx)

	result, err := call(context.Background(), "CALL_TOOL", map[string]interface{}{})
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestSmart_CallTool_UnknownTarget(t *testing.T) {
	ctx := aggregator.StrategyContext{}
	_, call := strategy.Smart{}.Apply(ctx)

	result, err := call(context.Background(), "CALL_TOOL", map[string]interface{}{"name": "ghost"})
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestSmart_ListCategories(t *testing.T) {
	ctx := aggregator.StrategyContext{Categories: []string{"cat-a", "cat-b"}}
	_, call := strategy.Smart{}.Apply(ctx)

	result, err := call(context.Background(), "LIST_CATEGORIES", nil)
	require.NoError(t, err)
	require.False(t, result.IsError)
}

func TestSmart_UnknownMetaTool(t *testing.T) {
	ctx := aggregator.StrategyContext{}
	_, call := strategy.Smart{}.Apply(ctx)

	result, err := call(context.Background(), "NOT_A_META_TOOL", nil)
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestRegistry_ResolvesKnownModesAndFallsBackOnUnknown(t *testing.T) {
	require.IsType(t, strategy.Passthrough{}, strategy.Registry(strategy.ModePassthrough))
	require.IsType(t, strategy.Passthrough{}, strategy.Registry(""))
	require.IsType(t, strategy.Smart{}, strategy.Registry(strategy.ModeSmart))
	require.IsType(t, strategy.Passthrough{}, strategy.Registry("something-unrecognized"))
}
