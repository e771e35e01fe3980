// Package aggregator implements the four aggregator facets of C6: tool,
// resource, prompt, and resource-template namespace merge, selection
// filtering, and per-facet routing maps.
//
// Grounded on stacklok/toolhive's vmcp aggregator (query/resolve-conflicts/
// merge three-stage pipeline) for the overall shape, adapted to this spec's
// first-wins (not renaming/conflict-resolver) dedup policy and positional-
// buffer fan-out (spec §9: "collect per-index results into a positional
// buffer; iterate in collection order... do not build the map concurrently").
package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meshgate/mcp-gateway/internal/model"
	"github.com/meshgate/mcp-gateway/internal/proxyset"
)

// ToolWithConnection is upstream tool metadata annotated with its owning
// connection (spec §3).
type ToolWithConnection struct {
	Tool            mcp.Tool
	ConnectionID    string
	ConnectionTitle string
}

// ToolRoute is one ToolRouteMap entry: final_name -> {connection_id, original_name}.
type ToolRoute struct {
	ConnectionID string
	OriginalName string
}

// CallToolFunc is the base_call_tool(name, args) function handed to a
// ToolSelectionStrategy (C7); strategies may wrap it with meta-tools.
type CallToolFunc func(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)

// Strategy is the C7 contract: transform the aggregated tool list and routing
// call function into the externally-presented tool list plus a (possibly
// wrapped) call function. Strategies MUST be pure with respect to ctx (spec
// §4.7).
type Strategy interface {
	Apply(ctx StrategyContext) (tools []mcp.Tool, call CallToolFunc)
}

// StrategyContext is the ctx argument passed to a Strategy.
type StrategyContext struct {
	Tools      []ToolWithConnection
	Call       CallToolFunc
	Categories []string
}

// ToolAggregator merges tools across a ProxyCollection, applies selection,
// and delegates presentation to a Strategy.
type ToolAggregator struct {
	routeMap map[string]ToolRoute
	tools    []mcp.Tool
	call     CallToolFunc
	base     CallToolFunc
}

// BuildToolAggregator runs the full algorithm in spec §4.5: concurrent
// list_tools fan-out, selection filter, first-wins merge, route-map
// recording, and strategy application.
func BuildToolAggregator(ctx context.Context, coll *proxyset.Collection, mode model.ToolSelectionMode, strategy Strategy) (*ToolAggregator, error) {
	entries := coll.Entries()
	perEntry := make([][]ToolWithConnection, len(entries))

	var wg sync.WaitGroup
	for i, e := range entries {
		wg.Add(1)
		go func(i int, e *proxyset.Entry) {
			defer wg.Done()
			tools, err := e.Proxy.ListTools(ctx)
			if err != nil {
				// Fan-out partial failures are logged and dropped (spec §5):
				// listing degrades to "no tools from this connection" rather
				// than failing the request.
				slog.Error("failed to list tools; omitting connection", "connection_id", e.Connection.ID, "error", err)
				return
			}
			filtered := filterToolNames(tools, e.SelectedTools, mode)
			out := make([]ToolWithConnection, 0, len(filtered))
			for _, t := range filtered {
				out = append(out, ToolWithConnection{Tool: t, ConnectionID: e.Connection.ID, ConnectionTitle: e.Connection.Title})
			}
			perEntry[i] = out
		}(i, e)
	}
	wg.Wait()

	routeMap := make(map[string]ToolRoute)
	var merged []ToolWithConnection
	var categories []string
	seenCategory := make(map[string]bool)
	for i, twcs := range perEntry {
		if len(twcs) > 0 && !seenCategory[entries[i].Connection.Title] {
			categories = append(categories, entries[i].Connection.Title)
			seenCategory[entries[i].Connection.Title] = true
		}
		for _, twc := range twcs {
			if _, dup := routeMap[twc.Tool.Name]; dup {
				continue // first occurrence wins; later duplicates dropped (spec §4.5 step 3)
			}
			routeMap[twc.Tool.Name] = ToolRoute{ConnectionID: twc.ConnectionID, OriginalName: twc.Tool.Name}
			merged = append(merged, twc)
		}
	}

	agg := &ToolAggregator{routeMap: routeMap}
	baseCall := func(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
		route, ok := routeMap[name]
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("Tool not found: %s", name)), nil
		}
		entry, ok := coll.Get(route.ConnectionID)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("Tool not found: %s", name)), nil
		}
		return entry.Proxy.CallTool(ctx, route.OriginalName, args)
	}

	tools, call := strategy.Apply(StrategyContext{Tools: merged, Call: baseCall, Categories: categories})
	agg.tools = tools
	agg.call = call
	agg.base = baseCall
	return agg, nil
}

// Tools returns the externally-visible tool list, cached for the aggregator's
// lifetime.
func (a *ToolAggregator) Tools() []mcp.Tool { return a.tools }

// RouteMap exposes the recorded name -> {connection_id, original_name} map
// (spec invariant 2).
func (a *ToolAggregator) RouteMap() map[string]ToolRoute { return a.routeMap }

// Call routes to the owning proxy's call_tool with the original name if name
// matches the route map; otherwise delegates to the strategy's call function
// (meta-tools). Missing name -> isError tool-not-found result.
func (a *ToolAggregator) Call(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	if _, ok := a.routeMap[name]; ok {
		return a.base(ctx, name, args)
	}
	return a.call(ctx, name, args)
}

// CallStreamable routes like Call; if name is in the route map it forwards to
// the owning proxy's CallStreamable unchanged, otherwise (a meta-tool owned
// by the strategy) it executes the strategy's call function and wraps the
// result as a JSON HTTP response (spec §4.5).
func (a *ToolAggregator) CallStreamable(ctx context.Context, coll *proxyset.Collection, name string, args map[string]interface{}) (*http.Response, error) {
	if route, ok := a.routeMap[name]; ok {
		if entry, ok := coll.Get(route.ConnectionID); ok {
			return entry.Proxy.CallStreamable(ctx, route.OriginalName, args)
		}
	}

	result, err := a.call(ctx, name, args)
	if err != nil {
		return nil, err
	}
	body, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		return nil, marshalErr
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(body)),
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
	}, nil
}

func filterToolNames(tools []mcp.Tool, selected []string, mode model.ToolSelectionMode) []mcp.Tool {
	if len(selected) == 0 {
		return tools
	}
	set := make(map[string]bool, len(selected))
	for _, s := range selected {
		set[s] = true
	}
	out := make([]mcp.Tool, 0, len(tools))
	for _, t := range tools {
		switch mode {
		case model.SelectionInclusion:
			if set[t.Name] {
				out = append(out, t)
			}
		case model.SelectionExclusion:
			if !set[t.Name] {
				out = append(out, t)
			}
		default:
			out = append(out, t)
		}
	}
	return out
}
