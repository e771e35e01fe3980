package aggregator

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meshgate/mcp-gateway/internal/proxyset"
)

// MeshToolRoute is one MeshToolAggregator route entry: an exposed name
// (plain or "${connection_id}::${tool_name}") back to its owning connection
// and original tool name.
type MeshToolRoute struct {
	ConnectionID string
	OriginalName string
}

// MeshToolAggregator merges tools across every connection in a
// ProxyCollection for the /mcp/mesh/:org_slug route: unlike ToolAggregator's
// unconditional first-wins dedup, a name collision here is resolved by
// prefixing every colliding tool with its owning connection id
// ("${connection_id}::${tool_name}") instead of dropping the later entries,
// so two connections that happen to both expose e.g. "search" both stay
// reachable (spec §6, §9 — mesh is the one route where collisions must not
// silently drop a tool).
//
// Grounded on stacklok/toolhive's ConflictResolver.ResolveToolConflicts
// (group tools by name, then resolve each group), adapted to this spec's
// prefix-only-on-collision policy in place of toolhive's priority/rename
// strategies.
type MeshToolAggregator struct {
	routeMap map[string]MeshToolRoute
	tools    []mcp.Tool
}

// BuildMeshToolAggregator fans list_tools out across coll concurrently,
// collects per-connection results into a positional buffer, then merges
// sequentially in collection order so the prefix-or-not decision for each
// name is deterministic.
func BuildMeshToolAggregator(ctx context.Context, coll *proxyset.Collection) *MeshToolAggregator {
	entries := coll.Entries()
	perEntry := make([][]ToolWithConnection, len(entries))

	var wg sync.WaitGroup
	for i, e := range entries {
		wg.Add(1)
		go func(i int, e *proxyset.Entry) {
			defer wg.Done()
			tools, err := e.Proxy.ListTools(ctx)
			if err != nil {
				return // partial failure degrades to "no tools from this connection" (spec §5)
			}
			out := make([]ToolWithConnection, 0, len(tools))
			for _, t := range tools {
				out = append(out, ToolWithConnection{Tool: t, ConnectionID: e.Connection.ID, ConnectionTitle: e.Connection.Title})
			}
			perEntry[i] = out
		}(i, e)
	}
	wg.Wait()

	byName := make(map[string][]ToolWithConnection)
	var order []string
	for _, twcs := range perEntry {
		for _, twc := range twcs {
			if _, seen := byName[twc.Tool.Name]; !seen {
				order = append(order, twc.Tool.Name)
			}
			byName[twc.Tool.Name] = append(byName[twc.Tool.Name], twc)
		}
	}

	routeMap := make(map[string]MeshToolRoute, len(order))
	merged := make([]mcp.Tool, 0, len(order))
	for _, name := range order {
		owners := byName[name]
		if len(owners) == 1 {
			merged = append(merged, owners[0].Tool)
			routeMap[name] = MeshToolRoute{ConnectionID: owners[0].ConnectionID, OriginalName: name}
			continue
		}
		for _, owner := range owners {
			exposed := owner.ConnectionID + "::" + name
			tool := owner.Tool
			tool.Name = exposed
			merged = append(merged, tool)
			routeMap[exposed] = MeshToolRoute{ConnectionID: owner.ConnectionID, OriginalName: name}
		}
	}

	return &MeshToolAggregator{routeMap: routeMap, tools: merged}
}

// Tools returns the externally-visible, conflict-resolved tool list.
func (a *MeshToolAggregator) Tools() []mcp.Tool { return a.tools }

// RouteMap exposes the recorded exposed_name -> {connection_id, original_name} map.
func (a *MeshToolAggregator) RouteMap() map[string]MeshToolRoute { return a.routeMap }

// Call routes an exposed name (plain or "${connection_id}::${tool_name}")
// to its owning connection's CallTool with the tool's original name.
func (a *MeshToolAggregator) Call(ctx context.Context, coll *proxyset.Collection, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	route, ok := a.routeMap[name]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("Tool not found: %s", name)), nil
	}
	entry, ok := coll.Get(route.ConnectionID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("Tool not found: %s", name)), nil
	}
	return entry.Proxy.CallTool(ctx, route.OriginalName, args)
}
