package aggregator

import (
	"context"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meshgate/mcp-gateway/internal/gwerrors"
	"github.com/meshgate/mcp-gateway/internal/model"
	"github.com/meshgate/mcp-gateway/internal/proxyset"
)

// ResourceAggregator merges resources across a ProxyCollection by URI (spec
// §4.6). Last-write-wins on URI collisions: the spec carries this behavior
// forward from the source system as a flagged, accepted Non-goal resolution
// (spec.md §9 open question) rather than rejecting the listing.
type ResourceAggregator struct {
	routeMap  map[string]string // uri -> connection_id
	resources []mcp.Resource
}

// BuildResourceAggregator fans list_resources out concurrently, filters by
// selection, and merges in collection order.
func BuildResourceAggregator(ctx context.Context, coll *proxyset.Collection, mode model.ToolSelectionMode) *ResourceAggregator {
	entries := coll.Entries()
	perEntry := make([][]mcp.Resource, len(entries))

	var wg sync.WaitGroup
	for i, e := range entries {
		wg.Add(1)
		go func(i int, e *proxyset.Entry) {
			defer wg.Done()
			resources, err := e.Proxy.ListResources(ctx)
			if err != nil {
				return
			}
			perEntry[i] = filterResourceURIs(resources, e.SelectedResources, mode)
		}(i, e)
	}
	wg.Wait()

	routeMap := make(map[string]string)
	var merged []mcp.Resource
	for i, resources := range perEntry {
		for _, r := range resources {
			routeMap[r.URI] = entries[i].Connection.ID // last-write-wins (spec §9 open question)
			merged = append(merged, r)
		}
	}
	return &ResourceAggregator{routeMap: routeMap, resources: merged}
}

func (a *ResourceAggregator) Resources() []mcp.Resource { return a.resources }

// ReadResource routes by URI; missing -> ResourceNotFound (spec §4.6).
func (a *ResourceAggregator) ReadResource(ctx context.Context, coll *proxyset.Collection, uri string) (*mcp.ReadResourceResult, error) {
	connID, ok := a.routeMap[uri]
	if !ok {
		return nil, gwerrors.ErrResourceNotFound
	}
	entry, ok := coll.Get(connID)
	if !ok {
		return nil, gwerrors.ErrResourceNotFound
	}
	return entry.Proxy.ReadResource(ctx, uri)
}

func filterResourceURIs(resources []mcp.Resource, selected []string, mode model.ToolSelectionMode) []mcp.Resource {
	if len(selected) == 0 {
		return resources
	}
	set := make(map[string]bool, len(selected))
	for _, s := range selected {
		set[s] = true
	}
	out := make([]mcp.Resource, 0, len(resources))
	for _, r := range resources {
		switch mode {
		case model.SelectionInclusion:
			if set[r.URI] {
				out = append(out, r)
			}
		case model.SelectionExclusion:
			if !set[r.URI] {
				out = append(out, r)
			}
		default:
			out = append(out, r)
		}
	}
	return out
}
