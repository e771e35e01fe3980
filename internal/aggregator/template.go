package aggregator

import (
	"context"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meshgate/mcp-gateway/internal/proxyset"
)

// ResourceTemplateAggregator concatenates template lists across proxies and
// routes by uri_template if read-template is invoked (spec §4.6).
type ResourceTemplateAggregator struct {
	routeMap  map[string]string // uri_template -> connection_id
	templates []mcp.ResourceTemplate
}

func BuildResourceTemplateAggregator(ctx context.Context, coll *proxyset.Collection) *ResourceTemplateAggregator {
	entries := coll.Entries()
	perEntry := make([][]mcp.ResourceTemplate, len(entries))

	var wg sync.WaitGroup
	for i, e := range entries {
		wg.Add(1)
		go func(i int, e *proxyset.Entry) {
			defer wg.Done()
			templates, err := e.Proxy.ListResourceTemplates(ctx)
			if err != nil {
				return
			}
			perEntry[i] = templates
		}(i, e)
	}
	wg.Wait()

	routeMap := make(map[string]string)
	var merged []mcp.ResourceTemplate
	for i, templates := range perEntry {
		for _, t := range templates {
			routeMap[string(t.URITemplate)] = entries[i].Connection.ID
			merged = append(merged, t)
		}
	}
	return &ResourceTemplateAggregator{routeMap: routeMap, templates: merged}
}

func (a *ResourceTemplateAggregator) Templates() []mcp.ResourceTemplate { return a.templates }

// RouteFor resolves a uri_template to its owning connection id.
func (a *ResourceTemplateAggregator) RouteFor(uriTemplate string) (string, bool) {
	id, ok := a.routeMap[uriTemplate]
	return id, ok
}
