package aggregator_test

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/meshgate/mcp-gateway/internal/aggregator"
	"github.com/meshgate/mcp-gateway/internal/proxyset"
)

func TestBuildResourceTemplateAggregator_MergesAndRoutes(t *testing.T) {
	a := &fakeProxy{id: "acme/a", title: "A", resourceTemplates: []mcp.ResourceTemplate{{URITemplate: "file://{path}"}}}
	coll := proxyset.NewCollectionFromEntries(discardLogger(), entriesFromProxies(a))

	agg := aggregator.BuildResourceTemplateAggregator(context.Background(), coll)
	require.Len(t, agg.Templates(), 1)

	id, ok := agg.RouteFor("file://{path}")
	require.True(t, ok)
	require.Equal(t, "acme/a", id)

	_, ok = agg.RouteFor("missing")
	require.False(t, ok)
}
