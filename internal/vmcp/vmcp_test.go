package vmcp_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshgate/mcp-gateway/internal/model"
	"github.com/meshgate/mcp-gateway/internal/monitoring"
	"github.com/meshgate/mcp-gateway/internal/proxyset"
	"github.com/meshgate/mcp-gateway/internal/registry"
	"github.com/meshgate/mcp-gateway/internal/vmcp"
)

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(noopWriter{}, nil))
}

func newBuilder(tc *model.TenantContext) *proxyset.Builder {
	return proxyset.NewBuilder(tc, "signing-key", "", monitoring.New(discardLogger()), discardLogger())
}

func TestBuild_InclusionMode_OnlyListsActiveNamedMembers(t *testing.T) {
	reg := registry.NewInMemory()
	reg.PutConnection(&model.Connection{ID: "acme/a", Tenant: "acme", Title: "A", URL: "https://a.example", Status: model.StatusActive})
	reg.PutConnection(&model.Connection{ID: "acme/b", Tenant: "acme", Title: "B", URL: "https://b.example", Status: model.StatusInactive})

	entity := &model.VirtualMCPEntity{
		ID: "acme/vm1", Tenant: "acme", ToolSelectionMode: model.SelectionInclusion,
		Members: []model.Member{{ConnectionID: "acme/a"}, {ConnectionID: "acme/b"}, {ConnectionID: "acme/missing"}},
	}
	tc := &model.TenantContext{Tenant: "acme"}

	vm, err := vmcp.Build(context.Background(), entity, tc, reg, newBuilder(tc), discardLogger())
	require.NoError(t, err)
	defer vm.Release()
}

func TestBuild_ExclusionMode_SkipsSelfReferenceAndFullyExcluded(t *testing.T) {
	reg := registry.NewInMemory()
	reg.PutConnection(&model.Connection{ID: "acme/a", Tenant: "acme", Title: "A", URL: "https://a.example", Status: model.StatusActive})
	reg.PutConnection(&model.Connection{ID: "acme/b", Tenant: "acme", Title: "B", URL: "https://b.example", Status: model.StatusActive})
	reg.PutConnection(&model.Connection{ID: "acme/vm1", Tenant: "acme", Title: "Self", URL: "https://self.example", Status: model.StatusActive})

	entity := &model.VirtualMCPEntity{
		ID: "acme/vm1", Tenant: "acme", ToolSelectionMode: model.SelectionExclusion,
		Members: []model.Member{{ConnectionID: "acme/b"}}, // fully excluded, no selections
	}
	tc := &model.TenantContext{Tenant: "acme"}

	vm, err := vmcp.Build(context.Background(), entity, tc, reg, newBuilder(tc), discardLogger())
	require.NoError(t, err)
	defer vm.Release()
}

func TestBuild_UnknownSelectionMode_HardError(t *testing.T) {
	reg := registry.NewInMemory()
	entity := &model.VirtualMCPEntity{ID: "acme/vm1", Tenant: "acme", ToolSelectionMode: model.ToolSelectionMode("bogus")}
	tc := &model.TenantContext{Tenant: "acme"}

	_, err := vmcp.Build(context.Background(), entity, tc, reg, newBuilder(tc), discardLogger())
	require.Error(t, err)
}

func TestVirtualMCP_ListTools_ForcesLazyListingOnFirstCall(t *testing.T) {
	reg := registry.NewInMemory()
	entity := &model.VirtualMCPEntity{ID: "acme/vm1", Tenant: "acme", ToolSelectionMode: model.SelectionExclusion}
	tc := &model.TenantContext{Tenant: "acme"}

	vm, err := vmcp.Build(context.Background(), entity, tc, reg, newBuilder(tc), discardLogger())
	require.NoError(t, err)
	defer vm.Release()

	// No connections registered; listing must still resolve (possibly empty)
	// rather than panicking on a nil aggregator (invariant 5).
	tools := vm.ListTools(context.Background())
	require.Empty(t, tools)
	resources := vm.ListResources(context.Background())
	require.Empty(t, resources)
	prompts := vm.ListPrompts(context.Background())
	require.Empty(t, prompts)
}

func TestVirtualMCP_MeshTools_PrefixesOnlyCollidingNames(t *testing.T) {
	reg := registry.NewInMemory()
	reg.PutConnection(&model.Connection{
		ID: "acme/a", Tenant: "acme", Title: "A", URL: "https://a.example", Status: model.StatusActive,
		CachedTools: []model.ToolIndexEntry{{Name: "search"}, {Name: "only-a"}},
	})
	reg.PutConnection(&model.Connection{
		ID: "acme/b", Tenant: "acme", Title: "B", URL: "https://b.example", Status: model.StatusActive,
		CachedTools: []model.ToolIndexEntry{{Name: "search"}},
	})

	entity := &model.VirtualMCPEntity{ID: "acme/vm1-mesh", Tenant: "acme", ToolSelectionMode: model.SelectionExclusion}
	tc := &model.TenantContext{Tenant: "acme"}

	vm, err := vmcp.Build(context.Background(), entity, tc, reg, newBuilder(tc), discardLogger())
	require.NoError(t, err)
	defer vm.Release()

	names := make([]string, 0)
	for _, tool := range vm.MeshTools(context.Background()) {
		names = append(names, tool.Name)
	}
	require.ElementsMatch(t, []string{"only-a", "acme/a::search", "acme/b::search"}, names)
}

func TestVirtualMCP_Release_IsIdempotentThroughCollection(t *testing.T) {
	reg := registry.NewInMemory()
	reg.PutConnection(&model.Connection{ID: "acme/a", Tenant: "acme", Title: "A", URL: "https://a.example", Status: model.StatusActive})
	entity := &model.VirtualMCPEntity{ID: "acme/vm1", Tenant: "acme", ToolSelectionMode: model.SelectionExclusion}
	tc := &model.TenantContext{Tenant: "acme"}

	vm, err := vmcp.Build(context.Background(), entity, tc, reg, newBuilder(tc), discardLogger())
	require.NoError(t, err)
	vm.Release()
	vm.Release() // must not panic
}
