// Package vmcp implements VirtualMCP (C8): composes ProxyCollection,
// aggregators, and a ToolSelectionStrategy behind one MCP-server surface.
package vmcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meshgate/mcp-gateway/internal/aggregator"
	"github.com/meshgate/mcp-gateway/internal/model"
	"github.com/meshgate/mcp-gateway/internal/proxyset"
	"github.com/meshgate/mcp-gateway/internal/registry"
	"github.com/meshgate/mcp-gateway/internal/strategy"
)

// VirtualMCP is the composed surface: listTools / callTool / listResources /
// readResource / listResourceTemplates / listPrompts / getPrompt /
// callStreamableTool (spec §4.8). Proxy/aggregator/route-map/strategy/
// pipeline instances all live for exactly one client MCP session and are
// released together (spec §3 Lifecycles).
type VirtualMCP struct {
	entity *model.VirtualMCPEntity
	tc     *model.TenantContext
	logger *slog.Logger

	coll *proxyset.Collection

	mu       sync.Mutex
	listed   bool
	tools    *aggregator.ToolAggregator
	resources *aggregator.ResourceAggregator
	prompts   *aggregator.PromptAggregator
	templates *aggregator.ResourceTemplateAggregator

	meshListed bool
	meshTools  *aggregator.MeshToolAggregator
}

// Build assembles a VirtualMCP from an entity per spec §4.8's inclusion/
// exclusion rules, eagerly constructing the ProxyCollection (listing is
// forced lazily on first call per invariant 5, but the collection itself
// must exist before any listing can proceed).
func Build(ctx context.Context, entity *model.VirtualMCPEntity, tc *model.TenantContext, reg registry.Registry, builder *proxyset.Builder, logger *slog.Logger) (*VirtualMCP, error) {
	members, err := resolveMembers(ctx, entity, tc, reg)
	if err != nil {
		return nil, err
	}
	coll := builder.Build(ctx, members)
	return &VirtualMCP{entity: entity, tc: tc, logger: logger, coll: coll}, nil
}

func resolveMembers(ctx context.Context, entity *model.VirtualMCPEntity, tc *model.TenantContext, reg registry.Registry) ([]proxyset.Member, error) {
	switch entity.ToolSelectionMode {
	case model.SelectionInclusion:
		var members []proxyset.Member
		for _, m := range entity.Members {
			conn, ok := reg.GetConnection(ctx, m.ConnectionID)
			if !ok || conn.Status != model.StatusActive {
				continue
			}
			members = append(members, proxyset.Member{
				Connection:        conn,
				SelectedTools:     m.SelectedTools,
				SelectedResources: m.SelectedResources,
				SelectedPrompts:   m.SelectedPrompts,
			})
		}
		return members, nil

	case model.SelectionExclusion:
		byID := make(map[string]model.Member, len(entity.Members))
		for _, m := range entity.Members {
			byID[m.ConnectionID] = m
		}
		active := reg.ActiveConnectionsByTenant(ctx, entity.Tenant)
		var members []proxyset.Member
		for _, conn := range active {
			if isSelfReference(conn, entity) {
				continue // spec §9 open question, resolved: self-reference skipping required
			}
			m, named := byID[conn.ID]
			if named && m.AllEmpty() {
				continue // entirely excluded (spec invariant 4)
			}
			sel := proxyset.Member{Connection: conn}
			if named {
				sel.SelectedTools = m.SelectedTools
				sel.SelectedResources = m.SelectedResources
				sel.SelectedPrompts = m.SelectedPrompts
			}
			members = append(members, sel)
		}
		return members, nil

	default:
		return nil, fmt.Errorf("unknown tool_selection_mode %q", entity.ToolSelectionMode)
	}
}

// isSelfReference reports whether conn is itself a virtual reference back to
// entity, to avoid infinite expansion (spec §4.8, §9).
func isSelfReference(conn *model.Connection, entity *model.VirtualMCPEntity) bool {
	return conn.ID == entity.ID
}

// ensureListed forces listing on first use (spec invariant 5: "A call that
// arrives before any listing still resolves correctly").
func (v *VirtualMCP) ensureListed(ctx context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.listed {
		return
	}
	strat := strategy.Registry(v.entity.ToolSelectionStrategy)
	tools, err := aggregator.BuildToolAggregator(ctx, v.coll, v.entity.ToolSelectionMode, strat)
	if err != nil {
		v.logger.Error("failed to build tool aggregator", "virtual_mcp_id", v.entity.ID, "error", err)
	}
	v.tools = tools
	v.resources = aggregator.BuildResourceAggregator(ctx, v.coll, v.entity.ToolSelectionMode)
	v.prompts = aggregator.BuildPromptAggregator(ctx, v.coll, v.entity.ToolSelectionMode)
	v.templates = aggregator.BuildResourceTemplateAggregator(ctx, v.coll)
	v.listed = true
}

func (v *VirtualMCP) ListTools(ctx context.Context) []mcp.Tool {
	v.ensureListed(ctx)
	if v.tools == nil {
		return nil
	}
	return v.tools.Tools()
}

func (v *VirtualMCP) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	v.ensureListed(ctx)
	if v.tools == nil {
		return mcp.NewToolResultError(fmt.Sprintf("Tool not found: %s", name)), nil
	}
	return v.tools.Call(ctx, name, args)
}

func (v *VirtualMCP) CallStreamableTool(ctx context.Context, name string, args map[string]interface{}) (*http.Response, error) {
	v.ensureListed(ctx)
	if v.tools == nil {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return v.tools.CallStreamable(ctx, v.coll, name, args)
}

func (v *VirtualMCP) ListResources(ctx context.Context) []mcp.Resource {
	v.ensureListed(ctx)
	return v.resources.Resources()
}

func (v *VirtualMCP) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	v.ensureListed(ctx)
	res, err := v.resources.ReadResource(ctx, v.coll, uri)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (v *VirtualMCP) ListResourceTemplates(ctx context.Context) []mcp.ResourceTemplate {
	v.ensureListed(ctx)
	return v.templates.Templates()
}

func (v *VirtualMCP) ListPrompts(ctx context.Context) []mcp.Prompt {
	v.ensureListed(ctx)
	return v.prompts.Prompts()
}

func (v *VirtualMCP) GetPrompt(ctx context.Context, name string, args map[string]string) (*mcp.GetPromptResult, error) {
	v.ensureListed(ctx)
	return v.prompts.GetPrompt(ctx, v.coll, name, args)
}

// ensureMeshListed forces the mesh-specific, collision-prefixing tool
// aggregation on first use. Kept separate from ensureListed/v.tools: the
// mesh route's conflict-prefixing policy is deliberately distinct from the
// first-wins policy every other route uses (spec §6, §9).
func (v *VirtualMCP) ensureMeshListed(ctx context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.meshListed {
		return
	}
	v.meshTools = aggregator.BuildMeshToolAggregator(ctx, v.coll)
	v.meshListed = true
}

// MeshTools returns the mesh route's tool list, with any name collision
// across connections resolved by prefixing every colliding tool with its
// owning connection id rather than dropping the later entries.
func (v *VirtualMCP) MeshTools(ctx context.Context) []mcp.Tool {
	v.ensureMeshListed(ctx)
	return v.meshTools.Tools()
}

// CallMeshTool routes a mesh-exposed tool name (plain, or
// "${connection_id}::${tool_name}" for a name that collided) to its owning
// connection.
func (v *VirtualMCP) CallMeshTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	v.ensureMeshListed(ctx)
	return v.meshTools.Call(ctx, v.coll, name, args)
}

// Release tears down every proxy the VirtualMCP's collection constructed
// (spec §5 "Scoped acquisition"). MUST be called exactly once by the
// front-door handler on every exit path.
func (v *VirtualMCP) Release() {
	v.coll.Release()
}
