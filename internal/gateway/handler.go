// Package gateway implements the front-door handler (C9): per-incoming-
// client-MCP-session tenant/virtual-MCP resolution, VirtualMCP construction
// as a scoped resource, MCP-server transport wiring, and guaranteed release
// on every exit path (spec §4.9).
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/meshgate/mcp-gateway/internal/authz"
	"github.com/meshgate/mcp-gateway/internal/gwerrors"
	"github.com/meshgate/mcp-gateway/internal/model"
	"github.com/meshgate/mcp-gateway/internal/monitoring"
	"github.com/meshgate/mcp-gateway/internal/proxyset"
	"github.com/meshgate/mcp-gateway/internal/registry"
	"github.com/meshgate/mcp-gateway/internal/vmcp"
)

const tagVirtualMCP = "virtual-mcp"

// Dependencies are the process-wide, thread-safe collaborators the handler
// threads into every request's TenantContext (spec §5 "Shared state policy:
// process-wide... treated as thread-safe; no mutation from the core").
type Dependencies struct {
	Registry            registry.Registry
	Permissions         model.PermissionEvaluator
	Tracer              model.Tracer
	Meter               model.Meter
	Audit               model.AuditSink
	Logger              *slog.Logger
	DelegationSigningKey string
	MeshURL             string

	// SessionManager mints/validates the mcp-go session id for every served
	// MCP server (distinct from the delegation token internal/credential
	// mints per upstream connection); nil is valid and falls back to mcp-go's
	// own default.
	SessionManager mcpserver.SessionIdManager
}

// Handler serves the three MCP route families (spec §6): one-connection
// proxy, VirtualMCP/gateway, and mesh.
type Handler struct {
	deps       Dependencies
	monitoring *monitoring.Middleware
}

// New builds a front-door handler.
func New(deps Dependencies) *Handler {
	return &Handler{deps: deps, monitoring: monitoring.New(deps.Logger)}
}

// sessionOption returns the WithSessionIdManager option if one was injected,
// or nil options otherwise so callers can append unconditionally.
func (h *Handler) sessionOption() []mcpserver.ServerOption {
	if h.deps.SessionManager == nil {
		return nil
	}
	return []mcpserver.ServerOption{mcpserver.WithSessionIdManager(h.deps.SessionManager)}
}

// ServeVirtualMCP implements POST /mcp/virtual-mcp/:virtual_mcp_id? and the
// backward-compatible /mcp/gateway/:virtual_mcp_id? alias (spec §6).
func (h *Handler) ServeVirtualMCP(w http.ResponseWriter, r *http.Request, virtualMCPID string) {
	ctx := r.Context()

	tenant, err := h.resolveTenant(ctx, r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if virtualMCPID == "" {
		virtualMCPID = model.DefaultAgentPrefix + tenant
	}

	entity, ok := h.deps.Registry.GetVirtualMCP(ctx, virtualMCPID)
	if !ok {
		h.writeError(w, gwerrors.ErrVirtualMCPNotFound)
		return
	}
	if entity.Tenant != tenant {
		// Cross-tenant: surfaced identically to not-found, no tenant-specific
		// text (spec invariant 7, scenario S3).
		h.writeError(w, gwerrors.ErrVirtualMCPNotFound)
		return
	}
	if entity.Status != model.StatusActive {
		h.writeError(w, gwerrors.ErrVirtualMCPInactive)
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode != "" {
		entity = withStrategyOverride(entity, mode)
	}

	tc := h.buildTenantContext(tenant, r)
	builder := proxyset.NewBuilder(tc, h.deps.DelegationSigningKey, h.deps.MeshURL, h.monitoring, h.deps.Logger)

	vm, err := vmcp.Build(ctx, entity, tc, h.deps.Registry, builder, h.deps.Logger)
	if err != nil {
		h.deps.Logger.Error("failed to build virtual-mcp", "tag", tagVirtualMCP, "virtual_mcp_id", entity.ID, "error", err)
		h.writeInternalError(w, err)
		return
	}
	// Scoped acquisition: release on every exit path, including panic
	// (spec §5, §4.9 step 8). recover() only at this outermost boundary.
	defer func() {
		if rec := recover(); rec != nil {
			h.deps.Logger.Error("panic in virtual-mcp handler", "tag", tagVirtualMCP, "virtual_mcp_id", entity.ID, "panic", rec)
			vm.Release()
			h.writeInternalError(w, fmt.Errorf("panic: %v", rec))
			return
		}
		vm.Release()
	}()

	mcpServer := h.newMCPServerFor(ctx, vm, entity)
	transport := mcpserver.NewStreamableHTTPServer(mcpServer)
	transport.ServeHTTP(w, r)
}

// ServeMesh implements POST /mcp/mesh/:org_slug: all active connections of a
// tenant, with conflict-prefixed names ("${connection_id}::${tool_name}")
// only on name collision (spec §6, §9 open question — this spec treats mesh
// and virtual-mcp as two distinct named modes; default left to the operator
// via routing, not decided here).
func (h *Handler) ServeMesh(w http.ResponseWriter, r *http.Request, orgSlug string) {
	ctx := r.Context()
	tenant, ok := h.deps.Registry.ResolveTenantBySlug(ctx, orgSlug)
	if !ok {
		h.writeError(w, gwerrors.ErrConnectionNotFound)
		return
	}

	meshEntity := &model.VirtualMCPEntity{
		ID:                    model.DefaultAgentPrefix + tenant + "-mesh",
		Tenant:                tenant,
		Status:                model.StatusActive,
		ToolSelectionMode:     model.SelectionExclusion,
		ToolSelectionStrategy: "passthrough",
	}

	tc := h.buildTenantContext(tenant, r)
	builder := proxyset.NewBuilder(tc, h.deps.DelegationSigningKey, h.deps.MeshURL, h.monitoring, h.deps.Logger)
	vm, err := vmcp.Build(ctx, meshEntity, tc, h.deps.Registry, builder, h.deps.Logger)
	if err != nil {
		h.writeInternalError(w, err)
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			h.deps.Logger.Error("panic in mesh handler", "tag", "mesh", "panic", rec)
			vm.Release()
			h.writeInternalError(w, fmt.Errorf("panic: %v", rec))
			return
		}
		vm.Release()
	}()

	mcpServer := h.newMeshMCPServer(ctx, vm)
	transport := mcpserver.NewStreamableHTTPServer(mcpServer)
	transport.ServeHTTP(w, r)
}

// ServeConnection implements POST /mcp/:connection_id: proxy to one upstream
// with auth + monitoring applied per-tool (spec §6).
func (h *Handler) ServeConnection(w http.ResponseWriter, r *http.Request, connectionID string) {
	ctx := r.Context()
	tenant, err := h.resolveTenant(ctx, r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	conn, ok := h.deps.Registry.GetConnection(ctx, connectionID)
	if !ok {
		h.writeError(w, gwerrors.ErrConnectionNotFound)
		return
	}
	if conn.Tenant != tenant {
		h.writeError(w, gwerrors.ErrWrongTenant)
		return
	}
	if conn.Status != model.StatusActive {
		h.writeError(w, gwerrors.ErrConnectionInactive)
		return
	}

	tc := h.buildTenantContext(tenant, r)
	builder := proxyset.NewBuilder(tc, h.deps.DelegationSigningKey, h.deps.MeshURL, h.monitoring, h.deps.Logger)
	coll := builder.Build(ctx, []proxyset.Member{{Connection: conn}})
	defer coll.Release()

	entry, _ := coll.Get(conn.ID)
	opts := append([]mcpserver.ServerOption{
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithPromptCapabilities(true),
	}, h.sessionOption()...)
	mcpServer := mcpserver.NewMCPServer("mcp-gateway-proxy", "0.1.0", opts...)
	registerProxyPassthrough(ctx, mcpServer, entry, tc, h.deps.Logger)

	transport := mcpserver.NewStreamableHTTPServer(mcpServer)
	transport.ServeHTTP(w, r)
}

func (h *Handler) newMCPServerFor(ctx context.Context, vm *vmcp.VirtualMCP, entity *model.VirtualMCPEntity) *mcpserver.MCPServer {
	opts := []mcpserver.ServerOption{
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithPromptCapabilities(true),
	}
	if entity.SystemInstructions != "" {
		opts = append(opts, mcpserver.WithInstructions(entity.SystemInstructions))
	}
	opts = append(opts, h.sessionOption()...)
	mcpServer := mcpserver.NewMCPServer(entity.Title, "0.1.0", opts...)

	tools := vm.ListTools(ctx)
	serverTools := make([]mcpserver.ServerTool, 0, len(tools))
	for _, t := range tools {
		t := t
		serverTools = append(serverTools, mcpserver.ServerTool{
			Tool: t,
			Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				args, _ := req.Params.Arguments.(map[string]interface{})
				return vm.CallTool(ctx, req.Params.Name, args)
			},
		})
	}
	mcpServer.AddTools(serverTools...)

	resources := vm.ListResources(ctx)
	serverResources := make([]mcpserver.ServerResource, 0, len(resources))
	for _, res := range resources {
		serverResources = append(serverResources, mcpserver.ServerResource{
			Resource: res,
			Handler: func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
				result, err := vm.ReadResource(ctx, req.Params.URI)
				if err != nil {
					return nil, err
				}
				return result.Contents, nil
			},
		})
	}
	mcpServer.AddResources(serverResources...)

	prompts := vm.ListPrompts(ctx)
	serverPrompts := make([]mcpserver.ServerPrompt, 0, len(prompts))
	for _, p := range prompts {
		serverPrompts = append(serverPrompts, mcpserver.ServerPrompt{
			Prompt: p,
			Handler: func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
				return vm.GetPrompt(ctx, req.Params.Name, req.Params.Arguments)
			},
		})
	}
	mcpServer.AddPrompts(serverPrompts...)

	return mcpServer
}

func (h *Handler) newMeshMCPServer(ctx context.Context, vm *vmcp.VirtualMCP) *mcpserver.MCPServer {
	opts := append([]mcpserver.ServerOption{mcpserver.WithToolCapabilities(true)}, h.sessionOption()...)
	mcpServer := mcpserver.NewMCPServer("mcp-gateway-mesh", "0.1.0", opts...)
	tools := vm.MeshTools(ctx)
	serverTools := make([]mcpserver.ServerTool, 0, len(tools))
	for _, t := range tools {
		t := t
		serverTools = append(serverTools, mcpserver.ServerTool{
			Tool: t,
			Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				args, _ := req.Params.Arguments.(map[string]interface{})
				return vm.CallMeshTool(ctx, req.Params.Name, args)
			},
		})
	}
	mcpServer.AddTools(serverTools...)
	return mcpServer
}

func registerProxyPassthrough(ctx context.Context, mcpServer *mcpserver.MCPServer, entry *proxyset.Entry, tc *model.TenantContext, logger *slog.Logger) {
	if entry == nil {
		return
	}
	tools, err := entry.Proxy.ListTools(ctx)
	if err != nil {
		logger.Error("failed to list tools for single-connection proxy", "tag", "proxy", "connection_id", entry.Connection.ID, "error", err)
		return
	}
	serverTools := make([]mcpserver.ServerTool, 0, len(tools))
	for _, t := range tools {
		t := t
		serverTools = append(serverTools, mcpserver.ServerTool{
			Tool: t,
			Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				ac := authz.New(tc, entry.Connection.ID, t.Name)
				return entry.Pipeline.UnaryCall(ctx, tc, ac, t.Name, argsOf(req), func(ctx context.Context) (*mcp.CallToolResult, error) {
					return entry.Proxy.CallTool(ctx, t.Name, argsOf(req))
				})
			},
		})
	}
	mcpServer.AddTools(serverTools...)
}

func argsOf(req mcp.CallToolRequest) map[string]interface{} {
	args, _ := req.Params.Arguments.(map[string]interface{})
	return args
}

func (h *Handler) resolveTenant(ctx context.Context, r *http.Request) (string, error) {
	if id := r.Header.Get("x-org-id"); id != "" {
		return id, nil
	}
	if slug := r.Header.Get("x-org-slug"); slug != "" {
		tenant, ok := h.deps.Registry.ResolveTenantBySlug(ctx, slug)
		if !ok {
			return "", gwerrors.ErrConnectionNotFound
		}
		return tenant, nil
	}
	return "", fmt.Errorf("%w: no tenant header present", gwerrors.ErrConnectionNotFound)
}

func (h *Handler) buildTenantContext(tenant string, r *http.Request) *model.TenantContext {
	tc := &model.TenantContext{
		Tenant:             tenant,
		CallerConnectionID: r.Header.Get("x-caller-id"),
		BaseURL:            h.deps.MeshURL,
		RequestID:          r.Header.Get("x-request-id"),
		Permissions:        h.deps.Permissions,
		Tracer:             h.deps.Tracer,
		Meter:              h.deps.Meter,
		Audit:              h.deps.Audit,
	}
	if role := r.Header.Get("x-caller-role"); role != "" {
		tc.Caller = &model.CallerIdentity{Role: role, UserID: r.Header.Get("x-caller-id")}
	}
	return tc
}

func withStrategyOverride(entity *model.VirtualMCPEntity, mode string) *model.VirtualMCPEntity {
	clone := *entity
	clone.ToolSelectionStrategy = mode
	return &clone
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "Internal error"
	switch {
	case errors.Is(err, gwerrors.ErrAborted):
		status, message = http.StatusBadRequest, "Request aborted"
	case gwerrors.IsNotFoundClass(err):
		status, message = http.StatusNotFound, "Not found"
	case gwerrors.IsInactiveClass(err):
		status, message = http.StatusServiceUnavailable, "Inactive"
	default:
		var unauthorized *gwerrors.Unauthorized
		var forbidden *gwerrors.Forbidden
		var authErr *gwerrors.UpstreamAuthError
		switch {
		case errors.As(err, &unauthorized):
			status, message = http.StatusUnauthorized, "Not authenticated"
		case errors.As(err, &forbidden):
			status, message = http.StatusForbidden, "Forbidden"
		case errors.As(err, &authErr):
			status, message = http.StatusUnauthorized, "Upstream authentication failed"
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(fmt.Sprintf(`{"error":%q}`, message)))
}

func (h *Handler) writeInternalError(w http.ResponseWriter, err error) {
	h.deps.Logger.Error("unhandled exception", "tag", tagVirtualMCP, "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(fmt.Sprintf(`{"error":"Internal error","message":%q}`, err.Error())))
}
