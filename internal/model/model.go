// Package model holds the data model the gateway core operates on: connections,
// virtual-MCP entities, and the per-request tenant context. These types are
// produced by the external storage collaborator (see pkg/controller) and
// consumed read-only by the core for the lifetime of one request.
package model

import "context"

// ConnectionStatus is the activation state of a Connection or VirtualMCP entity.
type ConnectionStatus string

const (
	StatusActive   ConnectionStatus = "active"
	StatusInactive ConnectionStatus = "inactive"
)

// ConnectionType identifies the wire transport a Connection speaks. HTTP
// streamable is the only transport implemented; the type exists so a future
// StdIO transport can be added without touching callers (per design note in
// SPEC_FULL.md, no runtime type reflection across transports).
type ConnectionType string

const (
	ConnectionTypeHTTPStreamable ConnectionType = "http-streamable"
)

// ToolIndexEntry is a cached tool descriptor attached to a Connection record.
type ToolIndexEntry struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// Connection is a registered upstream MCP server belonging to a tenant.
// Immutable from the core's perspective within a single request; created and
// updated externally (see pkg/controller).
type Connection struct {
	ID       string
	Tenant   string
	Title    string
	Type     ConnectionType
	URL      string
	Status   ConnectionStatus

	// StaticBearerSecretRef names a credential under pkg/credentials.MountPath
	// holding a static bearer token for this connection. Empty if unused.
	StaticBearerSecretRef string

	// ExtraHeaders are merged onto every outbound request last (they win over
	// headers the proxy would otherwise set).
	ExtraHeaders map[string]string

	// ConfigurationState is an opaque map of configuration keys to values,
	// consulted together with ConfigurationScopes to derive the permission map
	// embedded in the delegation token (see internal/credential).
	ConfigurationState map[string]interface{}

	// ConfigurationScopes holds "KEY::SCOPE" entries naming which scopes apply
	// to which ConfigurationState key.
	ConfigurationScopes []string

	// CachedTools, if non-nil, short-circuits proxy.ListTools for this
	// connection instead of a round-trip to the upstream.
	CachedTools []ToolIndexEntry
}

// ToolSelectionMode controls how VirtualMCPEntity.Members narrows the tenant's
// connections.
type ToolSelectionMode string

const (
	SelectionInclusion ToolSelectionMode = "inclusion"
	SelectionExclusion ToolSelectionMode = "exclusion"
)

// DefaultAgentPrefix marks the reserved "default tenant agent" virtual-MCP id:
// exclusion mode over all active connections with no exclusions.
const DefaultAgentPrefix = "decopilot-"

// Member is one entry of a VirtualMCPEntity's composition list. A nil or
// empty selection list means "all"; the two are not distinguished.
type Member struct {
	ConnectionID     string
	SelectedTools     []string
	SelectedResources []string
	SelectedPrompts   []string
}

// AllEmpty reports whether every selection list on this member is nil or
// zero-length, used by exclusion-mode assembly to decide whether to drop the
// connection entirely.
func (m Member) AllEmpty() bool {
	return len(m.SelectedTools) == 0 && len(m.SelectedResources) == 0 && len(m.SelectedPrompts) == 0
}

// VirtualMCPEntity is a tenant-defined composition of connections exposing one
// aggregated MCP surface.
type VirtualMCPEntity struct {
	ID                    string
	Tenant                string
	Title                 string
	SystemInstructions    string
	Status                ConnectionStatus
	ToolSelectionMode     ToolSelectionMode
	ToolSelectionStrategy string // "passthrough", "smart", ...
	Members               []Member
}

// IsDefaultAgent reports whether this entity is the reserved default agent.
func (e VirtualMCPEntity) IsDefaultAgent() bool {
	return len(e.ID) >= len(DefaultAgentPrefix) && e.ID[:len(DefaultAgentPrefix)] == DefaultAgentPrefix
}

// CallerIdentityKind distinguishes the two supported caller shapes.
type CallerIdentityKind string

const (
	CallerUserSession CallerIdentityKind = "user-session"
	CallerAPIKey      CallerIdentityKind = "api-key"
)

// CallerIdentity is the authenticated caller attached to a request context.
// Absent entirely for unauthenticated requests.
type CallerIdentity struct {
	Kind   CallerIdentityKind
	UserID string
	Role   string // "user", "admin", "owner", ...
}

// IsAdminOrOwner reports the role-bypass condition used by AccessControl.
func (c *CallerIdentity) IsAdminOrOwner() bool {
	return c != nil && (c.Role == "admin" || c.Role == "owner")
}

// PermissionEvaluator is the injected authorization collaborator. It answers,
// for one connection, whether the caller holds permission on each named
// resource (tool name, typically). Implementations are process-wide and
// thread-safe; the core never mutates them.
type PermissionEvaluator interface {
	HasPermission(ctx context.Context, caller *CallerIdentity, resources map[string][]string) (map[string]bool, error)
}

// AuditSink receives structured monitoring events (see internal/monitoring).
// Process-wide, thread-safe; failures must never propagate to the caller.
type AuditSink interface {
	Record(ctx context.Context, event map[string]interface{}) error
}

// TenantContext carries the per-request identity, addressing, and capability
// handles threaded through every component for the lifetime of one client MCP
// session.
type TenantContext struct {
	Tenant             string
	Caller             *CallerIdentity
	CallerConnectionID string // propagated onward as x-caller-id
	BaseURL            string
	RequestID          string

	Permissions PermissionEvaluator
	Tracer      Tracer
	Meter       Meter
	Audit       AuditSink
}

// Tracer is the minimal span-recording capability the core consumes. A
// process-wide, thread-safe collaborator; see internal/telemetry for
// NoopTracer, the default cmd/mcp-gateway injects, and SimpleTracer.
type Tracer interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, Span)
}

// Span is closed exactly once by the component that started it.
type Span interface {
	End(err error)
}

// Meter records duration histograms and outcome counters for upstream calls.
type Meter interface {
	RecordDuration(name string, durationMS float64, attrs map[string]string)
	IncrCounter(name string, attrs map[string]string)
}
