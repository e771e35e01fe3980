// Package registry defines the storage collaborator interface the core
// consumes for Connection and VirtualMCPEntity lookups (spec.md §1: "out of
// scope: persistent storage... specified only by the interface the core
// consumes"). The concrete backing (Kubernetes CRDs reconciled by
// pkg/controller) lives outside this package; Registry itself is the minimal
// read surface C3/C5/C8/C9 need, and never leaks CRD types.
package registry

import (
	"context"
	"sync"

	"github.com/meshgate/mcp-gateway/internal/model"
)

// Registry is the read-only (from the core's point of view) lookup surface
// over Connection and VirtualMCPEntity records.
type Registry interface {
	// GetConnection returns the connection by id, regardless of tenant; the
	// caller is responsible for the cross-tenant check (spec §4.1) so that a
	// WrongTenant error can be distinguished internally from NotFound while
	// still mapping both to the same 404 at the handler boundary.
	GetConnection(ctx context.Context, id string) (*model.Connection, bool)

	// ActiveConnectionsByTenant returns every active connection owned by the
	// given tenant, in a stable (registration) order.
	ActiveConnectionsByTenant(ctx context.Context, tenant string) []*model.Connection

	// GetVirtualMCP returns the virtual-MCP entity by id.
	GetVirtualMCP(ctx context.Context, id string) (*model.VirtualMCPEntity, bool)

	// ResolveTenantBySlug resolves x-org-slug to a tenant id.
	ResolveTenantBySlug(ctx context.Context, slug string) (string, bool)
}

// InMemory is a Registry backed by plain maps, guarded by a RWMutex. It is
// the registration target pkg/controller's reconcilers write into; the core
// only ever reads through the Registry interface above.
type InMemory struct {
	mu          sync.RWMutex
	connections map[string]*model.Connection
	virtualMCPs map[string]*model.VirtualMCPEntity
	slugToTenant map[string]string
	// tenantOrder preserves registration order per tenant so listings are
	// deterministic (collection-iteration order matters for first-wins
	// dedup, spec §5).
	tenantOrder map[string][]string
}

// NewInMemory builds an empty in-process registry.
func NewInMemory() *InMemory {
	return &InMemory{
		connections:  make(map[string]*model.Connection),
		virtualMCPs:  make(map[string]*model.VirtualMCPEntity),
		slugToTenant: make(map[string]string),
		tenantOrder:  make(map[string][]string),
	}
}

// PutConnection upserts a connection record. Called by the controller on
// reconcile; never by core components.
func (r *InMemory) PutConnection(c *model.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.connections[c.ID]; !exists {
		r.tenantOrder[c.Tenant] = append(r.tenantOrder[c.Tenant], c.ID)
	}
	r.connections[c.ID] = c
}

// DeleteConnection removes a connection record.
func (r *InMemory) DeleteConnection(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.connections[id]
	if !ok {
		return
	}
	delete(r.connections, id)
	order := r.tenantOrder[c.Tenant]
	for i, cid := range order {
		if cid == id {
			r.tenantOrder[c.Tenant] = append(order[:i], order[i+1:]...)
			break
		}
	}
}

// PutVirtualMCP upserts a virtual-MCP entity record.
func (r *InMemory) PutVirtualMCP(e *model.VirtualMCPEntity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.virtualMCPs[e.ID] = e
}

// DeleteVirtualMCP removes a virtual-MCP entity record.
func (r *InMemory) DeleteVirtualMCP(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.virtualMCPs, id)
}

// PutTenantSlug registers a tenant slug alias (x-org-slug resolution).
func (r *InMemory) PutTenantSlug(slug, tenant string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slugToTenant[slug] = tenant
}

func (r *InMemory) GetConnection(_ context.Context, id string) (*model.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connections[id]
	return c, ok
}

func (r *InMemory) ActiveConnectionsByTenant(_ context.Context, tenant string) []*model.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order := r.tenantOrder[tenant]
	out := make([]*model.Connection, 0, len(order))
	for _, id := range order {
		c := r.connections[id]
		if c != nil && c.Status == model.StatusActive {
			out = append(out, c)
		}
	}
	return out
}

func (r *InMemory) GetVirtualMCP(_ context.Context, id string) (*model.VirtualMCPEntity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.virtualMCPs[id]
	return e, ok
}

func (r *InMemory) ResolveTenantBySlug(_ context.Context, slug string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.slugToTenant[slug]
	return t, ok
}
