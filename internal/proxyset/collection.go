// Package proxyset implements ProxyCollection (C5): a lazily-built,
// at-most-once mapping from connection id to proxy entry, with allSettled
// fan-out semantics on construction and guaranteed exactly-once release.
package proxyset

import (
	"context"
	"log/slog"
	"sync"

	"github.com/meshgate/mcp-gateway/internal/middleware"
	"github.com/meshgate/mcp-gateway/internal/model"
	"github.com/meshgate/mcp-gateway/internal/monitoring"
	"github.com/meshgate/mcp-gateway/internal/proxy"
)

// Entry is one connection's proxy plus its selection lists and pipeline,
// carried through the member list per spec §4.4.
type Entry struct {
	Proxy            proxy.ConnectionProxy
	Connection       *model.Connection
	Pipeline         *middleware.Pipeline
	SelectedTools     []string
	SelectedResources []string
	SelectedPrompts   []string
}

// Collection is connection_id -> Entry, built from an ordered member list.
// Invariant 1 (spec §3): a proxy is owned exclusively by the Collection that
// created it; no other component releases it.
type Collection struct {
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*Entry
	order   []string
}

// Builder constructs one proxy per member in Build; each proxy opens its
// upstream session lazily, on first use.
type Builder struct {
	logger     *slog.Logger
	tc         *model.TenantContext
	signingKey string
	meshURL    string
	monitoring *monitoring.Middleware
}

// NewBuilder constructs a Builder bound to one request's TenantContext.
func NewBuilder(tc *model.TenantContext, signingKey, meshURL string, mon *monitoring.Middleware, logger *slog.Logger) *Builder {
	return &Builder{logger: logger, tc: tc, signingKey: signingKey, meshURL: meshURL, monitoring: mon}
}

// Member describes one connection to include, carrying its selection lists.
type Member struct {
	Connection        *model.Connection
	SelectedTools     []string
	SelectedResources []string
	SelectedPrompts   []string
}

// Build fans construction out concurrently over members. proxy.New does not
// fail, so every member yields an entry and no member affects its siblings.
// Entries are collected into a positional buffer and assembled in
// member order, preserving collection-iteration order for downstream
// first-wins dedup (spec §9).
func (b *Builder) Build(ctx context.Context, members []Member) *Collection {
	results := make([]*Entry, len(members))
	var wg sync.WaitGroup
	for i, mem := range members {
		wg.Add(1)
		go func(i int, mem Member) {
			defer wg.Done()
			p := proxy.New(mem.Connection, b.tc, b.signingKey, b.meshURL, b.logger)
			pipeline := middleware.New(mem.Connection.ID, mem.Connection.Title, b.monitoring)
			results[i] = &Entry{
				Proxy:             p,
				Connection:        mem.Connection,
				Pipeline:          pipeline,
				SelectedTools:     mem.SelectedTools,
				SelectedResources: mem.SelectedResources,
				SelectedPrompts:   mem.SelectedPrompts,
			}
		}(i, mem)
	}
	wg.Wait()

	c := &Collection{logger: b.logger, entries: make(map[string]*Entry, len(members)), order: make([]string, 0, len(members))}
	for _, e := range results {
		if e == nil {
			continue
		}
		c.entries[e.Connection.ID] = e
		c.order = append(c.order, e.Connection.ID)
	}
	return c
}

// NewCollectionFromEntries builds a Collection directly from a pre-built
// entry list, preserving order. Used by tests that need a Collection over
// fake proxies without going through Builder.Build's network-backed
// construction; production code always goes through Builder.Build.
func NewCollectionFromEntries(logger *slog.Logger, entries []*Entry) *Collection {
	c := &Collection{logger: logger, entries: make(map[string]*Entry, len(entries)), order: make([]string, 0, len(entries))}
	for _, e := range entries {
		if e == nil {
			continue
		}
		c.entries[e.Connection.ID] = e
		c.order = append(c.order, e.Connection.ID)
	}
	return c
}

// Entries returns the collection's entries in iteration order.
func (c *Collection) Entries() []*Entry {
	out := make([]*Entry, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entries[id])
	}
	return out
}

// Get looks up an entry by connection id.
func (c *Collection) Get(connectionID string) (*Entry, bool) {
	e, ok := c.entries[connectionID]
	return e, ok
}

// Release calls Release on every proxy exactly once, in any order, tolerating
// individual close errors (spec §4.4).
func (c *Collection) Release() {
	var wg sync.WaitGroup
	for _, e := range c.entries {
		wg.Add(1)
		go func(e *Entry) {
			defer wg.Done()
			if err := e.Proxy.Release(); err != nil {
				c.logger.Error("proxy release failed", "connection_id", e.Connection.ID, "error", err)
			}
		}(e)
	}
	wg.Wait()
}
