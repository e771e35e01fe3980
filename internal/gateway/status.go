// Status/validation endpoint, ported from the teacher's
// internal/broker/status.go, adapted to report per-tenant across all
// registered connections rather than a single flat list (spec §12.2, this
// gateway is multi-tenant).
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/meshgate/mcp-gateway/internal/model"
	"github.com/meshgate/mcp-gateway/internal/proxy"
	"github.com/meshgate/mcp-gateway/internal/registry"
)

// ConnectionValidation is the validation outcome for one connection.
type ConnectionValidation struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	IsReachable    bool      `json:"isReachable"`
	Error          string    `json:"error,omitempty"`
	ToolCount      int       `json:"toolCount"`
	LastValidated  time.Time `json:"lastValidated"`
}

// TenantStatusResponse is the per-tenant status document.
type TenantStatusResponse struct {
	Tenant         string                  `json:"tenant"`
	Connections    []ConnectionValidation  `json:"connections"`
	TotalCount     int                     `json:"totalCount"`
	HealthyCount   int                     `json:"healthyCount"`
	UnhealthyCount int                     `json:"unhealthyCount"`
	Timestamp      time.Time               `json:"timestamp"`
}

// StatusHandler serves GET /status/{org_slug}[/{connection_id}].
type StatusHandler struct {
	registry registry.Registry
	logger   *slog.Logger
}

// NewStatusHandler builds a status handler.
func NewStatusHandler(reg registry.Registry, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{registry: reg, logger: logger}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/status/")
	parts := strings.SplitN(path, "/", 2)
	slug := parts[0]
	if slug == "" {
		h.writeError(w, http.StatusBadRequest, "missing org slug")
		return
	}

	tenant, ok := h.registry.ResolveTenantBySlug(r.Context(), slug)
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown organization")
		return
	}

	response := h.validateTenant(r.Context(), tenant)

	if len(parts) == 2 && parts[1] != "" {
		for _, c := range response.Connections {
			if c.ID == parts[1] {
				h.writeJSON(w, http.StatusOK, c)
				return
			}
		}
		h.writeError(w, http.StatusNotFound, "connection not found in tenant status")
		return
	}

	h.writeJSON(w, http.StatusOK, response)
}

func (h *StatusHandler) validateTenant(ctx context.Context, tenant string) TenantStatusResponse {
	conns := h.registry.ActiveConnectionsByTenant(ctx, tenant)
	results := make([]ConnectionValidation, 0, len(conns))
	healthy := 0

	for _, c := range conns {
		v := h.validateConnection(ctx, c)
		if v.IsReachable {
			healthy++
		}
		results = append(results, v)
	}

	return TenantStatusResponse{
		Tenant:         tenant,
		Connections:    results,
		TotalCount:     len(results),
		HealthyCount:   healthy,
		UnhealthyCount: len(results) - healthy,
		Timestamp:      time.Now().UTC(),
	}
}

// validateConnection opens a short-lived validation session (no delegation
// token, no tenant context beyond the bare request) purely to check
// reachability and list tools; it is released immediately and never joins the
// per-request ProxyCollection.
func (h *StatusHandler) validateConnection(ctx context.Context, conn *model.Connection) ConnectionValidation {
	result := ConnectionValidation{ID: conn.ID, Title: conn.Title, LastValidated: time.Now().UTC()}

	tc := &model.TenantContext{Tenant: conn.Tenant}
	p := proxy.New(conn, tc, "", "", h.logger)
	defer func() { _ = p.Release() }()

	tools, err := p.ListTools(ctx)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.IsReachable = true
	result.ToolCount = len(tools)
	return result
}

func (h *StatusHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode status response", "error", err)
	}
}

func (h *StatusHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
