// OAuth protected-resource discovery, ported from the teacher's
// internal/broker/oauth_protected_resource_handler.go (spec §12.3). This
// gateway never issues or verifies tokens itself — that stays an external
// authorization server collaborator (spec §1) — it only serves the
// .well-known/oauth-protected-resource document so MCP clients doing OAuth
// discovery can find it.
package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
)

const (
	envOAuthResourceName         = "OAUTH_RESOURCE_NAME"
	envOAuthAuthorizationServers = "OAUTH_AUTHORIZATION_SERVERS"
	envOAuthBearerMethods        = "OAUTH_BEARER_METHODS_SUPPORTED"
	envOAuthScopesSupported      = "OAUTH_SCOPES_SUPPORTED"
)

// OAuthProtectedResource is the RFC 9728 protected-resource metadata document.
type OAuthProtectedResource struct {
	ResourceName           string   `json:"resource_name"`
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
	ScopesSupported        []string `json:"scopes_supported"`
}

// ProtectedResourceHandler serves /.well-known/oauth-protected-resource for a
// single virtual-MCP or mesh resource path.
type ProtectedResourceHandler struct {
	Logger   *slog.Logger
	Resource string // e.g. "/mcp/acme/support-bot"
}

// NewProtectedResourceHandler builds a handler for the given resource path.
func NewProtectedResourceHandler(logger *slog.Logger, resource string) *ProtectedResourceHandler {
	return &ProtectedResourceHandler{Logger: logger, Resource: resource}
}

func oauthConfigFromEnv(resource string) *OAuthProtectedResource {
	cfg := &OAuthProtectedResource{
		ResourceName:           "MCP Gateway",
		Resource:               resource,
		AuthorizationServers:   []string{},
		BearerMethodsSupported: []string{"header"},
		ScopesSupported:        []string{"basic"},
	}

	if name := os.Getenv(envOAuthResourceName); name != "" {
		cfg.ResourceName = name
	}
	if servers := os.Getenv(envOAuthAuthorizationServers); servers != "" {
		cfg.AuthorizationServers = splitTrim(servers)
	}
	if methods := os.Getenv(envOAuthBearerMethods); methods != "" {
		cfg.BearerMethodsSupported = splitTrim(methods)
	}
	if scopes := os.Getenv(envOAuthScopesSupported); scopes != "" {
		cfg.ScopesSupported = splitTrim(scopes)
	}

	return cfg
}

func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

// ServeHTTP handles the discovery request, including CORS preflight.
func (h *ProtectedResourceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin, X-Requested-With")
	w.Header().Set("Access-Control-Max-Age", "3600")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	cfg := oauthConfigFromEnv(h.Resource)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	h.Logger.Debug("oauth protected resource", "resource", cfg.Resource)
	if err := json.NewEncoder(w).Encode(cfg); err != nil {
		h.Logger.Error("failed to encode oauth protected resource response", "error", err)
	}
}
