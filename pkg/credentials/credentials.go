// Package credentials reads from mounted, per-tenant secrets
package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// MountPath is the standard mount path for credentials. Each tenant's
	// secrets live under their own subdirectory of MountPath
	// (MountPath/<tenant>/<name>), matching how a multi-tenant mesh operator
	// projects per-organization Kubernetes Secrets into one pod rather than
	// flattening every org's credentials into a single shared namespace.
	MountPath = "/etc/mcp-credentials"
)

// Get reads a credential from the mounted secret file scoped to tenant. An
// empty tenant or name is not an error; it simply yields no credential,
// matching StaticBearerSecretRef being optional on a Connection.
func Get(tenant, name string) (string, error) {
	if tenant == "" || name == "" {
		return "", nil
	}
	credPath := filepath.Join(MountPath, tenant, name)
	data, err := os.ReadFile(credPath) //nolint:gosec // reading kubernetes mounted secrets
	if err != nil {
		return "", fmt.Errorf("failed to read credential from file %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
