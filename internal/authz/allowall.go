package authz

import (
	"context"

	"github.com/meshgate/mcp-gateway/internal/model"
)

// AllowAll is a model.PermissionEvaluator that grants every resource to every
// caller. It is the default when no external policy collaborator is
// injected (spec §1): the gateway still enforces tenant/connection isolation
// via AccessControl's role checks, it just never denies on a per-resource
// basis until a real policy engine is wired in.
type AllowAll struct{}

func (AllowAll) HasPermission(_ context.Context, _ *model.CallerIdentity, resources map[string][]string) (map[string]bool, error) {
	out := make(map[string]bool, len(resources))
	for _, names := range resources {
		for _, n := range names {
			out[n] = true
		}
	}
	return out, nil
}
