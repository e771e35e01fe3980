// Package authz implements AccessControl (C3): a single-use, grant-based
// authorization check constructed per tool call and disposed at call end.
package authz

import (
	"context"
	"fmt"

	"github.com/meshgate/mcp-gateway/internal/gwerrors"
	"github.com/meshgate/mcp-gateway/internal/model"
)

// AccessControl tracks whether the current call has been granted. Not safe
// for reuse across calls; construct one per tool invocation (spec §4.2:
// "Single-use by design... reset to not-granted" means a fresh instance, not
// a pooled/reset object).
type AccessControl struct {
	connectionID string
	presetTool   string
	tc           *model.TenantContext
	granted      bool
}

// New constructs an AccessControl for one call against connectionID. presetTool
// is used by Check when called with no explicit resources.
func New(tc *model.TenantContext, connectionID, presetTool string) *AccessControl {
	return &AccessControl{connectionID: connectionID, presetTool: presetTool, tc: tc}
}

// Grant unconditionally marks this call as authorized.
func (a *AccessControl) Grant() { a.granted = true }

// Granted reports the current state.
func (a *AccessControl) Granted() bool { return a.granted }

// Check applies OR semantics over the supplied resources (or the preset tool
// name if none given): skip if already granted; role bypass for admin/owner;
// otherwise delegate to the injected PermissionEvaluator. Raises Unauthorized
// if no identity and no evaluator are present at all, Forbidden if an
// identity is present but lacks permission on every resource.
func (a *AccessControl) Check(ctx context.Context, resources ...string) error {
	if a.granted {
		return nil
	}

	if len(resources) == 0 {
		if a.presetTool == "" {
			return &gwerrors.Forbidden{Reason: "No resources specified"}
		}
		resources = []string{a.presetTool}
	}

	if a.tc.Caller == nil && a.tc.Permissions == nil {
		return &gwerrors.Unauthorized{Reason: "no caller identity"}
	}

	if a.tc.Caller.IsAdminOrOwner() {
		a.granted = true
		return nil
	}

	if a.tc.Permissions == nil {
		return &gwerrors.Unauthorized{Reason: "no permission evaluator configured"}
	}

	results, err := a.tc.Permissions.HasPermission(ctx, a.tc.Caller, map[string][]string{a.connectionID: resources})
	if err != nil {
		return fmt.Errorf("permission evaluator: %w", err)
	}

	for _, r := range resources {
		if results[r] {
			a.granted = true
			return nil
		}
	}

	return &gwerrors.Forbidden{Reason: "Access denied to: " + joinResources(resources)}
}

func joinResources(resources []string) string {
	out := ""
	for i, r := range resources {
		if i > 0 {
			out += ", "
		}
		out += r
	}
	return out
}
