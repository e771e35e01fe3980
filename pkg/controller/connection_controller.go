// Package controller reconciles the Connection and VirtualMCP CRDs into
// internal/registry.InMemory, the read surface the gateway core consumes.
package controller

import (
	"context"
	"log/slog"

	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	mcpv1alpha1 "github.com/meshgate/mcp-gateway/pkg/apis/mcp/v1alpha1"

	"github.com/meshgate/mcp-gateway/internal/model"
	"github.com/meshgate/mcp-gateway/internal/registry"
)

// ConnectionReconciler mirrors Connection CRD state into an InMemory registry.
// It never talks to the upstream MCP server itself; discovery/validation is a
// separate probe so reconcile stays a pure CRD→model translation.
type ConnectionReconciler struct {
	client.Client
	Scheme   *runtime.Scheme
	Registry *registry.InMemory
}

// +kubebuilder:rbac:groups=mcp.meshgate.io,resources=connections,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=mcp.meshgate.io,resources=connections/status,verbs=get;update;patch
// +kubebuilder:rbac:groups="",resources=secrets,verbs=get;list;watch

// Reconcile translates one Connection into the registry, or removes it if the
// object was deleted.
func (r *ConnectionReconciler) Reconcile(ctx context.Context, req reconcile.Request) (reconcile.Result, error) {
	slog.Info("reconciling connection", "name", req.Name, "namespace", req.Namespace)

	conn := &mcpv1alpha1.Connection{}
	if err := r.Get(ctx, req.NamespacedName, conn); err != nil {
		if errors.IsNotFound(err) {
			r.Registry.DeleteConnection(req.Namespace + "/" + req.Name)
			return reconcile.Result{}, nil
		}
		slog.Error("failed to get connection", "error", err)
		return reconcile.Result{}, err
	}

	record := toModelConnection(req.Namespace, conn)
	r.Registry.PutConnection(record)
	// Tenant ids double as their own slug until a dedicated Tenant CRD exists
	// to carry a distinct display slug (spec §6 x-org-slug resolution).
	r.Registry.PutTenantSlug(record.Tenant, record.Tenant)

	if err := r.updateStatus(ctx, conn, record); err != nil {
		slog.Error("failed to update connection status", "error", err)
		return reconcile.Result{}, err
	}

	return reconcile.Result{}, nil
}

func toModelConnection(namespace string, conn *mcpv1alpha1.Connection) *model.Connection {
	connType := model.ConnectionTypeHTTPStreamable
	if conn.Spec.Type != "" {
		connType = model.ConnectionType(conn.Spec.Type)
	}

	status := model.StatusInactive
	if conn.Spec.Active {
		status = model.StatusActive
	}

	configState := make(map[string]interface{}, len(conn.Spec.ConfigurationState))
	for k, v := range conn.Spec.ConfigurationState {
		configState[k] = v
	}

	var cached []model.ToolIndexEntry
	for _, name := range conn.Status.CachedToolNames {
		cached = append(cached, model.ToolIndexEntry{Name: name})
	}

	return &model.Connection{
		ID:                    namespace + "/" + conn.Name,
		Tenant:                conn.Spec.Tenant,
		Title:                 conn.Spec.Title,
		Type:                  connType,
		URL:                   conn.Spec.URL,
		Status:                status,
		StaticBearerSecretRef: conn.Spec.StaticBearerSecretRef,
		ExtraHeaders:          conn.Spec.ExtraHeaders,
		ConfigurationState:    configState,
		ConfigurationScopes:   conn.Spec.ConfigurationScopes,
		CachedTools:           cached,
	}
}

func (r *ConnectionReconciler) updateStatus(ctx context.Context, conn *mcpv1alpha1.Connection, record *model.Connection) error {
	phase := "Inactive"
	if record.Status == model.StatusActive {
		phase = "Active"
	}
	if conn.Status.Phase == phase {
		return nil
	}
	conn.Status.Phase = phase
	conn.Status.Conditions = setCondition(conn.Status.Conditions, metav1.Condition{
		Type:               "Ready",
		Status:             metav1.ConditionTrue,
		Reason:             "Reconciled",
		Message:            "Registered with gateway registry",
		LastTransitionTime: metav1.Now(),
	})
	return r.Status().Update(ctx, conn)
}

// SetupWithManager registers the reconciler against the manager.
func (r *ConnectionReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&mcpv1alpha1.Connection{}).
		Complete(r)
}

func setCondition(conditions []metav1.Condition, next metav1.Condition) []metav1.Condition {
	for i, c := range conditions {
		if c.Type == next.Type {
			conditions[i] = next
			return conditions
		}
	}
	return append(conditions, next)
}
