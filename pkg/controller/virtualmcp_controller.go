package controller

import (
	"context"
	"log/slog"

	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	mcpv1alpha1 "github.com/meshgate/mcp-gateway/pkg/apis/mcp/v1alpha1"

	"github.com/meshgate/mcp-gateway/internal/model"
	"github.com/meshgate/mcp-gateway/internal/registry"
)

// VirtualMCPReconciler mirrors VirtualMCP CRD state into an InMemory
// registry, resolving each Member's ConnectionName to the namespaced
// connection id ConnectionReconciler registered.
type VirtualMCPReconciler struct {
	client.Client
	Scheme   *runtime.Scheme
	Registry *registry.InMemory
}

// +kubebuilder:rbac:groups=mcp.meshgate.io,resources=virtualmcps,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=mcp.meshgate.io,resources=virtualmcps/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=mcp.meshgate.io,resources=connections,verbs=get;list;watch

func (r *VirtualMCPReconciler) Reconcile(ctx context.Context, req reconcile.Request) (reconcile.Result, error) {
	slog.Info("reconciling virtual-mcp", "name", req.Name, "namespace", req.Namespace)

	vmcp := &mcpv1alpha1.VirtualMCP{}
	if err := r.Get(ctx, req.NamespacedName, vmcp); err != nil {
		if errors.IsNotFound(err) {
			r.Registry.DeleteVirtualMCP(req.Namespace + "/" + req.Name)
			return reconcile.Result{}, nil
		}
		slog.Error("failed to get virtual-mcp", "error", err)
		return reconcile.Result{}, err
	}

	entity := toModelVirtualMCP(req.Namespace, vmcp)
	r.Registry.PutVirtualMCP(entity)

	if err := r.updateStatus(ctx, vmcp, entity); err != nil {
		slog.Error("failed to update virtual-mcp status", "error", err)
		return reconcile.Result{}, err
	}

	return reconcile.Result{}, nil
}

func toModelVirtualMCP(namespace string, vmcp *mcpv1alpha1.VirtualMCP) *model.VirtualMCPEntity {
	status := model.StatusInactive
	if vmcp.Spec.Active {
		status = model.StatusActive
	}

	mode := model.ToolSelectionMode(vmcp.Spec.ToolSelectionMode)

	members := make([]model.Member, 0, len(vmcp.Spec.Members))
	for _, m := range vmcp.Spec.Members {
		members = append(members, model.Member{
			ConnectionID:      namespace + "/" + m.ConnectionName,
			SelectedTools:     m.SelectedTools,
			SelectedResources: m.SelectedResources,
			SelectedPrompts:   m.SelectedPrompts,
		})
	}

	strategy := vmcp.Spec.ToolSelectionStrategy
	if strategy == "" {
		strategy = "passthrough"
	}

	return &model.VirtualMCPEntity{
		ID:                    namespace + "/" + vmcp.Name,
		Tenant:                vmcp.Spec.Tenant,
		Title:                 vmcp.Spec.Title,
		SystemInstructions:    vmcp.Spec.SystemInstructions,
		Status:                status,
		ToolSelectionMode:     mode,
		ToolSelectionStrategy: strategy,
		Members:               members,
	}
}

func (r *VirtualMCPReconciler) updateStatus(ctx context.Context, vmcp *mcpv1alpha1.VirtualMCP, entity *model.VirtualMCPEntity) error {
	phase := "Inactive"
	if entity.Status == model.StatusActive {
		phase = "Active"
	}
	if vmcp.Status.Phase == phase && vmcp.Status.ResolvedMemberCount == len(entity.Members) {
		return nil
	}
	vmcp.Status.Phase = phase
	vmcp.Status.ResolvedMemberCount = len(entity.Members)
	vmcp.Status.Conditions = setCondition(vmcp.Status.Conditions, metav1.Condition{
		Type:               "Ready",
		Status:             metav1.ConditionTrue,
		Reason:             "Reconciled",
		Message:            "Registered with gateway registry",
		LastTransitionTime: metav1.Now(),
	})
	return r.Status().Update(ctx, vmcp)
}

// SetupWithManager registers the reconciler against the manager, re-enqueuing
// every VirtualMCP when any Connection changes so exclusion-mode membership
// reacts to newly-active/inactive connections without a separate poll loop.
func (r *VirtualMCPReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&mcpv1alpha1.VirtualMCP{}).
		Watches(
			&mcpv1alpha1.Connection{},
			handler.EnqueueRequestsFromMapFunc(r.mapConnectionToVirtualMCPs),
		).
		Complete(r)
}

// mapConnectionToVirtualMCPs re-enqueues every known VirtualMCP whenever any
// Connection changes, since exclusion-mode membership depends on the live
// connection set (spec §4.8).
func (r *VirtualMCPReconciler) mapConnectionToVirtualMCPs(ctx context.Context, _ client.Object) []reconcile.Request {
	list := &mcpv1alpha1.VirtualMCPList{}
	if err := r.List(ctx, list); err != nil {
		slog.Error("failed to list virtual-mcps for connection-change fanout", "error", err)
		return nil
	}
	requests := make([]reconcile.Request, 0, len(list.Items))
	for _, v := range list.Items {
		requests = append(requests, reconcile.Request{NamespacedName: types.NamespacedName{Name: v.Name, Namespace: v.Namespace}})
	}
	return requests
}
