// Package v1alpha1 contains the Connection and VirtualMCP CRD types the
// controllers in pkg/controller reconcile into internal/registry.InMemory.
package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope=Namespaced,shortName=mcpconn
// +kubebuilder:printcolumn:name="Tenant",type=string,JSONPath=`.spec.tenant`
// +kubebuilder:printcolumn:name="Status",type=string,JSONPath=`.status.phase`

// Connection registers one upstream MCP server belonging to a tenant
// (internal/model.Connection).
type Connection struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   ConnectionSpec   `json:"spec,omitempty"`
	Status ConnectionStatus `json:"status,omitempty"`
}

// ConnectionSpec is the desired state of a Connection.
type ConnectionSpec struct {
	// Tenant is the owning organization id.
	Tenant string `json:"tenant"`

	// Title is the human-readable connection name used in monitoring events.
	Title string `json:"title"`

	// Type is the wire transport. Only "http-streamable" is implemented.
	// +kubebuilder:default=http-streamable
	// +kubebuilder:validation:Enum=http-streamable
	Type string `json:"type,omitempty"`

	// URL is the upstream MCP server's base endpoint.
	URL string `json:"url"`

	// Active toggles the connection's availability without deleting the
	// record (spec §4.1: "disabled but existing" maps to 503, not 404).
	// +kubebuilder:default=true
	Active bool `json:"active,omitempty"`

	// StaticBearerSecretRef names a credential under /etc/mcp-credentials
	// holding a static bearer token for this connection.
	// +optional
	StaticBearerSecretRef string `json:"staticBearerSecretRef,omitempty"`

	// ExtraHeaders are merged onto every outbound request last.
	// +optional
	ExtraHeaders map[string]string `json:"extraHeaders,omitempty"`

	// ConfigurationState is an opaque bag of keys consulted, together with
	// ConfigurationScopes, to derive the delegation token's permission map.
	// +optional
	ConfigurationState map[string]string `json:"configurationState,omitempty"`

	// ConfigurationScopes holds "KEY::SCOPE" entries.
	// +optional
	ConfigurationScopes []string `json:"configurationScopes,omitempty"`
}

// ConnectionStatus is the observed state of a Connection.
type ConnectionStatus struct {
	// Phase mirrors spec.active for quick inspection ("Active"/"Inactive").
	Phase string `json:"phase,omitempty"`

	// CachedToolNames, when non-empty, is copied into the registry record as
	// the connection's cached tool list and short-circuits proxy.ListTools.
	// No controller in this repository writes it.
	CachedToolNames []string `json:"cachedToolNames,omitempty"`

	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// +kubebuilder:object:root=true

// ConnectionList contains a list of Connection.
type ConnectionList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Connection `json:"items"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope=Namespaced,shortName=vmcp
// +kubebuilder:printcolumn:name="Tenant",type=string,JSONPath=`.spec.tenant`
// +kubebuilder:printcolumn:name="Mode",type=string,JSONPath=`.spec.toolSelectionMode`

// VirtualMCP registers a tenant-defined composition of Connections exposing
// one aggregated MCP surface (internal/model.VirtualMCPEntity).
type VirtualMCP struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   VirtualMCPSpec   `json:"spec,omitempty"`
	Status VirtualMCPStatus `json:"status,omitempty"`
}

// VirtualMCPSpec is the desired state of a VirtualMCP.
type VirtualMCPSpec struct {
	Tenant string `json:"tenant"`
	Title  string `json:"title"`

	// SystemInstructions, if set, is surfaced to the client MCP session as
	// the server's instructions field.
	// +optional
	SystemInstructions string `json:"systemInstructions,omitempty"`

	// Active toggles availability (spec §4.8, maps to 503 when false).
	// +kubebuilder:default=true
	Active bool `json:"active,omitempty"`

	// ToolSelectionMode is "inclusion" (only named Members) or "exclusion"
	// (every active tenant connection except named exclusions).
	// +kubebuilder:validation:Enum=inclusion;exclusion
	ToolSelectionMode string `json:"toolSelectionMode"`

	// ToolSelectionStrategy names the presentation strategy ("passthrough",
	// "smart"); unknown values fall back to passthrough (spec §9).
	// +kubebuilder:default=passthrough
	ToolSelectionStrategy string `json:"toolSelectionStrategy,omitempty"`

	// Members lists per-connection selection overrides.
	// +optional
	Members []MemberRef `json:"members,omitempty"`
}

// MemberRef is one entry of VirtualMCPSpec.Members.
type MemberRef struct {
	ConnectionName string `json:"connectionName"`

	// +optional
	SelectedTools []string `json:"selectedTools,omitempty"`
	// +optional
	SelectedResources []string `json:"selectedResources,omitempty"`
	// +optional
	SelectedPrompts []string `json:"selectedPrompts,omitempty"`
}

// VirtualMCPStatus is the observed state of a VirtualMCP.
type VirtualMCPStatus struct {
	Phase              string             `json:"phase,omitempty"`
	ResolvedMemberCount int               `json:"resolvedMemberCount,omitempty"`
	Conditions         []metav1.Condition `json:"conditions,omitempty"`
}

// +kubebuilder:object:root=true

// VirtualMCPList contains a list of VirtualMCP.
type VirtualMCPList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []VirtualMCP `json:"items"`
}
