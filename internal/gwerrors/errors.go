// Package gwerrors defines the gateway's error kinds (spec §7) as sentinel
// and typed errors, asserted with errors.As/errors.Is at the boundary that
// must branch on them rather than threaded through as ad-hoc strings.
package gwerrors

import "errors"

// Sentinel kinds raised before any network I/O, mapped by the front-door
// handler to HTTP status codes.
var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrConnectionInactive = errors.New("connection inactive")
	ErrWrongTenant        = errors.New("connection belongs to another tenant")
	ErrVirtualMCPNotFound = errors.New("virtual-mcp not found")
	ErrVirtualMCPInactive = errors.New("virtual-mcp inactive")
	ErrResourceNotFound   = errors.New("resource not found")
	ErrPromptNotFound     = errors.New("prompt not found")
	ErrAborted            = errors.New("request aborted")
)

// Unauthorized means no identity at all was present. Distinguished from
// Forbidden (identity present, permission denied) per AccessControl (C3).
type Unauthorized struct {
	Reason string
}

func (e *Unauthorized) Error() string { return "unauthorized: " + e.Reason }

// Forbidden means an identity was present but lacked permission on the named
// resources.
type Forbidden struct {
	Reason string
}

func (e *Forbidden) Error() string { return "forbidden: " + e.Reason }

// UpstreamAuthError is recognised by status/exception shape from an upstream
// and may be translated by the handler to a 401 with OAuth hint fields.
type UpstreamAuthError struct {
	Status  int
	Message string
}

func (e *UpstreamAuthError) Error() string { return "upstream auth error: " + e.Message }

// UpstreamError is a generic non-OK response from an upstream MCP.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string { return "upstream error: " + e.Message }

// TransportError is an I/O or decode failure talking to an upstream.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string { return "transport error: " + e.Cause.Error() }
func (e *TransportError) Unwrap() error { return e.Cause }

// WrongTenant distinguishes itself from ErrConnectionNotFound at the error
// value level but the handler MUST map both to 404 with no tenant-specific
// text, to avoid an existence-leak across tenants (spec S3, invariant 7).
func IsNotFoundClass(err error) bool {
	return errors.Is(err, ErrConnectionNotFound) ||
		errors.Is(err, ErrWrongTenant) ||
		errors.Is(err, ErrVirtualMCPNotFound) ||
		errors.Is(err, ErrResourceNotFound) ||
		errors.Is(err, ErrPromptNotFound)
}

// IsInactiveClass reports whether err denotes a disabled-but-existing entity,
// mapped to 503.
func IsInactiveClass(err error) bool {
	return errors.Is(err, ErrConnectionInactive) || errors.Is(err, ErrVirtualMCPInactive)
}
