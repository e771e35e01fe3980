// Package middleware implements MiddlewarePipeline (C4): authZ ∘ monitoring
// ∘ upstream_call, composed at pipeline-build time per spec §9 ("compose at
// pipeline-build time, not per-call, to avoid per-call allocations").
package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meshgate/mcp-gateway/internal/authz"
	"github.com/meshgate/mcp-gateway/internal/model"
	"github.com/meshgate/mcp-gateway/internal/monitoring"
)

// Pipeline holds the composed authZ/monitoring wrapping for one proxy. Built
// once per proxy instance and reused across calls on that proxy.
type Pipeline struct {
	connectionID    string
	connectionTitle string
	monitoring      *monitoring.Middleware
}

// New builds a pipeline for one connection.
func New(connectionID, connectionTitle string, mon *monitoring.Middleware) *Pipeline {
	return &Pipeline{connectionID: connectionID, connectionTitle: connectionTitle, monitoring: mon}
}

// UnaryCall runs authZ(monitoring(upstreamCall)) for one tool invocation.
// authZ catches its own error and returns a benign CallToolResult rather than
// propagating (spec §4.3): it never throws past itself. monitoring observes
// the authorized result but the upstream_call leg alone is span/duration
// instrumented via tc.Tracer/tc.Meter, excluding authZ (spec §4.3 "Ordering
// guarantee").
func (p *Pipeline) UnaryCall(ctx context.Context, tc *model.TenantContext, ac *authz.AccessControl, toolName string, args map[string]interface{}, upstreamCall func(context.Context) (*mcp.CallToolResult, error)) (*mcp.CallToolResult, error) {
	if err := ac.Check(ctx, toolName); err != nil {
		msg := authzDenialMessage(toolName)
		return p.monitoring.WrapUnaryCall(ctx, tc, p.connectionID, p.connectionTitle, toolName, args, func(context.Context) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultError(msg), nil
		})
	}

	return p.monitoring.WrapUnaryCall(ctx, tc, p.connectionID, p.connectionTitle, toolName, args, func(ctx context.Context) (*mcp.CallToolResult, error) {
		return p.instrumentedUpstreamCall(ctx, tc, toolName, upstreamCall)
	})
}

func (p *Pipeline) instrumentedUpstreamCall(ctx context.Context, tc *model.TenantContext, toolName string, upstreamCall func(context.Context) (*mcp.CallToolResult, error)) (*mcp.CallToolResult, error) {
	attrs := map[string]string{"connection.id": p.connectionID, "tool.name": toolName}
	spanCtx := ctx
	var span model.Span
	if tc.Tracer != nil {
		spanCtx, span = tc.Tracer.StartSpan(ctx, "mcp.proxy.callTool", attrs)
	}

	start := time.Now()
	result, err := upstreamCall(spanCtx)
	durationMS := float64(time.Since(start).Milliseconds())

	if tc.Meter != nil {
		tc.Meter.RecordDuration("mcp.proxy.callTool", durationMS, attrs)
		if err != nil || (result != nil && result.IsError) {
			tc.Meter.IncrCounter("mcp.proxy.callTool.error", attrs)
		} else {
			tc.Meter.IncrCounter("mcp.proxy.callTool.success", attrs)
		}
	}
	if span != nil {
		span.End(err)
	}
	return result, err
}

// StreamingCall runs authZ(monitoring(upstreamCall)) for a streamable tool
// call. authZ denial returns a 403 JSON response rather than propagating an
// error (spec §4.3).
func (p *Pipeline) StreamingCall(ctx context.Context, tc *model.TenantContext, ac *authz.AccessControl, toolName string, args map[string]interface{}, upstreamCall func(context.Context) (*http.Response, error)) (*http.Response, error) {
	if err := ac.Check(ctx, toolName); err != nil {
		return forbiddenResponse(authzDenialMessage(toolName)), nil
	}

	attrs := map[string]string{"connection.id": p.connectionID, "tool.name": toolName}
	spanCtx := ctx
	var span model.Span
	if tc.Tracer != nil {
		spanCtx, span = tc.Tracer.StartSpan(ctx, "mcp.proxy.callStreamableTool", attrs)
	}

	start := time.Now()
	resp, err := upstreamCall(spanCtx)
	durationMS := float64(time.Since(start).Milliseconds())

	if tc.Meter != nil {
		tc.Meter.RecordDuration("mcp.proxy.callStreamableTool", durationMS, attrs)
		if err != nil {
			tc.Meter.IncrCounter("mcp.proxy.callStreamableTool.error", attrs)
		} else {
			tc.Meter.IncrCounter("mcp.proxy.callStreamableTool.success", attrs)
		}
	}
	if span != nil {
		span.End(err)
	}
	if err != nil {
		return nil, err
	}

	resp = p.monitoring.CaptureStreaming(ctx, tc, p.connectionID, p.connectionTitle, toolName, args, start, resp)
	return resp, nil
}

func authzDenialMessage(toolName string) string {
	return fmt.Sprintf("Authorization failed: Access denied to: %s", toolName)
}

func forbiddenResponse(message string) *http.Response {
	body := fmt.Sprintf(`{"error":%q}`, message)
	return &http.Response{
		StatusCode: http.StatusForbidden,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
	}
}
