// Package monitoring implements MonitoringMiddleware (C10): one structured
// event per tool invocation, with size-capped, non-blocking streaming body
// capture (spec §4.10, §8 invariant 8, scenario S5).
package monitoring

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meshgate/mcp-gateway/internal/model"
)

// MaxCaptureBytes is the streaming body capture cap (256 KiB).
const MaxCaptureBytes = 256 * 1024

// Middleware records structured events to the TenantContext's AuditSink.
// Sink failures are logged and swallowed; they must never affect the user
// response (spec §4.10 "Failure isolation").
type Middleware struct {
	logger *slog.Logger
}

// New builds a monitoring middleware.
func New(logger *slog.Logger) *Middleware {
	return &Middleware{logger: logger}
}

// baseEvent assembles the schema fields common to unary and streaming events.
func (m *Middleware) baseEvent(tc *model.TenantContext, connID, connTitle, toolName string, args map[string]interface{}, durationMS float64) map[string]interface{} {
	event := map[string]interface{}{
		"organization_id":  tc.Tenant,
		"connection_id":    connID,
		"connection_title": connTitle,
		"tool_name":        toolName,
		"input":            args,
		"duration_ms":      durationMS,
		"timestamp":        time.Now().UTC().Format(time.RFC3339Nano),
	}
	if tc.Caller != nil {
		event["user_id"] = tc.Caller.UserID
	}
	if tc.RequestID != "" {
		event["request_id"] = tc.RequestID
	}
	return event
}

func (m *Middleware) emit(ctx context.Context, tc *model.TenantContext, event map[string]interface{}) {
	if tc.Audit == nil {
		return
	}
	if err := tc.Audit.Record(ctx, event); err != nil {
		m.logger.Error("monitoring sink write failed", "error", err)
	}
}

// WrapUnaryCall records an event for a unary tool call, normalizing output
// and extracting the error message per spec §4.10, then forwards the call's
// own result/error unchanged.
func (m *Middleware) WrapUnaryCall(ctx context.Context, tc *model.TenantContext, connID, connTitle, toolName string, args map[string]interface{}, next func(context.Context) (*mcp.CallToolResult, error)) (*mcp.CallToolResult, error) {
	start := time.Now()
	result, err := next(ctx)
	durationMS := float64(time.Since(start).Milliseconds())

	event := m.baseEvent(tc, connID, connTitle, toolName, args, durationMS)
	if err != nil {
		event["is_error"] = true
		event["error_message"] = err.Error()
	} else {
		event["is_error"] = result.IsError
		event["output"] = NormalizeOutput(result)
		if result.IsError {
			if msg, ok := ExtractErrorMessage(result); ok {
				event["error_message"] = msg
			}
		}
	}
	m.emit(ctx, tc, event)
	return result, err
}

// NormalizeOutput implements spec §4.10's output normalisation: prefer a
// structuredContent sub-object if present, else wrap the raw content.
func NormalizeOutput(result *mcp.CallToolResult) interface{} {
	if result == nil {
		return nil
	}
	if result.StructuredContent != nil {
		return result.StructuredContent
	}
	return map[string]interface{}{"value": result.Content}
}

// ExtractErrorMessage pulls the first text part from an isError result.
func ExtractErrorMessage(result *mcp.CallToolResult) (string, bool) {
	for _, c := range result.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			return tc.Text, true
		}
	}
	return "", false
}

// CaptureStreaming clones resp's body into two independent readers: one is
// returned to the caller unmodified, the other is drained asynchronously
// into the monitoring sink capped at MaxCaptureBytes (spec §4.10, §9
// "Streaming capture without stalling"). The caller's response is never
// delayed by sink I/O.
func (m *Middleware) CaptureStreaming(ctx context.Context, tc *model.TenantContext, connID, connTitle, toolName string, args map[string]interface{}, start time.Time, resp *http.Response) *http.Response {
	if resp == nil || resp.Body == nil {
		return resp
	}

	pr, pw := io.Pipe()
	teeBody := pipeClosingReader{src: io.TeeReader(resp.Body, pw), pw: pw}
	clientBody := struct {
		io.Reader
		io.Closer
	}{Reader: teeBody, Closer: resp.Body}

	go func() {
		defer pw.Close()
		m.consumeCapture(ctx, tc, connID, connTitle, toolName, args, start, resp, pr)
	}()

	resp.Body = clientBody
	return resp
}

// pipeClosingReader closes pw once src returns EOF or an error, so the
// capture goroutine reading the other end of the pipe sees the stream end.
type pipeClosingReader struct {
	src io.Reader
	pw  *io.PipeWriter
}

func (r pipeClosingReader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	if err != nil {
		_ = r.pw.CloseWithError(err) // io.EOF reaches the reader as a clean end of stream
	}
	return n, err
}

func (m *Middleware) consumeCapture(ctx context.Context, tc *model.TenantContext, connID, connTitle, toolName string, args map[string]interface{}, start time.Time, resp *http.Response, r io.Reader) {
	limited := io.LimitReader(r, MaxCaptureBytes+1)
	data, _ := io.ReadAll(limited)
	// Drain the rest without buffering further, so a downstream reader that
	// reads the full stream is never starved by our cap.
	_, _ = io.Copy(io.Discard, r)

	truncated := len(data) > MaxCaptureBytes
	if truncated {
		data = data[:MaxCaptureBytes]
	}

	durationMS := float64(time.Since(start).Milliseconds())
	event := m.baseEvent(tc, connID, connTitle, toolName, args, durationMS)
	event["is_error"] = resp.StatusCode >= 400

	contentType := resp.Header.Get("Content-Type")
	var parsed interface{}
	isJSON := len(contentType) > 0 && jsonContentType(contentType)
	if isJSON {
		if err := json.Unmarshal(data, &parsed); err == nil {
			event["output"] = parsed
		} else {
			event["output"] = string(data)
		}
	} else {
		event["output"] = string(data)
	}

	switch {
	case resp.StatusCode >= 400:
		event["error_message"] = streamingErrorMessage(resp, data, parsed)
	case truncated:
		event["error_message"] = "Response body truncated to 262144 bytes"
	}

	m.emit(ctx, tc, event)
}

func jsonContentType(ct string) bool {
	for i := 0; i+len("application/json") <= len(ct); i++ {
		if ct[i:i+len("application/json")] == "application/json" {
			return true
		}
	}
	return false
}

func streamingErrorMessage(resp *http.Response, data []byte, parsed interface{}) string {
	if obj, ok := parsed.(map[string]interface{}); ok {
		if e, ok := obj["error"].(string); ok && e != "" {
			return e
		}
	}
	if len(data) > 0 {
		text := string(data)
		if len(text) > 500 {
			text = text[:500]
		}
		return text
	}
	return http.StatusText(resp.StatusCode)
}
