package monitoring_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/meshgate/mcp-gateway/internal/model"
	"github.com/meshgate/mcp-gateway/internal/monitoring"
)

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(noopWriter{}, nil))
}

type recordingAudit struct {
	events []map[string]interface{}
}

func (r *recordingAudit) Record(_ context.Context, event map[string]interface{}) error {
	r.events = append(r.events, event)
	return nil
}

func TestNormalizeOutput_PrefersStructuredContent(t *testing.T) {
	result := &mcp.CallToolResult{StructuredContent: map[string]interface{}{"answer": 42}}
	require.Equal(t, map[string]interface{}{"answer": 42}, monitoring.NormalizeOutput(result))
}

func TestNormalizeOutput_FallsBackToRawContent(t *testing.T) {
	result := mcp.NewToolResultText("hello")
	out := monitoring.NormalizeOutput(result)
	wrapped, ok := out.(map[string]interface{})
	require.True(t, ok)
	require.Contains(t, wrapped, "value")
}

func TestExtractErrorMessage_FirstTextPart(t *testing.T) {
	result := mcp.NewToolResultError("boom")
	msg, ok := monitoring.ExtractErrorMessage(result)
	require.True(t, ok)
	require.Equal(t, "boom", msg)
}

func TestWrapUnaryCall_RecordsExactlyOneEventOnSuccess(t *testing.T) {
	audit := &recordingAudit{}
	tc := &model.TenantContext{Tenant: "acme", Audit: audit}
	m := monitoring.New(discardLogger())

	result, err := m.WrapUnaryCall(context.Background(), tc, "conn-1", "Conn One", "tool-a", nil, func(context.Context) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("ok"), nil
	})

	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Len(t, audit.events, 1)
	require.Equal(t, "acme", audit.events[0]["organization_id"])
	require.Equal(t, false, audit.events[0]["is_error"])
}

func TestWrapUnaryCall_RecordsErrorMessageOnIsErrorResult(t *testing.T) {
	audit := &recordingAudit{}
	tc := &model.TenantContext{Audit: audit}
	m := monitoring.New(discardLogger())

	_, err := m.WrapUnaryCall(context.Background(), tc, "conn-1", "Conn One", "tool-a", nil, func(context.Context) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("upstream exploded"), nil
	})

	require.NoError(t, err)
	require.Len(t, audit.events, 1)
	require.Equal(t, true, audit.events[0]["is_error"])
	require.Equal(t, "upstream exploded", audit.events[0]["error_message"])
}

func TestWrapUnaryCall_NilAuditSinkIsSafe(t *testing.T) {
	tc := &model.TenantContext{}
	m := monitoring.New(discardLogger())

	result, err := m.WrapUnaryCall(context.Background(), tc, "conn-1", "Conn One", "tool-a", nil, func(context.Context) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("ok"), nil
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
}

func TestCaptureStreaming_TruncatesOversizedBody(t *testing.T) {
	audit := &recordingAudit{}
	tc := &model.TenantContext{Audit: audit}
	m := monitoring.New(discardLogger())

	oversized := strings.Repeat("x", monitoring.MaxCaptureBytes+10)
	resp := &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/plain"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(oversized))),
	}

	wrapped := m.CaptureStreaming(context.Background(), tc, "conn-1", "Conn One", "tool-a", nil, time.Now(), resp)
	body, err := io.ReadAll(wrapped.Body)
	require.NoError(t, err)
	require.Equal(t, oversized, string(body), "the client-visible body must be delivered in full, unaffected by the capture cap")

	require.Eventually(t, func() bool { return len(audit.events) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, "Response body truncated to 262144 bytes", audit.events[0]["error_message"])
}

func TestCaptureStreaming_RecordsErrorStatusMessage(t *testing.T) {
	audit := &recordingAudit{}
	tc := &model.TenantContext{Audit: audit}
	m := monitoring.New(discardLogger())

	resp := &http.Response{
		StatusCode: http.StatusInternalServerError,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(`{"error":"upstream down"}`))),
	}

	wrapped := m.CaptureStreaming(context.Background(), tc, "conn-1", "Conn One", "tool-a", nil, time.Now(), resp)
	_, err := io.ReadAll(wrapped.Body)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(audit.events) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, "upstream down", audit.events[0]["error_message"])
	require.Equal(t, true, audit.events[0]["is_error"])
}
