package proxy

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshgate/mcp-gateway/internal/gwerrors"
	"github.com/meshgate/mcp-gateway/internal/model"
)

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(noopWriter{}, nil))
}

func TestClassifyUpstreamErr_DetectsAuthFailures(t *testing.T) {
	var authErr *gwerrors.UpstreamAuthError
	require.ErrorAs(t, classifyUpstreamErr(errors.New("request failed: 401 Unauthorized")), &authErr)
	require.ErrorAs(t, classifyUpstreamErr(errors.New("server returned 403 forbidden")), &authErr)
}

func TestClassifyUpstreamErr_DefaultsToUpstreamError(t *testing.T) {
	var upstreamErr *gwerrors.UpstreamError
	require.ErrorAs(t, classifyUpstreamErr(errors.New("connection reset by peer")), &upstreamErr)
}

func TestClassifyUpstreamErr_NilIsNil(t *testing.T) {
	require.Nil(t, classifyUpstreamErr(nil))
}

func TestRelease_IsIdempotentAndSwallowsWithNoClient(t *testing.T) {
	p := New(&model.Connection{ID: "acme/a", URL: "https://example.invalid"}, &model.TenantContext{}, "key", "", discardLogger())
	require.NoError(t, p.Release())
	require.NoError(t, p.Release())
}

func TestConnectionID_AndTitle(t *testing.T) {
	p := New(&model.Connection{ID: "acme/a", Title: "A", URL: "https://example.invalid"}, &model.TenantContext{}, "key", "", discardLogger())
	require.Equal(t, "acme/a", p.ConnectionID())
	require.Equal(t, "A", p.ConnectionTitle())
}

func TestListTools_UsesCachedToolsShortcut(t *testing.T) {
	conn := &model.Connection{
		ID: "acme/a", URL: "https://example.invalid",
		CachedTools: []model.ToolIndexEntry{{Name: "cached-tool", Description: "d"}},
	}
	p := New(conn, &model.TenantContext{}, "key", "", discardLogger())

	tools, err := p.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.Equal(t, "cached-tool", tools[0].Name)
}
