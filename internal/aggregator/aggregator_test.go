package aggregator_test

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meshgate/mcp-gateway/internal/model"
)

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(noopWriter{}, nil))
}

// fakeProxy is a network-free proxy.ConnectionProxy stand-in for tests that
// need a proxyset.Collection without Builder.Build's real upstream I/O.
type fakeProxy struct {
	id, title string

	tools             []mcp.Tool
	resources         []mcp.Resource
	resourceTemplates []mcp.ResourceTemplate
	prompts           []mcp.Prompt

	calls []string // records the original names passed to CallTool/ReadResource/GetPrompt
}

func (f *fakeProxy) ConnectionID() string    { return f.id }
func (f *fakeProxy) ConnectionTitle() string { return f.title }

func (f *fakeProxy) ListTools(context.Context) ([]mcp.Tool, error) { return f.tools, nil }

func (f *fakeProxy) CallTool(_ context.Context, name string, _ map[string]interface{}) (*mcp.CallToolResult, error) {
	f.calls = append(f.calls, name)
	return mcp.NewToolResultText(f.id + ":" + name), nil
}

func (f *fakeProxy) ListResources(context.Context) ([]mcp.Resource, error) { return f.resources, nil }

func (f *fakeProxy) ReadResource(_ context.Context, uri string) (*mcp.ReadResourceResult, error) {
	f.calls = append(f.calls, uri)
	return &mcp.ReadResourceResult{Contents: []mcp.ResourceContents{mcp.TextResourceContents{URI: uri, Text: f.id}}}, nil
}

func (f *fakeProxy) ListResourceTemplates(context.Context) ([]mcp.ResourceTemplate, error) {
	return f.resourceTemplates, nil
}

func (f *fakeProxy) ListPrompts(context.Context) ([]mcp.Prompt, error) { return f.prompts, nil }

func (f *fakeProxy) GetPrompt(_ context.Context, name string, _ map[string]string) (*mcp.GetPromptResult, error) {
	f.calls = append(f.calls, name)
	return &mcp.GetPromptResult{Description: f.id + ":" + name}, nil
}

func (f *fakeProxy) CallStreamable(context.Context, string, map[string]interface{}) (*http.Response, error) {
	return nil, nil
}

func (f *fakeProxy) Release() error { return nil }

func conn(id, title string) *model.Connection {
	return &model.Connection{ID: id, Title: title}
}
