// Package proxy implements ConnectionProxy (C1): a live session and wire
// adapter to a single upstream MCP, with credential binding and the error
// taxonomy spec §4.1 requires at the boundary.
//
// Grounded on the teacher's internal/broker/upstream (MCPServer Connect/
// Disconnect lifecycle over *client.Client) and internal/broker/broker.go's
// ListTools/CallTool call sites, generalized from one gateway-wide upstream
// set to one-per-request-per-connection semantics.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meshgate/mcp-gateway/internal/credential"
	"github.com/meshgate/mcp-gateway/internal/gwerrors"
	"github.com/meshgate/mcp-gateway/internal/model"
)

// ConnectionProxy is the public contract spec §4.1 requires.
type ConnectionProxy interface {
	ConnectionID() string
	ConnectionTitle() string
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
	ListResources(ctx context.Context) ([]mcp.Resource, error)
	ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error)
	ListResourceTemplates(ctx context.Context) ([]mcp.ResourceTemplate, error)
	ListPrompts(ctx context.Context) ([]mcp.Prompt, error)
	GetPrompt(ctx context.Context, name string, args map[string]string) (*mcp.GetPromptResult, error)
	CallStreamable(ctx context.Context, name string, args map[string]interface{}) (*http.Response, error)
	Release() error
}

// HTTPStreamable is the sole implementation: a streamable-HTTP MCP client
// session to one upstream, lazily connected on first use. A future StdIO
// transport would add a sibling implementation behind the same interface
// (spec §9: "no runtime type reflection").
type HTTPStreamable struct {
	conn    *model.Connection
	tc      *model.TenantContext
	binder  *credential.Binder
	meshURL string
	logger  *slog.Logger
	httpCl  *http.Client

	mu        sync.Mutex
	mcpClient *client.Client
	released  bool
}

// New builds a proxy for one connection within one request's TenantContext.
// The upstream session is not opened until first use.
func New(conn *model.Connection, tc *model.TenantContext, signingKey string, meshURL string, logger *slog.Logger) *HTTPStreamable {
	return &HTTPStreamable{
		conn:    conn,
		tc:      tc,
		binder:  credential.NewBinder(signingKey, logger),
		meshURL: meshURL,
		logger:  logger,
		httpCl:  &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }},
	}
}

func (p *HTTPStreamable) ConnectionID() string    { return p.conn.ID }
func (p *HTTPStreamable) ConnectionTitle() string { return p.conn.Title }

func (p *HTTPStreamable) headers(ctx context.Context) credential.Headers {
	return p.binder.Ensure(ctx, p.conn, p.tc, p.meshURL)
}

// ensureClient connects lazily, applying the credential-bound headers built
// by CredentialBinder.Ensure before the transport is started (spec §4.1:
// "Before any request headers are built, CredentialBinder.ensure() runs").
func (p *HTTPStreamable) ensureClient(ctx context.Context) (*client.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil, fmt.Errorf("proxy released")
	}
	if p.mcpClient != nil {
		return p.mcpClient, nil
	}

	hdrs := p.headers(ctx)
	opts := []transport.StreamableHTTPCOption{
		transport.WithContinuousListening(),
		transport.WithHTTPHeaders(hdrs),
	}
	cl, err := client.NewStreamableHttpClient(p.conn.URL, opts...)
	if err != nil {
		return nil, &gwerrors.TransportError{Cause: fmt.Errorf("new client: %w", err)}
	}
	if err := cl.Start(ctx); err != nil {
		return nil, &gwerrors.TransportError{Cause: fmt.Errorf("start client: %w", err)}
	}
	_, err = cl.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    "mcp-gateway",
				Version: "0.1.0",
			},
		},
	})
	if err != nil {
		_ = cl.Close()
		return nil, classifyUpstreamErr(err)
	}
	p.mcpClient = cl
	return cl, nil
}

func (p *HTTPStreamable) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if p.conn.CachedTools != nil {
		out := make([]mcp.Tool, 0, len(p.conn.CachedTools))
		for _, t := range p.conn.CachedTools {
			out = append(out, mcp.Tool{Name: t.Name, Description: t.Description})
		}
		return out, nil
	}
	cl, err := p.ensureClient(ctx)
	if err != nil {
		return nil, err
	}
	res, err := cl.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, classifyUpstreamErr(err)
	}
	return res.Tools, nil
}

func (p *HTTPStreamable) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	cl, err := p.ensureClient(ctx)
	if err != nil {
		return nil, err
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := cl.CallTool(ctx, req)
	if err != nil {
		// Upstream transport/protocol failures propagate; semantic errors
		// (isError:true) come back as a normal result, not an error (spec §4.1).
		return nil, classifyUpstreamErr(err)
	}
	return res, nil
}

func (p *HTTPStreamable) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	cl, err := p.ensureClient(ctx)
	if err != nil {
		return nil, err
	}
	res, err := cl.ListResources(ctx, mcp.ListResourcesRequest{})
	if err != nil {
		return nil, classifyUpstreamErr(err)
	}
	return res.Resources, nil
}

func (p *HTTPStreamable) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	cl, err := p.ensureClient(ctx)
	if err != nil {
		return nil, err
	}
	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri
	res, err := cl.ReadResource(ctx, req)
	if err != nil {
		return nil, classifyUpstreamErr(err)
	}
	return res, nil
}

func (p *HTTPStreamable) ListResourceTemplates(ctx context.Context) ([]mcp.ResourceTemplate, error) {
	cl, err := p.ensureClient(ctx)
	if err != nil {
		return nil, err
	}
	res, err := cl.ListResourceTemplates(ctx, mcp.ListResourceTemplatesRequest{})
	if err != nil {
		return nil, classifyUpstreamErr(err)
	}
	return res.ResourceTemplates, nil
}

func (p *HTTPStreamable) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	cl, err := p.ensureClient(ctx)
	if err != nil {
		return nil, err
	}
	res, err := cl.ListPrompts(ctx, mcp.ListPromptsRequest{})
	if err != nil {
		return nil, classifyUpstreamErr(err)
	}
	return res.Prompts, nil
}

func (p *HTTPStreamable) GetPrompt(ctx context.Context, name string, args map[string]string) (*mcp.GetPromptResult, error) {
	cl, err := p.ensureClient(ctx)
	if err != nil {
		return nil, err
	}
	req := mcp.GetPromptRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := cl.GetPrompt(ctx, req)
	if err != nil {
		return nil, classifyUpstreamErr(err)
	}
	return res, nil
}

// CallStreamable bypasses the MCP client and issues a raw POST to
// {connection_url}/call-tool/{name}, returning the upstream response object
// unchanged (spec §4.1, §6). Redirects are manual per spec §6.
func (p *HTTPStreamable) CallStreamable(ctx context.Context, name string, args map[string]interface{}) (*http.Response, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode streamable args: %w", err)
	}

	url := strings.TrimRight(p.conn.URL, "/") + "/call-tool/" + name
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &gwerrors.TransportError{Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.headers(ctx) {
		req.Header.Set(k, v)
	}

	resp, err := p.httpCl.Do(req)
	if err != nil {
		return nil, &gwerrors.TransportError{Cause: err}
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, &gwerrors.UpstreamAuthError{Status: resp.StatusCode, Message: string(msg)}
	}
	return resp, nil
}

// Release closes the transport. Idempotent; swallows close errors (spec
// §4.1: "release() closes the transport (idempotent, swallows close errors)").
func (p *HTTPStreamable) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil
	}
	p.released = true
	if p.mcpClient != nil {
		_ = p.mcpClient.Close()
	}
	return nil
}

func classifyUpstreamErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "403") || strings.Contains(lower, "forbidden") {
		return &gwerrors.UpstreamAuthError{Message: msg}
	}
	return &gwerrors.UpstreamError{Message: msg}
}
