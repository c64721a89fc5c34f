// Package mcp implements a Model Context Protocol client over the
// Streamable-HTTP transport and exposes it as a tool.Provider. It speaks the
// subset needed by the pipeline: initialize, tools/list (with pagination)
// and tools/call. Responses may arrive as plain JSON or as an SSE stream.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/ghwhisper/core"
	"github.com/hupe1980/ghwhisper/logging"
	"github.com/hupe1980/ghwhisper/tool"
)

// DefaultURL is the hosted GitHub MCP endpoint.
const DefaultURL = "https://api.githubcopilot.com/mcp/"

// DefaultToolsets is the toolset selection requested from the GitHub server.
var DefaultToolsets = []string{
	"repos", "issues", "actions", "discussions", "notifications",
	"pull_requests", "users", "projects",
}

const sessionHeader = "Mcp-Session-Id"

// errSessionExpired marks a 404 for a request carrying a session id.
var errSessionExpired = errors.New("mcp session expired")

// Options configure a Client.
type Options struct {
	URL        string
	Token      string
	Toolsets   []string
	Readonly   bool
	Headers    map[string]string
	HTTPClient *http.Client
	Logger     logging.Logger
	ClientName string
	Version    string
}

// Client is an MCP Streamable-HTTP client for one server. It is safe for
// concurrent use; the session is established lazily on first use.
type Client struct {
	opts Options

	mu        sync.Mutex
	sessionID string
	connected bool

	idSeq atomic.Int64
}

var _ tool.Provider = (*Client)(nil)

// NewClient creates a client with GitHub defaults.
func NewClient(optFns ...func(o *Options)) *Client {
	opts := Options{
		URL:        DefaultURL,
		Toolsets:   DefaultToolsets,
		Readonly:   true,
		HTTPClient: &http.Client{},
		Logger:     logging.NoOpLogger{},
		ClientName: "ghwhisper",
		Version:    "1.0.0",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &Client{opts: opts}
}

// SessionID returns the server-assigned session id, if any.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Connect performs the initialize handshake if it has not happened yet.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	c.sessionID = ""
	params := initializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    json.RawMessage(`{}`),
		ClientInfo:      implementation{Name: c.opts.ClientName, Version: c.opts.Version},
	}

	resp, headers, err := c.roundTrip(ctx, "", "initialize", params, true)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if sid := headers.Get(sessionHeader); sid != "" {
		c.sessionID = sid
	}
	if resp == nil {
		return fmt.Errorf("initialize: empty response")
	}
	if resp.Error != nil {
		return fmt.Errorf("initialize: %w", resp.Error)
	}

	var result initializeResult
	if err := json.Unmarshal(resp.Result, &result); err == nil {
		c.opts.Logger.Info("mcp.session.initialized",
			"server", result.ServerInfo.Name,
			"protocol", result.ProtocolVersion,
			"session", c.sessionID != "",
		)
	}

	if _, _, err := c.roundTrip(ctx, c.sessionID, "notifications/initialized", nil, false); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}
	c.connected = true
	return nil
}

// call sends a request on the current session, reconnecting once when the
// server reports the session as gone.
func (c *Client) call(ctx context.Context, method string, params any) (*rpcResponse, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	resp, _, err := c.roundTrip(ctx, c.SessionID(), method, params, true)
	if errors.Is(err, errSessionExpired) {
		c.opts.Logger.Warn("mcp.session.expired", "method", method)
		c.mu.Lock()
		c.connected = false
		err = c.connectLocked(ctx)
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}
		resp, _, err = c.roundTrip(ctx, c.SessionID(), method, params, true)
	}
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("%s: empty response", method)
	}
	return resp, nil
}

// ListTools implements tool.Provider, following pagination cursors.
func (c *Client) ListTools(ctx context.Context) ([]core.ToolDescriptor, error) {
	var (
		descs  []core.ToolDescriptor
		cursor string
	)
	for {
		var params any
		if cursor != "" {
			params = toolsListParams{Cursor: cursor}
		}
		resp, err := c.call(ctx, "tools/list", params)
		if err != nil {
			return nil, fmt.Errorf("tools/list: %w", err)
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("tools/list: %w", resp.Error)
		}
		var result toolsListResult
		if err := json.Unmarshal(resp.Result, &result); err != nil {
			return nil, fmt.Errorf("unmarshal tools/list: %w", err)
		}
		for _, t := range result.Tools {
			descs = append(descs, core.ToolDescriptor{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: t.InputSchema,
			})
		}
		if result.NextCursor == "" || result.NextCursor == cursor {
			break
		}
		cursor = result.NextCursor
	}
	c.opts.Logger.Info("mcp.tools.listed", "count", len(descs))
	return descs, nil
}

// Invoke implements tool.Provider. A single text content item is returned as
// a string; several items are returned as a list of objects. Results flagged
// isError become errors carrying the server's text.
func (c *Client) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	resp, err := c.call(ctx, "tools/call", toolsCallParams{Name: name, Arguments: args})
	if err != nil {
		return nil, tool.NewToolError(name, err.Error(), tool.CodeExecution)
	}
	if resp.Error != nil {
		code := tool.CodeExecution
		if tool.IsSchemaMismatch(resp.Error) {
			code = tool.CodeSchemaMismatch
		}
		return nil, tool.NewToolError(name, resp.Error.Error(), code)
	}

	var result toolsCallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, tool.NewToolError(name, fmt.Sprintf("unmarshal tools/call: %v", err), tool.CodeExecution)
	}
	if result.IsError {
		msg := joinText(result.Content)
		code := tool.CodeExecution
		if strings.Contains(msg, tool.SchemaMismatchMarker) {
			code = tool.CodeSchemaMismatch
		}
		return nil, tool.NewToolError(name, msg, code)
	}
	return contentValue(result), nil
}

func joinText(items []contentItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		if it.Text != "" {
			parts = append(parts, it.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func contentValue(r toolsCallResult) any {
	switch len(r.Content) {
	case 0:
		if len(r.StructuredContent) > 0 {
			return json.RawMessage(r.StructuredContent)
		}
		return map[string]any{}
	case 1:
		if r.Content[0].Type == "text" || r.Content[0].Text != "" {
			return r.Content[0].Text
		}
		return r.Content[0]
	}
	items := make([]any, 0, len(r.Content))
	for _, it := range r.Content {
		if it.Text != "" {
			items = append(items, map[string]any{"text": it.Text})
			continue
		}
		items = append(items, it)
	}
	return items
}

// Close terminates the MCP session.
func (c *Client) Close() error {
	c.mu.Lock()
	sid := c.sessionID
	c.sessionID = ""
	c.connected = false
	c.mu.Unlock()
	if sid == "" {
		return nil
	}

	req, err := http.NewRequest(http.MethodDelete, c.opts.URL, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req, sid)

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) setHeaders(req *http.Request, sessionID string) {
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	if len(c.opts.Toolsets) > 0 {
		req.Header.Set("X-MCP-Toolsets", strings.Join(c.opts.Toolsets, ","))
	}
	if c.opts.Readonly {
		req.Header.Set("X-MCP-Readonly", "true")
	}
	for k, v := range c.opts.Headers {
		req.Header.Set(k, v)
	}
	if sessionID != "" {
		req.Header.Set(sessionHeader, sessionID)
	}
}

// nextID returns a monotonically increasing JSON-RPC request ID.
func (c *Client) nextID() json.RawMessage {
	return json.RawMessage(fmt.Sprintf("%d", c.idSeq.Add(1)))
}

// roundTrip posts one JSON-RPC message. Notifications (withID false) return
// a nil response.
func (c *Client) roundTrip(ctx context.Context, sessionID, method string, params any, withID bool) (*rpcResponse, http.Header, error) {
	req := rpcRequest{JSONRPC: "2.0", Method: method}
	if withID {
		req.ID = c.nextID()
	}
	if params != nil {
		p, err := json.Marshal(params)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = p
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.URL, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	c.setHeaders(httpReq, sessionID)

	resp, err := c.opts.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && sessionID != "" {
		return nil, resp.Header, errSessionExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, resp.Header, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if !withID {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.Header, nil
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		rpcResp, err := readSSEResponse(resp.Body, req.ID)
		return rpcResp, resp.Header, err
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.Header, fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil, resp.Header, nil
	}
	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, resp.Header, fmt.Errorf("unmarshal response: %w", err)
	}
	return &rpcResp, resp.Header, nil
}

// readSSEResponse scans an event stream for the JSON-RPC response whose id
// matches. Server requests and notifications on the stream are skipped.
func readSSEResponse(r io.Reader, id json.RawMessage) (*rpcResponse, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var data strings.Builder
	dispatch := func() (*rpcResponse, bool) {
		defer data.Reset()
		if data.Len() == 0 {
			return nil, false
		}
		var resp rpcResponse
		if err := json.Unmarshal([]byte(data.String()), &resp); err != nil {
			return nil, false
		}
		if bytes.Equal(bytes.TrimSpace(resp.ID), bytes.TrimSpace(id)) {
			return &resp, true
		}
		return nil, false
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if resp, ok := dispatch(); ok {
				return resp, nil
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event stream: %w", err)
	}
	if resp, ok := dispatch(); ok {
		return resp, nil
	}
	return nil, fmt.Errorf("event stream ended without response")
}
