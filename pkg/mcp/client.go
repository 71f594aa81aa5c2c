package mcp

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/utils"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

type toolClient interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// RemoteTools talks to a comicforge tool server running elsewhere over streamable HTTP.
type RemoteTools struct {
	serverURL string
	authToken string

	mu     sync.RWMutex
	client toolClient
	tools  []mcp.Tool
}

func DialRemoteTools(ctx context.Context, serverURL string, authToken string) (*RemoteTools, error) {
	if strings.TrimSpace(serverURL) == "" {
		return nil, utils.WrapIfNotNil(errors.New("serverURL is required"))
	}

	headers := map[string]string{}
	if authToken != "" {
		headers["Authorization"] = authToken
	}
	httpTransport, err := transport.NewStreamableHTTP(serverURL, transport.WithHTTPHeaders(headers))
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	r := &RemoteTools{serverURL: serverURL, authToken: authToken}
	if err := r.attach(ctx, client.NewClient(httpTransport)); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RemoteTools) attach(ctx context.Context, c toolClient) error {
	tools, err := initializeAndListTools(ctx, c)
	if err != nil {
		_ = c.Close()
		return utils.WrapIfNotNil(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.client = c
	r.tools = tools
	return nil
}

func (r *RemoteTools) Tools() []mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]mcp.Tool(nil), r.tools...)
}

func (r *RemoteTools) ToolNames() []string {
	tools := r.Tools()
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	return names
}

// Call runs one tool. A result flagged IsError is returned as an error carrying its text.
func (r *RemoteTools) Call(ctx context.Context, toolName string, args map[string]any) (*mcp.CallToolResult, error) {
	r.mu.RLock()
	c := r.client
	r.mu.RUnlock()

	if c == nil {
		return nil, utils.WrapIfNotNil(errors.New("mcp client is not connected"))
	}
	if strings.TrimSpace(toolName) == "" {
		return nil, utils.WrapIfNotNil(errors.New("toolName is required"))
	}

	request := mcp.CallToolRequest{
		Header: http.Header{},
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
	if r.authToken != "" {
		request.Header.Set("Authorization", r.authToken)
	}

	result, err := c.CallTool(ctx, request)
	if err != nil {
		return nil, utils.WrapIfNotNil(err, toolName)
	}
	if result == nil {
		return nil, utils.WrapIfNotNil(errors.New("nil call tool result"), toolName)
	}
	if result.IsError {
		return result, utils.WrapIfNotNil(errors.New(ResultText(result)), toolName)
	}
	return result, nil
}

func (r *RemoteTools) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.client != nil {
		err = r.client.Close()
	}
	r.client = nil
	r.tools = nil
	return utils.WrapIfNotNil(err)
}

// ResultText joins the text parts of a tool result.
func ResultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	parts := make([]string, 0, len(result.Content))
	for _, content := range result.Content {
		if text, ok := mcp.AsTextContent(content); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func initializeAndListTools(ctx context.Context, c toolClient) ([]mcp.Tool, error) {
	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "comicforge remote tools",
		Version: ServerVersion,
	}
	initRequest.Params.Capabilities = mcp.ClientCapabilities{}

	serverInfo, err := c.Initialize(ctx, initRequest)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	if serverInfo == nil || serverInfo.Capabilities.Tools == nil {
		return nil, nil
	}

	toolsResult, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	if toolsResult == nil {
		return nil, nil
	}
	return toolsResult.Tools, nil
}
