package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToolClient struct {
	initializeResult *mcp.InitializeResult
	initializeErr    error
	listToolsResult  *mcp.ListToolsResult
	callToolResult   *mcp.CallToolResult
	callToolErr      error
	closed           bool

	lastCallRequest *mcp.CallToolRequest
}

func (f *fakeToolClient) Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	return f.initializeResult, f.initializeErr
}

func (f *fakeToolClient) ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	return f.listToolsResult, nil
}

func (f *fakeToolClient) CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reqCopy := request
	f.lastCallRequest = &reqCopy
	return f.callToolResult, f.callToolErr
}

func (f *fakeToolClient) Close() error {
	f.closed = true
	return nil
}

func withTools() *mcp.InitializeResult {
	result := &mcp.InitializeResult{}
	result.Capabilities.Tools = &struct {
		ListChanged bool `json:"listChanged,omitempty"`
	}{}
	return result
}

func TestAttachClosesClientWhenInitializeFails(t *testing.T) {
	fake := &fakeToolClient{initializeErr: errors.New("handshake failed")}
	remote := &RemoteTools{}

	err := remote.attach(context.Background(), fake)
	require.Error(t, err)
	assert.True(t, fake.closed)
	assert.Empty(t, remote.Tools())
}

func TestServerWithoutToolCapabilityHasNoTools(t *testing.T) {
	fake := &fakeToolClient{initializeResult: &mcp.InitializeResult{}}
	remote := &RemoteTools{}

	require.NoError(t, remote.attach(context.Background(), fake))
	assert.Empty(t, remote.ToolNames())
}

func TestCallForwardsAuthorizationHeader(t *testing.T) {
	fake := &fakeToolClient{
		initializeResult: withTools(),
		listToolsResult:  &mcp.ListToolsResult{Tools: []mcp.Tool{{Name: ToolGenerateSpeech}}},
		callToolResult:   mcp.NewToolResultText("ok"),
	}
	remote := &RemoteTools{authToken: "Bearer abc"}
	require.NoError(t, remote.attach(context.Background(), fake))

	result, err := remote.Call(context.Background(), ToolGenerateSpeech, map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", ResultText(result))
	require.NotNil(t, fake.lastCallRequest)
	assert.Equal(t, "Bearer abc", fake.lastCallRequest.Header.Get("Authorization"))
	assert.Equal(t, []string{ToolGenerateSpeech}, remote.ToolNames())
}

func TestCallSurfacesToolErrors(t *testing.T) {
	fake := &fakeToolClient{
		initializeResult: withTools(),
		listToolsResult:  &mcp.ListToolsResult{},
		callToolResult:   mcp.NewToolResultError("quota exhausted"),
	}
	remote := &RemoteTools{}
	require.NoError(t, remote.attach(context.Background(), fake))

	result, err := remote.Call(context.Background(), ToolGeneratePanel, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exhausted")
	assert.True(t, result.IsError)
}

func TestCallRequiresConnection(t *testing.T) {
	remote := &RemoteTools{}

	_, err := remote.Call(context.Background(), ToolGeneratePanel, nil)
	assert.Error(t, err)

	_, err = DialRemoteTools(context.Background(), " ", "")
	assert.Error(t, err)
}
