package mcp

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/attachment"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/blobstore"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/export"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/logging"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/optimizer"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ServerName    = "comicforge"
	ServerVersion = "1.0.0"

	ToolGenerateScript   = "generate_comic_script"
	ToolGeneratePanel    = "generate_panel_image"
	ToolGenerateSpeech   = "generate_speech"
	ToolOptimizeMetadata = "optimize_video_metadata"

	EndpointPath = "/mcp"
	MetricsPath  = "/metrics"

	// NoAudioText is the speech tool's answer when the backend produced no audio.
	NoAudioText = "no audio: nothing to narrate or narration failed"
)

// Generators is the adapter surface the tools call into. media.Adapters satisfies it.
type Generators interface {
	GenerateFreeText(ctx context.Context, prompt string, cfg model.TextConfig) (string, model.GenerationMetadata, error)
	GenerateStructuredScript(ctx context.Context, topic string, attachments []model.Attachment, cfg model.TextConfig) (model.ComicScript, model.GenerationMetadata, error)
	GeneratePanelImage(ctx context.Context, description string, cfg model.ImageConfig) (string, model.GenerationMetadata, error)
	GenerateSpeech(ctx context.Context, text string, cfg model.AudioConfig) (*string, model.GenerationMetadata, error)
}

type BlobResolver interface {
	Get(ref string) (blobstore.Blob, bool)
}

type Defaults struct {
	Text  model.TextConfig
	Image model.ImageConfig
	Audio model.AudioConfig
	// Optimizer is the text config for metadata optimization; an empty system instruction gets the optimizer default.
	Optimizer model.TextConfig
}

type ScriptResult struct {
	Title              string        `json:"title"`
	Panels             []model.Panel `json:"panels"`
	DroppedAttachments int           `json:"dropped_attachments,omitempty"`
}

// Server exposes comic generation as MCP tools.
type Server struct {
	generators Generators
	defaults   Defaults
	encoder    *attachment.Encoder
	blobs      BlobResolver
	optimizer  *optimizer.Optimizer
	mcpServer  *server.MCPServer
}

type ServerOption func(*Server)

func WithEncoder(encoder *attachment.Encoder) ServerOption {
	return func(s *Server) {
		s.encoder = encoder
	}
}

func WithBlobs(blobs BlobResolver) ServerOption {
	return func(s *Server) {
		s.blobs = blobs
	}
}

func NewServer(generators Generators, defaults Defaults, opts ...ServerOption) *Server {
	s := &Server{
		generators: generators,
		defaults:   defaults,
		encoder:    attachment.NewEncoder(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.optimizer = optimizer.New(generators, defaults.Optimizer)

	s.mcpServer = server.NewMCPServer(ServerName, ServerVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.mcpServer.AddTool(mcp.NewTool(ToolGenerateScript,
		mcp.WithDescription("Write a four-panel educational comic script as JSON"),
		mcp.WithString("topic", mcp.Description("What the comic should teach")),
		mcp.WithArray("files", mcp.Description("Local image, PDF, text or Markdown files to use as reference"), mcp.WithStringItems()),
	), s.handleScript)
	s.mcpServer.AddTool(mcp.NewTool(ToolGeneratePanel,
		mcp.WithDescription("Draw one comic panel from its visual description"),
		mcp.WithString("description", mcp.Required(), mcp.Description("English visual description of the panel")),
		mcp.WithString("style", mcp.Description("Art style, for example Manga")),
	), s.handlePanel)
	s.mcpServer.AddTool(mcp.NewTool(ToolGenerateSpeech,
		mcp.WithDescription("Narrate a line of panel dialogue"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Dialogue to speak")),
		mcp.WithString("voice", mcp.Description("Backend specific voice name")),
	), s.handleSpeech)
	s.mcpServer.AddTool(mcp.NewTool(ToolOptimizeMetadata,
		mcp.WithDescription("Polish a video title and description for Bilibili, Douyin and Kuaishou"),
		mcp.WithString("title", mcp.Description("Current title")),
		mcp.WithString("description", mcp.Description("Current description")),
	), s.handleOptimize)
	return s
}

func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio blocks until stdin closes or the process is signalled.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// Handler serves the tools over streamable HTTP, plus a metrics page when a registry is given.
func (s *Server) Handler(registry *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(EndpointPath, server.NewStreamableHTTPServer(s.mcpServer))
	if registry != nil {
		mux.Handle(MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	return mux
}

func (s *Server) handleScript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic := request.GetString("topic", "")
	files := request.GetStringSlice("files", nil)
	if strings.TrimSpace(topic) == "" && len(files) == 0 {
		return mcp.NewToolResultError("topic or files is required"), nil
	}

	attachments := make([]model.Attachment, 0, len(files))
	for _, file := range files {
		encoded, err := s.encoder.FromFile(file)
		if err != nil {
			return mcp.NewToolResultErrorFromErr("cannot attach "+file, err), nil
		}
		attachments = append(attachments, encoded)
	}

	script, meta, err := s.generators.GenerateStructuredScript(ctx, topic, attachments, s.defaults.Text)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("script generation failed", err), nil
	}

	result, err := mcp.NewToolResultJSON(ScriptResult{
		Title:              script.Title,
		Panels:             script.Panels,
		DroppedAttachments: meta.Int(model.MetadataKeyDroppedAttachments),
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Server) handlePanel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	description, err := request.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cfg := s.defaults.Image
	if style := request.GetString("style", ""); style != "" {
		cfg.Style = style
	}

	ref, _, err := s.generators.GeneratePanelImage(ctx, description, cfg)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("image generation failed", err), nil
	}
	if ref == model.PlaceholderImage {
		return mcp.NewToolResultError("image generation failed, placeholder returned: " + ref), nil
	}
	if !strings.HasPrefix(ref, "data:") {
		return mcp.NewToolResultText(ref), nil
	}

	mimeType, data, err := model.DecodeDataURI(ref)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("unreadable image", err), nil
	}
	return mcp.NewToolResultImage(fmt.Sprintf("panel image (%s)", mimeType), base64.StdEncoding.EncodeToString(data), mimeType), nil
}

func (s *Server) handleSpeech(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cfg := s.defaults.Audio
	if voice := request.GetString("voice", ""); voice != "" {
		cfg.Voice = voice
	}

	ref, _, err := s.generators.GenerateSpeech(ctx, text, cfg)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("speech generation failed", err), nil
	}
	if ref == nil {
		return mcp.NewToolResultText(NoAudioText), nil
	}

	switch {
	case model.IsInlinePCM(*ref):
		pcm, err := model.DecodeInlinePCM(*ref)
		if err != nil {
			return mcp.NewToolResultErrorFromErr("unreadable audio", err), nil
		}
		wav, err := export.EncodeWAV(pcm, export.PCMSampleRate, export.PCMChannels)
		if err != nil {
			return mcp.NewToolResultErrorFromErr("audio encoding failed", err), nil
		}
		return mcp.NewToolResultAudio("narration", base64.StdEncoding.EncodeToString(wav), "audio/wav"), nil
	case model.IsBlobReference(*ref) && s.blobs != nil:
		blob, ok := s.blobs.Get(*ref)
		if !ok {
			return mcp.NewToolResultError("audio expired before it could be returned"), nil
		}
		return mcp.NewToolResultAudio("narration", base64.StdEncoding.EncodeToString(blob.Data), blob.MIMEType), nil
	default:
		logging.NewLogger(ctx).Warnf("speech reference cannot be inlined ref=%.16s", *ref)
		return mcp.NewToolResultText(*ref), nil
	}
}

func (s *Server) handleOptimize(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	current := optimizer.VideoMetadata{
		Title:       request.GetString("title", ""),
		Description: request.GetString("description", ""),
	}

	optimized, err := s.optimizer.Optimize(ctx, current)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("optimization failed", err), nil
	}
	result, err := mcp.NewToolResultJSON(optimized)
	if err != nil {
		return nil, err
	}
	return result, nil
}
