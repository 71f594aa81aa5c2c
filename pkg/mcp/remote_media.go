package mcp

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/logging"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/utils"
	"github.com/mark3labs/mcp-go/mcp"
)

// RemoteProvider labels metadata for media produced by a remote tool server.
const RemoteProvider model.Provider = "mcp"

// RemoteMedia draws panels and narrates dialogue through a comicforge tool server, so a
// pipeline can render against a shared server instead of its own backend credentials.
// Failures fall back to the placeholder image and silent audio; only cancellation of the
// caller's context is returned as an error.
type RemoteMedia struct {
	tools *RemoteTools
	blobs model.BlobStore
}

// NewRemoteMedia keeps returned audio bytes in blobs and hands out their blob: references.
func NewRemoteMedia(tools *RemoteTools, blobs model.BlobStore) *RemoteMedia {
	return &RemoteMedia{tools: tools, blobs: blobs}
}

func (m *RemoteMedia) GeneratePanelImage(ctx context.Context, description string, cfg model.ImageConfig) (string, model.GenerationMetadata, error) {
	start := time.Now()
	meta := model.InitMetadata(RemoteProvider, ToolGeneratePanel)
	defer model.SetLatencyMetadata(meta, start)

	args := map[string]any{"description": description}
	if strings.TrimSpace(cfg.Style) != "" {
		args["style"] = cfg.Style
	}

	result, err := m.tools.Call(ctx, ToolGeneratePanel, args)
	if err != nil {
		if ctx.Err() != nil {
			return "", meta, utils.WrapIfNotNil(ctx.Err())
		}
		logging.NewLogger(ctx).Warnf("remote panel image failed, using placeholder: %v", err)
		return model.PlaceholderImage, meta, nil
	}

	for _, content := range result.Content {
		if image, ok := mcp.AsImageContent(content); ok {
			return "data:" + image.MIMEType + ";base64," + image.Data, meta, nil
		}
	}
	if url := strings.TrimSpace(ResultText(result)); url != "" {
		return url, meta, nil
	}
	return model.PlaceholderImage, meta, nil
}

func (m *RemoteMedia) GenerateSpeech(ctx context.Context, text string, cfg model.AudioConfig) (*string, model.GenerationMetadata, error) {
	start := time.Now()
	meta := model.InitMetadata(RemoteProvider, ToolGenerateSpeech)
	defer model.SetLatencyMetadata(meta, start)

	if strings.TrimSpace(text) == "" {
		return nil, meta, nil
	}

	args := map[string]any{"text": text}
	if strings.TrimSpace(cfg.Voice) != "" {
		args["voice"] = cfg.Voice
	}

	log := logging.NewLogger(ctx)
	result, err := m.tools.Call(ctx, ToolGenerateSpeech, args)
	if err != nil {
		if ctx.Err() != nil {
			return nil, meta, utils.WrapIfNotNil(ctx.Err())
		}
		log.Warnf("remote speech failed, continuing without audio: %v", err)
		return nil, meta, nil
	}

	for _, content := range result.Content {
		audio, ok := mcp.AsAudioContent(content)
		if !ok {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(audio.Data)
		if err != nil {
			log.Warnf("remote speech was not valid base64, continuing without audio: %v", err)
			return nil, meta, nil
		}
		ref := m.blobs.Put(data, audio.MIMEType)
		return &ref, meta, nil
	}

	reply := strings.TrimSpace(ResultText(result))
	if reply == "" || reply == NoAudioText {
		return nil, meta, nil
	}
	return &reply, meta, nil
}
