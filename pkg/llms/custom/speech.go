package custom

import (
	"context"
	"mime"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/logging"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
)

type speechRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
}

// GenerateSpeech stores the returned audio stream in the blob store and hands back its blob reference.
func (c *Client) GenerateSpeech(ctx context.Context, text string, cfg model.AudioConfig) (*string, model.GenerationMetadata, error) {
	start := time.Now()
	meta := model.InitMetadata(providerName, cfg.Model)
	defer model.SetLatencyMetadata(meta, start)

	if strings.TrimSpace(text) == "" {
		return nil, meta, nil
	}

	err := validateCustom(cfg.ProviderConfig, model.ModalitySpeech)
	if err != nil {
		return nil, meta, err
	}

	voice := firstNonEmpty(cfg.Voice, defaultVoice)
	log := logging.NewLogger(ctx)
	log.Infof("model=%q voice=%q input_length=%d", cfg.Model, voice, len(text))

	response, err := c.post(ctx, model.ModalitySpeech, cfg.ProviderConfig, audioSpeechSuffix, speechRequest{
		Model: cfg.Model,
		Input: text,
		Voice: voice,
	})
	if response != nil {
		meta[model.MetadataKeyAPICalls] = strconv.Itoa(response.Attempts)
	}
	if err != nil {
		log.Errorf("speech generation failed: %v", err)
		return nil, meta, err
	}
	if len(response.Body) == 0 {
		return nil, meta, &model.RemoteError{Modality: model.ModalitySpeech, Provider: providerName, Body: "empty audio response"}
	}

	ref := c.blobs.Put(response.Body, audioMIMEType(response.ContentType))
	meta[model.MetadataKeyAudioBytes] = strconv.Itoa(len(response.Body))
	return &ref, meta, nil
}

func audioMIMEType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "audio/") {
		return defaultAudioMIMEType
	}
	return mediaType
}
