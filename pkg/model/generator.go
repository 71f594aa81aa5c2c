package model

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// TextGenerator is implemented once per backend.
type TextGenerator interface {
	GenerateFreeText(ctx context.Context, prompt string, cfg TextConfig) (string, GenerationMetadata, error)
	GenerateStructuredScript(ctx context.Context, topic string, attachments []Attachment, cfg TextConfig) (ComicScript, GenerationMetadata, error)
}

type ImageGenerator interface {
	GenerateImage(ctx context.Context, description string, cfg ImageConfig) (string, GenerationMetadata, error)
}

// SpeechGenerator returns an audio reference, or nil when there is nothing to narrate.
type SpeechGenerator interface {
	GenerateSpeech(ctx context.Context, text string, cfg AudioConfig) (*string, GenerationMetadata, error)
}

type GenerationMetadata map[string]string

const (
	MetadataKeyProvider           = "provider"
	MetadataKeyModel              = "model"
	MetadataKeyLatencyMs          = "latency_ms"
	MetadataKeyInputTokens        = "input_tokens"
	MetadataKeyOutputTokens       = "output_tokens"
	MetadataKeyTotalTokens        = "total_tokens"
	MetadataKeyAPICalls           = "api_calls"
	MetadataKeyResponseID         = "response_id"
	MetadataKeyResponseStatus     = "response_status"
	MetadataKeyResponseShape      = "response_shape"
	MetadataKeyDroppedAttachments = "dropped_attachments"
	MetadataKeyAudioBytes         = "audio_bytes"
)

func InitMetadata(provider Provider, modelName string) GenerationMetadata {
	if strings.TrimSpace(modelName) == "" {
		modelName = "unknown"
	}

	return GenerationMetadata{
		MetadataKeyProvider: string(provider),
		MetadataKeyModel:    modelName,
	}
}

func SetLatencyMetadata(meta GenerationMetadata, start time.Time) {
	if meta == nil {
		return
	}
	meta[MetadataKeyLatencyMs] = strconv.FormatInt(time.Since(start).Milliseconds(), 10)
}

// Int reads an integer entry, returning 0 when absent or malformed.
func (m GenerationMetadata) Int(key string) int {
	if m == nil {
		return 0
	}
	value, err := strconv.Atoi(m[key])
	if err != nil {
		return 0
	}
	return value
}
