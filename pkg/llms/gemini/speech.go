package gemini

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/logging"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
	"google.golang.org/genai"
)

// GenerateSpeech returns the raw PCM the model produced behind the base64: marker.
func (c *Client) GenerateSpeech(ctx context.Context, text string, cfg model.AudioConfig) (*string, model.GenerationMetadata, error) {
	start := time.Now()
	meta := model.InitMetadata(providerName, cfg.Model)
	defer model.SetLatencyMetadata(meta, start)

	if strings.TrimSpace(text) == "" {
		return nil, meta, nil
	}

	log := logging.NewLogger(ctx)
	err := cfg.Validate()
	if err != nil {
		return nil, meta, err
	}
	models, err := c.models(ctx, cfg.ProviderConfig, model.ModalitySpeech)
	if err != nil {
		return nil, meta, err
	}

	voice := strings.TrimSpace(cfg.Voice)
	if voice == "" {
		voice = defaultVoice
	}
	log.Infof("model=%q voice=%q input_length=%d", cfg.Model, voice, len(text))

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(text)}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}

	var response *genai.GenerateContentResponse
	err = c.call(ctx, model.ModalitySpeech, meta, func(callCtx context.Context) error {
		var callErr error
		response, callErr = models.GenerateContent(callCtx, cfg.Model, contents, config)
		return callErr
	})
	if err != nil {
		log.Errorf("speech generation failed: %v", err)
		return nil, meta, err
	}
	applyGenerateMetadata(meta, response)

	blob := firstInlineData(response)
	if blob == nil {
		return nil, meta, &model.ParseError{Reason: "no audio data in gemini response"}
	}
	meta[model.MetadataKeyAudioBytes] = strconv.Itoa(len(blob.Data))
	ref := model.InlinePCMReference(blob.Data)
	return &ref, meta, nil
}
