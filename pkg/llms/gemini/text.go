package gemini

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/logging"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/utils"
	"google.golang.org/genai"
)

func (c *Client) GenerateFreeText(ctx context.Context, prompt string, cfg model.TextConfig) (string, model.GenerationMetadata, error) {
	start := time.Now()
	meta := model.InitMetadata(providerName, cfg.Model)
	defer model.SetLatencyMetadata(meta, start)

	log := logging.NewLogger(ctx)
	err := cfg.Validate()
	if err != nil {
		return "", meta, err
	}
	models, err := c.models(ctx, cfg.ProviderConfig, model.ModalityText)
	if err != nil {
		return "", meta, err
	}

	log.Infof("model=%q temperature=%v prompt_length=%d", cfg.Model, cfg.Temperature, len(prompt))

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(prompt)}, genai.RoleUser),
	}
	config := buildTextConfig(cfg)

	var response *genai.GenerateContentResponse
	err = c.call(ctx, model.ModalityText, meta, func(callCtx context.Context) error {
		var callErr error
		response, callErr = models.GenerateContent(callCtx, cfg.Model, contents, config)
		return callErr
	})
	if err != nil {
		log.Errorf("free text generation failed: %v", err)
		return "", meta, err
	}

	applyGenerateMetadata(meta, response)
	return response.Text(), meta, nil
}

func (c *Client) GenerateStructuredScript(ctx context.Context, topic string, attachments []model.Attachment, cfg model.TextConfig) (model.ComicScript, model.GenerationMetadata, error) {
	start := time.Now()
	meta := model.InitMetadata(providerName, cfg.Model)
	defer model.SetLatencyMetadata(meta, start)

	log := logging.NewLogger(ctx)
	err := cfg.Validate()
	if err != nil {
		return model.ComicScript{}, meta, err
	}
	models, err := c.models(ctx, cfg.ProviderConfig, model.ModalityText)
	if err != nil {
		return model.ComicScript{}, meta, err
	}

	parts, err := buildScriptParts(topic, attachments)
	if err != nil {
		log.Errorf("error: %v", err)
		return model.ComicScript{}, meta, err
	}

	config := buildTextConfig(cfg)
	schema, err := generateJSONSchema[model.ComicScript]()
	if err != nil {
		log.Errorf("error: %v", err)
		return model.ComicScript{}, meta, utils.WrapIfNotNil(err)
	}
	config.ResponseMIMEType = "application/json"
	config.ResponseJsonSchema = schema

	log.Infof("model=%q temperature=%v attachments=%d", cfg.Model, cfg.Temperature, len(attachments))

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	var response *genai.GenerateContentResponse
	err = c.call(ctx, model.ModalityText, meta, func(callCtx context.Context) error {
		var callErr error
		response, callErr = models.GenerateContent(callCtx, cfg.Model, contents, config)
		return callErr
	})
	if err != nil {
		log.Errorf("script generation failed: %v", err)
		return model.ComicScript{}, meta, err
	}
	applyGenerateMetadata(meta, response)

	script, err := model.ParseScript(response.Text())
	if err != nil {
		log.Errorf("script response rejected: %v", err)
		return model.ComicScript{}, meta, utils.WrapIfNotNil(err)
	}
	return script, meta, nil
}

// buildScriptParts inlines every attachment ahead of the system prompt and the topic.
func buildScriptParts(topic string, attachments []model.Attachment) ([]*genai.Part, error) {
	parts := make([]*genai.Part, 0, len(attachments)+2)
	for _, att := range attachments {
		data, err := base64.StdEncoding.DecodeString(att.Data)
		if err != nil {
			return nil, utils.WrapIfNotNil(err, "attachment "+att.Name+" is not valid base64")
		}
		parts = append(parts, genai.NewPartFromBytes(data, att.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(model.ScriptSystemPrompt))
	if userPrompt := model.ScriptUserPrompt(topic); userPrompt != "" {
		parts = append(parts, genai.NewPartFromText(userPrompt))
	}
	return parts, nil
}

func buildTextConfig(cfg model.TextConfig) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature: temperaturePtr(cfg.Temperature),
	}
	if strings.TrimSpace(cfg.SystemInstruction) != "" {
		config.SystemInstruction = genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser)
	}
	return config
}
