package custom

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/logging"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/utils"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentBlock struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *imageURLBody `json:"image_url,omitempty"`
}

type imageURLBody struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

func (c *Client) GenerateFreeText(ctx context.Context, prompt string, cfg model.TextConfig) (string, model.GenerationMetadata, error) {
	start := time.Now()
	meta := model.InitMetadata(providerName, cfg.Model)
	defer model.SetLatencyMetadata(meta, start)

	err := validateCustom(cfg.ProviderConfig, model.ModalityText)
	if err != nil {
		return "", meta, err
	}
	err = cfg.Validate()
	if err != nil {
		return "", meta, err
	}

	log := logging.NewLogger(ctx)
	log.Infof("model=%q temperature=%v prompt_length=%d", cfg.Model, cfg.Temperature, len(prompt))

	request := chatCompletionRequest{
		Model: cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: firstNonEmpty(cfg.SystemInstruction, model.DefaultFreeTextSystemInstruction)},
			{Role: "user", Content: prompt},
		},
		Temperature: cfg.Temperature,
	}

	text, err := c.chatCompletion(ctx, cfg.ProviderConfig, request, meta)
	if err != nil {
		log.Errorf("free text generation failed: %v", err)
		return "", meta, err
	}
	return text, meta, nil
}

func (c *Client) GenerateStructuredScript(ctx context.Context, topic string, attachments []model.Attachment, cfg model.TextConfig) (model.ComicScript, model.GenerationMetadata, error) {
	start := time.Now()
	meta := model.InitMetadata(providerName, cfg.Model)
	defer model.SetLatencyMetadata(meta, start)

	err := validateCustom(cfg.ProviderConfig, model.ModalityText)
	if err != nil {
		return model.ComicScript{}, meta, err
	}
	err = cfg.Validate()
	if err != nil {
		return model.ComicScript{}, meta, err
	}

	log := logging.NewLogger(ctx)
	userContent, dropped := buildScriptUserContent(topic, attachments)
	meta[model.MetadataKeyDroppedAttachments] = strconv.Itoa(dropped)
	if dropped > 0 {
		log.Warnf("model=%q dropped_attachments=%d non-image attachments were sent as placeholders only", cfg.Model, dropped)
	}
	log.Infof("model=%q temperature=%v attachments=%d", cfg.Model, cfg.Temperature, len(attachments))

	request := chatCompletionRequest{
		Model: cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: firstNonEmpty(cfg.SystemInstruction, model.ScriptSystemPrompt)},
			{Role: "user", Content: userContent},
		},
		Temperature:    cfg.Temperature,
		ResponseFormat: &responseFormat{Type: jsonObjectFormat},
	}

	text, err := c.chatCompletion(ctx, cfg.ProviderConfig, request, meta)
	if err != nil {
		log.Errorf("script generation failed: %v", err)
		return model.ComicScript{}, meta, err
	}

	script, err := model.ParseScript(text)
	if err != nil {
		log.Errorf("script response rejected: %v", err)
		return model.ComicScript{}, meta, utils.WrapIfNotNil(err)
	}
	return script, meta, nil
}

// buildScriptUserContent inlines image attachments and reduces everything else to a text note.
func buildScriptUserContent(topic string, attachments []model.Attachment) ([]contentBlock, int) {
	blocks := []contentBlock{{Type: "text", Text: model.ScriptUserPrompt(topic) + returnOnlyJSONSuffix}}
	dropped := 0
	for _, att := range attachments {
		if att.IsImage() {
			blocks = append(blocks, contentBlock{
				Type:     "image_url",
				ImageURL: &imageURLBody{URL: "data:" + att.MIMEType + ";base64," + att.Data},
			})
			continue
		}
		dropped++
		blocks = append(blocks, contentBlock{Type: "text", Text: fmt.Sprintf(attachmentPlaceholder, att.MIMEType)})
	}
	return blocks, dropped
}

func (c *Client) chatCompletion(ctx context.Context, cfg model.ProviderConfig, request chatCompletionRequest, meta model.GenerationMetadata) (string, error) {
	response, err := c.post(ctx, model.ModalityText, cfg, chatCompletionsSuffix, request)
	if response != nil {
		meta[model.MetadataKeyAPICalls] = strconv.Itoa(response.Attempts)
	}
	if err != nil {
		return "", err
	}

	completion := chatCompletionResponse{}
	err = json.Unmarshal(response.Body, &completion)
	if err != nil {
		return "", &model.ParseError{Reason: "chat completion response is not JSON", Raw: utils.TruncateDiagnostic(string(response.Body)), Err: err}
	}
	applyChatMetadata(meta, completion)

	if len(completion.Choices) == 0 {
		return "", nil
	}
	return completion.Choices[0].Message.Content, nil
}

func applyChatMetadata(meta model.GenerationMetadata, completion chatCompletionResponse) {
	if strings.TrimSpace(completion.ID) != "" {
		meta[model.MetadataKeyResponseID] = completion.ID
	}
	if len(completion.Choices) > 0 && completion.Choices[0].FinishReason != "" {
		meta[model.MetadataKeyResponseStatus] = completion.Choices[0].FinishReason
	}
	if completion.Usage != nil {
		meta[model.MetadataKeyInputTokens] = strconv.FormatInt(completion.Usage.PromptTokens, 10)
		meta[model.MetadataKeyOutputTokens] = strconv.FormatInt(completion.Usage.CompletionTokens, 10)
		meta[model.MetadataKeyTotalTokens] = strconv.FormatInt(completion.Usage.TotalTokens, 10)
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
