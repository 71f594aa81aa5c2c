package custom

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/logging"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/utils"
)

type imageGenerationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type imageGenerationResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
}

// GenerateImage returns a PNG data URI when the backend sends base64, otherwise the hosted URL.
func (c *Client) GenerateImage(ctx context.Context, description string, cfg model.ImageConfig) (string, model.GenerationMetadata, error) {
	start := time.Now()
	meta := model.InitMetadata(providerName, cfg.Model)
	defer model.SetLatencyMetadata(meta, start)

	err := validateCustom(cfg.ProviderConfig, model.ModalityImage)
	if err != nil {
		return "", meta, err
	}

	prompt := model.PanelImagePrompt(cfg.Style, description)
	log := logging.NewLogger(ctx)
	log.Infof("model=%q size=%s prompt=%q", cfg.Model, imageSize, prompt)

	request := imageGenerationRequest{
		Model:          cfg.Model,
		Prompt:         prompt,
		N:              1,
		Size:           imageSize,
		ResponseFormat: imageResponseFormat,
	}

	response, err := c.post(ctx, model.ModalityImage, cfg.ProviderConfig, imageGenerationsSuffix, request)
	if response != nil {
		meta[model.MetadataKeyAPICalls] = strconv.Itoa(response.Attempts)
	}
	if err != nil {
		log.Errorf("image generation failed: %v", err)
		return "", meta, err
	}

	generated := imageGenerationResponse{}
	err = json.Unmarshal(response.Body, &generated)
	if err != nil {
		return "", meta, &model.ParseError{Reason: "image response is not JSON", Raw: utils.TruncateDiagnostic(string(response.Body)), Err: err}
	}
	if len(generated.Data) == 0 {
		return "", meta, &model.ParseError{Reason: "image response has no data", Raw: utils.TruncateDiagnostic(string(response.Body))}
	}

	first := generated.Data[0]
	if strings.TrimSpace(first.B64JSON) != "" {
		meta[model.MetadataKeyResponseShape] = imageResponseFormat
		return "data:image/png;base64," + first.B64JSON, meta, nil
	}
	if strings.TrimSpace(first.URL) != "" {
		meta[model.MetadataKeyResponseShape] = "url"
		return first.URL, meta, nil
	}
	return "", meta, &model.ParseError{Reason: "image response has neither b64_json nor url"}
}
