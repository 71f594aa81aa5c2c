package gemini

import (
	"context"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/logging"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
	"google.golang.org/genai"
)

// ResolveResponseShape returns the configured shape, or infers it from the model name when left on auto.
func ResolveResponseShape(cfg model.ImageConfig) model.ResponseShape {
	if cfg.ResponseShape != model.ResponseShapeAuto {
		return cfg.ResponseShape
	}
	if strings.Contains(strings.ToLower(cfg.Model), imagenModelMarker) {
		return model.ResponseShapeImagen
	}
	return model.ResponseShapeNative
}

func (c *Client) GenerateImage(ctx context.Context, description string, cfg model.ImageConfig) (string, model.GenerationMetadata, error) {
	start := time.Now()
	meta := model.InitMetadata(providerName, cfg.Model)
	defer model.SetLatencyMetadata(meta, start)

	log := logging.NewLogger(ctx)
	err := cfg.Validate()
	if err != nil {
		return "", meta, err
	}
	models, err := c.models(ctx, cfg.ProviderConfig, model.ModalityImage)
	if err != nil {
		return "", meta, err
	}

	prompt := model.PanelImagePrompt(cfg.Style, description)
	shape := ResolveResponseShape(cfg)
	meta[model.MetadataKeyResponseShape] = string(shape)
	log.Infof("model=%q shape=%s prompt=%q", cfg.Model, shape, prompt)

	var ref string
	if shape == model.ResponseShapeImagen {
		ref, err = c.generateImagen(ctx, models, prompt, cfg, meta)
	} else {
		ref, err = c.generateNative(ctx, models, prompt, cfg, meta)
	}
	if err != nil {
		log.Errorf("image generation failed: %v", err)
		return "", meta, err
	}
	return ref, meta, nil
}

func (c *Client) generateImagen(ctx context.Context, models modelsAPI, prompt string, cfg model.ImageConfig, meta model.GenerationMetadata) (string, error) {
	config := &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    imageAspectRatio,
		OutputMIMEType: imagenOutputMIMEType,
	}

	var response *genai.GenerateImagesResponse
	err := c.call(ctx, model.ModalityImage, meta, func(callCtx context.Context) error {
		var callErr error
		response, callErr = models.GenerateImages(callCtx, cfg.Model, prompt, config)
		return callErr
	})
	if err != nil {
		return "", err
	}

	if response == nil || len(response.GeneratedImages) == 0 || response.GeneratedImages[0] == nil ||
		response.GeneratedImages[0].Image == nil || len(response.GeneratedImages[0].Image.ImageBytes) == 0 {
		return "", &model.ParseError{Reason: "no image bytes returned from imagen"}
	}
	return model.ImageDataURI(imagenOutputMIMEType, response.GeneratedImages[0].Image.ImageBytes), nil
}

func (c *Client) generateNative(ctx context.Context, models modelsAPI, prompt string, cfg model.ImageConfig, meta model.GenerationMetadata) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(prompt)}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{
			AspectRatio: imageAspectRatio,
			ImageSize:   nativeImageSize,
		},
	}

	var response *genai.GenerateContentResponse
	err := c.call(ctx, model.ModalityImage, meta, func(callCtx context.Context) error {
		var callErr error
		response, callErr = models.GenerateContent(callCtx, cfg.Model, contents, config)
		return callErr
	})
	if err != nil {
		return "", err
	}
	applyGenerateMetadata(meta, response)

	blob := firstInlineData(response)
	if blob == nil {
		return "", &model.ParseError{Reason: "no image data in gemini response"}
	}
	mimeType := blob.MIMEType
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = nativeDefaultImageMIME
	}
	return model.ImageDataURI(mimeType, blob.Data), nil
}
