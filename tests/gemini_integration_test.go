package tests

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/llms/gemini"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type GeminiIntegrationSuite struct {
	ExternalDependenciesSuite
	apiKey string
	client *gemini.Client
}

func (s *GeminiIntegrationSuite) SetupSuite() {
	s.ExternalDependenciesSuite.SetupSuite()

	s.apiKey = s.RequireSettings("GEMINI_API_KEY")[0]
	s.client = gemini.NewClient(model.WithDefaultCredential(s.apiKey))
}

func (s *GeminiIntegrationSuite) textConfig() model.TextConfig {
	return model.TextConfig{
		ProviderConfig: model.ProviderConfig{
			Provider: model.ProviderManaged,
			BaseURL:  s.Setting("GEMINI_BASE_URL", ""),
			Model:    s.Setting("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		},
		Temperature: 0.7,
	}
}

func (s *GeminiIntegrationSuite) TestFreeText() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	output, metadata, err := s.client.GenerateFreeText(ctx, "Say hello in one short sentence.", s.textConfig())
	require.NoError(s.T(), err)
	assert.NotEmpty(s.T(), strings.TrimSpace(output))
	assert.Equal(s.T(), string(model.ProviderManaged), metadata[model.MetadataKeyProvider])
	assert.NotEmpty(s.T(), metadata[model.MetadataKeyLatencyMs])
}

func (s *GeminiIntegrationSuite) TestStructuredScript() {
	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Second)
	defer cancel()

	script, _, err := s.client.GenerateStructuredScript(ctx, "teach fractions to a 10-year-old", nil, s.textConfig())
	require.NoError(s.T(), err)
	assert.NotEmpty(s.T(), script.Title)
	require.Len(s.T(), script.Panels, 4)
	for _, panel := range script.Panels {
		assert.NotEmpty(s.T(), panel.Description)
	}
}

func (s *GeminiIntegrationSuite) TestSpeech() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	ref, _, err := s.client.GenerateSpeech(ctx, "你好", model.AudioConfig{
		ProviderConfig: model.ProviderConfig{Model: s.Setting("GEMINI_AUDIO_MODEL", "gemini-2.5-flash-preview-tts")},
		Voice:          "Kore",
	})
	require.NoError(s.T(), err)
	require.NotNil(s.T(), ref)
	assert.True(s.T(), model.IsInlinePCM(*ref))
}

func (s *GeminiIntegrationSuite) TestPanelImage() {
	// image generation is billed separately, so it only runs when a model is named
	imageModel := s.RequireSettings("GEMINI_IMAGE_MODEL")[0]
	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Second)
	defer cancel()

	ref, metadata, err := s.client.GenerateImage(ctx, "a cat slicing a pizza in half", model.ImageConfig{
		ProviderConfig: model.ProviderConfig{Model: imageModel},
		Style:          "Classic American Comic Book",
	})
	require.NoError(s.T(), err)
	assert.True(s.T(), strings.HasPrefix(ref, "data:image/"))
	assert.NotEmpty(s.T(), metadata[model.MetadataKeyResponseShape])
}

func TestGeminiIntegrationSuite(t *testing.T) {
	suite.Run(t, new(GeminiIntegrationSuite))
}
