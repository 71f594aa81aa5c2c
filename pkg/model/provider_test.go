package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ProviderConfigSuite struct {
	suite.Suite
}

func TestProviderConfigSuite(t *testing.T) {
	suite.Run(t, new(ProviderConfigSuite))
}

func (s *ProviderConfigSuite) TestEmptyProviderResolvesToManaged() {
	provider, err := ProviderConfig{}.ResolveProvider(ModalityText)
	s.Require().NoError(err)
	s.Equal(ProviderManaged, provider)
}

func (s *ProviderConfigSuite) TestGeminiAliasResolvesToManaged() {
	provider, err := ProviderConfig{Provider: "Gemini"}.ResolveProvider(ModalityText)
	s.Require().NoError(err)
	s.Equal(ProviderManaged, provider)
}

func (s *ProviderConfigSuite) TestUnknownProviderIsConfigurationError() {
	err := ProviderConfig{Provider: "bedrock"}.Validate(ModalityImage)

	s.Require().Error(err)
	s.True(IsConfigurationError(err))
}

func (s *ProviderConfigSuite) TestCustomProviderListsMissingFields() {
	err := ImageConfig{
		ProviderConfig: ProviderConfig{Provider: ProviderCustom, BaseURL: "https://api.example.com/v1", Model: "dall-e-3"},
		Style:          "noir",
	}.Validate()

	s.Require().Error(err)
	var cfgErr *ConfigurationError
	s.Require().True(errors.As(err, &cfgErr))
	s.Equal(ModalityImage, cfgErr.Modality)
	s.Equal([]string{"api_key"}, cfgErr.Missing)
	s.Contains(err.Error(), "missing: api_key")
}

func (s *ProviderConfigSuite) TestManagedProviderNeedsNoCustomFields() {
	s.NoError(AudioConfig{ProviderConfig: ProviderConfig{Model: "gemini-2.5-flash-preview-tts"}}.Validate())
}

func (s *ProviderConfigSuite) TestTemperatureOutOfRange() {
	cfg := TextConfig{ProviderConfig: ProviderConfig{Model: "gemini-2.5-flash"}, Temperature: 2.5}

	err := cfg.Validate()

	s.Require().Error(err)
	s.True(IsConfigurationError(err))
	s.Contains(err.Error(), "temperature")
}

func (s *ProviderConfigSuite) TestUnknownResponseShape() {
	err := ImageConfig{ResponseShape: "sideways"}.Validate()

	s.Require().Error(err)
	s.True(IsConfigurationError(err))
}
