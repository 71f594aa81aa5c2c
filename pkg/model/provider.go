package model

import (
	"strings"
)

type Provider string

const (
	ProviderManaged Provider = "managed"
	ProviderCustom  Provider = "custom"
)

// The original front end called the managed backend "gemini"; accept it as an alias.
const providerManagedAlias Provider = "gemini"

type Modality string

const (
	ModalityText   Modality = "text"
	ModalityImage  Modality = "image"
	ModalitySpeech Modality = "speech"
)

// ResponseShape selects which managed image call is used.
type ResponseShape string

const (
	ResponseShapeAuto   ResponseShape = ""
	ResponseShapeImagen ResponseShape = "imagen"
	ResponseShapeNative ResponseShape = "native"
)

const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
)

type ProviderConfig struct {
	Provider Provider `yaml:"provider" json:"provider"`
	BaseURL  string   `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	APIKey   string   `yaml:"api_key,omitempty" json:"-"`
	Model    string   `yaml:"model" json:"model"`
}

type TextConfig struct {
	ProviderConfig    `yaml:",inline"`
	Temperature       float64 `yaml:"temperature" json:"temperature"`
	SystemInstruction string  `yaml:"system_instruction,omitempty" json:"system_instruction,omitempty"`
}

type ImageConfig struct {
	ProviderConfig `yaml:",inline"`
	Style          string        `yaml:"style" json:"style"`
	ResponseShape  ResponseShape `yaml:"response_shape,omitempty" json:"response_shape,omitempty"`
}

type AudioConfig struct {
	ProviderConfig `yaml:",inline"`
	Voice          string `yaml:"voice" json:"voice"`
}

// ResolveProvider normalizes the provider name. An empty provider means managed.
func (c ProviderConfig) ResolveProvider(modality Modality) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(string(c.Provider)))) {
	case "", ProviderManaged, providerManagedAlias:
		return ProviderManaged, nil
	case ProviderCustom:
		return ProviderCustom, nil
	default:
		return "", &ConfigurationError{
			Modality: modality,
			Reason:   "unknown provider " + string(c.Provider),
		}
	}
}

// Validate enforces the custom-backend precondition: base URL, API key and model must be set.
func (c ProviderConfig) Validate(modality Modality) error {
	provider, err := c.ResolveProvider(modality)
	if err != nil {
		return err
	}
	if provider != ProviderCustom {
		return nil
	}

	missing := make([]string, 0, 3)
	if strings.TrimSpace(c.BaseURL) == "" {
		missing = append(missing, "base_url")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		missing = append(missing, "api_key")
	}
	if strings.TrimSpace(c.Model) == "" {
		missing = append(missing, "model")
	}
	if len(missing) > 0 {
		return &ConfigurationError{
			Modality: modality,
			Missing:  missing,
			Reason:   "custom " + string(modality) + " configuration is incomplete",
		}
	}
	return nil
}

func (c TextConfig) Validate() error {
	if err := c.ProviderConfig.Validate(ModalityText); err != nil {
		return err
	}
	if c.Temperature < MinTemperature || c.Temperature > MaxTemperature {
		return &ConfigurationError{
			Modality: ModalityText,
			Reason:   "temperature must be within [0, 2]",
		}
	}
	return nil
}

func (c ImageConfig) Validate() error {
	if err := c.ProviderConfig.Validate(ModalityImage); err != nil {
		return err
	}
	switch c.ResponseShape {
	case ResponseShapeAuto, ResponseShapeImagen, ResponseShapeNative:
		return nil
	default:
		return &ConfigurationError{
			Modality: ModalityImage,
			Reason:   "unknown response shape " + string(c.ResponseShape),
		}
	}
}

func (c AudioConfig) Validate() error {
	return c.ProviderConfig.Validate(ModalitySpeech)
}
