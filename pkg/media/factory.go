package media

import (
	"github.com/Nephrolytics-ai/polyglot-media/pkg/llms/custom"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/llms/gemini"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
)

// Backend covers all three modalities for one provider.
type Backend interface {
	model.TextGenerator
	model.ImageGenerator
	model.SpeechGenerator
}

// Factory selects the backend implementation keyed on the configured provider.
type Factory struct {
	backends map[model.Provider]Backend
}

func NewFactory(managed Backend, customBackend Backend) *Factory {
	return &Factory{
		backends: map[model.Provider]Backend{
			model.ProviderManaged: managed,
			model.ProviderCustom:  customBackend,
		},
	}
}

// NewDefaultFactory wires the Gemini client as the managed backend and the OpenAI-compatible client as the custom one.
func NewDefaultFactory(opts ...model.ClientOption) *Factory {
	return NewFactory(gemini.NewClient(opts...), custom.NewClient(opts...))
}

func (f *Factory) backend(cfg model.ProviderConfig, modality model.Modality) (Backend, model.Provider, error) {
	provider, err := cfg.ResolveProvider(modality)
	if err != nil {
		return nil, "", err
	}
	backend, ok := f.backends[provider]
	if !ok || backend == nil {
		return nil, provider, &model.ConfigurationError{
			Modality: modality,
			Reason:   "no backend registered for provider " + string(provider),
		}
	}
	return backend, provider, nil
}

func (f *Factory) Text(cfg model.ProviderConfig) (model.TextGenerator, error) {
	backend, _, err := f.backend(cfg, model.ModalityText)
	if err != nil {
		return nil, err
	}
	return backend, nil
}

func (f *Factory) Image(cfg model.ProviderConfig) (model.ImageGenerator, error) {
	backend, _, err := f.backend(cfg, model.ModalityImage)
	if err != nil {
		return nil, err
	}
	return backend, nil
}

func (f *Factory) Speech(cfg model.ProviderConfig) (model.SpeechGenerator, error) {
	backend, _, err := f.backend(cfg, model.ModalitySpeech)
	if err != nil {
		return nil, err
	}
	return backend, nil
}
