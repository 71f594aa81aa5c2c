package media

import (
	"context"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/logging"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
)

// Adapters is the single entry point for all three modalities. Each operation dispatches
// on the configured provider and applies its failure policy to the backend result.
type Adapters struct {
	factory      *Factory
	textPolicy   FailurePolicy[string]
	scriptPolicy FailurePolicy[model.ComicScript]
	imagePolicy  FailurePolicy[string]
	speechPolicy FailurePolicy[*string]
	metrics      *Metrics
}

type Option func(*Adapters)

func WithTextPolicy(policy FailurePolicy[string]) Option {
	return func(a *Adapters) {
		a.textPolicy = policy
	}
}

func WithImagePolicy(policy FailurePolicy[string]) Option {
	return func(a *Adapters) {
		a.imagePolicy = policy
	}
}

func WithSpeechPolicy(policy FailurePolicy[*string]) Option {
	return func(a *Adapters) {
		a.speechPolicy = policy
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(a *Adapters) {
		a.metrics = metrics
	}
}

// NewAdapters defaults to aborting on text failures and falling back for images and speech.
func NewAdapters(factory *Factory, opts ...Option) *Adapters {
	adapters := &Adapters{
		factory:      factory,
		textPolicy:   Abort[string](),
		scriptPolicy: Abort[model.ComicScript](),
		imagePolicy:  FallbackTo(model.PlaceholderImage),
		speechPolicy: FallbackTo[*string](nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(adapters)
		}
	}
	return adapters
}

func (a *Adapters) GenerateFreeText(ctx context.Context, prompt string, cfg model.TextConfig) (string, model.GenerationMetadata, error) {
	start := time.Now()
	generator, err := a.factory.Text(cfg.ProviderConfig)
	if err != nil {
		return "", nil, err
	}

	text, meta, err := generator.GenerateFreeText(ctx, prompt, cfg)
	return settle(ctx, a, model.ModalityText, a.textPolicy, text, meta, err, start)
}

func (a *Adapters) GenerateStructuredScript(ctx context.Context, topic string, attachments []model.Attachment, cfg model.TextConfig) (model.ComicScript, model.GenerationMetadata, error) {
	start := time.Now()
	generator, err := a.factory.Text(cfg.ProviderConfig)
	if err != nil {
		return model.ComicScript{}, nil, err
	}

	script, meta, err := generator.GenerateStructuredScript(ctx, topic, attachments, cfg)
	return settle(ctx, a, model.ModalityText, a.scriptPolicy, script, meta, err, start)
}

// GeneratePanelImage falls back to the placeholder image on remote or parse failures by default.
func (a *Adapters) GeneratePanelImage(ctx context.Context, description string, cfg model.ImageConfig) (string, model.GenerationMetadata, error) {
	start := time.Now()
	generator, err := a.factory.Image(cfg.ProviderConfig)
	if err != nil {
		return "", nil, err
	}

	ref, meta, err := generator.GenerateImage(ctx, description, cfg)
	return settle(ctx, a, model.ModalityImage, a.imagePolicy, ref, meta, err, start)
}

// GenerateSpeech returns nil without calling any backend when there is nothing to say.
func (a *Adapters) GenerateSpeech(ctx context.Context, text string, cfg model.AudioConfig) (*string, model.GenerationMetadata, error) {
	start := time.Now()
	provider, err := cfg.ResolveProvider(model.ModalitySpeech)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(text) == "" {
		a.metrics.record(model.ModalitySpeech, provider, outcomeSkipped, start, nil)
		return nil, model.InitMetadata(provider, cfg.Model), nil
	}

	generator, err := a.factory.Speech(cfg.ProviderConfig)
	if err != nil {
		return nil, nil, err
	}

	ref, meta, err := generator.GenerateSpeech(ctx, text, cfg)
	return settle(ctx, a, model.ModalitySpeech, a.speechPolicy, ref, meta, err, start)
}

func settle[T any](ctx context.Context, a *Adapters, modality model.Modality, policy FailurePolicy[T], value T, meta model.GenerationMetadata, err error, start time.Time) (T, model.GenerationMetadata, error) {
	provider := model.Provider(meta[model.MetadataKeyProvider])
	if err == nil {
		a.metrics.record(modality, provider, outcomeOK, start, meta)
		return value, meta, nil
	}

	log := logging.NewLogger(ctx)
	if fallback, ok := policy.absorb(ctx, err); ok {
		log.Warnf("modality=%s provider=%s falling back after failure: %v", modality, provider, err)
		a.metrics.record(modality, provider, outcomeFallback, start, meta)
		return fallback, meta, nil
	}

	log.Errorf("modality=%s provider=%s error: %v", modality, provider, err)
	a.metrics.record(modality, provider, outcomeError, start, meta)
	var zero T
	return zero, meta, err
}

// absorbable is false for precondition failures and for cancellation of the caller's own context.
func absorbable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if model.IsConfigurationError(err) {
		return false
	}
	if ctx.Err() != nil {
		return false
	}
	return true
}
