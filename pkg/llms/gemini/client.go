package gemini

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/utils"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"google.golang.org/genai"
)

const (
	providerName = model.ProviderManaged

	defaultVoice           = "Kore"
	clientCacheExpiration  = 30 * time.Minute
	clientCleanupInterval  = time.Hour
	imagenModelMarker      = "imagen"
	imageAspectRatio       = "1:1"
	nativeImageSize        = "1K"
	imagenOutputMIMEType   = "image/jpeg"
	nativeDefaultImageMIME = "image/png"
)

// modelsAPI is the part of *genai.Models this package uses.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateImages(ctx context.Context, model string, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

type modelsFactory func(ctx context.Context, apiKey string, baseURL string, httpClient *http.Client) (modelsAPI, error)

// Client calls the managed Gemini backend. It implements the text, image and speech generators.
type Client struct {
	defaultCredential string
	httpClient        *http.Client
	callTimeout       time.Duration
	maxRetries        int
	retryBaseDelay    time.Duration

	clients   *cache.Cache
	group     singleflight.Group
	newModels modelsFactory
}

func NewClient(opts ...model.ClientOption) *Client {
	cfg := model.ResolveClientOpts(opts...)
	return &Client{
		defaultCredential: strings.TrimSpace(cfg.DefaultCredential),
		httpClient:        cfg.HTTPClient,
		callTimeout:       cfg.CallTimeout,
		maxRetries:        cfg.MaxRetries,
		retryBaseDelay:    cfg.RetryBaseDelay,
		clients:           cache.New(clientCacheExpiration, clientCleanupInterval),
		newModels:         newGenaiModels,
	}
}

func newGenaiModels(ctx context.Context, apiKey string, baseURL string, httpClient *http.Client) (modelsAPI, error) {
	clientCfg := &genai.ClientConfig{
		Backend:    genai.BackendGeminiAPI,
		APIKey:     apiKey,
		HTTPClient: httpClient,
	}
	if baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return client.Models, nil
}

// models resolves the SDK client for a call: the per-call key wins, then the injected default credential.
func (c *Client) models(ctx context.Context, cfg model.ProviderConfig, modality model.Modality) (modelsAPI, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		apiKey = c.defaultCredential
	}
	if apiKey == "" {
		return nil, &model.ConfigurationError{
			Modality: modality,
			Missing:  []string{"api_key"},
			Reason:   "managed backend has no API key and no default credential",
		}
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	cacheKey := baseURL + "\x00" + apiKey

	if cached, found := c.clients.Get(cacheKey); found {
		if models, ok := cached.(modelsAPI); ok {
			return models, nil
		}
	}

	value, err, _ := c.group.Do(cacheKey, func() (any, error) {
		if cached, found := c.clients.Get(cacheKey); found {
			return cached, nil
		}
		models, err := c.newModels(context.WithoutCancel(ctx), apiKey, baseURL, c.httpClient)
		if err != nil {
			return nil, err
		}
		c.clients.Set(cacheKey, models, cache.DefaultExpiration)
		return models, nil
	})
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	models, ok := value.(modelsAPI)
	if !ok {
		return nil, utils.WrapIfNotNil(errors.New("unexpected client type in cache"))
	}
	return models, nil
}

// call runs one SDK request under the per-call timeout with bounded retry, classifying failures as remote errors.
func (c *Client) call(ctx context.Context, modality model.Modality, meta model.GenerationMetadata, request func(ctx context.Context) error) error {
	attempts, err := model.Retry(ctx, c.maxRetries, c.retryBaseDelay, func() error {
		callCtx := ctx
		if c.callTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.callTimeout)
			defer cancel()
		}
		return classifyError(request(callCtx), modality)
	})
	meta[model.MetadataKeyAPICalls] = strconv.Itoa(attempts)
	return utils.WrapIfNotNil(err, "attempts="+strconv.Itoa(attempts))
}

func classifyError(err error, modality model.Modality) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &model.RemoteError{
			Modality:   modality,
			Provider:   providerName,
			StatusCode: apiErr.Code,
			Body:       utils.TruncateDiagnostic(apiErr.Message),
			Err:        err,
		}
	}
	return &model.RemoteError{Modality: modality, Provider: providerName, Err: err}
}

func applyGenerateMetadata(meta model.GenerationMetadata, response *genai.GenerateContentResponse) {
	if meta == nil || response == nil {
		return
	}
	if strings.TrimSpace(response.ResponseID) != "" {
		meta[model.MetadataKeyResponseID] = response.ResponseID
	}
	if len(response.Candidates) > 0 && response.Candidates[0] != nil {
		meta[model.MetadataKeyResponseStatus] = string(response.Candidates[0].FinishReason)
	}
	if usage := response.UsageMetadata; usage != nil {
		meta[model.MetadataKeyInputTokens] = strconv.FormatInt(int64(usage.PromptTokenCount), 10)
		meta[model.MetadataKeyOutputTokens] = strconv.FormatInt(int64(usage.CandidatesTokenCount), 10)
		meta[model.MetadataKeyTotalTokens] = strconv.FormatInt(int64(usage.TotalTokenCount), 10)
	}
}

// firstInlineData returns the first inline blob of the first candidate.
func firstInlineData(response *genai.GenerateContentResponse) *genai.Blob {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0] == nil || response.Candidates[0].Content == nil {
		return nil
	}
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData
		}
	}
	return nil
}

func temperaturePtr(value float64) *float32 {
	temp := float32(value)
	return &temp
}
