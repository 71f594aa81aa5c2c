package custom

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/blobstore"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/utils"
)

const (
	providerName = model.ProviderCustom

	chatCompletionsSuffix  = "/chat/completions"
	imageGenerationsSuffix = "/images/generations"
	audioSpeechSuffix      = "/audio/speech"

	defaultVoice          = "alloy"
	defaultAudioMIMEType  = "audio/mpeg"
	imageSize             = "1024x1024"
	imageResponseFormat   = "b64_json"
	jsonObjectFormat      = "json_object"
	returnOnlyJSONSuffix  = "\nIMPORTANT: Return ONLY JSON."
	attachmentPlaceholder = "[Attached File: %s - Content extraction should be handled by client if not supported by model]"
)

// Client talks to any OpenAI-compatible REST endpoint. It implements the text, image and speech generators.
type Client struct {
	httpClient     *http.Client
	callTimeout    time.Duration
	maxRetries     int
	retryBaseDelay time.Duration
	blobs          model.BlobStore
}

type apiResponse struct {
	Body        []byte
	ContentType string
	Attempts    int
}

func NewClient(opts ...model.ClientOption) *Client {
	cfg := model.ResolveClientOpts(opts...)

	blobs := cfg.Blobs
	if blobs == nil {
		blobs = blobstore.New(blobstore.DefaultTTL)
	}

	return &Client{
		httpClient:     cfg.HTTPClient,
		callTimeout:    cfg.CallTimeout,
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: cfg.RetryBaseDelay,
		blobs:          blobs,
	}
}

// ResolveEndpoint appends suffix to baseURL unless it is already there, so it is never doubled.
func ResolveEndpoint(baseURL string, suffix string) string {
	endpoint := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if strings.HasSuffix(endpoint, suffix) {
		return endpoint
	}
	return endpoint + suffix
}

// validateCustom checks the custom-backend precondition even when the config names another provider.
func validateCustom(cfg model.ProviderConfig, modality model.Modality) error {
	cfg.Provider = model.ProviderCustom
	return cfg.Validate(modality)
}

func (c *Client) post(ctx context.Context, modality model.Modality, cfg model.ProviderConfig, suffix string, request any) (*apiResponse, error) {
	requestBits, err := json.Marshal(request)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	endpoint := ResolveEndpoint(cfg.BaseURL, suffix)
	response := &apiResponse{}
	attempts, err := model.Retry(ctx, c.maxRetries, c.retryBaseDelay, func() error {
		body, contentType, callErr := c.doOnce(ctx, modality, endpoint, cfg.APIKey, requestBits)
		if callErr != nil {
			return callErr
		}
		response.Body = body
		response.ContentType = contentType
		return nil
	})
	response.Attempts = attempts
	if err != nil {
		return response, utils.WrapIfNotNil(err, "endpoint="+endpoint, "attempts="+strconv.Itoa(attempts))
	}
	return response, nil
}

func (c *Client) doOnce(ctx context.Context, modality model.Modality, endpoint string, apiKey string, requestBits []byte) ([]byte, string, error) {
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(requestBits))
	if err != nil {
		return nil, "", utils.WrapIfNotNil(err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Authorization", "Bearer "+strings.TrimSpace(apiKey))

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return nil, "", &model.RemoteError{Modality: modality, Provider: providerName, Err: err}
	}
	defer httpResponse.Body.Close()

	responseBits, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, "", &model.RemoteError{Modality: modality, Provider: providerName, Err: err}
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		return nil, "", &model.RemoteError{
			Modality:   modality,
			Provider:   providerName,
			StatusCode: httpResponse.StatusCode,
			Body:       utils.TruncateDiagnostic(string(responseBits)),
		}
	}
	return responseBits, httpResponse.Header.Get("Content-Type"), nil
}
