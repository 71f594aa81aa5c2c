package custom

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/blobstore"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
	"github.com/stretchr/testify/suite"
)

type recordedRequest struct {
	Path          string
	Authorization string
	ContentType   string
	Body          map[string]any
}

type ClientSuite struct {
	suite.Suite
	server   *httptest.Server
	calls    atomic.Int32
	requests chan recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request)
	blobs    *blobstore.Store
	client   *Client
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.calls.Store(0)
	s.requests = make(chan recordedRequest, 16)
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		bits, _ := io.ReadAll(r.Body)
		body := map[string]any{}
		_ = json.Unmarshal(bits, &body)
		s.requests <- recordedRequest{
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
			Body:          body,
		}
		s.handler(w, r)
	}))
	s.blobs = blobstore.New(time.Minute)
	s.client = NewClient(
		model.WithHTTPClient(s.server.Client()),
		model.WithRetryBaseDelay(time.Millisecond),
		model.WithBlobStore(s.blobs),
	)
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
}

func (s *ClientSuite) providerConfig(baseURL string) model.ProviderConfig {
	return model.ProviderConfig{
		Provider: model.ProviderCustom,
		BaseURL:  baseURL,
		APIKey:   "sk-test",
		Model:    "test-model",
	}
}

func (s *ClientSuite) lastRequest() recordedRequest {
	select {
	case req := <-s.requests:
		return req
	default:
		s.FailNow("no request recorded")
		return recordedRequest{}
	}
}

func (s *ClientSuite) TestResolveEndpointIsIdempotent() {
	cases := map[string]string{
		"https://api.example.com/v1":                    "https://api.example.com/v1/chat/completions",
		"https://api.example.com/v1/":                   "https://api.example.com/v1/chat/completions",
		"https://api.example.com/v1///":                 "https://api.example.com/v1/chat/completions",
		"https://api.example.com/v1/chat/completions":   "https://api.example.com/v1/chat/completions",
		"https://api.example.com/v1/chat/completions/":  "https://api.example.com/v1/chat/completions",
		" https://api.example.com/v1/chat/completions ": "https://api.example.com/v1/chat/completions",
	}
	for base, want := range cases {
		got := ResolveEndpoint(base, chatCompletionsSuffix)
		s.Equal(want, got, base)
		s.Equal(1, strings.Count(got, chatCompletionsSuffix), base)
	}

	s.Equal("https://x/v1/images/generations", ResolveEndpoint("https://x/v1/images/generations", imageGenerationsSuffix))
	s.Equal("https://x/v1/audio/speech", ResolveEndpoint("https://x/v1", audioSpeechSuffix))
}

func (s *ClientSuite) TestMissingAPIKeyFailsBeforeAnyCall() {
	cfg := model.ImageConfig{ProviderConfig: s.providerConfig(s.server.URL), Style: "noir"}
	cfg.APIKey = ""

	ref, _, err := s.client.GenerateImage(context.Background(), "a cat", cfg)

	s.Empty(ref)
	s.Require().Error(err)
	s.True(model.IsConfigurationError(err))
	s.Equal(int32(0), s.calls.Load())
}

func (s *ClientSuite) TestEmptyDialogueMakesNoCall() {
	cfg := model.AudioConfig{ProviderConfig: s.providerConfig(s.server.URL), Voice: "nova"}

	ref, _, err := s.client.GenerateSpeech(context.Background(), "   ", cfg)

	s.NoError(err)
	s.Nil(ref)
	s.Equal(int32(0), s.calls.Load())
}

func (s *ClientSuite) TestFreeTextRequestShape() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"cmpl-1","choices":[{"message":{"content":"polished"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`))
	}
	cfg := model.TextConfig{ProviderConfig: s.providerConfig(s.server.URL + "/v1/"), Temperature: 0.4}

	text, meta, err := s.client.GenerateFreeText(context.Background(), "make it shine", cfg)

	s.Require().NoError(err)
	s.Equal("polished", text)
	s.Equal("cmpl-1", meta[model.MetadataKeyResponseID])
	s.Equal(5, meta.Int(model.MetadataKeyTotalTokens))
	s.Equal(1, meta.Int(model.MetadataKeyAPICalls))

	req := s.lastRequest()
	s.Equal("/v1/chat/completions", req.Path)
	s.Equal("Bearer sk-test", req.Authorization)
	s.Equal("application/json", req.ContentType)
	s.Equal("test-model", req.Body["model"])
	s.InDelta(0.4, req.Body["temperature"], 0.0001)
	s.NotContains(req.Body, "response_format")

	messages := req.Body["messages"].([]any)
	s.Require().Len(messages, 2)
	system := messages[0].(map[string]any)
	s.Equal("system", system["role"])
	s.Equal(model.DefaultFreeTextSystemInstruction, system["content"])
	s.Equal("make it shine", messages[1].(map[string]any)["content"])
}

func (s *ClientSuite) TestStructuredScriptRequestAndParse() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		content := "```json\n{\"title\":\"Fractions\",\"panels\":[{\"description\":\"d1\",\"dialogue\":\"a\"},{\"description\":\"d2\",\"dialogue\":\"b\"},{\"description\":\"d3\",\"dialogue\":\"c\"},{\"description\":\"d4\",\"dialogue\":\"d\"}]}\n```"
		payload, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		})
		_, _ = w.Write(payload)
	}
	cfg := model.TextConfig{ProviderConfig: s.providerConfig(s.server.URL), Temperature: 0.7}
	attachments := []model.Attachment{
		{MIMEType: "image/png", Data: "iVBORw=="},
		{MIMEType: "application/pdf", Data: "JVBERi0="},
	}

	script, meta, err := s.client.GenerateStructuredScript(context.Background(), "fractions", attachments, cfg)

	s.Require().NoError(err)
	s.Equal("Fractions", script.Title)
	s.Len(script.Panels, 4)
	s.Equal(1, meta.Int(model.MetadataKeyDroppedAttachments))

	req := s.lastRequest()
	s.Equal(map[string]any{"type": "json_object"}, req.Body["response_format"])
	messages := req.Body["messages"].([]any)
	s.Equal(model.ScriptSystemPrompt, messages[0].(map[string]any)["content"])

	blocks := messages[1].(map[string]any)["content"].([]any)
	s.Require().Len(blocks, 3)
	s.Equal(`Additional Instructions/Context: "fractions"`+"\nIMPORTANT: Return ONLY JSON.", blocks[0].(map[string]any)["text"])
	s.Equal("image_url", blocks[1].(map[string]any)["type"])
	s.Equal("data:image/png;base64,iVBORw==", blocks[1].(map[string]any)["image_url"].(map[string]any)["url"])
	s.Contains(blocks[2].(map[string]any)["text"], "[Attached File: application/pdf")
}

func (s *ClientSuite) TestStructuredScriptWithThreePanelsIsParseError() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"title\":\"T\",\"panels\":[{\"description\":\"a\",\"dialogue\":\"\"},{\"description\":\"b\",\"dialogue\":\"\"},{\"description\":\"c\",\"dialogue\":\"\"}]}"}}]}`))
	}
	cfg := model.TextConfig{ProviderConfig: s.providerConfig(s.server.URL), Temperature: 0.7}

	_, _, err := s.client.GenerateStructuredScript(context.Background(), "topic", nil, cfg)

	s.Require().Error(err)
	s.True(model.IsParseError(err))
}

func (s *ClientSuite) TestNonSuccessStatusCarriesBody() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model"}}`))
	}
	cfg := model.TextConfig{ProviderConfig: s.providerConfig(s.server.URL), Temperature: 1}

	_, _, err := s.client.GenerateStructuredScript(context.Background(), "topic", nil, cfg)

	s.Require().Error(err)
	var remoteErr *model.RemoteError
	s.Require().ErrorAs(err, &remoteErr)
	s.Equal(http.StatusBadRequest, remoteErr.StatusCode)
	s.Contains(remoteErr.Body, "bad model")
	s.Equal(int32(1), s.calls.Load())
}

func (s *ClientSuite) TestTransientStatusIsRetried() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		if s.calls.Load() < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"url":"https://cdn.example.com/panel.png"}]}`))
	}
	cfg := model.ImageConfig{ProviderConfig: s.providerConfig(s.server.URL), Style: "noir"}

	ref, meta, err := s.client.GenerateImage(context.Background(), "a cat", cfg)

	s.Require().NoError(err)
	s.Equal("https://cdn.example.com/panel.png", ref)
	s.Equal(3, meta.Int(model.MetadataKeyAPICalls))
}

func (s *ClientSuite) TestRetriesAreBounded() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}
	cfg := model.ImageConfig{ProviderConfig: s.providerConfig(s.server.URL), Style: "noir"}

	_, _, err := s.client.GenerateImage(context.Background(), "a cat", cfg)

	s.Require().Error(err)
	s.True(model.IsRemoteError(err))
	s.Equal(int32(model.DefaultMaxRetries+1), s.calls.Load())
}

func (s *ClientSuite) TestImageRequestShapeAndBase64Response() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"b64_json":"AAAA","url":"https://ignored"}]}`))
	}
	cfg := model.ImageConfig{ProviderConfig: s.providerConfig(s.server.URL + "/v1/images/generations"), Style: "Manga"}

	ref, _, err := s.client.GenerateImage(context.Background(), "a cat", cfg)

	s.Require().NoError(err)
	s.Equal("data:image/png;base64,AAAA", ref)

	req := s.lastRequest()
	s.Equal("/v1/images/generations", req.Path)
	s.Equal("Comic panel, Manga. a cat. High quality, detailed. No text bubbles.", req.Body["prompt"])
	s.EqualValues(1, req.Body["n"])
	s.Equal("1024x1024", req.Body["size"])
	s.Equal("b64_json", req.Body["response_format"])
}

func (s *ClientSuite) TestImageResponseWithoutDataIsParseError() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}
	cfg := model.ImageConfig{ProviderConfig: s.providerConfig(s.server.URL), Style: "noir"}

	_, _, err := s.client.GenerateImage(context.Background(), "a cat", cfg)

	s.True(model.IsParseError(err))
}

func (s *ClientSuite) TestSpeechStoresAudioAsBlob() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio"))
	}
	cfg := model.AudioConfig{ProviderConfig: s.providerConfig(s.server.URL)}

	ref, meta, err := s.client.GenerateSpeech(context.Background(), "你好", cfg)

	s.Require().NoError(err)
	s.Require().NotNil(ref)
	s.True(model.IsBlobReference(*ref))
	s.Equal(len("ID3-audio"), meta.Int(model.MetadataKeyAudioBytes))

	blob, found := s.blobs.Get(*ref)
	s.Require().True(found)
	s.Equal([]byte("ID3-audio"), blob.Data)
	s.Equal("audio/mpeg", blob.MIMEType)

	req := s.lastRequest()
	s.Equal("/audio/speech", req.Path)
	s.Equal("你好", req.Body["input"])
	s.Equal(defaultVoice, req.Body["voice"])
}

func (s *ClientSuite) TestCallTimeoutIsRemoteError() {
	release := make(chan struct{})
	defer close(release)
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}
	client := NewClient(
		model.WithHTTPClient(s.server.Client()),
		model.WithCallTimeout(20*time.Millisecond),
		model.WithMaxRetries(0),
	)
	cfg := model.TextConfig{ProviderConfig: s.providerConfig(s.server.URL), Temperature: 0.7}

	_, _, err := client.GenerateFreeText(context.Background(), "hello", cfg)

	s.Require().Error(err)
	s.True(model.IsRemoteError(err))
}

func (s *ClientSuite) TestCancelledContextStopsRetries() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := model.TextConfig{ProviderConfig: s.providerConfig(s.server.URL), Temperature: 0.7}

	_, _, err := s.client.GenerateFreeText(ctx, "hello", cfg)

	s.Require().Error(err)
	s.ErrorIs(err, context.Canceled)
	s.Equal(int32(0), s.calls.Load())
}
