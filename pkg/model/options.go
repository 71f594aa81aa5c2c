package model

import (
	"net/http"
	"time"
)

const (
	DefaultCallTimeout    = 90 * time.Second
	DefaultMaxRetries     = 2
	DefaultRetryBaseDelay = 500 * time.Millisecond
)

// ClientConfig is shared by both backends.
type ClientConfig struct {
	HTTPClient     *http.Client
	CallTimeout    time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	// DefaultCredential is used by the managed backend when a config carries no API key.
	DefaultCredential string
	Blobs             BlobStore
}

type ClientOption interface {
	apply(*ClientConfig)
}

type clientOptionFunc func(*ClientConfig)

func (f clientOptionFunc) apply(cfg *ClientConfig) {
	f(cfg)
}

func ResolveClientOpts(opts ...ClientOption) ClientConfig {
	cfg := ClientConfig{
		CallTimeout:    DefaultCallTimeout,
		MaxRetries:     DefaultMaxRetries,
		RetryBaseDelay: DefaultRetryBaseDelay,
	}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&cfg)
		}
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return cfg
}

func WithHTTPClient(client *http.Client) ClientOption {
	return clientOptionFunc(func(cfg *ClientConfig) {
		cfg.HTTPClient = client
	})
}

func WithCallTimeout(value time.Duration) ClientOption {
	return clientOptionFunc(func(cfg *ClientConfig) {
		cfg.CallTimeout = value
	})
}

func WithMaxRetries(value int) ClientOption {
	return clientOptionFunc(func(cfg *ClientConfig) {
		cfg.MaxRetries = value
	})
}

func WithRetryBaseDelay(value time.Duration) ClientOption {
	return clientOptionFunc(func(cfg *ClientConfig) {
		cfg.RetryBaseDelay = value
	})
}

func WithDefaultCredential(value string) ClientOption {
	return clientOptionFunc(func(cfg *ClientConfig) {
		cfg.DefaultCredential = value
	})
}

func WithBlobStore(store BlobStore) ClientOption {
	return clientOptionFunc(func(cfg *ClientConfig) {
		cfg.Blobs = store
	})
}
