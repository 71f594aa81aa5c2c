package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/optimizer"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/pipeline"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTextModel  = "gemini-2.5-flash"
	DefaultImageModel = "gemini-3-pro-image-preview"
	DefaultAudioModel = "gemini-2.5-flash-preview-tts"
	DefaultStyle      = "Classic American Comic Book"
	DefaultVoice      = "Kore"
)

type Config struct {
	Text     model.TextConfig  `yaml:"text"`
	Image    model.ImageConfig `yaml:"image"`
	Audio    model.AudioConfig `yaml:"audio"`
	Client   ClientConfig      `yaml:"client"`
	Pipeline PipelineConfig    `yaml:"pipeline"`
	// Optimizer shares the text backend but speaks with its own system instruction.
	Optimizer OptimizerConfig `yaml:"optimizer"`

	// DefaultCredential backs managed calls whose config carries no key. Only read from the environment.
	DefaultCredential string `yaml:"-"`
}

type ClientConfig struct {
	CallTimeout    string `yaml:"call_timeout"`
	MaxRetries     int    `yaml:"max_retries"`
	RetryBaseDelay string `yaml:"retry_base_delay"`
	BlobTTL        string `yaml:"blob_ttl"`
}

type PipelineConfig struct {
	PaceInterval string `yaml:"pace_interval"`
}

type OptimizerConfig struct {
	SystemInstruction string `yaml:"system_instruction"`
}

func DefaultConfig() *Config {
	return &Config{
		Text: model.TextConfig{
			ProviderConfig: model.ProviderConfig{Provider: model.ProviderManaged, Model: DefaultTextModel},
			Temperature:    0.7,
		},
		Image: model.ImageConfig{
			ProviderConfig: model.ProviderConfig{Provider: model.ProviderManaged, Model: DefaultImageModel},
			Style:          DefaultStyle,
		},
		Audio: model.AudioConfig{
			ProviderConfig: model.ProviderConfig{Provider: model.ProviderManaged, Model: DefaultAudioModel},
			Voice:          DefaultVoice,
		},
		Client: ClientConfig{
			CallTimeout:    model.DefaultCallTimeout.String(),
			MaxRetries:     model.DefaultMaxRetries,
			RetryBaseDelay: model.DefaultRetryBaseDelay.String(),
			BlobTTL:        "30m",
		},
		Optimizer: OptimizerConfig{SystemInstruction: optimizer.DefaultSystemInstruction},
	}
}

// LoadEnv reads a .env file into the process environment without overriding variables already set.
// A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return utils.WrapIfNotNil(err, path)
}

// Load reads configuration from a YAML file on disk, then applies environment overrides.
func Load(path string) (*Config, error) {
	return LoadFs(afero.NewOsFs(), path)
}

func LoadFs(fs afero.Fs, path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := afero.ReadFile(fs, path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, utils.WrapIfNotNil(err, "parse "+path)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, utils.WrapIfNotNil(err, "read "+path)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.validateDurations(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save(fs afero.Fs, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return utils.WrapIfNotNil(err)
	}
	return utils.WrapIfNotNil(afero.WriteFile(fs, path, data, 0o600), path)
}

func (c *Config) applyEnvOverrides() error {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.DefaultCredential = key
	} else if key := os.Getenv("API_KEY"); key != "" {
		c.DefaultCredential = key
	}

	overrideProvider("COMIC_TEXT", &c.Text.ProviderConfig)
	overrideProvider("COMIC_IMAGE", &c.Image.ProviderConfig)
	overrideProvider("COMIC_AUDIO", &c.Audio.ProviderConfig)

	if value := os.Getenv("COMIC_TEXT_TEMPERATURE"); value != "" {
		temperature, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return &model.ConfigurationError{Modality: model.ModalityText, Reason: "COMIC_TEXT_TEMPERATURE is not a number: " + value}
		}
		c.Text.Temperature = temperature
	}
	if value := os.Getenv("COMIC_TEXT_SYSTEM_INSTRUCTION"); value != "" {
		c.Text.SystemInstruction = value
	}
	if value := os.Getenv("COMIC_IMAGE_STYLE"); value != "" {
		c.Image.Style = value
	}
	if value := os.Getenv("COMIC_IMAGE_RESPONSE_SHAPE"); value != "" {
		c.Image.ResponseShape = model.ResponseShape(strings.ToLower(value))
	}
	if value := os.Getenv("COMIC_AUDIO_VOICE"); value != "" {
		c.Audio.Voice = value
	}

	if value := os.Getenv("COMIC_CALL_TIMEOUT"); value != "" {
		c.Client.CallTimeout = value
	}
	if value := os.Getenv("COMIC_MAX_RETRIES"); value != "" {
		retries, err := strconv.Atoi(value)
		if err != nil {
			return &model.ConfigurationError{Reason: "COMIC_MAX_RETRIES is not an integer: " + value}
		}
		c.Client.MaxRetries = retries
	}
	if value := os.Getenv("COMIC_PACE_INTERVAL"); value != "" {
		c.Pipeline.PaceInterval = value
	}
	if value := os.Getenv("COMIC_OPTIMIZER_SYSTEM_INSTRUCTION"); value != "" {
		c.Optimizer.SystemInstruction = value
	}
	return nil
}

func overrideProvider(prefix string, cfg *model.ProviderConfig) {
	if value := os.Getenv(prefix + "_PROVIDER"); value != "" {
		cfg.Provider = model.Provider(value)
	}
	if value := os.Getenv(prefix + "_BASE_URL"); value != "" {
		cfg.BaseURL = value
	}
	if value := os.Getenv(prefix + "_API_KEY"); value != "" {
		cfg.APIKey = value
	}
	if value := os.Getenv(prefix + "_MODEL"); value != "" {
		cfg.Model = value
	}
}

// Validate reports the first configuration error across the three modalities.
func (c *Config) Validate() error {
	if err := c.Text.Validate(); err != nil {
		return err
	}
	if err := c.Image.Validate(); err != nil {
		return err
	}
	if err := c.Audio.Validate(); err != nil {
		return err
	}
	if c.Client.MaxRetries < 0 {
		return &model.ConfigurationError{Reason: "max_retries must not be negative"}
	}
	return c.validateDurations()
}

func (c *Config) validateDurations() error {
	fields := []struct {
		name  string
		value string
	}{
		{"client.call_timeout", c.Client.CallTimeout},
		{"client.retry_base_delay", c.Client.RetryBaseDelay},
		{"client.blob_ttl", c.Client.BlobTTL},
		{"pipeline.pace_interval", c.Pipeline.PaceInterval},
	}
	for _, field := range fields {
		if strings.TrimSpace(field.value) == "" {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(field.value))
		if err != nil {
			return &model.ConfigurationError{Reason: field.name + " is not a duration: " + field.value}
		}
		if d < 0 {
			return &model.ConfigurationError{Reason: field.name + " must not be negative: " + field.value}
		}
	}
	return nil
}

func (c *Config) GetCallTimeout() time.Duration {
	return parseDuration(c.Client.CallTimeout, model.DefaultCallTimeout)
}

func (c *Config) GetRetryBaseDelay() time.Duration {
	return parseDuration(c.Client.RetryBaseDelay, model.DefaultRetryBaseDelay)
}

func (c *Config) GetBlobTTL() time.Duration {
	return parseDuration(c.Client.BlobTTL, 30*time.Minute)
}

// GetPaceInterval returns zero, meaning unpaced, when nothing valid is configured.
func (c *Config) GetPaceInterval() time.Duration {
	return parseDuration(c.Pipeline.PaceInterval, 0)
}

// ClientOptions turns the client section into backend options. Extra options are appended last.
func (c *Config) ClientOptions(extra ...model.ClientOption) []model.ClientOption {
	opts := []model.ClientOption{
		model.WithCallTimeout(c.GetCallTimeout()),
		model.WithMaxRetries(c.Client.MaxRetries),
		model.WithRetryBaseDelay(c.GetRetryBaseDelay()),
	}
	if c.DefaultCredential != "" {
		opts = append(opts, model.WithDefaultCredential(c.DefaultCredential))
	}
	return append(opts, extra...)
}

// OptimizerText is the text config with the optimizer's own system instruction swapped in.
func (c *Config) OptimizerText() model.TextConfig {
	cfg := c.Text
	cfg.SystemInstruction = c.Optimizer.SystemInstruction
	return cfg
}

func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Text:         c.Text,
		Image:        c.Image,
		Audio:        c.Audio,
		PaceInterval: c.GetPaceInterval(),
	}
}

// parseDuration only sees values validateDurations accepted, so errors fall back to the default.
func parseDuration(value string, fallback time.Duration) time.Duration {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
