package optimizer

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/logging"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/utils"
)

// DefaultSystemInstruction frames the text backend when the config carries no instruction of its own.
const DefaultSystemInstruction = "You are a social media expert. Optimize titles and descriptions for viral reach."

var ErrEmptyMetadata = errors.New("title or description is required")

var (
	titlePattern       = regexp.MustCompile(`(?i)Title:\s*(.*)`)
	descriptionPattern = regexp.MustCompile(`(?is)Description:\s*(.*)`)
)

// FreeTextWriter is satisfied by media.Adapters and by either backend directly.
type FreeTextWriter interface {
	GenerateFreeText(ctx context.Context, prompt string, cfg model.TextConfig) (string, model.GenerationMetadata, error)
}

// VideoMetadata is the title and description published alongside a video.
type VideoMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Optimizer struct {
	writer FreeTextWriter
	cfg    model.TextConfig
}

func New(writer FreeTextWriter, cfg model.TextConfig) *Optimizer {
	if strings.TrimSpace(cfg.SystemInstruction) == "" {
		cfg.SystemInstruction = DefaultSystemInstruction
	}
	return &Optimizer{writer: writer, cfg: cfg}
}

// Optimize asks the text backend to polish the metadata for Chinese short-video platforms.
// Fields the reply does not mention are kept as they were.
func (o *Optimizer) Optimize(ctx context.Context, current VideoMetadata) (VideoMetadata, error) {
	if strings.TrimSpace(current.Title) == "" && strings.TrimSpace(current.Description) == "" {
		return current, ErrEmptyMetadata
	}

	log := logging.NewLogger(ctx)
	reply, meta, err := o.writer.GenerateFreeText(ctx, BuildPrompt(current), o.cfg)
	if err != nil {
		return current, utils.WrapIfNotNil(err, "optimize video metadata")
	}
	log.Infof("metadata optimized provider=%s model=%s latency_ms=%s",
		meta[model.MetadataKeyProvider], meta[model.MetadataKeyModel], meta[model.MetadataKeyLatencyMs])

	return ParseReply(reply, current), nil
}

func BuildPrompt(current VideoMetadata) string {
	return fmt.Sprintf(`Please optimize the following video metadata for maximum engagement on Chinese social media (Bilibili, Douyin, Kuaishou).
Current Title: %s
Current Description: %s

Output format:
Title: [Optimized Title]
Description: [Optimized Description with hashtags]

Keep it catchy but relevant.`, current.Title, current.Description)
}

// ParseReply reads "Title:" and "Description:" markers from reply. When neither marker is
// present the whole reply becomes the description.
func ParseReply(reply string, current VideoMetadata) VideoMetadata {
	result := current
	title := titlePattern.FindStringSubmatch(reply)
	description := descriptionPattern.FindStringSubmatch(reply)

	if title != nil {
		result.Title = strings.TrimSpace(title[1])
	}
	if description != nil {
		result.Description = strings.TrimSpace(description[1])
	}
	if title == nil && description == nil {
		result.Description = reply
	}
	return result
}
