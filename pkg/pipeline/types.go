package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
)

type State string

const (
	StateIdle      State = "idle"
	StateDrafting  State = "drafting"
	StateEditing   State = "editing"
	StateRendering State = "rendering"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Stage says which call a rendering pipeline is waiting on.
type Stage string

const (
	StageNone    Stage = ""
	StageDrawing Stage = "drawing"
	StageVoicing Stage = "voicing"
)

var (
	ErrEmptyRequest = errors.New("a topic or at least one attachment is required")
	ErrInvalidState = errors.New("operation not allowed in current pipeline state")
	ErrPanelIndex   = errors.New("panel index out of range")
	ErrPanelField   = errors.New("unknown panel field")
	ErrReset        = errors.New("pipeline was reset")
)

type ScriptWriter interface {
	GenerateStructuredScript(ctx context.Context, topic string, attachments []model.Attachment, cfg model.TextConfig) (model.ComicScript, model.GenerationMetadata, error)
}

type PanelIllustrator interface {
	GeneratePanelImage(ctx context.Context, description string, cfg model.ImageConfig) (string, model.GenerationMetadata, error)
}

type PanelNarrator interface {
	GenerateSpeech(ctx context.Context, text string, cfg model.AudioConfig) (*string, model.GenerationMetadata, error)
}

// MediaReleaser frees locally held media, such as blob: speech references, that a run no longer needs.
type MediaReleaser interface {
	Delete(ref string)
}

type Option func(*Pipeline)

// WithReleaser lets the pipeline free the audio of runs it discards.
func WithReleaser(releaser MediaReleaser) Option {
	return func(p *Pipeline) {
		p.releaser = releaser
	}
}

type Config struct {
	Text  model.TextConfig
	Image model.ImageConfig
	Audio model.AudioConfig
	// PaceInterval is the minimum gap between media calls. Zero means unpaced.
	PaceInterval time.Duration
}

type UpdateKind string

const (
	UpdateImage UpdateKind = "image"
	UpdateAudio UpdateKind = "audio"
)

// PanelUpdate is published once per settled media call, image before audio for each panel.
type PanelUpdate struct {
	Index int
	Kind  UpdateKind
	Image string
	Audio *string
}

// Result holds the script and the media produced so far. An empty image entry is still pending.
type Result struct {
	Script model.ComicScript
	Images []string
	Audio  []*string
}

type Status struct {
	RunID              string
	State              State
	Stage              Stage
	Panel              int
	Panels             int
	Completed          int
	DroppedAttachments int
	Err                error
}
