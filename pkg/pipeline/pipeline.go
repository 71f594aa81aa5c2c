package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/logging"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Pipeline drives topic -> script -> per-panel image and speech, one call at a time.
// All methods are safe to call from multiple goroutines.
type Pipeline struct {
	writer      ScriptWriter
	illustrator PanelIllustrator
	narrator    PanelNarrator
	releaser    MediaReleaser
	cfg         Config

	mu         sync.Mutex
	state      State
	stage      Stage
	panel      int
	runID      string
	generation uint64
	cancel     context.CancelFunc
	script     model.ComicScript
	images     []string
	audio      []*string
	completed  int
	dropped    int
	err        error
	done       chan struct{}
}

func New(writer ScriptWriter, illustrator PanelIllustrator, narrator PanelNarrator, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		writer:      writer,
		illustrator: illustrator,
		narrator:    narrator,
		cfg:         cfg,
		state:       StateIdle,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GenerateScript drafts a script for topic and the attachments. On failure the pipeline
// returns to idle and the writer's error is returned unchanged.
func (p *Pipeline) GenerateScript(ctx context.Context, topic string, attachments []model.Attachment) (model.ComicScript, error) {
	if strings.TrimSpace(topic) == "" && len(attachments) == 0 {
		return model.ComicScript{}, ErrEmptyRequest
	}

	p.mu.Lock()
	if p.state != StateIdle {
		state := p.state
		p.mu.Unlock()
		return model.ComicScript{}, fmt.Errorf("%w: cannot draft while %s", ErrInvalidState, state)
	}
	p.runID = uuid.NewString()
	p.state = StateDrafting
	p.err = nil
	generation := p.generation
	draftCtx, cancel := context.WithCancel(logging.WithRunID(ctx, p.runID))
	p.cancel = cancel
	p.mu.Unlock()
	defer cancel()

	log := logging.NewLogger(draftCtx)
	log.Infof("drafting script topic=%q attachments=%d", topic, len(attachments))

	script, meta, err := p.writer.GenerateStructuredScript(draftCtx, topic, attachments, p.cfg.Text)

	p.mu.Lock()
	defer p.mu.Unlock()
	if generation != p.generation {
		return model.ComicScript{}, ErrReset
	}
	p.cancel = nil
	if err != nil {
		log.Errorf("script generation failed: %v", err)
		p.state = StateIdle
		p.err = err
		return model.ComicScript{}, err
	}

	p.script = script.Clone()
	p.dropped = meta.Int(model.MetadataKeyDroppedAttachments)
	p.state = StateEditing
	log.Infof("script ready title=%q panels=%d dropped_attachments=%d", script.Title, len(script.Panels), p.dropped)
	return script.Clone(), nil
}

// UpdatePanel edits one field of one panel while the draft is being reviewed.
func (p *Pipeline) UpdatePanel(index int, field model.PanelField, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateEditing {
		return fmt.Errorf("%w: cannot edit while %s", ErrInvalidState, p.state)
	}
	if index < 0 || index >= len(p.script.Panels) {
		return fmt.Errorf("%w: %d", ErrPanelIndex, index)
	}

	switch field {
	case model.PanelFieldDescription:
		p.script.Panels[index].Description = value
	case model.PanelFieldDialogue:
		p.script.Panels[index].Dialogue = value
	default:
		return fmt.Errorf("%w: %s", ErrPanelField, field)
	}
	return nil
}

// Discard drops the draft and returns to idle.
func (p *Pipeline) Discard() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateEditing {
		return fmt.Errorf("%w: nothing to discard while %s", ErrInvalidState, p.state)
	}
	p.clearLocked()
	return nil
}

// Render confirms the draft and starts media generation. Updates are delivered on the
// returned channel, which is closed when the run finishes, fails or is reset.
func (p *Pipeline) Render(ctx context.Context) (<-chan PanelUpdate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateEditing {
		return nil, fmt.Errorf("%w: cannot render while %s", ErrInvalidState, p.state)
	}

	script := p.script.Clone()
	count := len(script.Panels)
	p.state = StateRendering
	p.releaseAudioLocked(p.audio)
	p.images = make([]string, count)
	p.audio = make([]*string, count)
	p.completed = 0
	p.err = nil

	runCtx, cancel := context.WithCancel(logging.WithRunID(ctx, p.runID))
	p.cancel = cancel
	updates := make(chan PanelUpdate, 2*count)

	var limiter *rate.Limiter
	if p.cfg.PaceInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(p.cfg.PaceInterval), 1)
	}

	go p.render(runCtx, cancel, p.generation, script, limiter, updates)
	return updates, nil
}

func (p *Pipeline) render(ctx context.Context, cancel context.CancelFunc, generation uint64, script model.ComicScript, limiter *rate.Limiter, updates chan<- PanelUpdate) {
	defer close(updates)
	defer cancel()

	log := logging.NewLogger(ctx)
	log.Infof("rendering panels=%d", len(script.Panels))

	for i, panel := range script.Panels {
		if !p.setStage(generation, StageDrawing, i) {
			return
		}
		if err := pace(ctx, limiter); err != nil {
			p.fail(ctx, generation, err)
			return
		}
		image, _, err := p.illustrator.GeneratePanelImage(ctx, panel.Description, p.cfg.Image)
		if err != nil {
			p.fail(ctx, generation, fmt.Errorf("panel %d image: %w", i+1, err))
			return
		}
		if !p.publish(generation, updates, PanelUpdate{Index: i, Kind: UpdateImage, Image: image}) {
			return
		}

		if !p.setStage(generation, StageVoicing, i) {
			return
		}
		if strings.TrimSpace(panel.Dialogue) != "" {
			if err := pace(ctx, limiter); err != nil {
				p.fail(ctx, generation, err)
				return
			}
		}
		audio, _, err := p.narrator.GenerateSpeech(ctx, panel.Dialogue, p.cfg.Audio)
		if err != nil {
			p.fail(ctx, generation, fmt.Errorf("panel %d speech: %w", i+1, err))
			return
		}
		if !p.publish(generation, updates, PanelUpdate{Index: i, Kind: UpdateAudio, Audio: audio}) {
			return
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if generation != p.generation {
		return
	}
	p.state = StateDone
	p.stage = StageNone
	p.cancel = nil
	close(p.done)
	log.Infof("rendering complete panels=%d", len(script.Panels))
}

func pace(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

func (p *Pipeline) setStage(generation uint64, stage Stage, index int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if generation != p.generation {
		return false
	}
	p.stage = stage
	p.panel = index
	return true
}

// publish records an update and forwards it, unless the run it belongs to has been reset.
func (p *Pipeline) publish(generation uint64, updates chan<- PanelUpdate, update PanelUpdate) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if generation != p.generation {
		if update.Audio != nil {
			p.releaseAudioLocked([]*string{update.Audio})
		}
		return false
	}

	switch update.Kind {
	case UpdateImage:
		p.images[update.Index] = update.Image
	case UpdateAudio:
		p.audio[update.Index] = update.Audio
		p.completed = update.Index + 1
	}
	updates <- update
	return true
}

func (p *Pipeline) fail(ctx context.Context, generation uint64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if generation != p.generation {
		return
	}
	logging.NewLogger(ctx).Errorf("rendering halted after %d panels: %v", p.completed, err)
	p.state = StateFailed
	p.stage = StageNone
	p.cancel = nil
	p.err = err
}

// Reset returns to idle from any state. In-flight calls are cancelled and their results discarded.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearLocked()
}

func (p *Pipeline) clearLocked() {
	p.generation++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.state = StateIdle
	p.stage = StageNone
	p.panel = 0
	p.runID = ""
	p.script = model.ComicScript{}
	p.releaseAudioLocked(p.audio)
	p.images = nil
	p.audio = nil
	p.completed = 0
	p.dropped = 0
	p.err = nil
	select {
	case <-p.done:
		p.done = make(chan struct{})
	default:
	}
}

func (p *Pipeline) releaseAudioLocked(audio []*string) {
	if p.releaser == nil {
		return
	}
	for _, ref := range audio {
		if ref != nil && model.IsBlobReference(*ref) {
			p.releaser.Delete(*ref)
		}
	}
}

// Done is closed once every panel of the current run has settled.
func (p *Pipeline) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Pipeline) Script() model.ComicScript {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.script.Clone()
}

func (p *Pipeline) Snapshot() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Result{
		Script: p.script.Clone(),
		Images: append([]string(nil), p.images...),
		Audio:  append([]*string(nil), p.audio...),
	}
}

func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		RunID:              p.runID,
		State:              p.state,
		Stage:              p.stage,
		Panel:              p.panel,
		Panels:             len(p.script.Panels),
		Completed:          p.completed,
		DroppedAttachments: p.dropped,
		Err:                p.err,
	}
}
