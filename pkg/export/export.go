package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/blobstore"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/logging"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/pipeline"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/utils"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

const (
	ScriptFile     = "script.json"
	StoryboardFile = "storyboard.md"
	ManifestFile   = "manifest.json"
)

var ErrNoScript = errors.New("nothing to export: script has no panels")

// BlobResolver looks up blob: references produced by the custom speech backend.
type BlobResolver interface {
	Get(ref string) (blobstore.Blob, bool)
}

type PanelFiles struct {
	Index       int    `json:"index"`
	Description string `json:"description"`
	Dialogue    string `json:"dialogue,omitempty"`
	// Image is a file name inside the export directory, or a remote URL left as is.
	Image       string `json:"image,omitempty"`
	Placeholder bool   `json:"placeholder,omitempty"`
	Audio       string `json:"audio,omitempty"`
}

type Manifest struct {
	Title  string       `json:"title"`
	Panels []PanelFiles `json:"panels"`
	Bytes  int64        `json:"bytes"`
}

type Exporter struct {
	fs    afero.Fs
	blobs BlobResolver
}

type Option func(*Exporter)

func WithFs(fs afero.Fs) Option {
	return func(e *Exporter) {
		e.fs = fs
	}
}

func WithBlobs(blobs BlobResolver) Option {
	return func(e *Exporter) {
		e.blobs = blobs
	}
}

func New(opts ...Option) *Exporter {
	e := &Exporter{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes the script, every panel image and audio clip that can be materialized, and a
// Markdown storyboard into dir. Media that cannot be resolved is logged and skipped.
func (e *Exporter) Export(ctx context.Context, dir string, result pipeline.Result) (Manifest, error) {
	if len(result.Script.Panels) == 0 {
		return Manifest{}, ErrNoScript
	}
	log := logging.NewLogger(ctx)

	if err := e.fs.MkdirAll(dir, 0o755); err != nil {
		return Manifest{}, utils.WrapIfNotNil(err, dir)
	}

	manifest := Manifest{Title: result.Script.Title, Panels: make([]PanelFiles, 0, len(result.Script.Panels))}

	scriptJSON, err := json.MarshalIndent(result.Script, "", "  ")
	if err != nil {
		return Manifest{}, utils.WrapIfNotNil(err)
	}
	if err := e.write(dir, ScriptFile, scriptJSON, &manifest); err != nil {
		return Manifest{}, err
	}

	for i, panel := range result.Script.Panels {
		files := PanelFiles{Index: i + 1, Description: panel.Description, Dialogue: panel.Dialogue}

		if i < len(result.Images) && result.Images[i] != "" {
			image, placeholder, err := e.writeImage(dir, i, result.Images[i], &manifest)
			if err != nil {
				return Manifest{}, err
			}
			files.Image = image
			files.Placeholder = placeholder
		}

		if i < len(result.Audio) && result.Audio[i] != nil {
			audio, err := e.writeAudio(dir, i, *result.Audio[i], &manifest)
			if err != nil {
				log.Warnf("panel=%d audio skipped: %v", i+1, err)
			} else {
				files.Audio = audio
			}
		}

		manifest.Panels = append(manifest.Panels, files)
	}

	if err := e.write(dir, StoryboardFile, []byte(Storyboard(manifest)), &manifest); err != nil {
		return Manifest{}, err
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return Manifest{}, utils.WrapIfNotNil(err)
	}
	if err := e.write(dir, ManifestFile, manifestJSON, &manifest); err != nil {
		return Manifest{}, err
	}

	log.Infof("exported comic title=%q panels=%d dir=%s size=%s", manifest.Title, len(manifest.Panels), dir, humanize.IBytes(uint64(manifest.Bytes)))
	return manifest, nil
}

func (e *Exporter) writeImage(dir string, index int, ref string, manifest *Manifest) (string, bool, error) {
	if ref == model.PlaceholderImage {
		return ref, true, nil
	}
	if !strings.HasPrefix(ref, "data:") {
		return ref, false, nil
	}

	mimeType, data, err := model.DecodeDataURI(ref)
	if err != nil {
		return "", false, utils.WrapIfNotNil(err, fmt.Sprintf("panel %d image", index+1))
	}
	name := fmt.Sprintf("panel-%d%s", index+1, extensionFor(mimeType, data))
	return name, false, e.write(dir, name, data, manifest)
}

func (e *Exporter) writeAudio(dir string, index int, ref string, manifest *Manifest) (string, error) {
	var (
		data     []byte
		mimeType string
	)
	switch {
	case model.IsInlinePCM(ref):
		pcm, err := model.DecodeInlinePCM(ref)
		if err != nil {
			return "", err
		}
		data, err = EncodeWAV(pcm, PCMSampleRate, PCMChannels)
		if err != nil {
			return "", err
		}
		mimeType = "audio/wav"
	case model.IsBlobReference(ref):
		if e.blobs == nil {
			return "", errors.New("no blob store to resolve " + ref)
		}
		blob, ok := e.blobs.Get(ref)
		if !ok {
			return "", errors.New("blob expired or unknown: " + ref)
		}
		data = blob.Data
		mimeType = blob.MIMEType
	default:
		return "", errors.New("unsupported audio reference")
	}

	name := fmt.Sprintf("panel-%d%s", index+1, extensionFor(mimeType, data))
	return name, e.write(dir, name, data, manifest)
}

func (e *Exporter) write(dir, name string, data []byte, manifest *Manifest) error {
	if err := afero.WriteFile(e.fs, path.Join(dir, name), data, 0o644); err != nil {
		return utils.WrapIfNotNil(err, name)
	}
	manifest.Bytes += int64(len(data))
	return nil
}

// extensionFor prefers the declared type and falls back to sniffing the bytes.
func extensionFor(mimeType string, data []byte) string {
	if known := mimetype.Lookup(mimeType); known != nil && known.Extension() != "" {
		return known.Extension()
	}
	if ext := mimetype.Detect(data).Extension(); ext != "" {
		return ext
	}
	return ".bin"
}

// Storyboard renders the manifest as a printable Markdown page.
func Storyboard(manifest Manifest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", manifest.Title)
	for _, panel := range manifest.Panels {
		fmt.Fprintf(&b, "\n## Panel %d\n\n", panel.Index)
		if panel.Image != "" {
			fmt.Fprintf(&b, "![Panel %d](%s)\n\n", panel.Index, panel.Image)
		}
		fmt.Fprintf(&b, "*%s*\n", panel.Description)
		if panel.Dialogue != "" {
			fmt.Fprintf(&b, "\n> %s\n", panel.Dialogue)
		}
		if panel.Audio != "" {
			fmt.Fprintf(&b, "\n[Listen](%s)\n", panel.Audio)
		}
	}
	return b.String()
}
