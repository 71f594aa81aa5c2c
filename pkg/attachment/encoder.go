package attachment

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/utils"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

const DefaultMaxBytes = 20 * 1024 * 1024

var (
	ErrUnsupportedType = errors.New("unsupported attachment type")
	ErrTooLarge        = errors.New("attachment too large")
	ErrEmpty           = errors.New("attachment is empty")
)

// Content sniffing cannot tell Markdown from plain text, so the extension decides.
var markdownExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
}

type Encoder struct {
	fs       afero.Fs
	maxBytes int64
}

type Option func(*Encoder)

func WithFs(fs afero.Fs) Option {
	return func(e *Encoder) {
		e.fs = fs
	}
}

func WithMaxBytes(limit int64) Option {
	return func(e *Encoder) {
		e.maxBytes = limit
	}
}

func NewEncoder(opts ...Option) *Encoder {
	encoder := &Encoder{
		fs:       afero.NewOsFs(),
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(encoder)
	}
	return encoder
}

func (e *Encoder) FromFile(path string) (model.Attachment, error) {
	info, err := e.fs.Stat(path)
	if err != nil {
		return model.Attachment{}, utils.WrapIfNotNil(err)
	}
	if e.maxBytes > 0 && info.Size() > e.maxBytes {
		return model.Attachment{}, e.tooLarge(path, info.Size())
	}

	data, err := afero.ReadFile(e.fs, path)
	if err != nil {
		return model.Attachment{}, utils.WrapIfNotNil(err)
	}
	return e.FromBytes(filepath.Base(path), data)
}

// FromBytes detects the type of data and base64-encodes it.
func (e *Encoder) FromBytes(name string, data []byte) (model.Attachment, error) {
	if len(data) == 0 {
		return model.Attachment{}, fmt.Errorf("%w: %s", ErrEmpty, name)
	}
	if e.maxBytes > 0 && int64(len(data)) > e.maxBytes {
		return model.Attachment{}, e.tooLarge(name, int64(len(data)))
	}

	mimeType := DetectMIMEType(name, data)
	if !Accepted(mimeType) {
		return model.Attachment{}, fmt.Errorf("%w: %s is %s", ErrUnsupportedType, name, mimeType)
	}

	return model.Attachment{
		Name:     name,
		MIMEType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
	}, nil
}

func (e *Encoder) tooLarge(name string, size int64) error {
	return fmt.Errorf("%w: %s is %s, limit %s", ErrTooLarge, name, humanize.IBytes(uint64(size)), humanize.IBytes(uint64(e.maxBytes)))
}

// DetectMIMEType sniffs data and returns the bare media type without parameters.
func DetectMIMEType(name string, data []byte) string {
	detected := mimetype.Detect(data)
	if detected.Is("text/plain") && markdownExtensions[strings.ToLower(filepath.Ext(name))] {
		return "text/markdown"
	}
	mimeType, _, err := mime.ParseMediaType(detected.String())
	if err != nil {
		return "application/octet-stream"
	}
	return mimeType
}

// Accepted reports whether the script writer can take this type: images, PDF, plain text or Markdown.
func Accepted(mimeType string) bool {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return true
	case mimeType == "application/pdf", mimeType == "text/plain", mimeType == "text/markdown":
		return true
	default:
		return false
	}
}
