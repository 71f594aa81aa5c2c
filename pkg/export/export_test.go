package export

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/blobstore"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/pipeline"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/suite"
)

type ExportSuite struct {
	suite.Suite
	fs       afero.Fs
	blobs    *blobstore.Store
	exporter *Exporter
}

func TestExportSuite(t *testing.T) {
	suite.Run(t, new(ExportSuite))
}

func (s *ExportSuite) SetupTest() {
	s.fs = afero.NewMemMapFs()
	s.blobs = blobstore.New(blobstore.DefaultTTL)
	s.exporter = New(WithFs(s.fs), WithBlobs(s.blobs))
}

func strPtr(v string) *string {
	return &v
}

func (s *ExportSuite) result() pipeline.Result {
	mp3 := s.blobs.Put([]byte("ID3-mp3-bytes"), "audio/mpeg")
	return pipeline.Result{
		Script: model.ComicScript{
			Title: "Fractions",
			Panels: []model.Panel{
				{Description: "a whole pizza", Dialogue: "这是一个披萨"},
				{Description: "the pizza cut in two", Dialogue: "一半"},
				{Description: "the pizza cut in four"},
				{Description: "a smiling kid", Dialogue: "懂了"},
			},
		},
		Images: []string{
			model.ImageDataURI("image/png", []byte("png-bytes")),
			model.ImageDataURI("image/jpeg", []byte("jpeg-bytes")),
			model.PlaceholderImage,
			"https://cdn.example.com/panel-4.png",
		},
		Audio: []*string{
			strPtr(model.InlinePCMReference([]byte{1, 0, 2, 0})),
			strPtr(mp3),
			nil,
			strPtr("blob:expired"),
		},
	}
}

func (s *ExportSuite) TestWritesEveryArtifact() {
	manifest, err := s.exporter.Export(context.Background(), "/out", s.result())
	s.Require().NoError(err)

	s.Equal("Fractions", manifest.Title)
	s.Require().Len(manifest.Panels, 4)

	s.Equal("panel-1.png", manifest.Panels[0].Image)
	s.Equal("panel-1.wav", manifest.Panels[0].Audio)
	s.Equal("panel-2.jpg", manifest.Panels[1].Image)
	s.Equal("panel-2.mp3", manifest.Panels[1].Audio)
	s.True(manifest.Panels[2].Placeholder)
	s.Empty(manifest.Panels[2].Audio)
	s.Equal("https://cdn.example.com/panel-4.png", manifest.Panels[3].Image)
	s.Empty(manifest.Panels[3].Audio)

	image, err := afero.ReadFile(s.fs, "/out/panel-2.jpg")
	s.Require().NoError(err)
	s.Equal([]byte("jpeg-bytes"), image)

	mp3, err := afero.ReadFile(s.fs, "/out/panel-2.mp3")
	s.Require().NoError(err)
	s.Equal([]byte("ID3-mp3-bytes"), mp3)

	raw, err := afero.ReadFile(s.fs, "/out/script.json")
	s.Require().NoError(err)
	var script model.ComicScript
	s.Require().NoError(json.Unmarshal(raw, &script))
	s.Equal(s.result().Script, script)

	storyboard, err := afero.ReadFile(s.fs, "/out/storyboard.md")
	s.Require().NoError(err)
	s.Contains(string(storyboard), "# Fractions")
	s.Contains(string(storyboard), "![Panel 1](panel-1.png)")
	s.Contains(string(storyboard), "> 这是一个披萨")

	exists, err := afero.Exists(s.fs, "/out/manifest.json")
	s.Require().NoError(err)
	s.True(exists)
	s.Positive(manifest.Bytes)
}

func (s *ExportSuite) TestInlinePCMBecomesWAV() {
	_, err := s.exporter.Export(context.Background(), "/out", s.result())
	s.Require().NoError(err)

	wav, err := afero.ReadFile(s.fs, "/out/panel-1.wav")
	s.Require().NoError(err)
	s.Require().Len(wav, 48)
	s.Equal("RIFF", string(wav[0:4]))
	s.Equal("WAVE", string(wav[8:12]))
	s.Equal(uint32(40), binary.LittleEndian.Uint32(wav[4:8]))
	s.Equal(uint16(1), binary.LittleEndian.Uint16(wav[22:24]))
	s.Equal(uint32(PCMSampleRate), binary.LittleEndian.Uint32(wav[24:28]))
	s.Equal(uint32(PCMSampleRate*2), binary.LittleEndian.Uint32(wav[28:32]))
	s.Equal(uint16(16), binary.LittleEndian.Uint16(wav[34:36]))
	s.Equal("data", string(wav[36:40]))
	s.Equal(uint32(4), binary.LittleEndian.Uint32(wav[40:44]))
	s.Equal([]byte{1, 0, 2, 0}, wav[44:])
}

func (s *ExportSuite) TestEmptyScriptIsRejected() {
	_, err := s.exporter.Export(context.Background(), "/out", pipeline.Result{})

	s.ErrorIs(err, ErrNoScript)
}

func (s *ExportSuite) TestBrokenDataURIFails() {
	result := s.result()
	result.Images[0] = "data:image/png;base64,!!!"

	_, err := s.exporter.Export(context.Background(), "/out", result)

	s.Error(err)
}

func (s *ExportSuite) TestReadOnlyFsSurfacesError() {
	exporter := New(WithFs(afero.NewReadOnlyFs(afero.NewMemMapFs())))

	_, err := exporter.Export(context.Background(), "/out", s.result())

	s.Error(err)
}

func (s *ExportSuite) TestEncodeWAVKeepsNegativeSamplesAndDropsOddByte() {
	wav, err := EncodeWAV([]byte{0xff, 0xff, 0x00, 0x80, 0x07}, PCMSampleRate, PCMChannels)

	s.Require().NoError(err)
	s.Require().Len(wav, 48)
	s.Equal(uint32(4), binary.LittleEndian.Uint32(wav[40:44]))
	s.Equal([]byte{0xff, 0xff, 0x00, 0x80}, wav[44:])
}

func (s *ExportSuite) TestEncodeWAVEmpty() {
	wav, err := EncodeWAV(nil, PCMSampleRate, PCMChannels)

	s.Require().NoError(err)
	s.Len(wav, 44)
	s.Equal(uint32(36), binary.LittleEndian.Uint32(wav[4:8]))
}

func (s *ExportSuite) TestUntypedBlobIsSniffed() {
	result := s.result()
	png := []byte("\x89PNG\r\n\x1a\n0000")
	result.Images[1] = model.ImageDataURI("application/octet-stream", png)

	manifest, err := s.exporter.Export(context.Background(), "/out", result)

	s.Require().NoError(err)
	s.Equal("panel-2.png", manifest.Panels[1].Image)
}
