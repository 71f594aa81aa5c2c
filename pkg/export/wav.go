package export

import (
	"io"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/utils"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero/mem"
)

// Managed speech comes back as raw 16-bit little-endian mono PCM at 24 kHz.
const (
	PCMSampleRate    = 24000
	PCMChannels      = 1
	PCMBitsPerSample = 16

	wavFormatPCM = 1
)

// EncodeWAV wraps 16-bit little-endian PCM samples in a RIFF/WAVE container.
// A trailing odd byte is not a whole sample and is dropped.
func EncodeWAV(pcm []byte, sampleRate, channels int) ([]byte, error) {
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8))
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: PCMBitsPerSample,
	}

	// wav.Encoder seeks back to patch chunk sizes, so it needs a WriteSeeker.
	file := mem.NewFileHandle(mem.CreateFile("speech.wav"))
	defer file.Close()

	encoder := wav.NewEncoder(file, sampleRate, PCMBitsPerSample, channels, wavFormatPCM)
	if err := encoder.Write(buf); err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	if err := encoder.Close(); err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	data, err := io.ReadAll(file)
	return data, utils.WrapIfNotNil(err)
}
