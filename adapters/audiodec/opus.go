package audiodec

import (
	"fmt"

	opus "gopkg.in/hraban/opus.v2"

	"github.com/samtale/samtale/domain/repositories"
	"github.com/samtale/samtale/internal/audio"
)

const (
	opusDecodeRate = 48000
	opusChannels   = 1
	// 120ms at 48kHz, the longest frame Opus allows.
	opusMaxFrameSamples = 5760
)

// OpusDecoder decodes one mono Opus packet per payload at 48kHz and
// resamples to the target rate. Each payload is treated as a standalone
// packet, so a fresh decoder serves each call.
type OpusDecoder struct{}

var _ repositories.AudioDecoder = (*OpusDecoder)(nil)

func NewOpusDecoder() *OpusDecoder {
	return &OpusDecoder{}
}

func (d *OpusDecoder) Decode(data []byte, targetRate int) ([]float32, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", repositories.ErrDecode)
	}

	dec, err := opus.NewDecoder(opusDecodeRate, opusChannels)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repositories.ErrDecode, err)
	}

	pcm := make([]float32, opusMaxFrameSamples)
	n, err := dec.DecodeFloat32(data, pcm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repositories.ErrDecode, err)
	}

	samples := pcm[:n]
	if targetRate != opusDecodeRate {
		samples = audio.Resample(samples, opusDecodeRate, targetRate)
	}
	return samples, nil
}
