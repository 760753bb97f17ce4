// Package audiodec provides inbound audio decoders.
package audiodec

import (
	"fmt"

	"github.com/samtale/samtale/domain/repositories"
	"github.com/samtale/samtale/internal/audio"
)

// PCMDecoder decodes little-endian 16-bit mono PCM payloads. The source
// rate is fixed per connection; a mismatch with the target triggers a
// linear resample.
type PCMDecoder struct {
	sourceRate int
}

var _ repositories.AudioDecoder = (*PCMDecoder)(nil)

func NewPCMDecoder(sourceRate int) *PCMDecoder {
	return &PCMDecoder{sourceRate: sourceRate}
}

func (d *PCMDecoder) Decode(data []byte, targetRate int) ([]float32, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", repositories.ErrDecode)
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: odd payload length %d", repositories.ErrDecode, len(data))
	}

	samples := audio.PCM16ToFloat(data)
	if d.sourceRate != targetRate {
		samples = audio.Resample(samples, d.sourceRate, targetRate)
	}
	return samples, nil
}
