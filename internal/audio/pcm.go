// Package audio holds PCM sample conversions shared by the pipeline and the
// decoder adapters. All pipeline audio is mono float32 in [-1, 1]; the wire
// carries little-endian signed 16-bit PCM.
package audio

import "math"

// FloatToPCM16 converts float32 samples to s16le bytes for playback.
// Samples are clipped to [-1, 1] before scaling.
func FloatToPCM16(samples []float32) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(math.Round(float64(s) * 32767))
		data[i*2] = byte(v)
		data[i*2+1] = byte(v >> 8)
	}
	return data
}

// PCM16ToFloat converts s16le bytes to float32 samples. A trailing odd byte
// is ignored.
func PCM16ToFloat(data []byte) []float32 {
	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(data[i*2]) | int16(data[i*2+1])<<8
		samples[i] = float32(v) / 32768
	}
	return samples
}

// Resample converts samples from one rate to another using linear
// interpolation. Good enough for speech; callers needing higher fidelity
// should resample upstream.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	newLen := int(float64(len(samples)) / ratio)
	if newLen == 0 {
		return []float32{}
	}

	result := make([]float32, newLen)
	for i := 0; i < newLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx >= len(samples)-1 {
			result[i] = samples[len(samples)-1]
		} else {
			s1 := float64(samples[srcIdx])
			s2 := float64(samples[srcIdx+1])
			result[i] = float32(s1 + frac*(s2-s1))
		}
	}
	return result
}

// Window returns the size-sample window starting at offset, zero-padded when
// fewer than size samples remain. The returned slice is always freshly
// allocated when padding happens, otherwise it aliases samples.
func Window(samples []float32, offset, size int) []float32 {
	if offset+size <= len(samples) {
		return samples[offset : offset+size]
	}
	window := make([]float32, size)
	copy(window, samples[offset:])
	return window
}
