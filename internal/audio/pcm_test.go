package audio

import (
	"math"
	"testing"
)

func TestFloatToPCM16(t *testing.T) {
	tests := []struct {
		name   string
		sample float32
		want   int16
	}{
		{"silence", 0, 0},
		{"full scale positive", 1, 32767},
		{"full scale negative", -1, -32767},
		{"clipped positive", 2.5, 32767},
		{"clipped negative", -3, -32767},
		{"half scale", 0.5, 16384},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := FloatToPCM16([]float32{tt.sample})
			if len(data) != 2 {
				t.Fatalf("Expected 2 bytes, got %d", len(data))
			}
			got := int16(data[0]) | int16(data[1])<<8
			if got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestPCM16RoundTrip(t *testing.T) {
	in := []float32{0, 0.25, -0.25, 0.9, -0.9}
	out := PCM16ToFloat(FloatToPCM16(in))

	if len(out) != len(in) {
		t.Fatalf("Expected %d samples, got %d", len(in), len(out))
	}
	for i := range in {
		if diff := math.Abs(float64(out[i] - in[i])); diff > 1.0/32768 {
			t.Errorf("Sample %d: expected %f, got %f", i, in[i], out[i])
		}
	}
}

func TestPCM16ToFloatOddTrailingByte(t *testing.T) {
	out := PCM16ToFloat([]byte{0x00, 0x40, 0x7f})
	if len(out) != 1 {
		t.Fatalf("Expected 1 sample, got %d", len(out))
	}
}

func TestResampleIdentity(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := Resample(in, 16000, 16000)
	if len(out) != 3 {
		t.Fatalf("Expected passthrough, got %d samples", len(out))
	}
}

func TestResampleHalvesLength(t *testing.T) {
	in := make([]float32, 480) // 10ms at 48kHz
	for i := range in {
		in[i] = float32(i) / 480
	}
	out := Resample(in, 48000, 16000)
	if len(out) != 160 {
		t.Errorf("Expected 160 samples at 16kHz, got %d", len(out))
	}
	// Values must stay monotonically non-decreasing for a ramp input.
	for i := 1; i < len(out); i++ {
		if out[i] < out[i-1] {
			t.Fatalf("Ramp broken at sample %d: %f < %f", i, out[i], out[i-1])
		}
	}
}

func TestResampleEmpty(t *testing.T) {
	out := Resample(nil, 48000, 16000)
	if len(out) != 0 {
		t.Errorf("Expected empty output, got %d samples", len(out))
	}
}

func TestWindowPadding(t *testing.T) {
	samples := []float32{1, 2, 3}

	full := Window(samples, 0, 3)
	if len(full) != 3 || full[2] != 3 {
		t.Errorf("Full window mangled: %v", full)
	}

	padded := Window(samples, 2, 4)
	if len(padded) != 4 {
		t.Fatalf("Expected 4 samples, got %d", len(padded))
	}
	if padded[0] != 3 || padded[1] != 0 || padded[3] != 0 {
		t.Errorf("Expected zero padding after sample 3, got %v", padded)
	}
}
