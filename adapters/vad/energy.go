// Package vad provides speech classifiers for the segmenter.
package vad

import (
	"fmt"
	"math"
	"sync"

	"github.com/samtale/samtale/domain/repositories"
)

const (
	// initialNoiseFloor seeds the adaptive floor before any audio arrives.
	initialNoiseFloor = 0.005
	// minNoiseFloor keeps the floor from collapsing on digital silence.
	minNoiseFloor = 0.001
	// floorAlpha is the smoothing factor for the noise floor update.
	floorAlpha = 0.05
	// snrMidpoint is the signal-to-floor ratio that maps to probability 0.5.
	snrMidpoint = 4.0
	// snrSteepness controls how sharply probability rises around the midpoint.
	snrSteepness = 1.5
)

// EnergyClassifier is a speech classifier based on RMS energy against an
// adaptive noise floor. The floor tracks quiet windows so steady background
// noise stops registering as speech. One instance serves one audio stream.
type EnergyClassifier struct {
	mu         sync.Mutex
	noiseFloor float64
}

var _ repositories.SpeechClassifier = (*EnergyClassifier)(nil)

func NewEnergyClassifier() *EnergyClassifier {
	return &EnergyClassifier{noiseFloor: initialNoiseFloor}
}

// Probability returns the likelihood that the window contains speech.
func (c *EnergyClassifier) Probability(window []float32, sampleRate int) (float64, error) {
	if len(window) == 0 {
		return 0, fmt.Errorf("empty window")
	}
	if sampleRate <= 0 {
		return 0, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	var sum float64
	for _, s := range window {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(window)))

	c.mu.Lock()
	defer c.mu.Unlock()

	snr := rms / c.noiseFloor
	prob := 1.0 / (1.0 + math.Exp(-snrSteepness*(snr-snrMidpoint)))

	// Only quiet windows feed the floor, so speech cannot raise it.
	if prob < 0.5 {
		c.noiseFloor = (1-floorAlpha)*c.noiseFloor + floorAlpha*rms
		if c.noiseFloor < minNoiseFloor {
			c.noiseFloor = minNoiseFloor
		}
	}

	return prob, nil
}

// Reset restores the initial noise floor, dropping everything learned from
// the stream so far.
func (c *EnergyClassifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.noiseFloor = initialNoiseFloor
}
