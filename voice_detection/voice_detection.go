package voice_detection

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

const (
	// onset when the flux rises this much over the previous window
	fluxRise = 1.75

	// RMS of normalized samples; roughly -40 dBFS
	minLevel = 0.01
)

type vadImpl struct {
	windowSize   int
	lastSpectrum []float64
}

func New(windowSize int) Interface {
	if windowSize <= 0 {
		windowSize = 1024
	}

	return &vadImpl{
		windowSize: windowSize,
	}
}

// Flux returns the spectral flux of samples against the previous call's
// window: the sum of positive magnitude changes per frequency bin.
func (v *vadImpl) Flux(samples []int16) float64 {
	in := make([]float64, len(samples))
	for i, s := range samples {
		in[i] = float64(s) / math.MaxInt16
	}

	return v.flux(in)
}

func (v *vadImpl) flux(in []float64) float64 {
	spectrum := fft.FFTReal(in)

	magnitudes := make([]float64, len(spectrum)/2+1)
	for i := range magnitudes {
		magnitudes[i] = cmplx.Abs(spectrum[i])
	}

	var flux float64

	for i, m := range magnitudes {
		var last float64
		if i < len(v.lastSpectrum) {
			last = v.lastSpectrum[i]
		}

		if diff := m - last; diff > 0 {
			flux += diff
		}
	}

	v.lastSpectrum = magnitudes

	return flux
}

// HeardSpeech walks a take window by window and reports whether any audible
// window is a sharp rise in spectral flux over the previous audible one. The
// first audible window only sets the baseline, so steady hiss is not speech.
// A trailing partial window is ignored.
func (v *vadImpl) HeardSpeech(samples []int) bool {
	v.lastSpectrum = nil

	var (
		primed   bool
		lastFlux float64
	)

	for start := 0; start+v.windowSize <= len(samples); start += v.windowSize {
		window := make([]float64, v.windowSize)
		for i, s := range samples[start : start+v.windowSize] {
			window[i] = float64(s) / math.MaxInt16
		}

		flux := v.flux(window)

		if rms(window) < minLevel {
			continue
		}

		if !primed {
			primed = true
			lastFlux = flux

			continue
		}

		if flux >= lastFlux*fluxRise {
			return true
		}

		lastFlux = flux
	}

	return false
}

func rms(window []float64) float64 {
	if len(window) == 0 {
		return 0
	}

	var sum float64
	for _, s := range window {
		sum += s * s
	}

	return math.Sqrt(sum / float64(len(window)))
}
