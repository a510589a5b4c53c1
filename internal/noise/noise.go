// Package noise supplies the band-limited noise streams consumed by the glottis
// (aspiration) and the tract (frication).
package noise

import (
	"math"
	"math/rand"
)

// White is a uniform white noise source in [-1, 1).
type White struct {
	rng  *rand.Rand
	seed int64
}

func NewWhite(seed int64) *White {
	return &White{rng: rand.New(rand.NewSource(seed)), seed: seed}
}

func (w *White) Sample() float64 {
	return 2*w.rng.Float64() - 1
}

// Reset restarts the sequence from the original seed.
func (w *White) Reset() {
	w.rng.Seed(w.seed)
}

// Bandpass is a two-pole, two-zero bandpass with 0 dB peak gain at the centre
// frequency.
type Bandpass struct {
	b0, b2 float64
	a1, a2 float64
	xn1    float64
	xn2    float64
	yn1    float64
	yn2    float64
}

// NewBandpass returns a filter centred on centerHz with quality factor q.
func NewBandpass(sampleRate, centerHz, q float64) *Bandpass {
	bp := &Bandpass{}
	bp.Update(sampleRate, centerHz, q)
	return bp
}

// Update recomputes the coefficients; filter state is kept.
func (bp *Bandpass) Update(sampleRate, centerHz, q float64) {
	if q <= 0 {
		q = 0.5
	}
	w0 := 2 * math.Pi * centerHz / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	a0 := 1 + alpha
	bp.b0 = alpha / a0
	bp.b2 = -alpha / a0
	bp.a1 = -2 * math.Cos(w0) / a0
	bp.a2 = (1 - alpha) / a0
}

// Reset sets the filter history to zero.
func (bp *Bandpass) Reset() {
	bp.xn1, bp.xn2, bp.yn1, bp.yn2 = 0, 0, 0, 0
}

func (bp *Bandpass) Filter(input float64) float64 {
	output := bp.b0*input + bp.b2*bp.xn2 - bp.a1*bp.yn1 - bp.a2*bp.yn2
	bp.xn2 = bp.xn1
	bp.xn1 = input
	bp.yn2 = bp.yn1
	bp.yn1 = output
	return output
}

// Source yields one noise sample per call.
type Source interface {
	Sample() float64
}

// Filtered is a noise source passed through a bandpass filter.
type Filtered struct {
	src    Source
	filter *Bandpass
}

func NewFiltered(src Source, filter *Bandpass) *Filtered {
	return &Filtered{src: src, filter: filter}
}

func (f *Filtered) Sample() float64 {
	return f.filter.Filter(f.src.Sample())
}

// Silence is a Source that always returns zero.
type Silence struct{}

func (Silence) Sample() float64 { return 0 }
