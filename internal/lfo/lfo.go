package lfo

import (
	"math"

	"github.com/ojrac/opensimplex-go"
)

// Sine is a fixed-rate sinusoidal modulator evaluated at absolute time, so it
// can be sampled once per block without accumulating phase error.
type Sine struct {
	Depth  float64 // peak deviation (relative units, e.g. 0.005 = 0.5%)
	RateHz float64
}

// At returns the modulation value at time t seconds, in [-Depth, +Depth].
func (s Sine) At(t float64) float64 {
	if s.Depth == 0 || s.RateHz == 0 {
		return 0
	}
	return s.Depth * math.Sin(2*math.Pi*t*s.RateHz)
}

// Noise is a smooth one-dimensional pseudo-random signal in roughly [-1, 1].
// It is deterministic for a given seed.
type Noise struct {
	src opensimplex.Noise
}

func NewNoise(seed int64) *Noise {
	return &Noise{src: opensimplex.New(seed)}
}

// At samples the noise at x. The 2D field is sliced along a diagonal so the
// result never lines up with the lattice axes.
func (n *Noise) At(x float64) float64 {
	return n.src.Eval2(x*1.2, -x*0.7)
}

// Layer is one component of a Wobble: Depth scales noise sampled at Rate*t.
// Gated layers only contribute while the wobble gate is open.
type Layer struct {
	Depth float64
	Rate  float64
	Gated bool
}

// Wobble sums several slow noise layers at different rates.
type Wobble struct {
	noise  *Noise
	layers []Layer
}

func NewWobble(noise *Noise, layers ...Layer) *Wobble {
	return &Wobble{noise: noise, layers: append([]Layer(nil), layers...)}
}

// At returns the summed layers at time t. Gated layers are skipped unless open.
func (w *Wobble) At(t float64, open bool) float64 {
	var v float64
	for _, l := range w.layers {
		if l.Gated && !open {
			continue
		}
		v += l.Depth * w.noise.At(t*l.Rate)
	}
	return v
}

// Active reports whether any layer has non-zero depth.
func (w *Wobble) Active() bool {
	for _, l := range w.layers {
		if l.Depth != 0 {
			return true
		}
	}
	return false
}
