package glottis

import (
	"math"

	"github.com/mqce/voice-synth-experiment/internal/interp"
)

const (
	minRd = 0.5
	maxRd = 2.7
)

// Shape holds the fitted coefficients of one normalized Liljencrants-Fant
// glottal flow derivative cycle (time normalized to 1, excitation peak Ee = 1).
type Shape struct {
	Te      float64 // return phase start
	Epsilon float64 // return phase decay rate
	Shift   float64
	Delta   float64
	Alpha   float64 // open phase growth rate
	E0      float64 // open phase amplitude
	Omega   float64 // open phase angular frequency
}

// Rd maps tenseness to the LF shape parameter, clamped to the range where the
// closed form below stays finite.
func Rd(tenseness float64) float64 {
	return interp.Clamp(3*(1-tenseness), minRd, maxRd)
}

// Derive fits a cycle shape for the given tenseness. The open phase is a
// growing sinusoid that meets the exponential return at Te with value -1 and
// whose area up to Tp balances the area of the return branch.
func Derive(tenseness float64) Shape {
	rd := Rd(tenseness)

	ra := -0.01 + 0.048*rd
	rk := 0.224 + 0.118*rd
	rg := (rk / 4) * (0.5 + 1.2*rk) / (0.11*rd - ra*(0.5+1.2*rk))

	ta := ra
	tp := 1 / (2 * rg)
	te := tp + tp*rk

	epsilon := 1 / ta
	shift := math.Exp(-epsilon * (1 - te))
	delta := 1 - shift

	rhsIntegral := ((1/epsilon)*(shift-1) + (1-te)*shift) / delta
	totalLowerIntegral := -(te-tp)/2 + rhsIntegral
	totalUpperIntegral := -totalLowerIntegral

	omega := math.Pi / tp
	s := math.Sin(omega * te)
	// With x = e^alpha: E0*x^Te*s = -1 and E0*x^(Tp/2)*Tp*2/pi = upper integral.
	// Dividing gives y = x^(Tp/2-Te) in closed form.
	y := -math.Pi * s * totalUpperIntegral / (tp * 2)
	alpha := math.Log(y) / (tp/2 - te)
	e0 := -1 / (s * math.Exp(alpha*te))

	return Shape{
		Te:      te,
		Epsilon: epsilon,
		Shift:   shift,
		Delta:   delta,
		Alpha:   alpha,
		E0:      e0,
		Omega:   omega,
	}
}

// Evaluate returns the unit-amplitude waveform at phase t in [0, 1].
func (s *Shape) Evaluate(t float64) float64 {
	if t > s.Te {
		return (s.Shift - math.Exp(-s.Epsilon*(t-s.Te))) / s.Delta
	}
	return s.E0 * math.Exp(s.Alpha*t) * math.Sin(s.Omega*t)
}

// Waveform keeps the most recently derived cycle.
type Waveform struct {
	Shape
	Frequency float64
	Tenseness float64
}

// Setup derives a new cycle from the interpolated endpoints and returns its
// length in seconds.
func (w *Waveform) Setup(oldFrequency, newFrequency, oldTenseness, newTenseness, lambda float64) float64 {
	w.Frequency = interp.Lerp(oldFrequency, newFrequency, lambda)
	w.Tenseness = interp.Lerp(oldTenseness, newTenseness, lambda)
	w.Shape = Derive(w.Tenseness)
	return 1 / w.Frequency
}

// SetupPairs is Setup for block-interpolated parameters.
func (w *Waveform) SetupPairs(frequency, tenseness interp.Pair, lambda float64) float64 {
	return w.Setup(frequency.Old, frequency.New, tenseness.Old, tenseness.New, lambda)
}
