// Package analysis measures rendered audio: level, spectrum, fundamental and
// harmonicity. It backs the CLI report and the end-to-end tests.
package analysis

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// RMS is the root mean square level of samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Peak is the largest absolute sample value.
func Peak(samples []float32) float64 {
	var peak float64
	for _, s := range samples {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	return peak
}

// FrameRMS splits samples into consecutive frames of size n and returns the
// level of each. A trailing partial frame is dropped.
func FrameRMS(samples []float32, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, 0, len(samples)/n)
	for start := 0; start+n <= len(samples); start += n {
		out = append(out, RMS(samples[start:start+n]))
	}
	return out
}

// Spectrum is the magnitude spectrum of a Hann-windowed signal.
type Spectrum struct {
	SampleRate float64
	Size       int       // transform length in samples
	Magnitudes []float64 // bins 0..Size/2
}

// NewSpectrum transforms samples. The whole slice is one frame.
func NewSpectrum(samples []float32, sampleRate int) Spectrum {
	seq := make([]float64, len(samples))
	for i, s := range samples {
		seq[i] = float64(s)
	}
	window.Hann(seq)
	fft := fourier.NewFFT(len(seq))
	coeffs := fft.Coefficients(nil, seq)
	mags := make([]float64, len(coeffs))
	for i, c := range coeffs {
		mags[i] = cmplx.Abs(c)
	}
	return Spectrum{SampleRate: float64(sampleRate), Size: len(seq), Magnitudes: mags}
}

// BinWidth is the frequency spacing of the bins in Hz.
func (s Spectrum) BinWidth() float64 {
	return s.SampleRate / float64(s.Size)
}

func (s Spectrum) bin(hz float64) int {
	return int(math.Round(hz / s.BinWidth()))
}

func (s Spectrum) binRange(lo, hi float64) (int, int) {
	a := max(s.bin(lo), 0)
	b := min(s.bin(hi), len(s.Magnitudes)-1)
	return a, b
}

// PeakFrequency returns the strongest bin between lo and hi Hz.
func (s Spectrum) PeakFrequency(lo, hi float64) (hz, magnitude float64) {
	a, b := s.binRange(lo, hi)
	if a > b {
		return 0, 0
	}
	i := a + floats.MaxIdx(s.Magnitudes[a:b+1])
	return float64(i) * s.BinWidth(), s.Magnitudes[i]
}

// Energy sums squared magnitudes between lo and hi Hz.
func (s Spectrum) Energy(lo, hi float64) float64 {
	a, b := s.binRange(lo, hi)
	var e float64
	for i := a; i <= b; i++ {
		e += s.Magnitudes[i] * s.Magnitudes[i]
	}
	return e
}

// HarmonicRatio is the share of the energy up to the last harmonic that lies
// within tolerance Hz of a multiple of f0.
func (s Spectrum) HarmonicRatio(f0 float64, harmonics int, tolerance float64) float64 {
	if f0 <= 0 || harmonics <= 0 {
		return 0
	}
	total := s.Energy(f0/2, float64(harmonics)*f0+tolerance)
	if total == 0 {
		return 0
	}
	var near float64
	for k := 1; k <= harmonics; k++ {
		near += s.Energy(float64(k)*f0-tolerance, float64(k)*f0+tolerance)
	}
	return near / total
}

// Fundamental estimates the pitch between lo and hi Hz with a harmonic
// product over the first few partials, which rejects octave errors toward
// loud formant harmonics.
func (s Spectrum) Fundamental(lo, hi float64) float64 {
	const partials = 4
	a, b := s.binRange(lo, hi)
	best, bestScore := 0, math.Inf(-1)
	for i := max(a, 1); i <= b; i++ {
		var score float64
		for k := 1; k <= partials; k++ {
			j := i * k
			if j >= len(s.Magnitudes) {
				break
			}
			score += math.Log(s.Magnitudes[j] + 1e-12)
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return float64(best) * s.BinWidth()
}

// Report summarizes a rendered signal.
type Report struct {
	RMS         float64
	Peak        float64
	Fundamental float64 // Hz, 0 when silent
	Harmonicity float64 // energy share at multiples of Fundamental
}

// Analyze measures samples with a pitch search between 50 and 1000 Hz.
func Analyze(samples []float32, sampleRate int) Report {
	r := Report{RMS: RMS(samples), Peak: Peak(samples)}
	if r.RMS == 0 || len(samples) < 2 {
		return r
	}
	spec := NewSpectrum(samples, sampleRate)
	r.Fundamental = spec.Fundamental(50, 1000)
	r.Harmonicity = spec.HarmonicRatio(r.Fundamental, 10, 3*spec.BinWidth())
	return r
}
