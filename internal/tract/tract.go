// Package tract simulates the vocal tract as a digital waveguide: a chain of
// short cylindrical segments from the glottis (index 0) to the lips, with a
// nasal side branch coupled in through a three-way junction.
//
// Step and FinishBlock belong to the audio goroutine. Targets, the velum and
// the constriction list are published by one control goroutine through
// atomics and are only read by the audio goroutine at block boundaries.
package tract

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"

	"github.com/mqce/voice-synth-experiment/internal/interp"
)

const (
	VelumClosed = 0.01
	VelumOpen   = 0.4

	amplitudeUpdateChance = 0.1
	amplitudeDecay        = 0.999
)

var ErrGeometry = errors.New("tract: invalid geometry")

// Modulator supplies the glottal noise modulation applied to turbulence.
type Modulator interface {
	NoiseModulator() float64
}

type unitModulator struct{}

func (unitModulator) NoiseModulator() float64 { return 1 }

type Params struct {
	Segments          int
	NoseLength        int
	BladeStart        int
	TipStart          int
	LipStart          int
	GlottalReflection float64
	LipReflection     float64
	Loss              float64 // per-step loss of the main tract
	NoseLoss          float64 // per-step loss of the nasal branch
	MovementSpeed     float64 // diameter units per second
	MaxTransients     int
	Seed              int64
}

func DefaultParams() Params {
	return Params{
		Segments:          44,
		NoseLength:        28,
		BladeStart:        10,
		TipStart:          32,
		LipStart:          39,
		GlottalReflection: 0.75,
		LipReflection:     -0.85,
		Loss:              0.999,
		NoseLoss:          0.999,
		MovementSpeed:     15,
		MaxTransients:     32,
		Seed:              1,
	}
}

func (p Params) validate() error {
	n := p.Segments
	switch {
	case n < 4:
		return fmt.Errorf("%w: %d segments", ErrGeometry, n)
	case p.NoseLength < 3 || p.NoseLength > n:
		return fmt.Errorf("%w: nose length %d for %d segments", ErrGeometry, p.NoseLength, n)
	case !(0 < p.BladeStart && p.BladeStart < p.TipStart && p.TipStart < p.LipStart && p.LipStart <= n):
		return fmt.Errorf("%w: blade %d, tip %d, lips %d", ErrGeometry, p.BladeStart, p.TipStart, p.LipStart)
	case p.TipStart <= p.Segments-p.NoseLength+1:
		return fmt.Errorf("%w: tip %d must lie past the nose junction", ErrGeometry, p.TipStart)
	}
	return nil
}

// Constriction is the turbulence view of one control touch.
type Constriction struct {
	Index     float64 // real-valued position along the tract
	Diameter  float64 // diameter at the touch point
	Intensity float64 // fricative intensity in [0, 1]
}

type Tract struct {
	params     Params
	sampleRate float64
	n          int
	noseLength int
	noseStart  int
	mod        Modulator
	rng        *rand.Rand

	// control-published state
	targetIn        interp.Floats
	velumIn         *interp.Float
	constrictionsIn atomic.Pointer[[]Constriction]

	rest       []float64
	slowReturn []float64
	diameter   []float64
	target     []float64
	area       []float64

	right        []float64
	left         []float64
	junctionR    []float64
	junctionL    []float64
	reflection   []interp.Pair
	maxAmplitude []float64

	reflectionLeft  interp.Pair
	reflectionRight interp.Pair
	reflectionNose  interp.Pair

	noseR            []float64
	noseL            []float64
	noseJunctionR    []float64
	noseJunctionL    []float64
	noseReflection   []float64
	noseDiameter     []float64
	noseArea         []float64
	noseMaxAmplitude []float64

	lastObstruction int
	transients      []Transient
	constrictions   []Constriction
}

// New builds a tract at its rest geometry with the velum closed. mod may be
// nil, in which case turbulence is not modulated.
func New(sampleRate int, params Params, mod Modulator) (*Tract, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("tract: sample rate must be positive, got %d", sampleRate)
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	if params.MaxTransients <= 0 {
		params.MaxTransients = 32
	}
	if mod == nil {
		mod = unitModulator{}
	}
	n := params.Segments
	nl := params.NoseLength
	t := &Tract{
		params:           params,
		sampleRate:       float64(sampleRate),
		n:                n,
		noseLength:       nl,
		noseStart:        n - nl + 1,
		mod:              mod,
		rng:              rand.New(rand.NewSource(params.Seed)),
		rest:             restGeometry(n),
		diameter:         make([]float64, n),
		target:           make([]float64, n),
		area:             make([]float64, n),
		right:            make([]float64, n),
		left:             make([]float64, n),
		junctionR:        make([]float64, n+1),
		junctionL:        make([]float64, n+1),
		reflection:       make([]interp.Pair, n+1),
		maxAmplitude:     make([]float64, n),
		noseR:            make([]float64, nl),
		noseL:            make([]float64, nl),
		noseJunctionR:    make([]float64, nl+1),
		noseJunctionL:    make([]float64, nl+1),
		noseReflection:   make([]float64, nl+1),
		noseDiameter:     noseGeometry(nl),
		noseArea:         make([]float64, nl),
		noseMaxAmplitude: make([]float64, nl),
		lastObstruction:  -1,
		transients:       make([]Transient, 0, params.MaxTransients),
	}
	t.slowReturn = t.slowReturnRates()
	copy(t.diameter, t.rest)
	copy(t.target, t.rest)
	t.targetIn = interp.NewFloats(n, t.rest)
	t.velumIn = interp.NewFloat(VelumClosed)
	t.noseDiameter[0] = VelumClosed

	t.calculateReflections()
	t.calculateNoseReflections()
	// start the first block without an interpolation sweep
	for i := range t.reflection {
		t.reflection[i] = interp.Hold(t.reflection[i].New)
	}
	t.reflectionLeft = interp.Hold(t.reflectionLeft.New)
	t.reflectionRight = interp.Hold(t.reflectionRight.New)
	t.reflectionNose = interp.Hold(t.reflectionNose.New)
	return t, nil
}

func (t *Tract) Params() Params  { return t.params }
func (t *Tract) Segments() int   { return t.n }
func (t *Tract) NoseLength() int { return t.noseLength }
func (t *Tract) NoseStart() int  { return t.noseStart }

// RestDiameters returns a copy of the uncontrolled tract geometry.
func (t *Tract) RestDiameters() []float64 {
	return append([]float64(nil), t.rest...)
}

// SetTargetDiameter commands segment i toward diameter d. Negative and NaN
// diameters close the segment.
func (t *Tract) SetTargetDiameter(i int, d float64) {
	if i < 0 || i >= t.n {
		return
	}
	t.targetIn[i].Store(sanitizeDiameter(d))
}

// SetTargetDiameters publishes a full target profile; extra values are ignored.
func (t *Tract) SetTargetDiameters(ds []float64) {
	for i := 0; i < t.n && i < len(ds); i++ {
		t.targetIn[i].Store(sanitizeDiameter(ds[i]))
	}
}

// TargetDiameters copies the published targets into dst.
func (t *Tract) TargetDiameters(dst []float64) []float64 {
	if cap(dst) < t.n {
		dst = make([]float64, t.n)
	}
	return t.targetIn.LoadInto(dst)
}

func (t *Tract) SetVelumTarget(d float64) { t.velumIn.Store(sanitizeDiameter(d)) }
func (t *Tract) VelumTarget() float64     { return t.velumIn.Load() }

// SetConstrictions replaces the turbulence sources. The slice is copied; the
// audio goroutine picks it up at the next block boundary.
func (t *Tract) SetConstrictions(cs []Constriction) {
	snapshot := append([]Constriction(nil), cs...)
	t.constrictionsIn.Store(&snapshot)
}

func sanitizeDiameter(d float64) float64 {
	if math.IsNaN(d) || d < 0 {
		return 0
	}
	return d
}

// Step advances the waveguide by half an output sample and returns the sum of
// the lip and nostril outputs. lambda is the position within the current block.
func (t *Tract) Step(excitation, turbulence, lambda float64) float64 {
	updateAmplitudes := t.rng.Float64() < amplitudeUpdateChance

	t.processTransients()
	t.addTurbulence(turbulence)

	n := t.n
	t.junctionR[0] = t.left[0]*t.params.GlottalReflection + excitation
	t.junctionL[n] = t.right[n-1] * t.params.LipReflection

	for i := 1; i < n; i++ {
		r := t.reflection[i].At(lambda)
		w := r * (t.right[i-1] + t.left[i])
		t.junctionR[i] = t.right[i-1] - w
		t.junctionL[i] = t.left[i] + w
	}

	i := t.noseStart
	r := t.reflectionLeft.At(lambda)
	t.junctionL[i] = r*t.right[i-1] + (1+r)*(t.noseL[0]+t.left[i])
	r = t.reflectionRight.At(lambda)
	t.junctionR[i] = r*t.left[i] + (1+r)*(t.right[i-1]+t.noseL[0])
	r = t.reflectionNose.At(lambda)
	t.noseJunctionR[0] = r*t.noseL[0] + (1+r)*(t.left[i]+t.right[i-1])

	loss := t.params.Loss
	for i := 0; i < n; i++ {
		t.right[i] = t.junctionR[i] * loss
		t.left[i] = t.junctionL[i+1] * loss
	}
	if updateAmplitudes {
		trackAmplitudes(t.maxAmplitude, t.right, t.left)
	}
	lipOutput := t.right[n-1]

	nl := t.noseLength
	t.noseJunctionL[nl] = t.noseR[nl-1] * t.params.LipReflection
	for i := 1; i < nl; i++ {
		w := t.noseReflection[i] * (t.noseR[i-1] + t.noseL[i])
		t.noseJunctionR[i] = t.noseR[i-1] - w
		t.noseJunctionL[i] = t.noseL[i] + w
	}
	noseLoss := t.params.NoseLoss
	for i := 0; i < nl; i++ {
		t.noseR[i] = t.noseJunctionR[i] * noseLoss
		t.noseL[i] = t.noseJunctionL[i+1] * noseLoss
	}
	if updateAmplitudes {
		trackAmplitudes(t.noseMaxAmplitude, t.noseR, t.noseL)
	}
	noseOutput := t.noseR[nl-1]

	return lipOutput + noseOutput
}

func trackAmplitudes(envelope, right, left []float64) {
	for i := range envelope {
		a := math.Abs(right[i] + left[i])
		if a > envelope[i] {
			envelope[i] = a
		} else {
			envelope[i] *= amplitudeDecay
		}
	}
}

// FinishBlock adopts the published control state, relaxes the geometry toward
// its targets over blockDuration seconds and commits the reflection endpoints
// interpolated by the next block.
func (t *Tract) FinishBlock(blockDuration float64) {
	t.target = t.targetIn.LoadInto(t.target)
	if cs := t.constrictionsIn.Load(); cs != nil {
		t.constrictions = *cs
	} else {
		t.constrictions = nil
	}
	t.reshape(blockDuration, t.velumIn.Load())
	t.calculateReflections()
	t.calculateNoseReflections()
}

// Diameters copies the current main tract diameters into dst.
// Audio goroutine only.
func (t *Tract) Diameters(dst []float64) []float64 {
	return append(dst[:0], t.diameter...)
}

// NoseDiameters copies the current nasal diameters into dst.
// Audio goroutine only.
func (t *Tract) NoseDiameters(dst []float64) []float64 {
	return append(dst[:0], t.noseDiameter...)
}

// MaxAmplitudes copies the per-segment amplitude envelope into dst.
// Audio goroutine only.
func (t *Tract) MaxAmplitudes(dst []float64) []float64 {
	return append(dst[:0], t.maxAmplitude...)
}

// NoseMaxAmplitudes is MaxAmplitudes for the nasal branch.
func (t *Tract) NoseMaxAmplitudes(dst []float64) []float64 {
	return append(dst[:0], t.noseMaxAmplitude...)
}
