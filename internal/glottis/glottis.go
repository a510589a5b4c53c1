// Package glottis generates the voiced excitation: an LF-model pulse train
// with vibrato, pitch smoothing and pulse-synchronous aspiration noise.
package glottis

import (
	"math"
	"sync/atomic"

	"github.com/mqce/voice-synth-experiment/internal/interp"
	"github.com/mqce/voice-synth-experiment/internal/lfo"
)

const (
	MinFrequency = 20.0
	MaxFrequency = 2000.0
)

type Params struct {
	Frequency   float64 // initial UI frequency in Hz
	Tenseness   float64 // initial UI tenseness, 0..1
	Vibrato     lfo.Sine
	PitchWobble []lfo.Layer // gated layers follow the auto-wobble flag
	TenseWobble []lfo.Layer
	PitchRise   float64 // per-block smoothing factor toward a higher target
	AttackStep  float64 // intensity increment per block while voiced
	ReleaseStep float64 // intensity decrement per block while silent
	AlwaysVoice bool
	AutoWobble  bool
	Seed        int64
}

func DefaultParams() Params {
	return Params{
		Frequency: 140,
		Tenseness: 0.6,
		Vibrato:   lfo.Sine{Depth: 0.005, RateHz: 6},
		PitchWobble: []lfo.Layer{
			{Depth: 0.02, Rate: 4.07},
			{Depth: 0.04, Rate: 2.15},
			{Depth: 0.2, Rate: 0.98, Gated: true},
			{Depth: 0.4, Rate: 0.5, Gated: true},
		},
		TenseWobble: []lfo.Layer{
			{Depth: 0.1, Rate: 0.46},
			{Depth: 0.05, Rate: 0.36},
		},
		PitchRise:   1.1,
		AttackStep:  0.13,
		ReleaseStep: 0.05,
		AlwaysVoice: true,
		AutoWobble:  true,
		Seed:        1,
	}
}

// Glottis is driven sample by sample from the audio goroutine (RunStep,
// FinishBlock, NoiseModulator). The Set* methods may be called from any other
// single control goroutine; they only publish atomics read at block boundaries.
type Glottis struct {
	sampleRate float64
	timeStep   float64
	params     Params

	uiFrequency *interp.Float
	uiTenseness *interp.Float
	alwaysVoice atomic.Bool
	autoWobble  atomic.Bool
	touched     atomic.Bool

	frequency       interp.Pair
	tenseness       interp.Pair
	smoothFrequency float64
	blockTenseness  float64 // UI tenseness sampled at the last block boundary
	loudness        float64
	intensity       float64

	timeInWaveform float64
	cycleLength    float64
	totalTime      float64
	waveform       Waveform

	noise       *lfo.Noise
	pitchWobble *lfo.Wobble
	tenseWobble *lfo.Wobble
}

func New(sampleRate int, params Params) *Glottis {
	if params.PitchRise <= 1 {
		params.PitchRise = 1.1
	}
	freq := clampFrequency(params.Frequency)
	tense := interp.Clamp(params.Tenseness, 0, 1)
	noise := lfo.NewNoise(params.Seed)
	g := &Glottis{
		sampleRate:      float64(sampleRate),
		timeStep:        1 / float64(sampleRate),
		params:          params,
		uiFrequency:     interp.NewFloat(freq),
		uiTenseness:     interp.NewFloat(tense),
		frequency:       interp.Hold(freq),
		tenseness:       interp.Hold(tense),
		smoothFrequency: freq,
		blockTenseness:  tense,
		loudness:        math.Pow(tense, 0.25),
		noise:           noise,
		pitchWobble:     lfo.NewWobble(noise, params.PitchWobble...),
		tenseWobble:     lfo.NewWobble(noise, params.TenseWobble...),
	}
	g.alwaysVoice.Store(params.AlwaysVoice)
	g.autoWobble.Store(params.AutoWobble)
	g.cycleLength = g.waveform.SetupPairs(g.frequency, g.tenseness, 0)
	return g
}

func clampFrequency(hz float64) float64 {
	if math.IsNaN(hz) {
		return MinFrequency
	}
	return interp.Clamp(hz, MinFrequency, MaxFrequency)
}

// SetFrequency sets the target pitch in Hz.
func (g *Glottis) SetFrequency(hz float64) {
	g.uiFrequency.Store(clampFrequency(hz))
}

// SetTenseness sets vocal effort in [0, 1]; loudness follows as tenseness^0.25.
func (g *Glottis) SetTenseness(t float64) {
	if math.IsNaN(t) {
		t = 0
	}
	g.uiTenseness.Store(interp.Clamp(t, 0, 1))
}

func (g *Glottis) SetAlwaysVoice(on bool) { g.alwaysVoice.Store(on) }
func (g *Glottis) SetAutoWobble(on bool)  { g.autoWobble.Store(on) }

// SetTouched marks the voice as actively controlled (a held pitch key).
func (g *Glottis) SetTouched(on bool) { g.touched.Store(on) }

func (g *Glottis) Frequency() float64 { return g.uiFrequency.Load() }
func (g *Glottis) Tenseness() float64 { return g.uiTenseness.Load() }
func (g *Glottis) AutoWobble() bool   { return g.autoWobble.Load() }
func (g *Glottis) Touched() bool      { return g.touched.Load() }

// Intensity is the current voicing envelope. Audio goroutine only.
func (g *Glottis) Intensity() float64 { return g.intensity }

// CycleLength is the length of the current waveform cycle in seconds.
// Audio goroutine only.
func (g *Glottis) CycleLength() float64 { return g.cycleLength }

// RunStep produces one excitation sample. noise is one sample of band-limited
// aspiration noise and lambda the sample's position within the current block.
func (g *Glottis) RunStep(noise, lambda float64) float64 {
	g.timeInWaveform += g.timeStep
	g.totalTime += g.timeStep
	if g.timeInWaveform > g.cycleLength {
		g.timeInWaveform -= g.cycleLength
		g.cycleLength = g.waveform.SetupPairs(g.frequency, g.tenseness, lambda)
	}
	out := g.waveform.Evaluate(g.timeInWaveform/g.cycleLength) * g.intensity * g.loudness

	aspiration := g.intensity * (1 - math.Sqrt(g.blockTenseness)) * g.NoiseModulator() * noise
	aspiration *= 0.2 + 0.02*g.noise.At(g.totalTime*1.99)
	return out + aspiration
}

// NoiseModulator scales noise sources with the glottal cycle: louder while the
// folds are open, and less modulated as the voice becomes breathier or quieter.
func (g *Glottis) NoiseModulator() float64 {
	voiced := 0.1 + 0.2*math.Max(0, math.Sin(2*math.Pi*g.timeInWaveform/g.cycleLength))
	ti := g.blockTenseness * g.intensity
	return ti*voiced + (1-ti)*0.3
}

// FinishBlock commits the interpolation endpoints for the next block.
func (g *Glottis) FinishBlock() {
	uiFrequency := g.uiFrequency.Load()
	uiTenseness := g.uiTenseness.Load()
	touched := g.touched.Load()
	alwaysVoice := g.alwaysVoice.Load()

	if g.intensity == 0 {
		g.smoothFrequency = uiFrequency
	}

	vibrato := g.params.Vibrato.At(g.totalTime)
	vibrato += g.pitchWobble.At(g.totalTime, g.autoWobble.Load())

	if uiFrequency > g.smoothFrequency {
		g.smoothFrequency = math.Min(g.smoothFrequency*g.params.PitchRise, uiFrequency)
	}
	if uiFrequency < g.smoothFrequency {
		g.smoothFrequency = math.Max(g.smoothFrequency/g.params.PitchRise, uiFrequency)
	}
	g.frequency.Commit(g.smoothFrequency * (1 + vibrato))

	tenseness := uiTenseness + g.tenseWobble.At(g.totalTime, true)
	if !touched && alwaysVoice {
		tenseness += (3 - uiTenseness) * (1 - g.intensity)
	}
	g.tenseness.Commit(tenseness)
	g.blockTenseness = uiTenseness
	g.loudness = math.Pow(uiTenseness, 0.25)

	if touched || alwaysVoice {
		g.intensity += g.params.AttackStep
	} else {
		g.intensity -= g.params.ReleaseStep
	}
	g.intensity = interp.Clamp(g.intensity, 0, 1)
}
