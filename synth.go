// Package voicesynth is an articulatory voice synthesizer: an LF-model glottal
// source driving a digital-waveguide model of the vocal and nasal tracts.
package voicesynth

import (
	"errors"
	"fmt"

	"github.com/mqce/voice-synth-experiment/internal/effects"
	"github.com/mqce/voice-synth-experiment/internal/glottis"
	"github.com/mqce/voice-synth-experiment/internal/interp"
	"github.com/mqce/voice-synth-experiment/internal/noise"
	"github.com/mqce/voice-synth-experiment/internal/tract"
)

const (
	DefaultBlockLength = 512
	DefaultOutputGain  = 0.125

	aspirationHz = 500
	fricativeHz  = 1000
	noiseQ       = 0.5
)

var (
	ErrSampleRate  = errors.New("voicesynth: sample rate must be positive")
	ErrBlockLength = errors.New("voicesynth: block length must be positive")
)

// BlockHook runs on the audio goroutine at the end of every block, before the
// glottis and tract commit their next targets. now is the stream time at the
// block boundary in seconds.
type BlockHook func(s *Synth, now float64)

type Option func(*synthConfig)

type synthConfig struct {
	blockLength int
	glottis     glottis.Params
	tract       tract.Params
	chain       *effects.Chain
	chainDesc   string
	noiseSeed   int64
	aspiration  noise.Source
	fricative   noise.Source
	outputGain  float64
	hooks       []BlockHook
}

func defaultSynthConfig() synthConfig {
	return synthConfig{
		blockLength: DefaultBlockLength,
		glottis:     glottis.DefaultParams(),
		tract:       tract.DefaultParams(),
		noiseSeed:   1,
		outputGain:  DefaultOutputGain,
	}
}

// WithBlockLength sets the number of samples between control updates.
func WithBlockLength(n int) Option {
	return func(cfg *synthConfig) {
		cfg.blockLength = n
	}
}

func WithGlottisParams(p glottis.Params) Option {
	return func(cfg *synthConfig) {
		cfg.glottis = p
	}
}

func WithTractParams(p tract.Params) Option {
	return func(cfg *synthConfig) {
		cfg.tract = p
	}
}

// WithEffects routes the output through chain.
func WithEffects(chain *effects.Chain) Option {
	return func(cfg *synthConfig) {
		cfg.chain = chain
	}
}

// WithEffectsSpec builds the output chain from a description understood by
// effects.ParseChain, e.g. "reverb 0.5,0.7,0.2; limiter -1".
func WithEffectsSpec(desc string) Option {
	return func(cfg *synthConfig) {
		cfg.chainDesc = desc
	}
}

// WithNoiseSeed seeds the white noise behind aspiration and frication.
func WithNoiseSeed(seed int64) Option {
	return func(cfg *synthConfig) {
		cfg.noiseSeed = seed
	}
}

// WithNoiseSources replaces the filtered noise generators. A nil source keeps
// the default for that input.
func WithNoiseSources(aspiration, fricative noise.Source) Option {
	return func(cfg *synthConfig) {
		cfg.aspiration = aspiration
		cfg.fricative = fricative
	}
}

func WithOutputGain(gain float64) Option {
	return func(cfg *synthConfig) {
		cfg.outputGain = gain
	}
}

// WithBlockHook adds a hook called at every block boundary. Hooks run in the
// order they were added.
func WithBlockHook(h BlockHook) Option {
	return func(cfg *synthConfig) {
		cfg.hooks = append(cfg.hooks, h)
	}
}

// Synth renders mono audio from a glottis and tract pair. Process must be
// called from a single goroutine; the glottis and tract setters and
// SetOutputGain may be used concurrently from one control goroutine.
type Synth struct {
	sampleRate  int
	blockLength int
	blockTime   float64

	glottis    *glottis.Glottis
	tract      *tract.Tract
	aspiration noise.Source
	fricative  noise.Source
	chain      *effects.Chain
	gain       *interp.Float
	hooks      []BlockHook

	pos    int // sample position within the current block
	blocks int64
}

func NewSynth(sampleRate int, opts ...Option) (*Synth, error) {
	if sampleRate <= 0 {
		return nil, ErrSampleRate
	}
	cfg := defaultSynthConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.blockLength <= 0 {
		return nil, ErrBlockLength
	}

	g := glottis.New(sampleRate, cfg.glottis)
	tr, err := tract.New(sampleRate, cfg.tract, g)
	if err != nil {
		return nil, fmt.Errorf("voicesynth: %w", err)
	}

	chain := cfg.chain
	if chain == nil {
		chain, err = effects.ParseChain(cfg.chainDesc, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("voicesynth: effects: %w", err)
		}
	}

	sr := float64(sampleRate)
	aspiration := cfg.aspiration
	if aspiration == nil {
		aspiration = noise.NewFiltered(noise.NewWhite(cfg.noiseSeed), noise.NewBandpass(sr, aspirationHz, noiseQ))
	}
	fricative := cfg.fricative
	if fricative == nil {
		fricative = noise.NewFiltered(noise.NewWhite(cfg.noiseSeed+1), noise.NewBandpass(sr, fricativeHz, noiseQ))
	}

	return &Synth{
		sampleRate:  sampleRate,
		blockLength: cfg.blockLength,
		blockTime:   float64(cfg.blockLength) / sr,
		glottis:     g,
		tract:       tr,
		aspiration:  aspiration,
		fricative:   fricative,
		chain:       chain,
		gain:        interp.NewFloat(cfg.outputGain),
		hooks:       cfg.hooks,
	}, nil
}

func (s *Synth) SampleRate() int            { return s.sampleRate }
func (s *Synth) BlockLength() int           { return s.blockLength }
func (s *Synth) Glottis() *glottis.Glottis  { return s.glottis }
func (s *Synth) Tract() *tract.Tract        { return s.tract }
func (s *Synth) Effects() *effects.Chain    { return s.chain }
func (s *Synth) OutputGain() float64        { return s.gain.Load() }
func (s *Synth) SetOutputGain(gain float64) { s.gain.Store(max(gain, 0)) }

// Time is the stream position in seconds. Audio goroutine only.
func (s *Synth) Time() float64 {
	return float64(s.blocks)*s.blockTime + float64(s.pos)/float64(s.sampleRate)
}

// Process fills dst with mono samples. The tract runs at twice the sample
// rate; both half-steps see the same excitation and frication samples.
func (s *Synth) Process(dst []float32) {
	gain := s.gain.Load()
	n := float64(s.blockLength)
	for i := range dst {
		lambda1 := float64(s.pos) / n
		lambda2 := (float64(s.pos) + 0.5) / n
		excitation := s.glottis.RunStep(s.aspiration.Sample(), lambda1)
		turbulence := s.fricative.Sample()

		out := s.tract.Step(excitation, turbulence, lambda1)
		out += s.tract.Step(excitation, turbulence, lambda2)
		dst[i] = float32(out * gain)

		s.pos++
		if s.pos == s.blockLength {
			s.finishBlock()
		}
	}
	s.chain.ProcessBuffer(dst)
}

func (s *Synth) finishBlock() {
	s.pos = 0
	s.blocks++
	now := float64(s.blocks) * s.blockTime
	for _, h := range s.hooks {
		h(s, now)
	}
	s.glottis.FinishBlock()
	s.tract.FinishBlock(s.blockTime)
}
