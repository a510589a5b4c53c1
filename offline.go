package voicesynth

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/mqce/voice-synth-experiment/internal/sequencer"
)

// ErrDuration is returned when a render length is not positive.
var ErrDuration = errors.New("voicesynth: duration must be positive")

// scriptTail is rendered after the last scripted event so releases can decay.
const scriptTail = 0.5

// Render synthesizes seconds of the default voice.
func Render(sampleRate int, seconds float64, opts ...Option) ([]float32, error) {
	return RenderScript(sampleRate, sequencer.Script{}, seconds, opts...)
}

// RenderScript synthesizes a script offline. The sequencer and touch board
// advance at every block boundary, so events land with block resolution. A
// non-positive seconds renders a non-empty script's length plus a short tail.
func RenderScript(sampleRate int, script sequencer.Script, seconds float64, opts ...Option) ([]float32, error) {
	if seconds <= 0 && len(script.Events) > 0 {
		seconds = script.Duration() + scriptTail
	}
	if !(seconds > 0) || math.IsInf(seconds, 0) {
		return nil, ErrDuration
	}

	var (
		controls *Controls
		seq      = sequencer.New(script)
	)
	opts = append(opts[:len(opts):len(opts)], WithBlockHook(func(_ *Synth, now float64) {
		seq.Advance(now, controls)
		controls.Update(now)
	}))
	s, err := NewSynth(sampleRate, opts...)
	if err != nil {
		return nil, err
	}
	controls = NewControls(s)
	seq.Advance(0, controls)
	controls.Update(0)

	out := make([]float32, int(seconds*float64(sampleRate)))
	s.Process(out)
	return out, nil
}

// WriteWAV encodes mono samples as 16-bit PCM. Samples are clipped to
// [-1, 1].
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	if sampleRate <= 0 {
		return ErrSampleRate
	}
	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		buf.Data[i] = int(math.Round(v * 32767))
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("voicesynth: write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("voicesynth: close wav: %w", err)
	}
	return nil
}
