package voicesynth

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/op/go-logging"

	intaudio "github.com/mqce/voice-synth-experiment/internal/audio"
	intfx "github.com/mqce/voice-synth-experiment/internal/effects"
	intseq "github.com/mqce/voice-synth-experiment/internal/sequencer"
	"github.com/mqce/voice-synth-experiment/internal/touch"
)

var log = logging.MustGetLogger("voicesynth")

// PlaybackEvent carries playback and script events from Watch().
type PlaybackEvent struct {
	Kind   int          // EventLoopCompleted, EventPlaybackEnded, or EventScript
	Script intseq.Event // set for EventScript
}

const (
	EventLoopCompleted int = iota
	EventPlaybackEnded
	EventScript
)

const defaultControlInterval = 10 * time.Millisecond

type PlayerOption func(*playerConfig)

type playerConfig struct {
	synthOpts       []Option
	bufferSize      time.Duration
	controlInterval time.Duration
	loopPlayback    bool
	sampleTap       func([]float32)
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{controlInterval: defaultControlInterval}
}

// WithSynthOptions configures the Synth built for each Play.
func WithSynthOptions(opts ...Option) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.synthOpts = append(cfg.synthOpts, opts...)
	}
}

// WithBufferSize sets the device buffer. Zero keeps the backend default.
func WithBufferSize(d time.Duration) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.bufferSize = d
	}
}

// WithControlInterval sets how often touches and scripts are advanced.
func WithControlInterval(d time.Duration) PlayerOption {
	return func(cfg *playerConfig) {
		if d > 0 {
			cfg.controlInterval = d
		}
	}
}

func WithLoopPlayback(enabled bool) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.loopPlayback = enabled
	}
}

// WithSampleTap installs a callback invoked with each generated mono buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.sampleTap = tap
	}
}

// Player plays the synthesizer in real time. A control goroutine advances the
// script and touch envelopes; the audio backend pulls samples on its own
// goroutine. All methods are safe for concurrent use.
type Player struct {
	mu         sync.Mutex
	sampleRate int
	cfg        playerConfig
	baseGain   float64
	volume     float64
	masterEQ   *intfx.EQ

	synth    *Synth
	controls *Controls
	audio    *intaudio.Output
	cancel   context.CancelFunc
	start    time.Time
	done     chan struct{}

	eventCh   chan PlaybackEvent
	eventChMu sync.Mutex
}

// voiceSource adapts a Synth to the audio stream and reports when a
// non-looping script has ended.
type voiceSource struct {
	synth    *Synth
	masterEQ *intfx.EQ
	tap      func([]float32)
	finished atomic.Bool
}

func (v *voiceSource) Process(dst []float32) {
	v.synth.Process(dst)
	for i, x := range dst {
		dst[i] = v.masterEQ.Process(x)
	}
	if v.tap != nil {
		v.tap(dst)
	}
}

func (v *voiceSource) Finished() bool {
	return v.finished.Load()
}

// offsetController shifts script time onto the player clock so touches from
// a looped script age correctly.
type offsetController struct {
	*Controls
	offset float64
}

func (c *offsetController) TouchStart(now, index, diameter float64) touch.ID {
	return c.Controls.TouchStart(now+c.offset, index, diameter)
}

func (c *offsetController) TouchEnd(id touch.ID, now float64) bool {
	return c.Controls.TouchEnd(id, now+c.offset)
}

// NewPlayer validates the configuration and builds an idle synthesizer. No
// audio device is opened until Play.
func NewPlayer(sampleRate int, opts ...PlayerOption) (*Player, error) {
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	synth, err := NewSynth(sampleRate, cfg.synthOpts...)
	if err != nil {
		return nil, err
	}
	return &Player{
		sampleRate: sampleRate,
		cfg:        cfg,
		baseGain:   synth.OutputGain(),
		volume:     1,
		masterEQ:   intfx.NewEQ(sampleRate),
		synth:      synth,
		controls:   NewControls(synth),
	}, nil
}

// Play starts a fresh voice and runs script against it. An empty script plays
// the neutral voice until Stop or ctx is cancelled, leaving it to the caller
// to drive the Set* and Touch* methods.
func (p *Player) Play(ctx context.Context, script intseq.Script) error {
	// Recreate the synth on every Play so tract and envelope state does not
	// leak between performances.
	synth, err := NewSynth(p.sampleRate, p.cfg.synthOpts...)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	synth.SetOutputGain(p.baseGain * p.volume)
	controls := NewControls(synth)
	controls.Update(0)
	src := &voiceSource{synth: synth, masterEQ: p.masterEQ, tap: p.cfg.sampleTap}

	backend, err := intaudio.Open(p.sampleRate, src, p.cfg.bufferSize)
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.synth = synth
	p.controls = controls
	p.audio = backend
	p.cancel = cancel
	p.start = time.Now()
	p.done = make(chan struct{})

	go p.run(runCtx, script, controls, src, p.start, p.done)
	p.audio.Play()
	log.Infof("playing %q at %d Hz (%d events)", script.Name, p.sampleRate, len(script.Events))
	return nil
}

func (p *Player) run(ctx context.Context, script intseq.Script, controls *Controls, src *voiceSource, start time.Time, done chan struct{}) {
	ticker := time.NewTicker(p.cfg.controlInterval)
	defer ticker.Stop()

	seq := intseq.NewWithOptions(script, intseq.Options{
		OnEvent: func(ev intseq.Event) {
			p.sendEvent(PlaybackEvent{Kind: EventScript, Script: ev})
		},
	})
	ctl := &offsetController{Controls: controls}
	end := script.Duration() + scriptTail
	scripted := len(script.Events) > 0

	for {
		select {
		case <-ctx.Done():
			log.Debugf("control loop for %q stopped: %v", script.Name, ctx.Err())
			p.mu.Lock()
			if p.done == done {
				// cancelled by the caller's context rather than Stop
				p.stopLocked()
			}
			p.mu.Unlock()
			return
		case <-ticker.C:
		}
		now := time.Since(start).Seconds()

		p.mu.Lock()
		seq.Advance(now-ctl.offset, ctl)
		controls.Update(now)
		p.mu.Unlock()

		if !scripted || !seq.Done() || now-ctl.offset < end {
			continue
		}
		if p.cfg.loopPlayback {
			seq.Reset()
			ctl.offset = now
			p.sendEvent(PlaybackEvent{Kind: EventLoopCompleted})
			continue
		}
		src.finished.Store(true)
		p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded})
		p.signalDone(done)
		return
	}
}

func (p *Player) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}

// signalDone releases Wait if done still belongs to the current playback.
func (p *Player) signalDone(done chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == done && done != nil {
		close(done)
		p.done = nil
	}
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Pause()
	}
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Play()
	}
}

// stopLocked cancels the control loop and closes the device. p.mu must be
// held.
func (p *Player) stopLocked() error {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.audio == nil {
		return nil
	}
	err := p.audio.Close()
	if err != nil {
		log.Errorf("stop audio: %v", err)
	}
	p.audio = nil
	if p.done != nil {
		close(p.done)
		p.done = nil
	}
	return err
}

func (p *Player) Stop() error {
	p.mu.Lock()
	active := p.audio != nil
	err := p.stopLocked()
	p.mu.Unlock()
	if active {
		p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded})
		log.Info("playback stopped")
	}
	return err
}

// Wait blocks until the current script ends. When loop playback is enabled,
// or the script is empty, Wait blocks until Stop.
// Wait returns immediately if no playback is active.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Watch returns a channel that receives playback events. Events are sent when:
//   - EventLoopCompleted: a whole-script loop iteration finished (when looping)
//   - EventPlaybackEnded: playback finished or was stopped
//   - EventScript: a script event was applied
//
// The channel is buffered (cap 8); receive in a goroutine to avoid dropping events.
// Only the most recent Watch() channel receives events; call Watch before Play.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

// now is the control clock in seconds since Play. p.mu must be held.
func (p *Player) now() float64 {
	if p.start.IsZero() {
		return 0
	}
	return time.Since(p.start).Seconds()
}

func (p *Player) SetFrequency(hz float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.controls.SetFrequency(hz)
}

func (p *Player) SetTenseness(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.controls.SetTenseness(t)
}

func (p *Player) SetAlwaysVoice(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.controls.SetAlwaysVoice(on)
}

func (p *Player) SetAutoWobble(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.controls.SetAutoWobble(on)
}

// SetTouched marks the pitch as held by the user, which keeps the voice from
// releasing when AlwaysVoice is off.
func (p *Player) SetTouched(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.controls.SetTouched(on)
}

func (p *Player) SetTongue(index, diameter float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.controls.SetTongue(index, diameter)
}

// Touch places a constriction on the tract. It fades in over the touch attack
// and lasts until Release.
func (p *Player) Touch(index, diameter float64) touch.ID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.controls.TouchStart(p.now(), index, diameter)
}

func (p *Player) MoveTouch(id touch.ID, index, diameter float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.controls.TouchMove(id, index, diameter)
}

func (p *Player) Release(id touch.ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.controls.TouchEnd(id, p.now())
}

// Controls returns the current control surface. Callers must not use it
// concurrently with a playing Player; use the Player methods instead.
func (p *Player) Controls() *Controls {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.controls
}

// SetMasterVolume sets runtime volume scalar. 1.0 is default.
func (p *Player) SetMasterVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
	p.synth.SetOutputGain(p.baseGain * p.volume)
}

func (p *Player) MasterVolume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// SetEQBand sets the gain for a master EQ band (0-3). 1.0 = unity.
// Band edges are effects.Crossovers: <300Hz, 300-1200Hz, 1.2-4kHz, >4kHz.
// This takes effect immediately on the audio thread (lock-free).
func (p *Player) SetEQBand(band int, gain float32) {
	p.masterEQ.SetGain(band, gain)
}

// EQBand returns the current gain for a master EQ band (0-3).
func (p *Player) EQBand(band int) float32 {
	return p.masterEQ.Gain(band)
}

// PlaybackPosition returns the current output position of the audio driver in
// samples, i.e. what the listener actually hears right now. Returns 0 if not
// playing.
func (p *Player) PlaybackPosition() int64 {
	p.mu.Lock()
	a := p.audio
	p.mu.Unlock()
	if a == nil {
		return 0
	}
	pos := a.Position()
	return int64(pos.Seconds() * float64(p.sampleRate))
}
