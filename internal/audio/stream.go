// Package audio streams a mono sample source to the ebiten audio device.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// Source fills dst with mono samples.
type Source interface {
	Process(dst []float32)
}

// Finisher is a Source that knows when it has run out. The stream ends with
// io.EOF after the read during which Finished first reports true.
type Finisher interface {
	Source
	Finished() bool
}

const (
	channels      = 2
	bytesPerFrame = channels * 4 // float32 per channel
)

// Stream renders a Source on demand as interleaved stereo float32
// little-endian frames, the layout ebiten's NewPlayerF32 consumes. Both
// channels carry the same signal.
type Stream struct {
	mu     sync.Mutex
	source Source
	mono   []float32
	closed bool
	frames atomic.Int64
}

func NewStream(source Source) *Stream {
	return &Stream{source: source}
}

func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.EOF
	}

	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	if cap(s.mono) < frames {
		s.mono = make([]float32, frames)
	}
	s.mono = s.mono[:frames]
	s.source.Process(s.mono)
	for i, v := range s.mono {
		putFrame(p[i*bytesPerFrame:], v)
	}
	s.frames.Add(int64(frames))

	n := frames * bytesPerFrame
	if f, ok := s.source.(Finisher); ok && f.Finished() {
		return n, io.EOF
	}
	return n, nil
}

func putFrame(dst []byte, v float32) {
	bits := math.Float32bits(v)
	for ch := 0; ch < channels; ch++ {
		binary.LittleEndian.PutUint32(dst[ch*4:], bits)
	}
}

// Rendered reports how many frames the source has produced so far.
func (s *Stream) Rendered() int64 { return s.frames.Load() }

// Close ends the stream; later reads return io.EOF.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ebiten allows a single audio context per process, so every Output shares
// one and must use its sample rate.
var (
	contextMu    sync.Mutex
	audioContext *ebitaudio.Context
	contextRate  int
)

var ErrSampleRateMismatch = errors.New("audio: context already running at another sample rate")

func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	contextMu.Lock()
	defer contextMu.Unlock()
	if audioContext == nil {
		audioContext = ebitaudio.NewContext(sampleRate)
		contextRate = sampleRate
	}
	if contextRate != sampleRate {
		return nil, fmt.Errorf("%w: running at %d Hz, requested %d Hz", ErrSampleRateMismatch, contextRate, sampleRate)
	}
	return audioContext, nil
}

// Output is an open device stream.
type Output struct {
	player *ebitaudio.Player
	stream *Stream
}

// Open connects source to the audio device. buffer sets the device buffer
// length; zero keeps ebiten's default. The output starts paused.
func Open(sampleRate int, source Source, buffer time.Duration) (*Output, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	stream := NewStream(source)
	pl, err := ctx.NewPlayerF32(stream)
	if err != nil {
		return nil, fmt.Errorf("audio: open player: %w", err)
	}
	if buffer > 0 {
		pl.SetBufferSize(buffer)
	}
	return &Output{player: pl, stream: stream}, nil
}

func (o *Output) Play()               { o.player.Play() }
func (o *Output) Pause()              { o.player.Pause() }
func (o *Output) IsPlaying() bool     { return o.player.IsPlaying() }
func (o *Output) SetVolume(v float64) { o.player.SetVolume(v) }

// Position is what the listener hears now, behind Rendered by the buffered
// audio.
func (o *Output) Position() time.Duration { return o.player.Position() }

// Rendered is the number of frames handed to the device so far.
func (o *Output) Rendered() int64 { return o.stream.Rendered() }

// Close stops playback and releases the device player.
func (o *Output) Close() error {
	o.player.Pause()
	o.stream.Close()
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("audio: close player: %w", err)
	}
	return nil
}
