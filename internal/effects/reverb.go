package effects

// Reverb is a small Schroeder room: four parallel combs into two allpasses.
type Reverb struct {
	combs   [4]delayLine
	allpass [2]delayLine
	wet     float32
}

// delayLine is a circular buffer with feedback, used as either a comb or an
// allpass stage.
type delayLine struct {
	buf []float32
	pos int
	fb  float32
}

// NewReverb creates a reverb.
// roomSize: 0..1 scales the delay lengths
// feedback: 0..1 sets the decay time
// wet: wet/dry mix 0..1
func NewReverb(sampleRate int, roomSize, feedback, wet float32) *Reverb {
	base := int(float32(sampleRate) * roomSize * 0.05)
	if base < 10 {
		base = 10
	}
	fb := clamp(feedback, 0, 0.95)
	r := &Reverb{wet: clamp(wet, 0, 1)}
	for i, ratio := range [4]int{1000, 1117, 1271, 1437} {
		r.combs[i] = newDelayLine(base*ratio/1000, fb)
	}
	for i, ratio := range [2]int{347, 213} {
		r.allpass[i] = newDelayLine(base*ratio/1000, 0.5)
	}
	return r
}

func newDelayLine(length int, fb float32) delayLine {
	if length < 1 {
		length = 1
	}
	return delayLine{buf: make([]float32, length), fb: fb}
}

func (r *Reverb) Process(x float32) float32 {
	var tail float32
	for i := range r.combs {
		tail += r.combs[i].comb(x)
	}
	tail *= 0.25
	for i := range r.allpass {
		tail = r.allpass[i].allpass(tail)
	}
	return x*(1-r.wet) + tail*r.wet
}

func (r *Reverb) Reset() {
	for i := range r.combs {
		r.combs[i].clear()
	}
	for i := range r.allpass {
		r.allpass[i].clear()
	}
}

func (d *delayLine) advance() {
	d.pos++
	if d.pos >= len(d.buf) {
		d.pos = 0
	}
}

func (d *delayLine) comb(in float32) float32 {
	out := d.buf[d.pos]
	d.buf[d.pos] = in + out*d.fb
	d.advance()
	return out
}

func (d *delayLine) allpass(in float32) float32 {
	delayed := d.buf[d.pos]
	d.buf[d.pos] = in + delayed*d.fb
	d.advance()
	return delayed - in
}

func (d *delayLine) clear() {
	clear(d.buf)
	d.pos = 0
}
