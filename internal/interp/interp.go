// Package interp holds the small numeric helpers shared by the glottis and the
// tract: block interpolation between committed endpoints, asymmetric relaxation
// and lock-free scalar publication between the control and audio goroutines.
package interp

import (
	"math"
	"sync/atomic"
)

// Lerp returns a*(1-t) + b*t.
func Lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MoveTowards steps current toward target by at most up when rising or down
// when falling, never overshooting the target.
func MoveTowards(current, target, up, down float64) float64 {
	if current < target {
		return math.Min(current+up, target)
	}
	return math.Max(current-down, target)
}

// Pair is a parameter interpolated across one audio block. Old is the value
// reached at the start of the block, New the value committed for its end.
// The audio path always finishes moving toward New before Commit adopts the
// next endpoint, so asynchronous control changes never produce a step.
type Pair struct {
	Old float64
	New float64
}

// Hold returns a pair whose endpoints are both v.
func Hold(v float64) Pair {
	return Pair{Old: v, New: v}
}

// At returns the value at block position lambda in [0, 1].
func (p Pair) At(lambda float64) float64 {
	return Lerp(p.Old, p.New, lambda)
}

// Commit makes the current end value the next start value and sets a new end.
func (p *Pair) Commit(next float64) {
	p.Old = p.New
	p.New = next
}

// Float is a float64 shared between one writer and one reader without locks.
// Values are stored as bit patterns so loads and stores are single atomic words.
type Float struct {
	bits atomic.Uint64
}

// NewFloat returns a Float holding v.
func NewFloat(v float64) *Float {
	f := &Float{}
	f.Store(v)
	return f
}

func (f *Float) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

func (f *Float) Store(v float64) {
	f.bits.Store(math.Float64bits(v))
}

// Floats is a fixed-length array of Float values.
type Floats []Float

// NewFloats returns n values initialized from init (zero when init is short).
func NewFloats(n int, init []float64) Floats {
	fs := make(Floats, n)
	for i := range fs {
		if i < len(init) {
			fs[i].Store(init[i])
		}
	}
	return fs
}

// LoadInto copies the current values into dst and returns dst[:len(fs)].
func (fs Floats) LoadInto(dst []float64) []float64 {
	dst = dst[:len(fs)]
	for i := range fs {
		dst[i] = fs[i].Load()
	}
	return dst
}

// StoreFrom publishes src element by element; extra elements are ignored.
func (fs Floats) StoreFrom(src []float64) {
	for i := range fs {
		if i >= len(src) {
			return
		}
		fs[i].Store(src[i])
	}
}
