package effects

import "math"

// Limiter holds the signal under a ceiling. A peak envelope with fast attack
// and slow release sets the gain; anything the envelope misses is clipped.
type Limiter struct {
	ceiling float32
	attack  float32 // coefficient
	release float32 // coefficient
	env     float32
}

// NewLimiter creates a limiter with the ceiling in dBFS.
func NewLimiter(sampleRate int, ceilingDB, attackMs, releaseMs float32) *Limiter {
	sr := float64(sampleRate)
	ceiling := float32(math.Pow(10, float64(ceilingDB)/20))
	return &Limiter{
		ceiling: clamp(ceiling, 1e-3, 1),
		attack:  coefficient(float64(attackMs), sr),
		release: coefficient(float64(releaseMs), sr),
	}
}

func coefficient(ms, sampleRate float64) float32 {
	if ms <= 0 {
		return 1
	}
	return float32(1 - math.Exp(-1/(ms*sampleRate/1000)))
}

func (l *Limiter) Process(x float32) float32 {
	a := float32(math.Abs(float64(x)))
	if a > l.env {
		l.env += l.attack * (a - l.env)
	} else {
		l.env += l.release * (a - l.env)
	}
	if l.env > l.ceiling {
		x *= l.ceiling / l.env
	}
	return clamp(x, -l.ceiling, l.ceiling)
}

// Reduction returns the current gain reduction as a factor in (0, 1].
func (l *Limiter) Reduction() float32 {
	if l.env <= l.ceiling {
		return 1
	}
	return l.ceiling / l.env
}

func (l *Limiter) Reset() {
	l.env = 0
}
