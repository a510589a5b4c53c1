package tract

import "math"

const (
	transientLifetime = 0.2
	transientStrength = 0.3
	transientExponent = 200
)

// Transient is the click injected where a closed segment reopens.
type Transient struct {
	Position int
	Age      float64 // seconds
	Lifetime float64
	Strength float64
	Exponent float64
}

func newTransient(position int) Transient {
	return Transient{
		Position: position,
		Lifetime: transientLifetime,
		Strength: transientStrength,
		Exponent: transientExponent,
	}
}

// Amplitude is the impulse injected at the transient's current age.
func (tr Transient) Amplitude() float64 {
	return tr.Strength * math.Exp2(-tr.Exponent*tr.Age)
}

// ActiveTransients reports the number of live transients.
// Audio goroutine only.
func (t *Tract) ActiveTransients() int {
	return len(t.transients)
}

// addTransient queues a click at position. The pool never grows: when full,
// the oldest click is dropped.
func (t *Tract) addTransient(position int) {
	if len(t.transients) == cap(t.transients) {
		copy(t.transients, t.transients[1:])
		t.transients = t.transients[:len(t.transients)-1]
	}
	t.transients = append(t.transients, newTransient(position))
}

func (t *Tract) processTransients() {
	if len(t.transients) == 0 {
		return
	}
	step := 1 / (2 * t.sampleRate)
	for i := range t.transients {
		tr := &t.transients[i]
		half := tr.Amplitude() / 2
		t.right[tr.Position] += half
		t.left[tr.Position] += half
		tr.Age += step
	}
	live := t.transients[:0]
	for _, tr := range t.transients {
		if tr.Age <= tr.Lifetime {
			live = append(live, tr)
		}
	}
	t.transients = live
}
