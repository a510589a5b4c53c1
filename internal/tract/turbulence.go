package tract

import (
	"math"

	"github.com/mqce/voice-synth-experiment/internal/interp"
)

const turbulenceGain = 0.66

func (t *Tract) addTurbulence(noise float64) {
	for _, c := range t.constrictions {
		if c.Index < 2 || c.Index > float64(t.n) {
			continue
		}
		if c.Diameter <= 0 || c.Intensity == 0 {
			continue
		}
		t.addTurbulenceAt(turbulenceGain*noise*c.Intensity, c.Index, c.Diameter)
	}
}

// addTurbulenceAt spreads noise over the two segments after index. Narrow
// constrictions hiss more; nearly closed ones are damped so a full closure
// stays silent until it opens.
func (t *Tract) addTurbulenceAt(noise, index, diameter float64) {
	i := int(math.Floor(index))
	delta := index - float64(i)
	noise *= t.mod.NoiseModulator()
	thinness := interp.Clamp(8*(0.7-diameter), 0, 1)
	openness := interp.Clamp(30*(diameter-0.3), 0, 1)
	near := noise * (1 - delta) * thinness * openness / 2
	far := noise * delta * thinness * openness / 2
	if i+1 < t.n {
		t.right[i+1] += near
		t.left[i+1] += near
	}
	if i+2 < t.n {
		t.right[i+2] += far
		t.left[i+2] += far
	}
}
