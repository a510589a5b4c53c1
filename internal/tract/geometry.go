package tract

import (
	"math"

	"github.com/mqce/voice-synth-experiment/internal/interp"
)

// closedReflection stands in for the reflection off a segment with no area.
const closedReflection = 0.999

// restGeometry is the neutral tract: narrow near the glottis, widening into
// the pharynx and oral cavity.
func restGeometry(n int) []float64 {
	d := make([]float64, n)
	for i := range d {
		switch {
		case i < 7:
			d[i] = 0.6
		case i < 12:
			d[i] = 1.1
		default:
			d[i] = 1.5
		}
	}
	return d
}

// noseGeometry rises from the velum to the widest point mid-branch and then
// narrows toward the nostrils.
func noseGeometry(n int) []float64 {
	d := make([]float64, n)
	for i := range d {
		x := 2 * float64(i) / float64(n)
		if x < 1 {
			d[i] = 0.4 + 1.6*x
		} else {
			d[i] = 0.5 + 1.5*(2-x)
		}
		d[i] = math.Min(d[i], 1.9)
	}
	return d
}

// slowReturnRates scales how quickly each segment reopens: slowest behind the
// nasal junction, full speed from the tongue tip forward.
func (t *Tract) slowReturnRates() []float64 {
	rates := make([]float64, t.n)
	tip := t.params.TipStart
	for i := range rates {
		switch {
		case i < t.noseStart:
			rates[i] = 0.6
		case i >= tip:
			rates[i] = 1
		default:
			rates[i] = 0.6 + 0.4*float64(i-t.noseStart)/float64(tip-t.noseStart)
		}
	}
	return rates
}

// Reflection is the scattering coefficient at the boundary from a segment of
// area prev into one of area next.
func Reflection(prev, next float64) float64 {
	if next == 0 {
		return closedReflection
	}
	return (prev - next) / (prev + next)
}

// junctionReflections returns the coefficients of the three-way junction
// between the segments either side of the nasal opening and the velum.
func junctionReflections(left, right, nose float64) (float64, float64, float64) {
	sum := left + right + nose
	if sum <= 0 {
		// three equal vanishing areas
		return -1.0 / 3, -1.0 / 3, -1.0 / 3
	}
	return (2*left - sum) / sum, (2*right - sum) / sum, (2*nose - sum) / sum
}

func (t *Tract) reshape(dt, velumTarget float64) {
	amount := dt * t.params.MovementSpeed
	obstruction := -1
	for i, d := range t.diameter {
		if d <= 0 {
			obstruction = i
		}
		t.diameter[i] = interp.MoveTowards(d, t.target[i], t.slowReturn[i]*amount, 2*amount)
	}
	if t.lastObstruction > -1 && obstruction == -1 && t.noseArea[0] < 0.05 {
		t.addTransient(t.lastObstruction)
	}
	t.lastObstruction = obstruction

	t.noseDiameter[0] = interp.MoveTowards(t.noseDiameter[0], velumTarget, amount*0.25, amount*0.1)
	t.noseArea[0] = t.noseDiameter[0] * t.noseDiameter[0]
}

// calculateReflections commits the reflection coefficients of the current
// geometry as the end points of the next block.
func (t *Tract) calculateReflections() {
	for i, d := range t.diameter {
		t.area[i] = d * d
	}
	for i := 1; i < t.n; i++ {
		t.reflection[i].Commit(Reflection(t.area[i-1], t.area[i]))
	}

	ns := t.noseStart
	left, right, nose := junctionReflections(t.area[ns], t.area[ns+1], t.noseDiameter[0]*t.noseDiameter[0])
	t.reflectionLeft.Commit(left)
	t.reflectionRight.Commit(right)
	t.reflectionNose.Commit(nose)
}

// calculateNoseReflections refreshes the nasal junctions. Only the velum end
// moves, slowly, so these are not interpolated within a block.
func (t *Tract) calculateNoseReflections() {
	for i, d := range t.noseDiameter {
		t.noseArea[i] = d * d
	}
	for i := 1; i < t.noseLength; i++ {
		t.noseReflection[i] = Reflection(t.noseArea[i-1], t.noseArea[i])
	}
}
