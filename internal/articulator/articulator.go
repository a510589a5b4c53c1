// Package articulator turns the tongue position and the touch list into a
// target diameter profile and velum target for the tract.
package articulator

import (
	"math"

	"github.com/mqce/voice-synth-experiment/internal/interp"
	"github.com/mqce/voice-synth-experiment/internal/touch"
	"github.com/mqce/voice-synth-experiment/internal/tract"
)

type Params struct {
	TongueIndex    float64
	TongueDiameter float64
	InnerRadius    float64 // tongue control: highest tongue
	OuterRadius    float64 // tongue control: lowest tongue
	NoseOffset     float64 // touches below -NoseOffset land in the nose
	GridOffset     float64
	ClosureOffset  float64 // subtracted from a touch diameter before shaping
}

func DefaultParams() Params {
	return Params{
		TongueIndex:    12.9,
		TongueDiameter: 2.43,
		InnerRadius:    2.05,
		OuterRadius:    3.5,
		NoseOffset:     0.8,
		GridOffset:     1.7,
		ClosureOffset:  0.3,
	}
}

// Articulator is owned by the control goroutine.
type Articulator struct {
	params     Params
	n          int
	noseStart  int
	bladeStart int
	tipStart   int
	lipStart   int

	lowerBound float64
	upperBound float64
	centre     float64

	tongueIndex    float64
	tongueDiameter float64
	tongueTouch    touch.ID
	tongueHeld     bool

	base []float64 // neutral tract without the tongue
	rest []float64
}

// New shapes the geometry of tr. Only immutable tract properties are read.
func New(tr *tract.Tract, params Params) *Articulator {
	tp := tr.Params()
	a := &Articulator{
		params:     params,
		n:          tr.Segments(),
		noseStart:  tr.NoseStart(),
		bladeStart: tp.BladeStart,
		tipStart:   tp.TipStart,
		lipStart:   tp.LipStart,
		base:       tr.RestDiameters(),
		rest:       make([]float64, tr.Segments()),
	}
	a.lowerBound = float64(a.bladeStart + 2)
	a.upperBound = float64(a.tipStart - 3)
	a.centre = 0.5 * (a.lowerBound + a.upperBound)
	a.tongueIndex = params.TongueIndex
	a.tongueDiameter = params.TongueDiameter
	a.updateRest()
	return a
}

// Tongue returns the current tongue index and diameter.
func (a *Articulator) Tongue() (index, diameter float64) {
	return a.tongueIndex, a.tongueDiameter
}

// SetTongue moves the tongue as a drag on the tongue control would. The
// diameter is held between the control radii and the index is limited to a
// range that narrows as the tongue is lowered.
func (a *Articulator) SetTongue(index, diameter float64) {
	inner, outer := a.params.InnerRadius, a.params.OuterRadius
	fromPoint := interp.Clamp((outer-diameter)/(outer-inner), 0, 1)
	fromPoint = math.Pow(fromPoint, 0.58) - 0.2*(fromPoint*fromPoint-fromPoint)
	a.tongueDiameter = interp.Clamp(diameter, inner, outer)
	out := fromPoint * 0.5 * (a.upperBound - a.lowerBound)
	a.tongueIndex = interp.Clamp(index, a.centre-out, a.centre+out)
	a.updateRest()
}

// RestDiameters returns the neutral profile with the current tongue.
func (a *Articulator) RestDiameters() []float64 {
	return append([]float64(nil), a.rest...)
}

func (a *Articulator) updateRest() {
	copy(a.rest, a.base)
	fixed := 2 + (a.tongueDiameter-2)/1.5
	for i := a.bladeStart; i < a.lipStart; i++ {
		t := 1.1 * math.Pi * (a.tongueIndex - float64(i)) / float64(a.tipStart-a.bladeStart)
		curve := (1.5 - fixed + a.params.GridOffset) * math.Cos(t)
		if i == a.lipStart-1 {
			curve *= 0.8
		}
		if i == a.bladeStart || i == a.lipStart-2 {
			curve *= 0.94
		}
		a.rest[i] = 1.5 - curve
	}
}

// OnTongue reports whether a touch at index and diameter lands on the tongue
// control.
func (a *Articulator) OnTongue(index, diameter float64) bool {
	return index >= a.lowerBound-4 && index <= a.upperBound+4 &&
		diameter >= a.params.InnerRadius-0.5 && diameter <= a.params.OuterRadius+0.5
}

// Claim hands the tongue to t if no other touch holds it and t lands on the
// tongue control.
func (a *Articulator) Claim(t touch.Touch) bool {
	if a.tongueHeld || !t.Alive || !a.OnTongue(t.Index, t.Diameter) {
		return false
	}
	a.tongueTouch = t.ID
	a.tongueHeld = true
	return true
}

// TongueTouch returns the id of the touch driving the tongue, if any.
func (a *Articulator) TongueTouch() (touch.ID, bool) {
	return a.tongueTouch, a.tongueHeld
}

// Shape writes the target profile for touches into target and returns the
// velum target. target must hold one value per tract segment.
func (a *Articulator) Shape(touches []touch.Touch, target []float64) float64 {
	a.followTongue(touches)

	copy(target, a.rest)
	velum := tract.VelumClosed
	for _, t := range touches {
		if !t.Alive {
			continue
		}
		if t.Index > float64(a.noseStart) && t.Diameter < -a.params.NoseOffset {
			velum = tract.VelumOpen
		}
		a.constrict(target, t.Index, t.Diameter)
	}
	return velum
}

func (a *Articulator) followTongue(touches []touch.Touch) {
	if a.tongueHeld {
		held := false
		for _, t := range touches {
			if t.ID == a.tongueTouch && t.Alive {
				held = true
				break
			}
		}
		a.tongueHeld = held
	}
	if !a.tongueHeld {
		for _, t := range touches {
			if a.Claim(t) {
				break
			}
		}
	}
	if !a.tongueHeld {
		return
	}
	for _, t := range touches {
		if t.ID == a.tongueTouch {
			a.SetTongue(t.Index, t.Diameter)
			return
		}
	}
}

// width is the half-width of a constriction in segments: broad in the
// pharynx, tight at the tongue tip and lips.
func (a *Articulator) width(index float64) float64 {
	tip := float64(a.tipStart)
	switch {
	case index < 25:
		return 10
	case index >= tip:
		return 5
	default:
		return 10 - 5*(index-25)/(tip-25)
	}
}

// constrict narrows target around index with a raised-cosine profile.
func (a *Articulator) constrict(target []float64, index, diameter float64) {
	if diameter < -0.85-a.params.NoseOffset {
		return
	}
	diameter = math.Max(diameter-a.params.ClosureOffset, 0)
	if index < 2 || index >= float64(a.n) || diameter >= 3 {
		return
	}
	width := a.width(index)
	centre := int(math.Round(index))
	for i := -int(math.Ceil(width)) - 1; float64(i) < width+1; i++ {
		j := centre + i
		if j < 0 || j >= a.n {
			continue
		}
		relpos := math.Abs(float64(j)-index) - 0.5
		var shrink float64
		switch {
		case relpos <= 0:
			shrink = 0
		case relpos > width:
			shrink = 1
		default:
			shrink = 0.5 * (1 - math.Cos(math.Pi*relpos/width))
		}
		if diameter < target[j] {
			target[j] = diameter + (target[j]-diameter)*shrink
		}
	}
}
