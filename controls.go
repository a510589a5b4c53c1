package voicesynth

import (
	"github.com/mqce/voice-synth-experiment/internal/articulator"
	"github.com/mqce/voice-synth-experiment/internal/glottis"
	"github.com/mqce/voice-synth-experiment/internal/touch"
	"github.com/mqce/voice-synth-experiment/internal/tract"
)

// Controls is the performer's side of a Synth: voice settings, tract touches
// and the tongue. It is not safe for concurrent use; drive it from one control
// goroutine (or from a block hook when rendering offline) and call Update to
// publish the resulting tract shape.
type Controls struct {
	glottis     *glottis.Glottis
	tract       *tract.Tract
	board       *touch.Board
	articulator *articulator.Articulator
	target      []float64
	velum       float64
}

// NewControls drives s with the default articulator and touch attack.
func NewControls(s *Synth) *Controls {
	return NewControlsWithParams(s, articulator.DefaultParams(), touch.DefaultAttack)
}

func NewControlsWithParams(s *Synth, params articulator.Params, attack float64) *Controls {
	return &Controls{
		glottis:     s.Glottis(),
		tract:       s.Tract(),
		board:       touch.NewBoard(attack),
		articulator: articulator.New(s.Tract(), params),
		target:      make([]float64, s.Tract().Segments()),
		velum:       tract.VelumClosed,
	}
}

func (c *Controls) SetFrequency(hz float64) { c.glottis.SetFrequency(hz) }
func (c *Controls) SetTenseness(t float64)  { c.glottis.SetTenseness(t) }
func (c *Controls) SetAlwaysVoice(on bool)  { c.glottis.SetAlwaysVoice(on) }
func (c *Controls) SetAutoWobble(on bool)   { c.glottis.SetAutoWobble(on) }

// SetTouched marks the voice control as held, which gates voicing when
// always-voice is off.
func (c *Controls) SetTouched(on bool) { c.glottis.SetTouched(on) }

// SetTongue places the tongue directly. A touch holding the tongue overrides
// it on the next Update.
func (c *Controls) SetTongue(index, diameter float64) {
	c.articulator.SetTongue(index, diameter)
}

func (c *Controls) Tongue() (index, diameter float64) {
	return c.articulator.Tongue()
}

// TouchStart places a new touch on the tract at time now.
func (c *Controls) TouchStart(now, index, diameter float64) touch.ID {
	return c.board.Start(now, index, diameter)
}

func (c *Controls) TouchMove(id touch.ID, index, diameter float64) bool {
	return c.board.Move(id, index, diameter)
}

func (c *Controls) TouchEnd(id touch.ID, now float64) bool {
	return c.board.End(id, now)
}

// Touches returns a snapshot of the live and fading touches.
func (c *Controls) Touches() []touch.Touch {
	return c.board.Touches()
}

// Velum returns the velum target published by the last Update.
func (c *Controls) Velum() float64 { return c.velum }

// Update advances touch envelopes to now, reshapes the tract targets from the
// tongue and touches, and publishes targets, velum and turbulence sources to
// the tract for its next block.
func (c *Controls) Update(now float64) {
	c.board.Update(now)
	c.velum = c.articulator.Shape(c.board.Touches(), c.target)
	c.tract.SetTargetDiameters(c.target)
	c.tract.SetVelumTarget(c.velum)
	c.tract.SetConstrictions(c.board.Constrictions())
}
