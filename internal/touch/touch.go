// Package touch tracks the constriction points placed on the tract by the
// control layer and ramps their fricative intensity in and out.
//
// A Board is owned by a single control goroutine.
package touch

import (
	"github.com/mqce/voice-synth-experiment/internal/interp"
	"github.com/mqce/voice-synth-experiment/internal/tract"
)

const (
	DefaultAttack = 0.1 // seconds
	linger        = 1.0 // seconds a released touch is kept
)

type ID int

type Touch struct {
	ID                 ID
	Index              float64 // position along the tract
	Diameter           float64 // distance from the tract floor; negative is the nose side
	Alive              bool
	StartTime          float64
	EndTime            float64
	FricativeIntensity float64
}

type Board struct {
	attack  float64
	nextID  ID
	touches []Touch
}

// NewBoard returns an empty board. A non-positive attack uses DefaultAttack.
func NewBoard(attack float64) *Board {
	if attack <= 0 {
		attack = DefaultAttack
	}
	return &Board{attack: attack, nextID: 1}
}

func (b *Board) Attack() float64 { return b.attack }

// Start places a new touch and returns its id.
func (b *Board) Start(now, index, diameter float64) ID {
	id := b.nextID
	b.nextID++
	b.touches = append(b.touches, Touch{
		ID:        id,
		Index:     index,
		Diameter:  diameter,
		Alive:     true,
		StartTime: now,
	})
	return id
}

// Move repositions a live touch. It reports false for unknown or released ids.
func (b *Board) Move(id ID, index, diameter float64) bool {
	t := b.find(id)
	if t == nil || !t.Alive {
		return false
	}
	t.Index = index
	t.Diameter = diameter
	return true
}

// End releases a touch; its intensity ramps out from now.
func (b *Board) End(id ID, now float64) bool {
	t := b.find(id)
	if t == nil || !t.Alive {
		return false
	}
	t.Alive = false
	t.EndTime = now
	return true
}

func (b *Board) find(id ID) *Touch {
	for i := range b.touches {
		if b.touches[i].ID == id {
			return &b.touches[i]
		}
	}
	return nil
}

// Update ramps intensities to time now and forgets touches released more
// than a second ago.
func (b *Board) Update(now float64) {
	kept := b.touches[:0]
	for _, t := range b.touches {
		if !t.Alive && now > t.EndTime+linger {
			continue
		}
		if t.Alive {
			t.FricativeIntensity = interp.Clamp((now-t.StartTime)/b.attack, 0, 1)
		} else {
			t.FricativeIntensity = interp.Clamp(1-(now-t.EndTime)/b.attack, 0, 1)
		}
		kept = append(kept, t)
	}
	b.touches = kept
}

// Touches returns a snapshot in creation order.
func (b *Board) Touches() []Touch {
	return append([]Touch(nil), b.touches...)
}

func (b *Board) Len() int { return len(b.touches) }

// Constrictions returns the turbulence view of every tracked touch, released
// ones included while they fade.
func (b *Board) Constrictions() []tract.Constriction {
	cs := make([]tract.Constriction, 0, len(b.touches))
	for _, t := range b.touches {
		cs = append(cs, tract.Constriction{
			Index:     t.Index,
			Diameter:  t.Diameter,
			Intensity: t.FricativeIntensity,
		})
	}
	return cs
}
