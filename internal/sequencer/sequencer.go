package sequencer

import (
	"sort"

	"github.com/mqce/voice-synth-experiment/internal/touch"
)

// Controller is the control surface a script drives.
type Controller interface {
	SetFrequency(hz float64)
	SetTenseness(t float64)
	SetAlwaysVoice(on bool)
	SetAutoWobble(on bool)
	SetTouched(on bool)
	SetTongue(index, diameter float64)
	TouchStart(now, index, diameter float64) touch.ID
	TouchMove(id touch.ID, index, diameter float64) bool
	TouchEnd(id touch.ID, now float64) bool
}

// EventKind identifies a script command.
type EventKind int

const (
	EventFrequency EventKind = iota
	EventTenseness
	EventAlwaysVoice
	EventAutoWobble
	EventTouched
	EventTongue
	EventTouch   // place a touch, or move it if the slot is already down
	EventMove    // move a placed touch
	EventRelease // lift a placed touch
)

var kindNames = map[EventKind]string{
	EventFrequency:   "frequency",
	EventTenseness:   "tenseness",
	EventAlwaysVoice: "voice",
	EventAutoWobble:  "wobble",
	EventTouched:     "touched",
	EventTongue:      "tongue",
	EventTouch:       "touch",
	EventMove:        "move",
	EventRelease:     "release",
}

func (k EventKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is one timed control change. Touch events name a slot so a script can
// refer to the same touch across events.
type Event struct {
	At       float64 // seconds from script start
	Kind     EventKind
	Value    float64 // frequency, tenseness, or tract index
	Diameter float64
	On       bool
	Slot     string
}

// Script is an ordered list of events.
type Script struct {
	Name   string
	Events []Event
}

// Duration is the time of the last event.
func (s Script) Duration() float64 {
	var d float64
	for _, ev := range s.Events {
		if ev.At > d {
			d = ev.At
		}
	}
	return d
}

type Options struct {
	OnEvent func(Event) // called after each event is applied
}

// Sequencer replays a script against a Controller as time advances. It is
// driven from the control goroutine.
type Sequencer struct {
	events  []Event
	next    int
	slots   map[string]touch.ID
	onEvent func(Event)
}

func New(script Script) *Sequencer {
	return NewWithOptions(script, Options{})
}

func NewWithOptions(script Script, opts Options) *Sequencer {
	events := append([]Event(nil), script.Events...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].At < events[j].At })
	return &Sequencer{
		events:  events,
		slots:   make(map[string]touch.ID),
		onEvent: opts.OnEvent,
	}
}

// Advance applies every event due at or before now and returns how many were
// applied.
func (s *Sequencer) Advance(now float64, c Controller) int {
	applied := 0
	for s.next < len(s.events) && s.events[s.next].At <= now {
		ev := s.events[s.next]
		s.next++
		s.apply(ev, c)
		applied++
		if s.onEvent != nil {
			s.onEvent(ev)
		}
	}
	return applied
}

func (s *Sequencer) apply(ev Event, c Controller) {
	switch ev.Kind {
	case EventFrequency:
		c.SetFrequency(ev.Value)
	case EventTenseness:
		c.SetTenseness(ev.Value)
	case EventAlwaysVoice:
		c.SetAlwaysVoice(ev.On)
	case EventAutoWobble:
		c.SetAutoWobble(ev.On)
	case EventTouched:
		c.SetTouched(ev.On)
	case EventTongue:
		c.SetTongue(ev.Value, ev.Diameter)
	case EventTouch:
		if id, ok := s.slots[ev.Slot]; ok && c.TouchMove(id, ev.Value, ev.Diameter) {
			return
		}
		s.slots[ev.Slot] = c.TouchStart(ev.At, ev.Value, ev.Diameter)
	case EventMove:
		if id, ok := s.slots[ev.Slot]; ok {
			c.TouchMove(id, ev.Value, ev.Diameter)
		}
	case EventRelease:
		if id, ok := s.slots[ev.Slot]; ok {
			c.TouchEnd(id, ev.At)
			delete(s.slots, ev.Slot)
		}
	}
}

// Done reports whether every event has been applied.
func (s *Sequencer) Done() bool {
	return s.next >= len(s.events)
}

// Reset rewinds to the start of the script. Touch slots are forgotten.
func (s *Sequencer) Reset() {
	s.next = 0
	s.slots = make(map[string]touch.ID)
}
