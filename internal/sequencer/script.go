package sequencer

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Parse reads a control script. Each non-empty line is
//
//	<seconds> <command> [args...]
//
// with commands
//
//	frequency <hz>
//	tenseness <0..1>
//	voice on|off
//	wobble on|off
//	touched on|off
//	tongue <index> <diameter>
//	touch <slot> <index> <diameter>
//	move <slot> <index> <diameter>
//	release <slot>
//
// '#' starts a comment.
func Parse(name, src string) (Script, error) {
	script := Script{Name: name}
	sc := bufio.NewScanner(strings.NewReader(src))
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		ev, err := parseEvent(fields)
		if err != nil {
			return Script{}, fmt.Errorf("%s:%d: %w", name, line, err)
		}
		script.Events = append(script.Events, ev)
	}
	if err := sc.Err(); err != nil {
		return Script{}, fmt.Errorf("%s: %w", name, err)
	}
	return script, nil
}

var switchKinds = map[string]EventKind{
	"voice":   EventAlwaysVoice,
	"wobble":  EventAutoWobble,
	"touched": EventTouched,
}

func parseEvent(fields []string) (Event, error) {
	if len(fields) < 2 {
		return Event{}, fmt.Errorf("expected time and command, got %q", strings.Join(fields, " "))
	}
	at, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || at < 0 {
		return Event{}, fmt.Errorf("invalid time %q", fields[0])
	}
	ev := Event{At: at}
	cmd, args := strings.ToLower(fields[1]), fields[2:]

	switch cmd {
	case "frequency", "freq":
		ev.Kind = EventFrequency
		ev.Value, err = floatArgs(cmd, args, 1, nil)
	case "tenseness", "tense":
		ev.Kind = EventTenseness
		ev.Value, err = floatArgs(cmd, args, 1, nil)
	case "voice", "wobble", "touched":
		ev.Kind = switchKinds[cmd]
		ev.On, err = switchArg(cmd, args)
	case "tongue":
		ev.Kind = EventTongue
		ev.Value, err = floatArgs(cmd, args, 2, &ev.Diameter)
	case "touch", "move":
		ev.Kind = EventTouch
		if cmd == "move" {
			ev.Kind = EventMove
		}
		if len(args) != 3 {
			return Event{}, fmt.Errorf("%s: expected slot, index and diameter", cmd)
		}
		ev.Slot = args[0]
		ev.Value, err = floatArgs(cmd, args[1:], 2, &ev.Diameter)
	case "release":
		ev.Kind = EventRelease
		if len(args) != 1 {
			return Event{}, fmt.Errorf("release: expected slot")
		}
		ev.Slot = args[0]
	default:
		return Event{}, fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		return Event{}, err
	}
	return ev, nil
}

// floatArgs parses exactly n (one or two) numbers. The first is returned and
// a second is stored through second.
func floatArgs(cmd string, args []string, n int, second *float64) (float64, error) {
	if len(args) != n {
		return 0, fmt.Errorf("%s: expected %d numbers, got %d", cmd, n, len(args))
	}
	vals := make([]float64, n)
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: invalid number %q", cmd, a)
		}
		vals[i] = v
	}
	if n > 1 {
		*second = vals[1]
	}
	return vals[0], nil
}

func switchArg(cmd string, args []string) (bool, error) {
	if len(args) != 1 {
		return false, fmt.Errorf("%s: expected on or off", cmd)
	}
	switch strings.ToLower(args[0]) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("%s: expected on or off, got %q", cmd, args[0])
}

// String renders the script back in the text format.
func (s Script) String() string {
	var b strings.Builder
	for _, ev := range s.Events {
		fmt.Fprintf(&b, "%g %s", ev.At, ev.Kind)
		switch ev.Kind {
		case EventFrequency, EventTenseness:
			fmt.Fprintf(&b, " %g", ev.Value)
		case EventAlwaysVoice, EventAutoWobble, EventTouched:
			if ev.On {
				b.WriteString(" on")
			} else {
				b.WriteString(" off")
			}
		case EventTongue:
			fmt.Fprintf(&b, " %g %g", ev.Value, ev.Diameter)
		case EventTouch, EventMove:
			fmt.Fprintf(&b, " %s %g %g", ev.Slot, ev.Value, ev.Diameter)
		case EventRelease:
			fmt.Fprintf(&b, " %s", ev.Slot)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
