package sequencer

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownPreset = errors.New("sequencer: unknown preset")

// Tract indices used below: 41 is the lips, 36 the alveolar ridge. A touch
// diameter below -0.8 reaches into the nose.
var presets = map[string]string{
	"vowel": `
0    frequency 140
0    tenseness 0.6
0    tongue 12.9 2.43
`,
	"vowels": `
0    frequency 120
0    tongue 14 2.9   # a
0.6  tongue 27 2.05  # i
1.2  tongue 22 2.1   # u
1.2  touch lips 40.5 0.9
1.8  release lips
1.8  tongue 17 2.4   # o
`,
	"closure": `
0    frequency 130
0.3  touch lips 41 0
0.6  release lips
0.9  touch lips 41 0
1.2  release lips
`,
	"nasal": `
0    frequency 130
0.3  touch nose 41 -1
0.8  release nose
1.1  touch nose 36 -1
1.6  release nose
`,
	"fricative": `
0    frequency 110
0    tenseness 0.4
0.3  touch tip 36 0.45
1.0  release tip
`,
	"sigh": `
0    wobble off
0    frequency 220
0    tenseness 0.8
0.1  frequency 90
0.1  tenseness 0.2
1.2  voice off
`,
}

// Preset returns a built-in script by name.
func Preset(name string) (Script, error) {
	src, ok := presets[name]
	if !ok {
		return Script{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return Parse(name, src)
}

// PresetNames lists the built-in scripts in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
