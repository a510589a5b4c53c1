// Package effects post-processes the mono voice signal.
package effects

import (
	"fmt"
	"strconv"
	"strings"
)

// Effector processes mono audio one sample at a time.
type Effector interface {
	Process(x float32) float32
	Reset()
}

// Chain applies a sequence of effects in order.
type Chain struct {
	effects []Effector
}

func NewChain(effects ...Effector) *Chain {
	return &Chain{effects: effects}
}

func (c *Chain) Process(x float32) float32 {
	for _, e := range c.effects {
		x = e.Process(x)
	}
	return x
}

// ProcessBuffer runs the chain over buf in place.
func (c *Chain) ProcessBuffer(buf []float32) {
	if len(c.effects) == 0 {
		return
	}
	for i, x := range buf {
		buf[i] = c.Process(x)
	}
}

func (c *Chain) Reset() {
	for _, e := range c.effects {
		e.Reset()
	}
}

func (c *Chain) Add(e Effector) {
	c.effects = append(c.effects, e)
}

func (c *Chain) Len() int { return len(c.effects) }

// ParseChain builds a chain from a description such as
//
//	"eq 1.2,1,0.8; reverb 0.5,0.7,0.25; limiter -1"
//
// Effects are separated by ';'. Each names a type followed by optional
// comma-separated parameters; missing parameters take defaults.
func ParseChain(desc string, sampleRate int) (*Chain, error) {
	chain := NewChain()
	for _, raw := range strings.Split(desc, ";") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.SplitN(raw, " ", 2)
		kind := strings.ToLower(strings.TrimSpace(parts[0]))
		var params []float64
		if len(parts) > 1 {
			for _, p := range strings.Split(parts[1], ",") {
				p = strings.TrimSpace(p)
				if p == "" {
					continue
				}
				v, err := strconv.ParseFloat(p, 64)
				if err != nil {
					return nil, fmt.Errorf("effect %q: invalid parameter %q", kind, p)
				}
				params = append(params, v)
			}
		}
		eff, err := createEffect(kind, params, sampleRate)
		if err != nil {
			return nil, err
		}
		chain.Add(eff)
	}
	return chain, nil
}

func createEffect(kind string, params []float64, sampleRate int) (Effector, error) {
	param := func(idx int, def float64) float64 {
		if idx < len(params) {
			return params[idx]
		}
		return def
	}
	switch kind {
	case "reverb":
		return NewReverb(sampleRate,
			float32(param(0, 0.5)),  // room size
			float32(param(1, 0.7)),  // feedback
			float32(param(2, 0.25)), // wet
		), nil
	case "delay", "echo":
		return NewDelay(sampleRate,
			param(0, 250),          // delay ms
			float32(param(1, 0.4)), // feedback
			float32(param(2, 0.3)), // wet
		), nil
	case "eq":
		eq := NewEQ(sampleRate)
		for band := 0; band < Bands; band++ {
			eq.SetGain(band, float32(param(band, 1)))
		}
		return eq, nil
	case "limiter", "limit":
		return NewLimiter(sampleRate,
			float32(param(0, -1)), // ceiling dB
			float32(param(1, 1)),  // attack ms
			float32(param(2, 80)), // release ms
		), nil
	}
	return nil, fmt.Errorf("unknown effect %q", kind)
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
