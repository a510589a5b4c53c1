package effects

import (
	"math"
	"sync/atomic"
)

// Bands is the number of EQ bands.
const Bands = 4

// Crossovers split the voice into body, first formant, upper formants and air.
var Crossovers = [Bands - 1]float64{300, 1200, 4000}

// EQ is a crossover equalizer whose band gains may be changed from any
// goroutine while the audio goroutine runs Process. Gains are float32 bit
// patterns so reads never lock.
type EQ struct {
	gains  [Bands]atomic.Uint32
	alphas [Bands - 1]float32
	lp     [Bands - 1]float32
}

// NewEQ creates an EQ with every band at unity.
func NewEQ(sampleRate int) *EQ {
	eq := &EQ{}
	dt := 1 / float64(sampleRate)
	for i, freq := range Crossovers {
		rc := 1 / (2 * math.Pi * freq)
		eq.alphas[i] = float32(dt / (rc + dt))
	}
	for i := range eq.gains {
		eq.gains[i].Store(math.Float32bits(1))
	}
	return eq
}

// SetGain sets a band gain. 1 is unity; negative gains are treated as 0.
func (eq *EQ) SetGain(band int, gain float32) {
	if band < 0 || band >= Bands {
		return
	}
	if gain < 0 {
		gain = 0
	}
	eq.gains[band].Store(math.Float32bits(gain))
}

func (eq *EQ) Gain(band int) float32 {
	if band < 0 || band >= Bands {
		return 1
	}
	return math.Float32frombits(eq.gains[band].Load())
}

func (eq *EQ) Process(x float32) float32 {
	var out float32
	rest := x
	for i := range eq.alphas {
		eq.lp[i] += eq.alphas[i] * (rest - eq.lp[i])
		out += eq.lp[i] * eq.Gain(i)
		rest -= eq.lp[i]
	}
	return out + rest*eq.Gain(Bands-1)
}

func (eq *EQ) Reset() {
	eq.lp = [Bands - 1]float32{}
}
