package glottis

import (
	"math"
	"testing"
)

func TestDeriveKeepsReturnPhaseInsideCycle(t *testing.T) {
	for i := 0; i <= 100; i++ {
		tense := float64(i) / 100
		s := Derive(tense)
		if !(s.Te > 0 && s.Te < 1) {
			t.Fatalf("tenseness %.2f: Te = %v, want (0,1)", tense, s.Te)
		}
		for _, v := range []float64{s.Epsilon, s.Shift, s.Delta, s.Alpha, s.E0, s.Omega} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("tenseness %.2f: non-finite coefficient in %+v", tense, s)
			}
		}
	}
}

func TestWaveformIsContinuousAtReturnPhase(t *testing.T) {
	for _, tense := range []float64{0, 0.1, 0.3, 0.5, 0.6, 0.8, 1} {
		s := Derive(tense)
		const eps = 1e-9
		before := s.Evaluate(s.Te - eps)
		at := s.Evaluate(s.Te)
		after := s.Evaluate(s.Te + eps)
		if math.Abs(before-after) > 1e-5 {
			t.Fatalf("tenseness %.1f: discontinuity at Te: %v vs %v", tense, before, after)
		}
		if math.Abs(at+1) > 1e-9 {
			t.Fatalf("tenseness %.1f: value at Te = %v, want -1", tense, at)
		}
	}
}

func TestWaveformReturnsToZeroAtCycleEnd(t *testing.T) {
	s := Derive(0.6)
	if got := s.Evaluate(0); got != 0 {
		t.Fatalf("Evaluate(0) = %v, want 0", got)
	}
	if got := s.Evaluate(1); math.Abs(got) > 1e-12 {
		t.Fatalf("Evaluate(1) = %v, want 0", got)
	}
}

func TestRdIsClampedOutsideControlRange(t *testing.T) {
	for _, tc := range []struct {
		tenseness float64
		want      float64
	}{
		{3, minRd},
		{-2, maxRd},
		{0.5, 1.5},
	} {
		if got := Rd(tc.tenseness); math.Abs(got-tc.want) > 1e-12 {
			t.Fatalf("Rd(%v) = %v, want %v", tc.tenseness, got, tc.want)
		}
	}
	// tenseness pushed far past 1 by the voicing bias must still derive a finite shape
	s := Derive(3.6)
	if math.IsNaN(s.Evaluate(0.3)) {
		t.Fatal("clamped derive produced NaN")
	}
}

func TestSetupInterpolatesEndpoints(t *testing.T) {
	var w Waveform
	length := w.Setup(100, 200, 0.2, 0.6, 0.5)
	if math.Abs(length-1.0/150) > 1e-12 {
		t.Fatalf("cycle length = %v, want %v", length, 1.0/150)
	}
	if math.Abs(w.Tenseness-0.4) > 1e-12 {
		t.Fatalf("tenseness = %v, want 0.4", w.Tenseness)
	}
	if w.Te != Derive(w.Tenseness).Te {
		t.Fatal("Setup did not derive shape from the interpolated tenseness")
	}
}

func TestIntensityAttackAndRelease(t *testing.T) {
	g := New(44100, DefaultParams())
	for i := 1; i <= 7; i++ {
		g.FinishBlock()
		if want := 0.13 * float64(i); math.Abs(g.Intensity()-want) > 1e-9 {
			t.Fatalf("block %d intensity = %v, want %v", i, g.Intensity(), want)
		}
	}
	g.FinishBlock()
	if g.Intensity() != 1 {
		t.Fatalf("intensity should clamp to 1, got %v", g.Intensity())
	}
	g.SetAlwaysVoice(false)
	g.FinishBlock()
	if math.Abs(g.Intensity()-0.95) > 1e-9 {
		t.Fatalf("release step: got %v, want 0.95", g.Intensity())
	}
	for i := 0; i < 30; i++ {
		g.FinishBlock()
	}
	if g.Intensity() != 0 {
		t.Fatalf("intensity should clamp to 0, got %v", g.Intensity())
	}
	g.SetTouched(true)
	g.FinishBlock()
	if math.Abs(g.Intensity()-0.13) > 1e-9 {
		t.Fatalf("touch should voice: got %v", g.Intensity())
	}
}

func steadyParams() Params {
	p := DefaultParams()
	p.Vibrato.Depth = 0
	p.PitchWobble = nil
	p.TenseWobble = nil
	return p
}

func TestPitchRisesFasterThanItFalls(t *testing.T) {
	g := New(44100, steadyParams())
	g.FinishBlock() // voice so the smoother is not bypassed
	g.SetFrequency(280)
	g.FinishBlock()
	if got, want := g.frequency.New, 140*1.1; math.Abs(got-want) > 1e-9 {
		t.Fatalf("first rising block: got %v, want %v", got, want)
	}
	for i := 0; i < 20; i++ {
		g.FinishBlock()
	}
	if g.frequency.New != 280 {
		t.Fatalf("smoothed frequency should settle on 280, got %v", g.frequency.New)
	}
	g.SetFrequency(140)
	g.FinishBlock()
	if got, want := g.frequency.New, 280/1.1; math.Abs(got-want) > 1e-9 {
		t.Fatalf("first falling block: got %v, want %v", got, want)
	}
}

func TestSilentGlottisSnapsToTargetFrequency(t *testing.T) {
	p := steadyParams()
	p.AlwaysVoice = false
	g := New(44100, p)
	g.SetFrequency(400)
	g.FinishBlock()
	if g.frequency.New != 400 {
		t.Fatalf("unvoiced glottis should jump to target, got %v", g.frequency.New)
	}
}

func TestFrequencyAndTensenessAreClamped(t *testing.T) {
	g := New(44100, DefaultParams())
	g.SetFrequency(0)
	if g.Frequency() != MinFrequency {
		t.Fatalf("frequency = %v, want %v", g.Frequency(), MinFrequency)
	}
	g.SetFrequency(math.NaN())
	if g.Frequency() != MinFrequency {
		t.Fatalf("NaN frequency = %v, want %v", g.Frequency(), MinFrequency)
	}
	g.SetTenseness(4)
	if g.Tenseness() != 1 {
		t.Fatalf("tenseness = %v, want 1", g.Tenseness())
	}
}

func TestRunStepProducesPeriodicVoicing(t *testing.T) {
	g := New(44100, steadyParams())
	for i := 0; i < 10; i++ {
		g.FinishBlock()
	}
	var peak float64
	wraps := 0
	prev := g.timeInWaveform
	for i := 0; i < 44100; i++ {
		v := g.RunStep(0, 0)
		if math.IsNaN(v) {
			t.Fatalf("sample %d is NaN", i)
		}
		peak = math.Max(peak, math.Abs(v))
		if g.timeInWaveform < prev {
			wraps++
		}
		prev = g.timeInWaveform
	}
	if peak < 0.5 {
		t.Fatalf("voiced output too quiet: peak %v", peak)
	}
	if wraps < 139 || wraps > 140 {
		t.Fatalf("cycle wraps in one second = %d, want 139-140 for 140 Hz", wraps)
	}
}

func TestNoiseModulatorRange(t *testing.T) {
	g := New(44100, DefaultParams())
	if got := g.NoiseModulator(); math.Abs(got-0.3) > 1e-12 {
		t.Fatalf("silent modulator = %v, want 0.3", got)
	}
	for i := 0; i < 10; i++ {
		g.FinishBlock()
	}
	for i := 0; i < 1000; i++ {
		g.RunStep(0, 0)
		m := g.NoiseModulator()
		if m < 0.1 || m > 0.3+1e-12 {
			t.Fatalf("modulator %v outside [0.1, 0.3]", m)
		}
	}
}

func TestAspirationFollowsNoiseInput(t *testing.T) {
	p := steadyParams()
	p.Tenseness = 0.2
	a := New(44100, p)
	b := New(44100, p)
	for i := 0; i < 10; i++ {
		a.FinishBlock()
		b.FinishBlock()
	}
	var diff float64
	for i := 0; i < 1000; i++ {
		diff += math.Abs(a.RunStep(1, 0) - b.RunStep(0, 0))
	}
	if diff == 0 {
		t.Fatal("aspiration noise had no effect on output")
	}
}

func BenchmarkRunStep(b *testing.B) {
	g := New(44100, DefaultParams())
	g.FinishBlock()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.RunStep(0.1, 0.5)
		if i%512 == 511 {
			g.FinishBlock()
		}
	}
}
