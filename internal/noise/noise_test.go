package noise

import (
	"math"
	"testing"
)

func TestWhiteIsBoundedAndRepeatable(t *testing.T) {
	w := NewWhite(42)
	first := make([]float64, 256)
	var sum float64
	for i := range first {
		v := w.Sample()
		if v < -1 || v >= 1 {
			t.Fatalf("sample %d out of range: %f", i, v)
		}
		first[i] = v
		sum += v
	}
	if math.Abs(sum/256) > 0.2 {
		t.Errorf("white noise mean too far from zero: %f", sum/256)
	}
	w.Reset()
	for i := range first {
		if v := w.Sample(); v != first[i] {
			t.Fatalf("reset sequence diverged at %d: %f vs %f", i, v, first[i])
		}
	}
}

// gainAt measures the steady-state amplitude of a sine at hz after filtering.
func gainAt(bp *Bandpass, sampleRate, hz float64) float64 {
	bp.Reset()
	var peak float64
	n := int(sampleRate)
	for i := 0; i < n; i++ {
		y := bp.Filter(math.Sin(2 * math.Pi * hz * float64(i) / sampleRate))
		if i > n/2 {
			peak = math.Max(peak, math.Abs(y))
		}
	}
	return peak
}

func TestBandpassPassesCentreAndRejectsExtremes(t *testing.T) {
	const sr = 44100.0
	bp := NewBandpass(sr, 1000, 0.5)
	centre := gainAt(bp, sr, 1000)
	if math.Abs(centre-1) > 0.02 {
		t.Errorf("centre gain = %f, want ~1", centre)
	}
	low := gainAt(bp, sr, 20)
	high := gainAt(bp, sr, 18000)
	if low > 0.1 {
		t.Errorf("20 Hz gain = %f, want < 0.1", low)
	}
	if high > 0.3 {
		t.Errorf("18 kHz gain = %f, want < 0.3", high)
	}
}

func TestFilteredAndSilence(t *testing.T) {
	f := NewFiltered(Silence{}, NewBandpass(44100, 500, 0.5))
	for i := 0; i < 100; i++ {
		if v := f.Sample(); v != 0 {
			t.Fatalf("filtered silence = %f", v)
		}
	}
	f = NewFiltered(NewWhite(1), NewBandpass(44100, 500, 0.5))
	var energy float64
	for i := 0; i < 1000; i++ {
		v := f.Sample()
		energy += v * v
	}
	if energy == 0 {
		t.Fatal("filtered white noise is silent")
	}
}
