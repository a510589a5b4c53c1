package tract

import (
	"errors"
	"math"
	"testing"

	"github.com/mqce/voice-synth-experiment/internal/interp"
)

const testRate = 44100

func newTestTract(t testing.TB) *Tract {
	t.Helper()
	tr, err := New(testRate, DefaultParams(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

func TestReflection(t *testing.T) {
	tests := []struct {
		name       string
		prev, next float64
		want       float64
	}{
		{"equal areas", 2.25, 2.25, 0},
		{"closed segment", 2.25, 0, 0.999},
		{"both closed", 0, 0, 0.999},
		{"opening from closed", 0, 1, -1},
		{"narrowing", 3, 1, 0.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Reflection(tc.prev, tc.next); got != tc.want {
				t.Fatalf("Reflection(%v, %v) = %v, want %v", tc.prev, tc.next, got, tc.want)
			}
		})
	}
}

func TestJunctionReflections(t *testing.T) {
	tests := []struct {
		name              string
		left, right, nose float64
	}{
		{"velum closed", 2.25, 2.25, 1e-4},
		{"velum open", 2.25, 2.25, 0.16},
		{"uneven", 1, 3, 0.5},
		{"nose only", 0, 0, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l, r, n := junctionReflections(tc.left, tc.right, tc.nose)
			sum := tc.left + tc.right + tc.nose
			for _, c := range []struct {
				got, area float64
			}{{l, tc.left}, {r, tc.right}, {n, tc.nose}} {
				if want := (2*c.area - sum) / sum; math.Abs(c.got-want) > 1e-12 {
					t.Fatalf("coefficient for area %v = %v, want %v", c.area, c.got, want)
				}
			}
			if got := l + r + n; math.Abs(got+1) > 1e-12 {
				t.Fatalf("coefficients sum to %v, want -1", got)
			}
		})
	}

	l, r, n := junctionReflections(0, 0, 0)
	if l != -1.0/3 || r != -1.0/3 || n != -1.0/3 {
		t.Fatalf("vanishing junction = %v, %v, %v, want -1/3 each", l, r, n)
	}
}

// setVelum moves the velum straight to d and holds the resulting
// reflections for the next block.
func setVelum(tr *Tract, d float64) {
	tr.noseDiameter[0] = d
	tr.calculateReflections()
	tr.calculateNoseReflections()
	for i := range tr.reflection {
		tr.reflection[i] = interp.Hold(tr.reflection[i].New)
	}
	tr.reflectionLeft = interp.Hold(tr.reflectionLeft.New)
	tr.reflectionRight = interp.Hold(tr.reflectionRight.New)
	tr.reflectionNose = interp.Hold(tr.reflectionNose.New)
}

// nostrilEnergy drives the tract with a 140 Hz sine for the first drive steps
// and sums the squared nostril output over steps [from, to).
func nostrilEnergy(tr *Tract, drive, from, to int) float64 {
	var energy float64
	for i := 0; i < to; i++ {
		var x float64
		if i < drive {
			x = math.Sin(2 * math.Pi * 140 * float64(i) / testRate)
		}
		tr.Step(x, 0, 0)
		if i >= from {
			out := tr.noseR[tr.noseLength-1]
			energy += out * out
		}
	}
	return energy
}

func TestVelumGatesNasalOutput(t *testing.T) {
	energy := func(velum float64) float64 {
		tr := newTestTract(t)
		setVelum(tr, velum)
		return nostrilEnergy(tr, 20000, 0, 20000)
	}
	closed, open := energy(VelumClosed), energy(VelumOpen)
	if open < 1e-3 {
		t.Fatalf("open velum nasal energy = %g, want audible output", open)
	}
	if open < 1000*closed {
		t.Fatalf("nasal energy open %g vs closed %g, want the closed velum to block the nose", open, closed)
	}
}

func TestNoseLossDampsNasalBranch(t *testing.T) {
	tail := func(noseLoss float64) float64 {
		p := DefaultParams()
		p.NoseLoss = noseLoss
		tr, err := New(testRate, p, nil)
		if err != nil {
			t.Fatal(err)
		}
		setVelum(tr, VelumOpen)
		return nostrilEnergy(tr, 4000, 4000, 6000)
	}
	lossless, lossy := tail(0.999), tail(0.95)
	if lossless == 0 {
		t.Fatal("no nasal ringing after the drive stopped")
	}
	if lossy > lossless/2 {
		t.Fatalf("nasal tail energy with NoseLoss 0.95 = %g, 0.999 = %g; want faster decay", lossy, lossless)
	}
}

func TestNewRejectsInvalidGeometry(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"too few segments", func(p *Params) { p.Segments = 3 }},
		{"nose longer than tract", func(p *Params) { p.NoseLength = 50 }},
		{"tip before blade", func(p *Params) { p.TipStart = 5 }},
		{"lips past end", func(p *Params) { p.LipStart = 45 }},
		{"tip behind nose", func(p *Params) { p.NoseLength = 10 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.mutate(&p)
			if _, err := New(testRate, p, nil); !errors.Is(err, ErrGeometry) {
				t.Fatalf("New error = %v, want ErrGeometry", err)
			}
		})
	}
	if _, err := New(0, DefaultParams(), nil); err == nil {
		t.Fatal("zero sample rate should fail")
	}
}

func TestDefaultGeometry(t *testing.T) {
	tr := newTestTract(t)
	if tr.Segments() != 44 || tr.NoseLength() != 28 || tr.NoseStart() != 17 {
		t.Fatalf("geometry = %d/%d/%d, want 44/28/17", tr.Segments(), tr.NoseLength(), tr.NoseStart())
	}
	rest := tr.RestDiameters()
	for _, tc := range []struct {
		i    int
		want float64
	}{{0, 0.6}, {6, 0.6}, {7, 1.1}, {11, 1.1}, {12, 1.5}, {43, 1.5}} {
		if rest[tc.i] != tc.want {
			t.Fatalf("rest[%d] = %v, want %v", tc.i, rest[tc.i], tc.want)
		}
	}
	rest[0] = 9
	if tr.RestDiameters()[0] != 0.6 {
		t.Fatal("RestDiameters exposed internal storage")
	}
	nose := tr.NoseDiameters(nil)
	if nose[0] != VelumClosed {
		t.Fatalf("velum = %v, want %v", nose[0], VelumClosed)
	}
	for i, d := range nose {
		if d > 1.9 {
			t.Fatalf("nose[%d] = %v exceeds 1.9", i, d)
		}
	}
}

func TestSilentTractDecays(t *testing.T) {
	tr := newTestTract(t)
	tr.Step(1, 0, 0)
	var out float64
	for i := 0; i < 10000; i++ {
		out = tr.Step(0, 0, 0)
	}
	if math.Abs(out) >= 1e-6 {
		t.Fatalf("output after 10000 silent steps = %g, want < 1e-6", out)
	}
}

func TestFinishBlockAtTargetIsIdempotent(t *testing.T) {
	tr := newTestTract(t)
	before := tr.Diameters(nil)
	noseBefore := tr.NoseDiameters(nil)
	for i := 0; i < 50; i++ {
		tr.FinishBlock(512.0 / testRate)
	}
	after := tr.Diameters(nil)
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("diameter[%d] moved from %v to %v", i, before[i], after[i])
		}
	}
	if got := tr.NoseDiameters(nil)[0]; got != noseBefore[0] {
		t.Fatalf("velum moved from %v to %v", noseBefore[0], got)
	}
}

func TestReshapeClosesFasterThanItOpens(t *testing.T) {
	tr := newTestTract(t)
	const dt = 0.01
	amount := dt * tr.Params().MovementSpeed
	tr.SetTargetDiameter(3, 0.2)
	tr.SetTargetDiameter(5, 1.0)
	tr.FinishBlock(dt)
	d := tr.Diameters(nil)
	if want := 0.6 - 2*amount; math.Abs(d[3]-want) > 1e-12 {
		t.Fatalf("closing segment = %v, want %v", d[3], want)
	}
	if want := 0.6 + 0.6*amount; math.Abs(d[5]-want) > 1e-12 {
		t.Fatalf("opening segment = %v, want %v", d[5], want)
	}
}

func TestSetTargetDiameterSanitizes(t *testing.T) {
	tr := newTestTract(t)
	tr.SetTargetDiameter(10, -1)
	tr.SetTargetDiameter(11, math.NaN())
	tr.SetTargetDiameter(99, 1)
	tr.SetTargetDiameter(-1, 1)
	targets := tr.TargetDiameters(nil)
	if targets[10] != 0 || targets[11] != 0 {
		t.Fatalf("targets = %v, %v, want 0, 0", targets[10], targets[11])
	}
	tr.SetTargetDiameters([]float64{2, 2})
	targets = tr.TargetDiameters(targets)
	if targets[0] != 2 || targets[1] != 2 || targets[2] != 0.6 {
		t.Fatalf("partial profile applied as %v", targets[:3])
	}
}

func TestTransientLifecycle(t *testing.T) {
	tr := newTestTract(t)
	tr.addTransient(20)
	steps := int(math.Ceil(transientLifetime * 2 * testRate))

	prev := math.Inf(1)
	for i := 0; i < steps-1; i++ {
		amp := tr.transients[0].Amplitude()
		if !(amp < prev) {
			t.Fatalf("step %d: amplitude %g did not decrease from %g", i, amp, prev)
		}
		prev = amp
		tr.Step(0, 0, 0)
	}
	if tr.ActiveTransients() != 1 {
		t.Fatalf("transient removed early after %d steps", steps-1)
	}
	tr.Step(0, 0, 0)
	tr.Step(0, 0, 0)
	if tr.ActiveTransients() != 0 {
		t.Fatalf("transient still alive after %d steps", steps+1)
	}
}

func TestTransientPoolKeepsOrderAndBound(t *testing.T) {
	p := DefaultParams()
	p.MaxTransients = 3
	tr, err := New(testRate, p, nil)
	if err != nil {
		t.Fatal(err)
	}
	for pos := 1; pos <= 5; pos++ {
		tr.addTransient(pos)
	}
	if tr.ActiveTransients() != 3 {
		t.Fatalf("transients = %d, want 3", tr.ActiveTransients())
	}
	for i, want := range []int{3, 4, 5} {
		if got := tr.transients[i].Position; got != want {
			t.Fatalf("transient %d at %d, want %d", i, got, want)
		}
	}
}

func TestObstructionReleaseSpawnsTransient(t *testing.T) {
	tr := newTestTract(t)
	const dt = 512.0 / testRate
	tr.SetTargetDiameter(25, 0)
	for i := 0; i < 20; i++ {
		tr.FinishBlock(dt)
	}
	if d := tr.Diameters(nil)[25]; d != 0 {
		t.Fatalf("segment did not close: %v", d)
	}
	if tr.ActiveTransients() != 0 {
		t.Fatal("closing must not spawn a transient")
	}

	tr.SetTargetDiameter(25, 1.5)
	tr.FinishBlock(dt)
	if tr.ActiveTransients() != 0 {
		t.Fatal("transient spawned before the closure was observed open")
	}
	tr.FinishBlock(dt)
	if tr.ActiveTransients() != 1 {
		t.Fatalf("transients = %d, want 1 after release", tr.ActiveTransients())
	}
	if pos := tr.transients[0].Position; pos != 25 {
		t.Fatalf("transient at %d, want 25", pos)
	}
}

func TestOpenVelumSuppressesReleaseTransient(t *testing.T) {
	tr := newTestTract(t)
	const dt = 512.0 / testRate
	tr.SetVelumTarget(VelumOpen)
	tr.SetTargetDiameter(25, 0)
	for i := 0; i < 20; i++ {
		tr.FinishBlock(dt)
	}
	tr.SetTargetDiameter(25, 1.5)
	for i := 0; i < 5; i++ {
		tr.FinishBlock(dt)
	}
	if tr.ActiveTransients() != 0 {
		t.Fatalf("transients = %d with the nose open, want 0", tr.ActiveTransients())
	}
}

func TestTurbulenceNeedsPartialConstriction(t *testing.T) {
	run := func(cs []Constriction) float64 {
		tr := newTestTract(t)
		tr.SetConstrictions(cs)
		tr.FinishBlock(0)
		var energy float64
		for i := 0; i < 200; i++ {
			out := tr.Step(0, 1, 0)
			energy += out * out
		}
		return energy
	}
	if e := run(nil); e != 0 {
		t.Fatalf("no constriction produced energy %g", e)
	}
	if e := run([]Constriction{{Index: 30.5, Diameter: 0.5, Intensity: 1}}); e == 0 {
		t.Fatal("narrow constriction produced no turbulence")
	}
	for _, c := range []Constriction{
		{Index: 30.5, Diameter: 0.2, Intensity: 1}, // nearly closed
		{Index: 30.5, Diameter: 1.2, Intensity: 1}, // wide open
		{Index: 30.5, Diameter: 0.5, Intensity: 0},
		{Index: 1.5, Diameter: 0.5, Intensity: 1},
		{Index: 50, Diameter: 0.5, Intensity: 1},
	} {
		if e := run([]Constriction{c}); e != 0 {
			t.Fatalf("constriction %+v produced energy %g", c, e)
		}
	}
}

type fixedModulator float64

func (m fixedModulator) NoiseModulator() float64 { return float64(m) }

func TestTurbulenceFollowsModulator(t *testing.T) {
	tr, err := New(testRate, DefaultParams(), fixedModulator(0))
	if err != nil {
		t.Fatal(err)
	}
	tr.SetConstrictions([]Constriction{{Index: 30.5, Diameter: 0.5, Intensity: 1}})
	tr.FinishBlock(0)
	for i := 0; i < 200; i++ {
		if out := tr.Step(0, 1, 0); out != 0 {
			t.Fatalf("muted modulator let turbulence through: %g", out)
		}
	}
}

func TestStepDoesNotAllocate(t *testing.T) {
	tr := newTestTract(t)
	tr.SetConstrictions([]Constriction{{Index: 30.5, Diameter: 0.5, Intensity: 1}})
	tr.FinishBlock(0)
	tr.addTransient(20)
	allocs := testing.AllocsPerRun(1000, func() {
		tr.Step(0.1, 0.1, 0.5)
	})
	if allocs != 0 {
		t.Fatalf("Step allocates %v times per call", allocs)
	}
}

func BenchmarkStep(b *testing.B) {
	tr := newTestTract(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tr.Step(0.1, 0, 0.5)
		if i%1024 == 1023 {
			tr.FinishBlock(512.0 / testRate)
		}
	}
}
