package plc

import (
	"math"
	"testing"
)

// TestPLCState tests basic run tracking.
func TestPLCState(t *testing.T) {
	state := NewState(0.5, 0)

	if state.LostCount() != 0 {
		t.Errorf("initial lostCount = %d, want 0", state.LostCount())
	}
	if state.FadeFactor() != 1.0 {
		t.Errorf("initial fadeFactor = %f, want 1.0", state.FadeFactor())
	}
	if state.IsExhausted() {
		t.Error("initial state should not be exhausted")
	}

	fade := state.RecordLoss()
	if state.LostCount() != 1 {
		t.Errorf("after 1 loss: lostCount = %d, want 1", state.LostCount())
	}
	if math.Abs(fade-0.5) > 0.001 {
		t.Errorf("after 1 loss: fadeFactor = %f, want 0.5", fade)
	}
}

// TestPLCFadeProfile verifies the geometric decay.
func TestPLCFadeProfile(t *testing.T) {
	state := NewState(0.75, 0)

	expected := 1.0
	for i := 1; i <= 6; i++ {
		expected *= 0.75
		fade := state.RecordLoss()
		if math.Abs(fade-expected) > 1e-9 {
			t.Errorf("loss %d: fadeFactor = %f, want %f", i, fade, expected)
		}
	}
}

// TestPLCDefaultFade checks the fallback fade for out-of-range values.
func TestPLCDefaultFade(t *testing.T) {
	for _, f := range []float64{0, 1, -2, 7} {
		state := NewState(f, 0)
		if got := state.RecordLoss(); got != DefaultFadePerFrame {
			t.Errorf("fade %v: got %f, want %f", f, got, DefaultFadePerFrame)
		}
	}
}

// TestPLCReset tests state reset after a good frame.
func TestPLCReset(t *testing.T) {
	state := NewState(0.5, 3)
	state.RecordLoss()
	state.RecordLoss()
	state.RecordLoss()
	if !state.IsMuted() {
		t.Fatal("state should be muted after three losses")
	}

	state.Reset()
	if state.LostCount() != 0 {
		t.Errorf("after reset: lostCount = %d, want 0", state.LostCount())
	}
	if state.FadeFactor() != 1.0 {
		t.Errorf("after reset: fadeFactor = %f, want 1.0", state.FadeFactor())
	}
	if state.IsMuted() {
		t.Error("state should not be muted after reset")
	}
}

// TestPLCMuteThreshold tests that the fade drops to zero at the threshold.
func TestPLCMuteThreshold(t *testing.T) {
	state := NewState(0.9, 3)
	for i := 1; i <= 2; i++ {
		if fade := state.RecordLoss(); fade == 0 {
			t.Errorf("loss %d: muted before threshold", i)
		}
	}
	if fade := state.RecordLoss(); fade != 0 {
		t.Errorf("loss 3: fadeFactor = %f, want 0", fade)
	}
	if !state.IsExhausted() {
		t.Error("muted state should be exhausted")
	}
	if state.MuteAfter() != 3 {
		t.Errorf("MuteAfter = %d, want 3", state.MuteAfter())
	}
}

// TestPLCFadeExhausts tests that a run without a mute threshold still
// reaches silence.
func TestPLCFadeExhausts(t *testing.T) {
	state := NewState(0.5, 0)
	prev := state.FadeFactor()
	for i := 0; i < 12; i++ {
		fade := state.RecordLoss()
		if fade > prev {
			t.Fatalf("loss %d: fade increased from %f to %f", i+1, prev, fade)
		}
		prev = fade
	}
	if !state.IsExhausted() {
		t.Errorf("fade %f should be exhausted", state.FadeFactor())
	}
}

func TestRandSequence(t *testing.T) {
	r := NewRand(12345)
	// 12345*521+259 = 6432004 = 0x622504
	if got := r.Next(); got != 0x2504 {
		t.Errorf("first value = %#x, want 0x2504", got)
	}
	if r.State() != 0x2504 {
		t.Errorf("state = %#x, want 0x2504", r.State())
	}

	a, b := NewRand(7), NewRand(7)
	for i := 0; i < 100; i++ {
		if a.Intn(50) != b.Intn(50) {
			t.Fatal("generators with the same seed diverged")
		}
	}
}

func TestRandIntnRange(t *testing.T) {
	r := NewRand(1)
	for i := 0; i < 1000; i++ {
		v := r.Intn(21)
		if v < 0 || v >= 21 {
			t.Fatalf("Intn(21) = %d", v)
		}
	}
}

func TestRandFloatRange(t *testing.T) {
	r := NewRand(99)
	for i := 0; i < 1000; i++ {
		v := r.Float()
		if v < -1 || v >= 1 {
			t.Fatalf("Float() = %f", v)
		}
	}
}

func TestRepeatPeriod(t *testing.T) {
	history := []float64{9, 9, 1, 2, 3}
	out := make([]float64, 7)
	RepeatPeriod(out, history, 3, 0.5)
	want := []float64{0.5, 1, 1.5, 0.5, 1, 1.5, 0.5}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}

	RepeatPeriod(out, history, 0, 1)
	for i, v := range out {
		if v != 0 {
			t.Errorf("lag 0: out[%d] = %v, want 0", i, v)
		}
	}
}

func TestRepeatPeriodQ(t *testing.T) {
	history := []int16{100, -200}
	out := make([]int16, 5)
	RepeatPeriodQ(out, history, 2)
	want := []int16{75, -150, 75, -150, 75}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %d, want %d", i, out[i], want[i])
		}
	}
}

func TestNoiseDeterministic(t *testing.T) {
	r1, r2 := NewRand(3), NewRand(3)
	a := make([]int16, 40)
	b := make([]int16, 40)
	NoiseQ(a, &r1, 1000)
	NoiseQ(b, &r2, 1000)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs: %d vs %d", i, a[i], b[i])
		}
		if a[i] > 1000 || a[i] < -1000 {
			t.Errorf("sample %d = %d exceeds gain", i, a[i])
		}
	}
}

func TestDecayLSF(t *testing.T) {
	lsf := []float64{0.1, 0.2}
	DecayLSF(lsf, []float64{0.3, 0.4}, 0.5)
	if math.Abs(lsf[0]-0.2) > 1e-12 || math.Abs(lsf[1]-0.3) > 1e-12 {
		t.Errorf("DecayLSF = %v, want [0.2 0.3]", lsf)
	}

	q := []int16{1000, 2000}
	DecayLSFQ(q, []int16{3000, 4000}, 16384)
	if q[0] != 2000 || q[1] != 3000 {
		t.Errorf("DecayLSFQ = %v, want [2000 3000]", q)
	}
}

func TestGainSchedule(t *testing.T) {
	g := GainSchedule{0.98, 0.8, 0.3}
	cases := []struct {
		run  int
		want float64
	}{{0, 0.98}, {1, 0.98}, {2, 0.8}, {3, 0.3}, {9, 0.3}}
	for _, c := range cases {
		if got := g.At(c.run); got != c.want {
			t.Errorf("At(%d) = %v, want %v", c.run, got, c.want)
		}
	}
	if (GainSchedule{}).At(4) != 1 {
		t.Error("empty schedule should not attenuate")
	}
}

func TestEnergyCap(t *testing.T) {
	var c EnergyCap
	loud := []float32{0.5, -0.5, 0.5, -0.5}
	quiet := []float32{0.1, -0.1, 0.1, -0.1}

	// no reference yet
	if g := c.Limit(append([]float32(nil), loud...)); g != 1 {
		t.Errorf("first Limit gain = %f, want 1", g)
	}

	c.Observe(quiet)
	frame := append([]float32(nil), loud...)
	if g := c.Limit(frame); math.Abs(g-0.2) > 1e-5 {
		t.Errorf("Limit gain = %f, want 0.2", g)
	}
	if e, ref := frameEnergy(frame), frameEnergy(quiet); e > ref {
		t.Errorf("limited energy %g above reference %g", e, ref)
	}

	// a quieter frame passes untouched and lowers the cap
	softer := []float32{0.01, 0.01, 0.01, 0.01}
	if g := c.Limit(softer); g != 1 || softer[0] != 0.01 {
		t.Errorf("quieter frame scaled by %f", g)
	}
	frame = append([]float32(nil), quiet...)
	c.Limit(frame)
	if e := frameEnergy(frame); e > frameEnergy(softer) {
		t.Errorf("energy rose to %g after %g", e, frameEnergy(softer))
	}

	c.Reset()
	if g := c.Limit(append([]float32(nil), loud...)); g != 1 {
		t.Errorf("Limit after Reset gain = %f, want 1", g)
	}
}
