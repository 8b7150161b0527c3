package analysis

import (
	"math"
	"strings"
	"testing"
)

func sine(n int, dt, hz, amp, offset float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = offset + amp*math.Sin(2*math.Pi*hz*float64(i)*dt)
	}
	return out
}

func TestDominantFrequency(t *testing.T) {
	f, a := DominantFrequency(sine(200, 0.01, 2, 0.5, 3), 0.01)
	if math.Abs(f-2) > 1e-9 {
		t.Errorf("frequency = %g, want 2", f)
	}
	if math.Abs(a-0.5) > 1e-6 {
		t.Errorf("amplitude = %g, want 0.5", a)
	}
	if f, a := DominantFrequency(sine(64, 0.01, 0, 0, 1), 0.01); f != 0 || a != 0 {
		t.Errorf("constant signal: %g Hz, amplitude %g", f, a)
	}
	if f, _ := PowerSpectrum([]float64{1}, 0.01); f != nil {
		t.Error("single sample should have no spectrum")
	}
}

// trajectory oscillates the base height at freq with the vertical
// velocity in state entry nq+2.
func trajectory(n, nq int, dt, hz float64) ([][]float64, []float64) {
	states := make([][]float64, n)
	times := make([]float64, n)
	w := 2 * math.Pi * hz
	for i := range states {
		t := float64(i) * dt
		x := make([]float64, 2*nq)
		x[0] = 0.1 * t
		x[2] = 0.3 + 0.01*math.Sin(w*t)
		x[nq+2] = 0.01 * w * math.Cos(w*t)
		states[i], times[i] = x, t
	}
	return states, times
}

func TestStroboscopicSection(t *testing.T) {
	states, times := trajectory(401, 3, 0.005, 2)
	s := StroboscopicSection(states, times, 0.5, 2, 5)
	if len(s.Points) != 5 {
		t.Fatalf("got %d section points, want 5", len(s.Points))
	}
	if s.Spread() > 1e-9 {
		t.Errorf("periodic motion spread = %g", s.Spread())
	}
	if len(StroboscopicSection(states, times, 0, 2, 5).Points) != 0 {
		t.Error("non-positive period should give an empty section")
	}
}

func TestPhasePortrait(t *testing.T) {
	states, _ := trajectory(100, 3, 0.01, 1)
	states = append(states, []float64{1})
	p := GeneratePhasePortrait(states, 2, 5)
	if len(p.Points) != 100 {
		t.Fatalf("got %d points, want 100 (short state skipped)", len(p.Points))
	}
	art := PhasePortraitToASCII(p, 40, 12)
	if lines := strings.Split(strings.TrimSuffix(art, "\n"), "\n"); len(lines) != 12 {
		t.Errorf("got %d lines, want 12", len(lines))
	}
	if strings.Trim(art, "\u2800\n") == "" {
		t.Error("portrait is blank")
	}
	if PhasePortraitToASCII(nil, 10, 10) != "" {
		t.Error("nil portrait should render empty")
	}
}

func TestAnalyze(t *testing.T) {
	states, times := trajectory(200, 3, 0.01, 2)
	r := Analyze(states, times, 3, 0.5)
	if r.Samples != 200 || len(r.Signals) != 6 {
		t.Fatalf("report = %+v", r)
	}
	z := r.Signals[2]
	if z.Name != "z" || math.Abs(z.DominantHz-2) > 1e-9 || math.Abs(z.Mean-0.3) > 1e-3 {
		t.Errorf("height stats = %+v", z)
	}
	if math.Abs(r.Travelled-0.199) > 1e-9 {
		t.Errorf("travelled = %g, want 0.199", r.Travelled)
	}
	if r.CycleSpread > 1e-9 {
		t.Errorf("cycle spread = %g", r.CycleSpread)
	}
	if empty := Analyze(nil, nil, 3, 0.5); empty.Samples != 0 || empty.Signals != nil {
		t.Errorf("empty report = %+v", empty)
	}
}
