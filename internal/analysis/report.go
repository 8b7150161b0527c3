package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type SignalStats struct {
	Name       string
	Index      int
	Min, Max   float64
	Mean, Std  float64
	DominantHz float64
	Amplitude  float64
}

type Report struct {
	Samples  int
	Duration float64
	Signals  []SignalStats
	// CycleSpread is the change of the (height, vertical velocity)
	// stroboscopic section over the last gait period.
	CycleSpread float64
	// Travelled is the horizontal base displacement.
	Travelled float64
}

var baseSignals = []struct {
	name  string
	index int
}{
	{"x", 0}, {"y", 1}, {"z", 2}, {"roll", 3}, {"pitch", 4}, {"yaw", 5},
}

// Analyze summarizes a floating-base trajectory. nq is the configuration
// dimension and period the gait period; samples are assumed evenly
// spaced in time.
func Analyze(states [][]float64, times []float64, nq int, period float64) Report {
	r := Report{Samples: len(states)}
	if len(states) == 0 || len(times) != len(states) {
		return r
	}
	r.Duration = times[len(times)-1] - times[0]
	dt := 0.0
	if len(times) > 1 {
		dt = r.Duration / float64(len(times)-1)
	}

	column := func(idx int) []float64 {
		out := make([]float64, 0, len(states))
		for _, x := range states {
			if idx < len(x) {
				out = append(out, x[idx])
			}
		}
		return out
	}
	for _, s := range baseSignals {
		c := column(s.index)
		if len(c) == 0 {
			continue
		}
		st := SignalStats{Name: s.name, Index: s.index, Min: floats.Min(c), Max: floats.Max(c)}
		st.Mean, st.Std = stat.Mean(c, nil), 0
		if len(c) > 1 {
			st.Mean, st.Std = stat.MeanStdDev(c, nil)
		}
		st.DominantHz, st.Amplitude = DominantFrequency(c, dt)
		r.Signals = append(r.Signals, st)
	}

	first, last := states[0], states[len(states)-1]
	if len(first) > 1 && len(last) > 1 {
		r.Travelled = math.Hypot(last[0]-first[0], last[1]-first[1])
	}
	r.CycleSpread = StroboscopicSection(states, times, period, 2, nq+2).Spread()
	return r
}
