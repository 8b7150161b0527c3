package metrics

import (
	"time"

	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/sim"
)

// ticks counts controller ticks; it ignores plant steps.
type ticks struct {
	n int
}

func (t *ticks) Observe(dynamo.State, dynamo.Control, float64) {}

// Convergence is the fraction of ticks whose solve converged.
type Convergence struct {
	ticks
	converged int
}

func NewConvergence() *Convergence { return &Convergence{} }

func (c *Convergence) Name() string { return "convergence_ratio" }

func (c *Convergence) OnTick(tick sim.Tick) {
	c.n++
	if tick.Diagnostics.Converged {
		c.converged++
	}
}

func (c *Convergence) Value() float64 {
	if c.n == 0 {
		return 0
	}
	return float64(c.converged) / float64(c.n)
}

func (c *Convergence) Reset() { c.n, c.converged = 0, 0 }

// SolveTime is the mean solve time per tick in milliseconds.
type SolveTime struct {
	ticks
	total time.Duration
	max   time.Duration
}

func NewSolveTime() *SolveTime { return &SolveTime{} }

func (s *SolveTime) Name() string { return "solve_time_ms" }

func (s *SolveTime) OnTick(tick sim.Tick) {
	s.n++
	s.total += tick.Diagnostics.Elapsed
	s.max = max(s.max, tick.Diagnostics.Elapsed)
}

func (s *SolveTime) Value() float64 {
	if s.n == 0 {
		return 0
	}
	return float64(s.total) / float64(s.n) / float64(time.Millisecond)
}

// Max is the slowest solve seen.
func (s *SolveTime) Max() time.Duration { return s.max }

func (s *SolveTime) Reset() { s.n, s.total, s.max = 0, 0, 0 }

// ContactAgreement is the fraction of contact samples at controller
// ticks where the planned status matches the plant: a planned stance
// foot carries more than threshold newtons of normal force, a planned
// swing foot carries none.
type ContactAgreement struct {
	ticks
	threshold float64
	samples   int
	agree     int
}

func NewContactAgreement(threshold float64) *ContactAgreement {
	return &ContactAgreement{threshold: threshold}
}

func (c *ContactAgreement) Name() string { return "contact_agreement" }

func (c *ContactAgreement) OnTick(tick sim.Tick) {
	c.n++
	if len(tick.Forces) != len(tick.Contacts) {
		return
	}
	for i, planned := range tick.Contacts {
		c.samples++
		if planned == (tick.Forces[i].Z > c.threshold) {
			c.agree++
		}
	}
}

func (c *ContactAgreement) Value() float64 {
	if c.samples == 0 {
		return 1
	}
	return float64(c.agree) / float64(c.samples)
}

func (c *ContactAgreement) Reset() { c.n, c.samples, c.agree = 0, 0, 0 }

var (
	_ sim.TickObserver = (*Convergence)(nil)
	_ sim.TickObserver = (*SolveTime)(nil)
	_ sim.TickObserver = (*ContactAgreement)(nil)
	_ dynamo.Metric    = (*Convergence)(nil)
)
