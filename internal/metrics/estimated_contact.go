package metrics

import (
	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/estimator"
)

// EstimatedContact is the fraction of contact samples where the
// proprioceptive contact estimate agrees with the schedule. The
// acceleration fed to the estimator is the velocity difference between
// consecutive steps, so each step is judged one step late.
type EstimatedContact struct {
	est       *estimator.Estimator
	schedule  func(t float64) []bool
	threshold float64
	nq        int

	prevX   dynamo.State
	prevU   dynamo.Control
	prevT   float64
	acc     []float64
	samples int
	agree   int
}

func NewEstimatedContact(est *estimator.Estimator, nq int, schedule func(t float64) []bool, threshold float64) *EstimatedContact {
	return &EstimatedContact{est: est, schedule: schedule, threshold: threshold, nq: nq}
}

func (e *EstimatedContact) Name() string { return "estimated_contact_agreement" }

func (e *EstimatedContact) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if e.prevX != nil && t > e.prevT {
		_, v := x.Split(e.nq)
		q0, v0 := e.prevX.Split(e.nq)
		if e.acc == nil {
			e.acc = make([]float64, len(v))
		}
		dt := t - e.prevT
		for i := range v {
			e.acc[i] = (v[i] - v0[i]) / dt
		}
		if err := e.est.Update(q0, v0, e.acc, e.prevU); err == nil {
			planned := e.schedule(e.prevT)
			for c, on := range e.est.ContactStatus(e.threshold) {
				e.samples++
				if c < len(planned) && on == planned[c] {
					e.agree++
				}
			}
		}
	}
	e.prevX = append(e.prevX[:0], x...)
	e.prevU = append(e.prevU[:0], u...)
	e.prevT = t
}

func (e *EstimatedContact) Value() float64 {
	if e.samples == 0 {
		return 1
	}
	return float64(e.agree) / float64(e.samples)
}

func (e *EstimatedContact) Reset() {
	e.est.Reset()
	e.prevX, e.prevU = nil, nil
	e.samples, e.agree = 0, 0
}
