package dynamo

import (
	"math"
)

// State is the stacked configuration and velocity x = [q; v].
type State []float64

// NewState stacks q and v into a fresh State.
func NewState(q, v []float64) State {
	x := make(State, len(q)+len(v))
	copy(x, q)
	copy(x[len(q):], v)
	return x
}

func (s State) Clone() State {
	if s == nil {
		return nil
	}
	c := make(State, len(s))
	copy(c, s)
	return c
}

// Split returns views of the configuration and velocity parts.
func (s State) Split(dimQ int) (q, v []float64) {
	return s[:dimQ], s[dimQ:]
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// Lerp interpolates linearly between a and b with weight w in [0, 1].
func Lerp(a, b State, w float64) State {
	result := make(State, len(a))
	for i := range a {
		result[i] = a[i] + w*(b[i]-a[i])
	}
	return result
}

// Control is the joint torque vector applied over a stage.
type Control []float64

func (c Control) Clone() Control {
	if c == nil {
		return nil
	}
	out := make(Control, len(c))
	copy(out, c)
	return out
}

// Metric accumulates a scalar over a closed-loop run.
type Metric interface {
	Name() string
	Observe(x State, u Control, t float64)
	Value() float64
	Reset()
}
