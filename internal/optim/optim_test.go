package optim

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/san-kum/legmpc/internal/config"
	"github.com/san-kum/legmpc/internal/dynamo"
)

func TestGridSearchFindsMinimum(t *testing.T) {
	g, err := NewGridSearch([]string{"a", "b"}, [][]float64{{-1, 0, 1, 2}, {0.5, 1.5}}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if g.Size() != 8 {
		t.Fatalf("size = %d, want 8", g.Size())
	}
	points, best, err := g.Search(context.Background(), func(_ context.Context, p map[string]float64) (float64, error) {
		return (p["a"]-1)*(p["a"]-1) + (p["b"]-1.5)*(p["b"]-1.5), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 8 {
		t.Fatalf("got %d points", len(points))
	}
	if got := points[best].Params; got["a"] != 1 || got["b"] != 1.5 {
		t.Errorf("best = %v, want a=1 b=1.5", got)
	}
	if points[0].Params["a"] != -1 || points[1].Params["b"] != 1.5 {
		t.Errorf("points out of grid order: %v %v", points[0].Params, points[1].Params)
	}
}

func TestGridSearchSkipsFailures(t *testing.T) {
	g, err := NewGridSearch([]string{"x"}, [][]float64{{0, 1, 2}}, 1)
	if err != nil {
		t.Fatal(err)
	}
	points, best, err := g.Search(context.Background(), func(_ context.Context, p map[string]float64) (float64, error) {
		switch p["x"] {
		case 0:
			return 0, errors.New("diverged")
		case 1:
			return math.NaN(), nil
		}
		return 3, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if best != 2 {
		t.Errorf("best = %d, want 2", best)
	}
	if points[0].Err == nil || !errors.Is(points[1].Err, dynamo.ErrInvalidState) {
		t.Errorf("errors not kept: %v, %v", points[0].Err, points[1].Err)
	}

	_, best, err = g.Search(context.Background(), func(context.Context, map[string]float64) (float64, error) {
		return 0, errors.New("always")
	})
	if err == nil || best != -1 {
		t.Errorf("all failed: best=%d err=%v", best, err)
	}
}

func TestGridSearchCancelled(t *testing.T) {
	g, err := NewGridSearch([]string{"x"}, [][]float64{{0, 1}}, 1)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = g.Search(ctx, func(context.Context, map[string]float64) (float64, error) { return 0, nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestNewGridSearchInvalid(t *testing.T) {
	tests := []struct {
		name   string
		params []string
		ranges [][]float64
	}{
		{"mismatch", []string{"a"}, nil},
		{"duplicate", []string{"a", "a"}, [][]float64{{1}, {2}}},
		{"empty", []string{"a"}, [][]float64{{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGridSearch(tt.params, tt.ranges, 1); !errors.Is(err, dynamo.ErrConfig) {
				t.Errorf("err = %v, want ErrConfig", err)
			}
		})
	}
}

func TestApply(t *testing.T) {
	base := config.DefaultConfig()
	cfg, err := Apply(base, map[string]float64{"step_y": 0.05, "swing_time": 0.3, "knots": 12})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Gait.Step[0] != 0.15 || cfg.Gait.Step[1] != 0.05 || cfg.Gait.SwingTime != 0.3 || cfg.OCP.Knots != 12 {
		t.Errorf("applied config = %+v %+v", cfg.Gait, cfg.OCP)
	}
	if base.Gait.Step[1] != 0 || base.OCP.Knots != 18 {
		t.Error("Apply modified the base config")
	}
	if _, err := Apply(base, map[string]float64{"mass": 1}); !errors.Is(err, dynamo.ErrConfig) {
		t.Errorf("unknown parameter: err = %v", err)
	}
}

func TestMetricObjective(t *testing.T) {
	base := config.DefaultConfig()
	base.Sim.Duration = 0.05
	base.MPC.Workers = 1
	eval := MetricObjective(base, "pd", "stability", 10, zap.NewNop())
	v, err := eval(context.Background(), map[string]float64{"step_height": 0.05})
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Errorf("stability = %g, want 1 for a standing PD run", v)
	}
	if _, err := MetricObjective(base, "pd", "nope", 10, zap.NewNop())(context.Background(), nil); !errors.Is(err, dynamo.ErrConfig) {
		t.Errorf("missing metric: err = %v", err)
	}
}
