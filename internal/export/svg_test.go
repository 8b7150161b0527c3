package export

import (
	"strings"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/san-kum/legmpc/internal/config"
	"github.com/san-kum/legmpc/internal/experiment"
)

func TestTrajectoryPaths(t *testing.T) {
	cfg := config.DefaultConfig()
	m, err := experiment.LoadModel(cfg.Robot)
	if err != nil {
		t.Fatal(err)
	}
	q := append([]float64(nil), cfg.Cost.QStanding...)
	moved := append([]float64(nil), q...)
	moved[0] += 0.1
	paths := TrajectoryPaths(m, [][]float64{q, moved, {1, 2}})
	if len(paths) != 5 {
		t.Fatalf("got %d paths, want base + 4 feet", len(paths))
	}
	for _, p := range paths {
		if len(p.Points) != 2 {
			t.Errorf("%s has %d points, want 2 (short rows skipped)", p.Label, len(p.Points))
		}
	}
	if d := paths[1].Points[1].Sub(paths[1].Points[0]); d.Sub(r3.Vector{X: 0.1}).Norm() > 1e-9 {
		t.Errorf("foot moved by %v, want the base offset", d)
	}
	if paths[1].Label != "FL_foot" {
		t.Errorf("first foot label = %q", paths[1].Label)
	}
}

func TestTrajectoryToSVG(t *testing.T) {
	paths := []Path{
		{Label: "base", Color: "#fff", Points: []r3.Vector{{X: 0, Y: 0}, {X: 1, Y: 0.5}}},
		{Label: "empty", Color: "#000"},
	}
	var sb strings.Builder
	if err := TrajectoryToSVG(&sb, paths, 200, 100); err != nil {
		t.Fatal(err)
	}
	svg := sb.String()
	if !strings.HasPrefix(svg, "<?xml") || !strings.HasSuffix(svg, "</svg>\n") {
		t.Error("not an SVG document")
	}
	if strings.Count(svg, "<path") != 1 || !strings.Contains(svg, ">base</text>") {
		t.Errorf("unexpected body:\n%s", svg)
	}
	if err := TrajectoryToSVG(&sb, []Path{{Label: "x"}}, 10, 10); err == nil {
		t.Error("empty paths should fail")
	}
}
