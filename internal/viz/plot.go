package viz

import (
	"sort"

	"github.com/guptarohit/asciigraph"
)

// Plot draws series as a line chart of at most w x h cells.
func Plot(series []float64, caption string, w, h int) string {
	if len(series) == 0 {
		return "no data"
	}
	return asciigraph.Plot(series,
		asciigraph.Width(w),
		asciigraph.Height(h),
		asciigraph.Caption(caption))
}

// PlotMany overlays several series of the same quantity.
func PlotMany(series [][]float64, caption string, w, h int) string {
	nonEmpty := make([][]float64, 0, len(series))
	for _, s := range series {
		if len(s) > 0 {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if len(nonEmpty) == 0 {
		return "no data"
	}
	colors := []asciigraph.AnsiColor{asciigraph.Green, asciigraph.Yellow, asciigraph.Cyan, asciigraph.Red}
	return asciigraph.PlotMany(nonEmpty,
		asciigraph.Width(w),
		asciigraph.Height(h),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(colors[:min(len(colors), len(nonEmpty))]...))
}

func sortedMetricNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
