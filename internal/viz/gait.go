package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/legmpc/internal/gait"
)

const (
	stanceCell = '█'
	swingCell  = '░'
)

// gaitRows samples the contact schedule of p at the middle of cols
// cells over [from, to). A nil pattern stands on all four legs.
func gaitRows(p *gait.Pattern, from, to float64, cols int) (labels []string, rows []string) {
	n := 4
	if p != nil {
		n = p.NumContacts()
	}
	dt := (to - from) / float64(cols)
	for c := 0; c < n; c++ {
		label := fmt.Sprintf("c%d", c)
		if p != nil {
			label = p.Leg(c).String()
		}
		var b strings.Builder
		for k := 0; k < cols; k++ {
			t := from + (float64(k)+0.5)*dt
			if p != nil && p.InSwing(c, t) {
				b.WriteRune(swingCell)
			} else {
				b.WriteRune(stanceCell)
			}
		}
		labels = append(labels, label)
		rows = append(rows, b.String())
	}
	return labels, rows
}

// GaitChart renders the stance and swing phases of every leg over
// [from, to) with cols cells per leg.
func GaitChart(p *gait.Pattern, from, to float64, cols int, theme Theme) string {
	st := newStyles(theme)
	labels, rows := gaitRows(p, from, to, cols)
	lines := make([]string, 0, len(rows)+1)
	for i, row := range rows {
		var b strings.Builder
		b.WriteString(st.label.Width(4).Render(labels[i]))
		for _, r := range row {
			if r == stanceCell {
				b.WriteString(st.stance.Render(string(r)))
			} else {
				b.WriteString(st.swing.Render(string(r)))
			}
		}
		lines = append(lines, b.String())
	}
	left := fmt.Sprintf("%.2fs", from)
	right := fmt.Sprintf("%.2fs", to)
	pad := max(1, cols-len(left)-len(right))
	lines = append(lines, st.label.Width(4).Render("")+st.help.UnsetMarginTop().Render(left+strings.Repeat(" ", pad)+right))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
