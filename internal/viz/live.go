package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/legmpc/internal/gait"
	"github.com/san-kum/legmpc/internal/robot"
	"github.com/san-kum/legmpc/internal/sim"
)

const historyCapacity = 600

// TickMsg carries one controller tick of the monitored run.
type TickMsg sim.Tick

// DoneMsg ends the monitored run.
type DoneMsg struct {
	Result *sim.Result
	Err    error
}

type series int

const (
	seriesHeight series = iota
	seriesKKT
	seriesCost
	seriesSolveTime
	numSeries
)

func (s series) String() string {
	switch s {
	case seriesHeight:
		return "base height [m]"
	case seriesKKT:
		return "KKT error"
	case seriesCost:
		return "cost"
	default:
		return "solve time [ms]"
	}
}

// Monitor is a Bubble Tea model of a closed-loop run. The run happens
// elsewhere and reports through tea.Program.Send.
type Monitor struct {
	model   robot.Model
	pattern *gait.Pattern
	horizon float64
	title   string

	theme  int
	styles styles
	shown  series

	last      *sim.Tick
	ticks     int
	converged int
	history   [numSeries][]float64

	done   bool
	result *sim.Result
	err    error
	width  int
}

// NewMonitor shows the run of model under pattern; pattern may be nil.
func NewMonitor(m robot.Model, pattern *gait.Pattern, horizon float64, title string) Monitor {
	return Monitor{
		model:   m.Clone(),
		pattern: pattern,
		horizon: horizon,
		title:   title,
		styles:  newStyles(GetTheme(ThemeNames()[0])),
		width:   80,
	}
}

func (m Monitor) Init() tea.Cmd { return nil }

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "t":
			names := ThemeNames()
			m.theme = (m.theme + 1) % len(names)
			m.styles = newStyles(GetTheme(names[m.theme]))
		case "g":
			m.shown = (m.shown + 1) % numSeries
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case TickMsg:
		m.record(sim.Tick(msg))
	case DoneMsg:
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
	}
	return m, nil
}

func push(h []float64, v float64) []float64 {
	h = append(h, v)
	if len(h) > historyCapacity {
		h = h[len(h)-historyCapacity:]
	}
	return h
}

func (m *Monitor) record(tick sim.Tick) {
	m.last = &tick
	m.ticks++
	if tick.Diagnostics.Converged {
		m.converged++
	}
	d := tick.Diagnostics
	if len(tick.State) > 2 {
		m.history[seriesHeight] = push(m.history[seriesHeight], tick.State[2])
	}
	m.history[seriesKKT] = push(m.history[seriesKKT], d.KKTError)
	m.history[seriesCost] = push(m.history[seriesCost], d.Cost)
	m.history[seriesSolveTime] = push(m.history[seriesSolveTime], float64(d.Elapsed)/float64(time.Millisecond))
}

func (m Monitor) status() string {
	switch {
	case m.err != nil:
		return m.styles.bad.Render("FAILED: " + m.err.Error())
	case m.done:
		return m.styles.good.Render("DONE")
	case m.last == nil:
		return m.styles.warn.Render("WAITING")
	default:
		return m.styles.good.Render("RUNNING")
	}
}

func (m Monitor) stats() string {
	st := m.styles
	var s strings.Builder
	tick := m.last
	s.WriteString(st.row("Time", fmt.Sprintf("%.3fs", tick.Time)) + "\n")
	if len(tick.State) >= 6 {
		s.WriteString(st.row("Height", fmt.Sprintf("%.3fm", tick.State[2])) + "\n")
		s.WriteString(st.row("Roll/Pitch", fmt.Sprintf("%+.3f %+.3f", tick.State[3], tick.State[4])) + "\n")
	}
	d := tick.Diagnostics
	s.WriteString(st.row("Iterations", fmt.Sprintf("%d", d.Iterations)) + "\n")
	s.WriteString(st.row("KKT", fmt.Sprintf("%.3e", d.KKTError)) + "\n")
	s.WriteString(st.row("Cost", fmt.Sprintf("%.4g", d.Cost)) + "\n")
	s.WriteString(st.row("Barrier", fmt.Sprintf("%.1e", d.Barrier)) + "\n")
	s.WriteString(st.row("Solve", d.Elapsed.Round(time.Microsecond).String()) + "\n")
	feasible := st.good.Render("yes")
	if !d.Feasible {
		feasible = st.bad.Render("no")
	}
	s.WriteString(st.row("Feasible", feasible) + "\n")
	ratio := float64(m.converged) / float64(m.ticks)
	s.WriteString(st.row("Converged", fmt.Sprintf("%s %3.0f%%", ProgressBar(ratio, 10), 100*ratio)) + "\n")
	if d.Failure != "" {
		s.WriteString(st.bad.Render(d.Failure) + "\n")
	}
	return s.String()
}

func (m Monitor) View() string {
	st := m.styles
	var s strings.Builder
	s.WriteString(st.header.Render(strings.ToUpper(m.title)) + "\n")
	s.WriteString(m.status() + "\n\n")

	if m.last != nil {
		top := st.panel.Render(TopDown(m.model, m.last.State, m.last.Contacts, 24, 10))
		s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, top, st.panel.Render(m.stats())) + "\n")

		cols := max(20, min(60, m.width-10))
		s.WriteString(GaitChart(m.pattern, m.last.Time, m.last.Time+m.horizon, cols, GetTheme(ThemeNames()[m.theme])) + "\n")

		if h := m.history[m.shown]; len(h) > 1 {
			s.WriteString(st.graph.Render(Plot(h, m.shown.String(), cols, 6)) + "\n")
		}
	}
	if m.done && m.result != nil {
		s.WriteString("\n")
		for _, name := range sortedMetricNames(m.result.Metrics) {
			s.WriteString(st.row(name, fmt.Sprintf("%.4g", m.result.Metrics[name])) + "\n")
		}
	}
	s.WriteString(st.help.Render("t theme  g series  q quit"))
	return s.String()
}
