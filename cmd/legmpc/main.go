package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/san-kum/legmpc/internal/analysis"
	"github.com/san-kum/legmpc/internal/automation"
	"github.com/san-kum/legmpc/internal/config"
	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/experiment"
	"github.com/san-kum/legmpc/internal/export"
	"github.com/san-kum/legmpc/internal/optim"
	"github.com/san-kum/legmpc/internal/sim"
	"github.com/san-kum/legmpc/internal/storage"
	"github.com/san-kum/legmpc/internal/viz"
)

var (
	dataDir    string
	logLevel   string
	preset     string
	configFile string
	controller string
	integrator string
	duration   float64
	dt         float64
	workers    int
	realtime   bool
	benchTicks int
	gaitCols   int
	plotWidth  int
	plotHeight int
	svgFile    string
	xAxis      int
	yAxis      int

	sweepParams []string
	sweepMetric string
	mcTrials    int
	mcSeed      uint64
	mcHeight    float64
	mcTilt      float64
	mcVelocity  float64
	mcWorkers   int
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "legmpc",
		Short:        "trotting quadruped model predictive control",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".legmpc", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a closed-loop simulation and store it",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addExperimentFlags(runCmd)

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a closed-loop simulation with a live monitor",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addExperimentFlags(liveCmd)
	liveCmd.Flags().BoolVar(&realtime, "realtime", false, "pace the simulation to wall time")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot base height and solver convergence of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")
	plotCmd.Flags().IntVar(&plotHeight, "height", 10, "plot height")
	plotCmd.Flags().StringVar(&svgFile, "svg", "", "also write the top-down base and foot trajectories to this SVG file")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print the metadata of a run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json",
		Short: "run a simulation and write every tick to stdout as JSON",
		Args:  cobra.NoArgs,
		RunE:  exportJSON,
	}
	addExperimentFlags(exportJSONCmd)

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available gait presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSTEP\tYAW/STEP\tDESCRIPTION")
			for _, name := range config.ListPresets() {
				p := config.Presets[name]
				fmt.Fprintf(w, "%s\t%v\t%.3f\t%s\n", name, p.Step, p.YawPerStep, p.Description)
			}
			return w.Flush()
		},
	}

	gaitCmd := &cobra.Command{
		Use:   "gait",
		Short: "print the contact schedule of a configuration",
		Args:  cobra.NoArgs,
		RunE:  showGait,
	}
	addExperimentFlags(gaitCmd)
	gaitCmd.Flags().IntVar(&gaitCols, "cols", 60, "chart width")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "time MPC initialization and ticks",
		Args:  cobra.NoArgs,
		RunE:  benchMPC,
	}
	addExperimentFlags(benchCmd)
	benchCmd.Flags().IntVar(&benchTicks, "ticks", 50, "number of ticks")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run every experiment of a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "grid search gait and solver parameters",
		Long: "grid search gait and solver parameters, e.g.\n" +
			"  legmpc sweep --param step_x=0.05,0.1,0.15 --param swing_time=0.2,0.25\n" +
			"parameters: " + strings.Join(optim.ParamNames(), ", "),
		Args: cobra.NoArgs,
		RunE: runSweep,
	}
	addExperimentFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepParams, "param", nil, "name=v1,v2,... (repeatable)")
	sweepCmd.Flags().StringVar(&sweepMetric, "metric", "com_tracking_rms", "metric to minimize")

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "run trials from randomly perturbed initial states",
		Args:  cobra.NoArgs,
		RunE:  runMonteCarlo,
	}
	addExperimentFlags(monteCarloCmd)
	monteCarloCmd.Flags().IntVar(&mcTrials, "trials", 10, "number of trials")
	monteCarloCmd.Flags().Uint64Var(&mcSeed, "seed", 1, "random seed")
	monteCarloCmd.Flags().Float64Var(&mcHeight, "height-sigma", 0.01, "base height noise [m]")
	monteCarloCmd.Flags().Float64Var(&mcTilt, "tilt-sigma", 0.05, "roll and pitch noise [rad]")
	monteCarloCmd.Flags().Float64Var(&mcVelocity, "velocity-sigma", 0.1, "base velocity noise [m/s]")
	monteCarloCmd.Flags().IntVar(&mcWorkers, "parallel", 2, "concurrent trials")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "summarize the base motion of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "phase space plot",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().IntVar(&xAxis, "x-axis", 2, "state index for x-axis")
	phaseCmd.Flags().IntVar(&yAxis, "y-axis", 20, "state index for y-axis")

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, exportCmd, exportJSONCmd, presetsCmd, gaitCmd, benchCmd,
		analyzeCmd, phaseCmd, scenarioCmd, sweepCmd, monteCarloCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func addExperimentFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&preset, "preset", "forward", "gait preset")
	cmd.Flags().StringVar(&configFile, "config", "", "config file (overrides preset)")
	cmd.Flags().StringVar(&controller, "controller", "mpc", "controller (mpc, pd)")
	cmd.Flags().StringVar(&integrator, "integrator", "", "plant integrator")
	cmd.Flags().Float64Var(&duration, "time", 0, "simulated duration")
	cmd.Flags().Float64Var(&dt, "dt", 0, "plant timestep")
	cmd.Flags().IntVar(&workers, "workers", 0, "linearization workers")
}

func newLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// loadConfig applies the preset, then the config file, then the flags
// that were set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	name := preset
	cfg := config.GetPreset(preset)
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		name = strings.TrimSuffix(fileBase(configFile), ".yaml")
	}
	if cfg == nil {
		return nil, "", fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
	}
	if cmd.Flags().Changed("time") {
		cfg.Sim.Duration = duration
	}
	if cmd.Flags().Changed("dt") {
		cfg.Sim.Dt = dt
	}
	if cmd.Flags().Changed("integrator") {
		cfg.Sim.Integrator = integrator
	}
	if cmd.Flags().Changed("workers") {
		cfg.MPC.Workers = workers
	}
	return cfg, name, nil
}

func fileBase(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

func buildExperiment(cmd *cobra.Command, logger *zap.Logger) (*experiment.Experiment, string, error) {
	cfg, name, err := loadConfig(cmd)
	if err != nil {
		return nil, "", err
	}
	e, err := experiment.Build(cfg, controller, logger)
	if err != nil {
		return nil, "", err
	}
	return e, name, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	e, name, err := buildExperiment(cmd, logger)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	fmt.Printf("running %s with %s...\n", name, controller)
	start := time.Now()
	result, err := e.Run(cmd.Context())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(name, controller, e.Config, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d, ticks: %d\n", result.StepsTaken, len(result.Ticks))
	for _, rerr := range result.Errors {
		fmt.Printf("stopped: %v\n", rerr)
	}
	return printMetrics(result.Metrics)
}

func printMetrics(metrics map[string]float64) error {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nMETRIC\tVALUE")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%.6g\n", name, metrics[name])
	}
	return w.Flush()
}

// tickForwarder sends every controller tick to the monitor.
type tickForwarder struct {
	program  *tea.Program
	start    time.Time
	realtime bool
}

func (f *tickForwarder) OnStep(dynamo.State, dynamo.Control, float64) {}

func (f *tickForwarder) OnTick(tick sim.Tick) {
	if f.realtime {
		if ahead := time.Duration(tick.Time*float64(time.Second)) - time.Since(f.start); ahead > 0 {
			time.Sleep(ahead)
		}
	}
	tick.State = tick.State.Clone()
	f.program.Send(viz.TickMsg(tick))
}

func runLive(cmd *cobra.Command, args []string) error {
	// Log output would corrupt the terminal UI.
	e, name, err := buildExperiment(cmd, zap.NewNop())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if e.UsesMPC() {
		fmt.Println("solving the first horizon...")
		if _, err := e.Init(ctx); err != nil {
			return err
		}
	}

	pattern, err := e.Pattern()
	if err != nil {
		return err
	}
	m := viz.NewMonitor(e.Model, pattern, e.Config.OCP.Horizon, fmt.Sprintf("%s / %s", name, controller))
	p := tea.NewProgram(m)
	e.Simulator.AddObserver(&tickForwarder{program: p, start: time.Now(), realtime: realtime})

	go func() {
		result, err := e.Run(ctx)
		p.Send(viz.DoneMsg{Result: result, Err: err})
	}()

	_, err = p.Run()
	cancel()
	return err
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCTRL\tTIME\tDURATION\tDT\tSTEPS\tTICKS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2fs\t%.4fs\t%d\t%d\n",
			run.ID,
			run.Name,
			run.Controller,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Steps,
			run.Ticks,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	states, _, err := st.LoadStates(runID)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("controller: %s\n", meta.Controller)
	fmt.Printf("samples: %d\n\n", len(states))

	captions := map[int]string{0: "base x [m]", 1: "base y [m]", 2: "base height [m]"}
	for _, idx := range []int{0, 1, 2} {
		data := make([]float64, len(states))
		for i := range states {
			if idx < len(states[i]) {
				data[i] = states[i][idx]
			}
		}
		fmt.Println(asciigraph.Plot(data,
			asciigraph.Height(plotHeight),
			asciigraph.Width(plotWidth),
			asciigraph.Caption(captions[idx]),
		))
		fmt.Println()
	}

	kkt, err := st.SolverColumn(runID, "kkt_error")
	if err != nil {
		return err
	}
	if len(kkt) > 1 {
		fmt.Println(viz.Plot(kkt, "KKT error per tick", plotWidth, plotHeight))
	}

	if svgFile == "" {
		return nil
	}
	cfg, err := st.LoadConfig(runID)
	if err != nil {
		return err
	}
	m, err := experiment.LoadModel(cfg.Robot)
	if err != nil {
		return err
	}
	f, err := os.Create(svgFile)
	if err != nil {
		return err
	}
	if err := export.TrajectoryToSVG(f, export.TrajectoryPaths(m, states), 600, 600); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", svgFile)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	e, name, err := buildExperiment(cmd, logger)
	if err != nil {
		return err
	}
	result, err := e.Run(cmd.Context())
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, name, controller, e.Config.Sim.Dt, e.Config.Sim.Duration, result)
}

func showGait(cmd *cobra.Command, args []string) error {
	e, name, err := buildExperiment(cmd, zap.NewNop())
	if err != nil {
		return err
	}
	p, err := e.Pattern()
	if err != nil {
		return err
	}
	fmt.Printf("gait: %s (swing %.3fs, period %.3fs, step %v)\n\n", name, p.SwingTime(), p.Period(), e.Config.Gait.Step)
	fmt.Println(viz.GaitChart(p, 0, 2*p.Period(), gaitCols, viz.GetTheme("default")))
	return nil
}

func benchMPC(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	e, name, err := buildExperiment(cmd, logger)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	start := time.Now()
	first, err := e.Init(ctx)
	if err != nil {
		return err
	}
	initTime := time.Since(start)

	q, v := e.InitialState().Split(e.Model.DimQ())
	var total, worst time.Duration
	converged := 0
	for i := 1; i <= benchTicks; i++ {
		t := float64(i) * e.Config.Sim.ControlPeriod
		start := time.Now()
		c, err := e.MPC.Update(ctx, t, q, v)
		if err != nil {
			return err
		}
		d := time.Since(start)
		total += d
		worst = max(worst, d)
		if c.Diagnostics.Converged {
			converged++
		}
	}

	fmt.Printf("benchmarking %s (%d knots, %d workers)\n\n", name, e.Config.OCP.Knots, e.Config.MPC.Workers)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PHASE\tCOUNT\tMEAN\tMAX\tCONVERGED")
	fmt.Fprintf(w, "init\t1\t%v\t%v\t%v\n", initTime.Round(time.Microsecond), initTime.Round(time.Microsecond), first.Diagnostics.Converged)
	if benchTicks > 0 {
		mean := total / time.Duration(benchTicks)
		fmt.Fprintf(w, "tick\t%d\t%v\t%v\t%d/%d\n", benchTicks, mean.Round(time.Microsecond), worst.Round(time.Microsecond), converged, benchTicks)
	}
	return w.Flush()
}

func runScenario(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tCTRL\tSTEPS\tTICKS\tSTABILITY\tCOM RMS\tRUN ID")
	_, err = automation.RunScenario(cmd.Context(), scenario, logger, func(i int, o automation.Outcome) error {
		name := o.Run.Name
		if name == "" {
			name = fmt.Sprintf("%s-%d", scenario.Name, i+1)
		}
		runID := "-"
		if o.Run.Save {
			id, err := st.Save(name, o.Run.ControllerName(), o.Config, o.Result)
			if err != nil {
				return err
			}
			runID = id
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.3f\t%.4f\t%s\n", name, o.Run.ControllerName(),
			o.Result.StepsTaken, len(o.Result.Ticks),
			o.Result.Metrics["stability"], o.Result.Metrics["com_tracking_rms"], runID)
		return nil
	})
	if ferr := w.Flush(); err == nil {
		err = ferr
	}
	return err
}

// parseParam splits name=v1,v2,...
func parseParam(arg string) (string, []float64, error) {
	name, list, ok := strings.Cut(arg, "=")
	if !ok || name == "" || list == "" {
		return "", nil, fmt.Errorf("parameter %q is not name=v1,v2,...", arg)
	}
	var values []float64
	for _, f := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return "", nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		values = append(values, v)
	}
	return name, values, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, name, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(sweepParams) == 0 {
		return fmt.Errorf("no --param given (available: %s)", strings.Join(optim.ParamNames(), ", "))
	}
	names := make([]string, 0, len(sweepParams))
	ranges := make([][]float64, 0, len(sweepParams))
	for _, arg := range sweepParams {
		n, values, err := parseParam(arg)
		if err != nil {
			return err
		}
		names = append(names, n)
		ranges = append(ranges, values)
	}
	grid, err := optim.NewGridSearch(names, ranges, cfg.MPC.Workers)
	if err != nil {
		return err
	}

	fmt.Printf("sweeping %s over %d points, minimizing %s\n", name, grid.Size(), sweepMetric)
	points, best, err := grid.Search(cmd.Context(), optim.MetricObjective(cfg, controller, sweepMetric, 10, logger))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(names, "\t"))+"\t"+strings.ToUpper(sweepMetric))
	for i, p := range points {
		for _, n := range names {
			fmt.Fprintf(w, "%g\t", p.Params[n])
		}
		switch {
		case p.Err != nil:
			fmt.Fprintf(w, "error: %v\n", p.Err)
		case i == best:
			fmt.Fprintf(w, "%.6g *\n", p.Value)
		default:
			fmt.Fprintf(w, "%.6g\n", p.Value)
		}
	}
	return w.Flush()
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, name, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	mc := &automation.MonteCarloConfig{
		Config:        cfg,
		Controller:    controller,
		Trials:        mcTrials,
		Seed:          mcSeed,
		Workers:       mcWorkers,
		HeightSigma:   mcHeight,
		TiltSigma:     mcTilt,
		VelocitySigma: mcVelocity,
		MinHeight:     0.15,
	}

	fmt.Printf("running %d trials of %s with %s...\n", mcTrials, name, controller)
	start := time.Now()
	results, err := automation.RunMonteCarlo(cmd.Context(), mc, logger)
	if err != nil {
		return err
	}
	stable, unstable := automation.MonteCarloStats(results)
	fmt.Printf("completed in %v: %d stable, %d unstable\n\n", time.Since(start).Round(time.Millisecond), stable, unstable)

	metricNames := map[string]float64{}
	for _, r := range results {
		for k := range r.Metrics {
			metricNames[k] = 0
		}
	}
	names := make([]string, 0, len(metricNames))
	for k := range metricNames {
		names = append(names, k)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tMEAN\tSTD\tTRIALS")
	for _, n := range names {
		mean, std, count := automation.MetricSummary(results, n)
		fmt.Fprintf(w, "%s\t%.6g\t%.3g\t%d\n", n, mean, std, count)
	}
	return w.Flush()
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	cfg, err := st.LoadConfig(runID)
	if err != nil {
		return err
	}
	states, times, err := st.LoadStates(runID)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("no data to analyze")
	}

	nq := len(cfg.Cost.QStanding)
	r := analysis.Analyze(states, times, nq, 2*cfg.Gait.SwingTime)

	fmt.Printf("run: %s (%s)\n", meta.ID, meta.Controller)
	fmt.Printf("samples: %d over %.3fs\n", r.Samples, r.Duration)
	fmt.Printf("travelled: %.4fm\n", r.Travelled)
	fmt.Printf("cycle spread: %.3e\n\n", r.CycleSpread)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SIGNAL\tMIN\tMAX\tMEAN\tSTD\tPEAK HZ\tAMPLITUDE")
	for _, s := range r.Signals {
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%.4f\t%.4f\t%.2f\t%.4f\n",
			s.Name, s.Min, s.Max, s.Mean, s.Std, s.DominantHz, s.Amplitude)
	}
	return w.Flush()
}

func phasePlot(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	states, _, err := st.LoadStates(runID)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("no data to plot")
	}
	if xAxis < 0 || yAxis < 0 || xAxis >= len(states[0]) || yAxis >= len(states[0]) {
		return fmt.Errorf("axis out of range: state has %d entries", len(states[0]))
	}

	portrait := analysis.GeneratePhasePortrait(states, xAxis, yAxis)
	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("phase space: x%d vs x%d\n\n", xAxis, yAxis)
	fmt.Print(analysis.PhasePortraitToASCII(portrait, 70, 24))
	return nil
}
