package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/legmpc/internal/config"
	"github.com/san-kum/legmpc/internal/sim"
)

// Store keeps one directory per run under baseDir:
//
//	metadata.json  run description and final metrics
//	config.yaml    the configuration the run used
//	states.csv     time, state and applied torques per plant step
//	solver.csv     solver diagnostics per controller tick
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir(runID string) string { return filepath.Join(s.baseDir, runID) }

type RunMetadata struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Controller    string             `json:"controller"`
	Timestamp     time.Time          `json:"timestamp"`
	Step          []float64          `json:"step_length"`
	SwingTime     float64            `json:"swing_time"`
	Horizon       float64            `json:"horizon"`
	Knots         int                `json:"knots"`
	Dt            float64            `json:"dt"`
	ControlPeriod float64            `json:"control_period"`
	Duration      float64            `json:"duration"`
	Integrator    string             `json:"integrator"`
	Steps         int                `json:"steps"`
	Ticks         int                `json:"ticks"`
	Errors        []string           `json:"errors,omitempty"`
	Metrics       map[string]float64 `json:"metrics"`
}

func format(v float64) string { return strconv.FormatFloat(v, 'g', 10, 64) }

// Save writes a run named name (usually the preset) and returns its id.
func (s *Store) Save(name, controller string, cfg *config.Config, result *sim.Result) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%s_%d", name, controller, now.UnixNano())
	runDir := s.Dir(runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:            runID,
		Name:          name,
		Controller:    controller,
		Timestamp:     now,
		Step:          cfg.Gait.Step,
		SwingTime:     cfg.Gait.SwingTime,
		Horizon:       cfg.OCP.Horizon,
		Knots:         cfg.OCP.Knots,
		Dt:            cfg.Sim.Dt,
		ControlPeriod: cfg.Sim.ControlPeriod,
		Duration:      cfg.Sim.Duration,
		Integrator:    cfg.Sim.Integrator,
		Steps:         result.StepsTaken,
		Ticks:         len(result.Ticks),
		Metrics:       result.Metrics,
	}
	for _, err := range result.Errors {
		meta.Errors = append(meta.Errors, err.Error())
	}

	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(runDir, "config.yaml"), data, 0644); err != nil {
		return "", err
	}
	if err := writeStates(filepath.Join(runDir, "states.csv"), result); err != nil {
		return "", err
	}
	if err := writeSolver(filepath.Join(runDir, "solver.csv"), result); err != nil {
		return "", err
	}
	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCSV(path string, fill func(w *csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := fill(w); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func writeStates(path string, result *sim.Result) error {
	return writeCSV(path, func(w *csv.Writer) error {
		if len(result.States) == 0 {
			return nil
		}
		header := []string{"time"}
		for i := range result.States[0] {
			header = append(header, fmt.Sprintf("x%d", i))
		}
		numControls := 0
		if len(result.Controls) > 0 {
			numControls = len(result.Controls[0])
			for i := 0; i < numControls; i++ {
				header = append(header, fmt.Sprintf("u%d", i))
			}
		}
		if err := w.Write(header); err != nil {
			return err
		}

		for i := range result.States {
			row := []string{format(result.Times[i])}
			for _, val := range result.States[i] {
				row = append(row, format(val))
			}
			// The final state has no control; it repeats the last one.
			j := min(i, len(result.Controls)-1)
			for k := 0; k < numControls; k++ {
				row = append(row, format(result.Controls[j][k]))
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

var solverHeader = []string{
	"time", "iterations", "kkt_error", "cost", "converged", "feasible",
	"barrier", "step_size", "elapsed_ms", "contacts", "failure",
}

func writeSolver(path string, result *sim.Result) error {
	return writeCSV(path, func(w *csv.Writer) error {
		if err := w.Write(solverHeader); err != nil {
			return err
		}
		for _, tick := range result.Ticks {
			d := tick.Diagnostics
			contacts := make([]byte, len(tick.Contacts))
			for i, on := range tick.Contacts {
				contacts[i] = '0'
				if on {
					contacts[i] = '1'
				}
			}
			row := []string{
				format(tick.Time),
				strconv.Itoa(d.Iterations),
				format(d.KKTError),
				format(d.Cost),
				strconv.FormatBool(d.Converged),
				strconv.FormatBool(d.Feasible),
				format(d.Barrier),
				format(d.StepSize),
				format(float64(d.Elapsed) / float64(time.Millisecond)),
				string(contacts),
				d.Failure,
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns the stored runs, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(runID), "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadConfig reads the configuration a run used.
func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	return config.Load(filepath.Join(s.Dir(runID), "config.yaml"))
}

func readCSV(path string) ([]string, [][]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, [][]float64{}, nil
	}
	rows := make([][]float64, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make([]float64, len(record))
		for j, field := range record {
			switch field {
			case "true":
				row[j] = 1
			case "false", "":
				row[j] = 0
			default:
				v, err := strconv.ParseFloat(field, 64)
				if err != nil {
					v = 0
				}
				row[j] = v
			}
		}
		rows = append(rows, row)
	}
	return records[0], rows, nil
}

// LoadStates returns the states and their times. The applied torques
// are dropped.
func (s *Store) LoadStates(runID string) ([][]float64, []float64, error) {
	header, rows, err := readCSV(filepath.Join(s.Dir(runID), "states.csv"))
	if err != nil {
		return nil, nil, err
	}
	nx := 0
	for _, h := range header {
		if len(h) > 1 && h[0] == 'x' {
			nx++
		}
	}
	times := make([]float64, 0, len(rows))
	states := make([][]float64, 0, len(rows))
	for _, row := range rows {
		if len(row) < 1+nx {
			continue
		}
		times = append(times, row[0])
		states = append(states, row[1:1+nx])
	}
	return states, times, nil
}

// SolverColumn returns one column of solver.csv by name.
func (s *Store) SolverColumn(runID, name string) ([]float64, error) {
	header, rows, err := readCSV(filepath.Join(s.Dir(runID), "solver.csv"))
	if err != nil {
		return nil, err
	}
	col := -1
	for i, h := range header {
		if h == name {
			col = i
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("solver.csv has no column %q", name)
	}
	out := make([]float64, 0, len(rows))
	for _, row := range rows {
		if col < len(row) {
			out = append(out, row[col])
		}
	}
	return out, nil
}
