package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/legmpc/internal/sim"
)

type ExportData struct {
	Name       string             `json:"name"`
	Controller string             `json:"controller"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	Steps      int                `json:"steps"`
	Times      []float64          `json:"times"`
	States     [][]float64        `json:"states"`
	Controls   [][]float64        `json:"controls"`
	Ticks      []ExportTick       `json:"ticks"`
	Metrics    map[string]float64 `json:"metrics"`
}

type ExportTick struct {
	Time       float64   `json:"time"`
	Iterations int       `json:"iterations"`
	KKTError   float64   `json:"kkt_error"`
	Converged  bool      `json:"converged"`
	Contacts   []bool    `json:"contacts"`
	Torque     []float64 `json:"torque"`
}

// ExportJSON writes result as one JSON document.
func ExportJSON(w io.Writer, name, controller string, dt, duration float64, result *sim.Result) error {
	data := ExportData{
		Name:       name,
		Controller: controller,
		Dt:         dt,
		Duration:   duration,
		Steps:      result.StepsTaken,
		Times:      result.Times,
		States:     make([][]float64, len(result.States)),
		Controls:   make([][]float64, len(result.Controls)),
		Ticks:      make([]ExportTick, len(result.Ticks)),
		Metrics:    result.Metrics,
	}
	for i, s := range result.States {
		data.States[i] = s
	}
	for i, c := range result.Controls {
		data.Controls[i] = c
	}
	for i, tick := range result.Ticks {
		data.Ticks[i] = ExportTick{
			Time:       tick.Time,
			Iterations: tick.Diagnostics.Iterations,
			KKTError:   tick.Diagnostics.KKTError,
			Converged:  tick.Diagnostics.Converged,
			Contacts:   tick.Contacts,
			Torque:     tick.Command.U,
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
