package export

import (
	"encoding/json"
	"io"

	"github.com/san-kum/thermsim/internal/sim"
)

// Document is the series view of a run shared by the JSON export and the
// HTTP API.
type Document struct {
	Name         string             `json:"name,omitempty"`
	Steps        int                `json:"steps"`
	Minutes      []float64          `json:"minutes"`
	Temperatures []float64          `json:"temperature"`
	Setpoints    []float64          `json:"setpoint"`
	Powers       []float64          `json:"power"`
	Losses       []float64          `json:"loss"`
	Final        float64            `json:"final"`
	Overshoot    float64            `json:"overshoot"`
	Metrics      map[string]float64 `json:"metrics"`
	Windows      []sim.Window       `json:"windows,omitempty"`
}

func NewDocument(name string, res *sim.Result) Document {
	return Document{
		Name:         name,
		Steps:        len(res.Samples),
		Minutes:      res.Minutes(),
		Temperatures: res.Temperatures(),
		Setpoints:    res.Setpoints(),
		Powers:       res.Powers(),
		Losses:       res.Losses(),
		Final:        res.Final,
		Overshoot:    res.Overshoot,
		Metrics:      res.Metrics,
		Windows:      res.Windows,
	}
}

func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
