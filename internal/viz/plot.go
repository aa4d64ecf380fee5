package viz

import (
	"fmt"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/thermsim/internal/sim"
)

// Plot draws temperature and setpoint over the run as an ASCII chart.
func Plot(res *sim.Result, width, height int) string {
	if res == nil || len(res.Samples) == 0 {
		return ""
	}
	temps := res.Temperatures()
	if len(temps) == 1 {
		temps = append(temps, temps[0])
	}
	setpoints := res.Setpoints()
	if len(setpoints) == 1 {
		setpoints = append(setpoints, setpoints[0])
	}

	last := res.Samples[len(res.Samples)-1].Minutes()
	return asciigraph.PlotMany(
		[][]float64{temps, setpoints},
		asciigraph.Width(width),
		asciigraph.Height(height),
		asciigraph.Precision(1),
		asciigraph.SeriesColors(asciigraph.Red, asciigraph.Green),
		asciigraph.Caption(fmt.Sprintf("temperature (red) vs setpoint (green), °C over %.0f min", last)),
	)
}

// PowerPlot draws the actuator output over the run.
func PowerPlot(res *sim.Result, width, height int) string {
	if res == nil || len(res.Samples) < 2 {
		return ""
	}
	return asciigraph.Plot(res.Powers(),
		asciigraph.Width(width),
		asciigraph.Height(height),
		asciigraph.Precision(0),
		asciigraph.Caption("actuator power, W"),
	)
}
