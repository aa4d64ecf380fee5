package export

import (
	"bufio"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/san-kum/thermsim/internal/sim"
)

var (
	temperatureColor = color.RGBA{R: 0xd9, G: 0x48, B: 0x1c, A: 0xff}
	setpointColor    = color.RGBA{R: 0x33, G: 0x66, B: 0xcc, A: 0xff}
	windowColor      = color.RGBA{R: 0x99, G: 0x99, B: 0x99, A: 0x40}
)

type ChartOptions struct {
	Title  string
	Width  vg.Length
	Height vg.Length
	DPI    int
}

func (o ChartOptions) withDefaults() ChartOptions {
	if o.Width == 0 {
		o.Width = 8 * vg.Inch
	}
	if o.Height == 0 {
		o.Height = 5 * vg.Inch
	}
	if o.DPI == 0 {
		o.DPI = 150
	}
	if o.Title == "" {
		o.Title = "Temperature"
	}
	return o
}

// Chart plots temperature and setpoint against minutes, shading disturbance
// windows.
func Chart(res *sim.Result, title string) (*plot.Plot, error) {
	if len(res.Samples) == 0 {
		return nil, fmt.Errorf("%w: no samples to plot", ErrMalformed)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (min)"
	p.Y.Label.Text = "temperature (°C)"
	p.Add(plotter.NewGrid())

	temps := make(plotter.XYs, len(res.Samples))
	sps := make(plotter.XYs, len(res.Samples))
	for i, s := range res.Samples {
		temps[i].X, temps[i].Y = s.Minutes(), s.Temperature
		sps[i].X, sps[i].Y = s.Minutes(), s.Setpoint
	}

	lo, hi := bounds(temps, sps)
	for _, w := range res.Windows {
		shade, err := windowShade(w, lo, hi)
		if err != nil {
			return nil, err
		}
		p.Add(shade)
	}

	tempLine, err := plotter.NewLine(temps)
	if err != nil {
		return nil, err
	}
	tempLine.LineStyle.Width = vg.Points(1.5)
	tempLine.LineStyle.Color = temperatureColor

	spLine, err := plotter.NewLine(sps)
	if err != nil {
		return nil, err
	}
	spLine.LineStyle.Color = setpointColor
	spLine.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}

	p.Add(tempLine, spLine)
	p.Legend.Add("temperature", tempLine)
	p.Legend.Add("setpoint", spLine)
	p.Legend.Top = true
	return p, nil
}

func bounds(series ...plotter.XYs) (lo, hi float64) {
	lo, hi = series[0][0].Y, series[0][0].Y
	for _, xys := range series {
		for _, pt := range xys {
			lo = min(lo, pt.Y)
			hi = max(hi, pt.Y)
		}
	}
	return lo, hi
}

func windowShade(w sim.Window, lo, hi float64) (*plotter.Polygon, error) {
	x0, x1 := w.Start/60, w.End/60
	poly, err := plotter.NewPolygon(plotter.XYs{{X: x0, Y: lo}, {X: x1, Y: lo}, {X: x1, Y: hi}, {X: x0, Y: hi}})
	if err != nil {
		return nil, err
	}
	poly.Color = windowColor
	poly.LineStyle.Width = 0
	return poly, nil
}

// WriteChart renders the chart as PNG or SVG, chosen by format.
func WriteChart(w io.Writer, res *sim.Result, format string, opts ChartOptions) error {
	opts = opts.withDefaults()
	p, err := Chart(res, opts.Title)
	if err != nil {
		return err
	}

	switch strings.ToLower(format) {
	case "png":
		c := vgimg.NewWith(vgimg.UseWH(opts.Width, opts.Height), vgimg.UseDPI(opts.DPI))
		p.Draw(draw.New(c))
		_, err = vgimg.PngCanvas{Canvas: c}.WriteTo(w)
		return err
	case "svg":
		wt, err := p.WriterTo(opts.Width, opts.Height, "svg")
		if err != nil {
			return err
		}
		_, err = wt.WriteTo(w)
		return err
	default:
		return fmt.Errorf("export: unsupported chart format %q", format)
	}
}

// SaveChart writes the chart to path, picking the format from its extension.
func SaveChart(path string, res *sim.Result, opts ChartOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create chart: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	format := strings.TrimPrefix(filepath.Ext(path), ".")
	if err := WriteChart(bw, res, format, opts); err != nil {
		return err
	}
	return bw.Flush()
}
