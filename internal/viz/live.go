package viz

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/thermsim/internal/config"
	"github.com/san-kum/thermsim/internal/control"
	"github.com/san-kum/thermsim/internal/experiment"
	"github.com/san-kum/thermsim/internal/sim"
)

const (
	chartWidth  = 70
	chartHeight = 14
)

// Param is one adjustable setting, addressed by its config name.
type Param struct {
	Name  string
	Label string
	Min   float64
	Max   float64
	Step  float64
}

func (p Param) clamp(v float64) float64 {
	v = math.Round(v/p.Step) * p.Step
	return math.Max(p.Min, math.Min(p.Max, v))
}

// Params lists the settings the dashboard exposes for cfg. The gain rows
// follow the controller's mode and form.
func Params(cfg *config.Config) []Param {
	var out []Param
	switch {
	case cfg.Controller.Mode == control.ModeIncremental:
		out = append(out,
			Param{Name: "kp", Label: "kp", Min: 0.0001, Max: 1, Step: 0.0001},
			Param{Name: "ti", Label: "Ti", Min: 0.1, Max: 100, Step: 0.1},
		)
	case cfg.Controller.Form == control.FormParallel:
		out = append(out,
			Param{Name: "kp", Label: "Kp", Min: 0, Max: 100, Step: 0.1},
			Param{Name: "ki", Label: "Ki", Min: 0, Max: 10, Step: 0.1},
			Param{Name: "kd", Label: "Kd", Min: 0, Max: 50, Step: 0.1},
		)
	default:
		out = append(out,
			Param{Name: "kp", Label: "Kp", Min: 0, Max: 1000, Step: 0.5},
			Param{Name: "ti", Label: "Ti", Min: 0, Max: 600, Step: 1},
			Param{Name: "td", Label: "Td", Min: 0, Max: 50, Step: 0.5},
		)
	}
	out = append(out,
		Param{Name: "dt", Label: "Tp", Min: 0.1, Max: 5, Step: 0.1},
		Param{Name: "setpoint", Label: "setpoint", Min: -10, Max: 40, Step: 0.5},
		Param{Name: "ambient", Label: "outside", Min: -20, Max: 45, Step: 0.5},
	)

	heater := Param{Name: "max_power", Label: "heater", Min: 100, Max: 500, Step: 10}
	if p, err := cfg.Get("max_power"); err == nil && p > heater.Max {
		heater = Param{Name: "max_power", Label: "heater", Min: 0, Max: 2 * p, Step: 50}
	}
	return append(out, heater)
}

type resultMsg struct {
	ticket uint64
	res    *sim.Result
	err    error
}

// Dashboard reruns the whole experiment whenever a setting changes and shows
// the newest result. Runs that finish after a newer one has started are
// dropped.
type Dashboard struct {
	name     string
	preset   *config.Config
	cfg      *config.Config
	params   []Param
	selected int
	latest   *sim.Latest
	result   *sim.Result
	err      error
	width    int
	log      *slog.Logger
}

func NewDashboard(name string, cfg *config.Config, log *slog.Logger) Dashboard {
	return Dashboard{
		name:   name,
		preset: cfg.Clone(),
		cfg:    cfg.Clone(),
		params: Params(cfg),
		latest: &sim.Latest{},
		width:  chartWidth,
		log:    log,
	}
}

// Run starts the dashboard and blocks until the user quits.
func Run(name string, cfg *config.Config, log *slog.Logger) error {
	_, err := tea.NewProgram(NewDashboard(name, cfg, log), tea.WithAltScreen()).Run()
	return err
}

func (d Dashboard) Init() tea.Cmd {
	return d.recompute()
}

// recompute snapshots the current settings and runs them off the UI loop.
func (d *Dashboard) recompute() tea.Cmd {
	p, err := d.cfg.Params()
	if err != nil {
		d.err = err
		return nil
	}
	ticket := d.latest.Begin()
	return func() tea.Msg {
		res, err := experiment.New(p).Run(context.Background())
		return resultMsg{ticket: ticket, res: res, err: err}
	}
}

func (d Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width = max(20, min(msg.Width-40, 120))
	case resultMsg:
		if !d.latest.Finish(msg.ticket, msg.res, msg.err) {
			d.log.Debug("stale_result_dropped", "ticket", msg.ticket)
			return d, nil
		}
		if msg.err != nil {
			d.err = msg.err
			d.log.Warn("run_failed", "error", msg.err)
			return d, nil
		}
		d.result, d.err = msg.res, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return d, tea.Quit
		case "up", "k":
			d.selected = (d.selected - 1 + len(d.params)) % len(d.params)
		case "down", "j":
			d.selected = (d.selected + 1) % len(d.params)
		case "right", "l":
			return d, d.adjust(1)
		case "left", "h":
			return d, d.adjust(-1)
		case "o":
			d.cfg.Run.Open = !d.cfg.Run.Open
			return d, d.recompute()
		case "r":
			d.cfg = d.preset.Clone()
			d.params = Params(d.cfg)
			d.selected = min(d.selected, len(d.params)-1)
			return d, d.recompute()
		}
	}
	return d, nil
}

func (d *Dashboard) adjust(dir float64) tea.Cmd {
	p := d.params[d.selected]
	cur, err := d.cfg.Get(p.Name)
	if err != nil {
		d.err = err
		return nil
	}
	next := p.clamp(cur + dir*p.Step)
	if next == cur {
		return nil
	}
	if err := d.cfg.Set(p.Name, next); err != nil {
		d.err = err
		return nil
	}
	return d.recompute()
}

func (d Dashboard) View() string {
	var s strings.Builder

	status := statusIdle.Render("ready")
	if d.latest.Pending() {
		status = statusBusy.Render("computing")
	}
	if d.cfg.Run.Open {
		status += " " + statusOpen.Render("aperture open")
	}
	s.WriteString(titleStyle.Render(strings.ToUpper(d.name)) + "  " + status + "\n\n")

	if chart := Plot(d.result, d.width, chartHeight); chart != "" {
		s.WriteString(chart + "\n")
	}
	if d.err != nil {
		s.WriteString(errorStyle.Render("error: "+d.err.Error()) + "\n")
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		s.String(),
		panelStyle.Render(d.settingsView()+"\n"+d.statsView()),
	) + "\n" + keyHint.Render("↑↓ select  ←→ adjust  o aperture  r reset  q quit")
}

func (d Dashboard) settingsView() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("SETTINGS") + "\n")
	for i, p := range d.params {
		v, _ := d.cfg.Get(p.Name)
		line := fmt.Sprintf("%-10s %10.4g", p.Label, v)
		if i == d.selected {
			s.WriteString(selectedStyle.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + line + "\n")
		}
	}
	return s.String()
}

func (d Dashboard) statsView() string {
	if d.result == nil {
		return labelStyle.Render("no result yet")
	}
	var s strings.Builder
	s.WriteString(titleStyle.Render("RESULT") + "\n")
	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("final", fmt.Sprintf("%.2f °C", d.result.Final))
	row("overshoot", fmt.Sprintf("%.2f %%", d.result.Overshoot))

	names := make([]string, 0, len(d.result.Metrics))
	for k := range d.result.Metrics {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		row(k, fmt.Sprintf("%.4g", d.result.Metrics[k]))
	}
	return s.String()
}
