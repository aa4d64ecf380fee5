package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/thermsim/internal/config"
	"github.com/san-kum/thermsim/internal/control"
	"github.com/san-kum/thermsim/internal/experiment"
	"github.com/san-kum/thermsim/internal/logging"
	"github.com/san-kum/thermsim/internal/sim"
	"github.com/san-kum/thermsim/internal/storage"
	"github.com/san-kum/thermsim/internal/viz"
)

var (
	dataDir  string
	logLevel string
	logFile  string
	logger   *logging.Logger

	configFile string
	mode       string
	form       string
	kp         float64
	ti         float64
	td         float64
	ki         float64
	kd         float64
	dt         float64
	duration   float64
	setpoint   float64
	initial    float64
	ambient    float64
	maxPower   float64
	heatGain   float64
	openFactor float64
	windows    []string
	schedule   []string
	open       bool
	antiWindup bool
	openings   int
	openingLen float64
	seed       int64

	save     bool
	showPlot bool
	outPath  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "thermsim",
		Short:         "PID temperature control simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			logger, err = logging.New(os.Stderr, logLevel, logFile)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".thermsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also append logs to this file")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a simulation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)
	runCmd.Flags().BoolVar(&save, "save", true, "store the run under the data directory")
	runCmd.Flags().BoolVar(&showPlot, "plot", false, "draw the run after it finishes")

	liveCmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "tune a preset interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, args)
			if err != nil {
				return err
			}
			return viz.Run(configName(cfg, args), cfg, logger.Logger)
		},
	}
	addRunFlags(liveCmd)

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list plant models and metrics",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			reg := experiment.NewRegistry()
			fmt.Printf("models:  %s\n", strings.Join(reg.ListModels(), ", "))
			fmt.Printf("metrics: %s\n", strings.Join(reg.ListMetrics(), ", "))
		},
	}

	rootCmd.AddCommand(runCmd, liveCmd, presetsCmd, modelsCmd)
	rootCmd.AddCommand(runCommands()...)
	rootCmd.AddCommand(batchCommands()...)
	rootCmd.AddCommand(serveCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&mode, "mode", "", "controller mode: pid, pi-incremental, pid-legacy")
	f.StringVar(&form, "form", "", "gain form: time or parallel")
	f.Float64Var(&kp, "kp", 0, "proportional gain")
	f.Float64Var(&ti, "ti", 0, "integral time, s")
	f.Float64Var(&td, "td", 0, "derivative time, s")
	f.Float64Var(&ki, "ki", 0, "integral gain (parallel form)")
	f.Float64Var(&kd, "kd", 0, "derivative gain (parallel form)")
	f.Float64Var(&dt, "dt", config.DefaultDt, "timestep, s")
	f.Float64Var(&duration, "time", config.DefaultDuration, "duration, s")
	f.Float64Var(&setpoint, "setpoint", config.DefaultSetpoint, "target temperature, °C")
	f.Float64Var(&initial, "initial", config.DefaultInitial, "initial temperature, °C")
	f.Float64Var(&ambient, "ambient", config.DefaultAmbient, "outside temperature, °C")
	f.Float64Var(&maxPower, "max-power", 0, "actuator rating, W")
	f.Float64Var(&heatGain, "heat-gain", 0, "constant internal heat gain, W")
	f.Float64Var(&openFactor, "open-factor", 0, "aperture coefficient multiplier while open")
	f.StringSliceVar(&windows, "window", nil, "aperture open interval start:end in seconds (repeatable)")
	f.StringSliceVar(&schedule, "schedule", nil, "setpoint change at:setpoint (repeatable)")
	f.BoolVar(&open, "open", false, "keep the aperture open for the whole run")
	f.BoolVar(&antiWindup, "anti-windup", false, "clamp the integral term")
	f.IntVar(&openings, "random-openings", 0, "number of randomly placed openings")
	f.Float64Var(&openingLen, "opening-length", 300, "length of each random opening, s")
	f.Int64Var(&seed, "seed", 1, "random seed for openings")
}

// resolveConfig builds the run configuration: the --config file, else the
// named preset, else the default, with explicitly set flags on top.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case configFile != "":
		cfg, err = config.Load(configFile)
	case len(args) > 0:
		cfg, err = config.GetPreset(args[0])
	default:
		cfg = config.DefaultConfig()
	}
	if err != nil {
		return nil, err
	}

	numeric := []struct {
		flag, param string
		v           float64
	}{
		{"kp", "kp", kp}, {"ti", "ti", ti}, {"td", "td", td},
		{"ki", "ki", ki}, {"kd", "kd", kd},
		{"dt", "dt", dt}, {"time", "duration", duration},
		{"setpoint", "setpoint", setpoint}, {"initial", "initial", initial},
		{"ambient", "ambient", ambient}, {"max-power", "max_power", maxPower},
		{"heat-gain", "heat_gain", heatGain}, {"open-factor", "open_factor", openFactor},
	}
	for _, n := range numeric {
		if cmd.Flags().Changed(n.flag) {
			if err := cfg.Set(n.param, n.v); err != nil {
				return nil, err
			}
		}
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Controller.Mode = control.Mode(mode)
	}
	if flags.Changed("form") {
		cfg.Controller.Form = control.Form(form)
	}
	if flags.Changed("open") {
		cfg.Run.Open = open
	}
	if flags.Changed("anti-windup") {
		cfg.Controller.AntiWindup = antiWindup
	}
	if flags.Changed("window") {
		cfg.Run.Windows = cfg.Run.Windows[:0]
		for _, w := range windows {
			a, b, err := parsePair(w)
			if err != nil {
				return nil, fmt.Errorf("--window %q: %w", w, err)
			}
			cfg.Run.Windows = append(cfg.Run.Windows, sim.Window{Start: a, End: b})
		}
	}
	if flags.Changed("schedule") {
		cfg.Run.Schedule = cfg.Run.Schedule[:0]
		for _, s := range schedule {
			a, b, err := parsePair(s)
			if err != nil {
				return nil, fmt.Errorf("--schedule %q: %w", s, err)
			}
			cfg.Run.Schedule = append(cfg.Run.Schedule, sim.SetpointStep{At: a, Setpoint: b})
		}
	}
	if flags.Changed("random-openings") {
		cfg.Run.RandomOpenings = &sim.RandomOpenings{Count: openings, Length: openingLen, Seed: seed}
	}
	return cfg, nil
}

func parsePair(s string) (float64, float64, error) {
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("expected a:b")
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func configName(cfg *config.Config, args []string) string {
	switch {
	case cfg.Preset != "":
		return cfg.Preset
	case len(args) > 0:
		return args[0]
	default:
		return "run"
	}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	name := configName(cfg, args)

	params, err := cfg.Params()
	if err != nil {
		return err
	}

	logger.Info("run_started", "name", name, "dt", params.Dt, "duration", params.Duration)
	start := time.Now()
	result, err := experiment.New(params).Run(context.Background())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	logger.Info("run_finished", "name", name, "elapsed", elapsed, "final", result.Final)
	logger.Debug("controller_state", "name", name,
		"error", result.Controller.Error, "integral", result.Controller.Integral, "output", result.Controller.LastOutput)

	fmt.Printf("%s: %d steps in %v\n", name, len(result.Samples), elapsed.Round(time.Millisecond))
	fmt.Printf("final temperature: %.3f °C\n", result.Final)
	fmt.Printf("overshoot: %.3f %%\n", result.Overshoot)
	if len(result.Windows) > 0 {
		fmt.Printf("openings: %d\n", len(result.Windows))
	}
	printMetrics(result.Metrics)

	if save {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(name, cfg, result)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}
	if showPlot {
		fmt.Println()
		fmt.Println(viz.Plot(result, 70, 15))
	}
	return nil
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	fmt.Println("\nmetrics:")
	for _, k := range names {
		fmt.Printf("  %-20s %.6g\n", k, m[k])
	}
}
