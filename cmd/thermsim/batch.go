package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/thermsim/internal/automation"
	"github.com/san-kum/thermsim/internal/optim"
	"github.com/san-kum/thermsim/internal/storage"
)

var (
	sweepParam string
	sweepMin   float64
	sweepMax   float64
	sweepSteps int
	workers    int

	grid   []string
	metric string

	trials  int
	jitter  float64
	mcRuns  int
	mcSeed  int64
	mcLen   float64
	mcPrint bool
)

func batchCommands() []*cobra.Command {
	sweepCmd := &cobra.Command{
		Use:   "sweep [preset]",
		Short: "run one parameter across a range",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	addRunFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "kp", "parameter to sweep")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 10, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 10, "number of values")
	sweepCmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "parallel runs")

	tuneCmd := &cobra.Command{
		Use:   "tune [preset]",
		Short: "grid-search controller gains",
		Long:  "Each --grid entry is name=lo:hi:n. Every combination is run and the one with the lowest --metric wins.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTune,
	}
	addRunFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&grid, "grid", []string{"kp=1:10:10"}, "parameter range name=lo:hi:n (repeatable)")
	tuneCmd.Flags().StringVar(&metric, "metric", "iae", "metric to minimize")

	mcCmd := &cobra.Command{
		Use:   "montecarlo [preset]",
		Short: "run trials with random openings and ambient jitter",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMonteCarlo,
	}
	addRunFlags(mcCmd)
	mcCmd.Flags().IntVar(&trials, "trials", 50, "number of trials")
	mcCmd.Flags().Int64Var(&mcSeed, "mc-seed", 1, "seed of the first trial")
	mcCmd.Flags().IntVar(&mcRuns, "openings-per-trial", 2, "random openings per trial")
	mcCmd.Flags().Float64Var(&mcLen, "trial-opening-length", 300, "length of each opening, s")
	mcCmd.Flags().Float64Var(&jitter, "jitter", 2, "ambient temperature jitter, ±°C")
	mcCmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "parallel runs")
	mcCmd.Flags().BoolVar(&mcPrint, "trials-table", false, "print every trial")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	return []*cobra.Command{sweepCmd, tuneCmd, mcCmd, scenarioCmd}
}

func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	ctx, cancel := interruptContext()
	defer cancel()

	results, err := automation.RunSweep(ctx, &automation.ParameterSweep{
		Base: cfg, Param: sweepParam, Min: sweepMin, Max: sweepMax,
		Steps: sweepSteps, Workers: workers,
	}, logger.Logger)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tFINAL\tOVERSHOOT\tIAE\tSETTLING\tENERGY_KWH\n", strings.ToUpper(sweepParam))
	for _, r := range results {
		fmt.Fprintf(w, "%.4g\t%.3f\t%.2f%%\t%.1f\t%.0f\t%.3f\n",
			r.Value, r.Final, r.Overshoot, r.Metrics["iae"], r.Metrics["settling_time"], r.Metrics["energy_kwh"])
	}
	return w.Flush()
}

func parseGrid(specs []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(specs))
	ranges := make([][]float64, 0, len(specs))
	for _, s := range specs {
		name, rng, ok := strings.Cut(s, "=")
		if !ok {
			return nil, nil, fmt.Errorf("--grid %q: expected name=lo:hi:n", s)
		}
		parts := strings.Split(rng, ":")
		if len(parts) != 3 {
			return nil, nil, fmt.Errorf("--grid %q: expected name=lo:hi:n", s)
		}
		lo, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("--grid %q: %w", s, err)
		}
		hi, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("--grid %q: %w", s, err)
		}
		n, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, nil, fmt.Errorf("--grid %q: %w", s, err)
		}
		names = append(names, strings.TrimSpace(name))
		ranges = append(ranges, optim.Linspace(lo, hi, n))
	}
	return names, ranges, nil
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	names, ranges, err := parseGrid(grid)
	if err != nil {
		return err
	}
	g, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}

	ctx, cancel := interruptContext()
	defer cancel()

	logger.Info("tune_started", "points", g.Size(), "metric", metric)
	best, val, err := g.Search(ctx, optim.FromConfig(cfg), metric)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(best))
	for k := range best {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Printf("searched %d combinations\n", g.Size())
	fmt.Printf("best %s: %.6g\n", metric, val)
	for _, k := range keys {
		fmt.Printf("  %s = %.6g\n", k, best[k])
	}
	return nil
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	ctx, cancel := interruptContext()
	defer cancel()

	results, err := automation.RunMonteCarlo(ctx, &automation.MonteCarloConfig{
		Base: cfg, Trials: trials, Seed: mcSeed,
		Openings: mcRuns, OpeningLength: mcLen,
		AmbientJitter: jitter, Workers: workers,
	}, logger.Logger)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if mcPrint {
		fmt.Fprintln(w, "TRIAL\tSEED\tAMBIENT\tFINAL\tOVERSHOOT\tIAE")
		for _, r := range results {
			fmt.Fprintf(w, "%d\t%d\t%.2f\t%.3f\t%.2f%%\t%.1f\n",
				r.Trial, r.Seed, r.Ambient, r.Final, r.Overshoot, r.Metrics["iae"])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "VALUE\tMEAN\tSTD\tMIN\tMAX")
	rows := []struct {
		name string
		fn   func(automation.MonteCarloResult) float64
	}{
		{"final", func(r automation.MonteCarloResult) float64 { return r.Final }},
		{"overshoot", func(r automation.MonteCarloResult) float64 { return r.Overshoot }},
		{"iae", func(r automation.MonteCarloResult) float64 { return r.Metrics["iae"] }},
		{"energy_kwh", func(r automation.MonteCarloResult) float64 { return r.Metrics["energy_kwh"] }},
	}
	for _, row := range rows {
		s := automation.MonteCarloStats(results, row.fn)
		fmt.Fprintf(w, "%s\t%.4g\t%.4g\t%.4g\t%.4g\n", row.name, s.Mean, s.Std, s.Min, s.Max)
	}
	return w.Flush()
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := interruptContext()
	defer cancel()

	fmt.Printf("scenario: %s\n", sc.Name)
	if sc.Description != "" {
		fmt.Printf("  %s\n", sc.Description)
	}

	results, err := automation.RunScenario(ctx, sc, logger.Logger)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	for _, r := range results {
		line := fmt.Sprintf("  %-20s final %.3f °C  overshoot %.2f%%", r.Name, r.Result.Final, r.Result.Overshoot)
		if r.SaveAs != "" {
			id, err := st.Save(r.SaveAs, r.Config, r.Result)
			if err != nil {
				return err
			}
			line += "  saved " + id
		}
		fmt.Println(line)
	}
	return nil
}
