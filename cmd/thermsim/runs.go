package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/thermsim/internal/config"
	"github.com/san-kum/thermsim/internal/export"
	"github.com/san-kum/thermsim/internal/sim"
	"github.com/san-kum/thermsim/internal/storage"
	"github.com/san-kum/thermsim/internal/viz"
)

func runCommands() []*cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a saved run (latest by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run samples to CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return exportRun(args, func(w io.Writer, id string, res *sim.Result) error {
				return export.WriteCSV(w, res)
			})
		},
	}
	exportCSVCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (stdout if empty)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run series to JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return exportRun(args, func(w io.Writer, id string, res *sim.Result) error {
				return export.WriteJSON(w, export.NewDocument(id, res))
			})
		},
	}
	exportJSONCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (stdout if empty)")

	chartCmd := &cobra.Command{
		Use:   "chart [run_id]",
		Short: "render a saved run as PNG or SVG",
		Args:  cobra.MaximumNArgs(1),
		RunE:  chartRun,
	}
	chartCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file, .png or .svg")
	_ = chartCmd.MarkFlagRequired("out")

	return []*cobra.Command{listCmd, plotCmd, exportCSVCmd, exportJSONCmd, chartCmd}
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tMODEL\tMODE\tDESCRIPTION")
	for _, name := range config.ListPresets() {
		p := config.Presets[name]
		m := p.Controller.Mode
		if m == "" {
			m = "pid"
		}
		model := p.Plant.Model
		if p.Plant.Custom != nil {
			model = "custom"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, model, m, p.Description)
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tMODE\tSETPOINT\tFINAL\tOVERSHOOT\tTIMESTAMP")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%.2f\t%.2f%%\t%s\n",
			r.ID, r.Model, r.Mode, r.Setpoint, r.Final, r.Overshoot,
			r.Timestamp.Local().Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

// loadRun returns the named run, or the newest one when no id is given.
func loadRun(args []string) (string, *sim.Result, error) {
	st := storage.New(dataDir)
	var id string
	if len(args) > 0 {
		id = args[0]
	} else {
		latest, err := st.Latest()
		if err != nil {
			return "", nil, err
		}
		id = latest
	}
	res, err := st.LoadResult(id)
	if err != nil {
		return "", nil, err
	}
	return id, res, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	id, res, err := loadRun(args)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n\n", id)
	fmt.Println(viz.Plot(res, 70, 15))
	fmt.Println()
	fmt.Println(viz.PowerPlot(res, 70, 8))
	return nil
}

func exportRun(args []string, write func(io.Writer, string, *sim.Result) error) error {
	id, res, err := loadRun(args)
	if err != nil {
		return err
	}
	if outPath == "" {
		return write(os.Stdout, id, res)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := write(f, id, res); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "exported %s to %s\n", id, outPath)
	return nil
}

func chartRun(cmd *cobra.Command, args []string) error {
	id, res, err := loadRun(args)
	if err != nil {
		return err
	}
	if err := export.SaveChart(outPath, res, export.ChartOptions{Title: id}); err != nil {
		return err
	}
	abs, _ := filepath.Abs(outPath)
	fmt.Printf("chart written to %s\n", abs)
	return nil
}
