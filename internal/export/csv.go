// Package export writes a finished run as CSV, JSON or a chart image.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/san-kum/thermsim/internal/sim"
)

var ErrMalformed = errors.New("export: malformed data")

var csvHeader = []string{"time_s", "minutes", "temperature_c", "setpoint_c", "power_w", "loss_w", "open"}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteCSV writes one row per sample. Values round-trip exactly.
func WriteCSV(w io.Writer, res *sim.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, s := range res.Samples {
		row := []string{
			formatFloat(s.Time),
			strconv.FormatFloat(s.Minutes(), 'f', 4, 64),
			formatFloat(s.Temperature),
			formatFloat(s.Setpoint),
			formatFloat(s.Power),
			formatFloat(s.Loss),
			strconv.FormatBool(s.Open),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses the output of WriteCSV back into samples.
func ReadCSV(r io.Reader) ([]sim.Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: missing header", ErrMalformed)
	}

	out := make([]sim.Sample, 0, len(records)-1)
	for i, rec := range records[1:] {
		s, err := parseSample(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformed, i+2, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func parseSample(rec []string) (sim.Sample, error) {
	var s sim.Sample
	fields := []struct {
		dst *float64
		src string
	}{
		{&s.Time, rec[0]},
		{&s.Temperature, rec[2]},
		{&s.Setpoint, rec[3]},
		{&s.Power, rec[4]},
		{&s.Loss, rec[5]},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.src, 64)
		if err != nil {
			return s, err
		}
		*f.dst = v
	}
	open, err := strconv.ParseBool(rec[6])
	if err != nil {
		return s, err
	}
	s.Open = open
	return s, nil
}
