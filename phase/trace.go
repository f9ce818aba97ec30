package phase

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

// TraceWriter writes one tab-separated row per observed snapshot:
// time, seq, state, discriminator, silent, centroid, flux, then level,
// mean, sd and gain for every band
type TraceWriter struct {
	w     *csv.Writer
	bands int
	row   []string
}

// NewTraceWriter writes the header row for the given band count
func NewTraceWriter(w io.Writer, bands int) (*TraceWriter, error) {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	header := []string{"time", "seq", "state", "discriminator", "silent", "centroid", "flux"}
	for b := range bands {
		header = append(header,
			fmt.Sprintf("level%d", b),
			fmt.Sprintf("mean%d", b),
			fmt.Sprintf("sd%d", b),
			fmt.Sprintf("gain%d", b),
		)
	}
	if err := cw.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write trace header: %w", err)
	}

	return &TraceWriter{w: cw, bands: bands, row: make([]string, 0, len(header))}, nil
}

// Write appends a row for p observed at t
func (tw *TraceWriter) Write(t time.Time, p *Phase) error {
	if len(p.Bands) != tw.bands || len(p.Gains) != tw.bands {
		return fmt.Errorf("trace expects %d bands, snapshot has %d", tw.bands, len(p.Bands))
	}

	row := tw.row[:0]
	row = append(row,
		t.Format(time.RFC3339Nano),
		strconv.FormatUint(p.Seq, 10),
		p.State.String(),
		formatFloat(p.Discriminator),
		strconv.FormatBool(p.Silent),
		formatFloat(p.Centroid),
		formatFloat(p.Flux),
	)
	for b, bs := range p.Bands {
		row = append(row,
			formatFloat(bs.Level),
			formatFloat(bs.Mean),
			formatFloat(math.Sqrt(bs.Variance)),
			formatFloat(p.Gains[b]),
		)
	}
	tw.row = row
	return tw.w.Write(row)
}

// Flush writes buffered rows to the underlying writer
func (tw *TraceWriter) Flush() error {
	tw.w.Flush()
	return tw.w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
