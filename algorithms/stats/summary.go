package stats

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// QuartileInfo contains quartile-specific information
type QuartileInfo struct {
	Q1  float64 `json:"q1"`  // First quartile (25th percentile)
	Q2  float64 `json:"q2"`  // Second quartile (50th percentile, median)
	Q3  float64 `json:"q3"`  // Third quartile (75th percentile)
	IQR float64 `json:"iqr"` // Interquartile range (Q3 - Q1)
}

// SummaryStats contains basic summary statistics of a finished series,
// such as the discriminator history of a run
type SummaryStats struct {
	Count     int          `json:"count"`
	Mean      float64      `json:"mean"`
	Variance  float64      `json:"variance"` // population variance
	StdDev    float64      `json:"std_dev"`
	Min       float64      `json:"min"`
	Max       float64      `json:"max"`
	Quartiles QuartileInfo `json:"quartiles"`
}

// Summarize computes summary statistics of data. Non-finite values are
// ignored. data is not modified.
func Summarize(data []float64) (*SummaryStats, error) {
	values := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no finite values to summarize (got %d)", len(data))
	}

	slices.Sort(values)
	mean, variance := stat.PopMeanVariance(values, nil)

	q1 := stat.Quantile(0.25, stat.LinInterp, values, nil)
	q2 := stat.Quantile(0.5, stat.LinInterp, values, nil)
	q3 := stat.Quantile(0.75, stat.LinInterp, values, nil)

	return &SummaryStats{
		Count:    len(values),
		Mean:     mean,
		Variance: variance,
		StdDev:   math.Sqrt(variance),
		Min:      floats.Min(values),
		Max:      floats.Max(values),
		Quartiles: QuartileInfo{
			Q1:  q1,
			Q2:  q2,
			Q3:  q3,
			IQR: q3 - q1,
		},
	}, nil
}
