package loadgen

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Stats summarizes a set of values.
type Stats struct {
	Count int
	Min   float64
	Max   float64
	Avg   float64
	Med   float64
	P90   float64
	P95   float64
}

// Summarize computes Stats over values. Percentiles interpolate linearly
// between ranks.
func Summarize(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	return Stats{
		Count: len(sorted),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Avg:   stat.Mean(sorted, nil),
		Med:   Percentile(sorted, 50),
		P90:   Percentile(sorted, 90),
		P95:   Percentile(sorted, 95),
	}
}

// Percentile returns the p-th percentile (0-100) of sorted values.
func Percentile(sorted []float64, p float64) float64 {
	switch len(sorted) {
	case 0:
		return math.NaN()
	case 1:
		return sorted[0]
	}
	return stat.Quantile(p/100, stat.LinInterp, sorted, nil)
}
