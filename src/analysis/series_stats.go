package analysis

import (
	"math"

	"task-observer/src/models"
)

// -----------------------------------------------------------------------------
// Summary statistics over a chart series, for display next to the
// sparkline. Pure functions, no state.
// -----------------------------------------------------------------------------

type SeriesStats struct {
	Count int
	Last  float64
	Min   float64
	Max   float64
	Mean  float64
	Std   float64
}

// -----------------------------------------------------------------------------

// Summarize computes stats over the price dimension of a series.
func Summarize(series []models.MChartPoint) SeriesStats {
	if len(series) == 0 {
		return SeriesStats{}
	}

	prices := make([]float64, len(series))
	for i, p := range series {
		prices[i] = p.Price
	}

	min, max := prices[0], prices[0]
	for _, v := range prices {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	mean, std := CalculateMeanStd(prices)

	return SeriesStats{
		Count: len(series),
		Last:  prices[len(prices)-1],
		Min:   min,
		Max:   max,
		Mean:  mean,
		Std:   std,
	}
}

// -----------------------------------------------------------------------------

// CalculateMeanStd computes mean and standard deviation.
func CalculateMeanStd(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range data {
		sum += v
	}
	mean := sum / float64(len(data))

	// For single element, return std = 0
	if len(data) == 1 {
		return mean, 0
	}

	// Standard deviation with N denominator (population std)
	varianceSum := 0.0
	for _, v := range data {
		varianceSum += (v - mean) * (v - mean)
	}
	std := math.Sqrt(varianceSum / float64(len(data)))
	return mean, std
}
