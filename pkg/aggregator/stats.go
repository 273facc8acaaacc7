package aggregator

import (
	"math"

	"github.com/opscart/capacity-compliance/pkg/models"
)

// calculateAverage computes the mean of values
func calculateAverage(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

// summarize computes mean, peak and min of values
func summarize(values []float64) models.UsageStats {
	if len(values) == 0 {
		return models.UsageStats{}
	}

	peak := math.Inf(-1)
	low := math.Inf(1)
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if v < low {
			low = v
		}
	}

	return models.UsageStats{
		Mean: calculateAverage(values),
		Peak: peak,
		Min:  low,
	}
}
