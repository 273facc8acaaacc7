// Package forecast projects disk exhaustion dates from historical usage.
package forecast

import (
	"context"
	"math"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opscart/capacity-compliance/pkg/models"
)

// Options tune a forecast run
type Options struct {
	// RiskHorizonDays marks a host high risk when it fills within this many days
	RiskHorizonDays int

	// NegligibleGrowth is the daily growth rate at or below which no date is projected
	NegligibleGrowth float64

	// MinSamples is the minimum number of usable points, never less than 2
	MinSamples int

	// Workers bounds ForecastAll parallelism, 0 means GOMAXPROCS
	Workers int
}

// DefaultOptions returns the options used when the caller supplies none
func DefaultOptions() Options {
	return Options{
		RiskHorizonDays:  30,
		NegligibleGrowth: 1e-9,
		MinSamples:       2,
	}
}

func (o Options) minSamples() int {
	if o.MinSamples < 2 {
		return 2
	}
	return o.MinSamples
}

// maxForecastDays bounds projections; slower growth is reported as no forecast
const maxForecastDays = 1_000_000

// Forecast fits used disk against elapsed days and projects when the latest
// total fills up. Samples after asOf are ignored. The line is extended from the
// latest sample, so a host that stopped reporting keeps converging on the same
// date as asOf advances. With fewer usable samples than MinSamples, or
// non-positive growth, the result carries no date.
func Forecast(hostID string, history []models.DiskSamplePoint, asOf time.Time, opts Options) models.DiskForecast {
	points := usable(history, asOf)

	fc := models.DiskForecast{
		HostID:      hostID,
		SampleCount: len(points),
	}
	if len(points) == 0 {
		return fc
	}

	latest := points[len(points)-1]
	if asOf.IsZero() {
		asOf = latest.Timestamp
	}
	fc.CurrentUsedDisk = latest.UsedDisk
	fc.CurrentTotalDisk = latest.TotalDisk
	if latest.TotalDisk > 0 {
		fc.CurrentUsagePercent = latest.UsedDisk / latest.TotalDisk * 100
	}

	if len(points) >= opts.minSamples() {
		fc.DailyGrowthRate, fc.Confidence = growth(points)
	}

	if latest.TotalDisk > 0 && latest.UsedDisk >= latest.TotalDisk {
		setDate(&fc, asOf, 0, opts)
		return fc
	}

	slope := fc.DailyGrowthRate
	if len(points) < opts.minSamples() || slope <= opts.NegligibleGrowth || latest.TotalDisk <= 0 {
		return fc
	}

	left := (latest.TotalDisk-latest.UsedDisk)/slope - daysBetween(latest.Timestamp, asOf)
	if left > maxForecastDays {
		return fc
	}
	days := 0
	if left > 0 {
		days = int(math.Ceil(left))
	}
	setDate(&fc, asOf, days, opts)
	return fc
}

// growth fits used disk against days since the first sample by least squares
// and returns the daily rate with the fit's R². All samples at one instant
// yield a zero rate; a flat series fits perfectly.
func growth(points []models.DiskSamplePoint) (rate, r2 float64) {
	start := points[0].Timestamp
	n := float64(len(points))

	var sumDays, sumUsed float64
	for _, p := range points {
		sumDays += daysBetween(start, p.Timestamp)
		sumUsed += p.UsedDisk
	}
	meanDays, meanUsed := sumDays/n, sumUsed/n

	var covariance, spread float64
	for _, p := range points {
		dx := daysBetween(start, p.Timestamp) - meanDays
		covariance += dx * (p.UsedDisk - meanUsed)
		spread += dx * dx
	}
	if spread == 0 {
		return 0, 0
	}
	rate = covariance / spread

	var residual, variance float64
	for _, p := range points {
		fitted := meanUsed + rate*(daysBetween(start, p.Timestamp)-meanDays)
		residual += (p.UsedDisk - fitted) * (p.UsedDisk - fitted)
		variance += (p.UsedDisk - meanUsed) * (p.UsedDisk - meanUsed)
	}
	if variance == 0 {
		return rate, 1
	}
	return rate, math.Max(0, math.Min(1, 1-residual/variance))
}

func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}

func setDate(fc *models.DiskForecast, asOf time.Time, days int, opts Options) {
	date := asOf.AddDate(0, 0, days)
	fc.PredictedFullDate = &date
	fc.DaysUntilFull = &days
	fc.IsHighRisk = days <= opts.RiskHorizonDays
}

// usable returns samples at or before asOf, sorted by timestamp
func usable(history []models.DiskSamplePoint, asOf time.Time) []models.DiskSamplePoint {
	points := make([]models.DiskSamplePoint, 0, len(history))
	for _, p := range history {
		if !asOf.IsZero() && p.Timestamp.After(asOf) {
			continue
		}
		if math.IsNaN(p.UsedDisk) || math.IsNaN(p.TotalDisk) || p.UsedDisk < 0 || p.TotalDisk < 0 {
			continue
		}
		points = append(points, p)
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points
}

// ForecastAll forecasts every host in parallel. Results are sorted by host id.
func ForecastAll(ctx context.Context, histories map[string][]models.DiskSamplePoint, asOf time.Time, opts Options) ([]models.DiskForecast, error) {
	ids := make([]string, 0, len(histories))
	for id := range histories {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([]models.DiskForecast, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = Forecast(id, histories[id], asOf, opts)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
