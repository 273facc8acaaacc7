package engine

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/opscart/capacity-compliance/pkg/datasource"
	"github.com/opscart/capacity-compliance/pkg/forecast"
	"github.com/opscart/capacity-compliance/pkg/models"
	"github.com/opscart/capacity-compliance/pkg/query"
)

// ComputeDiskForecast projects when hostID's disk fills, as of the window end.
// Missing or failed history yields a forecast with no date.
func (e *Engine) ComputeDiskForecast(ctx context.Context, hostID string, window models.TimeRange, riskHorizonDays int) (models.DiskForecast, error) {
	if hostID == "" {
		return models.DiskForecast{}, ErrHostRequired
	}
	if err := window.Validate(); err != nil {
		return models.DiskForecast{}, err
	}

	history, err := e.diskHistory(ctx, hostID, window)
	if err != nil {
		if err := e.fetchFailed("disk forecast", err); err != nil {
			return models.DiskForecast{}, err
		}
		history = nil
	}

	opts := e.forecast
	opts.RiskHorizonDays = riskHorizonDays

	fc := forecast.Forecast(hostID, history, window.End, opts)
	e.metrics.ObserveForecast(&fc)

	e.logger.Debug("disk forecast computed",
		zap.String("host", hostID),
		zap.Int("samples", fc.SampleCount),
		zap.Float64("daily_growth", fc.DailyGrowthRate),
		zap.Bool("high_risk", fc.IsHighRisk))
	return fc, nil
}

func (e *Engine) diskHistory(ctx context.Context, hostID string, window models.TimeRange) ([]models.DiskSamplePoint, error) {
	if hs, ok := e.source.(datasource.DiskHistorySource); ok {
		return hs.FetchDiskHistory(ctx, hostID, window.Start, window.End)
	}

	snapshots, err := e.source.FetchSnapshots(ctx, window.Start, window.End, []string{hostID})
	if err != nil {
		return nil, err
	}
	return datasource.DiskHistory(snapshots, hostID), nil
}

// FleetForecastRequest asks for forecasts of every host in a window
type FleetForecastRequest struct {
	Window          models.TimeRange `json:"window"`
	RiskHorizonDays int              `json:"risk_horizon_days"`

	// Filter.NonCompliantOnly keeps only high-risk hosts
	Filter     query.FilterSpec `json:"filter"`
	Sort       query.SortSpec   `json:"sort"`
	Page       query.PageSpec   `json:"page"`
	HostFilter []string         `json:"host_filter,omitempty"`
}

// FleetForecast is one page of forecast rows
type FleetForecast struct {
	Rows            []query.ForecastRow `json:"rows"`
	Total           int                 `json:"total"`
	HighRisk        int                 `json:"high_risk"`
	Window          models.TimeRange    `json:"window"`
	GeneratedAt     time.Time           `json:"generated_at"`
	DataUnavailable bool                `json:"data_unavailable"`
}

// ComputeFleetForecast forecasts every host seen in the window from a single fetch
func (e *Engine) ComputeFleetForecast(ctx context.Context, req FleetForecastRequest) (*FleetForecast, error) {
	if err := req.Window.Validate(); err != nil {
		return nil, err
	}
	if _, _, err := query.Query([]query.ForecastRow{}, req.Filter, req.Sort, req.Page); err != nil {
		return nil, err
	}

	out := &FleetForecast{
		Rows:        []query.ForecastRow{},
		Window:      req.Window,
		GeneratedAt: e.now().UTC(),
	}

	snapshots, err := e.source.FetchSnapshots(ctx, req.Window.Start, req.Window.End, req.HostFilter)
	if err != nil {
		if err := e.fetchFailed("fleet forecast", err); err != nil {
			return nil, err
		}
		out.DataUnavailable = true
		return out, nil
	}
	if len(snapshots) == 0 {
		out.DataUnavailable = true
		return out, nil
	}

	agg := e.aggregator.Aggregate(snapshots, req.Window)
	hosts := make(map[string]*models.HostAggregate, len(agg.Hosts))
	histories := make(map[string][]models.DiskSamplePoint, len(agg.Hosts))
	for i := range agg.Hosts {
		hosts[agg.Hosts[i].HostID] = &agg.Hosts[i]
		histories[agg.Hosts[i].HostID] = []models.DiskSamplePoint{}
	}
	for i := range snapshots {
		s := &snapshots[i]
		if _, ok := histories[s.HostID]; ok && s.Validate() == nil && req.Window.Contains(s.Timestamp) {
			histories[s.HostID] = append(histories[s.HostID], s.DiskSample())
		}
	}
	for id := range histories {
		points := histories[id]
		sort.SliceStable(points, func(i, j int) bool {
			return points[i].Timestamp.Before(points[j].Timestamp)
		})
	}

	opts := e.forecast
	opts.RiskHorizonDays = req.RiskHorizonDays
	forecasts, err := forecast.ForecastAll(ctx, histories, req.Window.End, opts)
	if err != nil {
		return nil, err
	}

	rows := make([]query.ForecastRow, 0, len(forecasts))
	for i := range forecasts {
		e.metrics.ObserveForecast(&forecasts[i])
		if forecasts[i].IsHighRisk {
			out.HighRisk++
		}
		rows = append(rows, query.ForecastRow{Forecast: forecasts[i], Host: hosts[forecasts[i].HostID]})
	}

	out.Rows, out.Total, err = query.Query(rows, req.Filter, req.Sort, req.Page)
	if err != nil {
		return nil, err
	}
	return out, nil
}
