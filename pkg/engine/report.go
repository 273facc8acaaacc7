package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/opscart/capacity-compliance/pkg/compliance"
	"github.com/opscart/capacity-compliance/pkg/metrics"
	"github.com/opscart/capacity-compliance/pkg/models"
	"github.com/opscart/capacity-compliance/pkg/query"
)

// ReportRequest carries everything one report needs
type ReportRequest struct {
	Window      models.TimeRange  `json:"window"`
	Thresholds  models.Thresholds `json:"thresholds"`
	Filter      query.FilterSpec  `json:"filter"`
	HostSort    query.SortSpec    `json:"host_sort"`
	ClusterSort query.SortSpec    `json:"cluster_sort"`
	Page        query.PageSpec    `json:"page"`
	ClusterPage query.PageSpec    `json:"cluster_page"`
	HostFilter  []string          `json:"host_filter,omitempty"`
}

// Report is one page of host rows and one page of cluster rows
type Report struct {
	HostRows     []query.HostRow    `json:"host_rows"`
	ClusterRows  []query.ClusterRow `json:"cluster_rows"`
	Total        int                `json:"total"`
	ClusterTotal int                `json:"cluster_total"`

	// NonCompliantHosts counts non-compliant hosts before filtering
	NonCompliantHosts int `json:"non_compliant_hosts"`
	Skipped           int `json:"skipped"`

	Window          models.TimeRange `json:"window"`
	GeneratedAt     time.Time        `json:"generated_at"`
	DataUnavailable bool             `json:"data_unavailable"`
}

// Unavailable returns ErrDataUnavailable when the report was built from no data
func (r *Report) Unavailable() error {
	if r.DataUnavailable {
		return ErrDataUnavailable
	}
	return nil
}

func (req *ReportRequest) validate() error {
	if err := req.Window.Validate(); err != nil {
		return err
	}
	if err := req.Thresholds.Validate(); err != nil {
		return err
	}
	// run the query specs over no rows to surface sort and page errors before fetching
	if _, _, err := query.Query([]query.HostRow{}, req.Filter, req.HostSort, req.Page); err != nil {
		return err
	}
	if _, _, err := query.Query([]query.ClusterRow{}, req.Filter, req.ClusterSort, req.ClusterPage); err != nil {
		return err
	}
	return nil
}

// ComputeResourceReport fetches the window, aggregates, evaluates compliance
// and returns filtered, sorted, paged host and cluster rows.
func (e *Engine) ComputeResourceReport(ctx context.Context, req ReportRequest) (*Report, error) {
	started := time.Now()

	if err := req.validate(); err != nil {
		e.metrics.ObserveReport(metrics.ReportRejected, time.Since(started), 0)
		return nil, err
	}

	report := &Report{
		HostRows:    []query.HostRow{},
		ClusterRows: []query.ClusterRow{},
		Window:      req.Window,
		GeneratedAt: e.now().UTC(),
	}

	snapshots, err := e.source.FetchSnapshots(ctx, req.Window.Start, req.Window.End, req.HostFilter)
	if err != nil {
		e.metrics.ObserveReport(metrics.ReportFetchFailed, time.Since(started), 0)
		if err := e.fetchFailed("resource report", err); err != nil {
			return nil, err
		}
		report.DataUnavailable = true
		return report, nil
	}

	if len(snapshots) == 0 {
		e.logger.Info("no snapshots in window",
			zap.Time("start", req.Window.Start),
			zap.Time("end", req.Window.End))
		report.DataUnavailable = true
		e.metrics.ObserveReport(metrics.ReportEmpty, time.Since(started), 0)
		return report, nil
	}

	agg := e.aggregator.Aggregate(snapshots, req.Window)
	report.Skipped = agg.Skipped

	results, err := compliance.Evaluate(agg.Hosts, agg.Clusters, req.Thresholds)
	if err != nil {
		return nil, err
	}
	report.NonCompliantHosts = results.NonCompliantCount()

	hostRows := make([]query.HostRow, 0, len(agg.Hosts))
	for _, h := range agg.Hosts {
		res := results.Hosts[h.HostID]
		hostRows = append(hostRows, query.HostRow{Host: h, Compliance: &res})
	}
	clusterRows := make([]query.ClusterRow, 0, len(agg.Clusters))
	for _, c := range agg.Clusters {
		res := results.Clusters[c.ClusterName]
		clusterRows = append(clusterRows, query.ClusterRow{Cluster: c, Compliance: &res})
	}

	report.HostRows, report.Total, err = query.Query(hostRows, req.Filter, req.HostSort, req.Page)
	if err != nil {
		return nil, err
	}
	report.ClusterRows, report.ClusterTotal, err = query.Query(clusterRows, req.Filter, req.ClusterSort, req.ClusterPage)
	if err != nil {
		return nil, err
	}

	e.metrics.ObserveReport(metrics.ReportOK, time.Since(started), agg.Skipped)
	e.logger.Debug("resource report computed",
		zap.Int("snapshots", len(snapshots)),
		zap.Int("hosts", len(agg.Hosts)),
		zap.Int("clusters", len(agg.Clusters)),
		zap.Int("total", report.Total),
		zap.Int("skipped", agg.Skipped),
		zap.Duration("elapsed", time.Since(started)))

	return report, nil
}
