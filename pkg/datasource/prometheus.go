package datasource

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"go.uber.org/zap"

	"github.com/opscart/capacity-compliance/pkg/models"
)

const bytesPerGB = 1 << 30

// node_exporter queries, all keyed by instance
const (
	cpuQuery       = `100 * (1 - avg by (instance) (rate(node_cpu_seconds_total{mode="idle"}[5m])))`
	coresQuery     = `count by (instance) (node_cpu_seconds_total{mode="idle"})`
	memTotalQuery  = `node_memory_MemTotal_bytes`
	memUsedQuery   = `node_memory_MemTotal_bytes - node_memory_MemAvailable_bytes`
	fsSelector     = `fstype!~"tmpfs|overlay|squashfs"`
	diskTotalQuery = `sum by (instance) (node_filesystem_size_bytes{` + fsSelector + `})`
	diskUsedQuery  = `sum by (instance) (node_filesystem_size_bytes{` + fsSelector + `} - node_filesystem_avail_bytes{` + fsSelector + `})`
)

// PrometheusSource builds snapshots from node_exporter series.
// The instance label is the host id; memberships and IDC come from target labels.
type PrometheusSource struct {
	client v1.API
	url    string
	step   time.Duration
	labels LabelConfig
	logger *zap.Logger
}

// PrometheusOption configures a PrometheusSource
type PrometheusOption func(*PrometheusSource)

// WithStep sets the range query resolution
func WithStep(step time.Duration) PrometheusOption {
	return func(p *PrometheusSource) {
		if step > 0 {
			p.step = step
		}
	}
}

// WithLabels overrides the membership label names
func WithLabels(labels LabelConfig) PrometheusOption {
	return func(p *PrometheusSource) { p.labels = labels }
}

// WithPrometheusLogger sets the logger
func WithPrometheusLogger(logger *zap.Logger) PrometheusOption {
	return func(p *PrometheusSource) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPrometheusSource creates a Prometheus-backed snapshot source
func NewPrometheusSource(url string, opts ...PrometheusOption) (*PrometheusSource, error) {
	client, err := api.NewClient(api.Config{
		Address: url,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return newPrometheusSource(v1.NewAPI(client), url, opts...), nil
}

func newPrometheusSource(client v1.API, url string, opts ...PrometheusOption) *PrometheusSource {
	p := &PrometheusSource{
		client: client,
		url:    url,
		step:   time.Hour,
		labels: DefaultLabels(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type sampleKey struct {
	host string
	ts   int64
}

// FetchSnapshots runs one range query per resource and joins the series on (instance, timestamp).
// Points missing a memory or disk series keep a zero total and surface as insufficient data.
func (p *PrometheusSource) FetchSnapshots(ctx context.Context, start, end time.Time, hostFilter []string) ([]models.ResourceSnapshot, error) {
	r := v1.Range{Start: start, End: end, Step: p.step}
	hosts := hostSet(hostFilter)

	byKey := make(map[sampleKey]*models.ResourceSnapshot)
	meta := make(map[string]model.Metric)

	get := func(host string, ts model.Time) *models.ResourceSnapshot {
		k := sampleKey{host: host, ts: int64(ts)}
		s, ok := byKey[k]
		if !ok {
			s = &models.ResourceSnapshot{HostID: host, Timestamp: ts.Time().UTC()}
			byKey[k] = s
		}
		return s
	}

	queries := []struct {
		query string
		set   func(s *models.ResourceSnapshot, v float64)
	}{
		{cpuQuery, func(s *models.ResourceSnapshot, v float64) { s.CPULoadPercent = v }},
		{coresQuery, func(s *models.ResourceSnapshot, v float64) { s.CPUCores = int(v) }},
		{memTotalQuery, func(s *models.ResourceSnapshot, v float64) { s.TotalMemory = v / bytesPerGB }},
		{memUsedQuery, func(s *models.ResourceSnapshot, v float64) { s.UsedMemory = v / bytesPerGB }},
		{diskTotalQuery, func(s *models.ResourceSnapshot, v float64) { s.TotalDisk = v / bytesPerGB }},
		{diskUsedQuery, func(s *models.ResourceSnapshot, v float64) { s.UsedDisk = v / bytesPerGB }},
	}

	for _, q := range queries {
		matrix, err := p.queryRange(ctx, q.query, r)
		if err != nil {
			return nil, err
		}
		for _, series := range matrix {
			host := string(series.Metric[model.InstanceLabel])
			if host == "" || (hosts != nil && !hosts[host]) {
				continue
			}
			if q.query == memTotalQuery {
				meta[host] = series.Metric
			}
			for _, pair := range series.Values {
				q.set(get(host, pair.Timestamp), float64(pair.Value))
			}
		}
	}

	out := make([]models.ResourceSnapshot, 0, len(byKey))
	for _, s := range byKey {
		labels := labelMap(meta[s.HostID])
		s.HostName = labels[p.labels.HostName]
		s.Clusters = p.labels.membership(labels)
		s.IDC = p.labels.idc(labels)
		out = append(out, *s)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].HostID < out[j].HostID
	})

	p.logger.Debug("prometheus snapshots fetched",
		zap.Int("snapshots", len(out)),
		zap.Int("hosts", len(meta)),
		zap.Time("start", start),
		zap.Time("end", end))
	return out, nil
}

func (p *PrometheusSource) FetchDiskHistory(ctx context.Context, hostID string, start, end time.Time) ([]models.DiskSamplePoint, error) {
	r := v1.Range{Start: start, End: end, Step: p.step}
	selector := fmt.Sprintf(`instance=%q,%s`, hostID, fsSelector)

	total, err := p.queryRange(ctx, fmt.Sprintf(`sum(node_filesystem_size_bytes{%s})`, selector), r)
	if err != nil {
		return nil, err
	}
	used, err := p.queryRange(ctx, fmt.Sprintf(`sum(node_filesystem_size_bytes{%s} - node_filesystem_avail_bytes{%s})`, selector, selector), r)
	if err != nil {
		return nil, err
	}

	byTS := make(map[int64]*models.DiskSamplePoint)
	collect := func(m model.Matrix, set func(pt *models.DiskSamplePoint, v float64)) {
		for _, series := range m {
			for _, pair := range series.Values {
				pt, ok := byTS[int64(pair.Timestamp)]
				if !ok {
					pt = &models.DiskSamplePoint{Timestamp: pair.Timestamp.Time().UTC()}
					byTS[int64(pair.Timestamp)] = pt
				}
				set(pt, float64(pair.Value)/bytesPerGB)
			}
		}
	}
	collect(total, func(pt *models.DiskSamplePoint, v float64) { pt.TotalDisk = v })
	collect(used, func(pt *models.DiskSamplePoint, v float64) { pt.UsedDisk = v })

	points := make([]models.DiskSamplePoint, 0, len(byTS))
	for _, pt := range byTS {
		points = append(points, *pt)
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

func (p *PrometheusSource) queryRange(ctx context.Context, query string, r v1.Range) (model.Matrix, error) {
	p.logger.Debug("prometheus range query",
		zap.String("query", query),
		zap.Duration("step", r.Step))

	result, warnings, err := p.client.QueryRange(ctx, query, r)
	if err != nil {
		return nil, fmt.Errorf("prometheus query failed: %w", err)
	}
	if len(warnings) > 0 {
		p.logger.Warn("prometheus warnings", zap.Strings("warnings", warnings))
	}

	matrix, ok := result.(model.Matrix)
	if !ok {
		return nil, fmt.Errorf("unexpected result type: %T", result)
	}
	return matrix, nil
}

func (p *PrometheusSource) IsAvailable(ctx context.Context) bool {
	_, _, err := p.client.Query(ctx, "up", time.Now())
	return err == nil
}

func (p *PrometheusSource) Name() string {
	return "Prometheus"
}

func labelMap(m model.Metric) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[string(k)] = string(v)
	}
	return out
}
