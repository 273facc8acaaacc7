package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opscart/capacity-compliance/pkg/datasource"
	"github.com/opscart/capacity-compliance/pkg/engine"
	"github.com/opscart/capacity-compliance/pkg/metrics"
	"github.com/opscart/capacity-compliance/pkg/models"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func at(days int) time.Time {
	return day0.Add(time.Duration(days) * 24 * time.Hour)
}

func snap(host string, days int, cpu, usedDisk float64) models.ResourceSnapshot {
	return models.ResourceSnapshot{
		HostID:         host,
		Timestamp:      at(days),
		CPULoadPercent: cpu,
		UsedMemory:     10,
		TotalMemory:    100,
		UsedDisk:       usedDisk,
		TotalDisk:      100,
		Clusters:       []models.ClusterMembership{{ClusterName: "web"}},
	}
}

// memoryWriter stores ingested snapshots in a MemorySource
type memoryWriter struct {
	src *datasource.MemorySource
}

func (w memoryWriter) SaveSnapshots(ctx context.Context, snapshots []models.ResourceSnapshot) (int, error) {
	for i := range snapshots {
		if err := snapshots[i].Validate(); err != nil {
			return 0, err
		}
	}
	w.src.Add(snapshots...)
	return len(snapshots), nil
}

func newTestServer(t *testing.T) (*Server, *datasource.MemorySource) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	src := datasource.NewMemorySource(
		snap("10.0.0.1", 0, 20, 40),
		snap("10.0.0.1", 10, 30, 60),
		snap("10.0.0.2", 5, 95, 10),
	)
	rec := metrics.New()
	eng := engine.New(src, engine.WithMetrics(rec))

	s := New(eng, memoryWriter{src: src}, rec, Config{
		Thresholds:      models.DefaultThresholds(),
		LookbackDays:    10,
		RiskHorizonDays: 30,
	}, nil)
	s.now = func() time.Time { return at(10) }
	return s, src
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestCreateReport(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/reports", map[string]interface{}{
		"host_sort": map[string]interface{}{"field": "peak_cpu", "desc": true},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report engine.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 2, report.Total)
	require.Len(t, report.HostRows, 2)
	assert.Equal(t, "10.0.0.2", report.HostRows[0].Host.HostID)
	assert.False(t, report.HostRows[0].Compliance.Compliant)
	assert.Equal(t, 1, report.ClusterTotal)
}

func TestCreateReportRejectsBadThresholds(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/reports", map[string]interface{}{
		"thresholds": map[string]interface{}{
			"cpu":    map[string]float64{"min": 90, "max": 10},
			"memory": map[string]float64{"min": 0, "max": 80},
			"disk":   map[string]float64{"min": 0, "max": 85},
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid threshold")
}

func TestCreateReportUnknownSortField(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/reports", map[string]interface{}{
		"cluster_sort": map[string]interface{}{"field": "colour"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHostForecast(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/api/v1/hosts/10.0.0.1/forecast?risk_horizon_days=25", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var fc models.DiskForecast
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fc))
	require.NotNil(t, fc.DaysUntilFull)
	assert.Equal(t, 20, *fc.DaysUntilFull)
	assert.True(t, fc.IsHighRisk)

	w = do(t, s, http.MethodGet, "/api/v1/hosts/10.0.0.1/forecast?risk_horizon_days=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFleetForecast(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/forecasts", map[string]interface{}{
		"sort": map[string]interface{}{"field": "days_until_full"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result engine.FleetForecast
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, "10.0.0.1", result.Rows[0].Forecast.HostID)
}

func TestIngestSnapshots(t *testing.T) {
	s, src := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/snapshots", []models.ResourceSnapshot{snap("10.0.0.3", 7, 10, 5)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	got, err := src.FetchSnapshots(context.Background(), at(0), at(10), []string{"10.0.0.3"})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	bad := snap("10.0.0.4", 7, 10, 500)
	w = do(t, s, http.MethodPost, "/api/v1/snapshots", []models.ResourceSnapshot{bad})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestWithoutWriter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := New(engine.New(datasource.NewMemorySource()), nil, nil, Config{LookbackDays: 7}, nil)

	w := do(t, s, http.MethodPost, "/api/v1/snapshots", []models.ResourceSnapshot{})
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	do(t, s, http.MethodPost, "/api/v1/reports", map[string]interface{}{})
	w := do(t, s, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "capacity_reports_total"))
}
