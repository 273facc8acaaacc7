package reporter

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opscart/capacity-compliance/pkg/engine"
	"github.com/opscart/capacity-compliance/pkg/models"
	"github.com/opscart/capacity-compliance/pkg/query"
)

func sampleReport() *engine.Report {
	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return &engine.Report{
		HostRows: []query.HostRow{
			{
				Host: models.HostAggregate{
					HostID: "h1", HostName: "node-1",
					PeakCPUPercent: 91, PeakMemoryPercent: 40, PeakDiskPercent: 50,
					SampleCount: 4,
					Clusters:    []models.ClusterMembership{{ClusterName: "c1", DepartmentName: "payments"}},
					IDC:         models.IDC{Name: "east", Code: "E1"},
				},
				Compliance: &models.ComplianceResult{SubjectID: "h1", SubjectKind: models.SubjectHost, Compliant: false},
			},
			{
				Host: models.HostAggregate{
					HostID: "h2", PeakCPUPercent: 10, PeakMemoryPercent: 20, PeakDiskPercent: 30,
					SampleCount: 2, InsufficientData: true,
				},
				Compliance: &models.ComplianceResult{SubjectID: "h2", SubjectKind: models.SubjectHost, Compliant: true},
			},
		},
		ClusterRows: []query.ClusterRow{
			{
				Cluster: models.ClusterAggregate{
					ClusterName: "c1", ClusterGroupName: "g1", DepartmentName: "payments",
					HostCount: 1, HostIDs: []string{"h1"},
					CPU: models.UsageStats{Mean: 91, Peak: 91, Min: 91}, Disk: models.UsageStats{Mean: 50, Peak: 50, Min: 50},
				},
				Compliance: &models.ComplianceResult{SubjectID: "c1", SubjectKind: models.SubjectCluster, NonCompliantHosts: []string{"h1"}},
			},
			{
				Cluster: models.ClusterAggregate{
					ClusterName: "c2", DepartmentName: "payments", HostCount: 3,
					Disk: models.UsageStats{Peak: 70},
				},
				Compliance: &models.ComplianceResult{SubjectID: "c2", SubjectKind: models.SubjectCluster, Compliant: true},
			},
			{
				Cluster: models.ClusterAggregate{ClusterName: "c3", HostCount: 2},
			},
		},
		Total:        2,
		ClusterTotal: 3,
		Window:       models.TimeRange{Start: end.AddDate(0, 0, -7), End: end},
		GeneratedAt:  end,
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleReport())

	assert.Equal(t, 2, s.HostCount)
	assert.Equal(t, 1, s.NonCompliantHosts)
	assert.Equal(t, 3, s.ClusterCount)
	assert.Equal(t, 1, s.NonCompliantClusters)
	assert.Equal(t, 1, s.InsufficientData)

	require.Len(t, s.Departments, 2)
	assert.Equal(t, "payments", s.Departments[0].Department)
	assert.Equal(t, 2, s.Departments[0].Clusters)
	assert.Equal(t, 4, s.Departments[0].Hosts)
	assert.Equal(t, 1, s.Departments[0].NonCompliantClusters)
	assert.Equal(t, 70.0, s.Departments[0].PeakDiskPercent)
	assert.Equal(t, "unknown", s.Departments[1].Department)
}

func TestGenerateCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, GenerateCSV(sampleReport(), &buf))

	r := csv.NewReader(strings.NewReader(buf.String()))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)

	assert.Equal(t, "Host ID", records[0][0])
	assert.Equal(t, []string{"h1", "node-1", "c1", "east", "91.00", "40.00", "50.00"}, records[1][:7])
	assert.Equal(t, "no", records[1][12])
	assert.Equal(t, "yes", records[2][13])

	out := buf.String()
	assert.Contains(t, out, "CLUSTERS")
	assert.Contains(t, out, "SUMMARY")
	assert.Contains(t, out, "DEPARTMENT BREAKDOWN")
	assert.Contains(t, out, "c1,g1,payments,1,")
	assert.Contains(t, out, "c3,,,2,")
}

func TestGenerateMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, GenerateMarkdown(sampleReport(), &buf))

	out := buf.String()
	assert.Contains(t, out, "# Resource Compliance Report")
	assert.Contains(t, out, "Window: 2024-02-23 00:00 to 2024-03-01 00:00")
	assert.Contains(t, out, "| h1 | c1 | east | 91.0% | 40.0% | 50.0% | no |")
	assert.Contains(t, out, "| h2 | __unassigned__ |")
	assert.Contains(t, out, "| c3 |  |  | 2 |")
	assert.Contains(t, out, "| n/a |")
	assert.NotContains(t, out, "No snapshot data")
}

func TestGenerateMarkdownUnavailable(t *testing.T) {
	report := &engine.Report{
		HostRows:        []query.HostRow{},
		ClusterRows:     []query.ClusterRow{},
		DataUnavailable: true,
	}

	var buf bytes.Buffer
	require.NoError(t, GenerateMarkdown(report, &buf))
	assert.Contains(t, buf.String(), "No snapshot data was available")
	assert.NotContains(t, buf.String(), "## Departments")
}

func TestGenerateForecastCSV(t *testing.T) {
	days := 12
	date := time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)
	result := &engine.FleetForecast{
		Rows: []query.ForecastRow{
			{Forecast: models.DiskForecast{HostID: "h1", CurrentUsagePercent: 80, DailyGrowthRate: 2, DaysUntilFull: &days, PredictedFullDate: &date, IsHighRisk: true, SampleCount: 5}},
			{Forecast: models.DiskForecast{HostID: "h2", CurrentUsagePercent: 20, SampleCount: 1}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, GenerateForecastCSV(result, &buf))

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "12", records[1][5])
	assert.Equal(t, "2024-03-13", records[1][6])
	assert.Equal(t, "yes", records[1][7])
	assert.Equal(t, "", records[2][5])
	assert.Equal(t, "no", records[2][7])
}

func TestReporterWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(FormatCSV).Write(sampleReport(), &buf))
	assert.True(t, strings.HasPrefix(buf.String(), "Host ID"))

	buf.Reset()
	require.NoError(t, New(FormatMarkdown).Write(sampleReport(), &buf))
	assert.True(t, strings.HasPrefix(buf.String(), "# Resource"))

	err := New(ReportFormat("html")).Write(sampleReport(), &buf)
	assert.Error(t, err)
}
