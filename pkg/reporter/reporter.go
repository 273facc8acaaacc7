package reporter

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/opscart/capacity-compliance/pkg/engine"
	"github.com/opscart/capacity-compliance/pkg/models"
)

// ReportFormat represents the export format
type ReportFormat string

const (
	FormatMarkdown ReportFormat = "markdown"
	FormatCSV      ReportFormat = "csv"
)

// Summary holds the roll-up printed under every export
type Summary struct {
	GeneratedAt          time.Time
	Window               models.TimeRange
	HostCount            int
	NonCompliantHosts    int
	ClusterCount         int
	NonCompliantClusters int
	InsufficientData     int
	Skipped              int
	Departments          []*DepartmentStats
}

// DepartmentStats holds cluster counts per department
type DepartmentStats struct {
	Department           string
	Clusters             int
	Hosts                int
	NonCompliantClusters int
	PeakDiskPercent      float64
}

// Reporter exports compliance reports
type Reporter struct {
	format ReportFormat
}

// New creates a new reporter
func New(format ReportFormat) *Reporter {
	return &Reporter{
		format: format,
	}
}

// Write renders report in the reporter's format
func (r *Reporter) Write(report *engine.Report, w io.Writer) error {
	switch r.format {
	case FormatCSV:
		return GenerateCSV(report, w)
	case FormatMarkdown:
		return GenerateMarkdown(report, w)
	default:
		return fmt.Errorf("unsupported report format: %s", r.format)
	}
}

// Summarize computes the roll-up over the rows present in report
func Summarize(report *engine.Report) *Summary {
	s := &Summary{
		GeneratedAt:  report.GeneratedAt,
		Window:       report.Window,
		HostCount:    report.Total,
		ClusterCount: report.ClusterTotal,
		Skipped:      report.Skipped,
	}

	for _, row := range report.HostRows {
		if row.Compliance != nil && !row.Compliance.Compliant {
			s.NonCompliantHosts++
		}
		if row.Host.InsufficientData {
			s.InsufficientData++
		}
	}

	departments := make(map[string]*DepartmentStats)
	for _, row := range report.ClusterRows {
		dept := row.Cluster.DepartmentName
		if dept == "" {
			dept = "unknown"
		}
		stat, ok := departments[dept]
		if !ok {
			stat = &DepartmentStats{Department: dept}
			departments[dept] = stat
		}
		stat.Clusters++
		stat.Hosts += row.Cluster.HostCount
		if row.Cluster.Disk.Peak > stat.PeakDiskPercent {
			stat.PeakDiskPercent = row.Cluster.Disk.Peak
		}
		if row.Compliance != nil && !row.Compliance.Compliant {
			stat.NonCompliantClusters++
			s.NonCompliantClusters++
		}
	}

	for _, stat := range departments {
		s.Departments = append(s.Departments, stat)
	}
	sort.Slice(s.Departments, func(i, j int) bool {
		return s.Departments[i].Department < s.Departments[j].Department
	})

	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func compliantLabel(res *models.ComplianceResult) string {
	if res == nil {
		return "n/a"
	}
	return yesNo(res.Compliant)
}
