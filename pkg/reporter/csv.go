package reporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/opscart/capacity-compliance/pkg/engine"
)

// GenerateCSV writes host rows, cluster rows and a summary as CSV sections
func GenerateCSV(report *engine.Report, writer io.Writer) error {
	w := csv.NewWriter(writer)

	header := []string{
		"Host ID",
		"Host Name",
		"Clusters",
		"IDC",
		"Peak CPU (%)",
		"Peak Memory (%)",
		"Peak Disk (%)",
		"Avg CPU (%)",
		"Avg Memory (%)",
		"Avg Disk (%)",
		"CPU Cores",
		"Samples",
		"Compliant",
		"Insufficient Data",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range report.HostRows {
		h := row.Host
		record := []string{
			h.HostID,
			h.HostName,
			strings.Join(h.ClusterNames(), ";"),
			h.IDC.Name,
			fmt.Sprintf("%.2f", h.PeakCPUPercent),
			fmt.Sprintf("%.2f", h.PeakMemoryPercent),
			fmt.Sprintf("%.2f", h.PeakDiskPercent),
			fmt.Sprintf("%.2f", h.AvgCPUPercent),
			fmt.Sprintf("%.2f", h.AvgMemoryPercent),
			fmt.Sprintf("%.2f", h.AvgDiskPercent),
			fmt.Sprintf("%d", h.CPUCores),
			fmt.Sprintf("%d", h.SampleCount),
			compliantLabel(row.Compliance),
			yesNo(h.InsufficientData),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Write([]string{}) // Empty row
	w.Write([]string{"CLUSTERS"})
	w.Write([]string{"Cluster", "Group", "Department", "Hosts", "Mean CPU (%)", "Peak CPU (%)", "Mean Memory (%)", "Peak Memory (%)", "Mean Disk (%)", "Peak Disk (%)", "Compliant", "Failing Hosts"})
	for _, row := range report.ClusterRows {
		c := row.Cluster
		failing := ""
		if row.Compliance != nil {
			failing = strings.Join(row.Compliance.NonCompliantHosts, ";")
		}
		w.Write([]string{
			c.ClusterName,
			c.ClusterGroupName,
			c.DepartmentName,
			fmt.Sprintf("%d", c.HostCount),
			fmt.Sprintf("%.2f", c.CPU.Mean),
			fmt.Sprintf("%.2f", c.CPU.Peak),
			fmt.Sprintf("%.2f", c.Memory.Mean),
			fmt.Sprintf("%.2f", c.Memory.Peak),
			fmt.Sprintf("%.2f", c.Disk.Mean),
			fmt.Sprintf("%.2f", c.Disk.Peak),
			compliantLabel(row.Compliance),
			failing,
		})
	}

	summary := Summarize(report)
	w.Write([]string{})
	w.Write([]string{"SUMMARY"})
	w.Write([]string{"Total Hosts", fmt.Sprintf("%d", summary.HostCount)})
	w.Write([]string{"Non-Compliant Hosts (page)", fmt.Sprintf("%d", summary.NonCompliantHosts)})
	w.Write([]string{"Total Clusters", fmt.Sprintf("%d", summary.ClusterCount)})
	w.Write([]string{"Skipped Snapshots", fmt.Sprintf("%d", summary.Skipped)})

	w.Write([]string{})
	w.Write([]string{"DEPARTMENT BREAKDOWN"})
	w.Write([]string{"Department", "Clusters", "Hosts", "Non-Compliant Clusters", "Peak Disk (%)"})
	for _, stat := range summary.Departments {
		w.Write([]string{
			stat.Department,
			fmt.Sprintf("%d", stat.Clusters),
			fmt.Sprintf("%d", stat.Hosts),
			fmt.Sprintf("%d", stat.NonCompliantClusters),
			fmt.Sprintf("%.2f", stat.PeakDiskPercent),
		})
	}

	w.Flush()
	return w.Error()
}

// GenerateForecastCSV writes one row per forecast
func GenerateForecastCSV(result *engine.FleetForecast, writer io.Writer) error {
	w := csv.NewWriter(writer)

	if err := w.Write([]string{"Host ID", "Usage (%)", "Used Disk", "Total Disk", "Daily Growth", "Days Until Full", "Predicted Full Date", "High Risk", "Confidence", "Samples"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range result.Rows {
		f := row.Forecast
		days, date := "", ""
		if f.HasForecast() {
			days = fmt.Sprintf("%d", *f.DaysUntilFull)
			date = f.PredictedFullDate.Format("2006-01-02")
		}
		record := []string{
			f.HostID,
			fmt.Sprintf("%.2f", f.CurrentUsagePercent),
			fmt.Sprintf("%.2f", f.CurrentUsedDisk),
			fmt.Sprintf("%.2f", f.CurrentTotalDisk),
			fmt.Sprintf("%.4f", f.DailyGrowthRate),
			days,
			date,
			yesNo(f.IsHighRisk),
			fmt.Sprintf("%.2f", f.Confidence),
			fmt.Sprintf("%d", f.SampleCount),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}
