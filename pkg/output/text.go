package output

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/opscart/capacity-compliance/pkg/engine"
	"github.com/opscart/capacity-compliance/pkg/models"
)

// TextHandler prints human readable listings
type TextHandler struct {
	w io.Writer
}

func (h *TextHandler) Format() string { return "text" }

func (h *TextHandler) DisplayReport(ctx context.Context, report *engine.Report) error {
	if report.DataUnavailable {
		fmt.Fprintln(h.w, "[INFO] No snapshot data available for the requested window")
		return nil
	}

	fmt.Fprintf(h.w, "=== Host Compliance (%d of %d) ===\n\n", len(report.HostRows), report.Total)
	for i, row := range report.HostRows {
		host := row.Host
		fmt.Fprintf(h.w, "%d. %s", i+1, host.HostID)
		if host.HostName != "" && host.HostName != host.HostID {
			fmt.Fprintf(h.w, " (%s)", host.HostName)
		}
		fmt.Fprintf(h.w, " [%s]\n", status(row.Compliance))
		fmt.Fprintf(h.w, "   Clusters: %s\n", clusterList(&host))
		if host.IDC.Name != "" {
			fmt.Fprintf(h.w, "   IDC: %s\n", host.IDC.Name)
		}
		fmt.Fprintf(h.w, "   Peak:  CPU=%.1f%% Memory=%.1f%% Disk=%.1f%%\n",
			host.PeakCPUPercent, host.PeakMemoryPercent, host.PeakDiskPercent)
		fmt.Fprintf(h.w, "   Avg:   CPU=%.1f%% Memory=%.1f%% Disk=%.1f%%\n",
			host.AvgCPUPercent, host.AvgMemoryPercent, host.AvgDiskPercent)
		if row.Compliance != nil && !row.Compliance.Compliant {
			fmt.Fprintf(h.w, "   Out of band: %s\n", strings.Join(failing(row.Compliance), ", "))
		}
		if host.InsufficientData {
			fmt.Fprintln(h.w, "   Warning: some samples reported zero capacity")
		}
		fmt.Fprintln(h.w)
	}

	fmt.Fprintf(h.w, "=== Cluster Compliance (%d of %d) ===\n\n", len(report.ClusterRows), report.ClusterTotal)
	for i, row := range report.ClusterRows {
		c := row.Cluster
		fmt.Fprintf(h.w, "%d. %s [%s]\n", i+1, c.ClusterName, status(row.Compliance))
		if c.DepartmentName != "" || c.ClusterGroupName != "" {
			fmt.Fprintf(h.w, "   Department: %s  Group: %s\n", c.DepartmentName, c.ClusterGroupName)
		}
		fmt.Fprintf(h.w, "   Hosts: %d\n", c.HostCount)
		fmt.Fprintf(h.w, "   Peak:  CPU=%.1f%% Memory=%.1f%% Disk=%.1f%%\n", c.CPU.Peak, c.Memory.Peak, c.Disk.Peak)
		fmt.Fprintf(h.w, "   Mean:  CPU=%.1f%% Memory=%.1f%% Disk=%.1f%%\n", c.CPU.Mean, c.Memory.Mean, c.Disk.Mean)
		if row.Compliance != nil && len(row.Compliance.NonCompliantHosts) > 0 {
			fmt.Fprintf(h.w, "   Failing hosts: %s\n", strings.Join(row.Compliance.NonCompliantHosts, ", "))
		}
		fmt.Fprintln(h.w)
	}

	fmt.Fprintf(h.w, "Non-compliant hosts: %d\n", report.NonCompliantHosts)
	if report.Skipped > 0 {
		fmt.Fprintf(h.w, "Skipped malformed snapshots: %d\n", report.Skipped)
	}
	return nil
}

func (h *TextHandler) DisplayForecast(ctx context.Context, f models.DiskForecast) error {
	fmt.Fprintf(h.w, "=== Disk Forecast: %s ===\n\n", f.HostID)
	fmt.Fprintf(h.w, "Current usage:   %.1f%% (%.1f / %.1f)\n", f.CurrentUsagePercent, f.CurrentUsedDisk, f.CurrentTotalDisk)
	fmt.Fprintf(h.w, "Daily growth:    %.3f\n", f.DailyGrowthRate)
	fmt.Fprintf(h.w, "Samples:         %d\n", f.SampleCount)
	fmt.Fprintf(h.w, "Confidence (R2): %.2f\n", f.Confidence)
	if !f.HasForecast() {
		fmt.Fprintln(h.w, "Prediction:      no exhaustion projected")
		return nil
	}
	fmt.Fprintf(h.w, "Predicted full:  %s (%d days)\n", f.PredictedFullDate.Format("2006-01-02"), *f.DaysUntilFull)
	if f.IsHighRisk {
		fmt.Fprintln(h.w, "Risk:            HIGH")
	}
	return nil
}

func (h *TextHandler) DisplayFleet(ctx context.Context, fleet *engine.FleetForecast) error {
	if fleet.DataUnavailable {
		fmt.Fprintln(h.w, "[INFO] No snapshot data available for the requested window")
		return nil
	}

	fmt.Fprintf(h.w, "=== Disk Forecasts (%d of %d) ===\n\n", len(fleet.Rows), fleet.Total)
	for i, row := range fleet.Rows {
		f := row.Forecast
		fmt.Fprintf(h.w, "%d. %s  usage=%.1f%% growth=%.3f/day", i+1, f.HostID, f.CurrentUsagePercent, f.DailyGrowthRate)
		if f.HasForecast() {
			fmt.Fprintf(h.w, " full in %d days (%s)", *f.DaysUntilFull, f.PredictedFullDate.Format("2006-01-02"))
		}
		if f.IsHighRisk {
			fmt.Fprint(h.w, " [HIGH RISK]")
		}
		fmt.Fprintln(h.w)
	}
	fmt.Fprintf(h.w, "\nHigh-risk hosts: %d\n", fleet.HighRisk)
	return nil
}

func status(res *models.ComplianceResult) string {
	switch {
	case res == nil:
		return "NOT EVALUATED"
	case res.Compliant:
		return "COMPLIANT"
	default:
		return "NON-COMPLIANT"
	}
}

func failing(res *models.ComplianceResult) []string {
	var out []string
	if !res.CPUCompliant {
		out = append(out, string(models.ResourceCPU))
	}
	if !res.MemoryCompliant {
		out = append(out, string(models.ResourceMemory))
	}
	if !res.DiskCompliant {
		out = append(out, string(models.ResourceDisk))
	}
	return out
}

func clusterList(host *models.HostAggregate) string {
	names := host.ClusterNames()
	if len(names) == 0 {
		return models.UnassignedCluster
	}
	return strings.Join(names, ", ")
}
