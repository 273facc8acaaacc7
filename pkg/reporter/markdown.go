package reporter

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/opscart/capacity-compliance/pkg/engine"
	"github.com/opscart/capacity-compliance/pkg/models"
)

const markdownTemplate = `# Resource Compliance Report

Window: {{ date .Summary.Window.Start }} to {{ date .Summary.Window.End }}
Generated: {{ date .Summary.GeneratedAt }}
{{- if .Report.DataUnavailable }}

> No snapshot data was available for this window.
{{- end }}

## Summary

| Metric | Value |
|---|---|
| Hosts | {{ .Summary.HostCount }} |
| Non-compliant hosts (this page) | {{ .Summary.NonCompliantHosts }} |
| Clusters | {{ .Summary.ClusterCount }} |
| Non-compliant clusters (this page) | {{ .Summary.NonCompliantClusters }} |
| Hosts with insufficient data | {{ .Summary.InsufficientData }} |
| Skipped snapshots | {{ .Summary.Skipped }} |

## Hosts

| Host | Clusters | IDC | Peak CPU | Peak Memory | Peak Disk | Compliant |
|---|---|---|---:|---:|---:|---|
{{- range .Report.HostRows }}
| {{ .Host.HostID }} | {{ clusters .Host }} | {{ .Host.IDC.Name }} | {{ pct .Host.PeakCPUPercent }} | {{ pct .Host.PeakMemoryPercent }} | {{ pct .Host.PeakDiskPercent }} | {{ compliant .Compliance }} |
{{- end }}

## Clusters

| Cluster | Group | Department | Hosts | Mean CPU | Peak CPU | Mean Disk | Peak Disk | Compliant |
|---|---|---|---:|---:|---:|---:|---:|---|
{{- range .Report.ClusterRows }}
| {{ .Cluster.ClusterName }} | {{ .Cluster.ClusterGroupName }} | {{ .Cluster.DepartmentName }} | {{ .Cluster.HostCount }} | {{ pct .Cluster.CPU.Mean }} | {{ pct .Cluster.CPU.Peak }} | {{ pct .Cluster.Disk.Mean }} | {{ pct .Cluster.Disk.Peak }} | {{ compliant .Compliance }} |
{{- end }}
{{- if .Summary.Departments }}

## Departments

| Department | Clusters | Hosts | Non-compliant clusters | Peak Disk |
|---|---:|---:|---:|---:|
{{- range .Summary.Departments }}
| {{ .Department }} | {{ .Clusters }} | {{ .Hosts }} | {{ .NonCompliantClusters }} | {{ pct .PeakDiskPercent }} |
{{- end }}
{{- end }}
`

var markdownTmpl = template.Must(template.New("markdown").Funcs(template.FuncMap{
	"pct":       func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
	"date":      func(t interface{ Format(string) string }) string { return t.Format("2006-01-02 15:04") },
	"compliant": compliantLabel,
	"clusters": func(h models.HostAggregate) string {
		names := h.ClusterNames()
		if len(names) == 0 {
			return models.UnassignedCluster
		}
		return strings.Join(names, ", ")
	},
}).Parse(markdownTemplate))

// GenerateMarkdown renders the report as Markdown tables
func GenerateMarkdown(report *engine.Report, w io.Writer) error {
	data := struct {
		Report  *engine.Report
		Summary *Summary
	}{
		Report:  report,
		Summary: Summarize(report),
	}

	if err := markdownTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	return nil
}
