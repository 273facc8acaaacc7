package query

import (
	"github.com/opscart/capacity-compliance/pkg/models"
)

var hostSortFields = []string{
	"host_id", "host_name",
	"peak_cpu", "peak_memory", "peak_disk",
	"avg_cpu", "avg_memory", "avg_disk",
	"cpu_cores", "sample_count", "last_seen",
}

var clusterSortFields = []string{
	"cluster_name", "cluster_group", "department", "host_count",
	"mean_cpu", "mean_memory", "mean_disk",
	"peak_cpu", "peak_memory", "peak_disk",
	"min_cpu", "min_memory", "min_disk",
}

var forecastSortFields = []string{
	"host_id", "usage_percent", "growth_rate", "days_until_full",
}

// HostRow is a host aggregate with its compliance result, if evaluated
type HostRow struct {
	Host       models.HostAggregate     `json:"host"`
	Compliance *models.ComplianceResult `json:"compliance,omitempty"`
}

func (r HostRow) RowID() string { return r.Host.HostID }

func (r HostRow) SortFields() []string { return hostSortFields }

func (r HostRow) Field(name string) (Value, bool) {
	h := r.Host
	switch name {
	case "host_id":
		return Text(h.HostID), true
	case "host_name":
		if h.HostName == "" {
			return Absent(), true
		}
		return Text(h.HostName), true
	case "peak_cpu":
		return Number(h.PeakCPUPercent), true
	case "peak_memory":
		return Number(h.PeakMemoryPercent), true
	case "peak_disk":
		return Number(h.PeakDiskPercent), true
	case "avg_cpu":
		return Number(h.AvgCPUPercent), true
	case "avg_memory":
		return Number(h.AvgMemoryPercent), true
	case "avg_disk":
		return Number(h.AvgDiskPercent), true
	case "cpu_cores":
		return Number(float64(h.CPUCores)), true
	case "sample_count":
		return Number(float64(h.SampleCount)), true
	case "last_seen":
		return Time(h.LastSeen), true
	}
	return Absent(), false
}

func (r HostRow) Memberships() Memberships {
	return hostMemberships(&r.Host)
}

func (r HostRow) ComplianceFlag() (bool, bool) {
	return complianceOf(r.Compliance)
}

// ClusterRow is a cluster aggregate with its compliance result, if evaluated
type ClusterRow struct {
	Cluster    models.ClusterAggregate  `json:"cluster"`
	Compliance *models.ComplianceResult `json:"compliance,omitempty"`
}

func (r ClusterRow) RowID() string { return r.Cluster.ClusterName }

func (r ClusterRow) SortFields() []string { return clusterSortFields }

func (r ClusterRow) Field(name string) (Value, bool) {
	c := r.Cluster
	switch name {
	case "cluster_name":
		return Text(c.ClusterName), true
	case "cluster_group":
		return Text(c.ClusterGroupName), true
	case "department":
		return Text(c.DepartmentName), true
	case "host_count":
		return Number(float64(c.HostCount)), true
	case "mean_cpu":
		return Number(c.CPU.Mean), true
	case "mean_memory":
		return Number(c.Memory.Mean), true
	case "mean_disk":
		return Number(c.Disk.Mean), true
	case "peak_cpu":
		return Number(c.CPU.Peak), true
	case "peak_memory":
		return Number(c.Memory.Peak), true
	case "peak_disk":
		return Number(c.Disk.Peak), true
	case "min_cpu":
		return Number(c.CPU.Min), true
	case "min_memory":
		return Number(c.Memory.Min), true
	case "min_disk":
		return Number(c.Disk.Min), true
	}
	return Absent(), false
}

// Memberships matches a cluster on its own name, group and department,
// and on the IDCs of its members.
func (r ClusterRow) Memberships() Memberships {
	c := r.Cluster
	return Memberships{
		ClusterGroups: nonEmpty(c.ClusterGroupName),
		Clusters:      []string{c.ClusterName},
		Departments:   nonEmpty(c.DepartmentName),
		IDCs:          c.IDCs,
	}
}

func (r ClusterRow) ComplianceFlag() (bool, bool) {
	return complianceOf(r.Compliance)
}

// ForecastRow is a disk forecast with the host it was computed for
type ForecastRow struct {
	Forecast models.DiskForecast   `json:"forecast"`
	Host     *models.HostAggregate `json:"-"`
}

func (r ForecastRow) RowID() string { return r.Forecast.HostID }

func (r ForecastRow) SortFields() []string { return forecastSortFields }

func (r ForecastRow) Field(name string) (Value, bool) {
	f := r.Forecast
	switch name {
	case "host_id":
		return Text(f.HostID), true
	case "usage_percent":
		return Number(f.CurrentUsagePercent), true
	case "growth_rate":
		return Number(f.DailyGrowthRate), true
	case "days_until_full":
		if f.DaysUntilFull == nil {
			return Absent(), true
		}
		return Number(float64(*f.DaysUntilFull)), true
	}
	return Absent(), false
}

func (r ForecastRow) Memberships() Memberships {
	if r.Host == nil {
		return Memberships{}
	}
	return hostMemberships(r.Host)
}

// ComplianceFlag on a forecast row is its risk flag: high risk is non-compliant
func (r ForecastRow) ComplianceFlag() (bool, bool) {
	if !r.Forecast.HasForecast() {
		return true, true
	}
	return !r.Forecast.IsHighRisk, true
}

func hostMemberships(h *models.HostAggregate) Memberships {
	m := Memberships{
		IDCs: nonEmpty(h.IDC.Name, h.IDC.Code),
	}
	if len(h.Clusters) == 0 {
		m.Clusters = []string{models.UnassignedCluster}
		return m
	}
	for _, c := range h.Clusters {
		m.Clusters = append(m.Clusters, c.ClusterName)
		m.ClusterGroups = append(m.ClusterGroups, nonEmpty(c.ClusterGroupName)...)
		m.Departments = append(m.Departments, nonEmpty(c.DepartmentName)...)
	}
	return m
}

func complianceOf(res *models.ComplianceResult) (bool, bool) {
	if res == nil {
		return false, false
	}
	return res.Compliant, true
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
