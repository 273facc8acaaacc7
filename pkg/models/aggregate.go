package models

import "time"

// UnassignedCluster collects hosts that reported no cluster membership
const UnassignedCluster = "__unassigned__"

// HostAggregate is the per-host summary of a query window.
// Each peak percentage is the maximum per-snapshot ratio for that resource,
// the three peaks may come from different snapshots.
type HostAggregate struct {
	HostID   string `json:"host_id"`
	HostName string `json:"host_name,omitempty"`

	PeakCPUPercent    float64 `json:"peak_cpu_percent"`
	PeakMemoryPercent float64 `json:"peak_memory_percent"`
	PeakDiskPercent   float64 `json:"peak_disk_percent"`

	AvgCPUPercent    float64 `json:"avg_cpu_percent"`
	AvgMemoryPercent float64 `json:"avg_memory_percent"`
	AvgDiskPercent   float64 `json:"avg_disk_percent"`

	// Absolute values of the samples that produced the peak percentages
	PeakUsedMemory  float64 `json:"peak_used_memory"`
	PeakTotalMemory float64 `json:"peak_total_memory"`
	PeakUsedDisk    float64 `json:"peak_used_disk"`
	PeakTotalDisk   float64 `json:"peak_total_disk"`

	CPUCores     int       `json:"cpu_core_count"`
	LatestPeakAt time.Time `json:"latest_peak_at"`
	LastSeen     time.Time `json:"last_seen"`
	SampleCount  int       `json:"sample_count"`

	Clusters []ClusterMembership `json:"clusters"`
	IDC      IDC                 `json:"idc"`

	// InsufficientData is set when a sample had a zero memory or disk total
	InsufficientData bool `json:"insufficient_data"`
}

// ClusterNames returns the names of the clusters the host belongs to
func (h *HostAggregate) ClusterNames() []string {
	names := make([]string, 0, len(h.Clusters))
	for _, c := range h.Clusters {
		names = append(names, c.ClusterName)
	}
	return names
}

// ClusterAggregate rolls member host peaks up to a cluster
type ClusterAggregate struct {
	ClusterName      string   `json:"cluster_name"`
	ClusterGroupName string   `json:"cluster_group_name"`
	DepartmentName   string   `json:"department_name"`
	HostCount        int      `json:"host_count"`
	HostIDs          []string `json:"host_ids"`
	IDCs             []string `json:"idcs"`

	CPU    UsageStats `json:"cpu"`
	Memory UsageStats `json:"memory"`
	Disk   UsageStats `json:"disk"`
}

// UsageStats holds mean/peak/min of member host peak percentages
type UsageStats struct {
	Mean float64 `json:"mean"`
	Peak float64 `json:"peak"`
	Min  float64 `json:"min"`
}
