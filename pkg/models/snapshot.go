package models

import (
	"fmt"
	"math"
	"time"
)

// ClusterMembership ties a host to one cluster
type ClusterMembership struct {
	ClusterName      string `json:"cluster_name" yaml:"cluster_name"`
	ClusterGroupName string `json:"cluster_group_name" yaml:"cluster_group_name"`
	DepartmentName   string `json:"department_name" yaml:"department_name"`
}

// IDC identifies the data center a host lives in
type IDC struct {
	Name string `json:"idc_name" yaml:"idc_name"`
	Code string `json:"idc_code" yaml:"idc_code"`
}

// ResourceSnapshot represents one measurement of a single host at a point in time
type ResourceSnapshot struct {
	HostID    string    `json:"host_id" yaml:"host_id"`
	HostName  string    `json:"host_name,omitempty" yaml:"host_name"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// CPU load can exceed 100 during spikes, it is kept as reported
	CPULoadPercent float64 `json:"cpu_load_percent" yaml:"cpu_load_percent"`
	CPUCores       int     `json:"cpu_core_count" yaml:"cpu_core_count"`

	// Memory and disk in a unit consistent per host, GB from the live sources
	UsedMemory  float64 `json:"used_memory" yaml:"used_memory"`
	TotalMemory float64 `json:"total_memory" yaml:"total_memory"`
	UsedDisk    float64 `json:"used_disk" yaml:"used_disk"`
	TotalDisk   float64 `json:"total_disk" yaml:"total_disk"`

	Clusters []ClusterMembership `json:"clusters" yaml:"clusters"`
	IDC      IDC                 `json:"idc" yaml:"idc"`
}

// Validate rejects snapshots with negative or non-finite values
func (s *ResourceSnapshot) Validate() error {
	if s.HostID == "" {
		return fmt.Errorf("%w: empty host id", ErrMalformedSnapshot)
	}

	values := []struct {
		name  string
		value float64
	}{
		{"cpu_load_percent", s.CPULoadPercent},
		{"used_memory", s.UsedMemory},
		{"total_memory", s.TotalMemory},
		{"used_disk", s.UsedDisk},
		{"total_disk", s.TotalDisk},
	}
	for _, v := range values {
		if math.IsNaN(v.value) || math.IsInf(v.value, 0) {
			return fmt.Errorf("%w: host %s: %s is not a finite number", ErrMalformedSnapshot, s.HostID, v.name)
		}
		if v.value < 0 {
			return fmt.Errorf("%w: host %s: %s is negative (%.2f)", ErrMalformedSnapshot, s.HostID, v.name, v.value)
		}
	}

	if s.CPUCores < 0 {
		return fmt.Errorf("%w: host %s: negative cpu core count", ErrMalformedSnapshot, s.HostID)
	}
	if s.TotalMemory > 0 && s.UsedMemory > s.TotalMemory {
		return fmt.Errorf("%w: host %s: used memory exceeds total", ErrMalformedSnapshot, s.HostID)
	}
	if s.TotalDisk > 0 && s.UsedDisk > s.TotalDisk {
		return fmt.Errorf("%w: host %s: used disk exceeds total", ErrMalformedSnapshot, s.HostID)
	}

	return nil
}

// MemoryPercent returns used/total memory as a percentage.
// ok is false when the total is zero.
func (s *ResourceSnapshot) MemoryPercent() (pct float64, ok bool) {
	return percent(s.UsedMemory, s.TotalMemory)
}

// DiskPercent returns used/total disk as a percentage.
// ok is false when the total is zero.
func (s *ResourceSnapshot) DiskPercent() (pct float64, ok bool) {
	return percent(s.UsedDisk, s.TotalDisk)
}

// DiskSample extracts the disk portion of the snapshot for forecasting
func (s *ResourceSnapshot) DiskSample() DiskSamplePoint {
	return DiskSamplePoint{
		Timestamp: s.Timestamp,
		UsedDisk:  s.UsedDisk,
		TotalDisk: s.TotalDisk,
	}
}

func percent(used, total float64) (float64, bool) {
	if total <= 0 {
		return 0, false
	}
	return used / total * 100, true
}

// TimeRange is a closed time window [Start, End]
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// LastDays returns a window ending at end and spanning the given number of days
func LastDays(end time.Time, days int) TimeRange {
	return TimeRange{
		Start: end.Add(-time.Duration(days) * 24 * time.Hour),
		End:   end,
	}
}

// Validate checks the window bounds
func (r TimeRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidWindow)
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("%w: end %s is before start %s", ErrInvalidWindow,
			r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether t falls inside the window
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}
