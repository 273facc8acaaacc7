package models

import (
	"fmt"
	"math"
)

// ResourceType names a thresholded resource
type ResourceType string

const (
	ResourceCPU    ResourceType = "cpu"
	ResourceMemory ResourceType = "memory"
	ResourceDisk   ResourceType = "disk"
)

// ThresholdBand is the healthy [Min, Max] percentage range for one resource
type ThresholdBand struct {
	Min float64 `json:"min" mapstructure:"min"`
	Max float64 `json:"max" mapstructure:"max"`
}

// Contains reports whether value lies inside the band, bounds inclusive
func (b ThresholdBand) Contains(value float64) bool {
	return value >= b.Min && value <= b.Max
}

// Thresholds is the per-request compliance configuration
type Thresholds struct {
	CPU    ThresholdBand `json:"cpu" mapstructure:"cpu"`
	Memory ThresholdBand `json:"memory" mapstructure:"memory"`
	Disk   ThresholdBand `json:"disk" mapstructure:"disk"`
}

// DefaultThresholds returns the bands used when a caller supplies none
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPU:    ThresholdBand{Min: 0, Max: 80},
		Memory: ThresholdBand{Min: 0, Max: 80},
		Disk:   ThresholdBand{Min: 0, Max: 85},
	}
}

// Validate rejects bands with min > max. Bounds are never swapped.
func (t Thresholds) Validate() error {
	bands := []struct {
		resource ResourceType
		band     ThresholdBand
	}{
		{ResourceCPU, t.CPU},
		{ResourceMemory, t.Memory},
		{ResourceDisk, t.Disk},
	}
	for _, b := range bands {
		if math.IsNaN(b.band.Min) || math.IsNaN(b.band.Max) {
			return fmt.Errorf("%w: %s band has a NaN bound", ErrInvalidThreshold, b.resource)
		}
		if b.band.Min > b.band.Max {
			return fmt.Errorf("%w: %s min %.2f is greater than max %.2f",
				ErrInvalidThreshold, b.resource, b.band.Min, b.band.Max)
		}
	}
	return nil
}

// SubjectKind says whether a compliance result is for a host or a cluster
type SubjectKind string

const (
	SubjectHost    SubjectKind = "host"
	SubjectCluster SubjectKind = "cluster"
)

// ComplianceResult is the outcome of evaluating one host or cluster
type ComplianceResult struct {
	SubjectID       string      `json:"subject_id"`
	SubjectKind     SubjectKind `json:"subject_kind"`
	CPUCompliant    bool        `json:"cpu_compliant"`
	MemoryCompliant bool        `json:"memory_compliant"`
	DiskCompliant   bool        `json:"disk_compliant"`
	Compliant       bool        `json:"compliant"`

	// NonCompliantHosts lists failing members, clusters only
	NonCompliantHosts []string `json:"non_compliant_hosts,omitempty"`
}
