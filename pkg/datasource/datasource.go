// Package datasource adapts snapshot stores to the engine.
package datasource

import (
	"context"
	"sort"
	"time"

	"github.com/opscart/capacity-compliance/pkg/models"
)

// SnapshotSource returns the snapshots recorded inside [start, end].
// An empty result is an empty, non-nil slice; an error means the fetch itself failed.
type SnapshotSource interface {
	FetchSnapshots(ctx context.Context, start, end time.Time, hostFilter []string) ([]models.ResourceSnapshot, error)
}

// DiskHistorySource returns one host's disk series inside [start, end], ordered by time
type DiskHistorySource interface {
	FetchDiskHistory(ctx context.Context, hostID string, start, end time.Time) ([]models.DiskSamplePoint, error)
}

// Source is a complete adapter
type Source interface {
	SnapshotSource
	DiskHistorySource
	IsAvailable(ctx context.Context) bool
	Name() string
}

// Config selects and configures a source
type Config struct {
	PrometheusURL string
	Step          time.Duration
	Timeout       time.Duration
	Labels        LabelConfig
}

// LabelConfig names the labels that carry cluster membership and IDC
type LabelConfig struct {
	Cluster      string `mapstructure:"cluster"`
	ClusterGroup string `mapstructure:"cluster_group"`
	Department   string `mapstructure:"department"`
	IDC          string `mapstructure:"idc"`
	IDCCode      string `mapstructure:"idc_code"`
	HostName     string `mapstructure:"host_name"`
}

// DefaultLabels returns the label names used when none are configured
func DefaultLabels() LabelConfig {
	return LabelConfig{
		Cluster:      "cluster",
		ClusterGroup: "cluster_group",
		Department:   "department",
		IDC:          "idc",
		IDCCode:      "idc_code",
		HostName:     "nodename",
	}
}

func (l LabelConfig) membership(labels map[string]string) []models.ClusterMembership {
	name := labels[l.Cluster]
	if name == "" {
		return nil
	}
	return []models.ClusterMembership{{
		ClusterName:      name,
		ClusterGroupName: labels[l.ClusterGroup],
		DepartmentName:   labels[l.Department],
	}}
}

func (l LabelConfig) idc(labels map[string]string) models.IDC {
	return models.IDC{Name: labels[l.IDC], Code: labels[l.IDCCode]}
}

// DiskHistory extracts one host's disk series from snapshots, ordered by time
func DiskHistory(snapshots []models.ResourceSnapshot, hostID string) []models.DiskSamplePoint {
	points := make([]models.DiskSamplePoint, 0)
	for i := range snapshots {
		if snapshots[i].HostID == hostID {
			points = append(points, snapshots[i].DiskSample())
		}
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points
}

func hostSet(hostFilter []string) map[string]bool {
	if len(hostFilter) == 0 {
		return nil
	}
	set := make(map[string]bool, len(hostFilter))
	for _, h := range hostFilter {
		set[h] = true
	}
	return set
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}
