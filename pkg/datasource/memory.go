package datasource

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/opscart/capacity-compliance/pkg/models"
)

// MemorySource keeps snapshots in process. Used by tests and by ingest dry runs.
type MemorySource struct {
	mu        sync.RWMutex
	snapshots []models.ResourceSnapshot
}

// NewMemorySource creates an in-memory source seeded with snapshots
func NewMemorySource(snapshots ...models.ResourceSnapshot) *MemorySource {
	m := &MemorySource{}
	m.Add(snapshots...)
	return m
}

// Add appends snapshots; stored snapshots are never modified
func (m *MemorySource) Add(snapshots ...models.ResourceSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, snapshots...)
}

func (m *MemorySource) FetchSnapshots(ctx context.Context, start, end time.Time, hostFilter []string) ([]models.ResourceSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	hosts := hostSet(hostFilter)
	out := make([]models.ResourceSnapshot, 0)
	for _, s := range m.snapshots {
		if hosts != nil && !hosts[s.HostID] {
			continue
		}
		if inRange(s.Timestamp, start, end) {
			out = append(out, s)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].HostID < out[j].HostID
	})
	return out, nil
}

func (m *MemorySource) FetchDiskHistory(ctx context.Context, hostID string, start, end time.Time) ([]models.DiskSamplePoint, error) {
	snapshots, err := m.FetchSnapshots(ctx, start, end, []string{hostID})
	if err != nil {
		return nil, err
	}
	return DiskHistory(snapshots, hostID), nil
}

func (m *MemorySource) IsAvailable(ctx context.Context) bool {
	return true
}

func (m *MemorySource) Name() string {
	return "Memory"
}
