// Package aggregator folds raw host snapshots into per-host and per-cluster summaries.
package aggregator

import (
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/opscart/capacity-compliance/pkg/logging"
	"github.com/opscart/capacity-compliance/pkg/models"
)

// Result is the output of one aggregation pass
type Result struct {
	Hosts    []models.HostAggregate
	Clusters []models.ClusterAggregate

	// Skipped counts malformed snapshots that were dropped
	Skipped int
	// OutOfWindow counts snapshots outside the requested window
	OutOfWindow int
}

// Aggregator computes host and cluster aggregates. It holds no per-request state.
type Aggregator struct {
	workers int
	logger  *zap.Logger
}

// Option configures the aggregator
type Option func(*Aggregator)

// WithWorkers bounds the number of hosts folded concurrently
func WithWorkers(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithLogger sets the logger used to report skipped snapshots
func WithLogger(logger *zap.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logging.OrNop(logger)
	}
}

// New creates an aggregator
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		workers: runtime.GOMAXPROCS(0),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Aggregate is the package-level form of (*Aggregator).Aggregate with default options
func Aggregate(snapshots []models.ResourceSnapshot, window models.TimeRange) ([]models.HostAggregate, []models.ClusterAggregate) {
	res := New().Aggregate(snapshots, window)
	return res.Hosts, res.Clusters
}

// Aggregate folds snapshots into host and cluster aggregates.
// Hosts and clusters are returned sorted by identifier. A zero window disables
// the window check, otherwise snapshots outside it are ignored.
func (a *Aggregator) Aggregate(snapshots []models.ResourceSnapshot, window models.TimeRange) Result {
	res := Result{
		Hosts:    []models.HostAggregate{},
		Clusters: []models.ClusterAggregate{},
	}

	checkWindow := window.Validate() == nil

	byHost := make(map[string][]*models.ResourceSnapshot)
	for i := range snapshots {
		snap := &snapshots[i]
		if err := snap.Validate(); err != nil {
			res.Skipped++
			a.logger.Warn("skipping malformed snapshot",
				zap.String("host_id", snap.HostID),
				zap.Time("timestamp", snap.Timestamp),
				zap.Error(err))
			continue
		}
		if checkWindow && !window.Contains(snap.Timestamp) {
			res.OutOfWindow++
			continue
		}
		byHost[snap.HostID] = append(byHost[snap.HostID], snap)
	}

	if len(byHost) == 0 {
		return res
	}

	hostIDs := make([]string, 0, len(byHost))
	for id := range byHost {
		hostIDs = append(hostIDs, id)
	}
	sort.Strings(hostIDs)

	// Each worker owns exactly one slot, so no locking is needed
	hosts := make([]models.HostAggregate, len(hostIDs))
	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, id := range hostIDs {
		samples := byHost[id]
		g.Go(func() error {
			hosts[i] = foldHost(samples)
			return nil
		})
	}
	_ = g.Wait()

	res.Hosts = hosts
	res.Clusters = rollupClusters(hosts)

	a.logger.Debug("aggregation complete",
		zap.Int("snapshots", len(snapshots)),
		zap.Int("hosts", len(res.Hosts)),
		zap.Int("clusters", len(res.Clusters)),
		zap.Int("skipped", res.Skipped))

	return res
}

// foldHost computes the aggregate for one host from its valid samples
func foldHost(samples []*models.ResourceSnapshot) models.HostAggregate {
	ordered := make([]*models.ResourceSnapshot, len(samples))
	copy(ordered, samples)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	agg := models.HostAggregate{
		HostID:      ordered[0].HostID,
		SampleCount: len(ordered),
	}

	var cpuPeakSample, memPeakSample, diskPeakSample *models.ResourceSnapshot
	cpuValues := make([]float64, 0, len(ordered))
	memValues := make([]float64, 0, len(ordered))
	diskValues := make([]float64, 0, len(ordered))
	memberships := newMembershipSet()

	for _, s := range ordered {
		memPct, memOK := s.MemoryPercent()
		diskPct, diskOK := s.DiskPercent()
		if !memOK || !diskOK {
			agg.InsufficientData = true
		}

		cpuValues = append(cpuValues, s.CPULoadPercent)
		memValues = append(memValues, memPct)
		diskValues = append(diskValues, diskPct)

		// >= keeps the latest sample on ties since samples are time ordered
		if cpuPeakSample == nil || s.CPULoadPercent >= agg.PeakCPUPercent {
			agg.PeakCPUPercent = s.CPULoadPercent
			cpuPeakSample = s
		}
		if memPeakSample == nil || memPct >= agg.PeakMemoryPercent {
			agg.PeakMemoryPercent = memPct
			memPeakSample = s
		}
		if diskPeakSample == nil || diskPct >= agg.PeakDiskPercent {
			agg.PeakDiskPercent = diskPct
			diskPeakSample = s
		}

		if s.HostName != "" {
			agg.HostName = s.HostName
		}
		if s.IDC.Name != "" || s.IDC.Code != "" {
			agg.IDC = s.IDC
		}
		if s.CPUCores > 0 {
			agg.CPUCores = s.CPUCores
		}
		agg.LastSeen = s.Timestamp

		for _, m := range s.Clusters {
			memberships.add(m)
		}
	}

	agg.AvgCPUPercent = calculateAverage(cpuValues)
	agg.AvgMemoryPercent = calculateAverage(memValues)
	agg.AvgDiskPercent = calculateAverage(diskValues)

	agg.PeakUsedMemory = memPeakSample.UsedMemory
	agg.PeakTotalMemory = memPeakSample.TotalMemory
	agg.PeakUsedDisk = diskPeakSample.UsedDisk
	agg.PeakTotalDisk = diskPeakSample.TotalDisk

	agg.LatestPeakAt = cpuPeakSample.Timestamp
	for _, s := range []*models.ResourceSnapshot{memPeakSample, diskPeakSample} {
		if s.Timestamp.After(agg.LatestPeakAt) {
			agg.LatestPeakAt = s.Timestamp
		}
	}

	agg.Clusters = memberships.list()
	return agg
}

// membershipSet deduplicates cluster memberships by cluster name
type membershipSet struct {
	byName map[string]*models.ClusterMembership
}

func newMembershipSet() *membershipSet {
	return &membershipSet{byName: make(map[string]*models.ClusterMembership)}
}

func (s *membershipSet) add(m models.ClusterMembership) {
	if m.ClusterName == "" {
		return
	}
	existing, ok := s.byName[m.ClusterName]
	if !ok {
		cp := m
		s.byName[m.ClusterName] = &cp
		return
	}
	if existing.ClusterGroupName == "" {
		existing.ClusterGroupName = m.ClusterGroupName
	}
	if existing.DepartmentName == "" {
		existing.DepartmentName = m.DepartmentName
	}
}

func (s *membershipSet) list() []models.ClusterMembership {
	out := make([]models.ClusterMembership, 0, len(s.byName))
	for _, m := range s.byName {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ClusterName < out[j].ClusterName
	})
	return out
}
