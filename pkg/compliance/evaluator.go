// Package compliance classifies hosts and clusters against threshold bands.
//
// Every function here is pure: results depend only on the aggregate and the
// thresholds passed in, nothing is cached between calls.
package compliance

import (
	"sort"

	"github.com/opscart/capacity-compliance/pkg/models"
)

// EvaluateHost checks a host's peak percentages against the bands
func EvaluateHost(host models.HostAggregate, thresholds models.Thresholds) models.ComplianceResult {
	cpuOK := thresholds.CPU.Contains(host.PeakCPUPercent)
	memOK := thresholds.Memory.Contains(host.PeakMemoryPercent)
	diskOK := thresholds.Disk.Contains(host.PeakDiskPercent)

	return models.ComplianceResult{
		SubjectID:       host.HostID,
		SubjectKind:     models.SubjectHost,
		CPUCompliant:    cpuOK,
		MemoryCompliant: memOK,
		DiskCompliant:   diskOK,
		Compliant:       cpuOK && memOK && diskOK,
	}
}

// EvaluateCluster derives a cluster result from its members' host results.
// A cluster is compliant only if it has at least one resolved member and
// every member is compliant. Members missing from hostResults count as unresolved.
func EvaluateCluster(cluster models.ClusterAggregate, hostResults map[string]models.ComplianceResult) models.ComplianceResult {
	result := models.ComplianceResult{
		SubjectID:       cluster.ClusterName,
		SubjectKind:     models.SubjectCluster,
		CPUCompliant:    true,
		MemoryCompliant: true,
		DiskCompliant:   true,
		Compliant:       true,
	}

	resolved := 0
	for _, hostID := range cluster.HostIDs {
		hr, ok := hostResults[hostID]
		if !ok {
			continue
		}
		resolved++

		result.CPUCompliant = result.CPUCompliant && hr.CPUCompliant
		result.MemoryCompliant = result.MemoryCompliant && hr.MemoryCompliant
		result.DiskCompliant = result.DiskCompliant && hr.DiskCompliant
		if !hr.Compliant {
			result.Compliant = false
			result.NonCompliantHosts = append(result.NonCompliantHosts, hostID)
		}
	}

	if resolved == 0 {
		result.CPUCompliant = false
		result.MemoryCompliant = false
		result.DiskCompliant = false
		result.Compliant = false
	}

	sort.Strings(result.NonCompliantHosts)
	return result
}

// Results holds host and cluster results keyed by subject id
type Results struct {
	Hosts    map[string]models.ComplianceResult
	Clusters map[string]models.ComplianceResult
}

// Evaluate validates the thresholds and evaluates every host, then every cluster
func Evaluate(hosts []models.HostAggregate, clusters []models.ClusterAggregate, thresholds models.Thresholds) (*Results, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}

	res := &Results{
		Hosts:    make(map[string]models.ComplianceResult, len(hosts)),
		Clusters: make(map[string]models.ComplianceResult, len(clusters)),
	}

	for _, h := range hosts {
		res.Hosts[h.HostID] = EvaluateHost(h, thresholds)
	}
	for _, c := range clusters {
		res.Clusters[c.ClusterName] = EvaluateCluster(c, res.Hosts)
	}

	return res, nil
}

// NonCompliantCount returns how many host results are non-compliant
func (r *Results) NonCompliantCount() int {
	count := 0
	for _, hr := range r.Hosts {
		if !hr.Compliant {
			count++
		}
	}
	return count
}
