package aggregator

import (
	"sort"

	"github.com/opscart/capacity-compliance/pkg/models"
)

// clusterRelation is the host <-> cluster many-to-many relation for one pass
type clusterRelation struct {
	members map[string][]int // cluster name -> indices into hosts
	meta    map[string]models.ClusterMembership
}

// rollupClusters builds cluster aggregates from already folded hosts.
// Figures come from the host peak percentages only, raw snapshots are not rescanned.
func rollupClusters(hosts []models.HostAggregate) []models.ClusterAggregate {
	rel := clusterRelation{
		members: make(map[string][]int),
		meta:    make(map[string]models.ClusterMembership),
	}

	// hosts are sorted by id, so the first non-empty group/department wins deterministically
	for i := range hosts {
		memberships := hosts[i].Clusters
		if len(memberships) == 0 {
			memberships = []models.ClusterMembership{{ClusterName: models.UnassignedCluster}}
		}
		for _, m := range memberships {
			rel.members[m.ClusterName] = append(rel.members[m.ClusterName], i)

			meta, ok := rel.meta[m.ClusterName]
			if !ok {
				meta = models.ClusterMembership{ClusterName: m.ClusterName}
			}
			if meta.ClusterGroupName == "" {
				meta.ClusterGroupName = m.ClusterGroupName
			}
			if meta.DepartmentName == "" {
				meta.DepartmentName = m.DepartmentName
			}
			rel.meta[m.ClusterName] = meta
		}
	}

	names := make([]string, 0, len(rel.members))
	for name := range rel.members {
		names = append(names, name)
	}
	sort.Strings(names)

	clusters := make([]models.ClusterAggregate, 0, len(names))
	for _, name := range names {
		idx := rel.members[name]
		meta := rel.meta[name]

		cpu := make([]float64, 0, len(idx))
		mem := make([]float64, 0, len(idx))
		disk := make([]float64, 0, len(idx))
		hostIDs := make([]string, 0, len(idx))
		idcs := make(map[string]struct{})

		for _, i := range idx {
			h := &hosts[i]
			cpu = append(cpu, h.PeakCPUPercent)
			mem = append(mem, h.PeakMemoryPercent)
			disk = append(disk, h.PeakDiskPercent)
			hostIDs = append(hostIDs, h.HostID)
			if h.IDC.Name != "" {
				idcs[h.IDC.Name] = struct{}{}
			}
		}

		clusters = append(clusters, models.ClusterAggregate{
			ClusterName:      name,
			ClusterGroupName: meta.ClusterGroupName,
			DepartmentName:   meta.DepartmentName,
			HostCount:        len(hostIDs),
			HostIDs:          hostIDs,
			IDCs:             sortedKeys(idcs),
			CPU:              summarize(cpu),
			Memory:           summarize(mem),
			Disk:             summarize(disk),
		})
	}

	return clusters
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
