package compliance

import (
	"errors"
	"testing"

	"github.com/opscart/capacity-compliance/pkg/models"
)

func bands(min, max float64) models.Thresholds {
	band := models.ThresholdBand{Min: min, Max: max}
	return models.Thresholds{CPU: band, Memory: band, Disk: band}
}

func host(id string, cpu, mem, disk float64) models.HostAggregate {
	return models.HostAggregate{
		HostID:            id,
		PeakCPUPercent:    cpu,
		PeakMemoryPercent: mem,
		PeakDiskPercent:   disk,
	}
}

func TestEvaluateHost(t *testing.T) {
	tests := []struct {
		name      string
		host      models.HostAggregate
		expectCPU bool
		expectMem bool
		expectDsk bool
		expectAll bool
	}{
		{
			name:      "all within band",
			host:      host("h1", 50, 50, 50),
			expectCPU: true, expectMem: true, expectDsk: true, expectAll: true,
		},
		{
			name:      "value equal to max is compliant",
			host:      host("h1", 80, 80, 80),
			expectCPU: true, expectMem: true, expectDsk: true, expectAll: true,
		},
		{
			name:      "value equal to min is compliant",
			host:      host("h1", 10, 10, 10),
			expectCPU: true, expectMem: true, expectDsk: true, expectAll: true,
		},
		{
			name:      "cpu above max",
			host:      host("h1", 80.01, 50, 50),
			expectCPU: false, expectMem: true, expectDsk: true, expectAll: false,
		},
		{
			name:      "memory below min",
			host:      host("h1", 50, 9.99, 50),
			expectCPU: true, expectMem: false, expectDsk: true, expectAll: false,
		},
		{
			name:      "cpu spike above 100",
			host:      host("h1", 140, 50, 50),
			expectCPU: false, expectMem: true, expectDsk: true, expectAll: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := EvaluateHost(tt.host, bands(10, 80))

			if res.CPUCompliant != tt.expectCPU {
				t.Errorf("cpu: expected %v, got %v", tt.expectCPU, res.CPUCompliant)
			}
			if res.MemoryCompliant != tt.expectMem {
				t.Errorf("memory: expected %v, got %v", tt.expectMem, res.MemoryCompliant)
			}
			if res.DiskCompliant != tt.expectDsk {
				t.Errorf("disk: expected %v, got %v", tt.expectDsk, res.DiskCompliant)
			}
			if res.Compliant != tt.expectAll {
				t.Errorf("overall: expected %v, got %v", tt.expectAll, res.Compliant)
			}
			if res.SubjectKind != models.SubjectHost {
				t.Errorf("Expected host subject, got %s", res.SubjectKind)
			}
		})
	}
}

func TestClusterStrictness(t *testing.T) {
	hosts := []models.HostAggregate{
		host("h1", 10, 10, 10),
		host("h2", 20, 20, 20),
		host("h3", 30, 30, 30),
		host("h4", 95, 30, 30),
	}
	cluster := models.ClusterAggregate{
		ClusterName: "web",
		HostCount:   4,
		HostIDs:     []string{"h1", "h2", "h3", "h4"},
		// mean is well inside the band, compliance must still fail
		CPU: models.UsageStats{Mean: 38.75, Peak: 95, Min: 10},
	}

	res, err := Evaluate(hosts, []models.ClusterAggregate{cluster}, bands(0, 80))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	cr := res.Clusters["web"]
	if cr.Compliant {
		t.Error("Expected cluster with one failing host to be non-compliant")
	}
	if cr.CPUCompliant {
		t.Error("Expected cluster cpu flag to be false")
	}
	if !cr.MemoryCompliant || !cr.DiskCompliant {
		t.Error("Expected memory and disk flags to stay true")
	}
	if len(cr.NonCompliantHosts) != 1 || cr.NonCompliantHosts[0] != "h4" {
		t.Errorf("Expected h4 listed as failing, got %v", cr.NonCompliantHosts)
	}
	if res.NonCompliantCount() != 1 {
		t.Errorf("Expected 1 non-compliant host, got %d", res.NonCompliantCount())
	}
}

func TestEmptyClusterIsNonCompliant(t *testing.T) {
	cr := EvaluateCluster(models.ClusterAggregate{ClusterName: "ghost"}, map[string]models.ComplianceResult{})
	if cr.Compliant {
		t.Error("Expected cluster with zero hosts to be non-compliant")
	}
	if cr.CPUCompliant || cr.MemoryCompliant || cr.DiskCompliant {
		t.Error("Expected all resource flags false for empty cluster")
	}
}

func TestUnresolvedMembersIgnored(t *testing.T) {
	hostResults := map[string]models.ComplianceResult{
		"h1": EvaluateHost(host("h1", 10, 10, 10), bands(0, 80)),
	}
	cluster := models.ClusterAggregate{ClusterName: "web", HostIDs: []string{"h1", "missing"}}

	if cr := EvaluateCluster(cluster, hostResults); !cr.Compliant {
		t.Error("Expected cluster compliant when every resolved member is compliant")
	}
}

func TestEvaluateRejectsInvalidThreshold(t *testing.T) {
	th := models.DefaultThresholds()
	th.Disk = models.ThresholdBand{Min: 90, Max: 10}

	_, err := Evaluate(nil, nil, th)
	if !errors.Is(err, models.ErrInvalidThreshold) {
		t.Fatalf("Expected ErrInvalidThreshold, got %v", err)
	}
}

func TestThresholdsAreNotCached(t *testing.T) {
	h := host("h1", 70, 10, 10)

	if !EvaluateHost(h, bands(0, 80)).Compliant {
		t.Error("Expected compliant under 0-80")
	}
	if EvaluateHost(h, bands(0, 60)).Compliant {
		t.Error("Expected non-compliant under 0-60")
	}
}
