package aggregator

import (
	"math"
	"testing"
	"time"

	"github.com/opscart/capacity-compliance/pkg/models"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)


func snapshot(host string, at time.Time, cpu, usedMem, usedDisk float64, clusters ...string) models.ResourceSnapshot {
	s := models.ResourceSnapshot{
		HostID:         host,
		Timestamp:      at,
		CPULoadPercent: cpu,
		UsedMemory:     usedMem,
		TotalMemory:    100,
		UsedDisk:       usedDisk,
		TotalDisk:      100,
		CPUCores:       8,
		IDC:            models.IDC{Name: "idc-east", Code: "E1"},
	}
	for _, c := range clusters {
		s.Clusters = append(s.Clusters, models.ClusterMembership{
			ClusterName:      c,
			ClusterGroupName: "group-" + c,
			DepartmentName:   "ops",
		})
	}
	return s
}

func TestPeakIndependence(t *testing.T) {
	snaps := []models.ResourceSnapshot{
		snapshot("10.0.0.1", day0, 90, 10, 20, "web"),
		snapshot("10.0.0.1", day0.Add(time.Hour), 10, 90, 30, "web"),
	}

	hosts, _ := Aggregate(snaps, models.TimeRange{})
	if len(hosts) != 1 {
		t.Fatalf("Expected 1 host, got %d", len(hosts))
	}

	h := hosts[0]
	if h.PeakCPUPercent != 90 {
		t.Errorf("Expected peak cpu 90, got %.2f", h.PeakCPUPercent)
	}
	if h.PeakMemoryPercent != 90 {
		t.Errorf("Expected peak memory 90, got %.2f", h.PeakMemoryPercent)
	}
	if h.PeakDiskPercent != 30 {
		t.Errorf("Expected peak disk 30, got %.2f", h.PeakDiskPercent)
	}
	if h.PeakUsedMemory != 90 || h.PeakTotalMemory != 100 {
		t.Errorf("Expected peak memory sample 90/100, got %.0f/%.0f", h.PeakUsedMemory, h.PeakTotalMemory)
	}
	if !h.LatestPeakAt.Equal(day0.Add(time.Hour)) {
		t.Errorf("Expected latest peak at %v, got %v", day0.Add(time.Hour), h.LatestPeakAt)
	}
	if h.AvgCPUPercent != 50 {
		t.Errorf("Expected avg cpu 50, got %.2f", h.AvgCPUPercent)
	}
}

func TestPeakIsMaxOfRatios(t *testing.T) {
	// 50/100 = 50% beats 150/400 = 37.5% even though 150 and 400 are the maxima
	a := snapshot("h1", day0, 1, 50, 0)
	b := snapshot("h1", day0.Add(time.Minute), 1, 150, 0)
	b.TotalMemory = 400

	hosts, _ := Aggregate([]models.ResourceSnapshot{a, b}, models.TimeRange{})
	if hosts[0].PeakMemoryPercent != 50 {
		t.Errorf("Expected peak memory 50%%, got %.2f", hosts[0].PeakMemoryPercent)
	}
	if hosts[0].PeakUsedMemory != 50 || hosts[0].PeakTotalMemory != 100 {
		t.Errorf("Expected absolute peak values from the same sample, got %.0f/%.0f",
			hosts[0].PeakUsedMemory, hosts[0].PeakTotalMemory)
	}
}

func TestCPUSpikesAreNotClamped(t *testing.T) {
	hosts, _ := Aggregate([]models.ResourceSnapshot{snapshot("h1", day0, 250, 1, 1)}, models.TimeRange{})
	if hosts[0].PeakCPUPercent != 250 {
		t.Errorf("Expected cpu spike 250 preserved, got %.2f", hosts[0].PeakCPUPercent)
	}
}

func TestEmptyInput(t *testing.T) {
	hosts, clusters := Aggregate(nil, models.TimeRange{})
	if hosts == nil || clusters == nil {
		t.Fatal("Expected empty non-nil slices")
	}
	if len(hosts) != 0 || len(clusters) != 0 {
		t.Errorf("Expected no aggregates, got %d hosts %d clusters", len(hosts), len(clusters))
	}
}

func TestZeroTotalsFlagInsufficientData(t *testing.T) {
	s := snapshot("h1", day0, 10, 0, 0)
	s.TotalMemory = 0
	s.TotalDisk = 0

	hosts, _ := Aggregate([]models.ResourceSnapshot{s}, models.TimeRange{})
	h := hosts[0]
	if !h.InsufficientData {
		t.Error("Expected InsufficientData flag")
	}
	if h.PeakMemoryPercent != 0 || h.PeakDiskPercent != 0 {
		t.Errorf("Expected zero percentages, got mem=%.2f disk=%.2f", h.PeakMemoryPercent, h.PeakDiskPercent)
	}
}

func TestMalformedSnapshotsAreSkipped(t *testing.T) {
	bad := snapshot("h1", day0, math.NaN(), 10, 10)
	neg := snapshot("h1", day0, 10, -5, 10)
	good := snapshot("h1", day0.Add(time.Minute), 40, 10, 10)

	res := New().Aggregate([]models.ResourceSnapshot{bad, neg, good}, models.TimeRange{})
	if res.Skipped != 2 {
		t.Errorf("Expected 2 skipped snapshots, got %d", res.Skipped)
	}
	if len(res.Hosts) != 1 || res.Hosts[0].SampleCount != 1 {
		t.Fatalf("Expected host with 1 sample, got %+v", res.Hosts)
	}
	if res.Hosts[0].PeakCPUPercent != 40 {
		t.Errorf("Expected peak cpu 40, got %.2f", res.Hosts[0].PeakCPUPercent)
	}
}

func TestWindowFiltering(t *testing.T) {
	window := models.TimeRange{Start: day0, End: day0.Add(24 * time.Hour)}
	snaps := []models.ResourceSnapshot{
		snapshot("h1", day0.Add(-time.Hour), 99, 10, 10),
		snapshot("h1", day0.Add(time.Hour), 20, 10, 10),
	}

	res := New().Aggregate(snaps, window)
	if res.OutOfWindow != 1 {
		t.Errorf("Expected 1 out-of-window snapshot, got %d", res.OutOfWindow)
	}
	if res.Hosts[0].PeakCPUPercent != 20 {
		t.Errorf("Expected peak cpu 20, got %.2f", res.Hosts[0].PeakCPUPercent)
	}
}

func TestClusterRollup(t *testing.T) {
	snaps := []models.ResourceSnapshot{
		snapshot("h1", day0, 20, 40, 10, "web", "batch"),
		snapshot("h1", day0.Add(time.Hour), 60, 40, 10, "web"),
		snapshot("h2", day0, 40, 80, 30, "web"),
		snapshot("h3", day0, 10, 10, 10),
	}

	_, clusters := Aggregate(snaps, models.TimeRange{})

	byName := make(map[string]models.ClusterAggregate)
	for _, c := range clusters {
		byName[c.ClusterName] = c
	}

	web, ok := byName["web"]
	if !ok {
		t.Fatal("Expected cluster web")
	}
	if web.HostCount != 2 {
		t.Errorf("Expected 2 hosts in web, got %d", web.HostCount)
	}
	if web.CPU.Peak != 60 || web.CPU.Min != 40 || web.CPU.Mean != 50 {
		t.Errorf("Unexpected web cpu stats: %+v", web.CPU)
	}
	if web.Memory.Mean != 60 {
		t.Errorf("Expected web mean memory 60, got %.2f", web.Memory.Mean)
	}
	if web.ClusterGroupName != "group-web" || web.DepartmentName != "ops" {
		t.Errorf("Unexpected web metadata: %s / %s", web.ClusterGroupName, web.DepartmentName)
	}
	if len(web.IDCs) != 1 || web.IDCs[0] != "idc-east" {
		t.Errorf("Expected IDC idc-east, got %v", web.IDCs)
	}

	batch := byName["batch"]
	if batch.HostCount != 1 || batch.HostIDs[0] != "h1" {
		t.Errorf("Expected batch to contain h1 only, got %v", batch.HostIDs)
	}

	unassigned, ok := byName[models.UnassignedCluster]
	if !ok {
		t.Fatal("Expected orphan host in unassigned bucket")
	}
	if unassigned.HostCount != 1 || unassigned.HostIDs[0] != "h3" {
		t.Errorf("Expected h3 unassigned, got %v", unassigned.HostIDs)
	}
}

func TestHostCountedOncePerCluster(t *testing.T) {
	var snaps []models.ResourceSnapshot
	for i := 0; i < 5; i++ {
		snaps = append(snaps, snapshot("h1", day0.Add(time.Duration(i)*time.Minute), 10, 10, 10, "web"))
	}

	_, clusters := Aggregate(snaps, models.TimeRange{})
	if len(clusters) != 1 || clusters[0].HostCount != 1 {
		t.Fatalf("Expected a single web cluster with 1 host, got %+v", clusters)
	}
}

func TestDeterministicAcrossWorkers(t *testing.T) {
	var snaps []models.ResourceSnapshot
	for i := 0; i < 200; i++ {
		host := string(rune('a'+i%26)) + "-host"
		snaps = append(snaps, snapshot(host, day0.Add(time.Duration(i)*time.Minute), float64(i%97), float64(i%50), float64(i%70), "c"+string(rune('0'+i%3))))
	}

	serial := New(WithWorkers(1)).Aggregate(snaps, models.TimeRange{})
	parallel := New(WithWorkers(8)).Aggregate(snaps, models.TimeRange{})

	if len(serial.Hosts) != len(parallel.Hosts) {
		t.Fatalf("Host count differs: %d vs %d", len(serial.Hosts), len(parallel.Hosts))
	}
	for i := range serial.Hosts {
		if serial.Hosts[i].HostID != parallel.Hosts[i].HostID ||
			serial.Hosts[i].PeakCPUPercent != parallel.Hosts[i].PeakCPUPercent {
			t.Errorf("Host %d differs between serial and parallel runs", i)
		}
	}
	for i := 1; i < len(parallel.Hosts); i++ {
		if parallel.Hosts[i-1].HostID >= parallel.Hosts[i].HostID {
			t.Errorf("Hosts not sorted at index %d", i)
		}
	}
}

func TestSummarize(t *testing.T) {
	stats := summarize([]float64{10, 30, 20})
	if stats.Mean != 20 || stats.Peak != 30 || stats.Min != 10 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if empty := summarize(nil); empty != (models.UsageStats{}) {
		t.Errorf("Expected zero stats, got %+v", empty)
	}
}
