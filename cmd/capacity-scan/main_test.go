package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opscart/capacity-compliance/pkg/config"
)

func TestReadSnapshotsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snaps.json")
	data := `[{"host_id":"h1","timestamp":"2024-01-01T00:00:00Z","cpu_load_percent":50,"cpu_core_count":4,
"used_memory":4,"total_memory":8,"used_disk":10,"total_disk":100,
"clusters":[{"cluster_name":"c1","cluster_group_name":"g1","department_name":"d1"}],
"idc":{"idc_name":"east","idc_code":"E1"}}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	snaps, err := readSnapshots(path)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "h1", snaps[0].HostID)
	assert.Equal(t, 4, snaps[0].CPUCores)
	assert.Equal(t, "c1", snaps[0].Clusters[0].ClusterName)
	assert.Equal(t, "E1", snaps[0].IDC.Code)
	assert.True(t, snaps[0].Timestamp.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestReadSnapshotsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snaps.yaml")
	data := `- host_id: h2
  timestamp: 2024-01-02T12:00:00Z
  cpu_load_percent: 20
  used_disk: 30
  total_disk: 60
  clusters:
    - cluster_name: c2
  idc:
    idc_name: west
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	snaps, err := readSnapshots(path)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "h2", snaps[0].HostID)
	assert.Equal(t, 30.0, snaps[0].UsedDisk)
	assert.Equal(t, "c2", snaps[0].Clusters[0].ClusterName)
	assert.Equal(t, "west", snaps[0].IDC.Name)
	assert.True(t, snaps[0].Timestamp.Equal(time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)))
}

func TestReadSnapshotsErrors(t *testing.T) {
	_, err := readSnapshots(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, err = readSnapshots(path)
	assert.Error(t, err)
}

func TestWindow(t *testing.T) {
	cfg = config.NewConfig()
	cfg.MetricsLookbackDays = 7
	windowEnd = "2024-03-08T00:00:00Z"
	defer func() { windowEnd = "" }()

	win, err := window()
	require.NoError(t, err)
	assert.True(t, win.End.Equal(time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)))
	assert.True(t, win.Start.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))

	windowEnd = "yesterday"
	_, err = window()
	assert.Error(t, err)
}
