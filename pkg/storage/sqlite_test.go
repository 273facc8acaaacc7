package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opscart/capacity-compliance/pkg/datasource"
	"github.com/opscart/capacity-compliance/pkg/models"
)

// compile-time check that stores plug into the engine
var (
	_ datasource.Source = (*SQLiteStore)(nil)
	_ datasource.Source = (*PostgresStore)(nil)
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func snapshotAt(host string, hours int, usedDisk float64) models.ResourceSnapshot {
	return models.ResourceSnapshot{
		HostID:         host,
		HostName:       "name-" + host,
		Timestamp:      base.Add(time.Duration(hours) * time.Hour),
		CPULoadPercent: 130.5,
		CPUCores:       16,
		UsedMemory:     30,
		TotalMemory:    64,
		UsedDisk:       usedDisk,
		TotalDisk:      500,
		Clusters: []models.ClusterMembership{
			{ClusterName: "web", ClusterGroupName: "prod", DepartmentName: "ops"},
			{ClusterName: "cache"},
		},
		IDC: models.IDC{Name: "shanghai", Code: "sh1"},
	}
}

func TestSaveAndFetchRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saved, err := store.SaveSnapshots(ctx, []models.ResourceSnapshot{
		snapshotAt("10.0.0.2", 1, 100),
		snapshotAt("10.0.0.1", 1, 110),
		snapshotAt("10.0.0.1", 0, 90),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, saved)

	snaps, err := store.FetchSnapshots(ctx, base, base.Add(time.Hour), nil)
	require.NoError(t, err)
	require.Len(t, snaps, 3)

	assert.Equal(t, "10.0.0.1", snaps[0].HostID)
	assert.True(t, snaps[0].Timestamp.Equal(base))
	assert.Equal(t, "10.0.0.1", snaps[1].HostID)
	assert.Equal(t, "10.0.0.2", snaps[2].HostID)

	want := snapshotAt("10.0.0.1", 1, 110)
	got := snaps[1]
	assert.True(t, want.Timestamp.Equal(got.Timestamp))
	got.Timestamp = want.Timestamp
	assert.Equal(t, want, got)
}

func TestSaveIsIdempotentPerHostAndTime(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.SaveSnapshots(ctx, []models.ResourceSnapshot{snapshotAt("a", 0, 10)})
	require.NoError(t, err)

	dup := snapshotAt("a", 0, 99)
	saved, err := store.SaveSnapshots(ctx, []models.ResourceSnapshot{dup, snapshotAt("a", 1, 20)})
	require.NoError(t, err)
	assert.Equal(t, 1, saved)

	count, err := store.CountSnapshots(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	snaps, err := store.FetchSnapshots(ctx, base, base, nil)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 10.0, snaps[0].UsedDisk, "stored snapshots are immutable")
}

func TestSaveRejectsMalformed(t *testing.T) {
	store := newTestStore(t)
	bad := snapshotAt("a", 0, 600) // used > total

	_, err := store.SaveSnapshots(context.Background(), []models.ResourceSnapshot{snapshotAt("b", 0, 1), bad})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrMalformedSnapshot))

	count, err := store.CountSnapshots(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count, "nothing is written when any snapshot is malformed")
}

func TestFetchHostFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.SaveSnapshots(ctx, []models.ResourceSnapshot{
		snapshotAt("a", 0, 1), snapshotAt("b", 0, 2), snapshotAt("c", 0, 3),
	})
	require.NoError(t, err)

	snaps, err := store.FetchSnapshots(ctx, base, base, []string{"a", "c"})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "a", snaps[0].HostID)
	assert.Equal(t, "c", snaps[1].HostID)
}

func TestFetchEmptyIsNonNil(t *testing.T) {
	store := newTestStore(t)

	snaps, err := store.FetchSnapshots(context.Background(), base, base.Add(time.Hour), nil)
	require.NoError(t, err)
	assert.NotNil(t, snaps)
	assert.Empty(t, snaps)
}

func TestFetchDiskHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.SaveSnapshots(ctx, []models.ResourceSnapshot{
		snapshotAt("a", 48, 140), snapshotAt("a", 0, 100), snapshotAt("a", 24, 120), snapshotAt("b", 24, 1),
	})
	require.NoError(t, err)

	points, err := store.FetchDiskHistory(ctx, "a", base, base.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, []float64{100, 120, 140}, []float64{points[0].UsedDisk, points[1].UsedDisk, points[2].UsedDisk})
	assert.Equal(t, 500.0, points[2].TotalDisk)
}

func TestNewStoreFactory(t *testing.T) {
	store, err := New(Config{Type: "sqlite", Path: filepath.Join(t.TempDir(), "f.db")})
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, "SQLite", store.Name())
	assert.True(t, store.IsAvailable(context.Background()))

	_, err = New(Config{Type: "oracle"})
	assert.Error(t, err)
}
