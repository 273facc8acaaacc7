package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/opscart/capacity-compliance/pkg/models"
)

// sqlStore holds the queries shared by the postgres and sqlite stores.
// Queries are written with ? placeholders and rebound for the driver.
type sqlStore struct {
	db *sqlx.DB
}

type snapshotRow struct {
	ID             string  `db:"id"`
	HostID         string  `db:"host_id"`
	HostName       string  `db:"host_name"`
	RecordedAt     int64   `db:"recorded_at"`
	CPULoadPercent float64 `db:"cpu_load_percent"`
	CPUCores       int     `db:"cpu_cores"`
	UsedMemory     float64 `db:"used_memory"`
	TotalMemory    float64 `db:"total_memory"`
	UsedDisk       float64 `db:"used_disk"`
	TotalDisk      float64 `db:"total_disk"`
	Clusters       string  `db:"clusters"`
	IDCName        string  `db:"idc_name"`
	IDCCode        string  `db:"idc_code"`
}

func toRow(s *models.ResourceSnapshot) (snapshotRow, error) {
	clusters := s.Clusters
	if clusters == nil {
		clusters = []models.ClusterMembership{}
	}
	encoded, err := json.Marshal(clusters)
	if err != nil {
		return snapshotRow{}, fmt.Errorf("failed to encode clusters: %w", err)
	}

	return snapshotRow{
		ID:             uuid.New().String(),
		HostID:         s.HostID,
		HostName:       s.HostName,
		RecordedAt:     s.Timestamp.UnixNano(),
		CPULoadPercent: s.CPULoadPercent,
		CPUCores:       s.CPUCores,
		UsedMemory:     s.UsedMemory,
		TotalMemory:    s.TotalMemory,
		UsedDisk:       s.UsedDisk,
		TotalDisk:      s.TotalDisk,
		Clusters:       string(encoded),
		IDCName:        s.IDC.Name,
		IDCCode:        s.IDC.Code,
	}, nil
}

func (r *snapshotRow) toSnapshot() (models.ResourceSnapshot, error) {
	var clusters []models.ClusterMembership
	if r.Clusters != "" {
		if err := json.Unmarshal([]byte(r.Clusters), &clusters); err != nil {
			return models.ResourceSnapshot{}, fmt.Errorf("failed to decode clusters for %s: %w", r.HostID, err)
		}
	}

	return models.ResourceSnapshot{
		HostID:         r.HostID,
		HostName:       r.HostName,
		Timestamp:      time.Unix(0, r.RecordedAt).UTC(),
		CPULoadPercent: r.CPULoadPercent,
		CPUCores:       r.CPUCores,
		UsedMemory:     r.UsedMemory,
		TotalMemory:    r.TotalMemory,
		UsedDisk:       r.UsedDisk,
		TotalDisk:      r.TotalDisk,
		Clusters:       clusters,
		IDC:            models.IDC{Name: r.IDCName, Code: r.IDCCode},
	}, nil
}

const insertSnapshot = `
	INSERT INTO snapshots (
		id, host_id, host_name, recorded_at, cpu_load_percent, cpu_cores,
		used_memory, total_memory, used_disk, total_disk, clusters, idc_name, idc_code
	) VALUES (
		:id, :host_id, :host_name, :recorded_at, :cpu_load_percent, :cpu_cores,
		:used_memory, :total_memory, :used_disk, :total_disk, :clusters, :idc_name, :idc_code
	)
	ON CONFLICT (host_id, recorded_at) DO NOTHING
`

// SaveSnapshots validates every snapshot before writing any, then inserts them in one transaction
func (s *sqlStore) SaveSnapshots(ctx context.Context, snapshots []models.ResourceSnapshot) (int, error) {
	rows := make([]snapshotRow, 0, len(snapshots))
	for i := range snapshots {
		if err := snapshots[i].Validate(); err != nil {
			return 0, fmt.Errorf("snapshot %d: %w", i, err)
		}
		row, err := toRow(&snapshots[i])
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	saved := 0
	for i := range rows {
		res, err := tx.NamedExecContext(ctx, insertSnapshot, rows[i])
		if err != nil {
			return 0, fmt.Errorf("failed to insert snapshot for %s: %w", rows[i].HostID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			saved += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit snapshots: %w", err)
	}
	return saved, nil
}

// FetchSnapshots returns snapshots in [start, end] ordered by (timestamp, host id)
func (s *sqlStore) FetchSnapshots(ctx context.Context, start, end time.Time, hostFilter []string) ([]models.ResourceSnapshot, error) {
	query := `
		SELECT id, host_id, host_name, recorded_at, cpu_load_percent, cpu_cores,
			used_memory, total_memory, used_disk, total_disk, clusters, idc_name, idc_code
		FROM snapshots
		WHERE recorded_at >= ? AND recorded_at <= ?`
	args := []interface{}{start.UnixNano(), end.UnixNano()}

	if len(hostFilter) > 0 {
		query += ` AND host_id IN (?)`
		args = append(args, hostFilter)
	}
	query += ` ORDER BY recorded_at, host_id`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot query: %w", err)
	}

	var rows []snapshotRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to fetch snapshots: %w", err)
	}

	out := make([]models.ResourceSnapshot, 0, len(rows))
	for i := range rows {
		snap, err := rows[i].toSnapshot()
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func (s *sqlStore) FetchDiskHistory(ctx context.Context, hostID string, start, end time.Time) ([]models.DiskSamplePoint, error) {
	query := s.db.Rebind(`
		SELECT recorded_at, used_disk, total_disk
		FROM snapshots
		WHERE host_id = ? AND recorded_at >= ? AND recorded_at <= ?
		ORDER BY recorded_at`)

	var rows []struct {
		RecordedAt int64   `db:"recorded_at"`
		UsedDisk   float64 `db:"used_disk"`
		TotalDisk  float64 `db:"total_disk"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, hostID, start.UnixNano(), end.UnixNano()); err != nil {
		return nil, fmt.Errorf("failed to fetch disk history: %w", err)
	}

	points := make([]models.DiskSamplePoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, models.DiskSamplePoint{
			Timestamp: time.Unix(0, r.RecordedAt).UTC(),
			UsedDisk:  r.UsedDisk,
			TotalDisk: r.TotalDisk,
		})
	}
	return points, nil
}

// CountSnapshots returns the number of stored snapshots
func (s *sqlStore) CountSnapshots(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM snapshots`); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

func (s *sqlStore) IsAvailable(ctx context.Context) bool {
	return s.Ping(ctx) == nil
}

// Ping checks database connectivity
func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	return s.db.Close()
}
