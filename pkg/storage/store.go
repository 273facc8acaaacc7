package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/opscart/capacity-compliance/pkg/models"
)

// Store persists resource snapshots. It is the external snapshot store the
// engine reads through; snapshots are immutable once saved.
type Store interface {
	// SaveSnapshots writes snapshots and returns how many were new.
	// A snapshot for an already stored (host, timestamp) is ignored.
	SaveSnapshots(ctx context.Context, snapshots []models.ResourceSnapshot) (int, error)

	FetchSnapshots(ctx context.Context, start, end time.Time, hostFilter []string) ([]models.ResourceSnapshot, error)
	FetchDiskHistory(ctx context.Context, hostID string, start, end time.Time) ([]models.DiskSamplePoint, error)

	IsAvailable(ctx context.Context) bool
	Name() string

	Ping(ctx context.Context) error
	Close() error
}

type Config struct {
	Type    string
	Path    string
	URL     string
	Timeout int
}

// New opens the store named by cfg.Type: "postgres" or "sqlite"
func New(cfg Config) (Store, error) {
	switch cfg.Type {
	case "postgres":
		store, err := NewPostgresStore(cfg.URL)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "sqlite", "":
		store, err := NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
