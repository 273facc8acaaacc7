package main

import (
	"context"
	"fmt"

	"github.com/opscart/capacity-compliance/pkg/datasource"
	"github.com/opscart/capacity-compliance/pkg/engine"
	"github.com/opscart/capacity-compliance/pkg/forecast"
	"github.com/opscart/capacity-compliance/pkg/metrics"
	"github.com/opscart/capacity-compliance/pkg/storage"
)

// openSource builds the configured snapshot source
func openSource(ctx context.Context) (datasource.Source, func(), error) {
	switch cfg.Source {
	case "postgres", "sqlite":
		store, err := openStore()
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	case "prometheus":
		prom, err := datasource.NewPrometheusSource(cfg.PrometheusURL,
			datasource.WithStep(cfg.PrometheusStep),
			datasource.WithLabels(cfg.Labels),
			datasource.WithPrometheusLogger(logger),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Prometheus: %w", err)
		}
		if !prom.IsAvailable(ctx) {
			fmt.Printf("[WARN] Prometheus at %s is not reachable\n", cfg.PrometheusURL)
		}
		return prom, func() {}, nil

	case "kubernetes":
		kube, err := datasource.NewKubeNodeSource(cfg.Kubeconfig, cfg.ClusterName, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Kubernetes client: %w", err)
		}
		return kube, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}

// openStore opens the SQL store. For non-SQL sources the backend is chosen
// by whichever of DATABASE_URL and SQLITE_PATH is configured.
func openStore() (storage.Store, error) {
	storeType := cfg.StorageType()
	if cfg.Source != "postgres" && cfg.Source != "sqlite" && cfg.DatabaseURL == "" {
		storeType = "sqlite"
	}

	store, err := storage.New(storage.Config{
		Type: storeType,
		URL:  cfg.DatabaseURL,
		Path: cfg.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	logVerbose("Opened %s storage", store.Name())
	return store, nil
}

func newEngine(source datasource.Source, rec *metrics.Recorder, tolerate bool) *engine.Engine {
	fcOpts := forecast.DefaultOptions()
	fcOpts.RiskHorizonDays = cfg.RiskHorizonDays

	return engine.New(source,
		engine.WithLogger(logger),
		engine.WithMetrics(rec),
		engine.WithWorkers(cfg.Workers),
		engine.WithForecastOptions(fcOpts),
		engine.WithTolerateFetchErrors(tolerate),
	)
}
