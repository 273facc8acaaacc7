package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/opscart/capacity-compliance/pkg/engine"
	"github.com/opscart/capacity-compliance/pkg/metrics"
	"github.com/opscart/capacity-compliance/pkg/models"
	"github.com/opscart/capacity-compliance/pkg/output"
	"github.com/opscart/capacity-compliance/pkg/query"
	"github.com/opscart/capacity-compliance/pkg/reporter"
	"github.com/opscart/capacity-compliance/pkg/server"
	"github.com/opscart/capacity-compliance/pkg/storage"
)

func window() (models.TimeRange, error) {
	end := time.Now()
	if windowEnd != "" {
		t, err := time.Parse(time.RFC3339, windowEnd)
		if err != nil {
			return models.TimeRange{}, fmt.Errorf("invalid --end %q: %w", windowEnd, err)
		}
		end = t
	}
	return cfg.Window(end), nil
}

func filterSpec() query.FilterSpec {
	return query.FilterSpec{
		ClusterGroups:    clusterGroups,
		Clusters:         clusters,
		Departments:      departments,
		IDCs:             idcs,
		NonCompliantOnly: onlyFailing,
	}
}

func banner(format string, args ...interface{}) {
	if cfg.OutputFormat != "json" {
		fmt.Printf("[INFO] "+format+"\n", args...)
	}
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	win, err := window()
	if err != nil {
		return err
	}

	handler, err := output.NewHandler(cfg.OutputFormat, os.Stdout)
	if err != nil {
		return err
	}

	source, closeSource, err := openSource(ctx)
	if err != nil {
		return err
	}
	defer closeSource()

	banner("Capacity compliance - starting report")
	banner("Source: %s", source.Name())
	banner("Window: %s to %s (%d days)", win.Start.Format(time.RFC3339), win.End.Format(time.RFC3339), cfg.MetricsLookbackDays)

	eng := newEngine(source, nil, false)
	report, err := eng.ComputeResourceReport(ctx, engine.ReportRequest{
		Window:      win,
		Thresholds:  cfg.Thresholds,
		Filter:      filterSpec(),
		HostSort:    query.SortSpec{Field: sortField, Desc: sortDesc},
		ClusterSort: query.SortSpec{Field: clusterSort, Desc: sortDesc},
		Page:        query.PageSpec{Offset: offset, Limit: limit},
		HostFilter:  hosts,
	})
	if err != nil {
		return fmt.Errorf("report failed: %w", err)
	}

	logger.Info("report computed",
		zap.Int("hosts", report.Total),
		zap.Int("clusters", report.ClusterTotal),
		zap.Int("non_compliant_hosts", report.NonCompliantHosts),
		zap.Int("skipped", report.Skipped))

	if err := handler.DisplayReport(ctx, report); err != nil {
		return err
	}

	if reportFormat != "" {
		return exportReport(report)
	}
	return nil
}

func exportReport(report *engine.Report) error {
	var ext string
	switch reporter.ReportFormat(reportFormat) {
	case reporter.FormatMarkdown:
		ext = ".md"
	case reporter.FormatCSV:
		ext = ".csv"
	default:
		return fmt.Errorf("unsupported report format: %s", reportFormat)
	}

	reportsDir := "reports"
	outputFile := reportOutput
	if outputFile == "" {
		timestamp := time.Now().Format("20060102-150405")
		outputFile = filepath.Join(reportsDir, fmt.Sprintf("compliance-report-%s%s", timestamp, ext))
	} else if !strings.Contains(outputFile, string(filepath.Separator)) {
		outputFile = filepath.Join(reportsDir, outputFile)
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("failed to create reports directory: %w", err)
	}

	file, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	if err := reporter.New(reporter.ReportFormat(reportFormat)).Write(report, file); err != nil {
		return err
	}

	banner("%s report generated: %s", strings.ToUpper(reportFormat), outputFile)
	return nil
}

func runForecast(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	hostID := args[0]

	win, err := window()
	if err != nil {
		return err
	}

	handler, err := output.NewHandler(cfg.OutputFormat, os.Stdout)
	if err != nil {
		return err
	}

	source, closeSource, err := openSource(ctx)
	if err != nil {
		return err
	}
	defer closeSource()

	banner("Forecasting disk for %s from %s", hostID, source.Name())

	eng := newEngine(source, nil, false)
	fc, err := eng.ComputeDiskForecast(ctx, hostID, win, cfg.RiskHorizonDays)
	if err != nil {
		return fmt.Errorf("forecast failed: %w", err)
	}
	return handler.DisplayForecast(ctx, fc)
}

func runFleetForecast(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	win, err := window()
	if err != nil {
		return err
	}

	handler, err := output.NewHandler(cfg.OutputFormat, os.Stdout)
	if err != nil {
		return err
	}

	source, closeSource, err := openSource(ctx)
	if err != nil {
		return err
	}
	defer closeSource()

	banner("Forecasting disk for all hosts from %s", source.Name())

	eng := newEngine(source, nil, false)
	fleet, err := eng.ComputeFleetForecast(ctx, engine.FleetForecastRequest{
		Window:          win,
		RiskHorizonDays: cfg.RiskHorizonDays,
		Filter:          filterSpec(),
		Sort:            query.SortSpec{Field: sortField, Desc: sortDesc},
		Page:            query.PageSpec{Offset: offset, Limit: limit},
		HostFilter:      hosts,
	})
	if err != nil {
		return fmt.Errorf("fleet forecast failed: %w", err)
	}
	return handler.DisplayFleet(ctx, fleet)
}

// readSnapshots decodes a JSON or YAML array of snapshots
func readSnapshots(path string) ([]models.ResourceSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var snapshots []models.ResourceSnapshot
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &snapshots)
	default:
		err = json.Unmarshal(data, &snapshots)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return snapshots, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	snapshots, err := readSnapshots(args[0])
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	saved, err := store.SaveSnapshots(ctx, snapshots)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	banner("Read %d snapshot(s), saved %d new to %s", len(snapshots), saved, store.Name())
	return nil
}

func runCollect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if cfg.Source == "postgres" || cfg.Source == "sqlite" {
		return fmt.Errorf("collect needs a live source (prometheus or kubernetes), got %s", cfg.Source)
	}

	win, err := window()
	if err != nil {
		return err
	}

	source, closeSource, err := openSource(ctx)
	if err != nil {
		return err
	}
	defer closeSource()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	snapshots, err := source.FetchSnapshots(ctx, win.Start, win.End, nil)
	if err != nil {
		return fmt.Errorf("fetch from %s failed: %w", source.Name(), err)
	}

	saved, err := store.SaveSnapshots(ctx, snapshots)
	if err != nil {
		return fmt.Errorf("save failed: %w", err)
	}

	banner("Collected %d snapshot(s) from %s, saved %d new to %s",
		len(snapshots), source.Name(), saved, store.Name())
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, closeSource, err := openSource(ctx)
	if err != nil {
		return err
	}
	defer closeSource()

	var writer server.SnapshotWriter
	if store, ok := source.(storage.Store); ok {
		writer = store
	} else if cfg.StorageEnabled {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		writer = store
	}

	rec := metrics.New()
	eng := newEngine(source, rec, true)

	srv := server.New(eng, writer, rec, server.Config{
		ListenAddr:      cfg.ListenAddr,
		AllowedOrigins:  cfg.AllowedOrigins,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Release:         !cfg.Verbose,
		Thresholds:      cfg.Thresholds,
		LookbackDays:    cfg.MetricsLookbackDays,
		RiskHorizonDays: cfg.RiskHorizonDays,
	}, logger)

	logger.Info("serving capacity API",
		zap.String("addr", cfg.ListenAddr),
		zap.String("source", source.Name()),
		zap.Bool("ingest", writer != nil))
	return srv.Run(ctx)
}
