package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opscart/capacity-compliance/pkg/config"
	"github.com/opscart/capacity-compliance/pkg/logging"
)

var (
	// Global flags
	configFile   string
	sourceName   string
	outputFormat string
	verbose      bool
	preset       string

	// Window flags
	lookbackDays int
	windowEnd    string

	// Query flags
	sortField     string
	sortDesc      bool
	limit         int
	offset        int
	clusters      []string
	clusterGroups []string
	departments   []string
	idcs          []string
	hosts         []string
	onlyFailing   bool

	// Report flags
	clusterSort  string
	reportFormat string
	reportOutput string

	// Forecast flags
	riskHorizon int

	// Global config
	cfg    *config.Config
	logger *zap.Logger
)

func logVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

func main() {
	var rootCmd = &cobra.Command{
		Use:   "capacity-scan",
		Short: "Resource compliance and disk capacity forecasting",
		Long: `Evaluate host and cluster utilization against threshold bands and
forecast when each host's disk will fill, from stored snapshots, Prometheus
node_exporter metrics or live Kubernetes node metrics.`,
		SilenceUsage:       true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default ./capacity-scan.yaml)")
	rootCmd.PersistentFlags().StringVar(&sourceName, "source", "", "Snapshot source: postgres, sqlite, prometheus, kubernetes")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "Output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "Lookback preset: dev, production, critical")

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Evaluate host and cluster compliance over a window",
		Args:  cobra.NoArgs,
		RunE:  runReport,
	}
	addWindowFlags(reportCmd)
	addQueryFlags(reportCmd)
	reportCmd.Flags().StringVar(&clusterSort, "cluster-sort", "", "Cluster sort field")
	reportCmd.Flags().StringVar(&reportFormat, "report-format", "", "Also export the report: markdown, csv")
	reportCmd.Flags().StringVar(&reportOutput, "report-output", "", "Output file for the exported report")

	forecastCmd := &cobra.Command{
		Use:   "forecast <host-id>",
		Short: "Forecast when one host's disk will fill",
		Args:  cobra.ExactArgs(1),
		RunE:  runForecast,
	}
	addWindowFlags(forecastCmd)
	forecastCmd.Flags().IntVar(&riskHorizon, "risk-horizon", 0, "Days within which a full disk counts as high risk")

	fleetCmd := &cobra.Command{
		Use:   "fleet-forecast",
		Short: "Forecast disk exhaustion for every host in the window",
		Args:  cobra.NoArgs,
		RunE:  runFleetForecast,
	}
	addWindowFlags(fleetCmd)
	addQueryFlags(fleetCmd)
	fleetCmd.Flags().IntVar(&riskHorizon, "risk-horizon", 0, "Days within which a full disk counts as high risk")

	ingestCmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Load snapshots from a JSON or YAML file into storage",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngest,
	}

	collectCmd := &cobra.Command{
		Use:   "collect",
		Short: "Copy snapshots from Prometheus or Kubernetes into storage",
		Args:  cobra.NoArgs,
		RunE:  runCollect,
	}
	addWindowFlags(collectCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	rootCmd.AddCommand(reportCmd, forecastCmd, fleetCmd, ingestCmd, collectCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addWindowFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&lookbackDays, "lookback-days", 0, "Days of history to analyze (default from config)")
	cmd.Flags().StringVar(&windowEnd, "end", "", "Window end, RFC3339 (default now)")
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sortField, "sort", "", "Sort field")
	cmd.Flags().BoolVar(&sortDesc, "desc", false, "Sort descending")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size (0 returns all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	cmd.Flags().StringSliceVar(&clusters, "cluster", nil, "Only rows in these clusters")
	cmd.Flags().StringSliceVar(&clusterGroups, "cluster-group", nil, "Only rows in these cluster groups")
	cmd.Flags().StringSliceVar(&departments, "department", nil, "Only rows in these departments")
	cmd.Flags().StringSliceVar(&idcs, "idc", nil, "Only rows in these IDCs (name or code)")
	cmd.Flags().StringSliceVar(&hosts, "host", nil, "Only fetch these host ids")
	cmd.Flags().BoolVar(&onlyFailing, "non-compliant", false, "Only non-compliant (or high-risk) rows")
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return err
	}

	switch preset {
	case "":
	case "dev":
		cfg.UseDevPreset()
	case "production":
		cfg.UseProductionPreset()
	case "critical":
		cfg.UseCriticalPreset()
	default:
		return fmt.Errorf("unknown preset %q (want dev, production or critical)", preset)
	}

	if sourceName != "" {
		cfg.Source = sourceName
	}
	if outputFormat != "" {
		cfg.OutputFormat = outputFormat
	}
	if verbose {
		cfg.Verbose = true
		cfg.LogLevel = "debug"
	}
	if lookbackDays > 0 {
		cfg.MetricsLookbackDays = lookbackDays
	}
	if riskHorizon > 0 {
		cfg.RiskHorizonDays = riskHorizon
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.JSON = cfg.LogJSON
	logCfg.FilePath = cfg.LogFile
	logger, err = logging.New(logCfg)
	if err != nil {
		return err
	}

	logVerbose("Source: %s, lookback: %d days, risk horizon: %d days",
		cfg.Source, cfg.MetricsLookbackDays, cfg.RiskHorizonDays)
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if logger != nil {
		_ = logger.Sync()
	}
	return nil
}
