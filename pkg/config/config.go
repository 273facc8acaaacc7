package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/opscart/capacity-compliance/pkg/datasource"
	"github.com/opscart/capacity-compliance/pkg/models"
)

const envPrefix = "CAPACITY"

// Config holds application configuration
type Config struct {
	// Source selects where snapshots come from: postgres, sqlite, prometheus or kubernetes
	Source string

	// Prometheus
	PrometheusURL  string
	PrometheusStep time.Duration
	Labels         datasource.LabelConfig

	// Kubernetes
	Kubeconfig  string
	ClusterName string

	// Storage
	StorageEnabled bool
	DatabaseURL    string
	SQLitePath     string

	// Analysis
	MetricsLookbackDays int
	MetricsDuration     time.Duration
	RiskHorizonDays     int
	Workers             int
	Thresholds          models.Thresholds

	// Server
	ListenAddr      string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration

	// Logging
	LogLevel string
	LogJSON  bool
	LogFile  string

	// Output
	OutputFormat string // text, json, csv, markdown
	Verbose      bool
}

// NewConfig creates a configuration from defaults and CAPACITY_* environment variables
func NewConfig() *Config {
	return fromViper(newViper())
}

// Load reads an optional config file on top of defaults and environment.
// An empty path searches ./capacity-scan.yaml and $HOME/.capacity-scan/.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("capacity-scan")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.capacity-scan")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return fromViper(v), nil
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("source", "postgres")
	v.SetDefault("prometheus_url", "http://localhost:9090")
	v.SetDefault("prometheus_step", "1h")
	v.SetDefault("kubeconfig", "")
	v.SetDefault("cluster_name", "")
	v.SetDefault("storage_enabled", true)
	v.SetDefault("database_url", "host=localhost port=5432 user=capacity password=devpassword dbname=capacity sslmode=disable")
	v.SetDefault("sqlite_path", "./capacity.db")
	v.SetDefault("lookback_days", 7)
	v.SetDefault("risk_horizon_days", 30)
	v.SetDefault("workers", 0)
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("shutdown_timeout", "15s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
	v.SetDefault("log_file", "")
	v.SetDefault("output", "text")
	v.SetDefault("verbose", false)

	defaults := models.DefaultThresholds()
	setBand(v, "cpu", defaults.CPU)
	setBand(v, "memory", defaults.Memory)
	setBand(v, "disk", defaults.Disk)

	labels := datasource.DefaultLabels()
	v.SetDefault("labels.cluster", labels.Cluster)
	v.SetDefault("labels.cluster_group", labels.ClusterGroup)
	v.SetDefault("labels.department", labels.Department)
	v.SetDefault("labels.idc", labels.IDC)
	v.SetDefault("labels.idc_code", labels.IDCCode)
	v.SetDefault("labels.host_name", labels.HostName)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setBand(v *viper.Viper, resource string, band models.ThresholdBand) {
	v.SetDefault("thresholds."+resource+".min", band.Min)
	v.SetDefault("thresholds."+resource+".max", band.Max)
}

func fromViper(v *viper.Viper) *Config {
	defaults := models.DefaultThresholds()

	cfg := &Config{
		Source:              v.GetString("source"),
		PrometheusURL:       v.GetString("prometheus_url"),
		PrometheusStep:      getDuration(v, "prometheus_step", time.Hour),
		Kubeconfig:          v.GetString("kubeconfig"),
		ClusterName:         v.GetString("cluster_name"),
		StorageEnabled:      getBool(v, "storage_enabled", true),
		DatabaseURL:         v.GetString("database_url"),
		SQLitePath:          v.GetString("sqlite_path"),
		MetricsLookbackDays: getInt(v, "lookback_days", 7),
		RiskHorizonDays:     getInt(v, "risk_horizon_days", 30),
		Workers:             getInt(v, "workers", 0),
		ListenAddr:          v.GetString("listen_addr"),
		AllowedOrigins:      v.GetStringSlice("allowed_origins"),
		ShutdownTimeout:     getDuration(v, "shutdown_timeout", 15*time.Second),
		LogLevel:            v.GetString("log_level"),
		LogJSON:             getBool(v, "log_json", false),
		LogFile:             v.GetString("log_file"),
		OutputFormat:        v.GetString("output"),
		Verbose:             getBool(v, "verbose", false),
		Thresholds: models.Thresholds{
			CPU:    getBand(v, "cpu", defaults.CPU),
			Memory: getBand(v, "memory", defaults.Memory),
			Disk:   getBand(v, "disk", defaults.Disk),
		},
		Labels: datasource.LabelConfig{
			Cluster:      v.GetString("labels.cluster"),
			ClusterGroup: v.GetString("labels.cluster_group"),
			Department:   v.GetString("labels.department"),
			IDC:          v.GetString("labels.idc"),
			IDCCode:      v.GetString("labels.idc_code"),
			HostName:     v.GetString("labels.host_name"),
		},
	}
	cfg.MetricsDuration = time.Duration(cfg.MetricsLookbackDays) * 24 * time.Hour
	return cfg
}

// getInt falls back to the default when the value does not parse
func getInt(v *viper.Viper, key string, defaultValue int) int {
	value, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return defaultValue
	}
	return value
}

func getFloat(v *viper.Viper, key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(v.GetString(key)), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getBool(v *viper.Viper, key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return defaultValue
	}
	return value
}

func getDuration(v *viper.Viper, key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return defaultValue
	}
	return value
}

func getBand(v *viper.Viper, resource string, defaultValue models.ThresholdBand) models.ThresholdBand {
	return models.ThresholdBand{
		Min: getFloat(v, "thresholds."+resource+".min", defaultValue.Min),
		Max: getFloat(v, "thresholds."+resource+".max", defaultValue.Max),
	}
}

func (c *Config) setLookback(days int) {
	c.MetricsLookbackDays = days
	c.MetricsDuration = time.Duration(days) * 24 * time.Hour
}

// UseDevPreset: short lookback, tight risk horizon
func (c *Config) UseDevPreset() {
	c.setLookback(3)
	c.RiskHorizonDays = 14
}

// UseProductionPreset: two weeks of history, 30 day horizon
func (c *Config) UseProductionPreset() {
	c.setLookback(14)
	c.RiskHorizonDays = 30
}

// UseCriticalPreset: a month of history, warn two months ahead
func (c *Config) UseCriticalPreset() {
	c.setLookback(30)
	c.RiskHorizonDays = 60
}

// Window returns the lookback window ending at end
func (c *Config) Window(end time.Time) models.TimeRange {
	return models.LastDays(end, c.MetricsLookbackDays)
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	switch c.Source {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set for the postgres source")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH must be set for the sqlite source")
		}
	case "prometheus":
		if c.PrometheusURL == "" {
			return fmt.Errorf("PROMETHEUS_URL must be set for the prometheus source")
		}
	case "kubernetes":
	default:
		return fmt.Errorf("unknown source %q (want postgres, sqlite, prometheus or kubernetes)", c.Source)
	}
	if c.StorageEnabled && c.DatabaseURL == "" && c.SQLitePath == "" {
		return fmt.Errorf("DATABASE_URL or SQLITE_PATH must be set when storage is enabled")
	}
	if c.MetricsLookbackDays < 1 {
		return fmt.Errorf("lookback must be at least 1 day")
	}
	if c.MetricsLookbackDays > 90 {
		return fmt.Errorf("lookback cannot exceed 90 days")
	}
	if c.RiskHorizonDays < 0 {
		return fmt.Errorf("risk horizon must be >= 0 days")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0")
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	return nil
}

// StorageType returns the SQL backend implied by the source
func (c *Config) StorageType() string {
	if c.Source == "sqlite" {
		return "sqlite"
	}
	return "postgres"
}
