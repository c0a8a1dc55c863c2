// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() builds a Config with defaults; Load layers file and env on top.
// - Loading errors wrap ErrLoadConfig, validation errors wrap ErrInvalidConfig.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DataFile is the CSV file holding recorded metrics.
	DataFile string `koanf:"data_file"`

	// ReferenceFile is the CSV file with District and School columns.
	ReferenceFile string `koanf:"reference_file"`

	// TeamMembers lists the operators offered by the entry form.
	TeamMembers []string `koanf:"team_members"`

	// MetricNames lists the metric categories offered by the entry form.
	MetricNames []string `koanf:"metric_names"`

	// DefaultRangeDays sizes the default filter window ending today.
	DefaultRangeDays int `koanf:"default_range_days"`

	// DedupeSize bounds the number of remembered submission ids.
	DedupeSize int `koanf:"dedupe_size"`

	// MetricsNamespace and MetricsSubsystem prefix every exported metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`

	// MetricsBuckets overrides the latency histogram buckets (milliseconds).
	// Empty keeps the Prometheus defaults.
	MetricsBuckets []float64 `koanf:"metrics_buckets"`

	// MetricsLabels are constant labels attached to every metric.
	MetricsLabels map[string]string `koanf:"metrics_labels"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:      "info",
		Addr:          ":9080",
		DataFile:      "monitoring_data.csv",
		ReferenceFile: "district_schools.csv",
		TeamMembers: []string{
			"Anand Mohan", "A Srivastava", "Sajan Snehi", "Sumi Sindhi", "A Raghuvanshi",
			"Shyam Mishra", "Jeet Kumar", "Shiv Pandit", "Biren Kumar",
		},
		MetricNames: []string{
			"Cleanliness", "Assembly activities", "Presence of Students", "Teachers' presence",
			"New Edu Init Imp", "Co-curricular Act.", "Others",
		},
		DefaultRangeDays: 7,
		DedupeSize:       10_000,
		MetricsNamespace: "moncell",
		MetricsSubsystem: "dashboard",
	}
}
