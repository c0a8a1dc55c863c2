package config

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. MONCELL_ADDR.
const EnvPrefix = "MONCELL_"

// LoadDotEnv reads KEY=VALUE pairs from the given files (".env" when none)
// into the process environment without overriding variables already set.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("%w: dotenv %s: %w", ErrLoadConfig, p, err)
		}
	}
	return nil
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if MONCELL_CONFIG is set
//  3. env (prefix MONCELL_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// MONCELL_DATA_FILE -> data_file; underscores are kept to match the koanf tags.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	// Lists from file or env replace the defaults instead of merging into them.
	if k.Exists("team_members") {
		cfg.TeamMembers = nil
	}
	if k.Exists("metric_names") {
		cfg.MetricNames = nil
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var metricNamePart = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.DataFile) == "":
		return fmt.Errorf("%w: data_file must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.ReferenceFile) == "":
		return fmt.Errorf("%w: reference_file must not be empty", ErrInvalidConfig)
	case c.DefaultRangeDays < 0:
		return fmt.Errorf("%w: default_range_days must not be negative", ErrInvalidConfig)
	case c.MetricsNamespace != "" && !metricNamePart.MatchString(c.MetricsNamespace):
		return fmt.Errorf("%w: metrics_namespace %q is not a valid metric name prefix", ErrInvalidConfig, c.MetricsNamespace)
	case c.MetricsSubsystem != "" && !metricNamePart.MatchString(c.MetricsSubsystem):
		return fmt.Errorf("%w: metrics_subsystem %q is not a valid metric name prefix", ErrInvalidConfig, c.MetricsSubsystem)
	}
	for i := 1; i < len(c.MetricsBuckets); i++ {
		if c.MetricsBuckets[i] <= c.MetricsBuckets[i-1] {
			return fmt.Errorf("%w: metrics_buckets must be strictly increasing", ErrInvalidConfig)
		}
	}
	for name := range c.MetricsLabels {
		if !metricNamePart.MatchString(name) || strings.HasPrefix(name, "__") {
			return fmt.Errorf("%w: metrics_labels name %q is invalid", ErrInvalidConfig, name)
		}
	}
	return nil
}
