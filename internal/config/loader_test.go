package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/moncell/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.DataFile, convey.ShouldEqual, "monitoring_data.csv")
			convey.So(cfg.ReferenceFile, convey.ShouldEqual, "district_schools.csv")
			convey.So(cfg.DefaultRangeDays, convey.ShouldEqual, 7)
			convey.So(cfg.TeamMembers, convey.ShouldHaveLength, 9)
			convey.So(cfg.MetricNames, convey.ShouldContain, "Cleanliness")
			convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "moncell")
			convey.So(cfg.MetricsSubsystem, convey.ShouldEqual, "dashboard")
			convey.So(cfg.MetricsBuckets, convey.ShouldBeEmpty)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 10_000)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("MONCELL_ADDR", ":8080")
			_ = os.Setenv("MONCELL_DATA_FILE", "/tmp/data.csv")
			_ = os.Setenv("MONCELL_DEFAULT_RANGE_DAYS", "30")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.DataFile, convey.ShouldEqual, "/tmp/data.csv")
				convey.So(cfg.DefaultRangeDays, convey.ShouldEqual, 30)
			})
		})

		convey.Convey("When loading config with a YAML file and env on top", func() {
			tmpFile := createTempConfigFile(t, `
# comment
addr: ":9090"
reference_file: "ref.csv"
team_members:
  - "Jeet Kumar"
  - "Shiv Pandit"
metric_names: ["Cleanliness"]
`)
			_ = os.Setenv("MONCELL_CONFIG", tmpFile)
			_ = os.Setenv("MONCELL_ADDR", ":7070")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env wins and lists replace defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.ReferenceFile, convey.ShouldEqual, "ref.csv")
				convey.So(cfg.TeamMembers, convey.ShouldResemble, []string{"Jeet Kumar", "Shiv Pandit"})
				convey.So(cfg.MetricNames, convey.ShouldResemble, []string{"Cleanliness"})
				convey.So(cfg.DataFile, convey.ShouldEqual, "monitoring_data.csv")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			_ = os.Setenv("MONCELL_CONFIG", createTempConfigFile(t, `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("MONCELL_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("MONCELL_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
			})
		})

		convey.Convey("When loading config with a negative range", func() {
			_ = os.Setenv("MONCELL_DEFAULT_RANGE_DAYS", "-1")

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading metrics settings from a YAML file", func() {
			_ = os.Setenv("MONCELL_CONFIG", createTempConfigFile(t, `
metrics_namespace: school
metrics_buckets: [1, 5, 25, 100]
metrics_labels:
  env: staging
`))
			_ = os.Setenv("MONCELL_METRICS_SUBSYSTEM", "cell")

			cfg, err := config.Load(ctx)

			convey.Convey("Then they reach the config", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "school")
				convey.So(cfg.MetricsSubsystem, convey.ShouldEqual, "cell")
				convey.So(cfg.MetricsBuckets, convey.ShouldResemble, []float64{1, 5, 25, 100})
				convey.So(cfg.MetricsLabels, convey.ShouldResemble, map[string]string{"env": "staging"})
			})
		})

		convey.Convey("When the metrics namespace is not a valid name", func() {
			_ = os.Setenv("MONCELL_METRICS_NAMESPACE", "mon-cell")

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "metrics_namespace")
			})
		})

		convey.Convey("When the metrics buckets are not increasing", func() {
			_ = os.Setenv("MONCELL_CONFIG", createTempConfigFile(t, "metrics_buckets: [10, 5]\n"))

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "metrics_buckets")
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("MONCELL_DEDUPE_SIZE", "not_a_number")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestLoadDotEnv(t *testing.T) {
	convey.Convey("Given a .env file", t, func() {
		clearConfigEnvVars()
		defer clearConfigEnvVars()
		path := filepath.Join(t.TempDir(), ".env")
		convey.So(os.WriteFile(path, []byte("MONCELL_ADDR=:6060\n"), 0o600), convey.ShouldBeNil)

		convey.Convey("When it is loaded before config", func() {
			convey.So(config.LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")), convey.ShouldBeNil)
			cfg, err := config.Load(context.Background())

			convey.Convey("Then its values act as env overrides", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"MONCELL_CONFIG",
		"MONCELL_ADDR",
		"MONCELL_DATA_FILE",
		"MONCELL_REFERENCE_FILE",
		"MONCELL_DEFAULT_RANGE_DAYS",
		"MONCELL_DEDUPE_SIZE",
		"MONCELL_LOG_LEVEL",
		"MONCELL_METRICS_NAMESPACE",
		"MONCELL_METRICS_SUBSYSTEM",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "moncell-config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
