// Package seed generates backdated demo records so filtering and trend
// analysis can be exercised without weeks of manual entry.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/okian/moncell/internal/domain/model"
	"github.com/okian/moncell/internal/domain/reference"
	"github.com/okian/moncell/pkg/logger"
)

// Sentinel kinds for seed errors.
var (
	ErrInvalidConfig = errors.New("invalid seed config")
	ErrEmptyCatalog  = errors.New("reference, team members and metric names must not be empty")
)

// Default generator settings.
const (
	DefaultDays        = 30
	DefaultPerDay      = 10
	DefaultAnomalyRate = 0.2
)

// Value ranges per kind of metric.
const (
	percentMax      = 100.0
	scoreMax        = 10.0
	anomalyDriftDay = 0.04
	textValueChance = 0.05
	commentChance   = 0.7
)

var anomalyComments = []string{
	"Reported by principal",
	"Follow-up visit required",
	"Escalated to district office",
	"Observed during unannounced visit",
	"",
}

var textValues = []string{"not measured", "n/a", "see comment"}

// Config holds generator settings.
type Config struct {
	Days        int     // Number of days ending today to cover
	PerDay      int     // Records per day
	AnomalyRate float64 // Share of records flagged as anomalies, 0..1
	Seed        uint64  // Random seed; equal seeds give equal output
	TeamMembers []string
	MetricNames []string
	Now         time.Time // Last generated day; zero means time.Now
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Days <= 0:
		return fmt.Errorf("%w: days must be positive", ErrInvalidConfig)
	case c.PerDay <= 0:
		return fmt.Errorf("%w: per-day must be positive", ErrInvalidConfig)
	case c.AnomalyRate < 0 || c.AnomalyRate > 1:
		return fmt.Errorf("%w: anomaly rate must be within [0, 1]", ErrInvalidConfig)
	}
	return nil
}

// Stats summarises a generated batch.
type Stats struct {
	Records   int
	Anomalies int
	TextRows  int
	From      time.Time
	To        time.Time
}

// Generate returns Days*PerDay records in ascending date order. Anomaly
// values drift upwards for half of the (school, metric) pairs and downwards
// for the rest.
func Generate(ctx context.Context, cfg Config, dir *reference.Directory) ([]model.MetricRecord, Stats, error) {
	var stats Stats
	if err := cfg.Validate(); err != nil {
		return nil, stats, err
	}
	type pick struct{ district, school string }
	var schools []pick
	for _, d := range dir.Districts() {
		for _, s := range dir.Schools(d) {
			schools = append(schools, pick{district: d, school: s})
		}
	}
	if len(schools) == 0 || len(cfg.TeamMembers) == 0 || len(cfg.MetricNames) == 0 {
		return nil, stats, ErrEmptyCatalog
	}

	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}
	last := model.Day(now)
	first := last.AddDate(0, 0, -(cfg.Days - 1))
	stats.From, stats.To = first, last

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	records := make([]model.MetricRecord, 0, cfg.Days*cfg.PerDay)
	for day := 0; day < cfg.Days; day++ {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		date := first.AddDate(0, 0, day)
		for i := 0; i < cfg.PerDay; i++ {
			s := schools[rng.IntN(len(schools))]
			metricIdx := rng.IntN(len(cfg.MetricNames))
			rec := model.MetricRecord{
				TeamMember: cfg.TeamMembers[rng.IntN(len(cfg.TeamMembers))],
				District:   s.district,
				SchoolName: s.school,
				MetricName: cfg.MetricNames[metricIdx],
				IsAnomaly:  rng.Float64() < cfg.AnomalyRate,
				Timestamp:  date,
			}
			upward := (len(s.school)+metricIdx)%2 == 0
			rec.Value = model.ParseValue(value(rng, metricIdx, day, rec.IsAnomaly, upward))
			if rec.IsAnomaly {
				stats.Anomalies++
				if rng.Float64() < commentChance {
					rec.AnomalyComment = anomalyComments[rng.IntN(len(anomalyComments))]
				}
			}
			if rec.Value.Kind() == model.Text {
				stats.TextRows++
			}
			records = append(records, rec)
		}
	}
	stats.Records = len(records)
	logger.Get().Debug(ctx, "generated seed records",
		logger.Int("records", stats.Records),
		logger.Int("anomalies", stats.Anomalies),
	)
	return records, stats, nil
}

// value draws a metric value. Even metric indexes are percentages, odd ones
// are scores out of ten. Anomalies sit outside the normal band and drift by
// day.
func value(rng *rand.Rand, metricIdx, day int, anomaly, upward bool) string {
	if rng.Float64() < textValueChance {
		return textValues[rng.IntN(len(textValues))]
	}
	limit := scoreMax
	if metricIdx%2 == 0 {
		limit = percentMax
	}
	var v float64
	if !anomaly {
		v = limit * (0.6 + 0.35*rng.Float64())
	} else {
		drift := anomalyDriftDay * float64(day)
		if !upward {
			drift = -drift
		}
		v = limit * math.Max(0.05, 0.3+0.1*rng.Float64()+drift*0.1)
	}
	if limit == scoreMax {
		return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
	}
	return strconv.Itoa(int(math.Round(v)))
}
