// Package trend forecasts anomaly values per (school, metric) partition and
// labels each partition increasing, decreasing or stable.
//
// The ±20% thresholds compare the first and last forecast values. They are
// fixed and uncalibrated.
package trend

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/okian/moncell/internal/domain/forecast"
	"github.com/okian/moncell/internal/domain/model"
	"github.com/okian/moncell/pkg/logger"
	"github.com/okian/moncell/pkg/metrics"
)

const (
	// MinObservations is the smallest series that is forecast.
	MinObservations = 5
	// HorizonDays is how far past the last observed date the forecast runs.
	HorizonDays = 7

	increaseFactor = 1.2
	decreaseFactor = 0.8
)

// ErrNoForecast is reported when a forecaster returns no points without an error.
var ErrNoForecast = errors.New("forecaster returned no points")

// Status is the outcome of analyzing one partition.
type Status string

// Partition outcomes.
const (
	StatusOK               Status = "ok"
	StatusInsufficientData Status = "insufficient_data"
	StatusUnreliable       Status = "unreliable_forecast"
	StatusFailed           Status = "failed"
)

// Direction is the classification of an analyzed partition.
type Direction string

// Directions.
const (
	Increasing Direction = "increasing"
	Decreasing Direction = "decreasing"
	Stable     Direction = "stable"
)

// Partition is the result for one (school, metric) pair. Direction is set only
// when Status is StatusOK; Forecast is empty unless the forecaster ran.
type Partition struct {
	School       string
	Metric       string
	Status       Status
	Direction    Direction
	Observations int
	Excluded     int
	Forecast     []model.ForecastPoint
	Message      string
}

// Report is the result of one analysis run.
type Report struct {
	NoAnomalies bool
	Partitions  []Partition
}

// Summarizer runs trend analysis over a filtered record set.
type Summarizer struct {
	forecaster forecast.Forecaster
	logger     logger.Logger
}

// NewSummarizer creates a summarizer using f, or the linear backend when f is nil.
func NewSummarizer(f forecast.Forecaster, opts ...Option) *Summarizer {
	if f == nil {
		f = forecast.NewLinear()
	}
	s := &Summarizer{
		forecaster: f,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type key struct {
	school string
	metric string
}

type series struct {
	obs      []model.Observation
	excluded int
}

// Summarize analyzes the anomaly rows of records. A failing partition never
// stops the others; the only error returned is a context error, together with
// the partitions finished before it.
func (s *Summarizer) Summarize(ctx context.Context, records []model.MetricRecord) (Report, error) {
	metrics.RecordTrendRun()

	groups := make(map[key]*series)
	for _, rec := range records {
		if !rec.IsAnomaly {
			continue
		}
		k := key{school: rec.SchoolName, metric: rec.MetricName}
		g, ok := groups[k]
		if !ok {
			g = &series{}
			groups[k] = g
		}
		v, numeric := rec.Value.Float()
		if !numeric {
			g.excluded++
			continue
		}
		g.obs = append(g.obs, model.Observation{Date: model.Day(rec.Timestamp), Value: v})
	}
	if len(groups) == 0 {
		return Report{NoAnomalies: true}, nil
	}

	keys := make([]key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b key) int {
		return cmp.Or(cmp.Compare(a.school, b.school), cmp.Compare(a.metric, b.metric))
	})

	report := Report{Partitions: make([]Partition, 0, len(keys))}
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		p := s.analyze(ctx, k, groups[k])
		metrics.RecordTrendPartition(string(p.Status))
		report.Partitions = append(report.Partitions, p)
	}
	return report, nil
}

func (s *Summarizer) analyze(ctx context.Context, k key, g *series) Partition {
	p := Partition{
		School:       k.school,
		Metric:       k.metric,
		Observations: len(g.obs),
		Excluded:     g.excluded,
	}
	if len(g.obs) < MinObservations {
		p.Status = StatusInsufficientData
		p.Message = fmt.Sprintf("Not enough anomaly data points for %s - %s to perform trend analysis.", k.school, k.metric)
		return p
	}

	slices.SortStableFunc(g.obs, func(a, b model.Observation) int { return a.Date.Compare(b.Date) })

	start := time.Now()
	points, err := s.forecast(ctx, g.obs)
	metrics.RecordForecastLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err == nil && len(points) == 0 {
		err = ErrNoForecast
	}
	if err != nil {
		metrics.RecordErrorByComponent("trend", "forecast")
		s.logger.Warn(ctx, "forecast failed",
			logger.String("school", k.school),
			logger.String("metric", k.metric),
			logger.Error(err),
		)
		p.Status = StatusFailed
		p.Message = fmt.Sprintf("Error during trend analysis for %s - %s: %v", k.school, k.metric, err)
		return p
	}
	p.Forecast = points

	for _, pt := range points {
		if math.IsNaN(pt.Value) || math.IsInf(pt.Value, 0) {
			p.Status = StatusUnreliable
			p.Message = fmt.Sprintf("Forecast for %s - %s contains non-finite values; trend analysis may be unreliable.", k.school, k.metric)
			return p
		}
	}

	p.Status = StatusOK
	p.Direction = Classify(points[0].Value, points[len(points)-1].Value)
	p.Message = message(p.Direction)
	return p
}

// forecast calls the forecaster and turns a panic into an error.
func (s *Summarizer) forecast(ctx context.Context, obs []model.Observation) (points []model.ForecastPoint, err error) {
	defer func() {
		if r := recover(); r != nil {
			points, err = nil, fmt.Errorf("forecaster panic: %v", r)
		}
	}()
	return s.forecaster.Forecast(ctx, obs, HorizonDays)
}

// Classify compares the last forecast value against the first.
func Classify(first, last float64) Direction {
	switch {
	case last > first*increaseFactor:
		return Increasing
	case last < first*decreaseFactor:
		return Decreasing
	default:
		return Stable
	}
}

func message(d Direction) string {
	switch d {
	case Increasing:
		return "Increasing trend of anomalies for this metric in this school."
	case Decreasing:
		return "Decreasing trend of anomalies for this metric in this school."
	default:
		return "Stable trend of anomalies for this metric in this school."
	}
}
