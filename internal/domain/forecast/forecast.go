// Package forecast defines the forecasting capability used by trend analysis
// and a default least-squares backend.
package forecast

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/okian/moncell/internal/domain/model"
	"gonum.org/v1/gonum/stat"
)

// Sentinel kinds for forecast errors.
var (
	ErrEmptySeries = errors.New("forecast series is empty")
	ErrHorizon     = errors.New("forecast horizon must be positive")
)

// weeklyMinSpanDays is the observed span from which a day-of-week effect is fitted.
const weeklyMinSpanDays = 14

const day = 24 * time.Hour

// Forecaster predicts a daily series. The result holds one point per distinct
// observed date, ascending, followed by horizon daily points after the last
// observed date.
type Forecaster interface {
	Forecast(ctx context.Context, series []model.Observation, horizon int) ([]model.ForecastPoint, error)
}

// Func adapts a plain function to Forecaster.
type Func func(ctx context.Context, series []model.Observation, horizon int) ([]model.ForecastPoint, error)

// Forecast calls f.
func (f Func) Forecast(ctx context.Context, series []model.Observation, horizon int) ([]model.ForecastPoint, error) {
	return f(ctx, series, horizon)
}

// Linear fits value = alpha + beta*dayOffset by ordinary least squares and,
// once the series spans two weeks, adds the mean residual of each weekday.
// All observations on a single date leave the slope undefined and every
// prediction is NaN.
type Linear struct{}

var _ Forecaster = Linear{}

// NewLinear returns the default forecaster.
func NewLinear() Linear { return Linear{} }

// Forecast implements Forecaster.
func (Linear) Forecast(ctx context.Context, series []model.Observation, horizon int) ([]model.ForecastPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, ErrEmptySeries
	}
	if horizon <= 0 {
		return nil, ErrHorizon
	}

	obs := slices.Clone(series)
	slices.SortStableFunc(obs, func(a, b model.Observation) int { return a.Date.Compare(b.Date) })
	origin := model.Day(obs[0].Date)

	x := make([]float64, len(obs))
	y := make([]float64, len(obs))
	for i, o := range obs {
		x[i] = offset(origin, o.Date)
		y[i] = o.Value
	}
	alpha, beta := stat.LinearRegression(x, y, nil, false)

	var weekly map[time.Weekday]float64
	if x[len(x)-1] >= weeklyMinSpanDays {
		weekly = weekdayEffects(obs, x, y, alpha, beta)
	}
	predict := func(d time.Time) float64 {
		return alpha + beta*offset(origin, d) + weekly[d.Weekday()]
	}

	var out []model.ForecastPoint
	for i, o := range obs {
		d := model.Day(o.Date)
		if i > 0 && d.Equal(model.Day(obs[i-1].Date)) {
			continue
		}
		out = append(out, model.ForecastPoint{Date: d, Value: predict(d)})
	}
	last := model.Day(obs[len(obs)-1].Date)
	for h := 1; h <= horizon; h++ {
		d := last.AddDate(0, 0, h)
		out = append(out, model.ForecastPoint{Date: d, Value: predict(d)})
	}
	return out, nil
}

// weekdayEffects returns the mean trend residual per observed weekday,
// centred so the effects average to zero.
func weekdayEffects(obs []model.Observation, x, y []float64, alpha, beta float64) map[time.Weekday]float64 {
	sum := make(map[time.Weekday]float64)
	n := make(map[time.Weekday]int)
	for i, o := range obs {
		wd := model.Day(o.Date).Weekday()
		sum[wd] += y[i] - (alpha + beta*x[i])
		n[wd]++
	}
	effects := make(map[time.Weekday]float64, len(sum))
	var total float64
	for wd, s := range sum {
		effects[wd] = s / float64(n[wd])
		total += effects[wd]
	}
	mean := total / float64(len(effects))
	for wd := range effects {
		effects[wd] -= mean
	}
	return effects
}

func offset(origin, d time.Time) float64 {
	return float64(model.Day(d).Sub(origin) / day)
}
