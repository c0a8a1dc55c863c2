package trend

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/okian/moncell/internal/domain/forecast"
	"github.com/okian/moncell/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var day0 = time.Date(2024, time.May, 6, 0, 0, 0, 0, time.UTC)

func anomaly(school, metric string, days int, value string) model.MetricRecord {
	return model.MetricRecord{
		TeamMember: "Lennie Sibanda",
		District:   "Johannesburg East",
		SchoolName: school,
		MetricName: metric,
		Value:      model.ParseValue(value),
		IsAnomaly:  true,
		Timestamp:  day0.AddDate(0, 0, days),
	}
}

func find(r Report, school, metric string) Partition {
	for _, p := range r.Partitions {
		if p.School == school && p.Metric == metric {
			return p
		}
	}
	return Partition{}
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()

	Convey("Given the default summarizer", t, func() {
		s := NewSummarizer(nil)

		Convey("When a partition has only four numeric anomalies", func() {
			var recs []model.MetricRecord
			for i, v := range []string{"1", "2", "3", "4"} {
				recs = append(recs, anomaly("Alpha High", "Attendance", i, v))
			}
			r, err := s.Summarize(ctx, recs)
			So(err, ShouldBeNil)

			Convey("Then it reports not enough data without a forecast", func() {
				So(r.Partitions, ShouldHaveLength, 1)
				p := r.Partitions[0]
				So(p.Status, ShouldEqual, StatusInsufficientData)
				So(p.Forecast, ShouldBeEmpty)
				So(p.Direction, ShouldEqual, Direction(""))
				So(p.Message, ShouldContainSubstring, "Alpha High - Attendance")
			})
		})

		Convey("When six increasing observations span ten days", func() {
			var recs []model.MetricRecord
			for i, v := range []string{"1", "2", "3", "4", "5", "6"} {
				recs = append(recs, anomaly("Alpha High", "Attendance", i*2, v))
			}
			r, err := s.Summarize(ctx, recs)
			So(err, ShouldBeNil)

			Convey("Then the partition is increasing", func() {
				p := r.Partitions[0]
				So(p.Status, ShouldEqual, StatusOK)
				So(p.Direction, ShouldEqual, Increasing)
				So(p.Observations, ShouldEqual, 6)
				So(p.Forecast, ShouldHaveLength, 6+HorizonDays)
				So(p.Message, ShouldEqual, "Increasing trend of anomalies for this metric in this school.")
			})
		})

		Convey("When six observations decrease", func() {
			var recs []model.MetricRecord
			for i, v := range []string{"10", "8", "6", "4", "3", "2"} {
				recs = append(recs, anomaly("Alpha High", "Attendance", i*2, v))
			}
			r, err := s.Summarize(ctx, recs)
			So(err, ShouldBeNil)
			So(r.Partitions[0].Direction, ShouldEqual, Decreasing)
			So(r.Partitions[0].Message, ShouldEqual, "Decreasing trend of anomalies for this metric in this school.")
		})

		Convey("When six observations are constant", func() {
			var recs []model.MetricRecord
			for i := 0; i < 6; i++ {
				recs = append(recs, anomaly("Alpha High", "Attendance", i, "10"))
			}
			r, err := s.Summarize(ctx, recs)
			So(err, ShouldBeNil)

			Convey("Then the partition is stable", func() {
				So(r.Partitions[0].Status, ShouldEqual, StatusOK)
				So(r.Partitions[0].Direction, ShouldEqual, Stable)
				So(r.Partitions[0].Message, ShouldEqual, "Stable trend of anomalies for this metric in this school.")
			})
		})

		Convey("When some anomaly values are not numeric", func() {
			var recs []model.MetricRecord
			for i := 0; i < 5; i++ {
				recs = append(recs, anomaly("Alpha High", "Attendance", i, "7"))
			}
			recs = append(recs,
				anomaly("Alpha High", "Attendance", 6, "broken tap"),
				anomaly("Alpha High", "Attendance", 7, "NaN"),
				anomaly("Beta Primary", "Cleanliness", 1, "dirty"),
			)
			r, err := s.Summarize(ctx, recs)
			So(err, ShouldBeNil)

			Convey("Then they are excluded and counted", func() {
				p := find(r, "Alpha High", "Attendance")
				So(p.Status, ShouldEqual, StatusOK)
				So(p.Observations, ShouldEqual, 5)
				So(p.Excluded, ShouldEqual, 2)
			})

			Convey("Then an all-text partition reports not enough data", func() {
				p := find(r, "Beta Primary", "Cleanliness")
				So(p.Status, ShouldEqual, StatusInsufficientData)
				So(p.Excluded, ShouldEqual, 1)
			})
		})

		Convey("When every observation falls on one date", func() {
			var recs []model.MetricRecord
			for _, v := range []string{"1", "2", "3", "4", "5"} {
				recs = append(recs, anomaly("Alpha High", "Attendance", 0, v))
			}
			r, err := s.Summarize(ctx, recs)
			So(err, ShouldBeNil)

			Convey("Then the forecast is flagged unreliable", func() {
				p := r.Partitions[0]
				So(p.Status, ShouldEqual, StatusUnreliable)
				So(p.Direction, ShouldEqual, Direction(""))
				So(p.Forecast, ShouldNotBeEmpty)
			})
		})

		Convey("When no row is an anomaly", func() {
			rec := anomaly("Alpha High", "Attendance", 0, "3")
			rec.IsAnomaly = false
			r, err := s.Summarize(ctx, []model.MetricRecord{rec})
			So(err, ShouldBeNil)

			Convey("Then the report says so", func() {
				So(r.NoAnomalies, ShouldBeTrue)
				So(r.Partitions, ShouldBeEmpty)
			})
		})

		Convey("When several partitions are analyzed", func() {
			recs := []model.MetricRecord{
				anomaly("Zeta College", "Safety", 0, "1"),
				anomaly("Alpha High", "Water", 0, "1"),
				anomaly("Alpha High", "Attendance", 0, "1"),
			}
			r, err := s.Summarize(ctx, recs)
			So(err, ShouldBeNil)

			Convey("Then they are ordered by school then metric", func() {
				So(r.Partitions, ShouldHaveLength, 3)
				So(r.Partitions[0].Metric, ShouldEqual, "Attendance")
				So(r.Partitions[1].Metric, ShouldEqual, "Water")
				So(r.Partitions[2].School, ShouldEqual, "Zeta College")
			})
		})
	})

	Convey("Given a forecaster that fails for one school", t, func() {
		var seen []model.Observation
		f := forecast.Func(func(ctx context.Context, obs []model.Observation, h int) ([]model.ForecastPoint, error) {
			if obs[0].Value == 99 {
				return nil, errors.New("singular matrix")
			}
			if obs[0].Value == 77 {
				panic("boom")
			}
			seen = obs
			return forecast.NewLinear().Forecast(ctx, obs, h)
		})
		s := NewSummarizer(f)

		var recs []model.MetricRecord
		for i := 0; i < 5; i++ {
			recs = append(recs,
				anomaly("Alpha High", "Attendance", 4-i, "99"),
				anomaly("Beta Primary", "Attendance", i, "77"),
				anomaly("Gamma School", "Attendance", 4-i, "5"),
			)
		}
		recs = append(recs, anomaly("Gamma School", "Attendance", 0, "6"))

		r, err := s.Summarize(ctx, recs)
		So(err, ShouldBeNil)

		Convey("Then the error is scoped to that partition", func() {
			p := find(r, "Alpha High", "Attendance")
			So(p.Status, ShouldEqual, StatusFailed)
			So(p.Message, ShouldContainSubstring, "singular matrix")
		})

		Convey("Then a panic is reported as a failure", func() {
			p := find(r, "Beta Primary", "Attendance")
			So(p.Status, ShouldEqual, StatusFailed)
			So(p.Message, ShouldContainSubstring, "boom")
		})

		Convey("Then other partitions are analyzed with sorted, duplicate-keeping series", func() {
			p := find(r, "Gamma School", "Attendance")
			So(p.Status, ShouldEqual, StatusOK)
			So(seen, ShouldHaveLength, 6)
			for i := 1; i < len(seen); i++ {
				So(seen[i].Date.Before(seen[i-1].Date), ShouldBeFalse)
			}
		})
	})

	Convey("Given a forecaster returning infinite values", t, func() {
		f := forecast.Func(func(_ context.Context, obs []model.Observation, _ int) ([]model.ForecastPoint, error) {
			return []model.ForecastPoint{{Date: obs[0].Date, Value: math.Inf(1)}}, nil
		})
		var recs []model.MetricRecord
		for i := 0; i < 5; i++ {
			recs = append(recs, anomaly("Alpha High", "Attendance", i, "1"))
		}
		r, err := NewSummarizer(f).Summarize(ctx, recs)
		So(err, ShouldBeNil)
		So(r.Partitions[0].Status, ShouldEqual, StatusUnreliable)
	})

	Convey("Given a cancelled context", t, func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewSummarizer(nil).Summarize(cctx, []model.MetricRecord{anomaly("Alpha High", "Attendance", 0, "1")})
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})
}

func TestClassify(t *testing.T) {
	Convey("Given first and last forecast values", t, func() {
		So(Classify(10, 12.1), ShouldEqual, Increasing)
		So(Classify(10, 11.9), ShouldEqual, Stable)
		So(Classify(10, 8.1), ShouldEqual, Stable)
		So(Classify(10, 7.9), ShouldEqual, Decreasing)
	})
}
