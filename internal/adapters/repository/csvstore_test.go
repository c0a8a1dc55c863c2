package repository

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/moncell/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var valueComparer = cmp.Comparer(func(a, b model.Value) bool { return a.String() == b.String() })

func day(s string) time.Time {
	d, err := model.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func record(school, value string, anomaly bool, date string) model.MetricRecord {
	return model.MetricRecord{
		TeamMember:     "Jeet Kumar",
		District:       "Muzaffarpur",
		SchoolName:     school,
		MetricName:     "Cleanliness",
		Value:          model.ParseValue(value),
		IsAnomaly:      anomaly,
		AnomalyComment: "dirty floors, \"again\"",
		Timestamp:      day(date),
	}
}

func TestCSVStore(t *testing.T) {
	Convey("Given a store on a fresh path", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "nested", "monitoring_data.csv")
		store := NewCSVStore(path)

		Convey("When nothing was appended", func() {
			recs, err := store.Load(ctx)

			Convey("Then the store is absent and empty", func() {
				So(err, ShouldBeNil)
				So(recs, ShouldBeEmpty)
				So(store.Exists(), ShouldBeFalse)
			})
		})

		Convey("When two records are appended", func() {
			So(store.Append(ctx, record("GPS Kurthaul", "7", true, "2025-03-01")), ShouldBeNil)
			So(store.Append(ctx, record("UMS Bakhri", "good", false, "2025-03-02")), ShouldBeNil)

			Convey("Then the file holds the header and both rows", func() {
				b, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
				So(lines, ShouldHaveLength, 3)
				So(lines[0], ShouldEqual, strings.Join(Columns, ","))
				So(lines[2], ShouldEqual, "Jeet Kumar,Muzaffarpur,UMS Bakhri,Cleanliness,good,False,,2025-03-02")
			})

			Convey("And Load returns them in order with comments cleared for non-anomalies", func() {
				recs, err := store.Load(ctx)
				So(err, ShouldBeNil)
				So(recs, ShouldHaveLength, 2)
				So(recs[0].SchoolName, ShouldEqual, "GPS Kurthaul")
				So(recs[0].AnomalyComment, ShouldEqual, "dirty floors, \"again\"")
				f, ok := recs[0].Value.Float()
				So(ok, ShouldBeTrue)
				So(f, ShouldEqual, 7)
				So(recs[1].IsAnomaly, ShouldBeFalse)
				So(recs[1].AnomalyComment, ShouldBeEmpty)
			})

			Convey("And Reset removes the file", func() {
				So(store.Reset(ctx), ShouldBeNil)
				So(store.Exists(), ShouldBeFalse)
				recs, err := store.Load(ctx)
				So(err, ShouldBeNil)
				So(recs, ShouldBeEmpty)

				Convey("And a second Reset is a no-op", func() {
					So(store.Reset(ctx), ShouldBeNil)
				})
			})
		})

		Convey("When appends race", func() {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_ = store.Append(ctx, record(fmt.Sprintf("School %d", i), "1", false, "2025-03-01"))
				}(i)
			}
			wg.Wait()

			Convey("Then every append lands exactly once", func() {
				recs, err := store.Load(ctx)
				So(err, ShouldBeNil)
				So(recs, ShouldHaveLength, 20)
			})
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			Convey("Then Append refuses to write", func() {
				So(store.Append(cctx, record("GPS Kurthaul", "1", false, "2025-03-01")), ShouldNotBeNil)
				So(store.Exists(), ShouldBeFalse)
			})
		})
	})
}

func TestCSVStoreLegacyFiles(t *testing.T) {
	Convey("Given a legacy file without the Is Anomaly column", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "monitoring_data.csv")
		legacy := "Team Member,District,School Name,Metric Name,Value,Anomaly Comment,Timestamp\n" +
			"Shiv Pandit,Patna,KV Danapur,Cleanliness,5,,2025-01-10\n" +
			"Shiv Pandit,Patna,KV Danapur,Cleanliness,6,,not-a-date\n"
		So(os.WriteFile(path, []byte(legacy), 0o600), ShouldBeNil)
		store := NewCSVStore(path)

		Convey("When it is loaded", func() {
			recs, err := store.Load(ctx)

			Convey("Then the flag is backfilled and undated rows skipped", func() {
				So(err, ShouldBeNil)
				So(recs, ShouldHaveLength, 1)
				So(recs[0].IsAnomaly, ShouldBeFalse)
				So(recs[0].Date(), ShouldEqual, "2025-01-10")
			})
		})

		Convey("When a record is appended", func() {
			So(store.Append(ctx, record("KV Danapur", "9", true, "2025-01-11")), ShouldBeNil)

			Convey("Then the file is migrated and no row is lost", func() {
				b, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
				So(lines, ShouldHaveLength, 4)
				So(lines[0], ShouldEqual, strings.Join(Columns, ","))
				So(lines[1], ShouldEqual, "Shiv Pandit,Patna,KV Danapur,Cleanliness,5,False,,2025-01-10")
				So(lines[2], ShouldContainSubstring, "not-a-date")

				recs, err := store.Load(ctx)
				So(err, ShouldBeNil)
				So(recs, ShouldHaveLength, 2)
				So(recs[1].IsAnomaly, ShouldBeTrue)
			})
		})
	})

	Convey("Given a current-layout file without a trailing newline", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "monitoring_data.csv")
		content := strings.Join(Columns, ",") + "\nA,B,C,D,1,True,x,2025-02-01"
		So(os.WriteFile(path, []byte(content), 0o600), ShouldBeNil)
		store := NewCSVStore(path)

		Convey("When a record is appended", func() {
			So(store.Append(ctx, record("C", "2", false, "2025-02-02")), ShouldBeNil)

			Convey("Then the new row starts on its own line", func() {
				recs, err := store.Load(ctx)
				So(err, ShouldBeNil)
				So(recs, ShouldHaveLength, 2)
				So(recs[0].AnomalyComment, ShouldEqual, "x")
				So(recs[1].Value.String(), ShouldEqual, "2")
			})
		})
	})
}

func TestCodecRoundTrip(t *testing.T) {
	Convey("Given a set of records", t, func() {
		in := []model.MetricRecord{
			record("GPS Kurthaul", "12.5", true, "2025-03-01"),
			record("UMS Bakhri", "needs, attention", false, "2025-03-02"),
			record("KV Danapur", "0", true, "2025-03-03"),
		}
		in[1].AnomalyComment = ""

		Convey("When they are written and read back", func() {
			var buf bytes.Buffer
			So(WriteCSV(&buf, in), ShouldBeNil)
			res, err := ReadCSV(context.Background(), &buf)

			Convey("Then the same records come back", func() {
				So(err, ShouldBeNil)
				So(res.Skipped, ShouldBeEmpty)
				So(cmp.Diff(in, res.Records, valueComparer), ShouldBeEmpty)
			})
		})

		Convey("When columns are reordered and flags spelled differently", func() {
			src := "Timestamp,Is Anomaly,Value,School Name\n" +
				"2025-03-01 10:30:00,true,3,A\n" +
				"2025-03-02T08:00:00Z,1,4,B\n" +
				"2025-03-03,no,5,C\n"
			res, err := ReadCSV(context.Background(), strings.NewReader(src))

			Convey("Then they decode by header name", func() {
				So(err, ShouldBeNil)
				So(res.Records, ShouldHaveLength, 3)
				So(res.Records[0].IsAnomaly, ShouldBeTrue)
				So(res.Records[0].Date(), ShouldEqual, "2025-03-01")
				So(res.Records[1].IsAnomaly, ShouldBeTrue)
				So(res.Records[2].IsAnomaly, ShouldBeFalse)
				So(res.Records[2].District, ShouldBeEmpty)
			})
		})

		Convey("When the input is empty", func() {
			res, err := ReadCSV(context.Background(), strings.NewReader(""))
			So(err, ShouldBeNil)
			So(res.Records, ShouldBeEmpty)
		})
	})
}
