package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given an initialized logger", t, func() {
		So(Init(), ShouldBeNil)
		defer func() { So(Sync(), ShouldBeNil) }()

		Convey("Then Get returns a usable logger", func() {
			So(Get(), ShouldNotBeNil)
			So(Named("test"), ShouldNotBeNil)
		})
	})

	Convey("Given a nil writer", t, func() {
		Convey("Then initialization fails", func() {
			So(InitWithWriter(nil), ShouldNotBeNil)
		})
	})
}

func TestLoggerOutput(t *testing.T) {
	Convey("Given a logger writing into a buffer", t, func() {
		var buf bytes.Buffer
		So(InitWithWriter(&buf), ShouldBeNil)
		ctx := context.Background()

		Convey("When logging with fields", func() {
			Get().Info(ctx, "entry recorded", String("school", "GPS Kurthaul"), Int("rows", 3), Bool("anomaly", true))

			Convey("Then the record carries message, fields and source", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, "entry recorded")
				So(out, ShouldContainSubstring, "rows=3")
				So(out, ShouldContainSubstring, "anomaly=true")
				So(out, ShouldContainSubstring, "source=")
				So(out, ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When the level is raised to warn", func() {
			So(SetLevelString("warn"), ShouldBeNil)
			defer func() { _ = SetLevelString("info") }()
			Get().Info(ctx, "hidden")
			Get().Warn(ctx, "visible", Error(errors.New("boom")))

			Convey("Then lower records are dropped", func() {
				So(buf.String(), ShouldNotContainSubstring, "hidden")
				So(buf.String(), ShouldContainSubstring, "visible")
				So(buf.String(), ShouldContainSubstring, "boom")
			})
		})

		Convey("When using With", func() {
			Get().With(String("request_id", "abc")).Info(ctx, "hello")

			Convey("Then the bound field is emitted", func() {
				So(buf.String(), ShouldContainSubstring, "request_id=abc")
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		So(SetLevelString("debug"), ShouldBeNil)
		So(SetLevelString(" WARNING "), ShouldBeNil)
		So(SetLevelString("error"), ShouldBeNil)
		So(SetLevelString(""), ShouldBeNil)
		So(SetLevelString("verbose"), ShouldNotBeNil)
	})
}
