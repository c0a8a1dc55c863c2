// Package model contains domain models passed between layers.
package model

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-day layout used in storage and on the wire.
const DateLayout = "2006-01-02"

// ValueKind tags the interpretation of a Value.
type ValueKind int

const (
	// Text is a value that does not parse as a finite number.
	Text ValueKind = iota
	// Numeric is a value that parses as a finite number.
	Numeric
)

// Value is the metric value as entered. The raw text is always kept; the
// numeric view exists only when the text parses as a finite float.
type Value struct {
	raw  string
	kind ValueKind
	num  float64
}

// ParseValue classifies raw without altering it.
func ParseValue(raw string) Value {
	v := Value{raw: raw, kind: Text}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		v.kind = Numeric
		v.num = f
	}
	return v
}

// String returns the raw text.
func (v Value) String() string { return v.raw }

// Kind reports whether the value is Numeric or Text.
func (v Value) Kind() ValueKind { return v.kind }

// Float returns the numeric view; ok is false for Text values.
func (v Value) Float() (f float64, ok bool) {
	return v.num, v.kind == Numeric
}

// IsBlank reports whether the raw text is empty after trimming.
func (v Value) IsBlank() bool { return strings.TrimSpace(v.raw) == "" }

// MarshalText implements encoding.TextMarshaler.
func (v Value) MarshalText() ([]byte, error) { return []byte(v.raw), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Value) UnmarshalText(b []byte) error {
	*v = ParseValue(string(b))
	return nil
}

// MetricRecord is one observation recorded by a team member.
type MetricRecord struct {
	TeamMember     string
	District       string
	SchoolName     string
	MetricName     string
	Value          Value
	IsAnomaly      bool
	AnomalyComment string
	Timestamp      time.Time
}

// Date returns the record day formatted as YYYY-MM-DD.
func (r MetricRecord) Date() string { return r.Timestamp.Format(DateLayout) }

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD day.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
}

// Observation is one (date, value) point of an anomaly series.
type Observation struct {
	Date  time.Time
	Value float64
}

// ForecastPoint is one predicted value produced by a forecaster.
type ForecastPoint struct {
	Date  time.Time
	Value float64
}
