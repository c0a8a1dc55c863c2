// Package filter selects the working subset of stored records.
//
// Filters are opt-in: an empty selection matches nothing.
package filter

import (
	"time"

	"github.com/okian/moncell/internal/domain/model"
)

// Set is a selection of exact string values.
type Set map[string]struct{}

// NewSet builds a set from values.
func NewSet(values ...string) Set {
	s := make(Set, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Has reports whether v is selected.
func (s Set) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Criteria are the four independent predicates of a filter pass. From and To
// are calendar days and both are inclusive.
type Criteria struct {
	Districts Set
	Schools   Set
	Metrics   Set
	From      time.Time
	To        time.Time
}

// Match reports whether rec satisfies every predicate.
func (c Criteria) Match(rec model.MetricRecord) bool {
	if !c.Districts.Has(rec.District) || !c.Schools.Has(rec.SchoolName) || !c.Metrics.Has(rec.MetricName) {
		return false
	}
	d := model.Day(rec.Timestamp)
	return !d.Before(model.Day(c.From)) && !d.After(model.Day(c.To))
}

// Apply returns the records matching c, in input order.
func Apply(records []model.MetricRecord, c Criteria) []model.MetricRecord {
	out := make([]model.MetricRecord, 0)
	if len(c.Districts) == 0 || len(c.Schools) == 0 || len(c.Metrics) == 0 {
		return out
	}
	for _, rec := range records {
		if c.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// DefaultRange returns the window of days ending on the day of now.
func DefaultRange(now time.Time, days int) (from, to time.Time) {
	to = model.Day(now)
	return to.AddDate(0, 0, -days), to
}

// Options are the distinct values present in the store, in first-appearance
// order, offered as filter choices.
type Options struct {
	Districts []string
	Schools   []string
	Metrics   []string
}

// OptionsOf collects the distinct districts, schools and metrics of records.
func OptionsOf(records []model.MetricRecord) Options {
	var o Options
	dSeen, sSeen, mSeen := Set{}, Set{}, Set{}
	for _, r := range records {
		o.Districts = appendNew(o.Districts, dSeen, r.District)
		o.Schools = appendNew(o.Schools, sSeen, r.SchoolName)
		o.Metrics = appendNew(o.Metrics, mSeen, r.MetricName)
	}
	return o
}

func appendNew(dst []string, seen Set, v string) []string {
	if seen.Has(v) {
		return dst
	}
	seen[v] = struct{}{}
	return append(dst, v)
}
