package api

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/okian/moncell/internal/domain/filter"
	"github.com/okian/moncell/internal/domain/model"
)

// Query parameters selecting the working subset. Each selection parameter may
// repeat. Selections are opt-in: an absent or blank parameter selects nothing.
// Absent dates fall back to the default range.
const (
	paramDistrict = "district"
	paramSchool   = "school"
	paramMetric   = "metric"
	paramFrom     = "from"
	paramTo       = "to"
)

// parseCriteria builds filter criteria from q. Malformed dates are
// ErrBadRequest.
func parseCriteria(deps Dependencies, q url.Values) (filter.Criteria, error) {
	const op = "api.parse_criteria"
	var c filter.Criteria

	c.From, c.To = deps.DefaultRange()
	if v := q.Get(paramFrom); v != "" {
		d, err := model.ParseDay(v)
		if err != nil {
			return c, WrapKind(op, ErrBadRequest, fmt.Errorf("invalid %s date %q; must be YYYY-MM-DD", paramFrom, v))
		}
		c.From = d
	}
	if v := q.Get(paramTo); v != "" {
		d, err := model.ParseDay(v)
		if err != nil {
			return c, WrapKind(op, ErrBadRequest, fmt.Errorf("invalid %s date %q; must be YYYY-MM-DD", paramTo, v))
		}
		c.To = d
	}

	c.Districts = selection(q[paramDistrict])
	c.Schools = selection(q[paramSchool])
	c.Metrics = selection(q[paramMetric])
	return c, nil
}

// selection keeps the non-blank values, so "district=" selects nothing.
func selection(values []string) filter.Set {
	picked := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			picked = append(picked, v)
		}
	}
	return filter.NewSet(picked...)
}
