package api

import (
	"errors"
	"net/http"

	"github.com/okian/moncell/internal/domain/model"
	"github.com/okian/moncell/internal/domain/trend"
	"github.com/okian/moncell/pkg/logger"
)

type forecastPointJSON struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

type partitionJSON struct {
	SchoolName   string              `json:"school_name"`
	MetricName   string              `json:"metric_name"`
	Status       string              `json:"status"`
	Trend        string              `json:"trend,omitempty"`
	Observations int                 `json:"observations"`
	Excluded     int                 `json:"excluded"`
	Message      string              `json:"message"`
	Forecast     []forecastPointJSON `json:"forecast"`
}

type trendsResponse struct {
	NoAnomalies bool            `json:"no_anomalies"`
	Message     string          `json:"message,omitempty"`
	Partitions  []partitionJSON `json:"partitions"`
}

// TrendsHandler runs trend analysis over the filtered subset.
type TrendsHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewTrendsHandler creates a new trends handler.
func NewTrendsHandler(deps Dependencies, l logger.Logger) *TrendsHandler {
	return &TrendsHandler{deps: deps, logger: l}
}

// HandleTrends handles GET /api/trends requests.
func (h *TrendsHandler) HandleTrends(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_trends"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	c, err := parseCriteria(h.deps, r.URL.Query())
	if errors.Is(err, ErrBadRequest) {
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
		return
	}
	var report trend.Report
	if err == nil {
		report, err = h.deps.Analyze(r.Context(), c)
	}
	if err != nil {
		h.logger.Error(r.Context(), "trend analysis failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
		return
	}
	writeJSON(w, http.StatusOK, toTrendsResponse(report))
}

func toTrendsResponse(report trend.Report) trendsResponse {
	out := trendsResponse{
		NoAnomalies: report.NoAnomalies,
		Partitions:  make([]partitionJSON, 0, len(report.Partitions)),
	}
	if report.NoAnomalies {
		out.Message = "No anomalies found in the filtered data."
	}
	for _, p := range report.Partitions {
		pj := partitionJSON{
			SchoolName:   p.School,
			MetricName:   p.Metric,
			Status:       string(p.Status),
			Trend:        string(p.Direction),
			Observations: p.Observations,
			Excluded:     p.Excluded,
			Message:      p.Message,
			Forecast:     make([]forecastPointJSON, 0, len(p.Forecast)),
		}
		for _, fp := range p.Forecast {
			pj.Forecast = append(pj.Forecast, forecastPointJSON{
				Date:  fp.Date.Format(model.DateLayout),
				Value: finite(fp.Value),
			})
		}
		out.Partitions = append(out.Partitions, pj)
	}
	return out
}
