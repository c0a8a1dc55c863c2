// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/okian/moncell/internal/domain/entry"
	"github.com/okian/moncell/internal/domain/filter"
	"github.com/okian/moncell/internal/domain/model"
	"github.com/okian/moncell/internal/domain/reference"
	"github.com/okian/moncell/internal/domain/trend"
	"github.com/okian/moncell/internal/domain/types"
	"github.com/okian/moncell/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Submit(ctx context.Context, sub types.Submission) (types.Receipt, error)

	Records(ctx context.Context, c filter.Criteria) ([]model.MetricRecord, error)
	Options(ctx context.Context) (filter.Options, error)
	Export(ctx context.Context, w io.Writer, c filter.Criteria) (int, error)
	Analyze(ctx context.Context, c filter.Criteria) (trend.Report, error)
	Reset(ctx context.Context) (entry.Buffer, error)

	Reference() *reference.Directory
	Catalog() types.Catalog
	DefaultRange() (from, to time.Time)
}

// Server wires HTTP routes for the dashboard API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	entriesHandler   *EntriesHandler
	recordsHandler   *RecordsHandler
	trendsHandler    *TrendsHandler
	referenceHandler *ReferenceHandler
	resetHandler     *ResetHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, l logger.Logger) *Server {
	if l == nil {
		l = logger.Nop()
	}
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		entriesHandler:   NewEntriesHandler(deps, l),
		recordsHandler:   NewRecordsHandler(deps, l),
		trendsHandler:    NewTrendsHandler(deps, l),
		referenceHandler: NewReferenceHandler(deps),
		resetHandler:     NewResetHandler(deps, l),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/reference", MetricsMiddleware(s.referenceHandler.HandleReference, "reference"))
	mux.HandleFunc("/api/catalog", MetricsMiddleware(s.referenceHandler.HandleCatalog, "catalog"))
	mux.HandleFunc("/api/entries", MetricsMiddleware(s.entriesHandler.HandlePostEntry, "entries"))
	mux.HandleFunc("/api/records", MetricsMiddleware(s.recordsHandler.HandleRecords, "records"))
	mux.HandleFunc("/api/records/options", MetricsMiddleware(s.recordsHandler.HandleOptions, "options"))
	mux.HandleFunc("/api/export", MetricsMiddleware(s.recordsHandler.HandleExport, "export"))
	mux.HandleFunc("/api/trends", MetricsMiddleware(s.trendsHandler.HandleTrends, "trends"))
	mux.HandleFunc("/api/reset", MetricsMiddleware(s.resetHandler.HandleReset, "reset"))
}

// recordJSON is the wire shape of a stored record.
type recordJSON struct {
	TeamMember     string   `json:"team_member"`
	District       string   `json:"district"`
	SchoolName     string   `json:"school_name"`
	MetricName     string   `json:"metric_name"`
	Value          string   `json:"value"`
	NumericValue   *float64 `json:"numeric_value,omitempty"`
	IsAnomaly      bool     `json:"is_anomaly"`
	AnomalyComment string   `json:"anomaly_comment"`
	Date           string   `json:"date"`
}

func toRecordJSON(r model.MetricRecord) recordJSON {
	out := recordJSON{
		TeamMember:     r.TeamMember,
		District:       r.District,
		SchoolName:     r.SchoolName,
		MetricName:     r.MetricName,
		Value:          r.Value.String(),
		IsAnomaly:      r.IsAnomaly,
		AnomalyComment: r.AnomalyComment,
		Date:           r.Date(),
	}
	if f, ok := r.Value.Float(); ok {
		out.NumericValue = &f
	}
	return out
}

// finite returns nil for NaN and infinities, which JSON cannot carry.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

type errorResponse struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func writeFieldError(w http.ResponseWriter, field string, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Code: "validation_error", Field: field, Message: err.Error()})
}
