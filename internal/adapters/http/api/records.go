package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/moncell/internal/domain/filter"
	"github.com/okian/moncell/internal/domain/model"
	"github.com/okian/moncell/pkg/logger"
)

// ExportFilename is the attachment name of a CSV export.
const ExportFilename = "filtered_monitoring_data.csv"

type recordsResponse struct {
	From    string       `json:"from"`
	To      string       `json:"to"`
	Count   int          `json:"count"`
	Records []recordJSON `json:"records"`
}

type optionsResponse struct {
	Districts []string `json:"districts"`
	Schools   []string `json:"schools"`
	Metrics   []string `json:"metrics"`
}

// RecordsHandler serves the filtered subset as JSON or CSV.
type RecordsHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(deps Dependencies, l logger.Logger) *RecordsHandler {
	return &RecordsHandler{deps: deps, logger: l}
}

// HandleRecords handles GET /api/records requests.
func (h *RecordsHandler) HandleRecords(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_records"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	c, ok := h.criteria(w, r, op)
	if !ok {
		return
	}
	rows, err := h.deps.Records(r.Context(), c)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	out := recordsResponse{
		From:    c.From.Format(model.DateLayout),
		To:      c.To.Format(model.DateLayout),
		Count:   len(rows),
		Records: make([]recordJSON, 0, len(rows)),
	}
	for _, rec := range rows {
		out.Records = append(out.Records, toRecordJSON(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleOptions handles GET /api/records/options requests.
func (h *RecordsHandler) HandleOptions(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_options"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	o, err := h.deps.Options(r.Context())
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, optionsResponse{
		Districts: nonNil(o.Districts),
		Schools:   nonNil(o.Schools),
		Metrics:   nonNil(o.Metrics),
	})
}

// HandleExport handles GET /api/export requests.
func (h *RecordsHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.export"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	c, ok := h.criteria(w, r, op)
	if !ok {
		return
	}
	var buf bytes.Buffer
	n, err := h.deps.Export(r.Context(), &buf, c)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+ExportFilename+`"`)
	w.Header().Set("X-Record-Count", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *RecordsHandler) criteria(w http.ResponseWriter, r *http.Request, op string) (filter.Criteria, bool) {
	c, err := parseCriteria(h.deps, r.URL.Query())
	if err != nil {
		if errors.Is(err, ErrBadRequest) {
			writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
		} else {
			h.fail(w, r, op, err)
		}
		return c, false
	}
	return c, true
}

func (h *RecordsHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(r.Context(), "records request failed", logger.String("op", op), logger.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
