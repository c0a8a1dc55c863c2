package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/moncell/internal/domain/entry"
	"github.com/okian/moncell/internal/domain/types"
	"github.com/okian/moncell/pkg/logger"
)

// maxEntryBody bounds the size of an entry request body.
const maxEntryBody = 64 << 10

// entryRequest mirrors the OpenAPI schema for POST /api/entries.
type entryRequest struct {
	SubmissionID   string    `json:"submission_id"`
	TeamMember     string    `json:"team_member"`
	District       string    `json:"district"`
	SchoolName     string    `json:"school_name"`
	MetricName     string    `json:"metric_name"`
	Value          textValue `json:"value"`
	IsAnomaly      bool      `json:"is_anomaly"`
	AnomalyComment string    `json:"anomaly_comment"`
}

// textValue accepts a JSON string or number and keeps its text.
type textValue string

func (v *textValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*v = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = textValue(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return errors.New("value must be a string or a number")
		}
		*v = textValue(n.String())
	}
	return nil
}

type entryResponse struct {
	Status       string      `json:"status"`
	SubmissionID string      `json:"submission_id"`
	Record       *recordJSON `json:"record,omitempty"`
	Pending      int         `json:"pending"`
}

// EntriesHandler handles entry submissions.
type EntriesHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewEntriesHandler creates a new entries handler.
func NewEntriesHandler(deps Dependencies, l logger.Logger) *EntriesHandler {
	return &EntriesHandler{deps: deps, logger: l}
}

// HandlePostEntry handles POST /api/entries requests.
func (h *EntriesHandler) HandlePostEntry(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_entry"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req entryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEntryBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	receipt, err := h.deps.Submit(r.Context(), types.Submission{
		ID: req.SubmissionID,
		Candidate: entry.Candidate{
			TeamMember:     req.TeamMember,
			District:       req.District,
			SchoolName:     req.SchoolName,
			MetricName:     req.MetricName,
			Value:          string(req.Value),
			IsAnomaly:      req.IsAnomaly,
			AnomalyComment: req.AnomalyComment,
		},
	})
	var fe *entry.FieldError
	switch {
	case errors.As(err, &fe):
		writeFieldError(w, fe.Field, WrapKind(op, ErrValidation, fe))
		return
	case err != nil:
		h.logger.Error(r.Context(), "entry not recorded", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
		return
	}

	if receipt.Duplicate {
		writeJSON(w, http.StatusOK, entryResponse{Status: "duplicate", SubmissionID: receipt.SubmissionID, Pending: receipt.Pending})
		return
	}
	rec := toRecordJSON(receipt.Record)
	writeJSON(w, http.StatusCreated, entryResponse{
		Status:       "recorded",
		SubmissionID: receipt.SubmissionID,
		Record:       &rec,
		Pending:      receipt.Pending,
	})
}
