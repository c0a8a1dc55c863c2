package api

import (
	"net/http"

	"github.com/okian/moncell/pkg/logger"
)

type resetResponse struct {
	Status  string `json:"status"`
	Pending int    `json:"pending"`
}

// ResetHandler deletes the persisted store.
type ResetHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewResetHandler creates a new reset handler.
func NewResetHandler(deps Dependencies, l logger.Logger) *ResetHandler {
	return &ResetHandler{deps: deps, logger: l}
}

// HandleReset handles POST /api/reset requests.
func (h *ResetHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	const op = "api.reset"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	buf, err := h.deps.Reset(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "reset failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
		return
	}
	writeJSON(w, http.StatusOK, resetResponse{Status: "reset", Pending: buf.Len()})
}
