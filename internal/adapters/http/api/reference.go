package api

import "net/http"

type districtJSON struct {
	District string   `json:"district"`
	Schools  []string `json:"schools"`
}

type referenceResponse struct {
	Districts []districtJSON `json:"districts"`
}

type catalogResponse struct {
	TeamMembers []string `json:"team_members"`
	MetricNames []string `json:"metric_names"`
}

// ReferenceHandler serves the static choices of the entry form.
type ReferenceHandler struct {
	deps Dependencies
}

// NewReferenceHandler creates a new reference handler.
func NewReferenceHandler(deps Dependencies) *ReferenceHandler {
	return &ReferenceHandler{deps: deps}
}

// HandleReference handles GET /api/reference requests.
func (h *ReferenceHandler) HandleReference(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	dir := h.deps.Reference()
	out := referenceResponse{Districts: []districtJSON{}}
	for _, d := range dir.Districts() {
		out.Districts = append(out.Districts, districtJSON{District: d, Schools: nonNil(dir.Schools(d))})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCatalog handles GET /api/catalog requests.
func (h *ReferenceHandler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	c := h.deps.Catalog()
	writeJSON(w, http.StatusOK, catalogResponse{
		TeamMembers: nonNil(c.TeamMembers),
		MetricNames: nonNil(c.MetricNames),
	})
}
