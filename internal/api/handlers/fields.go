package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"fieldmap/internal/core"
	"fieldmap/internal/types"
)

// FieldResponse describes one field the service knows about.
type FieldResponse struct {
	Label       string `json:"label"`
	Column      string `json:"column"`
	Implemented bool   `json:"implemented"`
}

// FieldsResponse is the body of GET /v1/fields.
type FieldsResponse struct {
	Fields []FieldResponse `json:"fields"`
}

// FieldsHandler lists the known fields.
type FieldsHandler struct{}

// NewFieldsHandler creates a FieldsHandler.
func NewFieldsHandler() *FieldsHandler { return &FieldsHandler{} }

// RegisterRoutes mounts the fields endpoint onto the router.
func (h *FieldsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/fields", h.HandleListFields)
}

// HandleListFields handles GET /fields.
func (h *FieldsHandler) HandleListFields(w http.ResponseWriter, r *http.Request) {
	all := types.AllFields()
	resp := FieldsResponse{Fields: make([]FieldResponse, 0, len(all))}
	for _, f := range all {
		resp.Fields = append(resp.Fields, FieldResponse{
			Label:       f.Label(),
			Column:      f.DataColumn(),
			Implemented: f.Implemented(),
		})
	}
	core.JSON(w, r, http.StatusOK, resp)
}
