// Package handlers contains the HTTP handler implementations for the FieldMap API.
//
// This file implements the map handler:
//   - Interpolated map (GET /map and GET /v1/map)
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"fieldmap/internal/core"
	"fieldmap/internal/fieldmap"
	"fieldmap/internal/types"
)

// MapService defines the service contract for the map handler. It matches
// fieldmap.Service but is declared locally so tests can inject a fake.
type MapService interface {
	BuildMap(ctx context.Context, req fieldmap.Request) (*fieldmap.Result, error)
}

// MapHandler maps HTTP requests to MapService.BuildMap.
type MapHandler struct {
	service   MapService
	validator *core.Validator
	logger    *slog.Logger
}

// NewMapHandler creates a new MapHandler with the provided dependencies.
func NewMapHandler(svc MapService, val *core.Validator, logger *slog.Logger) *MapHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MapHandler{
		service:   svc,
		validator: val,
		logger:    logger,
	}
}

// RegisterRoutes mounts the map endpoint onto the router.
func (h *MapHandler) RegisterRoutes(r chi.Router) {
	r.Get("/map", h.HandleGetMap)
}

// mapQuery is the raw query string of a map request. Fields are validated in
// declaration order and the first failure is reported.
type mapQuery struct {
	Param     string `query:"param" validate:"omitempty,fieldlabel"`
	StartDate string `query:"start_date" validate:"omitempty,isodate"`
	EndDate   string `query:"end_date" validate:"omitempty,isodate"`
	Power     string `query:"power" validate:"omitempty,posfloat"`
}

// HandleGetMap handles GET /map.
//  1. Parse and validate query params: param, start_date, end_date, power.
//  2. Call MapService.BuildMap (empty values take the service defaults).
//  3. Return the filled FeatureCollection as application/geo+json.
func (h *MapHandler) HandleGetMap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := mapQuery{
		Param:     strings.TrimSpace(q.Get("param")),
		StartDate: strings.TrimSpace(q.Get("start_date")),
		EndDate:   strings.TrimSpace(q.Get("end_date")),
		Power:     strings.TrimSpace(q.Get("power")),
	}

	if err := h.validator.ValidateStruct(query); err != nil {
		core.Error(w, r, err)
		return
	}

	req := fieldmap.Request{
		StartDate: query.StartDate,
		EndDate:   query.EndDate,
		Param:     query.Param,
	}
	if query.Power != "" {
		// Already checked by the posfloat rule.
		p, _ := strconv.ParseFloat(query.Power, 64)
		req.Power = &p
	}

	result, err := h.service.BuildMap(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	body, err := result.Set.FeatureCollection().MarshalJSON()
	if err != nil {
		logger := types.LoggerFromContext(r.Context(), h.logger)
		logger.Error("failed to encode feature collection", "error", err)
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode map", err))
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Header().Set("X-FieldMap-Field", result.Field.Label())
	w.Header().Set("X-FieldMap-Stations", strconv.Itoa(len(result.Observations)))
	core.GeoJSON(w, http.StatusOK, body)
}
