package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/weekendfare/weekendfare/internal/airports"
	"github.com/weekendfare/weekendfare/internal/api/response"
)

// AirportsHandler handles airport directory endpoints.
type AirportsHandler struct{}

// NewAirportsHandler creates a new AirportsHandler.
func NewAirportsHandler() *AirportsHandler {
	return &AirportsHandler{}
}

// ListAirports handles GET /v1/airports - list the supported airports.
func (h *AirportsHandler) ListAirports(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=86400")
	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"airports": airports.All(),
	})
}

// GetAirport handles GET /v1/airports/{code} - look up one airport.
func (h *AirportsHandler) GetAirport(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	airport, ok := airports.Lookup(code)
	if !ok {
		response.NotFound(w, r, "unknown airport code")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=86400")
	response.JSON(w, r, http.StatusOK, airport)
}
