// Package handler provides HTTP handlers for the weekendfare API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/weekendfare/weekendfare/internal/api/models"
	"github.com/weekendfare/weekendfare/internal/api/response"
	"github.com/weekendfare/weekendfare/internal/fare"
	"github.com/weekendfare/weekendfare/internal/search"
	"github.com/weekendfare/weekendfare/internal/searchstore"
)

// SearchHandler handles fare search endpoints.
type SearchHandler struct {
	service *search.Service
	store   *searchstore.Store
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(service *search.Service, store *searchstore.Store) *SearchHandler {
	return &SearchHandler{service: service, store: store}
}

// CreateSearch handles POST /v1/searches - run a fare search.
func (h *SearchHandler) CreateSearch(w http.ResponseWriter, r *http.Request) {
	var input models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if fieldErrs := input.Validate(); len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid search request", fieldErrs)
		return
	}

	result, err := h.service.Run(r.Context(), input.ToSearchRequest())
	if err != nil {
		switch {
		case errors.Is(err, fare.ErrInvalidAirport):
			response.BadRequest(w, r, "origin and destination must be IATA airport codes", nil)
		case errors.Is(err, fare.ErrInvalidWindow):
			response.BadRequest(w, r, err.Error(), nil)
		case errors.Is(err, fare.ErrWindowTooLarge):
			response.BadRequest(w, r, "the travel window expands to too many date pairs; narrow the dates or night bounds", nil)
		case errors.Is(err, context.Canceled):
			// Client went away; nothing useful to write.
		default:
			response.InternalError(w, r, "fare search failed")
		}
		return
	}

	entry := h.store.Put(result)
	resp := models.NewSearchResponse(entry.ID, entry.CreatedAt, entry.ExpiresAt, result)
	response.Created(w, r, "/v1/searches/"+entry.ID, resp)
}

// GetSearch handles GET /v1/searches/{searchId} - retrieve a completed search.
func (h *SearchHandler) GetSearch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "searchId")

	entry, err := h.store.Get(id)
	if err != nil {
		response.NotFound(w, r, "search not found or expired")
		return
	}

	resp := models.NewSearchResponse(entry.ID, entry.CreatedAt, entry.ExpiresAt, entry.Result)
	response.JSON(w, r, http.StatusOK, resp)
}

// ResultDetail is one ranked result with its booking link.
type ResultDetail struct {
	SearchID string `json:"searchId"`
	models.RankedResult
	BookingURL string `json:"bookingUrl"`
}

// GetResult handles GET /v1/searches/{searchId}/results/{rank} - retrieve one
// ranked result with a booking link.
func (h *SearchHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "searchId")

	entry, err := h.store.Get(id)
	if err != nil {
		response.NotFound(w, r, "search not found or expired")
		return
	}

	rank, err := strconv.Atoi(chi.URLParam(r, "rank"))
	if err != nil || rank < 1 || rank > len(entry.Result.Ranked) {
		response.NotFound(w, r, "no result with that rank")
		return
	}

	scored := entry.Result.Ranked[rank-1]
	resp := ResultDetail{
		SearchID:     entry.ID,
		RankedResult: models.NewRankedResultAt(rank, scored),
		BookingURL:   bookingURL(entry.Result.Origin, entry.Result.Destination, scored.Quote.Pair),
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// bookingURL builds a Google Flights deep link for a specific date pair.
func bookingURL(origin, destination string, pair fare.DatePair) string {
	query := fmt.Sprintf("Flights to %s from %s on %s through %s",
		destination, origin,
		pair.Depart.Format("2006-01-02"),
		pair.Return.Format("2006-01-02"))
	return "https://www.google.com/travel/flights?q=" + url.QueryEscape(query)
}
