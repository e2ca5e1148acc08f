package handlers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/nearcare/internal/application/services"
	"github.com/zatekoja/nearcare/internal/domain/entities"
	"github.com/zatekoja/nearcare/internal/infrastructure/observability"
	"github.com/zatekoja/nearcare/pkg/geo"
)

// FacilitySearcher runs the three facility searches
type FacilitySearcher interface {
	SearchHospitals(ctx context.Context, q services.SearchQuery) ([]entities.RankedResult, error)
	SearchEmergency(ctx context.Context, q services.SearchQuery) ([]entities.RankedResult, error)
	SearchPharmacies(ctx context.Context, q services.SearchQuery) ([]entities.RankedResult, error)
}

// SearchHandler handles facility search HTTP requests
type SearchHandler struct {
	searcher FacilitySearcher
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(searcher FacilitySearcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

// SearchHospitals handles GET /api/hospitals
func (h *SearchHandler) SearchHospitals(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, services.SearchTypeHospital, h.searcher.SearchHospitals)
}

// SearchEmergency handles GET /api/emergency
func (h *SearchHandler) SearchEmergency(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, services.SearchTypeEmergency, h.searcher.SearchEmergency)
}

// SearchPharmacies handles GET /api/pharmacies
func (h *SearchHandler) SearchPharmacies(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, services.SearchTypePharmacy, h.searcher.SearchPharmacies)
}

type searchFunc func(ctx context.Context, q services.SearchQuery) ([]entities.RankedResult, error)

func (h *SearchHandler) serve(w http.ResponseWriter, r *http.Request, t services.SearchType, search searchFunc) {
	q, err := parseSearchQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, span := observability.StartSpan(r.Context(), "handler.search")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("search.type", string(t)),
		attribute.Float64("search.lat", q.Location.Lat),
		attribute.Float64("search.lon", q.Location.Lon),
		attribute.Bool("search.keyword", q.Keyword != ""),
	)

	results, err := search(ctx, q)
	if err != nil {
		observability.RecordError(span, err)
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, results)
}

// parseSearchQuery reads lat, lon, keyword, radius and limit from the query string
func parseSearchQuery(r *http.Request) (services.SearchQuery, error) {
	values := r.URL.Query()
	var q services.SearchQuery

	latRaw, lonRaw := strings.TrimSpace(values.Get("lat")), strings.TrimSpace(values.Get("lon"))
	if latRaw == "" || lonRaw == "" {
		return q, fmt.Errorf("lat and lon are required")
	}
	lat, err := parseFinite(latRaw)
	if err != nil {
		return q, fmt.Errorf("lat must be a number")
	}
	lon, err := parseFinite(lonRaw)
	if err != nil {
		return q, fmt.Errorf("lon must be a number")
	}
	loc := geo.Coordinate{Lat: lat, Lon: lon}
	if !loc.Valid() {
		return q, fmt.Errorf("lat must be within [-90,90] and lon within [-180,180]")
	}
	q.Location = &loc
	q.Keyword = strings.TrimSpace(values.Get("keyword"))

	if raw := strings.TrimSpace(values.Get("radius")); raw != "" {
		radius, err := parseFinite(raw)
		if err != nil || radius < 0 {
			return q, fmt.Errorf("radius must be a non-negative number of km")
		}
		q.RadiusKm = radius
	}
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return q, fmt.Errorf("limit must be a non-negative integer")
		}
		q.Limit = limit
	}
	return q, nil
}

func parseFinite(raw string) (float64, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number: %q", raw)
	}
	return f, nil
}
