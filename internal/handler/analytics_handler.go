package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/opencarpool/carpool/internal/models"
	"github.com/opencarpool/carpool/internal/service"
	"github.com/opencarpool/carpool/pkg/utils"
)

type AnalyticsHandler struct {
	pricingService   service.PricingService
	analyticsService service.AnalyticsService
	validate         *validator.Validate
}

func NewAnalyticsHandler(pricingService service.PricingService, analyticsService service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{
		pricingService:   pricingService,
		analyticsService: analyticsService,
		validate:         validator.New(),
	}
}

func (h *AnalyticsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/pricing/quote", h.PriceQuote)
	r.Get("/analytics/popular-routes", h.PopularRoutes)
	r.Get("/analytics/heatmap", h.Heatmap)
}

// POST /v1/pricing/quote
func (h *AnalyticsHandler) PriceQuote(w http.ResponseWriter, r *http.Request) {
	var req models.PriceQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	quote, err := h.pricingService.CalculateDynamicPrice(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, quote)
}

// GET /v1/analytics/popular-routes
func (h *AnalyticsHandler) PopularRoutes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
	lng, err2 := strconv.ParseFloat(q.Get("lng"), 64)
	if err1 != nil || err2 != nil {
		utils.BadRequest(w, "lat and lng are required")
		return
	}

	radius := 0.0
	if v := q.Get("radius"); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil {
			utils.BadRequest(w, "radius must be a number")
			return
		}
		radius = d
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			utils.BadRequest(w, "limit must be an integer")
			return
		}
		limit = n
	}

	routes, err := h.analyticsService.PopularRoutes(r.Context(), models.GeoPoint{Lat: lat, Lng: lng}, radius, limit)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, routes)
}

// GET /v1/analytics/heatmap
func (h *AnalyticsHandler) Heatmap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	minLat, err1 := strconv.ParseFloat(q.Get("min_lat"), 64)
	maxLat, err2 := strconv.ParseFloat(q.Get("max_lat"), 64)
	minLng, err3 := strconv.ParseFloat(q.Get("min_lng"), 64)
	maxLng, err4 := strconv.ParseFloat(q.Get("max_lng"), 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		utils.BadRequest(w, "min_lat, max_lat, min_lng and max_lng are required")
		return
	}

	req := &models.HeatmapRequest{
		Bounds: models.BoundingBox{
			MinLat: minLat, MaxLat: maxLat,
			MinLng: minLng, MaxLng: maxLng,
		},
	}

	if v := q.Get("cell_size"); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil {
			utils.BadRequest(w, "cell_size must be a number")
			return
		}
		req.CellSize = d
	}
	if v := q.Get("date_from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			utils.BadRequest(w, "date_from must be YYYY-MM-DD")
			return
		}
		req.DateFrom = &t
	}
	if v := q.Get("date_to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			utils.BadRequest(w, "date_to must be YYYY-MM-DD")
			return
		}
		req.DateTo = &t
	}

	cells, err := h.analyticsService.DensityHeatmap(r.Context(), req)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, cells)
}
