package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/opencarpool/carpool/internal/errors"
	"github.com/opencarpool/carpool/internal/models"
	"github.com/opencarpool/carpool/internal/observability"
	"github.com/opencarpool/carpool/internal/service"
	"github.com/opencarpool/carpool/pkg/utils"
)

type RideHandler struct {
	rideService    service.RideService
	searchService  service.SearchService
	requestService service.RequestService
	solverService  service.SolverService
	searchRadiusM  float64
	validate       *validator.Validate
}

func NewRideHandler(
	rideService service.RideService,
	searchService service.SearchService,
	requestService service.RequestService,
	solverService service.SolverService,
	searchRadiusM float64,
) *RideHandler {
	return &RideHandler{
		rideService:    rideService,
		searchService:  searchService,
		requestService: requestService,
		solverService:  solverService,
		searchRadiusM:  searchRadiusM,
		validate:       validator.New(),
	}
}

func (h *RideHandler) RegisterRoutes(r chi.Router) {
	r.Post("/rides", h.CreateRide)
	r.Get("/rides/search", h.SearchRides)
	r.Post("/rides/search/route", h.SearchByRoute)
	r.Get("/rides/{id}", h.GetRide)
	r.Post("/rides/{id}/status", h.UpdateStatus)
	r.Post("/rides/{id}/location", h.UpdateLocation)
	r.Get("/rides/{id}/location", h.GetLocation)
	r.Post("/rides/{id}/start", h.StartTrip)
	r.Post("/rides/{id}/finish", h.FinishTrip)
	r.Get("/rides/{id}/requests", h.ListRequests)
	r.Get("/rides/{id}/optimal-points", h.OptimalPoints)
	r.Get("/drivers/{driverId}/rides", h.ListByDriver)
}

// POST /v1/rides
func (h *RideHandler) CreateRide(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	ride, err := h.rideService.CreateRide(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Created(w, ride)
}

// GET /v1/rides/{id}
func (h *RideHandler) GetRide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !utils.IsValidUUID(id) {
		utils.BadRequest(w, "ride id must be a UUID")
		return
	}

	ride, err := h.rideService.GetRide(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, ride)
}

// GET /v1/rides/search
func (h *RideHandler) SearchRides(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	startLat, err1 := strconv.ParseFloat(q.Get("start_lat"), 64)
	startLng, err2 := strconv.ParseFloat(q.Get("start_lng"), 64)
	endLat, err3 := strconv.ParseFloat(q.Get("end_lat"), 64)
	endLng, err4 := strconv.ParseFloat(q.Get("end_lng"), 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		utils.BadRequest(w, "start_lat, start_lng, end_lat and end_lng are required")
		return
	}

	filter := &models.SearchFilter{
		Start:            models.GeoPoint{Lat: startLat, Lng: startLng},
		End:              models.GeoPoint{Lat: endLat, Lng: endLng},
		MaxStartDistance: h.searchRadiusM,
		MaxEndDistance:   h.searchRadiusM,
		SeatsNeeded:      1,
		SortBy:           q.Get("sort_by"),
		Page:             1,
		Limit:            0,
	}

	if v := q.Get("max_start_distance"); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil {
			utils.BadRequest(w, "max_start_distance must be a number")
			return
		}
		filter.MaxStartDistance = d
	}
	if v := q.Get("max_end_distance"); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil {
			utils.BadRequest(w, "max_end_distance must be a number")
			return
		}
		filter.MaxEndDistance = d
	}
	if v := q.Get("seats"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			utils.BadRequest(w, "seats must be an integer")
			return
		}
		filter.SeatsNeeded = n
	}
	if v := q.Get("date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			utils.BadRequest(w, "date must be YYYY-MM-DD")
			return
		}
		filter.DepartureDate = &t
	}
	if v := q.Get("max_price"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			utils.BadRequest(w, "max_price must be a number")
			return
		}
		filter.MaxPrice = &p
	}
	for param, dest := range map[string]**bool{
		"allow_luggage": &filter.AllowLuggage,
		"allow_pets":    &filter.AllowPets,
		"allow_smoking": &filter.AllowSmoking,
	} {
		if v := q.Get(param); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				utils.BadRequest(w, param+" must be a boolean")
				return
			}
			*dest = &b
		}
	}
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Page = n
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	start := time.Now()
	result, err := h.searchService.SearchRides(r.Context(), filter)
	if err != nil {
		handleError(w, err)
		return
	}
	observability.SearchesTotal.Inc()
	observability.SearchLatency.Observe(time.Since(start).Seconds())

	utils.Success(w, http.StatusOK, result)
}

// POST /v1/rides/search/route
func (h *RideHandler) SearchByRoute(w http.ResponseWriter, r *http.Request) {
	var filter models.RouteSearchFilter
	if err := json.NewDecoder(r.Body).Decode(&filter); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}
	if filter.SeatsNeeded == 0 {
		filter.SeatsNeeded = 1
	}

	start := time.Now()
	matches, err := h.searchService.SearchByRouteSimilarity(r.Context(), &filter)
	if err != nil {
		handleError(w, err)
		return
	}
	observability.SearchesTotal.Inc()
	observability.SearchLatency.Observe(time.Since(start).Seconds())

	utils.Success(w, http.StatusOK, matches)
}

// POST /v1/rides/{id}/status
func (h *RideHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.UpdateRideStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	ride, err := h.rideService.UpdateRideStatus(r.Context(), id, req.Status)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, ride)
}

// POST /v1/rides/{id}/location
func (h *RideHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.UpdateRideLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.rideService.UpdateRideLocation(r.Context(), id, req.Lat, req.Lng); err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, map[string]string{"status": "updated"})
}

// GET /v1/rides/{id}/location
func (h *RideHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	loc, err := h.rideService.GetLiveLocation(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, loc)
}

// POST /v1/rides/{id}/start
func (h *RideHandler) StartTrip(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ride, err := h.rideService.StartTrip(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, ride)
}

// POST /v1/rides/{id}/finish
func (h *RideHandler) FinishTrip(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Body is optional; actual distance may be omitted.
	var req models.FinishRideRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			utils.BadRequest(w, "invalid request body")
			return
		}
	}

	ride, err := h.rideService.FinishTrip(r.Context(), id, req.ActualDistance)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, ride)
}

// GET /v1/rides/{id}/requests
func (h *RideHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	requests, err := h.requestService.ListByRide(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, requests)
}

// GET /v1/rides/{id}/optimal-points
func (h *RideHandler) OptimalPoints(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q := r.URL.Query()

	startLat, err1 := strconv.ParseFloat(q.Get("start_lat"), 64)
	startLng, err2 := strconv.ParseFloat(q.Get("start_lng"), 64)
	endLat, err3 := strconv.ParseFloat(q.Get("end_lat"), 64)
	endLng, err4 := strconv.ParseFloat(q.Get("end_lng"), 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		utils.BadRequest(w, "start_lat, start_lng, end_lat and end_lng are required")
		return
	}

	maxDetourKm := 0.0
	if v := q.Get("max_detour_km"); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil {
			utils.BadRequest(w, "max_detour_km must be a number")
			return
		}
		maxDetourKm = d
	}

	points, err := h.solverService.FindOptimalPickupDropoff(r.Context(), id,
		models.GeoPoint{Lat: startLat, Lng: startLng},
		models.GeoPoint{Lat: endLat, Lng: endLng},
		maxDetourKm)
	if err != nil {
		handleError(w, err)
		return
	}

	if points == nil {
		utils.Success(w, http.StatusOK, map[string]interface{}{
			"feasible": false,
			"message":  "walking distance exceeds the detour budget",
		})
		return
	}

	utils.Success(w, http.StatusOK, map[string]interface{}{
		"feasible": true,
		"points":   points,
	})
}

// GET /v1/drivers/{driverId}/rides
func (h *RideHandler) ListByDriver(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "driverId")

	rides, err := h.rideService.ListByDriver(r.Context(), driverID)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, rides)
}

func handleError(w http.ResponseWriter, err error) {
	if apiErr, ok := err.(*apperrors.APIError); ok {
		utils.Error(w, apiErr)
		return
	}

	switch err {
	case apperrors.ErrNotFound:
		utils.NotFound(w, "resource")
	case apperrors.ErrInsufficientSeats:
		utils.Error(w, apperrors.Conflict("not enough seats available"))
	case apperrors.ErrInvalidTransition:
		utils.Error(w, apperrors.Conflict("invalid state transition"))
	default:
		utils.InternalError(w, "internal server error")
	}
}
