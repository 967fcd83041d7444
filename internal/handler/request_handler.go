package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/opencarpool/carpool/internal/errors"
	"github.com/opencarpool/carpool/internal/models"
	"github.com/opencarpool/carpool/internal/observability"
	"github.com/opencarpool/carpool/internal/service"
	"github.com/opencarpool/carpool/pkg/utils"
)

type RequestHandler struct {
	requestService service.RequestService
	validate       *validator.Validate
}

func NewRequestHandler(requestService service.RequestService) *RequestHandler {
	return &RequestHandler{
		requestService: requestService,
		validate:       validator.New(),
	}
}

func (h *RequestHandler) RegisterRoutes(r chi.Router) {
	r.Post("/requests", h.CreateRequest)
	r.Get("/requests/{id}", h.GetRequest)
	r.Post("/requests/{id}/accept", h.Accept)
	r.Post("/requests/{id}/reject", h.Reject)
	r.Post("/requests/{id}/cancel", h.Cancel)
	r.Post("/requests/{id}/pickup", h.Pickup)
	r.Post("/requests/{id}/dropoff", h.Dropoff)
	r.Get("/passengers/{passengerId}/requests", h.ListByPassenger)
	r.Get("/drivers/{driverId}/requests/pending", h.PendingForDriver)
	r.Get("/drivers/{driverId}/requests/stats", h.Stats)
}

// POST /v1/requests
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	request, err := h.requestService.CreateRequest(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}
	observability.RequestsCreated.Inc()

	utils.Created(w, request)
}

// GET /v1/requests/{id}
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "request id is required")
		return
	}

	request, err := h.requestService.GetRequest(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, request)
}

// POST /v1/requests/{id}/accept
func (h *RequestHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	request, err := h.requestService.AcceptRequest(r.Context(), id)
	if err != nil {
		if apiErr, ok := err.(*apperrors.APIError); ok && apiErr.Code == "insufficient_seats" {
			observability.SeatConflicts.Inc()
		}
		handleError(w, err)
		return
	}
	observability.RequestsAccepted.Inc()

	utils.Success(w, http.StatusOK, request)
}

// POST /v1/requests/{id}/reject
func (h *RequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	request, err := h.requestService.RejectRequest(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, request)
}

// POST /v1/requests/{id}/cancel
func (h *RequestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	request, err := h.requestService.CancelRequest(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, request)
}

// POST /v1/requests/{id}/pickup
func (h *RequestHandler) Pickup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	request, err := h.requestService.MarkPickedUp(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, request)
}

// POST /v1/requests/{id}/dropoff
func (h *RequestHandler) Dropoff(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	request, err := h.requestService.MarkDroppedOff(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, request)
}

// GET /v1/passengers/{passengerId}/requests
func (h *RequestHandler) ListByPassenger(w http.ResponseWriter, r *http.Request) {
	passengerID := chi.URLParam(r, "passengerId")

	var status *string
	if v := r.URL.Query().Get("status"); v != "" {
		status = &v
	}

	requests, err := h.requestService.ListByPassenger(r.Context(), passengerID, status)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, requests)
}

// GET /v1/drivers/{driverId}/requests/pending
func (h *RequestHandler) PendingForDriver(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "driverId")

	requests, err := h.requestService.PendingForDriver(r.Context(), driverID)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, requests)
}

// GET /v1/drivers/{driverId}/requests/stats
func (h *RequestHandler) Stats(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "driverId")

	stats, err := h.requestService.StatsByDriver(r.Context(), driverID)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, stats)
}
