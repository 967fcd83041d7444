package service

import (
	"context"
	"errors"
	"net/http"

	apperrors "github.com/opencarpool/carpool/internal/errors"
	"github.com/opencarpool/carpool/internal/geo"
	"github.com/opencarpool/carpool/internal/models"
	"github.com/opencarpool/carpool/internal/policy"
	"github.com/opencarpool/carpool/internal/repository"
)

type RequestService interface {
	CreateRequest(ctx context.Context, req *models.CreateRequestRequest) (*models.RideRequest, error)
	GetRequest(ctx context.Context, id string) (*models.RideRequest, error)
	ListByRide(ctx context.Context, rideID string) ([]*models.RideRequest, error)
	ListByPassenger(ctx context.Context, passengerID string, status *string) ([]*models.RideRequest, error)
	PendingForDriver(ctx context.Context, driverID string) ([]*models.RideRequest, error)
	AcceptRequest(ctx context.Context, id string) (*models.RideRequest, error)
	RejectRequest(ctx context.Context, id string) (*models.RideRequest, error)
	CancelRequest(ctx context.Context, id string) (*models.RideRequest, error)
	MarkPickedUp(ctx context.Context, id string) (*models.RideRequest, error)
	MarkDroppedOff(ctx context.Context, id string) (*models.RideRequest, error)
	StatsByDriver(ctx context.Context, driverID string) (*models.RequestStats, error)
}

type requestService struct {
	requestRepo    repository.RequestRepository
	rideRepo       repository.RideRepository
	capacityPolicy policy.CapacityPolicy
	detourPolicy   policy.DetourPolicy
}

func NewRequestService(
	requestRepo repository.RequestRepository,
	rideRepo repository.RideRepository,
	capacityPolicy policy.CapacityPolicy,
	detourPolicy policy.DetourPolicy,
) RequestService {
	return &requestService{
		requestRepo:    requestRepo,
		rideRepo:       rideRepo,
		capacityPolicy: capacityPolicy,
		detourPolicy:   detourPolicy,
	}
}

func (s *requestService) CreateRequest(ctx context.Context, req *models.CreateRequestRequest) (*models.RideRequest, error) {
	if req.Seats < 1 || req.Seats > 8 {
		return nil, apperrors.BadRequest("seats must be between 1 and 8")
	}
	if req.Message != nil && len(*req.Message) > 500 {
		return nil, apperrors.BadRequest("message must be at most 500 characters")
	}
	if req.Pickup != nil {
		if err := validatePoint(req.Pickup.Point()); err != nil {
			return nil, err
		}
		if req.Pickup.Address == "" {
			return nil, apperrors.BadRequest("pickup address is required when a pickup point is given")
		}
	}
	if req.Dropoff != nil {
		if err := validatePoint(req.Dropoff.Point()); err != nil {
			return nil, err
		}
		if req.Dropoff.Address == "" {
			return nil, apperrors.BadRequest("dropoff address is required when a dropoff point is given")
		}
	}

	ride, err := s.rideRepo.GetByID(ctx, req.RideID)
	if err != nil {
		return nil, err
	}
	if ride == nil {
		return nil, apperrors.NotFound("ride")
	}
	if ride.Status != models.RideStatusPending {
		return nil, apperrors.RideNotActive(ride.ID)
	}

	request := &models.RideRequest{
		RideID:         req.RideID,
		PassengerID:    req.PassengerID,
		SeatsRequested: req.Seats,
		Message:        req.Message,
	}
	if req.Pickup != nil {
		request.PickupLat = &req.Pickup.Lat
		request.PickupLng = &req.Pickup.Lng
		request.PickupAddress = &req.Pickup.Address
	}
	if req.Dropoff != nil {
		request.DropoffLat = &req.Dropoff.Lat
		request.DropoffLng = &req.Dropoff.Lng
		request.DropoffAddress = &req.Dropoff.Address
	}

	// Detour accounting relative to the driver's planned distance. The
	// amended route visits pickup then dropoff between the endpoints.
	if req.Pickup != nil && req.Dropoff != nil && ride.EstimatedDistance > 0 {
		pickup := req.Pickup.Point()
		dropoff := req.Dropoff.Point()
		request.PickupDistance = geo.Distance(ride.StartPoint(), pickup)
		request.DropoffDistance = geo.Distance(dropoff, ride.EndPoint())

		amended := models.Route{ride.StartPoint(), pickup, dropoff, ride.EndPoint()}
		newLength := geo.RouteLength(amended)
		if newLength > ride.EstimatedDistance {
			request.AdditionalDistance = newLength - ride.EstimatedDistance
		}
		request.DetourPercent = request.AdditionalDistance / ride.EstimatedDistance * 100
	}

	if maxPct := s.detourPolicy.MaxDetourPercent(); maxPct > 0 && request.DetourPercent > maxPct {
		return nil, apperrors.ExcessiveDetour(request.DetourPercent, maxPct)
	}

	if err := s.requestRepo.Create(ctx, request); err != nil {
		return nil, err
	}
	return request, nil
}

func (s *requestService) GetRequest(ctx context.Context, id string) (*models.RideRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, apperrors.NotFound("request")
	}
	return request, nil
}

func (s *requestService) ListByRide(ctx context.Context, rideID string) ([]*models.RideRequest, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride == nil {
		return nil, apperrors.NotFound("ride")
	}
	return s.requestRepo.ListByRide(ctx, rideID)
}

func (s *requestService) ListByPassenger(ctx context.Context, passengerID string, status *string) ([]*models.RideRequest, error) {
	return s.requestRepo.ListByPassenger(ctx, passengerID, status)
}

func (s *requestService) PendingForDriver(ctx context.Context, driverID string) ([]*models.RideRequest, error) {
	return s.requestRepo.PendingForDriver(ctx, driverID)
}

func (s *requestService) AcceptRequest(ctx context.Context, id string) (*models.RideRequest, error) {
	request, err := s.requestRepo.Accept(ctx, id, s.capacityPolicy.RejectPendingWhenFull())
	if err != nil {
		return nil, s.translateError(ctx, id, err, models.RequestStatusAccepted)
	}
	return request, nil
}

func (s *requestService) RejectRequest(ctx context.Context, id string) (*models.RideRequest, error) {
	request, err := s.requestRepo.UpdateStatusGuarded(ctx, id,
		models.RequestStatusPending, models.RequestStatusRejected, "responded_at")
	if err != nil {
		return nil, s.translateError(ctx, id, err, models.RequestStatusRejected)
	}
	return request, nil
}

func (s *requestService) CancelRequest(ctx context.Context, id string) (*models.RideRequest, error) {
	request, err := s.requestRepo.Cancel(ctx, id)
	if err != nil {
		return nil, s.translateError(ctx, id, err, models.RequestStatusCancelled)
	}
	return request, nil
}

func (s *requestService) MarkPickedUp(ctx context.Context, id string) (*models.RideRequest, error) {
	request, err := s.requestRepo.UpdateStatusGuarded(ctx, id,
		models.RequestStatusAccepted, models.RequestStatusOnGoing, "picked_up_at")
	if err != nil {
		return nil, s.translateError(ctx, id, err, models.RequestStatusOnGoing)
	}
	return request, nil
}

func (s *requestService) MarkDroppedOff(ctx context.Context, id string) (*models.RideRequest, error) {
	request, err := s.requestRepo.UpdateStatusGuarded(ctx, id,
		models.RequestStatusOnGoing, models.RequestStatusCompleted, "dropped_off_at")
	if err != nil {
		return nil, s.translateError(ctx, id, err, models.RequestStatusCompleted)
	}
	return request, nil
}

func (s *requestService) StatsByDriver(ctx context.Context, driverID string) (*models.RequestStats, error) {
	return s.requestRepo.StatsByDriver(ctx, driverID)
}

// translateError maps the repository sentinels onto the API taxonomy,
// fetching the current status so invalid-transition messages name it.
func (s *requestService) translateError(ctx context.Context, id string, err error, target string) error {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return apperrors.NotFound("request")
	case errors.Is(err, apperrors.ErrInsufficientSeats):
		return apperrors.NewAPIError("insufficient_seats", "not enough seats available", http.StatusConflict)
	case errors.Is(err, apperrors.ErrInvalidTransition):
		current := "unknown"
		if request, getErr := s.requestRepo.GetByID(ctx, id); getErr == nil && request != nil {
			current = request.Status
		}
		return apperrors.InvalidTransition(current, target)
	default:
		return err
	}
}
