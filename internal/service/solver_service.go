package service

import (
	"context"
	"math"

	apperrors "github.com/opencarpool/carpool/internal/errors"
	"github.com/opencarpool/carpool/internal/geo"
	"github.com/opencarpool/carpool/internal/models"
	"github.com/opencarpool/carpool/internal/repository"
)

type SolverService interface {
	FindOptimalPickupDropoff(ctx context.Context, rideID string, passengerStart, passengerEnd models.GeoPoint, maxDetourKm float64) (*models.OptimalPoints, error)
}

type solverService struct {
	rideRepo           repository.RideRepository
	defaultMaxDetourKm float64
}

func NewSolverService(rideRepo repository.RideRepository, defaultMaxDetourKm float64) SolverService {
	return &solverService{
		rideRepo:           rideRepo,
		defaultMaxDetourKm: defaultMaxDetourKm,
	}
}

// FindOptimalPickupDropoff projects the passenger's endpoints onto the
// driver's start-to-end segment. A nil result with nil error means the
// total walking distance exceeds the detour budget; that is an expected
// negative answer, not a failure.
func (s *solverService) FindOptimalPickupDropoff(ctx context.Context, rideID string, passengerStart, passengerEnd models.GeoPoint, maxDetourKm float64) (*models.OptimalPoints, error) {
	if err := validatePoint(passengerStart); err != nil {
		return nil, err
	}
	if err := validatePoint(passengerEnd); err != nil {
		return nil, err
	}
	if maxDetourKm < 0 {
		return nil, apperrors.BadRequest("max_detour_km must be non-negative")
	}
	if maxDetourKm == 0 {
		maxDetourKm = s.defaultMaxDetourKm
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride == nil {
		return nil, apperrors.NotFound("ride")
	}

	segStart := ride.StartPoint()
	segEnd := ride.EndPoint()

	pickup := geo.NearestPointOnSegment(passengerStart, segStart, segEnd)
	dropoff := geo.NearestPointOnSegment(passengerEnd, segStart, segEnd)

	walkToPickup := geo.Distance(passengerStart, pickup)
	walkFromDropoff := geo.Distance(passengerEnd, dropoff)

	totalDetourKm := (walkToPickup + walkFromDropoff) / 1000
	if totalDetourKm > maxDetourKm {
		return nil, nil
	}

	return &models.OptimalPoints{
		Pickup:          pickup,
		Dropoff:         dropoff,
		WalkToPickup:    math.Round(walkToPickup),
		WalkFromDropoff: math.Round(walkFromDropoff),
		SegmentDistance: math.Round(geo.Distance(pickup, dropoff)),
		TotalDetourKm:   math.Round(totalDetourKm*100) / 100,
	}, nil
}
