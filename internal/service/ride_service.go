package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/opencarpool/carpool/internal/cache"
	apperrors "github.com/opencarpool/carpool/internal/errors"
	"github.com/opencarpool/carpool/internal/geo"
	"github.com/opencarpool/carpool/internal/models"
	"github.com/opencarpool/carpool/internal/repository"
)

type RideService interface {
	CreateRide(ctx context.Context, req *models.CreateRideRequest) (*models.Ride, error)
	GetRide(ctx context.Context, id string) (*models.Ride, error)
	UpdateRideStatus(ctx context.Context, id, status string) (*models.Ride, error)
	UpdateRideLocation(ctx context.Context, id string, lat, lng float64) error
	GetLiveLocation(ctx context.Context, id string) (*models.LiveLocation, error)
	StartTrip(ctx context.Context, id string) (*models.Ride, error)
	FinishTrip(ctx context.Context, id string, actualDistance *float64) (*models.Ride, error)
	ListByDriver(ctx context.Context, driverID string) ([]*models.Ride, error)
}

type rideService struct {
	rideRepo repository.RideRepository
	geoCache cache.RideGeoCache
}

func NewRideService(rideRepo repository.RideRepository, geoCache cache.RideGeoCache) RideService {
	return &rideService{
		rideRepo: rideRepo,
		geoCache: geoCache,
	}
}

func (s *rideService) CreateRide(ctx context.Context, req *models.CreateRideRequest) (*models.Ride, error) {
	if err := validatePoint(req.Start.Point()); err != nil {
		return nil, err
	}
	if err := validatePoint(req.End.Point()); err != nil {
		return nil, err
	}
	if req.Start.Address == "" || req.End.Address == "" {
		return nil, apperrors.BadRequest("start and end addresses are required")
	}
	for _, wp := range req.RoutePath {
		if err := validatePoint(models.GeoPoint{Lat: wp.Lat, Lng: wp.Lng}); err != nil {
			return nil, err
		}
	}

	// The route always begins at start and ends at end; waypoints slot
	// in between by their order index.
	waypoints := make([]models.RoutePoint, 0, len(req.RoutePath)+2)
	waypoints = append(waypoints, models.RoutePoint{Lat: req.Start.Lat, Lng: req.Start.Lng, Order: -1})
	waypoints = append(waypoints, req.RoutePath...)
	waypoints = append(waypoints, models.RoutePoint{Lat: req.End.Lat, Lng: req.End.Lng, Order: 1 << 30})
	route := geo.BuildLineString(waypoints)

	bounds := geo.BoundingBoxOf(route...)
	distance := geo.RouteLength(route)

	ride := &models.Ride{
		DriverID:       req.DriverID,
		StartLat:       req.Start.Lat,
		StartLng:       req.Start.Lng,
		StartAddress:   req.Start.Address,
		EndLat:         req.End.Lat,
		EndLng:         req.End.Lng,
		EndAddress:     req.End.Address,
		PlannedRoute:   route,
		BoundsMinLat:   bounds.MinLat,
		BoundsMaxLat:   bounds.MaxLat,
		BoundsMinLng:   bounds.MinLng,
		BoundsMaxLng:   bounds.MaxLng,
		DepartureTime:  req.DepartureTime,
		TotalSeats:     req.Seats,
		AvailableSeats: req.Seats,
		PricePerSeat:   req.PricePerSeat,
		VehicleModel:   req.Vehicle.Model,
		VehicleColor:   req.Vehicle.Color,
		LicensePlate:   req.Vehicle.LicensePlate,
		AllowLuggage:   req.Preferences.AllowLuggage,
		AllowPets:      req.Preferences.AllowPets,
		AllowSmoking:   req.Preferences.AllowSmoking,

		EstimatedDistance: distance,
		EstimatedDuration: geo.EstimateDuration(distance),
		Status:            models.RideStatusPending,
	}

	if err := s.rideRepo.Create(ctx, ride); err != nil {
		return nil, err
	}

	if s.geoCache != nil {
		if err := s.geoCache.IndexRide(ctx, ride.ID, ride.StartLat, ride.StartLng, ride.EndLat, ride.EndLng); err != nil {
			log.Printf("failed to index ride %s in geo cache: %v", ride.ID, err)
		}
	}

	return ride, nil
}

func (s *rideService) GetRide(ctx context.Context, id string) (*models.Ride, error) {
	ride, err := s.rideRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ride == nil {
		return nil, apperrors.NotFound("ride")
	}
	return ride, nil
}

func (s *rideService) UpdateRideStatus(ctx context.Context, id, status string) (*models.Ride, error) {
	ride, err := s.GetRide(ctx, id)
	if err != nil {
		return nil, err
	}

	if !ride.CanTransitionTo(status) {
		return nil, apperrors.InvalidTransition(ride.Status, status)
	}

	if err := s.rideRepo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	ride.Status = status

	if s.geoCache != nil && (status == models.RideStatusCompleted || status == models.RideStatusCancelled) {
		if err := s.geoCache.RemoveRide(ctx, id); err != nil {
			log.Printf("failed to remove ride %s from geo cache: %v", id, err)
		}
	}

	return ride, nil
}

func (s *rideService) UpdateRideLocation(ctx context.Context, id string, lat, lng float64) error {
	if err := validatePoint(models.GeoPoint{Lat: lat, Lng: lng}); err != nil {
		return err
	}

	err := s.rideRepo.UpdateLocation(ctx, id, lat, lng)
	if errors.Is(err, sql.ErrNoRows) {
		ride, getErr := s.rideRepo.GetByID(ctx, id)
		if getErr != nil {
			return getErr
		}
		if ride == nil {
			return apperrors.NotFound("ride")
		}
		return apperrors.RideNotActive(id)
	}
	if err != nil {
		return err
	}

	if s.geoCache != nil {
		if err := s.geoCache.UpdateLiveLocation(ctx, id, lat, lng); err != nil {
			log.Printf("failed to cache live location for ride %s: %v", id, err)
		}
	}

	return nil
}

// GetLiveLocation reads the geo cache first and falls back to the last
// position persisted on the ride row when the cache entry has expired.
func (s *rideService) GetLiveLocation(ctx context.Context, id string) (*models.LiveLocation, error) {
	ride, err := s.GetRide(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.geoCache != nil {
		loc, err := s.geoCache.GetLiveLocation(ctx, id)
		if err != nil {
			log.Printf("failed to read live location for ride %s from geo cache: %v", id, err)
		} else if loc != nil {
			return &models.LiveLocation{
				RideID:    id,
				Lat:       loc.Lat,
				Lng:       loc.Lng,
				UpdatedAt: time.Unix(loc.UpdatedAt, 0).UTC(),
			}, nil
		}
	}

	if ride.CurrentLat == nil || ride.CurrentLng == nil {
		return nil, apperrors.NotFound("live location")
	}
	loc := &models.LiveLocation{
		RideID: id,
		Lat:    *ride.CurrentLat,
		Lng:    *ride.CurrentLng,
	}
	if ride.LastLocationUpdate != nil {
		loc.UpdatedAt = ride.LastLocationUpdate.UTC()
	}
	return loc, nil
}

func (s *rideService) StartTrip(ctx context.Context, id string) (*models.Ride, error) {
	ride, err := s.GetRide(ctx, id)
	if err != nil {
		return nil, err
	}

	if !ride.CanTransitionTo(models.RideStatusActive) {
		return nil, apperrors.InvalidTransition(ride.Status, models.RideStatusActive)
	}

	now := time.Now()
	if err := s.rideRepo.StartTrip(ctx, id, now); err != nil {
		return nil, err
	}
	ride.Status = models.RideStatusActive
	ride.ActualStartTime = &now
	return ride, nil
}

func (s *rideService) FinishTrip(ctx context.Context, id string, actualDistance *float64) (*models.Ride, error) {
	ride, err := s.GetRide(ctx, id)
	if err != nil {
		return nil, err
	}

	if !ride.CanTransitionTo(models.RideStatusCompleted) {
		return nil, apperrors.InvalidTransition(ride.Status, models.RideStatusCompleted)
	}

	now := time.Now()
	var actualDuration *int
	if ride.ActualStartTime != nil {
		mins := int(now.Sub(*ride.ActualStartTime).Minutes())
		actualDuration = &mins
	}

	if err := s.rideRepo.FinishTrip(ctx, id, now, actualDistance, actualDuration); err != nil {
		return nil, err
	}
	ride.Status = models.RideStatusCompleted
	ride.ActualEndTime = &now
	ride.ActualDistance = actualDistance
	ride.ActualDuration = actualDuration

	if s.geoCache != nil {
		if err := s.geoCache.RemoveRide(ctx, id); err != nil {
			log.Printf("failed to remove ride %s from geo cache: %v", id, err)
		}
	}

	return ride, nil
}

func (s *rideService) ListByDriver(ctx context.Context, driverID string) ([]*models.Ride, error) {
	return s.rideRepo.ListByDriver(ctx, driverID)
}

func validatePoint(p models.GeoPoint) error {
	if p.Lat < -90 || p.Lat > 90 {
		return apperrors.BadRequest("latitude must be between -90 and 90")
	}
	if p.Lng < -180 || p.Lng > 180 {
		return apperrors.BadRequest("longitude must be between -180 and 180")
	}
	return nil
}
