package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/opencarpool/carpool/internal/errors"
	"github.com/opencarpool/carpool/internal/models"
	"github.com/opencarpool/carpool/internal/repository"
)

// In-memory fakes implementing the repository interfaces. The request
// fake guards seat accounting with a mutex so the concurrency tests
// exercise the same exactly-one-wins property the SQL transaction gives.

type fakeRideRepo struct {
	mu    sync.Mutex
	rides map[string]*models.Ride
}

func newFakeRideRepo() *fakeRideRepo {
	return &fakeRideRepo{rides: map[string]*models.Ride{}}
}

func (f *fakeRideRepo) Create(ctx context.Context, ride *models.Ride) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ride.ID == "" {
		ride.ID = uuid.New().String()
	}
	ride.CreatedAt = time.Now()
	ride.UpdatedAt = time.Now()
	if ride.Status == "" {
		ride.Status = models.RideStatusPending
	}
	cp := *ride
	f.rides[ride.ID] = &cp
	return nil
}

func (f *fakeRideRepo) GetByID(ctx context.Context, id string) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ride, ok := f.rides[id]
	if !ok {
		return nil, nil
	}
	cp := *ride
	return &cp, nil
}

func (f *fakeRideRepo) UpdateStatus(ctx context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ride, ok := f.rides[id]; ok {
		ride.Status = status
		ride.UpdatedAt = time.Now()
	}
	return nil
}

func (f *fakeRideRepo) UpdateLocation(ctx context.Context, id string, lat, lng float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ride, ok := f.rides[id]
	if !ok || ride.Status != models.RideStatusActive {
		return sql.ErrNoRows
	}
	now := time.Now()
	ride.CurrentLat = &lat
	ride.CurrentLng = &lng
	ride.LastLocationUpdate = &now
	return nil
}

func (f *fakeRideRepo) SearchCandidates(ctx context.Context, filter repository.CandidateFilter) ([]*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	status := filter.Status
	if status == "" {
		status = models.RideStatusPending
	}

	var idSet map[string]bool
	if len(filter.IDs) > 0 {
		idSet = map[string]bool{}
		for _, id := range filter.IDs {
			idSet[id] = true
		}
	}

	result := []*models.Ride{}
	for _, ride := range f.rides {
		if ride.Status != status {
			continue
		}
		if filter.MinSeats > 0 && ride.AvailableSeats < filter.MinSeats {
			continue
		}
		if filter.DepartureDate != nil {
			day := filter.DepartureDate.Truncate(24 * time.Hour)
			if ride.DepartureTime.Before(day) || !ride.DepartureTime.Before(day.Add(24*time.Hour)) {
				continue
			}
		}
		if filter.MaxPrice != nil && ride.PricePerSeat > *filter.MaxPrice {
			continue
		}
		if filter.AllowLuggage != nil && ride.AllowLuggage != *filter.AllowLuggage {
			continue
		}
		if filter.AllowPets != nil && ride.AllowPets != *filter.AllowPets {
			continue
		}
		if filter.AllowSmoking != nil && ride.AllowSmoking != *filter.AllowSmoking {
			continue
		}
		if filter.Bounds != nil {
			b := filter.Bounds
			if ride.BoundsMaxLat < b.MinLat || ride.BoundsMinLat > b.MaxLat ||
				ride.BoundsMaxLng < b.MinLng || ride.BoundsMinLng > b.MaxLng {
				continue
			}
		}
		if filter.RequireRoute && len(ride.PlannedRoute) == 0 {
			continue
		}
		if filter.StartBounds != nil || idSet != nil {
			inBounds := filter.StartBounds != nil && filter.StartBounds.Contains(ride.StartPoint())
			inIDs := idSet != nil && idSet[ride.ID]
			if !inBounds && !inIDs {
				continue
			}
		}
		cp := *ride
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].DepartureTime.Before(result[j].DepartureTime)
	})
	return result, nil
}

func (f *fakeRideRepo) RidesWithinBounds(ctx context.Context, bounds models.BoundingBox, from, to *time.Time) ([]*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := []*models.Ride{}
	for _, ride := range f.rides {
		if !bounds.Contains(ride.StartPoint()) {
			continue
		}
		if from != nil && ride.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && ride.CreatedAt.After(*to) {
			continue
		}
		cp := *ride
		result = append(result, &cp)
	}
	return result, nil
}

func (f *fakeRideRepo) RecentRidesNear(ctx context.Context, bounds models.BoundingBox, since time.Time) ([]*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := []*models.Ride{}
	for _, ride := range f.rides {
		if ride.CreatedAt.Before(since) {
			continue
		}
		if ride.BoundsMaxLat < bounds.MinLat || ride.BoundsMinLat > bounds.MaxLat ||
			ride.BoundsMaxLng < bounds.MinLng || ride.BoundsMinLng > bounds.MaxLng {
			continue
		}
		cp := *ride
		result = append(result, &cp)
	}
	return result, nil
}

func (f *fakeRideRepo) StartTrip(ctx context.Context, id string, startedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ride, ok := f.rides[id]; ok {
		ride.Status = models.RideStatusActive
		ride.ActualStartTime = &startedAt
	}
	return nil
}

func (f *fakeRideRepo) FinishTrip(ctx context.Context, id string, endedAt time.Time, actualDistance *float64, actualDuration *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ride, ok := f.rides[id]; ok {
		ride.Status = models.RideStatusCompleted
		ride.ActualEndTime = &endedAt
		ride.ActualDistance = actualDistance
		ride.ActualDuration = actualDuration
	}
	return nil
}

func (f *fakeRideRepo) ListByDriver(ctx context.Context, driverID string) ([]*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := []*models.Ride{}
	for _, ride := range f.rides {
		if ride.DriverID == driverID {
			cp := *ride
			result = append(result, &cp)
		}
	}
	return result, nil
}

type fakeRequestRepo struct {
	mu       sync.Mutex
	requests map[string]*models.RideRequest
	rides    *fakeRideRepo
}

func newFakeRequestRepo(rides *fakeRideRepo) *fakeRequestRepo {
	return &fakeRequestRepo{requests: map[string]*models.RideRequest{}, rides: rides}
}

func (f *fakeRequestRepo) Create(ctx context.Context, req *models.RideRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	req.CreatedAt = time.Now()
	req.UpdatedAt = time.Now()
	req.Status = models.RequestStatusPending
	cp := *req
	f.requests[req.ID] = &cp
	return nil
}

func (f *fakeRequestRepo) GetByID(ctx context.Context, id string) (*models.RideRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

func (f *fakeRequestRepo) ListByRide(ctx context.Context, rideID string) ([]*models.RideRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := []*models.RideRequest{}
	for _, req := range f.requests {
		if req.RideID == rideID {
			cp := *req
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (f *fakeRequestRepo) ListByPassenger(ctx context.Context, passengerID string, status *string) ([]*models.RideRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := []*models.RideRequest{}
	for _, req := range f.requests {
		if req.PassengerID != passengerID {
			continue
		}
		if status != nil && req.Status != *status {
			continue
		}
		cp := *req
		result = append(result, &cp)
	}
	return result, nil
}

func (f *fakeRequestRepo) PendingForDriver(ctx context.Context, driverID string) ([]*models.RideRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := []*models.RideRequest{}
	for _, req := range f.requests {
		if req.Status != models.RequestStatusPending {
			continue
		}
		ride := f.rides.rides[req.RideID]
		if ride == nil || ride.DriverID != driverID {
			continue
		}
		cp := *req
		result = append(result, &cp)
	}
	return result, nil
}

func (f *fakeRequestRepo) Accept(ctx context.Context, requestID string, rejectPendingWhenFull bool) (*models.RideRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rides.mu.Lock()
	defer f.rides.mu.Unlock()

	req, ok := f.requests[requestID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if req.Status != models.RequestStatusPending {
		return nil, apperrors.ErrInvalidTransition
	}

	ride, ok := f.rides.rides[req.RideID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if ride.AvailableSeats < req.SeatsRequested {
		return nil, apperrors.ErrInsufficientSeats
	}

	ride.AvailableSeats -= req.SeatsRequested
	now := time.Now()
	req.Status = models.RequestStatusAccepted
	req.RespondedAt = &now
	req.UpdatedAt = now

	if rejectPendingWhenFull && ride.AvailableSeats <= 0 {
		for _, other := range f.requests {
			if other.RideID == req.RideID && other.ID != req.ID && other.Status == models.RequestStatusPending {
				other.Status = models.RequestStatusRejected
				other.RespondedAt = &now
				other.UpdatedAt = now
			}
		}
	}

	cp := *req
	return &cp, nil
}

func (f *fakeRequestRepo) Cancel(ctx context.Context, requestID string) (*models.RideRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rides.mu.Lock()
	defer f.rides.mu.Unlock()

	req, ok := f.requests[requestID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if req.Status != models.RequestStatusPending && req.Status != models.RequestStatusAccepted {
		return nil, apperrors.ErrInvalidTransition
	}

	if req.Status == models.RequestStatusAccepted {
		if ride, ok := f.rides.rides[req.RideID]; ok {
			ride.AvailableSeats += req.SeatsRequested
		}
	}

	req.Status = models.RequestStatusCancelled
	req.UpdatedAt = time.Now()
	cp := *req
	return &cp, nil
}

func (f *fakeRequestRepo) UpdateStatusGuarded(ctx context.Context, id, fromStatus, toStatus, timestampColumn string) (*models.RideRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	req, ok := f.requests[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if req.Status != fromStatus {
		return nil, apperrors.ErrInvalidTransition
	}

	now := time.Now()
	req.Status = toStatus
	req.UpdatedAt = now
	switch timestampColumn {
	case "responded_at":
		req.RespondedAt = &now
	case "picked_up_at":
		req.PickedUpAt = &now
	case "dropped_off_at":
		req.DroppedOffAt = &now
	}

	cp := *req
	return &cp, nil
}

func (f *fakeRequestRepo) StatsByDriver(ctx context.Context, driverID string) (*models.RequestStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stats := &models.RequestStats{}
	var responseSum float64
	responded := 0
	for _, req := range f.requests {
		ride := f.rides.rides[req.RideID]
		if ride == nil || ride.DriverID != driverID {
			continue
		}
		stats.Total++
		if req.RespondedAt != nil {
			responseSum += req.RespondedAt.Sub(req.CreatedAt).Minutes()
			responded++
		}
		switch req.Status {
		case models.RequestStatusPending:
			stats.Pending++
		case models.RequestStatusAccepted:
			stats.Accepted++
		case models.RequestStatusRejected:
			stats.Rejected++
		case models.RequestStatusCancelled:
			stats.Cancelled++
		case models.RequestStatusCompleted:
			stats.Completed++
		}
	}
	if responded > 0 {
		stats.AvgResponseMinutes = responseSum / float64(responded)
	}
	return stats, nil
}
