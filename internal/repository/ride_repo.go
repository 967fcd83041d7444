package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/opencarpool/carpool/internal/models"
	"github.com/opencarpool/carpool/pkg/utils"
)

// CandidateFilter holds the structured predicates SearchCandidates answers.
// Geometry stays out of SQL: Bounds and StartBounds are only coarse numeric
// prefilters and callers re-check precise distances on the rows that come
// back. StartBounds and IDs combine as a union, so a best-effort id list
// (a cache prefilter) can widen the start-point envelope but never narrow
// the candidate set below it.
type CandidateFilter struct {
	Status        string
	MinSeats      int
	DepartureDate *time.Time
	MaxPrice      *float64
	AllowLuggage  *bool
	AllowPets     *bool
	AllowSmoking  *bool
	Bounds        *models.BoundingBox
	StartBounds   *models.BoundingBox
	RequireRoute  bool
	IDs           []string
}

type RideRepository interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id string) (*models.Ride, error)
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateLocation(ctx context.Context, id string, lat, lng float64) error
	SearchCandidates(ctx context.Context, filter CandidateFilter) ([]*models.Ride, error)
	RidesWithinBounds(ctx context.Context, bounds models.BoundingBox, from, to *time.Time) ([]*models.Ride, error)
	RecentRidesNear(ctx context.Context, bounds models.BoundingBox, since time.Time) ([]*models.Ride, error)
	StartTrip(ctx context.Context, id string, startedAt time.Time) error
	FinishTrip(ctx context.Context, id string, endedAt time.Time, actualDistance *float64, actualDuration *int) error
	ListByDriver(ctx context.Context, driverID string) ([]*models.Ride, error)
}

type rideRepository struct {
	db *sqlx.DB
}

func NewRideRepository(db *sqlx.DB) RideRepository {
	return &rideRepository{db: db}
}

func (r *rideRepository) Create(ctx context.Context, ride *models.Ride) error {
	if ride.ID == "" {
		ride.ID = utils.GenerateID()
	}
	ride.CreatedAt = time.Now()
	ride.UpdatedAt = time.Now()
	if ride.Status == "" {
		ride.Status = models.RideStatusPending
	}

	query := `
		INSERT INTO rides (id, driver_id, start_lat, start_lng, start_address,
			end_lat, end_lng, end_address, planned_route,
			bounds_min_lat, bounds_max_lat, bounds_min_lng, bounds_max_lng,
			departure_time, total_seats, available_seats, price_per_seat,
			vehicle_model, vehicle_color, license_plate,
			allow_luggage, allow_pets, allow_smoking,
			estimated_distance, estimated_duration, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)
	`
	_, err := r.db.ExecContext(ctx, query,
		ride.ID, ride.DriverID, ride.StartLat, ride.StartLng, ride.StartAddress,
		ride.EndLat, ride.EndLng, ride.EndAddress, ride.PlannedRoute,
		ride.BoundsMinLat, ride.BoundsMaxLat, ride.BoundsMinLng, ride.BoundsMaxLng,
		ride.DepartureTime, ride.TotalSeats, ride.AvailableSeats, ride.PricePerSeat,
		ride.VehicleModel, ride.VehicleColor, ride.LicensePlate,
		ride.AllowLuggage, ride.AllowPets, ride.AllowSmoking,
		ride.EstimatedDistance, ride.EstimatedDuration, ride.Status, ride.CreatedAt, ride.UpdatedAt)
	return err
}

func (r *rideRepository) GetByID(ctx context.Context, id string) (*models.Ride, error) {
	var ride models.Ride
	query := `SELECT * FROM rides WHERE id = $1`
	err := r.db.GetContext(ctx, &ride, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &ride, err
}

func (r *rideRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE rides SET status = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	return err
}

// UpdateLocation records the driver's live position. Only ACTIVE rides
// accept location updates; returns sql.ErrNoRows when the ride is absent
// or not ACTIVE.
func (r *rideRepository) UpdateLocation(ctx context.Context, id string, lat, lng float64) error {
	query := `
		UPDATE rides
		SET current_lat = $1, current_lng = $2, last_location_update = $3, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	res, err := r.db.ExecContext(ctx, query, lat, lng, time.Now(), id, models.RideStatusActive)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *rideRepository) SearchCandidates(ctx context.Context, filter CandidateFilter) ([]*models.Ride, error) {
	conditions := []string{}
	args := []interface{}{}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	status := filter.Status
	if status == "" {
		status = models.RideStatusPending
	}
	add("status = $%d", status)

	if filter.MinSeats > 0 {
		add("available_seats >= $%d", filter.MinSeats)
	}
	if filter.DepartureDate != nil {
		day := filter.DepartureDate.Truncate(24 * time.Hour)
		add("departure_time >= $%d", day)
		add("departure_time < $%d", day.Add(24*time.Hour))
	}
	if filter.MaxPrice != nil {
		add("price_per_seat <= $%d", *filter.MaxPrice)
	}
	if filter.AllowLuggage != nil {
		add("allow_luggage = $%d", *filter.AllowLuggage)
	}
	if filter.AllowPets != nil {
		add("allow_pets = $%d", *filter.AllowPets)
	}
	if filter.AllowSmoking != nil {
		add("allow_smoking = $%d", *filter.AllowSmoking)
	}
	if filter.Bounds != nil {
		add("bounds_max_lat >= $%d", filter.Bounds.MinLat)
		add("bounds_min_lat <= $%d", filter.Bounds.MaxLat)
		add("bounds_max_lng >= $%d", filter.Bounds.MinLng)
		add("bounds_min_lng <= $%d", filter.Bounds.MaxLng)
	}
	if filter.RequireRoute {
		conditions = append(conditions, "planned_route IS NOT NULL")
	}
	if filter.StartBounds != nil || len(filter.IDs) > 0 {
		group := []string{}
		if b := filter.StartBounds; b != nil {
			args = append(args, b.MinLat, b.MaxLat, b.MinLng, b.MaxLng)
			group = append(group, fmt.Sprintf(
				"(start_lat BETWEEN $%d AND $%d AND start_lng BETWEEN $%d AND $%d)",
				len(args)-3, len(args)-2, len(args)-1, len(args)))
		}
		if len(filter.IDs) > 0 {
			placeholders := make([]string, len(filter.IDs))
			for i, id := range filter.IDs {
				args = append(args, id)
				placeholders[i] = fmt.Sprintf("$%d", len(args))
			}
			group = append(group, "id IN ("+strings.Join(placeholders, ", ")+")")
		}
		conditions = append(conditions, "("+strings.Join(group, " OR ")+")")
	}

	query := `SELECT * FROM rides WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY departure_time ASC`

	rides := []*models.Ride{}
	err := r.db.SelectContext(ctx, &rides, query, args...)
	return rides, err
}

func (r *rideRepository) RidesWithinBounds(ctx context.Context, bounds models.BoundingBox, from, to *time.Time) ([]*models.Ride, error) {
	conditions := []string{
		"start_lat BETWEEN $1 AND $2",
		"start_lng BETWEEN $3 AND $4",
	}
	args := []interface{}{bounds.MinLat, bounds.MaxLat, bounds.MinLng, bounds.MaxLng}

	if from != nil {
		args = append(args, *from)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if to != nil {
		args = append(args, *to)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	query := `SELECT * FROM rides WHERE ` + strings.Join(conditions, " AND ")

	rides := []*models.Ride{}
	err := r.db.SelectContext(ctx, &rides, query, args...)
	return rides, err
}

func (r *rideRepository) RecentRidesNear(ctx context.Context, bounds models.BoundingBox, since time.Time) ([]*models.Ride, error) {
	query := `
		SELECT * FROM rides
		WHERE bounds_max_lat >= $1 AND bounds_min_lat <= $2
		  AND bounds_max_lng >= $3 AND bounds_min_lng <= $4
		  AND created_at >= $5
	`
	rides := []*models.Ride{}
	err := r.db.SelectContext(ctx, &rides, query,
		bounds.MinLat, bounds.MaxLat, bounds.MinLng, bounds.MaxLng, since)
	return rides, err
}

func (r *rideRepository) StartTrip(ctx context.Context, id string, startedAt time.Time) error {
	query := `
		UPDATE rides
		SET status = $1, actual_start_time = $2, updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, models.RideStatusActive, startedAt, time.Now(), id)
	return err
}

func (r *rideRepository) FinishTrip(ctx context.Context, id string, endedAt time.Time, actualDistance *float64, actualDuration *int) error {
	query := `
		UPDATE rides
		SET status = $1, actual_end_time = $2, actual_distance = $3, actual_duration = $4, updated_at = $5
		WHERE id = $6
	`
	_, err := r.db.ExecContext(ctx, query,
		models.RideStatusCompleted, endedAt, actualDistance, actualDuration, time.Now(), id)
	return err
}

func (r *rideRepository) ListByDriver(ctx context.Context, driverID string) ([]*models.Ride, error) {
	query := `SELECT * FROM rides WHERE driver_id = $1 ORDER BY departure_time DESC`
	rides := []*models.Ride{}
	err := r.db.SelectContext(ctx, &rides, query, driverID)
	return rides, err
}
