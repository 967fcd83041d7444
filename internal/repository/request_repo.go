package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	apperrors "github.com/opencarpool/carpool/internal/errors"
	"github.com/opencarpool/carpool/internal/models"
	"github.com/opencarpool/carpool/pkg/utils"
)

type RequestRepository interface {
	Create(ctx context.Context, req *models.RideRequest) error
	GetByID(ctx context.Context, id string) (*models.RideRequest, error)
	ListByRide(ctx context.Context, rideID string) ([]*models.RideRequest, error)
	ListByPassenger(ctx context.Context, passengerID string, status *string) ([]*models.RideRequest, error)
	PendingForDriver(ctx context.Context, driverID string) ([]*models.RideRequest, error)
	Accept(ctx context.Context, requestID string, rejectPendingWhenFull bool) (*models.RideRequest, error)
	Cancel(ctx context.Context, requestID string) (*models.RideRequest, error)
	UpdateStatusGuarded(ctx context.Context, id, fromStatus, toStatus, timestampColumn string) (*models.RideRequest, error)
	StatsByDriver(ctx context.Context, driverID string) (*models.RequestStats, error)
}

type requestRepository struct {
	db *sqlx.DB
}

func NewRequestRepository(db *sqlx.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *models.RideRequest) error {
	if req.ID == "" {
		req.ID = utils.GenerateID()
	}
	req.CreatedAt = time.Now()
	req.UpdatedAt = time.Now()
	req.Status = models.RequestStatusPending

	query := `
		INSERT INTO ride_requests (id, ride_id, passenger_id, seats_requested,
			pickup_lat, pickup_lng, pickup_address,
			dropoff_lat, dropoff_lng, dropoff_address, message,
			pickup_distance, dropoff_distance, additional_distance, detour_percent,
			status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.RideID, req.PassengerID, req.SeatsRequested,
		req.PickupLat, req.PickupLng, req.PickupAddress,
		req.DropoffLat, req.DropoffLng, req.DropoffAddress, req.Message,
		req.PickupDistance, req.DropoffDistance, req.AdditionalDistance, req.DetourPercent,
		req.Status, req.CreatedAt, req.UpdatedAt)
	return err
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*models.RideRequest, error) {
	var req models.RideRequest
	query := `SELECT * FROM ride_requests WHERE id = $1`
	err := r.db.GetContext(ctx, &req, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &req, err
}

func (r *requestRepository) ListByRide(ctx context.Context, rideID string) ([]*models.RideRequest, error) {
	query := `SELECT * FROM ride_requests WHERE ride_id = $1 ORDER BY created_at ASC`
	requests := []*models.RideRequest{}
	err := r.db.SelectContext(ctx, &requests, query, rideID)
	return requests, err
}

func (r *requestRepository) ListByPassenger(ctx context.Context, passengerID string, status *string) ([]*models.RideRequest, error) {
	requests := []*models.RideRequest{}
	if status != nil {
		query := `SELECT * FROM ride_requests WHERE passenger_id = $1 AND status = $2 ORDER BY created_at DESC`
		err := r.db.SelectContext(ctx, &requests, query, passengerID, *status)
		return requests, err
	}
	query := `SELECT * FROM ride_requests WHERE passenger_id = $1 ORDER BY created_at DESC`
	err := r.db.SelectContext(ctx, &requests, query, passengerID)
	return requests, err
}

func (r *requestRepository) PendingForDriver(ctx context.Context, driverID string) ([]*models.RideRequest, error) {
	query := `
		SELECT rr.* FROM ride_requests rr
		JOIN rides rd ON rd.id = rr.ride_id
		WHERE rd.driver_id = $1 AND rr.status = $2
		ORDER BY rr.created_at ASC
	`
	requests := []*models.RideRequest{}
	err := r.db.SelectContext(ctx, &requests, query, driverID, models.RequestStatusPending)
	return requests, err
}

// Accept runs the seat-accounting critical section in one transaction:
// lock the ride row, conditionally decrement seats, flip the request to
// ACCEPTED, and cascade-reject the remaining PENDING requests when the
// ride fills up. Either everything commits or nothing does.
//
// Lock order is ride row first, then request rows. The cascade writes
// other requests of the same ride, so every writer must serialize on the
// ride row before touching any request row; locking a request first
// would deadlock two concurrent accepts on the same ride.
func (r *requestRepository) Accept(ctx context.Context, requestID string, rejectPendingWhenFull bool) (*models.RideRequest, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Unlocked peek to learn the ride; status is re-checked under the lock.
	var rideID string
	err = tx.GetContext(ctx, &rideID, `SELECT ride_id FROM ride_requests WHERE id = $1`, requestID)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var ride models.Ride
	err = tx.GetContext(ctx, &ride, `SELECT * FROM rides WHERE id = $1 FOR UPDATE`, rideID)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var req models.RideRequest
	err = tx.GetContext(ctx, &req, `SELECT * FROM ride_requests WHERE id = $1 FOR UPDATE`, requestID)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if req.Status != models.RequestStatusPending {
		return nil, apperrors.ErrInvalidTransition
	}

	// Conditional decrement: zero rows means someone took the seats first.
	res, err := tx.ExecContext(ctx, `
		UPDATE rides
		SET available_seats = available_seats - $1, updated_at = $2
		WHERE id = $3 AND available_seats >= $1
	`, req.SeatsRequested, time.Now(), req.RideID)
	if err != nil {
		return nil, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, apperrors.ErrInsufficientSeats
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		UPDATE ride_requests
		SET status = $1, responded_at = $2, updated_at = $2
		WHERE id = $3
	`, models.RequestStatusAccepted, now, requestID)
	if err != nil {
		return nil, err
	}

	if rejectPendingWhenFull && ride.AvailableSeats-req.SeatsRequested <= 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE ride_requests
			SET status = $1, responded_at = $2, updated_at = $2
			WHERE ride_id = $3 AND status = $4 AND id != $5
		`, models.RequestStatusRejected, now, req.RideID, models.RequestStatusPending, requestID)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	req.Status = models.RequestStatusAccepted
	req.RespondedAt = &now
	req.UpdatedAt = now
	return &req, nil
}

// Cancel flips the request to CANCELLED and, when it had been accepted,
// gives the seats back with a SQL increment in the same transaction.
// Same lock order as Accept: ride row first, then the request row.
func (r *requestRepository) Cancel(ctx context.Context, requestID string) (*models.RideRequest, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var rideID string
	err = tx.GetContext(ctx, &rideID, `SELECT ride_id FROM ride_requests WHERE id = $1`, requestID)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `SELECT id FROM rides WHERE id = $1 FOR UPDATE`, rideID)
	if err != nil {
		return nil, err
	}

	var req models.RideRequest
	err = tx.GetContext(ctx, &req, `SELECT * FROM ride_requests WHERE id = $1 FOR UPDATE`, requestID)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if req.Status != models.RequestStatusPending && req.Status != models.RequestStatusAccepted {
		return nil, apperrors.ErrInvalidTransition
	}

	now := time.Now()
	if req.Status == models.RequestStatusAccepted {
		_, err = tx.ExecContext(ctx, `
			UPDATE rides
			SET available_seats = available_seats + $1, updated_at = $2
			WHERE id = $3
		`, req.SeatsRequested, now, req.RideID)
		if err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE ride_requests
		SET status = $1, updated_at = $2
		WHERE id = $3
	`, models.RequestStatusCancelled, now, requestID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	req.Status = models.RequestStatusCancelled
	req.UpdatedAt = now
	return &req, nil
}

// UpdateStatusGuarded flips status only when the current status matches
// fromStatus; timestampColumn (responded_at, picked_up_at, dropped_off_at)
// is stamped alongside when non-empty.
func (r *requestRepository) UpdateStatusGuarded(ctx context.Context, id, fromStatus, toStatus, timestampColumn string) (*models.RideRequest, error) {
	now := time.Now()

	query := `UPDATE ride_requests SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	switch timestampColumn {
	case "responded_at":
		query = `UPDATE ride_requests SET status = $1, updated_at = $2, responded_at = $2 WHERE id = $3 AND status = $4`
	case "picked_up_at":
		query = `UPDATE ride_requests SET status = $1, updated_at = $2, picked_up_at = $2 WHERE id = $3 AND status = $4`
	case "dropped_off_at":
		query = `UPDATE ride_requests SET status = $1, updated_at = $2, dropped_off_at = $2 WHERE id = $3 AND status = $4`
	}

	res, err := r.db.ExecContext(ctx, query, toStatus, now, id, fromStatus)
	if err != nil {
		return nil, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		existing, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.ErrInvalidTransition
	}

	return r.GetByID(ctx, id)
}

func (r *requestRepository) StatsByDriver(ctx context.Context, driverID string) (*models.RequestStats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE rr.status = 'PENDING') AS pending,
			COUNT(*) FILTER (WHERE rr.status = 'ACCEPTED') AS accepted,
			COUNT(*) FILTER (WHERE rr.status = 'REJECTED') AS rejected,
			COUNT(*) FILTER (WHERE rr.status = 'CANCELLED') AS cancelled,
			COUNT(*) FILTER (WHERE rr.status = 'COMPLETED') AS completed,
			COALESCE(AVG(EXTRACT(EPOCH FROM (rr.responded_at - rr.created_at)) / 60)
				FILTER (WHERE rr.responded_at IS NOT NULL), 0) AS avg_response_minutes
		FROM ride_requests rr
		JOIN rides rd ON rd.id = rr.ride_id
		WHERE rd.driver_id = $1
	`
	var stats models.RequestStats
	err := r.db.GetContext(ctx, &stats, query, driverID)
	if err == sql.ErrNoRows {
		return &models.RequestStats{}, nil
	}
	return &stats, err
}
