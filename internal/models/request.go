package models

import (
	"time"
)

// Ride request status constants
const (
	RequestStatusPending   = "PENDING"
	RequestStatusAccepted  = "ACCEPTED"
	RequestStatusRejected  = "REJECTED"
	RequestStatusCancelled = "CANCELLED"
	RequestStatusOnGoing   = "ON_GOING"
	RequestStatusCompleted = "COMPLETED"
)

// Valid request state transitions
var ValidRequestTransitions = map[string][]string{
	RequestStatusPending:   {RequestStatusAccepted, RequestStatusRejected, RequestStatusCancelled},
	RequestStatusAccepted:  {RequestStatusOnGoing, RequestStatusCancelled},
	RequestStatusOnGoing:   {RequestStatusCompleted},
	RequestStatusRejected:  {},
	RequestStatusCancelled: {},
	RequestStatusCompleted: {},
}

type RideRequest struct {
	ID             string  `db:"id" json:"id"`
	RideID         string  `db:"ride_id" json:"ride_id"`
	PassengerID    string  `db:"passenger_id" json:"passenger_id"`
	SeatsRequested int     `db:"seats_requested" json:"seats_requested"`
	PickupLat      *float64 `db:"pickup_lat" json:"pickup_lat,omitempty"`
	PickupLng      *float64 `db:"pickup_lng" json:"pickup_lng,omitempty"`
	PickupAddress  *string  `db:"pickup_address" json:"pickup_address,omitempty"`
	DropoffLat     *float64 `db:"dropoff_lat" json:"dropoff_lat,omitempty"`
	DropoffLng     *float64 `db:"dropoff_lng" json:"dropoff_lng,omitempty"`
	DropoffAddress *string  `db:"dropoff_address" json:"dropoff_address,omitempty"`
	Message        *string  `db:"message" json:"message,omitempty"`

	PickupDistance     float64 `db:"pickup_distance" json:"pickup_distance"`         // meters, ride start to pickup
	DropoffDistance    float64 `db:"dropoff_distance" json:"dropoff_distance"`       // meters, dropoff to ride end
	AdditionalDistance float64 `db:"additional_distance" json:"additional_distance"` // meters
	DetourPercent      float64 `db:"detour_percent" json:"detour_percent"`

	Status       string     `db:"status" json:"status"`
	RespondedAt  *time.Time `db:"responded_at" json:"responded_at,omitempty"`
	PickedUpAt   *time.Time `db:"picked_up_at" json:"picked_up_at,omitempty"`
	DroppedOffAt *time.Time `db:"dropped_off_at" json:"dropped_off_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

func (rr *RideRequest) PickupPoint() *GeoPoint {
	if rr.PickupLat == nil || rr.PickupLng == nil {
		return nil
	}
	return &GeoPoint{Lat: *rr.PickupLat, Lng: *rr.PickupLng}
}

func (rr *RideRequest) DropoffPoint() *GeoPoint {
	if rr.DropoffLat == nil || rr.DropoffLng == nil {
		return nil
	}
	return &GeoPoint{Lat: *rr.DropoffLat, Lng: *rr.DropoffLng}
}

// CanTransitionTo checks if a request can transition to a new status
func (rr *RideRequest) CanTransitionTo(newStatus string) bool {
	validNextStates, exists := ValidRequestTransitions[rr.Status]
	if !exists {
		return false
	}

	for _, state := range validNextStates {
		if state == newStatus {
			return true
		}
	}
	return false
}

type CreateRequestRequest struct {
	RideID      string    `json:"ride_id" validate:"required"`
	PassengerID string    `json:"passenger_id" validate:"required"`
	Seats       int       `json:"seats" validate:"required,min=1,max=8"`
	Pickup      *Location `json:"pickup,omitempty"`
	Dropoff     *Location `json:"dropoff,omitempty"`
	Message     *string   `json:"message,omitempty" validate:"omitempty,max=500"`
}

// RequestStats aggregates a driver's request outcomes
type RequestStats struct {
	Total     int `db:"total" json:"total"`
	Pending   int `db:"pending" json:"pending"`
	Accepted  int `db:"accepted" json:"accepted"`
	Rejected  int `db:"rejected" json:"rejected"`
	Cancelled int `db:"cancelled" json:"cancelled"`
	Completed int `db:"completed" json:"completed"`

	AvgResponseMinutes float64 `db:"avg_response_minutes" json:"avg_response_minutes"`
}
