package models

import (
	"time"
)

// Ride status constants
const (
	RideStatusPending   = "PENDING"
	RideStatusActive    = "ACTIVE"
	RideStatusCompleted = "COMPLETED"
	RideStatusCancelled = "CANCELLED"
)

// Valid ride state transitions
var ValidRideTransitions = map[string][]string{
	RideStatusPending:   {RideStatusActive, RideStatusCancelled},
	RideStatusActive:    {RideStatusCompleted, RideStatusCancelled},
	RideStatusCompleted: {},
	RideStatusCancelled: {},
}

type Ride struct {
	ID            string    `db:"id" json:"id"`
	DriverID      string    `db:"driver_id" json:"driver_id"`
	StartLat      float64   `db:"start_lat" json:"start_lat"`
	StartLng      float64   `db:"start_lng" json:"start_lng"`
	StartAddress  string    `db:"start_address" json:"start_address"`
	EndLat        float64   `db:"end_lat" json:"end_lat"`
	EndLng        float64   `db:"end_lng" json:"end_lng"`
	EndAddress    string    `db:"end_address" json:"end_address"`
	PlannedRoute  Route     `db:"planned_route" json:"planned_route,omitempty"`
	BoundsMinLat  float64   `db:"bounds_min_lat" json:"-"`
	BoundsMaxLat  float64   `db:"bounds_max_lat" json:"-"`
	BoundsMinLng  float64   `db:"bounds_min_lng" json:"-"`
	BoundsMaxLng  float64   `db:"bounds_max_lng" json:"-"`
	DepartureTime time.Time `db:"departure_time" json:"departure_time"`

	TotalSeats     int     `db:"total_seats" json:"total_seats"`
	AvailableSeats int     `db:"available_seats" json:"available_seats"`
	PricePerSeat   float64 `db:"price_per_seat" json:"price_per_seat"`

	VehicleModel string `db:"vehicle_model" json:"vehicle_model"`
	VehicleColor string `db:"vehicle_color" json:"vehicle_color"`
	LicensePlate string `db:"license_plate" json:"license_plate"`
	AllowLuggage bool   `db:"allow_luggage" json:"allow_luggage"`
	AllowPets    bool   `db:"allow_pets" json:"allow_pets"`
	AllowSmoking bool   `db:"allow_smoking" json:"allow_smoking"`

	EstimatedDistance float64 `db:"estimated_distance" json:"estimated_distance"` // meters
	EstimatedDuration int     `db:"estimated_duration" json:"estimated_duration"` // minutes

	ActualDistance  *float64   `db:"actual_distance" json:"actual_distance,omitempty"`
	ActualDuration  *int       `db:"actual_duration" json:"actual_duration,omitempty"`
	ActualStartTime *time.Time `db:"actual_start_time" json:"actual_start_time,omitempty"`
	ActualEndTime   *time.Time `db:"actual_end_time" json:"actual_end_time,omitempty"`

	CurrentLat         *float64   `db:"current_lat" json:"current_lat,omitempty"`
	CurrentLng         *float64   `db:"current_lng" json:"current_lng,omitempty"`
	LastLocationUpdate *time.Time `db:"last_location_update" json:"last_location_update,omitempty"`

	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (r *Ride) StartPoint() GeoPoint {
	return GeoPoint{Lat: r.StartLat, Lng: r.StartLng}
}

func (r *Ride) EndPoint() GeoPoint {
	return GeoPoint{Lat: r.EndLat, Lng: r.EndLng}
}

func (r *Ride) Bounds() BoundingBox {
	return BoundingBox{
		MinLat: r.BoundsMinLat, MaxLat: r.BoundsMaxLat,
		MinLng: r.BoundsMinLng, MaxLng: r.BoundsMaxLng,
	}
}

// CanTransitionTo checks if a ride can transition to a new status
func (r *Ride) CanTransitionTo(newStatus string) bool {
	validNextStates, exists := ValidRideTransitions[r.Status]
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

type VehicleInfo struct {
	Model        string `json:"model" validate:"required"`
	Color        string `json:"color" validate:"required"`
	LicensePlate string `json:"license_plate" validate:"required"`
}

type RidePreferences struct {
	AllowLuggage bool `json:"allow_luggage"`
	AllowPets    bool `json:"allow_pets"`
	AllowSmoking bool `json:"allow_smoking"`
}

type CreateRideRequest struct {
	DriverID      string          `json:"driver_id" validate:"required"`
	Start         Location        `json:"start" validate:"required"`
	End           Location        `json:"end" validate:"required"`
	RoutePath     []RoutePoint    `json:"route_path" validate:"omitempty,dive"`
	DepartureTime time.Time       `json:"departure_time" validate:"required"`
	Seats         int             `json:"seats" validate:"required,min=1,max=8"`
	PricePerSeat  float64         `json:"price_per_seat" validate:"required,gt=0"`
	Vehicle       VehicleInfo     `json:"vehicle" validate:"required"`
	Preferences   RidePreferences `json:"preferences"`
}

type UpdateRideStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING ACTIVE COMPLETED CANCELLED"`
}

type UpdateRideLocationRequest struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

// LiveLocation is the most recent known position of an active ride,
// served from the geo cache when fresh and from the ride row otherwise.
type LiveLocation struct {
	RideID    string    `json:"ride_id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	UpdatedAt time.Time `json:"updated_at"`
}

type FinishRideRequest struct {
	ActualDistance *float64 `json:"actual_distance,omitempty" validate:"omitempty,gte=0"`
}
