package models

import (
	"time"
)

// Search sort keys
const (
	SortByDistance      = "distance"
	SortByPrice         = "price"
	SortByDepartureTime = "departure_time"
)

type SearchFilter struct {
	Start            GeoPoint   `json:"start" validate:"required"`
	End              GeoPoint   `json:"end" validate:"required"`
	MaxStartDistance float64    `json:"max_start_distance" validate:"gte=0"` // meters
	MaxEndDistance   float64    `json:"max_end_distance" validate:"gte=0"`   // meters
	SeatsNeeded      int        `json:"seats_needed" validate:"min=1,max=8"`
	DepartureDate    *time.Time `json:"departure_date,omitempty"`
	MaxPrice         *float64   `json:"max_price,omitempty" validate:"omitempty,gt=0"`
	AllowLuggage     *bool      `json:"allow_luggage,omitempty"`
	AllowPets        *bool      `json:"allow_pets,omitempty"`
	AllowSmoking     *bool      `json:"allow_smoking,omitempty"`
	SortBy           string     `json:"sort_by" validate:"omitempty,oneof=distance price departure_time"`
	Page             int        `json:"page" validate:"min=1"`
	Limit            int        `json:"limit" validate:"min=1,max=100"`
}

type RideMatch struct {
	Ride          *Ride   `json:"ride"`
	StartDistance float64 `json:"start_distance"` // meters
	EndDistance   float64 `json:"end_distance"`   // meters
	TotalDistance float64 `json:"total_distance"` // meters
}

type SearchResult struct {
	Matches []RideMatch `json:"matches"`
	Total   int         `json:"total"`
	Page    int         `json:"page"`
	Limit   int         `json:"limit"`
}

type RouteSearchFilter struct {
	Waypoints        []RoutePoint `json:"waypoints" validate:"required,min=2,dive"`
	MaxRouteDistance float64      `json:"max_route_distance" validate:"gt=0"` // meters, buffer radius
	MinSimilarity    float64      `json:"min_similarity" validate:"gt=0,lte=1"`
	SeatsNeeded      int          `json:"seats_needed" validate:"min=1,max=8"`
	DepartureDate    *time.Time   `json:"departure_date,omitempty"`
	Limit            int          `json:"limit" validate:"min=1,max=100"`
}

type RouteMatch struct {
	Ride            *Ride   `json:"ride"`
	SharedDistance  float64 `json:"shared_distance"` // meters of the ride's route inside the buffer
	TotalDistance   float64 `json:"total_distance"`  // meters, ride route length
	RouteSimilarity float64 `json:"route_similarity"`
}
