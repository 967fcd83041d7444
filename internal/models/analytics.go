package models

import (
	"time"
)

type PopularRoute struct {
	StartAddress string    `json:"start_address"`
	EndAddress   string    `json:"end_address"`
	RideCount    int       `json:"ride_count"`
	AvgPrice     float64   `json:"avg_price"`
	AvgDuration  float64   `json:"avg_duration"` // minutes
	AvgDistance  float64   `json:"avg_distance"` // meters
	LastRideAt   time.Time `json:"last_ride_at"`
}

type HeatmapRequest struct {
	Bounds   BoundingBox `json:"bounds" validate:"required"`
	CellSize float64     `json:"cell_size" validate:"gte=0"` // meters
	DateFrom *time.Time  `json:"date_from,omitempty"`
	DateTo   *time.Time  `json:"date_to,omitempty"`
}

type HeatmapCell struct {
	Center    GeoPoint    `json:"center"`
	Bounds    BoundingBox `json:"bounds"`
	RideCount int         `json:"ride_count"`
	AvgPrice  float64     `json:"avg_price"`
}
