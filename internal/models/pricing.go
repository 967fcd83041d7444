package models

import (
	"time"
)

type PriceQuoteRequest struct {
	Start         GeoPoint     `json:"start" validate:"required"`
	End           GeoPoint     `json:"end" validate:"required"`
	Waypoints     []RoutePoint `json:"waypoints" validate:"omitempty,dive"`
	DepartureTime time.Time    `json:"departure_time" validate:"required"`
	Seats         int          `json:"seats" validate:"required,min=1,max=8"`
}

type FareBreakdown struct {
	BaseFare     float64 `json:"base_fare"`
	DistanceFare float64 `json:"distance_fare"`
	TimeFare     float64 `json:"time_fare"`
	Total        float64 `json:"total"`
}

// Demand levels for market analysis
const (
	DemandHigh   = "high"
	DemandMedium = "medium"
	DemandLow    = "low"
)

type MarketAnalysis struct {
	AveragePrice    float64 `json:"average_price"`
	CompetitorCount int     `json:"competitor_count"`
	DemandLevel     string  `json:"demand_level"`
}

type RouteInfo struct {
	Distance          float64 `json:"distance"`           // meters
	EstimatedDuration int     `json:"estimated_duration"` // minutes
}

type PriceQuote struct {
	SuggestedPrice float64        `json:"suggested_price"`
	Breakdown      FareBreakdown  `json:"breakdown"`
	Market         MarketAnalysis `json:"market"`
	Route          RouteInfo      `json:"route"`
}

type OptimalPoints struct {
	Pickup          GeoPoint `json:"pickup"`
	Dropoff         GeoPoint `json:"dropoff"`
	WalkToPickup    float64  `json:"walk_to_pickup"`    // meters, rounded
	WalkFromDropoff float64  `json:"walk_from_dropoff"` // meters, rounded
	SegmentDistance float64  `json:"segment_distance"`  // meters along the driver's segment
	TotalDetourKm   float64  `json:"total_detour_km"`
}
