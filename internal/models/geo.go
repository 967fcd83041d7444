package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// GeoPoint is a WGS-84 coordinate pair in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lng float64 `json:"lng" validate:"min=-180,max=180"`
}

// Location is a GeoPoint with a human-readable address.
// Coordinate tags are range-only: zero is a legal latitude and
// longitude, so a required tag would reject it.
type Location struct {
	Lat     float64 `json:"lat" validate:"latitude"`
	Lng     float64 `json:"lng" validate:"longitude"`
	Address string  `json:"address,omitempty"`
}

func (l Location) Point() GeoPoint {
	return GeoPoint{Lat: l.Lat, Lng: l.Lng}
}

// RoutePoint is a waypoint with an explicit order index. Waypoints arrive
// from clients unordered; the order field decides the polyline sequence.
type RoutePoint struct {
	Lat     float64 `json:"lat" validate:"latitude"`
	Lng     float64 `json:"lng" validate:"longitude"`
	Order   int     `json:"order"`
	Address *string `json:"address,omitempty"`
}

func (p RoutePoint) Point() GeoPoint {
	return GeoPoint{Lat: p.Lat, Lng: p.Lng}
}

// Route is an ordered polyline of geographic points.
// It persists as a JSONB column.
type Route []GeoPoint

func (r Route) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

func (r *Route) Scan(src interface{}) error {
	if src == nil {
		*r = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return fmt.Errorf("cannot scan %T into Route", src)
	}
}

// BoundingBox is an axis-aligned rectangle enclosing a set of points.
// Invariant: min <= max on both axes.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// Contains reports whether p falls inside the box (inclusive).
func (b BoundingBox) Contains(p GeoPoint) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}
