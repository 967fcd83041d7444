package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rideStartGeoKey       = "rides:open:starts"
	rideEndGeoKey         = "rides:open:ends"
	rideLocationKeyPrefix = "ride:location:"
	locationTTL           = 5 * time.Minute
)

type RideLocation struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	UpdatedAt int64   `json:"updated_at"`
}

type RideWithDistance struct {
	RideID   string
	Distance float64 // meters
}

// RideGeoCache keeps a redis GEO index of open rides so searches can
// prefilter candidates before the precise distance pass.
type RideGeoCache interface {
	IndexRide(ctx context.Context, rideID string, startLat, startLng, endLat, endLng float64) error
	RemoveRide(ctx context.Context, rideID string) error
	NearbyRideIDs(ctx context.Context, lat, lng, radiusM float64, limit int) ([]RideWithDistance, error)
	UpdateLiveLocation(ctx context.Context, rideID string, lat, lng float64) error
	GetLiveLocation(ctx context.Context, rideID string) (*RideLocation, error)
}

type rideGeoCache struct {
	redis *redis.Client
}

func NewRideGeoCache(redisClient *redis.Client) RideGeoCache {
	return &rideGeoCache{redis: redisClient}
}

func (c *rideGeoCache) IndexRide(ctx context.Context, rideID string, startLat, startLng, endLat, endLng float64) error {
	if err := c.redis.GeoAdd(ctx, rideStartGeoKey, &redis.GeoLocation{
		Name:      rideID,
		Longitude: startLng,
		Latitude:  startLat,
	}).Err(); err != nil {
		return err
	}

	return c.redis.GeoAdd(ctx, rideEndGeoKey, &redis.GeoLocation{
		Name:      rideID,
		Longitude: endLng,
		Latitude:  endLat,
	}).Err()
}

func (c *rideGeoCache) RemoveRide(ctx context.Context, rideID string) error {
	if err := c.redis.ZRem(ctx, rideStartGeoKey, rideID).Err(); err != nil {
		return err
	}
	return c.redis.ZRem(ctx, rideEndGeoKey, rideID).Err()
}

func (c *rideGeoCache) NearbyRideIDs(ctx context.Context, lat, lng, radiusM float64, limit int) ([]RideWithDistance, error) {
	if limit <= 0 {
		limit = 200
	}

	locations, err := c.redis.GeoRadius(ctx, rideStartGeoKey, lng, lat, &redis.GeoRadiusQuery{
		Radius:   radiusM / 1000,
		Unit:     "km",
		WithDist: true,
		Count:    limit,
		Sort:     "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}

	result := make([]RideWithDistance, 0, len(locations))
	for _, loc := range locations {
		result = append(result, RideWithDistance{
			RideID:   loc.Name,
			Distance: loc.Dist * 1000,
		})
	}

	return result, nil
}

func (c *rideGeoCache) UpdateLiveLocation(ctx context.Context, rideID string, lat, lng float64) error {
	loc := RideLocation{
		Lat:       lat,
		Lng:       lng,
		UpdatedAt: time.Now().Unix(),
	}

	locJSON, err := json.Marshal(loc)
	if err != nil {
		return err
	}

	return c.redis.Set(ctx, rideLocationKeyPrefix+rideID, locJSON, locationTTL).Err()
}

func (c *rideGeoCache) GetLiveLocation(ctx context.Context, rideID string) (*RideLocation, error) {
	data, err := c.redis.Get(ctx, rideLocationKeyPrefix+rideID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var loc RideLocation
	if err := json.Unmarshal(data, &loc); err != nil {
		return nil, err
	}

	return &loc, nil
}
