//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/opencarpool/carpool/internal/cache"
	"github.com/opencarpool/carpool/internal/config"
	"github.com/opencarpool/carpool/internal/database"
	"github.com/opencarpool/carpool/internal/models"
	"github.com/opencarpool/carpool/internal/repository"
	"github.com/opencarpool/carpool/internal/service"
)

// Bangalore coordinates
const (
	baseLat = 12.9716
	baseLng = 77.5946
)

var neighborhoods = []string{
	"Indiranagar", "Koramangala", "Whitefield", "HSR Layout", "Jayanagar",
	"Malleshwaram", "Electronic City", "Hebbal", "Marathahalli", "BTM Layout",
}

var vehicles = []models.VehicleInfo{
	{Model: "Maruti Swift", Color: "white", LicensePlate: "KA01AB1234"},
	{Model: "Hyundai i20", Color: "red", LicensePlate: "KA05CD5678"},
	{Model: "Tata Nexon", Color: "blue", LicensePlate: "KA03EF9012"},
	{Model: "Honda City", Color: "silver", LicensePlate: "KA02GH3456"},
}

func main() {
	rand.Seed(time.Now().UnixNano())

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.DatabaseURL, cfg.DBMaxConnections, cfg.DBMaxIdleConnections)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	redis, err := database.NewRedis(cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	ctx := context.Background()

	rideService := service.NewRideService(
		repository.NewRideRepository(db.DB),
		cache.NewRideGeoCache(redis.Client),
	)

	log.Println("Creating 100 rides...")
	rideIDs := make([]string, 0)
	for i := 0; i < 100; i++ {
		start := jitter(baseLat, baseLng)
		end := jitter(baseLat, baseLng)

		ride, err := rideService.CreateRide(ctx, &models.CreateRideRequest{
			DriverID:      fmt.Sprintf("driver-%03d", rand.Intn(40)),
			Start:         models.Location{Lat: start.Lat, Lng: start.Lng, Address: neighborhoods[rand.Intn(len(neighborhoods))]},
			End:           models.Location{Lat: end.Lat, Lng: end.Lng, Address: neighborhoods[rand.Intn(len(neighborhoods))]},
			DepartureTime: time.Now().Add(time.Duration(1+rand.Intn(72)) * time.Hour),
			Seats:         1 + rand.Intn(4),
			PricePerSeat:  float64(10 + rand.Intn(40)),
			Vehicle:       vehicles[rand.Intn(len(vehicles))],
			Preferences: models.RidePreferences{
				AllowLuggage: rand.Float64() > 0.3,
				AllowPets:    rand.Float64() > 0.7,
			},
		})
		if err != nil {
			log.Printf("Failed to create ride: %v", err)
			continue
		}
		rideIDs = append(rideIDs, ride.ID)
	}
	log.Printf("Created %d rides", len(rideIDs))

	if len(rideIDs) > 0 {
		log.Println("\nSample Ride ID:", rideIDs[0])
		log.Println("You can now search and request seats against these rides.")
	}
}

func jitter(lat, lng float64) models.GeoPoint {
	return models.GeoPoint{
		Lat: lat + (rand.Float64()-0.5)*0.1, // +/- 0.05 degrees (~5km)
		Lng: lng + (rand.Float64()-0.5)*0.1,
	}
}
