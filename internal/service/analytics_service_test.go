package service

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/opencarpool/carpool/internal/errors"
	"github.com/opencarpool/carpool/internal/geo"
	"github.com/opencarpool/carpool/internal/models"
)

func seedNamedRide(t *testing.T, rides *fakeRideRepo, start models.GeoPoint, startAddr, endAddr string, price float64) *models.Ride {
	t.Helper()

	end := offsetNorth(start, 8000)
	ride := seedRideAt(t, rides, start, end, price, time.Now().Add(2*time.Hour))
	rides.mu.Lock()
	rides.rides[ride.ID].StartAddress = startAddr
	rides.rides[ride.ID].EndAddress = endAddr
	rides.mu.Unlock()
	return ride
}

func TestPopularRoutes(t *testing.T) {
	rides := newFakeRideRepo()
	center := models.GeoPoint{Lat: 12.9716, Lng: 77.5946}

	// Three rides on the busiest corridor, two on another.
	for i := 0; i < 3; i++ {
		seedNamedRide(t, rides, center, "MG Road", "Whitefield", 50+float64(10*i))
	}
	for i := 0; i < 2; i++ {
		seedNamedRide(t, rides, offsetNorth(center, 1000), "Indiranagar", "Airport", 100)
	}
	// Outside the 5km radius.
	seedNamedRide(t, rides, offsetNorth(center, 8000), "Yelahanka", "Devanahalli", 80)

	svc := NewAnalyticsService(rides, 5000, 10, 1000)
	routes, err := svc.PopularRoutes(context.Background(), center, 5000, 10)
	if err != nil {
		t.Fatalf("PopularRoutes: %v", err)
	}

	if len(routes) != 2 {
		t.Fatalf("routes = %d, want 2", len(routes))
	}
	if routes[0].StartAddress != "MG Road" || routes[0].RideCount != 3 {
		t.Errorf("top route = %s x%d, want MG Road x3", routes[0].StartAddress, routes[0].RideCount)
	}
	if routes[1].StartAddress != "Indiranagar" || routes[1].RideCount != 2 {
		t.Errorf("second route = %s x%d, want Indiranagar x2", routes[1].StartAddress, routes[1].RideCount)
	}
	if routes[0].AvgPrice != 60 {
		t.Errorf("avg price = %.2f, want 60", routes[0].AvgPrice)
	}
	if routes[0].LastRideAt.IsZero() {
		t.Errorf("last ride timestamp not set")
	}
	if routes[0].AvgDistance <= 0 || routes[0].AvgDuration <= 0 {
		t.Errorf("avg distance/duration = %.2f / %.2f, want > 0",
			routes[0].AvgDistance, routes[0].AvgDuration)
	}
}

func TestPopularRoutesLimitAndDefaults(t *testing.T) {
	rides := newFakeRideRepo()
	center := models.GeoPoint{Lat: 12.9716, Lng: 77.5946}

	for i := 0; i < 3; i++ {
		addr := string(rune('A' + i))
		seedNamedRide(t, rides, offsetNorth(center, float64(200*i)), addr, addr+" end", 50)
	}

	svc := NewAnalyticsService(rides, 5000, 10, 1000)

	routes, err := svc.PopularRoutes(context.Background(), center, 5000, 2)
	if err != nil {
		t.Fatalf("PopularRoutes: %v", err)
	}
	if len(routes) != 2 {
		t.Errorf("limit 2: got %d routes", len(routes))
	}

	// Zero radius and limit take the configured defaults.
	routes, err = svc.PopularRoutes(context.Background(), center, 0, 0)
	if err != nil {
		t.Fatalf("PopularRoutes with defaults: %v", err)
	}
	if len(routes) != 3 {
		t.Errorf("defaults: got %d routes, want 3", len(routes))
	}

	_, err = svc.PopularRoutes(context.Background(), models.GeoPoint{Lat: 99, Lng: 0}, 5000, 10)
	var apiErr *apperrors.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 400 {
		t.Errorf("bad center: expected bad request, got %v", err)
	}
}

func TestDensityHeatmap(t *testing.T) {
	rides := newFakeRideRepo()

	bounds := models.BoundingBox{
		MinLat: 12.90, MaxLat: 13.00,
		MinLng: 77.55, MaxLng: 77.65,
	}
	latStep := 1000 / geo.MetersPerDegreeLat
	lngStep := 1000 / geo.MetersPerDegreeLngAt(12.95)

	// Two starts inside the same cell, one in the neighbouring cell.
	inCell := models.GeoPoint{Lat: bounds.MinLat + latStep*0.3, Lng: bounds.MinLng + lngStep*0.3}
	alsoInCell := models.GeoPoint{Lat: bounds.MinLat + latStep*0.7, Lng: bounds.MinLng + lngStep*0.7}
	nextCell := models.GeoPoint{Lat: bounds.MinLat + latStep*1.5, Lng: bounds.MinLng + lngStep*0.5}

	seedRideAt(t, rides, inCell, offsetNorth(inCell, 5000), 40, time.Now().Add(time.Hour))
	seedRideAt(t, rides, alsoInCell, offsetNorth(alsoInCell, 5000), 60, time.Now().Add(time.Hour))
	seedRideAt(t, rides, nextCell, offsetNorth(nextCell, 5000), 80, time.Now().Add(time.Hour))
	// Outside the requested bounds entirely.
	outside := models.GeoPoint{Lat: 13.20, Lng: 77.60}
	seedRideAt(t, rides, outside, offsetNorth(outside, 5000), 70, time.Now().Add(time.Hour))

	svc := NewAnalyticsService(rides, 5000, 10, 1000)
	cells, err := svc.DensityHeatmap(context.Background(), &models.HeatmapRequest{
		Bounds:   bounds,
		CellSize: 1000,
	})
	if err != nil {
		t.Fatalf("DensityHeatmap: %v", err)
	}

	if len(cells) != 2 {
		t.Fatalf("cells = %d, want 2", len(cells))
	}
	if cells[0].RideCount != 2 {
		t.Errorf("busiest cell count = %d, want 2", cells[0].RideCount)
	}
	if cells[0].AvgPrice != 50 {
		t.Errorf("busiest cell avg price = %.2f, want 50", cells[0].AvgPrice)
	}
	if cells[1].RideCount != 1 || cells[1].AvgPrice != 80 {
		t.Errorf("second cell = x%d at %.2f, want x1 at 80", cells[1].RideCount, cells[1].AvgPrice)
	}

	// Cell bounds snap to the grid and contain the points they aggregate.
	busy := cells[0]
	if !busy.Bounds.Contains(inCell) || !busy.Bounds.Contains(alsoInCell) {
		t.Errorf("busiest cell bounds do not contain its rides")
	}
	if busy.Bounds.Contains(nextCell) {
		t.Errorf("busiest cell bounds must not contain the neighbouring ride")
	}
	wantCenterLat := bounds.MinLat + latStep/2
	if busy.Center.Lat < bounds.MinLat || busy.Center.Lat > wantCenterLat+latStep {
		t.Errorf("cell center lat %.6f not near the first row", busy.Center.Lat)
	}
}

func TestDensityHeatmapValidation(t *testing.T) {
	svc := NewAnalyticsService(newFakeRideRepo(), 5000, 10, 1000)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *models.HeatmapRequest
	}{
		{
			name: "inverted bounds",
			req: &models.HeatmapRequest{
				Bounds:   models.BoundingBox{MinLat: 13.0, MaxLat: 12.9, MinLng: 77.5, MaxLng: 77.6},
				CellSize: 1000,
			},
		},
		{
			name: "latitude out of range",
			req: &models.HeatmapRequest{
				Bounds:   models.BoundingBox{MinLat: 12.9, MaxLat: 95, MinLng: 77.5, MaxLng: 77.6},
				CellSize: 1000,
			},
		},
		{
			name: "negative cell size",
			req: &models.HeatmapRequest{
				Bounds:   models.BoundingBox{MinLat: 12.9, MaxLat: 13.0, MinLng: 77.5, MaxLng: 77.6},
				CellSize: -5,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.DensityHeatmap(ctx, tt.req)
			var apiErr *apperrors.APIError
			if !errors.As(err, &apiErr) || apiErr.StatusCode != 400 {
				t.Errorf("expected bad request, got %v", err)
			}
		})
	}

	t.Run("date window filters rides", func(t *testing.T) {
		rides := newFakeRideRepo()
		p := models.GeoPoint{Lat: 12.95, Lng: 77.58}
		seedRideAt(t, rides, p, offsetNorth(p, 5000), 50, time.Now().Add(time.Hour))

		svc := NewAnalyticsService(rides, 5000, 10, 1000)
		past := time.Now().Add(-48 * time.Hour)
		cutoff := time.Now().Add(-24 * time.Hour)
		cells, err := svc.DensityHeatmap(context.Background(), &models.HeatmapRequest{
			Bounds:   models.BoundingBox{MinLat: 12.90, MaxLat: 13.00, MinLng: 77.55, MaxLng: 77.65},
			CellSize: 1000,
			DateFrom: &past,
			DateTo:   &cutoff,
		})
		if err != nil {
			t.Fatalf("DensityHeatmap: %v", err)
		}
		if len(cells) != 0 {
			t.Errorf("ride created now must not appear in a window ending yesterday, got %d cells", len(cells))
		}
	})
}
