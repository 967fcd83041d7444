package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	apperrors "github.com/opencarpool/carpool/internal/errors"
	"github.com/opencarpool/carpool/internal/geo"
	"github.com/opencarpool/carpool/internal/models"
)

func testFareConfig() FareConfig {
	return FareConfig{
		BaseFare:            15,
		PerKmRate:           2.5,
		PeakSurcharge:       5,
		MorningPeakStart:    7,
		MorningPeakEnd:      9,
		EveningPeakStart:    17,
		EveningPeakEnd:      19,
		MarketBufferM:       2000,
		MarketWindowDays:    30,
		FallbackAvgPrice:    25,
		FallbackCompetitors: 0,
	}
}

func at(hour int) time.Time {
	return time.Date(2025, 6, 10, hour, 30, 0, 0, time.UTC)
}

func TestCalculateDynamicPriceFormula(t *testing.T) {
	svc := NewPricingService(newFakeRideRepo(), testFareConfig())
	ctx := context.Background()

	start := models.GeoPoint{Lat: 12.9716, Lng: 77.5946}
	end := models.GeoPoint{Lat: 12.9698, Lng: 77.7500}
	distanceKm := geo.Distance(start, end) / 1000

	tests := []struct {
		name         string
		hour         int
		wantTimeFare float64
	}{
		{"morning peak", 8, 5},
		{"morning peak upper bound", 9, 5},
		{"midday off-peak", 14, 0},
		{"evening peak", 18, 5},
		{"late night", 23, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote, err := svc.CalculateDynamicPrice(ctx, &models.PriceQuoteRequest{
				Start:         start,
				End:           end,
				Seats:         1,
				DepartureTime: at(tt.hour),
			})
			if err != nil {
				t.Fatalf("CalculateDynamicPrice: %v", err)
			}
			if quote.Breakdown.TimeFare != tt.wantTimeFare {
				t.Errorf("time fare = %.2f, want %.2f", quote.Breakdown.TimeFare, tt.wantTimeFare)
			}
			if quote.Breakdown.BaseFare != 15 {
				t.Errorf("base fare = %.2f, want 15", quote.Breakdown.BaseFare)
			}
			wantDistanceFare := math.Round(distanceKm*2.5*100) / 100
			if math.Abs(quote.Breakdown.DistanceFare-wantDistanceFare) > 0.01 {
				t.Errorf("distance fare = %.2f, want %.2f", quote.Breakdown.DistanceFare, wantDistanceFare)
			}
			wantTotal := math.Round((15+distanceKm*2.5+tt.wantTimeFare)*100) / 100
			if math.Abs(quote.SuggestedPrice-wantTotal) > 0.02 {
				t.Errorf("suggested price = %.2f, want %.2f", quote.SuggestedPrice, wantTotal)
			}
			if quote.Breakdown.Total != quote.SuggestedPrice {
				t.Errorf("breakdown total %.2f != suggested %.2f", quote.Breakdown.Total, quote.SuggestedPrice)
			}
		})
	}
}

func TestCalculateDynamicPriceValidation(t *testing.T) {
	svc := NewPricingService(newFakeRideRepo(), testFareConfig())
	ctx := context.Background()

	tests := []struct {
		name string
		req  *models.PriceQuoteRequest
	}{
		{
			name: "bad latitude",
			req: &models.PriceQuoteRequest{
				Start: models.GeoPoint{Lat: 95, Lng: 77.6},
				End:   models.GeoPoint{Lat: 12.97, Lng: 77.75},
				Seats: 1, DepartureTime: at(10),
			},
		},
		{
			name: "zero seats",
			req: &models.PriceQuoteRequest{
				Start: models.GeoPoint{Lat: 12.97, Lng: 77.59},
				End:   models.GeoPoint{Lat: 12.97, Lng: 77.75},
				Seats: 0, DepartureTime: at(10),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CalculateDynamicPrice(ctx, tt.req)
			var apiErr *apperrors.APIError
			if !errors.As(err, &apiErr) || apiErr.StatusCode != 400 {
				t.Errorf("expected bad request, got %v", err)
			}
		})
	}
}

func TestMarketFallbackWhenEmpty(t *testing.T) {
	svc := NewPricingService(newFakeRideRepo(), testFareConfig())

	quote, err := svc.CalculateDynamicPrice(context.Background(), &models.PriceQuoteRequest{
		Start:         models.GeoPoint{Lat: 12.9716, Lng: 77.5946},
		End:           models.GeoPoint{Lat: 12.9698, Lng: 77.7500},
		Seats:         1,
		DepartureTime: at(14),
	})
	if err != nil {
		t.Fatalf("CalculateDynamicPrice: %v", err)
	}
	if quote.Market.AveragePrice != 25 {
		t.Errorf("average price = %.2f, want fallback 25", quote.Market.AveragePrice)
	}
	if quote.Market.CompetitorCount != 0 {
		t.Errorf("competitors = %d, want 0", quote.Market.CompetitorCount)
	}
	if quote.Market.DemandLevel != models.DemandLow {
		t.Errorf("demand = %s, want %s", quote.Market.DemandLevel, models.DemandLow)
	}
}

func TestMarketContextFromRecentRides(t *testing.T) {
	rides := newFakeRideRepo()
	start := models.GeoPoint{Lat: 12.9716, Lng: 77.5946}
	end := models.GeoPoint{Lat: 12.9698, Lng: 77.7500}

	prices := []float64{40, 50, 60, 70}
	for _, price := range prices {
		ride := seedRide(t, rides, 3)
		rides.mu.Lock()
		rides.rides[ride.ID].PricePerSeat = price
		rides.mu.Unlock()
	}
	// A ride far away must not count as a competitor.
	far := seedRide(t, rides, 3)
	rides.mu.Lock()
	farRide := rides.rides[far.ID]
	farRide.StartLat, farRide.StartLng = 28.61, 77.21
	farRide.EndLat, farRide.EndLng = 28.70, 77.30
	farRide.PlannedRoute = models.Route{{Lat: 28.61, Lng: 77.21}, {Lat: 28.70, Lng: 77.30}}
	farRide.BoundsMinLat, farRide.BoundsMaxLat = 28.61, 28.70
	farRide.BoundsMinLng, farRide.BoundsMaxLng = 77.21, 77.30
	farRide.PricePerSeat = 500
	rides.mu.Unlock()

	svc := NewPricingService(rides, testFareConfig())
	quote, err := svc.CalculateDynamicPrice(context.Background(), &models.PriceQuoteRequest{
		Start:         start,
		End:           end,
		Seats:         1,
		DepartureTime: at(14),
	})
	if err != nil {
		t.Fatalf("CalculateDynamicPrice: %v", err)
	}
	if quote.Market.CompetitorCount != 4 {
		t.Errorf("competitors = %d, want 4", quote.Market.CompetitorCount)
	}
	if quote.Market.AveragePrice != 55 {
		t.Errorf("average price = %.2f, want 55", quote.Market.AveragePrice)
	}
	if quote.Market.DemandLevel != models.DemandMedium {
		t.Errorf("demand = %s, want %s", quote.Market.DemandLevel, models.DemandMedium)
	}
}

func TestDemandLevels(t *testing.T) {
	tests := []struct {
		competitors int
		want        string
	}{
		{0, models.DemandLow},
		{2, models.DemandLow},
		{3, models.DemandMedium},
		{5, models.DemandMedium},
		{6, models.DemandHigh},
	}

	for _, tt := range tests {
		if got := demandLevel(tt.competitors); got != tt.want {
			t.Errorf("demandLevel(%d) = %s, want %s", tt.competitors, got, tt.want)
		}
	}
}

func TestQuoteIncludesRouteInfo(t *testing.T) {
	svc := NewPricingService(newFakeRideRepo(), testFareConfig())

	quote, err := svc.CalculateDynamicPrice(context.Background(), &models.PriceQuoteRequest{
		Start:         models.GeoPoint{Lat: 12.9716, Lng: 77.5946},
		End:           models.GeoPoint{Lat: 12.9698, Lng: 77.7500},
		Waypoints:     []models.RoutePoint{{Lat: 12.98, Lng: 77.65, Order: 0}},
		Seats:         2,
		DepartureTime: at(10),
	})
	if err != nil {
		t.Fatalf("CalculateDynamicPrice: %v", err)
	}
	direct := geo.Distance(
		models.GeoPoint{Lat: 12.9716, Lng: 77.5946},
		models.GeoPoint{Lat: 12.9698, Lng: 77.7500})
	if quote.Route.Distance < direct {
		t.Errorf("route distance %.0f shorter than direct %.0f", quote.Route.Distance, direct)
	}
	if quote.Route.EstimatedDuration <= 0 {
		t.Errorf("estimated duration = %d, want > 0", quote.Route.EstimatedDuration)
	}
}
