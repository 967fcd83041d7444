package service

import (
	"context"
	"log"
	"math"
	"time"

	apperrors "github.com/opencarpool/carpool/internal/errors"
	"github.com/opencarpool/carpool/internal/geo"
	"github.com/opencarpool/carpool/internal/models"
	"github.com/opencarpool/carpool/internal/repository"
)

// FareConfig holds the tunables of the dynamic price formula.
type FareConfig struct {
	BaseFare         float64
	PerKmRate        float64
	PeakSurcharge    float64
	MorningPeakStart int
	MorningPeakEnd   int
	EveningPeakStart int
	EveningPeakEnd   int

	MarketBufferM    float64
	MarketWindowDays int

	// Fallbacks when no market data is available.
	FallbackAvgPrice    float64
	FallbackCompetitors int
}

type PricingService interface {
	CalculateDynamicPrice(ctx context.Context, req *models.PriceQuoteRequest) (*models.PriceQuote, error)
}

type pricingService struct {
	rideRepo repository.RideRepository
	config   FareConfig
}

func NewPricingService(rideRepo repository.RideRepository, config FareConfig) PricingService {
	return &pricingService{
		rideRepo: rideRepo,
		config:   config,
	}
}

func (s *pricingService) CalculateDynamicPrice(ctx context.Context, req *models.PriceQuoteRequest) (*models.PriceQuote, error) {
	if err := validatePoint(req.Start); err != nil {
		return nil, err
	}
	if err := validatePoint(req.End); err != nil {
		return nil, err
	}
	if req.Seats < 1 || req.Seats > 8 {
		return nil, apperrors.BadRequest("seats must be between 1 and 8")
	}

	waypoints := make([]models.RoutePoint, 0, len(req.Waypoints)+2)
	waypoints = append(waypoints, models.RoutePoint{Lat: req.Start.Lat, Lng: req.Start.Lng, Order: -1})
	waypoints = append(waypoints, req.Waypoints...)
	waypoints = append(waypoints, models.RoutePoint{Lat: req.End.Lat, Lng: req.End.Lng, Order: 1 << 30})
	route := geo.BuildLineString(waypoints)

	distance := geo.RouteLength(route)

	baseFare := s.config.BaseFare
	distanceFare := distance / 1000 * s.config.PerKmRate
	timeFare := 0.0
	if s.isPeakHour(req.DepartureTime) {
		timeFare = s.config.PeakSurcharge
	}
	total := baseFare + distanceFare + timeFare

	market := s.marketContext(ctx, route)

	return &models.PriceQuote{
		SuggestedPrice: round(total),
		Breakdown: models.FareBreakdown{
			BaseFare:     round(baseFare),
			DistanceFare: round(distanceFare),
			TimeFare:     round(timeFare),
			Total:        round(total),
		},
		Market: market,
		Route: models.RouteInfo{
			Distance:          distance,
			EstimatedDuration: geo.EstimateDuration(distance),
		},
	}, nil
}

func (s *pricingService) isPeakHour(t time.Time) bool {
	hour := t.Hour()
	if hour >= s.config.MorningPeakStart && hour <= s.config.MorningPeakEnd {
		return true
	}
	return hour >= s.config.EveningPeakStart && hour <= s.config.EveningPeakEnd
}

// marketContext is advisory. Any store failure degrades to the configured
// fallbacks so a quote never fails because market data is unavailable.
func (s *pricingService) marketContext(ctx context.Context, route models.Route) models.MarketAnalysis {
	fallback := models.MarketAnalysis{
		AveragePrice:    s.config.FallbackAvgPrice,
		CompetitorCount: s.config.FallbackCompetitors,
		DemandLevel:     demandLevel(s.config.FallbackCompetitors),
	}

	if len(route) == 0 {
		return fallback
	}

	bounds := geo.ExpandBounds(geo.BoundingBoxOf(route...), s.config.MarketBufferM)
	since := time.Now().AddDate(0, 0, -s.config.MarketWindowDays)

	rides, err := s.rideRepo.RecentRidesNear(ctx, bounds, since)
	if err != nil {
		log.Printf("market context unavailable, using fallbacks: %v", err)
		return fallback
	}

	var sum float64
	count := 0
	for _, ride := range rides {
		if len(ride.PlannedRoute) < 2 {
			continue
		}
		if geo.OverlapRatio(ride.PlannedRoute, route, s.config.MarketBufferM) > 0 {
			sum += ride.PricePerSeat
			count++
		}
	}

	if count == 0 {
		return fallback
	}

	return models.MarketAnalysis{
		AveragePrice:    round(sum / float64(count)),
		CompetitorCount: count,
		DemandLevel:     demandLevel(count),
	}
}

func demandLevel(competitors int) string {
	switch {
	case competitors > 5:
		return models.DemandHigh
	case competitors > 2:
		return models.DemandMedium
	default:
		return models.DemandLow
	}
}

func round(f float64) float64 {
	return math.Round(f*100) / 100
}
