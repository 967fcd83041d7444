package service

import (
	"context"
	"log"
	"sort"

	"github.com/opencarpool/carpool/internal/cache"
	apperrors "github.com/opencarpool/carpool/internal/errors"
	"github.com/opencarpool/carpool/internal/geo"
	"github.com/opencarpool/carpool/internal/models"
	"github.com/opencarpool/carpool/internal/repository"
)

type SearchService interface {
	SearchRides(ctx context.Context, filter *models.SearchFilter) (*models.SearchResult, error)
	SearchByRouteSimilarity(ctx context.Context, filter *models.RouteSearchFilter) ([]*models.RouteMatch, error)
}

type searchService struct {
	rideRepo     repository.RideRepository
	geoCache     cache.RideGeoCache
	defaultLimit int
}

func NewSearchService(rideRepo repository.RideRepository, geoCache cache.RideGeoCache, defaultLimit int) SearchService {
	return &searchService{
		rideRepo:     rideRepo,
		geoCache:     geoCache,
		defaultLimit: defaultLimit,
	}
}

func (s *searchService) SearchRides(ctx context.Context, filter *models.SearchFilter) (*models.SearchResult, error) {
	if err := validatePoint(filter.Start); err != nil {
		return nil, err
	}
	if err := validatePoint(filter.End); err != nil {
		return nil, err
	}
	if filter.SeatsNeeded < 1 || filter.SeatsNeeded > 8 {
		return nil, apperrors.BadRequest("seats_needed must be between 1 and 8")
	}
	if filter.MaxStartDistance < 0 || filter.MaxEndDistance < 0 {
		return nil, apperrors.BadRequest("search radii must be non-negative")
	}

	// Zero radius is legal and means exact-point matching; the HTTP layer
	// substitutes the configured default when the parameter is absent.
	maxStart := filter.MaxStartDistance
	maxEnd := filter.MaxEndDistance
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = s.defaultLimit
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = models.SortByDistance
	}

	// The start-point envelope is the authoritative SQL prefilter: every
	// ride whose start lies within maxStart of the query start falls inside
	// it, so the candidate set stays complete when the cache index is not.
	startBounds := geo.RadiusBounds(filter.Start, maxStart)
	candidateFilter := repository.CandidateFilter{
		Status:        models.RideStatusPending,
		MinSeats:      filter.SeatsNeeded,
		DepartureDate: filter.DepartureDate,
		MaxPrice:      filter.MaxPrice,
		AllowLuggage:  filter.AllowLuggage,
		AllowPets:     filter.AllowPets,
		AllowSmoking:  filter.AllowSmoking,
		StartBounds:   &startBounds,
	}

	// The redis GEO index is best effort: its ids union with the envelope
	// (they can only widen the scan, never hide a ride the envelope
	// covers). Cache failures just fall back to the envelope alone.
	if s.geoCache != nil && maxStart > 0 {
		nearby, err := s.geoCache.NearbyRideIDs(ctx, filter.Start.Lat, filter.Start.Lng, maxStart, 0)
		if err != nil {
			log.Printf("geo prefilter unavailable, using the bounds envelope only: %v", err)
		} else if len(nearby) > 0 {
			ids := make([]string, len(nearby))
			for i, n := range nearby {
				ids[i] = n.RideID
			}
			candidateFilter.IDs = ids
		}
	}

	candidates, err := s.rideRepo.SearchCandidates(ctx, candidateFilter)
	if err != nil {
		return nil, err
	}

	matches := []models.RideMatch{}
	for _, ride := range candidates {
		startDist := geo.Distance(ride.StartPoint(), filter.Start)
		endDist := geo.Distance(ride.EndPoint(), filter.End)
		if startDist > maxStart || endDist > maxEnd {
			continue
		}
		matches = append(matches, models.RideMatch{
			Ride:          ride,
			StartDistance: startDist,
			EndDistance:   endDist,
			TotalDistance: startDist + endDist,
		})
	}

	switch sortBy {
	case models.SortByPrice:
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].Ride.PricePerSeat < matches[j].Ride.PricePerSeat
		})
	case models.SortByDepartureTime:
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].Ride.DepartureTime.Before(matches[j].Ride.DepartureTime)
		})
	default:
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].TotalDistance < matches[j].TotalDistance
		})
	}

	total := len(matches)
	start := (filter.Page - 1) * filter.Limit
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}

	return &models.SearchResult{
		Matches: matches[start:end],
		Total:   total,
		Page:    filter.Page,
		Limit:   filter.Limit,
	}, nil
}

func (s *searchService) SearchByRouteSimilarity(ctx context.Context, filter *models.RouteSearchFilter) ([]*models.RouteMatch, error) {
	if len(filter.Waypoints) < 2 {
		return nil, apperrors.BadRequest("at least two waypoints are required")
	}
	for _, wp := range filter.Waypoints {
		if err := validatePoint(models.GeoPoint{Lat: wp.Lat, Lng: wp.Lng}); err != nil {
			return nil, err
		}
	}
	if filter.MaxRouteDistance <= 0 {
		return nil, apperrors.BadRequest("max_route_distance must be positive")
	}
	if filter.MinSimilarity <= 0 || filter.MinSimilarity > 1 {
		return nil, apperrors.BadRequest("min_similarity must be in (0, 1]")
	}
	if filter.SeatsNeeded < 1 || filter.SeatsNeeded > 8 {
		return nil, apperrors.BadRequest("seats_needed must be between 1 and 8")
	}

	limit := filter.Limit
	if limit < 1 {
		limit = s.defaultLimit
	}

	queryRoute := geo.BuildLineString(filter.Waypoints)
	bounds := geo.ExpandBounds(geo.BoundingBoxOf(queryRoute...), filter.MaxRouteDistance)

	candidates, err := s.rideRepo.SearchCandidates(ctx, repository.CandidateFilter{
		Status:        models.RideStatusPending,
		MinSeats:      filter.SeatsNeeded,
		DepartureDate: filter.DepartureDate,
		Bounds:        &bounds,
		RequireRoute:  true,
	})
	if err != nil {
		return nil, err
	}

	matches := []*models.RouteMatch{}
	for _, ride := range candidates {
		if len(ride.PlannedRoute) < 2 {
			continue
		}
		ratio := geo.OverlapRatio(ride.PlannedRoute, queryRoute, filter.MaxRouteDistance)
		if ratio < filter.MinSimilarity {
			continue
		}
		routeLen := geo.RouteLength(ride.PlannedRoute)
		matches = append(matches, &models.RouteMatch{
			Ride:            ride,
			SharedDistance:  ratio * routeLen,
			TotalDistance:   routeLen,
			RouteSimilarity: ratio,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].RouteSimilarity > matches[j].RouteSimilarity
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}
