package service

import (
	"context"
	"math"
	"sort"

	apperrors "github.com/opencarpool/carpool/internal/errors"
	"github.com/opencarpool/carpool/internal/geo"
	"github.com/opencarpool/carpool/internal/models"
	"github.com/opencarpool/carpool/internal/repository"
)

type AnalyticsService interface {
	PopularRoutes(ctx context.Context, center models.GeoPoint, radiusM float64, limit int) ([]*models.PopularRoute, error)
	DensityHeatmap(ctx context.Context, req *models.HeatmapRequest) ([]*models.HeatmapCell, error)
}

type analyticsService struct {
	rideRepo        repository.RideRepository
	defaultRadiusM  float64
	defaultLimit    int
	defaultCellSize float64
}

func NewAnalyticsService(rideRepo repository.RideRepository, defaultRadiusM float64, defaultLimit int, defaultCellSize float64) AnalyticsService {
	return &analyticsService{
		rideRepo:        rideRepo,
		defaultRadiusM:  defaultRadiusM,
		defaultLimit:    defaultLimit,
		defaultCellSize: defaultCellSize,
	}
}

func (s *analyticsService) PopularRoutes(ctx context.Context, center models.GeoPoint, radiusM float64, limit int) ([]*models.PopularRoute, error) {
	if err := validatePoint(center); err != nil {
		return nil, err
	}
	if radiusM < 0 {
		return nil, apperrors.BadRequest("radius must be non-negative")
	}
	if radiusM == 0 {
		radiusM = s.defaultRadiusM
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}

	bounds := geo.RadiusBounds(center, radiusM)
	rides, err := s.rideRepo.RidesWithinBounds(ctx, bounds, nil, nil)
	if err != nil {
		return nil, err
	}

	type agg struct {
		route       *models.PopularRoute
		sumPrice    float64
		sumDuration float64
		sumDistance float64
	}

	groups := map[[2]string]*agg{}
	order := [][2]string{}
	for _, ride := range rides {
		// The bbox query is coarse; re-check the precise radius.
		if geo.Distance(ride.StartPoint(), center) > radiusM {
			continue
		}
		key := [2]string{ride.StartAddress, ride.EndAddress}
		g, ok := groups[key]
		if !ok {
			g = &agg{route: &models.PopularRoute{
				StartAddress: ride.StartAddress,
				EndAddress:   ride.EndAddress,
			}}
			groups[key] = g
			order = append(order, key)
		}
		g.route.RideCount++
		g.sumPrice += ride.PricePerSeat
		g.sumDuration += float64(ride.EstimatedDuration)
		g.sumDistance += ride.EstimatedDistance
		if ride.CreatedAt.After(g.route.LastRideAt) {
			g.route.LastRideAt = ride.CreatedAt
		}
	}

	routes := make([]*models.PopularRoute, 0, len(groups))
	for _, key := range order {
		g := groups[key]
		n := float64(g.route.RideCount)
		g.route.AvgPrice = round(g.sumPrice / n)
		g.route.AvgDuration = round(g.sumDuration / n)
		g.route.AvgDistance = round(g.sumDistance / n)
		routes = append(routes, g.route)
	}

	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].RideCount > routes[j].RideCount
	})
	if len(routes) > limit {
		routes = routes[:limit]
	}

	return routes, nil
}

func (s *analyticsService) DensityHeatmap(ctx context.Context, req *models.HeatmapRequest) ([]*models.HeatmapCell, error) {
	b := req.Bounds
	if b.MinLat > b.MaxLat || b.MinLng > b.MaxLng {
		return nil, apperrors.BadRequest("bounds min must not exceed max")
	}
	if err := validatePoint(models.GeoPoint{Lat: b.MinLat, Lng: b.MinLng}); err != nil {
		return nil, err
	}
	if err := validatePoint(models.GeoPoint{Lat: b.MaxLat, Lng: b.MaxLng}); err != nil {
		return nil, err
	}
	cellSize := req.CellSize
	if cellSize < 0 {
		return nil, apperrors.BadRequest("cell_size must be non-negative")
	}
	if cellSize == 0 {
		cellSize = s.defaultCellSize
	}

	rides, err := s.rideRepo.RidesWithinBounds(ctx, b, req.DateFrom, req.DateTo)
	if err != nil {
		return nil, err
	}

	// Grid cells are cellSize meters on a side, anchored at the
	// south-west corner of the bounds.
	latStep := cellSize / geo.MetersPerDegreeLat
	lngStep := cellSize / geo.MetersPerDegreeLngAt((b.MinLat+b.MaxLat)/2)

	type cellAgg struct {
		cell     *models.HeatmapCell
		sumPrice float64
	}

	cells := map[[2]int]*cellAgg{}
	for _, ride := range rides {
		p := ride.StartPoint()
		if !b.Contains(p) {
			continue
		}
		row := int(math.Floor((p.Lat - b.MinLat) / latStep))
		col := int(math.Floor((p.Lng - b.MinLng) / lngStep))
		key := [2]int{row, col}
		c, ok := cells[key]
		if !ok {
			minLat := b.MinLat + float64(row)*latStep
			minLng := b.MinLng + float64(col)*lngStep
			c = &cellAgg{cell: &models.HeatmapCell{
				Center: models.GeoPoint{
					Lat: minLat + latStep/2,
					Lng: minLng + lngStep/2,
				},
				Bounds: models.BoundingBox{
					MinLat: minLat, MaxLat: minLat + latStep,
					MinLng: minLng, MaxLng: minLng + lngStep,
				},
			}}
			cells[key] = c
		}
		c.cell.RideCount++
		c.sumPrice += ride.PricePerSeat
	}

	result := make([]*models.HeatmapCell, 0, len(cells))
	for _, c := range cells {
		c.cell.AvgPrice = round(c.sumPrice / float64(c.cell.RideCount))
		result = append(result, c.cell)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].RideCount != result[j].RideCount {
			return result[i].RideCount > result[j].RideCount
		}
		if result[i].Center.Lat != result[j].Center.Lat {
			return result[i].Center.Lat < result[j].Center.Lat
		}
		return result[i].Center.Lng < result[j].Center.Lng
	})

	return result, nil
}
