// Package geo holds the pure geometry primitives the matching engine is
// built on. Nothing here touches a store: repositories narrow candidate
// sets with cheap bounding-box predicates, and the precise distance,
// projection and overlap computations all happen here in Go.
package geo

import (
	"math"
	"sort"

	"github.com/opencarpool/carpool/internal/models"
)

const (
	earthRadiusM = 6371000.0

	// overlapSampleStep is the target sampling interval, in meters, used
	// when measuring how much of a candidate route lies inside a buffer.
	overlapSampleStep = 25.0

	// maxSegmentSamples bounds the work per segment for very long legs.
	maxSegmentSamples = 200
)

// Distance returns the haversine (great-circle) distance between two points
// in meters. This is the single distance metric used everywhere in the
// engine: symmetric, non-negative, zero iff the points are equal.
func Distance(a, b models.GeoPoint) float64 {
	if a == b {
		return 0
	}
	dLat := degToRad(b.Lat - a.Lat)
	dLng := degToRad(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat +
		math.Cos(degToRad(a.Lat))*math.Cos(degToRad(b.Lat))*sinLng*sinLng

	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}

// RouteLength returns the total polyline length in meters: the sum of
// consecutive segment distances. Empty and single-point routes measure 0.
func RouteLength(r models.Route) float64 {
	total := 0.0
	for i := 0; i < len(r)-1; i++ {
		total += Distance(r[i], r[i+1])
	}
	return total
}

// BuildLineString normalizes a set of waypoints into a Route by sorting on
// the explicit order index. The input slice is not modified.
func BuildLineString(points []models.RoutePoint) models.Route {
	sorted := make([]models.RoutePoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	route := make(models.Route, 0, len(sorted))
	for _, p := range sorted {
		route = append(route, p.Point())
	}
	return route
}

// OverlapRatio returns the fraction of candidate's length that lies within
// bufferRadius meters of query, in [0,1]. A zero-length candidate yields 0.
//
// The ratio is asymmetric: it divides by the candidate's own length, so it
// answers "how much of this posted ride's route does the query share", not
// the reverse.
func OverlapRatio(candidate, query models.Route, bufferRadius float64) float64 {
	total := RouteLength(candidate)
	if total == 0 {
		return 0
	}

	shared := 0.0
	for i := 0; i < len(candidate)-1; i++ {
		shared += sharedSegmentLength(candidate[i], candidate[i+1], query, bufferRadius)
	}

	ratio := shared / total
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

// sharedSegmentLength measures the portion of segment a-b within
// bufferRadius of the query route by midpoint sampling.
func sharedSegmentLength(a, b models.GeoPoint, query models.Route, bufferRadius float64) float64 {
	segLen := Distance(a, b)
	if segLen == 0 {
		return 0
	}

	steps := int(segLen/overlapSampleStep) + 1
	if steps > maxSegmentSamples {
		steps = maxSegmentSamples
	}

	inside := 0.0
	stepLen := segLen / float64(steps)
	for k := 0; k < steps; k++ {
		t := (float64(k) + 0.5) / float64(steps)
		mid := models.GeoPoint{
			Lat: a.Lat + t*(b.Lat-a.Lat),
			Lng: a.Lng + t*(b.Lng-a.Lng),
		}
		if DistanceToRoute(mid, query) <= bufferRadius {
			inside += stepLen
		}
	}
	return inside
}

// DistanceToRoute returns the distance in meters from p to the nearest
// point on the route. An empty route is infinitely far away.
func DistanceToRoute(p models.GeoPoint, r models.Route) float64 {
	if len(r) == 0 {
		return math.Inf(1)
	}
	if len(r) == 1 {
		return Distance(p, r[0])
	}

	min := math.Inf(1)
	for i := 0; i < len(r)-1; i++ {
		d := Distance(p, NearestPointOnSegment(p, r[i], r[i+1]))
		if d < min {
			min = d
		}
	}
	return min
}

// NearestPointOnSegment projects p orthogonally onto the segment a-b and
// clamps the result to the segment. The projection uses a local
// equirectangular plane, which is accurate for the segment lengths the
// engine works with; distances to the result are still haversine.
func NearestPointOnSegment(p, a, b models.GeoPoint) models.GeoPoint {
	if a == b {
		return a
	}

	cosLat := math.Cos(degToRad((a.Lat + b.Lat) / 2))

	bx := (b.Lng - a.Lng) * cosLat
	by := b.Lat - a.Lat
	px := (p.Lng - a.Lng) * cosLat
	py := p.Lat - a.Lat

	t := (px*bx + py*by) / (bx*bx + by*by)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	return models.GeoPoint{
		Lat: a.Lat + t*(b.Lat-a.Lat),
		Lng: a.Lng + t*(b.Lng-a.Lng),
	}
}

// BoundingBoxOf folds a set of points into their enclosing box.
// At least one point is required; callers guarantee this at validation time.
func BoundingBoxOf(points ...models.GeoPoint) models.BoundingBox {
	box := models.BoundingBox{
		MinLat: math.Inf(1), MaxLat: math.Inf(-1),
		MinLng: math.Inf(1), MaxLng: math.Inf(-1),
	}
	for _, p := range points {
		box.MinLat = math.Min(box.MinLat, p.Lat)
		box.MaxLat = math.Max(box.MaxLat, p.Lat)
		box.MinLng = math.Min(box.MinLng, p.Lng)
		box.MaxLng = math.Max(box.MaxLng, p.Lng)
	}
	return box
}

// ExpandBounds grows a bounding box by radiusMeters on every side. Used to
// build the cheap SQL prefilter envelope for within-radius queries.
func ExpandBounds(b models.BoundingBox, radiusMeters float64) models.BoundingBox {
	dLat := radToDeg(radiusMeters / earthRadiusM)
	midLat := degToRad((b.MinLat + b.MaxLat) / 2)
	cosLat := math.Cos(midLat)
	if cosLat < 1e-6 {
		cosLat = 1e-6
	}
	dLng := radToDeg(radiusMeters / (earthRadiusM * cosLat))

	return models.BoundingBox{
		MinLat: b.MinLat - dLat,
		MaxLat: b.MaxLat + dLat,
		MinLng: b.MinLng - dLng,
		MaxLng: b.MaxLng + dLng,
	}
}

// RadiusBounds is the prefilter envelope for a within-radius query around a
// single center point.
func RadiusBounds(center models.GeoPoint, radiusMeters float64) models.BoundingBox {
	return ExpandBounds(BoundingBoxOf(center), radiusMeters)
}

// MetersPerDegreeLat is the length of one degree of latitude in meters.
const MetersPerDegreeLat = earthRadiusM * math.Pi / 180

// MetersPerDegreeLngAt returns the length of one degree of longitude at the
// given latitude, floored away from zero near the poles.
func MetersPerDegreeLngAt(lat float64) float64 {
	cosLat := math.Cos(degToRad(lat))
	if cosLat < 1e-6 {
		cosLat = 1e-6
	}
	return MetersPerDegreeLat * cosLat
}

// EstimateDuration converts a route length in meters to an estimated travel
// time in minutes, at the flat 2 min/km rate the rest of the system quotes.
func EstimateDuration(distanceMeters float64) int {
	return int(math.Round(distanceMeters / 1000 * 2))
}

func degToRad(deg float64) float64 { return deg * math.Pi / 180 }

func radToDeg(rad float64) float64 { return rad * 180 / math.Pi }
