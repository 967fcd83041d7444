package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/opencarpool/carpool/internal/errors"
	"github.com/opencarpool/carpool/internal/models"
)

// stubRideService records FinishTrip calls; everything else is canned.
type stubRideService struct {
	finishCalls    int
	finishDistance *float64
	liveLocation   *models.LiveLocation
}

func (s *stubRideService) CreateRide(ctx context.Context, req *models.CreateRideRequest) (*models.Ride, error) {
	return &models.Ride{ID: "ride-1"}, nil
}

func (s *stubRideService) GetRide(ctx context.Context, id string) (*models.Ride, error) {
	return &models.Ride{ID: id}, nil
}

func (s *stubRideService) UpdateRideStatus(ctx context.Context, id, status string) (*models.Ride, error) {
	return &models.Ride{ID: id, Status: status}, nil
}

func (s *stubRideService) UpdateRideLocation(ctx context.Context, id string, lat, lng float64) error {
	return nil
}

func (s *stubRideService) GetLiveLocation(ctx context.Context, id string) (*models.LiveLocation, error) {
	if s.liveLocation == nil {
		return nil, apperrors.NotFound("live location")
	}
	return s.liveLocation, nil
}

func (s *stubRideService) StartTrip(ctx context.Context, id string) (*models.Ride, error) {
	return &models.Ride{ID: id, Status: models.RideStatusActive}, nil
}

func (s *stubRideService) FinishTrip(ctx context.Context, id string, actualDistance *float64) (*models.Ride, error) {
	s.finishCalls++
	s.finishDistance = actualDistance
	return &models.Ride{ID: id, Status: models.RideStatusCompleted}, nil
}

func (s *stubRideService) ListByDriver(ctx context.Context, driverID string) ([]*models.Ride, error) {
	return nil, nil
}

func newTestRouter(svc *stubRideService) chi.Router {
	h := NewRideHandler(svc, nil, nil, nil, 2000)
	r := chi.NewRouter()
	r.Route("/v1", h.RegisterRoutes)
	return r
}

func TestFinishTripBody(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantStatus   int
		wantCalled   bool
		wantDistance *float64
	}{
		{"empty body finishes without a distance", "", http.StatusOK, true, nil},
		{"distance recorded", `{"actual_distance": 19500}`, http.StatusOK, true, floatPtr(19500)},
		{"malformed body rejected", `{"actual_distance": `, http.StatusBadRequest, false, nil},
		{"wrong type rejected", `{"actual_distance": "far"}`, http.StatusBadRequest, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubRideService{}
			router := newTestRouter(svc)

			req := httptest.NewRequest(http.MethodPost, "/v1/rides/ride-1/finish", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %q)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if called := svc.finishCalls > 0; called != tt.wantCalled {
				t.Errorf("finish called = %v, want %v", called, tt.wantCalled)
			}
			if tt.wantDistance == nil && svc.finishDistance != nil {
				t.Errorf("distance = %v, want none", *svc.finishDistance)
			}
			if tt.wantDistance != nil && (svc.finishDistance == nil || *svc.finishDistance != *tt.wantDistance) {
				t.Errorf("distance = %v, want %v", svc.finishDistance, *tt.wantDistance)
			}
		})
	}
}

func TestGetLocationRoute(t *testing.T) {
	svc := &stubRideService{
		liveLocation: &models.LiveLocation{RideID: "ride-1", Lat: 12.975, Lng: 77.62, UpdatedAt: time.Now()},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/v1/rides/ride-1/location", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"lat":12.975`) {
		t.Errorf("response missing the reported position: %s", rec.Body.String())
	}

	svc.liveLocation = nil
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rides/ride-1/location", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when no position is known", rec.Code)
	}
}

func floatPtr(f float64) *float64 { return &f }
