// Package maps estimates driving routes for fare quotes.
package maps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"googlemaps.github.io/maps"

	"cabnet/internal/domain"
)

// ErrNoRoute is returned when the provider finds no driving route.
var ErrNoRoute = errors.New("no route found")

// Route is a distance and duration estimate between two points.
type Route struct {
	DistanceM int
	Duration  time.Duration
}

// Estimator estimates a driving route.
type Estimator interface {
	Estimate(ctx context.Context, from, to domain.Location) (Route, error)
}

// directionsClient is the subset of *maps.Client used by RouteService.
type directionsClient interface {
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
}

// RouteService handles interactions with Google Maps API.
type RouteService struct {
	client directionsClient
}

// NewRouteService creates a new RouteService with the given API Key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// Estimate returns the first driving leg between from and to.
func (s *RouteService) Estimate(ctx context.Context, from, to domain.Location) (Route, error) {
	r := &maps.DirectionsRequest{
		Origin:      from.Coordinates(),
		Destination: to.Coordinates(),
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return Route{}, fmt.Errorf("maps api error: %w", err)
	}

	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Route{}, ErrNoRoute
	}

	leg := routes[0].Legs[0]
	return Route{DistanceM: leg.Distance.Meters, Duration: leg.Duration}, nil
}

// FallbackEstimator tries primary and falls back to a straight-line estimate
// when it fails or is not configured.
type FallbackEstimator struct {
	primary  Estimator
	fallback Estimator
	logger   *slog.Logger
}

// NewFallbackEstimator creates a FallbackEstimator. primary may be nil.
func NewFallbackEstimator(primary Estimator, logger *slog.Logger) *FallbackEstimator {
	return &FallbackEstimator{primary: primary, fallback: HaversineEstimator{}, logger: logger}
}

// Estimate implements Estimator.
func (e *FallbackEstimator) Estimate(ctx context.Context, from, to domain.Location) (Route, error) {
	if e.primary != nil {
		route, err := e.primary.Estimate(ctx, from, to)
		if err == nil {
			return route, nil
		}
		e.logger.Warn("route estimate failed, using straight-line distance", "error", err)
	}
	return e.fallback.Estimate(ctx, from, to)
}
