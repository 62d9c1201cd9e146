// Package location resolves place names and raw coordinates to a canonical
// coordinate. It is the one stage without a silent fallback: a location
// that cannot be resolved is reported as advisory.ErrNotFound.
package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/i474232898/agri-scout/internal/advisory"
)

// ErrNoMatch is returned by a Geocoder when the service has no candidate.
var ErrNoMatch = errors.New("no geocoding match")

// Geocoder looks up candidates for a free-text place name, best first.
type Geocoder interface {
	Name() string
	Geocode(ctx context.Context, place string) ([]advisory.Coordinate, error)
}

// Resolver implements advisory.LocationResolver.
type Resolver struct {
	geocoder Geocoder
	timeout  time.Duration
}

// NewResolver creates a Resolver. A nil geocoder means every place-name
// lookup reports ErrNotFound; explicit coordinates still resolve.
func NewResolver(geocoder Geocoder, timeout time.Duration) *Resolver {
	return &Resolver{geocoder: geocoder, timeout: timeout}
}

// Resolve returns q.Coordinate unchanged when present, otherwise geocodes
// q.PlaceName once and returns the first candidate.
func (r *Resolver) Resolve(ctx context.Context, q advisory.LocationQuery) (advisory.Coordinate, error) {
	if q.Coordinate != nil {
		if !q.Coordinate.Valid() {
			return advisory.Coordinate{}, fmt.Errorf("%w: %s", advisory.ErrInvalidCoordinate, q.Coordinate)
		}
		return *q.Coordinate, nil
	}

	place := strings.TrimSpace(q.PlaceName)
	if place == "" {
		return advisory.Coordinate{}, fmt.Errorf("%w: empty place name", advisory.ErrNotFound)
	}
	if r.geocoder == nil {
		return advisory.Coordinate{}, fmt.Errorf("%w: no geocoder configured", advisory.ErrNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	candidates, err := r.geocoder.Geocode(ctx, place)
	if err != nil {
		if !errors.Is(err, ErrNoMatch) {
			slog.Warn("geocoding failed", "geocoder", r.geocoder.Name(), "place", place, "error", err)
		}
		return advisory.Coordinate{}, fmt.Errorf("%w: %q: %v", advisory.ErrNotFound, place, err)
	}

	for _, c := range candidates {
		if c.Valid() {
			return c, nil
		}
	}
	return advisory.Coordinate{}, fmt.Errorf("%w: %q", advisory.ErrNotFound, place)
}
