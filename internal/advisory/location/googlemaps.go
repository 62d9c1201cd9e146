package location

import (
	"context"
	"fmt"
	"net/http"

	"googlemaps.github.io/maps"

	"github.com/i474232898/agri-scout/internal/advisory"
)

// GoogleMaps geocodes with the Google Maps Geocoding API.
type GoogleMaps struct {
	client *maps.Client
}

// NewGoogleMaps creates a geocoder for apiKey. baseURL is optional and only
// used to point the client at a test server.
func NewGoogleMaps(apiKey string, hc *http.Client, baseURL string) (*GoogleMaps, error) {
	opts := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if hc != nil {
		opts = append(opts, maps.WithHTTPClient(hc))
	}
	if baseURL != "" {
		opts = append(opts, maps.WithBaseURL(baseURL))
	}

	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleMaps{client: client}, nil
}

func (g *GoogleMaps) Name() string {
	return "googlemaps"
}

func (g *GoogleMaps) Geocode(ctx context.Context, place string) ([]advisory.Coordinate, error) {
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: place})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoMatch
	}

	out := make([]advisory.Coordinate, 0, len(results))
	for _, r := range results {
		out = append(out, advisory.Coordinate{
			Latitude:  r.Geometry.Location.Lat,
			Longitude: r.Geometry.Location.Lng,
		})
	}
	return out, nil
}
