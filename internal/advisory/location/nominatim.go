package location

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/i474232898/agri-scout/internal/advisory"
	"github.com/i474232898/agri-scout/internal/transport"
)

const defaultNominatimURL = "https://nominatim.openstreetmap.org/search"

// Nominatim geocodes with the OpenStreetMap Nominatim search API.
type Nominatim struct {
	baseURL   string
	userAgent string
	client    *transport.Client
}

func NewNominatim(client *transport.Client, baseURL, userAgent string) *Nominatim {
	if baseURL == "" {
		baseURL = defaultNominatimURL
	}
	return &Nominatim{
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    client,
	}
}

func (n *Nominatim) Name() string {
	return "nominatim"
}

func (n *Nominatim) Geocode(ctx context.Context, place string) ([]advisory.Coordinate, error) {
	values := url.Values{}
	values.Set("q", place)
	values.Set("format", "json")
	values.Set("limit", "1")

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", n.baseURL, values.Encode()), nil)
	if err != nil {
		return nil, err
	}
	// Nominatim's usage policy requires an identifying agent.
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	// Nominatim returns coordinates as strings.
	var payload []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := transport.DecodeJSON(resp, &payload); err != nil {
		return nil, fmt.Errorf("decode nominatim response: %w", err)
	}
	if len(payload) == 0 {
		return nil, ErrNoMatch
	}

	out := make([]advisory.Coordinate, 0, len(payload))
	for _, p := range payload {
		lat, err := strconv.ParseFloat(p.Lat, 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(p.Lon, 64)
		if err != nil {
			continue
		}
		out = append(out, advisory.Coordinate{Latitude: lat, Longitude: lon})
	}
	if len(out) == 0 {
		return nil, ErrNoMatch
	}
	return out, nil
}
