// Package weather reports current conditions for a coordinate from
// Open-Meteo, falling back to a fixed offline reading.
package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/i474232898/agri-scout/internal/advisory"
	"github.com/i474232898/agri-scout/internal/transport"
)

const defaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"

// fieldWorkThreshold is the first WMO code that discourages spraying.
const fieldWorkThreshold = 50

const (
	adviceGood    = "Good conditions for field work."
	adviceAvoid   = "Avoid spraying due to weather."
	adviceOffline = "Data unavailable."
)

var errMissingCurrent = errors.New("response has no current block")

// Offline returns the static reading used whenever the live path fails.
func Offline() advisory.WeatherReading {
	return advisory.WeatherReading{
		TemperatureC: 28.5,
		HumidityPct:  65,
		WindSpeed:    12.0,
		Condition:    advisory.ConditionOffline,
		Advisory:     adviceOffline,
		IsLive:       false,
	}
}

// OpenMeteo implements advisory.WeatherProvider.
type OpenMeteo struct {
	baseURL string
	timeout time.Duration
	client  *transport.Client
}

func NewOpenMeteo(client *transport.Client, baseURL string, timeout time.Duration) *OpenMeteo {
	if baseURL == "" {
		baseURL = defaultOpenMeteoURL
	}
	return &OpenMeteo{
		baseURL: baseURL,
		timeout: timeout,
		client:  client,
	}
}

func (p *OpenMeteo) Name() string {
	return "openmeteo"
}

// Fetch never fails: any error, including the deadline, yields Offline().
func (p *OpenMeteo) Fetch(ctx context.Context, coord advisory.Coordinate) advisory.WeatherReading {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	reading, err := p.fetchLive(ctx, coord)
	if err != nil {
		slog.Warn("weather unavailable, using offline reading", "provider", p.Name(), "coord", coord.String(), "error", err)
		return Offline()
	}
	return reading
}

func (p *OpenMeteo) fetchLive(ctx context.Context, coord advisory.Coordinate) (advisory.WeatherReading, error) {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", coord.Latitude))
	values.Set("longitude", fmt.Sprintf("%f", coord.Longitude))
	values.Set("current", "temperature_2m,relative_humidity_2m,wind_speed_10m,weather_code")

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()), nil)
	if err != nil {
		return advisory.WeatherReading{}, err
	}

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return advisory.WeatherReading{}, err
	}

	var payload struct {
		Current *struct {
			Temperature float64 `json:"temperature_2m"`
			Humidity    float64 `json:"relative_humidity_2m"`
			WindSpeed   float64 `json:"wind_speed_10m"`
			WeatherCode int     `json:"weather_code"`
		} `json:"current"`
	}
	if err := transport.DecodeJSON(resp, &payload); err != nil {
		return advisory.WeatherReading{}, fmt.Errorf("decode open-meteo response: %w", err)
	}
	if payload.Current == nil {
		return advisory.WeatherReading{}, errMissingCurrent
	}

	cur := payload.Current
	return advisory.WeatherReading{
		TemperatureC: cur.Temperature,
		HumidityPct:  cur.Humidity,
		WindSpeed:    cur.WindSpeed,
		Condition:    MapCondition(cur.WeatherCode),
		Advisory:     fieldAdvisory(cur.WeatherCode),
		IsLive:       true,
	}, nil
}

// MapCondition maps a WMO weather code to a Condition.
func MapCondition(code int) advisory.Condition {
	switch {
	case code == 0:
		return advisory.ConditionClear
	case code >= 1 && code <= 3:
		return advisory.ConditionPartlyCloudy
	case code == 45 || code == 48:
		return advisory.ConditionFoggy
	case code == 51 || code == 53 || code == 55:
		return advisory.ConditionDrizzle
	case code == 61 || code == 63 || code == 65:
		return advisory.ConditionRain
	case code >= 80:
		return advisory.ConditionStormy
	default:
		return advisory.ConditionUnknown
	}
}

func fieldAdvisory(code int) string {
	if code < fieldWorkThreshold {
		return adviceGood
	}
	return adviceAvoid
}
