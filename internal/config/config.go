package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	Port     string
	LogLevel slog.Level
	// BodyLimitMB caps inbound request bodies, uploads included.
	BodyLimitMB int

	// HTTPTimeout bounds any single outbound call; the stage timeouts below
	// are usually tighter.
	HTTPTimeout    time.Duration
	RequestTimeout time.Duration

	GeocoderTimeout  time.Duration
	WeatherTimeout   time.Duration
	GenAITimeout     time.Duration
	ImageryTimeout   time.Duration
	InferenceTimeout time.Duration

	// Geocoding. Google Maps is used when MapsAPIKey is set, Nominatim otherwise.
	MapsAPIKey        string
	NominatimURL      string
	GeocoderUserAgent string

	OpenMeteoURL string

	GenAIProvider string // "gemini" or "openai"
	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIModel   string

	SentinelClientID     string
	SentinelClientSecret string
	SentinelTokenURL     string
	SentinelProcessURL   string
	StaticDir            string
	DemoImagePath        string

	// Optional raster mirror; disabled when MinioEndpoint is empty.
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioSecure    bool

	ModelManifest string
	// LowConfidenceSubstitution replaces uncertain diagnoses with a random
	// different label. Demo behaviour.
	LowConfidenceSubstitution bool

	BreakerEnabled bool
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.BodyLimitMB = getenvInt("BODY_LIMIT_MB", 10)

	if err := cfg.LogLevel.UnmarshalText([]byte(getenvDefault("LOG_LEVEL", "INFO"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"HTTP_TIMEOUT", 15 * time.Second, &cfg.HTTPTimeout},
		{"REQUEST_TIMEOUT", 30 * time.Second, &cfg.RequestTimeout},
		{"GEOCODER_TIMEOUT", 5 * time.Second, &cfg.GeocoderTimeout},
		{"WEATHER_TIMEOUT", 5 * time.Second, &cfg.WeatherTimeout},
		{"GENAI_TIMEOUT", 15 * time.Second, &cfg.GenAITimeout},
		{"IMAGERY_TIMEOUT", 15 * time.Second, &cfg.ImageryTimeout},
		{"INFERENCE_TIMEOUT", 10 * time.Second, &cfg.InferenceTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = getenvDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	cfg.MapsAPIKey = os.Getenv("MAPS_API_KEY")
	cfg.NominatimURL = os.Getenv("NOMINATIM_URL")
	cfg.GeocoderUserAgent = getenvDefault("GEOCODER_USER_AGENT", "agri-scout/1.0")

	cfg.OpenMeteoURL = os.Getenv("OPEN_METEO_URL")

	cfg.GenAIProvider = strings.ToLower(getenvDefault("GENAI_PROVIDER", "gemini"))
	if cfg.GenAIProvider != "gemini" && cfg.GenAIProvider != "openai" {
		return nil, fmt.Errorf("invalid GENAI_PROVIDER %q: want gemini or openai", cfg.GenAIProvider)
	}
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModel = getenvDefault("GEMINI_MODEL", "gemini-1.5-flash")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIModel = os.Getenv("OPENAI_MODEL")

	cfg.SentinelClientID = os.Getenv("SENTINEL_CLIENT_ID")
	cfg.SentinelClientSecret = os.Getenv("SENTINEL_CLIENT_SECRET")
	cfg.SentinelTokenURL = os.Getenv("SENTINEL_TOKEN_URL")
	cfg.SentinelProcessURL = os.Getenv("SENTINEL_PROCESS_URL")
	cfg.StaticDir = getenvDefault("STATIC_DIR", "static")
	cfg.DemoImagePath = getenvDefault("DEMO_IMAGE_PATH", "static/scout_demo_map.png")

	cfg.MinioEndpoint = os.Getenv("MINIO_ENDPOINT")
	cfg.MinioAccessKey = os.Getenv("MINIO_ACCESS_KEY")
	cfg.MinioSecretKey = os.Getenv("MINIO_SECRET_KEY")
	cfg.MinioBucket = getenvDefault("MINIO_BUCKET", "ndvi-rasters")
	if cfg.MinioSecure, err = getenvBool("MINIO_SECURE", false); err != nil {
		return nil, err
	}

	cfg.ModelManifest = getenvDefault("MODEL_MANIFEST", "models/tomato-disease.yaml")
	if cfg.LowConfidenceSubstitution, err = getenvBool("LOW_CONFIDENCE_SUBSTITUTION", true); err != nil {
		return nil, err
	}
	if cfg.BreakerEnabled, err = getenvBool("BREAKER_ENABLED", true); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
