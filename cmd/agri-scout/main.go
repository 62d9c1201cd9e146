package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/i474232898/agri-scout/internal/advisory"
	"github.com/i474232898/agri-scout/internal/advisory/imagery"
	"github.com/i474232898/agri-scout/internal/advisory/location"
	"github.com/i474232898/agri-scout/internal/advisory/treatment"
	"github.com/i474232898/agri-scout/internal/advisory/vision"
	"github.com/i474232898/agri-scout/internal/advisory/weather"
	"github.com/i474232898/agri-scout/internal/advisory/zones"
	httpapi "github.com/i474232898/agri-scout/internal/api/http"
	"github.com/i474232898/agri-scout/internal/config"
	"github.com/i474232898/agri-scout/internal/genai"
	"github.com/i474232898/agri-scout/internal/transport"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	// Shared HTTP client for outbound calls; stages apply tighter deadlines.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gen, err := genai.New(ctx, genai.Config{
		Provider:     cfg.GenAIProvider,
		GeminiAPIKey: cfg.GeminiAPIKey,
		GeminiModel:  cfg.GeminiModel,
		OpenAIAPIKey: cfg.OpenAIAPIKey,
		OpenAIModel:  cfg.OpenAIModel,
		HTTPClient:   httpClient,
	})
	if err != nil {
		slog.Warn("generative model unavailable, using offline templates", "provider", cfg.GenAIProvider, "error", err)
	}
	if gen == nil {
		slog.Info("generative refinement disabled", "provider", cfg.GenAIProvider)
	} else {
		slog.Info("generative refinement enabled", "generator", gen.Name())
		if c, ok := gen.(io.Closer); ok {
			defer c.Close()
		}
	}

	service := advisory.NewService(advisory.Stages{
		Resolver: location.NewResolver(newGeocoder(cfg, httpClient), cfg.GeocoderTimeout),
		Weather: weather.NewOpenMeteo(
			transport.New("openmeteo", httpClient, cfg.BreakerEnabled),
			cfg.OpenMeteoURL,
			cfg.WeatherTimeout,
		),
		Recommender: zones.NewRecommender(gen, cfg.GenAITimeout),
		Imagery: imagery.NewSentinel(imagery.Config{
			ClientID:     cfg.SentinelClientID,
			ClientSecret: cfg.SentinelClientSecret,
			TokenURL:     cfg.SentinelTokenURL,
			ProcessURL:   cfg.SentinelProcessURL,
			StaticDir:    cfg.StaticDir,
			DemoImage:    cfg.DemoImagePath,
			Timeout:      cfg.ImageryTimeout,
		}, transport.New("sentinel", httpClient, cfg.BreakerEnabled), newRasterSink(ctx, cfg)),
		Classifier: vision.NewClassifier(
			loadModel(cfg.ModelManifest),
			transport.New("inference", httpClient, cfg.BreakerEnabled),
			cfg.InferenceTimeout,
			vision.WithLowConfidenceSubstitution(cfg.LowConfidenceSubstitution),
		),
		Advisor: treatment.NewAdvisor(gen, cfg.GenAITimeout),
	}, advisory.WithChainBudget(max(cfg.WeatherTimeout, cfg.GenAITimeout, cfg.ImageryTimeout)))

	app := fiber.New(fiber.Config{
		AppName:               "agri-scout",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.RequestTimeout + 5*time.Second,
		BodyLimit:             cfg.BodyLimitMB << 20,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "agri-scout",
		})
	})

	httpapi.RegisterRoutes(app, service, cfg.RequestTimeout)

	go func() {
		slog.Info("listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("fiber server stopped", "error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("error during shutdown", "error", err)
	}
}

func newGeocoder(cfg *config.AppConfig, hc *http.Client) location.Geocoder {
	if cfg.MapsAPIKey != "" {
		g, err := location.NewGoogleMaps(cfg.MapsAPIKey, hc, "")
		if err == nil {
			return g
		}
		slog.Warn("google maps geocoder unavailable, falling back to nominatim", "error", err)
	}
	return location.NewNominatim(
		transport.New("nominatim", hc, cfg.BreakerEnabled),
		cfg.NominatimURL,
		cfg.GeocoderUserAgent,
	)
}

// newRasterSink returns nil unless object storage is configured and reachable.
func newRasterSink(ctx context.Context, cfg *config.AppConfig) imagery.Sink {
	if cfg.MinioEndpoint == "" {
		return nil
	}
	sink, err := imagery.NewMinioSink(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioSecure)
	if err != nil {
		slog.Warn("raster mirror disabled", "error", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sink.EnsureBucket(ctx); err != nil {
		slog.Warn("raster mirror disabled", "bucket", cfg.MinioBucket, "error", err)
		return nil
	}
	slog.Info("raster mirror enabled", "endpoint", cfg.MinioEndpoint, "bucket", cfg.MinioBucket)
	return sink
}

// loadModel returns nil when the manifest is missing or invalid; the
// classifier then serves simulated diagnoses.
func loadModel(path string) *vision.Model {
	m, err := vision.LoadManifest(path)
	if err != nil {
		slog.Warn("vision model unavailable, using simulated diagnoses", "manifest", path, "error", err)
		return nil
	}
	slog.Info("vision model loaded", "name", m.Name, "version", m.Version, "labels", len(m.Labels))
	return m
}
