package advisory

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

const unknownFieldHealth = "Unknown"

// Stages bundles the collaborators of a Service.
type Stages struct {
	Resolver    LocationResolver
	Weather     WeatherProvider
	Recommender CropRecommender
	Imagery     ImageryFetcher
	Classifier  DiseaseClassifier
	Advisor     TreatmentAdvisor
}

// Service composes the stages into the scout and vision flows. It holds no
// per-request state and is safe for concurrent use.
type Service struct {
	stages Stages
	newID  func() string
	// chainBudget bounds weather plus recommendation together.
	chainBudget time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithChainBudget caps the weather -> recommendation chain at d, so a scout
// takes no longer than its slowest stage. A recommendation cut short keeps
// the zone-table default.
func WithChainBudget(d time.Duration) Option {
	return func(s *Service) { s.chainBudget = d }
}

// NewService creates a new Service.
func NewService(stages Stages, opts ...Option) *Service {
	s := &Service{
		stages: stages,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scout resolves the requested location and assembles a complete advisory.
// Imagery runs concurrently with the weather -> recommendation chain. The
// only errors are ErrInvalidRequest, ErrInvalidCoordinate and ErrNotFound.
func (s *Service) Scout(ctx context.Context, req ScoutRequest) (AdvisoryResponse, error) {
	q, err := queryFor(req)
	if err != nil {
		return AdvisoryResponse{}, err
	}

	coord, err := s.stages.Resolver.Resolve(ctx, q)
	if err != nil {
		return AdvisoryResponse{}, err
	}

	id := s.newID()
	log := slog.With("request_id", id, "coord", coord.String())

	var (
		wg  sync.WaitGroup
		sat SatelliteImage
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sat = s.stages.Imagery.Fetch(ctx, coord)
	}()

	w, rec := s.weatherAndRecommendation(ctx, coord, req.Language)
	wg.Wait()

	degraded := []string{}
	if !w.IsLive {
		degraded = append(degraded, StageWeather)
	}
	if !rec.Refined {
		degraded = append(degraded, StageRecommendation)
	}
	if !sat.IsLive {
		degraded = append(degraded, StageImagery)
	}
	for _, stage := range degraded {
		log.Warn("stage degraded", "stage", stage)
	}

	place := strings.TrimSpace(req.PlaceName)
	if place == "" {
		place = coord.String()
	}

	return AdvisoryResponse{
		RequestID:      id,
		PlaceName:      place,
		Coordinate:     coord,
		Weather:        w,
		Recommendation: rec,
		Satellite:      sat,
		Degraded:       degraded,
	}, nil
}

func (s *Service) weatherAndRecommendation(ctx context.Context, coord Coordinate, language string) (WeatherReading, CropRecommendation) {
	if s.chainBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.chainBudget)
		defer cancel()
	}
	w := s.stages.Weather.Fetch(ctx, coord)
	return w, s.stages.Recommender.Recommend(ctx, coord, w, language)
}

// Diagnose classifies an uploaded image and attaches a treatment plan. An
// undecodable upload is the only error.
func (s *Service) Diagnose(ctx context.Context, req DiagnoseRequest) (DiagnoseResponse, error) {
	if err := checkReadable(req.ImageBytes); err != nil {
		return DiagnoseResponse{}, err
	}

	id := s.newID()
	log := slog.With("request_id", id)

	diag := s.stages.Classifier.Classify(ctx, req.ImageBytes)

	health := strings.TrimSpace(req.FieldHealth)
	if health == "" {
		health = unknownFieldHealth
	}
	plan := s.stages.Advisor.Advise(ctx, diag.Label, health)

	degraded := []string{}
	if diag.IsFallback || diag.FallbackReason != FallbackNone {
		degraded = append(degraded, StageDiagnosis)
		log.Warn("stage degraded", "stage", StageDiagnosis, "reason", diag.FallbackReason)
	}
	if plan.Source != SourceGenerativeModel {
		degraded = append(degraded, StageTreatment)
		log.Warn("stage degraded", "stage", StageTreatment)
	}

	return DiagnoseResponse{
		RequestID: id,
		Diagnosis: diag,
		Treatment: plan,
		Degraded:  degraded,
	}, nil
}

// Advise returns a treatment plan for an already known condition.
func (s *Service) Advise(ctx context.Context, req AdviceRequest) TreatmentPlan {
	health := strings.TrimSpace(req.FieldHealth)
	if health == "" {
		health = unknownFieldHealth
	}
	return s.stages.Advisor.Advise(ctx, req.Disease, health)
}

func queryFor(req ScoutRequest) (LocationQuery, error) {
	switch {
	case req.Lat != nil && req.Lon != nil:
		return LocationQuery{
			PlaceName:  req.PlaceName,
			Coordinate: &Coordinate{Latitude: *req.Lat, Longitude: *req.Lon},
		}, nil
	case req.Lat != nil || req.Lon != nil:
		return LocationQuery{}, fmt.Errorf("%w: lat and lon must be given together", ErrInvalidRequest)
	case strings.TrimSpace(req.PlaceName) == "":
		return LocationQuery{}, fmt.Errorf("%w: place_name or lat/lon is required", ErrInvalidRequest)
	default:
		return LocationQuery{PlaceName: req.PlaceName}, nil
	}
}

func checkReadable(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty upload", ErrUnreadableImage)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return fmt.Errorf("%w: %dx%d is outside the pixel budget", ErrUnreadableImage, cfg.Width, cfg.Height)
	}
	// A valid header can front a truncated or corrupt body.
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	return nil
}
