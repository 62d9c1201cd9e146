package advisory

import (
	"context"
)

// LocationQuery is either a free-text place name or an explicit coordinate.
// When Coordinate is set the place name is informational only.
type LocationQuery struct {
	PlaceName  string
	Coordinate *Coordinate
}

// LocationResolver turns a query into a canonical coordinate. It is the only
// stage allowed to fail: it returns ErrNotFound or ErrInvalidCoordinate.
type LocationResolver interface {
	Resolve(ctx context.Context, q LocationQuery) (Coordinate, error)
}

// WeatherProvider never fails; a degraded reading has IsLive == false.
type WeatherProvider interface {
	Fetch(ctx context.Context, coord Coordinate) WeatherReading
}

// CropRecommender never fails; a degraded recommendation has Refined == false.
type CropRecommender interface {
	Recommend(ctx context.Context, coord Coordinate, weather WeatherReading, language string) CropRecommendation
}

// ImageryFetcher never fails; a degraded image has IsLive == false.
type ImageryFetcher interface {
	Fetch(ctx context.Context, coord Coordinate) SatelliteImage
}

// DiseaseClassifier never fails; a degraded diagnosis has IsFallback == true
// or a FallbackReason other than FallbackNone.
type DiseaseClassifier interface {
	Classify(ctx context.Context, image []byte) DiagnosisResult
}

// TreatmentAdvisor never fails; a degraded plan has Source == SourceOfflineTemplate.
type TreatmentAdvisor interface {
	Advise(ctx context.Context, condition, fieldHealth string) TreatmentPlan
}
