package advisory

import "fmt"

// Coordinate is a WGS84 point. Once resolved it is never modified.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether both components are inside their geographic ranges.
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.4f,%.4f", c.Latitude, c.Longitude)
}

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionClear        Condition = "Clear"
	ConditionPartlyCloudy Condition = "Partly Cloudy"
	ConditionFoggy        Condition = "Foggy"
	ConditionDrizzle      Condition = "Drizzle"
	ConditionRain         Condition = "Rain"
	ConditionStormy       Condition = "Stormy"
	ConditionUnknown      Condition = "Unknown"

	// ConditionOffline is only ever reported by the static offline reading.
	ConditionOffline Condition = "Sunny (Offline)"
)

// WeatherReading is the current weather at a coordinate. IsLive is false
// when the reading is the static offline fallback.
type WeatherReading struct {
	TemperatureC float64   `json:"temperatureC"`
	HumidityPct  float64   `json:"humidityPct"`
	WindSpeed    float64   `json:"windSpeed"`
	Condition    Condition `json:"condition"`
	Advisory     string    `json:"advisory"`
	IsLive       bool      `json:"isLive"`
}

// AgroZone is one of a fixed set of agro-climatic buckets.
type AgroZone string

const (
	ZoneHimalayan      AgroZone = "Himalayan"
	ZoneNorthernPlains AgroZone = "NorthernPlains"
	ZoneArid           AgroZone = "Arid"
	ZoneDeccanPlateau  AgroZone = "DeccanPlateau"
	ZoneCoastal        AgroZone = "Coastal"
	ZoneEasternDelta   AgroZone = "EasternDelta"
)

// ZoneFactors explains which inputs drove a recommendation.
type ZoneFactors struct {
	Geography string `json:"geography"`
	Soil      string `json:"soil"`
	Water     string `json:"water"`
	Climate   string `json:"climate"`
}

// CropRecommendation is the zone-based crop advice. Refined is true only
// when the generative refinement succeeded; otherwise every field comes
// from the static zone table.
type CropRecommendation struct {
	Zone        AgroZone    `json:"zone"`
	Description string      `json:"description"`
	Crops       []string    `json:"crops"`
	Crop        string      `json:"crop"`
	Season      string      `json:"season"`
	Soil        string      `json:"soil"`
	Water       string      `json:"water"`
	Reason      string      `json:"reason"`
	Factors     ZoneFactors `json:"factors"`
	Refined     bool        `json:"refined"`
}

// BoundingBox is [[latMin, lonMin], [latMax, lonMax]].
type BoundingBox [2][2]float64

// SatelliteImage references a rendered vegetation-index raster.
type SatelliteImage struct {
	ImagePath   string      `json:"imagePath"`
	ImageURL    string      `json:"imageUrl"`
	BoundingBox BoundingBox `json:"bbox"`
	MeanIndex   float64     `json:"ndviMean"`
	IsLive      bool        `json:"isLive"`
	Message     string      `json:"message"`
}

// FallbackReason explains why a diagnosis did not come straight from the model.
type FallbackReason string

const (
	FallbackNone           FallbackReason = "None"
	FallbackModelMissing   FallbackReason = "ModelMissing"
	FallbackLowConfidence  FallbackReason = "LowConfidence"
	FallbackInferenceError FallbackReason = "InferenceError"
)

// DiagnosisResult is the outcome of classifying a crop image.
type DiagnosisResult struct {
	Label          string         `json:"label"`
	Confidence     float64        `json:"confidence"`
	Recommendation string         `json:"recommendation"`
	IsFallback     bool           `json:"isFallback"`
	FallbackReason FallbackReason `json:"fallbackReason"`
}

// PlanSource records where a treatment plan came from.
type PlanSource string

const (
	SourceGenerativeModel PlanSource = "GenerativeModel"
	SourceOfflineTemplate PlanSource = "OfflineTemplate"
)

// TreatmentPlan is a Markdown treatment plan.
type TreatmentPlan struct {
	BodyMarkdown string     `json:"bodyMarkdown"`
	Source       PlanSource `json:"source"`
}

// ScoutRequest asks for a location advisory. Either PlaceName or both Lat
// and Lon must be supplied.
type ScoutRequest struct {
	PlaceName string   `json:"place_name" validate:"max=200"`
	Lat       *float64 `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lon       *float64 `json:"lon" validate:"omitempty,gte=-180,lte=180"`
	Language  string   `json:"language" validate:"max=32"`
}

// MaxImagePixels bounds the declared width x height of an uploaded image.
// Decoders allocate the whole canvas up front, so larger headers are
// rejected before any pixel is read.
const MaxImagePixels = 40_000_000

// DiagnoseRequest carries an uploaded crop image.
type DiagnoseRequest struct {
	ImageBytes  []byte
	FieldHealth string
}

// AdviceRequest asks for a treatment plan for an already known condition.
type AdviceRequest struct {
	Disease     string `json:"disease" validate:"required,max=200"`
	FieldHealth string `json:"ndvi" validate:"max=200"`
}

// Stage names reported in the degraded list of a response.
const (
	StageWeather        = "weather"
	StageRecommendation = "recommendation"
	StageImagery        = "imagery"
	StageDiagnosis      = "diagnosis"
	StageTreatment      = "treatment"
)

// AdvisoryResponse is the scout flow result. Every field is always populated;
// Degraded lists the stages that fell back.
type AdvisoryResponse struct {
	RequestID      string             `json:"requestId"`
	PlaceName      string             `json:"placeName"`
	Coordinate     Coordinate         `json:"coords"`
	Weather        WeatherReading     `json:"weather"`
	Recommendation CropRecommendation `json:"recommendation"`
	Satellite      SatelliteImage     `json:"ndvi"`
	Degraded       []string           `json:"degraded"`
}

// DiagnoseResponse is the vision flow result.
type DiagnoseResponse struct {
	RequestID string          `json:"requestId"`
	Diagnosis DiagnosisResult `json:"diagnosis"`
	Treatment TreatmentPlan   `json:"treatment"`
	Degraded  []string        `json:"degraded"`
}
