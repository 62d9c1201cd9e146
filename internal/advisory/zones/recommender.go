package zones

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/i474232898/agri-scout/internal/advisory"
	"github.com/i474232898/agri-scout/internal/genai"
)

const defaultLanguage = "English"

// Recommender implements advisory.CropRecommender.
type Recommender struct {
	gen     genai.Generator
	timeout time.Duration
	now     func() time.Time
}

// Option customizes a Recommender.
type Option func(*Recommender)

// WithClock overrides the clock used to derive the season.
func WithClock(now func() time.Time) Option {
	return func(r *Recommender) { r.now = now }
}

// NewRecommender creates a Recommender. gen may be nil, in which case every
// recommendation is the zone-table default.
func NewRecommender(gen genai.Generator, timeout time.Duration, opts ...Option) *Recommender {
	r := &Recommender{gen: gen, timeout: timeout, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// refinement is the JSON object the model is asked to return.
type refinement struct {
	Crop   string `json:"crop"`
	Season string `json:"season"`
	Soil   string `json:"soil"`
	Water  string `json:"water"`
	Reason string `json:"reason"`
}

func (f refinement) complete() bool {
	for _, s := range []string{f.Crop, f.Season, f.Soil, f.Water, f.Reason} {
		if strings.TrimSpace(s) == "" {
			return false
		}
	}
	return true
}

// Recommend starts from the zone table and applies at most one generative
// refinement. Zone, description and crop list always come from the table.
func (r *Recommender) Recommend(ctx context.Context, coord advisory.Coordinate, w advisory.WeatherReading, language string) advisory.CropRecommendation {
	rec := r.Default(coord, w)
	if r.gen == nil {
		return rec
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	text, err := r.gen.Generate(ctx, buildPrompt(coord, rec, w, language))
	if err != nil {
		slog.Warn("crop refinement failed", "generator", r.gen.Name(), "zone", rec.Zone, "error", err)
		return rec
	}

	var ref refinement
	if !genai.DecodeJSON(text, &ref) || !ref.complete() {
		slog.Warn("crop refinement unparsable", "generator", r.gen.Name(), "zone", rec.Zone)
		return rec
	}

	rec.Crop = strings.TrimSpace(ref.Crop)
	rec.Season = strings.TrimSpace(ref.Season)
	rec.Soil = strings.TrimSpace(ref.Soil)
	rec.Water = strings.TrimSpace(ref.Water)
	rec.Reason = strings.TrimSpace(ref.Reason)
	rec.Refined = true
	return rec
}

// Default is the deterministic zone-table recommendation for coord.
func (r *Recommender) Default(coord advisory.Coordinate, w advisory.WeatherReading) advisory.CropRecommendation {
	zone := Classify(coord)
	p := Lookup(zone)

	crop := ""
	if len(p.Crops) > 0 {
		crop = p.Crops[0]
	}

	return advisory.CropRecommendation{
		Zone:        zone,
		Description: p.Description,
		Crops:       p.Crops,
		Crop:        crop,
		Season:      SeasonFor(r.now()),
		Soil:        p.Soil,
		Water:       p.Water,
		Reason:      fmt.Sprintf("%s is the leading crop of the %s zone (%s).", crop, zone, p.Description),
		Factors: advisory.ZoneFactors{
			Geography: fmt.Sprintf("Latitude %.2f indicates %s region.", coord.Latitude, zone),
			Soil:      p.Soil,
			Water:     p.Water,
			Climate:   climate(p.Description, w),
		},
	}
}

func climate(description string, w advisory.WeatherReading) string {
	if !w.IsLive {
		return description
	}
	return fmt.Sprintf("%s; currently %s, %.1f°C", description, w.Condition, w.TemperatureC)
}

func buildPrompt(coord advisory.Coordinate, rec advisory.CropRecommendation, w advisory.WeatherReading, language string) string {
	if strings.TrimSpace(language) == "" {
		language = defaultLanguage
	}

	var b strings.Builder
	b.WriteString("You are an expert agronomist advising a farmer.\n")
	fmt.Fprintf(&b, "Location: %.4f, %.4f (agro-climatic zone: %s, %s).\n", coord.Latitude, coord.Longitude, rec.Zone, rec.Description)
	fmt.Fprintf(&b, "Typical soil: %s. Water source: %s.\n", rec.Soil, rec.Water)
	fmt.Fprintf(&b, "Representative crops: %s.\n", strings.Join(rec.Crops, ", "))
	fmt.Fprintf(&b, "Current weather: %s, %.1f°C, humidity %.0f%%, wind %.1f km/h.\n", w.Condition, w.TemperatureC, w.HumidityPct, w.WindSpeed)
	fmt.Fprintf(&b, "Current season: %s.\n\n", rec.Season)
	b.WriteString("Recommend the SINGLE best crop to grow now.\n")
	b.WriteString("Return ONLY a JSON object with exactly these keys:\n")
	b.WriteString(`- "crop": name of the crop, with a specific variety if possible` + "\n")
	b.WriteString(`- "season": current agricultural season` + "\n")
	b.WriteString(`- "soil": likely soil type at this location` + "\n")
	b.WriteString(`- "water": water requirement, e.g. "Moderate, 500mm"` + "\n")
	b.WriteString(`- "reason": one sentence explaining the choice` + "\n\n")
	fmt.Fprintf(&b, "Write the values in %s. Keep technical terms untranslated: chemical names, quantities and variety names stay as written in English.\n", language)
	b.WriteString("Do not use Markdown formatting.")
	return b.String()
}
