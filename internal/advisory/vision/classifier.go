package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/i474232898/agri-scout/internal/advisory"
	"github.com/i474232898/agri-scout/internal/transport"
)

// ConfidenceThreshold is the lowest arg-max probability reported as is.
const ConfidenceThreshold = 0.50

const (
	simulatedLabel      = "Wheat Rust (Simulated)"
	simulatedConfidence = 0.85
	simulatedAdvice     = "Model file not found. Using simulated result. Apply fungicide."

	unknownLabel  = "Unknown"
	unknownAdvice = "Unable to analyze. Please check model or image."

	syntheticMin = 0.70
	syntheticMax = 0.95
)

var (
	ErrPredictionShape = errors.New("prediction does not match label set")
	ErrBadProbability  = errors.New("prediction contains a non-finite probability")
)

// Classifier implements advisory.DiseaseClassifier.
type Classifier struct {
	model      *Model
	client     *transport.Client
	timeout    time.Duration
	substitute bool

	randIntN  func(n int) int
	randFloat func() float64
}

// Option customizes a Classifier.
type Option func(*Classifier)

// WithLowConfidenceSubstitution controls the demo behaviour of replacing an
// uncertain prediction with a different random label.
func WithLowConfidenceSubstitution(enabled bool) Option {
	return func(c *Classifier) { c.substitute = enabled }
}

// WithRand replaces the random sources used for substitution.
func WithRand(intN func(int) int, float func() float64) Option {
	return func(c *Classifier) {
		c.randIntN = intN
		c.randFloat = float
	}
}

// NewClassifier creates a Classifier. A nil model makes every call return
// the simulated diagnosis.
func NewClassifier(model *Model, client *transport.Client, timeout time.Duration, opts ...Option) *Classifier {
	c := &Classifier{
		model:      model,
		client:     client,
		timeout:    timeout,
		substitute: true,
		randIntN:   rand.IntN,
		randFloat:  rand.Float64,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify never fails; problems are reported through FallbackReason.
func (c *Classifier) Classify(ctx context.Context, img []byte) advisory.DiagnosisResult {
	if c.model == nil {
		return advisory.DiagnosisResult{
			Label:          simulatedLabel,
			Confidence:     simulatedConfidence,
			Recommendation: simulatedAdvice,
			IsFallback:     true,
			FallbackReason: advisory.FallbackModelMissing,
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	probs, err := c.infer(ctx, img)
	if err != nil {
		slog.Warn("image classification failed", "model", c.model.Name, "version", c.model.Version, "error", err)
		return advisory.DiagnosisResult{
			Label:          unknownLabel,
			Confidence:     0,
			Recommendation: unknownAdvice,
			IsFallback:     true,
			FallbackReason: advisory.FallbackInferenceError,
		}
	}

	best := argMax(probs)
	return c.gate(best, probs[best])
}

func (c *Classifier) infer(ctx context.Context, img []byte) ([]float64, error) {
	tensor, err := Preprocess(img, c.model.InputSize, c.model.Normalization)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}

	body, err := json.Marshal(struct {
		Instances []Tensor `json:"instances"`
	}{Instances: []Tensor{tensor}})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.model.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("inference request: %w", err)
	}

	var out struct {
		Predictions [][]float64 `json:"predictions"`
	}
	if err := transport.DecodeJSON(resp, &out); err != nil {
		return nil, fmt.Errorf("decode predictions: %w", err)
	}
	if len(out.Predictions) != 1 || len(out.Predictions[0]) != len(c.model.Labels) {
		return nil, ErrPredictionShape
	}
	for _, p := range out.Predictions[0] {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, ErrBadProbability
		}
	}
	return out.Predictions[0], nil
}

// gate applies the confidence threshold to the arg-max class.
func (c *Classifier) gate(best int, confidence float64) advisory.DiagnosisResult {
	labels := c.model.Labels
	if confidence >= ConfidenceThreshold {
		return advisory.DiagnosisResult{
			Label:          labels[best],
			Confidence:     confidence,
			Recommendation: c.model.Recommendation(labels[best]),
			FallbackReason: advisory.FallbackNone,
		}
	}

	if !c.substitute {
		return advisory.DiagnosisResult{
			Label:          labels[best],
			Confidence:     confidence,
			Recommendation: c.model.Recommendation(labels[best]),
			IsFallback:     false,
			FallbackReason: advisory.FallbackLowConfidence,
		}
	}

	pick := best
	if len(labels) > 1 {
		pick = c.randIntN(len(labels) - 1)
		if pick >= best {
			pick++
		}
	}
	synthetic := syntheticMin + c.randFloat()*(syntheticMax-syntheticMin)
	return advisory.DiagnosisResult{
		Label:          labels[pick],
		Confidence:     synthetic,
		Recommendation: c.model.Recommendation(labels[pick]),
		IsFallback:     true,
		FallbackReason: advisory.FallbackLowConfidence,
	}
}

func argMax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
