// Package vision classifies crop-disease images with a remote inference
// model described by a manifest.
package vision

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Normalization is the pixel scaling a model was trained with.
type Normalization string

const (
	// NormalizeScale maps 0..255 to 0..1.
	NormalizeScale Normalization = "scale"
	// NormalizeCentered maps 0..255 to -1..1.
	NormalizeCentered Normalization = "centered"
	// NormalizeRaw passes 0..255 through; the model rescales internally.
	NormalizeRaw Normalization = "raw"
)

const defaultInputSize = 224

var ErrInvalidManifest = errors.New("invalid model manifest")

// Model pins a served model to its label set and preprocessing. It is
// loaded once and shared read-only.
type Model struct {
	Name            string            `yaml:"name"`
	Version         string            `yaml:"version"`
	Endpoint        string            `yaml:"endpoint"`
	InputSize       int               `yaml:"input_size"`
	Normalization   Normalization     `yaml:"normalization"`
	Labels          []string          `yaml:"labels"`
	Recommendations map[string]string `yaml:"recommendations"`
}

// LoadManifest reads and validates a model manifest.
func LoadManifest(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseManifest(data)
}

// ParseManifest decodes a YAML manifest and fills defaults.
func ParseManifest(data []byte) (*Model, error) {
	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	if strings.TrimSpace(m.Endpoint) == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrInvalidManifest)
	}
	if len(m.Labels) == 0 {
		return nil, fmt.Errorf("%w: labels are required", ErrInvalidManifest)
	}
	seen := make(map[string]bool, len(m.Labels))
	for _, l := range m.Labels {
		if l == "" || seen[l] {
			return nil, fmt.Errorf("%w: empty or duplicate label %q", ErrInvalidManifest, l)
		}
		seen[l] = true
	}

	if m.InputSize == 0 {
		m.InputSize = defaultInputSize
	}
	if m.InputSize < 0 {
		return nil, fmt.Errorf("%w: input_size %d", ErrInvalidManifest, m.InputSize)
	}

	switch m.Normalization {
	case "":
		m.Normalization = NormalizeScale
	case NormalizeScale, NormalizeCentered, NormalizeRaw:
	default:
		return nil, fmt.Errorf("%w: unknown normalization %q", ErrInvalidManifest, m.Normalization)
	}
	return &m, nil
}

// Recommendation returns the canned advice for label.
func (m *Model) Recommendation(label string) string {
	if r, ok := m.Recommendations[label]; ok {
		return r
	}
	return "Consult an expert."
}
