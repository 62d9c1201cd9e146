// Package treatment produces Markdown treatment plans for a diagnosed crop
// condition.
package treatment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/i474232898/agri-scout/internal/advisory"
	"github.com/i474232898/agri-scout/internal/genai"
)

const unknownHealth = "Unknown"

// Advisor implements advisory.TreatmentAdvisor.
type Advisor struct {
	gen     genai.Generator
	timeout time.Duration
}

// NewAdvisor creates an Advisor. A nil gen always yields the offline plan.
func NewAdvisor(gen genai.Generator, timeout time.Duration) *Advisor {
	return &Advisor{gen: gen, timeout: timeout}
}

// Advise never fails.
func (a *Advisor) Advise(ctx context.Context, condition, fieldHealth string) advisory.TreatmentPlan {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		condition = "Unknown condition"
	}
	fieldHealth = strings.TrimSpace(fieldHealth)
	if fieldHealth == "" {
		fieldHealth = unknownHealth
	}

	if a.gen == nil {
		slog.Warn("treatment advice offline: no generative model configured", "condition", condition)
		return offline(missingKeyPlan, condition)
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	text, err := a.gen.Generate(ctx, buildPrompt(condition, fieldHealth))
	if err == nil && strings.TrimSpace(text) == "" {
		err = genai.ErrEmptyResponse
	}
	if err != nil {
		slog.Error("treatment advice failed", "generator", a.gen.Name(), "condition", condition, "error", err)
		return offline(errorPlan, condition)
	}

	return advisory.TreatmentPlan{
		BodyMarkdown: strings.TrimSpace(text),
		Source:       advisory.SourceGenerativeModel,
	}
}

func buildPrompt(condition, fieldHealth string) string {
	return fmt.Sprintf(`Act as an expert agronomist.
Disease Detected: %s
Field Health (NDVI): %s

Provide a structured treatment plan in Markdown:
1. **Immediate Action**: What to do right now.
2. **Chemical Control**: Specific fungicides/pesticides (if needed).
3. **Organic Alternative**: Non-chemical options.
4. **Prevention**: How to stop it next season.

Keep it concise and actionable for a farmer.`, condition, fieldHealth)
}

const missingKeyPlan = `**AI Agronomist Treatment Plan for %s**

1. **Immediate Action**: Isolate affected plants to prevent spread.
2. **Chemical Control**: Apply a copper-based fungicide if symptoms keep spreading.
3. **Organic Alternative**: Apply neem oil solution (5ml/liter) every 3 days.
4. **Prevention**: Improve drainage and avoid overhead watering to reduce humidity.`

const errorPlan = `**AI Agronomist Treatment Plan for %s**

1. **Immediate Action**: Remove infected leaves immediately.
2. **Chemical Control**: Apply copper-based fungicide or organic equivalent.
3. **Organic Alternative**: Spray diluted neem oil on affected foliage.
4. **Prevention**: Ensure proper spacing between plants for air circulation.`

func offline(template, condition string) advisory.TreatmentPlan {
	return advisory.TreatmentPlan{
		BodyMarkdown: fmt.Sprintf(template, condition),
		Source:       advisory.SourceOfflineTemplate,
	}
}
