package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/alepar/aquamon/aquamon"
)

const SystemPrompt = "You are an assistant that helps fish farmers manage their ponds."

const userPromptTemplate = `Role: professional aquaculture water quality analyst.

[Live measurements]
- pH: %.2f
- Ammonia: %.2f mg/L
- Nitrate: %.2f ppm

[Forecast for the next sampling interval]
- pH forecast: %.2f
- Ammonia forecast: %.2f mg/L
- Nitrate forecast: %.2f ppm

Tasks:
1. Assess the current water quality risks (ammonia toxicity, algal bloom).
2. Based on the forecast trend, recommend concrete actions (e.g. run aerators, exchange water, stop feeding).
3. Answer in short bullet points.`

const detailedPromptTemplate = `Role: professional aquaculture water quality analyst.

1. Background
Site: %s.
Key indicators: pH (stability), ammonia (toxicity), nitrate (algal bloom risk).

2. Input data
[Live measurements]
- pH: %.2f
- Ammonia: %.2f mg/L
- Nitrate: %.2f ppm

[Forecast for the next sampling interval]
- pH forecast: %.2f
- Ammonia forecast: %.2f mg/L
- Nitrate forecast: %.2f ppm

3. Task
Write a pond water quality analysis and early warning report with these sections:
1. Data summary
2. Combined analysis (how the indicators relate)
3. Trend forecast and risk assessment (name the largest risk)
4. Likely causes (e.g. overfeeding, weak nitrification)
5. Recommended actions, by priority: urgent, short term, watch

Answer in Markdown.`

// DefaultSite describes the farm when none is configured.
const DefaultSite = "high-density grouper aquaculture pond"

type Template string

const (
	// TemplateBrief asks for a short bullet list.
	TemplateBrief Template = "brief"
	// TemplateDetailed asks for a sectioned Markdown report with farm context.
	TemplateDetailed Template = "detailed"
)

// Synthesizer turns a reading and its forecast into an analysis report.
type Synthesizer struct {
	Generator aquamon.TextGenerator
	// Template defaults to TemplateBrief.
	Template Template
	// Site is the farm context for TemplateDetailed.
	Site string
	// Now defaults to time.Now.
	Now func() time.Time
}

// UserPrompt renders the prompt embedding both value sets.
func UserPrompt(current aquamon.ConcentrationSample, predicted aquamon.TrendEstimate) string {
	return fmt.Sprintf(userPromptTemplate,
		current.PH, current.Ammonia, current.Nitrate,
		predicted.PH, predicted.Ammonia, predicted.Nitrate,
	)
}

// DetailedPrompt renders the sectioned report prompt for site.
func DetailedPrompt(site string, current aquamon.ConcentrationSample, predicted aquamon.TrendEstimate) string {
	if site == "" {
		site = DefaultSite
	}
	return fmt.Sprintf(detailedPromptTemplate, site,
		current.PH, current.Ammonia, current.Nitrate,
		predicted.PH, predicted.Ammonia, predicted.Nitrate,
	)
}

func (s *Synthesizer) prompt(current aquamon.ConcentrationSample, predicted aquamon.TrendEstimate) string {
	if s.Template == TemplateDetailed {
		return DetailedPrompt(s.Site, current, predicted)
	}
	return UserPrompt(current, predicted)
}

// Synthesize returns the generated text verbatim. Any failure, including an
// empty completion, is a *aquamon.GenerationError.
func (s *Synthesizer) Synthesize(ctx context.Context, current aquamon.ConcentrationSample, predicted aquamon.TrendEstimate) (aquamon.Report, error) {
	text, err := s.Generator.Complete(ctx, SystemPrompt, s.prompt(current, predicted))
	if err != nil {
		return aquamon.Report{}, aquamon.NewGenerationError(err)
	}
	if strings.TrimSpace(text) == "" {
		return aquamon.Report{}, aquamon.NewGenerationError(errors.New("empty completion"))
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return aquamon.Report{
		ID:        uuid.NewString(),
		Generated: now(),
		Current:   current,
		Predicted: predicted,
		Text:      text,
	}, nil
}
