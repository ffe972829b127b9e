package fusion

import (
	"fmt"
	"sort"
	"strings"

	"farm-copilot/internal/models"
)

const (
	levelVeryHigh = "very high"
	levelHigh     = "high"
	levelModerate = "moderate"
	levelLow      = "low"

	maxCareTips     = 2
	maxAlternatives = 3
	ambiguousBelow  = 0.7
)

// careTipFields are read from candidate details in this order.
var careTipFields = []string{"watering", "sunlight", "soil", "fertilization", "pruning"}

func confidenceLevel(p float64) string {
	switch {
	case p >= 0.9:
		return levelVeryHigh
	case p >= 0.7:
		return levelHigh
	case p >= 0.5:
		return levelModerate
	default:
		return levelLow
	}
}

func (e *Engine) analyzePlant(p models.PlantIdentification, f *facts) (models.Insight, error) {
	for i, c := range p.Candidates {
		if err := checkFinite(fmt.Sprintf("candidates[%d].probability", i), &c.Probability); err != nil {
			return models.Insight{}, err
		}
		if c.Probability < 0 || c.Probability > 1 {
			return models.Insight{}, fmt.Errorf("candidates[%d].probability %v outside [0,1]", i, c.Probability)
		}
		if strings.TrimSpace(c.Name) == "" {
			return models.Insight{}, fmt.Errorf("candidates[%d] has no name", i)
		}
	}

	if len(p.Candidates) == 0 {
		return models.Insight{
			Domain: models.DomainPlant,
			Summary: map[string]interface{}{
				"species":          "Unknown",
				"confidence":       0.0,
				"confidence_level": levelLow,
			},
			Advice: "The plant could not be identified; try a clearer photo of the leaves.",
		}, nil
	}

	ranked := make([]models.PlantCandidate, len(p.Candidates))
	copy(ranked, p.Candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Probability > ranked[j].Probability
	})

	top := ranked[0]
	level := confidenceLevel(top.Probability)
	summary := map[string]interface{}{
		"species":          top.Name,
		"confidence":       round(top.Probability, 3),
		"confidence_level": level,
	}

	if tips := careTips(top); len(tips) > 0 {
		summary["care_tips"] = tips
	}

	if top.Probability < ambiguousBelow && len(ranked) > 1 {
		others := ranked[1:]
		if len(others) > maxAlternatives {
			others = others[:maxAlternatives]
		}
		alts := make([]map[string]interface{}, 0, len(others))
		for _, c := range others {
			alts = append(alts, map[string]interface{}{
				"name":       c.Name,
				"confidence": round(c.Probability, 2),
			})
		}
		summary["alternatives"] = alts
	}

	f.plantLevel = level
	f.plantName = top.Name

	advice := fmt.Sprintf("Identified as %s with %s confidence.", top.Name, level)
	if level == levelLow || level == levelModerate {
		advice += " Confirm the identification before applying treatments."
	}

	return models.Insight{Domain: models.DomainPlant, Summary: summary, Advice: advice}, nil
}

func careTips(c models.PlantCandidate) map[string]string {
	tips := make(map[string]string, maxCareTips)
	for _, field := range careTipFields {
		if len(tips) == maxCareTips {
			break
		}
		if v := strings.TrimSpace(c.Details[field]); v != "" {
			tips[field] = v
		}
	}
	return tips
}
