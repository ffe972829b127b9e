package fusion

import (
	"fmt"
	"strings"

	"farm-copilot/internal/models"
)

const (
	coldSoilC = 10.0
	hotSoilC  = 30.0
)

func (e *Engine) analyzeSoil(s models.SoilReading, f *facts) (models.Insight, error) {
	if err := checkFinite("moisture", s.Moisture); err != nil {
		return models.Insight{}, err
	}
	if err := checkFinite("nitrogen", s.Nitrogen); err != nil {
		return models.Insight{}, err
	}
	if err := checkFinite("soil_temperature", s.SoilTemperature); err != nil {
		return models.Insight{}, err
	}
	if s.Moisture != nil && (*s.Moisture < 0 || *s.Moisture > 1) {
		return models.Insight{}, fmt.Errorf("moisture %v outside [0,1]", *s.Moisture)
	}
	if s.Nitrogen != nil && *s.Nitrogen < 0 {
		return models.Insight{}, fmt.Errorf("nitrogen %v is negative", *s.Nitrogen)
	}

	summary := map[string]interface{}{}
	putFloat(summary, "moisture", s.Moisture)
	putFloat(summary, "nitrogen", s.Nitrogen)
	putFloat(summary, "soil_temperature", s.SoilTemperature)

	f.moisture = s.Moisture

	return models.Insight{
		Domain:  models.DomainSoil,
		Summary: summary,
		Advice:  e.soilAdvice(s),
	}, nil
}

func (e *Engine) soilAdvice(s models.SoilReading) string {
	var parts []string
	if s.Moisture != nil {
		switch m := *s.Moisture; {
		case e.thresholds.isDry(m):
			parts = append(parts, "Soil moisture is critically low; urgent irrigation is needed.")
		case e.thresholds.isWet(m):
			parts = append(parts, "Soil is waterlogged; reduce irrigation and improve drainage.")
		default:
			parts = append(parts, "Soil moisture is optimal.")
		}
	}
	if s.SoilTemperature != nil {
		switch {
		case *s.SoilTemperature < coldSoilC:
			parts = append(parts, "Cold soil will slow germination.")
		case *s.SoilTemperature > hotSoilC:
			parts = append(parts, "Warm soil may cause root heat stress.")
		}
	}
	if len(parts) == 0 {
		return "Soil conditions appear normal."
	}
	return strings.Join(parts, " ")
}
