package models

import (
	"fmt"
	"sort"
)

// WeatherReading holds current conditions. Nil fields were not reported.
type WeatherReading struct {
	Source      string   `json:"source"`
	Temperature *float64 `json:"temperature,omitempty"`
	FeelsLike   *float64 `json:"feels_like,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Condition   string   `json:"condition,omitempty"`
	Rain1h      *float64 `json:"rain_1h,omitempty"`
}

func (WeatherReading) RecordKind() RecordKind { return KindWeather }
func (w WeatherReading) SourceName() string { return w.Source }
func (WeatherReading) isRecord() {}

// SoilReading holds soil telemetry. Moisture is a volumetric fraction in [0,1].
type SoilReading struct {
	Source          string   `json:"source"`
	Moisture        *float64 `json:"moisture,omitempty"`
	Nitrogen        *float64 `json:"nitrogen,omitempty"`
	SoilTemperature *float64 `json:"soil_temperature,omitempty"`
}

func (SoilReading) RecordKind() RecordKind { return KindSoil }
func (s SoilReading) SourceName() string { return s.Source }
func (SoilReading) isRecord() {}

// PlantCandidate is one species suggestion from the identification service.
type PlantCandidate struct {
	Name        string            `json:"name"`
	Probability float64           `json:"probability"`
	Details     map[string]string `json:"details,omitempty"`
}

// PlantIdentification holds candidates ordered by descending probability.
type PlantIdentification struct {
	Source     string           `json:"source"`
	Candidates []PlantCandidate `json:"candidates"`
}

func (PlantIdentification) RecordKind() RecordKind { return KindPlant }
func (p PlantIdentification) SourceName() string { return p.Source }
func (PlantIdentification) isRecord() {}

// SortCandidates orders candidates by probability, highest first.
func (p *PlantIdentification) SortCandidates() {
	sort.SliceStable(p.Candidates, func(i, j int) bool {
		return p.Candidates[i].Probability > p.Candidates[j].Probability
	})
}

// Float returns a pointer to v, for building readings by hand.
func Float(v float64) *float64 {
	return &v
}

// WeatherFromMap validates a loosely typed weather payload.
func WeatherFromMap(m map[string]interface{}) (WeatherReading, error) {
	w := WeatherReading{
		Source:    firstString(m, "source"),
		Condition: firstString(m, "condition", "description"),
	}
	var err error
	if w.Temperature, err = optionalFloat(m, "temperature", "temp"); err != nil {
		return w, err
	}
	if w.FeelsLike, err = optionalFloat(m, "feels_like"); err != nil {
		return w, err
	}
	if w.Humidity, err = optionalFloat(m, "humidity"); err != nil {
		return w, err
	}
	if w.Rain1h, err = optionalFloat(m, "rain_1h", "rainfall"); err != nil {
		return w, err
	}
	return w, nil
}

// SoilFromMap validates a loosely typed soil payload. Nitrogen may arrive under
// any of its aliases.
func SoilFromMap(m map[string]interface{}) (SoilReading, error) {
	s := SoilReading{Source: firstString(m, "source")}
	var err error
	if s.Moisture, err = optionalFloat(m, "moisture", "soil_moisture"); err != nil {
		return s, err
	}
	if s.Nitrogen, err = optionalFloat(m, "nitrogen", "nitrogen_content", "n"); err != nil {
		return s, err
	}
	if s.SoilTemperature, err = optionalFloat(m, "soil_temperature", "soil_temp"); err != nil {
		return s, err
	}
	return s, nil
}

// PlantFromMap validates a loosely typed identification payload of the form
// {"candidates": [{"name": ..., "probability": ..., "details": {...}}]}.
func PlantFromMap(m map[string]interface{}) (PlantIdentification, error) {
	p := PlantIdentification{Source: firstString(m, "source")}
	raw, ok := m["candidates"]
	if !ok || raw == nil {
		return p, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return p, fmt.Errorf("candidates: expected a list, got %T", raw)
	}
	for i, item := range items {
		cm, ok := item.(map[string]interface{})
		if !ok {
			return p, fmt.Errorf("candidates[%d]: expected an object, got %T", i, item)
		}
		prob, ok := ToFloat(cm["probability"])
		if !ok {
			return p, fmt.Errorf("candidates[%d].probability: not a number", i)
		}
		c := PlantCandidate{Name: firstString(cm, "name", "plant_name"), Probability: prob}
		if details, ok := cm["details"].(map[string]interface{}); ok {
			c.Details = make(map[string]string, len(details))
			for k, v := range details {
				if s, ok := v.(string); ok {
					c.Details[k] = s
				}
			}
		}
		p.Candidates = append(p.Candidates, c)
	}
	p.SortCandidates()
	return p, nil
}

func optionalFloat(m map[string]interface{}, keys ...string) (*float64, error) {
	for _, key := range keys {
		raw, ok := m[key]
		if !ok || raw == nil {
			continue
		}
		v, ok := ToFloat(raw)
		if !ok {
			return nil, fmt.Errorf("%s: expected a number, got %T", key, raw)
		}
		return &v, nil
	}
	return nil, nil
}
