package fusion

import (
	"fmt"
	"strings"

	"farm-copilot/internal/models"
)

const (
	humidHumidity = 80.0
	dryHumidity   = 30.0
)

func (e *Engine) analyzeWeather(w models.WeatherReading, f *facts) (models.Insight, error) {
	for name, v := range map[string]*float64{
		"temperature": w.Temperature,
		"feels_like":  w.FeelsLike,
		"humidity":    w.Humidity,
		"rain_1h":     w.Rain1h,
	} {
		if err := checkFinite(name, v); err != nil {
			return models.Insight{}, err
		}
	}
	if w.Humidity != nil && (*w.Humidity < 0 || *w.Humidity > 100) {
		return models.Insight{}, fmt.Errorf("humidity %v outside [0,100]", *w.Humidity)
	}
	if w.Rain1h != nil && *w.Rain1h < 0 {
		return models.Insight{}, fmt.Errorf("rain_1h %v is negative", *w.Rain1h)
	}

	summary := map[string]interface{}{"condition": w.Condition}
	putFloat(summary, "temperature", w.Temperature)
	putFloat(summary, "feels_like", w.FeelsLike)
	putFloat(summary, "humidity", w.Humidity)
	putFloat(summary, "rain_1h", w.Rain1h)

	f.temperature = w.Temperature
	f.rain1h = w.Rain1h

	return models.Insight{
		Domain:  models.DomainWeather,
		Summary: summary,
		Advice:  e.weatherAdvice(w),
	}, nil
}

func (e *Engine) weatherAdvice(w models.WeatherReading) string {
	if w.Temperature == nil {
		return "Temperature data unavailable; weather advice cannot be given."
	}

	var parts []string
	switch t := *w.Temperature; {
	case e.thresholds.isCold(t):
		parts = append(parts, "Low temperatures detected; apply frost protection such as mulching or row covers.")
	case e.thresholds.isHot(t):
		parts = append(parts, "High temperatures detected; increase irrigation and provide shade for sensitive crops.")
	default:
		parts = append(parts, "Temperatures are favorable for most field operations.")
	}

	if w.Humidity != nil {
		switch {
		case *w.Humidity > humidHumidity:
			parts = append(parts, "High humidity raises the risk of fungal disease; monitor leaves closely.")
		case *w.Humidity < dryHumidity:
			parts = append(parts, "Low humidity may cause moisture stress in plants.")
		}
	}
	return strings.Join(parts, " ")
}

func putFloat(m map[string]interface{}, key string, v *float64) {
	if v != nil {
		m[key] = *v
	}
}
