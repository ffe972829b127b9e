package fusion

import "fmt"

// DefaultRecommendation is returned when no cross-domain rule fires.
const DefaultRecommendation = "Continue regular monitoring and maintenance schedules."

const heavyRainMMPerHour = 5.0

// facts carries what the domain analyses learned into the cross-domain rules.
// Nil pointers mean the value was not reported.
type facts struct {
	temperature *float64
	rain1h      *float64
	moisture    *float64
	plantLevel  string
	plantName   string
}

type rule struct {
	name   string
	urgent bool
	eval   func(t ThresholdConfig, f facts) (string, bool)
}

// defaultRules are evaluated in priority order; each contributes at most one message.
func defaultRules() []rule {
	return []rule{
		{
			name:   "heat_and_drought",
			urgent: true,
			eval: func(t ThresholdConfig, f facts) (string, bool) {
				if f.temperature == nil || f.moisture == nil {
					return "", false
				}
				if t.isHot(*f.temperature) && t.isDry(*f.moisture) {
					return "URGENT: high temperature and dry soil; start urgent irrigation immediately to prevent crop loss.", true
				}
				return "", false
			},
		},
		{
			name: "cold_and_waterlogged",
			eval: func(t ThresholdConfig, f facts) (string, bool) {
				if f.temperature == nil || f.moisture == nil {
					return "", false
				}
				if t.isCold(*f.temperature) && t.isWet(*f.moisture) {
					return "Cold, waterlogged soil raises the risk of root rot and fungal disease; improve drainage and hold off watering.", true
				}
				return "", false
			},
		},
		{
			name: "rain_on_wet_soil",
			eval: func(t ThresholdConfig, f facts) (string, bool) {
				if f.rain1h == nil || f.moisture == nil {
					return "", false
				}
				if *f.rain1h > heavyRainMMPerHour && t.isWet(*f.moisture) {
					return "Recent heavy rainfall on saturated soil; skip irrigation until the field drains.", true
				}
				return "", false
			},
		},
		{
			name: "confident_identification",
			eval: func(_ ThresholdConfig, f facts) (string, bool) {
				if f.plantLevel == levelHigh || f.plantLevel == levelVeryHigh {
					return fmt.Sprintf("Follow %s-specific care practices; the identification is reliable.", f.plantName), true
				}
				return "", false
			},
		},
	}
}

func (e *Engine) fuse(f facts) (recs []string, urgent bool) {
	for _, r := range e.rules {
		if msg, ok := r.eval(e.thresholds, f); ok {
			recs = append(recs, msg)
			urgent = urgent || r.urgent
		}
	}
	return recs, urgent
}
