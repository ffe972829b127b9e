package fusion

import "farm-copilot/internal/common/config"

// ThresholdConfig holds the four cut points used by the domain rules. It is
// passed by value and never modified by the engine.
type ThresholdConfig struct {
	ColdC       float64
	HotC        float64
	DryMoisture float64
	WetMoisture float64
}

func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{ColdC: 15, HotC: 35, DryMoisture: 0.2, WetMoisture: 0.8}
}

func ThresholdsFromConfig(c config.ThresholdsConfig) ThresholdConfig {
	return ThresholdConfig{
		ColdC:       c.ColdC,
		HotC:        c.HotC,
		DryMoisture: c.DryMoisture,
		WetMoisture: c.WetMoisture,
	}
}

func (t ThresholdConfig) isCold(c float64) bool { return c < t.ColdC }
func (t ThresholdConfig) isHot(c float64) bool { return c > t.HotC }
func (t ThresholdConfig) isDry(m float64) bool { return m < t.DryMoisture }
func (t ThresholdConfig) isWet(m float64) bool { return m > t.WetMoisture }
