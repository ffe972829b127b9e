package fusion

import (
	"math"
	"strings"
	"testing"

	"farm-copilot/internal/common/logger"
	"farm-copilot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(DefaultThresholds(), logger.NewTestLogger(t))
}

func weatherAt(temp float64) *models.WeatherReading {
	return &models.WeatherReading{Source: "openweather", Temperature: models.Float(temp)}
}

func soilAt(moisture float64) *models.SoilReading {
	return &models.SoilReading{Source: "agromonitoring", Moisture: models.Float(moisture)}
}

func mustInsight(t *testing.T, a models.Analysis, d models.Domain) models.Insight {
	t.Helper()
	in, ok := a.Insight(d)
	require.True(t, ok, "expected %s insight", d)
	return in
}

func containsAny(recs []string, substr string) bool {
	for _, r := range recs {
		if strings.Contains(strings.ToLower(r), substr) {
			return true
		}
	}
	return false
}

// ==========================
// Weather
// ==========================

func TestWeatherAdvice_Thresholds(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		temp float64
		want []string
	}{
		{10, []string{"frost protection"}},
		{40, []string{"irrigation", "shade"}},
		{25, []string{"favorable"}},
		{15, []string{"favorable"}},
		{35, []string{"favorable"}},
	}

	for _, tt := range tests {
		in := mustInsight(t, e.Analyze(weatherAt(tt.temp), nil, nil), models.DomainWeather)
		for _, phrase := range tt.want {
			assert.Contains(t, in.Advice, phrase, "temperature %v", tt.temp)
		}
	}
}

func TestWeatherAdvice_HumidityCaveats(t *testing.T) {
	e := newTestEngine(t)

	humid := weatherAt(25)
	humid.Humidity = models.Float(91)
	assert.Contains(t, mustInsight(t, e.Analyze(humid, nil, nil), models.DomainWeather).Advice, "fungal disease")

	dry := weatherAt(25)
	dry.Humidity = models.Float(12)
	assert.Contains(t, mustInsight(t, e.Analyze(dry, nil, nil), models.DomainWeather).Advice, "moisture stress")
}

func TestWeatherAdvice_MissingTemperature(t *testing.T) {
	e := newTestEngine(t)

	in := mustInsight(t, e.Analyze(&models.WeatherReading{Humidity: models.Float(50), Condition: "clouds"}, nil, nil), models.DomainWeather)
	assert.Contains(t, in.Advice, "unavailable")
	assert.Equal(t, "clouds", in.Summary["condition"])
	assert.NotContains(t, in.Summary, "temperature")
}

// ==========================
// Soil
// ==========================

func TestSoilAdvice_Thresholds(t *testing.T) {
	e := newTestEngine(t)

	assert.Contains(t, mustInsight(t, e.Analyze(nil, soilAt(0.1), nil), models.DomainSoil).Advice, "urgent irrigation")
	assert.Contains(t, mustInsight(t, e.Analyze(nil, soilAt(0.9), nil), models.DomainSoil).Advice, "reduce irrigation")
	assert.Contains(t, mustInsight(t, e.Analyze(nil, soilAt(0.5), nil), models.DomainSoil).Advice, "optimal")
}

func TestSoilAdvice_SoilTemperatureAppended(t *testing.T) {
	e := newTestEngine(t)

	cold := soilAt(0.5)
	cold.SoilTemperature = models.Float(6)
	advice := mustInsight(t, e.Analyze(nil, cold, nil), models.DomainSoil).Advice
	assert.Contains(t, advice, "optimal")
	assert.Contains(t, advice, "slow germination")

	hot := &models.SoilReading{SoilTemperature: models.Float(33)}
	assert.Contains(t, mustInsight(t, e.Analyze(nil, hot, nil), models.DomainSoil).Advice, "heat stress")
}

func TestSoilAdvice_NoDataIsNormal(t *testing.T) {
	e := newTestEngine(t)

	in := mustInsight(t, e.Analyze(nil, &models.SoilReading{Nitrogen: models.Float(14)}, nil), models.DomainSoil)
	assert.Equal(t, "Soil conditions appear normal.", in.Advice)
	assert.Equal(t, 14.0, in.Summary["nitrogen"])
}

// ==========================
// Plant
// ==========================

func TestPlantInsight_NoCandidates(t *testing.T) {
	e := newTestEngine(t)

	in := mustInsight(t, e.Analyze(nil, nil, &models.PlantIdentification{}), models.DomainPlant)
	assert.Equal(t, "Unknown", in.Summary["species"])
	assert.Equal(t, 0.0, in.Summary["confidence"])
}

func TestPlantInsight_ConfidenceLevels(t *testing.T) {
	tests := []struct {
		p    float64
		want string
	}{
		{0.95, "very high"},
		{0.9, "very high"},
		{0.75, "high"},
		{0.5, "moderate"},
		{0.49, "low"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, confidenceLevel(tt.p), "probability %v", tt.p)
	}
}

func TestPlantInsight_TopCandidateAndCareTips(t *testing.T) {
	e := newTestEngine(t)

	plant := &models.PlantIdentification{Candidates: []models.PlantCandidate{
		{Name: "Zea mays", Probability: 0.2},
		{Name: "Solanum lycopersicum", Probability: 0.93, Details: map[string]string{
			"watering": "keep evenly moist", "sunlight": "full sun", "soil": "loamy",
		}},
	}}

	in := mustInsight(t, e.Analyze(nil, nil, plant), models.DomainPlant)
	assert.Equal(t, "Solanum lycopersicum", in.Summary["species"])
	assert.Equal(t, "very high", in.Summary["confidence_level"])
	assert.Equal(t, map[string]string{"watering": "keep evenly moist", "sunlight": "full sun"}, in.Summary["care_tips"])
	assert.NotContains(t, in.Summary, "alternatives")
}

func TestPlantInsight_AlternativesWhenAmbiguous(t *testing.T) {
	e := newTestEngine(t)

	plant := &models.PlantIdentification{Candidates: []models.PlantCandidate{
		{Name: "A", Probability: 0.41},
		{Name: "B", Probability: 0.2345},
		{Name: "C", Probability: 0.15},
		{Name: "D", Probability: 0.1},
		{Name: "E", Probability: 0.05},
	}}

	in := mustInsight(t, e.Analyze(nil, nil, plant), models.DomainPlant)
	alts, ok := in.Summary["alternatives"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, alts, 3)
	assert.Equal(t, "B", alts[0]["name"])
	assert.Equal(t, 0.23, alts[0]["confidence"])
	assert.Equal(t, "D", alts[2]["name"])
	assert.Contains(t, in.Advice, "Confirm")
}

// ==========================
// Cross-domain fusion
// ==========================

func TestAnalyze_NoDomains(t *testing.T) {
	a := newTestEngine(t).Analyze(nil, nil, nil)

	assert.Equal(t, models.AnalysisStatusOK, a.Status)
	assert.Empty(t, a.Insights)
	assert.Equal(t, []string{"Continue regular monitoring and maintenance schedules."}, a.Recommendations)
}

func TestAnalyze_SingleDomainSkipsFusion(t *testing.T) {
	a := newTestEngine(t).Analyze(weatherAt(40), nil, nil)

	assert.Len(t, a.Insights, 1)
	assert.Equal(t, []string{DefaultRecommendation}, a.Recommendations)
	assert.False(t, a.Urgent)
}

func TestAnalyze_HotAndDryIsUrgent(t *testing.T) {
	weather := weatherAt(40)
	weather.Rain1h = models.Float(0)

	a := newTestEngine(t).Analyze(weather, soilAt(0.1), nil)

	assert.True(t, containsAny(a.Recommendations, "urgent irrigation"))
	assert.NotContains(t, a.Recommendations, DefaultRecommendation)
	assert.True(t, a.Urgent)
}

func TestAnalyze_ColdAndWet(t *testing.T) {
	a := newTestEngine(t).Analyze(weatherAt(5), soilAt(0.9), nil)

	require.Len(t, a.Recommendations, 1)
	assert.Contains(t, a.Recommendations[0], "drainage")
	assert.False(t, a.Urgent)
}

func TestAnalyze_RuleOrderAndAccumulation(t *testing.T) {
	weather := weatherAt(5)
	weather.Rain1h = models.Float(10)
	plant := &models.PlantIdentification{Candidates: []models.PlantCandidate{{Name: "Oryza sativa", Probability: 0.8}}}

	a := newTestEngine(t).Analyze(weather, soilAt(0.95), plant)

	require.Len(t, a.Recommendations, 3)
	assert.Contains(t, a.Recommendations[0], "root rot")
	assert.Contains(t, a.Recommendations[1], "skip irrigation")
	assert.Contains(t, a.Recommendations[2], "Oryza sativa")
}

func TestAnalyze_NoRuleFiresGivesDefault(t *testing.T) {
	a := newTestEngine(t).Analyze(weatherAt(25), soilAt(0.5), nil)

	assert.Len(t, a.Insights, 2)
	assert.Equal(t, []string{DefaultRecommendation}, a.Recommendations)
}

func TestAnalyze_CustomThresholds(t *testing.T) {
	e := New(ThresholdConfig{ColdC: 0, HotC: 28, DryMoisture: 0.3, WetMoisture: 0.7}, logger.NewTestLogger(t))

	a := e.Analyze(weatherAt(30), soilAt(0.25), nil)
	assert.True(t, a.Urgent)
	assert.Equal(t, 28.0, e.Thresholds().HotC)
}

// ==========================
// Failure isolation
// ==========================

func TestAnalyze_InvalidDomainIsOmitted(t *testing.T) {
	e := newTestEngine(t)

	badSoil := soilAt(math.NaN())
	a := e.Analyze(weatherAt(40), badSoil, nil)

	assert.Equal(t, models.AnalysisStatusOK, a.Status)
	require.Len(t, a.Insights, 1)
	assert.Equal(t, models.DomainWeather, a.Insights[0].Domain)
	assert.Equal(t, []string{DefaultRecommendation}, a.Recommendations)

	a = e.Analyze(nil, soilAt(1.4), &models.PlantIdentification{Candidates: []models.PlantCandidate{{Name: "", Probability: 0.9}}})
	assert.Empty(t, a.Insights)

	a = e.Analyze(&models.WeatherReading{Humidity: models.Float(140)}, nil, &models.PlantIdentification{Candidates: []models.PlantCandidate{{Name: "X", Probability: 1.2}}})
	assert.Empty(t, a.Insights)
}

func TestAnalyze_UnexpectedFailureReturnsErrorResult(t *testing.T) {
	e := newTestEngine(t)
	e.rules = append(e.rules, rule{name: "broken", eval: func(ThresholdConfig, facts) (string, bool) {
		var m map[string]int
		m["boom"]++
		return "", false
	}})

	var a models.Analysis
	assert.NotPanics(t, func() {
		a = e.Analyze(weatherAt(20), soilAt(0.5), nil)
	})
	assert.Equal(t, models.AnalysisStatusError, a.Status)
	assert.NotEmpty(t, a.Error)
	assert.NotEmpty(t, a.ErrorType)
}

func TestThresholdsFromDefaults(t *testing.T) {
	th := DefaultThresholds()
	assert.Equal(t, ThresholdConfig{ColdC: 15, HotC: 35, DryMoisture: 0.2, WetMoisture: 0.8}, th)
}
