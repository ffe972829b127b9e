// Package fusion interprets structured weather, soil and plant readings and
// derives cross-domain recommendations from them.
package fusion

import (
	"fmt"
	"math"

	apperrors "farm-copilot/internal/common/errors"
	"farm-copilot/internal/common/logger"
	"farm-copilot/internal/common/metrics"
	"farm-copilot/internal/models"
)

// Engine is stateless beyond its thresholds and may be shared across requests.
type Engine struct {
	thresholds ThresholdConfig
	rules      []rule
	logger     logger.Logger
}

func New(thresholds ThresholdConfig, log logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Engine{
		thresholds: thresholds,
		rules:      defaultRules(),
		logger:     log,
	}
}

func (e *Engine) Thresholds() ThresholdConfig {
	return e.thresholds
}

// Analyze builds one insight per supplied domain and, when at least two
// domains were analyzed, evaluates the cross-domain rules. A domain whose
// reading fails validation is logged and left out. Analyze never panics; an
// unexpected failure is reported through Status "error".
func (e *Engine) Analyze(weather *models.WeatherReading, soil *models.SoilReading, plant *models.PlantIdentification) (result models.Analysis) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("fusion analysis aborted", map[string]interface{}{
				"panic": fmt.Sprint(r),
			})
			result = models.Analysis{
				Status:          models.AnalysisStatusError,
				Insights:        []models.Insight{},
				Recommendations: []string{},
				Error:           fmt.Sprint(r),
				ErrorType:       errorType(r),
			}
		}
	}()

	var f facts
	insights := make([]models.Insight, 0, 3)

	if weather != nil {
		if in, err := e.analyzeWeather(*weather, &f); err != nil {
			e.domainFailed(models.DomainWeather, err)
		} else {
			insights = append(insights, in)
		}
	}
	if soil != nil {
		if in, err := e.analyzeSoil(*soil, &f); err != nil {
			e.domainFailed(models.DomainSoil, err)
		} else {
			insights = append(insights, in)
		}
	}
	if plant != nil {
		if in, err := e.analyzePlant(*plant, &f); err != nil {
			e.domainFailed(models.DomainPlant, err)
		} else {
			insights = append(insights, in)
		}
	}

	var recs []string
	urgent := false
	if len(insights) >= 2 {
		recs, urgent = e.fuse(f)
	}
	if len(recs) == 0 {
		recs = []string{DefaultRecommendation}
	}

	return models.Analysis{
		Status:          models.AnalysisStatusOK,
		Insights:        insights,
		Recommendations: recs,
		Urgent:          urgent,
	}
}

func (e *Engine) domainFailed(domain models.Domain, err error) {
	metrics.FusionDomainFailures.WithLabelValues(string(domain)).Inc()
	stdErr := apperrors.NewFusionAnalysisError(string(domain), err.Error())
	e.logger.Warn("domain analysis failed, insight omitted", map[string]interface{}{
		"domain":    string(domain),
		"errorCode": string(stdErr.Code),
		"error":     err.Error(),
	})
}

func errorType(r interface{}) string {
	if err, ok := r.(error); ok {
		return fmt.Sprintf("%T", err)
	}
	return "panic"
}

func checkFinite(name string, v *float64) error {
	if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
		return fmt.Errorf("%s is not a finite number", name)
	}
	return nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
