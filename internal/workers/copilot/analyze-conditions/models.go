package analyzeconditions

import (
	"farm-copilot/internal/models"
)

// Input holds whichever readings the process collected. Each is optional.
type Input struct {
	Weather *models.WeatherReading
	Soil    *models.SoilReading
	Plant   *models.PlantIdentification
}

type Output struct {
	Analysis models.Analysis
}

func (o *Output) variables() map[string]interface{} {
	insights := make([]map[string]interface{}, 0, len(o.Analysis.Insights))
	for _, in := range o.Analysis.Insights {
		insights = append(insights, map[string]interface{}{
			"domain":  string(in.Domain),
			"summary": in.Summary,
			"advice":  in.Advice,
		})
	}
	recommendations := o.Analysis.Recommendations
	if recommendations == nil {
		recommendations = []string{}
	}
	vars := map[string]interface{}{
		"analysisStatus":  o.Analysis.Status,
		"insights":        insights,
		"recommendations": recommendations,
		"urgent":          o.Analysis.Urgent,
	}
	if o.Analysis.Error != "" {
		vars["analysisError"] = o.Analysis.Error
		vars["analysisErrorType"] = o.Analysis.ErrorType
	}
	return vars
}
