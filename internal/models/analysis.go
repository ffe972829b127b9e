package models

// Domain names a structured evidence domain.
type Domain string

const (
	DomainWeather Domain = "weather"
	DomainSoil    Domain = "soil"
	DomainPlant   Domain = "plant"
)

// Insight is the interpretation of one structured domain.
type Insight struct {
	Domain  Domain                 `json:"domain"`
	Summary map[string]interface{} `json:"summary"`
	Advice  string                 `json:"advice"`
}

const (
	AnalysisStatusOK    = "ok"
	AnalysisStatusError = "error"
)

// Analysis is the output of the fusion engine. Urgent is set when the
// highest-severity cross-domain rule fired. On an unexpected failure Status is
// "error" and Error/ErrorType describe it.
type Analysis struct {
	Status          string    `json:"status"`
	Insights        []Insight `json:"insights"`
	Recommendations []string  `json:"recommendations"`
	Urgent          bool      `json:"urgent,omitempty"`
	Error           string    `json:"error,omitempty"`
	ErrorType       string    `json:"error_type,omitempty"`
}

// Insight returns the insight for d, if the domain was analyzed.
func (a Analysis) Insight(d Domain) (Insight, bool) {
	for _, in := range a.Insights {
		if in.Domain == d {
			return in, true
		}
	}
	return Insight{}, false
}
