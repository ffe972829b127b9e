package answerquestion

import (
	"farm-copilot/internal/models"
)

// inputSchema validates the job variables. Either text or audioPath is required.
const inputSchema = `{
	"type": "object",
	"properties": {
		"text":      {"type": "string", "maxLength": 4000},
		"audioPath": {"type": "string", "minLength": 1},
		"imagePath": {"type": "string", "minLength": 1},
		"location":  {"type": "string", "maxLength": 200}
	},
	"anyOf": [
		{"required": ["text"]},
		{"required": ["audioPath"]}
	]
}`

type Input struct {
	Text      string `json:"text,omitempty"`
	AudioPath string `json:"audioPath,omitempty"`
	ImagePath string `json:"imagePath,omitempty"`
	Location  string `json:"location,omitempty"`
}

func (i *Input) request() models.Request {
	return models.Request{
		Text:      i.Text,
		AudioPath: i.AudioPath,
		ImagePath: i.ImagePath,
		Location:  i.Location,
	}
}

type Output struct {
	RequestID        string
	DetectedLanguage string
	Answer           models.Answer
	Analysis         models.Analysis
}

// variables flattens the output into process variables.
func (o *Output) variables() map[string]interface{} {
	sources := make([]map[string]interface{}, 0, len(o.Answer.Sources))
	for _, s := range o.Answer.Sources {
		sources = append(sources, map[string]interface{}{
			"source": s.Source,
			"kind":   s.Kind,
			"score":  s.Score,
		})
	}
	recommendations := o.Analysis.Recommendations
	if recommendations == nil {
		recommendations = []string{}
	}
	return map[string]interface{}{
		"requestId":        o.RequestID,
		"detectedLanguage": o.DetectedLanguage,
		"answerEn":         o.Answer.AnswerEn,
		"answerLocal":      o.Answer.AnswerLocal,
		"detailedEn":       o.Answer.DetailedEn,
		"detailedLocal":    o.Answer.DetailedLocal,
		"sources":          sources,
		"recommendations":  recommendations,
		"urgent":           o.Analysis.Urgent,
		"analysisStatus":   o.Analysis.Status,
	}
}
