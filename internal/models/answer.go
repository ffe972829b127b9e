package models

// RankedEvidence is an evidence record with its computed relevance score.
type RankedEvidence struct {
	EvidenceRecord
	Score float64 `json:"score"`
}

// SourceRef credits one ranked item in the final answer.
type SourceRef struct {
	Source string  `json:"source"`
	Kind   string  `json:"kind"`
	Score  float64 `json:"score"`
}

// Answer is the bilingual payload returned to the caller.
type Answer struct {
	AnswerEn      string      `json:"answer_en"`
	AnswerLocal   string      `json:"answer_local"`
	DetailedEn    string      `json:"detailed_en"`
	DetailedLocal string      `json:"detailed_local"`
	Sources       []SourceRef `json:"sources"`
}
