package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// RecordKind tags the variants of Record.
type RecordKind string

const (
	KindEvidence RecordKind = "evidence"
	KindWeather  RecordKind = "weather"
	KindSoil     RecordKind = "soil"
	KindPlant    RecordKind = "plant"
)

// Record is anything an adapter can return: unstructured evidence or one of
// the structured domain readings. The set of variants is closed.
type Record interface {
	RecordKind() RecordKind
	SourceName() string
	isRecord()
}

// EvidenceRecord is free-text candidate answer material.
type EvidenceRecord struct {
	SourceID  string                 `json:"source_id"`
	Kind      string                 `json:"kind"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	ScoreHint float64                `json:"score_hint"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func (EvidenceRecord) RecordKind() RecordKind { return KindEvidence }
func (e EvidenceRecord) SourceName() string { return e.SourceID }
func (EvidenceRecord) isRecord() {}

// DedupKey is the case-insensitive, whitespace-trimmed (title, body) pair.
func (e EvidenceRecord) DedupKey() [2]string {
	return [2]string{
		strings.ToLower(strings.TrimSpace(e.Title)),
		strings.ToLower(strings.TrimSpace(e.Body)),
	}
}

// EvidenceFromMap normalizes a loosely typed payload. Missing title and body
// become empty strings; a missing or unparsable score hint becomes 0 and any
// hint is clamped into [0,1].
func EvidenceFromMap(m map[string]interface{}) EvidenceRecord {
	rec := EvidenceRecord{
		SourceID: firstString(m, "source_id", "source"),
		Kind:     firstString(m, "kind", "type"),
		Title:    firstString(m, "title"),
		Body:     firstString(m, "body"),
	}
	if hint, ok := ToFloat(m["score_hint"]); ok {
		rec.ScoreHint = Clamp01(hint)
	}
	for _, key := range []string{"metadata", "meta"} {
		if meta, ok := m[key].(map[string]interface{}); ok {
			rec.Metadata = meta
			break
		}
	}
	return rec
}

// Normalized returns a copy whose score hint is guaranteed to lie in [0,1].
func (e EvidenceRecord) Normalized() EvidenceRecord {
	e.ScoreHint = Clamp01(e.ScoreHint)
	return e
}

// Clamp01 bounds v to [0,1]; NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ToFloat accepts the numeric shapes that show up in decoded JSON and job variables.
func ToFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
