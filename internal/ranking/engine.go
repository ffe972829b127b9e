// Package ranking normalizes, deduplicates, scores and orders free-text evidence.
package ranking

import (
	"math"
	"sort"

	"farm-copilot/internal/models"
)

const (
	DefaultTopK  = 3
	DefaultTrust = 0.5

	trustWeight      = 0.4
	similarityWeight = 0.6
)

// Engine is stateless beyond its read-only trust table and is safe for
// concurrent use.
type Engine struct {
	trust      map[string]float64
	similarity Similarity
	topK       int
}

type Option func(*Engine)

// WithSimilarity replaces the similarity backend. A nil backend selects the
// containment fallback.
func WithSimilarity(s Similarity) Option {
	return func(e *Engine) { e.similarity = s }
}

// WithDefaultTopK sets the result size used when Rank is given k <= 0.
func WithDefaultTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// NewEngine copies trust so later changes by the caller have no effect.
func NewEngine(trust map[string]float64, opts ...Option) *Engine {
	table := make(map[string]float64, len(trust))
	for source, weight := range trust {
		table[source] = models.Clamp01(weight)
	}
	e := &Engine{
		trust:      table,
		similarity: NewTokenSortSimilarity(),
		topK:       DefaultTopK,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Trust returns the credibility weight of source; unknown sources get 0.5.
func (e *Engine) Trust(source string) float64 {
	if w, ok := e.trust[source]; ok {
		return w
	}
	return DefaultTrust
}

// Rank returns at most topK records ordered by score, highest first. Records
// with equal scores keep their input order.
func (e *Engine) Rank(query string, records []models.EvidenceRecord, topK int) []models.RankedEvidence {
	if topK <= 0 {
		topK = e.topK
	}

	deduped := dedupe(records)
	ranked := make([]models.RankedEvidence, 0, len(deduped))
	for _, rec := range deduped {
		ranked = append(ranked, models.RankedEvidence{EvidenceRecord: rec, Score: e.score(query, rec)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}

// RankMaps normalizes loosely typed payloads before ranking them.
func (e *Engine) RankMaps(query string, raw []map[string]interface{}, topK int) []models.RankedEvidence {
	records := make([]models.EvidenceRecord, 0, len(raw))
	for _, m := range raw {
		records = append(records, models.EvidenceFromMap(m))
	}
	return e.Rank(query, records, topK)
}

func (e *Engine) score(query string, rec models.EvidenceRecord) float64 {
	sim := math.Max(e.similar(query, rec.Title), e.similar(query, rec.Body))
	s := models.Clamp01(rec.ScoreHint) + trustWeight*e.Trust(rec.SourceID) + similarityWeight*sim
	return round3(models.Clamp01(s))
}

func (e *Engine) similar(query, text string) float64 {
	if e.similarity == nil {
		return containment(query, text)
	}
	ratio, err := e.similarity.Ratio(query, text)
	if err != nil {
		return containment(query, text)
	}
	return models.Clamp01(ratio)
}

// dedupe keeps the first record for each (title, body) key.
func dedupe(records []models.EvidenceRecord) []models.EvidenceRecord {
	seen := make(map[[2]string]struct{}, len(records))
	out := make([]models.EvidenceRecord, 0, len(records))
	for _, rec := range records {
		key := rec.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
