// Package knowledge searches the crop knowledge base held in Elasticsearch.
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"farm-copilot/internal/common/logger"
	"farm-copilot/internal/models"
)

const (
	Name         = "knowledge"
	DefaultIndex = "crop_knowledge"
	DefaultSize  = 5

	// relevanceWeight scales the normalized Elasticsearch score into a score hint.
	relevanceWeight = 0.2
)

type Adapter struct {
	client *elasticsearch.Client
	index  string
	size   int
	logger logger.Logger
}

func New(client *elasticsearch.Client, index string, log logger.Logger) *Adapter {
	if index == "" {
		index = DefaultIndex
	}
	return &Adapter{
		client: client,
		index:  index,
		size:   DefaultSize,
		logger: log.With(map[string]interface{}{"adapter": Name}),
	}
}

func (a *Adapter) Name() string { return Name }

// Fetch runs a full-text search for query. Documents tagged with a region
// matching location are boosted but never required.
func (a *Adapter) Fetch(ctx context.Context, query, location string) ([]models.Record, error) {
	if query == "" {
		return nil, nil
	}

	body, err := json.Marshal(buildQuery(query, location))
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	size := a.size
	req := esapi.SearchRequest{
		Index: []string{a.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}

	res, err := req.Do(ctx, a.client)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", a.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search %s failed: %s", a.index, res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	records := a.toRecords(parsed)
	a.logger.Debug("knowledge search completed", map[string]interface{}{
		"index":     a.index,
		"totalHits": parsed.Hits.Total.Value,
		"returned":  len(records),
	})
	return records, nil
}

func buildQuery(query, location string) map[string]interface{} {
	boolQuery := map[string]interface{}{
		"must": []interface{}{
			map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":  query,
					"fields": []string{"title^2", "body", "crop^3", "tags"},
					"type":   "best_fields",
				},
			},
		},
	}
	if location != "" {
		boolQuery["should"] = []interface{}{
			map[string]interface{}{
				"match": map[string]interface{}{
					"regions": map[string]interface{}{"query": location, "boost": 1.5},
				},
			},
		}
	}
	return map[string]interface{}{"query": map[string]interface{}{"bool": boolQuery}}
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		MaxScore *float64 `json:"max_score"`
		Hits     []struct {
			ID     string                 `json:"_id"`
			Score  *float64               `json:"_score"`
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (a *Adapter) toRecords(res searchResponse) []models.Record {
	maxScore := 0.0
	if res.Hits.MaxScore != nil {
		maxScore = *res.Hits.MaxScore
	}

	records := make([]models.Record, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		if hit.Source == nil {
			continue
		}
		rec := models.EvidenceFromMap(hit.Source)
		if rec.Title == "" && rec.Body == "" {
			continue
		}
		if rec.SourceID == "" {
			rec.SourceID = a.index
		}
		if rec.Kind == "" {
			rec.Kind = "knowledge"
		}
		if hit.Score != nil && maxScore > 0 {
			rec.ScoreHint = models.Clamp01(relevanceWeight * *hit.Score / maxScore)
		}
		if rec.Metadata == nil {
			rec.Metadata = map[string]interface{}{}
		}
		rec.Metadata["document_id"] = hit.ID
		records = append(records, rec)
	}
	return records
}
