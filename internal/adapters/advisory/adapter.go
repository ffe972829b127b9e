// Package advisory reads published extension advisories from PostgreSQL.
package advisory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"farm-copilot/internal/common/logger"
	"farm-copilot/internal/models"
)

const (
	Name     = "advisory"
	SourceID = "extension_advisories"

	DefaultLimit = 5

	// regionalHint is the score hint given to advisories issued for the asker's region.
	regionalHint = 0.1
)

const searchAdvisories = `
	SELECT id, crop, title, body, issued_by, region
	FROM crop_advisories
	WHERE to_tsvector('english', title || ' ' || body) @@ plainto_tsquery('english', $1)
	  AND ($2 = '' OR region = '' OR lower(region) = lower($2))
	ORDER BY issued_at DESC
	LIMIT $3`

type Adapter struct {
	db     *sql.DB
	limit  int
	logger logger.Logger
}

func New(db *sql.DB, log logger.Logger) *Adapter {
	return &Adapter{
		db:     db,
		limit:  DefaultLimit,
		logger: log.With(map[string]interface{}{"adapter": Name}),
	}
}

func (a *Adapter) Name() string { return Name }

// Fetch returns the newest advisories matching query, restricted to location
// when one is given. Advisories without a region apply everywhere.
func (a *Adapter) Fetch(ctx context.Context, query, location string) ([]models.Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	location = strings.TrimSpace(location)

	rows, err := a.db.QueryContext(ctx, searchAdvisories, query, location, a.limit)
	if err != nil {
		return nil, fmt.Errorf("query crop_advisories: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var id, crop, title, body, issuedBy, region string
		if err := rows.Scan(&id, &crop, &title, &body, &issuedBy, &region); err != nil {
			return nil, fmt.Errorf("scan advisory: %w", err)
		}

		rec := models.EvidenceRecord{
			SourceID: SourceID,
			Kind:     "advisory",
			Title:    title,
			Body:     body,
			Metadata: map[string]interface{}{
				"id":        id,
				"crop":      crop,
				"issued_by": issuedBy,
				"region":    region,
			},
		}
		if location != "" && strings.EqualFold(region, location) {
			rec.ScoreHint = regionalHint
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate advisories: %w", err)
	}

	a.logger.Debug("advisories loaded", map[string]interface{}{"count": len(records)})
	return records, nil
}
