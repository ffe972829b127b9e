// Package response turns ranked evidence into the bilingual answer payload.
package response

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"farm-copilot/internal/common/logger"
	"farm-copilot/internal/models"
)

// ApologyText is returned when no evidence survived ranking.
const ApologyText = "I'm sorry — I couldn't find a clear answer. Try rephrasing or ask about something else."

const shortAnswerRunes = 200

// Localizer translates English text into a target language. On failure it
// returns the untranslated text along with the error.
type Localizer interface {
	Localize(ctx context.Context, text, targetLang string) (string, error)
}

type Assembler struct {
	localizer Localizer
	logger    logger.Logger
}

func NewAssembler(localizer Localizer, log logger.Logger) *Assembler {
	return &Assembler{localizer: localizer, logger: log}
}

// Assemble builds the answer for ranked, which must already be in rank order.
// Localization problems never surface; the English text is used instead.
func (a *Assembler) Assemble(ctx context.Context, queryEn string, ranked []models.RankedEvidence, userLang string) models.Answer {
	if len(ranked) == 0 {
		return models.Answer{
			AnswerEn:    ApologyText,
			AnswerLocal: a.localize(ctx, ApologyText, userLang),
			Sources:     []models.SourceRef{},
		}
	}

	shortEn := shortAnswer(ranked[0].EvidenceRecord)
	detailedEn := detailed(ranked)

	sources := make([]models.SourceRef, 0, len(ranked))
	for _, r := range ranked {
		sources = append(sources, models.SourceRef{Source: r.SourceID, Kind: r.Kind, Score: r.Score})
	}

	a.logger.Debug("answer assembled", map[string]interface{}{
		"query":    queryEn,
		"sources":  len(sources),
		"topScore": ranked[0].Score,
		"language": userLang,
	})

	return models.Answer{
		AnswerEn:      shortEn,
		AnswerLocal:   a.localize(ctx, shortEn, userLang),
		DetailedEn:    detailedEn,
		DetailedLocal: a.localize(ctx, detailedEn, userLang),
		Sources:       sources,
	}
}

func (a *Assembler) localize(ctx context.Context, text, lang string) string {
	if a.localizer == nil {
		return text
	}
	out, err := a.localizer.Localize(ctx, text, lang)
	if err != nil || out == "" {
		a.logger.Warn("localization failed, using English text", map[string]interface{}{
			"language": lang,
			"error":    errString(err),
		})
		return text
	}
	return out
}

// shortAnswer is the title or, without one, the opening of the body.
func shortAnswer(rec models.EvidenceRecord) string {
	if rec.Title != "" {
		return rec.Title
	}
	body := []rune(rec.Body)
	if len(body) > shortAnswerRunes {
		body = body[:shortAnswerRunes]
	}
	return string(body) + "..."
}

func detailed(ranked []models.RankedEvidence) string {
	blocks := make([]string, 0, len(ranked))
	for _, r := range ranked {
		blocks = append(blocks, fmt.Sprintf("Source: %s (score: %s)\n%s\n%s\n",
			r.SourceID, strconv.FormatFloat(r.Score, 'f', -1, 64), r.Title, r.Body))
	}
	return strings.Join(blocks, "\n\n")
}

func errString(err error) string {
	if err == nil {
		return "empty translation"
	}
	return err.Error()
}
