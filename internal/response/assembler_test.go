package response

import (
	"context"
	"errors"
	"strings"
	"testing"

	"farm-copilot/internal/common/logger"
	"farm-copilot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocalizer struct {
	prefix string
	err    error
	calls  []string
}

func (f *fakeLocalizer) Localize(_ context.Context, text, lang string) (string, error) {
	f.calls = append(f.calls, lang)
	if f.err != nil {
		return text, f.err
	}
	return f.prefix + text, nil
}

func ranked(source, kind, title, body string, score float64) models.RankedEvidence {
	return models.RankedEvidence{
		EvidenceRecord: models.EvidenceRecord{SourceID: source, Kind: kind, Title: title, Body: body},
		Score:          score,
	}
}

func TestAssemble_EmptyEvidenceApologises(t *testing.T) {
	loc := &fakeLocalizer{prefix: "[te] "}
	a := NewAssembler(loc, logger.NewTestLogger(t))

	answer := a.Assemble(context.Background(), "q", nil, "te")

	assert.Equal(t, ApologyText, answer.AnswerEn)
	assert.Equal(t, "[te] "+ApologyText, answer.AnswerLocal)
	assert.NotNil(t, answer.Sources)
	assert.Empty(t, answer.Sources)
}

func TestAssemble_BuildsShortAndDetailedAnswers(t *testing.T) {
	loc := &fakeLocalizer{prefix: "[hi] "}
	a := NewAssembler(loc, logger.NewTestLogger(t))

	answer := a.Assemble(context.Background(), "maize spacing", []models.RankedEvidence{
		ranked("mock_crop_db", "guide", "Maize spacing", "Plant 75cm between rows.", 0.92),
		ranked("trusted_univ", "article", "Row planting", "Use 25cm within rows.", 0.5),
	}, "hi")

	assert.Equal(t, "Maize spacing", answer.AnswerEn)
	assert.Equal(t, "[hi] Maize spacing", answer.AnswerLocal)
	assert.Equal(t,
		"Source: mock_crop_db (score: 0.92)\nMaize spacing\nPlant 75cm between rows.\n"+
			"\n\n"+
			"Source: trusted_univ (score: 0.5)\nRow planting\nUse 25cm within rows.\n",
		answer.DetailedEn)
	assert.Equal(t, "[hi] "+answer.DetailedEn, answer.DetailedLocal)

	assert.Equal(t, []models.SourceRef{
		{Source: "mock_crop_db", Kind: "guide", Score: 0.92},
		{Source: "trusted_univ", Kind: "article", Score: 0.5},
	}, answer.Sources)
}

func TestAssemble_UntitledTopResultUsesBodyPrefix(t *testing.T) {
	a := NewAssembler(nil, logger.NewTestLogger(t))

	body := strings.Repeat("ß", 250)
	answer := a.Assemble(context.Background(), "q", []models.RankedEvidence{ranked("s", "k", "", body, 0.3)}, "en")

	require.True(t, strings.HasSuffix(answer.AnswerEn, "..."))
	assert.Equal(t, 203, len([]rune(answer.AnswerEn)))
	assert.Equal(t, answer.AnswerEn, answer.AnswerLocal)

	short := a.Assemble(context.Background(), "q", []models.RankedEvidence{ranked("s", "k", "", "Short body", 0.3)}, "en")
	assert.Equal(t, "Short body...", short.AnswerEn)
}

func TestAssemble_LocalizationFailureFallsBackToEnglish(t *testing.T) {
	loc := &fakeLocalizer{err: errors.New("translation quota exceeded")}
	a := NewAssembler(loc, logger.NewTestLogger(t))

	answer := a.Assemble(context.Background(), "q", []models.RankedEvidence{ranked("s", "k", "Title", "Body", 1)}, "sw")

	assert.Equal(t, answer.AnswerEn, answer.AnswerLocal)
	assert.Equal(t, answer.DetailedEn, answer.DetailedLocal)
	assert.Equal(t, []string{"sw", "sw"}, loc.calls)
}
