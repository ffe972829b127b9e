// Package pipeline answers a farmer's question end to end: normalize the
// language, gather evidence from every adapter, rank it, interpret the
// structured readings and assemble a bilingual answer.
package pipeline

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"farm-copilot/internal/adapters/plantid"
	apperrors "farm-copilot/internal/common/errors"
	"farm-copilot/internal/common/logger"
	"farm-copilot/internal/common/metrics"
	"farm-copilot/internal/fetch"
	"farm-copilot/internal/models"
)

type Normalizer interface {
	Normalize(ctx context.Context, input string, isAudio bool) (models.Query, error)
}

type Fetcher interface {
	FetchAll(ctx context.Context, adapters []fetch.Adapter, query, location string) []models.Record
}

type Ranker interface {
	Rank(query string, records []models.EvidenceRecord, topK int) []models.RankedEvidence
}

type Analyzer interface {
	Analyze(weather *models.WeatherReading, soil *models.SoilReading, plant *models.PlantIdentification) models.Analysis
}

type Assembler interface {
	Assemble(ctx context.Context, queryEn string, ranked []models.RankedEvidence, userLang string) models.Answer
}

// Notifier receives urgent recommendations. Delivery failures are logged only.
type Notifier interface {
	NotifyUrgent(ctx context.Context, alert models.Alert) error
}

// Recorder receives one observation per answered question.
type Recorder interface {
	RecordAsk(ctx context.Context, duration time.Duration, outcome, language string, evidence int)
}

// Result is everything produced for one question.
type Result struct {
	RequestID string          `json:"request_id"`
	Query     models.Query    `json:"query"`
	Answer    models.Answer   `json:"answer"`
	Analysis  models.Analysis `json:"analysis"`
}

type Copilot struct {
	normalizer Normalizer
	fetcher    Fetcher
	adapters   []fetch.Adapter
	ranker     Ranker
	analyzer   Analyzer
	assembler  Assembler
	topK       int

	notifiers []Notifier
	recorder  Recorder
	logger    logger.Logger
	now       func() time.Time
}

type Option func(*Copilot)

// WithNotifier adds an alert channel. Every channel receives every alert.
func WithNotifier(n Notifier) Option {
	return func(c *Copilot) { c.notifiers = append(c.notifiers, n) }
}

func WithRecorder(r Recorder) Option {
	return func(c *Copilot) { c.recorder = r }
}

// WithTopK overrides the ranking engine's default result count.
func WithTopK(k int) Option {
	return func(c *Copilot) { c.topK = k }
}

func New(
	normalizer Normalizer,
	fetcher Fetcher,
	adapters []fetch.Adapter,
	ranker Ranker,
	analyzer Analyzer,
	assembler Assembler,
	log logger.Logger,
	opts ...Option,
) *Copilot {
	c := &Copilot{
		normalizer: normalizer,
		fetcher:    fetcher,
		adapters:   adapters,
		ranker:     ranker,
		analyzer:   analyzer,
		assembler:  assembler,
		logger:     log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ask answers req. Only input problems are returned as errors: empty input,
// a missing audio or image file, or audio that cannot be transcribed. Every
// downstream failure degrades the answer instead.
func (c *Copilot) Ask(ctx context.Context, req models.Request) (*Result, error) {
	start := c.now()
	requestID := uuid.NewString()
	log := c.logger.With(map[string]interface{}{"requestId": requestID})

	if err := validate(req); err != nil {
		c.finish(ctx, start, "rejected", "", 0)
		return nil, err
	}

	input := req.Text
	if req.IsAudio() {
		input = req.AudioPath
	}
	query, err := c.normalizer.Normalize(ctx, input, req.IsAudio())
	if err != nil {
		log.Warn("question rejected", map[string]interface{}{
			"errorCode": string(apperrors.Normalize(err).Code),
		})
		c.finish(ctx, start, "rejected", "", 0)
		return nil, err
	}

	fetchCtx := ctx
	if req.ImagePath != "" {
		fetchCtx = plantid.WithImagePath(ctx, req.ImagePath)
	}
	records := c.fetcher.FetchAll(fetchCtx, c.adapters, query.NormalizedText, req.Location)
	evidence, weather, soil, plant := split(records)

	var (
		ranked   []models.RankedEvidence
		analysis models.Analysis
		g        errgroup.Group
	)
	g.Go(func() error {
		ranked = c.ranker.Rank(query.NormalizedText, evidence, c.topK)
		return nil
	})
	g.Go(func() error {
		analysis = c.analyzer.Analyze(weather, soil, plant)
		return nil
	})
	_ = g.Wait()

	answer := c.assembler.Assemble(ctx, query.NormalizedText, ranked, query.DetectedLanguage)

	if analysis.Urgent {
		c.raiseAlert(ctx, log, requestID, req, query, analysis)
	}

	log.Info("question answered", map[string]interface{}{
		"language":   query.DetectedLanguage,
		"records":    len(records),
		"evidence":   len(ranked),
		"insights":   len(analysis.Insights),
		"urgent":     analysis.Urgent,
		"durationMs": c.now().Sub(start).Milliseconds(),
	})
	c.finish(ctx, start, outcome(ranked), query.DetectedLanguage, len(ranked))

	return &Result{
		RequestID: requestID,
		Query:     query,
		Answer:    answer,
		Analysis:  analysis,
	}, nil
}

func validate(req models.Request) error {
	if strings.TrimSpace(req.Text) == "" && strings.TrimSpace(req.AudioPath) == "" {
		return apperrors.NewEmptyInputError()
	}
	if req.ImagePath != "" {
		if _, err := os.Stat(req.ImagePath); errors.Is(err, os.ErrNotExist) {
			return apperrors.NewResourceNotFoundError("image", req.ImagePath)
		}
	}
	return nil
}

// split separates ranked evidence from structured readings. Only the first
// reading of each structured kind is used.
func split(records []models.Record) ([]models.EvidenceRecord, *models.WeatherReading, *models.SoilReading, *models.PlantIdentification) {
	var (
		evidence []models.EvidenceRecord
		weather  *models.WeatherReading
		soil     *models.SoilReading
		plant    *models.PlantIdentification
	)
	for _, rec := range records {
		switch r := rec.(type) {
		case models.EvidenceRecord:
			evidence = append(evidence, r)
		case models.WeatherReading:
			if weather == nil {
				weather = &r
			}
		case models.SoilReading:
			if soil == nil {
				soil = &r
			}
		case models.PlantIdentification:
			if plant == nil {
				plant = &r
			}
		case *models.WeatherReading:
			if weather == nil && r != nil {
				w := *r
				weather = &w
			}
		case *models.SoilReading:
			if soil == nil && r != nil {
				so := *r
				soil = &so
			}
		case *models.PlantIdentification:
			if plant == nil && r != nil {
				p := *r
				plant = &p
			}
		}
	}
	return evidence, weather, soil, plant
}

func (c *Copilot) raiseAlert(ctx context.Context, log logger.Logger, requestID string, req models.Request, query models.Query, analysis models.Analysis) {
	if len(c.notifiers) == 0 {
		return
	}
	alert := models.Alert{
		RequestID:       requestID,
		Location:        req.Location,
		Query:           query.NormalizedText,
		Recommendations: analysis.Recommendations,
		Insights:        analysis.Insights,
		RaisedAt:        c.now().UTC(),
	}
	for _, n := range c.notifiers {
		if err := n.NotifyUrgent(ctx, alert); err != nil {
			log.Warn("urgent alert not delivered", map[string]interface{}{
				"errorCode": string(apperrors.Normalize(err).Code),
				"error":     err.Error(),
			})
		}
	}
}

func (c *Copilot) finish(ctx context.Context, start time.Time, outcome, lang string, evidence int) {
	metrics.PipelineRequests.WithLabelValues(outcome).Inc()
	if c.recorder != nil {
		c.recorder.RecordAsk(ctx, c.now().Sub(start), outcome, lang, evidence)
	}
}

func outcome(ranked []models.RankedEvidence) string {
	if len(ranked) == 0 {
		return "no_evidence"
	}
	return "answered"
}
