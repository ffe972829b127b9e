// Package language turns user input into an English query and localizes
// generated answers back into the user's language.
package language

import (
	"context"
	"errors"
	"os"
	"strings"
	"unicode"

	apperrors "farm-copilot/internal/common/errors"
	"farm-copilot/internal/common/logger"
	"farm-copilot/internal/common/metrics"
	"farm-copilot/internal/models"
)

// English is the pivot language of the pipeline.
const English = "en"

// Text with fewer non-whitespace characters than this is assumed to be English.
const minDetectableRunes = 3

// Detector identifies the language of a text as an ISO 639-1 code.
type Detector interface {
	Detect(text string) (string, error)
}

// Translator converts text between two ISO 639-1 languages.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Transcriber converts a recorded audio file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

type Gateway struct {
	detector    Detector
	translator  Translator
	transcriber Transcriber
	logger      logger.Logger
}

// NewGateway wires the gateway. A nil translator disables translation in both
// directions; a nil transcriber rejects audio input.
func NewGateway(detector Detector, translator Translator, transcriber Transcriber, log logger.Logger) *Gateway {
	if detector == nil {
		detector = NewStatisticalDetector()
	}
	return &Gateway{
		detector:    detector,
		translator:  translator,
		transcriber: transcriber,
		logger:      log,
	}
}

// Normalize produces the English query for input. When isAudio is set, input
// is a path to an audio file that is transcribed first.
func (g *Gateway) Normalize(ctx context.Context, input string, isAudio bool) (models.Query, error) {
	if strings.TrimSpace(input) == "" {
		return models.Query{}, apperrors.NewEmptyInputError()
	}

	text := input
	if isAudio {
		transcript, err := g.transcribe(ctx, input)
		if err != nil {
			return models.Query{}, err
		}
		text = transcript
	}

	lang := g.DetectLanguage(text)
	query := models.Query{RawText: text, DetectedLanguage: lang, NormalizedText: text}
	if lang == English || g.translator == nil {
		return query, nil
	}

	translated, err := g.translator.Translate(ctx, text, lang, English)
	if err == nil && strings.TrimSpace(translated) == "" {
		err = errors.New("translator returned empty text")
	}
	if err != nil {
		metrics.TranslationFallbacks.WithLabelValues("inbound").Inc()
		g.logger.Warn("query translation failed, continuing with original text", map[string]interface{}{
			"sourceLanguage": lang,
			"error":          err.Error(),
		})
		return query, nil
	}

	query.NormalizedText = translated
	return query, nil
}

// Localize translates English text into target. On failure it returns the
// original text together with a TRANSLATION_DEGRADED error, which callers
// treat as an event rather than a failure.
func (g *Gateway) Localize(ctx context.Context, text, target string) (string, error) {
	target = strings.ToLower(strings.TrimSpace(target))
	if text == "" || target == "" || target == English || g.translator == nil {
		return text, nil
	}

	translated, err := g.translator.Translate(ctx, text, English, target)
	if err == nil && strings.TrimSpace(translated) == "" {
		err = errors.New("translator returned empty text")
	}
	if err != nil {
		metrics.TranslationFallbacks.WithLabelValues("outbound").Inc()
		g.logger.Warn("answer localization failed, returning English text", map[string]interface{}{
			"targetLanguage": target,
			"error":          err.Error(),
		})
		return text, apperrors.NewTranslationDegradedError(target, err)
	}
	return translated, nil
}

// DetectLanguage never fails: short text and detection errors both yield English.
func (g *Gateway) DetectLanguage(text string) string {
	if countNonSpace(text) < minDetectableRunes {
		return English
	}
	lang, err := g.detector.Detect(text)
	if err != nil || lang == "" {
		g.logger.Debug("language detection failed, defaulting to English", map[string]interface{}{
			"error": errString(err),
		})
		return English
	}
	return lang
}

func (g *Gateway) transcribe(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", apperrors.NewResourceNotFoundError("audio", path)
		}
		return "", apperrors.NewTranscriptionError(err)
	}
	if g.transcriber == nil {
		return "", apperrors.NewTranscriptionError(errors.New("speech service not configured"))
	}

	transcript, err := g.transcriber.Transcribe(ctx, path)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeTranscriptionFailed) {
			return "", err
		}
		return "", apperrors.NewTranscriptionError(err)
	}
	if strings.TrimSpace(transcript) == "" {
		return "", apperrors.NewTranscriptionError(nil)
	}
	return transcript, nil
}

func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
