package language

import (
	"errors"
	"unicode"

	"github.com/abadojack/whatlanggo"
)

// StatisticalDetector identifies languages with trigram statistics.
type StatisticalDetector struct{}

func NewStatisticalDetector() *StatisticalDetector {
	return &StatisticalDetector{}
}

// Detect returns the ISO 639-1 code of text. An unreliable guess for Latin
// script is an error, so short English questions fall back to English
// instead of being routed through translation. Other scripts cannot be
// English, and the best guess there is kept.
func (d *StatisticalDetector) Detect(text string) (string, error) {
	info := whatlanggo.Detect(text)
	if info.Script == nil || info.Lang < 0 {
		return "", errors.New("no known script in text")
	}
	if info.Script == unicode.Latin && !info.IsReliable() {
		return "", errors.New("latin-script detection is unreliable")
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return "", errors.New("language could not be identified")
	}
	return code, nil
}
