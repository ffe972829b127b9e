package models

import "strings"

// Query is built once per request by the language gateway and not changed afterwards.
type Query struct {
	RawText          string `json:"raw_text"`
	DetectedLanguage string `json:"detected_language"`
	NormalizedText   string `json:"normalized_english_text"`
}

// Request is the inbound question. At least one of Text or AudioPath is required.
type Request struct {
	Text      string `json:"text,omitempty"`
	AudioPath string `json:"audio_path,omitempty"`
	ImagePath string `json:"image_path,omitempty"`
	Location  string `json:"location,omitempty"`
}

// IsAudio reports whether the request should go through speech-to-text.
func (r Request) IsAudio() bool {
	return strings.TrimSpace(r.Text) == "" && strings.TrimSpace(r.AudioPath) != ""
}
