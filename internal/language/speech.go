package language

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	apperrors "farm-copilot/internal/common/errors"
	commonhttp "farm-copilot/internal/common/http"
)

// HTTPTranscriber uploads audio to a speech-to-text service that answers
// {"transcript": "..."}.
type HTTPTranscriber struct {
	client  *commonhttp.Client
	baseURL string
	apiKey  string
}

func NewHTTPTranscriber(client *commonhttp.Client, baseURL, apiKey string) *HTTPTranscriber {
	return &HTTPTranscriber{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

type transcribeResponse struct {
	Transcript string `json:"transcript"`
}

func (s *HTTPTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.NewResourceNotFoundError("audio", audioPath)
		}
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("audio", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/transcribe", &body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", apperrors.NewExternalServiceError("speech", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return "", apperrors.NewTranscriptionError(nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", apperrors.NewExternalServiceError("speech",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var out transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode transcript: %w", err)
	}
	return out.Transcript, nil
}
