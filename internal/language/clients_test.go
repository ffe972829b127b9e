package language

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	apperrors "farm-copilot/internal/common/errors"
	commonhttp "farm-copilot/internal/common/http"
	"farm-copilot/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTranslator_Translate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/translate", r.URL.Path)
		var req translateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "fr", req.Source)
		assert.Equal(t, "en", req.Target)
		assert.Equal(t, "text", req.Format)
		assert.Equal(t, "k", req.APIKey)
		_, _ = w.Write([]byte(`{"translatedText":"Good morning"}`))
	}))
	defer server.Close()

	tr := NewHTTPTranslator(commonhttp.NewClient(time.Second), server.URL+"/", "k")
	out, err := tr.Translate(context.Background(), "Bonjour", "fr", "en")
	require.NoError(t, err)
	assert.Equal(t, "Good morning", out)
}

func TestHTTPTranslator_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	tr := NewHTTPTranslator(commonhttp.NewClient(time.Second), server.URL, "")
	_, err := tr.Translate(context.Background(), "Bonjour", "fr", "en")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeExternalService))
}

func TestHTTPTranscriber_Transcribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transcribe", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		file, header, err := r.FormFile("audio")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "question.wav", header.Filename)
		assert.Equal(t, "RIFF", string(data))
		_, _ = w.Write([]byte(`{"transcript":"when to sow wheat"}`))
	}))
	defer server.Close()

	stt := NewHTTPTranscriber(commonhttp.NewClient(time.Second), server.URL, "secret")
	out, err := stt.Transcribe(context.Background(), writeAudio(t))
	require.NoError(t, err)
	assert.Equal(t, "when to sow wheat", out)
}

func TestHTTPTranscriber_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	stt := NewHTTPTranscriber(commonhttp.NewClient(time.Second), server.URL, "")

	_, err := stt.Transcribe(context.Background(), writeAudio(t))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTranscriptionFailed))

	_, err = stt.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeResourceNotFound))
}

func TestStatisticalDetector(t *testing.T) {
	d := NewStatisticalDetector()

	lang, err := d.Detect("Comment puis-je planter des tomates dans mon jardin cette année?")
	require.NoError(t, err)
	assert.Equal(t, "fr", lang)

	_, err = d.Detect("12345 67890")
	assert.Error(t, err)

	lang, err = d.Detect("धान की फसल में ब्लास्ट रोग का इलाज क्या है")
	require.NoError(t, err)
	assert.NotEqual(t, "en", lang)
}

func TestStatisticalDetector_ShortEnglishIsNotMisread(t *testing.T) {
	d := NewStatisticalDetector()
	gw := NewGateway(d, nil, nil, logger.NewNoOpLogger())

	for _, q := range []string{
		"How do I water tomatoes?",
		"What fertilizer for cotton",
		"When should I sow wheat",
	} {
		t.Run(q, func(t *testing.T) {
			if lang, err := d.Detect(q); err == nil {
				assert.Equal(t, "en", lang)
			}
			assert.Equal(t, English, gw.DetectLanguage(q))
		})
	}
}
