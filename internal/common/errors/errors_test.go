package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCode_WalksWrappedChain(t *testing.T) {
	err := fmt.Errorf("normalize: %w", NewEmptyInputError())

	assert.True(t, IsCode(err, ErrCodeEmptyInput))
	assert.False(t, IsCode(err, ErrCodeResourceNotFound))
	assert.False(t, IsCode(stderrors.New("plain"), ErrCodeEmptyInput))
}

func TestStandardError_UnwrapsCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewAdapterFailureError("weather", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "ADAPTER_FAILURE")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestNormalize_WrapsUnknownErrors(t *testing.T) {
	stdErr := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, stdErr.Code)
	assert.Equal(t, "boom", stdErr.Details)

	original := NewTranscriptionError(nil)
	assert.Same(t, original, Normalize(original))
	assert.Equal(t, "speech recognition could not understand the audio", original.Details)
}

func TestIsValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"empty input", NewEmptyInputError(), true},
		{"missing resource", NewResourceNotFoundError("audio", "/tmp/x.wav"), true},
		{"transcription", NewTranscriptionError(stderrors.New("garbled")), true},
		{"invalid request", NewInvalidRequestError("text: wrong type"), true},
		{"adapter failure", NewAdapterFailureError("agro", stderrors.New("503")), false},
		{"plain error", stderrors.New("x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidationError(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(NewEmptyInputError()))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(NewInvalidRequestError("")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NewResourceNotFoundError("image", "a.jpg")))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(NewTranscriptionError(nil)))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatus(NewTimeoutError("speech", stderrors.New("deadline"))))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(stderrors.New("x")))
}

func TestConvertToBPMNError(t *testing.T) {
	t.Run("retryable infrastructure error keeps retries", func(t *testing.T) {
		bpmnErr := ConvertToBPMNError(NewExternalServiceError("translator", stderrors.New("502")))
		assert.Equal(t, "EXTERNAL_SERVICE_ERROR", bpmnErr.Code)
		assert.Equal(t, 3, bpmnErr.Retries)
		assert.True(t, bpmnErr.Retryable)
	})

	t.Run("validation error is never retried", func(t *testing.T) {
		bpmnErr := ConvertToBPMNError(NewEmptyInputError())
		assert.Equal(t, "EMPTY_INPUT", bpmnErr.Code)
		assert.Equal(t, 0, bpmnErr.Retries)

		vars := bpmnErr.ToErrorVariables()
		assert.Equal(t, "EMPTY_INPUT", vars["errorCode"])
		assert.Equal(t, "EMPTY_INPUT", vars["originalErrorCode"])
		assert.Contains(t, vars, "timestamp")
	})
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeEmptyInput))
	assert.Equal(t, "LANGUAGE", GetErrorCategory(ErrCodeTranslationDegraded))
	assert.Equal(t, "LANGUAGE", GetErrorCategory(ErrCodeTranscriptionFailed))
	assert.Equal(t, "ADAPTER", GetErrorCategory(ErrCodeAdapterFailure))
	assert.Equal(t, "FUSION", GetErrorCategory(ErrCodeFusionAnalysisFailed))
	assert.Equal(t, "INFRASTRUCTURE", GetErrorCategory(ErrCodeTimeout))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestWithMetadata(t *testing.T) {
	err := NewEmptyInputError().WithMetadata("requestId", "abc")
	assert.Equal(t, "abc", err.Metadata["requestId"])
}
