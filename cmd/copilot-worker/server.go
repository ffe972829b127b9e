package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "farm-copilot/internal/common/errors"
	"farm-copilot/internal/common/logger"
	"farm-copilot/internal/common/validation"
	"farm-copilot/internal/models"
	"farm-copilot/internal/pipeline"
)

const maxRequestBody = 1 << 20

type asker interface {
	Ask(ctx context.Context, req models.Request) (*pipeline.Result, error)
}

// readinessCheck reports whether one backing service is reachable.
type readinessCheck struct {
	name string
	fn   func(ctx context.Context) error
}

type server struct {
	asker     asker
	validator *validation.Validator
	checks    []readinessCheck
	logger    logger.Logger
}

func newServer(a asker, checks []readinessCheck, log logger.Logger) *server {
	return &server{
		asker:     a,
		validator: validation.MustValidator(validation.AskRequestSchema),
		checks:    checks,
		logger:    log,
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.health)
	mux.HandleFunc("/ready", s.ready)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/ask", s.ask)
	return mux
}

type askResponse struct {
	RequestID        string `json:"request_id"`
	DetectedLanguage string `json:"detected_language"`
	models.Answer
	Analysis models.Analysis `json:"analysis"`
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details,omitempty"`
	} `json:"error"`
}

func (s *server) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"status": "method not allowed"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		s.writeError(w, apperrors.NewInvalidRequestError("could not read request body"))
		return
	}

	result, err := s.validator.Validate(body)
	if err != nil {
		s.writeError(w, apperrors.NewInvalidRequestError("request body is not valid JSON"))
		return
	}
	if !result.Valid {
		s.writeError(w, apperrors.NewInvalidRequestError(strings.Join(result.GetErrorMessages(), "; ")))
		return
	}

	var req models.Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, apperrors.NewInvalidRequestError(err.Error()))
		return
	}

	res, err := s.asker.Ask(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		RequestID:        res.RequestID,
		DetectedLanguage: res.Query.DetectedLanguage,
		Answer:           res.Answer,
		Analysis:         res.Analysis,
	})
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	failing := map[string]string{}
	for _, c := range s.checks {
		if err := c.fn(ctx); err != nil {
			failing[c.name] = err.Error()
		}
	}
	if len(failing) > 0 {
		s.logger.Warn("readiness check failed", map[string]interface{}{"failing": failing})
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "not ready",
			"failing": failing,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	stdErr := apperrors.Normalize(err)
	status := apperrors.HTTPStatus(stdErr)
	if status >= http.StatusInternalServerError {
		s.logger.Error("ask failed", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"error":     err.Error(),
		})
	}

	var body errorBody
	body.Error.Code = string(stdErr.Code)
	body.Error.Message = stdErr.Message
	body.Error.Details = stdErr.Details
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
