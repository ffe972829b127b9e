package answerquestion

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"farm-copilot/internal/common/config"
	"farm-copilot/internal/common/errors"
	"farm-copilot/internal/common/logger"
	"farm-copilot/internal/models"
	"farm-copilot/internal/pipeline"
)

type MockAsker struct {
	mock.Mock
}

func (m *MockAsker) Ask(ctx context.Context, req models.Request) (*pipeline.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.Result), args.Error(1)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "farm-advisory",
		ElementId:          "Activity_AnswerQuestion",
		CustomHeaders:      "{}",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func newTestHandler(t *testing.T, asker Asker) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		CustomConfig: DefaultConfig(),
		Asker:        asker,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

func TestNewHandler(t *testing.T) {
	tests := []struct {
		name    string
		opts    HandlerOptions
		wantErr string
	}{
		{
			name: "valid configuration",
			opts: HandlerOptions{CustomConfig: DefaultConfig(), Asker: &MockAsker{}},
		},
		{
			name:    "missing pipeline",
			opts:    HandlerOptions{CustomConfig: DefaultConfig()},
			wantErr: "requires a pipeline",
		},
		{
			name:    "zero timeout",
			opts:    HandlerOptions{CustomConfig: &Config{Enabled: true, MaxJobsActive: 1}, Asker: &MockAsker{}},
			wantErr: "timeout must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Logger = logger.NewNoOpLogger()
			h, err := NewHandler(tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, TaskType, h.GetTaskType())
			assert.True(t, h.IsEnabled())
		})
	}
}

func TestCreateConfigFromAppConfig(t *testing.T) {
	app := &config.Config{Workers: map[string]config.WorkerConfig{
		configKey: {Enabled: false, MaxJobsActive: 12, Timeout: 45000},
	}}

	cfg := createConfigFromAppConfig(app, nil)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 12, cfg.MaxJobsActive)
	assert.Equal(t, 45*time.Second, cfg.Timeout)

	assert.Equal(t, DefaultConfig(), createConfigFromAppConfig(nil, nil))
}

func TestParseInput(t *testing.T) {
	h := newTestHandler(t, &MockAsker{})

	tests := []struct {
		name      string
		variables map[string]interface{}
		want      *Input
		wantErr   bool
	}{
		{
			name:      "text with location and image",
			variables: map[string]interface{}{"text": "leaf spots on tomato", "location": "Pune", "imagePath": "/data/leaf.jpg", "orderId": 7},
			want:      &Input{Text: "leaf spots on tomato", Location: "Pune", ImagePath: "/data/leaf.jpg"},
		},
		{
			name:      "audio only",
			variables: map[string]interface{}{"audioPath": "/data/q.wav"},
			want:      &Input{AudioPath: "/data/q.wav"},
		},
		{
			name:      "neither text nor audio",
			variables: map[string]interface{}{"location": "Pune"},
			wantErr:   true,
		},
		{
			name:      "text of the wrong type",
			variables: map[string]interface{}{"text": 42},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(createMockJob(1, tt.variables))
			if tt.wantErr {
				assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidRequest), "got %v", err)
				assert.True(t, errors.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, input)
		})
	}
}

func TestExecute_MapsPipelineResult(t *testing.T) {
	asker := &MockAsker{}
	asker.On("Ask", mock.Anything, models.Request{Text: "how to stop rice blast", Location: "Cuttack"}).Return(&pipeline.Result{
		RequestID: "req-1",
		Query:     models.Query{DetectedLanguage: "or"},
		Answer: models.Answer{
			AnswerEn:    "Blast management",
			AnswerLocal: "[or] Blast management",
			Sources:     []models.SourceRef{{Source: "crop_knowledge", Kind: "disease", Score: 0.8}},
		},
		Analysis: models.Analysis{Status: models.AnalysisStatusOK, Recommendations: []string{"Monitor"}},
	}, nil)

	h := newTestHandler(t, asker)
	out, err := h.Execute(context.Background(), &Input{Text: "how to stop rice blast", Location: "Cuttack"})
	require.NoError(t, err)
	asker.AssertExpectations(t)

	vars := out.variables()
	assert.Equal(t, "req-1", vars["requestId"])
	assert.Equal(t, "or", vars["detectedLanguage"])
	assert.Equal(t, "[or] Blast management", vars["answerLocal"])
	assert.Equal(t, false, vars["urgent"])
	assert.Equal(t, []string{"Monitor"}, vars["recommendations"])
	sources := vars["sources"].([]map[string]interface{})
	require.Len(t, sources, 1)
	assert.Equal(t, "crop_knowledge", sources[0]["source"])
}

func TestExecute_PropagatesRejection(t *testing.T) {
	asker := &MockAsker{}
	asker.On("Ask", mock.Anything, mock.Anything).Return(nil, errors.NewEmptyInputError())

	h := newTestHandler(t, asker)
	out, err := h.Execute(context.Background(), &Input{Text: " "})
	assert.Nil(t, out)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmptyInput))

	bpmn := errors.ConvertToBPMNError(errors.Normalize(err))
	assert.Zero(t, bpmn.Retries, "rejected input is thrown, not retried")
}

func TestOutputVariables_EmptyRecommendations(t *testing.T) {
	out := &Output{Analysis: models.Analysis{Status: models.AnalysisStatusError}}
	vars := out.variables()
	assert.Equal(t, []string{}, vars["recommendations"])
	assert.Empty(t, vars["sources"])
	assert.Equal(t, models.AnalysisStatusError, vars["analysisStatus"])
}

func TestRegister_DisabledIsNoop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	h, err := NewHandler(HandlerOptions{CustomConfig: cfg, Asker: &MockAsker{}, Logger: logger.NewNoOpLogger()})
	require.NoError(t, err)
	assert.NoError(t, h.Register())
	h.Close()
}
