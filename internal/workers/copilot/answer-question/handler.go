package answerquestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"farm-copilot/internal/common/camunda"
	"farm-copilot/internal/common/config"
	"farm-copilot/internal/common/errors"
	"farm-copilot/internal/common/logger"
	"farm-copilot/internal/common/metrics"
	"farm-copilot/internal/common/validation"
	"farm-copilot/internal/models"
	"farm-copilot/internal/pipeline"
)

const TaskType = "copilot.question.answer"

// Asker answers one question end to end.
type Asker interface {
	Ask(ctx context.Context, req models.Request) (*pipeline.Result, error)
}

type Handler struct {
	config     *Config
	logger     logger.Logger
	camunda    *camunda.Client
	asker      Asker
	validator  *validation.Validator
	errHandler *errors.ErrorHandler
	recorder   camunda.JobRecorder
	jobWorker  *camunda.Worker
}

type HandlerOptions struct {
	AppConfig    *config.Config
	Camunda      *camunda.Client
	CustomConfig *Config
	Asker        Asker
	Recorder     camunda.JobRecorder
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for answer-question: %w", err)
	}
	if opts.Asker == nil {
		return nil, fmt.Errorf("answer-question requires a pipeline")
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json", "stdout")
	}
	log = log.With(map[string]interface{}{"worker": TaskType})

	return &Handler{
		config:     workerConfig,
		logger:     log,
		camunda:    opts.Camunda,
		asker:      opts.Asker,
		validator:  validation.MustValidator(inputSchema),
		errHandler: errors.NewErrorHandler(log),
		recorder:   opts.Recorder,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing question", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.failJob(ctx, client, job, err)
		h.record(ctx, startTime, "failed")
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		h.record(ctx, startTime, "failed")
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	h.record(ctx, startTime, "completed")
}

func (h *Handler) record(ctx context.Context, start time.Time, status string) {
	if h.recorder == nil {
		return
	}
	h.recorder.RecordJobProcessed(ctx, status)
	h.recorder.RecordJobDuration(ctx, time.Since(start), status)
}

// Execute answers the question carried by input.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.asker.Ask(ctx, input.request())
	if err != nil {
		return nil, err
	}
	return &Output{
		RequestID:        result.RequestID,
		DetectedLanguage: result.Query.DetectedLanguage,
		Answer:           result.Answer,
		Analysis:         result.Analysis,
	}, nil
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("job variables are not a JSON object: %v", err))
	}

	result, err := h.validator.Validate(variables)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if !result.Valid {
		return nil, errors.NewInvalidRequestError(strings.Join(result.GetErrorMessages(), "; "))
	}

	input := &Input{}
	input.Text, _ = variables["text"].(string)
	input.AudioPath, _ = variables["audioPath"].(string)
	input.ImagePath, _ = variables["imagePath"].(string)
	input.Location, _ = variables["location"].(string)
	return input, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(output.variables())
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	send := func(ctx context.Context) (interface{}, error) { return request.Send(ctx) }
	if _, err := h.camunda.ExecuteWithRetry(ctx, send, "complete "+TaskType); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	h.logger.Info("question answered", map[string]interface{}{
		"jobKey":    job.GetKey(),
		"requestId": output.RequestID,
		"sources":   len(output.Answer.Sources),
		"urgent":    output.Analysis.Urgent,
	})
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
	h.errHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Register() error {
	if !h.config.Enabled {
		h.logger.Info("worker is disabled, skipping registration", nil)
		return nil
	}
	if h.camunda == nil {
		return fmt.Errorf("answer-question: no camunda client")
	}

	h.jobWorker = camunda.OpenWorker(h.camunda.GetClient(), TaskType, camunda.WorkerOptions{
		MaxJobsActive: h.config.MaxJobsActive,
		Timeout:       h.config.Timeout,
	}, h, h.logger)
	return nil
}

func (h *Handler) Close() {
	h.jobWorker.Close()
	h.jobWorker = nil
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}
