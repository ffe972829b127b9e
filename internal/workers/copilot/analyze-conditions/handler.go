package analyzeconditions

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
)

const TaskType = "copilot.conditions.analyze"

type Analyzer interface {
	Analyze(weather *models.WeatherReading, soil *models.SoilReading, plant *models.PlantIdentification) models.Analysis
}

type Handler struct {
	config     *Config
	logger     logger.Logger
	camunda    *camunda.Client
	analyzer   Analyzer
	validator  *validation.Validator
	errHandler *errors.ErrorHandler
	recorder   camunda.JobRecorder
	jobWorker  *camunda.Worker
}

type HandlerOptions struct {
	AppConfig    *config.Config
	Camunda      *camunda.Client
	CustomConfig *Config
	Analyzer     Analyzer
	Recorder     camunda.JobRecorder
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for analyze-conditions: %w", err)
	}
	if opts.Analyzer == nil {
		return nil, fmt.Errorf("analyze-conditions requires an analyzer")
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
		analyzer:   opts.Analyzer,
		validator:  validation.MustValidator(validation.ReadingsSchema),
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

	input, err := h.parseInput(job)
	if err != nil {
		h.failJob(ctx, client, job, err)
		h.record(ctx, startTime, "failed")
		return
	}

	output := h.Execute(input)
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

// Execute interprets the readings. An internal fusion failure is reported in
// the analysis status rather than failing the job.
func (h *Handler) Execute(input *Input) *Output {
	return &Output{Analysis: h.analyzer.Analyze(input.Weather, input.Soil, input.Plant)}
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
	if m, ok := variables["weather"].(map[string]interface{}); ok {
		w, err := models.WeatherFromMap(m)
		if err != nil {
			return nil, errors.NewInvalidRequestError("weather: " + err.Error())
		}
		input.Weather = &w
	}
	if m, ok := variables["soil"].(map[string]interface{}); ok {
		s, err := models.SoilFromMap(m)
		if err != nil {
			return nil, errors.NewInvalidRequestError("soil: " + err.Error())
		}
		input.Soil = &s
	}
	if m, ok := variables["plant"].(map[string]interface{}); ok {
		p, err := models.PlantFromMap(m)
		if err != nil {
			return nil, errors.NewInvalidRequestError("plant: " + err.Error())
		}
		input.Plant = &p
	}
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
	h.logger.Info("conditions analyzed", map[string]interface{}{
		"jobKey":   job.GetKey(),
		"status":   output.Analysis.Status,
		"insights": len(output.Analysis.Insights),
		"urgent":   output.Analysis.Urgent,
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
		return fmt.Errorf("analyze-conditions: no camunda client")
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
