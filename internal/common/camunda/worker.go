package camunda

import (
	"context"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"farm-copilot/internal/common/logger"
)

// JobHandler is implemented by every job worker in the service.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// JobRecorder receives the outcome of every handled job.
type JobRecorder interface {
	RecordJobProcessed(ctx context.Context, status string)
	RecordJobDuration(ctx context.Context, duration time.Duration, status string)
}

// WorkerOptions controls how a job worker polls the broker.
type WorkerOptions struct {
	MaxJobsActive int
	Timeout       time.Duration
}

// Worker is an open subscription for one task type.
type Worker struct {
	jobWorker worker.JobWorker
	logger    logger.Logger
	taskType  string
}

// OpenWorker subscribes handler to taskType on the broker.
func OpenWorker(client zbc.Client, taskType string, opts WorkerOptions, handler JobHandler, log logger.Logger) *Worker {
	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(handler.Handle).
		MaxJobsActive(opts.MaxJobsActive).
		Timeout(opts.Timeout).
		Name(fmt.Sprintf("%s-worker", taskType)).
		Open()

	log.Info("worker registered", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": opts.MaxJobsActive,
		"timeout":       opts.Timeout.String(),
	})

	return &Worker{jobWorker: jobWorker, logger: log, taskType: taskType}
}

func (w *Worker) TaskType() string {
	return w.taskType
}

// Close stops polling and waits for in-flight jobs to finish.
func (w *Worker) Close() {
	if w == nil || w.jobWorker == nil {
		return
	}
	w.logger.Info("stopping worker", map[string]interface{}{"taskType": w.taskType})
	w.jobWorker.Close()
	w.jobWorker.AwaitClose()
	w.jobWorker = nil
}
