// Package worker implements background task handlers for asynchronous history chart builds.
package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"fxbot/internal/service"
)

// HistoryNotifier delivers a finished build back to the chat that requested it.
type HistoryNotifier interface {
	NotifyHistoryReady(ctx context.Context, chatID, messageID int64, artifact service.Artifact) error
}

// NewHistoryBuildHandler returns a function to handle history build tasks. notifier may be nil.
// A failed build is reported to the chat only on its last attempt, so retries do not
// flip the placeholder to "no data" more than once.
func NewHistoryBuildHandler(svc service.RateServiceInterface, notifier HistoryNotifier, logger *zap.SugaredLogger) func(context.Context, *asynq.Task) error {
	return newHistoryBuildHandler(svc, notifier, logger, isFinalAttempt)
}

func newHistoryBuildHandler(svc service.RateServiceInterface, notifier HistoryNotifier, logger *zap.SugaredLogger, finalAttempt func(context.Context) bool) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload service.BuildHistoryPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logger.Errorw("Invalid task payload", "type", t.Type(), "error", err)
			return nil
		}

		artifact, buildErr := svc.BuildHistory(ctx, payload.Request())
		if buildErr != nil {
			if !finalAttempt(ctx) {
				logger.Warnw("History build failed, will retry", "job_id", payload.JobID, "error", buildErr)
				return buildErr
			}
			logger.Errorw("History build failed", "job_id", payload.JobID, "error", buildErr)
			// the chat still gets a button so the placeholder does not hang
			artifact = service.UnavailableArtifact()
		}

		if notifier != nil {
			if err := notifier.NotifyHistoryReady(ctx, payload.ChatID, payload.MessageID, artifact); err != nil {
				logger.Errorw("History notification failed", "job_id", payload.JobID, "chat_id", payload.ChatID, "error", err)
				if buildErr == nil {
					return err
				}
			}
		}
		if buildErr != nil {
			return buildErr
		}

		logger.Infow("Task completed", "job_id", payload.JobID, "token", artifact.Token, "status", artifact.Status.String())
		return nil
	}
}

// isFinalAttempt reports whether asynq will not retry the running task again.
// Outside a worker (no task metadata) every attempt is final.
func isFinalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}

// AsynqEnqueuer is responsible for enqueuing tasks to an Asynq queue with specific configurations for retries and timeouts.
type AsynqEnqueuer struct {
	client   *asynq.Client
	maxRetry int
	timeout  time.Duration
}

// NewAsynqEnqueuer creates a new AsynqEnqueuer with the given client, retry limit, and task timeout duration.
func NewAsynqEnqueuer(client *asynq.Client, maxRetry int, timeout time.Duration) *AsynqEnqueuer {
	return &AsynqEnqueuer{
		client:   client,
		maxRetry: maxRetry,
		timeout:  timeout,
	}
}

// EnqueueHistoryTask enqueues a history build task with the specified payload and context using Asynq.
func (e *AsynqEnqueuer) EnqueueHistoryTask(ctx context.Context, payload service.BuildHistoryPayload) error {
	task, err := NewHistoryBuildTask(payload, e.maxRetry, e.timeout)
	if err != nil {
		return err
	}

	_, err = e.client.EnqueueContext(ctx, task)
	return err
}

// NewHistoryBuildTask wraps payload into an Asynq task.
func NewHistoryBuildTask(payload service.BuildHistoryPayload, maxRetry int, timeout time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	opts := []asynq.Option{asynq.MaxRetry(maxRetry)}
	if timeout > 0 {
		opts = append(opts, asynq.Timeout(timeout))
	}
	return asynq.NewTask(service.TaskTypeBuildHistory, data, opts...), nil
}

var _ service.HistoryEnqueuer = (*AsynqEnqueuer)(nil)
