package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fleetdesk/internal/database"
	"fleetdesk/internal/events"
	"fleetdesk/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AuditSink receives booking lifecycle events drained from the audit queue.
// The production sink appends rows to the Google Sheets register.
type AuditSink interface {
	AppendEvent(ctx context.Context, eventType string, payload events.BookingEventPayload) error
}

// AuditWorker drains the audit_queue table and delivers each event to the
// sink, with exponential backoff on failure. Tasks that exhaust their retries
// are marked failed and pushed to a redis dead-letter list for inspection.
type AuditWorker struct {
	db            *database.DB
	sink          AuditSink
	redis         *redis.Client
	retryPolicy   RetryPolicy
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

// NewAuditWorker builds a worker with sane defaults.
func NewAuditWorker(db *database.DB, sink AuditSink, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *AuditWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &AuditWorker{
		db:            db,
		sink:          sink,
		redis:         redisClient,
		retryPolicy:   retry,
		deadLetterKey: "audit:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     models.WorkerQueueSize / 50,
		logger:        logger,
	}
}

// SetPollInterval overrides the queue polling period.
func (w *AuditWorker) SetPollInterval(d time.Duration) {
	if d > 0 {
		w.pollInterval = d
	}
}

// SetBatchSize overrides how many tasks are claimed per poll.
func (w *AuditWorker) SetBatchSize(n int) {
	if n > 0 {
		w.batchSize = n
	}
}

// Start launches main loop; stops when ctx is done.
func (w *AuditWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("audit worker started")
	defer w.logger.Info().Msg("audit worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		processed, err := w.DrainOnce(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("fetch pending audit tasks")
		}
		if processed == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.pollInterval):
			}
		}
	}
}

// DrainOnce claims one batch of pending tasks and processes it. Returns the
// number of tasks handled.
func (w *AuditWorker) DrainOnce(ctx context.Context) (int, error) {
	tasks, err := w.db.GetPendingAuditTasks(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	for i := range tasks {
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks), nil
}

func (w *AuditWorker) processTask(ctx context.Context, task *models.AuditTask) {
	var payload events.BookingEventPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		// Undecodable payloads never become decodable; fail immediately.
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.sink.AppendEvent(ctx, task.EventType, payload); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	if err := w.db.UpdateAuditTaskStatus(ctx, task.ID, "completed", "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark audit task completed")
	}
}

func (w *AuditWorker) retryOrFail(ctx context.Context, task *models.AuditTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		if err := w.db.UpdateAuditTaskStatus(ctx, task.ID, "failed", cause.Error(), nil); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark audit task failed")
		}
		w.pushDeadLetter(ctx, task)
		return
	}

	nextTime := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.db.UpdateAuditTaskStatus(ctx, task.ID, "retry", cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark audit task retry")
	}
}

func (w *AuditWorker) failTask(ctx context.Context, task *models.AuditTask, cause error) {
	if err := w.db.UpdateAuditTaskStatus(ctx, task.ID, "failed", cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark audit task failed")
	}
	w.pushDeadLetter(ctx, task)
}

func (w *AuditWorker) pushDeadLetter(ctx context.Context, task *models.AuditTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("encode deadletter task")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("deadletter push")
	}
}
