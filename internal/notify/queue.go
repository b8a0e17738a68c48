package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Freeeeeet/booking_api/internal/model"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypeStatusChange = "appointment:status_change"

// NewStatusChangeTask упаковывает уведомление в задачу asynq
func NewStatusChangeTask(change StatusChange, queue string) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(change)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeStatusChange, b)
	opts := []asynq.Option{
		asynq.MaxRetry(5),
		asynq.Timeout(30 * time.Second),
	}
	if queue != "" {
		opts = append(opts, asynq.Queue(queue))
	}
	return task, opts, nil
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueDispatcher ставит уведомления в очередь Redis, доставляет их воркер
type QueueDispatcher struct {
	client  enqueuer
	queue   string
	timeout time.Duration
	logger  *zap.Logger
}

func NewQueueDispatcher(client *asynq.Client, queue string, logger *zap.Logger) *QueueDispatcher {
	return &QueueDispatcher{
		client:  client,
		queue:   queue,
		timeout: 3 * time.Second,
		logger:  logger,
	}
}

func (d *QueueDispatcher) NotifyStatusChange(ctx context.Context, details *model.AppointmentDetails, status model.AppointmentStatus) {
	change := NewStatusChange(details, status)

	task, opts, err := NewStatusChangeTask(change, d.queue)
	if err != nil {
		d.logger.Error("Failed to build notification task", zap.Int64("appointment_id", change.AppointmentID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	info, err := d.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		d.logger.Error("Failed to enqueue notification",
			zap.Int64("appointment_id", change.AppointmentID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return
	}

	d.logger.Debug("Notification enqueued",
		zap.Int64("appointment_id", change.AppointmentID),
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
	)
}

// HandleStatusChangeTask обработчик задачи для asynq.ServeMux
func HandleStatusChangeTask(deliverer *Deliverer, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var change StatusChange
		if err := json.Unmarshal(task.Payload(), &change); err != nil {
			logger.Error("Invalid notification payload", zap.Error(err))
			return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
		}

		return deliverer.Deliver(ctx, change)
	}
}
