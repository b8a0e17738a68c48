package app

import (
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/Freeeeeet/booking_api/internal/notify"
)

// NotificationWorker обрабатывает задачи уведомлений из очереди asynq
type NotificationWorker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

// NewNotificationWorker создаёт обработчик очереди queue
func NewNotificationWorker(redisOpt asynq.RedisClientOpt, queue string, concurrency int, deliverer *notify.Deliverer, logger *zap.Logger) *NotificationWorker {
	if concurrency <= 0 {
		concurrency = 1
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
		Logger:      logger.Sugar(),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(notify.TypeStatusChange, notify.HandleStatusChangeTask(deliverer, logger))

	return &NotificationWorker{
		server: server,
		mux:    mux,
		logger: logger,
	}
}

// Start запускает обработку задач в фоне
func (w *NotificationWorker) Start() error {
	w.logger.Info("Starting notification worker")
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start notification worker: %w", err)
	}
	return nil
}

// Stop дожидается завершения текущих задач и останавливает обработку
func (w *NotificationWorker) Stop() {
	w.logger.Info("Stopping notification worker")
	w.server.Shutdown()
}
