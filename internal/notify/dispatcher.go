package notify

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/booking_api/internal/model"
	"go.uber.org/zap"
)

// AsyncDispatcher доставляет уведомления фоновыми воркерами внутри процесса.
// Если буфер заполнен, уведомление отбрасывается с записью в лог.
type AsyncDispatcher struct {
	deliverer *Deliverer
	queue     chan StatusChange
	timeout   time.Duration
	logger    *zap.Logger
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewAsyncDispatcher(deliverer *Deliverer, workers, buffer int, timeout time.Duration, logger *zap.Logger) *AsyncDispatcher {
	if workers <= 0 {
		workers = 1
	}
	if buffer <= 0 {
		buffer = 64
	}
	d := &AsyncDispatcher{
		deliverer: deliverer,
		queue:     make(chan StatusChange, buffer),
		timeout:   timeout,
		logger:    logger,
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

func (d *AsyncDispatcher) NotifyStatusChange(_ context.Context, details *model.AppointmentDetails, status model.AppointmentStatus) {
	change := NewStatusChange(details, status)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("Notification dispatcher stopped, dropping notification",
			zap.Int64("appointment_id", change.AppointmentID),
		)
		return
	}

	select {
	case d.queue <- change:
	default:
		d.logger.Warn("Notification queue is full, dropping notification",
			zap.Int64("appointment_id", change.AppointmentID),
			zap.String("status", string(status)),
		)
	}
}

// Stop дожидается доставки уже принятых уведомлений
func (d *AsyncDispatcher) Stop() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *AsyncDispatcher) worker() {
	defer d.wg.Done()
	for change := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := d.deliverer.Deliver(ctx, change); err != nil {
			d.logger.Error("Failed to deliver notification",
				zap.Int64("appointment_id", change.AppointmentID),
				zap.Error(err),
			)
		}
		cancel()
	}
}
