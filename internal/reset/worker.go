package reset

import (
	"context"
	"errors"
	"log"

	"thermoband-cloud/internal/observability/metrics"
)

// Worker drains a bounded queue of reset tasks. Tasks are fire-and-forget
// with respect to the request handler: the handler enqueues after the device
// response is built and never waits for the outcome.
type Worker struct {
	tasks   chan string
	service *Service
	logger  *log.Logger
}

// NewWorker constructs a worker with a bounded queue.
func NewWorker(service *Service, queueSize int, logger *log.Logger) (*Worker, error) {
	if service == nil {
		return nil, errors.New("reset worker: nil service")
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Worker{
		tasks:   make(chan string, queueSize),
		service: service,
		logger:  logger,
	}, nil
}

// Enqueue hands a device to the worker without blocking. Returns false when
// the queue is full and the task was dropped; a later manual reset attempt
// can still clean up.
func (w *Worker) Enqueue(macAddress string) bool {
	if w == nil || macAddress == "" {
		return false
	}
	select {
	case w.tasks <- macAddress:
		metrics.SetResetQueueDepth(len(w.tasks))
		return true
	default:
		metrics.IncResetTask(metrics.ResetResultDropped)
		return false
	}
}

// Start drains the queue until ctx is cancelled. A task that has started is
// run to completion on a detached context; its failure is logged, never
// retried.
func (w *Worker) Start(ctx context.Context) {
	if w == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case macAddress := <-w.tasks:
			metrics.SetResetQueueDepth(len(w.tasks))
			result, err := w.service.PerformReset(context.Background(), macAddress)
			if err != nil {
				metrics.IncResetTask(metrics.ResetResultFailed)
				w.logger.Printf("reset worker: %v", err)
				continue
			}
			switch result {
			case ResultCompleted:
				metrics.IncResetTask(metrics.ResetResultCompleted)
			default:
				metrics.IncResetTask(metrics.ResetResultNoop)
			}
		}
	}
}
