package engine

import (
	"context"
	"sync"
	"time"

	"zapmenu/pkg/bus"
	"zapmenu/pkg/logger"
	"zapmenu/pkg/observability"
)

const (
	workerQueueSize   = 16
	workerIdleTimeout = 5 * time.Minute
)

// Handler consumes one inbound message. Implemented by Engine.
type Handler interface {
	HandleInbound(ctx context.Context, msg bus.InboundMessage) error
}

// Dispatcher fans inbound messages out to one worker goroutine per user, so
// turns from the same user are processed strictly in order while different
// users never block each other. Workers are created on demand and exit after
// an idle period.
type Dispatcher struct {
	handler Handler
	bus     *bus.MessageBus
	metrics *observability.Metrics

	mu     sync.Mutex
	queues map[string]chan bus.InboundMessage
	wg     sync.WaitGroup
}

func NewDispatcher(handler Handler, mb *bus.MessageBus, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		handler: handler,
		bus:     mb,
		metrics: metrics,
		queues:  make(map[string]chan bus.InboundMessage),
	}
}

// Run consumes the bus until the context is cancelled or the bus closes,
// then waits for in-flight workers to drain.
func (d *Dispatcher) Run(ctx context.Context) error {
	logger.InfoC("dispatch", "Dispatcher started")
	for {
		msg, ok := d.bus.ConsumeInbound(ctx)
		if !ok {
			break
		}
		if d.metrics != nil {
			d.metrics.InboundMessages.Inc()
		}
		d.route(ctx, msg)
	}

	d.wg.Wait()
	logger.InfoC("dispatch", "Dispatcher stopped")
	return ctx.Err()
}

func (d *Dispatcher) route(ctx context.Context, msg bus.InboundMessage) {
	d.mu.Lock()
	q, ok := d.queues[msg.UserID]
	if !ok {
		q = make(chan bus.InboundMessage, workerQueueSize)
		d.queues[msg.UserID] = q
		d.wg.Add(1)
		go d.worker(ctx, msg.UserID, q)
	}

	select {
	case q <- msg:
	default:
		logger.WarnCF("dispatch", "Per-user queue full, dropping message", map[string]interface{}{
			logger.FieldUserID: msg.UserID,
		})
	}
	d.mu.Unlock()
}

func (d *Dispatcher) worker(ctx context.Context, userID string, q chan bus.InboundMessage) {
	defer d.wg.Done()

	idle := time.NewTimer(workerIdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			d.mu.Lock()
			delete(d.queues, userID)
			d.mu.Unlock()
			return

		case msg := <-q:
			if err := d.handler.HandleInbound(ctx, msg); err != nil {
				logger.ErrorCF("dispatch", "Turn failed", map[string]interface{}{
					logger.FieldUserID: userID,
					logger.FieldError:  err.Error(),
				})
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(workerIdleTimeout)

		case <-idle.C:
			// Exit only when nothing slipped into the queue between the
			// timer firing and us taking the lock; route holds the same
			// lock while enqueueing, so this check is race-free.
			d.mu.Lock()
			if len(q) == 0 {
				delete(d.queues, userID)
				d.mu.Unlock()
				return
			}
			d.mu.Unlock()
			idle.Reset(workerIdleTimeout)
		}
	}
}

// WorkerCount reports how many per-user workers are live. Test hook.
func (d *Dispatcher) WorkerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}
