// Package mailer is the best-effort email side channel. Core transactions
// enqueue and move on; delivery happens on a background broker goroutine
// and failures are logged, never propagated.
package mailer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Email is a templated message for the delivery sink.
type Email struct {
	To         string
	TemplateID string
	Fields     map[string]string

	// OrderID, when set, identifies the order whose email_sent flag should
	// be toggled after a successful send.
	OrderID *uuid.UUID
}

// Sender performs the actual delivery.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// LogSender is a Sender that only logs. The deployment has no SMTP
// relay configured; swapping in a real provider means implementing Sender.
type LogSender struct {
	Logger *zap.Logger
}

func (s *LogSender) Send(_ context.Context, email Email) error {
	s.Logger.Info("Email dispatched",
		zap.String("to", email.To),
		zap.String("template_id", email.TemplateID),
		zap.Any("fields", email.Fields),
	)
	return nil
}

// MarkSentFunc records that an order's confirmation mail went out.
type MarkSentFunc func(ctx context.Context, orderID uuid.UUID) error

// Dispatcher queues emails and delivers them asynchronously. Enqueue never
// blocks the caller; backlog is drained by a single broker goroutine.
type Dispatcher struct {
	mu           sync.Mutex
	backlog      []Email
	notify       chan struct{}
	shuttingDown atomic.Bool
	done         chan struct{}

	sender   Sender
	markSent MarkSentFunc
	logger   *zap.Logger

	enqueued  atomic.Uint64
	delivered atomic.Uint64
}

// NewDispatcher creates a Dispatcher. markSent may be nil.
func NewDispatcher(sender Sender, markSent MarkSentFunc, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		sender:   sender,
		markSent: markSent,
		logger:   logger,
	}
}

// Start runs the broker loop until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	go d.broker(ctx)
}

func (d *Dispatcher) broker(ctx context.Context) {
	defer close(d.done)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		d.flush(ctx)
		select {
		case <-ctx.Done():
			// Drain whatever was enqueued before shutdown.
			d.CloseIntake()
			d.flush(context.Background())
			return
		case <-d.notify:
		case <-ticker.C:
		}
	}
}

func (d *Dispatcher) flush(ctx context.Context) {
	for {
		d.mu.Lock()
		if len(d.backlog) == 0 {
			d.mu.Unlock()
			return
		}
		email := d.backlog[0]
		d.backlog = d.backlog[1:]
		d.mu.Unlock()

		d.deliver(ctx, email)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, email Email) {
	sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := d.sender.Send(sendCtx, email); err != nil {
		// Best-effort by contract: log and drop.
		d.logger.Warn("Email delivery failed",
			zap.String("to", email.To),
			zap.String("template_id", email.TemplateID),
			zap.Error(err),
		)
		return
	}

	d.delivered.Add(1)

	if email.OrderID != nil && d.markSent != nil {
		if err := d.markSent(sendCtx, *email.OrderID); err != nil {
			d.logger.Warn("Failed to flag order email as sent",
				zap.String("order_id", email.OrderID.String()),
				zap.Error(err),
			)
		}
	}
}

// Enqueue adds an email to the backlog. Returns false if the dispatcher
// is shutting down and no longer accepts mail.
func (d *Dispatcher) Enqueue(email Email) bool {
	if d.shuttingDown.Load() {
		return false
	}
	d.enqueued.Add(1)

	d.mu.Lock()
	d.backlog = append(d.backlog, email)
	d.mu.Unlock()

	select {
	case d.notify <- struct{}{}:
	default:
	}
	return true
}

// CloseIntake disallows future enqueues.
func (d *Dispatcher) CloseIntake() { d.shuttingDown.Store(true) }

// Wait blocks until the broker has exited.
func (d *Dispatcher) Wait() { <-d.done }

// Counters reports enqueued and delivered totals.
func (d *Dispatcher) Counters() (enqueued, delivered uint64) {
	return d.enqueued.Load(), d.delivered.Load()
}

// BacklogSize returns the number of emails not yet handed to the sender.
func (d *Dispatcher) BacklogSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.backlog)
}
