package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zombor/tindahan/internal/edge"
	"github.com/zombor/tindahan/internal/interpret"
)

// Outbox is the queue of recorded transactions the hub has not accepted yet.
// GetTransaction reports a missing transaction with edge.ErrNotFound.
type Outbox interface {
	ListOutbox() ([]string, error)
	GetTransaction(id string) (*interpret.TransactionOutput, error)
	RemoveOutbox(id string) error
}

// Sender delivers one transaction to the hub
type Sender interface {
	Send(ctx context.Context, tx *interpret.TransactionOutput) error
}

// Forwarder drains the outbox to the hub from a single goroutine. It runs
// after every Notify and on each tick, so deliveries that failed while the
// hub was unreachable are retried.
type Forwarder struct {
	outbox   Outbox
	sender   Sender
	interval time.Duration
	wake     chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewForwarder creates a Forwarder that retries every interval
func NewForwarder(outbox Outbox, sender Sender, interval time.Duration) *Forwarder {
	if interval <= 0 {
		interval = time.Second
	}
	return &Forwarder{
		outbox:   outbox,
		sender:   sender,
		interval: interval,
		wake:     make(chan struct{}, 1),
	}
}

// Notify asks for a drain soon. It never blocks; notifications that arrive
// while one is already pending are merged.
func (f *Forwarder) Notify(id string) {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Start launches the delivery goroutine. It stops when ctx is cancelled or Stop is called.
func (f *Forwarder) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done != nil {
		return
	}

	ctx, f.cancel = context.WithCancel(ctx)
	f.done = make(chan struct{})
	go f.run(ctx, f.done)
}

// Stop cancels the delivery goroutine and waits for it to exit
func (f *Forwarder) Stop() {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.cancel, f.done = nil, nil
	f.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (f *Forwarder) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	slog.Info("Hub forwarder started", "interval", f.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Hub forwarder stopped")
			return
		case <-f.wake:
		case <-ticker.C:
		}

		if _, err := f.Flush(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("Hub delivery failed, will retry", "error", err)
		}
	}
}

// Flush sends every queued transaction in order and returns how many the hub
// accepted. It stops at the first failed send and leaves the rest queued.
func (f *Forwarder) Flush(ctx context.Context) (int, error) {
	ids, err := f.outbox.ListOutbox()
	if err != nil {
		return 0, fmt.Errorf("listing outbox: %w", err)
	}

	sent := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		tx, err := f.outbox.GetTransaction(id)
		if errors.Is(err, edge.ErrNotFound) {
			slog.Error("Dropping outbox entry without a transaction", "transaction_id", id)
			if err := f.outbox.RemoveOutbox(id); err != nil {
				return sent, fmt.Errorf("removing %s from outbox: %w", id, err)
			}
			continue
		}
		if err != nil {
			slog.Error("Queued transaction cannot be loaded", "transaction_id", id, "error", err)
			continue
		}
		if err := f.sender.Send(ctx, tx); err != nil {
			return sent, fmt.Errorf("sending %s: %w", id, err)
		}
		if err := f.outbox.RemoveOutbox(id); err != nil {
			return sent, fmt.Errorf("removing %s from outbox: %w", id, err)
		}
		sent++
		slog.Debug("Delivered transaction to hub", "transaction_id", id)
	}
	return sent, nil
}
