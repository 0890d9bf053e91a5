package nats

import (
	"context"
	"log/slog"
	"time"

	"github.com/brojonat/genesis/service/session"
)

// EventObserver forwards session events to a Publisher.
type EventObserver struct {
	publisher Publisher
	timeout   time.Duration
	logger    *slog.Logger
}

var _ session.Observer = (*EventObserver)(nil)

// NewEventObserver creates an observer. Publishes slower than timeout are
// abandoned.
func NewEventObserver(publisher Publisher, timeout time.Duration, logger *slog.Logger) *EventObserver {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &EventObserver{
		publisher: publisher,
		timeout:   timeout,
		logger:    logger.With("component", "nats_observer"),
	}
}

// Observe implements session.Observer. Failures are logged and dropped.
func (o *EventObserver) Observe(ctx context.Context, ev session.Event) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	if err := o.publisher.PublishSessionEvent(ctx, FromSessionEvent(ev)); err != nil {
		o.logger.ErrorContext(ctx, "failed to publish session event",
			"session_id", ev.Snapshot.SessionID,
			"seq", ev.Seq,
			"kind", ev.Kind,
			"error", err,
		)
	}

	if ev.Record == nil || !ev.Record.Status.Settled() {
		return
	}
	txn := FromRecord(ev.Snapshot.SessionID, ev.Snapshot.Network, *ev.Record)
	if err := o.publisher.PublishTransaction(ctx, txn); err != nil {
		o.logger.ErrorContext(ctx, "failed to publish transaction",
			"session_id", txn.SessionID,
			"record_id", txn.RecordID,
			"error", err,
		)
	}
}
