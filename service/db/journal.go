package db

import (
	"context"
	"log/slog"
	"time"

	"github.com/brojonat/genesis/service/session"
)

// TransactionRecorder is the journal write used by JournalObserver.
type TransactionRecorder interface {
	RecordTransaction(ctx context.Context, params CreateTransactionParams) (*Transaction, error)
}

// JournalObserver writes every settled session transaction to the journal.
type JournalObserver struct {
	recorder TransactionRecorder
	timeout  time.Duration
	logger   *slog.Logger
}

var _ session.Observer = (*JournalObserver)(nil)

// NewJournalObserver creates an observer. Writes that take longer than
// timeout are abandoned.
func NewJournalObserver(recorder TransactionRecorder, timeout time.Duration, logger *slog.Logger) *JournalObserver {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &JournalObserver{
		recorder: recorder,
		timeout:  timeout,
		logger:   logger.With("component", "journal"),
	}
}

// Observe implements session.Observer.
func (j *JournalObserver) Observe(ctx context.Context, ev session.Event) {
	if ev.Record == nil || !ev.Record.Status.Settled() {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	params := ParamsFromRecord(ev.Snapshot.SessionID, ev.Snapshot.Network, *ev.Record)
	if _, err := j.recorder.RecordTransaction(ctx, params); err != nil {
		j.logger.ErrorContext(ctx, "failed to journal transaction",
			"session_id", params.SessionID,
			"record_id", params.ID,
			"error", err,
		)
		return
	}
	j.logger.DebugContext(ctx, "journaled transaction",
		"session_id", params.SessionID,
		"record_id", params.ID,
		"status", params.Status,
	)
}

// ParamsFromRecord maps a session record onto journal columns.
func ParamsFromRecord(sessionID, network string, rec session.TransactionRecord) CreateTransactionParams {
	params := CreateTransactionParams{
		ID:          rec.ID,
		SessionID:   sessionID,
		Kind:        string(rec.Kind),
		Status:      string(rec.Status),
		Amount:      rec.Amount,
		Currency:    rec.Currency,
		FromAddress: rec.From,
		ToAddress:   rec.To,
		Network:     network,
		CreatedAt:   rec.Timestamp,
		SettledAt:   rec.SettledAt,
	}
	if rec.Hash != "" {
		hash := rec.Hash
		params.Hash = &hash
	}
	if rec.Error != "" {
		msg := rec.Error
		params.Error = &msg
	}
	return params
}
