package nats

import (
	"strings"
	"time"

	"github.com/brojonat/genesis/service/session"
)

// SessionEvent is published to "sessions.{session_id}" for every applied
// session transition.
type SessionEvent struct {
	Seq       uint64            `json:"seq"`
	SessionID string            `json:"session_id"`
	Kind      session.EventKind `json:"kind"`
	From      session.Status    `json:"from"`
	To        session.Status    `json:"to"`

	// Session state after the transition
	Address   string  `json:"address,omitempty"`
	Balance   float64 `json:"balance"`
	Available float64 `json:"available"`
	Network   string  `json:"network"`
	Currency  string  `json:"currency,omitempty"`
	LastError string  `json:"last_error,omitempty"`

	Record *session.TransactionRecord `json:"record,omitempty"`

	Timestamp   time.Time `json:"timestamp"`
	PublishedAt time.Time `json:"published_at"`
}

// TransactionEvent is published to "txns.{address}" when a transaction
// settles. Address is the sending wallet.
type TransactionEvent struct {
	SessionID string `json:"session_id"`
	RecordID  string `json:"record_id"`
	Hash      string `json:"hash,omitempty"`

	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`
	Network     string `json:"network"`

	Kind     session.Kind     `json:"kind"`
	Status   session.TxStatus `json:"status"`
	Amount   float64          `json:"amount"`
	Currency string           `json:"currency"`
	Error    string           `json:"error,omitempty"`

	Timestamp   time.Time  `json:"timestamp"`
	SettledAt   *time.Time `json:"settled_at,omitempty"`
	PublishedAt time.Time  `json:"published_at"`
}

// FromSessionEvent converts a store event for publishing.
func FromSessionEvent(ev session.Event) *SessionEvent {
	return &SessionEvent{
		Seq:         ev.Seq,
		SessionID:   ev.Snapshot.SessionID,
		Kind:        ev.Kind,
		From:        ev.From,
		To:          ev.To,
		Address:     ev.Snapshot.Address,
		Balance:     ev.Snapshot.Balance,
		Available:   ev.Snapshot.Available,
		Network:     ev.Snapshot.Network,
		Currency:    ev.Snapshot.Currency,
		LastError:   ev.Snapshot.LastError,
		Record:      ev.Record,
		Timestamp:   ev.Time,
		PublishedAt: time.Now().UTC(),
	}
}

// FromRecord converts a settled record for publishing.
func FromRecord(sessionID, network string, rec session.TransactionRecord) *TransactionEvent {
	return &TransactionEvent{
		SessionID:   sessionID,
		RecordID:    rec.ID,
		Hash:        rec.Hash,
		FromAddress: rec.From,
		ToAddress:   rec.To,
		Network:     network,
		Kind:        rec.Kind,
		Status:      rec.Status,
		Amount:      rec.Amount,
		Currency:    rec.Currency,
		Error:       rec.Error,
		Timestamp:   rec.Timestamp,
		SettledAt:   rec.SettledAt,
		PublishedAt: time.Now().UTC(),
	}
}

// SessionSubject returns the subject for a session's events.
func SessionSubject(sessionID string) string {
	return "sessions." + subjectToken(sessionID)
}

// TransactionSubject returns the subject for an address's settled transactions.
func TransactionSubject(address string) string {
	return "txns." + subjectToken(address)
}

// subjectToken makes s a single subject token. Account IDs such as
// "0.0.123456" contain the token separator.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
