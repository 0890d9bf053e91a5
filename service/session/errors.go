package session

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectInProgress is returned when Connect is called while a
	// connection attempt is already running.
	ErrConnectInProgress = errors.New("connection attempt already in progress")

	// ErrAlreadyConnected is returned when Connect is called on a connected session.
	ErrAlreadyConnected = errors.New("wallet already connected")

	// ErrNotConnected is returned when a transaction is sent on a session
	// that is not connected.
	ErrNotConnected = errors.New("wallet not connected")

	// ErrInvalidAmount is returned for non-positive or non-finite amounts.
	ErrInvalidAmount = errors.New("amount must be a positive number")

	// ErrInvalidRecipient is returned for an empty recipient.
	ErrInvalidRecipient = errors.New("recipient is required")

	// ErrSessionReset is returned when the session was disconnected while
	// an operation was waiting on the provider.
	ErrSessionReset = errors.New("session was reset while the operation was in flight")

	// ErrTransferInFlight is returned by RefreshBalance while a transfer is
	// settling; the provider balance may already include its debit.
	ErrTransferInFlight = errors.New("cannot refresh balance while a transfer is in flight")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("session closed")

	// errStaleBalance rejects a refreshed balance that a settled or started
	// transfer has superseded.
	errStaleBalance = errors.New("refreshed balance is stale")
)

// ConnectionError reports a failed handshake with the wallet provider.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("wallet connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransactionError reports a failed submission or settlement.
// RecordID is empty when the transaction was rejected before a record was created.
type TransactionError struct {
	RecordID string
	Err      error
}

func (e *TransactionError) Error() string {
	if e.RecordID == "" {
		return fmt.Sprintf("transaction rejected: %v", e.Err)
	}
	return fmt.Sprintf("transaction %s failed: %v", e.RecordID, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// InsufficientBalanceError is the pre-flight rejection of a transfer that
// exceeds the available balance. It is always wrapped in a TransactionError.
type InsufficientBalanceError struct {
	Amount    float64
	Available float64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %g, available %g", e.Amount, e.Available)
}

// RefreshError reports a failed balance fetch. The session is unaffected.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("balance refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }
