package session

import (
	"time"
)

// Status is the connection status of a wallet session.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	// StatusError is only reported as the target of a failed connect
	// transition. The committed status after a failure is disconnected.
	StatusError Status = "error"
)

// Kind is the kind of a transaction record.
type Kind string

const (
	KindTransfer Kind = "Transfer"
	KindStake    Kind = "Stake"
	KindUnstake  Kind = "Unstake"
	KindPurchase Kind = "Purchase"
	KindSale     Kind = "Sale"
	KindDeploy   Kind = "Deploy"
)

// TxStatus is the settlement status of a transaction record.
// Pending is transient and always resolves to Confirmed or Failed.
type TxStatus string

const (
	TxPending   TxStatus = "Pending"
	TxConfirmed TxStatus = "Confirmed"
	TxFailed    TxStatus = "Failed"
)

// Settled reports whether the status is final.
func (s TxStatus) Settled() bool {
	return s == TxConfirmed || s == TxFailed
}

// TransactionRecord is an entry in the session's transaction history.
// Records are immutable once settled.
type TransactionRecord struct {
	ID        string     `json:"id"`
	Hash      string     `json:"hash,omitempty"`
	Kind      Kind       `json:"kind"`
	Status    TxStatus   `json:"status"`
	Amount    float64    `json:"amount"`
	Currency  string     `json:"currency"`
	From      string     `json:"from"`
	To        string     `json:"to"`
	Timestamp time.Time  `json:"timestamp"`
	SettledAt *time.Time `json:"settled_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Snapshot is a consistent, immutable view of a session.
type Snapshot struct {
	SessionID string  `json:"session_id"`
	Status    Status  `json:"status"`
	Address   string  `json:"address,omitempty"`
	Balance   float64 `json:"balance"`
	Available float64 `json:"available"`
	Network   string  `json:"network"`
	Currency  string  `json:"currency,omitempty"`
	Provider  string  `json:"provider,omitempty"`
	LastError string  `json:"last_error,omitempty"`

	// Seq is the sequence number of the last event applied before the
	// snapshot was taken. Events with Seq at or below it are already reflected.
	Seq uint64 `json:"seq"`

	Transactions []TransactionRecord `json:"transactions"`
}

// Connected reports whether the snapshot is of a connected session.
func (s Snapshot) Connected() bool {
	return s.Status == StatusConnected
}

// EventKind identifies what an applied action did.
type EventKind string

const (
	EventConnecting           EventKind = "connecting"
	EventConnected            EventKind = "connected"
	EventConnectFailed        EventKind = "connect_failed"
	EventDisconnected         EventKind = "disconnected"
	EventTransactionPending   EventKind = "transaction_pending"
	EventTransactionConfirmed EventKind = "transaction_confirmed"
	EventTransactionFailed    EventKind = "transaction_failed"
	EventBalanceRefreshed     EventKind = "balance_refreshed"
)

// Event is broadcast once for every applied action.
type Event struct {
	Seq      uint64             `json:"seq"`
	Kind     EventKind          `json:"kind"`
	From     Status             `json:"from"`
	To       Status             `json:"to"`
	Snapshot Snapshot           `json:"snapshot"`
	Record   *TransactionRecord `json:"record,omitempty"`
	Time     time.Time          `json:"time"`
}
