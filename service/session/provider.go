package session

import (
	"context"
)

// Account is what a provider returns from a successful handshake.
type Account struct {
	Address  string
	Balance  float64
	Network  string
	Currency string

	// Provider names the wallet behind the account, e.g. "HashPack".
	Provider string
}

// Provider is the external wallet collaborator. Implementations talk to a
// real chain, a simulator, or a durable workflow engine.
type Provider interface {
	// Connect performs the wallet handshake.
	Connect(ctx context.Context) (*Account, error)

	// SubmitTransfer submits a transfer and blocks until it settles.
	// It returns the transaction hash of a confirmed transfer.
	SubmitTransfer(ctx context.Context, to string, amount float64) (string, error)

	// GetBalance fetches the current balance of address.
	GetBalance(ctx context.Context, address string) (float64, error)
}

// HistoryProvider is implemented by providers that can list the recent
// settled transactions of an account. The store seeds the transaction list
// with them on connect.
type HistoryProvider interface {
	RecentTransactions(ctx context.Context, address string, limit int) ([]TransactionRecord, error)
}

// Observer receives every event in apply order. Observe is called from the
// session's dispatcher goroutine and should not block for long.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) Observe(ctx context.Context, ev Event) { f(ctx, ev) }
