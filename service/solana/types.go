package solana

import (
	"time"

	"github.com/brojonat/genesis/service/session"
	"github.com/gagliardetto/solana-go"
)

// Currency is the ticker reported for native balances.
const Currency = "SOL"

// ProviderName is reported as the wallet provider of keypair sessions.
const ProviderName = "solana-keypair"

// Transaction represents a parsed Solana transaction.
// This is our domain model, independent of the RPC response format.
type Transaction struct {
	Signature   string
	Slot        uint64
	BlockTime   time.Time
	Lamports    uint64
	TokenMint   *string // nil for native SOL transfers
	Memo        *string
	FromAddress *string // nil if it cannot be determined
	ToAddress   *string
	Err         *string // nil if the transaction succeeded
}

// Native reports whether the transaction moved SOL rather than an SPL token.
func (t *Transaction) Native() bool {
	return t.TokenMint == nil
}

// Record converts the transaction into a settled session record.
func (t *Transaction) Record() session.TransactionRecord {
	status := session.TxConfirmed
	var errMsg string
	if t.Err != nil {
		status = session.TxFailed
		errMsg = *t.Err
	}

	rec := session.TransactionRecord{
		ID:        t.Signature,
		Hash:      t.Signature,
		Kind:      session.KindTransfer,
		Status:    status,
		Amount:    LamportsToSOL(t.Lamports),
		Currency:  Currency,
		Timestamp: t.BlockTime,
		Error:     errMsg,
	}
	if t.FromAddress != nil {
		rec.From = *t.FromAddress
	}
	if t.ToAddress != nil {
		rec.To = *t.ToAddress
	}
	if !t.BlockTime.IsZero() {
		settled := t.BlockTime
		rec.SettledAt = &settled
	}
	return rec
}

// LamportsToSOL converts lamports to SOL.
func LamportsToSOL(lamports uint64) float64 {
	return float64(lamports) / float64(solana.LAMPORTS_PER_SOL)
}

// SOLToLamports converts SOL to lamports, rounding to the nearest lamport.
func SOLToLamports(sol float64) uint64 {
	return uint64(sol*float64(solana.LAMPORTS_PER_SOL) + 0.5)
}
