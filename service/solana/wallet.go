package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brojonat/genesis/service/session"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

var (
	_ session.Provider        = (*Wallet)(nil)
	_ session.HistoryProvider = (*Wallet)(nil)
)

// Wallet is a session.Provider backed by a keypair and a Solana RPC node.
type Wallet struct {
	client *Client
	key    solana.PrivateKey
	logger *slog.Logger
}

// NewWallet creates a wallet from a base58-encoded private key.
func NewWallet(client *Client, privateKey string, logger *slog.Logger) (*Wallet, error) {
	if privateKey == "" {
		return nil, errors.New("wallet private key is required")
	}
	key, err := solana.PrivateKeyFromBase58(privateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet private key: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Wallet{
		client: client,
		key:    key,
		logger: logger.With("wallet", key.PublicKey().String()),
	}, nil
}

// Address returns the wallet public key in base58.
func (w *Wallet) Address() string {
	return w.key.PublicKey().String()
}

// Connect reads the wallet balance to prove the node is reachable.
func (w *Wallet) Connect(ctx context.Context) (*session.Account, error) {
	lamports, err := w.client.Balance(ctx, w.key.PublicKey())
	if err != nil {
		return nil, err
	}
	w.logger.InfoContext(ctx, "wallet connected",
		"network", w.client.Network(),
		"lamports", lamports,
	)
	return &session.Account{
		Address:  w.Address(),
		Balance:  LamportsToSOL(lamports),
		Network:  w.client.Network(),
		Currency: Currency,
		Provider: ProviderName,
	}, nil
}

// SubmitTransfer sends amount SOL to the recipient and waits for confirmation.
func (w *Wallet) SubmitTransfer(ctx context.Context, to string, amount float64) (string, error) {
	sig, err := w.Submit(ctx, to, amount)
	if err != nil {
		return "", err
	}
	if err := w.client.AwaitConfirmation(ctx, sig); err != nil {
		return "", err
	}
	return sig.String(), nil
}

// Submit signs and sends a system transfer without waiting for confirmation.
func (w *Wallet) Submit(ctx context.Context, to string, amount float64) (solana.Signature, error) {
	recipient, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	lamports := SOLToLamports(amount)
	if lamports == 0 {
		return solana.Signature{}, fmt.Errorf("amount %g is below one lamport", amount)
	}

	blockhash, err := w.client.LatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, err
	}

	payer := w.key.PublicKey()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports, payer, recipient).Build(),
		},
		blockhash,
		solana.TransactionPayer(payer),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer) {
			return &w.key
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := w.client.Send(ctx, tx)
	if err != nil {
		return solana.Signature{}, err
	}
	w.logger.InfoContext(ctx, "transfer submitted",
		"signature", sig.String(),
		"to", to,
		"lamports", lamports,
	)
	return sig, nil
}

// AwaitConfirmation waits for a previously submitted signature.
func (w *Wallet) AwaitConfirmation(ctx context.Context, signature string) error {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return fmt.Errorf("invalid signature %q: %w", signature, err)
	}
	return w.client.AwaitConfirmation(ctx, sig)
}

// GetBalance returns the SOL balance of address.
func (w *Wallet) GetBalance(ctx context.Context, address string) (float64, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", address, err)
	}
	lamports, err := w.client.Balance(ctx, pk)
	if err != nil {
		return 0, err
	}
	return LamportsToSOL(lamports), nil
}

// RecentTransactions returns settled native transfers touching address.
// SPL token transfers are skipped since their amounts are not in SOL.
func (w *Wallet) RecentTransactions(ctx context.Context, address string, limit int) ([]session.TransactionRecord, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}
	txns, err := w.client.RecentTransactions(ctx, pk, limit)
	if err != nil {
		return nil, err
	}

	records := make([]session.TransactionRecord, 0, len(txns))
	for _, txn := range txns {
		if !txn.Native() {
			continue
		}
		records = append(records, txn.Record())
	}
	return records, nil
}
