package solana

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brojonat/genesis/service/session"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWallet(t *testing.T, mock *mockRPCClient) (*Wallet, solana.PrivateKey) {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	client, _ := newTestClient(mock, ClientOptions{})
	w, err := NewWallet(client, key.String(), client.logger)
	require.NoError(t, err)
	return w, key
}

func TestNewWallet_InvalidKey(t *testing.T) {
	client, _ := newTestClient(&mockRPCClient{}, ClientOptions{})

	_, err := NewWallet(client, "", nil)
	assert.Error(t, err)

	_, err = NewWallet(client, "not-base58-!!", nil)
	assert.ErrorContains(t, err, "invalid wallet private key")
}

func TestWallet_Connect(t *testing.T) {
	w, key := newTestWallet(t, &mockRPCClient{balance: 2_500_000_000})

	acct, err := w.Connect(context.Background())

	require.NoError(t, err)
	assert.Equal(t, key.PublicKey().String(), acct.Address)
	assert.Equal(t, 2.5, acct.Balance)
	assert.Equal(t, "devnet", acct.Network)
	assert.Equal(t, "SOL", acct.Currency)
	assert.Equal(t, ProviderName, acct.Provider)
}

func TestWallet_ConnectRPCError(t *testing.T) {
	w, _ := newTestWallet(t, &mockRPCClient{err: errors.New("connection refused")})

	_, err := w.Connect(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestWallet_SubmitTransfer(t *testing.T) {
	recipient, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	mock := &mockRPCClient{
		blockhash: solana.Hash{1, 2, 3},
		statuses: []*rpc.SignatureStatusesResult{
			{Slot: 5, ConfirmationStatus: rpc.ConfirmationStatusFinalized},
		},
	}
	w, key := newTestWallet(t, mock)

	hash, err := w.SubmitTransfer(context.Background(), recipient.PublicKey().String(), 0.5)
	require.NoError(t, err)

	require.Len(t, mock.sent, 1)
	tx := mock.sent[0]
	assert.Equal(t, tx.Signatures[0].String(), hash)
	assert.Equal(t, solana.Hash{1, 2, 3}, tx.Message.RecentBlockhash)
	assert.True(t, tx.Message.AccountKeys[0].Equals(key.PublicKey()), "payer signs first")
	require.NoError(t, tx.VerifySignatures())

	require.Len(t, tx.Message.Instructions, 1)
	ix := tx.Message.Instructions[0]
	transfer, err := parseSystemTransfer(ix, tx.Message.AccountKeys)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000_000), transfer.amount)
	assert.Equal(t, recipient.PublicKey().String(), transfer.to.String())
}

func TestWallet_SubmitTransferRejectsBadInput(t *testing.T) {
	w, _ := newTestWallet(t, &mockRPCClient{})

	_, err := w.SubmitTransfer(context.Background(), "0.0.999", 1)
	assert.ErrorContains(t, err, "invalid recipient")

	recipient, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	_, err = w.SubmitTransfer(context.Background(), recipient.PublicKey().String(), 1e-12)
	assert.ErrorContains(t, err, "below one lamport")
}

func TestWallet_SubmitTransferFailsOnChain(t *testing.T) {
	recipient, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	mock := &mockRPCClient{
		statuses: []*rpc.SignatureStatusesResult{
			{Slot: 5, Err: "InsufficientFundsForRent"},
		},
	}
	w, _ := newTestWallet(t, mock)

	_, err = w.SubmitTransfer(context.Background(), recipient.PublicKey().String(), 0.1)
	assert.ErrorContains(t, err, "failed on chain")
}

func TestWallet_RecentTransactions(t *testing.T) {
	now := solana.UnixTimeSeconds(time.Now().Unix())
	mock := &mockRPCClient{
		signatures: []*rpc.TransactionSignature{
			{Signature: sig1, Slot: 100, BlockTime: &now},
			{Signature: sig2, Slot: 99, BlockTime: &now, Err: "boom"},
		},
	}
	w, _ := newTestWallet(t, mock)

	records, err := w.RecentTransactions(context.Background(), w.Address(), 10)

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, sig1.String(), records[0].Hash)
	assert.Equal(t, session.TxConfirmed, records[0].Status)
	assert.Equal(t, session.TxFailed, records[1].Status)
	for _, rec := range records {
		assert.True(t, rec.Status.Settled())
	}
}

func TestWallet_DrivesSessionStore(t *testing.T) {
	recipient, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	mock := &mockRPCClient{
		balance: 3_000_000_000,
		statuses: []*rpc.SignatureStatusesResult{
			{Slot: 5, ConfirmationStatus: rpc.ConfirmationStatusConfirmed},
		},
	}
	w, _ := newTestWallet(t, mock)

	store := session.NewStore(w, session.Options{HistoryLimit: -1})
	defer store.Close()

	snap, err := store.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3.0, snap.Balance)

	_, err = store.SendTransaction(context.Background(), recipient.PublicKey().String(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2.0, store.Snapshot().Balance)
}
