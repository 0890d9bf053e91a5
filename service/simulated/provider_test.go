package simulated

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/brojonat/genesis/service/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(cfg Config) *Provider {
	return New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.ConnectDelay = 0
	cfg.TransferDelay = 0
	cfg.Seed = 42
	return cfg
}

func TestProvider_Connect(t *testing.T) {
	p := newTestProvider(fastConfig())

	acct, err := p.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.0.123456", acct.Address)
	assert.Equal(t, 1000.5, acct.Balance)
	assert.Equal(t, "testnet", acct.Network)
	assert.Equal(t, "HBAR", acct.Currency)
	assert.Equal(t, "HashPack", acct.Provider)
}

func TestProvider_TransferDebitsLedger(t *testing.T) {
	cfg := fastConfig()
	cfg.RefreshSpread = 0
	p := newTestProvider(cfg)

	hash, err := p.SubmitTransfer(context.Background(), "0.0.999", 500)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "0x"))
	assert.Len(t, hash, 66)

	balance, err := p.GetBalance(context.Background(), "0.0.123456")
	require.NoError(t, err)
	assert.Equal(t, 500.5, balance)

	_, err = p.SubmitTransfer(context.Background(), "0.0.999", 1000)
	assert.Error(t, err)
}

func TestProvider_RandomRefreshWithinBounds(t *testing.T) {
	p := newTestProvider(fastConfig())

	for i := 0; i < 100; i++ {
		balance, err := p.GetBalance(context.Background(), "0.0.123456")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, balance, 500.0)
		assert.Less(t, balance, 1500.0)
	}
}

func TestProvider_FailureRate(t *testing.T) {
	cfg := fastConfig()
	cfg.FailureRate = 1
	p := newTestProvider(cfg)

	_, err := p.Connect(context.Background())
	assert.True(t, errors.Is(err, ErrSimulatedFailure))

	_, err = p.SubmitTransfer(context.Background(), "x", 1)
	assert.ErrorIs(t, err, ErrSimulatedFailure)

	_, err = p.GetBalance(context.Background(), "x")
	assert.ErrorIs(t, err, ErrSimulatedFailure)
}

func TestProvider_DelayHonoursContext(t *testing.T) {
	cfg := fastConfig()
	cfg.ConnectDelay = time.Hour
	p := newTestProvider(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Connect(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProvider_DrivesSessionStore(t *testing.T) {
	cfg := fastConfig()
	cfg.RefreshSpread = 0
	store := session.NewStore(newTestProvider(cfg), session.Options{})
	defer store.Close()

	snap, err := store.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "HashPack", snap.Provider)

	_, err = store.SendTransaction(context.Background(), "0.0.999", 500)
	require.NoError(t, err)
	assert.Equal(t, 500.5, store.Snapshot().Balance)

	require.NoError(t, store.RefreshBalance(context.Background()))
	assert.Equal(t, 500.5, store.Snapshot().Balance)
}
