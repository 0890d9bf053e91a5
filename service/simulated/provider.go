package simulated

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/brojonat/genesis/service/session"
)

// ErrSimulatedFailure is returned when the configured failure rate fires.
var ErrSimulatedFailure = errors.New("simulated provider failure")

// Config configures the simulated wallet.
type Config struct {
	Address  string
	Balance  float64
	Network  string
	Currency string
	Provider string

	ConnectDelay  time.Duration
	TransferDelay time.Duration

	// RefreshMin and RefreshSpread bound refreshed balances to
	// [RefreshMin, RefreshMin+RefreshSpread). A zero spread makes refresh
	// return the ledger balance instead.
	RefreshMin    float64
	RefreshSpread float64

	// FailureRate is the probability in [0, 1] that any call fails.
	FailureRate float64

	// Seed makes the random source deterministic. Zero uses the clock.
	Seed int64
}

// DefaultConfig returns the wallet the dashboard used for local development.
func DefaultConfig() Config {
	return Config{
		Address:       "0.0.123456",
		Balance:       1000.5,
		Network:       "testnet",
		Currency:      "HBAR",
		Provider:      "HashPack",
		ConnectDelay:  time.Second,
		TransferDelay: 2 * time.Second,
		RefreshMin:    500,
		RefreshSpread: 1000,
	}
}

// Provider is a session.Provider that fakes a wallet with fixed delays and
// random values. It keeps its own ledger so confirmed transfers are debited.
type Provider struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	rng     *rand.Rand
	balance float64
}

var _ session.Provider = (*Provider)(nil)

// New creates a simulated provider.
func New(cfg Config, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Provider{
		cfg:     cfg,
		logger:  logger.With("component", "simulated_provider"),
		rng:     rand.New(rand.NewSource(seed)),
		balance: cfg.Balance,
	}
}

// Connect waits ConnectDelay and returns the configured account.
func (p *Provider) Connect(ctx context.Context) (*session.Account, error) {
	if err := sleep(ctx, p.cfg.ConnectDelay); err != nil {
		return nil, err
	}
	if p.fail() {
		return nil, fmt.Errorf("connect: %w", ErrSimulatedFailure)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger.DebugContext(ctx, "simulated wallet connected", "address", p.cfg.Address)
	return &session.Account{
		Address:  p.cfg.Address,
		Balance:  p.balance,
		Network:  p.cfg.Network,
		Currency: p.cfg.Currency,
		Provider: p.cfg.Provider,
	}, nil
}

// SubmitTransfer waits TransferDelay, debits the ledger and returns a random
// 32-byte hex hash.
func (p *Provider) SubmitTransfer(ctx context.Context, to string, amount float64) (string, error) {
	if err := sleep(ctx, p.cfg.TransferDelay); err != nil {
		return "", err
	}
	if p.fail() {
		return "", fmt.Errorf("transfer: %w", ErrSimulatedFailure)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if amount > p.balance {
		return "", fmt.Errorf("transfer: ledger balance %g is below %g", p.balance, amount)
	}
	p.balance -= amount

	buf := make([]byte, 32)
	p.rng.Read(buf)
	hash := "0x" + hex.EncodeToString(buf)

	p.logger.DebugContext(ctx, "simulated transfer confirmed", "to", to, "amount", amount, "hash", hash)
	return hash, nil
}

// GetBalance returns a random balance when a refresh spread is configured,
// otherwise the ledger balance. A random balance becomes the new ledger.
func (p *Provider) GetBalance(ctx context.Context, address string) (float64, error) {
	if p.fail() {
		return 0, fmt.Errorf("get balance: %w", ErrSimulatedFailure)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.RefreshSpread > 0 {
		p.balance = p.cfg.RefreshMin + p.rng.Float64()*p.cfg.RefreshSpread
	}
	return p.balance, nil
}

func (p *Provider) fail() bool {
	if p.cfg.FailureRate <= 0 {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64() < p.cfg.FailureRate
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
