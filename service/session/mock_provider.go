package session

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider is a mock implementation of Provider for testing.
// Each call can be made to block on a gate channel so tests can observe
// the session while an operation is in flight.
type MockProvider struct {
	mu sync.Mutex

	account     Account
	connectErr  error
	transferErr error
	balance     *float64
	balanceErr  error
	history     []TransactionRecord
	historyErr  error

	connectGate  chan struct{}
	transferGate chan struct{}
	balanceGate  chan struct{}

	connectCalls  int
	transferCalls int
	balanceCalls  int
	transfers     []MockTransfer
}

// MockTransfer is a transfer recorded by MockProvider.
type MockTransfer struct {
	To     string
	Amount float64
}

// NewMockProvider creates a mock provider that connects to account.
func NewMockProvider(account Account) *MockProvider {
	return &MockProvider{account: account}
}

// Connect returns the configured account or error.
func (m *MockProvider) Connect(ctx context.Context) (*Account, error) {
	m.mu.Lock()
	m.connectCalls++
	gate := m.connectGate
	m.mu.Unlock()

	if err := wait(ctx, gate); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectErr != nil {
		return nil, m.connectErr
	}
	acct := m.account
	return &acct, nil
}

// SubmitTransfer records the transfer and returns a deterministic hash.
func (m *MockProvider) SubmitTransfer(ctx context.Context, to string, amount float64) (string, error) {
	m.mu.Lock()
	m.transferCalls++
	n := m.transferCalls
	gate := m.transferGate
	m.mu.Unlock()

	if err := wait(ctx, gate); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transferErr != nil {
		return "", m.transferErr
	}
	m.transfers = append(m.transfers, MockTransfer{To: to, Amount: amount})
	return fmt.Sprintf("0xmock%04d", n), nil
}

// GetBalance returns the configured balance, or the account balance.
func (m *MockProvider) GetBalance(ctx context.Context, address string) (float64, error) {
	m.mu.Lock()
	m.balanceCalls++
	gate := m.balanceGate
	m.mu.Unlock()

	if err := wait(ctx, gate); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balanceErr != nil {
		return 0, m.balanceErr
	}
	if m.balance != nil {
		return *m.balance, nil
	}
	return m.account.Balance, nil
}

// SetConnectError makes Connect fail with err.
func (m *MockProvider) SetConnectError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErr = err
}

// SetTransferError makes SubmitTransfer fail with err.
func (m *MockProvider) SetTransferError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transferErr = err
}

// SetBalance sets the value returned by GetBalance.
func (m *MockProvider) SetBalance(balance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balance = &balance
}

// SetBalanceError makes GetBalance fail with err.
func (m *MockProvider) SetBalanceError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balanceErr = err
}

// GateConnect makes Connect block until the returned channel is closed.
func (m *MockProvider) GateConnect() chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectGate = make(chan struct{})
	return m.connectGate
}

// GateTransfer makes SubmitTransfer block until the returned channel is closed.
func (m *MockProvider) GateTransfer() chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transferGate = make(chan struct{})
	return m.transferGate
}

// GateBalance makes GetBalance block until the returned channel is closed.
func (m *MockProvider) GateBalance() chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balanceGate = make(chan struct{})
	return m.balanceGate
}

// ConnectCalls returns the number of Connect calls.
func (m *MockProvider) ConnectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectCalls
}

// TransferCalls returns the number of SubmitTransfer calls.
func (m *MockProvider) TransferCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transferCalls
}

// BalanceCalls returns the number of GetBalance calls.
func (m *MockProvider) BalanceCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balanceCalls
}

// Transfers returns a copy of the successful transfers.
func (m *MockProvider) Transfers() []MockTransfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockTransfer, len(m.transfers))
	copy(out, m.transfers)
	return out
}

// MockHistoryProvider adds RecentTransactions to MockProvider.
type MockHistoryProvider struct {
	*MockProvider
}

// SetHistory sets the records returned by RecentTransactions.
func (m *MockProvider) SetHistory(records []TransactionRecord, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = records
	m.historyErr = err
}

// RecentTransactions returns the configured history.
func (m MockHistoryProvider) RecentTransactions(ctx context.Context, address string, limit int) ([]TransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	out := make([]TransactionRecord, len(m.history))
	copy(out, m.history)
	return out, nil
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
