package temporal

import (
	"context"
	"log/slog"
	"sync"

	"github.com/brojonat/genesis/service/session"
)

var (
	_ session.Provider        = (*TransferProvider)(nil)
	_ session.HistoryProvider = (*TransferProvider)(nil)
)

// TransferProvider routes transfers through TransferWorkflow so they survive
// a server restart. Connect, balance and history calls go straight to the
// wrapped provider.
type TransferProvider struct {
	base      session.Provider
	executor  WorkflowExecutor
	taskQueue string
	sessionID string
	logger    *slog.Logger

	mu      sync.Mutex
	account session.Account
}

// NewTransferProvider wraps base. sessionID tags workflow IDs.
func NewTransferProvider(base session.Provider, executor WorkflowExecutor, taskQueue, sessionID string, logger *slog.Logger) *TransferProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransferProvider{
		base:      base,
		executor:  executor,
		taskQueue: taskQueue,
		sessionID: sessionID,
		logger:    logger.With("component", "temporal_provider"),
	}
}

func (p *TransferProvider) Connect(ctx context.Context) (*session.Account, error) {
	acct, err := p.base.Connect(ctx)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.account = *acct
	p.mu.Unlock()
	return acct, nil
}

func (p *TransferProvider) SubmitTransfer(ctx context.Context, to string, amount float64) (string, error) {
	p.mu.Lock()
	acct := p.account
	p.mu.Unlock()

	result, err := ExecuteTransfer(ctx, p.executor, p.taskQueue, TransferInput{
		SessionID: p.sessionID,
		From:      acct.Address,
		To:        to,
		Amount:    amount,
		Network:   acct.Network,
	})
	if err != nil {
		p.logger.WarnContext(ctx, "transfer workflow failed", "to", to, "error", err)
		return "", err
	}
	return result.Signature, nil
}

func (p *TransferProvider) GetBalance(ctx context.Context, address string) (float64, error) {
	return p.base.GetBalance(ctx, address)
}

// RecentTransactions delegates when the wrapped provider keeps history.
func (p *TransferProvider) RecentTransactions(ctx context.Context, address string, limit int) ([]session.TransactionRecord, error) {
	hp, ok := p.base.(session.HistoryProvider)
	if !ok {
		return nil, nil
	}
	return hp.RecentTransactions(ctx, address, limit)
}
