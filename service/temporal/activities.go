package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/brojonat/genesis/service/metrics"
	solanago "github.com/gagliardetto/solana-go"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

// ErrTypeInvalidTransfer marks submit errors that retrying cannot fix.
const ErrTypeInvalidTransfer = "InvalidTransfer"

// TransferInput contains the input parameters for TransferWorkflow.
type TransferInput struct {
	SessionID string  `json:"session_id"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Amount    float64 `json:"amount"`
	Network   string  `json:"network"`
}

// TransferResult contains the result of a confirmed transfer.
type TransferResult struct {
	Signature   string    `json:"signature"`
	SubmittedAt time.Time `json:"submitted_at"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// SubmitTransferInput contains parameters for the SubmitTransfer activity.
type SubmitTransferInput struct {
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

// SubmitTransferResult contains the result of the SubmitTransfer activity.
type SubmitTransferResult struct {
	Signature string `json:"signature"`
}

// AwaitConfirmationInput contains parameters for the AwaitConfirmation activity.
type AwaitConfirmationInput struct {
	Signature string `json:"signature"`
	Network   string `json:"network"`
}

// AwaitConfirmationResult contains the result of the AwaitConfirmation activity.
type AwaitConfirmationResult struct {
	Signature string `json:"signature"`
}

// TransferSubmitter defines the wallet operations needed by activities.
// *solana.Wallet satisfies it.
type TransferSubmitter interface {
	Submit(ctx context.Context, to string, amount float64) (solanago.Signature, error)
	AwaitConfirmation(ctx context.Context, signature string) error
}

// Activities holds the dependencies needed by Temporal activities.
type Activities struct {
	wallet  TransferSubmitter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded.
func NewActivities(wallet TransferSubmitter, m *metrics.Metrics, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		wallet:  wallet,
		metrics: m,
		logger:  logger,
	}
}

// SubmitTransfer signs and broadcasts the transfer. Input errors are
// non-retryable.
func (a *Activities) SubmitTransfer(ctx context.Context, input SubmitTransferInput) (*SubmitTransferResult, error) {
	start := time.Now()

	if _, err := solanago.PublicKeyFromBase58(input.To); err != nil {
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("invalid recipient %q", input.To), ErrTypeInvalidTransfer, err)
	}
	if input.Amount <= 0 || math.IsNaN(input.Amount) || math.IsInf(input.Amount, 0) {
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("invalid amount %v", input.Amount), ErrTypeInvalidTransfer, nil)
	}

	a.logger.InfoContext(ctx, "submitting transfer",
		"to", input.To,
		"amount", input.Amount,
	)

	sig, err := a.wallet.Submit(ctx, input.To, input.Amount)
	a.metrics.RecordProviderCall("workflow_submit", err, metrics.Since(start))
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to submit transfer",
			"to", input.To,
			"error", err,
		)
		return nil, fmt.Errorf("submit transfer: %w", err)
	}

	a.logger.InfoContext(ctx, "transfer submitted", "signature", sig.String())
	return &SubmitTransferResult{Signature: sig.String()}, nil
}

// AwaitConfirmation blocks until the signature is confirmed, heartbeating
// while it waits.
func (a *Activities) AwaitConfirmation(ctx context.Context, input AwaitConfirmationInput) (*AwaitConfirmationResult, error) {
	if input.Signature == "" {
		return nil, temporal.NewNonRetryableApplicationError("signature is required", ErrTypeInvalidTransfer, nil)
	}

	heartbeatCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-heartbeatCtx.Done():
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx, input.Signature)
			}
		}
	}()

	a.logger.DebugContext(ctx, "awaiting confirmation", "signature", input.Signature)

	start := time.Now()
	err := a.wallet.AwaitConfirmation(ctx, input.Signature)
	a.metrics.RecordProviderCall("workflow_confirm", err, metrics.Since(start))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		a.logger.WarnContext(ctx, "confirmation failed",
			"signature", input.Signature,
			"error", err,
		)
		return nil, fmt.Errorf("await confirmation: %w", err)
	}

	return &AwaitConfirmationResult{Signature: input.Signature}, nil
}
