package temporal

import (
	"fmt"
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// TransferWorkflow submits a transfer and waits for it to confirm.
//
// The submit step runs at most once: a retried broadcast would sign a new
// transaction and could pay twice. Confirmation polling is idempotent and
// retries with backoff.
func TransferWorkflow(ctx workflow.Context, input TransferInput) (*TransferResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("TransferWorkflow started",
		"session_id", input.SessionID,
		"to", input.To,
		"amount", input.Amount,
	)

	submitCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 60 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	var submitted *SubmitTransferResult
	err := workflow.ExecuteActivity(submitCtx, a.SubmitTransfer, SubmitTransferInput{
		To:     input.To,
		Amount: input.Amount,
	}).Get(ctx, &submitted)
	if err != nil {
		logger.Error("failed to submit transfer", "error", err)
		return nil, fmt.Errorf("failed to submit transfer: %w", err)
	}

	result := &TransferResult{
		Signature:   submitted.Signature,
		SubmittedAt: workflow.Now(ctx),
	}

	confirmCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        30 * time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeInvalidTransfer},
		},
	})

	var confirmed *AwaitConfirmationResult
	err = workflow.ExecuteActivity(confirmCtx, a.AwaitConfirmation, AwaitConfirmationInput{
		Signature: submitted.Signature,
		Network:   input.Network,
	}).Get(ctx, &confirmed)
	if err != nil {
		logger.Error("transfer was not confirmed", "signature", submitted.Signature, "error", err)
		return nil, fmt.Errorf("transfer %s was not confirmed: %w", submitted.Signature, err)
	}

	result.ConfirmedAt = workflow.Now(ctx)
	logger.Info("TransferWorkflow completed", "signature", result.Signature)
	return result, nil
}
