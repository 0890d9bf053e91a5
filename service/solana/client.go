package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/genesis/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrConfirmationTimeout is returned when a signature is not confirmed in time.
var ErrConfirmationTimeout = errors.New("transaction not confirmed before timeout")

// ClientOptions tunes RPC pacing. Zero values fall back to defaults.
type ClientOptions struct {
	// RequestDelay is slept before each GetTransaction call to respect
	// public RPC rate limits.
	RequestDelay time.Duration
	// MaxAttempts bounds GetTransaction retries.
	MaxAttempts int
	// PollInterval is the GetSignatureStatuses polling period.
	PollInterval time.Duration
	// ConfirmTimeout bounds AwaitConfirmation.
	ConfirmTimeout time.Duration
	// Commitment used for balances and blockhashes.
	Commitment rpc.CommitmentType
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.ConfirmTimeout <= 0 {
		o.ConfirmTimeout = 90 * time.Second
	}
	if o.Commitment == "" {
		o.Commitment = rpc.CommitmentConfirmed
	}
	return o
}

// Client wraps the RPC client with the wallet operations we need.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics
	network  string
	opts     ClientOptions

	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling. If metrics is nil,
// no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint, network string, opts ClientOptions, m *metrics.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
		network:  network,
		opts:     opts.withDefaults(),
		sleep:    sleepContext,
	}
}

// Network returns the cluster name this client reports.
func (c *Client) Network() string {
	return c.network
}

// Balance returns the balance of address in lamports.
func (c *Client) Balance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	out, err := c.rpc.GetBalance(ctx, address, c.opts.Commitment)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	if out == nil {
		return 0, errors.New("get balance: empty response")
	}
	return out.Value, nil
}

// LatestBlockhash returns a recent blockhash for signing transactions.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, c.opts.Commitment)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	if out == nil || out.Value == nil {
		return solana.Hash{}, errors.New("get latest blockhash: empty response")
	}
	return out.Value.Blockhash, nil
}

// Send submits a signed transaction and returns its signature.
func (c *Client) Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	return sig, nil
}

// AwaitConfirmation polls the signature status until it reaches confirmed or
// finalized commitment, fails on chain, or ConfirmTimeout elapses.
func (c *Client) AwaitConfirmation(ctx context.Context, sig solana.Signature) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.opts.ConfirmTimeout)
	defer cancel()

	status := "confirmed"
	defer func() {
		c.metrics.RecordConfirmation(c.network, status, metrics.Since(start))
	}()

	for {
		out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
		switch {
		case err != nil && strings.Contains(err.Error(), "429"):
			c.metrics.RecordRateLimitHit(c.endpoint)
			c.metrics.RecordRPCRetry("GetSignatureStatuses", "rate_limit")
		case err != nil:
			c.logger.WarnContext(ctx, "signature status lookup failed",
				"signature", sig.String(),
				"error", err,
			)
			c.metrics.RecordRPCRetry("GetSignatureStatuses", "timeout_or_error")
		case out != nil && len(out.Value) > 0 && out.Value[0] != nil:
			st := out.Value[0]
			if st.Err != nil {
				status = "failed"
				return fmt.Errorf("transaction %s failed on chain: %v", sig, st.Err)
			}
			if st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				st.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				c.logger.DebugContext(ctx, "transaction confirmed",
					"signature", sig.String(),
					"commitment", st.ConfirmationStatus,
					"slot", st.Slot,
				)
				return nil
			}
		}

		if err := c.sleep(ctx, c.opts.PollInterval); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				status = "timeout"
				return fmt.Errorf("%w: %s", ErrConfirmationTimeout, sig)
			}
			status = "canceled"
			return err
		}
	}
}

// RecentTransactions returns up to limit parsed transactions touching wallet,
// newest first. Transactions whose details cannot be fetched fall back to
// signature metadata.
func (c *Client) RecentTransactions(ctx context.Context, wallet solana.PublicKey, limit int) ([]*Transaction, error) {
	opts := &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentFinalized,
	}

	c.logger.DebugContext(ctx, "calling GetSignaturesForAddress",
		"wallet", wallet.String(),
		"limit", limit,
	)

	signatures, err := c.rpc.GetSignaturesForAddress(ctx, wallet, opts)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get signatures",
			"wallet", wallet.String(),
			"error", err,
		)
		return nil, fmt.Errorf("get signatures: %w", err)
	}

	transactions := make([]*Transaction, 0, len(signatures))
	for _, sig := range signatures {
		if err := c.sleep(ctx, c.opts.RequestDelay); err != nil {
			return nil, err
		}

		result, err := c.getTransaction(ctx, sig.Signature)
		if err != nil {
			c.logger.WarnContext(ctx, "failed to get transaction details after retries, using metadata only",
				"signature", sig.Signature.String(),
				"error", err,
			)
			transactions = append(transactions, signatureToDomain(sig))
			continue
		}

		txn, err := parseTransactionFromResult(sig, result)
		if err != nil {
			c.logger.WarnContext(ctx, "failed to parse transaction, using metadata only",
				"signature", sig.Signature.String(),
				"error", err,
			)
			transactions = append(transactions, signatureToDomain(sig))
			continue
		}
		transactions = append(transactions, txn)
	}

	c.logger.InfoContext(ctx, "fetched and parsed transactions",
		"wallet", wallet.String(),
		"count", len(transactions),
	)
	return transactions, nil
}

// getTransaction fetches transaction details with exponential backoff.
// Rate limits back off longer; versioned-transaction decode failures retry
// once as legacy.
func (c *Client) getTransaction(ctx context.Context, sig solana.Signature) (*rpc.GetTransactionResult, error) {
	var (
		result *rpc.GetTransactionResult
		err    error
	)
	for attempt := range c.opts.MaxAttempts {
		result, err = c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
			Encoding:                       solana.EncodingBase64,
			MaxSupportedTransactionVersion: &[]uint64{0}[0],
		})
		if err == nil {
			return result, nil
		}

		if strings.Contains(err.Error(), "429") {
			backoff := time.Duration(2<<uint(attempt)) * time.Second
			c.logger.WarnContext(ctx, "rate limited, sleeping before retry",
				"signature", sig.String(),
				"attempt", attempt+1,
				"backoff_seconds", backoff.Seconds(),
			)
			c.metrics.RecordRateLimitHit(c.endpoint)
			c.metrics.RecordRPCRetry("GetTransaction", "rate_limit")
			if serr := c.sleep(ctx, backoff); serr != nil {
				return nil, serr
			}
			continue
		}

		if strings.Contains(err.Error(), "expects '\"' or 'n', but found '{'") {
			c.logger.WarnContext(ctx, "could not parse as versioned tx, retrying as legacy",
				"signature", sig.String(),
			)
			c.metrics.RecordRPCRetry("GetTransaction", "parse_error")
			result, err = c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
				Encoding: solana.EncodingBase64,
			})
			if err == nil {
				return result, nil
			}
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		c.logger.WarnContext(ctx, "failed to get transaction on attempt",
			"signature", sig.String(),
			"attempt", attempt+1,
			"error", err,
			"backoff_seconds", backoff.Seconds(),
		)
		c.metrics.RecordRPCRetry("GetTransaction", "timeout_or_error")
		if serr := c.sleep(ctx, backoff); serr != nil {
			return nil, serr
		}
	}
	return nil, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
