package temporal

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/brojonat/genesis/service/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
)

// fakeExecutor records workflow starts and replies with a canned result.
type fakeExecutor struct {
	result   TransferResult
	startErr error
	runErr   error

	options client.StartWorkflowOptions
	inputs  []TransferInput
}

func (f *fakeExecutor) ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.options = options
	f.inputs = append(f.inputs, args[0].(TransferInput))
	return &fakeRun{id: options.ID, result: f.result, err: f.runErr}, nil
}

type fakeRun struct {
	id     string
	result TransferResult
	err    error
}

func (r *fakeRun) GetID() string    { return r.id }
func (r *fakeRun) GetRunID() string { return r.id + "-run" }

func (r *fakeRun) Get(ctx context.Context, valuePtr interface{}) error {
	if r.err != nil {
		return r.err
	}
	*(valuePtr.(*TransferResult)) = r.result
	return nil
}

func (r *fakeRun) GetWithOptions(ctx context.Context, valuePtr interface{}, options client.WorkflowRunGetOptions) error {
	return r.Get(ctx, valuePtr)
}

var testAccount = session.Account{
	Address:  "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T",
	Balance:  10,
	Network:  "devnet",
	Currency: "SOL",
}

func TestTransferProvider_RoutesTransfersThroughWorkflow(t *testing.T) {
	base := session.NewMockProvider(testAccount)
	exec := &fakeExecutor{result: TransferResult{Signature: "sig1"}}
	p := NewTransferProvider(base, exec, "genesis", "s1", nil)

	acct, err := p.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testAccount.Address, acct.Address)

	hash, err := p.SubmitTransfer(context.Background(), testRecipient, 2)
	require.NoError(t, err)
	assert.Equal(t, "sig1", hash)

	require.Len(t, exec.inputs, 1)
	assert.Equal(t, TransferInput{
		SessionID: "s1",
		From:      testAccount.Address,
		To:        testRecipient,
		Amount:    2,
		Network:   "devnet",
	}, exec.inputs[0])
	assert.Equal(t, "genesis", exec.options.TaskQueue)
	assert.True(t, strings.HasPrefix(exec.options.ID, "transfer-s1-"))

	assert.Empty(t, base.Transfers(), "the wrapped provider never submits directly")
}

func TestTransferProvider_WorkflowErrors(t *testing.T) {
	base := session.NewMockProvider(testAccount)

	p := NewTransferProvider(base, &fakeExecutor{startErr: errors.New("namespace not found")}, "q", "s1", nil)
	_, err := p.SubmitTransfer(context.Background(), testRecipient, 1)
	assert.ErrorContains(t, err, "failed to start transfer workflow")

	p = NewTransferProvider(base, &fakeExecutor{runErr: errors.New("transfer sig1 was not confirmed")}, "q", "s1", nil)
	_, err = p.SubmitTransfer(context.Background(), testRecipient, 1)
	assert.ErrorContains(t, err, "was not confirmed")
}

func TestTransferProvider_Delegates(t *testing.T) {
	base := session.NewMockProvider(testAccount)
	base.SetBalance(42)
	p := NewTransferProvider(base, &fakeExecutor{}, "q", "s1", nil)

	balance, err := p.GetBalance(context.Background(), testAccount.Address)
	require.NoError(t, err)
	assert.Equal(t, 42.0, balance)

	records, err := p.RecentTransactions(context.Background(), testAccount.Address, 5)
	require.NoError(t, err)
	assert.Nil(t, records, "plain providers have no history")

	history := session.MockHistoryProvider{MockProvider: base}
	history.SetHistory([]session.TransactionRecord{{ID: "old", Status: session.TxConfirmed}}, nil)
	p = NewTransferProvider(history, &fakeExecutor{}, "q", "s1", nil)
	records, err = p.RecentTransactions(context.Background(), testAccount.Address, 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "old", records[0].ID)
}

func TestTransferProvider_DrivesSessionStore(t *testing.T) {
	exec := &fakeExecutor{result: TransferResult{Signature: "sig-store"}}
	p := NewTransferProvider(session.NewMockProvider(testAccount), exec, "q", "s1", nil)

	store := session.NewStore(p, session.Options{HistoryLimit: -1})
	defer store.Close()

	_, err := store.Connect(context.Background())
	require.NoError(t, err)

	hash, err := store.SendTransaction(context.Background(), testRecipient, 4)
	require.NoError(t, err)
	assert.Equal(t, "sig-store", hash)
	assert.Equal(t, 6.0, store.Snapshot().Balance)
}
