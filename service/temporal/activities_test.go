package temporal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

// MockWallet implements TransferSubmitter.
type MockWallet struct {
	mock.Mock
}

func (m *MockWallet) Submit(ctx context.Context, to string, amount float64) (solanago.Signature, error) {
	args := m.Called(ctx, to, amount)
	return args.Get(0).(solanago.Signature), args.Error(1)
}

func (m *MockWallet) AwaitConfirmation(ctx context.Context, signature string) error {
	args := m.Called(ctx, signature)
	return args.Error(0)
}

var testSignature = solanago.MustSignatureFromBase58("5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7")

func newTestActivities(wallet *MockWallet) *Activities {
	return NewActivities(wallet, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSubmitTransfer(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()

	wallet := new(MockWallet)
	wallet.On("Submit", mock.Anything, testRecipient, 0.25).Return(testSignature, nil)

	activities := newTestActivities(wallet)
	env.RegisterActivity(activities.SubmitTransfer)

	val, err := env.ExecuteActivity(activities.SubmitTransfer, SubmitTransferInput{To: testRecipient, Amount: 0.25})
	require.NoError(t, err)

	var result SubmitTransferResult
	require.NoError(t, val.Get(&result))
	assert.Equal(t, testSignature.String(), result.Signature)
	wallet.AssertExpectations(t)
}

func TestSubmitTransfer_InvalidInputIsNonRetryable(t *testing.T) {
	tests := []struct {
		name  string
		input SubmitTransferInput
	}{
		{name: "bad recipient", input: SubmitTransferInput{To: "0.0.999", Amount: 1}},
		{name: "zero amount", input: SubmitTransferInput{To: testRecipient, Amount: 0}},
		{name: "negative amount", input: SubmitTransferInput{To: testRecipient, Amount: -3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testSuite := &testsuite.WorkflowTestSuite{}
			env := testSuite.NewTestActivityEnvironment()

			wallet := new(MockWallet)
			activities := newTestActivities(wallet)
			env.RegisterActivity(activities.SubmitTransfer)

			_, err := env.ExecuteActivity(activities.SubmitTransfer, tt.input)
			require.Error(t, err)

			var appErr *temporal.ApplicationError
			require.True(t, errors.As(err, &appErr))
			assert.True(t, appErr.NonRetryable())
			assert.Equal(t, ErrTypeInvalidTransfer, appErr.Type())
			wallet.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSubmitTransfer_WalletError(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()

	wallet := new(MockWallet)
	wallet.On("Submit", mock.Anything, testRecipient, 1.0).
		Return(solanago.Signature{}, errors.New("insufficient funds for rent"))

	activities := newTestActivities(wallet)
	env.RegisterActivity(activities.SubmitTransfer)

	_, err := env.ExecuteActivity(activities.SubmitTransfer, SubmitTransferInput{To: testRecipient, Amount: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient funds for rent")
}

func TestAwaitConfirmation(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()

	wallet := new(MockWallet)
	wallet.On("AwaitConfirmation", mock.Anything, "sig1").Return(nil)

	activities := newTestActivities(wallet)
	env.RegisterActivity(activities.AwaitConfirmation)

	val, err := env.ExecuteActivity(activities.AwaitConfirmation, AwaitConfirmationInput{Signature: "sig1"})
	require.NoError(t, err)

	var result AwaitConfirmationResult
	require.NoError(t, val.Get(&result))
	assert.Equal(t, "sig1", result.Signature)
}

func TestAwaitConfirmation_Errors(t *testing.T) {
	t.Run("missing signature", func(t *testing.T) {
		testSuite := &testsuite.WorkflowTestSuite{}
		env := testSuite.NewTestActivityEnvironment()
		activities := newTestActivities(new(MockWallet))
		env.RegisterActivity(activities.AwaitConfirmation)

		_, err := env.ExecuteActivity(activities.AwaitConfirmation, AwaitConfirmationInput{})
		assert.Error(t, err)
	})

	t.Run("wallet error", func(t *testing.T) {
		testSuite := &testsuite.WorkflowTestSuite{}
		env := testSuite.NewTestActivityEnvironment()

		wallet := new(MockWallet)
		wallet.On("AwaitConfirmation", mock.Anything, "sig1").Return(errors.New("failed on chain"))
		activities := newTestActivities(wallet)
		env.RegisterActivity(activities.AwaitConfirmation)

		_, err := env.ExecuteActivity(activities.AwaitConfirmation, AwaitConfirmationInput{Signature: "sig1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed on chain")
	})
}
