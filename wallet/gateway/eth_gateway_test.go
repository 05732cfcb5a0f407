package gateway

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

type MockClient struct {
	ChainIDValue  *big.Int
	ChainIDError  error
	Balance       *big.Int
	SendError     error
	Receipt       *types.Receipt
	ReceiptError  error
	ReceiptAfter  int // number of polls before the receipt appears
	SendTxCount   int
	receiptCalls  int
	lastSentValue *big.Int
}

func (m *MockClient) ChainID(context.Context) (*big.Int, error) {
	if m.ChainIDError != nil {
		return nil, m.ChainIDError
	}
	if m.ChainIDValue == nil {
		return big.NewInt(31337), nil
	}
	return m.ChainIDValue, nil
}

func (m *MockClient) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (m *MockClient) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (m *MockClient) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 50_000, nil
}

func (m *MockClient) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	if m.Balance == nil {
		return new(big.Int).SetUint64(1e18), nil
	}
	return m.Balance, nil
}

func (m *MockClient) SendTransaction(_ context.Context, tx *types.Transaction) error {
	m.SendTxCount++
	m.lastSentValue = tx.Value()
	return m.SendError
}

func (m *MockClient) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	if m.ReceiptError != nil {
		return nil, m.ReceiptError
	}
	m.receiptCalls++
	if m.receiptCalls <= m.ReceiptAfter {
		return nil, ethereum.NotFound
	}
	if m.Receipt == nil {
		return nil, ethereum.NotFound
	}
	return m.Receipt, nil
}

type testSigner struct {
	key *ecdsa.PrivateKey
}

func (s *testSigner) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

func (s *testSigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

func newTestSigner(t *testing.T) *testSigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &testSigner{key: key}
}

var testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

func TestEnsureAvailable_NoClient(t *testing.T) {
	g, err := New(nil, newTestSigner(t))
	require.NoError(t, err)
	err = g.EnsureAvailable(context.Background())
	require.ErrorIs(t, err, ErrWalletUnavailable)
}

func TestEnsureAvailable_ProviderUnreachable(t *testing.T) {
	client := &MockClient{ChainIDError: errors.New("connection refused")}
	g, err := New(client, newTestSigner(t))
	require.NoError(t, err)
	err = g.EnsureAvailable(context.Background())
	require.ErrorIs(t, err, ErrWalletUnavailable)
}

func TestRequestAccounts_NoSigner(t *testing.T) {
	g, err := New(&MockClient{}, nil)
	require.NoError(t, err)
	_, err = g.RequestAccounts(context.Background())
	require.ErrorIs(t, err, ErrAccountAccessDenied)
}

func TestRequestAccounts(t *testing.T) {
	signer := newTestSigner(t)
	g, err := New(&MockClient{}, signer)
	require.NoError(t, err)
	accounts, err := g.RequestAccounts(context.Background())
	require.NoError(t, err)
	require.Equal(t, []common.Address{signer.Address()}, accounts)
}

func TestInvokePayment_InsufficientFunds(t *testing.T) {
	client := &MockClient{Balance: big.NewInt(1)}
	g, err := New(client, newTestSigner(t))
	require.NoError(t, err)
	_, err = g.InvokePayment(context.Background(), testContract, big.NewInt(200_000_000_000_000))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Zero(t, client.SendTxCount)
}

func TestInvokePayment_Rejected(t *testing.T) {
	client := &MockClient{}
	g, err := New(client, newTestSigner(t), WithConfirmFunc(func(common.Address, *big.Int) bool { return false }))
	require.NoError(t, err)
	_, err = g.InvokePayment(context.Background(), testContract, big.NewInt(200_000_000_000_000))
	require.ErrorIs(t, err, ErrPaymentRejected)
	require.Zero(t, client.SendTxCount)
}

func TestInvokePayment_SubmissionError(t *testing.T) {
	client := &MockClient{SendError: errors.New("rpc: nonce too low")}
	g, err := New(client, newTestSigner(t))
	require.NoError(t, err)
	_, err = g.InvokePayment(context.Background(), testContract, big.NewInt(200_000_000_000_000))
	require.ErrorIs(t, err, ErrSubmissionFailed)
}

func TestInvokePayment_OK(t *testing.T) {
	client := &MockClient{}
	g, err := New(client, newTestSigner(t))
	require.NoError(t, err)
	fee := big.NewInt(200_000_000_000_000)
	pending, err := g.InvokePayment(context.Background(), testContract, fee)
	require.NoError(t, err)
	require.NotEqual(t, common.Hash{}, pending.Hash)
	require.Equal(t, fee, pending.FeeWei)
	require.Equal(t, 1, client.SendTxCount)
	require.Zero(t, fee.Cmp(client.lastSentValue))
}

func TestAwaitConfirmation_Mined(t *testing.T) {
	client := &MockClient{
		Receipt:      &types.Receipt{Status: types.ReceiptStatusSuccessful},
		ReceiptAfter: 2,
	}
	g, err := New(client, newTestSigner(t), WithPollInterval(time.Millisecond))
	require.NoError(t, err)
	err = g.AwaitConfirmation(context.Background(), &PendingTx{Hash: common.HexToHash("0xabc")})
	require.NoError(t, err)
}

func TestAwaitConfirmation_Reverted(t *testing.T) {
	client := &MockClient{Receipt: &types.Receipt{Status: types.ReceiptStatusFailed}}
	g, err := New(client, newTestSigner(t), WithPollInterval(time.Millisecond))
	require.NoError(t, err)
	err = g.AwaitConfirmation(context.Background(), &PendingTx{Hash: common.HexToHash("0xabc")})
	require.ErrorIs(t, err, ErrConfirmationFailed)
}

func TestAwaitConfirmation_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g, err := New(&MockClient{}, newTestSigner(t), WithPollInterval(time.Millisecond))
	require.NoError(t, err)
	err = g.AwaitConfirmation(ctx, &PendingTx{Hash: common.HexToHash("0xabc")})
	require.ErrorIs(t, err, ErrConfirmationFailed)
	require.ErrorIs(t, err, context.Canceled)
}
