package backend

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

type mockTxReader struct {
	Tx           *types.Transaction
	Pending      bool
	TxError      error
	Receipt      *types.Receipt
	ReceiptError error
}

func (m *mockTxReader) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	return m.Tx, m.Pending, m.TxError
}

func (m *mockTxReader) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return m.Receipt, m.ReceiptError
}

func signedPaymentTx(t *testing.T, to common.Address, valueWei *big.Int) *types.Transaction {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	tx := types.NewTransaction(0, to, valueWei, 30_000, big.NewInt(1), nil)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(31337)), key)
	require.NoError(t, err)
	return signed
}

func successReceipt() *types.Receipt {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, GasUsed: 25_000, BlockNumber: big.NewInt(7)}
}

func TestVerify_OK(t *testing.T) {
	fee := big.NewInt(200_000_000_000_000)
	client := &mockTxReader{
		Tx:      signedPaymentTx(t, testContract, fee),
		Receipt: successReceipt(),
	}
	verifier := NewPaymentVerifier(client, testContract, fee)

	details, err := verifier.Verify(context.Background(), testTxHash)
	require.NoError(t, err)
	require.Equal(t, 0, fee.Cmp(details.AmountWei))
	require.EqualValues(t, 25_000, details.GasUsed)
	require.EqualValues(t, 7, details.BlockNumber)
	require.NotEqual(t, common.Address{}, details.From)
}

func TestVerify_InvalidHashFormat(t *testing.T) {
	verifier := NewPaymentVerifier(&mockTxReader{}, testContract, big.NewInt(1))

	_, err := verifier.Verify(context.Background(), "TX-001")
	require.ErrorIs(t, err, ErrPaymentInvalid)
}

func TestVerify_TxNotFound(t *testing.T) {
	client := &mockTxReader{TxError: errors.New("not found")}
	verifier := NewPaymentVerifier(client, testContract, big.NewInt(1))

	_, err := verifier.Verify(context.Background(), testTxHash)
	require.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestVerify_Pending(t *testing.T) {
	fee := big.NewInt(200_000_000_000_000)
	client := &mockTxReader{Tx: signedPaymentTx(t, testContract, fee), Pending: true}
	verifier := NewPaymentVerifier(client, testContract, fee)

	_, err := verifier.Verify(context.Background(), testTxHash)
	require.ErrorIs(t, err, ErrPaymentInvalid)
	require.ErrorContains(t, err, "not mined")
}

func TestVerify_WrongRecipient(t *testing.T) {
	fee := big.NewInt(200_000_000_000_000)
	client := &mockTxReader{
		Tx:      signedPaymentTx(t, common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"), fee),
		Receipt: successReceipt(),
	}
	verifier := NewPaymentVerifier(client, testContract, fee)

	_, err := verifier.Verify(context.Background(), testTxHash)
	require.ErrorIs(t, err, ErrPaymentInvalid)
	require.ErrorContains(t, err, "payment contract")
}

func TestVerify_Underpaid(t *testing.T) {
	fee := big.NewInt(200_000_000_000_000)
	client := &mockTxReader{
		Tx:      signedPaymentTx(t, testContract, big.NewInt(1)),
		Receipt: successReceipt(),
	}
	verifier := NewPaymentVerifier(client, testContract, fee)

	_, err := verifier.Verify(context.Background(), testTxHash)
	require.ErrorIs(t, err, ErrPaymentInvalid)
	require.ErrorContains(t, err, "required")
}

func TestVerify_Reverted(t *testing.T) {
	fee := big.NewInt(200_000_000_000_000)
	client := &mockTxReader{
		Tx:      signedPaymentTx(t, testContract, fee),
		Receipt: &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(7)},
	}
	verifier := NewPaymentVerifier(client, testContract, fee)

	_, err := verifier.Verify(context.Background(), testTxHash)
	require.ErrorIs(t, err, ErrPaymentInvalid)
	require.ErrorContains(t, err, "reverted")
}
