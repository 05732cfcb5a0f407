package backend

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrPaymentNotFound means no transaction with the given hash is known to
	// the node.
	ErrPaymentNotFound = errors.New("payment transaction not found")
	// ErrPaymentInvalid means the transaction exists but does not pay the
	// required fee to the payment contract.
	ErrPaymentInvalid = errors.New("payment verification failed")
	// ErrAgentFailure means the remote check agent could not be reached or
	// returned garbage.
	ErrAgentFailure = errors.New("failed to call check agent")
)

type (
	// PaymentVerifier validates that a transaction hash names a confirmed
	// payment of the required fee to the payment contract.
	PaymentVerifier interface {
		Verify(ctx context.Context, txHash string) (*PaymentDetails, error)
	}

	PaymentDetails struct {
		From        common.Address
		AmountWei   *big.Int
		GasUsed     uint64
		BlockNumber uint64
	}

	// txReader is the slice of ethclient.Client the verifier needs.
	txReader interface {
		TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
		TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	}

	ethPaymentVerifier struct {
		client   txReader
		contract common.Address
		feeWei   *big.Int
	}
)

func NewPaymentVerifier(client txReader, contract common.Address, feeWei *big.Int) PaymentVerifier {
	return &ethPaymentVerifier{client: client, contract: contract, feeWei: feeWei}
}

// Verify loads the transaction and its receipt from the node and checks that
// it is mined, successful, addressed to the payment contract and carries at
// least the required fee.
func (v *ethPaymentVerifier) Verify(ctx context.Context, txHash string) (*PaymentDetails, error) {
	if !isHexHash(txHash) {
		return nil, fmt.Errorf("%w: invalid transaction hash %q", ErrPaymentInvalid, txHash)
	}
	hash := common.HexToHash(txHash)
	tx, pending, err := v.client.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentNotFound, err)
	}
	if pending {
		return nil, fmt.Errorf("%w: transaction %s is not mined yet", ErrPaymentInvalid, txHash)
	}
	if tx.To() == nil || *tx.To() != v.contract {
		return nil, fmt.Errorf("%w: transaction %s is not addressed to the payment contract", ErrPaymentInvalid, txHash)
	}
	if tx.Value().Cmp(v.feeWei) < 0 {
		return nil, fmt.Errorf("%w: transaction %s pays %s wei, required %s wei", ErrPaymentInvalid, txHash, tx.Value(), v.feeWei)
	}
	receipt, err := v.client.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentNotFound, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: transaction %s reverted", ErrPaymentInvalid, txHash)
	}
	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to recover sender of %s: %v", ErrPaymentInvalid, txHash, err)
	}
	return &PaymentDetails{
		From:        from,
		AmountWei:   tx.Value(),
		GasUsed:     receipt.GasUsed,
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

func isHexHash(s string) bool {
	if len(s) != 66 || s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return false
	}
	for _, c := range s[2:] {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
