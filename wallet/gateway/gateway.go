// Package gateway is a thin adapter over an Ethereum JSON-RPC provider and a
// local signing key. It is the only place where provider failures are turned
// into the closed set of error variants consumed by the payment flow.
package gateway

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type (
	// PendingTx is the handle returned by InvokePayment as soon as the provider
	// accepts the submission, before the transaction is mined.
	PendingTx struct {
		Hash   common.Hash
		FeeWei *big.Int
	}

	Gateway interface {
		// EnsureAvailable fails with ErrWalletUnavailable if no usable provider
		// is reachable. Must be the first call, all other operations assume a
		// provider exists.
		EnsureAvailable(ctx context.Context) error
		// RequestAccounts exposes the signing account(s).
		RequestAccounts(ctx context.Context) ([]common.Address, error)
		// CurrentNetwork returns the active chain id. Never switches networks.
		CurrentNetwork(ctx context.Context) (*big.Int, error)
		// InvokePayment submits a value-bearing call to the payable entry point
		// and returns a pending handle carrying the transaction hash.
		InvokePayment(ctx context.Context, contract common.Address, feeWei *big.Int) (*PendingTx, error)
		// AwaitConfirmation blocks until the transaction is mined or ctx expires.
		AwaitConfirmation(ctx context.Context, tx *PendingTx) error
	}
)

var (
	ErrWalletUnavailable   = errors.New("wallet provider is not available")
	ErrAccountAccessDenied = errors.New("account access denied")
	ErrPaymentRejected     = errors.New("payment rejected by signer")
	ErrInsufficientFunds   = errors.New("insufficient funds for fee and gas")
	ErrSubmissionFailed    = errors.New("transaction submission failed")
	ErrConfirmationFailed  = errors.New("transaction confirmation failed")
)
