package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// pingPaymentABI is the payable entry point of the PingPayment contract. The
// contract internals are opaque to this component, only the function selector
// and the value transfer matter here.
const pingPaymentABI = `[{"inputs":[],"name":"payForPing","outputs":[],"stateMutability":"payable","type":"function"}]`

const defaultPollInterval = time.Second

type (
	// Signer signs transactions with the account key, typically provided by the
	// account manager.
	Signer interface {
		Address() common.Address
		SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
	}

	// ethClient is the subset of ethclient.Client used by the gateway.
	ethClient interface {
		ChainID(ctx context.Context) (*big.Int, error)
		PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
		SuggestGasPrice(ctx context.Context) (*big.Int, error)
		EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
		BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
		SendTransaction(ctx context.Context, tx *types.Transaction) error
		TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	}

	// ConfirmFunc is called right before signing, with the payment parameters.
	// Returning false aborts the submission with ErrPaymentRejected. A nil
	// ConfirmFunc approves automatically.
	ConfirmFunc func(contract common.Address, feeWei *big.Int) bool

	EthGateway struct {
		client       ethClient
		signer       Signer
		confirm      ConfirmFunc
		entryPoint   abi.ABI
		pollInterval time.Duration
	}

	Option func(*EthGateway)
)

// WithConfirmFunc installs a signing confirmation hook.
func WithConfirmFunc(f ConfirmFunc) Option {
	return func(g *EthGateway) { g.confirm = f }
}

// WithPollInterval overrides the receipt polling interval, used by tests.
func WithPollInterval(d time.Duration) Option {
	return func(g *EthGateway) { g.pollInterval = d }
}

// Dial connects the gateway to an Ethereum JSON-RPC endpoint. A failed dial is
// reported as ErrWalletUnavailable since no wallet capability is usable without
// a provider.
func Dial(ctx context.Context, rpcURL string, signer Signer, opts ...Option) (*EthGateway, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %v", ErrWalletUnavailable, rpcURL, err)
	}
	return New(client, signer, opts...)
}

// New creates a gateway over an existing client connection.
func New(client ethClient, signer Signer, opts ...Option) (*EthGateway, error) {
	entryPoint, err := abi.JSON(strings.NewReader(pingPaymentABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse payment contract ABI: %w", err)
	}
	g := &EthGateway{
		client:       client,
		signer:       signer,
		entryPoint:   entryPoint,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Close releases the underlying client connection if it holds one.
func (g *EthGateway) Close() {
	if c, ok := g.client.(interface{ Close() }); ok {
		c.Close()
	}
}

func (g *EthGateway) EnsureAvailable(ctx context.Context) error {
	if g.client == nil {
		return ErrWalletUnavailable
	}
	if _, err := g.client.ChainID(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrWalletUnavailable, err)
	}
	return nil
}

func (g *EthGateway) RequestAccounts(_ context.Context) ([]common.Address, error) {
	if g.signer == nil {
		return nil, fmt.Errorf("%w: no signing key loaded", ErrAccountAccessDenied)
	}
	return []common.Address{g.signer.Address()}, nil
}

func (g *EthGateway) CurrentNetwork(ctx context.Context) (*big.Int, error) {
	chainID, err := g.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read active network id: %w", err)
	}
	return chainID, nil
}

func (g *EthGateway) InvokePayment(ctx context.Context, contract common.Address, feeWei *big.Int) (*PendingTx, error) {
	if g.signer == nil {
		return nil, fmt.Errorf("%w: no signing key loaded", ErrAccountAccessDenied)
	}
	from := g.signer.Address()

	chainID, err := g.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: reading chain id: %v", ErrSubmissionFailed, err)
	}
	nonce, err := g.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("%w: reading account nonce: %v", ErrSubmissionFailed, err)
	}
	gasPrice, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: reading gas price: %v", ErrSubmissionFailed, err)
	}
	data, err := g.entryPoint.Pack("payForPing")
	if err != nil {
		return nil, fmt.Errorf("%w: packing entry point call: %v", ErrSubmissionFailed, err)
	}
	gasLimit, err := g.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &contract,
		Value: feeWei,
		Data:  data,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: estimating gas: %v", ErrSubmissionFailed, err)
	}

	// Explicit balance precheck so that insufficient funds is a tagged variant
	// and never has to be inferred from provider error text.
	balance, err := g.client.BalanceAt(ctx, from, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: reading account balance: %v", ErrSubmissionFailed, err)
	}
	cost := new(big.Int).Add(feeWei, new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasLimit)))
	if balance.Cmp(cost) < 0 {
		return nil, fmt.Errorf("%w: balance %s wei, required %s wei", ErrInsufficientFunds, balance, cost)
	}

	if g.confirm != nil && !g.confirm(contract, feeWei) {
		return nil, ErrPaymentRejected
	}
	tx := types.NewTransaction(nonce, contract, feeWei, gasLimit, gasPrice, data)
	signed, err := g.signer.SignTx(tx, chainID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentRejected, err)
	}
	if err := g.client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}
	return &PendingTx{Hash: signed.Hash(), FeeWei: feeWei}, nil
}

func (g *EthGateway) AwaitConfirmation(ctx context.Context, tx *PendingTx) error {
	for {
		receipt, err := g.client.TransactionReceipt(ctx, tx.Hash)
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return fmt.Errorf("%w: fetching receipt: %v", ErrConfirmationFailed, err)
		}
		if receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("%w: transaction %s reverted", ErrConfirmationFailed, tx.Hash.Hex())
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: confirmation wait interrupted: %w", ErrConfirmationFailed, ctx.Err())
		case <-time.After(g.pollInterval):
		}
	}
}
