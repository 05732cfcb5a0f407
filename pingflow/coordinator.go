// Package pingflow drives a single paid ping attempt through its protocol
// states: precondition checks, payment submission, confirmation wait and
// backend reporting. One call to Run is one attempt; the coordinator never
// retries and never submits more than one transaction per attempt.
package pingflow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/webtether/webtether/internal/logger"
	"github.com/webtether/webtether/wallet"
	"github.com/webtether/webtether/wallet/gateway"
	"github.com/webtether/webtether/wallet/report"
	"github.com/webtether/webtether/wallet/session"
)

const (
	// DefaultChainID is the local development chain.
	DefaultChainID = 31337
	// DefaultFeeWei is 0.0002 ETH.
	DefaultFeeWei = 200_000_000_000_000
)

type (
	// Reporter posts a confirmed payment to the backend. Satisfied by
	// report.Client.
	Reporter interface {
		ReportPing(ctx context.Context, sess *session.Session, pingReq wallet.PingRequest, txHash common.Hash, feePaidWei *big.Int) (*wallet.PingResult, error)
	}

	// Config is the static protocol configuration. Zero values fall back to
	// the local development defaults, except ContractAddress which is
	// mandatory.
	Config struct {
		// RequiredChainID is the only network the payment may be submitted on.
		RequiredChainID *big.Int
		// ContractAddress is the deployed payment contract. A zero address
		// fails the attempt with ConfigurationMissing.
		ContractAddress common.Address
		// FeeWei is the exact amount sent with the payment call. The optional
		// code never changes it.
		FeeWei *big.Int
		// ConfirmationTimeout bounds the mining wait, zero means no bound
		// beyond the caller's context.
		ConfirmationTimeout time.Duration
		// ReportingTimeout bounds the backend call, zero means no bound beyond
		// the caller's context.
		ReportingTimeout time.Duration
	}

	// Coordinator runs ping attempts. Safe for sequential reuse, a single
	// attempt is in flight per Run call.
	Coordinator struct {
		gw       gateway.Gateway
		reporter Reporter
		cfg      Config
		log      logger.Logger
		observe  Observer
	}
)

func New(gw gateway.Gateway, reporter Reporter, cfg Config, log logger.Logger, observer Observer) *Coordinator {
	if cfg.RequiredChainID == nil {
		cfg.RequiredChainID = big.NewInt(DefaultChainID)
	}
	if cfg.FeeWei == nil {
		cfg.FeeWei = big.NewInt(DefaultFeeWei)
	}
	if observer == nil {
		observer = func(Event) {}
	}
	return &Coordinator{
		gw:       gw,
		reporter: reporter,
		cfg:      cfg,
		log:      log,
		observe:  observer,
	}
}

// Run executes one full attempt for the given ping request and returns the
// backend's availability verdict. Any returned error is a *Error whose Kind
// tells the caller which stage failed; for ReportingFailed the payment has
// already been confirmed and the error carries the transaction hash to
// retain.
func (c *Coordinator) Run(ctx context.Context, sess *session.Session, req wallet.PingRequest) (*wallet.PingResult, error) {
	c.observe(Event{State: CheckingPreconditions, Message: "checking wallet and network"})

	if err := c.gw.EnsureAvailable(ctx); err != nil {
		return nil, c.fail(newError(WalletUnavailable, err))
	}
	if c.cfg.ContractAddress == (common.Address{}) {
		return nil, c.fail(newError(ConfigurationMissing, errors.New("payment contract address is not configured")))
	}
	chainID, err := c.gw.CurrentNetwork(ctx)
	if err != nil {
		return nil, c.fail(newError(WalletUnavailable, err))
	}
	if chainID.Cmp(c.cfg.RequiredChainID) != 0 {
		return nil, c.fail(newError(WrongNetwork,
			fmt.Errorf("connected to chain %s, required chain %s", chainID, c.cfg.RequiredChainID)))
	}
	accounts, err := c.gw.RequestAccounts(ctx)
	if err != nil {
		return nil, c.fail(newError(AccountAccessDenied, err))
	}
	if len(accounts) == 0 {
		return nil, c.fail(newError(AccountAccessDenied, errors.New("provider returned no accounts")))
	}
	c.log.Debug("preconditions ok, paying from %s on chain %s", accounts[0], chainID)

	c.observe(Event{State: AwaitingSignature, Message: "submitting payment"})
	pending, err := c.gw.InvokePayment(ctx, c.cfg.ContractAddress, c.cfg.FeeWei)
	if err != nil {
		return nil, c.fail(newError(submissionKind(err), err))
	}
	c.log.Info("payment submitted, tx %s", pending.Hash.Hex())

	c.observe(Event{State: AwaitingConfirmation, Message: "waiting for confirmation", TxHash: pending.Hash})
	if err := c.await(ctx, pending); err != nil {
		return nil, c.fail(&Error{Kind: ConfirmationFailed, TxHash: pending.Hash, err: err})
	}
	c.observe(Event{State: Confirmed, Message: "payment confirmed", TxHash: pending.Hash})

	c.observe(Event{State: Reporting, Message: "reporting to backend", TxHash: pending.Hash})
	result, err := c.report(ctx, sess, req, pending)
	if err != nil {
		return nil, c.fail(&Error{Kind: ReportingFailed, TxHash: pending.Hash, err: err})
	}

	c.observe(Event{State: Completed, TxHash: pending.Hash, Result: result})
	return result, nil
}

func (c *Coordinator) await(ctx context.Context, pending *gateway.PendingTx) error {
	if c.cfg.ConfirmationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ConfirmationTimeout)
		defer cancel()
	}
	return c.gw.AwaitConfirmation(ctx, pending)
}

func (c *Coordinator) report(ctx context.Context, sess *session.Session, req wallet.PingRequest, pending *gateway.PendingTx) (*wallet.PingResult, error) {
	if c.cfg.ReportingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ReportingTimeout)
		defer cancel()
	}
	return c.reporter.ReportPing(ctx, sess, req, pending.Hash, pending.FeeWei)
}

func (c *Coordinator) fail(err *Error) *Error {
	c.log.Error("ping attempt failed: %v", err)
	c.observe(Event{State: Failed, Message: err.Kind.String(), TxHash: err.TxHash, Err: err})
	return err
}

// submissionKind classifies a failed InvokePayment by the gateway's tagged
// error, falling back to SubmissionFailed for provider level failures.
func submissionKind(err error) ErrorKind {
	switch {
	case errors.Is(err, gateway.ErrPaymentRejected):
		return PaymentRejected
	case errors.Is(err, gateway.ErrInsufficientFunds):
		return InsufficientFunds
	default:
		return SubmissionFailed
	}
}

var _ Reporter = (*report.Client)(nil)
