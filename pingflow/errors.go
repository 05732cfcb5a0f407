package pingflow

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrorKind is the closed failure taxonomy of a ping attempt. Kinds are
// assigned from the tagged errors of the wallet gateway and the reporting
// client, never inferred from error message text.
type ErrorKind int

const (
	WalletUnavailable ErrorKind = iota
	WrongNetwork
	ConfigurationMissing
	AccountAccessDenied
	PaymentRejected
	InsufficientFunds
	SubmissionFailed
	ConfirmationFailed
	ReportingFailed
)

func (k ErrorKind) String() string {
	switch k {
	case WalletUnavailable:
		return "wallet unavailable"
	case WrongNetwork:
		return "wrong network"
	case ConfigurationMissing:
		return "configuration missing"
	case AccountAccessDenied:
		return "account access denied"
	case PaymentRejected:
		return "payment rejected"
	case InsufficientFunds:
		return "insufficient funds"
	case SubmissionFailed:
		return "submission failed"
	case ConfirmationFailed:
		return "confirmation failed"
	case ReportingFailed:
		return "reporting failed"
	default:
		return "unknown"
	}
}

// Error is the terminal failure of one attempt. TxHash is non-zero when a
// transaction was submitted before the failure; for ReportingFailed it is the
// confirmed hash the user must retain, since only the reporting step needs
// retrying and resubmitting the payment would double-charge.
type Error struct {
	Kind   ErrorKind
	TxHash common.Hash
	err    error
}

func (e *Error) Error() string {
	if e.Kind == ReportingFailed && e.TxHash != (common.Hash{}) {
		return fmt.Sprintf("payment succeeded, but recording failed, retain transaction hash %s: %v", e.TxHash.Hex(), e.err)
	}
	if e.err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Paid reports whether the user's payment was confirmed on-chain before the
// failure.
func (e *Error) Paid() bool {
	return e.Kind == ReportingFailed
}

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, err: err}
}
